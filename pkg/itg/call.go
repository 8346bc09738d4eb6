package itg

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var requestDurations = prometheus.NewSummaryVec(prometheus.SummaryOpts{
	Name:       "itg_request_duration_us",
	Help:       "itg request durations microseconds",
	AgeBuckets: 1,
}, []string{"gate", "action"})

func init() {
	prometheus.MustRegister(requestDurations)
}

// loginCall wait gateway reply on login handshake
type loginCall struct {
	id    string
	gate  string
	start time.Time
	Reply MsgResponse
	Done  chan *loginCall
}

func (call *loginCall) done() {
	requestDurations.WithLabelValues(call.gate, "login").Observe(float64(time.Since(call.start) / time.Microsecond))
	select {
	case call.Done <- call:
		// ok
	default:
		// reply already delivered for this login id
	}
}

func createLoginCall(gate string) *loginCall {
	return &loginCall{
		id:    RequestIdGenerate(),
		gate:  gate,
		start: time.Now(),
		Done:  make(chan *loginCall, 1),
	}
}

// queryCall track outstanding paginated query until its isLast page
type queryCall struct {
	id    string
	kind  QueryKind
	start time.Time
	pages int
}

func (call *queryCall) done() {
	requestDurations.WithLabelValues(call.kind.String(), "query").Observe(float64(time.Since(call.start) / time.Microsecond))
}

func (call *queryCall) age(now time.Time) time.Duration {
	return now.Sub(call.start)
}

func createQueryCall(id string, kind QueryKind) *queryCall {
	return &queryCall{
		id:    id,
		kind:  kind,
		start: time.Now(),
	}
}
