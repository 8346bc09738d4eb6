package itg

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

var readyState = prometheus.NewGaugeVec(prometheus.GaugeOpts{
	Name: "itg_zmq_ready_state",
	Help: "itg zmq gateway status",
}, []string{"gate"})

func init() {
	prometheus.MustRegister(readyState)
}

func userTopic(userID string) string {
	return "user_" + userID
}

func tickTopic(symbol string) string {
	return "tick_" + symbol
}

// zmqGate is one gateway process, command and event sockets pair
type zmqGate struct {
	push pushConnecter
	xsub xsubConnecter
}

func (g *zmqGate) IsReady() bool {
	return g.push.IsReady() && g.xsub.IsReady()
}

func (g *zmqGate) Close() error {
	pushErr := g.push.Close()
	if err := g.xsub.Close(); err != nil {
		return err
	}
	return pushErr
}

// zmqTransport bridge to gateway processes hosting the vendor sdk,
// trade and quot domains may share one gateway
type zmqTransport struct {
	logger       *zap.Logger
	gates        map[SessionDomain]*zmqGate
	uniqGates    []*zmqGate
	events       chan interface{}
	mx           sync.Mutex
	pendingLogin map[string]*loginCall
	sessions     map[SessionDomain]string
	isReady      uint32
	ready        chan bool
	readers      sync.WaitGroup
	watchers     sync.WaitGroup
	done         chan struct{}
	closeOnce    sync.Once
}

func (t *zmqTransport) gate(domain SessionDomain) *zmqGate {
	return t.gates[domain]
}

// Login subscribe user topic then send handshake, reply arrives as LoginReply with same login id
func (t *zmqTransport) Login(ctx context.Context, domain SessionDomain, conn ConnRequest, req LoginRequest) (MsgResponse, error) {
	gate := t.gate(domain)
	if gate == nil {
		return MsgResponse{}, errors.New("no gateway for domain " + domain.String())
	}

	call := createLoginCall(gate.xsub.GetAddr())
	t.mx.Lock()
	t.pendingLogin[call.id] = call
	t.mx.Unlock()
	defer func() {
		t.mx.Lock()
		delete(t.pendingLogin, call.id)
		t.mx.Unlock()
	}()

	topic := userTopic(req.UserID)
	if err := gate.xsub.Subscribe(topic); err != nil {
		return MsgResponse{}, errors.WithMessage(err, "fail subscribe user events")
	}

	err := gate.push.SendLogin(payloadLogin{
		LoginID: call.id,
		Domain:  domain,
		Conn:    conn,
		Request: req,
	})
	if err != nil {
		t.unsubscribe(gate, topic)
		return MsgResponse{}, err
	}

	select {
	case result := <-call.Done:
		if !result.Reply.IsSuccess {
			t.unsubscribe(gate, topic)
			return result.Reply, nil
		}
		t.mx.Lock()
		t.sessions[domain] = req.UserID
		t.mx.Unlock()
		return result.Reply, nil
	case <-ctx.Done():
		t.unsubscribe(gate, topic)
		return MsgResponse{}, ctx.Err()
	}
}

func (t *zmqTransport) unsubscribe(gate *zmqGate, topic string) {
	if err := gate.xsub.UnSubscribe(topic); err != nil {
		t.logger.Warn("zmq transport: fail unsubscribe", zap.String("topic", topic), zap.Error(err))
	}
}

func (t *zmqTransport) session(domain SessionDomain) (*zmqGate, string, error) {
	gate := t.gate(domain)
	if gate == nil {
		return nil, "", errors.New("no gateway for domain " + domain.String())
	}
	t.mx.Lock()
	userID, ok := t.sessions[domain]
	t.mx.Unlock()
	if !ok {
		return nil, "", errors.New("no session for domain " + domain.String())
	}
	return gate, userID, nil
}

func (t *zmqTransport) Logout(domain SessionDomain) error {
	gate, userID, err := t.session(domain)
	if err != nil {
		return err
	}
	t.mx.Lock()
	delete(t.sessions, domain)
	t.mx.Unlock()

	err = gate.push.SendLogout(payloadLogout{Domain: domain, UserID: userID})
	t.unsubscribe(gate, userTopic(userID))
	return err
}

func (t *zmqTransport) SendOrder(order LimitOrderRequest) error {
	gate, userID, err := t.session(SessionTrade)
	if err != nil {
		return err
	}
	return gate.push.SendOrder(payloadOrder{UserID: userID, Order: order})
}

func (t *zmqTransport) SendCancel(orderID string) error {
	gate, userID, err := t.session(SessionTrade)
	if err != nil {
		return err
	}
	return gate.push.SendCancel(payloadCancel{UserID: userID, OrderID: orderID})
}

func (t *zmqTransport) SendQuery(kind QueryKind, requestID string) error {
	gate, userID, err := t.session(kind.Domain())
	if err != nil {
		return err
	}
	return gate.push.SendQuery(payloadQuery{UserID: userID, Kind: kind, RequestID: requestID})
}

// Subscribe listen tick topic before asking gateway to start the feed
func (t *zmqTransport) Subscribe(symbol string, level TickerLevel) error {
	gate, userID, err := t.session(SessionQuot)
	if err != nil {
		return err
	}
	if err = gate.xsub.Subscribe(tickTopic(symbol)); err != nil {
		return err
	}
	return gate.push.SendSubscribe(payloadSubscribe{UserID: userID, Symbol: symbol, Level: level})
}

func (t *zmqTransport) Unsubscribe(symbol string) error {
	gate, userID, err := t.session(SessionQuot)
	if err != nil {
		return err
	}
	err = gate.push.SendUnsubscribe(payloadUnsubscribe{UserID: userID, Symbol: symbol})
	t.unsubscribe(gate, tickTopic(symbol))
	return err
}

func (t *zmqTransport) Events() chan interface{} {
	return t.events
}

func (t *zmqTransport) input(gate *zmqGate) {
	defer t.readers.Done()
	for report := range gate.xsub.Reports() {
		if reply, ok := report.(*payloadLoginReply); ok {
			t.handleLoginReply(reply)
			continue
		}
		t.events <- report
	}
}

func (t *zmqTransport) handleLoginReply(reply *payloadLoginReply) {
	t.mx.Lock()
	defer t.mx.Unlock()
	call, ok := t.pendingLogin[reply.LoginID]
	if !ok {
		t.logger.Warn("zmq transport: login reply without pending call", zap.String("loginId", reply.LoginID))
		return
	}
	call.Reply = MsgResponse{IsSuccess: reply.IsSuccess, Msg: reply.Msg}
	call.done()
}

func (t *zmqTransport) setReady(val bool) {
	var state uint32
	if val {
		state = 1
	}

	if atomic.SwapUint32(&t.isReady, state) != state {
		select {
		case t.ready <- val:
			// ok
		default:
			t.logger.Error("zmq transport: ready call discarding due to insufficient chan capacity")
		}
	}
}

func (t *zmqTransport) refreshReady() {
	isReady := true
	for _, gate := range t.uniqGates {
		gateReady := gate.IsReady()
		var promStatus float64
		if gateReady {
			promStatus = 1
		}
		readyState.WithLabelValues(gate.xsub.GetAddr()).Set(promStatus)
		isReady = isReady && gateReady
	}
	t.setReady(isReady)
}

func (t *zmqTransport) handleReady(gate *zmqGate) {
	defer t.watchers.Done()
	for {
		select {
		case <-t.done:
			return
		case pushReady, ok := <-gate.push.Ready():
			if !ok {
				return
			}
			t.logger.Info("zmq transport:", zap.Bool("push ready state", pushReady), zap.String("gate", gate.xsub.GetAddr()))
		case xsubReady, ok := <-gate.xsub.Ready():
			if !ok {
				return
			}
			t.logger.Info("zmq transport:", zap.Bool("xsub ready state", xsubReady), zap.String("gate", gate.xsub.GetAddr()))
		}
		t.refreshReady()
	}
}

func (t *zmqTransport) IsReady() bool {
	return atomic.LoadUint32(&t.isReady) == 1
}

func (t *zmqTransport) Ready() chan bool {
	return t.ready
}

// Close stop gateways, Events is closed when all readers are done
func (t *zmqTransport) Close() error {
	var result error
	t.closeOnce.Do(func() {
		close(t.done)
		t.watchers.Wait()
		for _, gate := range t.uniqGates {
			if err := gate.push.Close(); err != nil && result == nil {
				result = errors.WithMessage(err, "fail close push")
			}
			if err := gate.xsub.Close(); err != nil && result == nil {
				result = errors.WithMessage(err, "fail close xsub")
			}
		}
		t.readers.Wait()
		close(t.events)
	})
	return result
}

// startZmqTransport wire gates and start readers, quot may be the same gate as trade
func startZmqTransport(logger *zap.Logger, trade, quot *zmqGate) *zmqTransport {
	t := &zmqTransport{
		logger:       logger,
		gates:        map[SessionDomain]*zmqGate{SessionTrade: trade, SessionQuot: quot},
		events:       make(chan interface{}, 1000),
		pendingLogin: make(map[string]*loginCall),
		sessions:     make(map[SessionDomain]string),
		ready:        make(chan bool, 2),
		done:         make(chan struct{}),
	}
	t.uniqGates = append(t.uniqGates, trade)
	if quot != trade {
		t.uniqGates = append(t.uniqGates, quot)
	}
	for _, gate := range t.uniqGates {
		t.readers.Add(1)
		go t.input(gate)
		t.watchers.Add(1)
		go t.handleReady(gate)
	}
	return t
}
