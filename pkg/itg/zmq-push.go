package itg

import (
	"sync"
	"sync/atomic"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/pebbe/zmq4"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

var requestCounters = prometheus.NewCounterVec(prometheus.CounterOpts{
	Name: "itg_zmq_request_count",
	Help: "zmq send message counters",
}, []string{"gate", "type"})

func init() {
	prometheus.MustRegister(requestCounters)
}

type zmqPushConnection struct {
	logger  *zap.Logger
	soc     *zmq4.Socket
	token   string
	addr    string
	sendMx  sync.Mutex
	ready   chan bool
	isReady uint32
}

func (c *zmqPushConnection) Ready() chan bool {
	return c.ready
}

func (c *zmqPushConnection) send(kind string, request interface{}) error {
	data, err := jsoniter.Marshal(request)
	if err != nil {
		return errors.WithMessage(err, "fail marshal request "+kind+":")
	}
	requestCounters.WithLabelValues(c.addr, kind).Inc()

	c.logger.Info("zmq: send", zap.ByteString("msg", data), zap.String("gate", c.addr))

	c.sendMx.Lock()
	defer c.sendMx.Unlock()
	_, err = c.soc.SendBytes(data, zmq4.DONTWAIT)

	if err != nil {
		c.logger.Error("zmq: fail send", zap.ByteString("msg", data), zap.String("gate", c.addr), zap.Error(err))
		return errors.WithMessage(err, "fail send via zmq request "+kind+":")
	}
	return nil
}

func (c *zmqPushConnection) SendLogin(login payloadLogin) error {
	return c.send("login", transportRequestLogin{Data: login, Token: c.token})
}

func (c *zmqPushConnection) SendLogout(logout payloadLogout) error {
	return c.send("logout", transportRequestLogout{Data: logout, Token: c.token})
}

func (c *zmqPushConnection) SendOrder(order payloadOrder) error {
	return c.send("order", transportRequestOrder{Data: order, Token: c.token})
}

func (c *zmqPushConnection) SendCancel(cancel payloadCancel) error {
	return c.send("cancel", transportRequestCancel{Data: cancel, Token: c.token})
}

func (c *zmqPushConnection) SendQuery(query payloadQuery) error {
	return c.send("query", transportRequestQuery{Data: query, Token: c.token})
}

func (c *zmqPushConnection) SendSubscribe(sub payloadSubscribe) error {
	return c.send("subscribe", transportRequestSubscribe{Data: sub, Token: c.token})
}

func (c *zmqPushConnection) SendUnsubscribe(unsub payloadUnsubscribe) error {
	return c.send("unsubscribe", transportRequestUnsubscribe{Data: unsub, Token: c.token})
}

func (c *zmqPushConnection) IsReady() bool {
	return atomic.LoadUint32(&c.isReady) == 1
}

func (c *zmqPushConnection) setReady(val bool) {
	var state uint32
	if val {
		state = 1
	}

	if atomic.SwapUint32(&c.isReady, state) != state {
		if val {
			c.logger.Info("zmq: connection ready", zap.String("addr", c.addr))
		} else {
			c.logger.Warn("zmq: connection closed", zap.String("addr", c.addr))
		}
		select {
		case c.ready <- val:
			// ok
		default:
			c.logger.Error("zmq: discarding push ready state due to insufficient chan capacity", zap.String("addr", c.addr))
		}
	}
}

func (c *zmqPushConnection) Close() error {
	c.sendMx.Lock()
	defer c.sendMx.Unlock()
	return c.soc.Close()
}

func (c *zmqPushConnection) String() string {
	return "PUSH:" + c.addr
}

// setClientCurve enable CURVE auth when gateway public key is known
func setClientCurve(sock *zmq4.Socket, publicKey string) error {
	if publicKey == "" {
		return nil
	}
	keyPublic, keySecret, err := zmq4.NewCurveKeypair()
	if err != nil {
		return errors.WithMessage(err, "fail generate curve pair")
	}
	if err = sock.ClientAuthCurve(publicKey, keyPublic, keySecret); err != nil {
		return errors.WithMessage(err, "fail set auth curve")
	}
	return nil
}

func createZmqPushSocket(zmqCtx *zmq4.Context, monitorAddr, addr, publicKey string) (*zmq4.Socket, error) {
	sock, err := zmqCtx.NewSocket(zmq4.PUSH)
	if err != nil {
		return nil, errors.WithMessage(err, "fail create socket")
	}
	defer func() {
		if err != nil {
			_ = sock.Close()
		}
	}()
	if err = sock.Monitor(monitorAddr, zmq4.EVENT_ALL); err != nil {
		return nil, errors.WithMessage(err, "fail set monitor address")
	}

	if err = sock.SetReconnectIvl(time.Second); err != nil {
		return nil, errors.WithMessage(err, "fail set reconnect interval")
	}
	if err = sock.SetSndhwm(100000); err != nil {
		return nil, errors.WithMessage(err, "fail set send buffer messages count")
	}
	if err = sock.SetLinger(time.Second); err != nil {
		return nil, errors.WithMessage(err, "fail set linger timeout")
	}
	if err = sock.SetConnectTimeout(5 * time.Second); err != nil {
		return nil, errors.WithMessage(err, "fail set connect timeout")
	}
	if err = sock.SetHeartbeatIvl(2 * time.Second); err != nil {
		return nil, errors.WithMessage(err, "fail set heartbeat interval")
	}
	if err = sock.SetHeartbeatTimeout(5 * time.Second); err != nil {
		return nil, errors.WithMessage(err, "fail set heartbeat timeout")
	}
	if err = sock.SetImmediate(true); err != nil {
		return nil, errors.WithMessage(err, "fail set immediate send flag")
	}
	if err = setClientCurve(sock, publicKey); err != nil {
		return nil, err
	}

	if err = sock.Connect(addr); err != nil {
		return nil, errors.WithMessage(err, "fail connect "+addr)
	}
	return sock, nil
}

// newPushConnection create command socket, connect and track its status
func newPushConnection(addr, publicKey, token string, logger *zap.Logger) (*zmqPushConnection, error) {
	zmqCtx, err := zmq4.NewContext()
	if err != nil {
		return nil, errors.WithMessage(err, "fail create zmq context")
	}
	monitorAddr := generateMonitorAddr()

	sock, err := createZmqPushSocket(zmqCtx, monitorAddr, addr, publicKey)
	if err != nil {
		return nil, errors.WithMessage(err, "fail create push socket")
	}

	push := &zmqPushConnection{
		logger: logger,
		soc:    sock,
		addr:   addr,
		token:  token,
		ready:  make(chan bool, 2),
	}

	online := make(chan bool)
	go runSocketMonitor(zmqCtx, monitorAddr, online, logger)
	go func() {
		for status := range online {
			push.setReady(status)
		}
		push.setReady(false)
	}()

	return push, nil
}
