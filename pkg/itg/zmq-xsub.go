package itg

import (
	"bytes"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/pebbe/zmq4"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

var messageCounters = prometheus.NewCounterVec(prometheus.CounterOpts{
	Name: "itg_zmq_message_count",
	Help: "zmq income message counters",
}, []string{"gate", "type"})

var parseErrorCounters = prometheus.NewCounterVec(prometheus.CounterOpts{
	Name: "itg_zmq_parse_error_count",
	Help: "zmq income messages failed to parse",
}, []string{"gate", "type"})

func init() {
	prometheus.MustRegister(messageCounters, parseErrorCounters)
}

const xsubPollInterval = 250 * time.Millisecond

var heartbeatTopic = []byte(".HEARTBEAT")

// zmqXsubConnection receive gateway events by topics
type zmqXsubConnection struct {
	soc     *zmq4.Socket
	addr    string
	token   string
	reports chan interface{}
	mx      sync.Mutex
	logger  *zap.Logger
	ready   chan bool
	isReady uint32
	closed  uint32
	stopped chan struct{}
}

func (c *zmqXsubConnection) Reports() chan interface{} {
	return c.reports
}

func (c *zmqXsubConnection) Ready() chan bool {
	return c.ready
}

// GetAddr get connection endpoint address
func (c *zmqXsubConnection) GetAddr() string {
	return c.addr
}

// IsReady return connection ready state.
// If connection established and heartbeat is received, then true
func (c *zmqXsubConnection) IsReady() bool {
	return atomic.LoadUint32(&c.isReady) == 1
}

// Close stop reader, the socket is closed by the reader goroutine
func (c *zmqXsubConnection) Close() error {
	if !atomic.CompareAndSwapUint32(&c.closed, 0, 1) {
		return ErrClosed
	}
	<-c.stopped
	return nil
}

func newXSubSocket(zmqCtx *zmq4.Context, monitorAddr, addr, publicKey string) (*zmq4.Socket, error) {
	sock, err := zmqCtx.NewSocket(zmq4.XSUB)
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
	if err = sock.SetConnectTimeout(5 * time.Second); err != nil {
		return nil, errors.WithMessage(err, "fail set connect timeout")
	}
	if err = sock.SetHeartbeatIvl(10 * time.Second); err != nil {
		return nil, errors.WithMessage(err, "fail set heartbeat interval")
	}
	if err = sock.SetHeartbeatTimeout(20 * time.Second); err != nil {
		return nil, errors.WithMessage(err, "fail set heartbeat timeout")
	}
	if err = sock.SetSndhwm(100000); err != nil {
		return nil, errors.WithMessage(err, "fail set send buffer messages count")
	}
	if err = sock.SetLinger(0); err != nil {
		return nil, errors.WithMessage(err, "fail set linger timeout")
	}
	if err = setClientCurve(sock, publicKey); err != nil {
		return nil, err
	}

	if err = sock.Connect(addr); err != nil {
		return nil, errors.WithMessage(err, "fail connect "+addr)
	}

	return sock, nil
}

// newXSubConnection create zmq socket with monitoring,
// subscribe heartbeat and run receive handler
func newXSubConnection(addr, publicKey, token string, logger *zap.Logger) (*zmqXsubConnection, error) {
	zmqCtx, err := zmq4.NewContext()
	if err != nil {
		return nil, errors.WithMessage(err, "fail create zmq context")
	}
	monitorAddr := generateMonitorAddr()

	sock, err := newXSubSocket(zmqCtx, monitorAddr, addr, publicKey)
	if err != nil {
		return nil, errors.WithMessage(err, "fail create socket")
	}

	_, err = sock.SendBytes(append([]byte{1}, heartbeatTopic...), zmq4.DONTWAIT)
	if err != nil {
		_ = sock.Close()
		return nil, errors.WithMessage(err, "fail subscribe heartbeat")
	}

	xsub := &zmqXsubConnection{
		soc:     sock,
		addr:    addr,
		logger:  logger,
		ready:   make(chan bool, 2),
		reports: make(chan interface{}, 1000),
		token:   token,
		stopped: make(chan struct{}),
	}

	online := make(chan bool)
	go runSocketMonitor(zmqCtx, monitorAddr, online, logger)
	go xsub.handleMonitor(online)

	go xsub.readMessages()

	return xsub, nil
}

func (c *zmqXsubConnection) setReady(val bool) {
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
			c.logger.Error("zmq: discarding xsub ready state due to insufficient chan capacity", zap.String("addr", c.addr))
		}
	}
}

// handleMonitor drop ready state on disconnect, heartbeat restores it
func (c *zmqXsubConnection) handleMonitor(online chan bool) {
	for status := range online {
		if !status {
			c.setReady(false)
		}
	}
}

func (c *zmqXsubConnection) sendTopic(flag byte, topic string) error {
	c.mx.Lock()
	defer c.mx.Unlock()
	if atomic.LoadUint32(&c.closed) == 1 {
		return ErrClosed
	}
	_, err := c.soc.SendBytes([]byte(string(flag)+topic+"."+c.token), zmq4.DONTWAIT)
	return err
}

// Subscribe allow receive events published to topic
func (c *zmqXsubConnection) Subscribe(topic string) error {
	c.logger.Info("zmq: subscribe", zap.String("addr", c.addr), zap.String("topic", topic))
	err := c.sendTopic(1, topic)
	if err != nil {
		c.logger.Error("zmq: fail send subscription payload", zap.Error(err), zap.String("topic", topic))
	}
	return err
}

// UnSubscribe stop receive events of topic
func (c *zmqXsubConnection) UnSubscribe(topic string) error {
	c.logger.Info("zmq: unsubscribe", zap.String("addr", c.addr), zap.String("topic", topic))
	err := c.sendTopic(0, topic)
	if err != nil {
		c.logger.Error("zmq: fail send unsubscription payload", zap.Error(err), zap.String("topic", topic))
	}
	return err
}

func (c *zmqXsubConnection) shutdown() {
	c.mx.Lock()
	if err := c.soc.Close(); err != nil {
		c.logger.Error("zmq: fail close xsub socket", zap.Error(err), zap.String("addr", c.addr))
	}
	c.mx.Unlock()
	c.setReady(false)
	close(c.reports)
	close(c.stopped)
}

func (c *zmqXsubConnection) readMessages() {
	defer c.shutdown()

	poller := zmq4.NewPoller()
	poller.Add(c.soc, zmq4.POLLIN)

	for atomic.LoadUint32(&c.closed) == 0 {
		c.mx.Lock()
		polled, err := poller.Poll(xsubPollInterval)
		if err == nil && len(polled) == 0 {
			c.mx.Unlock()
			continue
		}
		var msg []byte
		if err == nil {
			msg, err = c.soc.RecvBytes(zmq4.DONTWAIT)
		}
		c.mx.Unlock()

		if err != nil {
			if zmq4.AsErrno(err) == zmq4.Errno(syscall.EAGAIN) {
				continue
			}
			c.logger.Error("zmq: receive data error", zap.Error(err), zap.String("addr", c.addr))
			return
		}
		c.handleMessage(msg)
	}
}

func (c *zmqXsubConnection) handleMessage(msg []byte) {
	c.setReady(true)

	if bytes.HasPrefix(msg, heartbeatTopic) {
		messageCounters.WithLabelValues(c.addr, "heartbeat").Inc()
		c.logger.Debug("zmq: heartbeat", zap.String("addr", c.addr))
		return
	}

	_, body, err := splitFrame(msg)
	if err != nil {
		parseErrorCounters.WithLabelValues(c.addr, "frame").Inc()
		c.logger.Error("zmq: income < "+string(msg), zap.Error(err), zap.String("addr", c.addr))
		return
	}

	event, kind, err := decodeMessage(body)
	messageCounters.WithLabelValues(c.addr, kind).Inc()
	if err != nil {
		parseErrorCounters.WithLabelValues(c.addr, kind).Inc()
		c.logger.Error("zmq: parse fail "+kind, zap.Error(err), zap.ByteString("msg", body), zap.String("addr", c.addr))
		return
	}
	c.reports <- event
}
