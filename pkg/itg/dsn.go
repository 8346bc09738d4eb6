package itg

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

type configZmqGate struct {
	Token    string
	XSubAddr string
	XSubKey  string
	PushAddr string
	PushKey  string
}

// parseDsnZmq parse "zmq://host:port?xsub_port=N [zmq://...] token=.. xsub_key=.. push_key=..",
// first gateway serves trade domain, second (when present) serves quot domain
func parseDsnZmq(dsn string) ([]configZmqGate, error) {

	configs := strings.Fields(dsn)

	var token, xsubKey, pushKey string
	result := make([]configZmqGate, 0)

	for _, conf := range configs {
		if strings.HasPrefix(conf, "token=") {
			token = strings.TrimPrefix(conf, "token=")
		}

		if strings.HasPrefix(conf, "xsub_key=") {
			xsubKey = strings.TrimPrefix(conf, "xsub_key=")
		}

		if strings.HasPrefix(conf, "push_key=") {
			pushKey = strings.TrimPrefix(conf, "push_key=")
		}
	}

	for _, conf := range configs {
		if !strings.HasPrefix(conf, "zmq://") {
			continue
		}
		u, err := url.Parse(conf)
		if err != nil {
			return nil, err
		}
		if u.Hostname() == "" {
			return nil, errors.New("host is empty")
		}

		if u.Port() == "" {
			return nil, errors.New("port is empty")
		}

		pushPort, err := strconv.Atoi(u.Port())
		if err != nil {
			return nil, errors.WithMessage(err, "invalid push port value")
		}
		xsubPort := pushPort + 1

		if u.Query().Get("xsub_port") != "" {
			xsubPort, err = strconv.Atoi(u.Query().Get("xsub_port"))
			if err != nil {
				return nil, errors.WithMessage(err, "invalid xsub port value")
			}
		}

		result = append(result, configZmqGate{
			PushAddr: "tcp://" + u.Hostname() + ":" + strconv.Itoa(pushPort),
			XSubAddr: "tcp://" + u.Hostname() + ":" + strconv.Itoa(xsubPort),
			Token:    token,
			PushKey:  pushKey,
			XSubKey:  xsubKey,
		})
	}

	if len(result) == 0 {
		return nil, errors.New("empty config")
	}
	if len(result) > 2 {
		return nil, errors.New("too many gateways, expected trade and quot only")
	}

	return result, nil
}

func createZmqGate(logger *zap.Logger, cfg configZmqGate) (*zmqGate, error) {
	return buildZmqGate(
		func() (xsubConnecter, error) {
			conn, err := newXSubConnection(cfg.XSubAddr, cfg.XSubKey, cfg.Token, logger)
			if err != nil {
				return nil, err
			}
			return conn, nil
		},
		func() (pushConnecter, error) {
			conn, err := newPushConnection(cfg.PushAddr, cfg.PushKey, cfg.Token, logger)
			if err != nil {
				return nil, err
			}
			return conn, nil
		},
	)
}

// buildZmqGate open event socket then command socket, event socket is closed when command one fails
func buildZmqGate(newXSub func() (xsubConnecter, error), newPush func() (pushConnecter, error)) (*zmqGate, error) {
	xsub, err := newXSub()
	if err != nil {
		return nil, errors.WithMessage(err, "fail create xsub zmq connection")
	}
	push, err := newPush()
	if err != nil {
		_ = xsub.Close()
		return nil, errors.WithMessage(err, "fail create push zmq connection")
	}
	return &zmqGate{push: push, xsub: xsub}, nil
}

// openZmqGates create trade gate and optional quot gate, nothing stays open on error
func openZmqGates(cfg []configZmqGate, create func(configZmqGate) (*zmqGate, error)) (*zmqGate, *zmqGate, error) {
	trade, err := create(cfg[0])
	if err != nil {
		return nil, nil, errors.WithMessage(err, "fail create trade gate")
	}
	quot := trade
	if len(cfg) == 2 {
		quot, err = create(cfg[1])
		if err != nil {
			_ = trade.Close()
			return nil, nil, errors.WithMessage(err, "fail create quot gate")
		}
	}
	return trade, quot, nil
}

type configMockTransport struct {
	Ready    bool
	Fixtures bool
}

func parseDsnMock(dsn string) (*configMockTransport, error) {
	u, err := url.Parse(dsn)
	if err != nil {
		return nil, err
	}
	cfg := &configMockTransport{}

	if u.Query().Get("ready") == "true" {
		cfg.Ready = true
	}
	if u.Query().Get("fixtures") == "true" {
		cfg.Fixtures = true
	}

	return cfg, nil
}

// NewTransport create transport by dsn, "mock://?ready=true&fixtures=true" or "zmq://host:port ..."
func NewTransport(logger *zap.Logger, dsn string) (Transport, error) {

	if strings.HasPrefix(dsn, "mock://") {
		cfg, err := parseDsnMock(dsn)
		if err != nil {
			return nil, errors.WithMessage(err, "fail parse mock dsn")
		}
		transport := NewMockTransport(logger)
		transport.SetReady(cfg.Ready)
		if cfg.Fixtures {
			transport.SetupFixtures()
		}
		return transport, nil
	}

	if strings.HasPrefix(dsn, "zmq://") {
		cfg, err := parseDsnZmq(dsn)
		if err != nil {
			return nil, errors.WithMessage(err, "fail parse zmq dsn")
		}
		trade, quot, err := openZmqGates(cfg, func(gateCfg configZmqGate) (*zmqGate, error) {
			return createZmqGate(logger, gateCfg)
		})
		if err != nil {
			return nil, err
		}
		return startZmqTransport(logger, trade, quot), nil
	}

	return nil, errors.New("config not supported")
}

// New create api over transport built from dsn
func New(logger *zap.Logger, dsn string) (*TradeApi, error) {
	transport, err := NewTransport(logger, dsn)
	if err != nil {
		return nil, err
	}
	return NewTradeApi(logger, transport), nil
}
