package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gitlab.heather.loc/helios/itgate/pkg/itg"
	"go.uber.org/zap"
)

func newLogger(level string) (*zap.Logger, error) {
	atom, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, err
	}
	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = atom
	return zapCfg.Build()
}

func main() {
	configPath := flag.String("config", "itg-demo.yaml", "path to yaml config")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if cfg.MetricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			logger.Info("itg-demo: metrics listening", zap.String("addr", cfg.MetricsAddr))
			if err := http.ListenAndServe(cfg.MetricsAddr, mux); err != nil {
				logger.Error("itg-demo: metrics server stopped", zap.Error(err))
			}
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, cfg); err != nil {
		logger.Fatal("itg-demo: failed", zap.Error(err))
	}
	logger.Info("itg-demo: done")
}

func run(ctx context.Context, logger *zap.Logger, cfg *config) error {
	api, err := itg.New(logger, cfg.Dsn)
	if err != nil {
		return errors.WithMessage(err, "fail create api")
	}

	state := itg.NewStateSpi()
	var spi itg.Spi = itg.NewLogSpi(logger, state)
	var closers []func()
	defer func() {
		if err := api.Close(); err != nil {
			logger.Warn("itg-demo: close api", zap.Error(err))
		}
		for _, closer := range closers {
			closer()
		}
	}()

	if cfg.Journal != nil {
		journal, err := itg.OpenJournal(cfg.Journal.Path)
		if err != nil {
			return err
		}
		closers = append(closers, func() {
			if err := journal.Close(); err != nil {
				logger.Warn("itg-demo: close journal", zap.Error(err))
			}
		})
		spi = itg.NewJournalSpi(logger, journal, spi)
	}
	if cfg.Kafka != nil {
		writer := itg.NewKafkaWriter(logger, cfg.Kafka.Brokers, cfg.Kafka.Topic)
		closers = append(closers, func() {
			if err := writer.Close(); err != nil {
				logger.Warn("itg-demo: close kafka writer", zap.Error(err))
			}
		})
		spi = itg.NewTickPublisherSpi(logger, writer, spi)
	}
	if cfg.Redis != nil {
		cache := itg.NewQuoteCacheSpi(logger, itg.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB), cfg.Redis.Host, spi)
		closers = append(closers, cache.Close)
		spi = cache
	}
	if err = api.RegisterSpi(spi); err != nil {
		return err
	}

	watcher := itg.NewQueryWatcher(api, cfg.Timeout, func(requestID string, kind itg.QueryKind) {
		logger.Warn("itg-demo: query gave no last page", zap.String("requestId", requestID), zap.String("kind", kind.String()))
	})
	defer watcher.Stop()

	readyCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	err = api.WaitReady(readyCtx)
	cancel()
	if err != nil {
		return errors.WithMessage(err, "transport not ready")
	}

	d := &demo{api: api, state: state, logger: logger, cfg: cfg}
	if err = d.login(ctx); err != nil {
		return err
	}
	if err = d.placeAndCancel(ctx); err != nil {
		return err
	}
	if err = d.queries(ctx); err != nil {
		return err
	}
	if cfg.Quot == nil {
		return nil
	}
	return d.marketData(ctx)
}

type demo struct {
	api    *itg.TradeApi
	state  *itg.StateSpi
	logger *zap.Logger
	cfg    *config
}

func (d *demo) login(ctx context.Context) error {
	req, _ := d.cfg.Trade.loginRequest()
	loginCtx, cancel := context.WithTimeout(ctx, d.cfg.Timeout)
	defer cancel()

	res := d.api.LoginTrade(loginCtx, d.cfg.Trade.Conn.request(), req)
	d.logger.Info("itg-demo: login trade", zap.Bool("success", res.IsSuccess), zap.String("msg", res.Msg))
	if !res.IsSuccess {
		return errors.New("trade login failed: " + res.Msg)
	}

	if d.cfg.Quot == nil {
		return nil
	}
	req, _ = d.cfg.Quot.loginRequest()
	res = d.api.LoginQuot(loginCtx, d.cfg.Quot.Conn.request(), req)
	d.logger.Info("itg-demo: login quot", zap.Bool("success", res.IsSuccess), zap.String("msg", res.Msg))
	if !res.IsSuccess {
		return errors.New("quot login failed: " + res.Msg)
	}
	return nil
}

func (d *demo) placeAndCancel(ctx context.Context) error {
	order, _ := d.cfg.Order.request()
	if code := d.api.PlaceOrder(&order); code != itg.ResultSuccess {
		return errors.WithMessage(code, "place order")
	}

	waitCtx, cancel := context.WithTimeout(ctx, d.cfg.Timeout)
	defer cancel()
	placed, err := d.state.WaitOrderStatus(waitCtx, order.OrderID, func(status itg.OrderStatus) bool {
		return status != itg.OrderStatusPending
	})
	if err != nil {
		return errors.WithMessage(err, "wait order report")
	}
	d.logger.Info("itg-demo: order placed", zap.String("orderId", placed.OrderID), zap.String("status", placed.Status.String()))
	if !placed.Status.IsCancellable() {
		return nil
	}

	if code := d.api.CancelOrder(order.OrderID); code != itg.ResultSuccess {
		return errors.WithMessage(code, "cancel order")
	}
	cancelled, err := d.state.WaitOrderStatus(waitCtx, order.OrderID, itg.OrderStatus.IsFinal)
	if err != nil {
		return errors.WithMessage(err, "wait cancel report")
	}
	d.logger.Info("itg-demo: order final", zap.String("orderId", cancelled.OrderID), zap.String("status", cancelled.Status.String()),
		zap.Float64("cancelledQty", cancelled.CancelledQty))
	return nil
}

// waitQuery issue query under fresh request id and wait its last page
func (d *demo) waitQuery(ctx context.Context, name string, send func(requestID string) itg.ResultCode) ([]interface{}, error) {
	requestID := itg.RequestIdGenerate()
	if code := send(requestID); code != itg.ResultSuccess {
		return nil, errors.WithMessage(code, "query "+name)
	}
	waitCtx, cancel := context.WithTimeout(ctx, d.cfg.Timeout)
	defer cancel()
	records, err := d.state.WaitQuery(waitCtx, requestID)
	if err != nil {
		return nil, errors.WithMessage(err, "wait query "+name)
	}
	d.logger.Info("itg-demo: query done", zap.String("query", name), zap.Int("records", len(records)))
	return records, nil
}

func (d *demo) queries(ctx context.Context) error {
	queries := []struct {
		name string
		send func(requestID string) itg.ResultCode
	}{
		{"asset", d.api.QueryAsset},
		{"position", d.api.QueryPosition},
		{"order", d.api.QueryOrder},
		{"trade", d.api.QueryTrade},
	}
	for _, q := range queries {
		if _, err := d.waitQuery(ctx, q.name, q.send); err != nil {
			return err
		}
	}
	return nil
}

func (d *demo) marketData(ctx context.Context) error {
	records, err := d.waitQuery(ctx, "static", d.api.QueryStaticDatasByID)
	if err != nil {
		return err
	}
	for _, record := range records {
		static := record.(itg.StaticData)
		d.logger.Debug("itg-demo: static", zap.String("symbol", static.StockCode),
			zap.Float64("up", static.PriceUpLimit), zap.Float64("down", static.PriceDownLimit))
	}

	if d.cfg.Subscribe.Symbol == "" {
		return nil
	}
	level, _ := itg.TickerLevelStrToType(d.cfg.Subscribe.Level)
	if code := d.api.SubscribeTicker(d.cfg.Subscribe.Symbol, level); code != itg.ResultSuccess {
		return errors.WithMessage(code, "subscribe")
	}

	select {
	case <-time.After(d.cfg.Watch):
	case <-ctx.Done():
	}
	deals, ticks := d.state.TickCounts(d.cfg.Subscribe.Symbol)
	quote, _ := d.state.Quote(d.cfg.Subscribe.Symbol)
	d.logger.Info("itg-demo: market data", zap.String("symbol", d.cfg.Subscribe.Symbol),
		zap.Float64("mid", quote.MidPrice()), zap.Int("deals", deals), zap.Int("orders", ticks))

	if code := d.api.UnsubscribeTicker(d.cfg.Subscribe.Symbol); code != itg.ResultSuccess {
		return errors.WithMessage(code, "unsubscribe")
	}
	return nil
}
