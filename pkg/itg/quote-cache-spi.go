package itg

import (
	"context"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var cacheWriteCounters = prometheus.NewCounterVec(prometheus.CounterOpts{
	Name: "itg_quote_cache_write_count",
	Help: "itg quote cache writes by result",
}, []string{"kind", "result"})

func init() {
	prometheus.MustRegister(cacheWriteCounters)
}

// QuoteCacheExpiration keep snapshot for one trading day
const QuoteCacheExpiration = 24 * time.Hour

const quoteCacheQueueSize = 10000

// quoteStore is the part of redis client used by the cache, *redis.Client fits it
type quoteStore interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
}

func tickKey(host, symbol string) string {
	return "tick|||" + host + "|||" + symbol
}

func staticKey(host, symbol string) string {
	return "static|||" + host + "|||" + symbol
}

type cacheItem struct {
	kind  string
	key   string
	value []byte
}

// QuoteCacheSpi forward callbacks to next sink and store latest quotation and
// static data snapshots in redis. Writes run on own goroutine, when the queue
// is full snapshot is dropped.
type QuoteCacheSpi struct {
	Spi
	logger *zap.Logger
	store  quoteStore
	host   string
	queue  chan cacheItem
	wg     sync.WaitGroup
	once   sync.Once
}

// NewRedisClient create client for quote cache the way the demo config describes it
func NewRedisClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

// NewQuoteCacheSpi wrap next (not nil), host is the quotation server part of cache keys
func NewQuoteCacheSpi(logger *zap.Logger, store quoteStore, host string, next Spi) *QuoteCacheSpi {
	c := &QuoteCacheSpi{
		Spi:    next,
		logger: logger,
		store:  store,
		host:   host,
		queue:  make(chan cacheItem, quoteCacheQueueSize),
	}
	c.wg.Add(1)
	go c.writeLoop()
	return c
}

func (c *QuoteCacheSpi) writeLoop() {
	defer c.wg.Done()
	for item := range c.queue {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		err := c.store.Set(ctx, item.key, item.value, QuoteCacheExpiration).Err()
		cancel()
		if err != nil {
			cacheWriteCounters.WithLabelValues(item.kind, "error").Inc()
			c.logger.Error("quote-cache: fail write", zap.String("key", item.key), zap.Error(err))
			continue
		}
		cacheWriteCounters.WithLabelValues(item.kind, "ok").Inc()
	}
}

func (c *QuoteCacheSpi) enqueue(kind, key string, value interface{}) {
	data, err := jsoniter.Marshal(value)
	if err != nil {
		c.logger.Error("quote-cache: fail marshal", zap.String("key", key), zap.Error(err))
		return
	}
	select {
	case c.queue <- cacheItem{kind: kind, key: key, value: data}:
	default:
		cacheWriteCounters.WithLabelValues(kind, "dropped").Inc()
	}
}

func (c *QuoteCacheSpi) OnQuotData(data *QuotationData) {
	c.enqueue("tick", tickKey(c.host, data.StockCode), data)
	c.Spi.OnQuotData(data)
}

func (c *QuoteCacheSpi) OnQuotStatic(data *StaticData, requestID string, isLast bool) {
	if data != nil {
		c.enqueue("static", staticKey(c.host, data.StockCode), data)
	}
	c.Spi.OnQuotStatic(data, requestID, isLast)
}

// CachedQuote read last stored quotation of symbol
func (c *QuoteCacheSpi) CachedQuote(ctx context.Context, symbol string) (*QuotationData, error) {
	var data QuotationData
	if err := c.get(ctx, tickKey(c.host, symbol), &data); err != nil {
		return nil, err
	}
	return &data, nil
}

// CachedStatic read last stored static data of symbol
func (c *QuoteCacheSpi) CachedStatic(ctx context.Context, symbol string) (*StaticData, error) {
	var data StaticData
	if err := c.get(ctx, staticKey(c.host, symbol), &data); err != nil {
		return nil, err
	}
	return &data, nil
}

func (c *QuoteCacheSpi) get(ctx context.Context, key string, v interface{}) error {
	raw, err := c.store.Get(ctx, key).Bytes()
	if err != nil {
		return errors.WithMessage(err, "fail get "+key)
	}
	return errors.WithMessage(jsoniter.Unmarshal(raw, v), "fail parse "+key)
}

// Close flush queued writes, call it after the api is closed
func (c *QuoteCacheSpi) Close() {
	c.once.Do(func() {
		close(c.queue)
	})
	c.wg.Wait()
}
