package itg

import (
	"context"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

var publishCounters = prometheus.NewCounterVec(prometheus.CounterOpts{
	Name: "itg_tick_publish_count",
	Help: "itg market data republished to kafka by result",
}, []string{"kind", "result"})

func init() {
	prometheus.MustRegister(publishCounters)
}

// messageWriter is the part of kafka writer used by the publisher, *kafka.Writer fits it
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// NewKafkaWriter create async batching writer for market data topic
func NewKafkaWriter(logger *zap.Logger, brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
		BatchSize:              1000,
		BatchTimeout:           10 * time.Millisecond,
		Async:                  true,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				publishCounters.WithLabelValues("batch", "error").Add(float64(len(messages)))
				logger.Error("tick-publisher: fail deliver batch", zap.Int("messages", len(messages)), zap.Error(err))
			}
		},
	}
}

// TickPublisherSpi forward callbacks to next sink and republish quotation
// snapshots, deals and order ticks keyed by symbol, in gateway envelope format
type TickPublisherSpi struct {
	Spi
	logger *zap.Logger
	writer messageWriter
}

// NewTickPublisherSpi wrap next (not nil)
func NewTickPublisherSpi(logger *zap.Logger, writer messageWriter, next Spi) *TickPublisherSpi {
	return &TickPublisherSpi{Spi: next, logger: logger, writer: writer}
}

func (p *TickPublisherSpi) publish(kind, symbol string, envelope interface{}) {
	value, err := jsoniter.Marshal(envelope)
	if err != nil {
		publishCounters.WithLabelValues(kind, "error").Inc()
		p.logger.Error("tick-publisher: fail marshal", zap.String("kind", kind), zap.String("symbol", symbol), zap.Error(err))
		return
	}
	err = p.writer.WriteMessages(context.Background(), kafka.Message{Key: []byte(symbol), Value: value})
	if err != nil {
		publishCounters.WithLabelValues(kind, "error").Inc()
		p.logger.Error("tick-publisher: fail write", zap.String("kind", kind), zap.String("symbol", symbol), zap.Error(err))
		return
	}
	publishCounters.WithLabelValues(kind, "ok").Inc()
}

func (p *TickPublisherSpi) OnQuotData(data *QuotationData) {
	p.publish("quotData", data.StockCode, messageQuotData{Data: *data})
	p.Spi.OnQuotData(data)
}

func (p *TickPublisherSpi) OnQuotDeal(deal *QuotationDeal) {
	p.publish("quotDeal", deal.StockCode, messageQuotDeal{Data: *deal})
	p.Spi.OnQuotDeal(deal)
}

func (p *TickPublisherSpi) OnQuotOrder(order *QuotationOrder) {
	p.publish("quotOrder", order.StockCode, messageQuotOrder{Data: *order})
	p.Spi.OnQuotOrder(order)
}
