package itg

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

var journalWriteCounters = prometheus.NewCounterVec(prometheus.CounterOpts{
	Name: "itg_journal_write_count",
	Help: "itg order journal writes by result",
}, []string{"kind", "result"})

func init() {
	prometheus.MustRegister(journalWriteCounters)
}

const journalWriteTimeout = time.Second

// Journal is a sqlite record of orders and executions of the day.
// Orders keep their latest state, a final order is never overwritten by a working one.
type Journal struct {
	db *sql.DB
}

// OpenJournal create or open journal database file
func OpenJournal(path string) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, errors.WithMessage(err, "fail create journal directory")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.WithMessage(err, "fail open journal")
	}
	// sqlite allows one writer
	db.SetMaxOpenConns(1)

	journal := &Journal{db: db}
	if err = journal.migrate(); err != nil {
		db.Close()
		return nil, errors.WithMessage(err, "fail migrate journal")
	}
	return journal, nil
}

func (j *Journal) migrate() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS orders (
			order_id TEXT PRIMARY KEY,
			symbol TEXT NOT NULL,
			side INTEGER NOT NULL,
			exchange INTEGER NOT NULL,
			price REAL NOT NULL,
			qty REAL NOT NULL,
			filled_price REAL NOT NULL,
			filled_qty REAL NOT NULL,
			cancelled_qty REAL NOT NULL,
			status INTEGER NOT NULL,
			final INTEGER NOT NULL,
			msg TEXT NOT NULL,
			order_time TEXT NOT NULL,
			broker_id TEXT NOT NULL,
			updated_unix_millis INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS trades (
			order_id TEXT NOT NULL,
			deal_id TEXT NOT NULL,
			symbol TEXT NOT NULL,
			side INTEGER NOT NULL,
			price REAL NOT NULL,
			qty REAL NOT NULL,
			trade_time TEXT NOT NULL,
			PRIMARY KEY (order_id, deal_id)
		)`,
	}
	for _, query := range queries {
		if _, err := j.db.Exec(query); err != nil {
			return err
		}
	}
	return nil
}

// SaveOrder upsert order state, returns false when a final order kept its state
func (j *Journal) SaveOrder(ctx context.Context, order *OrderInfo) (bool, error) {
	var final int
	if order.Status.IsFinal() {
		final = 1
	}
	res, err := j.db.ExecContext(ctx, `INSERT INTO orders (order_id, symbol, side, exchange, price, qty,
			filled_price, filled_qty, cancelled_qty, status, final, msg, order_time, broker_id, updated_unix_millis)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(order_id) DO UPDATE SET
			symbol = excluded.symbol, side = excluded.side, exchange = excluded.exchange,
			price = excluded.price, qty = excluded.qty, filled_price = excluded.filled_price,
			filled_qty = excluded.filled_qty, cancelled_qty = excluded.cancelled_qty,
			status = excluded.status, final = excluded.final, msg = excluded.msg,
			order_time = excluded.order_time, broker_id = excluded.broker_id,
			updated_unix_millis = excluded.updated_unix_millis
		WHERE orders.final = 0 OR excluded.final = 1`,
		order.OrderID, order.Symbol, int(order.Side), int(order.Exchange), order.Price, order.Qty,
		order.FilledPrice, order.FilledQty, order.CancelledQty, int(order.Status), final, order.Msg,
		order.OrderTime, order.BrokerID, time.Now().UnixMilli())
	if err != nil {
		return false, errors.WithMessage(err, "fail save order "+order.OrderID)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, errors.WithMessage(err, "fail save order "+order.OrderID)
	}
	return affected > 0, nil
}

// SaveTrade store execution once, repeated deal ids are ignored
func (j *Journal) SaveTrade(ctx context.Context, trade *TradeInfo) error {
	_, err := j.db.ExecContext(ctx, `INSERT OR IGNORE INTO trades (order_id, deal_id, symbol, side, price, qty, trade_time)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		trade.OrderID, trade.DealID, trade.Symbol, int(trade.Side), trade.Price, trade.Qty, trade.Timestamp)
	return errors.WithMessage(err, "fail save trade "+trade.DealID)
}

const journalOrderColumns = `order_id, symbol, side, exchange, price, qty, filled_price, filled_qty,
	cancelled_qty, status, msg, order_time, broker_id`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanOrder(row rowScanner) (OrderInfo, error) {
	var order OrderInfo
	var side, exchange, status int
	err := row.Scan(&order.OrderID, &order.Symbol, &side, &exchange, &order.Price, &order.Qty,
		&order.FilledPrice, &order.FilledQty, &order.CancelledQty, &status, &order.Msg,
		&order.OrderTime, &order.BrokerID)
	order.Side = TradeMode(side)
	order.Exchange = MarketType(exchange)
	order.Status = OrderStatus(status)
	return order, err
}

// Order return stored order, ok false when unknown
func (j *Journal) Order(ctx context.Context, orderID string) (OrderInfo, bool, error) {
	row := j.db.QueryRowContext(ctx, "SELECT "+journalOrderColumns+" FROM orders WHERE order_id = ?", orderID)
	order, err := scanOrder(row)
	if err == sql.ErrNoRows {
		return OrderInfo{}, false, nil
	}
	if err != nil {
		return OrderInfo{}, false, errors.WithMessage(err, "fail read order "+orderID)
	}
	return order, true, nil
}

// Orders return stored orders sorted by order id
func (j *Journal) Orders(ctx context.Context) ([]OrderInfo, error) {
	rows, err := j.db.QueryContext(ctx, "SELECT "+journalOrderColumns+" FROM orders ORDER BY order_id")
	if err != nil {
		return nil, errors.WithMessage(err, "fail read orders")
	}
	defer rows.Close()

	result := make([]OrderInfo, 0)
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, errors.WithMessage(err, "fail scan order")
		}
		result = append(result, order)
	}
	return result, rows.Err()
}

// Trades return executions of order, all executions for empty order id
func (j *Journal) Trades(ctx context.Context, orderID string) ([]TradeInfo, error) {
	rows, err := j.db.QueryContext(ctx, `SELECT order_id, deal_id, symbol, side, price, qty, trade_time FROM trades
		WHERE ? = '' OR order_id = ? ORDER BY order_id, deal_id`, orderID, orderID)
	if err != nil {
		return nil, errors.WithMessage(err, "fail read trades")
	}
	defer rows.Close()

	result := make([]TradeInfo, 0)
	for rows.Next() {
		var trade TradeInfo
		var side int
		if err := rows.Scan(&trade.OrderID, &trade.DealID, &trade.Symbol, &side, &trade.Price, &trade.Qty, &trade.Timestamp); err != nil {
			return nil, errors.WithMessage(err, "fail scan trade")
		}
		trade.Side = TradeMode(side)
		result = append(result, trade)
	}
	return result, rows.Err()
}

func (j *Journal) Close() error {
	return j.db.Close()
}

// JournalSpi forward callbacks to next sink and record order reports, trade
// reports and query snapshots of orders and trades into the journal
type JournalSpi struct {
	Spi
	logger  *zap.Logger
	journal *Journal
}

// NewJournalSpi wrap next (not nil)
func NewJournalSpi(logger *zap.Logger, journal *Journal, next Spi) *JournalSpi {
	return &JournalSpi{Spi: next, logger: logger, journal: journal}
}

func (s *JournalSpi) saveOrder(kind string, order *OrderInfo) {
	ctx, cancel := context.WithTimeout(context.Background(), journalWriteTimeout)
	defer cancel()
	saved, err := s.journal.SaveOrder(ctx, order)
	switch {
	case err != nil:
		journalWriteCounters.WithLabelValues(kind, "error").Inc()
		s.logger.Error("journal: fail save order", zap.String("orderId", order.OrderID), zap.Error(err))
	case !saved:
		journalWriteCounters.WithLabelValues(kind, "skipped").Inc()
		s.logger.Warn("journal: working report after final state", zap.String("orderId", order.OrderID),
			zap.String("status", order.Status.String()))
	default:
		journalWriteCounters.WithLabelValues(kind, "ok").Inc()
	}
}

func (s *JournalSpi) saveTrade(kind string, trade *TradeInfo) {
	ctx, cancel := context.WithTimeout(context.Background(), journalWriteTimeout)
	defer cancel()
	if err := s.journal.SaveTrade(ctx, trade); err != nil {
		journalWriteCounters.WithLabelValues(kind, "error").Inc()
		s.logger.Error("journal: fail save trade", zap.String("dealId", trade.DealID), zap.Error(err))
		return
	}
	journalWriteCounters.WithLabelValues(kind, "ok").Inc()
}

func (s *JournalSpi) OnOrderReport(order *OrderInfo) {
	s.saveOrder("order", order)
	s.Spi.OnOrderReport(order)
}

func (s *JournalSpi) OnTradeReport(trade *TradeInfo) {
	s.saveTrade("trade", trade)
	s.Spi.OnTradeReport(trade)
}

func (s *JournalSpi) OnQueryOrder(order *OrderInfo, requestID string, isLast bool) {
	if order != nil {
		s.saveOrder("queryOrder", order)
	}
	s.Spi.OnQueryOrder(order, requestID, isLast)
}

func (s *JournalSpi) OnQueryTrade(trade *TradeInfo, requestID string, isLast bool) {
	if trade != nil {
		s.saveTrade("queryTrade", trade)
	}
	s.Spi.OnQueryTrade(trade, requestID, isLast)
}
