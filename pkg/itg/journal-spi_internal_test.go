package itg

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"
	"gotest.tools/assert"
)

func openTestJournal(t *testing.T) *Journal {
	journal, err := OpenJournal(filepath.Join(t.TempDir(), "journal", "itg.db"))
	assert.NilError(t, err)
	t.Cleanup(func() {
		journal.Close()
	})
	return journal
}

func TestJournal_Orders(t *testing.T) {
	journal := openTestJournal(t)
	ctx := context.Background()

	order := OrderInfo{
		OrderID:   "1000002",
		Symbol:    "605199",
		Price:     10.5,
		Qty:       300,
		Side:      TradeModeBuy,
		Exchange:  MarketTypeSSE,
		Status:    OrderStatusConfirmed,
		OrderTime: "09:30:01.000",
		BrokerID:  "mock",
	}
	saved, err := journal.SaveOrder(ctx, &order)
	assert.NilError(t, err)
	assert.Check(t, saved)

	_, err = journal.SaveOrder(ctx, &OrderInfo{OrderID: "1000001", Status: OrderStatusPending})
	assert.NilError(t, err)

	stored, ok, err := journal.Order(ctx, "1000002")
	assert.NilError(t, err)
	assert.Check(t, ok)
	assert.DeepEqual(t, stored, order)

	cancelled := order
	cancelled.Status = OrderStatusCancelled
	cancelled.CancelledQty = 300
	saved, err = journal.SaveOrder(ctx, &cancelled)
	assert.NilError(t, err)
	assert.Check(t, saved)

	saved, err = journal.SaveOrder(ctx, &order)
	assert.NilError(t, err)
	assert.Check(t, !saved, "working report after final state")

	stored, _, err = journal.Order(ctx, "1000002")
	assert.NilError(t, err)
	assert.Equal(t, stored.Status, OrderStatusCancelled)
	assert.Equal(t, stored.CancelledQty, float64(300))

	orders, err := journal.Orders(ctx)
	assert.NilError(t, err)
	assert.Equal(t, len(orders), 2)
	assert.Equal(t, orders[0].OrderID, "1000001")

	_, ok, err = journal.Order(ctx, "404")
	assert.NilError(t, err)
	assert.Check(t, !ok)
}

func TestJournal_Trades(t *testing.T) {
	journal := openTestJournal(t)
	ctx := context.Background()

	trade := TradeInfo{OrderID: "1000002", DealID: "1", Timestamp: "09:30:02.500", Price: 10.5, Qty: 100, Symbol: "605199", Side: TradeModeBuy}
	assert.NilError(t, journal.SaveTrade(ctx, &trade))
	assert.NilError(t, journal.SaveTrade(ctx, &trade), "repeated deal ignored")
	assert.NilError(t, journal.SaveTrade(ctx, &TradeInfo{OrderID: "1000003", DealID: "2", Side: TradeModeSell}))

	trades, err := journal.Trades(ctx, "1000002")
	assert.NilError(t, err)
	assert.DeepEqual(t, trades, []TradeInfo{trade})

	trades, err = journal.Trades(ctx, "")
	assert.NilError(t, err)
	assert.Equal(t, len(trades), 2)
}

func TestJournalSpi(t *testing.T) {
	journal := openTestJournal(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	state := NewStateSpi()

	mock := NewMockTransport(zap.NewNop())
	mock.SetupFixtures()
	mock.SetReady(true)
	api := NewTradeApi(zap.NewNop(), mock)
	defer api.Close()
	assert.NilError(t, api.RegisterSpi(NewJournalSpi(zap.NewNop(), journal, state)))

	res := api.LoginTrade(ctx, ConnRequest{Transport: "tcp", Host: "127.0.0.1", Port: 8888},
		LoginRequest{UserID: FixtureTraderID, UserType: UserTypeTrader, PasswordHash: FixturePasswordHash})
	assert.Check(t, res.IsSuccess, res.Msg)

	assert.Equal(t, api.QueryOrder("o1"), ResultSuccess)
	_, err := state.WaitQuery(ctx, "o1")
	assert.NilError(t, err)
	assert.Equal(t, api.QueryTrade("t1"), ResultSuccess)
	_, err = state.WaitQuery(ctx, "t1")
	assert.NilError(t, err)

	order := NewLimitOrder("605199.SH", 10.5, 100, TradeModeBuy)
	assert.Equal(t, api.PlaceOrder(&order), ResultSuccess)
	_, err = state.WaitOrderStatus(ctx, order.OrderID, OrderStatus.IsCancellable)
	assert.NilError(t, err)
	assert.NilError(t, mock.Fill(order.OrderID, 10.4, 100))
	_, err = state.WaitOrderStatus(ctx, order.OrderID, OrderStatus.IsFinal)
	assert.NilError(t, err)

	orders, err := journal.Orders(ctx)
	assert.NilError(t, err)
	assert.Equal(t, len(orders), 5, "4 fixture orders and the placed one")

	stored, ok, err := journal.Order(ctx, order.OrderID)
	assert.NilError(t, err)
	assert.Check(t, ok)
	assert.Equal(t, stored.Status, OrderStatusAllFilled)
	assert.Equal(t, stored.FilledPrice, 10.4)

	trades, err := journal.Trades(ctx, "")
	assert.NilError(t, err)
	assert.Equal(t, len(trades), 2, "fixture trade and the fill")
}
