package itg_test

import (
	"context"
	"testing"
	"time"

	"gitlab.heather.loc/helios/itgate/pkg/itg"
	"gotest.tools/assert"
)

func TestStateSpi_Orders(t *testing.T) {
	state := itg.NewStateSpi()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	done := make(chan itg.OrderInfo)
	go func() {
		order, err := state.WaitOrderStatus(ctx, "1001", itg.OrderStatus.IsFinal)
		assert.Check(t, err)
		done <- order
	}()

	state.OnOrderReport(&itg.OrderInfo{OrderID: "1001", Status: itg.OrderStatusConfirmed})
	state.OnOrderReport(&itg.OrderInfo{OrderID: "1002", Status: itg.OrderStatusAck})
	assert.DeepEqual(t, state.OpenOrders(), []itg.OrderInfo{
		{OrderID: "1001", Status: itg.OrderStatusConfirmed},
		{OrderID: "1002", Status: itg.OrderStatusAck},
	})

	state.OnOrderReport(&itg.OrderInfo{OrderID: "1001", Status: itg.OrderStatusCancelled})
	order := <-done
	assert.Equal(t, order.Status, itg.OrderStatusCancelled)
	assert.Equal(t, len(state.OpenOrders()), 1)

	// query snapshot does not override pushed state
	state.OnQueryOrder(&itg.OrderInfo{OrderID: "1001", Status: itg.OrderStatusConfirmed}, "q1", true)
	known, ok := state.Order("1001")
	assert.Check(t, ok)
	assert.Equal(t, known.Status, itg.OrderStatusCancelled)

	state.OnTradeReport(&itg.TradeInfo{OrderID: "1002", DealID: "1"})
	assert.Equal(t, len(state.Trades()), 1)

	shortCtx, shortCancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer shortCancel()
	_, err := state.WaitOrderStatus(shortCtx, "404", itg.OrderStatus.IsFinal)
	assert.Equal(t, err, context.DeadlineExceeded)
}

func TestStateSpi_WaitQuery(t *testing.T) {
	state := itg.NewStateSpi()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	result := make(chan []interface{})
	go func() {
		records, err := state.WaitQuery(ctx, "p1")
		assert.Check(t, err)
		result <- records
	}()

	state.OnQueryPosition(&itg.PositionInfo{Symbol: "605199", AvailVolume: 800}, "p1", false)
	state.OnQueryAsset(nil, "a1", true)
	state.OnQueryPosition(&itg.PositionInfo{Symbol: "000001", AvailVolume: 500}, "p1", true)

	records := <-result
	assert.DeepEqual(t, records, []interface{}{
		itg.PositionInfo{Symbol: "605199", AvailVolume: 800},
		itg.PositionInfo{Symbol: "000001", AvailVolume: 500},
	})
	position, ok := state.Position("000001")
	assert.Check(t, ok)
	assert.Equal(t, position.AvailVolume, float64(500))

	empty, err := state.WaitQuery(ctx, "a1")
	assert.NilError(t, err)
	assert.Check(t, empty == nil, "empty result")
	_, ok = state.Asset()
	assert.Check(t, !ok)

	shortCtx, shortCancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer shortCancel()
	_, err = state.WaitQuery(shortCtx, "a1")
	assert.Equal(t, err, context.DeadlineExceeded, "result forgotten once returned")
}

func TestStateSpi_Quotation(t *testing.T) {
	state := itg.NewStateSpi()

	state.OnQuotData(&itg.QuotationData{StockCode: "605199", LastPrice: 10.4})
	state.OnQuotDeal(&itg.QuotationDeal{StockCode: "605199"})
	state.OnQuotDeal(&itg.QuotationDeal{StockCode: "605199"})
	state.OnQuotOrder(&itg.QuotationOrder{StockCode: "605199"})
	state.OnQuotStatic(&itg.StaticData{StockCode: "605199", PriceUpLimit: 11.55}, "s1", true)
	state.OnQueryAsset(&itg.AssetInfo{TotalAmount: 120000}, "a1", true)
	state.OnQueryTrade(nil, "t1", true)

	quote, ok := state.Quote("605199")
	assert.Check(t, ok)
	assert.Equal(t, quote.MidPrice(), 10.4)

	deals, orders := state.TickCounts("605199")
	assert.Equal(t, deals, 2)
	assert.Equal(t, orders, 1)

	static, ok := state.Static("605199")
	assert.Check(t, ok)
	assert.Check(t, !static.InPriceLimits(12))

	asset, ok := state.Asset()
	assert.Check(t, ok)
	assert.Equal(t, asset.TotalAmount, float64(120000))

	_, ok = state.Quote("000001")
	assert.Check(t, !ok)
}
