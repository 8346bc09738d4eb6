package itg

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gotest.tools/assert"
)

// recordSpi wrap StateSpi, count last pages per request and detect overlapping callbacks
type recordSpi struct {
	*StateSpi
	inFlight   int32
	overlapped int32
	mx         sync.Mutex
	lasts      map[string]int
	pages      map[string]int
	nilPages   map[string]int
}

func newRecordSpi() *recordSpi {
	return &recordSpi{
		StateSpi: NewStateSpi(),
		lasts:    make(map[string]int),
		pages:    make(map[string]int),
		nilPages: make(map[string]int),
	}
}

func (r *recordSpi) enter() func() {
	if atomic.AddInt32(&r.inFlight, 1) > 1 {
		atomic.StoreInt32(&r.overlapped, 1)
	}
	return func() {
		atomic.AddInt32(&r.inFlight, -1)
	}
}

func (r *recordSpi) record(requestID string, isLast bool, isNil bool) {
	r.mx.Lock()
	defer r.mx.Unlock()
	r.pages[requestID]++
	if isLast {
		r.lasts[requestID]++
	}
	if isNil {
		r.nilPages[requestID]++
	}
}

func (r *recordSpi) counts(requestID string) (pages, lasts, nils int) {
	r.mx.Lock()
	defer r.mx.Unlock()
	return r.pages[requestID], r.lasts[requestID], r.nilPages[requestID]
}

func (r *recordSpi) OnOrderReport(order *OrderInfo) {
	defer r.enter()()
	r.StateSpi.OnOrderReport(order)
}

func (r *recordSpi) OnTradeReport(trade *TradeInfo) {
	defer r.enter()()
	r.StateSpi.OnTradeReport(trade)
}

func (r *recordSpi) OnQueryOrder(order *OrderInfo, requestID string, isLast bool) {
	defer r.enter()()
	r.record(requestID, isLast, order == nil)
	r.StateSpi.OnQueryOrder(order, requestID, isLast)
}

func (r *recordSpi) OnQueryTrade(trade *TradeInfo, requestID string, isLast bool) {
	defer r.enter()()
	r.record(requestID, isLast, trade == nil)
	r.StateSpi.OnQueryTrade(trade, requestID, isLast)
}

func (r *recordSpi) OnQueryPosition(position *PositionInfo, requestID string, isLast bool) {
	defer r.enter()()
	r.record(requestID, isLast, position == nil)
	r.StateSpi.OnQueryPosition(position, requestID, isLast)
}

func (r *recordSpi) OnQueryAsset(asset *AssetInfo, requestID string, isLast bool) {
	defer r.enter()()
	r.record(requestID, isLast, asset == nil)
	r.StateSpi.OnQueryAsset(asset, requestID, isLast)
}

func (r *recordSpi) OnQuotData(data *QuotationData) {
	defer r.enter()()
	r.StateSpi.OnQuotData(data)
}

func (r *recordSpi) OnQuotDeal(deal *QuotationDeal) {
	defer r.enter()()
	r.StateSpi.OnQuotDeal(deal)
}

func (r *recordSpi) OnQuotOrder(order *QuotationOrder) {
	defer r.enter()()
	r.StateSpi.OnQuotOrder(order)
}

func (r *recordSpi) OnQuotStatic(data *StaticData, requestID string, isLast bool) {
	defer r.enter()()
	r.record(requestID, isLast, data == nil)
	r.StateSpi.OnQuotStatic(data, requestID, isLast)
}

var testConn = ConnRequest{Transport: "tcp", Host: "127.0.0.1", Port: 8888}

func testLogin(userID string, userType UserType) LoginRequest {
	return LoginRequest{UserID: userID, UserType: userType, PasswordHash: FixturePasswordHash}
}

func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func createTestApi(t *testing.T) (*TradeApi, *MockTransport, *recordSpi) {
	logger, _ := zap.NewDevelopment()
	transport := NewMockTransport(logger)
	transport.SetReady(true)
	transport.SetupFixtures()
	api := NewTradeApi(logger, transport)
	spi := newRecordSpi()
	assert.NilError(t, api.RegisterSpi(spi))
	t.Cleanup(func() {
		_ = api.Close()
	})
	return api, transport, spi
}

func createLoggedApi(t *testing.T) (*TradeApi, *MockTransport, *recordSpi) {
	api, transport, spi := createTestApi(t)
	res := api.LoginTrade(testContext(t), testConn, testLogin(FixtureTraderID, UserTypeTrader))
	assert.Check(t, res.IsSuccess, res.Msg)
	res = api.LoginQuot(testContext(t), testConn, testLogin(FixtureQuotationID, UserTypeQuotation))
	assert.Check(t, res.IsSuccess, res.Msg)
	return api, transport, spi
}

func TestTradeApi_RegisterSpi(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	transport := NewMockTransport(logger)
	transport.SetReady(true)
	api := NewTradeApi(logger, transport)
	defer api.Close()

	t.Run("commands without spi", func(t *testing.T) {
		res := api.LoginTrade(testContext(t), testConn, testLogin("1", UserTypeTrader))
		assert.Check(t, !res.IsSuccess)
		assert.Check(t, !api.IsActive(SessionTrade))
		assert.Equal(t, api.PlaceOrder(&LimitOrderRequest{}), ResultErrNoSpi)
		assert.Equal(t, api.QueryAsset("q1"), ResultErrNoSpi)
	})

	t.Run("nil spi", func(t *testing.T) {
		assert.Equal(t, api.RegisterSpi(nil), ErrSpiNil)
	})

	t.Run("register once", func(t *testing.T) {
		first := NewStateSpi()
		assert.NilError(t, api.RegisterSpi(first))
		assert.Equal(t, api.RegisterSpi(NewStateSpi()), ErrSpiRegistered)
		assert.Equal(t, api.getSpi(), Spi(first))
	})
}

func TestTradeApi_Login(t *testing.T) {
	api, transport, _ := createTestApi(t)

	t.Run("role mismatch trade", func(t *testing.T) {
		res := api.LoginTrade(testContext(t), testConn, testLogin(FixtureQuotationID, UserTypeQuotation))
		assert.Check(t, !res.IsSuccess)
		assert.Check(t, res.Msg != "")
		assert.Check(t, !api.IsActive(SessionTrade))
		assert.Equal(t, api.PlaceOrder(&LimitOrderRequest{}), ResultErrNotLoggedIn)
	})

	t.Run("role mismatch quot", func(t *testing.T) {
		res := api.LoginQuot(testContext(t), testConn, testLogin(FixtureTraderID, UserTypeTrader))
		assert.Check(t, !res.IsSuccess)
		assert.Check(t, !api.IsActive(SessionQuot))
		assert.Equal(t, api.SubscribeTicker("605199", TickerLevelBook), ResultErrNotLoggedIn)
	})

	t.Run("bad password", func(t *testing.T) {
		req := testLogin(FixtureTraderID, UserTypeTrader)
		req.PasswordHash = "bad"
		res := api.LoginTrade(testContext(t), testConn, req)
		assert.Check(t, !res.IsSuccess)
		assert.Equal(t, res.Msg, "invalid user or password")
	})

	t.Run("bad connection", func(t *testing.T) {
		conn := testConn
		conn.Transport = "pigeon"
		res := api.LoginTrade(testContext(t), conn, testLogin(FixtureTraderID, UserTypeTrader))
		assert.Check(t, !res.IsSuccess)
		assert.Equal(t, res.Msg, "invalid connection: unsupported connection transport: pigeon")

		conn = testConn
		conn.Port = 0
		res = api.LoginTrade(testContext(t), conn, testLogin(FixtureTraderID, UserTypeTrader))
		assert.Check(t, !res.IsSuccess)
	})

	t.Run("transport not ready", func(t *testing.T) {
		transport.SetReady(false)
		defer transport.SetReady(true)
		res := api.LoginTrade(testContext(t), testConn, testLogin(FixtureTraderID, UserTypeTrader))
		assert.Check(t, !res.IsSuccess)
		assert.Check(t, strings.HasPrefix(res.Msg, "login failed: "), res.Msg)
	})

	t.Run("advisor ok", func(t *testing.T) {
		res := api.LoginTrade(testContext(t), testConn, testLogin(FixtureEmptyID, UserTypeAdvisor))
		assert.Check(t, res.IsSuccess, res.Msg)
		assert.Check(t, api.IsActive(SessionTrade))
		assert.Check(t, !api.IsActive(SessionQuot))
	})

	t.Run("failed relogin drops session", func(t *testing.T) {
		req := testLogin(FixtureEmptyID, UserTypeAdvisor)
		req.PasswordHash = "bad"
		res := api.LoginTrade(testContext(t), testConn, req)
		assert.Check(t, !res.IsSuccess)
		assert.Check(t, !api.IsActive(SessionTrade))
	})
}

func TestTradeApi_PlaceCancel(t *testing.T) {
	api, _, spi := createLoggedApi(t)

	order := NewLimitOrder("605199.SH", 10.6, 200, TradeModeBuy)
	assert.Equal(t, order.Exchange, MarketTypeSSE)

	assert.Equal(t, api.PlaceOrder(&order), ResultSuccess)
	confirmed, err := spi.WaitOrderStatus(testContext(t), order.OrderID, func(s OrderStatus) bool { return s == OrderStatusConfirmed })
	assert.NilError(t, err)
	assert.Equal(t, confirmed.Qty, float64(200))

	assert.Equal(t, api.CancelOrder(order.OrderID), ResultSuccess)
	cancelled, err := spi.WaitOrderStatus(testContext(t), order.OrderID, OrderStatus.IsFinal)
	assert.NilError(t, err)
	assert.Equal(t, cancelled.Status, OrderStatusCancelled)
	assert.Equal(t, cancelled.CancelledQty, float64(200))

	t.Run("cancel again reports reject", func(t *testing.T) {
		assert.Equal(t, api.CancelOrder(order.OrderID), ResultSuccess)
	})

	t.Run("invalid orders", func(t *testing.T) {
		assert.Equal(t, api.PlaceOrder(nil), ResultErrInvalidRequest)
		bad := NewLimitOrder("605199.SH", 0, 100, TradeModeBuy)
		assert.Equal(t, api.PlaceOrder(&bad), ResultErrInvalidRequest)
		bad = NewLimitOrder("605199.SH", 10, 100, TradeMode(3))
		assert.Equal(t, api.PlaceOrder(&bad), ResultErrInvalidRequest)
		bad = NewLimitOrder("", 10, 100, TradeModeSell)
		assert.Equal(t, api.PlaceOrder(&bad), ResultErrInvalidRequest)
		bad = NewLimitOrder("605199", 10, 100, TradeModeBuy)
		assert.Equal(t, bad.Exchange, MarketType(0))
		assert.Equal(t, api.PlaceOrder(&bad), ResultErrInvalidRequest)
		bad = NewLimitOrder("605199.SH", 10, 100, TradeModeBuy)
		bad.Exchange = MarketType(7)
		assert.Equal(t, api.PlaceOrder(&bad), ResultErrInvalidRequest)
		assert.Equal(t, api.CancelOrder(""), ResultErrInvalidRequest)
	})
}

func TestTradeApi_ScriptedOrder(t *testing.T) {
	api, transport, spi := createLoggedApi(t)

	order := NewLimitOrder("000001.SZ", 12.8, 300, TradeModeSell)
	report := OrderInfo{OrderID: order.OrderID, Symbol: order.Symbol, Qty: 300, Side: TradeModeSell}
	ack, confirmed := report, report
	ack.Status = OrderStatusAck
	confirmed.Status = OrderStatusConfirmed
	transport.ExpectOrder(order.OrderID, nil, ack, confirmed)

	assert.Equal(t, api.PlaceOrder(&order), ResultSuccess)
	_, err := spi.WaitOrderStatus(testContext(t), order.OrderID, func(s OrderStatus) bool { return s == OrderStatusConfirmed })
	assert.NilError(t, err)

	assert.NilError(t, transport.Fill(order.OrderID, 12.8, 100))
	partial, err := spi.WaitOrderStatus(testContext(t), order.OrderID, func(s OrderStatus) bool { return s == OrderStatusPartialFilled })
	assert.NilError(t, err)
	assert.Equal(t, partial.FilledQty, float64(100))
	assert.Equal(t, partial.LeavesQty(), float64(200))
	assert.Equal(t, len(spi.Trades()), 1)

	t.Run("send failure", func(t *testing.T) {
		failed := NewLimitOrder("000001.SZ", 12.8, 300, TradeModeSell)
		transport.ExpectOrder(failed.OrderID, errors.New("socket gone"))
		assert.Equal(t, api.PlaceOrder(&failed), ResultErrNetwork)
	})
}

func TestTradeApi_Queries(t *testing.T) {
	api, _, spi := createLoggedApi(t)

	t.Run("positions", func(t *testing.T) {
		assert.Equal(t, api.QueryPosition("pos-1"), ResultSuccess)
		records, err := spi.WaitQuery(testContext(t), "pos-1")
		assert.NilError(t, err)
		assert.Equal(t, len(records), 2)
		pages, lasts, nils := spi.counts("pos-1")
		assert.Equal(t, pages, 2)
		assert.Equal(t, lasts, 1)
		assert.Equal(t, nils, 0)
		position, ok := spi.Position("605199")
		assert.Check(t, ok)
		assert.Equal(t, position.AvailVolume, float64(800))
	})

	t.Run("orders and trades", func(t *testing.T) {
		assert.Equal(t, api.QueryOrder("ord-1"), ResultSuccess)
		assert.Equal(t, api.QueryTrade("trd-1"), ResultSuccess)
		orders, err := spi.WaitQuery(testContext(t), "ord-1")
		assert.NilError(t, err)
		assert.Equal(t, len(orders), 4)
		trades, err := spi.WaitQuery(testContext(t), "trd-1")
		assert.NilError(t, err)
		assert.Equal(t, len(trades), 1)
	})

	t.Run("asset", func(t *testing.T) {
		assert.Equal(t, api.QueryAsset("asset-1"), ResultSuccess)
		records, err := spi.WaitQuery(testContext(t), "asset-1")
		assert.NilError(t, err)
		assert.Equal(t, len(records), 1)
		asset, ok := spi.Asset()
		assert.Check(t, ok)
		assert.Equal(t, asset.TotalAmount, float64(120000))
	})

	t.Run("static", func(t *testing.T) {
		assert.Equal(t, api.QueryStaticDatasByID("static-1"), ResultSuccess)
		records, err := spi.WaitQuery(testContext(t), "static-1")
		assert.NilError(t, err)
		assert.Equal(t, len(records), 3)
		data, ok := spi.Static("605199")
		assert.Check(t, ok)
		assert.Check(t, data.InPriceLimits(11))

		assert.Equal(t, api.QueryStaticDatas(), ResultSuccess)
	})

	t.Run("bad request id", func(t *testing.T) {
		assert.Equal(t, api.QueryOrder(""), ResultErrInvalidRequest)
	})

	assert.Check(t, atomic.LoadInt32(&spi.overlapped) == 0, "callbacks overlapped")
}

func TestTradeApi_QueryStaticDatasGeneratedID(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	logger := zap.New(core)
	transport := NewMockTransport(logger)
	transport.SetReady(true)
	transport.SetupFixtures()
	api := NewTradeApi(logger, transport)
	defer api.Close()
	spi := newRecordSpi()
	assert.NilError(t, api.RegisterSpi(spi))
	res := api.LoginQuot(testContext(t), testConn, testLogin(FixtureQuotationID, UserTypeQuotation))
	assert.Check(t, res.IsSuccess, res.Msg)

	assert.Equal(t, api.QueryStaticDatas(), ResultSuccess)
	sent := logs.FilterMessage("itg-api: static data query sent").All()
	assert.Equal(t, len(sent), 1)
	requestID, ok := sent[0].ContextMap()["requestId"].(string)
	assert.Check(t, ok)
	assert.Check(t, requestID != "")

	records, err := spi.WaitQuery(testContext(t), requestID)
	assert.NilError(t, err)
	assert.Check(t, len(records) > 0)
	_, lasts, _ := spi.counts(requestID)
	assert.Equal(t, lasts, 1)
}

func TestTradeApi_EmptyQuery(t *testing.T) {
	api, _, spi := createTestApi(t)
	res := api.LoginTrade(testContext(t), testConn, testLogin(FixtureEmptyID, UserTypeAdvisor))
	assert.Check(t, res.IsSuccess, res.Msg)

	for i, query := range []func(string) ResultCode{api.QueryOrder, api.QueryTrade, api.QueryPosition, api.QueryAsset} {
		requestID := "empty-" + strconv.Itoa(i)
		assert.Equal(t, query(requestID), ResultSuccess)
		records, err := spi.WaitQuery(testContext(t), requestID)
		assert.NilError(t, err)
		assert.Equal(t, len(records), 0)
		pages, lasts, nils := spi.counts(requestID)
		assert.Equal(t, pages, 1, requestID)
		assert.Equal(t, lasts, 1, requestID)
		assert.Equal(t, nils, 1, requestID)
	}
	assert.Equal(t, len(api.PendingQueries()), 0)
}

func TestTradeApi_PipelinedQueries(t *testing.T) {
	api, transport, spi := createLoggedApi(t)
	transport.HoldQueries()

	assert.Equal(t, api.QueryOrder("a"), ResultSuccess)
	assert.Equal(t, api.QueryPosition("b"), ResultSuccess)
	assert.Equal(t, api.QueryStaticDatasByID("c"), ResultSuccess)
	assert.Equal(t, api.QueryOrder("a"), ResultErrDuplicate)
	assert.DeepEqual(t, api.PendingQueries(), []string{"a", "b", "c"})

	transport.FlushQueries()

	orders, err := spi.WaitQuery(testContext(t), "a")
	assert.NilError(t, err)
	for _, record := range orders {
		_, ok := record.(OrderInfo)
		assert.Check(t, ok, "order query got foreign record")
	}
	assert.Equal(t, len(orders), 4)

	positions, err := spi.WaitQuery(testContext(t), "b")
	assert.NilError(t, err)
	for _, record := range positions {
		_, ok := record.(PositionInfo)
		assert.Check(t, ok, "position query got foreign record")
	}

	statics, err := spi.WaitQuery(testContext(t), "c")
	assert.NilError(t, err)
	assert.Equal(t, len(statics), 3)

	for _, id := range []string{"a", "b", "c"} {
		_, lasts, _ := spi.counts(id)
		assert.Equal(t, lasts, 1, id)
	}
	assert.Equal(t, len(api.PendingQueries()), 0)

	t.Run("request id reusable after last page", func(t *testing.T) {
		assert.Equal(t, api.QueryOrder("a"), ResultSuccess)
		_, err := spi.WaitQuery(testContext(t), "a")
		assert.NilError(t, err)
	})
}

func TestTradeApi_Subscribe(t *testing.T) {
	api, transport, spi := createLoggedApi(t)

	assert.Equal(t, api.SubscribeTicker("605199", TickerLevelDeal), ResultSuccess)
	assert.Equal(t, api.SubscribeTicker("", TickerLevelDeal), ResultErrInvalidRequest)
	assert.Equal(t, api.SubscribeTicker("605199", TickerLevel(0)), ResultErrInvalidRequest)
	assert.DeepEqual(t, api.Subscriptions(), map[string]TickerLevel{"605199": TickerLevelDeal})

	data := QuotationData{StockCode: "605199", LastPrice: 10.6}
	data.Bids[0] = PriceLevel{Price: 10.25, Volume: 300}
	data.Asks[0] = PriceLevel{Price: 10.75, Volume: 500}
	assert.Check(t, transport.PushQuotData(data))
	assert.Check(t, transport.PushQuotDeal(QuotationDeal{StockCode: "605199", DealPrice: 10.6, DealCount: 100}))
	assert.Check(t, !transport.PushQuotOrder(QuotationOrder{StockCode: "605199"}), "order ticks need level 3")
	assert.Check(t, !transport.PushQuotData(QuotationData{StockCode: "600000"}), "not subscribed")

	// order report is dispatched after market data, state is complete when it arrives
	order := NewLimitOrder("605199.SH", 10.6, 100, TradeModeBuy)
	assert.Equal(t, api.PlaceOrder(&order), ResultSuccess)
	_, err := spi.WaitOrderStatus(testContext(t), order.OrderID, func(s OrderStatus) bool { return s == OrderStatusConfirmed })
	assert.NilError(t, err)

	quote, ok := spi.Quote("605199")
	assert.Check(t, ok)
	assert.Equal(t, quote.MidPrice(), 10.5)
	deals, ticks := spi.TickCounts("605199")
	assert.Equal(t, deals, 1)
	assert.Equal(t, ticks, 0)

	assert.Equal(t, api.UnsubscribeTicker("605199"), ResultSuccess)
	assert.Equal(t, api.UnsubscribeTicker("605199"), ResultErrInvalidRequest)
	assert.Check(t, !transport.PushQuotData(data))
}

func TestTradeApi_Logout(t *testing.T) {
	api, _, _ := createLoggedApi(t)

	assert.Equal(t, api.SubscribeTicker("605199", TickerLevelBook), ResultSuccess)
	assert.Equal(t, api.Logout(SessionQuot), ResultSuccess)
	assert.Check(t, !api.IsActive(SessionQuot))
	assert.Equal(t, len(api.Subscriptions()), 0)
	assert.Equal(t, api.QueryStaticDatas(), ResultErrNotLoggedIn)
	assert.Equal(t, api.Logout(SessionQuot), ResultErrNotLoggedIn)

	assert.Check(t, api.IsActive(SessionTrade), "trade session kept")
	assert.Equal(t, api.QueryAsset("after-quot-logout"), ResultSuccess)
}

func TestTradeApi_Network(t *testing.T) {
	api, transport, _ := createLoggedApi(t)
	transport.SetReady(false)

	order := NewLimitOrder("605199.SH", 10.6, 100, TradeModeBuy)
	assert.Equal(t, api.PlaceOrder(&order), ResultErrNetwork)
	assert.Equal(t, api.CancelOrder(order.OrderID), ResultErrNetwork)
	assert.Equal(t, api.QueryAsset("net-1"), ResultErrNetwork)
	assert.Equal(t, len(api.PendingQueries()), 0, "failed query not left pending")
	assert.Equal(t, api.SubscribeTicker("605199", TickerLevelBook), ResultErrNetwork)
}

func TestTradeApi_ExpireQuery(t *testing.T) {
	api, transport, spi := createLoggedApi(t)
	transport.HoldQueries()

	assert.Equal(t, api.QueryAsset("slow"), ResultSuccess)
	assert.Check(t, api.ExpireQuery("slow"))
	assert.Check(t, !api.ExpireQuery("slow"))

	transport.FlushQueries()
	_, err := spi.WaitQuery(testContext(t), "slow")
	assert.NilError(t, err, "late page is still delivered")

	t.Run("watcher", func(t *testing.T) {
		transport.HoldQueries()
		var expired []string
		watcher := NewQueryWatcher(api, time.Hour, func(requestID string, kind QueryKind) {
			expired = append(expired, requestID+":"+kind.String())
		})
		defer watcher.Stop()

		assert.Equal(t, api.QueryPosition("w1"), ResultSuccess)
		assert.Equal(t, watcher.release(time.Now()), 0)
		assert.Equal(t, watcher.release(time.Now().Add(2*time.Hour)), 1)
		assert.DeepEqual(t, expired, []string{"w1:position"})
		assert.Equal(t, len(api.PendingQueries()), 0)
		transport.FlushQueries()
	})
}

func TestQueryWatcher_TinyTimeout(t *testing.T) {
	api, transport, spi := createLoggedApi(t)
	transport.HoldQueries()

	expired := make(chan string, 1)
	watcher := NewQueryWatcher(api, time.Nanosecond, func(requestID string, kind QueryKind) {
		expired <- requestID
	})
	defer watcher.Stop()

	assert.Equal(t, api.QueryAsset("tiny"), ResultSuccess)
	select {
	case requestID := <-expired:
		assert.Equal(t, requestID, "tiny")
	case <-time.After(time.Second):
		t.Fatal("query not expired")
	}
	assert.Equal(t, len(api.PendingQueries()), 0)

	transport.FlushQueries()
	_, err := spi.WaitQuery(testContext(t), "tiny")
	assert.NilError(t, err)

	zero := NewQueryWatcher(api, 0, nil)
	zero.Stop()
	zero.Stop()
}

func TestTradeApi_UnexpectedEvents(t *testing.T) {
	api, transport, spi := createLoggedApi(t)

	transport.Emit(struct{}{})
	transport.Emit(&QueryAssetEvent{RequestID: "never-sent", IsLast: true})

	assert.Equal(t, api.QueryAsset("after"), ResultSuccess)
	_, err := spi.WaitQuery(testContext(t), "after")
	assert.NilError(t, err)
	_, lasts, _ := spi.counts("never-sent")
	assert.Equal(t, lasts, 1)
}

func TestTradeApi_Close(t *testing.T) {
	api, _, _ := createLoggedApi(t)

	assert.NilError(t, api.Close())
	assert.Equal(t, api.Close(), ErrClosed)
	assert.Check(t, !api.IsActive(SessionTrade))
	assert.Equal(t, api.QueryAsset("closed"), ResultErrNotLoggedIn)
	res := api.LoginTrade(testContext(t), testConn, testLogin(FixtureTraderID, UserTypeTrader))
	assert.Check(t, !res.IsSuccess)
}

func TestTradeApi_ConcurrentCommands(t *testing.T) {
	api, transport, spi := createLoggedApi(t)
	assert.Equal(t, api.SubscribeTicker("605199", TickerLevelOrder), ResultSuccess)

	const workers = 8
	const perWorker = 25

	var wg sync.WaitGroup
	ids := make(chan string, workers*perWorker)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				order := NewLimitOrder("605199.SH", 10.6, 100, TradeModeBuy)
				order.OrderID = OrderIdGenerateFast(100000 + w*1000 + i)
				if api.PlaceOrder(&order) == ResultSuccess {
					ids <- order.OrderID
				}
				requestID := "stress-" + strconv.Itoa(w) + "-" + strconv.Itoa(i)
				if api.QueryAsset(requestID) != ResultSuccess {
					t.Error("query rejected " + requestID)
				}
				transport.PushQuotOrder(QuotationOrder{StockCode: "605199", OrderPrice: 10.6, OrderVolume: i})
			}
		}(w)
	}
	wg.Wait()
	close(ids)

	// every event emitted by workers is dispatched before the sentinel report
	sentinel := NewLimitOrder("605199.SH", 10.6, 100, TradeModeSell)
	assert.Equal(t, api.PlaceOrder(&sentinel), ResultSuccess)
	_, err := spi.WaitOrderStatus(testContext(t), sentinel.OrderID, func(s OrderStatus) bool { return s == OrderStatusConfirmed })
	assert.NilError(t, err)

	count := 0
	for id := range ids {
		count++
		_, err := spi.WaitOrderStatus(testContext(t), id, func(s OrderStatus) bool { return s == OrderStatusConfirmed })
		assert.NilError(t, err)
	}
	assert.Equal(t, count, workers*perWorker)

	for w := 0; w < workers; w++ {
		for i := 0; i < perWorker; i++ {
			_, err := spi.WaitQuery(testContext(t), "stress-"+strconv.Itoa(w)+"-"+strconv.Itoa(i))
			assert.NilError(t, err)
		}
	}
	_, ticks := spi.TickCounts("605199")
	assert.Equal(t, ticks, workers*perWorker)
	assert.Check(t, atomic.LoadInt32(&spi.overlapped) == 0, "callbacks overlapped")
}
