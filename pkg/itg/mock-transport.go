package itg

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

var errMockNotReady = errors.New("mock transport is not ready")

type mockAccount struct {
	passwordHash string
	userType     UserType
}

type expectation struct {
	orderID string
	reports []OrderInfo
	err     error
}

// MockTransport is an in-memory vendor side: role checking login, order
// lifecycle, fixtures for queries and market data pushes.
// Events are emitted synchronously into a buffered channel.
type MockTransport struct {
	logger        *zap.Logger
	isReady       uint32
	ready         chan bool
	events        chan interface{}
	closeOnce     sync.Once
	mx            sync.Mutex
	accounts      map[string]mockAccount
	sessions      map[SessionDomain]string
	orders        *ordersContainer
	trades        map[string][]TradeInfo
	positions     map[string][]PositionInfo
	assets        map[string]AssetInfo
	statics       []StaticData
	subscriptions map[string]TickerLevel
	holdQueries   bool
	held          [][]interface{}
	expectationMx sync.Mutex
	expectations  map[string]expectation
	nextDealID    uint64
}

func NewMockTransport(logger *zap.Logger) *MockTransport {
	m := &MockTransport{
		logger:        logger,
		ready:         make(chan bool, 2),
		events:        make(chan interface{}, 1000),
		accounts:      make(map[string]mockAccount),
		sessions:      make(map[SessionDomain]string),
		orders:        newOrderContainer(),
		trades:        make(map[string][]TradeInfo),
		positions:     make(map[string][]PositionInfo),
		assets:        make(map[string]AssetInfo),
		subscriptions: make(map[string]TickerLevel),
		expectations:  make(map[string]expectation),
	}
	logger.Info("mock-transport: created")
	return m
}

// AddAccount register credentials, once any account exists login checks them
func (m *MockTransport) AddAccount(userID, passwordHash string, userType UserType) {
	m.mx.Lock()
	defer m.mx.Unlock()
	m.accounts[userID] = mockAccount{passwordHash: passwordHash, userType: userType}
}

// ExpectOrder replace auto lifecycle for order id with scripted reports or send error
func (m *MockTransport) ExpectOrder(orderID string, err error, reports ...OrderInfo) {
	m.expectationMx.Lock()
	defer m.expectationMx.Unlock()
	m.expectations[orderID] = expectation{orderID: orderID, reports: reports, err: err}
}

func (m *MockTransport) popExpectation(orderID string) (expectation, bool) {
	m.expectationMx.Lock()
	defer m.expectationMx.Unlock()
	exp, ok := m.expectations[orderID]
	if ok {
		delete(m.expectations, orderID)
	}
	return exp, ok
}

func (m *MockTransport) emit(events ...interface{}) {
	for _, event := range events {
		m.events <- event
	}
}

func (m *MockTransport) Login(ctx context.Context, domain SessionDomain, conn ConnRequest, req LoginRequest) (MsgResponse, error) {
	if !m.IsReady() {
		return MsgResponse{}, errMockNotReady
	}
	if err := ctx.Err(); err != nil {
		return MsgResponse{}, err
	}
	if req.UserType.Domain() != domain || !req.UserType.IsValid() {
		m.logger.Info("mock-transport: login role mismatch", zap.String("domain", domain.String()), zap.String("userType", req.UserType.String()))
		return MsgResponse{IsSuccess: false, Msg: "user type " + req.UserType.String() + " not allowed for " + domain.String()}, nil
	}

	m.mx.Lock()
	defer m.mx.Unlock()
	if len(m.accounts) > 0 {
		account, ok := m.accounts[req.UserID]
		if !ok || account.passwordHash != req.PasswordHash {
			return MsgResponse{IsSuccess: false, Msg: "invalid user or password"}, nil
		}
		if account.userType != req.UserType {
			return MsgResponse{IsSuccess: false, Msg: "user type mismatch for " + req.UserID}, nil
		}
	}
	m.sessions[domain] = req.UserID
	m.logger.Info("mock-transport: login", zap.String("domain", domain.String()), zap.String("user", req.UserID), zap.String("host", conn.Host))
	return MsgResponse{IsSuccess: true, Msg: "login success"}, nil
}

func (m *MockTransport) Logout(domain SessionDomain) error {
	m.mx.Lock()
	defer m.mx.Unlock()
	if _, ok := m.sessions[domain]; !ok {
		return errors.New("no session for " + domain.String())
	}
	delete(m.sessions, domain)
	if domain == SessionQuot {
		m.subscriptions = make(map[string]TickerLevel)
	}
	return nil
}

func (m *MockTransport) session(domain SessionDomain) (string, error) {
	if !m.IsReady() {
		return "", errMockNotReady
	}
	m.mx.Lock()
	defer m.mx.Unlock()
	userID, ok := m.sessions[domain]
	if !ok {
		return "", errors.New("no session for " + domain.String())
	}
	return userID, nil
}

func nowOrderTime() string {
	return time.Now().Format("15:04:05.000")
}

func (m *MockTransport) SendOrder(order LimitOrderRequest) error {
	userID, err := m.session(SessionTrade)
	if err != nil {
		return err
	}

	if exp, ok := m.popExpectation(order.OrderID); ok {
		m.logger.Info("mock-transport: expected order", zap.String("orderId", order.OrderID), zap.Int("reports", len(exp.reports)))
		if exp.err != nil {
			return exp.err
		}
		events := make([]interface{}, 0, len(exp.reports))
		for _, report := range exp.reports {
			m.orders.handleReport(userID, report)
			events = append(events, &OrderReportEvent{Order: report})
		}
		m.emit(events...)
		return nil
	}

	report := OrderInfo{
		OrderID:   order.OrderID,
		Symbol:    order.Symbol,
		Price:     order.Price,
		Qty:       order.Qty,
		Side:      order.Side,
		Exchange:  order.Exchange,
		OrderTime: nowOrderTime(),
		BrokerID:  "mock",
	}
	if _, exist := m.orders.getOrder(userID, order.OrderID); exist {
		report.Status = OrderStatusRejected
		report.Msg = "duplicate order id"
		m.emit(&OrderReportEvent{Order: report})
		return nil
	}
	report.Status = OrderStatusConfirmed
	m.orders.handleReport(userID, report)
	m.logger.Info("mock-transport: auto confirm order", zap.String("user", userID), zap.String("orderId", order.OrderID))
	m.emit(&OrderReportEvent{Order: report})
	return nil
}

func (m *MockTransport) SendCancel(orderID string) error {
	userID, err := m.session(SessionTrade)
	if err != nil {
		return err
	}
	order, ok := m.orders.getOrder(userID, orderID)
	if !ok {
		m.emit(&OrderReportEvent{Order: OrderInfo{OrderID: orderID, Status: OrderStatusError, Msg: "order not found"}})
		return nil
	}
	if !order.Status.IsCancellable() {
		reject := order
		reject.Msg = "order can not be cancelled in status " + order.Status.String()
		m.emit(&OrderReportEvent{Order: reject})
		return nil
	}
	order.CancelledQty = order.LeavesQty()
	order.Status = OrderStatusCancelled
	order.Msg = ""
	m.orders.handleReport(userID, order)
	m.logger.Info("mock-transport: auto cancel order", zap.String("user", userID), zap.String("orderId", orderID))
	m.emit(&OrderReportEvent{Order: order})
	return nil
}

// Fill execute qty of working order at price, emit trade and order reports
func (m *MockTransport) Fill(orderID string, price, qty float64) error {
	userID, err := m.session(SessionTrade)
	if err != nil {
		return err
	}
	order, ok := m.orders.getOrder(userID, orderID)
	if !ok {
		return errors.New("order not found: " + orderID)
	}
	leaves := order.LeavesQty()
	if leaves <= 0 {
		return errors.New("order has nothing to fill: " + orderID)
	}
	if qty > leaves {
		qty = leaves
	}
	order.FilledPrice = (order.FilledPrice*order.FilledQty + price*qty) / (order.FilledQty + qty)
	order.FilledQty += qty
	if order.FilledQty >= order.Qty {
		order.Status = OrderStatusAllFilled
	} else {
		order.Status = OrderStatusPartialFilled
	}
	m.orders.handleReport(userID, order)

	trade := TradeInfo{
		OrderID:   orderID,
		DealID:    strconv.FormatUint(atomic.AddUint64(&m.nextDealID, 1), 10),
		Timestamp: nowOrderTime(),
		Price:     price,
		Qty:       qty,
		Symbol:    order.Symbol,
		Side:      order.Side,
	}
	m.mx.Lock()
	m.trades[userID] = append(m.trades[userID], trade)
	m.mx.Unlock()
	m.emit(&TradeReportEvent{Trade: trade}, &OrderReportEvent{Order: order})
	return nil
}

func (m *MockTransport) queryPages(userID string, kind QueryKind, requestID string) []interface{} {
	m.mx.Lock()
	defer m.mx.Unlock()
	var pages []interface{}
	switch kind {
	case QueryKindOrder:
		orders, _ := m.orders.getOrders(userID)
		for i := range orders {
			pages = append(pages, &QueryOrderEvent{RequestID: requestID, IsLast: i == len(orders)-1, Order: &orders[i]})
		}
		if len(pages) == 0 {
			pages = append(pages, &QueryOrderEvent{RequestID: requestID, IsLast: true})
		}
	case QueryKindTrade:
		trades := append([]TradeInfo(nil), m.trades[userID]...)
		for i := range trades {
			pages = append(pages, &QueryTradeEvent{RequestID: requestID, IsLast: i == len(trades)-1, Trade: &trades[i]})
		}
		if len(pages) == 0 {
			pages = append(pages, &QueryTradeEvent{RequestID: requestID, IsLast: true})
		}
	case QueryKindPosition:
		positions := append([]PositionInfo(nil), m.positions[userID]...)
		for i := range positions {
			pages = append(pages, &QueryPositionEvent{RequestID: requestID, IsLast: i == len(positions)-1, Position: &positions[i]})
		}
		if len(pages) == 0 {
			pages = append(pages, &QueryPositionEvent{RequestID: requestID, IsLast: true})
		}
	case QueryKindAsset:
		if asset, ok := m.assets[userID]; ok {
			pages = append(pages, &QueryAssetEvent{RequestID: requestID, IsLast: true, Asset: &asset})
		} else {
			pages = append(pages, &QueryAssetEvent{RequestID: requestID, IsLast: true})
		}
	case QueryKindStatic:
		statics := append([]StaticData(nil), m.statics...)
		for i := range statics {
			pages = append(pages, &QuotStaticEvent{RequestID: requestID, IsLast: i == len(statics)-1, Data: &statics[i]})
		}
		if len(pages) == 0 {
			pages = append(pages, &QuotStaticEvent{RequestID: requestID, IsLast: true})
		}
	}
	return pages
}

func (m *MockTransport) SendQuery(kind QueryKind, requestID string) error {
	userID, err := m.session(kind.Domain())
	if err != nil {
		return err
	}
	pages := m.queryPages(userID, kind, requestID)

	m.mx.Lock()
	if m.holdQueries {
		m.held = append(m.held, pages)
		m.mx.Unlock()
		return nil
	}
	m.mx.Unlock()
	m.emit(pages...)
	return nil
}

// HoldQueries keep query replies until FlushQueries
func (m *MockTransport) HoldQueries() {
	m.mx.Lock()
	defer m.mx.Unlock()
	m.holdQueries = true
}

// FlushQueries emit held query pages interleaved page by page across queries
func (m *MockTransport) FlushQueries() {
	m.mx.Lock()
	held := m.held
	m.held = nil
	m.holdQueries = false
	m.mx.Unlock()

	var events []interface{}
	for page := 0; ; page++ {
		added := false
		for _, pages := range held {
			if page < len(pages) {
				events = append(events, pages[page])
				added = true
			}
		}
		if !added {
			break
		}
	}
	m.emit(events...)
}

func (m *MockTransport) Subscribe(symbol string, level TickerLevel) error {
	if _, err := m.session(SessionQuot); err != nil {
		return err
	}
	m.mx.Lock()
	defer m.mx.Unlock()
	m.subscriptions[symbol] = level
	return nil
}

func (m *MockTransport) Unsubscribe(symbol string) error {
	if _, err := m.session(SessionQuot); err != nil {
		return err
	}
	m.mx.Lock()
	defer m.mx.Unlock()
	delete(m.subscriptions, symbol)
	return nil
}

func (m *MockTransport) subscribed(symbol string) (TickerLevel, bool) {
	m.mx.Lock()
	defer m.mx.Unlock()
	level, ok := m.subscriptions[symbol]
	return level, ok
}

// PushQuotData emit snapshot when symbol is subscribed
func (m *MockTransport) PushQuotData(data QuotationData) bool {
	if _, ok := m.subscribed(data.StockCode); !ok {
		return false
	}
	m.emit(&QuotDataEvent{Data: data})
	return true
}

// PushQuotDeal emit deal when symbol is subscribed with deals level
func (m *MockTransport) PushQuotDeal(deal QuotationDeal) bool {
	if level, ok := m.subscribed(deal.StockCode); !ok || !level.HasDeals() {
		return false
	}
	m.emit(&QuotDealEvent{Deal: deal})
	return true
}

// PushQuotOrder emit order book entry when symbol is subscribed with orders level
func (m *MockTransport) PushQuotOrder(order QuotationOrder) bool {
	if level, ok := m.subscribed(order.StockCode); !ok || !level.HasOrders() {
		return false
	}
	m.emit(&QuotOrderEvent{Order: order})
	return true
}

// Emit push arbitrary event, used to simulate vendor misbehaviour
func (m *MockTransport) Emit(event interface{}) {
	m.emit(event)
}

func (m *MockTransport) Events() chan interface{} {
	return m.events
}

func (m *MockTransport) IsReady() bool {
	return atomic.LoadUint32(&m.isReady) == 1
}

func (m *MockTransport) Ready() chan bool {
	return m.ready
}

func (m *MockTransport) SetReady(val bool) {
	setVal := uint32(0)
	if val {
		setVal = 1
	}

	if atomic.SwapUint32(&m.isReady, setVal) != setVal {
		m.logger.Info("mock-transport:", zap.Bool("set ready", val))
		select {
		case m.ready <- val:
		default:
		}
	}
}

func (m *MockTransport) Close() error {
	m.closeOnce.Do(func() {
		m.SetReady(false)
		close(m.events)
	})
	return nil
}

const (
	FixtureTraderID     = "10101"
	FixtureEmptyID      = "10102"
	FixtureQuotationID  = "90101"
	FixturePasswordHash = "e10adc3949ba59abbe56e057f20f883e"
)

// SetupFixtures register demo accounts with orders, trades, positions, asset and static data
func (m *MockTransport) SetupFixtures() {
	m.AddAccount(FixtureTraderID, FixturePasswordHash, UserTypeTrader)
	m.AddAccount(FixtureEmptyID, FixturePasswordHash, UserTypeAdvisor)
	m.AddAccount(FixtureQuotationID, FixturePasswordHash, UserTypeQuotation)

	orders := make([]OrderInfo, 0)
	k := 0
	for _, ticker := range []string{"605199.SH", "000001.SZ"} {
		symbol, exchange := SplitTicker(ticker)
		for _, side := range []TradeMode{TradeModeBuy, TradeModeSell} {
			k++
			orders = append(orders, OrderInfo{
				OrderID:   OrderIdGenerateFast(1000 + k),
				Symbol:    symbol,
				Price:     10.5 + float64(k)/100,
				Qty:       100 * float64(k),
				Side:      side,
				Exchange:  exchange,
				Status:    OrderStatusConfirmed,
				OrderTime: "09:30:0" + strconv.Itoa(k) + ".000",
				BrokerID:  "mock",
			})
		}
	}
	orders[1].Status = OrderStatusAllFilled
	orders[1].FilledQty = orders[1].Qty
	orders[1].FilledPrice = orders[1].Price

	m.logger.Info("mock-transport: setup fixtures", zap.String("user", FixtureTraderID))
	m.orders.setOrders(FixtureTraderID, orders)
	m.orders.setOrders(FixtureEmptyID, nil)

	m.mx.Lock()
	defer m.mx.Unlock()
	m.trades[FixtureTraderID] = []TradeInfo{{
		OrderID:   orders[1].OrderID,
		DealID:    "1",
		Timestamp: "09:30:02.500",
		Price:     orders[1].Price,
		Qty:       orders[1].Qty,
		Symbol:    orders[1].Symbol,
		Side:      orders[1].Side,
	}}
	m.nextDealID = 1
	m.positions[FixtureTraderID] = []PositionInfo{
		{UserID: FixtureTraderID, Symbol: "605199", RefCost: 10.2, Volume: 1000, AvailVolume: 800},
		{UserID: FixtureTraderID, Symbol: "000001", RefCost: 12.85, Volume: 500, AvailVolume: 500},
	}
	m.assets[FixtureTraderID] = AssetInfo{UserID: FixtureTraderID, AvailAmount: 95000, TotalAmount: 120000}
	m.statics = []StaticData{
		{StockCode: "605199", StockName: "葫芦娃", PreClosePrice: 10.5, ListingDate: 20200710, StaticDate: "20231016", Pinyin: "HLW", PriceUpLimit: 11.55, PriceDownLimit: 9.45},
		{StockCode: "000001", StockName: "平安银行", PreClosePrice: 12.9, ListingDate: 19910403, StaticDate: "20231016", Pinyin: "PAYH", PriceUpLimit: 14.19, PriceDownLimit: 11.61},
		{StockCode: "600000", StockName: "浦发银行", PreClosePrice: 7.1, ListingDate: 19991110, StaticDate: "20231016", Pinyin: "PFYH", PriceUpLimit: 7.81, PriceDownLimit: 6.39},
	}
}
