package itg

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

var commandCounters = prometheus.NewCounterVec(prometheus.CounterOpts{
	Name: "itg_command_count",
	Help: "itg api command calls by result",
}, []string{"command", "result"})

var eventCounters = prometheus.NewCounterVec(prometheus.CounterOpts{
	Name: "itg_event_count",
	Help: "itg api dispatched events",
}, []string{"type"})

var pendingQueriesGauge = prometheus.NewGauge(prometheus.GaugeOpts{
	Name: "itg_pending_queries",
	Help: "itg queries waiting for last page",
})

var sessionState = prometheus.NewGaugeVec(prometheus.GaugeOpts{
	Name: "itg_session_active",
	Help: "itg session state by domain",
}, []string{"domain"})

func init() {
	prometheus.MustRegister(commandCounters, eventCounters, pendingQueriesGauge, sessionState)
}

// TradeApi is the command facade of one client: it owns the transport,
// the registered Spi, per-domain session state and the dispatch goroutine.
//
// Commands return as soon as the request is handed to the transport, results
// arrive later through the Spi. Commands are safe for concurrent use.
type TradeApi struct {
	logger        *zap.Logger
	transport     Transport
	spiMx         sync.RWMutex
	spi           Spi
	mx            sync.Mutex
	active        map[SessionDomain]bool
	loggingIn     map[SessionDomain]bool
	pending       map[string]*queryCall
	subscriptions map[string]TickerLevel
	closed        uint32
	dispatchDone  chan struct{}
}

// NewTradeApi wrap transport and start dispatching its events
func NewTradeApi(logger *zap.Logger, transport Transport) *TradeApi {
	api := &TradeApi{
		logger:        logger,
		transport:     transport,
		active:        make(map[SessionDomain]bool),
		loggingIn:     make(map[SessionDomain]bool),
		pending:       make(map[string]*queryCall),
		subscriptions: make(map[string]TickerLevel),
		dispatchDone:  make(chan struct{}),
	}
	go api.input()
	return api
}

// RegisterSpi set the event sink, exactly once and before any login
func (a *TradeApi) RegisterSpi(spi Spi) error {
	if spi == nil {
		return ErrSpiNil
	}
	a.spiMx.Lock()
	defer a.spiMx.Unlock()
	if a.spi != nil {
		a.logger.Warn("itg-api: spi already registered, ignore new one")
		return ErrSpiRegistered
	}
	a.spi = spi
	return nil
}

func (a *TradeApi) getSpi() Spi {
	a.spiMx.RLock()
	defer a.spiMx.RUnlock()
	return a.spi
}

func (a *TradeApi) isClosed() bool {
	return atomic.LoadUint32(&a.closed) == 1
}

// IsActive report authenticated session of domain
func (a *TradeApi) IsActive(domain SessionDomain) bool {
	a.mx.Lock()
	defer a.mx.Unlock()
	return a.active[domain]
}

func (a *TradeApi) setActive(domain SessionDomain, val bool) {
	a.mx.Lock()
	a.active[domain] = val
	a.mx.Unlock()

	var promStatus float64
	if val {
		promStatus = 1
	}
	sessionState.WithLabelValues(domain.String()).Set(promStatus)
}

// WaitReady block until transport reports ready state
func (a *TradeApi) WaitReady(ctx context.Context) error {
	for !a.transport.IsReady() {
		select {
		case <-a.transport.Ready():
		case <-time.After(100 * time.Millisecond):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// LoginTrade authenticate trading session, blocks until handshake completes
func (a *TradeApi) LoginTrade(ctx context.Context, conn ConnRequest, req LoginRequest) MsgResponse {
	return a.login(ctx, SessionTrade, conn, req)
}

// LoginQuot authenticate market data session, blocks until handshake completes
func (a *TradeApi) LoginQuot(ctx context.Context, conn ConnRequest, req LoginRequest) MsgResponse {
	return a.login(ctx, SessionQuot, conn, req)
}

func loginFail(msg string) MsgResponse {
	return MsgResponse{IsSuccess: false, Msg: msg}
}

func (a *TradeApi) login(ctx context.Context, domain SessionDomain, conn ConnRequest, req LoginRequest) MsgResponse {
	command := "login_" + domain.String()
	if a.isClosed() {
		commandCounters.WithLabelValues(command, "closed").Inc()
		return loginFail(ErrClosed.Error())
	}
	if a.getSpi() == nil {
		commandCounters.WithLabelValues(command, ResultErrNoSpi.Error()).Inc()
		return loginFail("spi must be registered before login")
	}
	if err := conn.validate(); err != nil {
		commandCounters.WithLabelValues(command, ResultErrInvalidRequest.Error()).Inc()
		return loginFail("invalid connection: " + err.Error())
	}
	if err := req.validate(); err != nil {
		commandCounters.WithLabelValues(command, ResultErrInvalidRequest.Error()).Inc()
		return loginFail("invalid login: " + err.Error())
	}

	a.mx.Lock()
	if a.loggingIn[domain] {
		a.mx.Unlock()
		commandCounters.WithLabelValues(command, ResultErrDuplicate.Error()).Inc()
		return loginFail("login already in progress for " + domain.String())
	}
	a.loggingIn[domain] = true
	a.mx.Unlock()
	defer func() {
		a.mx.Lock()
		delete(a.loggingIn, domain)
		a.mx.Unlock()
	}()

	a.logger.Info("itg-api: login", zap.String("domain", domain.String()), zap.String("user", req.UserID),
		zap.String("host", conn.Host), zap.Int("port", conn.Port))
	res, err := a.transport.Login(ctx, domain, conn, req)
	if err != nil {
		a.setActive(domain, false)
		a.logger.Error("itg-api: login failed", zap.String("domain", domain.String()), zap.Error(err))
		commandCounters.WithLabelValues(command, ResultErrNetwork.Error()).Inc()
		return loginFail("login failed: " + err.Error())
	}
	a.setActive(domain, res.IsSuccess)
	if !res.IsSuccess {
		a.logger.Warn("itg-api: login rejected", zap.String("domain", domain.String()), zap.String("msg", res.Msg))
		commandCounters.WithLabelValues(command, "rejected").Inc()
		return res
	}
	commandCounters.WithLabelValues(command, ResultSuccess.Error()).Inc()
	return res
}

// require check command preconditions for domain
func (a *TradeApi) require(domain SessionDomain) ResultCode {
	if a.getSpi() == nil {
		return ResultErrNoSpi
	}
	if a.isClosed() || !a.IsActive(domain) {
		return ResultErrNotLoggedIn
	}
	return ResultSuccess
}

func (a *TradeApi) result(command string, code ResultCode) ResultCode {
	commandCounters.WithLabelValues(command, code.Error()).Inc()
	return code
}

// PlaceOrder submit limit order, reports come through OnOrderReport
func (a *TradeApi) PlaceOrder(order *LimitOrderRequest) ResultCode {
	if code := a.require(SessionTrade); code != ResultSuccess {
		return a.result("placeOrder", code)
	}
	if order == nil {
		return a.result("placeOrder", ResultErrInvalidRequest)
	}
	if err := order.Validate(); err != nil {
		a.logger.Warn("itg-api: invalid order", zap.Error(err), zap.Reflect("order", order))
		return a.result("placeOrder", ResultErrInvalidRequest)
	}
	if err := a.transport.SendOrder(*order); err != nil {
		a.logger.Error("itg-api: fail send order", zap.Error(err), zap.String("orderId", order.OrderID))
		return a.result("placeOrder", ResultErrNetwork)
	}
	return a.result("placeOrder", ResultSuccess)
}

// CancelOrder request cancel of working order by its order id
func (a *TradeApi) CancelOrder(orderID string) ResultCode {
	if code := a.require(SessionTrade); code != ResultSuccess {
		return a.result("cancelOrder", code)
	}
	if err := CheckOrderId(orderID); err != nil {
		a.logger.Warn("itg-api: invalid cancel", zap.Error(err))
		return a.result("cancelOrder", ResultErrInvalidRequest)
	}
	if err := a.transport.SendCancel(orderID); err != nil {
		a.logger.Error("itg-api: fail send cancel", zap.Error(err), zap.String("orderId", orderID))
		return a.result("cancelOrder", ResultErrNetwork)
	}
	return a.result("cancelOrder", ResultSuccess)
}

func (a *TradeApi) query(kind QueryKind, requestID string) ResultCode {
	command := "query_" + kind.String()
	if code := a.require(kind.Domain()); code != ResultSuccess {
		return a.result(command, code)
	}
	if requestID == "" {
		return a.result(command, ResultErrInvalidRequest)
	}

	a.mx.Lock()
	if _, duplicate := a.pending[requestID]; duplicate {
		a.mx.Unlock()
		a.logger.Warn("itg-api: duplicate query request id", zap.String("requestId", requestID))
		return a.result(command, ResultErrDuplicate)
	}
	a.pending[requestID] = createQueryCall(requestID, kind)
	pendingQueriesGauge.Set(float64(len(a.pending)))
	a.mx.Unlock()

	if err := a.transport.SendQuery(kind, requestID); err != nil {
		a.logger.Error("itg-api: fail send query", zap.Error(err), zap.String("requestId", requestID))
		a.removePending(requestID)
		return a.result(command, ResultErrNetwork)
	}
	return a.result(command, ResultSuccess)
}

func (a *TradeApi) QueryOrder(requestID string) ResultCode {
	return a.query(QueryKindOrder, requestID)
}

func (a *TradeApi) QueryTrade(requestID string) ResultCode {
	return a.query(QueryKindTrade, requestID)
}

func (a *TradeApi) QueryPosition(requestID string) ResultCode {
	return a.query(QueryKindPosition, requestID)
}

func (a *TradeApi) QueryAsset(requestID string) ResultCode {
	return a.query(QueryKindAsset, requestID)
}

// QueryStaticDatas request static data of all symbols under generated request id.
// The id is only logged, use QueryStaticDatasByID to correlate pages
func (a *TradeApi) QueryStaticDatas() ResultCode {
	requestID := RequestIdGenerate()
	code := a.query(QueryKindStatic, requestID)
	if code == ResultSuccess {
		a.logger.Info("itg-api: static data query sent", zap.String("requestId", requestID))
	}
	return code
}

// QueryStaticDatasByID request static data under caller request id
func (a *TradeApi) QueryStaticDatasByID(requestID string) ResultCode {
	return a.query(QueryKindStatic, requestID)
}

// SubscribeTicker start market data of symbol, subscribing again changes level
func (a *TradeApi) SubscribeTicker(symbol string, level TickerLevel) ResultCode {
	if code := a.require(SessionQuot); code != ResultSuccess {
		return a.result("subscribe", code)
	}
	if symbol == "" || !level.IsValid() {
		return a.result("subscribe", ResultErrInvalidRequest)
	}
	if err := a.transport.Subscribe(symbol, level); err != nil {
		a.logger.Error("itg-api: fail subscribe", zap.Error(err), zap.String("symbol", symbol))
		return a.result("subscribe", ResultErrNetwork)
	}
	a.mx.Lock()
	a.subscriptions[symbol] = level
	a.mx.Unlock()
	return a.result("subscribe", ResultSuccess)
}

func (a *TradeApi) UnsubscribeTicker(symbol string) ResultCode {
	if code := a.require(SessionQuot); code != ResultSuccess {
		return a.result("unsubscribe", code)
	}
	a.mx.Lock()
	_, ok := a.subscriptions[symbol]
	a.mx.Unlock()
	if !ok {
		return a.result("unsubscribe", ResultErrInvalidRequest)
	}
	if err := a.transport.Unsubscribe(symbol); err != nil {
		a.logger.Error("itg-api: fail unsubscribe", zap.Error(err), zap.String("symbol", symbol))
		return a.result("unsubscribe", ResultErrNetwork)
	}
	a.mx.Lock()
	delete(a.subscriptions, symbol)
	a.mx.Unlock()
	return a.result("unsubscribe", ResultSuccess)
}

// Subscriptions copy of subscribed symbols with their levels
func (a *TradeApi) Subscriptions() map[string]TickerLevel {
	a.mx.Lock()
	defer a.mx.Unlock()
	result := make(map[string]TickerLevel, len(a.subscriptions))
	for symbol, level := range a.subscriptions {
		result[symbol] = level
	}
	return result
}

// Logout end domain session, outstanding queries of the domain are dropped
func (a *TradeApi) Logout(domain SessionDomain) ResultCode {
	command := "logout_" + domain.String()
	if code := a.require(domain); code != ResultSuccess {
		return a.result(command, code)
	}
	a.setActive(domain, false)

	a.mx.Lock()
	for id, call := range a.pending {
		if call.kind.Domain() == domain {
			delete(a.pending, id)
		}
	}
	pendingQueriesGauge.Set(float64(len(a.pending)))
	if domain == SessionQuot {
		a.subscriptions = make(map[string]TickerLevel)
	}
	a.mx.Unlock()

	if err := a.transport.Logout(domain); err != nil {
		a.logger.Error("itg-api: fail logout", zap.Error(err), zap.String("domain", domain.String()))
		return a.result(command, ResultErrNetwork)
	}
	return a.result(command, ResultSuccess)
}

// PendingQueries request ids still waiting for the last page, sorted
func (a *TradeApi) PendingQueries() []string {
	a.mx.Lock()
	defer a.mx.Unlock()
	result := make([]string, 0, len(a.pending))
	for id := range a.pending {
		result = append(result, id)
	}
	sort.Strings(result)
	return result
}

// ExpireQuery forget outstanding query, late pages are still delivered to the spi
func (a *TradeApi) ExpireQuery(requestID string) bool {
	return a.removePending(requestID) != nil
}

func (a *TradeApi) removePending(requestID string) *queryCall {
	a.mx.Lock()
	defer a.mx.Unlock()
	call, ok := a.pending[requestID]
	if !ok {
		return nil
	}
	delete(a.pending, requestID)
	pendingQueriesGauge.Set(float64(len(a.pending)))
	return call
}

// expireOlderThan drop queries waiting longer than timeout
func (a *TradeApi) expireOlderThan(now time.Time, timeout time.Duration) []*queryCall {
	a.mx.Lock()
	defer a.mx.Unlock()
	var expired []*queryCall
	for id, call := range a.pending {
		if call.age(now) > timeout {
			expired = append(expired, call)
			delete(a.pending, id)
		}
	}
	pendingQueriesGauge.Set(float64(len(a.pending)))
	return expired
}

// Close release transport and stop dispatching. Must not be called from Spi callbacks
func (a *TradeApi) Close() error {
	if !atomic.CompareAndSwapUint32(&a.closed, 0, 1) {
		return ErrClosed
	}
	a.setActive(SessionTrade, false)
	a.setActive(SessionQuot, false)
	err := a.transport.Close()
	<-a.dispatchDone
	a.logger.Info("itg-api: closed")
	return err
}

func (a *TradeApi) input() {
	defer close(a.dispatchDone)
	for event := range a.transport.Events() {
		a.dispatch(event)
	}
}

// trackQuery count page and finish call on last one
func (a *TradeApi) trackQuery(event queryEvent) {
	requestID, isLast := event.queryRef()
	a.mx.Lock()
	call, ok := a.pending[requestID]
	if ok {
		call.pages++
		if isLast {
			delete(a.pending, requestID)
			pendingQueriesGauge.Set(float64(len(a.pending)))
		}
	}
	a.mx.Unlock()

	if !ok {
		a.logger.Warn("itg-api: page for unknown query", zap.String("requestId", requestID), zap.Bool("isLast", isLast))
		return
	}
	if isLast {
		call.done()
	}
}

func (a *TradeApi) dispatch(event interface{}) {
	if query, ok := event.(queryEvent); ok {
		a.trackQuery(query)
	}

	spi := a.getSpi()
	if spi == nil {
		eventCounters.WithLabelValues("dropped").Inc()
		a.logger.Warn("itg-api: event without spi", zap.Reflect("event", event))
		return
	}

	switch e := event.(type) {
	case *OrderReportEvent:
		eventCounters.WithLabelValues("orderReport").Inc()
		spi.OnOrderReport(&e.Order)
	case *TradeReportEvent:
		eventCounters.WithLabelValues("tradeReport").Inc()
		spi.OnTradeReport(&e.Trade)
	case *QueryOrderEvent:
		eventCounters.WithLabelValues("queryOrder").Inc()
		spi.OnQueryOrder(e.Order, e.RequestID, e.IsLast)
	case *QueryTradeEvent:
		eventCounters.WithLabelValues("queryTrade").Inc()
		spi.OnQueryTrade(e.Trade, e.RequestID, e.IsLast)
	case *QueryPositionEvent:
		eventCounters.WithLabelValues("queryPosition").Inc()
		spi.OnQueryPosition(e.Position, e.RequestID, e.IsLast)
	case *QueryAssetEvent:
		eventCounters.WithLabelValues("queryAsset").Inc()
		spi.OnQueryAsset(e.Asset, e.RequestID, e.IsLast)
	case *QuotDataEvent:
		eventCounters.WithLabelValues("quotData").Inc()
		spi.OnQuotData(&e.Data)
	case *QuotDealEvent:
		eventCounters.WithLabelValues("quotDeal").Inc()
		spi.OnQuotDeal(&e.Deal)
	case *QuotOrderEvent:
		eventCounters.WithLabelValues("quotOrder").Inc()
		spi.OnQuotOrder(&e.Order)
	case *QuotStaticEvent:
		eventCounters.WithLabelValues("quotStatic").Inc()
		spi.OnQuotStatic(e.Data, e.RequestID, e.IsLast)
	default:
		eventCounters.WithLabelValues("unexpected").Inc()
		a.logger.Error("itg-api: unexpected input event", zap.Reflect("event", event))
	}
}
