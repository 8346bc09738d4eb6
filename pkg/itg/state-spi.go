package itg

import (
	"context"
	"sort"
	"sync"
)

type queryResult struct {
	kind    QueryKind
	records []interface{}
	done    bool
}

// StateSpi keep local view of session state built from events and
// lets callers wait for query completion or order status changes.
type StateSpi struct {
	mx        sync.Mutex
	changed   chan struct{}
	orders    map[string]OrderInfo
	trades    []TradeInfo
	positions map[string]PositionInfo
	asset     *AssetInfo
	statics   map[string]StaticData
	quotes    map[string]QuotationData
	deals     map[string]int
	ticks     map[string]int
	queries   map[string]*queryResult
}

func NewStateSpi() *StateSpi {
	return &StateSpi{
		changed:   make(chan struct{}),
		orders:    make(map[string]OrderInfo),
		positions: make(map[string]PositionInfo),
		statics:   make(map[string]StaticData),
		quotes:    make(map[string]QuotationData),
		deals:     make(map[string]int),
		ticks:     make(map[string]int),
		queries:   make(map[string]*queryResult),
	}
}

// notify wake up waiters, must be called under mx
func (s *StateSpi) notify() {
	close(s.changed)
	s.changed = make(chan struct{})
}

func (s *StateSpi) page(kind QueryKind, requestID string, isLast bool, record interface{}) {
	result, ok := s.queries[requestID]
	if !ok {
		result = &queryResult{kind: kind}
		s.queries[requestID] = result
	}
	if record != nil {
		result.records = append(result.records, record)
	}
	if isLast {
		result.done = true
	}
}

func (s *StateSpi) OnOrderReport(order *OrderInfo) {
	s.mx.Lock()
	defer s.mx.Unlock()
	s.orders[order.OrderID] = *order
	s.notify()
}

func (s *StateSpi) OnTradeReport(trade *TradeInfo) {
	s.mx.Lock()
	defer s.mx.Unlock()
	s.trades = append(s.trades, *trade)
	s.notify()
}

func (s *StateSpi) OnQueryOrder(order *OrderInfo, requestID string, isLast bool) {
	s.mx.Lock()
	defer s.mx.Unlock()
	var record interface{}
	if order != nil {
		if _, known := s.orders[order.OrderID]; !known {
			s.orders[order.OrderID] = *order
		}
		record = *order
	}
	s.page(QueryKindOrder, requestID, isLast, record)
	s.notify()
}

func (s *StateSpi) OnQueryTrade(trade *TradeInfo, requestID string, isLast bool) {
	s.mx.Lock()
	defer s.mx.Unlock()
	var record interface{}
	if trade != nil {
		record = *trade
	}
	s.page(QueryKindTrade, requestID, isLast, record)
	s.notify()
}

func (s *StateSpi) OnQueryPosition(position *PositionInfo, requestID string, isLast bool) {
	s.mx.Lock()
	defer s.mx.Unlock()
	var record interface{}
	if position != nil {
		s.positions[position.Symbol] = *position
		record = *position
	}
	s.page(QueryKindPosition, requestID, isLast, record)
	s.notify()
}

func (s *StateSpi) OnQueryAsset(asset *AssetInfo, requestID string, isLast bool) {
	s.mx.Lock()
	defer s.mx.Unlock()
	var record interface{}
	if asset != nil {
		copied := *asset
		s.asset = &copied
		record = copied
	}
	s.page(QueryKindAsset, requestID, isLast, record)
	s.notify()
}

func (s *StateSpi) OnQuotData(data *QuotationData) {
	s.mx.Lock()
	defer s.mx.Unlock()
	s.quotes[data.StockCode] = *data
	s.notify()
}

func (s *StateSpi) OnQuotDeal(deal *QuotationDeal) {
	s.mx.Lock()
	defer s.mx.Unlock()
	s.deals[deal.StockCode]++
	s.notify()
}

func (s *StateSpi) OnQuotOrder(order *QuotationOrder) {
	s.mx.Lock()
	defer s.mx.Unlock()
	s.ticks[order.StockCode]++
	s.notify()
}

func (s *StateSpi) OnQuotStatic(data *StaticData, requestID string, isLast bool) {
	s.mx.Lock()
	defer s.mx.Unlock()
	var record interface{}
	if data != nil {
		s.statics[data.StockCode] = *data
		record = *data
	}
	s.page(QueryKindStatic, requestID, isLast, record)
	s.notify()
}

// WaitQuery wait last page of query and return its records (nil for empty result).
// The result is forgotten once returned
func (s *StateSpi) WaitQuery(ctx context.Context, requestID string) ([]interface{}, error) {
	for {
		s.mx.Lock()
		if result, ok := s.queries[requestID]; ok && result.done {
			delete(s.queries, requestID)
			s.mx.Unlock()
			return result.records, nil
		}
		changed := s.changed
		s.mx.Unlock()

		select {
		case <-changed:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// WaitOrderStatus wait order report matching pred, already known state is checked first
func (s *StateSpi) WaitOrderStatus(ctx context.Context, orderID string, pred func(OrderStatus) bool) (OrderInfo, error) {
	for {
		s.mx.Lock()
		if order, ok := s.orders[orderID]; ok && pred(order.Status) {
			s.mx.Unlock()
			return order, nil
		}
		changed := s.changed
		s.mx.Unlock()

		select {
		case <-changed:
		case <-ctx.Done():
			return OrderInfo{}, ctx.Err()
		}
	}
}

func (s *StateSpi) Order(orderID string) (OrderInfo, bool) {
	s.mx.Lock()
	defer s.mx.Unlock()
	order, ok := s.orders[orderID]
	return order, ok
}

// OpenOrders orders not in final status sorted by order id
func (s *StateSpi) OpenOrders() []OrderInfo {
	s.mx.Lock()
	defer s.mx.Unlock()
	result := make([]OrderInfo, 0)
	for _, order := range s.orders {
		if !order.Status.IsFinal() {
			result = append(result, order)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].OrderID < result[j].OrderID
	})
	return result
}

func (s *StateSpi) Trades() []TradeInfo {
	s.mx.Lock()
	defer s.mx.Unlock()
	return append([]TradeInfo(nil), s.trades...)
}

func (s *StateSpi) Position(symbol string) (PositionInfo, bool) {
	s.mx.Lock()
	defer s.mx.Unlock()
	position, ok := s.positions[symbol]
	return position, ok
}

func (s *StateSpi) Asset() (AssetInfo, bool) {
	s.mx.Lock()
	defer s.mx.Unlock()
	if s.asset == nil {
		return AssetInfo{}, false
	}
	return *s.asset, true
}

func (s *StateSpi) Static(symbol string) (StaticData, bool) {
	s.mx.Lock()
	defer s.mx.Unlock()
	data, ok := s.statics[symbol]
	return data, ok
}

func (s *StateSpi) Quote(symbol string) (QuotationData, bool) {
	s.mx.Lock()
	defer s.mx.Unlock()
	data, ok := s.quotes[symbol]
	return data, ok
}

// TickCounts return received deals and order ticks of symbol
func (s *StateSpi) TickCounts(symbol string) (deals int, orders int) {
	s.mx.Lock()
	defer s.mx.Unlock()
	return s.deals[symbol], s.ticks[symbol]
}
