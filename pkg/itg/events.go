package itg

// Events produced by a Transport. Each one maps to exactly one Spi callback.

type OrderReportEvent struct {
	Order OrderInfo
}

type TradeReportEvent struct {
	Trade TradeInfo
}

type QueryOrderEvent struct {
	RequestID string
	IsLast    bool
	Order     *OrderInfo
}

type QueryTradeEvent struct {
	RequestID string
	IsLast    bool
	Trade     *TradeInfo
}

type QueryPositionEvent struct {
	RequestID string
	IsLast    bool
	Position  *PositionInfo
}

type QueryAssetEvent struct {
	RequestID string
	IsLast    bool
	Asset     *AssetInfo
}

type QuotDataEvent struct {
	Data QuotationData
}

type QuotDealEvent struct {
	Deal QuotationDeal
}

type QuotOrderEvent struct {
	Order QuotationOrder
}

type QuotStaticEvent struct {
	RequestID string
	IsLast    bool
	Data      *StaticData
}

// queryEvent is implemented by paginated events
type queryEvent interface {
	queryRef() (string, bool)
}

func (e *QueryOrderEvent) queryRef() (string, bool)    { return e.RequestID, e.IsLast }
func (e *QueryTradeEvent) queryRef() (string, bool)    { return e.RequestID, e.IsLast }
func (e *QueryPositionEvent) queryRef() (string, bool) { return e.RequestID, e.IsLast }
func (e *QueryAssetEvent) queryRef() (string, bool)    { return e.RequestID, e.IsLast }
func (e *QuotStaticEvent) queryRef() (string, bool)    { return e.RequestID, e.IsLast }
