package itg

// Spi receives asynchronous notifications from TradeApi.
//
// All methods are called from the api dispatch goroutine, concurrently with the
// owner's own command calls. Implementations guard shared state themselves.
//
// Query callbacks carry the caller chosen request id and the isLast marker. A query
// without results still delivers exactly one callback with a nil record and isLast=true.
type Spi interface {
	// OnOrderReport order state change push
	OnOrderReport(order *OrderInfo)
	// OnTradeReport execution push
	OnTradeReport(trade *TradeInfo)
	OnQueryOrder(order *OrderInfo, requestID string, isLast bool)
	OnQueryTrade(trade *TradeInfo, requestID string, isLast bool)
	OnQueryPosition(position *PositionInfo, requestID string, isLast bool)
	OnQueryAsset(asset *AssetInfo, requestID string, isLast bool)
	// OnQuotData book snapshot push for subscribed symbol
	OnQuotData(data *QuotationData)
	// OnQuotDeal trade tick push, level 2 and above
	OnQuotDeal(deal *QuotationDeal)
	// OnQuotOrder order tick push, level 3
	OnQuotOrder(order *QuotationOrder)
	OnQuotStatic(data *StaticData, requestID string, isLast bool)
}
