package itg

import "go.uber.org/zap"

// LogSpi log every callback and pass it to next sink when set
type LogSpi struct {
	logger *zap.Logger
	next   Spi
}

func NewLogSpi(logger *zap.Logger, next Spi) *LogSpi {
	return &LogSpi{logger: logger, next: next}
}

func (l *LogSpi) OnOrderReport(order *OrderInfo) {
	l.logger.Info("spi: order report", zap.String("orderId", order.OrderID), zap.String("status", order.Status.String()),
		zap.Float64("filledQty", order.FilledQty), zap.String("msg", order.Msg))
	if l.next != nil {
		l.next.OnOrderReport(order)
	}
}

func (l *LogSpi) OnTradeReport(trade *TradeInfo) {
	l.logger.Info("spi: trade report", zap.String("orderId", trade.OrderID), zap.String("dealId", trade.DealID),
		zap.Float64("price", trade.Price), zap.Float64("qty", trade.Qty))
	if l.next != nil {
		l.next.OnTradeReport(trade)
	}
}

func (l *LogSpi) OnQueryOrder(order *OrderInfo, requestID string, isLast bool) {
	l.logger.Info("spi: query order", zap.String("requestId", requestID), zap.Bool("isLast", isLast), zap.Reflect("order", order))
	if l.next != nil {
		l.next.OnQueryOrder(order, requestID, isLast)
	}
}

func (l *LogSpi) OnQueryTrade(trade *TradeInfo, requestID string, isLast bool) {
	l.logger.Info("spi: query trade", zap.String("requestId", requestID), zap.Bool("isLast", isLast), zap.Reflect("trade", trade))
	if l.next != nil {
		l.next.OnQueryTrade(trade, requestID, isLast)
	}
}

func (l *LogSpi) OnQueryPosition(position *PositionInfo, requestID string, isLast bool) {
	l.logger.Info("spi: query position", zap.String("requestId", requestID), zap.Bool("isLast", isLast), zap.Reflect("position", position))
	if l.next != nil {
		l.next.OnQueryPosition(position, requestID, isLast)
	}
}

func (l *LogSpi) OnQueryAsset(asset *AssetInfo, requestID string, isLast bool) {
	l.logger.Info("spi: query asset", zap.String("requestId", requestID), zap.Bool("isLast", isLast), zap.Reflect("asset", asset))
	if l.next != nil {
		l.next.OnQueryAsset(asset, requestID, isLast)
	}
}

func (l *LogSpi) OnQuotData(data *QuotationData) {
	bid, _ := data.BestBid()
	ask, _ := data.BestAsk()
	l.logger.Debug("spi: quotation", zap.String("symbol", data.StockCode), zap.Float64("last", data.LastPrice),
		zap.Float64("bid", bid.Price), zap.Float64("ask", ask.Price))
	if l.next != nil {
		l.next.OnQuotData(data)
	}
}

func (l *LogSpi) OnQuotDeal(deal *QuotationDeal) {
	l.logger.Debug("spi: deal", zap.String("symbol", deal.StockCode), zap.Float64("price", deal.DealPrice), zap.Int("count", deal.DealCount))
	if l.next != nil {
		l.next.OnQuotDeal(deal)
	}
}

func (l *LogSpi) OnQuotOrder(order *QuotationOrder) {
	l.logger.Debug("spi: order tick", zap.String("symbol", order.StockCode), zap.Float64("price", order.OrderPrice), zap.Int("volume", order.OrderVolume))
	if l.next != nil {
		l.next.OnQuotOrder(order)
	}
}

func (l *LogSpi) OnQuotStatic(data *StaticData, requestID string, isLast bool) {
	l.logger.Info("spi: static data", zap.String("requestId", requestID), zap.Bool("isLast", isLast), zap.Reflect("data", data))
	if l.next != nil {
		l.next.OnQuotStatic(data, requestID, isLast)
	}
}
