package itg

// QuotationDepth is the number of book levels carried by QuotationData
const QuotationDepth = 10

// ConnRequest describe connection target and crypto material for one session
type ConnRequest struct {
	Transport     string `json:"transport"` // tcp, http, websocket, udp
	Host          string `json:"host"`
	Port          int    `json:"port"`
	PublicKeyPath string `json:"publicKeyPath"`
	AesKey        string `json:"aesKey"`
}

// LoginRequest carry credentials for one account role
type LoginRequest struct {
	UserID       string   `json:"userId"`
	UserType     UserType `json:"userType"`
	PasswordHash string   `json:"passwordHash"`
}

// MsgResponse is the synchronous login outcome
type MsgResponse struct {
	IsSuccess bool   `json:"isSuccess"`
	Msg       string `json:"msg"`
}

type LimitOrderRequest struct {
	OrderID  string     `json:"orderId"`
	Symbol   string     `json:"symbol"`
	Price    float64    `json:"price"`
	Qty      float64    `json:"qty"`
	Side     TradeMode  `json:"side"`
	Exchange MarketType `json:"exchange"`
}

// OrderInfo is a snapshot of submitted order state
type OrderInfo struct {
	OrderID      string      `json:"orderId"`
	Symbol       string      `json:"symbol"`
	Price        float64     `json:"price"`
	Qty          float64     `json:"qty"`
	Side         TradeMode   `json:"side"`
	Exchange     MarketType  `json:"exchange"`
	FilledPrice  float64     `json:"filledPrice"`
	FilledQty    float64     `json:"filledQty"`
	Status       OrderStatus `json:"status"`
	CancelledQty float64     `json:"cancelledQty"`
	OrderTime    string      `json:"orderTime"`
	Msg          string      `json:"msg"`
	BrokerID     string      `json:"brokerId"`
}

// LeavesQty return quantity still working on exchange
func (o *OrderInfo) LeavesQty() float64 {
	if o.Status.IsFinal() {
		return 0
	}
	leaves := o.Qty - o.FilledQty - o.CancelledQty
	if leaves < 0 {
		return 0
	}
	return leaves
}

// TradeInfo is one execution of an order
type TradeInfo struct {
	OrderID   string    `json:"orderId"`
	DealID    string    `json:"dealId"`
	Timestamp string    `json:"timestamp"`
	Price     float64   `json:"price"`
	Qty       float64   `json:"qty"`
	Symbol    string    `json:"symbol"`
	Side      TradeMode `json:"side"`
}

type PositionInfo struct {
	UserID      string  `json:"userId"`
	Symbol      string  `json:"symbol"`
	RefCost     float64 `json:"refCost"`
	Volume      float64 `json:"volume"`
	AvailVolume float64 `json:"availVolume"`
}

type AssetInfo struct {
	UserID      string  `json:"userId"`
	AvailAmount float64 `json:"availAmount"`
	TotalAmount float64 `json:"totalAmount"`
}

type PriceLevel struct {
	Price  float64 `json:"price"`
	Volume int     `json:"volume"`
}

// QuotationData is a full book snapshot, level 0 is the best price
type QuotationData struct {
	OrderTime     string                     `json:"orderTime"`
	StockCode     string                     `json:"stockCode"`
	PreClosePrice float64                    `json:"preClosePrice"`
	OpenPrice     float64                    `json:"openPrice"`
	HighPrice     float64                    `json:"highPrice"`
	LowPrice      float64                    `json:"lowPrice"`
	LastPrice     float64                    `json:"lastPrice"`
	ClosePrice    float64                    `json:"closePrice"`
	TotalVolume   int64                      `json:"totalVolume"`
	TotalAmount   float64                    `json:"totalAmount"`
	Asks          [QuotationDepth]PriceLevel `json:"asks"`
	Bids          [QuotationDepth]PriceLevel `json:"bids"`
}

// BestBid return top bid level, ok false for empty bid side
func (q *QuotationData) BestBid() (PriceLevel, bool) {
	return q.Bids[0], q.Bids[0].Volume > 0 && q.Bids[0].Price > 0
}

// BestAsk return top ask level, ok false for empty ask side
func (q *QuotationData) BestAsk() (PriceLevel, bool) {
	return q.Asks[0], q.Asks[0].Volume > 0 && q.Asks[0].Price > 0
}

// MidPrice return middle of top levels. Falls back to the one-sided top or last price.
func (q *QuotationData) MidPrice() float64 {
	bid, hasBid := q.BestBid()
	ask, hasAsk := q.BestAsk()
	switch {
	case hasBid && hasAsk:
		return (bid.Price + ask.Price) / 2
	case hasBid:
		return bid.Price
	case hasAsk:
		return ask.Price
	}
	return q.LastPrice
}

// QuotationDeal is one matched trade tick
type QuotationDeal struct {
	StockCode    string    `json:"stockCode"`
	Direction    TradeMode `json:"direction"`
	RecID        string    `json:"recId"`
	BuyRecID     string    `json:"buyRecId"`
	SellRecID    string    `json:"sellRecId"`
	DealPrice    float64   `json:"dealPrice"`
	DealCount    int       `json:"dealCount"`
	TradeType    string    `json:"tradeType"`
	DealTime     string    `json:"dealTime"`
	ExchangeCode string    `json:"exchangeCode"` // SH or SZ
}

// QuotationOrder is one order-by-order feed entry
type QuotationOrder struct {
	StockCode   string  `json:"stockCode"`
	RecID       string  `json:"recId"` // channel sequence starting at 1
	OrderPrice  float64 `json:"orderPrice"`
	OrderVolume int     `json:"orderVolume"`
	OrderCode   string  `json:"orderCode"` // 1 buy, 2 sell, G borrow, F lend
	OrderType   string  `json:"orderType"` // 1 market, 2 limit, U own best
	Time        string  `json:"time"`
}

// StaticData is reference data of a symbol, refreshed once a day at 09:05
type StaticData struct {
	StockCode      string  `json:"stockCode"`
	StockName      string  `json:"stockName"`
	PreClosePrice  float64 `json:"preClosePrice"`
	ListingDate    int     `json:"listingDate"`
	StaticDate     string  `json:"staticDate"`
	Pinyin         string  `json:"pinyin"`
	PriceUpLimit   float64 `json:"priceUpLimit"`
	PriceDownLimit float64 `json:"priceDownLimit"`
}

// InPriceLimits check price inside daily limit band. Unset band allows everything.
func (s *StaticData) InPriceLimits(price float64) bool {
	if s.PriceUpLimit > 0 && price > s.PriceUpLimit {
		return false
	}
	if s.PriceDownLimit > 0 && price < s.PriceDownLimit {
		return false
	}
	return true
}
