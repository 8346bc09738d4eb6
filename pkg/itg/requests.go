package itg

import (
	"math"
	"strconv"

	"github.com/pkg/errors"
)

var connTransports = map[string]bool{
	"tcp":       true,
	"http":      true,
	"websocket": true,
	"udp":       true,
}

func (c *ConnRequest) validate() error {
	if !connTransports[c.Transport] {
		return errors.New("unsupported connection transport: " + c.Transport)
	}
	if c.Host == "" {
		return errors.New("host is empty")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return errors.New("invalid port value: " + strconv.Itoa(c.Port))
	}
	return nil
}

// validate check credential presence only, role is decided by the vendor side
func (r *LoginRequest) validate() error {
	if r.UserID == "" {
		return errors.New("user id is empty")
	}
	if r.PasswordHash == "" {
		return errors.New("password hash is empty")
	}
	return nil
}

// Validate reject malformed order before it reaches the transport
func (o *LimitOrderRequest) Validate() error {
	if err := CheckOrderId(o.OrderID); err != nil {
		return err
	}
	if o.Symbol == "" {
		return errors.New("symbol is empty")
	}
	if math.IsNaN(o.Price) || math.IsInf(o.Price, 0) || o.Price <= 0 {
		return errors.New("bad price: " + strconv.FormatFloat(o.Price, 'f', -1, 64))
	}
	if math.IsNaN(o.Qty) || math.IsInf(o.Qty, 0) || o.Qty <= 0 {
		return errors.New("bad quantity: " + strconv.FormatFloat(o.Qty, 'f', -1, 64))
	}
	if !o.Side.IsValid() {
		return errors.New("bad side: " + o.Side.String())
	}
	if o.Exchange == 0 || !o.Exchange.IsValid() {
		return errors.New("bad exchange: " + strconv.Itoa(int(o.Exchange)))
	}
	return nil
}

// NewLimitOrder build request for "605199.SH" style ticker with generated order id.
// A ticker without market suffix leaves the exchange unset and fails Validate.
func NewLimitOrder(ticker string, price, qty float64, side TradeMode) LimitOrderRequest {
	symbol, market := SplitTicker(ticker)
	return LimitOrderRequest{
		OrderID:  OrderIdGenerate(),
		Symbol:   symbol,
		Price:    price,
		Qty:      qty,
		Side:     side,
		Exchange: market,
	}
}

type payloadLogin struct {
	LoginID string        `json:"loginId"`
	Domain  SessionDomain `json:"domain"`
	Conn    ConnRequest   `json:"conn"`
	Request LoginRequest  `json:"request"`
}

type payloadLogout struct {
	Domain SessionDomain `json:"domain"`
	UserID string        `json:"userId"`
}

type payloadOrder struct {
	UserID string            `json:"userId"`
	Order  LimitOrderRequest `json:"order"`
}

type payloadCancel struct {
	UserID  string `json:"userId"`
	OrderID string `json:"orderId"`
}

type payloadQuery struct {
	UserID    string    `json:"userId"`
	Kind      QueryKind `json:"kind"`
	RequestID string    `json:"requestId"`
}

type payloadSubscribe struct {
	UserID string      `json:"userId"`
	Symbol string      `json:"symbol"`
	Level  TickerLevel `json:"level"`
}

type payloadUnsubscribe struct {
	UserID string `json:"userId"`
	Symbol string `json:"symbol"`
}

type transportRequestLogin struct {
	Data  payloadLogin `json:"Login"`
	Token string       `json:"token,omitempty"`
}

type transportRequestLogout struct {
	Data  payloadLogout `json:"Logout"`
	Token string        `json:"token,omitempty"`
}

type transportRequestOrder struct {
	Data  payloadOrder `json:"PlaceOrder"`
	Token string       `json:"token,omitempty"`
}

type transportRequestCancel struct {
	Data  payloadCancel `json:"CancelOrder"`
	Token string        `json:"token,omitempty"`
}

type transportRequestQuery struct {
	Data  payloadQuery `json:"Query"`
	Token string       `json:"token,omitempty"`
}

type transportRequestSubscribe struct {
	Data  payloadSubscribe `json:"Subscribe"`
	Token string           `json:"token,omitempty"`
}

type transportRequestUnsubscribe struct {
	Data  payloadUnsubscribe `json:"Unsubscribe"`
	Token string             `json:"token,omitempty"`
}
