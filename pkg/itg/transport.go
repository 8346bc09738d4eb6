package itg

import "context"

// Transport carries commands to the vendor side and brings events back.
// Every event sent to Events() is one of the *...Event types.
type Transport interface {

	// Login run handshake and authentication for the domain, blocks until done
	Login(ctx context.Context, domain SessionDomain, conn ConnRequest, req LoginRequest) (MsgResponse, error)

	// Logout close session of the domain
	Logout(domain SessionDomain) error

	SendOrder(order LimitOrderRequest) error

	SendCancel(orderID string) error

	// SendQuery request paginated stream terminated by isLast event
	SendQuery(kind QueryKind, requestID string) error

	Subscribe(symbol string, level TickerLevel) error

	Unsubscribe(symbol string) error

	Events() chan interface{}

	// IsReady inform about ready transport status
	IsReady() bool

	// Ready ready transport status changes
	Ready() chan bool

	Close() error
}
