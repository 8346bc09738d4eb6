package itg

// pushConnecter carries commands to the gateway
type pushConnecter interface {

	// SendLogin send login handshake request for domain
	SendLogin(login payloadLogin) error

	SendLogout(logout payloadLogout) error

	// SendOrder send limit order request over transport
	SendOrder(order payloadOrder) error

	// SendCancel send cancel order request over transport
	SendCancel(cancel payloadCancel) error

	SendQuery(query payloadQuery) error

	SendSubscribe(sub payloadSubscribe) error

	SendUnsubscribe(unsub payloadUnsubscribe) error

	// IsReady inform about ready transport status
	IsReady() bool

	// Ready ready transport status
	Ready() chan bool

	Close() error
}
