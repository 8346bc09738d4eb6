package itg

// xsubConnecter carries events from the gateway
type xsubConnecter interface {

	// IsReady inform about ready transport status
	IsReady() bool

	// Ready ready transport status
	Ready() chan bool

	// Subscribe for topic events, "user_<id>" or "tick_<symbol>"
	Subscribe(topic string) error

	UnSubscribe(topic string) error

	// Reports decoded events and login replies
	Reports() chan interface{}

	GetAddr() string

	Close() error
}
