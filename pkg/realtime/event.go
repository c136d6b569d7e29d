package realtime

// Event types pushed over the live channel.
const (
	TypeInit  = "init"
	TypeAlert = "alert"
	TypeState = "state"
)

// Event is the envelope delivered to subscribers.
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// Observer receives bus activity. Implementations must be safe for concurrent use.
type Observer interface {
	Subscribers(n int)
	Published(eventType string)
	DeliveryFailed(reason string)
}

type nopObserver struct{}

func (nopObserver) Subscribers(int)       {}
func (nopObserver) Published(string)      {}
func (nopObserver) DeliveryFailed(string) {}

// Failure reasons reported to the Observer.
const (
	ReasonQueueFull = "queue_full"
	ReasonStalled   = "stalled"
	ReasonClosed    = "closed"
	ReasonWrite     = "write_error"
	ReasonPing      = "ping_error"
)
