package core

// DefaultEventBuffer is the outbound queue length of a client.
const DefaultEventBuffer = 32

// Client is a live connection as seen by the core layer.
// The rooms set is owned by the hub goroutine.
type Client struct {
	ID     string
	Events chan *Event
	rooms  map[string]struct{}
}

// NewClient constructs a client with an outbound queue of the given size.
func NewClient(id string, buffer int) *Client {
	if buffer <= 0 {
		buffer = DefaultEventBuffer
	}
	return &Client{
		ID:     id,
		Events: make(chan *Event, buffer),
		rooms:  make(map[string]struct{}),
	}
}
