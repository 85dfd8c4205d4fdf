package websocket

// EventPublisher defines the interface for publishing change events
type EventPublisher interface {
	// Publish sends an event to every subscriber
	Publish(event Event)
}

// Ensure Hub implements EventPublisher
var _ EventPublisher = (*Hub)(nil)

// Publish implements EventPublisher by broadcasting to all clients
func (h *Hub) Publish(event Event) {
	h.Broadcast(event)
}

// MultiPublisher forwards every event to each of its publishers in order
type MultiPublisher []EventPublisher

// Publish implements EventPublisher
func (m MultiPublisher) Publish(event Event) {
	for _, p := range m {
		p.Publish(event)
	}
}
