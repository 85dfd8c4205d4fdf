package websocket

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type recordingPublisher struct {
	events []Event
}

func (r *recordingPublisher) Publish(event Event) {
	r.events = append(r.events, event)
}

func TestHub_Implements_EventPublisher(t *testing.T) {
	var _ EventPublisher = (*Hub)(nil)
}

func TestHub_Publish(t *testing.T) {
	hub := NewHub()
	client := newMockClient("client-1")
	hub.Register(client)

	var publisher EventPublisher = hub
	publisher.Publish(ExpenseCreated(map[string]string{"id": "42"}))

	assert.Eventually(t, func() bool {
		return len(client.GetMessages()) == 1
	}, time.Second, 5*time.Millisecond)
}

func TestMultiPublisher_FansOut(t *testing.T) {
	first := &recordingPublisher{}
	second := &recordingPublisher{}
	multi := MultiPublisher{first, second}

	multi.Publish(ExpenseUpdated(map[string]string{"id": "1"}))

	assert.Len(t, first.events, 1)
	assert.Len(t, second.events, 1)
	assert.Equal(t, "expense.updated", second.events[0].Type)
}
