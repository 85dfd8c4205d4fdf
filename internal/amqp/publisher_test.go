package amqp

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/dafibh/spendbook/internal/websocket"
	"github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type publishCall struct {
	exchange string
	key      string
	msg      amqp091.Publishing
}

type fakeChannel struct {
	calls  []publishCall
	err    error
	closed bool
}

func (f *fakeChannel) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error {
	if f.err != nil {
		return f.err
	}
	f.calls = append(f.calls, publishCall{exchange: exchange, key: key, msg: msg})
	return nil
}

func (f *fakeChannel) Close() error {
	f.closed = true
	return nil
}

func TestBuildPublishing(t *testing.T) {
	event := websocket.ExpenseCreated(map[string]string{"id": "abc"})

	msg, err := buildPublishing(event)

	require.NoError(t, err)
	assert.Equal(t, "application/json", msg.ContentType)
	assert.Equal(t, amqp091.Persistent, msg.DeliveryMode)
	assert.Equal(t, "expense.created", msg.Type)
	assert.Equal(t, event.Timestamp, msg.Timestamp)

	var decoded websocket.Event
	require.NoError(t, json.Unmarshal(msg.Body, &decoded))
	assert.Equal(t, "expense.created", decoded.Type)
}

func TestPublisher_RoutesByEventType(t *testing.T) {
	ch := &fakeChannel{}
	p := &Publisher{channel: ch, exchange: "spendbook"}

	p.Publish(websocket.ExpenseUpdated(map[string]string{"id": "1"}))
	p.Publish(websocket.ExpenseDeleted(map[string]string{"id": "1"}))

	require.Len(t, ch.calls, 2)
	assert.Equal(t, "spendbook", ch.calls[0].exchange)
	assert.Equal(t, "expense.updated", ch.calls[0].key)
	assert.Equal(t, "expense.deleted", ch.calls[1].key)
}

func TestPublisher_SwallowsBrokerErrors(t *testing.T) {
	ch := &fakeChannel{err: errors.New("channel closed")}
	p := &Publisher{channel: ch, exchange: "spendbook"}

	assert.NotPanics(t, func() {
		p.Publish(websocket.ExpenseCreated(map[string]string{"id": "1"}))
	})
	assert.Empty(t, ch.calls)
}

func TestPublisher_Close(t *testing.T) {
	ch := &fakeChannel{}
	p := &Publisher{channel: ch, exchange: "spendbook"}

	require.NoError(t, p.Close())
	assert.True(t, ch.closed)
}
