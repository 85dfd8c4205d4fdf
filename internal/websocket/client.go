package websocket

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	writeTimeout = 10 * time.Second
	idleTimeout  = 60 * time.Second
	pingInterval = idleTimeout * 9 / 10

	// subscribers never send payloads, only control frames
	readLimit = 512

	// events queued per subscriber before it is treated as stalled
	queueSize = 64
)

// Client is one subscriber on the change feed. It only receives events;
// anything the peer sends besides control frames is discarded.
type Client struct {
	id    string
	conn  *websocket.Conn
	hub   *Hub
	queue chan []byte

	mu     sync.RWMutex
	closed bool
	once   sync.Once
}

// NewClient wraps an upgraded connection. Call Serve to start delivery.
func NewClient(conn *websocket.Conn, hub *Hub) *Client {
	return &Client{
		id:    uuid.NewString(),
		conn:  conn,
		hub:   hub,
		queue: make(chan []byte, queueSize),
	}
}

func (c *Client) ID() string {
	return c.id
}

// Send queues an encoded event. A full queue means the subscriber has
// stalled and the event is refused.
func (c *Client) Send(data []byte) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return ErrClientClosed
	}
	select {
	case c.queue <- data:
		return nil
	default:
		return ErrClientClosed
	}
}

// Close stops delivery and closes the connection. Safe to call repeatedly.
func (c *Client) Close() error {
	var err error
	c.once.Do(func() {
		c.mu.Lock()
		c.closed = true
		close(c.queue)
		c.mu.Unlock()
		err = c.conn.Close()
	})
	return err
}

// Serve registers the client with the hub and runs the delivery loop in the
// background. The client unregisters itself when the peer goes away.
func (c *Client) Serve() {
	c.hub.Register(c)
	go c.deliver()
	go c.drain()
}

// drain consumes inbound frames so pongs and close frames are processed
func (c *Client) drain() {
	defer func() {
		c.hub.Unregister(c)
		c.Close()
	}()

	c.conn.SetReadLimit(readLimit)
	c.conn.SetReadDeadline(time.Now().Add(idleTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(idleTimeout))
	})

	for {
		if _, _, err := c.conn.NextReader(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Warn().Err(err).Str("client_id", c.id).Msg("Subscriber dropped")
			}
			return
		}
	}
}

func (c *Client) deliver() {
	ping := time.NewTicker(pingInterval)
	defer func() {
		ping.Stop()
		c.Close()
	}()

	for {
		select {
		case data, ok := <-c.queue:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Warn().Err(err).Str("client_id", c.id).Msg("Failed to deliver event")
				return
			}
		case <-ping.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				return
			}
		}
	}
}
