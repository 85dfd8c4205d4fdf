// Package client is a typed HTTP client for the expense Store.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dafibh/spendbook/internal/domain"
	"github.com/dafibh/spendbook/internal/websocket"
	ws "github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// ErrTransport marks failures that are not a domain answer from the Store:
// network errors, unexpected statuses and undecodable bodies.
var ErrTransport = errors.New("store request failed")

const defaultTimeout = 10 * time.Second

// Client talks to the Store over HTTP
type Client struct {
	baseURL    string
	httpClient *http.Client
	dialer     *ws.Dialer
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// New creates a Client for the Store at baseURL
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
		dialer:     ws.DefaultDialer,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// problem mirrors the Store's RFC 7807 error body
type problem struct {
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail"`
	Errors []struct {
		Field   string `json:"field"`
		Message string `json:"message"`
	} `json:"errors"`
}

// List fetches the full record set in Store order
func (c *Client) List(ctx context.Context) ([]domain.Expense, error) {
	var expenses []domain.Expense
	if err := c.do(ctx, http.MethodGet, "/expenses", nil, &expenses); err != nil {
		return nil, err
	}
	if expenses == nil {
		expenses = []domain.Expense{}
	}
	return expenses, nil
}

// Create sends a full record and returns the Store's echo of it
func (c *Client) Create(ctx context.Context, expense domain.Expense) (domain.Expense, error) {
	var created domain.Expense
	err := c.do(ctx, http.MethodPost, "/expenses", expense, &created)
	return created, err
}

// Update sends a partial record for id and returns the merged result
func (c *Client) Update(ctx context.Context, id string, patch domain.ExpensePatch) (domain.Expense, error) {
	var updated domain.Expense
	err := c.do(ctx, http.MethodPut, "/expenses/"+url.PathEscape(id), patch, &updated)
	return updated, err
}

// Delete removes every record with id. Unknown ids succeed.
func (c *Client) Delete(ctx context.Context, id string) error {
	var result struct {
		Success bool `json:"success"`
	}
	if err := c.do(ctx, http.MethodDelete, "/expenses/"+url.PathEscape(id), nil, &result); err != nil {
		return err
	}
	if !result.Success {
		return fmt.Errorf("%w: delete was not acknowledged", ErrTransport)
	}
	return nil
}

// Watch subscribes to the Store's change feed and calls fn for every event
// until ctx is cancelled or the connection drops.
func (c *Client) Watch(ctx context.Context, fn func(websocket.Event)) error {
	wsURL, err := c.websocketURL()
	if err != nil {
		return err
	}

	conn, _, err := c.dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("%w: dial change feed: %v", ErrTransport, err)
	}
	defer conn.Close()

	watchCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		<-watchCtx.Done()
		_ = conn.WriteControl(ws.CloseMessage, ws.FormatCloseMessage(ws.CloseNormalClosure, ""), time.Now().Add(time.Second))
		conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("%w: read change feed: %v", ErrTransport, err)
		}
		event, err := websocket.ParseEvent(data)
		if err != nil {
			log.Warn().Err(err).Msg("Skipping malformed change event")
			continue
		}
		fn(event)
	}
}

func (c *Client) websocketURL() (string, error) {
	u, err := url.Parse(c.baseURL + "/ws")
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTransport, err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	return u.String(), nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%w: encode request: %v", ErrTransport, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransport, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", ErrTransport, method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: read response: %v", ErrTransport, err)
	}

	if resp.StatusCode != http.StatusOK {
		return decodeError(resp.StatusCode, data)
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("%w: decode response: %v", ErrTransport, err)
		}
	}
	return nil
}

func decodeError(status int, data []byte) error {
	var p problem
	_ = json.Unmarshal(data, &p)

	switch status {
	case http.StatusBadRequest:
		if len(p.Errors) > 0 {
			fields := make([]domain.FieldError, len(p.Errors))
			for i, e := range p.Errors {
				fields[i] = domain.FieldError{Field: e.Field, Message: e.Message}
			}
			return &domain.InvalidFieldsError{Fields: fields}
		}
		return fmt.Errorf("%w: %s", domain.ErrInvalidInput, detailOr(p, "invalid expense data"))
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", domain.ErrNotFound, detailOr(p, "expense not found"))
	case http.StatusConflict:
		return fmt.Errorf("%w: %s", domain.ErrAlreadyExists, detailOr(p, "duplicate id"))
	}
	return fmt.Errorf("%w: unexpected status %d: %s", ErrTransport, status, detailOr(p, http.StatusText(status)))
}

func detailOr(p problem, fallback string) string {
	if p.Detail != "" {
		return p.Detail
	}
	return fallback
}
