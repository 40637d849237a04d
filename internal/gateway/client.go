package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/allbin/kiosk-serial/internal/eventbus"
)

var ErrClientClosed = errors.New("gateway: client closed")

// Client is a gateway connection used by the CLI. Calls may be issued
// concurrently; events are delivered on Events until the connection ends.
type Client struct {
	ws     *websocket.Conn
	nextID atomic.Uint64
	events chan eventbus.Event

	mu      sync.Mutex
	pending map[uint64]chan Frame
	err     error
	done    chan struct{}
}

// Dial connects to the gateway at addr (host:port).
func Dial(ctx context.Context, addr, token string) (*Client, error) {
	u := url.URL{Scheme: "ws", Host: addr, Path: "/ws"}
	if token != "" {
		u.RawQuery = url.Values{"token": {token}}.Encode()
	}
	ws, _, err := websocket.Dial(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("dial gateway %s: %w", addr, err)
	}

	c := &Client{
		ws:      ws,
		events:  make(chan eventbus.Event, sendQueue),
		pending: make(map[uint64]chan Frame),
		done:    make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

// Events delivers forwarded device events. It is closed when the
// connection ends. Events are dropped while nobody is receiving.
func (c *Client) Events() <-chan eventbus.Event { return c.events }

// Call invokes method with params and decodes the result into out, which
// may be nil.
func (c *Client) Call(ctx context.Context, method string, params, out any) error {
	req := Frame{Type: FrameTypeRequest, ID: c.nextID.Add(1), Method: method}
	if params != nil {
		raw, err := json.Marshal(params)
		if err != nil {
			return fmt.Errorf("encode %s params: %w", method, err)
		}
		req.Payload = raw
	}

	respCh := make(chan Frame, 1)
	c.mu.Lock()
	if c.err != nil {
		c.mu.Unlock()
		return c.err
	}
	c.pending[req.ID] = respCh
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pending, req.ID)
		c.mu.Unlock()
	}()

	if err := wsjson.Write(ctx, c.ws, req); err != nil {
		return fmt.Errorf("send %s: %w", method, err)
	}

	select {
	case resp := <-respCh:
		if resp.Error != "" {
			return fmt.Errorf("%s: %s", method, resp.Error)
		}
		if out == nil || len(resp.Payload) == 0 {
			return nil
		}
		return json.Unmarshal(resp.Payload, out)
	case <-c.done:
		return c.closedErr()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close ends the connection.
func (c *Client) Close() error {
	return c.ws.Close(websocket.StatusNormalClosure, "")
}

func (c *Client) closedErr() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *Client) readLoop() {
	defer close(c.events)
	for {
		var frame Frame
		if err := wsjson.Read(context.Background(), c.ws, &frame); err != nil {
			c.mu.Lock()
			c.err = fmt.Errorf("%w: %v", ErrClientClosed, err)
			c.mu.Unlock()
			close(c.done)
			return
		}

		switch frame.Type {
		case FrameTypeResponse:
			c.mu.Lock()
			ch, ok := c.pending[frame.ID]
			c.mu.Unlock()
			if ok {
				ch <- frame
			}
		case FrameTypeEvent:
			var ev eventbus.Event
			if err := json.Unmarshal(frame.Payload, &ev); err != nil {
				continue
			}
			select {
			case c.events <- ev:
			default:
			}
		}
	}
}
