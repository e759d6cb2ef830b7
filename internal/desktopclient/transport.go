package desktopclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = 54 * time.Second
	requestTimeout = 5 * time.Second
)

// transportState mirrors the terminal states gorilla/websocket can end up
// in; the Desktop Client requests a fresh transport before reconnecting
// whenever it observes one of these.
type transportState int

const (
	transportOpen transportState = iota
	transportClosed
	transportAborted
	transportCloseReceived
	transportCloseSent
)

// transport is a single full-duplex connection to the avatar application,
// with request/response correlation by requestID. One transport serves one
// logical connection; on any terminal condition the Desktop Client discards
// it and opens a new one rather than trying to resurrect it.
type transport struct {
	conn   *websocket.Conn
	logger logger

	mu      sync.Mutex
	state   transportState
	pending map[string]chan envelope

	writeMu sync.Mutex
}

type logger interface {
	Debug(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
}

// requester is the subset of *transport that paramRegistrar needs, split
// out so tests can exercise parameter sync against a stub instead of a
// real WebSocket connection.
type requester interface {
	Request(ctx context.Context, messageType string, data interface{}) (envelope, error)
}

// dialTransport opens a WebSocket connection to host:port and starts its
// read pump.
func dialTransport(ctx context.Context, host string, port int, log logger) (*transport, error) {
	u := url.URL{Scheme: "ws", Host: fmt.Sprintf("%s:%d", host, port), Path: "/"}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, err
	}

	t := &transport{
		conn:    conn,
		logger:  log,
		pending: make(map[string]chan envelope),
	}

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	go t.readPump()
	go t.pingLoop()

	return t, nil
}

func (t *transport) readPump() {
	for {
		_, data, err := t.conn.ReadMessage()
		if err != nil {
			t.markTerminal(err)
			return
		}

		var env envelope
		if err := json.Unmarshal(data, &env); err != nil {
			t.logger.Warn("failed to decode desktop link message", "error", err)
			continue
		}

		t.mu.Lock()
		ch, ok := t.pending[env.RequestID]
		if ok {
			delete(t.pending, env.RequestID)
		}
		t.mu.Unlock()

		if ok {
			ch <- env
		}
	}
}

func (t *transport) pingLoop() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for range ticker.C {
		t.writeMu.Lock()
		t.conn.SetWriteDeadline(time.Now().Add(writeWait))
		err := t.conn.WriteMessage(websocket.PingMessage, nil)
		t.writeMu.Unlock()
		if err != nil {
			t.markTerminal(err)
			return
		}
		if t.State() != transportOpen {
			return
		}
	}
}

func (t *transport) markTerminal(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != transportOpen {
		return
	}
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		t.state = transportCloseReceived
	} else {
		t.state = transportAborted
	}
	for _, ch := range t.pending {
		close(ch)
	}
	t.pending = make(map[string]chan envelope)
}

// State reports the transport's current terminal/open status.
func (t *transport) State() transportState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// IsTerminal reports whether the transport must be discarded before the
// next reconnect attempt.
func (t *transport) IsTerminal() bool {
	s := t.State()
	return s != transportOpen
}

// Request sends a messageType request carrying data under a fresh request
// ID and blocks for the correlated response, up to requestTimeout.
func (t *transport) Request(ctx context.Context, messageType string, data interface{}) (envelope, error) {
	requestID := uuid.New().String()
	req, err := newRequest(requestID, messageType, data)
	if err != nil {
		return envelope{}, err
	}

	respCh := make(chan envelope, 1)
	t.mu.Lock()
	if t.state != transportOpen {
		t.mu.Unlock()
		return envelope{}, fmt.Errorf("transport not open")
	}
	t.pending[requestID] = respCh
	t.mu.Unlock()

	payload, err := json.Marshal(req)
	if err != nil {
		return envelope{}, err
	}

	t.writeMu.Lock()
	t.conn.SetWriteDeadline(time.Now().Add(writeWait))
	err = t.conn.WriteMessage(websocket.TextMessage, payload)
	t.writeMu.Unlock()
	if err != nil {
		t.markTerminal(err)
		return envelope{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	select {
	case resp, ok := <-respCh:
		if !ok {
			return envelope{}, fmt.Errorf("transport closed while awaiting response")
		}
		if resp.MessageType == messageTypeAPIError {
			var apiErr apiErrorData
			_ = json.Unmarshal(resp.Data, &apiErr)
			return envelope{}, fmt.Errorf("desktop link error %d: %s", apiErr.ErrorID, apiErr.Message)
		}
		return resp, nil
	case <-ctx.Done():
		return envelope{}, ctx.Err()
	}
}

// Close requests a graceful close and transitions to transportClosed.
func (t *transport) Close() error {
	t.writeMu.Lock()
	t.conn.SetWriteDeadline(time.Now().Add(writeWait))
	err := t.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	t.writeMu.Unlock()

	t.mu.Lock()
	t.state = transportClosed
	t.mu.Unlock()

	closeErr := t.conn.Close()
	if err != nil {
		return err
	}
	return closeErr
}
