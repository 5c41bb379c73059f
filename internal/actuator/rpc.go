package actuator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gorilla/websocket"
)

var (
	// ErrNotConnected is returned while the remote end is unreachable or
	// the connection dropped mid-request.
	ErrNotConnected = errors.New("not connected")
	// ErrRequestFailed is returned when the remote end answered with an
	// error status.
	ErrRequestFailed = errors.New("request failed")
)

const (
	dialTimeout      = 5 * time.Second
	writeTimeout     = 5 * time.Second
	handshakeTimeout = 5 * time.Second
	requestTimeout   = 5 * time.Second
)

// handshakeFunc runs on a fresh connection before the read loop starts.
type handshakeFunc func(conn *websocket.Conn) error

// matchFunc extracts the request id a frame answers. Frames that are not
// responses return ok=false and are dropped.
type matchFunc func(data []byte) (id string, ok bool)

type link struct {
	ws   *websocket.Conn
	done chan struct{}
}

// rpcConn is a request/response client over a single websocket. It dials
// lazily on the first call and, after a failed dial, waits out an
// exponential backoff before trying again, so a missing peer costs the poll
// loop one cheap check per cycle.
type rpcConn struct {
	name      string
	url       string
	dialer    *websocket.Dialer
	handshake handshakeFunc
	match     matchFunc
	now       func() time.Time

	mu       sync.Mutex
	link     *link
	pending  map[string]chan []byte
	bo       *backoff.ExponentialBackOff
	nextDial time.Time
	closed   bool

	writeMu sync.Mutex
}

func newRPCConn(name, url string, handshake handshakeFunc, match matchFunc) *rpcConn {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = time.Second
	bo.MaxInterval = 30 * time.Second
	bo.Multiplier = 2
	return &rpcConn{
		name:      name,
		url:       url,
		dialer:    &websocket.Dialer{HandshakeTimeout: dialTimeout},
		handshake: handshake,
		match:     match,
		now:       time.Now,
		pending:   make(map[string]chan []byte),
		bo:        bo,
	}
}

// Connected reports whether a connection is currently up.
func (c *rpcConn) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.link != nil
}

func (c *rpcConn) ensure(ctx context.Context) (*link, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, fmt.Errorf("%s: %w: closed", c.name, ErrNotConnected)
	}
	if c.link != nil {
		return c.link, nil
	}
	if now := c.now(); now.Before(c.nextDial) {
		return nil, fmt.Errorf("%s: %w: retry in %v", c.name, ErrNotConnected, c.nextDial.Sub(now).Round(time.Millisecond))
	}

	ws, _, err := c.dialer.DialContext(ctx, c.url, nil)
	if err == nil && c.handshake != nil {
		ws.SetReadDeadline(time.Now().Add(handshakeTimeout))
		if err = c.handshake(ws); err != nil {
			ws.Close()
		}
		ws.SetReadDeadline(time.Time{})
	}
	if err != nil {
		delay := c.bo.NextBackOff()
		c.nextDial = c.now().Add(delay)
		log.Printf("[%s] connect %s failed: %v (retry in %v)", c.name, c.url, err, delay.Round(time.Millisecond))
		return nil, fmt.Errorf("%s: %w: %v", c.name, ErrNotConnected, err)
	}

	c.bo.Reset()
	c.nextDial = time.Time{}
	l := &link{ws: ws, done: make(chan struct{})}
	c.link = l
	log.Printf("[%s] connected to %s", c.name, c.url)
	go c.readLoop(l)
	return l, nil
}

func (c *rpcConn) readLoop(l *link) {
	defer c.drop(l)
	for {
		_, data, err := l.ws.ReadMessage()
		if err != nil {
			c.mu.Lock()
			closed := c.closed
			c.mu.Unlock()
			if !closed {
				log.Printf("[%s] connection lost: %v", c.name, err)
			}
			return
		}
		id, ok := c.match(data)
		if !ok {
			continue
		}
		c.mu.Lock()
		ch, found := c.pending[id]
		delete(c.pending, id)
		c.mu.Unlock()
		if found {
			ch <- data
		}
	}
}

// drop forgets a dead connection. Pending callers see l.done close.
func (c *rpcConn) drop(l *link) {
	c.mu.Lock()
	if c.link == l {
		c.link = nil
	}
	c.mu.Unlock()
	l.ws.Close()
	close(l.done)
}

// call sends req and waits for the frame answering id.
func (c *rpcConn) call(ctx context.Context, id string, req any) ([]byte, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, requestTimeout)
		defer cancel()
	}

	l, err := c.ensure(ctx)
	if err != nil {
		return nil, err
	}

	ch := make(chan []byte, 1)
	c.mu.Lock()
	c.pending[id] = ch
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	c.writeMu.Lock()
	l.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
	err = l.ws.WriteJSON(req)
	c.writeMu.Unlock()
	if err != nil {
		l.ws.Close() // readLoop notices and drops the link
		return nil, fmt.Errorf("%s: %w: write: %v", c.name, ErrNotConnected, err)
	}

	select {
	case data := <-ch:
		return data, nil
	case <-l.done:
		return nil, fmt.Errorf("%s: %w: connection closed", c.name, ErrNotConnected)
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", c.name, ctx.Err())
	}
}

func (c *rpcConn) Close() error {
	c.mu.Lock()
	c.closed = true
	l := c.link
	c.mu.Unlock()
	if l == nil {
		return nil
	}
	c.writeMu.Lock()
	l.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
	_ = l.ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.writeMu.Unlock()
	err := l.ws.Close()
	<-l.done
	return err
}
