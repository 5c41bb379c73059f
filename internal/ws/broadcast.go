package ws

import (
	"encoding/json"
	"errors"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Th0rstenf/Streamerbot-RocksmithSceneSwitcher/internal/session"
	"github.com/gorilla/websocket"
)

// ErrTooManyConnections is returned by AddClient when maxConns is reached.
var ErrTooManyConnections = errors.New("too many websocket connections")

const clientWriteTimeout = 5 * time.Second

type client struct {
	conn *websocket.Conn
	b    *Broadcaster
	send chan []byte
	once sync.Once
}

func newClient(b *Broadcaster, conn *websocket.Conn) *client {
	c := &client{
		conn: conn,
		b:    b,
		send: make(chan []byte, 64),
	}
	go c.writePump()
	return c
}

func (c *client) writePump() {
	defer c.conn.Close()
	for msg := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(clientWriteTimeout))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			c.b.RemoveClient(c)
			return
		}
	}
}

func (c *client) close() {
	c.once.Do(func() { close(c.send) })
}

// Broadcaster fans session events out to websocket clients. Var changes are
// coalesced for one throttle window into a single delta; commands go out
// immediately and in order.
type Broadcaster struct {
	mu       sync.RWMutex
	clients  map[*client]bool
	store    *session.Store
	maxConns int
	seq      atomic.Uint64

	throttle       time.Duration
	snapshotTicker *time.Ticker
	stopCh         chan struct{}
	stopOnce       sync.Once

	flushMu     sync.Mutex
	pendingVars map[string]any
	pendingView *session.View
	flushTimer  *time.Timer
}

// NewBroadcaster starts the periodic snapshot loop. maxConns <= 0 means no
// limit.
func NewBroadcaster(store *session.Store, throttle, snapshotInterval time.Duration, maxConns int) *Broadcaster {
	if snapshotInterval <= 0 {
		snapshotInterval = 5 * time.Second
	}
	b := &Broadcaster{
		clients:  make(map[*client]bool),
		store:    store,
		maxConns: maxConns,
		throttle: throttle,
		stopCh:   make(chan struct{}),
	}

	b.snapshotTicker = time.NewTicker(snapshotInterval)
	go b.snapshotLoop()

	return b
}

func (b *Broadcaster) Stop() {
	b.stopOnce.Do(func() {
		b.snapshotTicker.Stop()
		close(b.stopCh)

		b.flushMu.Lock()
		if b.flushTimer != nil {
			b.flushTimer.Stop()
			b.flushTimer = nil
		}
		b.flushMu.Unlock()

		b.mu.Lock()
		for c := range b.clients {
			delete(b.clients, c)
			c.close()
		}
		b.mu.Unlock()
	})
}

func (b *Broadcaster) AddClient(conn *websocket.Conn) (*client, error) {
	data, err := b.encode(MsgSnapshot, b.snapshot())

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.maxConns > 0 && len(b.clients) >= b.maxConns {
		return nil, ErrTooManyConnections
	}
	c := newClient(b, conn)
	b.clients[c] = true
	if err == nil {
		c.send <- data // fresh buffer, cannot block
	}
	return c, nil
}

func (b *Broadcaster) RemoveClient(c *client) {
	b.mu.Lock()
	if _, ok := b.clients[c]; ok {
		delete(b.clients, c)
		c.close()
	}
	b.mu.Unlock()
}

// Publish handles one event from the poll loop.
func (b *Broadcaster) Publish(ev session.Event) {
	switch ev.Type {
	case session.EventReset:
		b.flushMu.Lock()
		b.pendingVars = nil
		b.pendingView = nil
		b.flushMu.Unlock()
		b.broadcast(MsgReset, b.snapshot())
		return
	}

	for _, cmd := range ev.Commands {
		b.broadcast(MsgCommand, CommandPayload{Kind: cmd.Kind, Name: cmd.Name})
	}
	b.queueDelta(ev.View, ev.Changed)
}

func (b *Broadcaster) queueDelta(view session.View, changed []session.Var) {
	b.flushMu.Lock()
	defer b.flushMu.Unlock()

	if b.pendingVars == nil {
		b.pendingVars = make(map[string]any)
	}
	for _, v := range changed {
		b.pendingVars[v.Key] = v.Value
	}
	b.pendingView = &view

	if b.flushTimer == nil {
		b.flushTimer = time.AfterFunc(b.throttle, b.flush)
	}
}

// QueueHealth sends a health report to every client.
func (b *Broadcaster) QueueHealth(h HealthPayload) {
	h.Clients = b.ClientCount()
	b.broadcast(MsgHealth, h)
}

func (b *Broadcaster) flush() {
	b.flushMu.Lock()
	vars := b.pendingVars
	view := b.pendingView
	b.pendingVars = nil
	b.pendingView = nil
	b.flushTimer = nil
	b.flushMu.Unlock()

	if view == nil {
		return
	}

	b.broadcast(MsgDelta, DeltaPayload{View: *view, Vars: vars})
}

func (b *Broadcaster) snapshot() SnapshotPayload {
	return SnapshotPayload{
		View: b.store.View(),
		Vars: b.store.Vars(),
	}
}

func (b *Broadcaster) snapshotLoop() {
	for {
		select {
		case <-b.stopCh:
			return
		case <-b.snapshotTicker.C:
			if b.ClientCount() == 0 {
				continue
			}
			b.broadcast(MsgSnapshot, b.snapshot())
		}
	}
}

func (b *Broadcaster) encode(typ MessageType, payload any) ([]byte, error) {
	data, err := json.Marshal(WSMessage{Type: typ, Seq: b.seq.Add(1), Payload: payload})
	if err != nil {
		log.Printf("[ws] broadcast marshal error: %v", err)
	}
	return data, err
}

func (b *Broadcaster) broadcast(typ MessageType, payload any) {
	data, err := b.encode(typ, payload)
	if err != nil {
		return
	}

	// Sends happen under the read lock so RemoveClient cannot close a
	// channel mid-send.
	var slow []*client
	b.mu.RLock()
	for c := range b.clients {
		select {
		case c.send <- data:
		default:
			slow = append(slow, c)
		}
	}
	b.mu.RUnlock()

	for _, c := range slow {
		// Client can't keep up, disconnect it
		log.Printf("[ws] client too slow, disconnecting")
		b.RemoveClient(c)
	}
}

func (b *Broadcaster) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}
