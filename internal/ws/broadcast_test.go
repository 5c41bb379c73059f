package ws

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Th0rstenf/Streamerbot-RocksmithSceneSwitcher/internal/session"
	"github.com/gorilla/websocket"
)

// connectPair creates a test HTTP server that upgrades to WebSocket and
// returns both ends. The caller must close the server.
func connectPair(t *testing.T) (*httptest.Server, *websocket.Conn, *websocket.Conn) {
	t.Helper()

	connCh := make(chan *websocket.Conn, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		connCh <- c
	}))

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	clientConn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		srv.Close()
		t.Fatalf("dial: %v", err)
	}

	select {
	case serverConn := <-connCh:
		return srv, serverConn, clientConn
	case <-time.After(2 * time.Second):
		srv.Close()
		t.Fatal("timed out waiting for server-side WebSocket connection")
		return nil, nil, nil
	}
}

// dialTestWS returns only the server-side connection.
func dialTestWS(t *testing.T) (*httptest.Server, *websocket.Conn) {
	t.Helper()
	srv, serverConn, clientConn := connectPair(t)
	_ = clientConn.Close()
	return srv, serverConn
}

type received struct {
	Type    MessageType     `json:"type"`
	Seq     uint64          `json:"seq"`
	Payload json.RawMessage `json:"payload"`
}

func readMsg(t *testing.T, conn *websocket.Conn) received {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg received
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	return msg
}

func TestAddClientSendsSnapshot(t *testing.T) {
	store := session.NewStore()
	store.Publish([]session.Var{{Key: "SongName", Value: "Test Song"}})
	store.SetView(session.View{Scene: "RocksmithBigCam", Cycles: 4})

	b := NewBroadcaster(store, 10*time.Millisecond, time.Hour, 0)
	defer b.Stop()

	srv, serverConn, clientConn := connectPair(t)
	defer srv.Close()
	defer clientConn.Close()

	if _, err := b.AddClient(serverConn); err != nil {
		t.Fatalf("AddClient: %v", err)
	}

	msg := readMsg(t, clientConn)
	if msg.Type != MsgSnapshot {
		t.Fatalf("first message type = %q, want snapshot", msg.Type)
	}
	var p SnapshotPayload
	if err := json.Unmarshal(msg.Payload, &p); err != nil {
		t.Fatal(err)
	}
	if p.View.Scene != "RocksmithBigCam" || p.View.Cycles != 4 {
		t.Errorf("snapshot view = %+v", p.View)
	}
	if p.Vars["SongName"] != "Test Song" {
		t.Errorf("snapshot vars = %v", p.Vars)
	}
}

func TestPublishCommandsThenCoalescedDelta(t *testing.T) {
	b := NewBroadcaster(session.NewStore(), 50*time.Millisecond, time.Hour, 0)
	defer b.Stop()

	srv, serverConn, clientConn := connectPair(t)
	defer srv.Close()
	defer clientConn.Close()
	if _, err := b.AddClient(serverConn); err != nil {
		t.Fatal(err)
	}
	readMsg(t, clientConn) // initial snapshot

	b.Publish(session.Event{
		Type:     session.EventCycle,
		View:     session.View{Cycles: 1},
		Changed:  []session.Var{{Key: "GameStage", Value: "in_song"}, {Key: "SongName", Value: "A"}},
		Commands: []session.Command{{Kind: session.CmdRunAction, Name: "songStart"}, {Kind: session.CmdSwitchScene, Name: "RocksmithInGame"}},
	})
	b.Publish(session.Event{
		Type:    session.EventCycle,
		View:    session.View{Cycles: 2},
		Changed: []session.Var{{Key: "SongName", Value: "B"}},
	})

	first := readMsg(t, clientConn)
	second := readMsg(t, clientConn)
	for i, msg := range []received{first, second} {
		if msg.Type != MsgCommand {
			t.Fatalf("message %d type = %q, want command", i, msg.Type)
		}
	}
	var cmd CommandPayload
	json.Unmarshal(first.Payload, &cmd)
	if cmd.Name != "songStart" || cmd.Kind != session.CmdRunAction {
		t.Errorf("first command = %+v", cmd)
	}
	if second.Seq <= first.Seq {
		t.Errorf("seq not increasing: %d then %d", first.Seq, second.Seq)
	}

	delta := readMsg(t, clientConn)
	if delta.Type != MsgDelta {
		t.Fatalf("third message type = %q, want delta", delta.Type)
	}
	var p DeltaPayload
	if err := json.Unmarshal(delta.Payload, &p); err != nil {
		t.Fatal(err)
	}
	if p.View.Cycles != 2 {
		t.Errorf("delta view cycles = %d, want latest 2", p.View.Cycles)
	}
	if p.Vars["SongName"] != "B" || p.Vars["GameStage"] != "in_song" {
		t.Errorf("delta vars = %v", p.Vars)
	}
}

func TestPublishReset(t *testing.T) {
	b := NewBroadcaster(session.NewStore(), time.Hour, time.Hour, 0)
	defer b.Stop()

	srv, serverConn, clientConn := connectPair(t)
	defer srv.Close()
	defer clientConn.Close()
	if _, err := b.AddClient(serverConn); err != nil {
		t.Fatal(err)
	}
	readMsg(t, clientConn)

	b.Publish(session.Event{Type: session.EventReset})
	if msg := readMsg(t, clientConn); msg.Type != MsgReset {
		t.Errorf("message type = %q, want reset", msg.Type)
	}
}

func TestQueueHealth(t *testing.T) {
	b := NewBroadcaster(session.NewStore(), time.Hour, time.Hour, 0)
	defer b.Stop()

	srv, serverConn, clientConn := connectPair(t)
	defer srv.Close()
	defer clientConn.Close()
	if _, err := b.AddClient(serverConn); err != nil {
		t.Fatal(err)
	}
	readMsg(t, clientConn)

	b.QueueHealth(HealthPayload{Status: StatusDegraded, FetchFailures: 2, LastError: "boom"})
	msg := readMsg(t, clientConn)
	if msg.Type != MsgHealth {
		t.Fatalf("message type = %q, want health", msg.Type)
	}
	var h HealthPayload
	json.Unmarshal(msg.Payload, &h)
	if h.Status != StatusDegraded || h.FetchFailures != 2 || h.Clients != 1 {
		t.Errorf("health = %+v", h)
	}
}

func TestAddClient_MaxConnections(t *testing.T) {
	const maxConns = 2
	b := NewBroadcaster(session.NewStore(), 100*time.Millisecond, time.Hour, maxConns)
	defer b.Stop()

	// Keep the client ends open so no write fails and drops a client early.
	add := func() (*client, error) {
		srv, serverConn, clientConn := connectPair(t)
		t.Cleanup(srv.Close)
		t.Cleanup(func() { clientConn.Close() })
		c, err := b.AddClient(serverConn)
		if err != nil {
			serverConn.Close()
		}
		return c, err
	}

	var clients []*client
	for i := 0; i < maxConns; i++ {
		c, err := add()
		if err != nil {
			t.Fatalf("AddClient[%d]: unexpected error: %v", i, err)
		}
		clients = append(clients, c)
	}

	if got := b.ClientCount(); got != maxConns {
		t.Fatalf("expected %d clients, got %d", maxConns, got)
	}

	if _, err := add(); !errors.Is(err, ErrTooManyConnections) {
		t.Fatalf("expected ErrTooManyConnections, got %v", err)
	}

	b.RemoveClient(clients[0])
	if _, err := add(); err != nil {
		t.Errorf("AddClient after removal: %v", err)
	}
}

func TestRemoveClientTwice(t *testing.T) {
	b := NewBroadcaster(session.NewStore(), time.Hour, time.Hour, 0)
	defer b.Stop()

	srv, conn := dialTestWS(t)
	defer srv.Close()
	c, err := b.AddClient(conn)
	if err != nil {
		t.Fatal(err)
	}
	b.RemoveClient(c)
	b.RemoveClient(c)
	if b.ClientCount() != 0 {
		t.Errorf("ClientCount = %d", b.ClientCount())
	}
}

func TestStopIdempotent(t *testing.T) {
	b := NewBroadcaster(session.NewStore(), time.Millisecond, time.Hour, 0)
	b.Publish(session.Event{Type: session.EventCycle})
	b.Stop()
	b.Stop()
}
