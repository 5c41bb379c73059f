package actuator

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
)

type sbAction struct {
	Name string `json:"name"`
}

type sbRequest struct {
	Request string         `json:"request"`
	ID      string         `json:"id"`
	Action  sbAction       `json:"action"`
	Args    map[string]any `json:"args,omitempty"`
}

// StreamerBot runs actions by name on a Streamer.bot websocket server.
type StreamerBot struct {
	rpc *rpcConn
}

func NewStreamerBot(url string) *StreamerBot {
	return &StreamerBot{rpc: newRPCConn("streamerbot", url, nil, sbMatch)}
}

// sbMatch skips unsolicited frames such as the server's Hello and event
// broadcasts, which carry no id.
func sbMatch(data []byte) (string, bool) {
	id := gjson.GetBytes(data, "id")
	if !id.Exists() || id.String() == "" {
		return "", false
	}
	return id.String(), true
}

func (s *StreamerBot) RunAction(ctx context.Context, name string) error {
	return s.RunActionArgs(ctx, name, nil)
}

// RunActionArgs runs an action and hands it args, readable inside the
// action as %key% arguments.
func (s *StreamerBot) RunActionArgs(ctx context.Context, name string, args map[string]any) error {
	id := uuid.NewString()
	raw, err := s.rpc.call(ctx, id, sbRequest{
		Request: "DoAction",
		ID:      id,
		Action:  sbAction{Name: name},
		Args:    args,
	})
	if err != nil {
		return err
	}

	res := gjson.GetManyBytes(raw, "status", "error")
	if res[0].String() != "ok" {
		msg := res[1].String()
		if msg == "" {
			msg = "status " + res[0].String()
		}
		return fmt.Errorf("streamerbot DoAction %q: %w: %s", name, ErrRequestFailed, msg)
	}
	return nil
}

func (s *StreamerBot) Connected() bool { return s.rpc.Connected() }

func (s *StreamerBot) Close() error { return s.rpc.Close() }
