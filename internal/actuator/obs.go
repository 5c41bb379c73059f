package actuator

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/tidwall/gjson"
)

// obs-websocket v5 opcodes.
const (
	opHello           = 0
	opIdentify        = 1
	opIdentified      = 2
	opRequest         = 6
	opRequestResponse = 7
)

const obsRPCVersion = 1

var errOBSAuth = errors.New("obs-websocket requires authentication; disable it in OBS or use a server without a password")

type obsMessage struct {
	Op int `json:"op"`
	D  any `json:"d"`
}

type obsRequest struct {
	RequestType string `json:"requestType"`
	RequestID   string `json:"requestId"`
	RequestData any    `json:"requestData,omitempty"`
}

// OBS switches program scenes through obs-websocket v5.
type OBS struct {
	rpc *rpcConn
}

func NewOBS(url string) *OBS {
	return &OBS{rpc: newRPCConn("obs", url, obsHandshake, obsMatch)}
}

func obsHandshake(conn *websocket.Conn) error {
	_, hello, err := conn.ReadMessage()
	if err != nil {
		return fmt.Errorf("read hello: %w", err)
	}
	if op := gjson.GetBytes(hello, "op"); op.Int() != opHello {
		return fmt.Errorf("expected hello, got op %s", op.Raw)
	}
	if gjson.GetBytes(hello, "d.authentication").Exists() {
		return errOBSAuth
	}

	identify := obsMessage{Op: opIdentify, D: map[string]any{
		"rpcVersion":         obsRPCVersion,
		"eventSubscriptions": 0,
	}}
	if err := conn.WriteJSON(identify); err != nil {
		return fmt.Errorf("identify: %w", err)
	}

	_, ack, err := conn.ReadMessage()
	if err != nil {
		return fmt.Errorf("read identified: %w", err)
	}
	if op := gjson.GetBytes(ack, "op"); op.Int() != opIdentified {
		return fmt.Errorf("expected identified, got op %s", op.Raw)
	}
	return nil
}

func obsMatch(data []byte) (string, bool) {
	res := gjson.GetManyBytes(data, "op", "d.requestId")
	if res[0].Int() != opRequestResponse || !res[1].Exists() {
		return "", false
	}
	return res[1].String(), true
}

func (o *OBS) request(ctx context.Context, requestType string, data any) (gjson.Result, error) {
	id := uuid.NewString()
	msg := obsMessage{Op: opRequest, D: obsRequest{
		RequestType: requestType,
		RequestID:   id,
		RequestData: data,
	}}
	raw, err := o.rpc.call(ctx, id, msg)
	if err != nil {
		return gjson.Result{}, err
	}

	d := gjson.GetBytes(raw, "d")
	status := d.Get("requestStatus")
	if !status.Get("result").Bool() {
		return gjson.Result{}, fmt.Errorf("obs %s: %w: code %d: %s",
			requestType, ErrRequestFailed, status.Get("code").Int(), status.Get("comment").String())
	}
	return d.Get("responseData"), nil
}

func (o *OBS) CurrentScene(ctx context.Context) (string, error) {
	data, err := o.request(ctx, "GetCurrentProgramScene", nil)
	if err != nil {
		return "", err
	}
	name := data.Get("currentProgramSceneName")
	if !name.Exists() {
		name = data.Get("sceneName")
	}
	return name.String(), nil
}

func (o *OBS) SwitchScene(ctx context.Context, scene string) error {
	_, err := o.request(ctx, "SetCurrentProgramScene", map[string]string{"sceneName": scene})
	return err
}

func (o *OBS) Connected() bool { return o.rpc.Connected() }

func (o *OBS) Close() error { return o.rpc.Close() }
