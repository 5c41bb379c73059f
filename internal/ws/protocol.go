package ws

import (
	"time"

	"github.com/Th0rstenf/Streamerbot-RocksmithSceneSwitcher/internal/session"
)

type MessageType string

const (
	MsgSnapshot MessageType = "snapshot"
	MsgDelta    MessageType = "delta"
	MsgCommand  MessageType = "command"
	MsgReset    MessageType = "reset"
	MsgHealth   MessageType = "health"
)

type WSMessage struct {
	Type    MessageType `json:"type"`
	Seq     uint64      `json:"seq"`
	Payload interface{} `json:"payload"`
}

type SnapshotPayload struct {
	View session.View  `json:"view"`
	Vars map[string]any `json:"vars"`
}

// DeltaPayload carries the vars that changed since the last delta and the
// latest view.
type DeltaPayload struct {
	View session.View  `json:"view"`
	Vars map[string]any `json:"vars,omitempty"`
}

type CommandPayload struct {
	Kind session.CommandKind `json:"kind"`
	Name string              `json:"name"`
}

type HealthStatus string

const (
	StatusHealthy  HealthStatus = "healthy"
	StatusDegraded HealthStatus = "degraded"
	StatusFailed   HealthStatus = "failed"
)

// HealthPayload reports how the poll loop is doing.
type HealthPayload struct {
	Status           HealthStatus `json:"status"`
	FetchFailures    int          `json:"fetchFailures"`
	DecodeFailures   int          `json:"decodeFailures"`
	ActuatorFailures int          `json:"actuatorFailures"`
	SkippedTicks     int64        `json:"skippedTicks"`
	LastError        string       `json:"lastError,omitempty"`
	LastErrorAt      time.Time    `json:"lastErrorAt,omitzero"`
	SnifferRunning   *bool        `json:"snifferRunning,omitempty"`
	Clients          int          `json:"clients"`
}
