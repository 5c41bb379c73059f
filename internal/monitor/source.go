package monitor

import (
	"context"

	"github.com/Th0rstenf/Streamerbot-RocksmithSceneSwitcher/internal/session"
	"github.com/Th0rstenf/Streamerbot-RocksmithSceneSwitcher/internal/ws"
)

// Source delivers raw telemetry payloads (e.g. the sniffer's HTTP endpoint
// or the simulated game). The monitor never has more than one Fetch
// outstanding, so implementations need not be safe for concurrent use.
type Source interface {
	// Name returns a short lowercase identifier used in logs.
	Name() string

	// Fetch returns one payload in the sniffer's JSON shape. Errors are
	// retried on the next tick.
	Fetch(ctx context.Context) ([]byte, error)
}

// Actuator carries out the commands the session machine emits. Failures are
// logged and counted; they never stop the loop.
type Actuator interface {
	CurrentScene(ctx context.Context) (string, error)
	SwitchScene(ctx context.Context, name string) error
	RunAction(ctx context.Context, name string) error
}

// Publisher receives one event per processed cycle and one per reset.
// *ws.Broadcaster implements it.
type Publisher interface {
	Publish(ev session.Event)
}

// healthPublisher is implemented by publishers that also forward health
// transitions to their clients.
type healthPublisher interface {
	QueueHealth(h ws.HealthPayload)
}
