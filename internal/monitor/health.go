package monitor

import (
	"sync"
	"time"

	"github.com/Th0rstenf/Streamerbot-RocksmithSceneSwitcher/internal/ws"
)

const defaultFailureThreshold = 3

// pollHealth tracks consecutive failures of each stage of a poll cycle.
// Fields are protected by mu because poll() writes them from the cycle
// goroutine while the API reads them through Monitor.Health.
type pollHealth struct {
	mu                sync.Mutex
	fetchFailures     int
	decodeFailures    int
	actuatorFailures  int
	lastErr           string
	lastErrAt         time.Time
	lastEmittedStatus ws.HealthStatus
	now               func() time.Time
}

func newPollHealth() *pollHealth {
	return &pollHealth{
		lastEmittedStatus: ws.StatusHealthy,
		now:               time.Now,
	}
}

// recordFetch resets the fetch counter on success and bumps it on failure.
func (h *pollHealth) recordFetch(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.record(&h.fetchFailures, err)
}

func (h *pollHealth) recordDecode(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.record(&h.decodeFailures, err)
}

func (h *pollHealth) recordActuator(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.record(&h.actuatorFailures, err)
}

// record updates one counter. Caller must hold h.mu.
func (h *pollHealth) record(counter *int, err error) {
	if err == nil {
		*counter = 0
		return
	}
	*counter++
	h.lastErr = err.Error()
	h.lastErrAt = h.now()
}

// statusLocked computes health status. Caller must hold h.mu.
//
// The sniffer being unreachable fails the switcher outright; bad payloads
// and a misbehaving OBS or Streamer.bot only degrade it.
func (h *pollHealth) statusLocked(threshold int) ws.HealthStatus {
	if h.fetchFailures >= threshold {
		return ws.StatusFailed
	}
	if h.decodeFailures >= threshold || h.actuatorFailures >= threshold {
		return ws.StatusDegraded
	}
	return ws.StatusHealthy
}

func (h *pollHealth) status(threshold int) ws.HealthStatus {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.statusLocked(threshold)
}

func (h *pollHealth) payloadLocked(threshold int) ws.HealthPayload {
	return ws.HealthPayload{
		Status:           h.statusLocked(threshold),
		FetchFailures:    h.fetchFailures,
		DecodeFailures:   h.decodeFailures,
		ActuatorFailures: h.actuatorFailures,
		LastError:        h.lastErr,
		LastErrorAt:      h.lastErrAt,
	}
}

// snapshot returns a consistent copy of all health fields under the lock.
func (h *pollHealth) snapshot(threshold int) ws.HealthPayload {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.payloadLocked(threshold)
}

// snapshotAndEmit is snapshot plus whether the status changed since the last
// emission. A change updates lastEmittedStatus.
func (h *pollHealth) snapshotAndEmit(threshold int) (ws.HealthPayload, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	p := h.payloadLocked(threshold)
	changed := p.Status != h.lastEmittedStatus
	if changed {
		h.lastEmittedStatus = p.Status
	}
	return p, changed
}

func healthThreshold(threshold int) int {
	if threshold > 0 {
		return threshold
	}
	return defaultFailureThreshold
}
