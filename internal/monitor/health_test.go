package monitor

import (
	"fmt"
	"testing"
	"time"

	"github.com/Th0rstenf/Streamerbot-RocksmithSceneSwitcher/internal/ws"
)

func TestPollHealthFetchFailureTracking(t *testing.T) {
	h := newPollHealth()

	if h.status(3) != ws.StatusHealthy {
		t.Fatal("new health should be healthy")
	}

	// Accumulate failures below threshold
	h.recordFetch(fmt.Errorf("connection refused"))
	h.recordFetch(fmt.Errorf("timeout"))
	if h.status(3) != ws.StatusHealthy {
		t.Error("should still be healthy below threshold")
	}

	// Hit threshold
	h.recordFetch(fmt.Errorf("still broken"))
	if h.status(3) != ws.StatusFailed {
		t.Error("should be failed at threshold")
	}
	if got := h.snapshot(3).LastError; got != "still broken" {
		t.Errorf("LastError = %q, want %q", got, "still broken")
	}
}

func TestPollHealthFetchRecovery(t *testing.T) {
	h := newPollHealth()

	for i := 0; i < 5; i++ {
		h.recordFetch(fmt.Errorf("fail %d", i))
	}
	if h.status(3) != ws.StatusFailed {
		t.Fatal("should be failed")
	}

	h.recordFetch(nil)
	if h.status(3) != ws.StatusHealthy {
		t.Error("should recover to healthy after success")
	}
	p := h.snapshot(3)
	if p.FetchFailures != 0 {
		t.Errorf("FetchFailures = %d, want 0", p.FetchFailures)
	}
	if p.LastError != "fail 4" {
		t.Errorf("LastError = %q, want the last failure kept after recovery", p.LastError)
	}
}

func TestPollHealthDecodeAndActuatorDegrade(t *testing.T) {
	tests := []struct {
		name   string
		record func(h *pollHealth, err error)
	}{
		{"decode", (*pollHealth).recordDecode},
		{"actuator", (*pollHealth).recordActuator},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newPollHealth()
			for i := 0; i < 2; i++ {
				tt.record(h, fmt.Errorf("bad"))
			}
			if h.status(3) != ws.StatusHealthy {
				t.Error("should be healthy below threshold")
			}
			tt.record(h, fmt.Errorf("bad"))
			if h.status(3) != ws.StatusDegraded {
				t.Error("should be degraded at threshold")
			}
			tt.record(h, nil)
			if h.status(3) != ws.StatusHealthy {
				t.Error("should recover after success")
			}
		})
	}
}

func TestPollHealthFetchOverridesDegraded(t *testing.T) {
	h := newPollHealth()

	for i := 0; i < 5; i++ {
		h.recordDecode(fmt.Errorf("fail"))
	}
	if h.status(3) != ws.StatusDegraded {
		t.Fatal("should be degraded")
	}

	for i := 0; i < 3; i++ {
		h.recordFetch(fmt.Errorf("fail"))
	}
	if h.status(3) != ws.StatusFailed {
		t.Error("fetch failure should override to failed status")
	}
}

func TestPollHealthSnapshotAndEmit(t *testing.T) {
	h := newPollHealth()
	at := time.Date(2024, 3, 1, 20, 0, 0, 0, time.UTC)
	h.now = func() time.Time { return at }

	if _, changed := h.snapshotAndEmit(2); changed {
		t.Error("healthy at start should not count as a change")
	}

	h.recordFetch(fmt.Errorf("refused"))
	h.recordFetch(fmt.Errorf("refused"))
	p, changed := h.snapshotAndEmit(2)
	if !changed || p.Status != ws.StatusFailed {
		t.Fatalf("snapshotAndEmit = %+v, %v; want failed, true", p, changed)
	}
	if !p.LastErrorAt.Equal(at) {
		t.Errorf("LastErrorAt = %v, want %v", p.LastErrorAt, at)
	}

	if _, changed := h.snapshotAndEmit(2); changed {
		t.Error("second emission of the same status should not count as a change")
	}

	h.recordFetch(nil)
	if p, changed := h.snapshotAndEmit(2); !changed || p.Status != ws.StatusHealthy {
		t.Errorf("recovery = %+v, %v; want healthy, true", p, changed)
	}
}

func TestHealthThreshold(t *testing.T) {
	if got := healthThreshold(0); got != defaultFailureThreshold {
		t.Errorf("healthThreshold(0) = %d", got)
	}
	if got := healthThreshold(7); got != 7 {
		t.Errorf("healthThreshold(7) = %d", got)
	}
}
