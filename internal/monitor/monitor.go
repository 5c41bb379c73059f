package monitor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Th0rstenf/Streamerbot-RocksmithSceneSwitcher/internal/config"
	"github.com/Th0rstenf/Streamerbot-RocksmithSceneSwitcher/internal/session"
	"github.com/Th0rstenf/Streamerbot-RocksmithSceneSwitcher/internal/telemetry"
	"github.com/Th0rstenf/Streamerbot-RocksmithSceneSwitcher/internal/ws"
)

// repeatLogEvery limits how often the same failure is logged while it keeps
// happening every tick.
const repeatLogEvery = 10 * time.Second

type limitedLog struct {
	last       time.Time
	suppressed int
}

// Monitor drives the session machine: each tick it reads the current scene,
// fetches one telemetry payload, steps the machine, dispatches the resulting
// commands and publishes the derived state.
type Monitor struct {
	mu            sync.RWMutex // protects cfg, cfgDirty
	cfg           *config.Config
	cfgDirty      bool
	reconfigureCh chan struct{}

	cycleMu  sync.Mutex // serialises cycles and resets; owns machine
	machine  *session.Machine
	store    *session.Store
	pub      Publisher
	source   Source
	actuator Actuator
	health   *pollHealth
	probe    *processProbe
	now      func() time.Time

	inFlight atomic.Bool
	skipped  atomic.Int64
	wg       sync.WaitGroup

	logMu sync.Mutex
	logs  map[string]limitedLog
}

func NewMonitor(cfg *config.Config, store *session.Store, pub Publisher, source Source, actuator Actuator) *Monitor {
	return &Monitor{
		cfg:           cfg,
		reconfigureCh: make(chan struct{}, 1),
		machine:       session.NewMachine(cfg.MachineConfig()),
		store:         store,
		pub:           pub,
		source:        source,
		actuator:      actuator,
		health:        newPollHealth(),
		probe:         newProcessProbe(),
		now:           time.Now,
		logs:          make(map[string]limitedLog),
	}
}

// SetClock replaces the clock used for debouncing, views and health.
func (m *Monitor) SetClock(now func() time.Time) {
	m.cycleMu.Lock()
	defer m.cycleMu.Unlock()
	m.now = now
	m.machine.SetClock(now)
	m.health.mu.Lock()
	m.health.now = now
	m.health.mu.Unlock()
}

// SetConfig replaces the monitor's config. Scene names, switching, section
// and pause settings take effect on the next cycle without losing the
// session; a new poll interval resets the ticker. Listen address, sniffer
// address and actuator endpoints are NOT applied; those need a restart.
func (m *Monitor) SetConfig(cfg *config.Config) {
	m.mu.Lock()
	m.cfg = cfg
	m.cfgDirty = true
	m.mu.Unlock()

	select {
	case m.reconfigureCh <- struct{}{}:
	default:
	}
}

func (m *Monitor) config() *config.Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg
}

// Start polls until ctx is cancelled and waits for the last cycle to finish.
func (m *Monitor) Start(ctx context.Context) {
	interval := m.config().Monitor.PollInterval
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Printf("[monitor] started: source=%s interval=%s", m.source.Name(), interval)

	// Initial poll
	m.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			m.wg.Wait()
			log.Println("[monitor] stopped")
			return
		case <-m.reconfigureCh:
			if next := m.config().Monitor.PollInterval; next != interval && next > 0 {
				ticker.Reset(next)
				log.Printf("[monitor] poll interval %s → %s", interval, next)
				interval = next
			}
		case <-ticker.C:
			m.tick(ctx)
		}
	}
}

// tick starts a cycle unless the previous one is still running. A slow
// sniffer must never have two fetches outstanding.
func (m *Monitor) tick(ctx context.Context) {
	if !m.inFlight.CompareAndSwap(false, true) {
		n := m.skipped.Add(1)
		m.logLimited("skip", "[monitor] previous cycle still running, %d ticks skipped so far", n)
		return
	}
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer m.inFlight.Store(false)
		m.poll(ctx)
	}()
}

func (m *Monitor) poll(ctx context.Context) {
	m.cycleMu.Lock()
	defer m.cycleMu.Unlock()

	cfg := m.applyConfig()
	threshold := healthThreshold(cfg.Monitor.FailureThreshold)
	defer m.emitHealth(threshold)

	m.probe.Refresh(ctx, cfg.Monitor.SnifferProcess, m.now())

	scene, err := m.actuator.CurrentScene(ctx)
	m.health.recordActuator(err)
	if err != nil {
		m.logLimited("scene", "[monitor] current scene unavailable: %v", err)
		m.store.SetView(session.NewView(m.machine.State(), m.now()))
		return
	}

	if !m.machine.Observe(scene) {
		m.store.SetView(session.NewView(m.machine.State(), m.now()))
		return
	}

	raw, err := m.source.Fetch(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		m.health.recordFetch(err)
		m.logLimited("fetch", "[%s] fetch failed: %v", m.source.Name(), err)
		return
	}
	m.health.recordFetch(nil)

	resp, err := telemetry.Decode(raw)
	if err != nil {
		m.health.recordDecode(err)
		m.logLimited("decode", "[%s] %v", m.source.Name(), err)
		return
	}
	m.health.recordDecode(nil)

	cycle, err := m.machine.Step(scene, resp)
	if err != nil {
		if !errors.Is(err, session.ErrUnrecoverable) {
			err = fmt.Errorf("%w: %v", session.ErrUnrecoverable, err)
		}
		log.Printf("[monitor] %v, resetting session", err)
		m.resetLocked()
		return
	}

	for _, cmd := range cycle.Commands {
		m.dispatch(ctx, cmd)
	}

	changed := m.store.Publish(cycle.Vars)
	view := session.NewView(m.machine.State(), m.now())
	m.store.SetView(view)
	m.pub.Publish(session.Event{
		Type:     session.EventCycle,
		View:     view,
		Changed:  changed,
		Commands: cycle.Commands,
	})
}

// applyConfig hands a changed config to the machine. Caller must hold
// cycleMu.
func (m *Monitor) applyConfig() *config.Config {
	m.mu.Lock()
	cfg := m.cfg
	dirty := m.cfgDirty
	m.cfgDirty = false
	m.mu.Unlock()

	if dirty {
		m.machine.SetConfig(cfg.MachineConfig())
	}
	return cfg
}

// dispatch executes one command. Failures are logged and swallowed; the
// machine has already advanced on the assumption the command was attempted.
func (m *Monitor) dispatch(ctx context.Context, cmd session.Command) {
	var err error
	switch cmd.Kind {
	case session.CmdSwitchScene:
		err = m.actuator.SwitchScene(ctx, cmd.Name)
	case session.CmdRunAction:
		err = m.actuator.RunAction(ctx, cmd.Name)
	default:
		err = fmt.Errorf("unknown command kind %q", cmd.Kind)
	}
	m.health.recordActuator(err)
	if err != nil {
		m.logLimited("dispatch", "[monitor] %s failed: %v", cmd, err)
		return
	}
	log.Printf("[monitor] %s", cmd)
}

// Reset drops the session and all published variables.
func (m *Monitor) Reset() {
	m.cycleMu.Lock()
	defer m.cycleMu.Unlock()
	log.Printf("[monitor] session reset requested")
	m.resetLocked()
}

func (m *Monitor) resetLocked() {
	m.machine.Reset()
	m.store.Clear()
	view := session.NewView(m.machine.State(), m.now())
	m.store.SetView(view)
	m.pub.Publish(session.Event{Type: session.EventReset, View: view})
}

// Health reports the poll loop's current health.
func (m *Monitor) Health() ws.HealthPayload {
	threshold := healthThreshold(m.config().Monitor.FailureThreshold)
	p := m.health.snapshot(threshold)
	p.SkippedTicks = m.skipped.Load()
	p.SnifferRunning = m.probe.Running()
	return p
}

// emitHealth forwards status transitions (e.g. healthy -> failed) to the
// publisher.
func (m *Monitor) emitHealth(threshold int) {
	p, changed := m.health.snapshotAndEmit(threshold)
	if !changed {
		return
	}
	log.Printf("[monitor] health status: %s (fetch=%d, decode=%d, actuator=%d)",
		p.Status, p.FetchFailures, p.DecodeFailures, p.ActuatorFailures)
	hp, ok := m.pub.(healthPublisher)
	if !ok {
		return
	}
	p.SkippedTicks = m.skipped.Load()
	p.SnifferRunning = m.probe.Running()
	hp.QueueHealth(p)
}

// logLimited logs at most once per repeatLogEvery for each key and reports
// how many messages were suppressed in between.
func (m *Monitor) logLimited(key, format string, args ...any) {
	m.logMu.Lock()
	defer m.logMu.Unlock()

	now := time.Now()
	l := m.logs[key]
	if !l.last.IsZero() && now.Sub(l.last) < repeatLogEvery {
		l.suppressed++
		m.logs[key] = l
		return
	}
	msg := fmt.Sprintf(format, args...)
	if l.suppressed > 0 {
		msg += fmt.Sprintf(" (%d similar suppressed)", l.suppressed)
	}
	log.Print(msg)
	m.logs[key] = limitedLog{last: now}
}
