package monitor

import (
	"context"
	"log"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/process"
)

const processPollInterval = 10 * time.Second

// processProbe reports whether the sniffer process is running. The process
// table is listed at most once per interval.
type processProbe struct {
	mu       sync.Mutex
	interval time.Duration
	list     func(ctx context.Context) ([]string, error)
	name     string
	last     time.Time
	running  *bool
}

func newProcessProbe() *processProbe {
	return &processProbe{
		interval: processPollInterval,
		list:     processNames,
	}
}

// Refresh lists processes if the cached answer is older than the interval
// or the wanted name changed. An empty name disables the probe.
func (p *processProbe) Refresh(ctx context.Context, name string, now time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if name == "" {
		p.name = ""
		p.running = nil
		return
	}
	if name == p.name && !p.last.IsZero() && now.Sub(p.last) < p.interval {
		return
	}

	names, err := p.list(ctx)
	if err != nil {
		log.Printf("[monitor] listing processes: %v", err)
		return
	}
	running := matchProcess(names, name)
	if p.running == nil || *p.running != running || p.name != name {
		log.Printf("[monitor] sniffer process %q running: %v", name, running)
	}
	p.name = name
	p.last = now
	p.running = &running
}

// Running returns the last known answer, or nil when the probe is disabled
// or has not run yet.
func (p *processProbe) Running() *bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running == nil {
		return nil
	}
	v := *p.running
	return &v
}

func processNames(ctx context.Context) ([]string, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(procs))
	for _, proc := range procs {
		// Processes exit between listing and reading; skip those.
		name, err := proc.NameWithContext(ctx)
		if err != nil || name == "" {
			continue
		}
		names = append(names, name)
	}
	return names, nil
}

// matchProcess compares executable names case-insensitively, ignoring any
// directory and a trailing ".exe".
func matchProcess(names []string, want string) bool {
	want = normalizeProcessName(want)
	for _, n := range names {
		if normalizeProcessName(n) == want {
			return true
		}
	}
	return false
}

func normalizeProcessName(name string) string {
	name = strings.ToLower(filepath.Base(strings.ReplaceAll(name, `\`, "/")))
	return strings.TrimSuffix(name, ".exe")
}
