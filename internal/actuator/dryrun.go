package actuator

import (
	"context"
	"log"
	"sync"
)

// DryRun logs commands instead of sending them. It remembers the last
// scene switched to so the session sees its own switches take effect.
type DryRun struct {
	mu      sync.Mutex
	scene   string
	actions []string
}

func NewDryRun(initialScene string) *DryRun {
	return &DryRun{scene: initialScene}
}

func (d *DryRun) CurrentScene(context.Context) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.scene, nil
}

func (d *DryRun) SwitchScene(_ context.Context, scene string) error {
	d.mu.Lock()
	d.scene = scene
	d.mu.Unlock()
	log.Printf("[dry-run] switch scene → %s", scene)
	return nil
}

func (d *DryRun) RunAction(_ context.Context, name string) error {
	d.mu.Lock()
	d.actions = append(d.actions, name)
	d.mu.Unlock()
	log.Printf("[dry-run] run action %s", name)
	return nil
}

// Actions returns every action run so far.
func (d *DryRun) Actions() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.actions...)
}
