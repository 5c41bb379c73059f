// Package actuator drives the presentation side: program scenes in OBS and
// named actions in Streamer.bot.
package actuator

import (
	"context"
	"errors"
)

type SceneController interface {
	CurrentScene(ctx context.Context) (string, error)
	SwitchScene(ctx context.Context, scene string) error
}

type ActionRunner interface {
	RunAction(ctx context.Context, name string) error
}

// Composite pairs a scene controller with an action runner. Either side
// may be nil, in which case its calls fail with ErrNotConnected.
type Composite struct {
	Scenes  SceneController
	Actions ActionRunner
}

func (c *Composite) CurrentScene(ctx context.Context) (string, error) {
	if c.Scenes == nil {
		return "", errors.Join(ErrNotConnected, errors.New("no scene controller"))
	}
	return c.Scenes.CurrentScene(ctx)
}

func (c *Composite) SwitchScene(ctx context.Context, scene string) error {
	if c.Scenes == nil {
		return errors.Join(ErrNotConnected, errors.New("no scene controller"))
	}
	return c.Scenes.SwitchScene(ctx, scene)
}

func (c *Composite) RunAction(ctx context.Context, name string) error {
	if c.Actions == nil {
		return errors.Join(ErrNotConnected, errors.New("no action runner"))
	}
	return c.Actions.RunAction(ctx, name)
}

// Close closes whichever sides support it.
func (c *Composite) Close() error {
	var errs []error
	for _, v := range []any{c.Scenes, c.Actions} {
		if cl, ok := v.(interface{ Close() error }); ok {
			errs = append(errs, cl.Close())
		}
	}
	return errors.Join(errs...)
}
