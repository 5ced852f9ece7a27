package modelengine

import (
	"time"

	"transcribecore/internal/config"
)

// Engines groups the four model-engine managers the pipeline depends on,
// one per logical model family, each pinned to the worker-process lifetime
// per spec.md §5's "Shared resources" clause.
type Engines struct {
	Separator  *Manager
	Generalist *Manager
	Piano      *Manager
	Refiner    *Manager
}

// NewEngines builds the four managers from process configuration. None of
// the underlying subprocesses are started until first use.
func NewEngines(cfg *config.Config) *Engines {
	timeout := time.Duration(cfg.EngineStartTimeoutMS) * time.Millisecond

	return &Engines{
		Separator: NewManager(Config{
			Name:         "separator",
			SocketPath:   cfg.SeparatorSocket,
			Command:      cfg.SeparatorCommand,
			StartTimeout: timeout,
		}),
		Generalist: NewManager(Config{
			Name:         "generalist",
			SocketPath:   cfg.GeneralistSocket,
			Command:      cfg.GeneralistCommand,
			StartTimeout: timeout,
		}),
		Piano: NewManager(Config{
			Name:         "piano",
			SocketPath:   cfg.PianoSocket,
			Command:      cfg.PianoCommand,
			StartTimeout: timeout,
		}),
		Refiner: NewManager(Config{
			Name:         "refiner",
			SocketPath:   cfg.RefinerSocket,
			Command:      cfg.RefinerCommand,
			StartTimeout: timeout,
		}),
	}
}

// TeardownAll stops every subprocess this set of engines may have started.
func (e *Engines) TeardownAll() {
	for _, m := range []*Manager{e.Separator, e.Generalist, e.Piano, e.Refiner} {
		_ = m.Teardown()
	}
}
