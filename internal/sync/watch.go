package sync

import (
	"context"
	"log"
	"time"
)

// Watcher runs an engine on a fixed cadence. Ticks never overlap: the
// next tick is scheduled relative to the previous tick's completion,
// not its start, so a slow external system stretches the cadence
// instead of piling up concurrent ticks.
type Watcher struct {
	engine   *Engine
	interval time.Duration

	// lastFailure suppresses repeat logging of the same failure reason
	// on consecutive ticks. A changed reason or a success resets it.
	lastFailure string
}

// NewWatcher wires a watcher around an engine. Intervals at or below
// zero fall back to 5s.
func NewWatcher(engine *Engine, interval time.Duration) *Watcher {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Watcher{engine: engine, interval: interval}
}

// Run ticks until ctx is cancelled. The first tick fires immediately.
// Tick failures are recoverable: they are logged once per distinct
// reason and the loop keeps going; cancellation between ticks returns
// ctx.Err().
func (w *Watcher) Run(ctx context.Context) error {
	for {
		report, err := w.engine.Tick(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if reason := err.Error(); reason != w.lastFailure {
				log.Printf("WARNING: sync %s/%s: %v", w.engine.opts.BundleName, w.engine.adapter.Name(), err)
				w.lastFailure = reason
			}
		} else {
			if w.lastFailure != "" {
				log.Printf("sync %s/%s: recovered", w.engine.opts.BundleName, w.engine.adapter.Name())
				w.lastFailure = ""
			}
			if report.Pushed+report.Pulled+report.Created+report.Imported+len(report.Conflicts) > 0 {
				log.Printf("sync %s/%s: pushed=%d pulled=%d created=%d imported=%d conflicts=%d",
					w.engine.opts.BundleName, w.engine.adapter.Name(),
					report.Pushed, report.Pulled, report.Created, report.Imported, len(report.Conflicts))
			}
		}

		timer := time.NewTimer(w.interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
