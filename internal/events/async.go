package events

import (
	"context"
	"log/slog"
)

// Async decouples a slow observer (network sinks) from the pipeline. Events
// are buffered and delivered by Run; when the buffer is full they are
// dropped and logged.
type Async struct {
	name   string
	target Observer
	events chan Event
	log    *slog.Logger
}

func NewAsync(name string, target Observer, buffer int) *Async {
	return &Async{
		name:   name,
		target: target,
		events: make(chan Event, buffer),
		log:    slog.With("component", "events", "sink", name),
	}
}

func (a *Async) Notify(e Event) {
	select {
	case a.events <- e:
	default:
		a.log.Warn("Event buffer is full, dropping event", "kind", e.Kind, "run", e.RunID)
	}
}

// Run delivers buffered events until ctx is cancelled, then flushes the
// buffer.
func (a *Async) Run(ctx context.Context) error {
	a.log.Info("Starting event sink")

	for {
		select {
		case <-ctx.Done():
			a.log.Info("Stopping event sink...")
			a.drain()
			return nil
		case e := <-a.events:
			a.target.Notify(e)
		}
	}
}

// drain delivers what is already buffered without waiting for more.
func (a *Async) drain() {
	for {
		select {
		case e := <-a.events:
			a.target.Notify(e)
		default:
			return
		}
	}
}
