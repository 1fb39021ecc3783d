package events

import (
	"context"
	"errors"
	"fmt"

	"github.com/asjjun/naejango/internal/observ"
)

// Sink is a named publisher; the name labels metrics and errors.
type Sink struct {
	Name string
	Publisher
}

// Fanout hands each event to every sink. A failing sink does not stop the others.
// Failures are counted here and returned joined, each prefixed with its sink name;
// logging them is the caller's job.
type Fanout struct {
	sinks []Sink
}

func NewFanout(sinks ...Sink) *Fanout {
	return &Fanout{sinks: sinks}
}

func (f *Fanout) Publish(ctx context.Context, ev Event) error {
	var errs []error
	for _, s := range f.sinks {
		if err := s.Publish(ctx, ev); err != nil {
			observ.EventsPublished.WithLabelValues(s.Name, "error").Inc()
			errs = append(errs, fmt.Errorf("%s: %w", s.Name, err))
			continue
		}
		observ.EventsPublished.WithLabelValues(s.Name, "ok").Inc()
	}
	return errors.Join(errs...)
}
