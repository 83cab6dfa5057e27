package repo

import (
	"context"
	"errors"

	"github.com/retention-intel/server/internal/agent/model"
)

// FanoutSink records each event in every sink. All sinks are attempted;
// their errors are joined.
type FanoutSink []model.EventSink

func NewFanoutSink(sinks ...model.EventSink) FanoutSink {
	out := make(FanoutSink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

func (f FanoutSink) Record(ctx context.Context, ev model.Event) error {
	var errs []error
	for _, s := range f {
		if err := s.Record(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
