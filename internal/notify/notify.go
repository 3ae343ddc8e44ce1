package notify

import (
	"context"
	"errors"
)

// Event types pushed to listeners.
const (
	BookingCreated   = "booking:new"
	BookingCancelled = "booking:cancelled"
)

// Event tells listeners that the slot grid of Date changed.
type Event struct {
	Type string `json:"type"`
	Date string `json:"date"`
}

// Sink receives booking events. Delivery is best-effort.
type Sink interface {
	Publish(ctx context.Context, evt Event) error
}

// Fanout publishes to every sink and joins their errors.
type Fanout []Sink

func (f Fanout) Publish(ctx context.Context, evt Event) error {
	var errs []error
	for _, s := range f {
		if err := s.Publish(ctx, evt); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
