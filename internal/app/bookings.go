package app

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"meeting-scheduler/internal/availability"
	"meeting-scheduler/internal/calsync"
	"meeting-scheduler/internal/notify"
)

const publishTimeout = 3 * time.Second

// Book reserves one grid slot. The slot is re-checked against fresh data
// while the owner row is locked, so two racing requests cannot both win.
func (s *Scheduler) Book(ctx context.Context, req BookingRequest) (Booking, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	req.Notes = strings.TrimSpace(req.Notes)
	if err := validateBooking(req); err != nil {
		return Booking{}, err
	}

	day, err := availability.ParseDate(req.Date)
	if err != nil {
		return Booking{}, fmt.Errorf("%w: %v", ErrInvalidDate, err)
	}
	start := day.Add(time.Duration(req.StartMin) * time.Minute)
	if !start.After(s.now()) {
		return Booking{}, fmt.Errorf("%w: start is in the past", ErrSlotUnavailable)
	}

	owner, err := s.store.FirstOwner(ctx)
	if err != nil {
		return Booking{}, err
	}

	b := Booking{
		ID:        uuid.NewString(),
		OwnerID:   owner.ID,
		Name:      req.Name,
		Email:     req.Email,
		Notes:     req.Notes,
		StartUTC:  start,
		EndUTC:    start.Add(time.Duration(s.slotLength) * time.Minute),
		Status:    StatusConfirmed,
		CreatedAt: s.now().UTC(),
	}

	err = s.store.WithTx(ctx, func(tx Tx) error {
		if err := tx.LockOwner(ctx, owner.ID); err != nil {
			return err
		}
		sched, err := s.loadSchedule(ctx, tx, owner.ID)
		if err != nil {
			return err
		}
		open, err := s.openSlots(ctx, tx, owner.ID, day, sched)
		if err != nil {
			return err
		}
		if !slices.Contains(open, req.StartMin) {
			return ErrSlotUnavailable
		}
		if err := tx.InsertBooking(ctx, &b); err != nil {
			return err
		}
		return tx.EnqueueCalendarSync(ctx, b.ID, calsync.ActionInsert)
	})
	if err != nil {
		return Booking{}, err
	}

	s.logger.Info("booking created",
		zap.String("booking_id", b.ID),
		zap.Time("start_utc", b.StartUTC))
	s.publish(ctx, notify.Event{Type: notify.BookingCreated, Date: req.Date})
	return b, nil
}

func validateBooking(req BookingRequest) error {
	if len([]rune(req.Name)) < 2 {
		return fmt.Errorf("%w: name must have at least 2 characters", ErrInvalidBooking)
	}
	addr, err := mail.ParseAddress(req.Email)
	if err != nil || addr.Address != req.Email {
		return fmt.Errorf("%w: invalid email", ErrInvalidBooking)
	}
	if req.StartMin < 0 || req.StartMin >= 24*60 {
		return fmt.Errorf("%w: start_min out of range", ErrInvalidBooking)
	}
	return nil
}

// Cancel marks a confirmed booking cancelled and queues removal of its
// calendar event.
func (s *Scheduler) Cancel(ctx context.Context, id string) (Booking, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Booking{}, ErrBookingNotFound
	}

	var b Booking
	err := s.store.WithTx(ctx, func(tx Tx) error {
		var err error
		b, err = tx.CancelBooking(ctx, id)
		if err != nil {
			return err
		}
		return tx.EnqueueCalendarSync(ctx, b.ID, calsync.ActionDelete)
	})
	if err != nil {
		return Booking{}, err
	}

	s.logger.Info("booking cancelled", zap.String("booking_id", b.ID))
	s.publish(ctx, notify.Event{Type: notify.BookingCancelled, Date: availability.FormatDate(b.StartUTC)})
	return b, nil
}

// Upcoming lists confirmed bookings that have not started yet.
func (s *Scheduler) Upcoming(ctx context.Context) ([]Booking, error) {
	owner, err := s.store.FirstOwner(ctx)
	if errors.Is(err, ErrNoOwner) {
		return []Booking{}, nil
	}
	if err != nil {
		return nil, err
	}
	out, err := s.store.Upcoming(ctx, owner.ID, s.now().UTC())
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	if out == nil {
		out = []Booking{}
	}
	return out, nil
}

// publish never fails the caller; the booking is already committed.
func (s *Scheduler) publish(ctx context.Context, evt notify.Event) {
	if s.sink == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := s.sink.Publish(ctx, evt); err != nil {
		s.logger.Warn("publish booking event",
			zap.String("type", evt.Type),
			zap.String("date", evt.Date),
			zap.Error(err))
	}
}
