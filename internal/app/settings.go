package app

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"meeting-scheduler/internal/availability"
)

// ownerFor resolves the owner an authenticated caller acts for. Static
// tokens carry no subject and act for the single owner.
func (s *Scheduler) ownerFor(ctx context.Context, p *Principal) (Owner, error) {
	if p == nil {
		return Owner{}, ErrUnauthenticated
	}
	if p.OwnerID != "" {
		return s.store.Owner(ctx, p.OwnerID)
	}
	return s.store.FirstOwner(ctx)
}

// Buffer returns the owner's buffer in minutes, or the default when unset.
func (s *Scheduler) Buffer(ctx context.Context) (int, error) {
	owner, err := s.store.FirstOwner(ctx)
	if errors.Is(err, ErrNoOwner) {
		return s.defaultBuffer, nil
	}
	if err != nil {
		return 0, err
	}
	minutes, ok, err := s.store.Buffer(ctx, owner.ID)
	if err != nil {
		return 0, fmt.Errorf("load buffer: %w", err)
	}
	if !ok {
		return s.defaultBuffer, nil
	}
	return minutes, nil
}

func (s *Scheduler) SetBuffer(ctx context.Context, p *Principal, minutes int) error {
	owner, err := s.ownerFor(ctx, p)
	if err != nil {
		return err
	}
	if minutes < 0 || minutes > MaxBufferMinutes {
		return ErrInvalidBuffer
	}
	if err := s.store.SetBuffer(ctx, owner.ID, minutes); err != nil {
		return fmt.Errorf("save buffer: %w", err)
	}
	s.cache.invalidate(owner.ID)
	s.logger.Info("buffer updated", zap.String("owner_id", owner.ID), zap.Int("minutes", minutes))
	return nil
}

// Rules returns the owner's working hours.
func (s *Scheduler) Rules(ctx context.Context, p *Principal) ([]availability.Rule, error) {
	owner, err := s.ownerFor(ctx, p)
	if err != nil {
		return nil, err
	}
	rules, err := s.store.Rules(ctx, owner.ID)
	if err != nil {
		return nil, fmt.Errorf("load availability: %w", err)
	}
	if rules == nil {
		rules = []availability.Rule{}
	}
	return rules, nil
}

// SetRule creates or replaces the working hours of one weekday.
func (s *Scheduler) SetRule(ctx context.Context, p *Principal, r availability.Rule) error {
	owner, err := s.ownerFor(ctx, p)
	if err != nil {
		return err
	}
	if err := validateRule(r); err != nil {
		return err
	}
	if err := s.store.UpsertRule(ctx, owner.ID, r); err != nil {
		return fmt.Errorf("save availability: %w", err)
	}
	s.cache.invalidate(owner.ID)
	return nil
}

func (s *Scheduler) DeleteRule(ctx context.Context, p *Principal, weekday int) error {
	owner, err := s.ownerFor(ctx, p)
	if err != nil {
		return err
	}
	if weekday < 0 || weekday > 6 {
		return fmt.Errorf("%w: weekday must be 0..6", ErrInvalidRule)
	}
	if err := s.store.DeleteRule(ctx, owner.ID, weekday); err != nil {
		return err
	}
	s.cache.invalidate(owner.ID)
	return nil
}

func validateRule(r availability.Rule) error {
	switch {
	case r.Weekday < 0 || r.Weekday > 6:
		return fmt.Errorf("%w: weekday must be 0..6", ErrInvalidRule)
	case r.StartMin < 0 || r.EndMin > 24*60:
		return fmt.Errorf("%w: minutes must be within 0..1440", ErrInvalidRule)
	case r.StartMin >= r.EndMin:
		return fmt.Errorf("%w: start_min must be before end_min", ErrInvalidRule)
	}
	return nil
}
