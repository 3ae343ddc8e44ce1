package app

import (
	"context"
	"sort"
	"sync"
	"time"

	"meeting-scheduler/internal/availability"
	"meeting-scheduler/internal/calsync"
)

type syncJob struct {
	bookingID string
	action    calsync.Action
}

// memStore is an in-memory Store. Transactions run under one mutex and
// are applied only when the callback succeeds.
type memStore struct {
	mu       sync.Mutex
	owners   []Owner
	rules    map[string][]availability.Rule
	buffers  map[string]int
	bookings map[string]Booking
	jobs     []syncJob

	ruleReads int
	// afterRules runs once, after Rules has taken its snapshot.
	afterRules func()
}

func newMemStore(owners ...Owner) *memStore {
	return &memStore{
		owners:   owners,
		rules:    map[string][]availability.Rule{},
		buffers:  map[string]int{},
		bookings: map[string]Booking{},
	}
}

func (s *memStore) Rules(_ context.Context, ownerID string) ([]availability.Rule, error) {
	s.mu.Lock()
	rules := s.rulesLocked(ownerID)
	hook := s.afterRules
	s.afterRules = nil
	s.mu.Unlock()
	if hook != nil {
		hook()
	}
	return rules, nil
}

func (s *memStore) rulesLocked(ownerID string) []availability.Rule {
	s.ruleReads++
	return append([]availability.Rule(nil), s.rules[ownerID]...)
}

func (s *memStore) Buffer(_ context.Context, ownerID string) (int, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.buffers[ownerID]
	return m, ok, nil
}

func (s *memStore) BookingsBetween(_ context.Context, ownerID string, from, to time.Time) ([]Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.between(ownerID, from, to), nil
}

func (s *memStore) between(ownerID string, from, to time.Time) []Booking {
	var out []Booking
	for _, b := range s.bookings {
		if b.OwnerID == ownerID && b.Status == StatusConfirmed && b.StartUTC.Before(to) && b.EndUTC.After(from) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartUTC.Before(out[j].StartUTC) })
	return out
}

func (s *memStore) FirstOwner(context.Context) (Owner, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.owners) == 0 {
		return Owner{}, ErrNoOwner
	}
	return s.owners[0], nil
}

func (s *memStore) Owner(_ context.Context, id string) (Owner, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.owners {
		if o.ID == id {
			return o, nil
		}
	}
	return Owner{}, ErrNoOwner
}

func (s *memStore) UpsertRule(_ context.Context, ownerID string, r availability.Rule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rules := s.rules[ownerID]
	for i := range rules {
		if rules[i].Weekday == r.Weekday {
			rules[i] = r
			return nil
		}
	}
	s.rules[ownerID] = append(rules, r)
	return nil
}

func (s *memStore) DeleteRule(_ context.Context, ownerID string, weekday int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rules := s.rules[ownerID]
	for i := range rules {
		if rules[i].Weekday == weekday {
			s.rules[ownerID] = append(rules[:i], rules[i+1:]...)
			return nil
		}
	}
	return ErrRuleNotFound
}

func (s *memStore) SetBuffer(_ context.Context, ownerID string, minutes int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buffers[ownerID] = minutes
	return nil
}

func (s *memStore) Upcoming(_ context.Context, ownerID string, from time.Time) ([]Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.between(ownerID, from, from.AddDate(100, 0, 0)), nil
}

func (s *memStore) WithTx(_ context.Context, fn func(Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx := &memTx{s: s, bookings: map[string]Booking{}}
	if err := fn(tx); err != nil {
		return err
	}
	for id, b := range tx.bookings {
		s.bookings[id] = b
	}
	s.jobs = append(s.jobs, tx.jobs...)
	return nil
}

func (s *memStore) booking(id string) (Booking, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	return b, ok
}

func (s *memStore) queued() []syncJob {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]syncJob(nil), s.jobs...)
}

// memTx reads through to the store, whose mutex the caller already holds.
type memTx struct {
	s        *memStore
	bookings map[string]Booking
	jobs     []syncJob
}

func (t *memTx) Rules(_ context.Context, ownerID string) ([]availability.Rule, error) {
	return t.s.rulesLocked(ownerID), nil
}

func (t *memTx) Buffer(_ context.Context, ownerID string) (int, bool, error) {
	m, ok := t.s.buffers[ownerID]
	return m, ok, nil
}

func (t *memTx) BookingsBetween(_ context.Context, ownerID string, from, to time.Time) ([]Booking, error) {
	return t.s.between(ownerID, from, to), nil
}

func (t *memTx) LockOwner(_ context.Context, ownerID string) error {
	for _, o := range t.s.owners {
		if o.ID == ownerID {
			return nil
		}
	}
	return ErrNoOwner
}

func (t *memTx) InsertBooking(_ context.Context, b *Booking) error {
	for _, existing := range t.s.bookings {
		if existing.OwnerID == b.OwnerID && existing.Status == StatusConfirmed && existing.StartUTC.Equal(b.StartUTC) {
			return ErrSlotUnavailable
		}
	}
	t.bookings[b.ID] = *b
	return nil
}

func (t *memTx) CancelBooking(_ context.Context, id string) (Booking, error) {
	b, ok := t.s.bookings[id]
	if !ok {
		return Booking{}, ErrBookingNotFound
	}
	if b.Status == StatusCancelled {
		return Booking{}, ErrAlreadyCancelled
	}
	b.Status = StatusCancelled
	t.bookings[id] = b
	return b, nil
}

func (t *memTx) EnqueueCalendarSync(_ context.Context, bookingID string, action calsync.Action) error {
	t.jobs = append(t.jobs, syncJob{bookingID: bookingID, action: action})
	return nil
}
