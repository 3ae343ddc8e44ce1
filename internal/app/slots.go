package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"meeting-scheduler/internal/availability"
	"meeting-scheduler/internal/notify"
)

const scheduleCacheTTL = 30 * time.Second

type SchedulerConfig struct {
	SlotLength    int
	DefaultBuffer int
	CacheSize     int
}

// Scheduler implements the booking operations on top of a Store.
type Scheduler struct {
	store         Store
	sink          notify.Sink
	logger        *zap.Logger
	cache         *scheduleCache
	slotLength    int
	defaultBuffer int
	now           func() time.Time
}

func NewScheduler(store Store, sink notify.Sink, logger *zap.Logger, cfg SchedulerConfig) *Scheduler {
	if cfg.SlotLength <= 0 {
		cfg.SlotLength = availability.DefaultSlotLength
	}
	return &Scheduler{
		store:         store,
		sink:          sink,
		logger:        logger,
		cache:         newScheduleCache(cfg.CacheSize, scheduleCacheTTL),
		slotLength:    cfg.SlotLength,
		defaultBuffer: cfg.DefaultBuffer,
		now:           time.Now,
	}
}

// SlotLength is the grid granularity in minutes.
func (s *Scheduler) SlotLength() int {
	return s.slotLength
}

// DefaultRules is 09:00-17:00 on every weekday.
func DefaultRules() []availability.Rule {
	rules := make([]availability.Rule, 0, 7)
	for d := time.Sunday; d <= time.Saturday; d++ {
		rules = append(rules, availability.Rule{Weekday: int(d), StartMin: 9 * 60, EndMin: 17 * 60})
	}
	return rules
}

// Slots returns the open start offsets for a yyyy-mm-dd date. Without an
// owner the default grid is offered.
func (s *Scheduler) Slots(ctx context.Context, date string) ([]int, error) {
	day, err := availability.ParseDate(date)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDate, err)
	}

	owner, err := s.store.FirstOwner(ctx)
	if errors.Is(err, ErrNoOwner) {
		return availability.OpenSlots(day, DefaultRules(), nil, 0, s.slotLength), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load owner: %w", err)
	}

	sched, ok := s.cache.get(owner.ID)
	if !ok {
		gen := s.cache.generation()
		sched, err = s.loadSchedule(ctx, s.store, owner.ID)
		if err != nil {
			return nil, err
		}
		s.cache.putIf(owner.ID, sched, gen)
	}
	return s.openSlots(ctx, s.store, owner.ID, day, sched)
}

func (s *Scheduler) loadSchedule(ctx context.Context, r scheduleReader, ownerID string) (schedule, error) {
	rules, err := r.Rules(ctx, ownerID)
	if err != nil {
		return schedule{}, fmt.Errorf("load availability: %w", err)
	}
	buffer, ok, err := r.Buffer(ctx, ownerID)
	if err != nil {
		return schedule{}, fmt.Errorf("load buffer: %w", err)
	}
	if !ok {
		buffer = s.defaultBuffer
	}
	return schedule{rules: rules, buffer: buffer}, nil
}

// openSlots fetches the bookings that can touch day (widened by the buffer)
// and runs the engine over them.
func (s *Scheduler) openSlots(ctx context.Context, r scheduleReader, ownerID string, day time.Time, sched schedule) ([]int, error) {
	start := day
	end := day.Add(24 * time.Hour)
	pad := time.Duration(sched.buffer) * time.Minute

	bookings, err := r.BookingsBetween(ctx, ownerID, start.Add(-pad), end.Add(pad))
	if err != nil {
		return nil, fmt.Errorf("load bookings: %w", err)
	}

	intervals := make([]availability.Interval, 0, len(bookings))
	for _, b := range bookings {
		intervals = append(intervals, availability.Interval{
			StartMin: availability.MinutesSince(start, b.StartUTC),
			EndMin:   availability.MinutesSince(start, b.EndUTC),
		})
	}
	return availability.OpenSlots(day, sched.rules, intervals, sched.buffer, s.slotLength), nil
}
