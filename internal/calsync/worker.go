package calsync

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

const maxRetryDelay = time.Hour

type jobStore interface {
	Claim(ctx context.Context, limit int, lease time.Duration) ([]Job, error)
	LoadBooking(ctx context.Context, id string) (Booking, error)
	Complete(ctx context.Context, job Job, eventID string) error
	Fail(ctx context.Context, id int64, attempts int, dead bool, nextRunAt time.Time, reason string) error
}

var _ jobStore = (*Repository)(nil)

type WorkerConfig struct {
	Interval  time.Duration
	BatchSize int
	Backoff   time.Duration
	// Lease is how long a claimed job stays hidden from other workers.
	Lease    time.Duration
	Timezone string
}

// Worker drains calendar_sync_jobs into the external calendar. Calendar
// calls run outside any database transaction.
type Worker struct {
	jobs     jobStore
	cal      Calendar
	logger   *zap.Logger
	interval time.Duration
	batch    int
	backoff  time.Duration
	lease    time.Duration
	timezone string
	now      func() time.Time
}

func NewWorker(repo *Repository, cal Calendar, logger *zap.Logger, cfg WorkerConfig) *Worker {
	return newWorker(repo, cal, logger, cfg)
}

func newWorker(jobs jobStore, cal Calendar, logger *zap.Logger, cfg WorkerConfig) *Worker {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 20
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = 30 * time.Second
	}
	if cfg.Lease <= 0 {
		cfg.Lease = 2 * time.Minute
	}
	if cfg.Timezone == "" {
		cfg.Timezone = "UTC"
	}
	return &Worker{
		jobs:     jobs,
		cal:      cal,
		logger:   logger.Named("calsync"),
		interval: cfg.Interval,
		batch:    cfg.BatchSize,
		backoff:  cfg.Backoff,
		lease:    cfg.Lease,
		timezone: cfg.Timezone,
		now:      time.Now,
	}
}

func (w *Worker) Run(ctx context.Context) {
	if w.cal == nil {
		w.logger.Warn("calendar sync disabled (no calendar configured); jobs stay queued")
		return
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.processBatch(ctx); err != nil {
				w.logger.Error("calendar sync batch failed", zap.Error(err))
			}
		}
	}
}

func (w *Worker) processBatch(ctx context.Context) error {
	jobs, err := w.jobs.Claim(ctx, w.batch, w.lease)
	if err != nil {
		return err
	}

	for _, job := range jobs {
		if ctx.Err() != nil {
			return nil
		}
		eventID, err := w.process(ctx, job)
		if err != nil {
			if err := w.fail(ctx, job, err); err != nil {
				return err
			}
			continue
		}
		if err := w.jobs.Complete(ctx, job, eventID); err != nil {
			// The calendar already has the change. The job reappears when its
			// lease expires.
			w.logger.Error("recording calendar sync result failed",
				zap.Int64("job_id", job.ID),
				zap.String("booking_id", job.BookingID),
				zap.String("event_id", eventID),
				zap.Error(err),
			)
		}
	}
	return nil
}

func (w *Worker) process(ctx context.Context, job Job) (string, error) {
	b, err := w.jobs.LoadBooking(ctx, job.BookingID)
	if errors.Is(err, ErrBookingGone) {
		w.logger.Info("booking gone, dropping sync job", zap.Int64("job_id", job.ID), zap.String("booking_id", job.BookingID))
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return dispatch(ctx, w.cal, job.Action, b, w.timezone)
}

func (w *Worker) fail(ctx context.Context, job Job, cause error) error {
	attempts := job.Attempts + 1
	dead := attempts >= job.MaxAttempts
	w.logger.Warn("calendar sync failed",
		zap.Int64("job_id", job.ID),
		zap.String("booking_id", job.BookingID),
		zap.String("action", string(job.Action)),
		zap.Int("attempts", attempts),
		zap.Bool("dead", dead),
		zap.Error(cause),
	)
	next := w.now().UTC().Add(retryDelay(w.backoff, attempts))
	return w.jobs.Fail(ctx, job.ID, attempts, dead, next, cause.Error())
}

// dispatch applies one job to the calendar. It returns the new event id for
// a successful insert and "" otherwise.
func dispatch(ctx context.Context, cal Calendar, action Action, b Booking, tz string) (string, error) {
	switch action {
	case ActionInsert:
		if b.Status != "confirmed" || b.EventID != "" {
			return "", nil
		}
		return cal.InsertEvent(ctx, EventFor(b, tz))
	case ActionDelete:
		if b.EventID == "" {
			return "", nil
		}
		return "", cal.DeleteEvent(ctx, b.EventID)
	default:
		return "", errors.New("unknown calendar sync action " + string(action))
	}
}

// EventFor builds the calendar payload for a booking.
func EventFor(b Booking, tz string) Event {
	return Event{
		Summary:     "Meeting with " + b.Name,
		Description: b.Notes,
		Start:       b.StartUTC,
		End:         b.EndUTC,
		Timezone:    tz,
	}
}

func retryDelay(base time.Duration, attempts int) time.Duration {
	if attempts < 1 {
		attempts = 1
	}
	d := base * time.Duration(attempts)
	if d > maxRetryDelay {
		return maxRetryDelay
	}
	return d
}
