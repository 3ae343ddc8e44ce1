package calsync

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Action string

const (
	ActionInsert Action = "insert"
	ActionDelete Action = "delete"
)

const (
	statusPending = "pending"
	statusDone    = "done"
	statusDead    = "dead"
)

type Job struct {
	ID          int64
	BookingID   string
	Action      Action
	Attempts    int
	MaxAttempts int
}

// Booking is the slice of a booking row the worker needs.
type Booking struct {
	ID       string
	Name     string
	Notes    string
	StartUTC time.Time
	EndUTC   time.Time
	Status   string
	EventID  string
}

// ErrBookingGone means the job's booking row no longer exists.
var ErrBookingGone = errors.New("booking gone")

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Enqueue runs inside the caller's transaction so the job commits with the booking change.
func (r *Repository) Enqueue(ctx context.Context, tx pgx.Tx, bookingID string, action Action, maxAttempts int) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO calendar_sync_jobs (booking_id, action, status, attempts, max_attempts, next_run_at)
		VALUES ($1, $2, $3, 0, $4, now())
	`, bookingID, string(action), statusPending, maxAttempts)
	return err
}

// Claim leases up to limit due jobs by pushing their next_run_at past the
// lease. The statement commits on its own, so no row lock outlives it. A job
// whose worker dies becomes due again once the lease runs out.
func (r *Repository) Claim(ctx context.Context, limit int, lease time.Duration) ([]Job, error) {
	rows, err := r.pool.Query(ctx, `
		WITH due AS (
			SELECT id FROM calendar_sync_jobs
			WHERE status = $1 AND next_run_at <= now()
			ORDER BY id
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		)
		UPDATE calendar_sync_jobs j
		SET next_run_at = now() + make_interval(secs => $3), updated_at = now()
		FROM due
		WHERE j.id = due.id
		RETURNING j.id, j.booking_id, j.action, j.attempts, j.max_attempts
	`, statusPending, limit, lease.Seconds())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		var j Job
		var action string
		if err := rows.Scan(&j.ID, &j.BookingID, &action, &j.Attempts, &j.MaxAttempts); err != nil {
			return nil, err
		}
		j.Action = Action(action)
		jobs = append(jobs, j)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// RETURNING order is unspecified.
	sort.Slice(jobs, func(a, b int) bool { return jobs[a].ID < jobs[b].ID })
	return jobs, nil
}

func (r *Repository) LoadBooking(ctx context.Context, id string) (Booking, error) {
	var b Booking
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, notes, start_utc, end_utc, status, calendar_event_id
		FROM bookings WHERE id = $1
	`, id).Scan(&b.ID, &b.Name, &b.Notes, &b.StartUTC, &b.EndUTC, &b.Status, &b.EventID)
	if errors.Is(err, pgx.ErrNoRows) {
		return Booking{}, ErrBookingGone
	}
	return b, err
}

// Complete records the calendar event id (when one was created) and marks the
// job done in one transaction.
func (r *Repository) Complete(ctx context.Context, job Job, eventID string) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if eventID != "" {
			if _, err := tx.Exec(ctx, `UPDATE bookings SET calendar_event_id = $2 WHERE id = $1`, job.BookingID, eventID); err != nil {
				return err
			}
		}
		_, err := tx.Exec(ctx, `
			UPDATE calendar_sync_jobs
			SET status = $2, updated_at = now()
			WHERE id = $1
		`, job.ID, statusDone)
		return err
	})
}

func (r *Repository) Fail(ctx context.Context, id int64, attempts int, dead bool, nextRunAt time.Time, reason string) error {
	status := statusPending
	if dead {
		status = statusDead
	}
	_, err := r.pool.Exec(ctx, `
		UPDATE calendar_sync_jobs
		SET attempts = $2, status = $3, next_run_at = $4, last_error = $5, updated_at = now()
		WHERE id = $1
	`, id, attempts, status, nextRunAt, reason)
	return err
}
