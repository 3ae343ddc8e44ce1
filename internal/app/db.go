package app

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"meeting-scheduler/internal/availability"
	"meeting-scheduler/internal/calsync"
)

//go:embed schema.sql
var schemaSQL string

const uniqueViolation = "23505"

// OpenPool connects and pings the database.
func OpenPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, err
	}
	cfg.MaxConns = 10
	cfg.MinConns = 1
	cfg.MaxConnLifetime = 30 * time.Minute
	cfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

// Migrate applies the embedded schema. Statements are idempotent.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type queries struct {
	q querier
}

func (s queries) Rules(ctx context.Context, ownerID string) ([]availability.Rule, error) {
	q := `SELECT weekday, start_min, end_min
	      FROM availability_rules WHERE owner_id=$1 ORDER BY weekday, id`
	rows, err := s.q.Query(ctx, q, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []availability.Rule
	for rows.Next() {
		var r availability.Rule
		if err := rows.Scan(&r.Weekday, &r.StartMin, &r.EndMin); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s queries) Buffer(ctx context.Context, ownerID string) (int, bool, error) {
	var minutes int
	err := s.q.QueryRow(ctx, `SELECT minutes FROM buffer_settings WHERE owner_id=$1`, ownerID).Scan(&minutes)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return minutes, true, nil
}

func (s queries) BookingsBetween(ctx context.Context, ownerID string, from, to time.Time) ([]Booking, error) {
	q := `SELECT ` + bookingColumns + `
	      FROM bookings
	      WHERE owner_id=$1 AND status='confirmed' AND start_utc < $3 AND end_utc > $2
	      ORDER BY start_utc`
	return s.listBookings(ctx, q, ownerID, from, to)
}

func (s queries) listBookings(ctx context.Context, q string, args ...any) ([]Booking, error) {
	rows, err := s.q.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

const bookingColumns = `id, owner_id, name, email, notes, start_utc, end_utc, status, calendar_event_id, created_at`

func scanBooking(row pgx.Row) (Booking, error) {
	var b Booking
	err := row.Scan(&b.ID, &b.OwnerID, &b.Name, &b.Email, &b.Notes,
		&b.StartUTC, &b.EndUTC, &b.Status, &b.CalendarEventID, &b.CreatedAt)
	return b, err
}

var (
	_ Store = (*PgStore)(nil)
	_ Tx    = (*pgTx)(nil)
)

// PgStore is the Postgres implementation of Store.
type PgStore struct {
	queries
	pool        *pgxpool.Pool
	jobs        *calsync.Repository
	maxAttempts int
}

func NewPgStore(pool *pgxpool.Pool, jobs *calsync.Repository, maxSyncAttempts int) *PgStore {
	if maxSyncAttempts <= 0 {
		maxSyncAttempts = 8
	}
	return &PgStore{queries: queries{q: pool}, pool: pool, jobs: jobs, maxAttempts: maxSyncAttempts}
}

func (s *PgStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PgStore) FirstOwner(ctx context.Context) (Owner, error) {
	q := `SELECT id, email, name, timezone, created_at FROM owners ORDER BY created_at, id LIMIT 1`
	return s.scanOwner(s.pool.QueryRow(ctx, q))
}

func (s *PgStore) Owner(ctx context.Context, id string) (Owner, error) {
	q := `SELECT id, email, name, timezone, created_at FROM owners WHERE id=$1`
	return s.scanOwner(s.pool.QueryRow(ctx, q, id))
}

func (s *PgStore) scanOwner(row pgx.Row) (Owner, error) {
	var o Owner
	err := row.Scan(&o.ID, &o.Email, &o.Name, &o.Timezone, &o.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Owner{}, ErrNoOwner
	}
	return o, err
}

func (s *PgStore) UpsertRule(ctx context.Context, ownerID string, r availability.Rule) error {
	now := time.Now().UTC()
	q := `INSERT INTO availability_rules (owner_id, weekday, start_min, end_min, created_at, updated_at)
	      VALUES ($1,$2,$3,$4,$5,$5)
	      ON CONFLICT (owner_id, weekday)
	      DO UPDATE SET start_min=EXCLUDED.start_min, end_min=EXCLUDED.end_min, updated_at=EXCLUDED.updated_at`
	_, err := s.pool.Exec(ctx, q, ownerID, r.Weekday, r.StartMin, r.EndMin, now)
	return err
}

func (s *PgStore) DeleteRule(ctx context.Context, ownerID string, weekday int) error {
	res, err := s.pool.Exec(ctx, `DELETE FROM availability_rules WHERE owner_id=$1 AND weekday=$2`, ownerID, weekday)
	if err != nil {
		return err
	}
	if res.RowsAffected() == 0 {
		return ErrRuleNotFound
	}
	return nil
}

func (s *PgStore) SetBuffer(ctx context.Context, ownerID string, minutes int) error {
	q := `INSERT INTO buffer_settings (owner_id, minutes, updated_at) VALUES ($1,$2,now())
	      ON CONFLICT (owner_id) DO UPDATE SET minutes=EXCLUDED.minutes, updated_at=EXCLUDED.updated_at`
	_, err := s.pool.Exec(ctx, q, ownerID, minutes)
	return err
}

func (s *PgStore) Upcoming(ctx context.Context, ownerID string, from time.Time) ([]Booking, error) {
	q := `SELECT ` + bookingColumns + `
	      FROM bookings
	      WHERE owner_id=$1 AND status='confirmed' AND start_utc >= $2
	      ORDER BY start_utc`
	return s.listBookings(ctx, q, ownerID, from)
}

func (s *PgStore) WithTx(ctx context.Context, fn func(Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(&pgTx{queries: queries{q: tx}, tx: tx, jobs: s.jobs, maxAttempts: s.maxAttempts}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// SeedDemoOwner creates the single owner with Mon-Fri 09:00-17:00 hours and
// the given buffer. It does nothing when an owner already exists.
func (s *PgStore) SeedDemoOwner(ctx context.Context, o Owner, bufferMinutes int) (Owner, bool, error) {
	existing, err := s.FirstOwner(ctx)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, ErrNoOwner) {
		return Owner{}, false, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Owner{}, false, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx,
		`INSERT INTO owners (id, email, name, timezone, created_at) VALUES ($1,$2,$3,$4,$5)`,
		o.ID, o.Email, o.Name, o.Timezone, o.CreatedAt); err != nil {
		return Owner{}, false, err
	}
	for _, r := range DefaultRules() {
		if r.Weekday == int(time.Saturday) || r.Weekday == int(time.Sunday) {
			continue
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO availability_rules (owner_id, weekday, start_min, end_min) VALUES ($1,$2,$3,$4)`,
			o.ID, r.Weekday, r.StartMin, r.EndMin); err != nil {
			return Owner{}, false, err
		}
	}
	if _, err := tx.Exec(ctx, `INSERT INTO buffer_settings (owner_id, minutes) VALUES ($1,$2)`, o.ID, bufferMinutes); err != nil {
		return Owner{}, false, err
	}
	err = tx.Commit(ctx)
	if err != nil {
		return Owner{}, false, err
	}
	return o, true, nil
}

type pgTx struct {
	queries
	tx          pgx.Tx
	jobs        *calsync.Repository
	maxAttempts int
}

func (t *pgTx) LockOwner(ctx context.Context, ownerID string) error {
	var id string
	err := t.tx.QueryRow(ctx, `SELECT id FROM owners WHERE id=$1 FOR UPDATE`, ownerID).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNoOwner
	}
	return err
}

func (t *pgTx) InsertBooking(ctx context.Context, b *Booking) error {
	q := `INSERT INTO bookings
		(id, owner_id, name, email, notes, start_utc, end_utc, status, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`
	_, err := t.tx.Exec(ctx, q, b.ID, b.OwnerID, b.Name, b.Email, b.Notes,
		b.StartUTC, b.EndUTC, b.Status, b.CreatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrSlotUnavailable
	}
	return err
}

func (t *pgTx) CancelBooking(ctx context.Context, id string) (Booking, error) {
	q := `UPDATE bookings SET status='cancelled'
	      WHERE id=$1 AND status='confirmed'
	      RETURNING ` + bookingColumns
	b, err := scanBooking(t.tx.QueryRow(ctx, q, id))
	if err == nil {
		return b, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return Booking{}, err
	}

	var status string
	err = t.tx.QueryRow(ctx, `SELECT status FROM bookings WHERE id=$1`, id).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return Booking{}, ErrBookingNotFound
	}
	if err != nil {
		return Booking{}, err
	}
	return Booking{}, ErrAlreadyCancelled
}

func (t *pgTx) EnqueueCalendarSync(ctx context.Context, bookingID string, action calsync.Action) error {
	return t.jobs.Enqueue(ctx, t.tx, bookingID, action, t.maxAttempts)
}
