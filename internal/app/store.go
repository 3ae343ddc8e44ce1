package app

import (
	"context"
	"time"

	"meeting-scheduler/internal/availability"
	"meeting-scheduler/internal/calsync"
)

// scheduleReader is what slot computation needs, inside or outside a transaction.
type scheduleReader interface {
	Rules(ctx context.Context, ownerID string) ([]availability.Rule, error)
	// Buffer reports ok=false when the owner never set one.
	Buffer(ctx context.Context, ownerID string) (minutes int, ok bool, err error)
	// BookingsBetween returns confirmed bookings overlapping [from, to).
	BookingsBetween(ctx context.Context, ownerID string, from, to time.Time) ([]Booking, error)
}

// Store is the persistence boundary of the scheduler.
type Store interface {
	scheduleReader

	// FirstOwner returns ErrNoOwner when the owners table is empty.
	FirstOwner(ctx context.Context) (Owner, error)
	Owner(ctx context.Context, id string) (Owner, error)

	UpsertRule(ctx context.Context, ownerID string, r availability.Rule) error
	DeleteRule(ctx context.Context, ownerID string, weekday int) error
	SetBuffer(ctx context.Context, ownerID string, minutes int) error

	// Upcoming lists confirmed bookings starting at or after from, ascending.
	Upcoming(ctx context.Context, ownerID string, from time.Time) ([]Booking, error)

	WithTx(ctx context.Context, fn func(Tx) error) error
}

// Tx is a unit of work; it commits when the WithTx callback returns nil.
type Tx interface {
	scheduleReader

	// LockOwner serialises booking changes for one owner.
	LockOwner(ctx context.Context, ownerID string) error
	InsertBooking(ctx context.Context, b *Booking) error
	CancelBooking(ctx context.Context, id string) (Booking, error)
	EnqueueCalendarSync(ctx context.Context, bookingID string, action calsync.Action) error
}
