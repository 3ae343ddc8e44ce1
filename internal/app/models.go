package app

import (
	"errors"
	"time"
)

const (
	StatusConfirmed = "confirmed"
	StatusCancelled = "cancelled"
)

// MaxBufferMinutes caps the owner's buffer setting.
const MaxBufferMinutes = 120

var (
	ErrNoOwner          = errors.New("no owner configured")
	ErrSlotUnavailable  = errors.New("slot not available")
	ErrBookingNotFound  = errors.New("booking not found")
	ErrAlreadyCancelled = errors.New("booking already cancelled")
	ErrRuleNotFound     = errors.New("availability not found")
	ErrInvalidDate      = errors.New("invalid date")
	ErrInvalidBooking   = errors.New("invalid booking")
	ErrInvalidBuffer    = errors.New("buffer must be between 0 and 120 minutes")
	ErrInvalidRule      = errors.New("invalid availability rule")
	ErrUnauthenticated  = errors.New("unauthenticated")
)

type Owner struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Timezone  string    `json:"timezone"`
	CreatedAt time.Time `json:"created_at"`
}

type Booking struct {
	ID              string    `json:"id"`
	OwnerID         string    `json:"owner_id"`
	Name            string    `json:"name"`
	Email           string    `json:"email"`
	Notes           string    `json:"notes,omitempty"`
	StartUTC        time.Time `json:"start_utc"`
	EndUTC          time.Time `json:"end_utc"`
	Status          string    `json:"status"`
	CalendarEventID string    `json:"calendar_event_id,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// BookingRequest is a visitor's reservation of one grid slot.
type BookingRequest struct {
	Date     string `json:"date" binding:"required"`
	StartMin int    `json:"start_min" binding:"min=0,max=1439"`
	Name     string `json:"name" binding:"required,min=2"`
	Email    string `json:"email" binding:"required,email"`
	Notes    string `json:"notes,omitempty"`
}
