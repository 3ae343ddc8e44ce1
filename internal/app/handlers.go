package app

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"meeting-scheduler/internal/availability"
	"meeting-scheduler/internal/notify"
)

// App holds the HTTP handlers.
type App struct {
	Scheduler *Scheduler
	Hub       *notify.Hub
	Logger    *zap.Logger
	// Ready reports whether dependencies such as the database are reachable.
	Ready func(ctx context.Context) error
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrInvalidDate),
		errors.Is(err, ErrInvalidBooking),
		errors.Is(err, ErrInvalidBuffer),
		errors.Is(err, ErrInvalidRule):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, ErrNoOwner),
		errors.Is(err, ErrBookingNotFound),
		errors.Is(err, ErrRuleNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrSlotUnavailable),
		errors.Is(err, ErrAlreadyCancelled):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (a *App) writeError(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		a.Logger.Error("request failed",
			zap.String("path", c.FullPath()),
			zap.Error(err))
		c.JSON(status, gin.H{"error": "internal error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// GET /healthz
func (a *App) HealthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// GET /readyz
func (a *App) ReadyHandler(c *gin.Context) {
	if a.Ready != nil {
		if err := a.Ready(c.Request.Context()); err != nil {
			a.Logger.Warn("readiness check failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

// GET /api/slots?date=yyyy-mm-dd
func (a *App) GetSlotsHandler(c *gin.Context) {
	date := c.Query("date")
	if date == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "date required (yyyy-mm-dd)"})
		return
	}
	slots, err := a.Scheduler.Slots(c.Request.Context(), date)
	if err != nil {
		a.writeError(c, err)
		return
	}
	times := make([]string, len(slots))
	for i, m := range slots {
		times[i] = availability.FormatMinutes(m)
	}
	c.JSON(http.StatusOK, gin.H{
		"date":                date,
		"slot_length_minutes": a.Scheduler.SlotLength(),
		"slots":               slots,
		"times":               times,
	})
}

// POST /api/bookings
func (a *App) CreateBookingHandler(c *gin.Context) {
	var req BookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	b, err := a.Scheduler.Book(c.Request.Context(), req)
	if err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"id":        b.ID,
		"start_utc": b.StartUTC,
		"end_utc":   b.EndUTC,
		"status":    b.Status,
	})
}

// GET /api/bookings
func (a *App) ListBookingsHandler(c *gin.Context) {
	bookings, err := a.Scheduler.Upcoming(c.Request.Context())
	if err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, bookings)
}

// DELETE /api/bookings/:id
func (a *App) CancelBookingHandler(c *gin.Context) {
	b, err := a.Scheduler.Cancel(c.Request.Context(), c.Param("id"))
	if err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": b.ID, "status": b.Status})
}

// GET /api/buffer
func (a *App) GetBufferHandler(c *gin.Context) {
	minutes, err := a.Scheduler.Buffer(c.Request.Context())
	if err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"minutes": minutes})
}

type bufferReq struct {
	Minutes *int `json:"minutes" binding:"required"`
}

// PUT /api/buffer
func (a *App) SetBufferHandler(c *gin.Context) {
	var req bufferReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := a.Scheduler.SetBuffer(c.Request.Context(), PrincipalFrom(c), *req.Minutes); err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"minutes": *req.Minutes})
}

// GET /api/availability
func (a *App) ListAvailabilityHandler(c *gin.Context) {
	rules, err := a.Scheduler.Rules(c.Request.Context(), PrincipalFrom(c))
	if err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rules)
}

type ruleReq struct {
	StartMin *int `json:"start_min" binding:"required"`
	EndMin   *int `json:"end_min" binding:"required"`
}

// PUT /api/availability/:weekday
func (a *App) SetAvailabilityHandler(c *gin.Context) {
	weekday, err := strconv.Atoi(c.Param("weekday"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid weekday"})
		return
	}
	var req ruleReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	rule := availability.Rule{Weekday: weekday, StartMin: *req.StartMin, EndMin: *req.EndMin}
	if err := a.Scheduler.SetRule(c.Request.Context(), PrincipalFrom(c), rule); err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rule)
}

// DELETE /api/availability/:weekday
func (a *App) DeleteAvailabilityHandler(c *gin.Context) {
	weekday, err := strconv.Atoi(c.Param("weekday"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid weekday"})
		return
	}
	if err := a.Scheduler.DeleteRule(c.Request.Context(), PrincipalFrom(c), weekday); err != nil {
		a.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
