package app

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/emersion/go-ical"
	"github.com/gin-gonic/gin"
)

const icsProductID = "-//meeting-scheduler//EN"

// WriteICS encodes bookings as an iCalendar feed.
func WriteICS(w io.Writer, bookings []Booking, stamp time.Time) error {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, icsProductID)

	for _, b := range bookings {
		ve := ical.NewComponent(ical.CompEvent)
		ve.Props.SetText(ical.PropUID, b.ID+"@meeting-scheduler")
		ve.Props.SetText(ical.PropSummary, "Meeting with "+b.Name)
		ve.Props.SetDateTime(ical.PropDateTimeStamp, stamp.UTC())
		ve.Props.SetDateTime(ical.PropDateTimeStart, b.StartUTC.UTC())
		ve.Props.SetDateTime(ical.PropDateTimeEnd, b.EndUTC.UTC())
		if b.Notes != "" {
			ve.Props.SetText(ical.PropDescription, b.Notes)
		}
		p := ical.NewProp(ical.PropAttendee)
		p.SetText(fmt.Sprintf("mailto:%s", b.Email))
		ve.Props.Add(p)
		cal.Children = append(cal.Children, ve)
	}

	if err := ical.NewEncoder(w).Encode(cal); err != nil {
		return fmt.Errorf("encode calendar: %w", err)
	}
	return nil
}

// GET /api/bookings.ics
func (a *App) BookingsICSHandler(c *gin.Context) {
	bookings, err := a.Scheduler.Upcoming(c.Request.Context())
	if err != nil {
		a.writeError(c, err)
		return
	}
	var buf bytes.Buffer
	if err := WriteICS(&buf, bookings, a.Scheduler.now()); err != nil {
		a.writeError(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="bookings.ics"`)
	c.Data(http.StatusOK, "text/calendar; charset=utf-8", buf.Bytes())
}
