package app

import "github.com/gin-gonic/gin"

// Register mounts the public and owner routes. auth guards owner routes and
// bookingLimit throttles booking creation.
func (a *App) Register(r *gin.Engine, auth, bookingLimit gin.HandlerFunc) {
	if bookingLimit == nil {
		bookingLimit = func(c *gin.Context) { c.Next() }
	}
	r.GET("/healthz", a.HealthHandler)
	r.GET("/readyz", a.ReadyHandler)

	api := r.Group("/api")
	{
		api.GET("/slots", a.GetSlotsHandler)
		api.GET("/buffer", a.GetBufferHandler)
		api.POST("/bookings", bookingLimit, a.CreateBookingHandler)
		api.GET("/events", a.EventsHandler)
	}

	owner := api.Group("", auth)
	{
		owner.PUT("/buffer", a.SetBufferHandler)

		owner.GET("/availability", a.ListAvailabilityHandler)
		owner.PUT("/availability/:weekday", a.SetAvailabilityHandler)
		owner.DELETE("/availability/:weekday", a.DeleteAvailabilityHandler)

		owner.GET("/bookings", a.ListBookingsHandler)
		owner.GET("/bookings.ics", a.BookingsICSHandler)
		owner.DELETE("/bookings/:id", a.CancelBookingHandler)
	}
}
