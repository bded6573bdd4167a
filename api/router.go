package api

import (
	"time"

	"github.com/Domenick1991/travelgo/internal/service/booking"
	"github.com/Domenick1991/travelgo/internal/service/flights"
	"github.com/Domenick1991/travelgo/internal/service/foodorders"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type Services struct {
	Flights    flights.FlightUseCase
	Bookings   booking.BookingUseCase
	FoodOrders foodorders.FoodOrderUseCase
}

// NewRouter mounts every handler under /api.
func NewRouter(log logrus.FieldLogger, svc Services) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), RequestLogger(log), gzip.Gzip(gzip.DefaultCompression))

	group := r.Group("/api")
	NewFlightHandler(svc.Flights).Register(group.Group("/flights"))
	NewBookingHandler(svc.Bookings).Register(group.Group("/bookings"))
	NewFoodOrderHandler(svc.FoodOrders).Register(group.Group("/food-orders"))
	return r
}

func RequestLogger(log logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		entry := log.WithFields(logrus.Fields{
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"status":  c.Writer.Status(),
			"latency": time.Since(start).String(),
		})
		if err := c.Errors.Last(); err != nil {
			entry.WithError(err.Err).Warn("request failed")
			return
		}
		entry.Info("request handled")
	}
}
