package api

import (
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Domenick1991/travelgo/internal/domain"
	"github.com/Domenick1991/travelgo/internal/service/booking"
	"github.com/gin-gonic/gin"
)

type BookingHandler struct {
	service booking.BookingUseCase
}

type createBookingRequest struct {
	FlightID        int64        `json:"flight" binding:"required"`
	PassengerName   string       `json:"passenger_name" binding:"required,min=3"`
	PassengerEmail  string       `json:"passenger_email" binding:"required,email"`
	PassengerPhone  string       `json:"passenger_phone" binding:"required,phone"`
	SeatNumber      string       `json:"seat_number" binding:"required,seat"`
	TotalPriceCents int64        `json:"total_price_cents" binding:"min=0"`
	TotalPrice      *priceAmount `json:"total_price"`
	BookingLocation string       `json:"booking_location"`
	DeviceID        string       `json:"device_id"`
	DepartureTime   *time.Time   `json:"flight_departure_datetime"`
}

const invalidPriceMessage = "total_price must be a non-negative amount with at most 2 decimal places."

var errInvalidPrice = errors.New("invalid price")

// priceAmount is a decimal money amount such as "4200.50" or 4200.5, held in
// cents. Both JSON numbers and numeric strings are accepted.
type priceAmount int64

func (p *priceAmount) UnmarshalJSON(data []byte) error {
	raw := string(data)
	if raw == "null" {
		return nil
	}
	cents, err := parseCents(strings.Trim(raw, `"`))
	if err != nil {
		return &domain.ValidationError{
			Message: invalidPriceMessage,
			Fields:  map[string]string{"total_price": invalidPriceMessage},
			Err:     err,
		}
	}
	*p = priceAmount(cents)
	return nil
}

func parseCents(s string) (int64, error) {
	whole, frac, _ := strings.Cut(s, ".")
	if whole == "" || len(frac) > 2 {
		return 0, errInvalidPrice
	}
	units, err := strconv.ParseUint(whole, 10, 63)
	if err != nil || units > (math.MaxInt64-99)/100 {
		return 0, errInvalidPrice
	}
	var fraction uint64
	if frac != "" {
		if fraction, err = strconv.ParseUint(frac, 10, 8); err != nil {
			return 0, errInvalidPrice
		}
		if len(frac) == 1 {
			fraction *= 10
		}
	}
	return int64(units*100 + fraction), nil
}

// totalPriceCents prefers total_price_cents and falls back to the decimal
// total_price. Zero means the flight price applies.
func (r createBookingRequest) totalPriceCents() int64 {
	if r.TotalPriceCents == 0 && r.TotalPrice != nil {
		return int64(*r.TotalPrice)
	}
	return r.TotalPriceCents
}

func NewBookingHandler(service booking.BookingUseCase) *BookingHandler {
	return &BookingHandler{service: service}
}

func (h *BookingHandler) Register(router *gin.RouterGroup) {
	router.GET("/", h.list)
	router.POST("/", h.create)
	router.GET("/:id", h.get)
	router.POST("/:id/verify_payment", h.verifyPayment)
	router.POST("/:id/cancel_ticket", h.cancelTicket)
}

func (h *BookingHandler) list(c *gin.Context) {
	bookings, err := h.service.ListBookings(c.Request.Context(), c.Query("email"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, bookings)
}

func (h *BookingHandler) create(c *gin.Context) {
	var req createBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}

	created, err := h.service.CreateBooking(c.Request.Context(), booking.CreateBookingInput{
		FlightID:        req.FlightID,
		PassengerName:   req.PassengerName,
		PassengerEmail:  req.PassengerEmail,
		PassengerPhone:  req.PassengerPhone,
		SeatNumber:      req.SeatNumber,
		TotalPriceCents: req.totalPriceCents(),
		BookingLocation: req.BookingLocation,
		DeviceID:        req.DeviceID,
		DepartureTime:   req.DepartureTime,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (h *BookingHandler) get(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	b, err := h.service.GetBooking(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

func (h *BookingHandler) verifyPayment(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	b, err := h.service.VerifyPayment(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "Payment Verified", "booking": b})
}

func (h *BookingHandler) cancelTicket(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	b, err := h.service.CancelBooking(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "Ticket Cancelled", "booking": b})
}
