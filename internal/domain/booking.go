package domain

import "time"

type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "PENDING"
	BookingStatusBooked    BookingStatus = "BOOKED"
	BookingStatusCancelled BookingStatus = "CANCELLED"
	BookingStatusFailed    BookingStatus = "FAILED"
)

const (
	// DefaultCancellationWindow is how long before departure a booking stops being cancellable.
	DefaultCancellationWindow = 4 * time.Hour
	// FullRefundPeriod is measured from booking creation.
	FullRefundPeriod = 24 * time.Hour
	// DefaultPartialRefundPercent applies once FullRefundPeriod has elapsed.
	DefaultPartialRefundPercent = 70
)

var transitions = map[BookingStatus][]BookingStatus{
	BookingStatusPending:   {BookingStatusBooked, BookingStatusFailed, BookingStatusCancelled},
	BookingStatusBooked:    {BookingStatusCancelled},
	BookingStatusCancelled: {},
	BookingStatusFailed:    {},
}

func (s BookingStatus) IsValid() bool {
	_, ok := transitions[s]
	return ok
}

// CanTransitionTo reports whether the lifecycle allows moving from s to target.
func (s BookingStatus) CanTransitionTo(target BookingStatus) bool {
	for _, t := range transitions[s] {
		if t == target {
			return true
		}
	}
	return false
}

// IsTerminal is true for statuses that admit no further transition. Unknown
// statuses are treated as terminal.
func (s BookingStatus) IsTerminal() bool {
	return len(transitions[s]) == 0
}

func (s BookingStatus) String() string {
	return string(s)
}

// PaymentReference is the locally generated order/payment/signature triple.
// None of it comes from a real payment processor.
type PaymentReference struct {
	OrderID   string `json:"order_id"`
	PaymentID string `json:"payment_id"`
	Signature string `json:"signature"`
}

type Booking struct {
	ID              int64            `json:"id"`
	FlightID        int64            `json:"flight_id"`
	PassengerName   string           `json:"passenger_name"`
	PassengerEmail  string           `json:"passenger_email"`
	PassengerPhone  string           `json:"passenger_phone"`
	SeatNumber      string           `json:"seat_number"`
	TotalPriceCents int64            `json:"total_price_cents"`
	BookingLocation string           `json:"booking_location"`
	DeviceID        string           `json:"device_id"`
	DepartureTime   *time.Time       `json:"flight_departure_datetime"`
	Status          BookingStatus    `json:"status"`
	Payment         PaymentReference `json:"payment"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`

	// Read-only copies of the booked flight, filled in by the repository.
	FlightAirline     string `json:"flight_airline"`
	FlightOrigin      string `json:"flight_origin"`
	FlightDestination string `json:"flight_destination"`
}

// CanCancel reports whether the booking may still be cancelled at now: the
// departure must be known and lie strictly more than window ahead.
func (b *Booking) CanCancel(now time.Time, window time.Duration) bool {
	if b.DepartureTime == nil {
		return false
	}
	return b.DepartureTime.After(now.Add(window))
}

type RefundTier string

const (
	RefundFull    RefundTier = "full"
	RefundPartial RefundTier = "partial"
)

// RefundEligibility returns the full tier while less than FullRefundPeriod has
// passed since creation. The boundary itself is partial.
func (b *Booking) RefundEligibility(now time.Time) RefundTier {
	if now.Sub(b.CreatedAt) < FullRefundPeriod {
		return RefundFull
	}
	return RefundPartial
}
