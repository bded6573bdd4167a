package repository

import (
	"context"
	"errors"
	"time"

	"github.com/Domenick1991/travelgo/internal/domain"
	"github.com/jackc/pgx/v5"
)

type BookingRepository interface {
	Create(ctx context.Context, booking *domain.Booking) error
	GetByID(ctx context.Context, id int64) (*domain.Booking, error)
	List(ctx context.Context, email string) ([]domain.Booking, error)
	ConfirmPayment(ctx context.Context, id int64, ref domain.PaymentReference) (*domain.Booking, error)
	TransitionStatus(ctx context.Context, id int64, from, to domain.BookingStatus) (*domain.Booking, error)
	ExpirePendingBefore(ctx context.Context, deadline time.Time) ([]domain.Booking, error)
}

type PGBookingRepository struct {
	db DB
}

func NewBookingRepository(db DB) BookingRepository {
	return &PGBookingRepository{db: db}
}

// bookingColumns reads a booking aliased b together with its flight f.
const bookingColumns = `b.id, b.flight_id, b.passenger_name, b.passenger_email, b.passenger_phone, b.seat_number,
	b.total_price_cents, b.booking_location, b.device_id, b.departure_time, b.status,
	b.order_id, b.payment_id, b.signature, b.created_at, b.updated_at,
	f.airline, f.origin, f.destination`

const bookingJoin = ` b JOIN flights f ON f.id = b.flight_id`

// returningBooking wraps a data-modifying statement ending in RETURNING * so
// the rows it touched come back joined with their flight.
func returningBooking(stmt string) string {
	return `WITH b AS (` + stmt + `) SELECT ` + bookingColumns + ` FROM` + bookingJoin
}

func scanBooking(row pgx.Row) (*domain.Booking, error) {
	var b domain.Booking
	if err := row.Scan(&b.ID, &b.FlightID, &b.PassengerName, &b.PassengerEmail, &b.PassengerPhone, &b.SeatNumber,
		&b.TotalPriceCents, &b.BookingLocation, &b.DeviceID, &b.DepartureTime, &b.Status,
		&b.Payment.OrderID, &b.Payment.PaymentID, &b.Payment.Signature, &b.CreatedAt, &b.UpdatedAt,
		&b.FlightAirline, &b.FlightOrigin, &b.FlightDestination); err != nil {
		return nil, err
	}
	return &b, nil
}

// Create inserts the booking with whatever status and payment fields the
// caller prepared. created_at is assigned by the database.
func (r *PGBookingRepository) Create(ctx context.Context, booking *domain.Booking) error {
	err := r.db.QueryRow(ctx, `WITH b AS (INSERT INTO bookings (flight_id, passenger_name, passenger_email, passenger_phone, seat_number,
		total_price_cents, booking_location, device_id, departure_time, status, order_id, payment_id, signature)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id, flight_id, created_at, updated_at)
		SELECT b.id, b.created_at, b.updated_at, f.airline, f.origin, f.destination FROM`+bookingJoin,
		booking.FlightID, booking.PassengerName, booking.PassengerEmail, booking.PassengerPhone, booking.SeatNumber,
		booking.TotalPriceCents, booking.BookingLocation, booking.DeviceID, booking.DepartureTime, booking.Status,
		booking.Payment.OrderID, booking.Payment.PaymentID, booking.Payment.Signature).
		Scan(&booking.ID, &booking.CreatedAt, &booking.UpdatedAt,
			&booking.FlightAirline, &booking.FlightOrigin, &booking.FlightDestination)
	switch pgErrorCode(err) {
	case pgUniqueViolation:
		return domain.ErrSeatTaken
	case pgForeignKeyViolation:
		return domain.ErrFlightNotFound
	}
	return err
}

func (r *PGBookingRepository) GetByID(ctx context.Context, id int64) (*domain.Booking, error) {
	b, err := scanBooking(r.db.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings`+bookingJoin+` WHERE b.id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return b, err
}

// List returns bookings newest first, optionally only those of one passenger email.
func (r *PGBookingRepository) List(ctx context.Context, email string) ([]domain.Booking, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if email == "" {
		rows, err = r.db.Query(ctx, `SELECT `+bookingColumns+` FROM bookings`+bookingJoin+` ORDER BY b.created_at DESC, b.id DESC`)
	} else {
		rows, err = r.db.Query(ctx, `SELECT `+bookingColumns+` FROM bookings`+bookingJoin+`
			WHERE b.passenger_email=$1 ORDER BY b.created_at DESC, b.id DESC`, email)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	bookings := make([]domain.Booking, 0)
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, *b)
	}
	return bookings, rows.Err()
}

// ConfirmPayment moves a PENDING booking to BOOKED and stores the payment
// reference in one statement. ErrStatusChanged means the row was no longer
// PENDING when the update ran.
func (r *PGBookingRepository) ConfirmPayment(ctx context.Context, id int64, ref domain.PaymentReference) (*domain.Booking, error) {
	b, err := scanBooking(r.db.QueryRow(ctx, returningBooking(`UPDATE bookings
		SET status=$1, order_id=CASE WHEN order_id = '' THEN $2 ELSE order_id END, payment_id=$3, signature=$4, updated_at=now()
		WHERE id=$5 AND status=$6
		RETURNING *`),
		domain.BookingStatusBooked, ref.OrderID, ref.PaymentID, ref.Signature, id, domain.BookingStatusPending))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrStatusChanged
	}
	return b, err
}

// TransitionStatus is a compare-and-swap on status: the update only applies
// while the row still has status from.
func (r *PGBookingRepository) TransitionStatus(ctx context.Context, id int64, from, to domain.BookingStatus) (*domain.Booking, error) {
	b, err := scanBooking(r.db.QueryRow(ctx, returningBooking(`UPDATE bookings SET status=$1, updated_at=now()
		WHERE id=$2 AND status=$3
		RETURNING *`), to, id, from))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrStatusChanged
	}
	return b, err
}

// ExpirePendingBefore fails every PENDING booking created before deadline.
func (r *PGBookingRepository) ExpirePendingBefore(ctx context.Context, deadline time.Time) ([]domain.Booking, error) {
	rows, err := r.db.Query(ctx, returningBooking(`UPDATE bookings SET status=$1, updated_at=now()
		WHERE status=$2 AND created_at <= $3
		RETURNING *`), domain.BookingStatusFailed, domain.BookingStatusPending, deadline)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var expired []domain.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		expired = append(expired, *b)
	}
	return expired, rows.Err()
}

var _ BookingRepository = (*PGBookingRepository)(nil)
