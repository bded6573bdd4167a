package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Domenick1991/travelgo/internal/domain"
	"github.com/Domenick1991/travelgo/internal/kafka"
	"github.com/Domenick1991/travelgo/internal/notification"
	"github.com/Domenick1991/travelgo/internal/repository"
	"github.com/Domenick1991/travelgo/internal/validation"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
)

const (
	EventBookingCreated   = "booking_created"
	EventBookingConfirmed = "booking_confirmed"
	EventBookingCancelled = "booking_cancelled"
	EventBookingFailed    = "booking_failed"
)

type Flow string

const (
	FlowTwoStep Flow = "two_step"
	FlowInstant Flow = "instant"
)

type BookingUseCase interface {
	CreateBooking(ctx context.Context, input CreateBookingInput) (*domain.Booking, error)
	GetBooking(ctx context.Context, id int64) (*domain.Booking, error)
	ListBookings(ctx context.Context, email string) ([]domain.Booking, error)
	VerifyPayment(ctx context.Context, id int64) (*domain.Booking, error)
	CancelBooking(ctx context.Context, id int64) (*domain.Booking, error)
	ExpireStalePending(ctx context.Context) ([]domain.Booking, error)
}

type SeatLocker interface {
	AcquireSeatLock(ctx context.Context, flightID int64, seat, owner string, ttl time.Duration) (bool, error)
	ReleaseSeatLock(ctx context.Context, flightID int64, seat, owner string) error
}

type Producer interface {
	Publish(ctx context.Context, topic, key string, payload interface{}) error
}

type Notifier interface {
	Notify(ctx context.Context, msg notification.Message) error
}

type CreateBookingInput struct {
	FlightID        int64      `json:"flight" validate:"required"`
	PassengerName   string     `json:"passenger_name" validate:"required,min=3"`
	PassengerEmail  string     `json:"passenger_email" validate:"required,email"`
	PassengerPhone  string     `json:"passenger_phone" validate:"required,phone"`
	SeatNumber      string     `json:"seat_number" validate:"required,seat"`
	TotalPriceCents int64      `json:"total_price_cents" validate:"min=0"`
	BookingLocation string     `json:"booking_location"`
	DeviceID        string     `json:"device_id"`
	DepartureTime   *time.Time `json:"flight_departure_datetime"`
}

type BookingService struct {
	bookings repository.BookingRepository
	flights  repository.FlightRepository
	locks    SeatLocker
	producer Producer
	notifier Notifier
	validate *validator.Validate
	log      logrus.FieldLogger
	now      func() time.Time

	flow                 Flow
	bookingTopic         string
	holdTTL              time.Duration
	cancellationWindow   time.Duration
	partialRefundPercent int
	notificationTimeout  time.Duration
	signingSecret        string
}

type BookingServiceOption func(*BookingService)

func WithFlow(flow Flow) BookingServiceOption {
	return func(s *BookingService) { s.flow = flow }
}

func WithSeatLocker(locks SeatLocker, holdTTL time.Duration) BookingServiceOption {
	return func(s *BookingService) {
		s.locks = locks
		s.holdTTL = holdTTL
	}
}

func WithProducer(producer Producer, topic string) BookingServiceOption {
	return func(s *BookingService) {
		s.producer = producer
		s.bookingTopic = topic
	}
}

func WithNotifier(notifier Notifier, timeout time.Duration) BookingServiceOption {
	return func(s *BookingService) {
		s.notifier = notifier
		s.notificationTimeout = timeout
	}
}

func WithCancellationWindow(window time.Duration) BookingServiceOption {
	return func(s *BookingService) { s.cancellationWindow = window }
}

func WithPartialRefundPercent(percent int) BookingServiceOption {
	return func(s *BookingService) { s.partialRefundPercent = percent }
}

func WithSigningSecret(secret string) BookingServiceOption {
	return func(s *BookingService) { s.signingSecret = secret }
}

func WithClock(now func() time.Time) BookingServiceOption {
	return func(s *BookingService) { s.now = now }
}

func NewBookingService(
	bookings repository.BookingRepository,
	flights repository.FlightRepository,
	log logrus.FieldLogger,
	opts ...BookingServiceOption,
) *BookingService {
	s := &BookingService{
		bookings:             bookings,
		flights:              flights,
		validate:             validation.New(),
		log:                  log,
		now:                  time.Now,
		flow:                 FlowTwoStep,
		holdTTL:              15 * time.Minute,
		cancellationWindow:   domain.DefaultCancellationWindow,
		partialRefundPercent: domain.DefaultPartialRefundPercent,
		notificationTimeout:  10 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateBooking validates input, holds the seat and persists the booking.
// In the instant flow the booking is stored as BOOKED with its payment
// reference and the confirmation email goes out after the insert.
func (s *BookingService) CreateBooking(ctx context.Context, input CreateBookingInput) (*domain.Booking, error) {
	if err := s.validate.StructCtx(ctx, input); err != nil {
		return nil, validation.ToValidationError(err)
	}

	flight, err := s.flights.GetByID(ctx, input.FlightID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, &domain.ValidationError{
				Message: domain.ErrFlightNotFound.Error(),
				Fields:  map[string]string{"flight": domain.ErrFlightNotFound.Error()},
				Err:     domain.ErrFlightNotFound,
			}
		}
		return nil, domain.NewStorageError("load flight", err)
	}

	orderID := newOrderID()
	locked, err := s.holdSeat(ctx, input.FlightID, input.SeatNumber, orderID)
	if err != nil {
		return nil, err
	}

	booking := &domain.Booking{
		FlightID:        input.FlightID,
		PassengerName:   input.PassengerName,
		PassengerEmail:  input.PassengerEmail,
		PassengerPhone:  input.PassengerPhone,
		SeatNumber:      input.SeatNumber,
		TotalPriceCents: input.TotalPriceCents,
		BookingLocation: input.BookingLocation,
		DeviceID:        input.DeviceID,
		DepartureTime:   input.DepartureTime,
		Status:          domain.BookingStatusPending,
		Payment:         domain.PaymentReference{OrderID: orderID},
	}
	if booking.TotalPriceCents == 0 {
		booking.TotalPriceCents = flight.PriceCents
	}
	if s.flow == FlowInstant {
		booking.Status = domain.BookingStatusBooked
		booking.Payment.PaymentID = newPaymentID()
		booking.Payment.Signature = sign(s.signingSecret, booking.Payment.OrderID, booking.Payment.PaymentID)
	}

	if err := s.bookings.Create(ctx, booking); err != nil {
		if locked {
			s.releaseSeat(ctx, booking)
		}
		switch {
		case errors.Is(err, domain.ErrSeatTaken):
			return nil, domain.NewStateConflict("", booking.Status, err)
		case errors.Is(err, domain.ErrFlightNotFound):
			return nil, domain.NewValidationError(err)
		}
		return nil, domain.NewStorageError("create booking", err)
	}

	s.log.WithFields(logrus.Fields{"booking_id": booking.ID, "status": booking.Status, "flow": s.flow}).Info("booking created")
	s.publish(ctx, EventBookingCreated, booking)

	if booking.Status == domain.BookingStatusBooked {
		if locked {
			s.releaseSeat(ctx, booking)
		}
		s.notify(ctx, s.confirmationMessage(booking, flight))
	}
	return booking, nil
}

func (s *BookingService) GetBooking(ctx context.Context, id int64) (*domain.Booking, error) {
	b, err := s.bookings.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		return nil, domain.NewStorageError("load booking", err)
	}
	return b, nil
}

func (s *BookingService) ListBookings(ctx context.Context, email string) ([]domain.Booking, error) {
	bookings, err := s.bookings.List(ctx, email)
	if err != nil {
		return nil, domain.NewStorageError("list bookings", err)
	}
	return bookings, nil
}

// VerifyPayment confirms a PENDING booking. Status and payment reference are
// written by a single conditional update; when that update fails for a
// storage reason the booking is moved to FAILED.
func (s *BookingService) VerifyPayment(ctx context.Context, id int64) (*domain.Booking, error) {
	current, err := s.GetBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.Status != domain.BookingStatusPending {
		return nil, domain.NewStateConflict(current.Status, domain.BookingStatusBooked, domain.ErrBookingNotPending)
	}

	ref := domain.PaymentReference{OrderID: current.Payment.OrderID, PaymentID: newPaymentID()}
	if ref.OrderID == "" {
		ref.OrderID = newOrderID()
	}
	ref.Signature = sign(s.signingSecret, ref.OrderID, ref.PaymentID)

	updated, err := s.bookings.ConfirmPayment(ctx, id, ref)
	if err != nil {
		if errors.Is(err, domain.ErrStatusChanged) {
			return nil, domain.NewStateConflict(domain.BookingStatusPending, domain.BookingStatusBooked, err)
		}
		s.failPending(ctx, current, err)
		return nil, domain.NewStorageError("confirm payment", err)
	}

	entry := s.log.WithFields(logrus.Fields{"booking_id": updated.ID, "payment_id": updated.Payment.PaymentID})
	entry.Info("payment verified")

	s.releaseSeat(ctx, updated)
	s.publish(ctx, EventBookingConfirmed, updated)

	flight, err := s.flights.GetByID(ctx, updated.FlightID)
	if err != nil {
		entry.WithError(err).Warn("confirmation email skipped: flight lookup failed")
		return updated, nil
	}
	s.notify(ctx, s.confirmationMessage(updated, flight))
	return updated, nil
}

// CancelBooking cancels a PENDING or BOOKED booking while departure is still
// outside the cancellation window.
func (s *BookingService) CancelBooking(ctx context.Context, id int64) (*domain.Booking, error) {
	current, err := s.GetBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	if !current.Status.CanTransitionTo(domain.BookingStatusCancelled) {
		return nil, domain.NewStateConflict(current.Status, domain.BookingStatusCancelled, domain.ErrBookingTerminal)
	}

	now := s.now()
	if !current.CanCancel(now, s.cancellationWindow) {
		return nil, domain.NewStateConflict(current.Status, domain.BookingStatusCancelled, domain.ErrCancellationWindowClosed)
	}

	updated, err := s.bookings.TransitionStatus(ctx, id, current.Status, domain.BookingStatusCancelled)
	if err != nil {
		if errors.Is(err, domain.ErrStatusChanged) {
			return nil, domain.NewStateConflict(current.Status, domain.BookingStatusCancelled, err)
		}
		return nil, domain.NewStorageError("cancel booking", err)
	}

	s.log.WithFields(logrus.Fields{"booking_id": updated.ID, "previous_status": current.Status}).Info("booking cancelled")

	s.releaseSeat(ctx, updated)
	s.publish(ctx, EventBookingCancelled, updated)

	flight, err := s.flights.GetByID(ctx, updated.FlightID)
	if err != nil {
		s.log.WithError(err).WithField("booking_id", updated.ID).Warn("cancellation email skipped: flight lookup failed")
		return updated, nil
	}
	s.notify(ctx, s.cancellationMessage(updated, flight, now))
	return updated, nil
}

// ExpireStalePending fails PENDING bookings whose seat hold has run out.
func (s *BookingService) ExpireStalePending(ctx context.Context) ([]domain.Booking, error) {
	expired, err := s.bookings.ExpirePendingBefore(ctx, s.now().Add(-s.holdTTL))
	if err != nil {
		return nil, domain.NewStorageError("expire pending bookings", err)
	}
	for i := range expired {
		b := &expired[i]
		s.releaseSeat(ctx, b)
		s.publish(ctx, EventBookingFailed, b)
	}
	if len(expired) > 0 {
		s.log.WithField("count", len(expired)).Info("stale pending bookings failed")
	}
	return expired, nil
}

// RefundStatus renders the refund tier the way it appears in emails.
func (s *BookingService) RefundStatus(b *domain.Booking, now time.Time) string {
	if b.RefundEligibility(now) == domain.RefundFull {
		return "100% Full Refund"
	}
	return fmt.Sprintf("%d%% Partial Refund", s.partialRefundPercent)
}

// holdSeat takes the short-lived seat hold on behalf of the order so that only
// that order can release it.
func (s *BookingService) holdSeat(ctx context.Context, flightID int64, seat, orderID string) (bool, error) {
	if s.locks == nil {
		return false, nil
	}
	ok, err := s.locks.AcquireSeatLock(ctx, flightID, seat, orderID, s.holdTTL)
	if err != nil {
		return false, domain.NewStorageError("acquire seat hold", err)
	}
	if !ok {
		return false, domain.NewStateConflict("", domain.BookingStatusPending, domain.ErrSeatTaken)
	}
	return true, nil
}

func (s *BookingService) releaseSeat(ctx context.Context, b *domain.Booking) {
	if s.locks == nil {
		return
	}
	if err := s.locks.ReleaseSeatLock(ctx, b.FlightID, b.SeatNumber, b.Payment.OrderID); err != nil {
		s.log.WithError(err).WithField("booking_id", b.ID).Warn("seat hold not released")
	}
}

func (s *BookingService) failPending(ctx context.Context, b *domain.Booking, cause error) {
	entry := s.log.WithFields(logrus.Fields{"booking_id": b.ID}).WithError(cause)
	failed, err := s.bookings.TransitionStatus(ctx, b.ID, domain.BookingStatusPending, domain.BookingStatusFailed)
	if err != nil {
		entry.WithField("fallback_error", err.Error()).Error("payment confirmation failed; booking could not be marked FAILED")
		return
	}
	entry.Error("payment confirmation failed; booking marked FAILED")
	s.releaseSeat(ctx, failed)
	s.publish(ctx, EventBookingFailed, failed)
}

func (s *BookingService) publish(ctx context.Context, eventType string, b *domain.Booking) {
	if s.producer == nil || s.bookingTopic == "" {
		return
	}
	event := kafka.NewBookingEvent(eventType, b, s.now())
	if err := s.producer.Publish(ctx, s.bookingTopic, fmt.Sprint(b.ID), event); err != nil {
		s.log.WithError(err).WithFields(logrus.Fields{"booking_id": b.ID, "event": eventType}).Warn("booking event not published")
	}
}

// notify runs after the write has committed. The request context may already
// be cancelled by then, so the send gets its own deadline. Notifiers log their
// own failures; the returned error only tells us the message was not sent.
func (s *BookingService) notify(ctx context.Context, msg notification.Message) {
	if s.notifier == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.notificationTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			s.log.WithFields(logrus.Fields{"kind": msg.Kind, "recipient": msg.Recipient, "panic": r}).
				Error("notification dropped")
		}
	}()

	_ = s.notifier.Notify(ctx, msg)
}

func (s *BookingService) confirmationMessage(b *domain.Booking, f *domain.Flight) notification.Message {
	return notification.Message{
		Kind:      notification.KindBookingConfirmation,
		Subject:   "Official Ticket: " + f.Airline,
		Recipient: b.PassengerEmail,
		Context:   messageContext(b, f),
	}
}

func (s *BookingService) cancellationMessage(b *domain.Booking, f *domain.Flight, now time.Time) notification.Message {
	msgCtx := messageContext(b, f)
	msgCtx.RefundStatus = s.RefundStatus(b, now)
	return notification.Message{
		Kind:      notification.KindBookingCancellation,
		Subject:   "Ticket Cancelled: " + f.Airline,
		Recipient: b.PassengerEmail,
		Context:   msgCtx,
	}
}

func messageContext(b *domain.Booking, f *domain.Flight) notification.Context {
	return notification.Context{
		PassengerName: b.PassengerName,
		Airline:       f.Airline,
		Origin:        f.Origin,
		Destination:   f.Destination,
		SeatNumber:    b.SeatNumber,
		DepartureTime: notification.FormatDeparture(b.DepartureTime),
		Location:      b.BookingLocation,
		DeviceID:      b.DeviceID,
		TransactionID: b.Payment.PaymentID,
	}
}

var _ BookingUseCase = (*BookingService)(nil)
