package booking

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/Domenick1991/travelgo/config"
	"github.com/Domenick1991/travelgo/internal/domain"
	"github.com/Domenick1991/travelgo/internal/kafka"
	"github.com/Domenick1991/travelgo/internal/logger"
	"github.com/Domenick1991/travelgo/internal/notification"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockBookingRepository struct {
	mock.Mock
}

func (m *MockBookingRepository) Create(ctx context.Context, booking *domain.Booking) error {
	args := m.Called(ctx, booking)
	return args.Error(0)
}

func (m *MockBookingRepository) GetByID(ctx context.Context, id int64) (*domain.Booking, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Booking), args.Error(1)
}

func (m *MockBookingRepository) List(ctx context.Context, email string) ([]domain.Booking, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Booking), args.Error(1)
}

func (m *MockBookingRepository) ConfirmPayment(ctx context.Context, id int64, ref domain.PaymentReference) (*domain.Booking, error) {
	args := m.Called(ctx, id, ref)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Booking), args.Error(1)
}

func (m *MockBookingRepository) TransitionStatus(ctx context.Context, id int64, from, to domain.BookingStatus) (*domain.Booking, error) {
	args := m.Called(ctx, id, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Booking), args.Error(1)
}

func (m *MockBookingRepository) ExpirePendingBefore(ctx context.Context, deadline time.Time) ([]domain.Booking, error) {
	args := m.Called(ctx, deadline)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Booking), args.Error(1)
}

type MockFlightRepository struct {
	mock.Mock
}

func (m *MockFlightRepository) List(ctx context.Context) ([]domain.Flight, error) {
	args := m.Called(ctx)
	return args.Get(0).([]domain.Flight), args.Error(1)
}

func (m *MockFlightRepository) GetByID(ctx context.Context, id int64) (*domain.Flight, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Flight), args.Error(1)
}

func (m *MockFlightRepository) Create(ctx context.Context, flight *domain.Flight) error {
	args := m.Called(ctx, flight)
	return args.Error(0)
}

func (m *MockFlightRepository) Delete(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockFlightRepository) Upsert(ctx context.Context, flight *domain.Flight) (bool, error) {
	args := m.Called(ctx, flight)
	return args.Bool(0), args.Error(1)
}

func (m *MockFlightRepository) DeleteAll(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

type MockSeatLocker struct {
	mock.Mock
}

func (m *MockSeatLocker) AcquireSeatLock(ctx context.Context, flightID int64, seat, owner string, ttl time.Duration) (bool, error) {
	args := m.Called(ctx, flightID, seat, owner, ttl)
	return args.Bool(0), args.Error(1)
}

func (m *MockSeatLocker) ReleaseSeatLock(ctx context.Context, flightID int64, seat, owner string) error {
	args := m.Called(ctx, flightID, seat, owner)
	return args.Error(0)
}

type MockProducer struct {
	mock.Mock
}

func (m *MockProducer) Publish(ctx context.Context, topic, key string, payload interface{}) error {
	args := m.Called(ctx, topic, key, payload)
	return args.Error(0)
}

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Notify(ctx context.Context, msg notification.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

const (
	testTopic   = "booking-events"
	holdTTL     = 15 * time.Minute
	storedOrder = "ORD_LOC_ABCDEF1234"
)

var anyOrder = mock.MatchedBy(func(owner string) bool { return strings.HasPrefix(owner, "ORD_LOC_") })

var fixedNow = time.Date(2026, 4, 20, 12, 0, 0, 0, time.UTC)

type fixture struct {
	bookings *MockBookingRepository
	flights  *MockFlightRepository
	locks    *MockSeatLocker
	producer *MockProducer
	notifier *MockNotifier
}

func newFixture() *fixture {
	return &fixture{
		bookings: &MockBookingRepository{},
		flights:  &MockFlightRepository{},
		locks:    &MockSeatLocker{},
		producer: &MockProducer{},
		notifier: &MockNotifier{},
	}
}

func (f *fixture) service(opts ...BookingServiceOption) *BookingService {
	base := []BookingServiceOption{
		WithSeatLocker(f.locks, holdTTL),
		WithProducer(f.producer, testTopic),
		WithNotifier(f.notifier, 2*time.Second),
		WithSigningSecret("test-secret"),
		WithClock(func() time.Time { return fixedNow }),
	}
	return NewBookingService(f.bookings, f.flights, logger.Discard(), append(base, opts...)...)
}

func (f *fixture) assertExpectations(t *testing.T) {
	f.bookings.AssertExpectations(t)
	f.flights.AssertExpectations(t)
	f.locks.AssertExpectations(t)
	f.producer.AssertExpectations(t)
	f.notifier.AssertExpectations(t)
}

func testFlight() *domain.Flight {
	return &domain.Flight{ID: 3, Airline: "IndiGo", Origin: "Mumbai", Destination: "Delhi", PriceCents: 420000}
}

func validInput() CreateBookingInput {
	departure := fixedNow.Add(72 * time.Hour)
	return CreateBookingInput{
		FlightID:        3,
		PassengerName:   "Asha Rao",
		PassengerEmail:  "asha@example.com",
		PassengerPhone:  "9876543210",
		SeatNumber:      "5A",
		BookingLocation: "Mumbai",
		DeviceID:        "ios-42",
		DepartureTime:   &departure,
	}
}

func storedBooking(status domain.BookingStatus, departureIn time.Duration) *domain.Booking {
	departure := fixedNow.Add(departureIn)
	return &domain.Booking{
		ID:              11,
		FlightID:        3,
		PassengerName:   "Asha Rao",
		PassengerEmail:  "asha@example.com",
		PassengerPhone:  "9876543210",
		SeatNumber:      "5A",
		TotalPriceCents: 420000,
		DepartureTime:   &departure,
		Status:          status,
		Payment:         domain.PaymentReference{OrderID: storedOrder},
		CreatedAt:       fixedNow.Add(-2 * time.Hour),
	}
}

func eventOf(eventType string) interface{} {
	return mock.MatchedBy(func(e kafka.BookingEvent) bool { return e.Type == eventType })
}

func TestBookingService_CreateBooking_TwoStep(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	f.flights.On("GetByID", ctx, int64(3)).Return(testFlight(), nil).Once()
	f.locks.On("AcquireSeatLock", ctx, int64(3), "5A", anyOrder, holdTTL).Return(true, nil).Once()
	f.bookings.On("Create", ctx, mock.AnythingOfType("*domain.Booking")).
		Run(func(args mock.Arguments) {
			args.Get(1).(*domain.Booking).ID = 11
		}).Return(nil).Once()
	f.producer.On("Publish", ctx, testTopic, "11", eventOf(EventBookingCreated)).Return(nil).Once()

	got, err := f.service().CreateBooking(ctx, validInput())
	require.NoError(t, err)

	assert.Equal(t, domain.BookingStatusPending, got.Status)
	assert.True(t, strings.HasPrefix(got.Payment.OrderID, "ORD_LOC_"))
	assert.Len(t, got.Payment.OrderID, len("ORD_LOC_")+10)
	assert.Empty(t, got.Payment.PaymentID)
	assert.Equal(t, int64(420000), got.TotalPriceCents)
	f.notifier.AssertNotCalled(t, "Notify", mock.Anything, mock.Anything)
	f.assertExpectations(t)
}

func TestBookingService_CreateBooking_Instant(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	f.flights.On("GetByID", ctx, int64(3)).Return(testFlight(), nil).Once()
	f.locks.On("AcquireSeatLock", ctx, int64(3), "5A", anyOrder, holdTTL).Return(true, nil).Once()
	f.bookings.On("Create", ctx, mock.MatchedBy(func(b *domain.Booking) bool {
		return b.Status == domain.BookingStatusBooked
	})).Return(nil).Once()
	f.producer.On("Publish", ctx, testTopic, mock.Anything, eventOf(EventBookingCreated)).Return(nil).Once()
	f.locks.On("ReleaseSeatLock", ctx, int64(3), "5A", anyOrder).Return(nil).Once()
	f.notifier.On("Notify", mock.Anything, mock.MatchedBy(func(msg notification.Message) bool {
		return msg.Kind == notification.KindBookingConfirmation &&
			msg.Subject == "Official Ticket: IndiGo" &&
			msg.Recipient == "asha@example.com" &&
			strings.HasPrefix(msg.Context.TransactionID, "PAY_LOC_")
	})).Return(nil).Once()

	got, err := f.service(WithFlow(FlowInstant)).CreateBooking(ctx, validInput())
	require.NoError(t, err)

	assert.Equal(t, domain.BookingStatusBooked, got.Status)
	assert.Len(t, got.Payment.PaymentID, len("PAY_LOC_")+12)
	assert.True(t, VerifySignature("test-secret", got.Payment.OrderID, got.Payment.PaymentID, got.Payment.Signature))
	f.assertExpectations(t)
}

func TestBookingService_CreateBooking_InstantNotificationFailureIsDropped(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	f.flights.On("GetByID", ctx, int64(3)).Return(testFlight(), nil).Once()
	f.locks.On("AcquireSeatLock", ctx, int64(3), "5A", anyOrder, holdTTL).Return(true, nil).Once()
	f.bookings.On("Create", ctx, mock.Anything).Return(nil).Once()
	f.producer.On("Publish", ctx, testTopic, mock.Anything, mock.Anything).Return(errors.New("broker down")).Once()
	f.locks.On("ReleaseSeatLock", ctx, int64(3), "5A", anyOrder).Return(nil).Once()
	f.notifier.On("Notify", mock.Anything, mock.Anything).
		Return(&domain.NotificationError{Stage: "transport", Err: errors.New("smtp down")}).Once()

	got, err := f.service(WithFlow(FlowInstant)).CreateBooking(ctx, validInput())
	require.NoError(t, err)
	assert.Equal(t, domain.BookingStatusBooked, got.Status)
	f.assertExpectations(t)
}

func TestBookingService_CreateBooking_SeatHoldOwnedByOrder(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	var holder string
	f.flights.On("GetByID", ctx, int64(3)).Return(testFlight(), nil).Once()
	f.locks.On("AcquireSeatLock", ctx, int64(3), "5A", anyOrder, holdTTL).
		Run(func(args mock.Arguments) { holder = args.String(3) }).
		Return(true, nil).Once()
	f.bookings.On("Create", ctx, mock.Anything).Return(nil).Once()
	f.producer.On("Publish", ctx, testTopic, mock.Anything, mock.Anything).Return(nil).Once()
	f.locks.On("ReleaseSeatLock", ctx, int64(3), "5A", mock.MatchedBy(func(owner string) bool {
		return owner == holder
	})).Return(nil).Once()
	f.notifier.On("Notify", mock.Anything, mock.Anything).Return(nil).Once()

	got, err := f.service(WithFlow(FlowInstant)).CreateBooking(ctx, validInput())
	require.NoError(t, err)
	assert.Equal(t, holder, got.Payment.OrderID)
	f.assertExpectations(t)
}

func TestBookingService_CreateBooking_ValidationFailures(t *testing.T) {
	testCases := []struct {
		name   string
		mutate func(*CreateBookingInput)
		field  string
	}{
		{"seat with row letter out of range", func(in *CreateBookingInput) { in.SeatNumber = "5G" }, "seat_number"},
		{"seat without letter", func(in *CreateBookingInput) { in.SeatNumber = "5" }, "seat_number"},
		{"phone too short", func(in *CreateBookingInput) { in.PassengerPhone = "12345" }, "passenger_phone"},
		{"phone with letters", func(in *CreateBookingInput) { in.PassengerPhone = "98765abcde" }, "passenger_phone"},
		{"name too short", func(in *CreateBookingInput) { in.PassengerName = "Al" }, "passenger_name"},
		{"bad email", func(in *CreateBookingInput) { in.PassengerEmail = "asha.example.com" }, "passenger_email"},
		{"missing flight", func(in *CreateBookingInput) { in.FlightID = 0 }, "flight"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture()
			input := validInput()
			tc.mutate(&input)

			got, err := f.service().CreateBooking(context.Background(), input)
			assert.Nil(t, got)

			var verr *domain.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Contains(t, verr.Fields, tc.field)
			f.bookings.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
		})
	}
}

func TestBookingService_CreateBooking_UnknownFlight(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.flights.On("GetByID", ctx, int64(3)).Return(nil, domain.ErrNotFound).Once()

	_, err := f.service().CreateBooking(ctx, validInput())

	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.ErrorIs(t, err, domain.ErrFlightNotFound)
	f.assertExpectations(t)
}

func TestBookingService_CreateBooking_SeatHeld(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.flights.On("GetByID", ctx, int64(3)).Return(testFlight(), nil).Once()
	f.locks.On("AcquireSeatLock", ctx, int64(3), "5A", anyOrder, holdTTL).Return(false, nil).Once()

	_, err := f.service().CreateBooking(ctx, validInput())

	var cerr *domain.StateConflictError
	require.ErrorAs(t, err, &cerr)
	assert.ErrorIs(t, err, domain.ErrSeatTaken)
	f.assertExpectations(t)
}

func TestBookingService_CreateBooking_StorageErrors(t *testing.T) {
	testCases := []struct {
		name   string
		repo   error
		assert func(t *testing.T, err error)
	}{
		{"write failure", errors.New("connection refused"), func(t *testing.T, err error) {
			var serr *domain.StorageError
			assert.ErrorAs(t, err, &serr)
		}},
		{"active seat index", domain.ErrSeatTaken, func(t *testing.T, err error) {
			var cerr *domain.StateConflictError
			assert.ErrorAs(t, err, &cerr)
		}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture()
			ctx := context.Background()
			f.flights.On("GetByID", ctx, int64(3)).Return(testFlight(), nil).Once()
			f.locks.On("AcquireSeatLock", ctx, int64(3), "5A", anyOrder, holdTTL).Return(true, nil).Once()
			f.bookings.On("Create", ctx, mock.Anything).Return(tc.repo).Once()
			f.locks.On("ReleaseSeatLock", ctx, int64(3), "5A", anyOrder).Return(nil).Once()

			got, err := f.service().CreateBooking(ctx, validInput())
			assert.Nil(t, got)
			tc.assert(t, err)
			f.assertExpectations(t)
		})
	}
}

func TestBookingService_VerifyPayment(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	pending := storedBooking(domain.BookingStatusPending, 72*time.Hour)

	booked := storedBooking(domain.BookingStatusBooked, 72*time.Hour)
	var stored domain.PaymentReference
	f.bookings.On("GetByID", ctx, int64(11)).Return(pending, nil).Once()
	f.bookings.On("ConfirmPayment", ctx, int64(11), mock.AnythingOfType("domain.PaymentReference")).
		Run(func(args mock.Arguments) {
			stored = args.Get(2).(domain.PaymentReference)
			booked.Payment = stored
		}).Return(booked, nil).Once()
	f.locks.On("ReleaseSeatLock", ctx, int64(3), "5A", storedOrder).Return(nil).Once()
	f.producer.On("Publish", ctx, testTopic, "11", eventOf(EventBookingConfirmed)).Return(nil).Once()
	f.flights.On("GetByID", ctx, int64(3)).Return(testFlight(), nil).Once()
	f.notifier.On("Notify", mock.Anything, mock.MatchedBy(func(msg notification.Message) bool {
		return msg.Kind == notification.KindBookingConfirmation && msg.Context.DepartureTime == "23 Apr 2026, 12:00"
	})).Return(nil).Once()

	got, err := f.service().VerifyPayment(ctx, 11)
	require.NoError(t, err)

	assert.Equal(t, domain.BookingStatusBooked, got.Status)
	assert.Equal(t, storedOrder, stored.OrderID)
	assert.NotEmpty(t, got.Payment.PaymentID)
	assert.NotEmpty(t, got.Payment.Signature)
	assert.True(t, VerifySignature("test-secret", stored.OrderID, stored.PaymentID, stored.Signature))
	f.assertExpectations(t)
}

func TestBookingService_VerifyPayment_StorageFailureMarksFailed(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	pending := storedBooking(domain.BookingStatusPending, 72*time.Hour)
	failed := storedBooking(domain.BookingStatusFailed, 72*time.Hour)

	f.bookings.On("GetByID", ctx, int64(11)).Return(pending, nil).Once()
	f.bookings.On("ConfirmPayment", ctx, int64(11), mock.Anything).Return(nil, errors.New("disk full")).Once()
	f.bookings.On("TransitionStatus", ctx, int64(11), domain.BookingStatusPending, domain.BookingStatusFailed).Return(failed, nil).Once()
	f.locks.On("ReleaseSeatLock", ctx, int64(3), "5A", storedOrder).Return(nil).Once()
	f.producer.On("Publish", ctx, testTopic, "11", eventOf(EventBookingFailed)).Return(nil).Once()

	got, err := f.service().VerifyPayment(ctx, 11)
	assert.Nil(t, got)

	var serr *domain.StorageError
	require.ErrorAs(t, err, &serr)
	assert.Contains(t, err.Error(), "database storage failed")
	f.notifier.AssertNotCalled(t, "Notify", mock.Anything, mock.Anything)
	f.assertExpectations(t)
}

func TestBookingService_VerifyPayment_NotificationFailureKeepsBooked(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	pending := storedBooking(domain.BookingStatusPending, 72*time.Hour)
	booked := storedBooking(domain.BookingStatusBooked, 72*time.Hour)
	booked.Payment.PaymentID = "PAY_LOC_0123456789AB"

	f.bookings.On("GetByID", ctx, int64(11)).Return(pending, nil).Once()
	f.bookings.On("ConfirmPayment", ctx, int64(11), mock.Anything).Return(booked, nil).Once()
	f.locks.On("ReleaseSeatLock", ctx, int64(3), "5A", storedOrder).Return(nil).Once()
	f.producer.On("Publish", ctx, testTopic, "11", mock.Anything).Return(nil).Once()
	f.flights.On("GetByID", ctx, int64(3)).Return(testFlight(), nil).Once()
	f.notifier.On("Notify", mock.Anything, mock.Anything).
		Return(&domain.NotificationError{Stage: "transport", Err: errors.New("smtp down")}).Once()

	got, err := f.service().VerifyPayment(ctx, 11)
	require.NoError(t, err)
	assert.Equal(t, domain.BookingStatusBooked, got.Status)
	f.bookings.AssertNotCalled(t, "TransitionStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	f.assertExpectations(t)
}

func TestBookingService_VerifyPayment_Rejected(t *testing.T) {
	testCases := []struct {
		name     string
		status   domain.BookingStatus
		expected error
	}{
		{"already booked", domain.BookingStatusBooked, domain.ErrBookingNotPending},
		{"cancelled", domain.BookingStatusCancelled, domain.ErrBookingNotPending},
		{"failed", domain.BookingStatusFailed, domain.ErrBookingNotPending},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture()
			ctx := context.Background()
			f.bookings.On("GetByID", ctx, int64(11)).Return(storedBooking(tc.status, 72*time.Hour), nil).Once()

			_, err := f.service().VerifyPayment(ctx, 11)

			var cerr *domain.StateConflictError
			require.ErrorAs(t, err, &cerr)
			assert.ErrorIs(t, err, tc.expected)
			f.bookings.AssertNotCalled(t, "ConfirmPayment", mock.Anything, mock.Anything, mock.Anything)
			f.assertExpectations(t)
		})
	}
}

func TestBookingService_VerifyPayment_LostRace(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	f.bookings.On("GetByID", ctx, int64(11)).Return(storedBooking(domain.BookingStatusPending, 72*time.Hour), nil).Once()
	f.bookings.On("ConfirmPayment", ctx, int64(11), mock.Anything).Return(nil, domain.ErrStatusChanged).Once()

	_, err := f.service().VerifyPayment(ctx, 11)

	var cerr *domain.StateConflictError
	require.ErrorAs(t, err, &cerr)
	f.bookings.AssertNotCalled(t, "TransitionStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	f.assertExpectations(t)
}

func TestBookingService_VerifyPayment_NotFound(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.bookings.On("GetByID", ctx, int64(404)).Return(nil, domain.ErrNotFound).Once()

	_, err := f.service().VerifyPayment(ctx, 404)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	f.assertExpectations(t)
}

func TestBookingService_CancelBooking_InsideWindow(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.bookings.On("GetByID", ctx, int64(11)).Return(storedBooking(domain.BookingStatusBooked, 3*time.Hour), nil).Once()

	_, err := f.service().CancelBooking(ctx, 11)

	var cerr *domain.StateConflictError
	require.ErrorAs(t, err, &cerr)
	assert.ErrorIs(t, err, domain.ErrCancellationWindowClosed)
	f.bookings.AssertNotCalled(t, "TransitionStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	f.assertExpectations(t)
}

func TestBookingService_CancelBooking(t *testing.T) {
	testCases := []struct {
		name    string
		age     time.Duration
		refund  string
		percent int
	}{
		{"booked an hour ago", time.Hour, "100% Full Refund", 70},
		{"booked exactly a day ago", 24 * time.Hour, "70% Partial Refund", 70},
		{"booked last week with custom percent", 7 * 24 * time.Hour, "50% Partial Refund", 50},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture()
			ctx := context.Background()

			booked := storedBooking(domain.BookingStatusBooked, 5*time.Hour)
			booked.CreatedAt = fixedNow.Add(-tc.age)
			cancelled := *booked
			cancelled.Status = domain.BookingStatusCancelled

			f.bookings.On("GetByID", ctx, int64(11)).Return(booked, nil).Once()
			f.bookings.On("TransitionStatus", ctx, int64(11), domain.BookingStatusBooked, domain.BookingStatusCancelled).Return(&cancelled, nil).Once()
			f.locks.On("ReleaseSeatLock", ctx, int64(3), "5A", storedOrder).Return(nil).Once()
			f.producer.On("Publish", ctx, testTopic, "11", eventOf(EventBookingCancelled)).Return(nil).Once()
			f.flights.On("GetByID", ctx, int64(3)).Return(testFlight(), nil).Once()
			f.notifier.On("Notify", mock.Anything, mock.MatchedBy(func(msg notification.Message) bool {
				return msg.Kind == notification.KindBookingCancellation &&
					msg.Subject == "Ticket Cancelled: IndiGo" &&
					msg.Context.RefundStatus == tc.refund
			})).Return(nil).Once()

			got, err := f.service(WithPartialRefundPercent(tc.percent)).CancelBooking(ctx, 11)
			require.NoError(t, err)
			assert.Equal(t, domain.BookingStatusCancelled, got.Status)
			f.assertExpectations(t)
		})
	}
}

func TestBookingService_CancelBooking_PendingAllowed(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	pending := storedBooking(domain.BookingStatusPending, 5*time.Hour)
	cancelled := *pending
	cancelled.Status = domain.BookingStatusCancelled

	f.bookings.On("GetByID", ctx, int64(11)).Return(pending, nil).Once()
	f.bookings.On("TransitionStatus", ctx, int64(11), domain.BookingStatusPending, domain.BookingStatusCancelled).Return(&cancelled, nil).Once()
	f.locks.On("ReleaseSeatLock", ctx, int64(3), "5A", storedOrder).Return(nil).Once()
	f.producer.On("Publish", ctx, testTopic, "11", mock.Anything).Return(nil).Once()
	f.flights.On("GetByID", ctx, int64(3)).Return(nil, errors.New("db gone")).Once()

	got, err := f.service().CancelBooking(ctx, 11)
	require.NoError(t, err)
	assert.Equal(t, domain.BookingStatusCancelled, got.Status)
	f.notifier.AssertNotCalled(t, "Notify", mock.Anything, mock.Anything)
	f.assertExpectations(t)
}

func TestBookingService_CancelBooking_Rejected(t *testing.T) {
	testCases := []struct {
		name     string
		booking  *domain.Booking
		expected error
	}{
		{"already cancelled", storedBooking(domain.BookingStatusCancelled, 72*time.Hour), domain.ErrBookingTerminal},
		{"failed", storedBooking(domain.BookingStatusFailed, 72*time.Hour), domain.ErrBookingTerminal},
		{"no departure", func() *domain.Booking {
			b := storedBooking(domain.BookingStatusBooked, 0)
			b.DepartureTime = nil
			return b
		}(), domain.ErrCancellationWindowClosed},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture()
			ctx := context.Background()
			f.bookings.On("GetByID", ctx, int64(11)).Return(tc.booking, nil).Once()

			_, err := f.service().CancelBooking(ctx, 11)

			var cerr *domain.StateConflictError
			require.ErrorAs(t, err, &cerr)
			assert.ErrorIs(t, err, tc.expected)
			f.assertExpectations(t)
		})
	}
}

func TestBookingService_CancelBooking_ConcurrentChange(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.bookings.On("GetByID", ctx, int64(11)).Return(storedBooking(domain.BookingStatusPending, 72*time.Hour), nil).Once()
	f.bookings.On("TransitionStatus", ctx, int64(11), domain.BookingStatusPending, domain.BookingStatusCancelled).Return(nil, domain.ErrStatusChanged).Once()

	_, err := f.service().CancelBooking(ctx, 11)

	var cerr *domain.StateConflictError
	require.ErrorAs(t, err, &cerr)
	assert.ErrorIs(t, err, domain.ErrStatusChanged)
	f.assertExpectations(t)
}

func TestBookingService_ListBookings(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	list := []domain.Booking{*storedBooking(domain.BookingStatusBooked, time.Hour)}

	f.bookings.On("List", ctx, "asha@example.com").Return(list, nil).Once()
	f.bookings.On("List", ctx, "").Return(nil, errors.New("timeout")).Once()

	got, err := f.service().ListBookings(ctx, "asha@example.com")
	require.NoError(t, err)
	assert.Equal(t, list, got)

	_, err = f.service().ListBookings(ctx, "")
	var serr *domain.StorageError
	assert.ErrorAs(t, err, &serr)
	f.assertExpectations(t)
}

func TestBookingService_ExpireStalePending(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	stale := *storedBooking(domain.BookingStatusFailed, 72*time.Hour)

	f.bookings.On("ExpirePendingBefore", ctx, fixedNow.Add(-holdTTL)).Return([]domain.Booking{stale}, nil).Once()
	f.locks.On("ReleaseSeatLock", ctx, int64(3), "5A", storedOrder).Return(nil).Once()
	f.producer.On("Publish", ctx, testTopic, "11", eventOf(EventBookingFailed)).Return(nil).Once()

	got, err := f.service().ExpireStalePending(ctx)
	require.NoError(t, err)
	assert.Len(t, got, 1)
	f.assertExpectations(t)
}

func TestBookingService_NotifyOutlivesRequestContext(t *testing.T) {
	f := newFixture()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f.notifier.On("Notify", mock.MatchedBy(func(c context.Context) bool {
		_, hasDeadline := c.Deadline()
		return c.Err() == nil && hasDeadline
	}), mock.Anything).Return(nil).Once()

	f.service().notify(ctx, notification.Message{Kind: notification.KindBookingConfirmation})
	f.assertExpectations(t)
}

func TestBookingService_NotifyRecoversPanic(t *testing.T) {
	f := newFixture()
	log, hook := test.NewNullLogger()
	f.notifier.On("Notify", mock.Anything, mock.Anything).Run(func(mock.Arguments) {
		panic("template blew up")
	}).Return(nil).Once()

	svc := NewBookingService(f.bookings, f.flights, log, WithNotifier(f.notifier, time.Second))
	assert.NotPanics(t, func() {
		svc.notify(context.Background(), notification.Message{})
	})
	require.Len(t, hook.AllEntries(), 1)
	assert.Equal(t, "notification dropped", hook.LastEntry().Message)
}

func TestBookingService_NotifyLeavesFailureLoggingToNotifier(t *testing.T) {
	f := newFixture()
	log, hook := test.NewNullLogger()
	f.notifier.On("Notify", mock.Anything, mock.Anything).
		Return(&domain.NotificationError{Stage: "transport", Err: errors.New("smtp down")}).Once()

	svc := NewBookingService(f.bookings, f.flights, log, WithNotifier(f.notifier, time.Second))
	svc.notify(context.Background(), notification.Message{Kind: notification.KindBookingConfirmation})

	assert.Empty(t, hook.AllEntries())
	f.assertExpectations(t)
}

func TestReferences(t *testing.T) {
	order := newOrderID()
	payment := newPaymentID()

	assert.Regexp(t, `^ORD_LOC_[0-9A-F]{10}$`, order)
	assert.Regexp(t, `^PAY_LOC_[0-9A-F]{12}$`, payment)
	assert.NotEqual(t, order, newOrderID())

	sig := sign("secret", order, payment)
	assert.True(t, VerifySignature("secret", order, payment, sig))
	assert.False(t, VerifySignature("other", order, payment, sig))
	assert.False(t, VerifySignature("secret", order, newPaymentID(), sig))
}

func TestConfigOptions(t *testing.T) {
	f := newFixture()
	svc := NewBookingService(f.bookings, f.flights, logger.Discard(), ConfigOptions(config.BookingConfig{
		Flow:                 "instant",
		CancellationWindow:   6,
		PartialRefundPercent: 60,
		SigningSecret:        "s3cret",
	})...)

	assert.Equal(t, FlowInstant, svc.flow)
	assert.Equal(t, 6*time.Hour, svc.cancellationWindow)
	assert.Equal(t, 60, svc.partialRefundPercent)
	assert.Equal(t, "s3cret", svc.signingSecret)
}
