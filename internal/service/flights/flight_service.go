package flights

import (
	"context"
	"errors"

	"github.com/Domenick1991/travelgo/internal/domain"
	"github.com/Domenick1991/travelgo/internal/repository"
	"github.com/Domenick1991/travelgo/internal/validation"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
)

type FlightUseCase interface {
	List(ctx context.Context) ([]domain.Flight, error)
	GetByID(ctx context.Context, id int64) (*domain.Flight, error)
	Create(ctx context.Context, input CreateFlightInput) (*domain.Flight, error)
	Delete(ctx context.Context, id int64) error
}

type FlightCache interface {
	GetFlights(ctx context.Context) ([]domain.Flight, error)
	SetFlights(ctx context.Context, flights []domain.Flight) error
	InvalidateFlights(ctx context.Context) error
}

type CreateFlightInput struct {
	Airline      string `json:"airline" yaml:"airline" validate:"required"`
	Origin       string `json:"origin" yaml:"origin" validate:"required"`
	Destination  string `json:"destination" yaml:"destination" validate:"required"`
	PriceCents   int64  `json:"price_cents" yaml:"price_cents" validate:"min=0"`
	SpecialOffer string `json:"special_offer" yaml:"special_offer"`
}

type FlightService struct {
	repo     repository.FlightRepository
	cache    FlightCache
	validate *validator.Validate
	log      logrus.FieldLogger
}

func NewFlightService(repo repository.FlightRepository, cache FlightCache, log logrus.FieldLogger) *FlightService {
	return &FlightService{repo: repo, cache: cache, validate: validation.New(), log: log}
}

// List serves from the cache when it can. Cache errors only cost a database
// round trip.
func (s *FlightService) List(ctx context.Context) ([]domain.Flight, error) {
	if s.cache != nil {
		cached, err := s.cache.GetFlights(ctx)
		if err != nil {
			s.log.WithError(err).Warn("flights cache read failed")
		} else if cached != nil {
			return cached, nil
		}
	}

	flights, err := s.repo.List(ctx)
	if err != nil {
		return nil, domain.NewStorageError("list flights", err)
	}
	if s.cache != nil {
		if err := s.cache.SetFlights(ctx, flights); err != nil {
			s.log.WithError(err).Warn("flights cache write failed")
		}
	}
	return flights, nil
}

func (s *FlightService) GetByID(ctx context.Context, id int64) (*domain.Flight, error) {
	f, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		return nil, domain.NewStorageError("load flight", err)
	}
	return f, nil
}

func (s *FlightService) Create(ctx context.Context, input CreateFlightInput) (*domain.Flight, error) {
	if err := s.validate.StructCtx(ctx, input); err != nil {
		return nil, validation.ToValidationError(err)
	}

	flight := &domain.Flight{
		Airline:      input.Airline,
		Origin:       input.Origin,
		Destination:  input.Destination,
		PriceCents:   input.PriceCents,
		SpecialOffer: input.SpecialOffer,
	}
	if err := s.repo.Create(ctx, flight); err != nil {
		return nil, domain.NewStorageError("create flight", err)
	}
	s.invalidate(ctx)
	return flight, nil
}

// Delete refuses while the flight still has PENDING or BOOKED bookings.
func (s *FlightService) Delete(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			return err
		case errors.Is(err, domain.ErrFlightHasActiveBookings):
			return &domain.StateConflictError{Err: err}
		}
		return domain.NewStorageError("delete flight", err)
	}
	s.invalidate(ctx)
	return nil
}

type ImportResult struct {
	Removed int64
	Created int
	Updated int
	Skipped int
}

// Import loads a flight catalogue. Flights already present for the same
// airline and route are updated in place, so running it twice leaves one row
// per route. With reset the existing catalogue is wiped first; that fails
// while any booking is still PENDING or BOOKED. Invalid entries are skipped.
func (s *FlightService) Import(ctx context.Context, inputs []CreateFlightInput, reset bool) (ImportResult, error) {
	var res ImportResult
	defer s.invalidate(ctx)

	if reset {
		removed, err := s.repo.DeleteAll(ctx)
		if err != nil {
			if errors.Is(err, domain.ErrFlightHasActiveBookings) {
				return res, &domain.StateConflictError{Err: err}
			}
			return res, domain.NewStorageError("reset flights", err)
		}
		res.Removed = removed
		s.log.WithField("removed", removed).Info("flight catalogue wiped")
	}

	for _, in := range inputs {
		entry := s.log.WithFields(logrus.Fields{"airline": in.Airline, "origin": in.Origin, "destination": in.Destination})
		if err := s.validate.StructCtx(ctx, in); err != nil {
			entry.WithError(validation.ToValidationError(err)).Warn("flight skipped")
			res.Skipped++
			continue
		}

		flight := &domain.Flight{
			Airline:      in.Airline,
			Origin:       in.Origin,
			Destination:  in.Destination,
			PriceCents:   in.PriceCents,
			SpecialOffer: in.SpecialOffer,
		}
		inserted, err := s.repo.Upsert(ctx, flight)
		if err != nil {
			return res, domain.NewStorageError("import flight", err)
		}
		if inserted {
			res.Created++
		} else {
			res.Updated++
		}
		entry.WithFields(logrus.Fields{"id": flight.ID, "inserted": inserted}).Debug("flight imported")
	}
	return res, nil
}

func (s *FlightService) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateFlights(ctx); err != nil {
		s.log.WithError(err).Warn("flights cache invalidation failed")
	}
}

var _ FlightUseCase = (*FlightService)(nil)
