package foodorders

import (
	"context"
	"errors"

	"github.com/Domenick1991/travelgo/internal/domain"
	"github.com/Domenick1991/travelgo/internal/repository"
	"github.com/Domenick1991/travelgo/internal/validation"
	"github.com/go-playground/validator/v10"
)

type FoodOrderUseCase interface {
	List(ctx context.Context) ([]domain.FoodOrder, error)
	GetByID(ctx context.Context, id int64) (*domain.FoodOrder, error)
	Create(ctx context.Context, input CreateFoodOrderInput) (*domain.FoodOrder, error)
	Delete(ctx context.Context, id int64) error
}

type CreateFoodOrderInput struct {
	BookingID     *int64 `json:"booking"`
	PassengerName string `json:"passenger_name" validate:"required"`
	FlightNumber  string `json:"flight_number" validate:"required"`
	SeatNumber    string `json:"seat_number" validate:"required,seat"`
	FoodType      string `json:"food_type" validate:"required"`
	PriceCents    int64  `json:"price_cents" validate:"min=0"`
}

type FoodOrderService struct {
	repo     repository.FoodOrderRepository
	validate *validator.Validate
}

func NewFoodOrderService(repo repository.FoodOrderRepository) *FoodOrderService {
	return &FoodOrderService{repo: repo, validate: validation.New()}
}

func (s *FoodOrderService) List(ctx context.Context) ([]domain.FoodOrder, error) {
	orders, err := s.repo.List(ctx)
	if err != nil {
		return nil, domain.NewStorageError("list food orders", err)
	}
	return orders, nil
}

func (s *FoodOrderService) GetByID(ctx context.Context, id int64) (*domain.FoodOrder, error) {
	o, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		return nil, domain.NewStorageError("load food order", err)
	}
	return o, nil
}

func (s *FoodOrderService) Create(ctx context.Context, input CreateFoodOrderInput) (*domain.FoodOrder, error) {
	if err := s.validate.StructCtx(ctx, input); err != nil {
		return nil, validation.ToValidationError(err)
	}

	order := &domain.FoodOrder{
		BookingID:     input.BookingID,
		PassengerName: input.PassengerName,
		FlightNumber:  input.FlightNumber,
		SeatNumber:    input.SeatNumber,
		FoodType:      input.FoodType,
		PriceCents:    input.PriceCents,
	}
	if err := s.repo.Create(ctx, order); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, &domain.ValidationError{
				Message: "booking does not exist",
				Fields:  map[string]string{"booking": "booking does not exist"},
				Err:     err,
			}
		}
		return nil, domain.NewStorageError("create food order", err)
	}
	return order, nil
}

func (s *FoodOrderService) Delete(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return err
		}
		return domain.NewStorageError("delete food order", err)
	}
	return nil
}

var _ FoodOrderUseCase = (*FoodOrderService)(nil)
