package repository

import (
	"context"
	"errors"

	"github.com/Domenick1991/travelgo/internal/domain"
	"github.com/jackc/pgx/v5"
)

type FoodOrderRepository interface {
	Create(ctx context.Context, order *domain.FoodOrder) error
	GetByID(ctx context.Context, id int64) (*domain.FoodOrder, error)
	List(ctx context.Context) ([]domain.FoodOrder, error)
	Delete(ctx context.Context, id int64) error
}

type PGFoodOrderRepository struct {
	db DB
}

func NewFoodOrderRepository(db DB) FoodOrderRepository {
	return &PGFoodOrderRepository{db: db}
}

const foodOrderColumns = `id, booking_id, passenger_name, flight_number, seat_number, food_type, price_cents, ordered_at`

func scanFoodOrder(row pgx.Row) (*domain.FoodOrder, error) {
	var o domain.FoodOrder
	if err := row.Scan(&o.ID, &o.BookingID, &o.PassengerName, &o.FlightNumber, &o.SeatNumber, &o.FoodType, &o.PriceCents, &o.OrderedAt); err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *PGFoodOrderRepository) Create(ctx context.Context, order *domain.FoodOrder) error {
	err := r.db.QueryRow(ctx, `INSERT INTO food_orders (booking_id, passenger_name, flight_number, seat_number, food_type, price_cents)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, ordered_at`,
		order.BookingID, order.PassengerName, order.FlightNumber, order.SeatNumber, order.FoodType, order.PriceCents).
		Scan(&order.ID, &order.OrderedAt)
	if pgErrorCode(err) == pgForeignKeyViolation {
		return domain.ErrNotFound
	}
	return err
}

func (r *PGFoodOrderRepository) GetByID(ctx context.Context, id int64) (*domain.FoodOrder, error) {
	o, err := scanFoodOrder(r.db.QueryRow(ctx, `SELECT `+foodOrderColumns+` FROM food_orders WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return o, err
}

func (r *PGFoodOrderRepository) List(ctx context.Context) ([]domain.FoodOrder, error) {
	rows, err := r.db.Query(ctx, `SELECT `+foodOrderColumns+` FROM food_orders ORDER BY ordered_at DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	orders := make([]domain.FoodOrder, 0)
	for rows.Next() {
		o, err := scanFoodOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *o)
	}
	return orders, rows.Err()
}

func (r *PGFoodOrderRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM food_orders WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

var _ FoodOrderRepository = (*PGFoodOrderRepository)(nil)
