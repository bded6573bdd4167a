package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/Domenick1991/travelgo/internal/domain"
	"github.com/jackc/pgx/v5"
)

type FlightRepository interface {
	List(ctx context.Context) ([]domain.Flight, error)
	GetByID(ctx context.Context, id int64) (*domain.Flight, error)
	Create(ctx context.Context, flight *domain.Flight) error
	Upsert(ctx context.Context, flight *domain.Flight) (bool, error)
	Delete(ctx context.Context, id int64) error
	DeleteAll(ctx context.Context) (int64, error)
}

type PGFlightRepository struct {
	db DB
}

func NewFlightRepository(db DB) FlightRepository {
	return &PGFlightRepository{db: db}
}

const flightColumns = `id, airline, origin, destination, price_cents, special_offer, created_at`

func (r *PGFlightRepository) List(ctx context.Context) ([]domain.Flight, error) {
	rows, err := r.db.Query(ctx, `SELECT `+flightColumns+` FROM flights ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	flights := make([]domain.Flight, 0)
	for rows.Next() {
		var f domain.Flight
		if err := rows.Scan(&f.ID, &f.Airline, &f.Origin, &f.Destination, &f.PriceCents, &f.SpecialOffer, &f.CreatedAt); err != nil {
			return nil, err
		}
		flights = append(flights, f)
	}
	return flights, rows.Err()
}

func (r *PGFlightRepository) GetByID(ctx context.Context, id int64) (*domain.Flight, error) {
	row := r.db.QueryRow(ctx, `SELECT `+flightColumns+` FROM flights WHERE id=$1`, id)
	var f domain.Flight
	if err := row.Scan(&f.ID, &f.Airline, &f.Origin, &f.Destination, &f.PriceCents, &f.SpecialOffer, &f.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &f, nil
}

func (r *PGFlightRepository) Create(ctx context.Context, flight *domain.Flight) error {
	return r.db.QueryRow(ctx, `INSERT INTO flights (airline, origin, destination, price_cents, special_offer)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`, flight.Airline, flight.Origin, flight.Destination, flight.PriceCents, flight.SpecialOffer).
		Scan(&flight.ID, &flight.CreatedAt)
}

// Upsert updates price and offer of every flight on the same airline and
// route, or inserts the flight when there is none. It reports whether a row
// was inserted.
func (r *PGFlightRepository) Upsert(ctx context.Context, flight *domain.Flight) (bool, error) {
	var inserted bool
	err := r.db.QueryRow(ctx, `WITH updated AS (
			UPDATE flights SET price_cents=$4, special_offer=$5
			WHERE airline=$1 AND origin=$2 AND destination=$3
			RETURNING id, created_at
		), inserted AS (
			INSERT INTO flights (airline, origin, destination, price_cents, special_offer)
			SELECT $1, $2, $3, $4, $5 WHERE NOT EXISTS (SELECT 1 FROM updated)
			RETURNING id, created_at
		)
		SELECT id, created_at, false FROM updated
		UNION ALL
		SELECT id, created_at, true FROM inserted
		LIMIT 1`,
		flight.Airline, flight.Origin, flight.Destination, flight.PriceCents, flight.SpecialOffer).
		Scan(&flight.ID, &flight.CreatedAt, &inserted)
	return inserted, err
}

// DeleteAll wipes the catalogue with every finished booking. Like Delete it
// refuses while any booking is still PENDING or BOOKED.
func (r *PGFlightRepository) DeleteAll(ctx context.Context) (int64, error) {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `LOCK TABLE flights, bookings IN SHARE ROW EXCLUSIVE MODE`); err != nil {
		return 0, err
	}

	var active int
	if err := tx.QueryRow(ctx, `SELECT count(*) FROM bookings WHERE status IN ($1, $2)`,
		domain.BookingStatusPending, domain.BookingStatusBooked).Scan(&active); err != nil {
		return 0, err
	}
	if active > 0 {
		return 0, fmt.Errorf("%w: %d", domain.ErrFlightHasActiveBookings, active)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM bookings`); err != nil {
		return 0, err
	}
	tag, err := tx.Exec(ctx, `DELETE FROM flights`)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// Delete removes a flight together with its finished bookings. It refuses
// while any booking on the flight is still PENDING or BOOKED.
func (r *PGFlightRepository) Delete(ctx context.Context, id int64) error {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var locked int64
	if err := tx.QueryRow(ctx, `SELECT id FROM flights WHERE id=$1 FOR UPDATE`, id).Scan(&locked); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrNotFound
		}
		return err
	}

	var active int
	if err := tx.QueryRow(ctx, `SELECT count(*) FROM bookings WHERE flight_id=$1 AND status IN ($2, $3)`,
		id, domain.BookingStatusPending, domain.BookingStatusBooked).Scan(&active); err != nil {
		return err
	}
	if active > 0 {
		return fmt.Errorf("%w: %d", domain.ErrFlightHasActiveBookings, active)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM bookings WHERE flight_id=$1`, id); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `DELETE FROM flights WHERE id=$1`, id); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

var _ FlightRepository = (*PGFlightRepository)(nil)
