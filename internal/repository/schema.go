package repository

import (
	"context"
	"fmt"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS flights (
		id            BIGSERIAL PRIMARY KEY,
		airline       VARCHAR(100) NOT NULL,
		origin        VARCHAR(100) NOT NULL,
		destination   VARCHAR(100) NOT NULL,
		price_cents   BIGINT NOT NULL CHECK (price_cents >= 0),
		special_offer VARCHAR(255) NOT NULL DEFAULT '',
		created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS bookings (
		id                BIGSERIAL PRIMARY KEY,
		flight_id         BIGINT NOT NULL REFERENCES flights(id) ON DELETE RESTRICT,
		passenger_name    VARCHAR(255) NOT NULL,
		passenger_email   VARCHAR(254) NOT NULL,
		passenger_phone   VARCHAR(20) NOT NULL,
		seat_number       VARCHAR(10) NOT NULL,
		total_price_cents BIGINT NOT NULL CHECK (total_price_cents >= 0),
		booking_location  VARCHAR(255) NOT NULL DEFAULT '',
		device_id         VARCHAR(255) NOT NULL DEFAULT '',
		departure_time    TIMESTAMPTZ NULL,
		status            VARCHAR(20) NOT NULL DEFAULT 'PENDING'
			CHECK (status IN ('PENDING', 'BOOKED', 'CANCELLED', 'FAILED')),
		order_id          VARCHAR(100) NOT NULL DEFAULT '',
		payment_id        VARCHAR(100) NOT NULL DEFAULT '',
		signature         VARCHAR(200) NOT NULL DEFAULT '',
		created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at        TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS bookings_active_seat_idx
		ON bookings (flight_id, seat_number) WHERE status IN ('PENDING', 'BOOKED')`,
	`CREATE INDEX IF NOT EXISTS bookings_email_created_idx ON bookings (passenger_email, created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS food_orders (
		id             BIGSERIAL PRIMARY KEY,
		booking_id     BIGINT NULL REFERENCES bookings(id) ON DELETE SET NULL,
		passenger_name VARCHAR(255) NOT NULL,
		flight_number  VARCHAR(100) NOT NULL,
		seat_number    VARCHAR(10) NOT NULL,
		food_type      VARCHAR(100) NOT NULL,
		price_cents    BIGINT NOT NULL CHECK (price_cents >= 0),
		ordered_at     TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
}

// Migrate creates the tables and indexes if they are missing.
func Migrate(ctx context.Context, db DB) error {
	for _, stmt := range schema {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}
