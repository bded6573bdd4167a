package domain

import "time"

// FoodOrder is an in-flight meal order. It may be linked to a booking but is
// never touched by the booking lifecycle.
type FoodOrder struct {
	ID            int64     `json:"id"`
	BookingID     *int64    `json:"booking_id"`
	PassengerName string    `json:"passenger_name"`
	FlightNumber  string    `json:"flight_number"`
	SeatNumber    string    `json:"seat_number"`
	FoodType      string    `json:"food_type"`
	PriceCents    int64     `json:"price_cents"`
	OrderedAt     time.Time `json:"ordered_at"`
}
