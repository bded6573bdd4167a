package domain

import "time"

type Flight struct {
	ID           int64     `json:"id"`
	Airline      string    `json:"airline"`
	Origin       string    `json:"origin"`
	Destination  string    `json:"destination"`
	PriceCents   int64     `json:"price_cents"`
	SpecialOffer string    `json:"special_offer"`
	CreatedAt    time.Time `json:"created_at"`
}

// Route renders the flight as "Origin → Destination".
func (f Flight) Route() string {
	return f.Origin + " → " + f.Destination
}
