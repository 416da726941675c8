package domain

// Balance is one observed account holding of a currency on a venue.
type Balance struct {
	Currency string  `json:"currency"`
	Amount   float64 `json:"amount"`
	Exchange VenueID `json:"exchange"`
}

// Venue implements Entry.
func (b Balance) Venue() VenueID {
	return b.Exchange
}
