package domain

// Tick is one normalized price observation for an asset on a venue.
type Tick struct {
	Timestamp  uint64  `json:"timestamp"`  // venue event time (ms), 0 when the venue sends none
	Timestamp2 uint64  `json:"timestamp2"` // local receipt time (ms) minus clock offset
	Avg        float64 `json:"avg"`        // trade price or bid/ask midpoint
	Exchange   VenueID `json:"exchange"`
	Asset      string  `json:"asset"`
}

// Venue implements Entry.
func (t Tick) Venue() VenueID {
	return t.Exchange
}
