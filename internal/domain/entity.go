package domain

import "strings"

// VenueID identifies a trading venue integration.
type VenueID string

const (
	VenueBinance VenueID = "BINANCE"
	VenueKraken  VenueID = "KRAKEN"
)

// ParseVenue normalizes a configured venue name.
func ParseVenue(s string) (VenueID, error) {
	switch VenueID(strings.ToUpper(strings.TrimSpace(s))) {
	case VenueBinance:
		return VenueBinance, nil
	case VenueKraken:
		return VenueKraken, nil
	default:
		return "", &ConfigError{Field: "venue", Err: ErrUnknownVenue}
	}
}

func (v VenueID) String() string {
	return string(v)
}

// Credentials is the immutable API key pair handed to an exchange client at construction.
type Credentials struct {
	APIKey    string
	APISecret string
}

// IsZero reports whether either half of the key pair is missing.
func (c Credentials) IsZero() bool {
	return c.APIKey == "" || c.APISecret == ""
}

// ExchangeMessage is one raw frame forwarded from an ingestion task to the router.
type ExchangeMessage struct {
	Sender  VenueID
	Asset   string
	Content string
}
