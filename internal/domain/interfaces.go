package domain

import "context"

// Identity is the credential-holding side of an exchange client.
type Identity interface {
	Venue() VenueID
	APIKey() string
}

// MarketDataSource describes how to open and subscribe to a venue's stream.
type MarketDataSource interface {
	StreamURL() string
	SubscriptionMessage(asset string) ([]byte, error)
}

// AuthenticatedQuery issues a REST call routed and signed per venue rules.
// Transport failures come back as the response text; the returned error is
// reserved for configuration and signing failures, which callers treat as fatal.
type AuthenticatedQuery interface {
	Query(ctx context.Context, method, urlEncodedParams string) (string, error)
}

// TickParser turns one raw stream frame into a Tick.
type TickParser interface {
	ParseTick(content, asset string, timestamp2 uint64) (Tick, error)
}

// BalanceParser extracts one currency's balance from a REST response body.
type BalanceParser interface {
	ParseBalance(body, currency string) (Balance, error)
}

// ExchangeClient is the full capability set a venue integration provides.
type ExchangeClient interface {
	Identity
	MarketDataSource
	AuthenticatedQuery
	TickParser
	BalanceParser
}
