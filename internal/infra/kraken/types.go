package kraken

import (
	"errors"
	"fmt"
	"strings"

	"arb_go/internal/domain"

	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"
)

type subscription struct {
	Name string `json:"name"`
}

type subscribeRequest struct {
	Event        string       `json:"event"`
	Pair         []string     `json:"pair"`
	Subscription subscription `json:"subscription"`
}

// {"error":[],"result":{"ZUSD":"171288.6158","USDT":"12.5"}}
type balanceResponse struct {
	Error  []string          `json:"error"`
	Result map[string]string `json:"result"`
}

var two = decimal.NewFromInt(2)

// ParseTick converts one spread frame into a Tick whose Avg is the bid/ask mid.
// Frame layout: [channelID, [bid, ask, time, bidVolume, askVolume], "spread", pair]
// Event objects (heartbeat, systemStatus, subscriptionStatus) are not arrays and fail here.
// Kraken spread frames carry no usable event time, so Timestamp stays 0.
func (c *Client) ParseTick(content, asset string, timestamp2 uint64) (domain.Tick, error) {
	var frame []json.RawMessage
	if err := json.Unmarshal([]byte(content), &frame); err != nil {
		return domain.Tick{}, tickErr(err)
	}
	if len(frame) < 2 {
		return domain.Tick{}, tickErr(fmt.Errorf("short frame of %d elements", len(frame)))
	}

	var spread []json.RawMessage
	if err := json.Unmarshal(frame[1], &spread); err != nil {
		return domain.Tick{}, tickErr(fmt.Errorf("spread element: %w", err))
	}
	if len(spread) < 2 {
		return domain.Tick{}, tickErr(errors.New("spread element lacks bid/ask"))
	}

	bid, err := decimalString(spread[0])
	if err != nil {
		return domain.Tick{}, tickErr(fmt.Errorf("bid: %w", err))
	}
	ask, err := decimalString(spread[1])
	if err != nil {
		return domain.Tick{}, tickErr(fmt.Errorf("ask: %w", err))
	}

	avg := bid.Add(ask).Div(two)
	if !avg.IsPositive() {
		return domain.Tick{}, tickErr(fmt.Errorf("non-positive mid %s", avg))
	}

	return domain.Tick{
		Timestamp:  0,
		Timestamp2: timestamp2,
		Avg:        avg.InexactFloat64(),
		Exchange:   domain.VenueKraken,
		Asset:      asset,
	}, nil
}

// ParseBalance reads currency from a Balance response. A missing currency is an error, not zero.
func (c *Client) ParseBalance(body, currency string) (domain.Balance, error) {
	var resp balanceResponse
	if err := json.Unmarshal([]byte(body), &resp); err != nil {
		return domain.Balance{}, balanceErr(err)
	}
	if len(resp.Error) > 0 {
		return domain.Balance{}, balanceErr(fmt.Errorf("api error: %s", strings.Join(resp.Error, "; ")))
	}

	raw, ok := resp.Result[currency]
	if !ok {
		return domain.Balance{}, balanceErr(fmt.Errorf("%w: %s", domain.ErrCurrencyNotFound, currency))
	}
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return domain.Balance{}, balanceErr(fmt.Errorf("amount %q: %w", raw, err))
	}

	return domain.Balance{
		Currency: currency,
		Amount:   amount.InexactFloat64(),
		Exchange: domain.VenueKraken,
	}, nil
}

func decimalString(raw json.RawMessage) (decimal.Decimal, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromString(s)
}

func tickErr(err error) error {
	return &domain.ParseError{Venue: domain.VenueKraken, What: "tick", Err: err}
}

func balanceErr(err error) error {
	return &domain.ParseError{Venue: domain.VenueKraken, What: "balance", Err: err}
}
