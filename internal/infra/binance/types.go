package binance

import (
	"errors"
	"fmt"

	"arb_go/internal/domain"

	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"
)

// Combined-stream envelope: {"stream":"pepeusdt@trade","data":{...}}
type streamEnvelope struct {
	Stream string     `json:"stream"`
	Data   *tradeData `json:"data"`
}

// Every key of the trade payload is declared: the decoder falls back to a
// case-insensitive match, so an undeclared "E" would land in "e" and "t" in "T".
type tradeData struct {
	EventType string  `json:"e"`
	EventTime uint64  `json:"E"`
	Symbol    string  `json:"s"`
	TradeID   uint64  `json:"t"`
	Price     string  `json:"p"`
	Quantity  string  `json:"q"`
	TradeTime *uint64 `json:"T"`
	Maker     bool    `json:"m"`
	Ignore    bool    `json:"M"`
}

type subscribeRequest struct {
	Method string   `json:"method"`
	Params []string `json:"params"`
}

type accountResponse struct {
	Balances []struct {
		Asset  string `json:"asset"`
		Free   string `json:"free"`
		Locked string `json:"locked"`
	} `json:"balances"`
}

// REST error body: {"code":-2015,"msg":"Invalid API-key, IP, or permissions for action."}
type apiError struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

type serverTimeResponse struct {
	ServerTime uint64 `json:"serverTime"`
}

// ParseTick converts one trade frame into a Tick.
func (c *Client) ParseTick(content, asset string, timestamp2 uint64) (domain.Tick, error) {
	var env streamEnvelope
	if err := json.Unmarshal([]byte(content), &env); err != nil {
		return domain.Tick{}, tickErr(err)
	}
	if env.Data == nil {
		return domain.Tick{}, tickErr(errors.New("missing data"))
	}
	if env.Data.Price == "" {
		return domain.Tick{}, tickErr(errors.New("missing price"))
	}
	if env.Data.TradeTime == nil {
		return domain.Tick{}, tickErr(errors.New("missing trade time"))
	}

	price, err := decimal.NewFromString(env.Data.Price)
	if err != nil {
		return domain.Tick{}, tickErr(fmt.Errorf("price %q: %w", env.Data.Price, err))
	}
	if !price.IsPositive() {
		return domain.Tick{}, tickErr(fmt.Errorf("non-positive price %s", price))
	}

	return domain.Tick{
		Timestamp:  *env.Data.TradeTime,
		Timestamp2: timestamp2,
		Avg:        price.InexactFloat64(),
		Exchange:   domain.VenueBinance,
		Asset:      asset,
	}, nil
}

// ParseBalance reads the free amount of currency from an account response.
func (c *Client) ParseBalance(body, currency string) (domain.Balance, error) {
	var apiErr apiError
	if err := json.Unmarshal([]byte(body), &apiErr); err == nil && apiErr.Msg != "" {
		return domain.Balance{}, balanceErr(fmt.Errorf("api error %d: %s", apiErr.Code, apiErr.Msg))
	}

	var resp accountResponse
	if err := json.Unmarshal([]byte(body), &resp); err != nil {
		return domain.Balance{}, balanceErr(err)
	}

	for _, b := range resp.Balances {
		if b.Asset != currency {
			continue
		}
		amount, err := decimal.NewFromString(b.Free)
		if err != nil {
			return domain.Balance{}, balanceErr(fmt.Errorf("free %q: %w", b.Free, err))
		}
		return domain.Balance{
			Currency: currency,
			Amount:   amount.InexactFloat64(),
			Exchange: domain.VenueBinance,
		}, nil
	}
	return domain.Balance{}, balanceErr(fmt.Errorf("%w: %s", domain.ErrCurrencyNotFound, currency))
}

func tickErr(err error) error {
	return &domain.ParseError{Venue: domain.VenueBinance, What: "tick", Err: err}
}

func balanceErr(err error) error {
	return &domain.ParseError{Venue: domain.VenueBinance, What: "balance", Err: err}
}
