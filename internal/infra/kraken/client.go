package kraken

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"arb_go/internal/domain"

	"github.com/goccy/go-json"
)

// Kraken API Constants
const (
	BaseURL   = "https://api.kraken.com"
	StreamURL = "wss://ws.kraken.com"

	publicPrefix   = "/0/public/"
	privatePrefix  = "/0/private/"
	defaultTimeout = 5 * time.Second
)

var publicMethods = map[string]bool{
	"Time": true, "Assets": true, "AssetPairs": true, "Ticker": true,
	"Depth": true, "Trades": true, "Spread": true, "OHLC": true,
}

var privateMethods = map[string]bool{
	"BalanceEx": true, "Balance": true, "TradeBalance": true, "OpenOrders": true,
	"ClosedOrders": true, "QueryOrders": true, "TradesHistory": true, "QueryTrades": true,
	"OpenPositions": true, "Ledgers": true, "QueryLedgers": true, "TradeVolume": true,
	"AddOrder": true, "CancelOrder": true, "DepositMethods": true, "DepositAddresses": true,
	"DepositStatus": true, "WithdrawInfo": true, "Withdraw": true, "WithdrawStatus": true,
	"WithdrawCancel": true, "GetWebSocketsToken": true,
}

// Client is the Kraken spot REST + stream client. Credentials are fixed at construction.
type Client struct {
	creds      domain.Credentials
	baseURL    string
	streamURL  string
	httpClient *http.Client
	nonce      *nonceSource
	logger     *slog.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithBaseURL overrides the REST host.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithStreamURL overrides the websocket endpoint.
func WithStreamURL(u string) Option {
	return func(c *Client) { c.streamURL = u }
}

// WithTimeout sets the REST request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// WithClock replaces the nonce clock.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.nonce.now = now }
}

// NewClient creates a new Kraken client.
func NewClient(creds domain.Credentials, opts ...Option) *Client {
	c := &Client{
		creds:     creds,
		baseURL:   BaseURL,
		streamURL: StreamURL,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
			Transport: &http.Transport{
				MaxIdleConns:    10,
				IdleConnTimeout: 30 * time.Second,
			},
		},
		nonce:  &nonceSource{now: time.Now},
		logger: slog.Default().With("module", "kraken_client"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Venue() domain.VenueID { return domain.VenueKraken }

func (c *Client) APIKey() string { return c.creds.APIKey }

func (c *Client) StreamURL() string { return c.streamURL }

// SubscriptionMessage subscribes to the spread feed of asset (pair name as Kraken spells it).
func (c *Client) SubscriptionMessage(asset string) ([]byte, error) {
	if asset == "" {
		return nil, &domain.ConfigError{Field: "kraken.asset", Err: fmt.Errorf("invalid asset %q", asset)}
	}
	return json.Marshal(subscribeRequest{
		Event:        "subscribe",
		Pair:         []string{asset},
		Subscription: subscription{Name: "spread"},
	})
}

// Query calls a REST method. Private methods are POSTed with a nonce and API-Sign.
// Transport failures come back as text.
func (c *Client) Query(ctx context.Context, method, params string) (string, error) {
	switch {
	case publicMethods[method]:
		u := c.baseURL + publicPrefix + method
		if params != "" {
			u += "?" + params
		}
		return c.send(ctx, http.MethodGet, u, "", nil), nil

	case privateMethods[method]:
		if c.creds.IsZero() {
			return "", &domain.ConfigError{Field: "kraken.credentials", Err: domain.ErrMissingCredentials}
		}
		path := privatePrefix + method
		nonce := c.nonce.Next()
		payload := privatePayload(nonce, params)
		sign, err := signPayload(c.creds.APISecret, path, nonce, payload)
		if err != nil {
			return "", &domain.SigningError{Venue: domain.VenueKraken, Err: fmt.Errorf("decode secret: %w", err)}
		}
		return c.send(ctx, http.MethodPost, c.baseURL+path, payload, map[string]string{
			"API-Key":      c.creds.APIKey,
			"API-Sign":     sign,
			"Content-Type": "application/x-www-form-urlencoded",
		}), nil

	default:
		return "", &domain.ConfigError{Field: "kraken.method", Err: fmt.Errorf("%w: %s", domain.ErrUnknownMethod, method)}
	}
}

// send returns the response body, or the error text when the request fails.
func (c *Client) send(ctx context.Context, method, url, body string, headers map[string]string) string {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return err.Error()
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		netErr := domain.NewNetworkError("kraken "+strings.ToLower(method), err)
		c.logger.Warn("Request failed", slog.String("url", url), slog.Any("error", netErr))
		return netErr.Error()
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.NewNetworkError("kraken read", err).Error()
	}
	return string(data)
}
