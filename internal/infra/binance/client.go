package binance

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

// Binance API Constants
const (
	BaseURL   = "https://api.binance.com"
	StreamURL = "wss://stream.binance.com:9443/stream"

	apiPrefix      = "/api/v3/"
	defaultTimeout = 5 * time.Second
)

var publicMethods = map[string]bool{
	"ping":         true,
	"time":         true,
	"exchangeInfo": true,
	"depth":        true,
	"trades":       true,
	"avgPrice":     true,
	"ticker/price": true,
}

var privateMethods = map[string]bool{
	"account":    true,
	"myTrades":   true,
	"openOrders": true,
	"allOrders":  true,
}

// Client is the Binance spot REST + stream client. Credentials are fixed at construction.
type Client struct {
	creds      domain.Credentials
	baseURL    string
	streamURL  string
	httpClient *http.Client
	now        func() time.Time
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

// WithClock replaces time.Now, used for the server-time offset.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// NewClient creates a new Binance client.
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
		now:    time.Now,
		logger: slog.Default().With("module", "binance_client"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Venue() domain.VenueID { return domain.VenueBinance }

func (c *Client) APIKey() string { return c.creds.APIKey }

func (c *Client) StreamURL() string { return c.streamURL }

// SubscriptionMessage subscribes to the trade stream of asset, e.g. PEPE/USDT -> pepeusdt@trade.
func (c *Client) SubscriptionMessage(asset string) ([]byte, error) {
	symbol := strings.ToLower(strings.ReplaceAll(asset, "/", ""))
	if symbol == "" {
		return nil, &domain.ConfigError{Field: "binance.asset", Err: fmt.Errorf("invalid asset %q", asset)}
	}
	return json.Marshal(subscribeRequest{
		Method: "SUBSCRIBE",
		Params: []string{symbol + "@trade"},
	})
}

// Query calls a REST method. Public methods are sent as is; private methods are
// timestamped with the server clock and signed. Transport failures come back as text.
func (c *Client) Query(ctx context.Context, method, params string) (string, error) {
	switch {
	case publicMethods[method]:
		return c.get(ctx, c.endpoint(method, params), nil), nil

	case privateMethods[method]:
		if c.creds.IsZero() {
			return "", &domain.ConfigError{Field: "binance.credentials", Err: domain.ErrMissingCredentials}
		}
		serverTime, err := c.serverTime(ctx)
		if err != nil {
			return err.Error(), nil
		}
		query := signedQuery(c.creds.APISecret, params, serverTime)
		return c.get(ctx, c.baseURL+apiPrefix+method+"?"+query, map[string]string{
			"X-MBX-APIKEY": c.creds.APIKey,
		}), nil

	default:
		return "", &domain.ConfigError{Field: "binance.method", Err: fmt.Errorf("%w: %s", domain.ErrUnknownMethod, method)}
	}
}

// ServerTimeOffset returns server time minus local time in milliseconds.
func (c *Client) ServerTimeOffset(ctx context.Context) (int64, error) {
	serverTime, err := c.serverTime(ctx)
	if err != nil {
		return 0, err
	}
	return int64(serverTime) - c.now().UnixMilli(), nil
}

func (c *Client) serverTime(ctx context.Context) (uint64, error) {
	body, err := c.do(ctx, c.endpoint("time", ""), nil)
	if err != nil {
		return 0, err
	}
	var resp serverTimeResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, &domain.ParseError{Venue: domain.VenueBinance, What: "server time", Err: err}
	}
	if resp.ServerTime == 0 {
		return 0, &domain.ParseError{Venue: domain.VenueBinance, What: "server time", Err: fmt.Errorf("unexpected body %q", body)}
	}
	return resp.ServerTime, nil
}

func (c *Client) endpoint(method, params string) string {
	u := c.baseURL + apiPrefix + method
	if params != "" {
		u += "?" + params
	}
	return u
}

// get returns the response body, or the error text when the request fails.
func (c *Client) get(ctx context.Context, url string, headers map[string]string) string {
	body, err := c.do(ctx, url, headers)
	if err != nil {
		c.logger.Warn("Request failed", slog.String("url", url), slog.Any("error", err))
		return err.Error()
	}
	return string(body)
}

func (c *Client) do(ctx context.Context, url string, headers map[string]string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, domain.NewNetworkError("binance get", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, domain.NewNetworkError("binance read", err)
	}
	return body, nil
}
