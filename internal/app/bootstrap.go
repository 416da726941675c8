package app

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"arb_go/internal/domain"
	"arb_go/internal/engine"
	"arb_go/internal/infra"
	"arb_go/internal/infra/binance"
	"arb_go/internal/infra/kraken"
	"arb_go/internal/service"
	"arb_go/internal/strategy"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"
)

// Bootstrap orchestrates the application startup sequence
type Bootstrap struct {
	Config    *infra.Config
	Clients   map[domain.VenueID]domain.ExchangeClient
	Store     *service.MarketStore
	Router    *engine.Router
	Streams   []*engine.Stream
	Poller    *engine.BalancePoller
	Evaluator *strategy.Evaluator
	Registry  *prometheus.Registry
}

// NewBootstrap creates a new Bootstrap instance
func NewBootstrap() *Bootstrap {
	return &Bootstrap{}
}

// Initialize loads configuration and wires every component. Nothing runs yet.
func (b *Bootstrap) Initialize(configPath string) error {
	slog.Info("🚀 Bootstrapping arb_go...")

	// 1. Load Config
	cfg, err := infra.LoadConfig(configPath)
	if err != nil {
		return err // Let main handle the error
	}
	b.Config = cfg

	// 2. Setup Logger
	logger := infra.NewLogger(cfg)
	slog.SetDefault(logger)

	pollVenue, _ := domain.ParseVenue(cfg.Poller.Venue)
	fast, _ := domain.ParseVenue(cfg.Strategy.Fast)
	slow, _ := domain.ParseVenue(cfg.Strategy.Slow)

	// 3. Exchange Clients
	binanceCreds, err := loadCredentials(domain.VenueBinance, cfg.Venues.Binance.CredentialsFile, pollVenue)
	if err != nil {
		return err
	}
	krakenCreds, err := loadCredentials(domain.VenueKraken, cfg.Venues.Kraken.CredentialsFile, pollVenue)
	if err != nil {
		return err
	}

	b.Clients = map[domain.VenueID]domain.ExchangeClient{
		domain.VenueBinance: binance.NewClient(binanceCreds,
			binance.WithBaseURL(cfg.Venues.Binance.RestURL),
			binance.WithStreamURL(cfg.Venues.Binance.WSURL),
			binance.WithTimeout(time.Duration(cfg.Venues.Binance.TimeoutMS)*time.Millisecond)),
		domain.VenueKraken: kraken.NewClient(krakenCreds,
			kraken.WithBaseURL(cfg.Venues.Kraken.RestURL),
			kraken.WithStreamURL(cfg.Venues.Kraken.WSURL),
			kraken.WithTimeout(time.Duration(cfg.Venues.Kraken.TimeoutMS)*time.Millisecond)),
	}
	slog.Info("✅ Exchange clients ready")

	// 4. Market Store & Router
	b.Store = service.NewMarketStore(cfg.Pipeline.BufferSize, domain.VenueBinance, domain.VenueKraken)
	b.Router = engine.NewRouter(cfg.Pipeline.ChannelSize, b.Store, engine.WithClockOffset(cfg.Pipeline.ClockOffsetMS))

	assets := map[domain.VenueID]string{
		domain.VenueBinance: cfg.Venues.Binance.Asset,
		domain.VenueKraken:  cfg.Venues.Kraken.Asset,
	}
	for _, venue := range b.Store.Venues() {
		client := b.Clients[venue]
		b.Router.Register(venue, client)
		b.Streams = append(b.Streams, engine.NewStream(client, venue, assets[venue], b.Router.Inbox(),
			engine.WithReconnect(cfg.Pipeline.Reconnect)))
	}

	// 5. Balance Poller
	pollClient := b.Clients[pollVenue]
	b.Poller = engine.NewBalancePoller(pollClient, pollClient, b.Store, cfg.Poller.Currency,
		time.Duration(cfg.Poller.IntervalSec)*time.Second, engine.WithMethod(cfg.Poller.Method))

	// 6. Evaluator
	params := strategy.Params{
		TradeSizeFraction: cfg.Strategy.TradeSize,
		Gap:               cfg.Strategy.Gap,
		Fee:               cfg.Strategy.Fee,
		MaxTimeDiffMs:     cfg.Strategy.MaxTimeDiffMS,
	}
	b.Evaluator = strategy.NewEvaluator(params, b.Store, strategy.NewLogSink(logger), fast, slow, pollVenue,
		time.Duration(cfg.Strategy.IntervalMS)*time.Millisecond)

	// 7. Metrics
	b.Registry = infra.NewRegistry(infra.GlobalMetrics)

	return nil
}

// Run starts every task and blocks until ctx is done or a task fails fatally.
func (b *Bootstrap) Run(ctx context.Context) error {
	b.probeClockOffset(ctx)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return b.Router.Run(ctx) })
	for _, s := range b.Streams {
		g.Go(func() error { return s.Run(ctx) })
	}
	g.Go(func() error { return b.Poller.Run(ctx) })
	g.Go(func() error { return b.Evaluator.Run(ctx) })

	if addr := b.Config.Metrics.Addr; addr != "" {
		g.Go(func() error { return infra.ServeMetrics(ctx, addr, b.Registry) })
	}

	slog.InfoContext(ctx, "✨ Pipeline fully operational. Press Ctrl+C to exit.",
		slog.Int("streams", len(b.Streams)))

	return g.Wait()
}

// Shutdown writes the state dump when configured.
func (b *Bootstrap) Shutdown() {
	if b.Store == nil || b.Config == nil || b.Config.StateDumpPath == "" {
		return
	}
	if err := b.Store.DumpState(b.Config.StateDumpPath); err != nil {
		slog.Error("State dump failed", slog.Any("error", err))
	}
}

// probeClockOffset logs how far the local clock is from Binance's.
func (b *Bootstrap) probeClockOffset(ctx context.Context) {
	c, ok := b.Clients[domain.VenueBinance].(*binance.Client)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	offset, err := c.ServerTimeOffset(ctx)
	if err != nil {
		slog.Warn("Server time probe failed", slog.Any("error", err))
		return
	}
	slog.Info("🕒 Server time offset",
		slog.Int64("server_minus_local_ms", offset),
		slog.Int64("configured_clock_offset_ms", b.Config.Pipeline.ClockOffsetMS))
}

// loadCredentials requires a key file only for the venue whose balance is polled.
func loadCredentials(venue domain.VenueID, path string, required domain.VenueID) (domain.Credentials, error) {
	creds, err := infra.LoadVenueCredentials(venue, path)
	if err != nil {
		if venue != required && errors.Is(err, fs.ErrNotExist) {
			slog.Warn("No credentials, public access only", slog.String("venue", string(venue)), slog.String("file", path))
			return domain.Credentials{}, nil
		}
		return domain.Credentials{}, fmt.Errorf("%s credentials: %w", venue, err)
	}
	if creds.IsZero() {
		slog.Warn("Credentials incomplete", slog.String("venue", string(venue)), slog.String("file", path))
	}
	return creds, nil
}
