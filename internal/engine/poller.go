package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"arb_go/internal/domain"
	"arb_go/internal/infra"
)

// BalanceStore receives parsed balances.
type BalanceStore interface {
	AppendBalance(b domain.Balance) bool
}

// BalancePoller periodically queries one venue for one currency balance.
type BalancePoller struct {
	query    domain.AuthenticatedQuery
	parser   domain.BalanceParser
	store    BalanceStore
	method   string
	currency string
	interval time.Duration

	metrics *infra.Metrics
	logger  *slog.Logger
}

// PollerOption customizes a BalancePoller.
type PollerOption func(*BalancePoller)

// WithMethod overrides the REST method (default "Balance").
func WithMethod(method string) PollerOption {
	return func(p *BalancePoller) { p.method = method }
}

// WithPollerMetrics sets the metrics sink (GlobalMetrics by default).
func WithPollerMetrics(m *infra.Metrics) PollerOption {
	return func(p *BalancePoller) { p.metrics = m }
}

// NewBalancePoller creates a poller. client usually provides both query and parser.
func NewBalancePoller(query domain.AuthenticatedQuery, parser domain.BalanceParser, store BalanceStore, currency string, interval time.Duration, opts ...PollerOption) *BalancePoller {
	p := &BalancePoller{
		query:    query,
		parser:   parser,
		store:    store,
		method:   "Balance",
		currency: currency,
		interval: interval,
		metrics:  infra.GlobalMetrics,
		logger:   slog.Default().With("module", "balance_poller"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run polls immediately, then every interval, until ctx is done.
// Configuration and signing errors are returned; a bad response only aborts its cycle.
func (p *BalancePoller) Run(ctx context.Context) error {
	p.logger.Info("Balance poller started",
		slog.String("method", p.method),
		slog.String("currency", p.currency),
		slog.Duration("interval", p.interval))

	if err := p.poll(ctx); err != nil {
		return err
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Balance poller stopped")
			return nil
		case <-ticker.C:
			if err := p.poll(ctx); err != nil {
				return err
			}
		}
	}
}

func (p *BalancePoller) poll(ctx context.Context) error {
	body, err := p.query.Query(ctx, p.method, "")
	if err != nil {
		return fmt.Errorf("balance query %s: %w", p.method, err)
	}
	if ctx.Err() != nil {
		return nil
	}

	bal, err := p.parser.ParseBalance(body, p.currency)
	if err != nil {
		p.metrics.RecordBalancePoll(true)
		p.logger.Error("Balance cycle aborted",
			slog.Any("error", err),
			slog.String("body", body))
		return nil
	}

	p.store.AppendBalance(bal)
	p.metrics.RecordBalancePoll(false)
	p.logger.Debug("Balance updated",
		slog.String("currency", bal.Currency),
		slog.Float64("amount", bal.Amount))
	return nil
}
