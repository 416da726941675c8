package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"arb_go/internal/domain"
	"arb_go/internal/infra"
)

// TickStore receives parsed ticks.
type TickStore interface {
	AppendTick(t domain.Tick) bool
}

// Router is the single consumer of the fan-in channel: it parses each message
// with its sender's parser and appends the tick to the store, in arrival order.
type Router struct {
	inbox   chan domain.ExchangeMessage
	parsers map[domain.VenueID]domain.TickParser
	store   TickStore

	clockOffsetMs int64
	now           func() time.Time
	metrics       *infra.Metrics
	logger        *slog.Logger
}

// RouterOption customizes a Router.
type RouterOption func(*Router)

// WithClockOffset sets the milliseconds subtracted from local receipt time.
func WithClockOffset(ms int64) RouterOption {
	return func(r *Router) { r.clockOffsetMs = ms }
}

// WithRouterClock replaces time.Now.
func WithRouterClock(now func() time.Time) RouterOption {
	return func(r *Router) { r.now = now }
}

// WithRouterMetrics sets the metrics sink (GlobalMetrics by default).
func WithRouterMetrics(m *infra.Metrics) RouterOption {
	return func(r *Router) { r.metrics = m }
}

// NewRouter creates a router with a bounded inbox.
func NewRouter(inboxSize int, store TickStore, opts ...RouterOption) *Router {
	r := &Router{
		inbox:   make(chan domain.ExchangeMessage, inboxSize),
		parsers: make(map[domain.VenueID]domain.TickParser),
		store:   store,
		now:     time.Now,
		metrics: infra.GlobalMetrics,
		logger:  slog.Default().With("module", "router"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register binds venue to its tick parser. Call before Run.
func (r *Router) Register(venue domain.VenueID, parser domain.TickParser) {
	r.parsers[venue] = parser
}

// Inbox returns the message channel. Ingestion streams send here.
func (r *Router) Inbox() chan<- domain.ExchangeMessage {
	return r.inbox
}

// Run consumes the inbox until ctx is done. This MUST be run in a single goroutine.
func (r *Router) Run(ctx context.Context) error {
	r.logger.Info("Router started", slog.Int("inbox", cap(r.inbox)), slog.Int64("clock_offset_ms", r.clockOffsetMs))
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("Router stopping...")
			return nil
		case msg := <-r.inbox:
			r.Route(msg)
		}
	}
}

// Route processes one message and reports whether a tick was stored.
// Malformed messages are dropped; a panicking parser only loses its own message.
func (r *Router) Route(msg domain.ExchangeMessage) (stored bool) {
	start := time.Now()

	defer func() {
		if rec := recover(); rec != nil {
			r.metrics.RecordParseFailure()
			r.logger.Error("Parser panic recovered",
				slog.String("venue", string(msg.Sender)),
				slog.Any("panic", rec),
				slog.String("content", msg.Content))
			stored = false
		}
	}()

	parser, ok := r.parsers[msg.Sender]
	if !ok {
		r.logger.Warn("Message from unregistered venue dropped", slog.String("venue", string(msg.Sender)))
		return false
	}

	tick, err := parser.ParseTick(msg.Content, msg.Asset, r.timestamp2())
	if err != nil {
		r.metrics.RecordParseFailure()
		r.logger.Debug("Message dropped",
			slog.String("venue", string(msg.Sender)),
			slog.Any("error", err),
			slog.String("content", msg.Content))
		return false
	}

	if !r.store.AppendTick(tick) {
		r.logger.Warn("Tick rejected by store", slog.String("tick", fmt.Sprintf("%+v", tick)))
		return false
	}

	r.metrics.RecordTickStored()
	r.metrics.RecordRouted(time.Since(start).Nanoseconds())
	return true
}

// timestamp2 is local receipt time in ms minus the clock offset, floored at zero.
func (r *Router) timestamp2() uint64 {
	ms := r.now().UnixMilli() - r.clockOffsetMs
	if ms < 0 {
		return 0
	}
	return uint64(ms)
}
