package strategy

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"arb_go/internal/domain"
	"arb_go/internal/infra"
	"arb_go/internal/service"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Params configures the one-leg divergence check. Fractions are in [0, 1].
type Params struct {
	TradeSizeFraction decimal.Decimal
	Gap               decimal.Decimal
	Fee               decimal.Decimal
	MaxTimeDiffMs     uint64
}

// Evaluate compares the fast and slow venue prices.
// It fires when fast/slow leaves the band [1-gap-fee, 1+gap+fee], provided both
// ticks were received less than MaxTimeDiffMs apart.
func Evaluate(p Params, fast, slow domain.Tick, bal domain.Balance) (Signal, bool) {
	var timeDiff uint64
	if fast.Timestamp2 > slow.Timestamp2 {
		timeDiff = fast.Timestamp2 - slow.Timestamp2
	} else {
		timeDiff = slow.Timestamp2 - fast.Timestamp2
	}
	if timeDiff >= p.MaxTimeDiffMs {
		return Signal{}, false
	}
	if slow.Avg <= 0 {
		return Signal{}, false
	}

	// Band edges are compared exactly; 1+0.01+0.0026 is not representable as a float.
	band := p.Gap.Add(p.Fee)
	upper := decimal.NewFromInt(1).Add(band)
	lower := decimal.NewFromInt(1).Sub(band)

	ratio := decimal.NewFromFloat(fast.Avg).Div(decimal.NewFromFloat(slow.Avg))
	if !ratio.GreaterThan(upper) && !ratio.LessThan(lower) {
		return Signal{}, false
	}

	diff := fast.Avg - slow.Avg
	direction := ActionSell
	if diff > 0 {
		direction = ActionBuy
	}

	return Signal{
		Direction: direction,
		Size:      p.TradeSizeFraction.InexactFloat64() * bal.Amount,
		Ratio:     ratio.InexactFloat64(),
		PriceDiff: diff,
		Fast:      fast,
		Slow:      slow,
		Balance:   bal,
	}, true
}

// SnapshotSource provides a consistent read of the latest market state.
type SnapshotSource interface {
	Snapshot(fast, slow, balanceVenue domain.VenueID) (service.Snapshot, error)
}

// Evaluator runs Evaluate on a fixed cadence against the shared store.
type Evaluator struct {
	params       Params
	source       SnapshotSource
	sink         Sink
	fast         domain.VenueID
	slow         domain.VenueID
	balanceVenue domain.VenueID
	interval     time.Duration

	metrics *infra.Metrics
	logger  *slog.Logger
}

// NewEvaluator creates an evaluator reading fast/slow ticks and balanceVenue balances.
func NewEvaluator(params Params, source SnapshotSource, sink Sink, fast, slow, balanceVenue domain.VenueID, interval time.Duration) *Evaluator {
	return &Evaluator{
		params:       params,
		source:       source,
		sink:         sink,
		fast:         fast,
		slow:         slow,
		balanceVenue: balanceVenue,
		interval:     interval,
		metrics:      infra.GlobalMetrics,
		logger:       slog.Default().With("module", "evaluator"),
	}
}

// WithMetrics sets the metrics sink.
func (e *Evaluator) WithMetrics(m *infra.Metrics) *Evaluator {
	e.metrics = m
	return e
}

// Run evaluates every interval until ctx is done.
func (e *Evaluator) Run(ctx context.Context) error {
	e.logger.Info("Evaluator started",
		slog.String("fast", string(e.fast)),
		slog.String("slow", string(e.slow)),
		slog.Duration("interval", e.interval))

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("Evaluator stopped")
			return nil
		case <-ticker.C:
			e.cycle(ctx)
		}
	}
}

func (e *Evaluator) cycle(ctx context.Context) {
	snap, err := e.source.Snapshot(e.fast, e.slow, e.balanceVenue)
	if err != nil {
		e.metrics.RecordSkippedCycle()
		if !errors.Is(err, domain.ErrBufferEmpty) {
			e.logger.Warn("Snapshot failed", slog.Any("error", err))
			return
		}
		e.logger.Debug("Cycle skipped", slog.Any("reason", err))
		return
	}

	sig, ok := Evaluate(e.params, snap.Fast, snap.Slow, snap.Balance)
	if !ok {
		return
	}
	sig.ID = uuid.New()
	sig.At = time.Now()

	e.metrics.RecordSignal()
	if err := e.sink.Emit(ctx, sig); err != nil {
		e.logger.Error("Signal emit failed", slog.String("id", sig.ID.String()), slog.Any("error", err))
	}
}
