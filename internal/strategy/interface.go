package strategy

import (
	"context"
	"log/slog"
	"time"

	"arb_go/internal/domain"

	"github.com/google/uuid"
)

// ActionType defines the type of trading action
type ActionType int

const (
	ActionBuy  ActionType = iota + 1
	ActionSell // Sell
)

// String returns the string representation of ActionType
func (a ActionType) String() string {
	switch a {
	case ActionBuy:
		return "BUY"
	case ActionSell:
		return "SELL"
	default:
		return "UNKNOWN"
	}
}

// Signal is a divergence decision. It is not an order.
type Signal struct {
	ID        uuid.UUID
	Direction ActionType
	Size      float64 // trade fraction * balance amount
	Ratio     float64 // fast.Avg / slow.Avg
	PriceDiff float64 // fast.Avg - slow.Avg
	Fast      domain.Tick
	Slow      domain.Tick
	Balance   domain.Balance
	At        time.Time
}

// Sink receives emitted signals. An order-submission layer would implement it.
type Sink interface {
	Emit(ctx context.Context, sig Signal) error
}

// LogSink only logs signals.
type LogSink struct {
	logger *slog.Logger
}

func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger.With("module", "signal")}
}

func (s *LogSink) Emit(ctx context.Context, sig Signal) error {
	s.logger.InfoContext(ctx, "SIGNAL",
		slog.String("id", sig.ID.String()),
		slog.String("direction", sig.Direction.String()),
		slog.Float64("size", sig.Size),
		slog.String("currency", sig.Balance.Currency),
		slog.Float64("ratio", sig.Ratio),
		slog.Float64("price_diff", sig.PriceDiff),
		slog.String("fast", string(sig.Fast.Exchange)),
		slog.Float64("fast_avg", sig.Fast.Avg),
		slog.String("slow", string(sig.Slow.Exchange)),
		slog.Float64("slow_avg", sig.Slow.Avg))
	return nil
}
