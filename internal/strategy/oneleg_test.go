package strategy_test

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"arb_go/internal/domain"
	"arb_go/internal/infra"
	"arb_go/internal/service"
	"arb_go/internal/strategy"

	"github.com/shopspring/decimal"
)

func testParams() strategy.Params {
	return strategy.Params{
		TradeSizeFraction: decimal.RequireFromString("0.01"),
		Gap:               decimal.RequireFromString("0.02"),
		Fee:               decimal.RequireFromString("0.0026"),
		MaxTimeDiffMs:     100,
	}
}

func tick(venue domain.VenueID, avg float64, ts2 uint64) domain.Tick {
	return domain.Tick{Avg: avg, Timestamp2: ts2, Exchange: venue}
}

func TestEvaluate(t *testing.T) {
	bal := domain.Balance{Currency: "USDT", Amount: 1000, Exchange: domain.VenueKraken}

	tests := []struct {
		name     string
		fastAvg  float64
		fastTs2  uint64
		slowTs2  uint64
		wantFire bool
		wantDir  strategy.ActionType
	}{
		// band is [0.9774, 1.0226]
		{"inside band", 102, 1000, 1000, false, 0},
		{"above band buys", 104, 1000, 1000, true, strategy.ActionBuy},
		{"below band sells", 96, 1000, 1000, true, strategy.ActionSell},
		{"stale at limit", 104, 1100, 1000, false, 0},
		{"stale slow ahead", 104, 1000, 1200, false, 0},
		{"just fresh", 104, 1099, 1000, true, strategy.ActionBuy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fast := tick(domain.VenueBinance, tt.fastAvg, tt.fastTs2)
			slow := tick(domain.VenueKraken, 100, tt.slowTs2)

			sig, ok := strategy.Evaluate(testParams(), fast, slow, bal)
			if ok != tt.wantFire {
				t.Fatalf("fired=%v, want %v", ok, tt.wantFire)
			}
			if !ok {
				return
			}
			if sig.Direction != tt.wantDir {
				t.Errorf("direction = %s, want %s", sig.Direction, tt.wantDir)
			}
			if math.Abs(sig.Size-10) > 1e-9 {
				t.Errorf("size = %v, want 10", sig.Size)
			}
			if math.Abs(sig.Ratio-tt.fastAvg/100) > 1e-12 {
				t.Errorf("ratio = %v", sig.Ratio)
			}
		})
	}
}

func TestEvaluate_DefaultThresholds(t *testing.T) {
	p := strategy.Params{
		TradeSizeFraction: decimal.RequireFromString("0.01"),
		Gap:               decimal.RequireFromString("0.00001"),
		Fee:               decimal.RequireFromString("0.0026"),
		MaxTimeDiffMs:     100,
	}
	bal := domain.Balance{Amount: 50}

	if _, ok := strategy.Evaluate(p, tick(domain.VenueBinance, 100.2, 0), tick(domain.VenueKraken, 100, 0), bal); ok {
		t.Error("0.2% divergence is inside the fee band")
	}
	if _, ok := strategy.Evaluate(p, tick(domain.VenueBinance, 100.3, 0), tick(domain.VenueKraken, 100, 0), bal); !ok {
		t.Error("0.3% divergence should fire")
	}
}

func TestEvaluate_BandEdges(t *testing.T) {
	p := strategy.Params{
		TradeSizeFraction: decimal.RequireFromString("0.01"),
		Gap:               decimal.RequireFromString("0.01"),
		Fee:               decimal.RequireFromString("0.0026"),
		MaxTimeDiffMs:     100,
	}
	bal := domain.Balance{Amount: 50}

	// band is [0.9874, 1.0126]; an edge price sits exactly on it
	tests := []struct {
		fastAvg  float64
		wantFire bool
	}{
		{101.26, false},
		{98.74, false},
		{101.27, true},
		{98.73, true},
	}
	for _, tt := range tests {
		_, ok := strategy.Evaluate(p, tick(domain.VenueBinance, tt.fastAvg, 0), tick(domain.VenueKraken, 100, 0), bal)
		if ok != tt.wantFire {
			t.Errorf("fast=%v: fired=%v, want %v", tt.fastAvg, ok, tt.wantFire)
		}
	}
}

type recordingSink struct {
	mu      sync.Mutex
	signals []strategy.Signal
}

func (s *recordingSink) Emit(ctx context.Context, sig strategy.Signal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.signals = append(s.signals, sig)
	return nil
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.signals)
}

func TestEvaluator_Run(t *testing.T) {
	store := service.NewMarketStore(10, domain.VenueBinance, domain.VenueKraken)
	sink := &recordingSink{}
	m := &infra.Metrics{}
	e := strategy.NewEvaluator(testParams(), store, sink,
		domain.VenueBinance, domain.VenueKraken, domain.VenueKraken, 2*time.Millisecond).WithMetrics(m)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()

	// Empty buffers: cycles are skipped.
	deadline := time.Now().Add(2 * time.Second)
	for m.Snapshot().CyclesSkipped == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	store.AppendTick(tick(domain.VenueBinance, 104, 5000))
	store.AppendTick(tick(domain.VenueKraken, 100, 5010))
	store.AppendBalance(domain.Balance{Currency: "USDT", Amount: 1000, Exchange: domain.VenueKraken})

	for sink.count() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run returned %v", err)
	}

	if sink.count() == 0 {
		t.Fatal("expected at least one signal")
	}
	sig := sink.signals[0]
	if sig.Direction != strategy.ActionBuy || sig.Balance.Currency != "USDT" {
		t.Errorf("unexpected signal %+v", sig)
	}
	if sig.ID.String() == "00000000-0000-0000-0000-000000000000" || sig.At.IsZero() {
		t.Error("signal must be stamped with id and time")
	}
	if m.Snapshot().SignalsEmitted == 0 {
		t.Error("signals metric not recorded")
	}
}

func TestActionType_String(t *testing.T) {
	if strategy.ActionBuy.String() != "BUY" || strategy.ActionSell.String() != "SELL" || strategy.ActionType(0).String() != "UNKNOWN" {
		t.Error("unexpected ActionType strings")
	}
}
