package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"arb_go/internal/domain"
	"arb_go/internal/infra"
	"arb_go/internal/service"
)

// stubParser accepts "ok" and rejects anything else; "panic" panics.
type stubParser struct {
	venue domain.VenueID
}

func (p stubParser) ParseTick(content, asset string, timestamp2 uint64) (domain.Tick, error) {
	switch content {
	case "ok":
		return domain.Tick{Avg: 1.0, Timestamp2: timestamp2, Exchange: p.venue, Asset: asset}, nil
	case "panic":
		panic("malformed frame")
	default:
		return domain.Tick{}, &domain.ParseError{Venue: p.venue, What: "tick", Err: errors.New("bad")}
	}
}

func newTestRouter(m *infra.Metrics) (*Router, *service.MarketStore) {
	store := service.NewMarketStore(10, domain.VenueBinance, domain.VenueKraken)
	now := func() time.Time { return time.UnixMilli(1_700_000_036_880) }
	r := NewRouter(10, store, WithClockOffset(36880), WithRouterClock(now), WithRouterMetrics(m))
	r.Register(domain.VenueBinance, stubParser{venue: domain.VenueBinance})
	r.Register(domain.VenueKraken, stubParser{venue: domain.VenueKraken})
	return r, store
}

func TestRouter_Route(t *testing.T) {
	m := &infra.Metrics{}
	r, store := newTestRouter(m)

	tests := []struct {
		name string
		msg  domain.ExchangeMessage
		want bool
	}{
		{"valid binance", domain.ExchangeMessage{Sender: domain.VenueBinance, Asset: "PEPE/USDT", Content: "ok"}, true},
		{"valid kraken", domain.ExchangeMessage{Sender: domain.VenueKraken, Asset: "PEPE/USD", Content: "ok"}, true},
		{"parse failure", domain.ExchangeMessage{Sender: domain.VenueKraken, Content: `{"event":"heartbeat"}`}, false},
		{"parser panic", domain.ExchangeMessage{Sender: domain.VenueBinance, Content: "panic"}, false},
		{"unknown sender", domain.ExchangeMessage{Sender: "BITGET", Content: "ok"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := r.Route(tt.msg); got != tt.want {
				t.Errorf("Route() = %v, want %v", got, tt.want)
			}
		})
	}

	tick, ok := store.TickBuffer(domain.VenueBinance).Latest()
	if !ok {
		t.Fatal("expected a binance tick")
	}
	if tick.Timestamp2 != 1_700_000_000_000 {
		t.Errorf("timestamp2 = %d, want offset-corrected 1700000000000", tick.Timestamp2)
	}
	if store.TickBuffer(domain.VenueKraken).Len() != 1 {
		t.Errorf("expected 1 kraken tick, got %d", store.TickBuffer(domain.VenueKraken).Len())
	}

	snap := m.Snapshot()
	if snap.TicksStored != 2 || snap.ParseFailures != 2 {
		t.Errorf("metrics: stored=%d failures=%d", snap.TicksStored, snap.ParseFailures)
	}
}

func TestRouter_RunPreservesOrder(t *testing.T) {
	r, store := newTestRouter(&infra.Metrics{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	for i := 0; i < 5; i++ {
		r.Inbox() <- domain.ExchangeMessage{Sender: domain.VenueBinance, Asset: string(rune('a' + i)), Content: "ok"}
		r.Inbox() <- domain.ExchangeMessage{Sender: domain.VenueBinance, Content: "garbage"}
	}

	deadline := time.Now().Add(2 * time.Second)
	for store.TickBuffer(domain.VenueBinance).Len() < 5 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	entries := store.TickBuffer(domain.VenueBinance).Entries()
	if len(entries) != 5 {
		t.Fatalf("expected 5 ticks, got %d", len(entries))
	}
	for i, e := range entries {
		if e.Asset != string(rune('a'+i)) {
			t.Errorf("entry %d out of order: %s", i, e.Asset)
		}
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Run returned %v", err)
	}
}

func TestRouter_Timestamp2FloorsAtZero(t *testing.T) {
	r := NewRouter(1, nil, WithClockOffset(10_000), WithRouterClock(func() time.Time { return time.UnixMilli(5_000) }))
	if got := r.timestamp2(); got != 0 {
		t.Errorf("timestamp2 = %d, want 0", got)
	}
}
