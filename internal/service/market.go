package service

import (
	"fmt"
	"log/slog"
	"os"
	"sort"
	"sync"

	"arb_go/internal/domain"

	"github.com/goccy/go-json"
)

// MarketStore owns every tick and balance buffer of the process.
//
// Writers take the shared side of mu plus the target buffer's own lock, so
// writers to different buffers never wait on each other. Snapshot takes the
// exclusive side, which makes the three reads it performs one consistent cut.
type MarketStore struct {
	mu       sync.RWMutex
	ticks    map[domain.VenueID]*domain.Buffer[domain.Tick]
	balances map[domain.VenueID]*domain.Buffer[domain.Balance]
}

// Snapshot is the evaluator's view of the market at one instant.
type Snapshot struct {
	Fast    domain.Tick
	Slow    domain.Tick
	Balance domain.Balance
}

// NewMarketStore creates a tick and a balance buffer of the given capacity per venue.
func NewMarketStore(capacity int, venues ...domain.VenueID) *MarketStore {
	s := &MarketStore{
		ticks:    make(map[domain.VenueID]*domain.Buffer[domain.Tick], len(venues)),
		balances: make(map[domain.VenueID]*domain.Buffer[domain.Balance], len(venues)),
	}
	for _, v := range venues {
		s.ticks[v] = domain.NewBuffer[domain.Tick](capacity, v)
		s.balances[v] = domain.NewBuffer[domain.Balance](capacity, v)
	}
	return s
}

// TickBuffer returns the tick buffer of venue, or nil if the venue is not tracked.
func (s *MarketStore) TickBuffer(venue domain.VenueID) *domain.Buffer[domain.Tick] {
	return s.ticks[venue]
}

// BalanceBuffer returns the balance buffer of venue, or nil if the venue is not tracked.
func (s *MarketStore) BalanceBuffer(venue domain.VenueID) *domain.Buffer[domain.Balance] {
	return s.balances[venue]
}

// AppendTick stores t in its venue's buffer. Returns false for an untracked venue.
func (s *MarketStore) AppendTick(t domain.Tick) bool {
	buf, ok := s.ticks[t.Exchange]
	if !ok {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return buf.Add(t)
}

// AppendBalance stores b in its venue's buffer. Returns false for an untracked venue.
func (s *MarketStore) AppendBalance(b domain.Balance) bool {
	buf, ok := s.balances[b.Exchange]
	if !ok {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return buf.Add(b)
}

// Snapshot returns the latest fast tick, slow tick and balance as one consistent cut.
// An empty or untracked buffer yields ErrBufferEmpty naming it.
func (s *MarketStore) Snapshot(fast, slow, balanceVenue domain.VenueID) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var snap Snapshot
	var ok bool

	if snap.Fast, ok = latest(s.ticks[fast]); !ok {
		return Snapshot{}, fmt.Errorf("%w: %s ticks", domain.ErrBufferEmpty, fast)
	}
	if snap.Slow, ok = latest(s.ticks[slow]); !ok {
		return Snapshot{}, fmt.Errorf("%w: %s ticks", domain.ErrBufferEmpty, slow)
	}
	if snap.Balance, ok = latest(s.balances[balanceVenue]); !ok {
		return Snapshot{}, fmt.Errorf("%w: %s balances", domain.ErrBufferEmpty, balanceVenue)
	}
	return snap, nil
}

func latest[T domain.Entry](b *domain.Buffer[T]) (T, bool) {
	if b == nil {
		var zero T
		return zero, false
	}
	return b.Latest()
}

// DumpState writes every buffer to filename as JSON (for post-mortem).
func (s *MarketStore) DumpState(filename string) error {
	slog.Info("Dumping market state...", slog.String("file", filename))

	s.mu.Lock()
	data := struct {
		Ticks    map[domain.VenueID]*domain.Buffer[domain.Tick]    `json:"ticks"`
		Balances map[domain.VenueID]*domain.Buffer[domain.Balance] `json:"balances"`
	}{
		Ticks:    s.ticks,
		Balances: s.balances,
	}
	b, err := json.MarshalIndent(data, "", "  ")
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	if err := os.WriteFile(filename, b, 0644); err != nil {
		return fmt.Errorf("failed to write state dump: %w", err)
	}
	return nil
}

// Venues returns the tracked venues in name order.
func (s *MarketStore) Venues() []domain.VenueID {
	out := make([]domain.VenueID, 0, len(s.ticks))
	for v := range s.ticks {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
