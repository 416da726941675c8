package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"arb_go/internal/domain"
	"arb_go/internal/infra"

	"github.com/cenkalti/backoff/v5"
	"github.com/gorilla/websocket"
)

const (
	handshakeTimeout = 10 * time.Second
	pingInterval     = 20 * time.Second
	readTimeout      = 60 * time.Second
	writeTimeout     = 5 * time.Second
)

// Stream reads one venue's market-data feed and forwards every text frame to the router.
type Stream struct {
	source domain.MarketDataSource
	venue  domain.VenueID
	asset  string
	out    chan<- domain.ExchangeMessage

	reconnect  bool
	newBackOff func() backoff.BackOff

	conn      *websocket.Conn
	mu        sync.RWMutex
	writeMu   sync.Mutex
	connected bool

	metrics *infra.Metrics
	logger  *slog.Logger
}

// StreamOption customizes a Stream.
type StreamOption func(*Stream)

// WithReconnect enables or disables supervised reconnects (enabled by default).
func WithReconnect(enabled bool) StreamOption {
	return func(s *Stream) { s.reconnect = enabled }
}

// WithBackOff replaces the reconnect policy.
func WithBackOff(newBackOff func() backoff.BackOff) StreamOption {
	return func(s *Stream) { s.newBackOff = newBackOff }
}

// WithStreamMetrics sets the metrics sink (GlobalMetrics by default).
func WithStreamMetrics(m *infra.Metrics) StreamOption {
	return func(s *Stream) { s.metrics = m }
}

// NewStream factory
func NewStream(source domain.MarketDataSource, venue domain.VenueID, asset string, out chan<- domain.ExchangeMessage, opts ...StreamOption) *Stream {
	s := &Stream{
		source:     source,
		venue:      venue,
		asset:      asset,
		out:        out,
		reconnect:  true,
		newBackOff: func() backoff.BackOff { return infra.NewReconnectBackOff() },
		metrics:    infra.GlobalMetrics,
		logger:     slog.Default().With("module", "stream", "venue", string(venue)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Connected reports whether a subscribed connection is open.
func (s *Stream) Connected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connected
}

// Run connects, subscribes and forwards frames until ctx is done.
// With reconnect disabled the first connection loss ends Run with its error.
// Errors that are not retriable (bad config, rejected handshake) end Run either way.
func (s *Stream) Run(ctx context.Context) error {
	b := s.newBackOff()
	for {
		err := s.session(ctx, b)
		if ctx.Err() != nil {
			s.logger.Info("Stream stopped")
			return nil
		}
		if !domain.IsRetriable(err) {
			return err
		}
		if !s.reconnect {
			return fmt.Errorf("%s stream closed: %w", s.venue, err)
		}

		delay := b.NextBackOff()
		if delay == backoff.Stop {
			return fmt.Errorf("%s stream gave up: %w", s.venue, err)
		}
		s.metrics.RecordReconnect()
		s.logger.Warn("Stream connection lost, reconnecting",
			slog.Any("error", err),
			slog.Duration("delay", delay))

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			s.logger.Info("Stream stopped")
			return nil
		case <-timer.C:
		}
	}
}

// session runs one connection from dial to close.
func (s *Stream) session(ctx context.Context, b backoff.BackOff) error {
	sub, err := s.source.SubscriptionMessage(s.asset)
	if err != nil {
		return err
	}

	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	conn, resp, err := dialer.DialContext(ctx, s.source.StreamURL(), nil)
	if err != nil {
		if resp != nil && isPermanentStatus(resp.StatusCode) {
			return domain.NewFatalNetworkError("dial", fmt.Errorf("status %d: %w", resp.StatusCode, err))
		}
		return domain.NewNetworkError("dial", err)
	}

	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()
	s.metrics.IncrementConnections()
	defer s.closeConnection(conn)

	if err := s.threadSafeWrite(websocket.TextMessage, sub); err != nil {
		return domain.NewNetworkError("subscribe", err)
	}

	s.mu.Lock()
	s.connected = true
	s.mu.Unlock()
	b.Reset()
	s.logger.Info("Stream connected", slog.String("url", s.source.StreamURL()), slog.String("asset", s.asset))

	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readTimeout))
	})

	sessionCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go s.pingLoop(sessionCtx)
	// Unblocks ReadMessage on shutdown.
	go func() {
		<-sessionCtx.Done()
		s.closeConnection(conn)
	}()

	return s.readLoop(sessionCtx, conn)
}

func (s *Stream) readLoop(ctx context.Context, conn *websocket.Conn) error {
	for {
		conn.SetReadDeadline(time.Now().Add(readTimeout))
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			return domain.NewNetworkError("read", err)
		}
		if msgType != websocket.TextMessage {
			continue
		}
		s.metrics.RecordFrame()

		msg := domain.ExchangeMessage{Sender: s.venue, Asset: s.asset, Content: string(data)}
		// Blocks while the router is behind.
		select {
		case s.out <- msg:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (s *Stream) pingLoop(ctx context.Context) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.threadSafeWrite(websocket.PingMessage, nil); err != nil {
				s.logger.Debug("Ping failed", slog.Any("error", err))
			}
		}
	}
}

var errNoConn = errors.New("no conn")

func (s *Stream) threadSafeWrite(msgType int, data []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.conn == nil {
		return errNoConn
	}
	s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return s.conn.WriteMessage(msgType, data)
}

// closeConnection closes conn and clears it only if it is still the current one,
// so a late call from a finished session never touches its successor.
func (s *Stream) closeConnection(conn *websocket.Conn) {
	conn.Close()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == conn {
		s.conn = nil
		s.connected = false
		s.metrics.DecrementConnections()
	}
}

// isPermanentStatus reports handshake rejections that a retry cannot fix.
func isPermanentStatus(code int) bool {
	switch code {
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
		return true
	}
	return false
}
