package ingestion

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"solana-dex-bot/internal/observability"
)

// WSConfig configures the websocket feed source.
type WSConfig struct {
	// URL is the feed endpoint (ws:// or wss://).
	URL string
	// ReconnectDelay is initial delay before reconnect attempt.
	ReconnectDelay time.Duration
	// MaxReconnectDelay is maximum delay between reconnect attempts.
	MaxReconnectDelay time.Duration
	// PingInterval is interval for sending ping frames.
	PingInterval time.Duration
	// ReadTimeout is how long the connection may stay silent, pongs included.
	ReadTimeout time.Duration
	// WriteTimeout is timeout for writing control frames.
	WriteTimeout time.Duration
	// HandshakeTimeout bounds the dial.
	HandshakeTimeout time.Duration
}

// DefaultWSConfig returns default websocket configuration.
func DefaultWSConfig(url string) WSConfig {
	return WSConfig{
		URL:               url,
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		PingInterval:      30 * time.Second,
		ReadTimeout:       90 * time.Second,
		WriteTimeout:      10 * time.Second,
		HandshakeTimeout:  10 * time.Second,
	}
}

// WSSource reads text messages from a websocket feed and reconnects with
// exponential backoff until its context is canceled.
type WSSource struct {
	cfg     WSConfig
	logger  *zap.Logger
	metrics *observability.Metrics
	now     func() time.Time
}

// NewWSSource creates a websocket source.
func NewWSSource(cfg WSConfig, logger *zap.Logger, metrics *observability.Metrics) *WSSource {
	def := DefaultWSConfig(cfg.URL)
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = def.ReconnectDelay
	}
	if cfg.MaxReconnectDelay <= 0 {
		cfg.MaxReconnectDelay = def.MaxReconnectDelay
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = def.PingInterval
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 3 * cfg.PingInterval
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = def.HandshakeTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WSSource{
		cfg:     cfg,
		logger:  logger.Named("feed"),
		metrics: metrics,
		now:     time.Now,
	}
}

// Run delivers messages to sink until ctx is canceled. It only returns
// ctx.Err(); connection failures are retried.
func (s *WSSource) Run(ctx context.Context, sink Sink) error {
	delay := s.cfg.ReconnectDelay
	first := true

	for {
		if !first {
			s.metrics.RecordReconnect()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
		first = false

		conn, err := s.dial(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.logger.Warn("feed dial failed", zap.Duration("retry_in", delay), zap.Error(err))
			delay = s.backoff(delay)
			continue
		}

		s.logger.Info("feed connected", zap.String("url", s.cfg.URL))
		received, err := s.serve(ctx, conn, sink)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		// Reset delay once a connection delivered data
		if received > 0 {
			delay = s.cfg.ReconnectDelay
		} else {
			delay = s.backoff(delay)
		}
		s.logger.Warn("feed disconnected",
			zap.Int("received", received),
			zap.Duration("retry_in", delay),
			zap.Error(err),
		)
	}
}

func (s *WSSource) backoff(d time.Duration) time.Duration {
	d *= 2
	if d > s.cfg.MaxReconnectDelay {
		d = s.cfg.MaxReconnectDelay
	}
	return d
}

func (s *WSSource) dial(ctx context.Context) (*websocket.Conn, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: s.cfg.HandshakeTimeout,
	}
	conn, _, err := dialer.DialContext(ctx, s.cfg.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("websocket dial: %w", err)
	}
	return conn, nil
}

// serve reads from conn until it fails or ctx is canceled.
func (s *WSSource) serve(ctx context.Context, conn *websocket.Conn, sink Sink) (int, error) {
	var writeMu sync.Mutex
	done := make(chan struct{})
	var wg sync.WaitGroup

	conn.SetReadDeadline(s.now().Add(s.cfg.ReadTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(s.now().Add(s.cfg.ReadTimeout))
	})

	// Close the connection on shutdown to unblock ReadMessage
	wg.Add(1)
	go func() {
		defer wg.Done()
		select {
		case <-ctx.Done():
			writeMu.Lock()
			conn.SetWriteDeadline(s.now().Add(s.cfg.WriteTimeout))
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			writeMu.Unlock()
			conn.Close()
		case <-done:
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		s.pingLoop(conn, &writeMu, done)
	}()

	received := 0
	var readErr error
	for {
		typ, data, err := conn.ReadMessage()
		if err != nil {
			readErr = err
			break
		}
		if typ != websocket.TextMessage && typ != websocket.BinaryMessage {
			continue
		}
		conn.SetReadDeadline(s.now().Add(s.cfg.ReadTimeout))
		received++
		sink(Message{Data: data, RecvUs: s.now().UnixMicro()})
	}

	close(done)
	conn.Close()
	wg.Wait()

	if websocket.IsCloseError(readErr, websocket.CloseNormalClosure) {
		readErr = errors.New("closed by server")
	}
	return received, readErr
}

// pingLoop sends periodic ping frames to keep connection alive.
func (s *WSSource) pingLoop(conn *websocket.Conn, writeMu *sync.Mutex, done <-chan struct{}) {
	ticker := time.NewTicker(s.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			writeMu.Lock()
			conn.SetWriteDeadline(s.now().Add(s.cfg.WriteTimeout))
			err := conn.WriteMessage(websocket.PingMessage, nil)
			writeMu.Unlock()
			if err != nil {
				// Reader notices the dead connection
				return
			}
		}
	}
}
