// Package sender drives datagrams onto a socket at a scheduled rate.
package sender

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/go-log/log"

	"github.com/wesleyorama2/udpstress/internal/batch"
	"github.com/wesleyorama2/udpstress/internal/logging"
	"github.com/wesleyorama2/udpstress/internal/metrics"
	"github.com/wesleyorama2/udpstress/internal/rate"
)

// Conn is the part of a connected socket the sender writes to.
type Conn interface {
	Write(b []byte) (int, error)
}

// Sender sends one batch per tick of its schedule until the source ends or
// the context is cancelled.
type Sender struct {
	conn   Conn
	sched  rate.Schedule
	source batch.Source[[]byte]
	engine *metrics.Engine
	logger log.Logger
	ticker *rate.Ticker
}

// Option configures a Sender.
type Option func(*Sender)

// WithLogger sets the logger send errors are reported to.
func WithLogger(l log.Logger) Option {
	return func(s *Sender) {
		s.logger = l
	}
}

// New creates a sender. source is drawn once per tick and every element of
// each batch is written to conn.
func New(conn Conn, sched rate.Schedule, source batch.Source[[]byte], engine *metrics.Engine, opts ...Option) *Sender {
	s := &Sender{
		conn:   conn,
		sched:  sched,
		source: source,
		engine: engine,
		ticker: rate.NewTicker(sched.TickPeriod),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logging.Default()
	}
	return s
}

// Run sends until the source is exhausted, returning nil, or until ctx is
// done, returning ctx.Err(). Write errors are logged and counted, never
// returned.
func (s *Sender) Run(ctx context.Context) error {
	if s.sched.TickPeriod <= 0 || s.sched.BatchSize <= 0 {
		return fmt.Errorf("invalid schedule: %d datagrams every %v", s.sched.BatchSize, s.sched.TickPeriod)
	}

	s.ticker.Reset()
	s.engine.SetPhase(metrics.PhaseRunning)

	for {
		// Draw ahead of the tick so an exhausted source ends the run without
		// waiting out one more period.
		datagrams, ok := s.source.Next()
		if !ok {
			return nil
		}

		if err := s.ticker.Wait(ctx); err != nil {
			return err
		}

		for _, data := range datagrams {
			s.send(data)
		}
	}
}

func (s *Sender) send(data []byte) {
	start := time.Now()
	n, err := s.conn.Write(data)
	if err != nil {
		s.engine.RecordFailure()
		s.logger.Logf("[send] %s", err)
		return
	}
	s.engine.RecordDatagram(time.Since(start), n)
	if logging.Debug() {
		s.logger.Logf("[send] %d bytes", n)
	}
}

// TickerStats returns the pacing statistics of the current or last Run.
func (s *Sender) TickerStats() rate.TickerStats {
	return s.ticker.Stats()
}

// Dial opens a UDP socket connected to addr.
func Dial(addr string) (*net.UDPConn, error) {
	raddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", addr, err)
	}
	conn, err := net.DialUDP("udp", nil, raddr)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", addr, err)
	}
	return conn, nil
}
