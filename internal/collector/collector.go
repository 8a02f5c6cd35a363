// Package collector receives datagrams and simulates a fixed processing cost
// for each of them on a pool of workers.
package collector

import (
	"context"
	"errors"
	"fmt"
	"net"
	"runtime"
	"sync"
	"time"

	"github.com/go-log/log"

	"github.com/wesleyorama2/udpstress/internal/logging"
	"github.com/wesleyorama2/udpstress/internal/metrics"
)

// DefaultAddr is where the collector listens when no address is given.
const DefaultAddr = "127.0.0.1:60002"

const (
	defaultQueueSize    = 65536
	defaultCost         = 33 * time.Microsecond
	defaultBufferSize   = 65535
	defaultDrainTimeout = 5 * time.Second
)

// Conn is the part of a packet socket the collector reads from.
type Conn interface {
	ReadFrom(p []byte) (n int, addr net.Addr, err error)
	Close() error
}

type datagram struct {
	size     int
	received time.Time
}

// Collector reads datagrams from a socket and hands them to a bounded worker
// pool. The reader never waits for the pool: a datagram that finds the queue
// full is counted as dropped.
type Collector struct {
	conn   Conn
	engine *metrics.Engine
	logger log.Logger

	workers      int
	queueSize    int
	cost         time.Duration
	bufferSize   int
	drainTimeout time.Duration
}

// Option configures a Collector.
type Option func(*Collector)

// WithWorkers sets the number of workers. Defaults to runtime.NumCPU().
func WithWorkers(n int) Option {
	return func(c *Collector) {
		if n > 0 {
			c.workers = n
		}
	}
}

// WithQueueSize sets how many datagrams may wait for a worker.
func WithQueueSize(n int) Option {
	return func(c *Collector) {
		if n > 0 {
			c.queueSize = n
		}
	}
}

// WithCost sets the simulated processing time per datagram. Zero disables
// the simulation.
func WithCost(d time.Duration) Option {
	return func(c *Collector) {
		if d >= 0 {
			c.cost = d
		}
	}
}

// WithBufferSize sets the receive buffer size, the largest datagram read in
// full.
func WithBufferSize(n int) Option {
	return func(c *Collector) {
		if n > 0 {
			c.bufferSize = n
		}
	}
}

// WithDrainTimeout bounds how long Run waits for queued datagrams after the
// socket is closed.
func WithDrainTimeout(d time.Duration) Option {
	return func(c *Collector) {
		if d > 0 {
			c.drainTimeout = d
		}
	}
}

// WithLogger sets the logger receive errors are reported to.
func WithLogger(l log.Logger) Option {
	return func(c *Collector) {
		c.logger = l
	}
}

// New creates a collector reading from conn.
func New(conn Conn, engine *metrics.Engine, opts ...Option) *Collector {
	c := &Collector{
		conn:         conn,
		engine:       engine,
		workers:      runtime.NumCPU(),
		queueSize:    defaultQueueSize,
		cost:         defaultCost,
		bufferSize:   defaultBufferSize,
		drainTimeout: defaultDrainTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = logging.Default()
	}
	return c
}

// Workers returns the size of the worker pool.
func (c *Collector) Workers() int {
	return c.workers
}

// Run receives until ctx is done, then closes the socket and waits for the
// workers to finish what is queued. Cancellation is the normal way to stop a
// collector and returns nil. If the socket is closed by someone else Run
// returns the read error.
func (c *Collector) Run(ctx context.Context) error {
	queue := make(chan datagram, c.queueSize)

	var wg sync.WaitGroup
	for i := 0; i < c.workers; i++ {
		wg.Add(1)
		go c.worker(&wg, queue)
	}

	stop := context.AfterFunc(ctx, func() {
		c.conn.Close()
	})
	defer stop()

	c.engine.SetPhase(metrics.PhaseRunning)

	buf := make([]byte, c.bufferSize)
	var runErr error
	for {
		n, addr, err := c.conn.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			if errors.Is(err, net.ErrClosed) {
				runErr = fmt.Errorf("socket closed: %w", err)
				break
			}
			c.engine.RecordFailure()
			c.logger.Logf("[collect] %s", err)
			continue
		}

		if logging.Debug() {
			c.logger.Logf("[collect] %s %d bytes", addr, n)
		}

		select {
		case queue <- datagram{size: n, received: time.Now()}:
		default:
			c.engine.RecordDrop()
		}
	}

	close(queue)
	c.drain(&wg)
	return runErr
}

func (c *Collector) worker(wg *sync.WaitGroup, queue <-chan datagram) {
	defer wg.Done()

	for d := range queue {
		spin(c.cost)
		c.engine.RecordDatagram(time.Since(d.received), d.size)
	}
}

// drain waits for the workers, giving up after the drain timeout.
func (c *Collector) drain(wg *sync.WaitGroup) {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	timer := time.NewTimer(c.drainTimeout)
	defer timer.Stop()

	select {
	case <-done:
	case <-timer.C:
		c.logger.Logf("[collect] workers still busy after %v, not waiting", c.drainTimeout)
	}
}

// spin busy-waits for d.
func spin(d time.Duration) {
	if d <= 0 {
		return
	}
	start := time.Now()
	for time.Since(start) < d {
	}
}

// Listen binds a UDP socket on addr.
func Listen(addr string) (*net.UDPConn, error) {
	laddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", addr, err)
	}
	conn, err := net.ListenUDP("udp", laddr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return conn, nil
}
