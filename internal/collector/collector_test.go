package collector

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wesleyorama2/udpstress/internal/logging"
	"github.com/wesleyorama2/udpstress/internal/metrics"
)

func listenLoopback(t *testing.T) *net.UDPConn {
	t.Helper()
	conn, err := Listen("127.0.0.1:0")
	require.NoError(t, err)
	return conn
}

func send(t *testing.T, addr net.Addr, n int, payload []byte) {
	t.Helper()
	client, err := net.Dial("udp", addr.String())
	require.NoError(t, err)
	defer client.Close()

	for i := 0; i < n; i++ {
		_, err := client.Write(payload)
		require.NoError(t, err)
	}
}

func TestCollector_CountsReceived(t *testing.T) {
	conn := listenLoopback(t)
	engine := metrics.NewEngine()
	defer engine.Stop()

	c := New(conn, engine, WithWorkers(4), WithCost(time.Microsecond), WithLogger(&logging.NopLogger{}))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	send(t, conn.LocalAddr(), 50, []byte("hello"))

	require.Eventually(t, func() bool {
		return engine.Datagrams() == 50
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not return after cancel")
	}

	snap := engine.GetSnapshot()
	assert.Equal(t, uint64(250), snap.Bytes)
	assert.Equal(t, uint64(0), snap.Dropped)
}

func TestCollector_SimulatesCost(t *testing.T) {
	conn := listenLoopback(t)
	engine := metrics.NewEngine()
	defer engine.Stop()

	c := New(conn, engine, WithWorkers(1), WithCost(2*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Run(ctx)

	send(t, conn.LocalAddr(), 3, []byte("x"))

	require.Eventually(t, func() bool {
		return engine.Datagrams() == 3
	}, 2*time.Second, time.Millisecond)

	assert.GreaterOrEqual(t, engine.GetSnapshot().Cost.Max, 2*time.Millisecond)
}

// blockingConn delivers a fixed number of datagrams as fast as possible and
// then blocks until closed.
type blockingConn struct {
	remaining int
	closed    chan struct{}
	once      sync.Once
}

func newBlockingConn(n int) *blockingConn {
	return &blockingConn{remaining: n, closed: make(chan struct{})}
}

func (c *blockingConn) ReadFrom(p []byte) (int, net.Addr, error) {
	if c.remaining > 0 {
		c.remaining--
		return copy(p, "data"), &net.UDPAddr{}, nil
	}
	<-c.closed
	return 0, nil, net.ErrClosed
}

func (c *blockingConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func TestCollector_DropsWhenQueueFull(t *testing.T) {
	conn := newBlockingConn(100)
	engine := metrics.NewEngine()
	defer engine.Stop()

	// One slow worker and room for two queued datagrams.
	c := New(conn, engine, WithWorkers(1), WithQueueSize(2), WithCost(20*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	require.Eventually(t, func() bool {
		snap := engine.GetSnapshot()
		return snap.Dropped > 0
	}, time.Second, time.Millisecond)

	cancel()
	require.NoError(t, <-done)

	snap := engine.GetSnapshot()
	assert.Equal(t, uint64(100), snap.Datagrams+snap.Dropped)
	assert.LessOrEqual(t, snap.Datagrams, uint64(3))
}

type flakyConn struct {
	*blockingConn
	errs int
}

func (c *flakyConn) ReadFrom(p []byte) (int, net.Addr, error) {
	if c.errs > 0 {
		c.errs--
		return 0, nil, errors.New("connection refused")
	}
	return c.blockingConn.ReadFrom(p)
}

func TestCollector_ReceiveErrorsAreSkipped(t *testing.T) {
	conn := &flakyConn{blockingConn: newBlockingConn(5), errs: 3}
	engine := metrics.NewEngine()
	defer engine.Stop()

	c := New(conn, engine, WithCost(0), WithLogger(&logging.NopLogger{}))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	require.Eventually(t, func() bool {
		return engine.Datagrams() == 5
	}, time.Second, time.Millisecond)

	cancel()
	require.NoError(t, <-done)
	assert.Equal(t, uint64(3), engine.GetSnapshot().Failed)
}

func TestCollector_ClosedExternally(t *testing.T) {
	conn := newBlockingConn(0)
	engine := metrics.NewEngine()
	defer engine.Stop()

	done := make(chan error, 1)
	go func() { done <- New(conn, engine).Run(context.Background()) }()

	conn.Close()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, net.ErrClosed)
	case <-time.After(time.Second):
		t.Fatal("Run() did not return after the socket was closed")
	}
}

func TestNew_Defaults(t *testing.T) {
	engine := metrics.NewEngine()
	defer engine.Stop()

	c := New(newBlockingConn(0), engine, WithWorkers(0), WithQueueSize(-1), WithCost(-time.Second))

	assert.Greater(t, c.workers, 0)
	assert.Equal(t, defaultQueueSize, c.queueSize)
	assert.Equal(t, defaultCost, c.cost)
	assert.Equal(t, defaultBufferSize, c.bufferSize)
}

func TestSpin(t *testing.T) {
	start := time.Now()
	spin(500 * time.Microsecond)
	assert.GreaterOrEqual(t, time.Since(start), 500*time.Microsecond)

	start = time.Now()
	spin(0)
	assert.Less(t, time.Since(start), time.Millisecond)
}

func TestListen_InvalidAddress(t *testing.T) {
	_, err := Listen("256.0.0.1:99999")
	assert.Error(t, err)
}

func TestCollector_BufferSizeTruncates(t *testing.T) {
	conn := listenLoopback(t)
	engine := metrics.NewEngine()
	defer engine.Stop()

	c := New(conn, engine, WithBufferSize(4), WithCost(0), WithLogger(&logging.NopLogger{}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Run(ctx)

	send(t, conn.LocalAddr(), 3, []byte("hello world"))

	require.Eventually(t, func() bool {
		return engine.Datagrams() == 3
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, uint64(12), engine.GetSnapshot().Bytes)
}

func TestCollector_DrainTimeout(t *testing.T) {
	conn := listenLoopback(t)
	engine := metrics.NewEngine()
	defer engine.Stop()

	c := New(conn, engine,
		WithWorkers(1),
		WithCost(300*time.Millisecond),
		WithDrainTimeout(20*time.Millisecond),
		WithLogger(&logging.NopLogger{}),
	)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	send(t, conn.LocalAddr(), 3, []byte("x"))
	time.Sleep(20 * time.Millisecond)

	start := time.Now()
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not return after cancel")
	}
	assert.Less(t, time.Since(start), 250*time.Millisecond, "Run() waited for the queue instead of giving up")
}
