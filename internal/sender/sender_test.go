package sender

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wesleyorama2/udpstress/internal/batch"
	"github.com/wesleyorama2/udpstress/internal/logging"
	"github.com/wesleyorama2/udpstress/internal/metrics"
	"github.com/wesleyorama2/udpstress/internal/rate"
)

type recordingConn struct {
	mu      sync.Mutex
	written [][]byte
	failAt  map[int]bool
	calls   int
}

func (c *recordingConn) Write(b []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.calls++
	if c.failAt[c.calls] {
		return 0, errors.New("connection refused")
	}
	c.written = append(c.written, b)
	return len(b), nil
}

func (c *recordingConn) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.written)
}

func TestSender_SendsExactTotal(t *testing.T) {
	sched, err := rate.NewSchedule(rate.Delay(500 * time.Nanosecond))
	require.NoError(t, err)
	require.Equal(t, 2000, sched.BatchSize)

	pool := [][]byte{[]byte("a"), []byte("bb"), []byte("ccc")}
	full, tail := sched.Plan(4500)
	src := batch.TakeWithTail[[]byte](batch.New(pool, sched.BatchSize, true), full, tail)

	conn := &recordingConn{}
	engine := metrics.NewEngine()
	defer engine.Stop()

	s := New(conn, sched, src, engine, WithLogger(&logging.NopLogger{}))
	require.NoError(t, s.Run(context.Background()))

	assert.Equal(t, 4500, conn.count())
	assert.Equal(t, uint64(4500), engine.Datagrams())
	assert.Equal(t, int64(3), s.TickerStats().TotalTicks)
}

func TestSender_WriteErrorsAreCountedNotFatal(t *testing.T) {
	sched := rate.Compensate(time.Millisecond)
	src := batch.Take[[]byte](batch.New([][]byte{[]byte("x")}, 1, true), 5)

	conn := &recordingConn{failAt: map[int]bool{2: true, 4: true}}
	engine := metrics.NewEngine()
	defer engine.Stop()

	s := New(conn, sched, src, engine, WithLogger(&logging.NopLogger{}))
	require.NoError(t, s.Run(context.Background()))

	snap := engine.GetSnapshot()
	assert.Equal(t, uint64(3), snap.Datagrams)
	assert.Equal(t, uint64(2), snap.Failed)
	assert.Equal(t, 3, conn.count())
}

func TestSender_Cancel(t *testing.T) {
	sched := rate.Compensate(20 * time.Millisecond)
	src := batch.New([][]byte{[]byte("x")}, 1, true)

	conn := &recordingConn{}
	engine := metrics.NewEngine()
	defer engine.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := New(conn, sched, src, engine).Run(ctx)

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 200*time.Millisecond)
	// Ticks at 0, 20ms and 40ms.
	assert.InDelta(t, 3, conn.count(), 1)
}

func TestSender_PacesTicks(t *testing.T) {
	sched := rate.Compensate(10 * time.Millisecond)
	src := batch.Take[[]byte](batch.New([][]byte{[]byte("x")}, 1, true), 5)

	engine := metrics.NewEngine()
	defer engine.Stop()

	start := time.Now()
	require.NoError(t, New(&recordingConn{}, sched, src, engine).Run(context.Background()))

	// First tick is immediate, so five ticks span four periods.
	assert.GreaterOrEqual(t, time.Since(start), 38*time.Millisecond)
}

func TestSender_InvalidSchedule(t *testing.T) {
	engine := metrics.NewEngine()
	defer engine.Stop()

	src := batch.New([][]byte{[]byte("x")}, 1, false)
	err := New(&recordingConn{}, rate.Schedule{}, src, engine).Run(context.Background())
	assert.Error(t, err)
}

func TestSender_Loopback(t *testing.T) {
	server, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	defer server.Close()

	received := make(chan int, 100)
	go func() {
		buf := make([]byte, 65535)
		for {
			n, _, err := server.ReadFromUDP(buf)
			if err != nil {
				close(received)
				return
			}
			received <- n
		}
	}()

	conn, err := Dial(server.LocalAddr().String())
	require.NoError(t, err)
	defer conn.Close()

	sched := rate.Compensate(time.Millisecond)
	src := batch.Take[[]byte](batch.New([][]byte{[]byte("hello")}, 1, true), 10)

	engine := metrics.NewEngine()
	defer engine.Stop()

	require.NoError(t, New(conn, sched, src, engine).Run(context.Background()))
	assert.Equal(t, uint64(10), engine.Datagrams())

	got := 0
	timeout := time.After(2 * time.Second)
	for got < 10 {
		select {
		case n := <-received:
			assert.Equal(t, 5, n)
			got++
		case <-timeout:
			t.Fatalf("received %d of 10 datagrams", got)
		}
	}
}

func TestDial_InvalidAddress(t *testing.T) {
	_, err := Dial("not an address")
	assert.Error(t, err)
}
