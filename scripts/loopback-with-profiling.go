//go:build ignore

// Loopback stress run with built-in profiling support
// This program runs a collector and a sender in one process over the loopback
// interface and watches memory and goroutines while they run.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"runtime"
	"runtime/pprof"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/wesleyorama2/udpstress/internal/batch"
	"github.com/wesleyorama2/udpstress/internal/collector"
	"github.com/wesleyorama2/udpstress/internal/metrics"
	"github.com/wesleyorama2/udpstress/internal/payload"
	"github.com/wesleyorama2/udpstress/internal/rate"
	"github.com/wesleyorama2/udpstress/internal/sender"
)

func main() {
	cpuProfile := flag.String("cpuprofile", "", "write cpu profile to file")
	memProfile := flag.String("memprofile", "", "write memory profile to file")
	monitorInterval := flag.Duration("monitor-interval", time.Second, "interval for monitoring stats")
	delay := flag.Duration("delay", 10*time.Microsecond, "delay between datagrams")
	total := flag.Uint64("total", 1_000_000, "datagrams to send")
	workers := flag.Int("workers", runtime.NumCPU(), "collector workers")
	flag.Parse()

	fmt.Println("========================================")
	fmt.Println("Loopback Stress Run with Profiling")
	fmt.Println("========================================")
	fmt.Println()

	if *cpuProfile != "" {
		f, err := os.Create(*cpuProfile)
		if err != nil {
			log.Fatal("could not create CPU profile: ", err)
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			log.Fatal("could not start CPU profile: ", err)
		}
		defer pprof.StopCPUProfile()
		fmt.Printf("✓ CPU profiling enabled: %s\n", *cpuProfile)
	}

	listener, err := collector.Listen("127.0.0.1:0")
	if err != nil {
		log.Fatal("could not listen: ", err)
	}
	addr := listener.LocalAddr().String()

	received := metrics.NewEngine()
	sent := metrics.NewEngine()

	ctx, cancel := context.WithCancel(context.Background())
	collectDone := make(chan error, 1)
	go func() {
		collectDone <- collector.New(listener, received, collector.WithWorkers(*workers)).Run(ctx)
	}()

	stopMonitor := make(chan struct{})
	monitorDone := make(chan struct{})
	go func() {
		defer close(monitorDone)
		ticker := time.NewTicker(*monitorInterval)
		defer ticker.Stop()

		fmt.Println("Time\t\tGoroutines\tMemAlloc\tSent\t\tReceived\tDropped")
		for {
			select {
			case <-ticker.C:
				var m runtime.MemStats
				runtime.ReadMemStats(&m)
				r := received.GetSnapshot()
				fmt.Printf("%s\t%d\t\t%s\t\t%s\t\t%s\t\t%s\n",
					time.Now().Format("15:04:05"),
					runtime.NumGoroutine(),
					humanize.Bytes(m.Alloc),
					humanize.Comma(int64(sent.Datagrams())),
					humanize.Comma(int64(r.Datagrams)),
					humanize.Comma(int64(r.Dropped)),
				)
			case <-stopMonitor:
				return
			}
		}
	}()

	initialGoroutines := runtime.NumGoroutine()

	sched := rate.Compensate(*delay)
	conn, err := sender.Dial(addr)
	if err != nil {
		log.Fatal("could not dial: ", err)
	}
	pool := payload.Defaults(payload.DefaultSize)
	if _, ok := batch.ExpandedLen(len(pool), sched.BatchSize); !ok {
		log.Fatalf("delay %v needs batches of %d, too many to cycle %d samples through", *delay, sched.BatchSize, len(pool))
	}
	batches, tail := sched.Plan(*total)
	source := batch.TakeWithTail[[]byte](batch.New(pool, sched.BatchSize, true), batches, tail)

	fmt.Printf("Sending %s datagrams to %s, batch size %d every %s\n\n",
		humanize.Comma(int64(*total)), addr, sched.BatchSize, sched.TickPeriod)

	startTime := time.Now()
	sendErr := sender.New(conn, sched, source, sent).Run(ctx)
	elapsed := time.Since(startTime)
	conn.Close()

	// Let the collector catch up before stopping it.
	time.Sleep(500 * time.Millisecond)
	cancel()
	collectErr := <-collectDone

	close(stopMonitor)
	<-monitorDone
	sent.Stop()
	received.Stop()

	s, r := sent.GetSnapshot(), received.GetSnapshot()

	fmt.Println()
	fmt.Println("========================================")
	fmt.Println("Run Completed")
	fmt.Println("========================================")
	fmt.Printf("Duration: %s\n", elapsed)
	fmt.Printf("Sent:     %s (%.1f dps)\n", humanize.Comma(int64(s.Datagrams)), s.DPS)
	fmt.Printf("Received: %s, dropped %s\n", humanize.Comma(int64(r.Datagrams)), humanize.Comma(int64(r.Dropped)))
	fmt.Printf("Lost:     %s\n", humanize.Comma(int64(s.Datagrams)-int64(r.Datagrams)-int64(r.Dropped)))
	fmt.Printf("Queue wait + cost P99: %s\n", r.Cost.P99)
	fmt.Println()

	finalGoroutines := runtime.NumGoroutine()
	if finalGoroutines > initialGoroutines+5 {
		fmt.Printf("⚠ WARNING: Possible goroutine leak detected! (+%d goroutines)\n", finalGoroutines-initialGoroutines)
	} else {
		fmt.Println("✓ No goroutine leaks detected")
	}

	if *memProfile != "" {
		f, err := os.Create(*memProfile)
		if err != nil {
			log.Fatal("could not create memory profile: ", err)
		}
		defer f.Close()
		runtime.GC() // get up-to-date statistics
		if err := pprof.WriteHeapProfile(f); err != nil {
			log.Fatal("could not write memory profile: ", err)
		}
		fmt.Printf("✓ Memory profile written to: %s\n", *memProfile)
	}

	if sendErr != nil || collectErr != nil {
		fmt.Printf("✗ Run failed: send: %v, collect: %v\n", sendErr, collectErr)
		os.Exit(1)
	}
	fmt.Println("✓ Run completed successfully!")
}
