package cli

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wesleyorama2/udpstress/internal/collector"
	"github.com/wesleyorama2/udpstress/internal/config"
	"github.com/wesleyorama2/udpstress/internal/logging"
	"github.com/wesleyorama2/udpstress/internal/metrics"
	"github.com/wesleyorama2/udpstress/internal/output"
	"github.com/wesleyorama2/udpstress/internal/stats"
)

type collectOptions struct {
	listen         string
	reportInterval config.Duration
	workers        int
	queueSize      int
	cost           config.Duration
	bufferSize     int
	drainTimeout   config.Duration
}

func newCollectCmd(g *globalOptions) *cobra.Command {
	opts := &collectOptions{
		listen:         config.DefaultListen,
		reportInterval: config.Duration(config.DefaultCollectorReportInterval),
		queueSize:      config.DefaultQueueSize,
		cost:           config.Duration(config.DefaultCost),
		bufferSize:     config.DefaultBufferSize,
		drainTimeout:   config.Duration(config.DefaultDrainTimeout),
	}

	cmd := &cobra.Command{
		Use:   "collect",
		Short: "Receive UDP datagrams and report throughput",
		Long: `Receive UDP datagrams until interrupted, spending a fixed simulated
processing cost on each one in a pool of workers.

Datagrams that arrive while every worker is busy and the queue is full are
counted as dropped.

  udpstress collect --listen 0.0.0.0:60002 --workers 4 --cost 50mcs`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.resolve(cmd, g)
			if err != nil {
				return err
			}
			return runCollect(cmd, g, cfg)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.listen, "listen", "l", opts.listen, "Local address as host:port")
	flags.Var(&opts.reportInterval, "report-interval", "Interval between progress reports")
	flags.IntVarP(&opts.workers, "workers", "w", 0, "Number of workers (default: one per CPU)")
	flags.IntVar(&opts.queueSize, "queue-size", opts.queueSize, "Datagrams that may wait for a worker")
	flags.Var(&opts.cost, "cost", "Simulated processing time per datagram")
	flags.IntVar(&opts.bufferSize, "buffer-size", opts.bufferSize, "Largest datagram read in full, in bytes")
	flags.Var(&opts.drainTimeout, "drain-timeout", "How long queued datagrams are still processed after stopping")

	return cmd
}

func (o *collectOptions) resolve(cmd *cobra.Command, g *globalOptions) (*config.CollectorConfig, error) {
	cfg := &config.CollectorConfig{}
	if g.configFile != "" {
		file, err := config.LoadConfig(g.configFile)
		if err != nil {
			return nil, fmt.Errorf("error loading config: %w", err)
		}
		if file.Collect != nil {
			cfg = file.Collect
		}
	}

	flags := cmd.Flags()
	if flags.Changed("listen") {
		cfg.Listen = o.listen
	}
	if flags.Changed("report-interval") {
		cfg.ReportInterval = o.reportInterval
	}
	if flags.Changed("workers") {
		cfg.Workers = o.workers
	}
	if flags.Changed("queue-size") {
		cfg.QueueSize = o.queueSize
	}
	if flags.Changed("cost") {
		cost := o.cost
		cfg.Cost = &cost
	}
	if flags.Changed("buffer-size") {
		cfg.BufferSize = o.bufferSize
	}
	if flags.Changed("drain-timeout") {
		cfg.DrainTimeout = o.drainTimeout
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runCollect(cmd *cobra.Command, g *globalOptions, cfg *config.CollectorConfig) error {
	format, err := g.outputFormat()
	if err != nil {
		return err
	}

	conn, err := collector.Listen(cfg.Listen)
	if err != nil {
		return err
	}
	defer conn.Close()

	engine := metrics.NewEngine()
	defer engine.Stop()

	c := collector.New(conn, engine,
		collector.WithWorkers(cfg.Workers),
		collector.WithQueueSize(cfg.QueueSize),
		collector.WithCost(cfg.Cost.Std()),
		collector.WithBufferSize(cfg.BufferSize),
		collector.WithDrainTimeout(cfg.DrainTimeout.Std()),
		collector.WithLogger(logging.Default()),
	)

	reportW, summaryW := streams(cmd, format)
	f := output.NewFormatter(g.verbose, !output.UseColor(reportW, g.noColor))

	addr := conn.LocalAddr().String()
	io.WriteString(reportW, f.FormatCollectHeader(output.CollectHeader{
		Listen:    addr,
		Workers:   c.Workers(),
		QueueSize: cfg.QueueSize,
		Cost:      cfg.Cost.Std(),
	}))

	reporter := output.NewReporter(reportW, f, output.RoleCollector, engine)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runErr := stats.WithPeriodic(ctx, c.Run, cfg.ReportInterval.Std(), reporter.Report)
	engine.Stop()

	if runErr != nil && !isInterrupt(runErr) {
		return fmt.Errorf("collect failed: %w", runErr)
	}

	snap := engine.GetSnapshot()
	summary := output.NewSummary(output.RoleCollector, addr, nil, snap)
	summary.SetIntervals(snap.StartTime, engine.GetTimeSeries())
	return writeSummary(summaryW, format, summary, f.FormatSummary(output.RoleCollector, snap))
}
