package cli

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wesleyorama2/udpstress/internal/batch"
	"github.com/wesleyorama2/udpstress/internal/config"
	"github.com/wesleyorama2/udpstress/internal/logging"
	"github.com/wesleyorama2/udpstress/internal/metrics"
	"github.com/wesleyorama2/udpstress/internal/output"
	"github.com/wesleyorama2/udpstress/internal/payload"
	"github.com/wesleyorama2/udpstress/internal/rate"
	"github.com/wesleyorama2/udpstress/internal/sender"
	"github.com/wesleyorama2/udpstress/internal/stats"
)

// sendOptions holds the send flags before they are merged into a
// config.SenderConfig.
type sendOptions struct {
	url            string
	delay          config.Duration
	frequency      uint64
	totalAmount    config.Amount
	payloadSize    int
	samples        string
	samplesPath    string
	reportInterval config.Duration
}

func newSendCmd(g *globalOptions) *cobra.Command {
	opts := &sendOptions{
		payloadSize:    config.DefaultPayloadSize,
		reportInterval: config.Duration(config.DefaultSenderReportInterval),
	}

	cmd := &cobra.Command{
		Use:   "send",
		Short: "Send UDP datagrams at a fixed rate",
		Long: `Send a fixed number of UDP datagrams to a receiver at a fixed rate.

The rate is given either as the delay between two datagrams or as a
frequency in datagrams per second:

  udpstress send --url 127.0.0.1:60002 --delay 500ns --total-amount 1M
  udpstress send --url 127.0.0.1:60002 --frequency 2000 --total-amount 500K

Durations take a unit suffix: ns, mcs, ms, s, m, h, d. A bare number is
seconds. Amounts take K, M, G, T, P or E.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.resolve(cmd, g)
			if err != nil {
				return err
			}
			return runSend(cmd, g, cfg)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.url, "url", "u", "", "Receiver address as host:port")
	flags.VarP(&opts.delay, "delay", "d", "Delay between datagrams (e.g. 1ms, 500ns, 3mcs)")
	flags.Uint64VarP(&opts.frequency, "frequency", "f", 0, "Datagrams per second")
	flags.VarP(&opts.totalAmount, "total-amount", "n", "Number of datagrams to send (e.g. 1M, 500K)")
	flags.IntVar(&opts.payloadSize, "payload-size", opts.payloadSize, "Size samples are bloated to, in bytes")
	flags.StringVar(&opts.samples, "samples", "", "Read samples from a text file (one per line) or a JSON file")
	flags.StringVar(&opts.samplesPath, "samples-path", "", "Path selecting samples in a JSON samples file (e.g. $.messages[*])")
	flags.Var(&opts.reportInterval, "report-interval", "Interval between progress reports")

	return cmd
}

// resolve builds the sender configuration: the config file first, then any
// flag given explicitly on the command line.
func (o *sendOptions) resolve(cmd *cobra.Command, g *globalOptions) (*config.SenderConfig, error) {
	cfg := &config.SenderConfig{}
	if g.configFile != "" {
		file, err := config.LoadConfig(g.configFile)
		if err != nil {
			return nil, fmt.Errorf("error loading config: %w", err)
		}
		if file.Send != nil {
			cfg = file.Send
		}
	}

	flags := cmd.Flags()
	if flags.Changed("url") {
		cfg.URL = o.url
	}

	// A timing flag replaces whatever timing the file had.
	delaySet, frequencySet := flags.Changed("delay"), flags.Changed("frequency")
	if delaySet || frequencySet {
		cfg.Delay, cfg.Frequency = nil, nil
	}
	if delaySet {
		delay := o.delay
		cfg.Delay = &delay
	}
	if frequencySet {
		frequency := o.frequency
		cfg.Frequency = &frequency
	}

	if flags.Changed("total-amount") {
		cfg.TotalAmount = o.totalAmount
	}
	if flags.Changed("payload-size") {
		cfg.PayloadSize = o.payloadSize
	}
	if flags.Changed("samples") {
		cfg.Samples = o.samples
	}
	if flags.Changed("samples-path") {
		cfg.SamplesPath = o.samplesPath
	}
	if flags.Changed("report-interval") {
		cfg.ReportInterval = o.reportInterval
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadPool returns the bloated sample pool.
func loadPool(cfg *config.SenderConfig) ([][]byte, error) {
	if cfg.Samples == "" {
		return payload.Defaults(cfg.PayloadSize), nil
	}
	pool, err := payload.LoadFile(cfg.Samples, cfg.SamplesPath, cfg.PayloadSize)
	if err != nil {
		return nil, fmt.Errorf("error loading samples: %w", err)
	}
	return pool, nil
}

// checkSampling rejects a pool and batch size whose expanded sample pool
// would be too large to allocate.
func checkSampling(samples, batchSize int) error {
	if _, ok := batch.ExpandedLen(samples, batchSize); ok {
		return nil
	}
	errs := &config.ValidationErrors{}
	errs.Add("samples", fmt.Sprintf(
		"%d samples in batches of %d repeat only every lcm(%d, %d) datagrams, more than %d; use fewer samples or a lower rate",
		samples, batchSize, samples, batchSize, batch.MaxExpandedLen))
	return errs
}

func runSend(cmd *cobra.Command, g *globalOptions, cfg *config.SenderConfig) error {
	format, err := g.outputFormat()
	if err != nil {
		return err
	}

	spec, err := cfg.Timing()
	if err != nil {
		return err
	}
	timing, err := rate.Resolve(spec)
	if err != nil {
		return err
	}
	sched, err := rate.NewSchedule(spec)
	if err != nil {
		return err
	}

	pool, err := loadPool(cfg)
	if err != nil {
		return err
	}
	if err := checkSampling(len(pool), sched.BatchSize); err != nil {
		return err
	}

	conn, err := sender.Dial(cfg.URL)
	if err != nil {
		return err
	}
	defer conn.Close()

	engine := metrics.NewEngine()
	defer engine.Stop()

	reportW, summaryW := streams(cmd, format)
	f := output.NewFormatter(g.verbose, !output.UseColor(reportW, g.noColor))

	sampler := batch.New(pool, sched.BatchSize, true)

	total := uint64(cfg.TotalAmount)
	io.WriteString(reportW, f.FormatSendHeader(output.SendHeader{
		Target:          cfg.URL,
		Requested:       timing,
		Schedule:        sched,
		Total:           total,
		PayloadSize:     cfg.PayloadSize,
		Samples:         payload.Summarize(pool),
		BatchesPerCycle: sampler.BatchesPerCycle(),
	}))

	logger := logging.Default()
	batches, tail := sched.Plan(total)
	source := batch.TakeWithTail[[]byte](sampler, batches, tail)
	s := sender.New(conn, sched, source, engine, sender.WithLogger(logger))
	reporter := output.NewReporter(reportW, f, output.RoleSender, engine)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runErr := stats.WithPeriodic(ctx, s.Run, cfg.ReportInterval.Std(), reporter.Report)
	engine.Stop()

	interrupted := isInterrupt(runErr)
	if runErr != nil && !interrupted {
		return fmt.Errorf("send failed: %w", runErr)
	}

	if logging.Debug() {
		ts := s.TickerStats()
		logger.Logf("[send] %d ticks, %d underruns, %s waited", ts.TotalTicks, ts.Underruns, ts.TotalWaitTime)
	}

	snap := engine.GetSnapshot()
	if interrupted {
		fmt.Fprintf(reportW, "%s Interrupted after %s\n", output.WarningIcon(f.NoColor), snap.Elapsed.Round(time.Millisecond))
	}

	summary := output.NewSummary(output.RoleSender, cfg.URL, &sched, snap)
	summary.SetIntervals(snap.StartTime, engine.GetTimeSeries())
	return writeSummary(summaryW, format, summary, f.FormatSummary(output.RoleSender, snap))
}
