package output

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/wesleyorama2/udpstress/internal/metrics"
	"github.com/wesleyorama2/udpstress/internal/payload"
	"github.com/wesleyorama2/udpstress/internal/rate"
)

// Role names the side of the exchange a report describes.
type Role string

const (
	// RoleSender reports datagrams sent
	RoleSender Role = "sender"
	// RoleCollector reports datagrams received
	RoleCollector Role = "collector"
)

// Verb returns the past-tense verb used in report lines.
func (r Role) Verb() string {
	if r == RoleCollector {
		return "Received"
	}
	return "Sent"
}

// SendHeader describes a sender run before it starts.
type SendHeader struct {
	Target      string
	Requested   rate.Timing
	Schedule    rate.Schedule
	Total       uint64
	PayloadSize int
	Samples     payload.Stats

	// BatchesPerCycle is how many batches one pass over the sample pool
	// takes before the sequence repeats.
	BatchesPerCycle int
}

// CollectHeader describes a collector run before it starts.
type CollectHeader struct {
	Listen    string
	Workers   int
	QueueSize int
	Cost      time.Duration
}

// Interval is the activity between two consecutive reports.
type Interval struct {
	Total    uint64
	Count    uint64
	Bytes    uint64
	Duration time.Duration
}

// DPS returns the datagram rate of the interval.
func (iv Interval) DPS() float64 {
	if iv.Duration <= 0 {
		return 0
	}
	return float64(iv.Count) / iv.Duration.Seconds()
}

// Formatter is responsible for formatting run headers, report lines and
// summaries in text format
type Formatter struct {
	Verbose bool
	NoColor bool
	colors  *ColorScheme
}

// NewFormatter creates a new formatter with the given options
func NewFormatter(verbose, noColor bool) *Formatter {
	colors := DefaultColorScheme()
	if noColor {
		colors = NoColorScheme()
	}
	return &Formatter{
		Verbose: verbose,
		NoColor: noColor,
		colors:  colors,
	}
}

// FormatSendHeader formats the preamble printed before sending.
func (f *Formatter) FormatSendHeader(h SendHeader) string {
	var buf strings.Builder

	buf.WriteString(f.colors.Title.Sprint("Stressing the receiver with UDP datagrams!"))
	buf.WriteString("\n")
	if h.Target != "" {
		buf.WriteString(fmt.Sprintf("Target: %s\n", f.colors.Highlight.Sprint(h.Target)))
	}
	buf.WriteString(fmt.Sprintf("Delay between datagrams: %dns\n", h.Requested.Delay.Nanoseconds()))
	buf.WriteString(fmt.Sprintf("DPS to test: %s\n", humanize.Comma(int64(h.Requested.DPS))))

	if h.Schedule.Compensated() {
		buf.WriteString(f.colors.Notice.Sprint("[delays less 1ms are simulated with batching]"))
		buf.WriteString("\n")
	}

	realDelay := strconv.FormatFloat(float64(h.Schedule.TickPeriod.Nanoseconds())/1e6, 'f', -1, 64)
	buf.WriteString(fmt.Sprintf("Real delay: %sms\n", realDelay))
	buf.WriteString(fmt.Sprintf("Batch size: %d\n", h.Schedule.BatchSize))

	if f.Verbose {
		buf.WriteString(fmt.Sprintf("Total amount: %s datagrams\n", humanize.Comma(int64(h.Total))))
		buf.WriteString(fmt.Sprintf("Payload size: %s\n", humanize.Bytes(uint64(h.PayloadSize))))
		if h.Samples.Samples > 0 {
			buf.WriteString(fmt.Sprintf("Samples: %d (%s to %s each)\n", h.Samples.Samples,
				humanize.Bytes(uint64(h.Samples.MinBytes)), humanize.Bytes(uint64(h.Samples.MaxBytes))))
		}
		if h.BatchesPerCycle > 0 {
			buf.WriteString(fmt.Sprintf("Batches per cycle: %s\n", humanize.Comma(int64(h.BatchesPerCycle))))
		}
		buf.WriteString(fmt.Sprintf("Expected duration: %s\n", h.Schedule.Duration(h.Total).Round(time.Millisecond)))
	}

	return buf.String()
}

// FormatCollectHeader formats the preamble printed before collecting.
func (f *Formatter) FormatCollectHeader(h CollectHeader) string {
	var buf strings.Builder

	buf.WriteString(f.colors.Title.Sprint("Collecting UDP datagrams"))
	buf.WriteString(fmt.Sprintf(" on %s\n", f.colors.Highlight.Sprint(h.Listen)))

	if f.Verbose {
		buf.WriteString(fmt.Sprintf("Workers: %d\n", h.Workers))
		buf.WriteString(fmt.Sprintf("Queue size: %s\n", humanize.Comma(int64(h.QueueSize))))
		buf.WriteString(fmt.Sprintf("Cost per datagram: %s\n", h.Cost))
	}

	return buf.String()
}

// FormatReport formats one periodic report line, e.g.
//
//	Sent 12,000 datagrams (+1,000 at 1,000 dps, 420 kB)
func (f *Formatter) FormatReport(role Role, iv Interval) string {
	line := fmt.Sprintf("%s %s datagrams", role.Verb(), f.colors.Count.Sprint(humanize.Comma(int64(iv.Total))))

	if iv.Duration > 0 {
		line += fmt.Sprintf(" (+%s at %s dps, %s)",
			humanize.Comma(int64(iv.Count)),
			f.colors.Rate.Sprint(humanize.CommafWithDigits(iv.DPS(), 1)),
			f.colors.Bytes.Sprint(humanize.Bytes(iv.Bytes)))
	}

	return line + "\n"
}

// FormatSummary formats the final summary of a run.
func (f *Formatter) FormatSummary(role Role, snap *metrics.Snapshot) string {
	var buf strings.Builder

	line := strings.Repeat("─", 48)
	buf.WriteString("\n")
	buf.WriteString(f.colors.Title.Sprint(line))
	buf.WriteString("\n")

	status := SuccessIcon(f.NoColor)
	if snap.Failed > 0 || snap.Dropped > 0 {
		status = WarningIcon(f.NoColor)
	}
	buf.WriteString(fmt.Sprintf("%s %s %s datagrams in %s\n",
		status,
		role.Verb(),
		f.colors.Count.Sprint(humanize.Comma(int64(snap.Datagrams))),
		snap.Elapsed.Round(time.Millisecond)))

	f.writeField(&buf, "Failed", humanize.Comma(int64(snap.Failed)), snap.Failed > 0)
	if role == RoleCollector {
		f.writeField(&buf, "Dropped", humanize.Comma(int64(snap.Dropped)), snap.Dropped > 0)
	}
	f.writeField(&buf, "Volume", humanize.Bytes(snap.Bytes), false)
	f.writeField(&buf, "Throughput", humanize.CommafWithDigits(snap.DPS, 1)+" dps", false)
	if snap.SteadyStateDPS > 0 {
		f.writeField(&buf, "Steady state", humanize.CommafWithDigits(snap.SteadyStateDPS, 1)+" dps", false)
	}

	if snap.Cost.Count > 0 {
		buf.WriteString(f.colors.Label.Sprint("Cost per datagram:"))
		buf.WriteString("\n")
		c := snap.Cost
		buf.WriteString(fmt.Sprintf("  Min:  %s\n", c.Min))
		buf.WriteString(fmt.Sprintf("  Mean: %s\n", c.Mean.Round(time.Nanosecond)))
		buf.WriteString(fmt.Sprintf("  P50:  %s\n", c.P50))
		buf.WriteString(fmt.Sprintf("  P90:  %s\n", c.P90))
		buf.WriteString(fmt.Sprintf("  P99:  %s\n", c.P99))
		buf.WriteString(fmt.Sprintf("  Max:  %s\n", c.Max))
		if f.Verbose {
			buf.WriteString(fmt.Sprintf("  StdDev: %s\n", c.StdDev))
		}
	}

	buf.WriteString(f.colors.Title.Sprint(line))
	buf.WriteString("\n")

	return buf.String()
}

func (f *Formatter) writeField(buf *strings.Builder, label, value string, bad bool) {
	if bad {
		value = f.colors.Error.Sprint(value)
	}
	buf.WriteString(fmt.Sprintf("%s %s\n", f.colors.Label.Sprintf("%-12s", label+":"), value))
}
