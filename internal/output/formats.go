package output

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/wesleyorama2/udpstress/internal/metrics"
	"github.com/wesleyorama2/udpstress/internal/rate"
)

// OutputFormat represents the available output formats
type OutputFormat string

const (
	// FormatText is the default human-readable text format
	FormatText OutputFormat = "text"
	// FormatJSON outputs in JSON format
	FormatJSON OutputFormat = "json"
	// FormatYAML outputs in YAML format
	FormatYAML OutputFormat = "yaml"
)

// ParseFormat returns the OutputFormat named by s. An empty string is text.
func ParseFormat(s string) (OutputFormat, error) {
	switch OutputFormat(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatText:
		return FormatText, nil
	case FormatJSON:
		return FormatJSON, nil
	case FormatYAML, "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want text, json or yaml)", s)
	}
}

// ScheduleData is the structured form of a rate.Schedule.
type ScheduleData struct {
	Delay      string `json:"delay" yaml:"delay"`
	DPS        uint64 `json:"dps" yaml:"dps"`
	TickPeriod string `json:"tickPeriod" yaml:"tickPeriod"`
	BatchSize  int    `json:"batchSize" yaml:"batchSize"`
}

// CostData is the structured form of metrics.CostStats.
type CostData struct {
	Count  int64  `json:"count" yaml:"count"`
	Min    string `json:"min" yaml:"min"`
	Mean   string `json:"mean" yaml:"mean"`
	StdDev string `json:"stdDev" yaml:"stdDev"`
	P50    string `json:"p50" yaml:"p50"`
	P90    string `json:"p90" yaml:"p90"`
	P99    string `json:"p99" yaml:"p99"`
	Max    string `json:"max" yaml:"max"`
}

// IntervalData is one metrics bucket of a run, relative to its start.
type IntervalData struct {
	AtMs      int64   `json:"atMs" yaml:"atMs"`
	Datagrams uint64  `json:"datagrams" yaml:"datagrams"`
	Failed    uint64  `json:"failed" yaml:"failed"`
	Bytes     uint64  `json:"bytes" yaml:"bytes"`
	DPS       float64 `json:"dps" yaml:"dps"`
	CostP99   string  `json:"costP99,omitempty" yaml:"costP99,omitempty"`
	Phase     string  `json:"phase" yaml:"phase"`
}

// Summary represents the structured result of a run
type Summary struct {
	Role           Role           `json:"role" yaml:"role"`
	Address        string         `json:"address,omitempty" yaml:"address,omitempty"`
	Schedule       *ScheduleData  `json:"schedule,omitempty" yaml:"schedule,omitempty"`
	Datagrams      uint64         `json:"datagrams" yaml:"datagrams"`
	Failed         uint64         `json:"failed" yaml:"failed"`
	Dropped        uint64         `json:"dropped" yaml:"dropped"`
	Bytes          uint64         `json:"bytes" yaml:"bytes"`
	ElapsedMs      int64          `json:"elapsedMs" yaml:"elapsedMs"`
	DPS            float64        `json:"dps" yaml:"dps"`
	SteadyStateDPS float64        `json:"steadyStateDps,omitempty" yaml:"steadyStateDps,omitempty"`
	Cost           *CostData      `json:"cost,omitempty" yaml:"cost,omitempty"`
	Intervals      []IntervalData `json:"intervals,omitempty" yaml:"intervals,omitempty"`
	Timestamp      string         `json:"timestamp" yaml:"timestamp"`
}

// NewSummary builds a Summary from a final snapshot. sched may be nil.
func NewSummary(role Role, address string, sched *rate.Schedule, snap *metrics.Snapshot) *Summary {
	s := &Summary{
		Role:           role,
		Address:        address,
		Datagrams:      snap.Datagrams,
		Failed:         snap.Failed,
		Dropped:        snap.Dropped,
		Bytes:          snap.Bytes,
		ElapsedMs:      snap.Elapsed.Milliseconds(),
		DPS:            snap.DPS,
		SteadyStateDPS: snap.SteadyStateDPS,
		Timestamp:      snap.Timestamp.Format(time.RFC3339),
	}

	if sched != nil {
		s.Schedule = &ScheduleData{
			Delay:      sched.Delay.String(),
			DPS:        sched.DPS,
			TickPeriod: sched.TickPeriod.String(),
			BatchSize:  sched.BatchSize,
		}
	}

	if c := snap.Cost; c.Count > 0 {
		s.Cost = &CostData{
			Count:  c.Count,
			Min:    c.Min.String(),
			Mean:   c.Mean.String(),
			StdDev: c.StdDev.String(),
			P50:    c.P50.String(),
			P90:    c.P90.String(),
			P99:    c.P99.String(),
			Max:    c.Max.String(),
		}
	}

	return s
}

// SetIntervals records the metrics buckets of the run, timed from start.
func (s *Summary) SetIntervals(start time.Time, series []*metrics.TimeBucket) {
	s.Intervals = make([]IntervalData, 0, len(series))
	for _, b := range series {
		iv := IntervalData{
			AtMs:      b.Timestamp.Sub(start).Milliseconds(),
			Datagrams: b.IntervalDatagrams,
			Failed:    b.IntervalFailed,
			Bytes:     b.IntervalBytes,
			DPS:       b.IntervalDPS,
			Phase:     string(b.Phase),
		}
		if b.CostP99 > 0 {
			iv.CostP99 = b.CostP99.String()
		}
		s.Intervals = append(s.Intervals, iv)
	}
}

// RenderSummary renders s in a structured format. FormatText is not a
// structured format; use Formatter.FormatSummary for it.
func RenderSummary(format OutputFormat, s *Summary) (string, error) {
	switch format {
	case FormatJSON:
		data, err := json.MarshalIndent(s, "", "  ")
		if err != nil {
			return "", fmt.Errorf("failed to marshal summary: %w", err)
		}
		return string(data) + "\n", nil
	case FormatYAML:
		data, err := yaml.Marshal(s)
		if err != nil {
			return "", fmt.Errorf("failed to marshal summary: %w", err)
		}
		return string(data), nil
	default:
		return "", fmt.Errorf("format %q is not structured", format)
	}
}
