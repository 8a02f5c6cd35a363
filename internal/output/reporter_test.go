package output

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/wesleyorama2/udpstress/internal/metrics"
	"github.com/wesleyorama2/udpstress/internal/rate"
)

type scriptedSource struct {
	snaps []*metrics.Snapshot
	i     int
}

func (s *scriptedSource) GetSnapshot() *metrics.Snapshot {
	snap := s.snaps[s.i]
	if s.i < len(s.snaps)-1 {
		s.i++
	}
	return snap
}

func TestReporter_Report(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	src := &scriptedSource{snaps: []*metrics.Snapshot{
		{Datagrams: 0, Timestamp: start},
		{Datagrams: 1000, Bytes: 420000, Timestamp: start.Add(time.Second)},
		{Datagrams: 2500, Bytes: 1050000, Timestamp: start.Add(2 * time.Second)},
	}}

	var buf bytes.Buffer
	r := NewReporter(&buf, NewFormatter(false, true), RoleSender, src)
	r.Report()
	r.Report()
	r.Report()

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "Sent 0 datagrams", lines[0])
	assert.Equal(t, "Sent 1,000 datagrams (+1,000 at 1,000 dps, 420 kB)", lines[1])
	assert.Equal(t, "Sent 2,500 datagrams (+1,500 at 1,500 dps, 630 kB)", lines[2])
}

func TestReporter_EngineSource(t *testing.T) {
	engine := metrics.NewEngine()
	defer engine.Stop()

	engine.RecordDatagram(time.Microsecond, 100)
	engine.RecordDatagram(time.Microsecond, 100)

	var buf bytes.Buffer
	NewReporter(&buf, NewFormatter(false, true), RoleCollector, engine).Report()

	assert.Equal(t, "Received 2 datagrams\n", buf.String())
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) {
	return 0, errors.New("broken pipe")
}

func TestReporter_WriteErrorPanics(t *testing.T) {
	src := &scriptedSource{snaps: []*metrics.Snapshot{{}}}
	r := NewReporter(failingWriter{}, NewFormatter(false, true), RoleSender, src)

	assert.Panics(t, r.Report)
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    OutputFormat
		wantErr bool
	}{
		{"", FormatText, false},
		{"text", FormatText, false},
		{"JSON", FormatJSON, false},
		{"yml", FormatYAML, false},
		{"yaml", FormatYAML, false},
		{"xml", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func testSummary() *Summary {
	sched := rate.Compensate(500 * time.Nanosecond)
	snap := &metrics.Snapshot{
		Datagrams: 2000,
		Bytes:     840000,
		DPS:       1999.5,
		Elapsed:   1500 * time.Millisecond,
		Timestamp: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Cost:      metrics.CostStats{Count: 2000, P99: 3 * time.Microsecond},
	}
	return NewSummary(RoleSender, "127.0.0.1:60002", &sched, snap)
}

func TestNewSummary(t *testing.T) {
	s := testSummary()

	assert.Equal(t, RoleSender, s.Role)
	assert.Equal(t, int64(1500), s.ElapsedMs)
	require.NotNil(t, s.Schedule)
	assert.Equal(t, 2000, s.Schedule.BatchSize)
	assert.Equal(t, "1ms", s.Schedule.TickPeriod)
	require.NotNil(t, s.Cost)
	assert.Equal(t, "3µs", s.Cost.P99)
	assert.Equal(t, "2024-01-01T00:00:00Z", s.Timestamp)

	bare := NewSummary(RoleCollector, "", nil, &metrics.Snapshot{})
	assert.Nil(t, bare.Schedule)
	assert.Nil(t, bare.Cost)
}

func TestRenderSummary(t *testing.T) {
	s := testSummary()

	out, err := RenderSummary(FormatJSON, s)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	assert.Equal(t, "sender", decoded["role"])
	assert.Equal(t, float64(2000), decoded["datagrams"])

	out, err = RenderSummary(FormatYAML, s)
	require.NoError(t, err)

	var fromYAML Summary
	require.NoError(t, yaml.Unmarshal([]byte(out), &fromYAML))
	assert.Equal(t, uint64(840000), fromYAML.Bytes)
	assert.Equal(t, "127.0.0.1:60002", fromYAML.Address)

	_, err = RenderSummary(FormatText, s)
	assert.Error(t, err)
}

func TestUseColor(t *testing.T) {
	var buf bytes.Buffer

	assert.False(t, UseColor(&buf, true), "--no-color always wins")

	t.Setenv("FORCE_COLOR", "")
	t.Setenv("NO_COLOR", "")
	assert.False(t, UseColor(&buf, false), "a buffer is not a terminal")

	t.Setenv("FORCE_COLOR", "1")
	assert.True(t, UseColor(&buf, false))

	t.Setenv("NO_COLOR", "1")
	assert.False(t, UseColor(&buf, false))
}
