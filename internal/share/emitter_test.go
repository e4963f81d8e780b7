package share

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memorySink captures emitted lines for assertions
type memorySink struct {
	mu    sync.Mutex
	lines []string
}

func (s *memorySink) EmitLine(line string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines = append(s.lines, line)
}

func (s *memorySink) all() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.lines...)
}

func (s *memorySink) last() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.lines) == 0 {
		return ""
	}
	return s.lines[len(s.lines)-1]
}

func TestEmitterLineFormats(t *testing.T) {
	sink := &memorySink{}
	e := NewEmitter(sink)

	e.Progress(3, 10, 30)
	e.Status(2, 1, 0)
	e.Workers(4, 16, 7)
	e.Speed(1.5, 12)
	e.WorkerStatus(3, "working on Alice")
	e.Success("Shared folder with Alice (a@x)")
	e.Error("Bob (b@x): boom")
	e.FinalStats(10, 8, 2, 5*time.Second, 2.0)

	assert.Equal(t, []string{
		"PROGRESS: Processed 3 / 10 (30%)",
		"STATUS: 2 successful, 1 failed, 0 errors",
		"WORKERS: 4/16 active, 7 in queue",
		"SPEED: 1.50 per second, ETA: 12s",
		"WORKER_STATUS: Worker 3 is now working on Alice",
		"SUCCESS: Shared folder with Alice (a@x)",
		"ERROR: Bob (b@x): boom",
		"FINAL_STATS: Processed=10, Successful=8, Failed=2, Time=5s, Speed=2.00/s",
	}, sink.all())
}

func TestEmitterSpeedUpdateJSON(t *testing.T) {
	sink := &memorySink{}
	e := NewEmitter(sink)

	e.SpeedUpdate(SpeedUpdate{
		Speed:         2.5,
		Unit:          "per_second",
		Processed:     5,
		Total:         10,
		Successful:    4,
		Failed:        1,
		ActiveWorkers: 3,
		WorkerCount:   16,
		ETA:           2,
		Timestamp:     "2026-01-01T00:00:00Z",
	})

	line := sink.last()
	require.True(t, strings.HasPrefix(line, "SPEED_UPDATE: "))

	var decoded SpeedUpdate
	require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "SPEED_UPDATE: ")), &decoded))
	assert.Equal(t, 2.5, decoded.Speed)
	assert.Equal(t, 16, decoded.WorkerCount)
}

func TestEmitterResultsUpdateTruncation(t *testing.T) {
	sink := &memorySink{}
	e := NewEmitter(sink)

	issues := make([]IssueSummary, 120)
	for i := range issues {
		issues[i] = IssueSummary{Row: i + 2, Name: fmt.Sprintf("r%d", i), Email: "x@x", IssueType: IssueNoFolder}
	}
	e.ResultsUpdate(issues)

	line := sink.last()
	require.True(t, strings.HasPrefix(line, "RESULTS_UPDATE: "))

	var payload ResultsPayload
	require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "RESULTS_UPDATE: ")), &payload))
	assert.Len(t, payload.Issues, 50)
	assert.Equal(t, 70, payload.TruncatedCount)
	// The newest issues survive truncation
	assert.Equal(t, 121, payload.Issues[len(payload.Issues)-1].Row)
}

func TestEmitterOversizePayload(t *testing.T) {
	sink := &memorySink{}
	e := NewEmitter(sink)

	e.DashboardUpdate(map[string]string{"blob": strings.Repeat("x", maxEventBytes)})

	line := sink.last()
	require.True(t, strings.HasPrefix(line, "DASHBOARD_UPDATE: "))

	var fallback map[string]string
	require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "DASHBOARD_UPDATE: ")), &fallback))
	assert.Equal(t, "Data too large", fallback["error"])
}

func TestEmitterEventsAreSingleLines(t *testing.T) {
	sink := &memorySink{}
	e := NewEmitter(sink)

	e.Error("multi\nline\r\nmessage")
	e.WorkerStatus(0, "working on evil\nname")

	for _, line := range sink.all() {
		assert.NotContains(t, line, "\n")
		assert.NotContains(t, line, "\r")
		assert.LessOrEqual(t, len(line), maxEventBytes+64)
	}
}

func TestSanitizeText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "plain text unchanged",
			in:   "Alice Smith",
			want: "Alice Smith",
		},
		{
			name: "control characters stripped",
			in:   "a\x00b\tc\nd\re",
			want: "abcde",
		},
		{
			name: "line and paragraph separators stripped",
			in:   "a\u2028b\u2029c",
			want: "abc",
		},
		{
			name: "zero width stripped",
			in:   "a\u200Bb\u200Cc\u200Dd\uFEFFe",
			want: "abcde",
		},
		{
			name: "truncated to limit",
			in:   strings.Repeat("x", 500),
			want: strings.Repeat("x", maxFieldRunes),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeText(tt.in))
		})
	}
}
