package share

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"
)

// maxEventBytes caps the payload of a single JSON event. Oversize payloads
// are replaced by a fallback event rather than risking a malformed line.
const maxEventBytes = 100 * 1024

// maxFieldRunes caps free-text fields embedded in JSON events
const maxFieldRunes = 100

// Sink receives one serialized event line at a time. Stdout is the usual
// sink, consumed line-wise by the parent process; tests capture lines in
// memory.
type Sink interface {
	EmitLine(line string)
}

// WriterSink adapts an io.Writer into a Sink, one event per line
type WriterSink struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriterSink wraps the given writer
func NewWriterSink(w io.Writer) *WriterSink {
	return &WriterSink{w: w}
}

// EmitLine writes the line followed by a newline
func (s *WriterSink) EmitLine(line string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintln(s.w, line)
}

// Emitter serializes structured progress events to a sink. Every event is a
// single line of the form "TAG: payload"; consumers match on the tag and
// treat unrecognized lines as plain log output.
type Emitter struct {
	sink Sink
}

// NewEmitter creates an emitter writing to the given sink
func NewEmitter(sink Sink) *Emitter {
	return &Emitter{sink: sink}
}

// SpeedUpdate is the JSON payload of a SPEED_UPDATE event
type SpeedUpdate struct {
	Speed         float64 `json:"speed"`
	Unit          string  `json:"unit"`
	Processed     int     `json:"processed"`
	Total         int     `json:"total"`
	Successful    int     `json:"successful"`
	Failed        int     `json:"failed"`
	ActiveWorkers int     `json:"activeWorkers"`
	WorkerCount   int     `json:"workerCount"`
	ETA           int64   `json:"eta"`
	Timestamp     string  `json:"timestamp"`
}

// IssueSummary is one row of the RESULTS_UPDATE issues table
type IssueSummary struct {
	ID        string `json:"id,omitempty"`
	Row       int    `json:"row"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	IssueType string `json:"issueType,omitempty"`
	ErrorCode string `json:"errorCode,omitempty"`
	Error     string `json:"error,omitempty"`
}

// ResultsPayload is the JSON payload of a RESULTS_UPDATE event. Issues are
// truncated to the most recent maxIssues entries; TruncatedCount records how
// many were dropped.
type ResultsPayload struct {
	Issues         []IssueSummary `json:"issues"`
	TruncatedCount int            `json:"truncatedCount"`
	Timestamp      string         `json:"timestamp"`
}

// maxIssues bounds the RESULTS_UPDATE issues table
const maxIssues = 50

// Progress emits the human-readable progress line
func (e *Emitter) Progress(processed, total, percent int) {
	e.sink.EmitLine(fmt.Sprintf("PROGRESS: Processed %d / %d (%d%%)", processed, total, percent))
}

// Status emits the outcome tally line
func (e *Emitter) Status(successful, failed, errors int) {
	e.sink.EmitLine(fmt.Sprintf("STATUS: %d successful, %d failed, %d errors", successful, failed, errors))
}

// Workers emits the worker occupancy line
func (e *Emitter) Workers(active, workerCount, queued int) {
	e.sink.EmitLine(fmt.Sprintf("WORKERS: %d/%d active, %d in queue", active, workerCount, queued))
}

// Speed emits the human-readable throughput line
func (e *Emitter) Speed(perSecond float64, etaSeconds int64) {
	e.sink.EmitLine(fmt.Sprintf("SPEED: %.2f per second, ETA: %ds", perSecond, etaSeconds))
}

// SpeedUpdate emits the machine-readable throughput event
func (e *Emitter) SpeedUpdate(u SpeedUpdate) {
	e.emitJSON("SPEED_UPDATE", u)
}

// WorkerStatus emits a worker state transition
func (e *Emitter) WorkerStatus(workerID int, status string) {
	e.sink.EmitLine(fmt.Sprintf("WORKER_STATUS: Worker %d is now %s", workerID, SanitizeText(status)))
}

// DashboardUpdate emits aggregate document state after a cache update
func (e *Emitter) DashboardUpdate(v any) {
	e.emitJSON("DASHBOARD_UPDATE", v)
}

// ResultsUpdate emits the latest issues table, truncated to maxIssues
func (e *Emitter) ResultsUpdate(issues []IssueSummary) {
	truncated := 0
	if len(issues) > maxIssues {
		truncated = len(issues) - maxIssues
		issues = issues[len(issues)-maxIssues:]
	}

	sanitized := make([]IssueSummary, len(issues))
	for i, issue := range issues {
		issue.Name = SanitizeText(issue.Name)
		issue.Email = SanitizeText(issue.Email)
		issue.Error = SanitizeText(issue.Error)
		sanitized[i] = issue
	}

	e.emitJSON("RESULTS_UPDATE", ResultsPayload{
		Issues:         sanitized,
		TruncatedCount: truncated,
		Timestamp:      time.Now().Format(time.RFC3339),
	})
}

// Success emits a one-line success outcome
func (e *Emitter) Success(msg string) {
	e.sink.EmitLine("SUCCESS: " + SanitizeText(msg))
}

// Error emits a one-line failure outcome
func (e *Emitter) Error(msg string) {
	e.sink.EmitLine("ERROR: " + SanitizeText(msg))
}

// FinalStats emits the end-of-run summary after quiescence
func (e *Emitter) FinalStats(processed, successful, failed int, elapsed time.Duration, perSecond float64) {
	e.sink.EmitLine(fmt.Sprintf("FINAL_STATS: Processed=%d, Successful=%d, Failed=%d, Time=%ds, Speed=%.2f/s",
		processed, successful, failed, int(elapsed.Seconds()), perSecond))
}

// emitJSON marshals the payload and emits "TAG: json". A payload that fails
// to marshal or exceeds maxEventBytes is replaced with a fallback event so
// the stream never carries a malformed or unbounded line.
func (e *Emitter) emitJSON(tag string, v any) {
	data, err := json.Marshal(v)
	if err != nil || len(data) > maxEventBytes {
		fallback := map[string]string{"error": "Data too large"}
		if err != nil {
			fallback["error"] = "Serialization failed"
		}
		data, _ = json.Marshal(fallback)
	}
	e.sink.EmitLine(tag + ": " + string(data))
}

// SanitizeText strips characters that would break a line-delimited consumer:
// control characters, line and paragraph separators, and zero-width
// characters. Free-text is truncated to maxFieldRunes runes.
func SanitizeText(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		switch {
		case r < 0x20 || r == 0x7F: // control characters, including \n \r \t
			continue
		case r == '\u2028' || r == '\u2029': // line and paragraph separators
			continue
		case r == '\u200B' || r == '\u200C' || r == '\u200D' || r == '\uFEFF': // zero-width
			continue
		}
		out = append(out, r)
		if len(out) >= maxFieldRunes {
			break
		}
	}
	return string(out)
}
