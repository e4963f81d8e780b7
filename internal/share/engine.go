package share

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/tildaslashalef/driveshare/internal/cache"
	"github.com/tildaslashalef/driveshare/internal/config"
	"github.com/tildaslashalef/driveshare/internal/drive"
	"github.com/tildaslashalef/driveshare/internal/loggy"
	"github.com/tildaslashalef/driveshare/internal/matcher"
	"github.com/tildaslashalef/driveshare/internal/ulid"
)

// ErrInterrupted is returned by Run when a shutdown signal arrived before
// quiescence. History has been saved; the next run resumes from it.
var ErrInterrupted = errors.New("run interrupted, history saved")

// ErrFlushFailed is returned when the final cell flush could not be completed
// even with retries. History is kept so the next run retries the flush work.
var ErrFlushFailed = errors.New("cell update flush failed, history kept")

// Engine coordinates a sharing run. It owns all mutable run state (counters,
// result list, pending cell updates, processed-keys set, history snapshot)
// and is the only goroutine touching it. Workers only ever hold their
// in-flight task; everything crosses the boundary as messages.
type Engine struct {
	cfg     *config.Config
	client  RemoteClient
	matcher *matcher.Matcher
	history *HistoryStore
	emitter *Emitter
	logger  *loggy.Logger

	recipients *cache.RecipientCache

	runID     string
	startTime time.Time

	counters    Counters
	processed   map[string]bool
	results     []ShareResult
	cellUpdates []CellUpdate
	errorLog    []string
	issues      []IssueSummary

	sinceSave int
}

// NewEngine assembles an engine over its collaborators
func NewEngine(
	cfg *config.Config,
	client RemoteClient,
	m *matcher.Matcher,
	recipients *cache.RecipientCache,
	history *HistoryStore,
	emitter *Emitter,
	logger *loggy.Logger,
) *Engine {
	return &Engine{
		cfg:        cfg,
		client:     client,
		matcher:    m,
		recipients: recipients,
		history:    history,
		emitter:    emitter,
		logger:     logger,
		runID:      ulid.RunID(),
		processed:  make(map[string]bool),
	}
}

// RunID returns this run's identifier
func (e *Engine) RunID() string {
	return e.runID
}

// Counters returns a copy of the engine's aggregate counters
func (e *Engine) Counters() Counters {
	return e.counters
}

// Results returns the accumulated result list
func (e *Engine) Results() []ShareResult {
	return e.results
}

// CellUpdates returns the pending cell updates
func (e *Engine) CellUpdates() []CellUpdate {
	return e.cellUpdates
}

// Run executes one sharing run to quiescence: restore history, compute the
// to-do set, drain it through the worker pool, flush cell updates, finalize.
// Cancelling ctx (the signal path) saves history and returns ErrInterrupted.
func (e *Engine) Run(ctx context.Context) error {
	e.restoreHistory()

	todo, unmatched := e.computeTodo()
	e.counters.Total = e.counters.Processed + len(todo) + len(unmatched)
	e.counters.WorkerCount = e.cfg.Engine.WorkerCount
	e.counters.Validate(e.logger)

	if e.startTime.IsZero() {
		e.startTime = time.Now()
	}

	e.logger.Info("Run starting",
		"run_id", e.runID,
		"total", e.counters.Total,
		"already_processed", e.counters.Processed,
		"to_dispatch", len(todo),
		"unmatched", len(unmatched),
	)

	// Recipients with no matching folder never reach the queue. They are
	// recorded as issues right away; their status cell stays FALSE so they
	// remain candidates on the next run.
	for _, r := range unmatched {
		e.recordResult(nil, ShareResult{
			Success:   false,
			IssueType: IssueNoFolder,
			Error:     "no folder found for " + r.Name,
			Recipient: r,
		})
	}

	if len(todo) == 0 {
		e.logger.Info("Nothing to dispatch")
		return e.finalize(ctx, nil)
	}

	pool := NewPool(PoolConfig{
		Size:        e.cfg.Engine.WorkerCount,
		RateDelay:   e.cfg.Drive.RateDelay,
		InitTimeout: e.cfg.Engine.InitTimeout,
		QueueSize:   len(todo),
	}, e.client, e.emitter, e.logger)

	poolCtx, cancelPool := context.WithCancel(context.Background())
	defer cancelPool()

	if ready := pool.Start(poolCtx); ready == 0 {
		return fmt.Errorf("no workers initialized, aborting run")
	}

	for _, task := range todo {
		pool.Submit(task)
	}
	pool.Close()

	interrupted := false
	for received := 0; received < len(todo); received++ {
		select {
		case result := <-pool.Outcomes():
			e.recordResult(pool, result)
		case <-ctx.Done():
			interrupted = true
		}
		if interrupted {
			break
		}

		// Every dead worker reported its final task as an outcome, so this
		// is checked exactly when it can change. With no workers left the
		// queue remainder can never drain.
		if pool.Alive() == 0 && pool.Queued() > 0 {
			e.logger.Error("All workers failed, abandoning queue", "queued", pool.Queued())
			if err := e.saveHistory(); err != nil {
				e.logger.Error("Failed to save history after worker loss", "error", err)
			}
			return fmt.Errorf("all %d workers failed with %d tasks queued", e.cfg.Engine.WorkerCount, pool.Queued())
		}
	}

	if interrupted {
		e.logger.Warn("Shutdown signal received, saving history", "processed", e.counters.Processed)
		cancelPool()
		if err := e.saveHistory(); err != nil {
			e.logger.Error("Failed to save history on shutdown", "error", err)
		}
		return ErrInterrupted
	}

	cancelPool()
	pool.Wait()

	return e.finalize(ctx, pool)
}

// restoreHistory folds a prior snapshot into the engine state. Counters were
// already validated by the store; keys and results are always honored.
func (e *Engine) restoreHistory() {
	snap := e.history.Load()
	if snap == nil {
		return
	}

	for _, key := range snap.ProcessedParticipants {
		e.processed[key] = true
	}
	e.results = append(e.results, snap.ShareResults...)
	e.cellUpdates = append(e.cellUpdates, snap.BatchUpdates...)
	e.errorLog = append(e.errorLog, snap.ErrorLog...)
	e.counters = snap.ProgressStats
	e.counters.Validate(e.logger)
	e.startTime = snap.StartTime

	for _, r := range snap.ShareResults {
		if !r.Success {
			e.issues = append(e.issues, issueFromResult(r))
		}
	}
}

// computeTodo walks the recipient list and splits it into dispatchable tasks
// and recipients with no matching folder. Recipients already shared in the
// document, or already in the processed-keys set, are skipped entirely.
func (e *Engine) computeTodo() (todo []Task, unmatched []cache.Recipient) {
	for _, r := range e.recipients.Participants {
		if r.IsShared {
			continue
		}
		if e.processed[r.Key()] {
			continue
		}

		folderID, ok := e.matcher.FindFolderID(r.Name)
		if !ok {
			unmatched = append(unmatched, r)
			continue
		}

		todo = append(todo, Task{
			FolderID:  folderID,
			Email:     r.Email,
			Recipient: r,
		})
	}
	return todo, unmatched
}

// recordResult is the single funnel for every outcome, whether it came from
// a worker or from the pre-dispatch filter. It stamps the timestamp, updates
// counters and the processed-keys set, appends the two cell updates, emits
// the progress event suite, and saves history every batch-size outcomes.
func (e *Engine) recordResult(pool *Pool, result ShareResult) {
	result.Timestamp = time.Now()
	e.results = append(e.results, result)
	e.processed[result.Key()] = true

	e.counters.Processed++
	switch {
	case result.Success:
		e.counters.Successful++
	case result.IssueType == IssueNoFolder:
		e.counters.Errors++
	default:
		e.counters.Failed++
	}
	if pool != nil {
		e.counters.ActiveWorkers = pool.Active()
	} else {
		e.counters.ActiveWorkers = 0
	}
	e.counters.Validate(e.logger)

	e.appendCellUpdates(result)

	if result.Success {
		e.emitter.Success(fmt.Sprintf("Shared folder with %s (%s)", result.Recipient.Name, result.Recipient.Email))
		e.writeThrough(result)
	} else {
		e.issues = append(e.issues, issueFromResult(result))
		e.errorLog = append(e.errorLog, fmt.Sprintf("%s: %s", result.Recipient.Email, result.Error))
		e.emitter.Error(fmt.Sprintf("%s (%s): %s", result.Recipient.Name, result.Recipient.Email, result.Error))
	}

	e.emitProgress(pool)
	e.emitter.ResultsUpdate(e.issues)

	e.sinceSave++
	if e.sinceSave >= e.cfg.Engine.HistoryBatchSize {
		e.sinceSave = 0
		if err := e.saveHistory(); err != nil {
			e.logger.Error("Failed to save history checkpoint", "error", err)
		}
	}
}

// appendCellUpdates queues the status and log cell for the result's row
func (e *Engine) appendCellUpdates(result ShareResult) {
	row := result.Recipient.Row
	statusRange := fmt.Sprintf("%s%d", e.cfg.Spreadsheet.StatusColumn, row)
	logRange := fmt.Sprintf("%s%d", e.cfg.Spreadsheet.LogColumn, row)

	ts := result.Timestamp.Format(time.RFC3339)
	switch {
	case result.Success:
		e.cellUpdates = append(e.cellUpdates,
			CellUpdate{Range: statusRange, Value: "TRUE"},
			CellUpdate{Range: logRange, Value: ts},
		)
	case result.IssueType == IssueNoFolder:
		e.cellUpdates = append(e.cellUpdates,
			CellUpdate{Range: statusRange, Value: "FALSE"},
			CellUpdate{Range: logRange, Value: "Issue: No folder found - " + ts},
		)
	default:
		e.cellUpdates = append(e.cellUpdates,
			CellUpdate{Range: statusRange, Value: "FALSE"},
			CellUpdate{Range: logRange, Value: "Failed: " + ts},
		)
	}
}

// writeThrough updates the local recipient cache after a successful grant
// and emits the dashboard event
func (e *Engine) writeThrough(result ShareResult) {
	if !e.recipients.MarkShared(result.Recipient.Row, result.Timestamp.Format(time.RFC3339)) {
		return
	}
	if err := e.recipients.Save(); err != nil {
		e.logger.Warn("Failed to write through recipient cache", "error", err)
		return
	}
	e.emitter.DashboardUpdate(e.recipients.Stats())
}

// emitProgress emits the periodic event suite reflecting current counters
func (e *Engine) emitProgress(pool *Pool) {
	c := e.counters
	e.emitter.Progress(c.Processed, c.Total, c.Percent())
	e.emitter.Status(c.Successful, c.Failed, c.Errors)

	queued := 0
	if pool != nil {
		queued = pool.Queued()
	}
	e.emitter.Workers(c.ActiveWorkers, c.WorkerCount, queued)

	perSecond, eta := e.speed()
	e.emitter.Speed(perSecond, eta)
	e.emitter.SpeedUpdate(SpeedUpdate{
		Speed:         perSecond,
		Unit:          "per_second",
		Processed:     c.Processed,
		Total:         c.Total,
		Successful:    c.Successful,
		Failed:        c.Failed,
		ActiveWorkers: c.ActiveWorkers,
		WorkerCount:   c.WorkerCount,
		ETA:           eta,
		Timestamp:     time.Now().Format(time.RFC3339),
	})
}

// speed returns the observed processing rate and the ETA in seconds
func (e *Engine) speed() (float64, int64) {
	elapsed := time.Since(e.startTime).Seconds()
	if elapsed <= 0 || e.counters.Processed == 0 {
		return 0, 0
	}
	perSecond := float64(e.counters.Processed) / elapsed
	eta := int64(float64(e.counters.Remaining()) / perSecond)
	return perSecond, eta
}

// finalize flushes the accumulated cell updates, deletes history on success,
// and emits the final statistics
func (e *Engine) finalize(ctx context.Context, pool *Pool) error {
	if pool != nil && !pool.Quiesced() {
		e.logger.Warn("Finalizing before full quiescence", "active", pool.Active(), "queued", pool.Queued())
	}

	if err := e.flush(ctx); err != nil {
		e.logger.Error("Cell update flush failed, keeping history for resume", "error", err)
		if saveErr := e.saveHistory(); saveErr != nil {
			e.logger.Error("Failed to save history after flush failure", "error", saveErr)
		}
		return fmt.Errorf("%w: %v", ErrFlushFailed, err)
	}

	if err := e.history.Delete(); err != nil {
		e.logger.Warn("Failed to delete history file", "error", err)
	}

	elapsed := time.Since(e.startTime)
	perSecond, _ := e.speed()
	e.emitter.FinalStats(e.counters.Processed, e.counters.Successful, e.counters.Failed, elapsed, perSecond)

	e.logger.Info("Run complete",
		"run_id", e.runID,
		"processed", e.counters.Processed,
		"successful", e.counters.Successful,
		"failed", e.counters.Failed,
		"errors", e.counters.Errors,
		"elapsed", elapsed.Round(time.Millisecond),
	)

	return nil
}

// flush resolves the sheet title and writes all accumulated cell updates in
// one batch call, retrying with exponential backoff before giving up.
func (e *Engine) flush(ctx context.Context) error {
	if len(e.cellUpdates) == 0 {
		return nil
	}

	title, err := e.resolveSheetTitle(ctx)
	if err != nil {
		return err
	}

	data := make([]drive.ValueRange, 0, len(e.cellUpdates))
	for _, u := range e.cellUpdates {
		data = append(data, drive.ValueRange{
			Range:  fmt.Sprintf("%s!%s", title, u.Range),
			Values: [][]string{{u.Value}},
		})
	}

	operation := func() error {
		return e.client.BatchWriteCells(ctx, e.cfg.Spreadsheet.ID, data)
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(e.cfg.Engine.FlushMaxRetries)),
		ctx,
	)

	if err := backoff.Retry(operation, policy); err != nil {
		return fmt.Errorf("flushing %d cell updates: %w", len(e.cellUpdates), err)
	}

	e.logger.Info("Flushed cell updates", "count", len(e.cellUpdates), "sheet", title)
	return nil
}

// resolveSheetTitle matches the configured sheet name against the document's
// sheets case-insensitively, falling back to the first sheet when unmatched.
func (e *Engine) resolveSheetTitle(ctx context.Context) (string, error) {
	sheets, err := e.client.ListSheets(ctx, e.cfg.Spreadsheet.ID)
	if err != nil {
		return "", fmt.Errorf("resolving sheet title: %w", err)
	}
	if len(sheets) == 0 {
		return "", fmt.Errorf("document %s has no sheets", e.cfg.Spreadsheet.ID)
	}

	want := strings.ToLower(strings.TrimSpace(e.cfg.Spreadsheet.SheetName))
	for _, s := range sheets {
		if strings.ToLower(strings.TrimSpace(s.Title)) == want {
			return s.Title, nil
		}
	}

	e.logger.Warn("Configured sheet not found, falling back to first sheet",
		"configured", e.cfg.Spreadsheet.SheetName,
		"fallback", sheets[0].Title,
	)
	return sheets[0].Title, nil
}

// saveHistory writes the current snapshot
func (e *Engine) saveHistory() error {
	keys := make([]string, 0, len(e.processed))
	for key := range e.processed {
		keys = append(keys, key)
	}

	return e.history.Save(&HistorySnapshot{
		ProcessedParticipants: keys,
		ShareResults:          e.results,
		BatchUpdates:          e.cellUpdates,
		ErrorLog:              e.errorLog,
		ProgressStats:         e.counters,
		StartTime:             e.startTime,
	})
}

// issueFromResult converts a failed result to its issues-table row
func issueFromResult(r ShareResult) IssueSummary {
	return IssueSummary{
		ID:        ulid.IssueID(),
		Row:       r.Recipient.Row,
		Name:      r.Recipient.Name,
		Email:     r.Recipient.Email,
		IssueType: r.IssueType,
		ErrorCode: r.ErrorCode,
		Error:     r.Error,
	}
}
