package share

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/tildaslashalef/driveshare/internal/config"
)

// WorkerConfig records the pool configuration a run used
type WorkerConfig struct {
	WorkerCount      int    `json:"workerCount"`
	HistoryBatchSize int    `json:"historyBatchSize"`
	RateDelay        string `json:"rateDelay"`
}

// Statistics summarizes a run for the results file
type Statistics struct {
	TotalProcessed   int    `json:"totalProcessed"`
	SuccessfulShares int    `json:"successfulShares"`
	FailedShares     int    `json:"failedShares"`
	ErrorCount       int    `json:"errorCount"`
	ProcessingTime   string `json:"processingTime"`
}

// SuccessSummary is one successful grant in the results file
type SuccessSummary struct {
	Row          int    `json:"row"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	FolderID     string `json:"folderId"`
	PermissionID string `json:"permissionId"`
	Timestamp    string `json:"timestamp"`
}

// ResultsReport is the final JSON artifact written after a run
type ResultsReport struct {
	Timestamp         time.Time        `json:"timestamp"`
	RunID             string           `json:"runId"`
	WorkerConfig      WorkerConfig     `json:"workerConfig"`
	Statistics        Statistics       `json:"statistics"`
	ErrorLog          []string         `json:"errorLog"`
	FailedResults     []ShareResult    `json:"failedResults"`
	SuccessfulSummary []SuccessSummary `json:"successfulSummary"`
}

// BuildReport assembles the results report from the engine's final state
func (e *Engine) BuildReport() *ResultsReport {
	report := &ResultsReport{
		Timestamp: time.Now(),
		RunID:     e.runID,
		WorkerConfig: WorkerConfig{
			WorkerCount:      e.cfg.Engine.WorkerCount,
			HistoryBatchSize: e.cfg.Engine.HistoryBatchSize,
			RateDelay:        e.cfg.Drive.RateDelay.String(),
		},
		Statistics: Statistics{
			TotalProcessed:   e.counters.Processed,
			SuccessfulShares: e.counters.Successful,
			FailedShares:     e.counters.Failed,
			ErrorCount:       e.counters.Errors,
			ProcessingTime:   time.Since(e.startTime).Round(time.Millisecond).String(),
		},
		ErrorLog: e.errorLog,
	}

	for _, r := range e.results {
		if r.Success {
			report.SuccessfulSummary = append(report.SuccessfulSummary, SuccessSummary{
				Row:          r.Recipient.Row,
				Name:         r.Recipient.Name,
				Email:        r.Recipient.Email,
				FolderID:     r.FolderID,
				PermissionID: r.PermissionID,
				Timestamp:    r.Timestamp.Format(time.RFC3339),
			})
		} else {
			report.FailedResults = append(report.FailedResults, r)
		}
	}

	return report
}

// WriteReport writes the results report to the configured results file
func WriteReport(cfg *config.Config, report *ResultsReport) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling results report: %w", err)
	}
	data = append(data, '\n')

	if err := os.WriteFile(cfg.Engine.ResultsFile, data, 0644); err != nil {
		return fmt.Errorf("writing results file: %w", err)
	}
	return nil
}
