// Package share implements the resumable, bounded-concurrency sharing engine:
// a fixed-size worker pool draining a queue of (recipient, folder) grant tasks
// against the remote API, with incremental history persistence, duplicate
// suppression across runs, and a line-delimited progress event stream.
package share

import (
	"context"
	"time"

	"github.com/tildaslashalef/driveshare/internal/cache"
	"github.com/tildaslashalef/driveshare/internal/drive"
)

// Issue types recorded on failed results
const (
	IssueNoFolder = "NO_FOLDER"
)

// RemoteClient is the capability the engine holds over the remote document
// and storage service. The production implementation is *drive.Client; tests
// substitute an in-memory fake.
type RemoteClient interface {
	GrantRead(ctx context.Context, folderID, email string) (string, error)
	ListSheets(ctx context.Context, spreadsheetID string) ([]drive.Sheet, error)
	BatchWriteCells(ctx context.Context, spreadsheetID string, data []drive.ValueRange) error
}

// Granter is the single-call capability a worker needs
type Granter interface {
	GrantRead(ctx context.Context, folderID, email string) (string, error)
}

// Task is one unit of work dispatched to a worker
type Task struct {
	FolderID  string
	Email     string
	Recipient cache.Recipient
}

// ShareResult is the outcome of processing one recipient. Workers produce
// them without a timestamp; the engine stamps Timestamp on receipt so the
// result list is ordered by observation at the coordinator.
type ShareResult struct {
	Success      bool            `json:"success"`
	PermissionID string          `json:"permissionId,omitempty"`
	Error        string          `json:"error,omitempty"`
	ErrorCode    string          `json:"errorCode,omitempty"`
	IssueType    string          `json:"issueType,omitempty"`
	FolderID     string          `json:"folderId,omitempty"`
	Recipient    cache.Recipient `json:"recipient"`
	Timestamp    time.Time       `json:"timestamp"`
}

// Key returns the processed-keys entry for the result's recipient
func (r ShareResult) Key() string {
	return r.Recipient.Key()
}

// CellUpdate is a pending write to the remote document. Range is the bare
// cell reference (e.g. "I2"); the sheet title is resolved once at flush time.
type CellUpdate struct {
	Range string `json:"range"`
	Value string `json:"value"`
}

// HistorySnapshot is the atomic unit of resume: everything the engine needs
// to pick up where a crashed or interrupted run stopped.
type HistorySnapshot struct {
	Timestamp             time.Time     `json:"timestamp"`
	ProcessedParticipants []string      `json:"processedParticipants"`
	ShareResults          []ShareResult `json:"shareResults"`
	BatchUpdates          []CellUpdate  `json:"batchUpdates"`
	ErrorLog              []string      `json:"errorLog"`
	ProgressStats         Counters      `json:"progressStats"`
	StartTime             time.Time     `json:"startTime"`
}
