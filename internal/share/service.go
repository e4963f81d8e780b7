package share

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/tildaslashalef/driveshare/internal/cache"
	"github.com/tildaslashalef/driveshare/internal/config"
	"github.com/tildaslashalef/driveshare/internal/drive"
	"github.com/tildaslashalef/driveshare/internal/loggy"
	"github.com/tildaslashalef/driveshare/internal/matcher"
)

// Service loads the engine's inputs, wires its collaborators, and runs it.
// The CLI commands talk to the service, never to the engine directly.
type Service struct {
	cfg    *config.Config
	logger *loggy.Logger
}

// NewService creates a new share service
func NewService(cfg *config.Config, logger *loggy.Logger) *Service {
	return &Service{cfg: cfg, logger: logger}
}

// newClient builds the authenticated remote client
func (s *Service) newClient(ctx context.Context) (*drive.Client, error) {
	httpClient, err := drive.NewAuthenticatedClient(ctx, s.cfg.Drive.CredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("initializing credentials: %w", err)
	}
	return drive.NewClient(s.cfg.Drive, httpClient, s.logger), nil
}

// NewClientWithHTTP builds a remote client over a caller-supplied HTTP
// client, bypassing credential loading.
func (s *Service) NewClientWithHTTP(httpClient *http.Client) *drive.Client {
	return drive.NewClient(s.cfg.Drive, httpClient, s.logger)
}

// Run executes a full sharing run and writes the results file. Returns
// ErrInterrupted when a shutdown signal stopped the run early.
func (s *Service) Run(ctx context.Context) (*ResultsReport, error) {
	client, err := s.newClient(ctx)
	if err != nil {
		return nil, err
	}
	return s.RunWithClient(ctx, client)
}

// RunWithClient is Run with an injected remote client
func (s *Service) RunWithClient(ctx context.Context, client RemoteClient) (*ResultsReport, error) {
	folderMap, err := cache.LoadFolderMap(s.cfg.Engine.FolderMapFile)
	if err != nil {
		return nil, err
	}

	recipients, err := cache.LoadRecipientCache(s.cfg.Engine.RecipientCacheFile)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Inputs loaded",
		"folders", len(folderMap),
		"participants", len(recipients.Participants),
	)

	engine := NewEngine(
		s.cfg,
		client,
		matcher.New(folderMap),
		recipients,
		NewHistoryStore(s.cfg.Engine.HistoryFile, s.logger),
		NewEmitter(NewWriterSink(os.Stdout)),
		s.logger,
	)

	runErr := engine.Run(ctx)
	if runErr != nil && !errors.Is(runErr, ErrInterrupted) {
		return nil, runErr
	}

	report := engine.BuildReport()
	if err := WriteReport(s.cfg, report); err != nil {
		s.logger.Error("Failed to write results file", "error", err)
	}

	return report, runErr
}

// Sheets lists the sheet tabs of the configured document
func (s *Service) Sheets(ctx context.Context) ([]drive.Sheet, error) {
	client, err := s.newClient(ctx)
	if err != nil {
		return nil, err
	}
	return client.ListSheets(ctx, s.cfg.Spreadsheet.ID)
}

// Status returns the pending history snapshot, or nil when none exists
func (s *Service) Status() *HistorySnapshot {
	store := NewHistoryStore(s.cfg.Engine.HistoryFile, s.logger)
	if !store.Exists() {
		return nil
	}
	return store.Load()
}
