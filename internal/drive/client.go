// Package drive implements the client for the remote document and storage
// service. It exposes the three calls the sharing engine needs: granting a
// read permission on a folder, listing the sheet tabs of a spreadsheet, and
// batch-writing cell values.
package drive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/time/rate"

	"github.com/tildaslashalef/driveshare/internal/config"
	"github.com/tildaslashalef/driveshare/internal/loggy"
)

// Client is the remote API client. It is stateless beyond the attached
// credential: all per-run state lives in the engine.
type Client struct {
	cfg        config.DriveConfig
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *loggy.Logger
}

// NewClient creates a new client with the provided configuration. The given
// http.Client must already carry the credential (an oauth2 transport); tests
// pass a plain client against a local server.
func NewClient(cfg config.DriveConfig, httpClient *http.Client, logger *loggy.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        cfg.MaxIdleConns,
				MaxIdleConnsPerHost: cfg.MaxIdleConnsPerHost,
				IdleConnTimeout:     cfg.IdleConnTimeout,
			},
		}
	}
	httpClient.Timeout = cfg.Timeout

	var limiter *rate.Limiter
	if cfg.RateDelay > 0 {
		limiter = rate.NewLimiter(rate.Every(cfg.RateDelay), 1)
	} else {
		limiter = rate.NewLimiter(rate.Inf, 1)
	}

	return &Client{
		cfg:        cfg,
		httpClient: httpClient,
		limiter:    limiter,
		logger:     logger,
	}
}

// GrantRead grants read capability on a folder to the given email address.
// Notifications are suppressed so recipients never receive a share email.
// Failures are returned, never retried here; retry policy belongs to the
// engine.
func (c *Client) GrantRead(ctx context.Context, folderID, email string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}

	endpoint := fmt.Sprintf("%s/files/%s/permissions?sendNotificationEmail=false&supportsAllDrives=true",
		c.cfg.DriveBaseURL, url.PathEscape(folderID))

	body := permissionRequest{
		Role:         "reader",
		Type:         "user",
		EmailAddress: email,
	}

	var resp permissionResponse
	if err := c.makeRequest(ctx, http.MethodPost, endpoint, body, &resp); err != nil {
		return "", fmt.Errorf("granting read permission: %w", err)
	}

	return resp.ID, nil
}

// ListSheets returns the sheet tabs of the given spreadsheet document.
func (c *Client) ListSheets(ctx context.Context, spreadsheetID string) ([]Sheet, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/spreadsheets/%s?fields=sheets.properties(title,sheetId)",
		c.cfg.SheetsBaseURL, url.PathEscape(spreadsheetID))

	var resp spreadsheetResponse
	if err := c.makeRequest(ctx, http.MethodGet, endpoint, nil, &resp); err != nil {
		return nil, fmt.Errorf("listing sheets: %w", err)
	}

	sheets := make([]Sheet, 0, len(resp.Sheets))
	for _, s := range resp.Sheets {
		sheets = append(sheets, s.Properties)
	}
	return sheets, nil
}

// BatchWriteCells writes all given cell ranges in a single batch update.
// The call is atomic from the engine's perspective: either the server accepts
// every range or the whole call fails.
func (c *Client) BatchWriteCells(ctx context.Context, spreadsheetID string, data []ValueRange) error {
	if len(data) == 0 {
		return nil
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	endpoint := fmt.Sprintf("%s/spreadsheets/%s/values:batchUpdate",
		c.cfg.SheetsBaseURL, url.PathEscape(spreadsheetID))

	body := batchUpdateRequest{
		ValueInputOption: "RAW",
		Data:             data,
	}

	var resp batchUpdateResponse
	if err := c.makeRequest(ctx, http.MethodPost, endpoint, body, &resp); err != nil {
		return fmt.Errorf("batch updating cells: %w", err)
	}

	c.logger.Debug("Batch update accepted",
		"ranges", len(data),
		"updated_cells", resp.TotalUpdatedCells,
	)
	return nil
}

// makeRequest performs an HTTP request and decodes the JSON response
func (c *Client) makeRequest(ctx context.Context, method, endpoint string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request: %w", err)
		}
		reqBody = bytes.NewBuffer(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return c.parseError(resp.StatusCode, respBody)
	}

	if out != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("parsing response: %w", err)
		}
	}

	return nil
}

// parseError maps an error response to an APIError with a classified code
func (c *Client) parseError(status int, body []byte) error {
	apiErr := &APIError{
		StatusCode: status,
		ErrorCode:  classifyStatus(status),
		Message:    http.StatusText(status),
	}

	var envelope apiErrorResponse
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error.Message != "" {
		apiErr.Message = envelope.Error.Message
		for _, e := range envelope.Error.Errors {
			if code := classifyReason(e.Reason); code != "" {
				apiErr.ErrorCode = code
				break
			}
		}
	}

	return apiErr
}

// classifyStatus maps an HTTP status to an error code
func classifyStatus(status int) string {
	switch status {
	case http.StatusForbidden, http.StatusUnauthorized:
		return ErrCodePermissionDenied
	case http.StatusTooManyRequests:
		return ErrCodeRateLimited
	case http.StatusNotFound:
		return ErrCodeNotFound
	default:
		return ErrCodeUnknown
	}
}

// classifyReason maps a server-side error reason to an error code. Reasons
// are more precise than status codes: rate limiting in particular comes back
// as 403 with a rate reason.
func classifyReason(reason string) string {
	switch strings.ToLower(reason) {
	case "userratelimitexceeded", "ratelimitexceeded", "quotaexceeded":
		return ErrCodeRateLimited
	case "invalidsharingrequest", "invalid":
		return ErrCodeEmailInvalid
	case "notfound":
		return ErrCodeNotFound
	case "insufficientpermissions", "forbidden", "appnotauthorizedtofile":
		return ErrCodePermissionDenied
	default:
		return ""
	}
}

// ErrorCode extracts the classification from an error returned by this
// client. Non-API errors (timeouts, connection resets) report UNKNOWN.
func ErrorCode(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode
	}
	return ErrCodeUnknown
}
