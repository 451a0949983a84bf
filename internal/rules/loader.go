package rules

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/qabot/internal/common"
)

// maxWorkbookBytes caps how much of a remote workbook we read.
const maxWorkbookBytes = 32 << 20

// WorkbookLoader returns the raw bytes of an .xlsx workbook.
type WorkbookLoader interface {
	Load(ctx context.Context) ([]byte, error)
	// Describe names the workbook in logs and errors.
	Describe() string
}

// FileLoader reads a workbook from disk.
type FileLoader struct {
	Path string
}

func (l FileLoader) Load(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b, err := os.ReadFile(l.Path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", common.ErrNotFound, l.Path)
	}
	return b, err
}

func (l FileLoader) Describe() string { return l.Path }

// URLLoader downloads a workbook over HTTP, typically a Google Sheets xlsx export.
type URLLoader struct {
	URL        string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewURLLoader(rawURL string, timeout time.Duration, logger *slog.Logger) (*URLLoader, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	exportURL, err := ExportURL(rawURL)
	if err != nil {
		return nil, err
	}
	return &URLLoader{
		URL:        exportURL,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}, nil
}

func (l *URLLoader) Describe() string { return l.URL }

func (l *URLLoader) Load(ctx context.Context) ([]byte, error) {
	reqID := uuid.NewString()
	start := time.Now()
	l.logger.Debug("rules.download.start", "req_id", reqID, "url", l.URL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := l.httpClient.Do(req)
	if err != nil {
		l.logger.Error("rules.download.failed", "req_id", reqID, "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return nil, fmt.Errorf("download workbook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", common.ErrNotFound, l.URL)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		l.logger.Error("rules.download.non_2xx", "req_id", reqID, "status", resp.StatusCode)
		return nil, fmt.Errorf("download workbook: status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	b, err := io.ReadAll(io.LimitReader(resp.Body, maxWorkbookBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read workbook: %w", err)
	}
	if len(b) > maxWorkbookBytes {
		return nil, fmt.Errorf("workbook larger than %d bytes", maxWorkbookBytes)
	}
	l.logger.Info("rules.download.ok", "req_id", reqID, "bytes", len(b), "elapsed_ms", time.Since(start).Milliseconds())
	return b, nil
}

// ExportURL turns a Google Sheets link (".../spreadsheets/d/<id>/edit#gid=...")
// into its xlsx export URL. Other URLs are returned unchanged.
func ExportURL(sheetURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(sheetURL))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", common.NewValidationError(fmt.Sprintf("invalid sheet URL %q", sheetURL))
	}
	if u.Host != "docs.google.com" {
		return u.String(), nil
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i := 1; i+1 < len(parts); i++ {
		if parts[i-1] == "spreadsheets" && parts[i] == "d" && parts[i+1] != "" {
			return fmt.Sprintf("https://docs.google.com/spreadsheets/d/%s/export?format=xlsx", parts[i+1]), nil
		}
	}
	return "", common.NewValidationError(fmt.Sprintf("not a Google Sheets document URL: %q", sheetURL))
}
