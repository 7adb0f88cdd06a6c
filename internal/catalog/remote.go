// Package catalog implements domain.CatalogRepository for the hosted archive
// backend and for a local directory of YAML story files.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cgonzaleza9671/estampas/internal/domain"
)

const (
	defaultTimeout = 30 * time.Second
	userAgent      = "Estampas/1.0"
	restPath       = "/rest/v1/"
)

// Tables names the backend tables for each collection
type Tables struct {
	Stories    string
	Recordings string
	Videos     string
	Biography  string
}

// DefaultTables returns the standard table names
func DefaultTables() Tables {
	return Tables{
		Stories:    "stories",
		Recordings: "recordings",
		Videos:     "videos",
		Biography:  "biography",
	}
}

func (t Tables) withDefaults() Tables {
	d := DefaultTables()
	if t.Stories == "" {
		t.Stories = d.Stories
	}
	if t.Recordings == "" {
		t.Recordings = d.Recordings
	}
	if t.Videos == "" {
		t.Videos = d.Videos
	}
	if t.Biography == "" {
		t.Biography = d.Biography
	}
	return t
}

// Remote implements domain.CatalogRepository over the backend's REST interface
type Remote struct {
	baseURL    string
	apiKey     string
	tables     Tables
	httpClient *http.Client
	logger     *slog.Logger
}

var _ domain.CatalogRepository = (*Remote)(nil)

// NewRemote creates a backend client
func NewRemote(baseURL, apiKey string, tables Tables, logger *slog.Logger) *Remote {
	if logger == nil {
		logger = slog.Default()
	}
	return &Remote{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		tables:  tables.withDefaults(),
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
		logger: logger,
	}
}

// doRequest performs an authenticated GET against a table
func (c *Remote) doRequest(ctx context.Context, table string, query url.Values) ([]byte, error) {
	reqURL := c.baseURL + restPath + url.PathEscape(table)
	if query != nil {
		reqURL = fmt.Sprintf("%s?%s", reqURL, query.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if c.apiKey != "" {
		req.Header.Set("apikey", c.apiKey)
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	c.logger.Debug("backend request", "table", table, "url", reqURL)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.logger.Error("backend request failed", "table", table, "error", err)
		return nil, domain.ErrBackendOffline
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, domain.ErrAuthFailed
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("backend request error", "table", table, "status", resp.StatusCode, "body", string(body))
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	return body, nil
}

// fetchRows selects all columns of a table in the given order into dest
func (c *Remote) fetchRows(ctx context.Context, table, order string, dest interface{}) error {
	query := url.Values{}
	query.Set("select", "*")
	if order != "" {
		query.Set("order", order)
	}

	body, err := c.doRequest(ctx, table, query)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(body, dest); err != nil {
		c.logger.Error("JSON parse error", "table", table, "error", err, "bodyLen", len(body))
		return fmt.Errorf("failed to parse %s: %w", table, err)
	}
	return nil
}

// Stories returns all stories, newest first
func (c *Remote) Stories(ctx context.Context) ([]*domain.Story, error) {
	var rows []StoryRow
	if err := c.fetchRows(ctx, c.tables.Stories, "created_at.desc", &rows); err != nil {
		return nil, err
	}
	return MapStories(rows), nil
}

// Recordings returns the audio recordings by title
func (c *Remote) Recordings(ctx context.Context) ([]*domain.MediaItem, error) {
	var rows []MediaRow
	if err := c.fetchRows(ctx, c.tables.Recordings, "title.asc", &rows); err != nil {
		return nil, err
	}
	return MapMedia(rows, domain.MediaTypeRecording), nil
}

// Videos returns the videos by title
func (c *Remote) Videos(ctx context.Context) ([]*domain.MediaItem, error) {
	var rows []MediaRow
	if err := c.fetchRows(ctx, c.tables.Videos, "title.asc", &rows); err != nil {
		return nil, err
	}
	return MapMedia(rows, domain.MediaTypeVideo), nil
}

// Biography returns the biography page assembled from its section rows
func (c *Remote) Biography(ctx context.Context) (*domain.Biography, error) {
	var rows []BiographyRow
	if err := c.fetchRows(ctx, c.tables.Biography, "position.asc", &rows); err != nil {
		return nil, err
	}
	return MapBiography(rows), nil
}
