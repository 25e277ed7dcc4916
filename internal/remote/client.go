// Package remote talks to a backing store and a spreadsheet parser over HTTP.
//
// Client implements core.Store against the /api/store endpoints, and
// SpreadsheetParser is the first strategy in the spreadsheet chain. Neither
// retries: a failed commit ends the import run, and a failed parse falls
// back to the in-process reader.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/JonMunkholm/rosterimport/internal/core"
)

// maxResponseBytes caps how much of a response body is read.
const maxResponseBytes = 64 << 20

// Config configures the HTTP client.
//
// Zero values get defaults:
//   - Timeout: 30s
type Config struct {
	// StoreURL is the store base URL, e.g. http://host:8080/api/store.
	StoreURL string

	// ParseURL is the spreadsheet-parse endpoint.
	ParseURL string

	Timeout time.Duration

	// Transport is an optional RoundTripper, mainly for tests.
	Transport http.RoundTripper
}

// Client is an HTTP implementation of core.Store.
type Client struct {
	httpClient *http.Client
	storeURL   string
	parseURL   string
}

var _ core.Store = (*Client)(nil)

// NewClient builds a Client, applying defaults for zero values.
func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	return &Client{
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: cfg.Transport,
		},
		storeURL: strings.TrimRight(cfg.StoreURL, "/"),
		parseURL: cfg.ParseURL,
	}
}

// APIError is a non-2xx response from the remote side.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("remote: status %d: %s", e.StatusCode, e.Message)
}

// BackendMessage returns the detail string sent by the server.
func (e *APIError) BackendMessage() string {
	return e.Message
}

// CommitBatch submits one batch.
func (c *Client) CommitBatch(ctx context.Context, req core.BatchRequest) (*core.BatchResponse, error) {
	var resp core.BatchResponse
	if err := c.doJSON(ctx, http.MethodPost, c.storeURL+"/batches/commit", req, &resp); err != nil {
		return nil, fmt.Errorf("commit batch %d: %w", req.Sequence, err)
	}
	return &resp, nil
}

// ListBatches returns one page of import history.
func (c *Client) ListBatches(ctx context.Context, page, pageSize int) (*core.BatchPage, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("pageSize", strconv.Itoa(pageSize))

	var resp core.BatchPage
	if err := c.doJSON(ctx, http.MethodGet, c.storeURL+"/batches?"+q.Encode(), nil, &resp); err != nil {
		return nil, fmt.Errorf("list batches: %w", err)
	}
	return &resp, nil
}

// RollbackBatch asks the store to reverse a batch.
func (c *Client) RollbackBatch(ctx context.Context, batchID string) (*core.RollbackResult, error) {
	endpoint := c.storeURL + "/batches/" + url.PathEscape(batchID) + "/rollback"
	body := map[string]string{"id": batchID}

	var resp core.RollbackResult
	if err := c.doJSON(ctx, http.MethodPost, endpoint, body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// doJSON sends in (when non-nil) as JSON and decodes a 2xx body into out.
func (c *Client) doJSON(ctx context.Context, method, endpoint string, in, out any) error {
	if c.storeURL == "" {
		return fmt.Errorf("remote: store url not configured")
	}

	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return err
	}

	dec := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes))
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// checkStatus turns a non-2xx response into an *APIError, using the
// {"error": "..."} body when present.
func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	msg := strings.TrimSpace(string(raw))

	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal(raw, &payload) == nil {
		switch {
		case payload.Error != "":
			msg = payload.Error
		case payload.Message != "":
			msg = payload.Message
		}
	}
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}

	return &APIError{StatusCode: resp.StatusCode, Message: msg}
}
