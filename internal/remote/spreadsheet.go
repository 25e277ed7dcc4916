package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/JonMunkholm/rosterimport/internal/core"
)

// ParseResponse is the body returned by the spreadsheet-parse endpoint.
type ParseResponse struct {
	Success   bool             `json:"success"`
	Rows      []core.RawRecord `json:"rows"`
	Columns   []string         `json:"columns"`
	TotalRows int              `json:"total_rows"`
	SheetName string           `json:"sheet_name,omitempty"`
	Warnings  []string         `json:"warnings"`
	Error     string           `json:"error,omitempty"`
}

// SpreadsheetParser sends workbooks to the remote parse endpoint.
type SpreadsheetParser struct {
	client *Client
}

var _ core.SpreadsheetStrategy = (*SpreadsheetParser)(nil)

// SpreadsheetParser returns the remote parse strategy backed by c.
func (c *Client) SpreadsheetParser() *SpreadsheetParser {
	return &SpreadsheetParser{client: c}
}

func (p *SpreadsheetParser) Name() string { return "remote" }

// ParseSpreadsheet posts the raw bytes and returns the parsed sheet.
// Transport failures, non-2xx responses, malformed bodies, and empty results
// are errors.
func (p *SpreadsheetParser) ParseSpreadsheet(ctx context.Context, file core.FileInput) (*core.SheetResult, error) {
	if p.client.parseURL == "" {
		return nil, errors.New("remote: parse url not configured")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.client.parseURL, bytes.NewReader(file.Data))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("Accept", "application/json")
	if file.Name != "" {
		req.Header.Set("X-Filename", file.Name)
	}

	resp, err := p.client.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return nil, err
	}

	var body ParseResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode parse response: %w", err)
	}
	if !body.Success {
		if body.Error == "" {
			body.Error = "parser reported failure"
		}
		return nil, fmt.Errorf("remote parse: %s", body.Error)
	}
	if body.TotalRows != 0 && body.TotalRows != len(body.Rows) {
		return nil, fmt.Errorf("remote parse: total_rows %d does not match %d rows", body.TotalRows, len(body.Rows))
	}
	// An empty sheet is left for the local reader to confirm.
	if len(body.Rows) == 0 {
		return nil, errors.New("remote parse: no rows returned")
	}

	return &core.SheetResult{
		Columns:   body.Columns,
		Rows:      body.Rows,
		SheetName: body.SheetName,
		Warnings:  body.Warnings,
	}, nil
}
