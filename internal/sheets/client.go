package sheets

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"shifttime/internal/metrics"
)

const (
	UserAgent = "shifttime/1.0"

	// CacheBustParam is appended to every outbound query so intermediate
	// caches in front of the web app never serve a stale list.
	CacheBustParam = "_ts"

	MaxResponseBytes = 10 << 20 // 10 MB
)

// Result is the status/body pair produced by every forwarded call.
// Body is the decoded JSON value, or the raw response text when the
// upstream did not answer with JSON.
type Result struct {
	Status int
	Body   any
}

// OK reports whether the upstream answered with a 2xx status
func (r Result) OK() bool {
	return r.Status >= 200 && r.Status < 300
}

// Client forwards requests to the spreadsheet-backed web app
type Client struct {
	BaseURL string
	HTTP    *http.Client
	Logger  *slog.Logger

	now func() time.Time
}

// NewClient creates a gateway for the given web app URL.
// An empty baseURL yields a client that answers every call with a
// synthetic 500 instead of failing.
func NewClient(baseURL string, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		BaseURL: strings.TrimSpace(baseURL),
		HTTP:    httpClient,
		Logger:  logger,
		now:     time.Now,
	}
}

// Configured reports whether a web app URL is set
func (c *Client) Configured() bool {
	return c.BaseURL != ""
}

// BuildURL merges query onto the base URL, which may already carry
// its own query string.
func (c *Client) BuildURL(query url.Values) string {
	base := c.BaseURL
	encoded := query.Encode()
	if encoded == "" {
		return base
	}

	sep := "?"
	switch {
	case strings.HasSuffix(base, "?") || strings.HasSuffix(base, "&"):
		sep = ""
	case strings.Contains(base, "?"):
		sep = "&"
	}
	return base + sep + encoded
}

// Forward issues one call against the web app.
//
// The returned error is only non-nil for transport or encoding failures;
// upstream error statuses come back inside Result.
func (c *Client) Forward(ctx context.Context, query url.Values, method string, body any) (Result, error) {
	if !c.Configured() {
		return Result{
			Status: http.StatusInternalServerError,
			Body:   map[string]any{"error": "SHEETS_WEBAPP_URL is not set"},
		}, nil
	}

	if method == "" {
		method = http.MethodGet
	}

	q := url.Values{}
	for k, v := range query {
		q[k] = append([]string(nil), v...)
	}
	q.Set(CacheBustParam, strconv.FormatInt(c.now().UnixMilli(), 10))

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return Result{}, fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BuildURL(q), reader)
	if err != nil {
		return Result{}, fmt.Errorf("failed to build sheets request: %w", err)
	}
	req.Header.Set("User-Agent", UserAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		metrics.ObserveUpstream(metrics.UpstreamSheets, 0)
		c.Logger.Error("Sheets request failed", "method", method, "res", query.Get("res"), "mode", query.Get("mode"), "error", err)
		return Result{}, fmt.Errorf("sheets request failed: %w", err)
	}
	defer resp.Body.Close()

	text, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseBytes))
	if err != nil {
		return Result{}, fmt.Errorf("failed to read sheets response: %w", err)
	}

	metrics.ObserveUpstream(metrics.UpstreamSheets, resp.StatusCode)
	if resp.StatusCode >= 400 {
		c.Logger.Warn("Sheets returned error status", "status", resp.StatusCode, "res", query.Get("res"), "mode", query.Get("mode"))
	}

	return Result{Status: resp.StatusCode, Body: decodeBody(text)}, nil
}

// decodeBody parses JSON and falls back to the raw text
func decodeBody(text []byte) any {
	var data any
	if err := json.Unmarshal(text, &data); err != nil {
		return string(text)
	}
	return data
}
