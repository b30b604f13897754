// Package netlify talks to the hosting provider's REST API: it creates
// sites and uploads ZIP deploys. Errors from the provider are passed back
// with their original status and body; nothing is retried.
package netlify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"shifttime/internal/metrics"
	"shifttime/pkg/archive"
)

const (
	DefaultAPIURL    = "https://api.netlify.com/api/v1"
	MaxResponseBytes = 5 << 20 // 5 MB
	suffixLength     = 6
)

// ErrNotConfigured means no API token is available
var ErrNotConfigured = errors.New("NETLIFY_TOKEN is not set")

// APIError is a non-2xx answer from the provider, kept verbatim
type APIError struct {
	Status int
	Body   any
}

func (e *APIError) Error() string {
	return fmt.Sprintf("netlify returned status %d", e.Status)
}

// Site is the subset of the provider's site descriptor we care about
type Site struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	URL      string `json:"url"`
	SSLURL   string `json:"ssl_url"`
	AdminURL string `json:"admin_url"`
}

// PublicURL prefers the https address
func (s *Site) PublicURL() string {
	if s.SSLURL != "" {
		return s.SSLURL
	}
	return s.URL
}

// Response is a status/body pair passed through from the provider
type Response struct {
	Status int
	Body   any
}

// Options configures a Client
type Options struct {
	Token   string
	Team    string
	APIURL  string
	Timeout time.Duration
	Logger  *slog.Logger
}

// Client is a minimal provider API client
type Client struct {
	http    *http.Client
	apiURL  string
	team    string
	enabled bool
	logger  *slog.Logger
}

// NewClient creates a client. Without a token the client is returned
// disabled and every call fails with ErrNotConfigured.
func NewClient(opts Options) *Client {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	apiURL := strings.TrimRight(opts.APIURL, "/")
	if apiURL == "" {
		apiURL = DefaultAPIURL
	}

	c := &Client{
		apiURL:  apiURL,
		team:    strings.TrimSpace(opts.Team),
		enabled: opts.Token != "",
		logger:  logger,
	}

	if c.enabled {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: opts.Token})
		c.http = oauth2.NewClient(context.Background(), ts)
		c.http.Timeout = opts.Timeout
	}

	return c
}

// Configured reports whether a token is available
func (c *Client) Configured() bool {
	return c.enabled
}

// CreateSite provisions a new site named name. When a team slug is
// configured the site is created inside that team.
func (c *Client) CreateSite(ctx context.Context, name string) (*Site, error) {
	if !c.enabled {
		return nil, ErrNotConfigured
	}

	endpoint := c.apiURL + "/sites"
	if c.team != "" {
		endpoint = c.apiURL + "/" + url.PathEscape(c.team) + "/sites"
	}

	payload, err := json.Marshal(map[string]string{"name": name})
	if err != nil {
		return nil, fmt.Errorf("failed to encode site request: %w", err)
	}

	resp, err := c.do(ctx, http.MethodPost, endpoint, "application/json", payload)
	if err != nil {
		return nil, err
	}
	if resp.Status < 200 || resp.Status >= 300 {
		c.logger.Warn("Site creation rejected", "name", name, "status", resp.Status)
		return nil, &APIError{Status: resp.Status, Body: resp.Body}
	}

	raw, err := json.Marshal(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to re-encode site response: %w", err)
	}
	var site Site
	if err := json.Unmarshal(raw, &site); err != nil || site.ID == "" {
		return nil, fmt.Errorf("unexpected site response: %v", resp.Body)
	}

	c.logger.Info("Site created", "site_id", site.ID, "name", site.Name)
	return &site, nil
}

// Deploy uploads a ZIP archive as a new deploy of siteID and returns the
// provider's answer unchanged.
func (c *Client) Deploy(ctx context.Context, siteID string, zip []byte) (Response, error) {
	if !c.enabled {
		return Response{}, ErrNotConfigured
	}
	if siteID == "" {
		return Response{}, errors.New("site id is required")
	}

	endpoint := c.apiURL + "/sites/" + url.PathEscape(siteID) + "/deploys"
	resp, err := c.do(ctx, http.MethodPost, endpoint, archive.ContentType, zip)
	if err != nil {
		return Response{}, err
	}

	c.logger.Info("Deploy uploaded", "site_id", siteID, "bytes", len(zip), "status", resp.Status)
	return resp, nil
}

func (c *Client) do(ctx context.Context, method, endpoint, contentType string, body []byte) (Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, endpoint, bytes.NewReader(body))
	if err != nil {
		return Response{}, fmt.Errorf("failed to build netlify request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("User-Agent", "shifttime/1.0")

	resp, err := c.http.Do(req)
	if err != nil {
		metrics.ObserveUpstream(metrics.UpstreamNetlify, 0)
		return Response{}, fmt.Errorf("netlify request failed: %w", err)
	}
	defer resp.Body.Close()

	text, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseBytes))
	if err != nil {
		return Response{}, fmt.Errorf("failed to read netlify response: %w", err)
	}
	metrics.ObserveUpstream(metrics.UpstreamNetlify, resp.StatusCode)

	var decoded any
	if err := json.Unmarshal(text, &decoded); err != nil {
		decoded = string(text)
	}
	return Response{Status: resp.StatusCode, Body: decoded}, nil
}

// SiteName builds a provider-safe site name: the prefix, lowercased and
// reduced to [a-z0-9-], followed by a short random suffix.
func SiteName(prefix string) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:suffixLength]

	base := sanitize(prefix)
	if base == "" {
		return "site-" + suffix
	}
	return base + "-" + suffix
}

// sanitize lowercases and replaces anything outside [a-z0-9-] with a hyphen
func sanitize(name string) string {
	sanitized := strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' {
			return r
		}
		if r >= 'A' && r <= 'Z' {
			return r + 32
		}
		return '-'
	}, name)

	for strings.Contains(sanitized, "--") {
		sanitized = strings.ReplaceAll(sanitized, "--", "-")
	}
	sanitized = strings.Trim(sanitized, "-")

	// Provider names are limited to 63 characters including the suffix
	if limit := 63 - suffixLength - 1; len(sanitized) > limit {
		sanitized = strings.TrimRight(sanitized[:limit], "-")
	}
	return sanitized
}
