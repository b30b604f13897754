// Package dns points project domains at their hosting sites through the
// Cloudflare API. Linking is optional: without credentials the linker is
// disabled and does nothing.
package dns

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	cf "github.com/cloudflare/cloudflare-go"
)

// autoTTL asks Cloudflare to manage the TTL
const autoTTL = 1

// ErrDisabled is returned when linking is attempted without credentials
var ErrDisabled = errors.New("dns linking is disabled")

// Record is the DNS record created for a project domain
type Record struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Content string `json:"content"`
	Type    string `json:"type"`
	Proxied bool   `json:"proxied"`
}

// recordAPI is the part of the Cloudflare client the linker uses
type recordAPI interface {
	CreateDNSRecord(ctx context.Context, rc *cf.ResourceContainer, params cf.CreateDNSRecordParams) (cf.DNSRecord, error)
}

// Linker creates CNAME records for project domains
type Linker struct {
	api     recordAPI
	zoneID  string
	proxied bool
	logger  *slog.Logger
}

// NewLinker creates a linker. Empty token or zone yields a disabled linker.
func NewLinker(apiToken, zoneID string, proxied bool, logger *slog.Logger) (*Linker, error) {
	if logger == nil {
		logger = slog.Default()
	}

	l := &Linker{zoneID: zoneID, proxied: proxied, logger: logger}
	if apiToken == "" || zoneID == "" {
		return l, nil
	}

	api, err := cf.NewWithAPIToken(apiToken)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Cloudflare API client: %w", err)
	}
	l.api = api
	return l, nil
}

// Enabled reports whether the linker has credentials
func (l *Linker) Enabled() bool {
	return l != nil && l.api != nil
}

// Link creates a CNAME from domain to the host of siteURL
func (l *Linker) Link(ctx context.Context, domain, siteURL string) (*Record, error) {
	if !l.Enabled() {
		return nil, ErrDisabled
	}

	name := NormalizeDomain(domain)
	if name == "" {
		return nil, fmt.Errorf("invalid domain: %q", domain)
	}
	target := HostFromURL(siteURL)
	if target == "" {
		return nil, fmt.Errorf("invalid site url: %q", siteURL)
	}

	proxied := l.proxied
	params := cf.CreateDNSRecordParams{
		Type:    "CNAME",
		Name:    name,
		Content: target,
		TTL:     autoTTL,
		Proxied: &proxied,
	}

	l.logger.Info("Creating DNS record", "name", name, "target", target)

	record, err := l.api.CreateDNSRecord(ctx, cf.ZoneIdentifier(l.zoneID), params)
	if err != nil {
		return nil, fmt.Errorf("failed to create DNS record: %w", err)
	}

	return &Record{
		ID:      record.ID,
		Name:    name,
		Content: target,
		Type:    "CNAME",
		Proxied: proxied,
	}, nil
}

// NormalizeDomain strips scheme, path and trailing dot, and lowercases
func NormalizeDomain(domain string) string {
	d := strings.TrimSpace(strings.ToLower(domain))
	if strings.Contains(d, "://") {
		d = HostFromURL(d)
	}
	if idx := strings.IndexAny(d, "/?#"); idx != -1 {
		d = d[:idx]
	}
	return strings.TrimSuffix(d, ".")
}

// HostFromURL returns the hostname of a URL, accepting bare hosts too
func HostFromURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}
