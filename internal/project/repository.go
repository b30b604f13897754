package project

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"shifttime/internal/sheets"
)

const resource = "designer"

var (
	// ErrNotFound means the id is absent from the fetched list
	ErrNotFound = errors.New("project not found")

	// ErrMalformedList means the list came back in an unexpected shape
	ErrMalformedList = errors.New("cannot read projects list")
)

// UpstreamError carries a non-2xx answer from the data store verbatim
type UpstreamError struct {
	Status int
	Body   any
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("data store returned status %d", e.Status)
}

// Forwarder is the subset of the data store gateway used by the repository
type Forwarder interface {
	Forward(ctx context.Context, query url.Values, method string, body any) (sheets.Result, error)
}

// Repository reads and creates projects through the data store.
// The upstream has no lookup by id, so Find scans the full list.
type Repository struct {
	gateway Forwarder
}

// NewRepository creates a repository on top of the data store gateway
func NewRepository(gateway Forwarder) *Repository {
	return &Repository{gateway: gateway}
}

// List returns the raw project listing
func (r *Repository) List(ctx context.Context) (sheets.Result, error) {
	return r.gateway.Forward(ctx, url.Values{"res": {resource}, "mode": {"list"}}, http.MethodGet, nil)
}

// Create forwards a create request; body is passed through unchanged
func (r *Repository) Create(ctx context.Context, body any) (sheets.Result, error) {
	if body == nil {
		body = map[string]any{}
	}
	return r.gateway.Forward(ctx, url.Values{"res": {resource}, "mode": {"create"}}, http.MethodPost, body)
}

// FindRecord returns the raw record whose id equals id after numeric coercion.
// The first match wins when the list holds duplicates.
func (r *Repository) FindRecord(ctx context.Context, id int64) (map[string]any, error) {
	result, err := r.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	if !result.OK() {
		return nil, &UpstreamError{Status: result.Status, Body: result.Body}
	}

	records, ok := sheets.Records(result.Body)
	if !ok {
		return nil, ErrMalformedList
	}

	for _, rec := range records {
		m, ok := rec.(map[string]any)
		if !ok {
			continue
		}
		if recID, ok := CoerceID(m["id"]); ok && recID == id {
			return m, nil
		}
	}

	return nil, fmt.Errorf("project %d: %w", id, ErrNotFound)
}

// Find returns the typed project for id
func (r *Repository) Find(ctx context.Context, id int64) (*Project, error) {
	rec, err := r.FindRecord(ctx, id)
	if err != nil {
		return nil, err
	}
	return FromRecord(rec)
}
