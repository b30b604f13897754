// Package kv reads and writes the key-value sheet of the data store.
//
// The store keeps one mapping per project under "site:{projectId}" that
// links the project to its provisioned hosting site.
package kv

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"shifttime/internal/sheets"
)

const resource = "kv"

// Forwarder is the subset of the data store gateway used by the store
type Forwarder interface {
	Forward(ctx context.Context, query url.Values, method string, body any) (sheets.Result, error)
}

// Item is one key/value pair sent in an upsert batch
type Item struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

// Store is a thin accessor over the key-value resource
type Store struct {
	gateway Forwarder
}

// NewStore creates a store on top of the data store gateway
func NewStore(gateway Forwarder) *Store {
	return &Store{gateway: gateway}
}

// Get returns the value stored under key.
// A nil value is returned both when the key is absent and when the
// upstream answered with anything but 200.
func (s *Store) Get(ctx context.Context, key string) (any, error) {
	result, err := s.gateway.Forward(ctx, url.Values{
		"res":  {resource},
		"mode": {"get"},
		"key":  {key},
	}, http.MethodGet, nil)
	if err != nil {
		return nil, fmt.Errorf("kv get %q: %w", key, err)
	}

	if result.Status != http.StatusOK {
		return nil, nil
	}

	body, ok := result.Body.(map[string]any)
	if !ok {
		return nil, nil
	}
	return body["value"], nil
}

// List returns the raw listing; callers normalize it with sheets.KeyValues
func (s *Store) List(ctx context.Context) (sheets.Result, error) {
	return s.gateway.Forward(ctx, url.Values{"res": {resource}, "mode": {"list"}}, http.MethodGet, nil)
}

// Upsert writes a batch of items, overwriting existing keys
func (s *Store) Upsert(ctx context.Context, items []Item) (sheets.Result, error) {
	return s.UpsertRaw(ctx, map[string]any{"items": items})
}

// UpsertRaw forwards an upsert body verbatim
func (s *Store) UpsertRaw(ctx context.Context, body any) (sheets.Result, error) {
	if body == nil {
		body = map[string]any{}
	}
	return s.gateway.Forward(ctx, url.Values{"res": {resource}, "mode": {"upsert"}}, http.MethodPost, body)
}

// SiteMapping links a project to its hosting site
type SiteMapping struct {
	SiteID string `json:"siteId"`
	URL    string `json:"url"`
	Name   string `json:"name"`
}

// SiteKey returns the key under which a project's mapping is stored
func SiteKey(projectID int64) string {
	return fmt.Sprintf("site:%d", projectID)
}

// GetSiteMapping returns the mapping for a project, or nil if none is readable
func (s *Store) GetSiteMapping(ctx context.Context, projectID int64) (*SiteMapping, error) {
	value, err := s.Get(ctx, SiteKey(projectID))
	if err != nil {
		return nil, err
	}
	return decodeSiteMapping(value), nil
}

// PutSiteMapping stores the mapping for a project
func (s *Store) PutSiteMapping(ctx context.Context, projectID int64, mapping SiteMapping) (sheets.Result, error) {
	return s.Upsert(ctx, []Item{{Key: SiteKey(projectID), Value: mapping}})
}

// decodeSiteMapping accepts the value either as an object or as the JSON
// text of one, since sheet cells often hold serialized JSON.
func decodeSiteMapping(value any) *SiteMapping {
	var raw []byte
	switch v := value.(type) {
	case nil:
		return nil
	case string:
		if v == "" {
			return nil
		}
		raw = []byte(v)
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return nil
		}
		raw = encoded
	}

	var mapping SiteMapping
	if err := json.Unmarshal(raw, &mapping); err != nil || mapping.SiteID == "" {
		return nil
	}
	return &mapping
}
