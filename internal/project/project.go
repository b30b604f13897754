package project

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Project is a designer project as stored in the data store
type Project struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	TemplateID string `json:"templateId"`
	Domain     string `json:"domain,omitempty"`
	CreatedBy  string `json:"createdBy,omitempty"`
}

// FromRecord builds a Project from one record of the projects sheet
func FromRecord(rec map[string]any) (*Project, error) {
	id, ok := CoerceID(rec["id"])
	if !ok {
		return nil, fmt.Errorf("record has no numeric id: %v", rec["id"])
	}

	return &Project{
		ID:         id,
		Name:       stringField(rec, "name"),
		TemplateID: stringField(rec, "templateId"),
		Domain:     stringField(rec, "domain"),
		CreatedBy:  stringField(rec, "createdBy"),
	}, nil
}

// CoerceID converts a JSON id (number or numeric string) to an integer.
// "7", " 7 ", 7 and 7.0 are all the same id.
func CoerceID(v any) (int64, bool) {
	var f float64
	switch id := v.(type) {
	case float64:
		f = id
	case int:
		return int64(id), true
	case int64:
		return id, true
	case json.Number:
		parsed, err := id.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(id), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}

	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	return int64(f), true
}

func stringField(rec map[string]any, key string) string {
	switch v := rec[key].(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	default:
		return fmt.Sprint(v)
	}
}
