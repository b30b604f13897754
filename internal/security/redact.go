package security

import (
	"sort"
	"strings"
)

// Redacted replaces every secret found by Redact
const Redacted = "***REDACTED***"

// Redactor removes configured secrets from text. The data store URL is
// treated as a secret: its path carries the web-app deployment id.
type Redactor struct {
	secrets []string
}

// NewRedactor creates a redactor for the given secrets. Empty values are
// ignored; longer secrets are replaced first so that a secret containing
// another one is removed whole.
func NewRedactor(secrets ...string) *Redactor {
	r := &Redactor{}
	for _, s := range secrets {
		if s != "" {
			r.secrets = append(r.secrets, s)
		}
	}
	sort.SliceStable(r.secrets, func(i, j int) bool {
		return len(r.secrets[i]) > len(r.secrets[j])
	})
	return r
}

// Redact returns text with every secret replaced by Redacted
func (r *Redactor) Redact(text string) string {
	if r == nil {
		return text
	}
	for _, secret := range r.secrets {
		text = strings.ReplaceAll(text, secret, Redacted)
	}
	return text
}
