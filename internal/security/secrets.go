// Package security holds checks for the credentials shifttime is given
// and redaction of those credentials from text that leaves the process.
package security

import (
	"fmt"
	"math"
	"strings"
)

const (
	// MinTokenLength is the shortest API token accepted. Provider tokens
	// are far longer; anything below this is a typo or a placeholder.
	MinTokenLength = 16

	// MinEntropy is the Shannon entropy below which a token is reported weak
	MinEntropy = 3.0
)

var placeholderTokens = map[string]bool{
	"token":                 true,
	"secret":                true,
	"password":              true,
	"changeme":              true,
	"your-token":            true,
	"your-netlify-token":    true,
	"replace-with-token":    true,
	"netlify_auth_token":    true,
	"cloudflare_api_token":  true,
	"xxxxxxxxxxxxxxxxxxxxx": true,
}

// ValidateToken rejects empty, short and placeholder API tokens.
// name is used in the error message only.
func ValidateToken(name, token string) error {
	if token == "" {
		return fmt.Errorf("%s is empty", name)
	}
	if len(token) < MinTokenLength {
		return fmt.Errorf("%s too short (minimum %d characters, got %d)", name, MinTokenLength, len(token))
	}

	if IsPlaceholder(token) {
		return fmt.Errorf("%s appears to be a placeholder value", name)
	}

	return nil
}

// IsPlaceholder reports values copied from examples instead of real tokens
func IsPlaceholder(token string) bool {
	lower := strings.ToLower(token)
	if placeholderTokens[lower] {
		return true
	}
	return strings.Contains(lower, "replace") || strings.Contains(lower, "changeme") || strings.Contains(lower, "your-")
}

// IsWeakToken reports tokens that pass validation but look hand-made.
// Used for warnings only.
func IsWeakToken(token string) bool {
	if len(token) < MinTokenLength {
		return true
	}
	if len(strings.Trim(token, string(token[0]))) == 0 {
		return true
	}
	if isSequential(token) {
		return true
	}
	return calculateEntropy(token) < MinEntropy
}

// calculateEntropy computes the Shannon entropy of a string in bits per
// character.
func calculateEntropy(s string) float64 {
	if len(s) == 0 {
		return 0
	}

	freq := make(map[rune]int)
	for _, c := range s {
		freq[c]++
	}

	var entropy float64
	length := float64(len(s))
	for _, count := range freq {
		p := float64(count) / length
		entropy -= p * math.Log2(p)
	}

	return entropy
}

// isSequential checks if more than 70% of neighbouring characters step by one
func isSequential(s string) bool {
	if len(s) < 4 {
		return false
	}

	sequential := 0
	for i := 1; i < len(s); i++ {
		if s[i] == s[i-1]+1 || s[i] == s[i-1]-1 {
			sequential++
		}
	}

	return float64(sequential) > float64(len(s))*0.7
}
