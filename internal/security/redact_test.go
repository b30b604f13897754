package security

import "testing"

func TestRedactor(t *testing.T) {
	tests := []struct {
		name    string
		secrets []string
		input   string
		want    string
	}{
		{
			"single secret",
			[]string{"tok123"},
			"Authorization failed for tok123",
			"Authorization failed for ***REDACTED***",
		},
		{
			"webapp url in transport error",
			[]string{"https://script.google.com/macros/s/AKfy/exec"},
			`Get "https://script.google.com/macros/s/AKfy/exec?res=kv&mode=list": dial tcp: timeout`,
			`Get "***REDACTED***?res=kv&mode=list": dial tcp: timeout`,
		},
		{
			"longest secret first",
			[]string{"abc", "abcdef"},
			"value abcdef and abc",
			"value ***REDACTED*** and ***REDACTED***",
		},
		{
			"empty secrets ignored",
			[]string{"", ""},
			"nothing to hide",
			"nothing to hide",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NewRedactor(tt.secrets...).Redact(tt.input); got != tt.want {
				t.Errorf("Redact() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRedactor_Nil(t *testing.T) {
	var r *Redactor
	if got := r.Redact("plain"); got != "plain" {
		t.Errorf("Expected nil redactor to pass text through, got %q", got)
	}
}
