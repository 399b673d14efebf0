package dedup

import "testing"

func TestNormalizeDomain(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "acme.com", "acme.com"},
		{"uppercase", "ACME.COM", "acme.com"},
		{"https scheme", "https://acme.com", "acme.com"},
		{"http scheme", "http://acme.com", "acme.com"},
		{"www prefix", "www.acme.com", "acme.com"},
		{"scheme www path", "https://www.acme.com/jobs?ref=x", "acme.com"},
		{"port stripped", "acme.com:8080", "acme.com"},
		{"trailing dot", "acme.com.", "acme.com"},
		{"subdomain kept", "careers.acme.com", "careers.acme.com"},
		{"empty", "", ""},
		{"not a domain", "acme", ""},
		{"whitespace only", "   ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeDomain(tt.in); got != tt.want {
				t.Errorf("NormalizeDomain(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "Acme", "acme"},
		{"bv suffix", "Acme BV", "acme"},
		{"dotted bv suffix", "Acme B.V.", "acme"},
		{"limited suffix", "Acme Limited", "acme"},
		{"holding suffix", "Acme Holding", "acme"},
		{"punctuation stripped", "Acme & Sons!", "acme sons"},
		{"hyphen kept", "Smit-Jansen", "smit-jansen"},
		{"whitespace collapsed", "  Acme   Corp  ", "acme"},
		{"suffix only name survives", "Holding B.V.", "holding b v"},
		{"mixed case", "AcMe GmbH", "acme"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeName(tt.in); got != tt.want {
				t.Errorf("NormalizeName(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
