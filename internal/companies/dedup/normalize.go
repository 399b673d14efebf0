// Package dedup merges raw company observations into canonical records.
package dedup

import (
	"strings"
	"unicode"
)

// legalSuffixes are dropped from company names before comparison. Dutch forms
// first, then the common international ones seen in scraped data.
var legalSuffixes = map[string]struct{}{
	"bv": {}, "nv": {}, "vof": {},
	"gmbh": {}, "ltd": {}, "limited": {}, "inc": {},
	"corp": {}, "corporation": {}, "llc": {},
	"holding": {}, "group": {},
}

// NormalizeDomain lowercases a domain candidate and strips scheme, www prefix,
// path, port, and query. Returns "" when nothing domain-like remains.
func NormalizeDomain(raw string) string {
	d := strings.ToLower(strings.TrimSpace(raw))
	if d == "" {
		return ""
	}

	for _, scheme := range []string{"https://", "http://"} {
		d = strings.TrimPrefix(d, scheme)
	}
	d = strings.TrimPrefix(d, "www.")

	for _, sep := range []string{"/", "?", "#", ":"} {
		if idx := strings.Index(d, sep); idx >= 0 {
			d = d[:idx]
		}
	}

	d = strings.TrimSuffix(d, ".")
	if !strings.Contains(d, ".") {
		return ""
	}
	return d
}

// NormalizeName lowercases a company name, strips legal-form suffixes
// ("Acme B.V." and "Acme BV" normalize identically), strips punctuation
// except hyphens, and collapses whitespace.
func NormalizeName(raw string) string {
	lowered := strings.ToLower(strings.TrimSpace(raw))
	if lowered == "" {
		return ""
	}

	// Suffix removal runs on whitespace tokens of the raw lowered name so
	// dotted forms like "b.v." still match.
	tokens := strings.Fields(lowered)
	kept := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if _, ok := legalSuffixes[strings.ReplaceAll(tok, ".", "")]; ok {
			continue
		}
		kept = append(kept, tok)
	}
	// A name made purely of legal forms keeps its tokens rather than
	// normalizing to the empty string.
	if len(kept) == 0 {
		kept = tokens
	}

	var b strings.Builder
	for _, r := range strings.Join(kept, " ") {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-':
			b.WriteRune(r)
		default:
			b.WriteRune(' ')
		}
	}

	return strings.Join(strings.Fields(b.String()), " ")
}
