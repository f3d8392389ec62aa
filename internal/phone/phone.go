// Package phone canonicalizes raw phone strings into comparable digit keys.
package phone

import (
	"regexp"
	"strings"
)

// Number is the result of normalizing a raw phone value. Key is the
// digit-only, country-prefixed form used for cross-source equality
// comparison. Recognized reports whether the input matched a known
// national format; unrecognized keys are best-effort digit extractions
// and still usable for matching, just with lower confidence.
type Number struct {
	Raw        string
	Key        string
	Recognized bool
}

// Normalizer rewrites numbers for a single national convention: a one-digit
// country prefix and a local trunk prefix dialed in-country.
type Normalizer struct {
	CountryPrefix string
	TrunkPrefix   string
}

// Default covers Egyptian numbers: +20 country code, 01x mobile trunk.
var Default = Normalizer{CountryPrefix: "2", TrunkPrefix: "01"}

var (
	angleBrackets = regexp.MustCompile(`<[^>]*>`)
	nonDigits     = regexp.MustCompile(`\D`)
)

// Normalize canonicalizes a raw phone string. PBX annotation markers in
// angle brackets (extension codes like "<142>") are stripped before digit
// extraction. A fully qualified number (country prefix + 11 digits) passes
// through; a local-format number (trunk prefix, 11 digits) is rewritten to
// international form. Anything else degrades to the bare digit string with
// Recognized=false. Never fails.
func (n Normalizer) Normalize(raw string) Number {
	digits := nonDigits.ReplaceAllString(angleBrackets.ReplaceAllString(raw, ""), "")

	full := len(n.CountryPrefix) + 11
	switch {
	case len(digits) == full && strings.HasPrefix(digits, n.CountryPrefix):
		return Number{Raw: raw, Key: digits, Recognized: true}
	case len(digits) == 11 && strings.HasPrefix(digits, n.TrunkPrefix):
		return Number{Raw: raw, Key: n.CountryPrefix + digits, Recognized: true}
	}
	return Number{Raw: raw, Key: digits, Recognized: false}
}

// Normalize canonicalizes raw using the Default convention.
func Normalize(raw string) Number {
	return Default.Normalize(raw)
}

// Key is a shorthand for Normalize(raw).Key.
func Key(raw string) string {
	return Default.Normalize(raw).Key
}
