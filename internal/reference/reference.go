// Package reference parses and validates Belgian structured payment
// references (gestructureerde mededeling): 12 digits where the last two are a
// modulo-97 check on the first ten.
package reference

import (
	"fmt"
	"regexp"
	"strconv"
)

var (
	// +++123/1234/12345+++ or ***123/1234/12345*** (banks render both).
	delimitedPattern = regexp.MustCompile(`[+*]{3}(\d{3})/(\d{4})/(\d{5})[+*]{3}`)
	boundedPattern   = regexp.MustCompile(`\b\d{12}\b`)
	embeddedPattern  = regexp.MustCompile(`\d{12}`)
)

// Extraction strategies in priority order: the delimited form is trusted as-is,
// then free-standing 12-digit runs, then digit runs embedded in other text.
// The first strategy that yields a reference wins.
var strategies = []func(string) (string, bool){
	extractDelimited,
	extractBounded,
	extractEmbedded,
}

// Extract scans free-text remittance information for a structured reference
// and returns it as a bare 12-digit string.
func Extract(text string) (string, bool) {
	if text == "" {
		return "", false
	}
	for _, strategy := range strategies {
		if ref, ok := strategy(text); ok {
			return ref, true
		}
	}
	return "", false
}

func extractDelimited(text string) (string, bool) {
	m := delimitedPattern.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	// The delimiters already identify this as a structured reference; no
	// checksum is applied to the delimited form.
	return m[1] + m[2] + m[3], true
}

func extractBounded(text string) (string, bool) {
	return firstValid(boundedPattern.FindAllString(text, -1))
}

func extractEmbedded(text string) (string, bool) {
	return firstValid(embeddedPattern.FindAllString(text, -1))
}

func firstValid(candidates []string) (string, bool) {
	for _, c := range candidates {
		if Valid(c) {
			return c, true
		}
	}
	return "", false
}

// Valid reports whether ref is a well-formed structured reference: 12 digits
// whose last two equal the first ten modulo 97, with 0 mapping to 97.
// Malformed input is simply invalid, never an error.
func Valid(ref string) bool {
	if len(ref) != 12 {
		return false
	}
	for i := 0; i < len(ref); i++ {
		if ref[i] < '0' || ref[i] > '9' {
			return false
		}
	}
	base, err := strconv.ParseInt(ref[:10], 10, 64)
	if err != nil {
		return false
	}
	check, err := strconv.ParseInt(ref[10:], 10, 64)
	if err != nil {
		return false
	}
	calc := base % 97
	if calc == 0 {
		calc = 97
	}
	return calc == check
}

// Format renders a 12-digit reference in the delimited +++xxx/xxxx/xxxxx+++
// form used on payment instructions. The input is returned unchanged if it is
// not 12 characters long.
func Format(ref string) string {
	if len(ref) != 12 {
		return ref
	}
	return fmt.Sprintf("+++%s/%s/%s+++", ref[:3], ref[3:7], ref[7:])
}
