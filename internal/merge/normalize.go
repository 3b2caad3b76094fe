package merge

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var (
	whitespaceRe = regexp.MustCompile(`\s+`)
	billIDRe     = regexp.MustCompile(`^([A-Za-z]+)\s*0*(\d+)$`)
)

// NormalizeName standardizes a name for matching: Unicode NFC, trimmed,
// internal whitespace runs collapsed to single spaces.
func NormalizeName(name string) string {
	name = norm.NFC.String(strings.TrimSpace(name))
	return whitespaceRe.ReplaceAllString(name, " ")
}

// NormalizeBillID standardizes a bill identifier so collector variants of
// the same bill match: "hb1", "HB 001" and "HB  1" all become "HB 1".
// Identifiers outside the letters-then-number shape are only trimmed and
// uppercased.
func NormalizeBillID(id string) string {
	id = whitespaceRe.ReplaceAllString(norm.NFC.String(strings.TrimSpace(id)), " ")
	if m := billIDRe.FindStringSubmatch(id); m != nil {
		return strings.ToUpper(m[1]) + " " + m[2]
	}
	return strings.ToUpper(id)
}
