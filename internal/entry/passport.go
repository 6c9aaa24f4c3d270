package entry

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	passportDelims = regexp.MustCompile(`[\s\-_.]+`)
	listSeparators = regexp.MustCompile(`[,;\n\r\t]+`)
)

const minPassportLen = 5

// NormalizePassport trims, upper-cases and strips delimiters: "e 123-456" -> "E123456".
func NormalizePassport(p string) string {
	return passportDelims.ReplaceAllString(strings.ToUpper(strings.TrimSpace(p)), "")
}

// ValidPassport reports whether a normalised passport has at least five
// characters, all letters or digits.
func ValidPassport(p string) bool {
	if len([]rune(p)) < minPassportLen {
		return false
	}
	for _, r := range p {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// SplitPassports parses a pasted list (comma, semicolon, tab or newline
// separated) into unique valid passports, first occurrence order.
func SplitPassports(text string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, part := range listSeparators.Split(text, -1) {
		p := NormalizePassport(part)
		if p == "" || !ValidPassport(p) || seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}
