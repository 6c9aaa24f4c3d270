// Package textnorm folds Vietnamese and Latin text into comparison keys.
package textnorm

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// đ/Đ carry a stroke, not a combining mark, so NFD leaves them intact.
var strokeReplacer = strings.NewReplacer("đ", "d", "Đ", "D")

var (
	spaceRun     = regexp.MustCompile(`\s+`)
	nonHeaderRun = regexp.MustCompile(`[^a-z0-9_]`)
)

// RemoveDiacritics strips combining marks: "Nguyễn Văn Đức" -> "Nguyen Van Duc".
func RemoveDiacritics(s string) string {
	if s == "" {
		return ""
	}
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strokeReplacer.Replace(out)
}

// SearchKey is the form used for fuzzy matching: no diacritics, upper case, no whitespace.
func SearchKey(s string) string {
	return spaceRun.ReplaceAllString(strings.ToUpper(RemoveDiacritics(s)), "")
}

// Header normalises a column header: "Số hộ chiếu" -> "so_ho_chieu".
func Header(s string) string {
	h := strings.ToLower(strings.TrimSpace(RemoveDiacritics(s)))
	h = spaceRun.ReplaceAllString(h, "_")
	return nonHeaderRun.ReplaceAllString(h, "")
}

// Lower lowercases and collapses whitespace without touching diacritics, for keyword rules.
func Lower(s string) string {
	return strings.TrimSpace(spaceRun.ReplaceAllString(strings.ToLower(s), " "))
}
