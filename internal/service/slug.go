package service

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const maxSlugLength = 80

var (
	slugInvalidChars = regexp.MustCompile(`[^a-z0-9\s-]`)
	slugWhitespace   = regexp.MustCompile(`\s+`)
	slugHyphens      = regexp.MustCompile(`-+`)
)

// Slugify 店铺名 → URL 安全的 tenant slug（去除重音符号）
// "Loja da Conceição" → "loja-da-conceicao"
func Slugify(text string) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}

	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if folded, _, err := transform.String(t, text); err == nil {
		text = folded
	}

	text = strings.ToLower(text)
	text = slugInvalidChars.ReplaceAllString(text, "")
	text = slugWhitespace.ReplaceAllString(strings.TrimSpace(text), "-")
	text = slugHyphens.ReplaceAllString(text, "-")
	text = strings.Trim(text, "-")

	if len(text) > maxSlugLength {
		text = strings.TrimRight(text[:maxSlugLength], "-")
	}
	return text
}
