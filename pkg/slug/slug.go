// Package slug turns free-text names into URL slugs and coupon code prefixes.
package slug

import (
	"regexp"
	"strings"
)

var (
	nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)
	translit = strings.NewReplacer(
		"ç", "c", "ğ", "g", "ı", "i", "ö", "o", "ş", "s", "ü", "u",
		"é", "e", "è", "e", "á", "a", "à", "a", "û", "u", "ñ", "n", "ß", "ss",
	)
)

// Generate lowercases name, transliterates common accented letters and
// joins the remaining alphanumeric runs with single hyphens.
//
//	"Summer Sale 2024!" -> "summer-sale-2024"
//	"Çocuk Ürünleri"    -> "cocuk-urunleri"
func Generate(name string) string {
	s := translit.Replace(strings.ToLower(strings.TrimSpace(name)))
	return strings.Trim(nonAlnum.ReplaceAllString(s, "-"), "-")
}

// CodePrefix derives an uppercase coupon code prefix from name, cut at a
// hyphen boundary so it is at most maxLen characters. Empty names give "".
//
//	CodePrefix("Black Friday Mega Deal", 12) -> "BLACK-FRIDAY"
func CodePrefix(name string, maxLen int) string {
	s := strings.ToUpper(Generate(name))
	if maxLen <= 0 || len(s) <= maxLen {
		return s
	}
	cut := s[:maxLen]
	if i := strings.LastIndex(cut, "-"); i > 0 && s[maxLen] != '-' {
		cut = cut[:i]
	}
	return strings.TrimRight(cut, "-")
}
