package providerkit

import (
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	titleCaser = cases.Title(language.Und)
	foldCaser  = cases.Fold()
	// đ не раскладывается в NFD, поэтому заменяется отдельно
	latinReplacer = strings.NewReplacer("đ", "dj", "Đ", "dj")
)

// MunicipalityKey - ключ сравнения названий: без диакритики, регистра и лишних пробелов.
// "Opština Vračar", "vracar" и "VRAČAR" дают один ключ.
func MunicipalityKey(name string) string {
	name = strings.TrimSpace(name)
	for _, prefix := range []string{"Opština ", "opština ", "Opstina ", "opstina ", "GO ", "Gradska opština "} {
		name = strings.TrimPrefix(name, prefix)
	}
	name = latinReplacer.Replace(name)

	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, name)
	if err != nil {
		stripped = name
	}
	return strings.Join(strings.Fields(foldCaser.String(stripped)), " ")
}

// CanonicalPlace приводит название к виду "Novi Beograd"
func CanonicalPlace(name string) string {
	name = strings.Join(strings.Fields(name), " ")
	for _, prefix := range []string{"Opština ", "opština ", "Gradska opština "} {
		name = strings.TrimPrefix(name, prefix)
	}
	return titleCaser.String(name)
}

// ParsePrice разбирает цены вида "1.250 EUR", "450 €", "1250,50"
func ParsePrice(text string) float64 {
	var b strings.Builder
	for _, r := range text {
		switch {
		case unicode.IsDigit(r):
			b.WriteRune(r)
		case r == ',':
			b.WriteRune('.')
		}
	}
	value, err := strconv.ParseFloat(b.String(), 64)
	if err != nil {
		return 0
	}
	return value
}

// ParseNumber достает первое число из строки вида "56 m²" или "2.5"
func ParseNumber(text string) (float64, bool) {
	text = strings.ReplaceAll(strings.TrimSpace(text), ",", ".")
	start := strings.IndexFunc(text, unicode.IsDigit)
	if start < 0 {
		return 0, false
	}
	end := start
	for end < len(text) && (unicode.IsDigit(rune(text[end])) || text[end] == '.') {
		end++
	}
	value, err := strconv.ParseFloat(strings.TrimSuffix(text[start:end], "."), 64)
	if err != nil {
		return 0, false
	}
	return value, true
}
