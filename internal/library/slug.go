package library

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Slugify converts text into a lowercase, hyphenated, URL-safe token.
// Accents are folded ("Café" becomes "cafe") and punctuation is dropped.
func Slugify(text string) string {
	fold := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(fold, text)
	if err != nil {
		folded = text
	}

	var b strings.Builder
	b.Grow(len(folded))
	pendingHyphen := false
	for _, r := range strings.ToLower(folded) {
		switch {
		case r == '&':
			if b.Len() > 0 {
				pendingHyphen = true
			}
			writeSlugPart(&b, "and", &pendingHyphen)
			pendingHyphen = true
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			writeSlugPart(&b, string(r), &pendingHyphen)
		case unicode.IsSpace(r) || r == '-' || r == '_' || r == '/':
			if b.Len() > 0 {
				pendingHyphen = true
			}
		}
	}
	return b.String()
}

func writeSlugPart(b *strings.Builder, s string, pendingHyphen *bool) {
	if *pendingHyphen && b.Len() > 0 {
		b.WriteByte('-')
	}
	*pendingHyphen = false
	b.WriteString(s)
}
