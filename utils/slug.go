// Package utils holds small helpers shared by the hook modules.
package utils

import (
	"strings"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// slugNamespace seeds the name-based ids used for untransliterable names.
var slugNamespace = uuid.MustParse("6f1c5a4e-3b7d-4c8e-9a21-5d0f7e6b2c13")

// transliterations covers letters that do not fold to ASCII by dropping
// marks. Lookups happen after lowercasing and mark removal, so й and ё
// arrive here as и and е.
var transliterations = map[rune]string{
	// Latin
	'ß': "ss", 'æ': "ae", 'œ': "oe", 'ø': "o", 'đ': "d", 'ð': "d",
	'ł': "l", 'þ': "th", 'ı': "i", 'ŋ': "ng",
	// Cyrillic
	'а': "a", 'б': "b", 'в': "v", 'г': "g", 'ґ': "g", 'д': "d", 'е': "e",
	'є': "ie", 'ж': "zh", 'з': "z", 'и': "i", 'і': "i", 'к': "k", 'л': "l",
	'м': "m", 'н': "n", 'о': "o", 'п': "p", 'р': "r", 'с': "s", 'т': "t",
	'у': "u", 'ф': "f", 'х': "kh", 'ц': "ts", 'ч': "ch", 'ш': "sh",
	'щ': "shch", 'ъ': "", 'ы': "y", 'ь': "", 'э': "e", 'ю': "iu", 'я': "ia",
	// Greek
	'α': "a", 'β': "b", 'γ': "g", 'δ': "d", 'ε': "e", 'ζ': "z", 'η': "e",
	'θ': "th", 'ι': "i", 'κ': "k", 'λ': "l", 'μ': "m", 'ν': "n", 'ξ': "x",
	'ο': "o", 'π': "p", 'ρ': "r", 'σ': "s", 'ς': "s", 'τ': "t", 'υ': "y",
	'φ': "ph", 'χ': "kh", 'ψ': "ps", 'ω': "o",
}

// Slugify turns a display name into a URL-safe identifier: accents are
// folded to their base letters, Latin, Cyrillic and Greek letters are
// transliterated, everything is lowercased and each run of characters
// outside [a-z0-9] becomes a single "-". Leading and trailing separators
// are dropped.
//
// A name with visible characters that yields nothing, such as one written
// in Japanese or made of symbols only, gets "server-" followed by eight hex
// digits derived from the name. Only blank input gives "".
//
// Parameters:
//   - s: The display name
//
// Returns:
//   - The slug, e.g. "Café Snake II" -> "cafe-snake-ii", "Сервер" -> "server"
func Slugify(s string) string {
	if strings.TrimSpace(s) == "" {
		return ""
	}

	// transform chains keep internal state, so one is built per call
	fold := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(fold, s)
	if err != nil {
		folded = s
	}

	var b strings.Builder
	b.Grow(len(folded))

	pendingSep := false
	write := func(r rune) {
		if pendingSep && b.Len() > 0 {
			b.WriteByte('-')
		}
		pendingSep = false
		b.WriteRune(r)
	}

	for _, r := range strings.ToLower(folded) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			write(r)
			continue
		}

		if latin, ok := transliterations[r]; ok {
			for _, l := range latin {
				write(l)
			}
			continue
		}

		pendingSep = true
	}

	if b.Len() == 0 {
		return "server-" + uuid.NewSHA1(slugNamespace, []byte(s)).String()[:8]
	}

	return b.String()
}
