// Package normalize folds visually confusable token names and symbols onto a
// canonical ASCII form so deceptive near-duplicates can be matched by exact
// string equality.
package normalize

import "unicode"

// cyrillicConfusables maps Cyrillic glyphs to the Latin letters they imitate.
// Keys are lower case; input is lower-cased before lookup.
var cyrillicConfusables = map[rune]rune{
	'а': 'a', // U+0430
	'в': 'b', // U+0432
	'с': 'c', // U+0441
	'ԁ': 'd', // U+0501
	'е': 'e', // U+0435
	'ё': 'e', // U+0451
	'һ': 'h', // U+04BB
	'н': 'h', // U+043D
	'і': 'i', // U+0456
	'ї': 'i', // U+0457
	'ј': 'j', // U+0458
	'к': 'k', // U+043A
	'м': 'm', // U+043C
	'о': 'o', // U+043E
	'р': 'p', // U+0440
	'ԛ': 'q', // U+051B
	'г': 'r', // U+0433
	'ѕ': 's', // U+0455
	'т': 't', // U+0442
	'у': 'y', // U+0443
	'ѵ': 'v', // U+0475
	'ԝ': 'w', // U+051D
	'х': 'x', // U+0445
	'ь': 'b', // U+044C
}

// unicodeConfusables maps glyphs from other scripts (Greek, Latin extended,
// fullwidth forms, lookalike digits) to their canonical ASCII letter/digit.
// Fullwidth ranges are filled in by init.
var unicodeConfusables = map[rune]rune{
	// Greek
	'α': 'a', 'β': 'b', 'ε': 'e', 'η': 'n', 'ι': 'i', 'κ': 'k',
	'ν': 'v', 'ο': 'o', 'ρ': 'p', 'τ': 't', 'υ': 'u', 'χ': 'x',
	'ω': 'w', 'γ': 'y',

	// Latin extended vowels
	'à': 'a', 'á': 'a', 'â': 'a', 'ã': 'a', 'ä': 'a', 'å': 'a', 'ā': 'a', 'ă': 'a', 'ą': 'a',
	'è': 'e', 'é': 'e', 'ê': 'e', 'ë': 'e', 'ē': 'e', 'ĕ': 'e', 'ė': 'e', 'ę': 'e', 'ě': 'e',
	'ì': 'i', 'í': 'i', 'î': 'i', 'ï': 'i', 'ĩ': 'i', 'ī': 'i', 'ĭ': 'i', 'į': 'i', 'ı': 'i',
	'ò': 'o', 'ó': 'o', 'ô': 'o', 'õ': 'o', 'ö': 'o', 'ø': 'o', 'ō': 'o', 'ŏ': 'o', 'ő': 'o',
	'ù': 'u', 'ú': 'u', 'û': 'u', 'ü': 'u', 'ũ': 'u', 'ū': 'u', 'ŭ': 'u', 'ů': 'u', 'ű': 'u', 'ų': 'u',

	// Latin extended consonants
	'ç': 'c', 'ć': 'c', 'ĉ': 'c', 'ċ': 'c', 'č': 'c',
	'ď': 'd', 'đ': 'd', 'ð': 'd',
	'ĝ': 'g', 'ğ': 'g', 'ġ': 'g', 'ģ': 'g',
	'ĥ': 'h', 'ħ': 'h',
	'ĵ': 'j',
	'ķ': 'k',
	'ĺ': 'l', 'ļ': 'l', 'ľ': 'l', 'ŀ': 'l', 'ł': 'l',
	'ñ': 'n', 'ń': 'n', 'ņ': 'n', 'ň': 'n', 'ŋ': 'n',
	'ŕ': 'r', 'ŗ': 'r', 'ř': 'r',
	'ś': 's', 'ŝ': 's', 'ş': 's', 'š': 's',
	'ţ': 't', 'ť': 't', 'ŧ': 't',
	'ŵ': 'w',
	'ý': 'y', 'ÿ': 'y', 'ŷ': 'y',
	'ź': 'z', 'ż': 'z', 'ž': 'z',
}

// invisibleRunes are stripped even when the general category filter would let
// them through.
var invisibleRunes = map[rune]struct{}{
	' ': {}, // no-break space
	'­': {}, // soft hyphen
	'᠎': {}, // mongolian vowel separator
	'​': {}, // zero width space
	'‌': {}, // zero width non-joiner
	'‍': {}, // zero width joiner
	'‎': {}, // left-to-right mark
	'‏': {}, // right-to-left mark
	'‪': {}, // bidi embedding/override block
	'‫': {},
	'‬': {},
	'‭': {},
	'‮': {},
	' ': {}, // narrow no-break space
	' ': {}, // medium mathematical space
	'⁠': {}, // word joiner
	'⁡': {}, // invisible function application
	'⁢': {},
	'⁣': {},
	'⁤': {},
	'　': {}, // ideographic space
	'\uFEFF': {}, // zero width no-break space / BOM
}

func init() {
	// Em/en spaces and friends, U+2000..U+200A.
	for r := ' '; r <= ' '; r++ {
		invisibleRunes[r] = struct{}{}
	}
	// Fullwidth Latin letters and digits.
	for r := rune(0xff41); r <= 0xff5a; r++ { // ａ..ｚ
		unicodeConfusables[r] = 'a' + (r - 0xff41)
	}
	for r := rune(0xff10); r <= 0xff19; r++ { // ０..９
		unicodeConfusables[r] = '0' + (r - 0xff10)
	}
}

// Text normalizes text to canonical lower-case ASCII: confusable glyphs are
// folded via the Cyrillic and multi-script tables, then separator and
// control/format characters plus the fixed invisible set are stripped. When
// preserveCase is true the original per-character uppercase-ness is re-applied
// onto the surviving characters.
func Text(text string, preserveCase bool) string {
	out := make([]rune, 0, len(text))

	for _, r := range text {
		wasUpper := unicode.IsUpper(r)
		low := unicode.ToLower(r)

		if mapped, ok := cyrillicConfusables[low]; ok {
			low = mapped
		} else if mapped, ok := unicodeConfusables[low]; ok {
			low = mapped
		}

		if _, invisible := invisibleRunes[low]; invisible {
			continue
		}
		// Separators, controls, format chars, surrogates, unassigned, private
		// use and combining marks carry no name signal.
		if !unicode.IsGraphic(low) || unicode.In(low, unicode.Z, unicode.Mn) {
			continue
		}

		if preserveCase && wasUpper {
			low = unicode.ToUpper(low)
		}
		out = append(out, low)
	}

	return string(out)
}

// Name normalizes a display name or symbol. Case is preserved only for short
// stylized brands: at most 4 characters with exactly one upper-case and more
// than one lower-case character ("Boom"). For acronyms ("BOOM") and longer
// names, case carries no signal and is folded away.
func Name(name string) string {
	return Text(name, preserveNameCase(name))
}

func preserveNameCase(name string) bool {
	runes := []rune(name)
	if len(runes) > 4 {
		return false
	}

	upper, lower := 0, 0
	for _, r := range runes {
		switch {
		case unicode.IsUpper(r):
			upper++
		case unicode.IsLower(r):
			lower++
		}
	}
	return upper == 1 && lower > 1
}

// FieldImpersonates reports whether candidate is a deceptive near-duplicate of
// reference in a single field: equal after normalization but not equal raw.
// Exact raw matches are legitimate re-listings, not disguises.
func FieldImpersonates(candidate, reference string) bool {
	if candidate == reference {
		return false
	}
	return Name(candidate) == Name(reference)
}

// Impersonates reports whether the candidate name/symbol pair deceptively
// matches the reference pair. Fields are compared independently; either one
// matching is enough.
func Impersonates(candName, candSymbol, refName, refSymbol string) bool {
	return FieldImpersonates(candName, refName) || FieldImpersonates(candSymbol, refSymbol)
}
