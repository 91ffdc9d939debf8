package domain

// ContainsCJK reports whether input contains any CJK ideograph, kana, Hangul syllable, or CJK
// punctuation/symbol codepoint. This is narrower than containsDisallowedScripts: it exists
// specifically for the writegate's reject_cjk check and other CJK-only call sites, distinct
// from the general English-script gate.
func ContainsCJK(input string) bool {
	for _, ch := range input {
		switch {
		case ch >= 0x3000 && ch <= 0x303F: // CJK symbols and punctuation
			return true
		case ch >= 0x3040 && ch <= 0x309F: // Hiragana
			return true
		case ch >= 0x30A0 && ch <= 0x30FF: // Katakana
			return true
		case ch >= 0x4E00 && ch <= 0x9FFF: // CJK unified ideographs
			return true
		case ch >= 0xAC00 && ch <= 0xD7AF: // Hangul syllables
			return true
		}
	}
	return false
}
