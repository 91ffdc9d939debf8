// Package domain implements the pure, non-suspending validation gates shared by the write path
// and the search path: the English-language gate, CJK detection, evidence-substring matching,
// and TTL resolution.
package domain

import (
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// GateKind selects how strict english_gate is: NaturalLanguage additionally runs language
// identification on long, letter-dense text; Identifier only checks script/control/zero-width.
type GateKind int

const (
	NaturalLanguage GateKind = iota
	Identifier
)

// RejectReason is the specific reason english_gate failed.
type RejectReason int

const (
	RejectNone RejectReason = iota
	RejectDisallowedControlChar
	RejectDisallowedZeroWidthChar
	RejectDisallowedScript
	RejectLanguageIDNonEnglish
)

func (r RejectReason) String() string {
	switch r {
	case RejectDisallowedControlChar:
		return "disallowed_control_char"
	case RejectDisallowedZeroWidthChar:
		return "disallowed_zero_width_char"
	case RejectDisallowedScript:
		return "disallowed_script"
	case RejectLanguageIDNonEnglish:
		return "language_id_non_english"
	default:
		return "none"
	}
}

// disallowedZeroWidth lists the zero-width/format characters rejected outright, regardless of
// script: soft hyphen, combining grapheme joiner, arabic letter mark, mongolian vowel
// separator, zero width space/non-joiner/joiner, word joiner, and BOM.
var disallowedZeroWidth = map[rune]bool{
	'­': true,
	'͏': true,
	'؜': true,
	'᠎': true,
	'​': true,
	'‌': true,
	'‍': true,
	'⁠': true,
	'﻿': true,
}

// EnglishGate validates that input is English-only prose (or, for Identifier, just
// script-clean). It NFKC-normalizes first so visually-equivalent characters (e.g. fullwidth
// Latin) compare identically to their canonical forms.
func EnglishGate(input string, kind GateKind) RejectReason {
	normalized := norm.NFKC.String(input)

	if containsDisallowedControls(normalized) {
		return RejectDisallowedControlChar
	}
	if containsDisallowedZeroWidth(normalized) {
		return RejectDisallowedZeroWidthChar
	}
	if containsDisallowedScripts(normalized) {
		return RejectDisallowedScript
	}
	if kind == NaturalLanguage && shouldApplyLID(normalized) && isConfidentlyNonEnglish(normalized) {
		return RejectLanguageIDNonEnglish
	}

	return RejectNone
}

// IsEnglishNaturalLanguage is a convenience wrapper for EnglishGate(input, NaturalLanguage).
func IsEnglishNaturalLanguage(input string) bool {
	return EnglishGate(input, NaturalLanguage) == RejectNone
}

// IsEnglishIdentifier is a convenience wrapper for EnglishGate(input, Identifier).
func IsEnglishIdentifier(input string) bool {
	return EnglishGate(input, Identifier) == RejectNone
}

func containsDisallowedControls(input string) bool {
	for _, ch := range input {
		if !unicode.IsControl(ch) {
			continue
		}
		if ch == '\n' || ch == '\r' || ch == '\t' {
			continue
		}
		return true
	}
	return false
}

func containsDisallowedZeroWidth(input string) bool {
	for _, ch := range input {
		if disallowedZeroWidth[ch] {
			return true
		}
	}
	return false
}

// containsDisallowedScripts allows only Latin, Common, and Inherited script runs (plus plain
// ASCII and whitespace of any script, matching punctuation/symbol/emoji use).
func containsDisallowedScripts(input string) bool {
	for _, ch := range input {
		if ch <= unicode.MaxASCII {
			continue
		}
		if unicode.IsSpace(ch) {
			continue
		}
		if unicode.Is(unicode.Latin, ch) || unicode.Is(unicode.Common, ch) || unicode.Is(unicode.Inherited, ch) {
			continue
		}
		return true
	}
	return false
}

// shouldApplyLID decides whether a string is long and letter-dense enough for language
// identification to be meaningful: at least 32 letters, at least 64 non-space characters, at
// least one whitespace character (rules out single-token identifiers), and letter density at
// or above 0.60.
func shouldApplyLID(input string) bool {
	var letters, nonSpace, whitespace int

	for _, ch := range input {
		if unicode.IsSpace(ch) {
			whitespace++
			continue
		}
		nonSpace++
		if unicode.IsLetter(ch) {
			letters++
		}
	}

	if letters < 32 || nonSpace < 64 || whitespace == 0 {
		return false
	}

	density := float64(letters) / float64(nonSpace)
	return density >= 0.60
}
