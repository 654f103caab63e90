// Package fields extracts structured fields from OCR full text of Japanese
// identity documents (My Number card, driver's license). Each extractor is a
// pure function over the raw text and fails closed: garbled or missing input
// yields no value, never a guess.
package fields

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"docverify-backend/internal/era"
)

// sp matches the whitespace OCR tends to interleave inside and after labels:
// ASCII whitespace plus the full-width space.
const sp = `[　\s]*`

// eraNames alternation for birth date patterns.
const eraNames = `(明治|大正|昭和|平成|令和)`

// banchiSep matches full-width and half-width hyphen variants in block numbers.
const banchiSep = `[ー－‐\-]`

var (
	nameRe = regexp.MustCompile(`氏` + sp + `名` + sp + `([^\n\r氏住生数個]{1,30})`)

	// Dominant layout on real cards: era date directly suffixed with 生.
	// The trailing (?:[^年]|$) keeps 「…日生年月日」 (start of the 生年月日
	// label) from matching, since RE2 has no lookahead.
	birthSuffixRe = regexp.MustCompile(eraNames + sp + `(\d{1,2})` + sp + `年` + sp + `(\d{1,2})` + sp + `月` + sp + `(\d{1,2})` + sp + `日` + sp + `生(?:[^年]|$)`)

	birthLabelJpRe = regexp.MustCompile(`生` + sp + `年` + sp + `月` + sp + `日` + sp + eraNames + sp + `(\d{1,2})` + sp + `年` + sp + `(\d{1,2})` + sp + `月` + sp + `(\d{1,2})` + sp + `日`)

	birthLabelAdRe = regexp.MustCompile(`生` + sp + `年` + sp + `月` + sp + `日` + sp + `(\d{4})` + sp + `年` + sp + `(\d{1,2})` + sp + `月` + sp + `(\d{1,2})` + sp + `日`)

	// Anchored address: prefecture, then a bounded run up to the block-and-lot
	// number (1-2 or 1-2-3 style), then at most 30 chars of building/room name.
	addressAnchoredRe = regexp.MustCompile(`住` + sp + `所` + sp + `((?:` + prefecturePattern + `)[^\n]{1,60}?\d{1,4}` + banchiSep + `\d{1,4}(?:` + banchiSep + `\d{1,4})?[^\n\r]{0,30})`)

	// Fallback when the prefecture itself was misread: one line after the label.
	addressFallbackRe = regexp.MustCompile(`住` + sp + `所` + sp + `([^\n\r]{10,70})`)

	whitespaceRunRe = regexp.MustCompile(`[　\s]+`)
)

// Name extracts the holder name following the 氏名 label.
func Name(text string) (string, bool) {
	m := nameRe.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	return normalize(m[1]), true
}

// BirthDate extracts the birth date as a zero-padded YYYY-MM-DD string.
// Patterns are tried in order; the 生-suffix form wins over the labeled forms.
func BirthDate(text string) (string, bool) {
	if m := birthSuffixRe.FindStringSubmatch(text); m != nil {
		return eraDate(m[1], m[2], m[3], m[4])
	}
	if m := birthLabelJpRe.FindStringSubmatch(text); m != nil {
		return eraDate(m[1], m[2], m[3], m[4])
	}
	if m := birthLabelAdRe.FindStringSubmatch(text); m != nil {
		year, err := strconv.Atoi(m[1])
		if err != nil {
			return "", false
		}
		return isoDate(year, m[2], m[3])
	}
	return "", false
}

// Address extracts the legal address following the 住所 label.
func Address(text string) (string, bool) {
	if m := addressAnchoredRe.FindStringSubmatch(text); m != nil {
		return normalize(m[1]), true
	}
	m := addressFallbackRe.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	return normalize(m[1]), true
}

func eraDate(name, year, month, day string) (string, bool) {
	y, err := strconv.Atoi(year)
	if err != nil {
		return "", false
	}
	gregorian, ok := era.ToGregorian(name, y)
	if !ok {
		return "", false
	}
	return isoDate(gregorian, month, day)
}

func isoDate(year int, month, day string) (string, bool) {
	m, err := strconv.Atoi(month)
	if err != nil {
		return "", false
	}
	d, err := strconv.Atoi(day)
	if err != nil {
		return "", false
	}
	return fmt.Sprintf("%04d-%02d-%02d", year, m, d), true
}

// normalize trims the captured value and collapses internal whitespace runs
// (including full-width spaces) to single ASCII spaces. Idempotent.
func normalize(s string) string {
	return whitespaceRunRe.ReplaceAllString(strings.TrimSpace(s), " ")
}
