// Package otp detects one-time passcodes in message text.
package otp

import (
	"regexp"
	"strconv"
	"unicode/utf8"
)

const (
	// maxScanRunes bounds how much of a message is inspected.
	maxScanRunes = 2000

	// keywordWindow is how many characters may separate a keyword from
	// the code that follows it.
	keywordWindow = 50
)

var (
	keywordPattern  = regexp.MustCompile(`(?i:code|otp|verify|verification|password|pin|access|token|key)`)
	tokenPattern    = regexp.MustCompile(`\b[A-Z0-9]{4,8}\b`)
	fallbackPattern = regexp.MustCompile(`\b\d{6}\b`)
)

// Extractor finds a passcode in text.
type Extractor interface {
	Extract(text string) (string, bool)
}

// Func adapts a plain function to the Extractor interface.
type Func func(text string) (string, bool)

// Extract calls f(text).
func (f Func) Extract(text string) (string, bool) {
	return f(text)
}

// Chain tries each extractor in order and returns the first hit.
type Chain []Extractor

// Extract implements Extractor.
func (c Chain) Extract(text string) (string, bool) {
	for _, e := range c {
		if e == nil {
			continue
		}
		if code, ok := e.Extract(text); ok {
			return code, true
		}
	}
	return "", false
}

// Heuristic is the default keyword-anchored extractor.
//
// A code is a word of 4 to 8 uppercase letters or digits starting at
// most 50 characters after one of the keywords code, otp, verify,
// verification, password, pin, access, token or key (matched without
// regard to case). Only the first such word is considered; when it is a
// four-digit number between 1950 and 2049 it is taken for a year and
// the keyword rule yields nothing. Otherwise the first standalone
// six-digit number is used.
type Heuristic struct{}

// Extract implements Extractor.
func (Heuristic) Extract(text string) (string, bool) {
	text = truncate(text, maxScanRunes)
	if text == "" {
		return "", false
	}

	if code, ok := anchored(text); ok {
		if !isLikelyYear(code) {
			return code, true
		}
	}

	if code := fallbackPattern.FindString(text); code != "" {
		return code, true
	}
	return "", false
}

// Extract runs the default Heuristic over text.
func Extract(text string) (string, bool) {
	return Heuristic{}.Extract(text)
}

// anchored returns the first token that follows a keyword within the
// keyword window, trying keywords in order of appearance.
func anchored(text string) (string, bool) {
	tokens := tokenPattern.FindAllStringIndex(text, -1)
	if len(tokens) == 0 {
		return "", false
	}
	for _, kw := range keywordPattern.FindAllStringIndex(text, -1) {
		if code, ok := firstAfter(text, kw[1], tokens); ok {
			return code, true
		}
	}
	return "", false
}

// firstAfter returns the first token that starts within the keyword
// window following offset.
func firstAfter(text string, offset int, tokens [][]int) (string, bool) {
	for _, tok := range tokens {
		if tok[0] < offset {
			continue
		}
		if utf8.RuneCountInString(text[offset:tok[0]]) > keywordWindow {
			return "", false
		}
		return text[tok[0]:tok[1]], true
	}
	return "", false
}

func isLikelyYear(s string) bool {
	if len(s) != 4 {
		return false
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return false
	}
	return n >= 1950 && n <= 2049
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
