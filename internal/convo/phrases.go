package convo

import (
	"regexp"
	"strings"
	"unicode"
)

// Trailing prepositions/conjunctions mean the caller is mid-sentence and the
// recognizer endpointed too early.
var continuationTailRe = regexp.MustCompile(`(?i)\b(and|or|but|so|to|of|for|with|at|on|in|about|the|a|an|my|is|was|i|i'm|it's)[\s,]*$`)

// A digit run at the tail usually means a phone number still being read out.
var digitTailRe = regexp.MustCompile(`\d[\d\s\-.]*$`)

var completionRe = regexp.MustCompile(`(?i)\b(that'?s (all|it|everything)|that is (all|it)|nothing else|no,? that'?s it|i'?m (done|all set)|good\s?bye|bye now|bye)\b`)

const shortUtteranceWords = 4

// LooksLikeContinuation reports whether a final transcript probably cut the
// caller off mid-thought, in which case a verbal acknowledgment would talk
// over them.
func LooksLikeContinuation(text string) bool {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return false
	}
	if continuationTailRe.MatchString(trimmed) {
		return true
	}
	if digitTailRe.MatchString(trimmed) {
		return true
	}
	if len(strings.Fields(trimmed)) < shortUtteranceWords && !hasTerminalPunctuation(trimmed) {
		return true
	}
	return false
}

// SignalsCompletion reports whether the caller explicitly said they are done.
func SignalsCompletion(text string) bool {
	return completionRe.MatchString(text)
}

func HasLetter(text string) bool {
	for _, r := range text {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}

func hasTerminalPunctuation(text string) bool {
	switch text[len(text)-1] {
	case '.', '!', '?':
		return true
	}
	return false
}
