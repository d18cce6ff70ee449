// Package judge reads a model's answer: which Choice the free text names,
// and how much first-token probability mass each Choice received.
package judge

import (
	"regexp"
	"strings"

	"rpsbench/server/game"
	"rpsbench/server/llm"
)

// TokenMap holds, per Choice, the best log-probability among candidate
// tokens that matched it. A missing key means no candidate matched.
type TokenMap map[game.Choice]float64

// Reading is the interpreted form of one trial.
type Reading struct {
	Choice     game.Choice
	Recognized bool
	Tokens     TokenMap
}

// Interpret reads both the response text and the first-token candidates.
func Interpret(text string, cands []llm.TokenLogprob) Reading {
	c, ok := RecognizeText(text)
	return Reading{Choice: c, Recognized: ok, Tokens: BuildTokenMap(cands)}
}

// RecognizeText does a case-insensitive substring search. Precedence is
// fixed (rock, paper, scissors); the first hit wins.
func RecognizeText(text string) (game.Choice, bool) {
	lt := strings.ToLower(text)
	for _, c := range game.All() {
		if strings.Contains(lt, textNeedle(c)) {
			return c, true
		}
	}
	return 0, false
}

func textNeedle(c game.Choice) string {
	switch c {
	case game.Rock:
		return "rock"
	case game.Paper:
		return "paper"
	case game.Scissors:
		return "scissor"
	}
	panic("judge: unhandled choice " + c.String())
}

var wordPatterns = map[game.Choice]*regexp.Regexp{
	game.Rock:     regexp.MustCompile(`\brock\b`),
	game.Paper:    regexp.MustCompile(`\bpaper\b`),
	game.Scissors: regexp.MustCompile(`\b(scissors?|sc)\b`),
}

// prefixes returns the name plus the abbreviations a tokenizer tends to
// split it into.
//
// This is a heuristic, not a classifier: any token starting with "sc"
// (e.g. "scandal") counts as scissors.
func prefixes(c game.Choice) []string {
	switch c {
	case game.Rock:
		return []string{"rock", "roc"}
	case game.Paper:
		return []string{"paper", "pap"}
	case game.Scissors:
		return []string{"scissor", "sc"}
	}
	panic("judge: unhandled choice " + c.String())
}

// MatchToken maps one candidate token onto the vocabulary: whole-word
// match first, then prefix match.
func MatchToken(token string) (game.Choice, bool) {
	t := strings.ToLower(strings.TrimSpace(token))
	if t == "" {
		return 0, false
	}
	for _, c := range game.All() {
		if wordPatterns[c].MatchString(t) {
			return c, true
		}
	}
	for _, c := range game.All() {
		for _, p := range prefixes(c) {
			if strings.HasPrefix(t, p) {
				return c, true
			}
		}
	}
	return 0, false
}

// BuildTokenMap keeps the maximum log-probability per Choice so the most
// probable phrasing is what counts.
func BuildTokenMap(cands []llm.TokenLogprob) TokenMap {
	m := TokenMap{}
	for _, tc := range cands {
		c, ok := MatchToken(tc.Token)
		if !ok {
			continue
		}
		if prev, seen := m[c]; !seen || tc.Logprob > prev {
			m[c] = tc.Logprob
		}
	}
	return m
}
