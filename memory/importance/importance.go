// Package importance implements the gate that decides whether a candidate
// utterance is worth persisting to long-term memory.
//
// The decision is a two-stage strategy: cheap deterministic prefilters run
// first, then an Evaluator chain. The usual chain is a remote judge
// wrapped by a local heuristic fallback, so a failing or slow judge
// degrades the decision quality but never surfaces an error to callers.
package importance

import (
	"context"
	"log"
	"strings"
	"unicode"
	"unicode/utf8"
)

// MinLength is the minimum candidate length, in characters after
// trimming, below which a candidate is rejected outright.
const MinLength = 10

// Evaluator judges whether a candidate is significant enough to keep.
type Evaluator interface {
	Evaluate(ctx context.Context, candidate string) (bool, error)
}

// trivialPatterns are conversational fillers that are never worth
// remembering, matched case-insensitively on word boundaries.
var trivialPatterns = []string{
	"hello", "hi", "hey", "how are you", "good morning", "good night",
	"thanks", "thank you", "bye", "goodbye", "see you", "ok", "okay",
}

// significantKeywords mark candidates the local heuristic accepts:
// identity, emotion, preference, relationship, and achievement terms.
var significantKeywords = []string{
	"love", "hate", "favorite", "important", "remember", "never forget",
	"experience", "story", "memory", "childhood", "family", "friend",
	"dream", "goal", "achievement", "accomplishment", "traumatic",
	"emotional", "significant", "meaningful", "preference", "opinion",
}

// firstPersonPronouns are the subject/possessive forms the heuristic
// treats as a personal revelation signal.
var firstPersonPronouns = []string{
	"i", "i'm", "i've", "i'd", "i'll", "my", "me", "mine", "we", "our",
}

// Gate applies the full admission policy in order: length prefilter,
// trivial-filler prefilter, then the evaluator chain. No error escapes
// Admit; an evaluator failure counts as a rejection.
type Gate struct {
	eval Evaluator
}

// NewGate builds a gate around the given evaluator chain. Passing nil
// uses the local heuristic alone.
func NewGate(eval Evaluator) *Gate {
	if eval == nil {
		eval = Heuristic{}
	}
	return &Gate{eval: eval}
}

// NewJudgedGate builds the standard chain: the given judge first, the
// deterministic heuristic when the judge is unavailable or errors.
func NewJudgedGate(judge Evaluator) *Gate {
	return NewGate(Fallback{Primary: judge, Secondary: Heuristic{}})
}

// Admit reports whether the candidate should be persisted.
func (g *Gate) Admit(ctx context.Context, candidate string) bool {
	if utf8.RuneCountInString(strings.TrimSpace(candidate)) < MinLength {
		return false
	}
	if containsTrivialPattern(candidate) {
		return false
	}
	ok, err := g.eval.Evaluate(ctx, candidate)
	if err != nil {
		// The chain already fell back; a second failure means reject.
		log.Printf("[GATE] Evaluation failed, rejecting candidate: %v", err)
		return false
	}
	return ok
}

// Fallback tries a primary evaluator and, on any error, delegates to a
// secondary one. Context cancellation of the surrounding call is not
// retried against the secondary.
type Fallback struct {
	Primary   Evaluator
	Secondary Evaluator
}

func (f Fallback) Evaluate(ctx context.Context, candidate string) (bool, error) {
	if f.Primary != nil {
		ok, err := f.Primary.Evaluate(ctx, candidate)
		if err == nil {
			return ok, nil
		}
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		log.Printf("[GATE] Primary evaluator failed, using fallback: %v", err)
	}
	if f.Secondary == nil {
		return false, nil
	}
	return f.Secondary.Evaluate(ctx, candidate)
}

// Heuristic is the deterministic local evaluator used when no judge is
// reachable. It accepts candidates containing a significance keyword, or
// a first-person pronoun in a sentence of more than five words.
type Heuristic struct{}

func (Heuristic) Evaluate(_ context.Context, candidate string) (bool, error) {
	lower := strings.ToLower(candidate)

	for _, keyword := range significantKeywords {
		if containsPhrase(lower, keyword) {
			return true, nil
		}
	}

	if len(strings.Fields(candidate)) > 5 {
		for _, pronoun := range firstPersonPronouns {
			if containsPhrase(lower, pronoun) {
				return true, nil
			}
		}
	}

	return false, nil
}

func containsTrivialPattern(candidate string) bool {
	lower := strings.ToLower(candidate)
	for _, pattern := range trivialPatterns {
		if containsPhrase(lower, pattern) {
			return true
		}
	}
	return false
}

// containsPhrase reports whether phrase occurs in lower on word
// boundaries, so "ok" does not match inside "book".
func containsPhrase(lower, phrase string) bool {
	normalized := " " + strings.Join(tokenize(lower), " ") + " "
	return strings.Contains(normalized, " "+phrase+" ")
}

func tokenize(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r) && r != '\''
	})
}
