// Package nlp enriches fused transactions: it recognizes merchants in
// descriptions with multi-pattern matching plus a fuzzy fallback, and
// offers full-text search over combined results.
package nlp

import (
	"strings"
	"sync"

	"github.com/cloudflare/ahocorasick"
	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/bankfuse/bankfuse/internal/fusion"
)

// Merchant is a known pattern with its display name and category.
type Merchant struct {
	Pattern   string
	CleanName string
	Category  string
}

// Recognition is a merchant hit for one description.
type Recognition struct {
	Merchant   string  `json:"merchant"`
	Category   string  `json:"category,omitempty"`
	Confidence float64 `json:"confidence"`
	Source     string  `json:"source"` // "exact" or "fuzzy"
}

// maxFuzzyDistance bounds the Levenshtein fallback so short descriptions
// cannot match wildly different merchants.
const maxFuzzyDistance = 2

// Recognizer matches descriptions against known merchants. All patterns
// are checked in a single pass through the text, so the pattern count does
// not affect lookup cost.
type Recognizer struct {
	mu        sync.RWMutex
	matcher   *ahocorasick.Matcher
	merchants []Merchant
}

func NewRecognizer(merchants []Merchant) *Recognizer {
	r := &Recognizer{}
	r.Rebuild(merchants)
	return r
}

// Rebuild replaces the pattern set. Patterns are uppercased so matching is
// case-insensitive.
func (r *Recognizer) Rebuild(merchants []Merchant) {
	r.mu.Lock()
	defer r.mu.Unlock()

	kept := make([]Merchant, 0, len(merchants))
	patterns := make([]string, 0, len(merchants))
	for _, m := range merchants {
		pattern := strings.ToUpper(strings.TrimSpace(m.Pattern))
		if pattern == "" {
			continue
		}
		m.Pattern = pattern
		kept = append(kept, m)
		patterns = append(patterns, pattern)
	}

	r.merchants = kept
	if len(patterns) > 0 {
		r.matcher = ahocorasick.NewStringMatcher(patterns)
	} else {
		r.matcher = nil
	}
}

// Recognize returns the best merchant hit for a description, or nil. Exact
// substring hits win; otherwise each word is compared fuzzily against the
// patterns.
func (r *Recognizer) Recognize(description string) *Recognition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.matcher == nil || strings.TrimSpace(description) == "" {
		return nil
	}

	input := strings.ToUpper(description)

	if hits := r.matcher.Match([]byte(input)); len(hits) > 0 {
		// Longest pattern wins when several match.
		best := -1
		for _, idx := range hits {
			if idx < 0 || idx >= len(r.merchants) {
				continue
			}
			if best == -1 || len(r.merchants[idx].Pattern) > len(r.merchants[best].Pattern) {
				best = idx
			}
		}
		if best >= 0 {
			m := r.merchants[best]
			return &Recognition{
				Merchant:   m.CleanName,
				Category:   m.Category,
				Confidence: 1.0,
				Source:     "exact",
			}
		}
	}

	return r.fuzzyRecognize(input)
}

func (r *Recognizer) fuzzyRecognize(input string) *Recognition {
	words := strings.Fields(input)

	bestIdx := -1
	bestRank := maxFuzzyDistance + 1
	for i, m := range r.merchants {
		for _, word := range words {
			dist := fuzzy.LevenshteinDistance(m.Pattern, word)
			if dist < bestRank {
				bestRank = dist
				bestIdx = i
			}
		}
	}
	if bestIdx < 0 {
		return nil
	}

	m := r.merchants[bestIdx]
	return &Recognition{
		Merchant:   m.CleanName,
		Category:   m.Category,
		Confidence: 1.0 - float64(bestRank)/float64(maxFuzzyDistance+1),
		Source:     "fuzzy",
	}
}

// PatternCount reports how many merchants are loaded.
func (r *Recognizer) PatternCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.merchants)
}

// Annotate recognizes every transaction's description. The returned slice
// is index-aligned with the input; entries are nil where nothing matched.
func (r *Recognizer) Annotate(transactions []fusion.Transaction) []*Recognition {
	out := make([]*Recognition, len(transactions))
	for i, tx := range transactions {
		out[i] = r.Recognize(tx.Description)
	}
	return out
}
