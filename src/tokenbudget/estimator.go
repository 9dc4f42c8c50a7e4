package tokenbudget

import (
	"strings"
	"unicode"
)

// maxCacheEntries bounds the estimation cache. Once full the cache stops
// admitting new entries rather than evicting; estimation stays correct,
// only repeated work for novel strings is lost.
const maxCacheEntries = 10000

// Estimator converts text into an estimated token count. Estimates are
// deterministic for identical input and only need to be directionally
// consistent, not tokenizer-exact.
type Estimator struct {
	family ModelFamily
	cache  map[string]int
}

// NewEstimator creates an estimator tuned for the given model family.
func NewEstimator(family ModelFamily) *Estimator {
	return &Estimator{
		family: family,
		cache:  make(map[string]int),
	}
}

// EstimateTokens returns the estimated token count for text, caching per
// unique string. Empty text estimates to zero; any non-empty string costs
// at least one token.
func (e *Estimator) EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	if cached, ok := e.cache[text]; ok {
		return cached
	}

	count := e.estimate(text)

	if len(e.cache) < maxCacheEntries {
		e.cache[text] = count
	}
	return count
}

func (e *Estimator) estimate(text string) int {
	words := len(strings.Fields(text))

	special := 0
	for _, r := range text {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && !unicode.IsSpace(r) && r != '_' {
			special++
		}
	}

	specialWeight := float64(special)

	// Code-heavy families tokenize brace and paren dense text into more
	// pieces than prose.
	if e.family == FamilyCodeLlama {
		braces := strings.Count(text, "{") + strings.Count(text, "}") +
			strings.Count(text, "(") + strings.Count(text, ")")
		specialWeight += float64(braces) * 0.5
	}

	estimated := float64(words)*1.3 + specialWeight*0.7

	// Buffer for model-specific tokenization differences.
	count := int(estimated * 1.1)
	if count < 1 {
		count = 1
	}
	return count
}

// CacheSize reports how many strings are currently cached.
func (e *Estimator) CacheSize() int {
	return len(e.cache)
}
