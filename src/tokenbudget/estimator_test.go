package tokenbudget

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEstimateTokensBasics(t *testing.T) {
	e := NewEstimator(FamilyLlama)

	assert.Equal(t, 0, e.EstimateTokens(""), "empty text is free")
	assert.GreaterOrEqual(t, e.EstimateTokens("x"), 1, "non-empty text costs at least one token")
	assert.GreaterOrEqual(t, e.EstimateTokens("."), 1)
}

func TestEstimateTokensDeterministic(t *testing.T) {
	e := NewEstimator(FamilyLlama)
	text := "the quick brown fox jumps over the lazy dog, twice!"

	first := e.EstimateTokens(text)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, e.EstimateTokens(text))
	}
}

func TestEstimateScalesWithLength(t *testing.T) {
	e := NewEstimator(FamilyLlama)

	short := e.EstimateTokens("hello world")
	long := e.EstimateTokens("hello world this is a considerably longer sentence with many more words in it")
	assert.Greater(t, long, short)
}

func TestPunctuationCostsExtra(t *testing.T) {
	e := NewEstimator(FamilyLlama)

	plain := e.EstimateTokens("one two three four five")
	punctuated := e.EstimateTokens("one, two; three: four! five?")
	assert.Greater(t, punctuated, plain)
}

func TestCodeFamilyWeighsBraces(t *testing.T) {
	code := "func main() { if ok { run() } }"

	llama := NewEstimator(FamilyLlama).EstimateTokens(code)
	codellama := NewEstimator(FamilyCodeLlama).EstimateTokens(code)
	assert.GreaterOrEqual(t, codellama, llama)
}

func TestEstimatorCaches(t *testing.T) {
	e := NewEstimator(FamilyLlama)

	assert.Equal(t, 0, e.CacheSize())
	e.EstimateTokens("alpha")
	e.EstimateTokens("beta")
	e.EstimateTokens("alpha")
	assert.Equal(t, 2, e.CacheSize(), "identical strings share one cache entry")
}

func TestEstimatorCacheBounded(t *testing.T) {
	e := NewEstimator(FamilyLlama)

	for i := 0; i < maxCacheEntries+50; i++ {
		e.EstimateTokens(fmt.Sprintf("unique string number %d", i))
	}
	assert.Equal(t, maxCacheEntries, e.CacheSize(), "cache stops admitting once full")

	// Strings that missed the cache still estimate, and deterministically.
	overflow := fmt.Sprintf("unique string number %d", maxCacheEntries+10)
	first := e.EstimateTokens(overflow)
	assert.GreaterOrEqual(t, first, 1)
	assert.Equal(t, first, e.EstimateTokens(overflow))
	assert.Equal(t, maxCacheEntries, e.CacheSize(), "overflow estimates never enter the cache")
}
