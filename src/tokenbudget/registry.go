// Package tokenbudget enforces per-model token budgets over a conversation:
// it resolves model context windows, estimates token counts, and trims
// message sequences to fit.
package tokenbudget

import (
	"strings"

	"github.com/xandai-project/xandai/src/conversation"
)

// ModelFamily groups models with similar tokenization behavior.
type ModelFamily string

const (
	FamilyLlama     ModelFamily = "llama"
	FamilyCodeLlama ModelFamily = "codellama"
	FamilyQwen      ModelFamily = "qwen"
	FamilyMistral   ModelFamily = "mistral"
	FamilyGemma     ModelFamily = "gemma"
	FamilyPhi       ModelFamily = "phi"
	FamilyUnknown   ModelFamily = "unknown"
)

// minAvailableContext floors the usable budget so a model with a tiny or
// misconfigured window never produces a degenerate budget.
const minAvailableContext = 512

// ModelInfo holds immutable per-model facts used for budgeting.
type ModelInfo struct {
	Name               string
	Family             ModelFamily
	ContextLength      int
	RecommendedReserve int
	SupportsToolCalls  bool

	// PriorityPreservation lists message types that are never evicted
	// when trimming to budget.
	PriorityPreservation []conversation.MessageType
}

// AvailableContext returns the tokens left for the prompt after reserving
// room for the model's own response.
func (m ModelInfo) AvailableContext() int {
	available := m.ContextLength - m.RecommendedReserve
	if available < minAvailableContext {
		available = minAvailableContext
	}
	return available
}

func defaultPriorityPreservation() []conversation.MessageType {
	return []conversation.MessageType{
		conversation.TypeSystemPrompt,
		conversation.TypeCodingRule,
		conversation.TypeContextSummary,
	}
}

func modelInfo(name string, family ModelFamily, contextLength, reserve int) ModelInfo {
	return ModelInfo{
		Name:                 name,
		Family:               family,
		ContextLength:        contextLength,
		RecommendedReserve:   reserve,
		PriorityPreservation: defaultPriorityPreservation(),
	}
}

// knownModels is the static table of well-known local models.
var knownModels = map[string]ModelInfo{
	"llama2":       modelInfo("llama2", FamilyLlama, 4096, 512),
	"llama2:7b":    modelInfo("llama2:7b", FamilyLlama, 4096, 512),
	"llama2:13b":   modelInfo("llama2:13b", FamilyLlama, 4096, 512),
	"llama2:70b":   modelInfo("llama2:70b", FamilyLlama, 4096, 1024),
	"llama3":       modelInfo("llama3", FamilyLlama, 8192, 1024),
	"llama3:8b":    modelInfo("llama3:8b", FamilyLlama, 8192, 1024),
	"llama3:70b":   modelInfo("llama3:70b", FamilyLlama, 8192, 2048),
	"llama3.1":     modelInfo("llama3.1", FamilyLlama, 128000, 4096),
	"llama3.1:8b":  modelInfo("llama3.1:8b", FamilyLlama, 128000, 4096),
	"llama3.1:70b": modelInfo("llama3.1:70b", FamilyLlama, 128000, 8192),
	"llama3.2":     modelInfo("llama3.2", FamilyLlama, 128000, 4096),

	"codellama":     modelInfo("codellama", FamilyCodeLlama, 16384, 2048),
	"codellama:7b":  modelInfo("codellama:7b", FamilyCodeLlama, 16384, 2048),
	"codellama:13b": modelInfo("codellama:13b", FamilyCodeLlama, 16384, 2048),
	"codellama:34b": modelInfo("codellama:34b", FamilyCodeLlama, 16384, 4096),

	"qwen":          modelInfo("qwen", FamilyQwen, 8192, 1024),
	"qwen2":         modelInfo("qwen2", FamilyQwen, 32768, 2048),
	"qwen2.5":       modelInfo("qwen2.5", FamilyQwen, 32768, 2048),
	"qwen2.5-coder": modelInfo("qwen2.5-coder", FamilyQwen, 32768, 2048),

	"mistral":      modelInfo("mistral", FamilyMistral, 8192, 1024),
	"mistral:7b":   modelInfo("mistral:7b", FamilyMistral, 8192, 1024),
	"mixtral":      modelInfo("mixtral", FamilyMistral, 32768, 2048),
	"mixtral:8x7b": modelInfo("mixtral:8x7b", FamilyMistral, 32768, 2048),

	"gemma":     modelInfo("gemma", FamilyGemma, 8192, 1024),
	"gemma:7b":  modelInfo("gemma:7b", FamilyGemma, 8192, 1024),
	"gemma2":    modelInfo("gemma2", FamilyGemma, 8192, 1024),
	"gemma2:9b": modelInfo("gemma2:9b", FamilyGemma, 8192, 1024),

	"phi3":        modelInfo("phi3", FamilyPhi, 4096, 512),
	"phi3:mini":   modelInfo("phi3:mini", FamilyPhi, 4096, 512),
	"phi3:medium": modelInfo("phi3:medium", FamilyPhi, 4096, 512),
}

// familyRule maps a name token to the template model used for any name in
// that family that is not in the static table. Evaluated in order:
// "codellama" must win over "llama".
type familyRule struct {
	token    string
	template string
}

var familyRules = []familyRule{
	{"codellama", "codellama"},
	{"llama", "llama3"},
	{"qwen", "qwen2.5"},
	{"mixtral", "mixtral"},
	{"mistral", "mistral"},
	{"gemma", "gemma2"},
	{"phi", "phi3"},
}

// sizeRule infers a context window from size markers embedded in a model
// name. Evaluated in order, first match wins.
type sizeRule struct {
	tokens        []string
	contextLength int
	reserve       int
}

var sizeRules = []sizeRule{
	{[]string{"128k", "128000"}, 128000, 4096},
	{[]string{"32k", "32768"}, 32768, 2048},
	{[]string{"16k", "16384"}, 16384, 1024},
	{[]string{"8k", "8192"}, 8192, 1024},
}

// Resolve returns model facts for a name, degrading through three stages:
// exact table lookup, family-token match, and size-marker inference with
// conservative defaults. Unknown names never fail.
func Resolve(modelName string) ModelInfo {
	if info, ok := knownModels[modelName]; ok {
		return info
	}

	lower := strings.ToLower(modelName)
	for _, rule := range familyRules {
		if strings.Contains(lower, rule.token) {
			info := knownModels[rule.template]
			info.Name = modelName
			info.PriorityPreservation = defaultPriorityPreservation()
			return info
		}
	}

	return inferModelInfo(modelName, lower)
}

func inferModelInfo(modelName, lower string) ModelInfo {
	contextLength := 4096
	reserve := 512

	for _, rule := range sizeRules {
		if containsAny(lower, rule.tokens) {
			contextLength = rule.contextLength
			reserve = rule.reserve
			break
		}
	}

	// Very large parameter counts need more room for the response.
	switch {
	case containsAny(lower, []string{"70b", "72b", "65b"}):
		reserve = max(reserve*2, 2048)
	case containsAny(lower, []string{"34b", "30b"}):
		reserve = max(reserve*3/2, 1024)
	}

	return modelInfo(modelName, FamilyUnknown, contextLength, reserve)
}

func containsAny(s string, tokens []string) bool {
	for _, token := range tokens {
		if strings.Contains(s, token) {
			return true
		}
	}
	return false
}
