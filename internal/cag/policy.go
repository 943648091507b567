package cag

// Sizing heuristics live here so they can be swapped without touching the
// builder or query logic.

const (
	// TokenEstimateDivisor backs the chars/4 token estimate. Cheap and
	// conservative enough; not a tokenizer call.
	TokenEstimateDivisor = 4

	// MinContextSize is the smallest context the engine is asked for.
	MinContextSize = 2048

	// ContextPadding is added on top of the estimated tokens.
	ContextPadding = 256

	// contextGranularity: the engine allocates context in 256-token steps.
	contextGranularity = 256
)

func EstimateTokens(text string) int {
	return len(text) / TokenEstimateDivisor
}

// ChooseContextSize picks the context window for a build. A caller-supplied
// size is honored verbatim; otherwise max(MinContextSize, estimated+padding),
// rounded up to the engine granularity and capped at the configured maximum.
func ChooseContextSize(estimatedTokens int, requested int, maxContext int) int {
	if requested > 0 {
		return requested
	}
	size := estimatedTokens + ContextPadding
	if size < MinContextSize {
		size = MinContextSize
	}
	size = (size + contextGranularity - 1) / contextGranularity * contextGranularity
	if size > maxContext {
		size = maxContext
	}
	return size
}
