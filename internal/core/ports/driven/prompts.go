package driven

// PromptStore provides access to LLM prompt templates.
// Implementations may load prompts from files or embed them in the binary.
type PromptStore interface {
	// Load returns the prompt template for the given name.
	// Implementations fall back to a built-in default when one exists.
	Load(name string) (string, error)

	// Reload clears any cached prompts, forcing fresh loads on next access.
	Reload()
}

// Well-known prompt names.
const (
	// PromptQueryExpand restates a search query to broaden recall.
	// The template has no placeholders; the query is sent as the user turn.
	PromptQueryExpand = "query_expand"

	// PromptChunkSuggest asks for chunk boundaries over one chapter.
	// The template is the system prompt; the chapter payload is the user turn.
	PromptChunkSuggest = "chunk_suggest"

	// PromptSummarise summarises a result set.
	// The template expects one %s placeholder for the query.
	PromptSummarise = "summarise"
)
