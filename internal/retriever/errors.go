package retriever

import "fmt"

// ErrInvalidConfig indicates the retriever was constructed with an unusable
// configuration.
type ErrInvalidConfig struct {
	Msg string
}

func (e *ErrInvalidConfig) Error() string {
	return fmt.Sprintf("invalid retriever configuration: %s", e.Msg)
}

// ErrPromptRender indicates a prompt template could not be rendered.
type ErrPromptRender struct {
	Msg string
	Err error
}

func (e *ErrPromptRender) Error() string {
	return fmt.Sprintf("prompt rendering failed: %s: %v", e.Msg, e.Err)
}

func (e *ErrPromptRender) Unwrap() error { return e.Err }

// ErrGeneration indicates the LLM failed to produce usable SQL.
type ErrGeneration struct {
	Msg string
	Err error
}

func (e *ErrGeneration) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("SQL generation failed: %s", e.Msg)
	}
	return fmt.Sprintf("SQL generation failed: %s: %v", e.Msg, e.Err)
}

func (e *ErrGeneration) Unwrap() error { return e.Err }

// ErrEmbedding indicates the question could not be embedded.
type ErrEmbedding struct {
	Msg string
	Err error
}

func (e *ErrEmbedding) Error() string {
	return fmt.Sprintf("question embedding failed: %s: %v", e.Msg, e.Err)
}

func (e *ErrEmbedding) Unwrap() error { return e.Err }

// ErrQueryExecution indicates the synthesized query failed against the
// vector store.
type ErrQueryExecution struct {
	Query string
	Err   error
}

func (e *ErrQueryExecution) Error() string {
	return fmt.Sprintf("vector store query failed: %v (query: %s)", e.Err, e.Query)
}

func (e *ErrQueryExecution) Unwrap() error { return e.Err }

// ErrMapping indicates a result row could not be mapped to a document.
type ErrMapping struct {
	Msg string
	Err error
}

func (e *ErrMapping) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("result mapping failed: %s", e.Msg)
	}
	return fmt.Sprintf("result mapping failed: %s: %v", e.Msg, e.Err)
}

func (e *ErrMapping) Unwrap() error { return e.Err }
