package domain

import "errors"

var (
	// ErrInvalidQuery signals an empty or malformed query. The only error that aborts a search.
	ErrInvalidQuery = errors.New("invalid query")
	// ErrNotFound signals a missing record.
	ErrNotFound = errors.New("not found")

	// ErrEmbeddingUnavailable signals that the embedding provider failed after retries.
	ErrEmbeddingUnavailable = errors.New("embedding unavailable")
	// ErrRetrieverUnavailable signals that the vector store failed after retries.
	ErrRetrieverUnavailable = errors.New("retriever unavailable")
	// ErrCatalogUnavailable signals that a direct product lookup failed for a reason other than a miss.
	ErrCatalogUnavailable = errors.New("catalog unavailable")
	// ErrRetrievalDegraded marks an agent result whose evidence is incomplete.
	ErrRetrievalDegraded = errors.New("retrieval degraded")
	// ErrAnswerGenerationFailed signals an LLM error, timeout or empty completion.
	ErrAnswerGenerationFailed = errors.New("answer generation failed")
	// ErrSessionStore signals a session memory read or write failure.
	ErrSessionStore = errors.New("session store error")
)
