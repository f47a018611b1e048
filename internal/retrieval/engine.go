package retrieval

import (
	"context"
	"log/slog"

	"cloudesk/internal/knowledge"
	"cloudesk/internal/models"
)

// Embedder turns text into a vector for semantic lookup. Implemented by
// the llm package; nil disables the semantic pass entirely.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Options configures the multi-pass fallback thresholds.
type Options struct {
	FuzzyThreshold      float64
	SimilarityThreshold float64
	TopK                int
}

// DefaultOptions mirrors the documented defaults.
func DefaultOptions() Options {
	return Options{
		FuzzyThreshold:      0.3,
		SimilarityThreshold: 0.7,
		TopK:                3,
	}
}

// Engine answers user queries from a knowledge Store using a
// deterministic multi-pass fallback: exact, then category, then
// semantic (when an embedder is wired) or lexical fuzzy matching.
// It is read-only; an empty result is a valid outcome, never an error.
type Engine struct {
	store    *knowledge.Store
	embedder Embedder
	opts     Options
}

// NewEngine creates a retrieval engine. embedder may be nil.
func NewEngine(store *knowledge.Store, embedder Embedder, opts Options) *Engine {
	if opts.TopK <= 0 {
		opts.TopK = 3
	}
	return &Engine{store: store, embedder: embedder, opts: opts}
}

// Retrieve runs the fallback passes in order and returns at most TopK
// ranked matches. An empty slice means the knowledge base has no answer
// and the caller should escalate to the model.
func (e *Engine) Retrieve(ctx context.Context, query string) []models.RetrievalMatch {
	idx := e.store.Index()

	if m := idx.LookupExact(query); m != nil {
		return []models.RetrievalMatch{*m}
	}

	if matches := idx.LookupCategory(query); len(matches) > 0 {
		return e.cap(matches)
	}

	// Semantic pass runs only when an embedder is available and the
	// index carries vectors; any failure here falls through to the
	// lexical fuzzy pass instead of surfacing an error.
	if e.embedder != nil && idx.HasEmbeddings() {
		if vec, err := e.embedder.Embed(ctx, query); err != nil {
			slog.Warn("embedding failed, falling back to fuzzy match", "error", err)
		} else if matches := idx.LookupSemantic(vec, e.opts.SimilarityThreshold); len(matches) > 0 {
			return e.cap(matches)
		}
	}

	return e.cap(idx.LookupFuzzy(query, e.opts.FuzzyThreshold))
}

func (e *Engine) cap(matches []models.RetrievalMatch) []models.RetrievalMatch {
	if len(matches) > e.opts.TopK {
		return matches[:e.opts.TopK]
	}
	return matches
}
