package models

// KnowledgeEntry is one unit of the support knowledge base. Entries are
// immutable after load and owned by the knowledge index.
type KnowledgeEntry struct {
	ID        string    `json:"id"`
	Category  string    `json:"category"`
	Keywords  []string  `json:"keywords"`
	Answer    string    `json:"answer"`
	Embedding []float32 `json:"embedding,omitempty"`
}

// MatchKind says which retrieval pass produced a match.
type MatchKind string

const (
	MatchExact    MatchKind = "exact"
	MatchCategory MatchKind = "category"
	MatchFuzzy    MatchKind = "fuzzy"
	MatchSemantic MatchKind = "semantic"
)

// RetrievalMatch is a ranked hit produced for one query. Score is in [0,1].
type RetrievalMatch struct {
	Entry *KnowledgeEntry
	Kind  MatchKind
	Score float64
}
