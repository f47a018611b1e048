package knowledge

import (
	"math"
	"sort"
	"strings"
	"unicode"

	"cloudesk/internal/models"
)

// Index holds the loaded knowledge entries and answers lexical and
// semantic lookups over them. Entries are immutable after construction,
// so an Index is safe for concurrent readers without locking; swapping
// in a reloaded knowledge base is the Store's job.
type Index struct {
	entries       []*models.KnowledgeEntry
	byKeyword     map[string]*models.KnowledgeEntry
	byCategory    map[string][]*models.KnowledgeEntry
	hasEmbeddings bool
}

// NewIndex builds an Index from the given entries.
func NewIndex(entries []*models.KnowledgeEntry) *Index {
	idx := &Index{
		entries:    entries,
		byKeyword:  make(map[string]*models.KnowledgeEntry),
		byCategory: make(map[string][]*models.KnowledgeEntry),
	}
	for _, e := range entries {
		idx.byCategory[e.Category] = append(idx.byCategory[e.Category], e)
		for _, kw := range e.Keywords {
			key := Normalize(kw)
			if key == "" {
				continue
			}
			// First entry wins on duplicate keywords; loader IDs are
			// assigned in deterministic order so this is stable.
			if _, ok := idx.byKeyword[key]; !ok {
				idx.byKeyword[key] = e
			}
		}
		if len(e.Embedding) > 0 {
			idx.hasEmbeddings = true
		}
	}
	return idx
}

// Len returns the number of entries in the index.
func (idx *Index) Len() int { return len(idx.entries) }

// HasEmbeddings reports whether any entry carries a precomputed embedding.
func (idx *Index) HasEmbeddings() bool { return idx.hasEmbeddings }

// Categories returns the category names present in the index, sorted.
func (idx *Index) Categories() []string {
	out := make([]string, 0, len(idx.byCategory))
	for c := range idx.byCategory {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// LookupExact returns a match when the normalized query equals one of an
// entry's keywords, with score 1.0. Returns nil when no keyword matches.
func (idx *Index) LookupExact(query string) *models.RetrievalMatch {
	key := Normalize(query)
	if key == "" {
		return nil
	}
	if e, ok := idx.byKeyword[key]; ok {
		return &models.RetrievalMatch{Entry: e, Kind: models.MatchExact, Score: 1.0}
	}
	return nil
}

// LookupCategory returns the entries of the single category the query
// mentions, ranked by keyword overlap. When the query names zero or more
// than one category the result is empty and the caller falls through to
// the fuzzy pass.
func (idx *Index) LookupCategory(query string) []models.RetrievalMatch {
	norm := Normalize(query)
	if norm == "" {
		return nil
	}

	var hit string
	for c := range idx.byCategory {
		nc := Normalize(c)
		if nc == "" {
			// A name that normalizes away would match every query.
			continue
		}
		if strings.Contains(norm, nc) {
			if hit != "" {
				return nil // ambiguous
			}
			hit = c
		}
	}
	if hit == "" {
		return nil
	}

	matches := make([]models.RetrievalMatch, 0, len(idx.byCategory[hit]))
	for _, e := range idx.byCategory[hit] {
		matches = append(matches, models.RetrievalMatch{
			Entry: e,
			Kind:  models.MatchCategory,
			Score: keywordOverlap(norm, e.Keywords),
		})
	}
	sortMatches(matches)
	return matches
}

// LookupFuzzy scores every entry by the share of its keywords found in
// the query and keeps those at or above threshold.
func (idx *Index) LookupFuzzy(query string, threshold float64) []models.RetrievalMatch {
	norm := Normalize(query)
	if norm == "" {
		return nil
	}

	var matches []models.RetrievalMatch
	for _, e := range idx.entries {
		score := keywordOverlap(norm, e.Keywords)
		if score >= threshold {
			matches = append(matches, models.RetrievalMatch{
				Entry: e,
				Kind:  models.MatchFuzzy,
				Score: score,
			})
		}
	}
	sortMatches(matches)
	return matches
}

// LookupSemantic scores entries by cosine similarity against the query
// embedding. Entries without embeddings are skipped, so an index loaded
// without vectors simply yields no semantic matches.
func (idx *Index) LookupSemantic(queryEmbedding []float32, threshold float64) []models.RetrievalMatch {
	if len(queryEmbedding) == 0 || !idx.hasEmbeddings {
		return nil
	}

	var matches []models.RetrievalMatch
	for _, e := range idx.entries {
		if len(e.Embedding) != len(queryEmbedding) {
			continue
		}
		score := cosineSimilarity(queryEmbedding, e.Embedding)
		if score >= threshold {
			matches = append(matches, models.RetrievalMatch{
				Entry: e,
				Kind:  models.MatchSemantic,
				Score: score,
			})
		}
	}
	sortMatches(matches)
	return matches
}

// sortMatches orders by score descending, entry id ascending on ties.
func sortMatches(matches []models.RetrievalMatch) {
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].Entry.ID < matches[j].Entry.ID
	})
}

// keywordOverlap returns the fraction of an entry's keywords that occur
// in the normalized query. Substring containment handles CJK text, where
// whitespace tokenization would split nothing.
func keywordOverlap(normQuery string, keywords []string) float64 {
	if len(keywords) == 0 {
		return 0
	}
	matched := 0
	for _, kw := range keywords {
		k := Normalize(kw)
		if k != "" && strings.Contains(normQuery, k) {
			matched++
		}
	}
	return float64(matched) / float64(len(keywords))
}

// Normalize lowercases the text, strips punctuation and symbols, and
// collapses runs of whitespace to a single space.
func Normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	lastSpace := true
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case unicode.IsSpace(r):
			if !lastSpace {
				b.WriteRune(' ')
				lastSpace = true
			}
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			// dropped
		default:
			b.WriteRune(r)
			lastSpace = false
		}
	}
	return strings.TrimRight(b.String(), " ")
}

func cosineSimilarity(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
