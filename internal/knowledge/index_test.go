package knowledge

import (
	"os"
	"path/filepath"
	"testing"

	"cloudesk/internal/models"
)

func testEntries() []*models.KnowledgeEntry {
	return []*models.KnowledgeEntry{
		{
			ID:       "billing-001",
			Category: "计费",
			Keywords: []string{"计费模式", "收费", "价格"},
			Answer:   "平台按调用量阶梯计费，支持预付费和后付费两种模式。",
		},
		{
			ID:       "billing-002",
			Category: "计费",
			Keywords: []string{"发票", "开票"},
			Answer:   "发票可在控制台的费用中心自助申请开具。",
		},
		{
			ID:       "api-001",
			Category: "接口",
			Keywords: []string{"限流", "调用频率", "qps"},
			Answer:   "默认每个密钥限制 100 QPS，可工单申请提升。",
		},
	}
}

func TestLookupExact(t *testing.T) {
	idx := NewIndex(testEntries())

	m := idx.LookupExact("计费模式")
	if m == nil {
		t.Fatal("expected exact match")
	}
	if m.Entry.ID != "billing-001" || m.Score != 1.0 || m.Kind != models.MatchExact {
		t.Errorf("unexpected match: %+v", m)
	}

	if m := idx.LookupExact("完全无关的问题"); m != nil {
		t.Errorf("expected no exact match, got %+v", m)
	}
}

func TestLookupExactNormalizes(t *testing.T) {
	idx := NewIndex(testEntries())

	if m := idx.LookupExact("  计费模式？  "); m == nil {
		t.Error("expected punctuation and whitespace to be ignored")
	}
	if m := idx.LookupExact("QPS"); m == nil || m.Entry.ID != "api-001" {
		t.Errorf("expected case-insensitive match on qps, got %+v", m)
	}
}

func TestLookupCategory(t *testing.T) {
	idx := NewIndex(testEntries())

	matches := idx.LookupCategory("想了解一下你们的计费相关问题")
	if len(matches) != 2 {
		t.Fatalf("expected 2 category matches, got %d", len(matches))
	}
	for _, m := range matches {
		if m.Kind != models.MatchCategory {
			t.Errorf("expected category kind, got %s", m.Kind)
		}
	}
	// Equal scores fall back to id ascending.
	if matches[0].Score == matches[1].Score && matches[0].Entry.ID > matches[1].Entry.ID {
		t.Errorf("tie not broken by id ascending: %s before %s", matches[0].Entry.ID, matches[1].Entry.ID)
	}
}

func TestLookupCategoryAmbiguous(t *testing.T) {
	idx := NewIndex(testEntries())

	if matches := idx.LookupCategory("计费和接口都想问"); matches != nil {
		t.Errorf("expected no matches for ambiguous category query, got %d", len(matches))
	}
}

func TestLookupCategorySkipsEmptyNormalizedName(t *testing.T) {
	entries := append(testEntries(), &models.KnowledgeEntry{
		ID:       "junk-001",
		Category: "???",
		Keywords: []string{"noise"},
		Answer:   "不应被返回",
	})
	idx := NewIndex(entries)

	// "???" normalizes to nothing and would otherwise be a substring of
	// every query.
	matches := idx.LookupCategory("想了解一下你们的计费相关问题")
	if len(matches) != 2 {
		t.Fatalf("expected 2 billing matches, got %d", len(matches))
	}
	for _, m := range matches {
		if m.Entry.ID == "junk-001" {
			t.Error("degenerate category must not match")
		}
	}

	if matches := idx.LookupCategory("完全无关的问题"); matches != nil {
		t.Errorf("expected no matches, got %d", len(matches))
	}
}

func TestLookupFuzzy(t *testing.T) {
	idx := NewIndex(testEntries())

	matches := idx.LookupFuzzy("请问价格和收费是怎么算的", 0.3)
	if len(matches) == 0 {
		t.Fatal("expected fuzzy matches")
	}
	if matches[0].Entry.ID != "billing-001" {
		t.Errorf("expected billing-001 first, got %s", matches[0].Entry.ID)
	}
	if matches[0].Kind != models.MatchFuzzy {
		t.Errorf("expected fuzzy kind, got %s", matches[0].Kind)
	}
	// 2 of 3 keywords matched.
	if got := matches[0].Score; got < 0.66 || got > 0.67 {
		t.Errorf("unexpected score %f", got)
	}
}

func TestLookupFuzzyThreshold(t *testing.T) {
	idx := NewIndex(testEntries())

	if matches := idx.LookupFuzzy("请问价格是多少", 0.5); len(matches) != 0 {
		t.Errorf("expected threshold 0.5 to filter 1/3 overlap, got %d matches", len(matches))
	}
}

func TestLookupSemantic(t *testing.T) {
	entries := []*models.KnowledgeEntry{
		{ID: "a-001", Category: "a", Keywords: []string{"x"}, Answer: "A", Embedding: []float32{1, 0, 0}},
		{ID: "a-002", Category: "a", Keywords: []string{"y"}, Answer: "B", Embedding: []float32{0, 1, 0}},
		{ID: "a-003", Category: "a", Keywords: []string{"z"}, Answer: "C", Embedding: []float32{0.9, 0.1, 0}},
	}
	idx := NewIndex(entries)

	matches := idx.LookupSemantic([]float32{1, 0, 0}, 0.7)
	if len(matches) != 2 {
		t.Fatalf("expected 2 semantic matches, got %d", len(matches))
	}
	if matches[0].Entry.ID != "a-001" || matches[1].Entry.ID != "a-003" {
		t.Errorf("unexpected order: %s, %s", matches[0].Entry.ID, matches[1].Entry.ID)
	}
}

func TestLookupSemanticWithoutEmbeddings(t *testing.T) {
	idx := NewIndex(testEntries())

	if idx.HasEmbeddings() {
		t.Fatal("test entries should carry no embeddings")
	}
	if matches := idx.LookupSemantic([]float32{1, 0, 0}, 0.1); matches != nil {
		t.Errorf("expected nil without embeddings, got %d matches", len(matches))
	}
}

func TestLoadJSONAndYAML(t *testing.T) {
	dir := t.TempDir()

	jsonBody := `{"billing":[{"keywords":["计费模式","收费"],"answer":"按量计费"}]}`
	if err := os.WriteFile(filepath.Join(dir, "billing.json"), []byte(jsonBody), 0o644); err != nil {
		t.Fatal(err)
	}
	yamlBody := "api:\n  - keywords: [\"限流\", \"qps\"]\n    answer: \"100 QPS\"\n"
	if err := os.WriteFile(filepath.Join(dir, "api.yaml"), []byte(yamlBody), 0o644); err != nil {
		t.Fatal(err)
	}

	entries, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	// Categories are sorted, so api comes first.
	if entries[0].ID != "api-001" || entries[1].ID != "billing-001" {
		t.Errorf("unexpected ids: %s, %s", entries[0].ID, entries[1].ID)
	}
}

func TestLoadMissingPath(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent")); err == nil {
		t.Fatal("expected error for missing path")
	}
}

func TestStoreSwap(t *testing.T) {
	first := NewIndex(testEntries())
	store := NewStore(first)

	if store.Index() != first {
		t.Fatal("expected initial index")
	}

	second := NewIndex(nil)
	old := store.Swap(second)
	if old != first {
		t.Error("Swap should return the previous index")
	}
	if store.Index() != second {
		t.Error("expected swapped index to be active")
	}
}
