package knowledge

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"cloudesk/internal/models"
)

// rawEntry is the on-disk shape of one knowledge entry. The file maps
// category names to lists of these.
type rawEntry struct {
	Keywords  []string  `json:"keywords" yaml:"keywords"`
	Answer    string    `json:"answer" yaml:"answer"`
	Embedding []float32 `json:"embedding,omitempty" yaml:"embedding,omitempty"`
}

// Load reads knowledge entries from a .json/.yaml file or from every
// such file in a directory, and assigns deterministic entry IDs of the
// form "<category>-NNN" so ranking tie-breaks are stable across reloads.
func Load(path string) ([]*models.KnowledgeEntry, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat knowledge path: %w", err)
	}

	var files []string
	if info.IsDir() {
		dirEntries, err := os.ReadDir(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read knowledge dir: %w", err)
		}
		for _, de := range dirEntries {
			if de.IsDir() {
				continue
			}
			switch strings.ToLower(filepath.Ext(de.Name())) {
			case ".json", ".yaml", ".yml":
				files = append(files, filepath.Join(path, de.Name()))
			}
		}
		sort.Strings(files)
	} else {
		files = []string{path}
	}

	merged := make(map[string][]rawEntry)
	for _, f := range files {
		if err := loadFile(f, merged); err != nil {
			return nil, err
		}
	}

	categories := make([]string, 0, len(merged))
	for c := range merged {
		categories = append(categories, c)
	}
	sort.Strings(categories)

	var entries []*models.KnowledgeEntry
	for _, c := range categories {
		for i, raw := range merged[c] {
			entries = append(entries, &models.KnowledgeEntry{
				ID:        fmt.Sprintf("%s-%03d", c, i+1),
				Category:  c,
				Keywords:  raw.Keywords,
				Answer:    raw.Answer,
				Embedding: raw.Embedding,
			})
		}
	}
	return entries, nil
}

func loadFile(path string, dst map[string][]rawEntry) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read knowledge file %s: %w", path, err)
	}

	parsed := make(map[string][]rawEntry)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &parsed); err != nil {
			return fmt.Errorf("failed to parse knowledge YAML %s: %w", path, err)
		}
	default:
		if err := json.Unmarshal(data, &parsed); err != nil {
			return fmt.Errorf("failed to parse knowledge JSON %s: %w", path, err)
		}
	}

	for c, list := range parsed {
		dst[c] = append(dst[c], list...)
	}
	return nil
}
