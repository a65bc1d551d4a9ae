package ingestion

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/poiesic/lexrag/core"
)

// chunk is one entry of a chunk file. Both the flat form
// {"id", "text", "path", "source"} and the chunker's metadata form are read.
type chunk struct {
	ID       string        `json:"id"`
	Text     string        `json:"text"`
	Path     []string      `json:"path,omitempty"`
	Source   string        `json:"source,omitempty"`
	Metadata chunkMetadata `json:"metadata"`
}

type chunkMetadata struct {
	Livre         string `json:"livre"`
	Titre         string `json:"titre"`
	Chapitre      string `json:"chapitre"`
	Section       string `json:"section"`
	Article       string `json:"article"`
	HierarchyPath string `json:"hierarchy_path"`
}

func (c chunk) passage() core.Passage {
	p := core.Passage{ID: c.ID, Text: c.Text, Source: c.Source}
	switch {
	case len(c.Path) > 0:
		p.Path = c.Path
	case c.Metadata.HierarchyPath != "":
		for _, label := range strings.Split(c.Metadata.HierarchyPath, ">") {
			if label = strings.TrimSpace(label); label != "" {
				p.Path = append(p.Path, label)
			}
		}
	default:
		m := c.Metadata
		for _, label := range []string{m.Livre, m.Titre, m.Chapitre, m.Section, m.Article} {
			if label = strings.TrimSpace(label); label != "" {
				p.Path = append(p.Path, label)
			}
		}
	}
	if p.Source == "" {
		p.Source = strings.TrimSpace(c.Metadata.Article)
	}
	return p
}

// ReadPassages decodes a JSON array of chunks.
func ReadPassages(r io.Reader) ([]core.Passage, error) {
	var chunks []chunk
	if err := json.NewDecoder(r).Decode(&chunks); err != nil {
		return nil, fmt.Errorf("decode chunks: %w", err)
	}
	passages := make([]core.Passage, len(chunks))
	for i, c := range chunks {
		passages[i] = c.passage()
	}
	return passages, nil
}

// LoadPassages reads a chunk file from disk.
func LoadPassages(path string) ([]core.Passage, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadPassages(f)
}
