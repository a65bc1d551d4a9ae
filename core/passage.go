package core

import (
	"slices"
	"strings"
)

// HierarchyPath locates a passage inside its source document,
// e.g. ["Livre I", "Titre II", "Chapitre 3", "Article 113"].
type HierarchyPath []string

// Depth is the number of levels in the path.
func (p HierarchyPath) Depth() int {
	return len(p)
}

// Leaf returns the most specific label, or "" for an empty path.
func (p HierarchyPath) Leaf() string {
	if len(p) == 0 {
		return ""
	}
	return p[len(p)-1]
}

func (p HierarchyPath) String() string {
	return strings.Join(p, " > ")
}

// Passage is a retrievable unit of source text with its relevance score.
type Passage struct {
	ID     string
	Text   string
	Score  float32
	Path   HierarchyPath
	Source string // Human-facing label, e.g. "Article 113"
}

// Label returns the label used when citing the passage.
func (p Passage) Label() string {
	if p.Source != "" {
		return p.Source
	}
	if leaf := p.Path.Leaf(); leaf != "" {
		return leaf
	}
	return p.ID
}

// HierarchyFilter restricts retrieval to a subtree of the source hierarchy.
// By default Labels is matched as a path prefix; Exact requires the whole
// path to equal Labels.
type HierarchyFilter struct {
	Labels []string
	Exact  bool
}

// IsEmpty reports whether the filter matches everything.
func (f *HierarchyFilter) IsEmpty() bool {
	return f == nil || len(f.Labels) == 0
}

// Matches reports whether path satisfies the filter.
func (f *HierarchyFilter) Matches(path HierarchyPath) bool {
	if f.IsEmpty() {
		return true
	}
	if f.Exact {
		return slices.Equal(f.Labels, []string(path))
	}
	if len(path) < len(f.Labels) {
		return false
	}
	return slices.Equal(f.Labels, []string(path[:len(f.Labels)]))
}
