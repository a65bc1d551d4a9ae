package core

import (
	"testing"
)

func TestIDFromContent(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		wantSame bool
	}{
		{
			name:     "same content produces same ID",
			content:  "test content",
			wantSame: true,
		},
		{
			name:     "empty string",
			content:  "",
			wantSame: true,
		},
		{
			name:     "long content",
			content:  "This is a much longer piece of content that should still hash consistently",
			wantSame: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id1 := IDFromContent(tt.content)
			id2 := IDFromContent(tt.content)

			if tt.wantSame && id1 != id2 {
				t.Errorf("IDFromContent() produced different IDs for same content: %d vs %d", id1, id2)
			}
		})
	}
}

func TestIDFromContent_Different(t *testing.T) {
	id1 := IDFromContent("content1")
	id2 := IDFromContent("content2")

	if id1 == id2 {
		t.Errorf("IDFromContent() produced same ID for different content")
	}
}

func TestPassage_Label(t *testing.T) {
	tests := []struct {
		name    string
		passage Passage
		want    string
	}{
		{
			name:    "source label wins",
			passage: Passage{ID: "p1", Source: "Article 113", Path: HierarchyPath{"Livre I", "Art. 113"}},
			want:    "Article 113",
		},
		{
			name:    "falls back to hierarchy leaf",
			passage: Passage{ID: "p1", Path: HierarchyPath{"Livre I", "Article 5"}},
			want:    "Article 5",
		},
		{
			name:    "falls back to id",
			passage: Passage{ID: "p1"},
			want:    "p1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.passage.Label()
			if got != tt.want {
				t.Errorf("Passage.Label() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestHierarchyPath_String(t *testing.T) {
	path := HierarchyPath{"Livre I", "Titre II", "Article 113"}
	if got := path.String(); got != "Livre I > Titre II > Article 113" {
		t.Errorf("HierarchyPath.String() = %q", got)
	}
	if path.Depth() != 3 {
		t.Errorf("HierarchyPath.Depth() = %d, want 3", path.Depth())
	}
	if (HierarchyPath{}).Leaf() != "" {
		t.Errorf("empty path should have empty leaf")
	}
}

func TestHierarchyFilter_Matches(t *testing.T) {
	path := HierarchyPath{"Livre I", "Titre II", "Article 113"}

	tests := []struct {
		name   string
		filter *HierarchyFilter
		want   bool
	}{
		{name: "nil filter", filter: nil, want: true},
		{name: "empty labels", filter: &HierarchyFilter{}, want: true},
		{name: "prefix match", filter: &HierarchyFilter{Labels: []string{"Livre I", "Titre II"}}, want: true},
		{name: "prefix mismatch", filter: &HierarchyFilter{Labels: []string{"Livre II"}}, want: false},
		{name: "prefix longer than path", filter: &HierarchyFilter{Labels: []string{"Livre I", "Titre II", "Article 113", "x"}}, want: false},
		{name: "exact match", filter: &HierarchyFilter{Labels: []string{"Livre I", "Titre II", "Article 113"}, Exact: true}, want: true},
		{name: "exact rejects prefix", filter: &HierarchyFilter{Labels: []string{"Livre I"}, Exact: true}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.filter.Matches(path); got != tt.want {
				t.Errorf("HierarchyFilter.Matches() = %v, want %v", got, tt.want)
			}
		})
	}
}
