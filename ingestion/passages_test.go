package ingestion

import (
	"strings"
	"testing"

	"github.com/poiesic/lexrag/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadPassages_ChunkerFormat(t *testing.T) {
	input := `[
	  {
	    "id": "CT_TN_A113",
	    "text": "Article 113 - La salariée enceinte a droit à un congé de maternité.",
	    "metadata": {
	      "livre": "LIVRE I",
	      "titre": "TITRE II",
	      "chapitre": null,
	      "section": "",
	      "article": "Article 113",
	      "hierarchy_path": "Livre I > Titre II > Article 113"
	    }
	  },
	  {
	    "id": "CT_TN_A5-2",
	    "text": "Article 5-2 ...",
	    "metadata": {"livre": "Livre I", "titre": "Titre I", "article": "Article 5-2"}
	  }
	]`

	passages, err := ReadPassages(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, passages, 2)

	assert.Equal(t, "CT_TN_A113", passages[0].ID)
	assert.Equal(t, core.HierarchyPath{"Livre I", "Titre II", "Article 113"}, passages[0].Path)
	assert.Equal(t, "Article 113", passages[0].Label())

	// No hierarchy_path: built from the non-empty levels
	assert.Equal(t, core.HierarchyPath{"Livre I", "Titre I", "Article 5-2"}, passages[1].Path)
}

func TestReadPassages_FlatFormat(t *testing.T) {
	input := `[{"text": "Le contrat de travail est conclu librement.", "path": ["Livre I", "Article 6"], "source": "Art. 6"}]`

	passages, err := ReadPassages(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, passages, 1)
	assert.Empty(t, passages[0].ID)
	assert.Equal(t, core.HierarchyPath{"Livre I", "Article 6"}, passages[0].Path)
	assert.Equal(t, "Art. 6", passages[0].Source)
}

func TestReadPassages_Invalid(t *testing.T) {
	_, err := ReadPassages(strings.NewReader(`{"id": 1}`))
	assert.Error(t, err)
}

func TestLoadPassages_MissingFile(t *testing.T) {
	_, err := LoadPassages("/nonexistent/chunks.json")
	assert.Error(t, err)
}

func TestCleanText(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"collapses spaces", "le   salarié    a droit", "le salarié a droit"},
		{"collapses blank lines", "alinéa 1\n\n\n\nalinéa 2", "alinéa 1\n\nalinéa 2"},
		{"rejoins hyphenated words", "indem-\n  nité de licenciement", "indemnité de licenciement"},
		{"form feed", "page 1\fpage 2", "page 1\npage 2"},
		{"nfkc", "ﬁn du contrat", "fin du contrat"},
		{"trims", "  texte \n", "texte"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanText(tt.input))
		})
	}
}

func TestNormalizeVector(t *testing.T) {
	assert.Equal(t, []float32{0, 0}, NormalizeVector([]float32{0, 0}))
	assert.Empty(t, NormalizeVector(nil))

	v := NormalizeVector([]float32{3, 4})
	assert.InDelta(t, 0.6, v[0], 1e-6)
	assert.InDelta(t, 0.8, v[1], 1e-6)
}
