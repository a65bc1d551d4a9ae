package reasoning

import (
	"strings"
	"unicode/utf8"

	"github.com/poiesic/lexrag/core"
)

const chainPreviewLength = 500

// FormatThinkingChain renders a human-readable summary of a reasoning run.
// Analysis and answer are previewed; the rewriting output is shown in full.
func FormatThinkingChain(chain *core.ThinkingChain) string {
	if chain == nil {
		return "Aucune réflexion disponible"
	}

	heavy := strings.Repeat("=", 70)
	light := strings.Repeat("-", 70)

	var b strings.Builder
	b.WriteString("\n" + heavy + "\nCHAÎNE DE RÉFLEXION COMPLÈTE\n" + heavy + "\n\n")

	section := func(title, body string, preview bool) {
		if body == "" {
			return
		}
		if preview && utf8.RuneCountInString(body) > chainPreviewLength {
			body = string([]rune(body)[:chainPreviewLength]) + "..."
		}
		b.WriteString(title + ":\n")
		if title != "QUESTION ORIGINALE" {
			b.WriteString(light + "\n")
		}
		b.WriteString(body + "\n\n")
	}

	section("QUESTION ORIGINALE", chain.OriginalQuery, false)
	section("1. REFORMULATION", chain.QueryRewriting, false)
	if len(chain.Queries) > 0 {
		section("REQUÊTES DE RECHERCHE", strings.Join(chain.Queries, "\n"), false)
	}
	section("2. ANALYSE JURIDIQUE", chain.LegalAnalysis, true)
	section("3. RÉPONSE FINALE", chain.FinalAnswer, true)
	return b.String()
}
