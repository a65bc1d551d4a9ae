package reasoning

import (
	"fmt"
	"strings"

	"github.com/poiesic/lexrag/core"
)

// NoProvisionsMarker replaces the article list when retrieval found nothing.
const NoProvisionsMarker = "[Aucun article pertinent trouvé]"

const rewritePrompt = `Tu es un expert en recherche juridique dans le Code du Travail Tunisien.

%s
**QUESTION ORIGINALE DE L'UTILISATEUR:**
%s

**TON OBJECTIF (Étape 1/3 - Reformuler pour recherche optimale):**

L'utilisateur pose une question en langage naturel. Transforme-la en requêtes de recherche
permettant de trouver les articles pertinents du Code du Travail.

**ANALYSE:**
1. Quelle est la vraie question juridique?
2. Quels concepts juridiques sont concernés?
3. Quels termes juridiques précis utiliser (synonymes, sous-questions)?

**FORMAT DE SORTIE:**
Génère entre 3 et %d requêtes de recherche courtes et précises (5-10 mots chacune).

IMPORTANT: Retourne UNIQUEMENT les requêtes, une par ligne, sans numérotation ni explications.`

const analysisPrompt = `Tu es un assistant juridique expert en Code du Travail Tunisien.

%s
**QUESTION ORIGINALE:**
%s

**ARTICLES DU CODE DU TRAVAIL TROUVÉS:**
%s

**TON ANALYSE JURIDIQUE (Étape 2/3 - Analyser situation + articles):**
%s
**1. COMPRÉHENSION DE LA SITUATION:**
- Quel est le contexte concret et quels sont les faits importants?
- Qui sont les parties impliquées (employeur/employé)?

**2. ANALYSE DES ARTICLES:**
- Que disent précisément ces articles et comment s'appliquent-ils?
- Quelles sont les conditions, exceptions et renvois à d'autres articles?

**3. RAISONNEMENT JURIDIQUE:**
- Quelle est l'interprétation correcte et quels recours sont possibles?

Sois rigoureux, cite les articles, et raisonne de manière méthodique.`

const noProvisionsGuidance = `
Aucune disposition correspondant directement à la question n'a été trouvée.
Dis-le clairement, reste prudent, et n'invente aucun article ni aucune règle.
`

const synthesisPrompt = `Tu es un assistant juridique expert et empathique.

%s
**QUESTION ORIGINALE:**
%s

**TON ANALYSE JURIDIQUE COMPLÈTE:**
%s

**SOURCES DISPONIBLES:**
%s

**TON OBJECTIF (Étape 3/3 - Réponse finale humaine):**

Transforme ton analyse en une réponse claire, humaine et actionnable.

**STRUCTURE DE TA RÉPONSE:**

1. **Explication claire** - ce que dit le Code du Travail, en langage simple.
2. **Droits et obligations** - liste numérotée des droits et obligations de chaque partie.
3. **Prochaines étapes** - actions concrètes, documents à préparer, démarches à suivre.

Cite chaque source par son libellé (par exemple "Article 113"). Ne cite que les sources disponibles.
Recommande un avocat si la situation l'exige.

Écris ta réponse complète maintenant:`

func buildRewritePrompt(question, memoryContext string, maxQueries int) string {
	return fmt.Sprintf(rewritePrompt, memoryContext, question, maxQueries)
}

func buildAnalysisPrompt(question, memoryContext string, passages []core.Passage) string {
	guidance := ""
	if len(passages) == 0 {
		guidance = noProvisionsGuidance
	}
	return fmt.Sprintf(analysisPrompt, memoryContext, question, FormatPassages(passages), guidance)
}

func buildSynthesisPrompt(question, memoryContext, analysis string, passages []core.Passage) string {
	return fmt.Sprintf(synthesisPrompt, memoryContext, question, analysis, citationList(passages))
}

// FormatPassages renders passages as the numbered article list given to the model.
func FormatPassages(passages []core.Passage) string {
	if len(passages) == 0 {
		return NoProvisionsMarker
	}

	blocks := make([]string, len(passages))
	for i, p := range passages {
		blocks[i] = fmt.Sprintf("[Source %d] %s (Pertinence: %.2f)\nHiérarchie: %s\nContenu: %s\n",
			i+1, p.Label(), p.Score, p.Path, p.Text)
	}
	return strings.Join(blocks, "\n")
}

func citationList(passages []core.Passage) string {
	if len(passages) == 0 {
		return NoProvisionsMarker
	}
	var b strings.Builder
	for i, p := range passages {
		fmt.Fprintf(&b, "[Source %d] %s", i+1, p.Label())
		if path := p.Path.String(); path != "" {
			fmt.Fprintf(&b, " (%s)", path)
		}
		b.WriteByte('\n')
	}
	return b.String()
}
