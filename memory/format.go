package memory

import (
	"strings"
	"unicode/utf8"

	"github.com/poiesic/lexrag/core"
)

var rule = strings.Repeat("=", 70)

const (
	contextTitle   = "CONTEXTE DE LA CONVERSATION"
	longTermTitle  = "**Historique pertinent des conversations passées:**"
	shortTermTitle = "**Messages récents de cette conversation:**"
	contextFooter  = "La question actuelle de l'utilisateur doit être comprise dans ce contexte."
)

// fitContext renders the context block, then drops the oldest short-term
// turns and after them the least relevant long-term groups until the block
// fits in budget characters. groups must be ordered by descending score.
func fitContext(groups []*core.MemoryGroup, turns []core.MemoryTurn, summaryLength, budget int) string {
	for {
		out := renderContext(groups, turns, summaryLength)
		if utf8.RuneCountInString(out) <= budget {
			return out
		}
		switch {
		case len(turns) > 0:
			turns = turns[1:]
		case len(groups) > 0:
			groups = groups[:len(groups)-1]
		default:
			return ""
		}
	}
}

func renderContext(groups []*core.MemoryGroup, turns []core.MemoryTurn, summaryLength int) string {
	if len(groups) == 0 && len(turns) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("\n" + rule + "\n")
	b.WriteString(contextTitle + "\n")
	b.WriteString(rule + "\n\n")

	if len(groups) > 0 {
		b.WriteString(longTermTitle + "\n\n")
		for _, g := range groups {
			if g == nil || g.Record == nil {
				continue
			}
			for _, t := range g.Record.Turns {
				writeTurn(&b, t.Role, summarize(t.Text, summaryLength))
			}
		}
		b.WriteString("\n")
	}

	if len(turns) > 0 {
		b.WriteString(shortTermTitle + "\n\n")
		for _, t := range turns {
			writeTurn(&b, t.Role, t.Text)
		}
	}

	b.WriteString("\n" + rule + "\n")
	b.WriteString(contextFooter + "\n")
	b.WriteString(rule + "\n\n")
	return b.String()
}

func writeTurn(b *strings.Builder, role core.Role, text string) {
	b.WriteString("• [")
	b.WriteString(roleLabel(role))
	b.WriteString("] ")
	b.WriteString(text)
	b.WriteString("\n")
}

func roleLabel(role core.Role) string {
	if role == core.RoleUser {
		return "Utilisateur"
	}
	return "Assistant"
}

// summarize truncates text to n runes, marking the cut with an ellipsis.
func summarize(text string, n int) string {
	if utf8.RuneCountInString(text) <= n {
		return text
	}
	runes := []rune(text)
	return string(runes[:n]) + "..."
}
