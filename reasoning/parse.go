package reasoning

import (
	"encoding/json"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/poiesic/lexrag/retrieval"
)

const (
	minQueryLength = 5   // Lines this short or shorter are noise
	maxQueryLength = 100 // Lines this long or longer are prose, not queries
	maxPrependable = 200 // Questions shorter than this are searched verbatim too
)

var numbering = regexp.MustCompile(`^\(?\d{1,2}[.)\]:-]\s*`)

// queryEnvelope is the object form some models emit instead of a bare array.
type queryEnvelope struct {
	Queries  []string `json:"queries"`
	Requetes []string `json:"requetes"`
}

// parseQueries extracts search queries from a stage 1 completion.
//
// The completion may be a JSON array of strings, a JSON object with a
// "queries" array, or plain text with one query per line. At most
// maxQueries rewritten queries are kept. The question itself is searched
// first when it is short enough. The result is never empty.
func parseQueries(completion, question string, maxQueries int) []string {
	candidates, ok := parseJSONQueries(completion)
	if !ok {
		candidates = parseLineQueries(completion)
	}

	seen := make(map[string]struct{})
	var rewritten []string
	for _, q := range candidates {
		if !usableQuery(q) {
			continue
		}
		key := retrieval.NormalizeQuery(q)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		rewritten = append(rewritten, q)
		if len(rewritten) == maxQueries {
			break
		}
	}

	question = strings.TrimSpace(question)
	if len(rewritten) == 0 {
		return []string{question}
	}
	if utf8.RuneCountInString(question) >= maxPrependable {
		return rewritten
	}

	queries := []string{question}
	for _, q := range rewritten {
		if retrieval.NormalizeQuery(q) == retrieval.NormalizeQuery(question) {
			continue
		}
		queries = append(queries, q)
	}
	return queries
}

func parseJSONQueries(completion string) ([]string, bool) {
	text := stripFences(completion)
	if !strings.HasPrefix(text, "[") && !strings.HasPrefix(text, "{") {
		return nil, false
	}
	text = repairJSON(text)

	var list []string
	if err := json.Unmarshal([]byte(text), &list); err == nil {
		return trimAll(list), true
	}

	var envelope queryEnvelope
	if err := json.Unmarshal([]byte(text), &envelope); err == nil {
		if len(envelope.Queries) > 0 {
			return trimAll(envelope.Queries), true
		}
		if len(envelope.Requetes) > 0 {
			return trimAll(envelope.Requetes), true
		}
	}
	return nil, false
}

func parseLineQueries(completion string) []string {
	var out []string
	for _, line := range strings.Split(completion, "\n") {
		line = numbering.ReplaceAllString(strings.TrimSpace(line), "")
		if line != "" {
			out = append(out, cleanQuery(line))
		}
	}
	return out
}

func trimAll(queries []string) []string {
	out := make([]string, 0, len(queries))
	for _, q := range queries {
		out = append(out, cleanQuery(q))
	}
	return out
}

// cleanQuery strips list bullets, emphasis and quotes around a query.
func cleanQuery(q string) string {
	return strings.TrimSpace(strings.Trim(strings.TrimSpace(q), "-•*\"'«» "))
}

func usableQuery(q string) bool {
	n := utf8.RuneCountInString(q)
	return n > minQueryLength && n < maxQueryLength && !strings.HasSuffix(q, ":")
}
