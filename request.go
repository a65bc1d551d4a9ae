package lexrag

import (
	"unicode/utf8"

	"github.com/poiesic/lexrag/core"
)

// Retrieval depth bounds for a request.
const (
	DefaultTopK = 8
	MaxTopK     = 20
)

// sourceTextLimit caps the passage text returned with each source.
const sourceTextLimit = 500

// Request is a question asked on behalf of a user.
type Request struct {
	Question  string
	UserID    string
	SessionID string // Generated when empty

	// TopK is the number of passages to retrieve, clamped to [1, MaxTopK].
	// Zero selects DefaultTopK.
	TopK int

	// EnableThinking runs the three-stage reasoning engine. When false the
	// best matching articles are quoted without calling the language model.
	EnableThinking bool

	// EnableMemory injects conversation context and records the exchange.
	EnableMemory bool

	// ShowThinkingChain returns every stage's output with the response.
	ShowThinkingChain bool

	// Filter optionally restricts retrieval to a hierarchy subtree.
	Filter *core.HierarchyFilter
}

// DefaultRequest returns a request with reasoning and memory enabled.
func DefaultRequest(question, userID string) Request {
	return Request{
		Question:       question,
		UserID:         userID,
		TopK:           DefaultTopK,
		EnableThinking: true,
		EnableMemory:   true,
	}
}

func (r Request) topK() int {
	switch {
	case r.TopK == 0:
		return DefaultTopK
	case r.TopK < 1:
		return 1
	case r.TopK > MaxTopK:
		return MaxTopK
	default:
		return r.TopK
	}
}

// Source is one passage cited by a response, ranked from 1.
type Source struct {
	Rank      int
	ID        string
	Label     string
	Text      string
	Score     float32
	Hierarchy string
}

// Response is the answer to a Request.
type Response struct {
	Question         string
	Answer           string
	Sources          []Source
	NumSources       int
	UserID           string
	SessionID        string
	OptimizedQueries []string
	ThinkingChain    *core.ThinkingChain // Set only when requested
	MemoryUsed       bool
}

func newSources(passages []core.Passage) []Source {
	sources := make([]Source, len(passages))
	for i, p := range passages {
		text := p.Text
		if utf8.RuneCountInString(text) > sourceTextLimit {
			text = string([]rune(text)[:sourceTextLimit])
		}
		sources[i] = Source{
			Rank:      i + 1,
			ID:        p.ID,
			Label:     p.Label(),
			Text:      text,
			Score:     p.Score,
			Hierarchy: p.Path.String(),
		}
	}
	return sources
}

// Stats describes the running assistant.
type Stats struct {
	TotalPassages   int
	Collection      string
	ReasoningStages int
	Model           string
	ActiveSessions  int
	MemoryEnabled   bool
}
