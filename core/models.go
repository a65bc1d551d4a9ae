package core

import (
	"encoding/binary"
	"strconv"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ID is a unique identifier for persisted records.
// It is generated using content-based hashing or database sequences.
type ID uint64

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
// This ensures that identical content produces identical IDs.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// String renders the ID in its canonical decimal form.
func (id ID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

// Role identifies the author of a conversational turn.
type Role string

const (
	// RoleUser is a turn written by the person asking questions.
	RoleUser Role = "user"
	// RoleAssistant is a turn produced by the reasoning engine.
	RoleAssistant Role = "assistant"
)

// MemoryTurn is one utterance held in short-term memory.
type MemoryTurn struct {
	Role      Role
	Text      string
	Timestamp time.Time
}

// LongTermRecord is a persisted snapshot of a session's turns.
// Records are immutable once written; each persist creates a new one.
type LongTermRecord struct {
	ID        ID
	UserID    string
	SessionID string
	Turns     []MemoryTurn
	Vector    []float32 // Embedding of the concatenated turns
	Timestamp time.Time
}

// MemoryGroup is a long-term record recalled for a query with its relevance score.
type MemoryGroup struct {
	Record *LongTermRecord
	Score  float32
}

// Query is a single question as received from a caller.
type Query struct {
	Text      string
	UserID    string
	SessionID string
}
