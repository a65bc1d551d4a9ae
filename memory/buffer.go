package memory

import (
	"sync"

	"github.com/poiesic/lexrag/core"
)

// ringBuffer holds the most recent turns of one session.
// When full, appending overwrites the oldest turn.
type ringBuffer struct {
	mu    sync.Mutex
	turns []core.MemoryTurn
	start int
	size  int
}

func newRingBuffer(capacity int) *ringBuffer {
	return &ringBuffer{turns: make([]core.MemoryTurn, capacity)}
}

// append adds turns in order under a single lock acquisition.
func (b *ringBuffer) append(turns ...core.MemoryTurn) {
	b.mu.Lock()
	defer b.mu.Unlock()

	capacity := len(b.turns)
	for _, turn := range turns {
		if b.size < capacity {
			b.turns[(b.start+b.size)%capacity] = turn
			b.size++
			continue
		}
		b.turns[b.start] = turn
		b.start = (b.start + 1) % capacity
	}
}

// snapshot returns the held turns oldest first.
func (b *ringBuffer) snapshot() []core.MemoryTurn {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]core.MemoryTurn, b.size)
	for i := 0; i < b.size; i++ {
		out[i] = b.turns[(b.start+i)%len(b.turns)]
	}
	return out
}
