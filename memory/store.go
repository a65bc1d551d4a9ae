// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package memory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/poiesic/lexrag/ai"
	"github.com/poiesic/lexrag/core"
	"github.com/poiesic/lexrag/storage"
)

type sessionKey struct {
	userID    string
	sessionID string
}

// SessionSummary describes the live short-term state of one session.
type SessionSummary struct {
	UserID    string
	SessionID string
	TurnCount int
	Turns     []core.MemoryTurn
}

// Store holds short-term conversation buffers in process and long-term
// records in a repository.
//
// Short-term buffers are keyed by (user, session) and each carries its own
// lock, so concurrent requests on different sessions never contend.
type Store struct {
	repo     storage.RecordRepository
	embedder ai.Embedder
	config   Config
	logger   *slog.Logger

	mu       sync.RWMutex
	sessions map[sessionKey]*ringBuffer
}

// Option configures a Store.
type Option func(*Store) error

// WithConfig replaces the default configuration.
func WithConfig(config Config) Option {
	return func(s *Store) error {
		if err := config.Validate(); err != nil {
			return err
		}
		s.config = config
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// NewStore creates a memory store backed by repo for long-term records.
func NewStore(repo storage.RecordRepository, embedder ai.Embedder, opts ...Option) (*Store, error) {
	if repo == nil {
		return nil, ErrRepositoryRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	s := &Store{
		repo:     repo,
		embedder: embedder,
		config:   DefaultConfig(),
		logger:   slog.Default(),
		sessions: make(map[sessionKey]*ringBuffer),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	s.logger = s.logger.With("component", "memory-store")
	return s, nil
}

// Config returns the active configuration.
func (s *Store) Config() Config {
	return s.config
}

func (s *Store) buffer(userID, sessionID string) *ringBuffer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessions[sessionKey{userID, sessionID}]
}

func (s *Store) bufferOrCreate(userID, sessionID string) *ringBuffer {
	key := sessionKey{userID, sessionID}
	if buf := s.buffer(userID, sessionID); buf != nil {
		return buf
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if buf, ok := s.sessions[key]; ok {
		return buf
	}
	buf := newRingBuffer(s.config.ShortTermLimit)
	s.sessions[key] = buf
	return buf
}

// ShortTermContext returns the session's recent turns, oldest first.
// Unknown sessions yield an empty slice.
func (s *Store) ShortTermContext(userID, sessionID string) []core.MemoryTurn {
	buf := s.buffer(userID, sessionID)
	if buf == nil {
		return []core.MemoryTurn{}
	}
	return buf.snapshot()
}

// AppendTurn adds a turn to the session, evicting the oldest when full.
func (s *Store) AppendTurn(userID, sessionID string, role core.Role, text string) error {
	turn := core.MemoryTurn{Role: role, Text: text, Timestamp: time.Now().UTC()}
	if err := core.ValidateTurn(turn); err != nil {
		return err
	}
	if userID == "" {
		return core.ErrEmptyUserID
	}
	s.bufferOrCreate(userID, sessionID).append(turn)
	s.logger.Debug("turn appended", "user", userID, "session", sessionID, "role", role, "chars", len(text))
	return nil
}

// AppendExchange adds a question and its answer as two consecutive turns.
// Concurrent exchanges on the same session never interleave.
func (s *Store) AppendExchange(userID, sessionID, question, answer string) error {
	now := time.Now().UTC()
	turns := []core.MemoryTurn{
		{Role: core.RoleUser, Text: question, Timestamp: now},
		{Role: core.RoleAssistant, Text: answer, Timestamp: now},
	}
	for _, turn := range turns {
		if err := core.ValidateTurn(turn); err != nil {
			return err
		}
	}
	if userID == "" {
		return core.ErrEmptyUserID
	}
	s.bufferOrCreate(userID, sessionID).append(turns...)
	return nil
}

// ClearShortTerm drops the session's buffer and reports whether it existed.
// Long-term records are untouched.
func (s *Store) ClearShortTerm(userID, sessionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := sessionKey{userID, sessionID}
	_, ok := s.sessions[key]
	delete(s.sessions, key)
	return ok
}

// Sessions returns the number of live short-term buffers.
func (s *Store) Sessions() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// SessionSummary reports the session's short-term state.
func (s *Store) SessionSummary(userID, sessionID string) SessionSummary {
	turns := s.ShortTermContext(userID, sessionID)
	return SessionSummary{
		UserID:    userID,
		SessionID: sessionID,
		TurnCount: len(turns),
		Turns:     turns,
	}
}

// LongTermContext recalls the user's records most similar to queryText.
// Recall is best effort: embedding or repository failures are logged and
// produce an empty result.
func (s *Store) LongTermContext(ctx context.Context, userID, queryText string, limit int, threshold float32) []*core.MemoryGroup {
	if limit <= 0 || strings.TrimSpace(queryText) == "" {
		return nil
	}

	vector, err := s.embedder.EmbedText(ctx, queryText)
	if err != nil {
		s.logger.Warn("long-term recall skipped", "user", userID, "err", fmt.Errorf("%w: %w", core.ErrMemoryUnavailable, err))
		return nil
	}

	groups, err := s.repo.FindSimilar(ctx, userID, vector, threshold, limit)
	if err != nil {
		s.logger.Warn("long-term recall skipped", "user", userID, "err", fmt.Errorf("%w: %w", core.ErrMemoryUnavailable, err))
		return nil
	}
	return groups
}

// PersistSession stores the session's buffer as a new long-term record.
// Every call creates a new record; the buffer itself is left in place.
func (s *Store) PersistSession(ctx context.Context, userID, sessionID string) (*core.LongTermRecord, error) {
	turns := s.ShortTermContext(userID, sessionID)
	if len(turns) == 0 {
		return nil, ErrEmptySession
	}

	vector, err := s.embedder.EmbedText(ctx, Transcript(turns))
	if err != nil {
		return nil, fmt.Errorf("%w: embed session: %w", core.ErrMemoryUnavailable, err)
	}

	record := &core.LongTermRecord{
		UserID:    userID,
		SessionID: sessionID,
		Turns:     turns,
		Vector:    vector,
		Timestamp: time.Now().UTC(),
	}
	if _, err := s.repo.AddRecords(ctx, record); err != nil {
		return nil, fmt.Errorf("%w: store session: %w", core.ErrMemoryUnavailable, err)
	}

	s.logger.Info("session persisted", "user", userID, "session", sessionID, "turns", len(turns), "record", record.ID)
	return record, nil
}

// EndSession optionally persists the session, then clears its buffer.
// The buffer is cleared even when persisting fails.
func (s *Store) EndSession(ctx context.Context, userID, sessionID string, save bool) error {
	var err error
	if save {
		_, err = s.PersistSession(ctx, userID, sessionID)
		if errors.Is(err, ErrEmptySession) {
			err = nil
		}
	}
	s.ClearShortTerm(userID, sessionID)
	return err
}

// History returns the user's long-term records, newest first.
// A limit <= 0 returns everything.
func (s *Store) History(ctx context.Context, userID string, limit int) ([]*core.LongTermRecord, error) {
	records, err := s.repo.GetUserHistory(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrMemoryUnavailable, err)
	}
	return records, nil
}

// ForgetUser removes every long-term record of the user and all of the
// user's short-term buffers.
func (s *Store) ForgetUser(ctx context.Context, userID string) (int, error) {
	s.mu.Lock()
	for key := range s.sessions {
		if key.userID == userID {
			delete(s.sessions, key)
		}
	}
	s.mu.Unlock()

	n, err := s.repo.DeleteUserRecords(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", core.ErrMemoryUnavailable, err)
	}
	return n, nil
}

// FormatContextForLLM renders the session's recent turns and the user's
// relevant past exchanges as one prompt block within the configured
// character budget. It returns "" when there is nothing to recall.
func (s *Store) FormatContextForLLM(ctx context.Context, currentQuery, userID, sessionID string) string {
	shortTerm := s.ShortTermContext(userID, sessionID)
	longTerm := s.LongTermContext(ctx, userID, currentQuery, s.config.LongTermLimit, s.config.RelevanceThreshold)
	return fitContext(longTerm, shortTerm, s.config.SummaryLength, s.config.ContextBudget)
}

// Transcript renders turns as the "role: text" lines that long-term records
// are embedded from.
func Transcript(turns []core.MemoryTurn) string {
	var b strings.Builder
	for _, t := range turns {
		b.WriteString(string(t.Role))
		b.WriteString(": ")
		b.WriteString(t.Text)
		b.WriteByte('\n')
	}
	return b.String()
}
