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

package lexrag

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/poiesic/lexrag/ai"
	"github.com/poiesic/lexrag/ai/openai"
	"github.com/poiesic/lexrag/core"
	"github.com/poiesic/lexrag/index"
	"github.com/poiesic/lexrag/index/chromem"
	"github.com/poiesic/lexrag/ingestion"
	"github.com/poiesic/lexrag/memory"
	"github.com/poiesic/lexrag/reasoning"
	"github.com/poiesic/lexrag/reembed"
	"github.com/poiesic/lexrag/retrieval"
	"github.com/poiesic/lexrag/storage"
	"github.com/poiesic/lexrag/storage/badger"
)

// DefaultHistoryLimit is the number of records History returns when no
// limit is given.
const DefaultHistoryLimit = 20

// Dependencies are the ports an Assistant is assembled from.
type Dependencies struct {
	Embedder   ai.Embedder
	Completer  ai.Completer
	Searcher   index.Searcher
	Repository storage.RecordRepository
}

// Assistant answers legal questions with retrieval, multi-stage reasoning and
// conversational memory.
type Assistant struct {
	embedder     ai.Embedder
	searcher     index.Searcher
	repo         storage.RecordRepository
	memory       *memory.Store
	orchestrator *retrieval.Orchestrator
	engine       *reasoning.Engine
	model        string
	collection   string
	baseLogger   *slog.Logger
	logger       *slog.Logger

	// Released in reverse order by Close
	closers []func() error
}

// Option configures an Assistant.
type Option func(*options)

type options struct {
	aiConfig        *ai.Config
	memoryConfig    memory.Config
	reasoningConfig reasoning.Config
	collection      string
	poolSize        int
	callTimeout     time.Duration
	retrievalHooks  retrieval.Monitor
	reasoningHooks  reasoning.Monitor
	logger          *slog.Logger
}

// WithAIConfig sets the AI provider configuration used by Open.
func WithAIConfig(config *ai.Config) Option {
	return func(o *options) {
		o.aiConfig = config
	}
}

// WithMemoryConfig sets the memory store configuration.
func WithMemoryConfig(config memory.Config) Option {
	return func(o *options) {
		o.memoryConfig = config
	}
}

// WithReasoningConfig sets the reasoning engine configuration.
func WithReasoningConfig(config reasoning.Config) Option {
	return func(o *options) {
		o.reasoningConfig = config
	}
}

// WithCollection sets the passage collection opened by Open.
func WithCollection(name string) Option {
	return func(o *options) {
		o.collection = name
	}
}

// WithPoolSize sets the number of retrieval queries searched concurrently.
func WithPoolSize(size int) Option {
	return func(o *options) {
		o.poolSize = size
	}
}

// WithCallTimeout bounds every embedding and index call made by retrieval.
func WithCallTimeout(timeout time.Duration) Option {
	return func(o *options) {
		o.callTimeout = timeout
	}
}

// WithRetrievalMonitor installs retrieval hooks.
func WithRetrievalMonitor(monitor retrieval.Monitor) Option {
	return func(o *options) {
		o.retrievalHooks = monitor
	}
}

// WithReasoningMonitor installs reasoning state machine hooks.
func WithReasoningMonitor(monitor reasoning.Monitor) Option {
	return func(o *options) {
		o.reasoningHooks = monitor
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

func buildOptions(opts []Option) *options {
	o := &options{
		aiConfig:        ai.DefaultConfig(),
		memoryConfig:    memory.DefaultConfig(),
		reasoningConfig: reasoning.DefaultConfig(),
		collection:      chromem.DefaultCollection,
		callTimeout:     retrieval.DefaultCallTimeout,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	return o
}

// Open assembles an Assistant from data stored under dataDir: long-term
// memory in dataDir/memory and the passage index in dataDir/index. Models
// are reached through the OpenAI-compatible host in the AI configuration.
func Open(dataDir string, opts ...Option) (*Assistant, error) {
	o := buildOptions(opts)

	backend, err := badger.OpenBackend(filepath.Join(dataDir, "memory"), false)
	if err != nil {
		return nil, err
	}

	repo, err := badger.NewRecordRepository(backend)
	if err != nil {
		backend.Close()
		return nil, err
	}

	passages, err := chromem.NewPersistent(filepath.Join(dataDir, "index"),
		chromem.WithCollection(o.collection), chromem.WithLogger(o.logger))
	if err != nil {
		repo.Close()
		backend.Close()
		return nil, err
	}

	provider, err := openai.NewProvider(o.aiConfig)
	if err != nil {
		repo.Close()
		backend.Close()
		return nil, err
	}

	a, err := newAssistant(Dependencies{
		Embedder:   provider.Embedder(),
		Completer:  provider.Completer(),
		Searcher:   passages,
		Repository: repo,
	}, o)
	if err != nil {
		provider.Close()
		repo.Close()
		backend.Close()
		return nil, err
	}

	a.model = o.aiConfig.CompletionModel
	a.closers = append([]func() error{backend.Close, repo.Close, provider.Close}, a.closers...)
	return a, nil
}

// New assembles an Assistant from caller-supplied ports.
// The caller keeps ownership of the ports and must close them after Close.
func New(deps Dependencies, opts ...Option) (*Assistant, error) {
	return newAssistant(deps, buildOptions(opts))
}

func newAssistant(deps Dependencies, o *options) (*Assistant, error) {
	if deps.Embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if deps.Completer == nil {
		return nil, ErrCompleterRequired
	}
	if deps.Searcher == nil {
		return nil, ErrSearcherRequired
	}
	if deps.Repository == nil {
		return nil, ErrRepositoryRequired
	}

	store, err := memory.NewStore(deps.Repository, deps.Embedder,
		memory.WithConfig(o.memoryConfig), memory.WithLogger(o.logger))
	if err != nil {
		return nil, err
	}

	retrievalOpts := []retrieval.Option{
		retrieval.WithCallTimeout(o.callTimeout),
		retrieval.WithMonitor(o.retrievalHooks),
		retrieval.WithLogger(o.logger),
	}
	if o.poolSize > 0 {
		retrievalOpts = append(retrievalOpts, retrieval.WithPoolSize(o.poolSize))
	}
	orchestrator, err := retrieval.NewOrchestrator(deps.Embedder, deps.Searcher, retrievalOpts...)
	if err != nil {
		return nil, err
	}

	engine, err := reasoning.NewEngine(deps.Completer, orchestrator,
		reasoning.WithConfig(o.reasoningConfig),
		reasoning.WithMonitor(o.reasoningHooks),
		reasoning.WithLogger(o.logger))
	if err != nil {
		orchestrator.Release()
		return nil, err
	}

	return &Assistant{
		embedder:     deps.Embedder,
		searcher:     deps.Searcher,
		repo:         deps.Repository,
		memory:       store,
		orchestrator: orchestrator,
		engine:       engine,
		collection:   o.collection,
		baseLogger:   o.logger,
		logger:       o.logger.With("component", "assistant"),
		closers: []func() error{func() error {
			orchestrator.Release()
			return nil
		}},
	}, nil
}

// Close releases everything the assistant owns.
func (a *Assistant) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Error("error closing resource", "err", err)
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// Memory returns the assistant's memory store.
func (a *Assistant) Memory() *memory.Store {
	return a.memory
}

// Ask answers one question.
//
// With memory enabled, the session's context is injected into every prompt
// and the exchange is recorded once the answer is complete. A failed or
// canceled request records nothing. Fatal reasoning failures are returned as
// *core.StageError.
func (a *Assistant) Ask(ctx context.Context, req Request) (*Response, error) {
	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	query := core.Query{Text: req.Question, UserID: req.UserID, SessionID: sessionID}
	if err := core.ValidateQuery(query); err != nil {
		return nil, err
	}
	topK := req.topK()

	memoryContext := ""
	if req.EnableMemory && req.EnableThinking {
		memoryContext = a.memory.FormatContextForLLM(ctx, query.Text, query.UserID, sessionID)
	}

	var (
		result *reasoning.Result
		err    error
	)
	if req.EnableThinking {
		result, err = a.engine.Run(ctx, query, memoryContext, topK, req.Filter)
	} else {
		result, err = a.engine.Direct(ctx, query, topK, req.Filter)
	}
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if req.EnableMemory {
		if err := a.memory.AppendExchange(query.UserID, sessionID, query.Text, result.Answer); err != nil {
			a.logger.Warn("exchange not recorded", "user", query.UserID, "session", sessionID, "err", err)
		}
	}

	resp := &Response{
		Question:         query.Text,
		Answer:           result.Answer,
		Sources:          newSources(result.Sources),
		NumSources:       len(result.Sources),
		UserID:           query.UserID,
		SessionID:        sessionID,
		OptimizedQueries: result.Queries,
		MemoryUsed:       req.EnableMemory,
	}
	if req.ShowThinkingChain && result.Chain != nil {
		resp.ThinkingChain = result.Chain
	}

	a.logger.Debug("question answered", "user", query.UserID, "session", sessionID,
		"thinking", req.EnableThinking, "sources", resp.NumSources)
	return resp, nil
}

// ClearSession drops the session's short-term memory.
func (a *Assistant) ClearSession(userID, sessionID string) error {
	if !a.memory.ClearShortTerm(userID, sessionID) {
		return ErrSessionNotFound
	}
	return nil
}

// SaveSession persists the session's short-term memory as a long-term record.
func (a *Assistant) SaveSession(ctx context.Context, userID, sessionID string) (*core.LongTermRecord, error) {
	record, err := a.memory.PersistSession(ctx, userID, sessionID)
	if errors.Is(err, memory.ErrEmptySession) {
		return nil, fmt.Errorf("%w: %w", ErrSessionNotFound, err)
	}
	return record, err
}

// EndSession optionally saves the session, then clears it.
func (a *Assistant) EndSession(ctx context.Context, userID, sessionID string, save bool) error {
	return a.memory.EndSession(ctx, userID, sessionID, save)
}

// Session reports the session's short-term state.
func (a *Assistant) Session(userID, sessionID string) memory.SessionSummary {
	return a.memory.SessionSummary(userID, sessionID)
}

// History returns the user's saved sessions, newest first.
// A limit of zero selects DefaultHistoryLimit; a negative limit returns all.
func (a *Assistant) History(ctx context.Context, userID string, limit int) ([]*core.LongTermRecord, error) {
	if limit == 0 {
		limit = DefaultHistoryLimit
	}
	return a.memory.History(ctx, userID, limit)
}

// ForgetUser deletes all of the user's memory, short and long term.
func (a *Assistant) ForgetUser(ctx context.Context, userID string) (int, error) {
	return a.memory.ForgetUser(ctx, userID)
}

// Ingest embeds passages and adds them to the assistant's index.
// The searcher must also implement index.Writer.
func (a *Assistant) Ingest(ctx context.Context, passages []core.Passage, opts ...ingestion.Option) (int, error) {
	writer, ok := a.searcher.(index.Writer)
	if !ok {
		return 0, ErrIndexReadOnly
	}
	pipeline, err := ingestion.NewPipeline(a.embedder, writer,
		append([]ingestion.Option{ingestion.WithLogger(a.baseLogger)}, opts...)...)
	if err != nil {
		return 0, err
	}
	defer pipeline.Release()
	return pipeline.Ingest(ctx, passages)
}

// ReembedMemory recomputes the vector of every saved session with the
// assistant's embedder. Progress lines go to progress; a nil config selects
// reembed.DefaultConfig.
func (a *Assistant) ReembedMemory(ctx context.Context, config *reembed.Config, progress io.Writer) (int, error) {
	r, err := reembed.NewReembedder(a.repo, a.embedder, config, progress, a.baseLogger)
	if err != nil {
		return 0, err
	}
	return r.Run(ctx)
}

// Stats describes the assistant's current state.
func (a *Assistant) Stats() Stats {
	stats := Stats{
		Collection:      a.collection,
		ReasoningStages: 3,
		Model:           a.model,
		ActiveSessions:  a.memory.Sessions(),
		MemoryEnabled:   true,
	}
	if counter, ok := a.searcher.(interface{ Count() int }); ok {
		stats.TotalPassages = counter.Count()
	}
	return stats
}
