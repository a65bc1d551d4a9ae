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

package reasoning

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/poiesic/lexrag/ai"
	"github.com/poiesic/lexrag/core"
)

// Retriever returns ranked passages for a set of queries.
// *retrieval.Orchestrator implements it.
type Retriever interface {
	Search(ctx context.Context, queries []string, topK int, filter *core.HierarchyFilter) ([]core.Passage, error)
}

// DirectArticleCount is the number of articles quoted by Direct.
const DirectArticleCount = 3

// Direct mode answers, shown when nothing or something was found.
const (
	directNothingFound = "Désolé, je n'ai trouvé aucune information pertinente dans le Code du Travail."
	directHeader       = "Voici les articles pertinents trouvés:\n\n"
)

// Result is the outcome of a reasoning run.
type Result struct {
	Answer  string
	Sources []core.Passage
	Queries []string
	Chain   *core.ThinkingChain
	Stage   core.Stage
}

// Engine drives the three-stage reasoning state machine:
// Rewriting, Analyzing, Synthesizing, then Done, or Aborted on a fatal error.
type Engine struct {
	completer ai.Completer
	retriever Retriever
	config    Config
	monitor   Monitor
	logger    *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine) error

// WithConfig replaces the default configuration.
func WithConfig(config Config) Option {
	return func(e *Engine) error {
		if err := config.Validate(); err != nil {
			return err
		}
		e.config = config
		return nil
	}
}

// WithMonitor installs state machine hooks.
func WithMonitor(monitor Monitor) Option {
	return func(e *Engine) error {
		if monitor == nil {
			monitor = &noopMonitor{}
		}
		e.monitor = monitor
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) error {
		if logger == nil {
			logger = slog.Default()
		}
		e.logger = logger
		return nil
	}
}

// NewEngine creates a reasoning engine.
func NewEngine(completer ai.Completer, retriever Retriever, opts ...Option) (*Engine, error) {
	if completer == nil {
		return nil, ErrCompleterRequired
	}
	if retriever == nil {
		return nil, ErrRetrieverRequired
	}

	e := &Engine{
		completer: completer,
		retriever: retriever,
		config:    DefaultConfig(),
		monitor:   &noopMonitor{},
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, err
		}
	}
	e.logger = e.logger.With("component", "reasoning")
	return e, nil
}

// run holds the per-request state of one pass through the machine.
type run struct {
	query         core.Query
	memoryContext string
	topK          int
	filter        *core.HierarchyFilter

	stage    core.Stage
	chain    core.ThinkingChain
	passages []core.Passage
}

// Run answers q, using memoryContext as conversational context.
//
// A failure in stage 2 or 3 returns a *core.StageError naming the stage.
// Context cancellation returns the context's error. No partial answer is
// ever returned alongside an error.
func (e *Engine) Run(ctx context.Context, q core.Query, memoryContext string, topK int, filter *core.HierarchyFilter) (*Result, error) {
	if err := core.ValidateQuery(q); err != nil {
		return nil, err
	}

	r := &run{
		query:         q,
		memoryContext: memoryContext,
		topK:          topK,
		filter:        filter,
		stage:         core.StageRewriting,
		chain:         core.ThinkingChain{OriginalQuery: q.Text},
	}

	for !r.stage.Terminal() {
		e.monitor.StageEntered(r.stage)
		next, err := e.step(ctx, r)
		if err != nil {
			e.monitor.Aborted(r.stage, err)
			e.logger.Warn("reasoning aborted", "stage", r.stage, "err", err)
			r.stage = core.StageAborted
			return nil, err
		}
		r.stage = next
	}

	return &Result{
		Answer:  r.chain.FinalAnswer,
		Sources: r.passages,
		Queries: r.chain.Queries,
		Chain:   &r.chain,
		Stage:   r.stage,
	}, nil
}

// step executes the current stage and returns the next one.
func (e *Engine) step(ctx context.Context, r *run) (core.Stage, error) {
	switch r.stage {
	case core.StageRewriting:
		if err := e.rewrite(ctx, r); err != nil {
			return core.StageAborted, err
		}
		if err := e.retrieve(ctx, r); err != nil {
			return core.StageAborted, err
		}
		e.monitor.StageCompleted(core.StageRewriting, r.chain.QueryRewriting)
		return core.StageAnalyzing, nil

	case core.StageAnalyzing:
		prompt := buildAnalysisPrompt(r.query.Text, r.memoryContext, r.passages)
		analysis, err := e.complete(ctx, prompt, e.config.AnalysisTemperature)
		if err != nil {
			return core.StageAborted, stageFailure(ctx, core.StageAnalyzing, err)
		}
		r.chain.LegalAnalysis = analysis
		e.monitor.StageCompleted(core.StageAnalyzing, analysis)
		return core.StageSynthesizing, nil

	case core.StageSynthesizing:
		prompt := buildSynthesisPrompt(r.query.Text, r.memoryContext, r.chain.LegalAnalysis, r.passages)
		answer, err := e.complete(ctx, prompt, e.config.SynthesisTemperature)
		if err != nil {
			return core.StageAborted, stageFailure(ctx, core.StageSynthesizing, err)
		}
		r.chain.FinalAnswer = answer
		e.monitor.StageCompleted(core.StageSynthesizing, answer)
		return core.StageDone, nil

	default:
		return core.StageAborted, fmt.Errorf("no transition from stage %s", r.stage)
	}
}

// rewrite runs stage 1. A rejected request aborts; exhausted transient
// failures and unusable output fall back to searching with the raw question.
func (e *Engine) rewrite(ctx context.Context, r *run) error {
	prompt := buildRewritePrompt(r.query.Text, r.memoryContext, e.config.MaxQueries)
	completion, err := e.complete(ctx, prompt, e.config.RewriteTemperature)
	if err != nil {
		if errors.Is(err, core.ErrLLMRejected) {
			return stageFailure(ctx, core.StageRewriting, err)
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		e.logger.Warn("query rewriting failed, using raw question", "err", err)
		completion = ""
	}

	r.chain.QueryRewriting = completion
	r.chain.Queries = parseQueries(completion, r.query.Text, e.config.MaxQueries)
	e.logger.Debug("queries rewritten", "count", len(r.chain.Queries))
	return nil
}

// retrieve runs the retrieval step between stages 1 and 2. When every query
// fails, analysis proceeds with no passages.
func (e *Engine) retrieve(ctx context.Context, r *run) error {
	passages, err := e.retriever.Search(ctx, r.chain.Queries, r.topK, r.filter)
	if err != nil {
		if !errors.Is(err, core.ErrRetrievalUnavailable) {
			return err
		}
		e.logger.Warn("retrieval unavailable, analyzing without passages", "err", err)
		passages = nil
	}
	r.passages = passages
	return nil
}

// complete calls the completer, retrying transient failures.
func (e *Engine) complete(ctx context.Context, prompt string, temperature float64) (string, error) {
	opts := ai.CompletionOptions{
		System:      e.config.SystemPrompt,
		Temperature: temperature,
		MaxTokens:   e.config.MaxTokens,
	}

	var out string
	err := ai.RetryWithBackoff(ctx, func() error {
		text, err := e.completer.Complete(ctx, prompt, opts)
		if err != nil {
			return err
		}
		text = strings.TrimSpace(text)
		if text == "" {
			return fmt.Errorf("%w: empty completion", core.ErrLLMUnavailable)
		}
		out = text
		return nil
	}, e.config.MaxRetries+1, e.config.RetryBaseDelay, ai.IsTransient)
	return out, err
}

func stageFailure(ctx context.Context, stage core.Stage, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return &core.StageError{Stage: stage, Err: err}
}

// Direct answers q without the language model: the raw question is searched
// once and the best articles are quoted back.
func (e *Engine) Direct(ctx context.Context, q core.Query, topK int, filter *core.HierarchyFilter) (*Result, error) {
	if err := core.ValidateQuery(q); err != nil {
		return nil, err
	}

	queries := []string{q.Text}
	passages, err := e.retriever.Search(ctx, queries, topK, filter)
	if err != nil && !errors.Is(err, core.ErrRetrievalUnavailable) {
		return nil, err
	}

	answer := directNothingFound
	if len(passages) > 0 {
		quoted := passages[:min(DirectArticleCount, len(passages))]
		parts := make([]string, len(quoted))
		for i, p := range quoted {
			parts[i] = p.Label() + ": " + p.Text
		}
		answer = directHeader + strings.Join(parts, "\n\n")
	}

	return &Result{
		Answer:  answer,
		Sources: passages,
		Queries: queries,
		Stage:   core.StageDone,
	}, nil
}
