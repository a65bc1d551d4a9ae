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

package core

import "fmt"

// Stage is a state of the reasoning state machine.
type Stage int

const (
	StageRewriting Stage = iota + 1
	StageAnalyzing
	StageSynthesizing
	StageDone
	StageAborted
)

func (s Stage) String() string {
	switch s {
	case StageRewriting:
		return "rewriting"
	case StageAnalyzing:
		return "analyzing"
	case StageSynthesizing:
		return "synthesizing"
	case StageDone:
		return "done"
	case StageAborted:
		return "aborted"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}

// Terminal reports whether no further transitions are possible.
func (s Stage) Terminal() bool {
	return s == StageDone || s == StageAborted
}

// ThinkingChain records the intermediate output of every reasoning stage.
type ThinkingChain struct {
	OriginalQuery  string
	QueryRewriting string   // Raw stage 1 output
	Queries        []string // Parsed stage 1 output
	LegalAnalysis  string
	FinalAnswer    string
}

// StageError reports a fatal failure in a named reasoning stage.
// It matches ErrReasoningStageFailure as well as its cause under errors.Is.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("reasoning stage %s failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() []error {
	return []error{ErrReasoningStageFailure, e.Err}
}
