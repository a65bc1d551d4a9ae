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

import "errors"

// Pipeline error kinds. Adapters and components wrap these so callers can
// classify failures with errors.Is.
var (
	// ErrEmbeddingUnavailable indicates the embedding service could not produce a vector.
	ErrEmbeddingUnavailable = errors.New("embedding unavailable")

	// ErrIndexUnavailable indicates the vector index could not be queried.
	ErrIndexUnavailable = errors.New("vector index unavailable")

	// ErrRetrievalUnavailable indicates every retrieval query failed.
	ErrRetrievalUnavailable = errors.New("retrieval unavailable")

	// ErrLLMUnavailable indicates a transient LLM failure (timeout, overload, 5xx).
	ErrLLMUnavailable = errors.New("llm unavailable")

	// ErrLLMRejected indicates a non-transient LLM failure (bad request, auth, policy).
	ErrLLMRejected = errors.New("llm rejected request")

	// ErrReasoningStageFailure indicates a reasoning stage failed after retries.
	ErrReasoningStageFailure = errors.New("reasoning stage failure")

	// ErrMemoryUnavailable indicates the long-term memory store failed.
	ErrMemoryUnavailable = errors.New("memory unavailable")
)

// Domain validation errors
var (
	// ErrInvalidQuery indicates a Query failed validation.
	ErrInvalidQuery = errors.New("invalid query")

	// ErrInvalidRecord indicates a LongTermRecord failed validation.
	ErrInvalidRecord = errors.New("invalid long-term record")

	// ErrInvalidTimestamp indicates a timestamp is in the future.
	ErrInvalidTimestamp = errors.New("timestamp cannot be in the future")

	// ErrEmptyText indicates a question or turn has no text.
	ErrEmptyText = errors.New("text cannot be empty")

	// ErrEmptyUserID indicates the user id is missing.
	ErrEmptyUserID = errors.New("user id cannot be empty")

	// ErrInvalidRole indicates an invalid Role value.
	ErrInvalidRole = errors.New("invalid role")

	// ErrNoTurns indicates a record carries no turns.
	ErrNoTurns = errors.New("record has no turns")
)
