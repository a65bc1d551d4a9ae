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


// Package storage provides the long-term memory storage abstraction for lexrag.
//
// This package defines repository interfaces that decouple storage implementation
// from business logic, and the MUS binary codec used to persist records.
//
// # Constructor Return Type Pattern
//
// Public constructors return interfaces to keep callers off backend specifics:
//
//	repo, backend, err := badger.NewMemoryRepository()  // returns storage.RecordRepository
//
// Internal constructors may return concrete types since they're only used
// within the implementation package.
//
// # Architecture
//
//   - Repository: transaction support and lifecycle
//   - RecordRepository: per-user long-term records with similarity search and history
//
// Records are partitioned by user id. No operation ever returns a record owned
// by another user.
//
// # Thread Safety
//
// All repository implementations must be thread-safe and support
// concurrent access from multiple goroutines.
//
// # Context Support
//
// All repository methods accept context.Context for cancellation
// and timeout support. Pass context.Background() for operations
// without specific timeout requirements.
package storage
