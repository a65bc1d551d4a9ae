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

import (
	"fmt"
	"strings"
	"time"
)

// ValidateQuery validates a Query according to domain rules.
//
// Validation rules:
//   - Text must contain non-whitespace characters
//   - UserID must not be empty
//
// SessionID is not validated; an empty session id is assigned by the caller.
func ValidateQuery(q Query) error {
	if strings.TrimSpace(q.Text) == "" {
		return fmt.Errorf("%w: %w", ErrInvalidQuery, ErrEmptyText)
	}
	if q.UserID == "" {
		return fmt.Errorf("%w: %w", ErrInvalidQuery, ErrEmptyUserID)
	}
	return nil
}

// ValidateRole validates that a Role has a valid value.
func ValidateRole(role Role) error {
	if role != RoleUser && role != RoleAssistant {
		return fmt.Errorf("%w: value %q", ErrInvalidRole, role)
	}
	return nil
}

// ValidateTurn validates a single MemoryTurn.
func ValidateTurn(turn MemoryTurn) error {
	if err := ValidateRole(turn.Role); err != nil {
		return err
	}
	if turn.Text == "" {
		return ErrEmptyText
	}
	return nil
}

// ValidateLongTermRecord validates a LongTermRecord according to domain rules.
//
// Validation rules:
//   - UserID must not be empty
//   - At least one turn, each with a valid role and text
//   - Timestamp must not be in the future
//
// NOT validated:
//   - Vector (records without one are skipped by similarity search)
//   - ID (0 is valid before the repository assigns one)
func ValidateLongTermRecord(record *LongTermRecord) error {
	if record == nil {
		return fmt.Errorf("%w: record is nil", ErrInvalidRecord)
	}
	if record.UserID == "" {
		return fmt.Errorf("%w: %w", ErrInvalidRecord, ErrEmptyUserID)
	}
	if len(record.Turns) == 0 {
		return fmt.Errorf("%w: %w", ErrInvalidRecord, ErrNoTurns)
	}
	for i, turn := range record.Turns {
		if err := ValidateTurn(turn); err != nil {
			return fmt.Errorf("%w: turn %d: %w", ErrInvalidRecord, i, err)
		}
	}
	if !IsValidTimestamp(record.Timestamp) {
		return fmt.Errorf("%w: %w", ErrInvalidRecord, ErrInvalidTimestamp)
	}
	return nil
}

// IsValidTimestamp checks if a timestamp is valid (not in the future).
func IsValidTimestamp(ts time.Time) bool {
	return !ts.After(time.Now())
}
