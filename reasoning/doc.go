// Package reasoning implements the three-stage legal reasoning engine.
//
// A run moves through an explicit state machine:
//
//	Rewriting -> Analyzing -> Synthesizing -> Done
//	     any stage ----------------------> Aborted
//
// Stage 1 asks the model for search queries. If the model stays unavailable
// or answers with nothing usable, the raw question is searched; a rejected
// request aborts the run at stage 1 before any retrieval.
// Retrieval runs between stages 1 and 2. Stage 2 analyzes the retrieved
// passages, and stage 3 turns the analysis into the answer shown to the user.
// Every completion is retried with exponential backoff on transient failures;
// a rejected request is not retried.
package reasoning
