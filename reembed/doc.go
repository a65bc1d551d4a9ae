// Package reembed recomputes the vectors of stored long-term memory records.
//
// Run it after switching embedding models: recall compares the query vector
// against record vectors, so records embedded by the previous model stop
// matching. Each record is re-embedded from its transcript, normalized and
// written back under its existing key.
package reembed
