// Package retrieval fans a set of rewritten queries out to the embedding
// service and the passage index, then merges the per-query candidates into a
// single ranked, deduplicated set.
//
// Merging is deterministic: for equal inputs the same passages come back in
// the same order no matter how the concurrent searches interleave.
package retrieval
