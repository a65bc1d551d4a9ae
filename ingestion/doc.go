// Package ingestion loads pre-chunked legal passages into a vector index.
//
// The Pipeline embeds passages in batches on a worker pool, retrying
// transient embedding failures, and writes them with their vectors through
// an index.Writer. Passages are read from the chunk JSON produced by the
// article chunker; splitting source documents into passages is not handled
// here.
package ingestion
