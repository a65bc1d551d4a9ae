// Package memory implements conversational memory for the assistant.
//
// Short-term memory is a bounded ring buffer of turns per (user, session)
// that lives only in process. Long-term memory is a set of immutable records,
// one per saved session, kept in a storage.RecordRepository and recalled by
// embedding similarity. FormatContextForLLM combines both into the French
// context block injected into the reasoning prompts.
package memory
