// Package lexrag answers questions about the Tunisian Labour Code.
//
// An Assistant retrieves the code's articles from a vector index, reasons
// over them in three stages (query rewriting, legal analysis, answer
// synthesis) and remembers each user's conversations:
//
//	assistant, err := lexrag.Open(dataDir)
//	if err != nil {
//		return err
//	}
//	defer assistant.Close()
//
//	resp, err := assistant.Ask(ctx, lexrag.DefaultRequest("Combien de jours de congé de maternité ?", "u1"))
//
// Open stores long-term memory in BadgerDB and passages in a persistent
// chromem-go collection under dataDir, and talks to an OpenAI-compatible
// host for embeddings and completions. New assembles an Assistant from
// caller-supplied ports instead.
package lexrag
