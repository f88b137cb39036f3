// Package reembed rebuilds every stored chunk embedding with the current
// embedder, for use after the embedding model changes.
//
// Chunks are streamed from the vector store in batches, embedded with retry,
// scaled to unit length and written back under their original IDs. When the
// new model produces a different dimension the store's dimension is switched
// before the first write, so searches against the store are inconsistent until
// the run completes. Run it while ingestion is stopped.
package reembed
