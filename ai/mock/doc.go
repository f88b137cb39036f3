// Package mock provides test double implementations of AI service interfaces.
//
// The mocks run without external services and behave deterministically:
//
//   - MockEmbedder: hashes non-stop-word tokens into a fixed-size unit vector,
//     so texts that share words are similar under cosine distance
//   - MockExtractor: treats runs of capitalized words as entities and short
//     lowercase phrases between two entities as relationships
//   - MockProvider: aggregates mock embedder and extractor
//
// # Usage in Tests
//
//	embedder := mock.NewMockEmbedder()
//	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
//	    return nil, core.ErrEmbeddingUnavailable
//	}
//
//	extractor := mock.NewMockExtractor()
//	extractor.ExtractFunc = func(ctx context.Context, text string, mode ai.Mode) (*ai.Extraction, error) {
//	    return &ai.Extraction{Entities: []ai.ExtractedEntity{{Name: "IBM", Type: "organization"}}}, nil
//	}
//
//	count := extractor.CallCount()
package mock
