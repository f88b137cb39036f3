package ingestion

import (
	"fmt"

	"github.com/santhosh0997/Multimodal-Rag-System/core"
)

var (
	// ErrGraphStoreRequired is returned when a graph store is not provided.
	ErrGraphStoreRequired = fmt.Errorf("%w: graph store required", core.ErrConfig)

	// ErrVectorStoreRequired is returned when a vector store is not provided.
	ErrVectorStoreRequired = fmt.Errorf("%w: vector store required", core.ErrConfig)

	// ErrAIProviderRequired is returned when an AI provider is not provided.
	ErrAIProviderRequired = fmt.Errorf("%w: AI provider required", core.ErrConfig)

	// ErrInvalidBatchSize is returned when the embedding batch size is not positive.
	ErrInvalidBatchSize = fmt.Errorf("%w: embedding batch size must be positive", core.ErrConfig)
)
