package retrieval

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

	// ErrResolverRequired is returned when an entity resolver is not provided.
	ErrResolverRequired = fmt.Errorf("%w: entity resolver required", core.ErrConfig)

	// ErrInvalidWeights is returned for negative fusion weights or a zero sum.
	ErrInvalidWeights = fmt.Errorf("%w: fusion weights must be non-negative with a positive sum", core.ErrConfig)

	// ErrInvalidBudget is returned for a negative evidence budget.
	ErrInvalidBudget = fmt.Errorf("%w: evidence budget must not be negative", core.ErrConfig)
)
