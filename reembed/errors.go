package reembed

import (
	"errors"
	"fmt"

	"github.com/santhosh0997/Multimodal-Rag-System/core"
)

var (
	// ErrVectorStoreRequired is returned when no vector store is supplied.
	ErrVectorStoreRequired = fmt.Errorf("%w: vector store is required", core.ErrConfig)

	// ErrEmbedderRequired is returned when no embedder is supplied.
	ErrEmbedderRequired = fmt.Errorf("%w: embedder is required", core.ErrConfig)

	// ErrZeroVector is returned when the embedder yields an all-zero vector.
	ErrZeroVector = errors.New("embedding has zero magnitude")
)
