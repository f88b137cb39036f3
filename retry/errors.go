package retry

import (
	"context"
	"errors"
	"fmt"

	"github.com/santhosh0997/Multimodal-Rag-System/core"
)

var (
	// ErrInvalidMaxAttempts is returned when MaxAttempts is <= 0
	ErrInvalidMaxAttempts = fmt.Errorf("%w: max attempts must be greater than 0", core.ErrConfig)

	// ErrInvalidDelay is returned when BaseDelay or Timeout is negative
	ErrInvalidDelay = fmt.Errorf("%w: delays must not be negative", core.ErrConfig)
)

// Classify files a provider failure under sentinel so that callers see a
// specific reason code. Errors already carrying sentinel, configuration and
// malformed-response errors and caller cancellation are returned unchanged.
// Per-attempt timeouts and anything unclassified become sentinel failures.
func Classify(sentinel, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sentinel),
		errors.Is(err, core.ErrConfig),
		errors.Is(err, core.ErrMalformedResponse),
		errors.Is(err, context.Canceled):
		return err
	default:
		return fmt.Errorf("%w: %w", sentinel, err)
	}
}
