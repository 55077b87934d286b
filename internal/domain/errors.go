package domain

import (
	"context"
	"errors"
	"fmt"
)

// Pipeline errors. Callers match them with errors.Is.
var (
	// ErrInvalidInput indicates malformed input or configuration.
	ErrInvalidInput = errors.New("invalid input")

	// ErrExtractionFailed indicates an unreadable or corrupt document.
	ErrExtractionFailed = errors.New("extraction failed")

	// ErrEmbeddingFailed indicates the model rejected or failed a request.
	ErrEmbeddingFailed = errors.New("embedding failed")

	// ErrModelUnavailable indicates the embedding or re-ranking model could
	// not be loaded or reached.
	ErrModelUnavailable = errors.New("model unavailable")

	// ErrDimensionMismatch indicates vectors and index disagree on size.
	// It is a configuration error and is never retried or degraded.
	ErrDimensionMismatch = errors.New("dimension mismatch")

	// ErrIndexUnavailable indicates the vector index backend failed.
	ErrIndexUnavailable = errors.New("index unavailable")

	// ErrCollectionMissing indicates the collection was never created.
	ErrCollectionMissing = errors.New("collection missing")

	// ErrGenerationUnavailable indicates the generation backend failed.
	ErrGenerationUnavailable = errors.New("generation unavailable")

	// ErrTimeout indicates a stage exceeded its deadline.
	ErrTimeout = errors.New("timeout")
)

// DimensionMismatchError carries the sizes involved in a mismatch.
type DimensionMismatchError struct {
	Want int
	Got  int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("dimension mismatch: want %d, got %d", e.Want, e.Got)
}

func (e *DimensionMismatchError) Is(target error) bool {
	return target == ErrDimensionMismatch
}

// CheckDimension returns a DimensionMismatchError when got differs from want.
func CheckDimension(want, got int) error {
	if want != got {
		return &DimensionMismatchError{Want: want, Got: got}
	}
	return nil
}

// FromContext maps a context deadline into ErrTimeout and leaves other errors
// untouched.
func FromContext(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, ErrTimeout) {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	return err
}
