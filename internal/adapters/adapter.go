package adapters

import (
	"context"
	"fmt"

	"github.com/maltesIam/cyberdemo-sub000/internal/enrich"
)

// SourceAdapter is the leaf contract every external enrichment source
// implements. FetchBatch returns a fragment per item id it knows about; an
// absent id is simply missing from the map, never an error. Errors signal
// infrastructure problems (timeout, auth, upstream throttling, bad payload)
// and are exactly the failures the circuit breaker counts.
type SourceAdapter interface {
	Name() string
	FetchBatch(ctx context.Context, itemIDs []string) (map[string]enrich.Fragment, error)
}

// AdapterError wraps an infrastructure failure of one source.
type AdapterError struct {
	Source string
	Err    error
}

func NewAdapterError(source string, err error) *AdapterError {
	return &AdapterError{Source: source, Err: err}
}

func (e *AdapterError) Error() string {
	return fmt.Sprintf("source %s: %v", e.Source, e.Err)
}

func (e *AdapterError) Unwrap() error {
	return e.Err
}
