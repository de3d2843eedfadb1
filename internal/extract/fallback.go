package extract

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrNoCandidates = errors.New("no candidates to try")
	// ErrAllSkipped is returned when every candidate failed with a skippable error.
	ErrAllSkipped = errors.New("all candidates were skipped")
)

// FirstSuccess tries candidates in order and returns the first successful result with the
// candidate that produced it. An error for which skip reports true moves on to the next
// candidate; any other error stops the walk and is returned as is.
func FirstSuccess[C, T any](ctx context.Context, candidates []C, call func(context.Context, C) (T, error), skip func(error) bool) (T, C, error) {
	var (
		zeroT   T
		zeroC   C
		lastErr error
	)
	if len(candidates) == 0 {
		return zeroT, zeroC, ErrNoCandidates
	}
	for _, c := range candidates {
		if err := ctx.Err(); err != nil {
			return zeroT, zeroC, err
		}
		out, err := call(ctx, c)
		if err == nil {
			return out, c, nil
		}
		if skip == nil || !skip(err) {
			return zeroT, c, err
		}
		lastErr = err
	}
	return zeroT, zeroC, fmt.Errorf("%w: %w", ErrAllSkipped, lastErr)
}
