package db

import "time"

// Operation is a function that performs an action and returns an error if it fails.
type Operation func() error

// Retryable reports whether a failed operation may be attempted again.
type Retryable func(err error) bool

// WithRetries runs op once plus up to maxRetries more times while retryable(err) holds,
// sleeping delay between attempts. The last error is returned when attempts run out.
func WithRetries(op Operation, maxRetries int, delay time.Duration, retryable Retryable) error {
	var err error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		err = op()
		if err == nil {
			return nil
		}
		if attempt == maxRetries || !retryable(err) {
			break
		}
		if delay > 0 {
			time.Sleep(delay)
		}
	}
	return err
}
