package db

import (
	"errors"
	"testing"
	"time"
)

var errServerSelection = errors.New("server selection error: context deadline exceeded")

func onlySelection(err error) bool { return errors.Is(err, errServerSelection) }

func always(error) bool { return true }

func TestWithRetries_SuccessfulFirstAttempt(t *testing.T) {
	var opCalled int
	err := WithRetries(func() error {
		opCalled++
		return nil
	}, 3, 0, always)
	if err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
	if opCalled != 1 {
		t.Errorf("Expected operation to be called 1 time, got %d", opCalled)
	}
}

func TestWithRetries_NonRetryableStopsImmediately(t *testing.T) {
	var opCalled int
	expectedErr := errors.New("some other error")
	err := WithRetries(func() error {
		opCalled++
		return expectedErr
	}, 3, 0, onlySelection)
	if !errors.Is(err, expectedErr) {
		t.Errorf("Expected error %v, got %v", expectedErr, err)
	}
	if opCalled != 1 {
		t.Errorf("Expected operation to be called 1 time, got %d", opCalled)
	}
}

func TestWithRetries_ExhaustRetries(t *testing.T) {
	var opCalled int
	maxRetries := 3
	err := WithRetries(func() error {
		opCalled++
		return errServerSelection
	}, maxRetries, time.Millisecond, onlySelection)

	if !errors.Is(err, errServerSelection) {
		t.Fatalf("Expected the last selection error, got %v", err)
	}
	if opCalled != maxRetries+1 {
		t.Errorf("Expected operation to be called %d times, got %d", maxRetries+1, opCalled)
	}
}

func TestWithRetries_RecoversAfterFailures(t *testing.T) {
	var opCalled int
	err := WithRetries(func() error {
		opCalled++
		if opCalled < 3 {
			return errors.New("connection refused")
		}
		return nil
	}, 4, time.Millisecond, always)
	if err != nil {
		t.Fatalf("Expected success after retries, got: %v", err)
	}
	if opCalled != 3 {
		t.Errorf("Expected operation to be called 3 times, got %d", opCalled)
	}
}

func TestWithRetries_ZeroRetriesRunsOnce(t *testing.T) {
	var opCalled int
	_ = WithRetries(func() error {
		opCalled++
		return errors.New("boom")
	}, 0, time.Hour, always)
	if opCalled != 1 {
		t.Errorf("Expected operation to be called 1 time, got %d", opCalled)
	}
}
