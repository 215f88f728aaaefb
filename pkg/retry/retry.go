// Package retry wraps network operations with exponential backoff. Every
// outbound call in the pipeline (Slack API, storage writes) goes through
// Do with a call-site specific attempt ceiling.
package retry

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// Policy controls how an operation is retried.
type Policy struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int

	// InitialBackoff is the delay after the first failed attempt; it
	// doubles after each subsequent failure.
	InitialBackoff time.Duration

	// MaxBackoff caps the delay between attempts. Zero means no cap.
	MaxBackoff time.Duration

	// Retryable classifies an error as transient. Nil retries every error.
	// A non-retryable error aborts immediately and is returned as-is.
	Retryable func(error) bool

	// Sleep is the wait function; nil means time.Sleep. Tests inject a
	// recorder here.
	Sleep func(time.Duration)
}

// DefaultPolicy is the storage-write default: 5 attempts starting at 1s.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:    5,
		InitialBackoff: time.Second,
		MaxBackoff:     60 * time.Second,
	}
}

// Backoff returns the delay after the given failed attempt (1-based):
// initial * 2^(attempt-1), capped at max when max > 0.
func Backoff(attempt int, initial, max time.Duration) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := initial << uint(attempt-1)
	if max > 0 && d > max {
		return max
	}
	return d
}

// ExhaustedError is the terminal failure after all attempts are spent. It
// carries the last error and the attempt count for the run summary.
type ExhaustedError struct {
	Op       string
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("%s failed after %d attempts: %v", e.Op, e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Err
}

// Do executes fn, retrying transient failures with exponential backoff.
// Fatal (non-retryable) errors are returned immediately without retrying.
func Do(p Policy, op string, fn func() error) error {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = time.Sleep
	}

	var last error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		if p.Retryable != nil && !p.Retryable(err) {
			return err
		}
		last = err

		if attempt == p.MaxAttempts {
			break
		}

		wait := Backoff(attempt, p.InitialBackoff, p.MaxBackoff)
		logrus.WithFields(logrus.Fields{
			"op":      op,
			"attempt": attempt,
			"wait":    wait.String(),
		}).WithError(err).Warn("Retrying after transient failure")
		sleep(wait)
	}

	// Exhaustion is logged at error level so an external alert can fire.
	logrus.WithFields(logrus.Fields{
		"op":       op,
		"attempts": p.MaxAttempts,
	}).WithError(last).Error("Retries exhausted")

	return &ExhaustedError{Op: op, Attempts: p.MaxAttempts, Err: last}
}
