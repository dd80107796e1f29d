package store

import (
	"time"

	"k8s.io/apimachinery/pkg/util/wait"
	"k8s.io/client-go/util/retry"
)

// ConnBackoff bounds the number and pacing of retries WithRetry applies
// to a single operation on a transient connection error.
var ConnBackoff = wait.Backoff{
	Duration: 20 * time.Millisecond,
	Factor:   2.0,
	Steps:    4,
}

// IsConnectionError classifies err as a transient failure worth
// retrying. Callers plug in their backing store's own transient-error
// predicate (e.g. a *net.OpError check, or redis's own connection
// errors); by default every non-nil, non-ErrConflict error is treated
// as transient, since ErrConflict has its own retry loop in the claim
// controller and must not be swallowed here.
func IsConnectionError(err error) bool {
	return err != nil && err != ErrConflict
}

// WithRetry re-executes op on a transient connection error, using a
// bounded exponential backoff, matching the retry.OnError/wait.Backoff
// pattern this codebase already uses around its own external calls.
// ErrConflict is never retried here; the claim controller's own
// contention loop owns that case.
func WithRetry(op func() error) error {
	return retry.OnError(ConnBackoff, IsConnectionError, op)
}

// WithRetryIf re-executes op using the same bounded backoff as
// WithRetry, but lets the caller supply its own transient-error
// predicate. The claim controller uses this to avoid retrying its own
// semantic errors (claim/queue not found, validation) that op may
// return alongside genuine connection failures.
func WithRetryIf(op func() error, retryable func(error) bool) error {
	return retry.OnError(ConnBackoff, retryable, op)
}
