package syncqueue

import (
	"time"

	"github.com/prudhvinik1/ledgersync/internal/models"
)

const (
	// MaxRetries is the attempt count at which an item is abandoned.
	MaxRetries = 5

	baseDelay = time.Second
	maxDelay  = 30 * time.Second
)

// Delay is the backoff after retryCount failed attempts:
// min(1s * 2^retryCount, 30s).
func Delay(retryCount int) time.Duration {
	if retryCount < 0 {
		retryCount = 0
	}
	if retryCount >= 5 {
		return maxDelay
	}
	d := baseDelay << retryCount
	if d > maxDelay {
		return maxDelay
	}
	return d
}

// Abandoned items stay in the queue as failed and are never sent again.
func Abandoned(item *models.QueueItem) bool {
	return item.RetryCount >= MaxRetries
}

// Eligible reports whether a failed item's backoff window has elapsed.
// Pending items are always eligible.
func Eligible(item *models.QueueItem, now time.Time) bool {
	if Abandoned(item) {
		return false
	}
	if item.Status != models.QueueFailed || item.LastAttempt == nil {
		return true
	}
	return now.Sub(*item.LastAttempt) >= Delay(item.RetryCount)
}
