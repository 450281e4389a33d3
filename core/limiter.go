package core

import (
	"fmt"
	"sync/atomic"
)

// ModelCallLimitError is returned once a run asks for more model calls than
// its limiter allows.
type ModelCallLimitError struct {
	Max int
}

func (e *ModelCallLimitError) Error() string {
	return fmt.Sprintf("exceeded max model calls: %d", e.Max)
}

// ModelLimiter counts the model calls of one run. A rejected call is not
// counted, so Count never exceeds the limit.
type ModelLimiter struct {
	max   int64
	count atomic.Int64
}

// NewModelLimiter creates a limiter allowing max calls; 0 means unlimited.
func NewModelLimiter(max int) *ModelLimiter {
	return &ModelLimiter{max: int64(max)}
}

// Increment reserves one call.
func (ml *ModelLimiter) Increment() error {
	for {
		n := ml.count.Load()
		if ml.max > 0 && n >= ml.max {
			return &ModelCallLimitError{Max: int(ml.max)}
		}
		if ml.count.CompareAndSwap(n, n+1) {
			return nil
		}
	}
}

// Count returns the number of calls made so far.
func (ml *ModelLimiter) Count() int { return int(ml.count.Load()) }

// Remaining returns how many calls are left, or -1 when unlimited.
func (ml *ModelLimiter) Remaining() int {
	if ml.max == 0 {
		return -1
	}
	return int(ml.max - ml.count.Load())
}
