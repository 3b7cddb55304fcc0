// Package scheduler owns the per-address follow-up timers and races timer
// expiry against inbound-reply cancellation.
package scheduler

import "errors"

var ErrSchedulerStopped = errors.New("scheduler is stopped")
