package coordinator

import (
	"context"
	"time"
)

// WaitNavigable lets a caller proceed to its next step without waiting for
// full completion. It returns true as soon as the job completes, false as
// soon as it errors, and on timeout falls back to the last known status:
// anything but a confirmed error counts as safe to proceed. The timeout
// abandons the wait only; the underlying work keeps running.
func (c *Coordinator) WaitNavigable(ctx context.Context, jobID string, timeout time.Duration) bool {
	outcome := make(chan bool, 1)

	unsubscribe := c.Subscribe(func(job Job) {
		if job.ID != jobID {
			return
		}
		switch job.Status {
		case StatusCompleted:
			select {
			case outcome <- true:
			default:
			}
		case StatusError:
			select {
			case outcome <- false:
			default:
			}
		}
	})
	defer unsubscribe()

	// The job may have gone terminal before the subscription landed.
	if job, ok := c.Status(jobID); ok && job.Terminal() {
		return job.Status == StatusCompleted
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case navigable := <-outcome:
		return navigable
	case <-ctx.Done():
	case <-timer.C:
	}

	job, ok := c.Status(jobID)
	return !ok || job.Status != StatusError
}
