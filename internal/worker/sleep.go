package worker

import (
	"context"
	"time"
)

// sleep waits for d or until ctx is done. Returns false when the context was
// cancelled.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
