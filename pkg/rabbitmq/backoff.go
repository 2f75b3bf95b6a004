package rabbitmq

import (
	"context"
	"math/rand"
	"time"
)

// retryBackoff returns the delay before the given retry attempt (0-based).
// The ceiling doubles from minBackoff per attempt up to maxBackoff and the
// result is drawn from [ceiling/2, ceiling).
func retryBackoff(retry int, minBackoff, maxBackoff time.Duration) time.Duration {
	if retry < 0 {
		retry = 0
	}
	if minBackoff <= 0 {
		return 0
	}
	if maxBackoff < minBackoff {
		maxBackoff = minBackoff
	}

	d := minBackoff << uint(retry)
	if d < minBackoff || d > maxBackoff || retry > 62 {
		d = maxBackoff
	}

	half := d / 2
	if half <= 0 {
		return d
	}
	return half + time.Duration(rand.Int63n(int64(half)))
}

func sleepWithContext(ctx context.Context, dur time.Duration) error {
	t := time.NewTimer(dur)
	defer t.Stop()

	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
