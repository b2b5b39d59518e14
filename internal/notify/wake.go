package notify

import (
	"context"

	"github.com/redis/go-redis/v9"

	"github.com/nollyai/studio-server/internal/infra"
)

// Wakeups subscribes to the job event channel and signals each received
// event. The returned channel is buffered and lossy: the scheduler only needs
// to know "something was queued", not how many times.
func Wakeups(ctx context.Context, client *redis.Client, logger infra.Logger) <-chan struct{} {
	if client == nil {
		return nil
	}

	wake := make(chan struct{}, 1)
	sub := client.Subscribe(ctx, ChannelJobs)

	go func() {
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-ch:
				if !ok {
					logger.Warn().Msg("notify: wake subscription closed")
					return
				}
				select {
				case wake <- struct{}{}:
				default:
				}
			}
		}
	}()

	return wake
}
