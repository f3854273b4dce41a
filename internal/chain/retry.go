package chain

import (
	"context"
	"time"

	retry "github.com/avast/retry-go/v4"
	"go.uber.org/zap"
)

func (c *Client) withRetry(ctx context.Context, op string, fn func(context.Context) error) error {
	maxRetries := c.opts.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	baseDelay := c.opts.RetryBackoff
	if baseDelay <= 0 {
		baseDelay = 100 * time.Millisecond
	}

	return retry.Do(
		func() error { return fn(ctx) },
		retry.Context(ctx),
		retry.Attempts(uint(maxRetries)+1),
		retry.Delay(baseDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			c.logger.Debug("retry rpc call", zap.String("op", op), zap.Uint("attempt", n+1), zap.Error(err))
		}),
	)
}
