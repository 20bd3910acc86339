package errx

import (
	"context"
	"errors"
	"net/http"

	"github.com/redis/go-redis/v9"
)

// RedisTimeoutMessage describes a Redis call abandoned by its context.
const RedisTimeoutMessage = "redis operation timed out"

// WrapRedis classifies a Redis failure. A missing key maps to 404, an expired or cancelled
// context to 504, a failed optimistic transaction to 409 and anything else to 502.
func WrapRedis(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, redis.Nil):
		return New(err, http.StatusNotFound, RedisNotFoundMessage)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return New(err, http.StatusGatewayTimeout, RedisTimeoutMessage)
	case errors.Is(err, redis.TxFailedErr):
		return New(err, http.StatusConflict, RedisErrorMessage)
	}
	return New(err, http.StatusBadGateway, RedisErrorMessage)
}
