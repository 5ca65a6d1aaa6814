package echoapi

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/darasa/shule/core"
	"github.com/darasa/shule/core/ratelimit"
)

// rateLimiter guards mutation endpoints with per-user fixed windows. It must
// run after the JWT middleware; the counter key is the authenticated user ID.
type rateLimiter struct {
	limiter   ratelimit.Limiter
	policies  map[ratelimit.Operation]ratelimit.Config
	logger    core.Logger
	skipRoles []string // role prefixes exempt from limiting
}

func (rl *rateLimiter) limit(op ratelimit.Operation) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			if rl == nil || rl.limiter == nil {
				return next(ctx)
			}

			claims, err := getContextClaims(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context claims")
			}
			for _, prefix := range rl.skipRoles {
				if claims.RoleStartsWith(prefix) {
					return next(ctx)
				}
			}

			cfg, ok := rl.policies[op]
			if !ok {
				// unguarded operation; nothing to count
				return next(ctx)
			}

			res, err := rl.limiter.Check(ctx.Request().Context(), claims.Subject, string(op), cfg)
			if err != nil {
				// the check could not be performed: let the request through
				// rather than block legitimate traffic on a limiter outage
				rl.logger.Warn(fmt.Sprintf("rate limit check failed for user %s op %s, failing open: %v", claims.Subject, op, err))
				return next(ctx)
			}

			header := ctx.Response().Header()
			for k, v := range ratelimit.Headers(res) {
				header.Set(k, v)
			}

			if !res.Allowed {
				return ctx.JSON(http.StatusTooManyRequests, echo.Map{
					"error":      "Rate limit exceeded",
					"message":    fmt.Sprintf("Too many requests. Try again in %d seconds.", res.RetryAfter),
					"retryAfter": res.RetryAfter,
				})
			}
			return next(ctx)
		}
	}
}
