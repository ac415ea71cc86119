package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/trezcool/janus/services/ratelimit"
)

// groupsMiddleware lets through superusers and members of any of groups.
func groupsMiddleware(groups ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			usr, err := getContextUser(ctx)
			if err != nil {
				return err
			}
			if usr.Allowed(groups...) {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}

// staffMiddleware guards the admin console: staff accounts that are superusers or members of groups.
func staffMiddleware(groups ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			usr, err := getContextUser(ctx)
			if err != nil {
				return err
			}
			if usr.IsStaff && usr.Allowed(groups...) {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}

func superuserMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			usr, err := getContextUser(ctx)
			if err != nil {
				return err
			}
			if usr.IsSuperuser {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}

type limiterStore struct {
	store *ratelimit.Store
}

func (ls limiterStore) Allow(identifier string) (bool, error) {
	return ls.store.Allow(identifier), nil
}

// rateLimitMiddleware limits requests per client IP. A nil store disables it.
func rateLimitMiddleware(store *ratelimit.Store) echo.MiddlewareFunc {
	if store == nil {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Store: limiterStore{store: store},
		IdentifierExtractor: func(ctx echo.Context) (string, error) {
			return ctx.RealIP(), nil
		},
		ErrorHandler: func(ctx echo.Context, err error) error {
			return errHttpForbidden
		},
		DenyHandler: func(ctx echo.Context, identifier string, err error) error {
			return errTooManyRequests
		},
	})
}
