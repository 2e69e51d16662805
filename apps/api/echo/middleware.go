package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/somesha/core/access"
	"github.com/trezcool/somesha/core/user"
)

const contextObjectKey = "object"

func adminMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		if access.Can(actor(ctx), access.ManageUsers) {
			return next(ctx)
		}
		return errHttpForbidden
	}
}

// ctxUserOrAdminMiddleware loads the user at `:id` when it is the acting user or the actor is an admin.
// Other users are reported as not found.
func ctxUserOrAdminMiddleware(svc *user.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			a := actor(ctx)
			if ctx.Param("id") == a.ID || a.IsAdmin() {
				usr, err := svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
				if err == nil {
					ctx.Set(contextObjectKey, usr)
					return next(ctx)
				}
				if errors.Cause(err) != user.ErrNotFound {
					return errors.Wrap(err, "finding user by ID")
				}
			}
			return errHttpNotFound
		}
	}
}
