package echoapi

import (
	"github.com/labstack/echo/v4"

	"github.com/trezcool/darasa/core/account"
)

// roleMiddleware lets through accounts having any of roles.
func roleMiddleware(roles ...account.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			acc, err := getContextAccount(ctx)
			if err != nil {
				return err
			}
			for _, role := range roles {
				if acc.Role == role {
					return next(ctx)
				}
			}
			return errHttpForbidden
		}
	}
}
