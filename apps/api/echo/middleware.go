package echoapi

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/bangkihwa/studylink/core/user"
)

var requestIDConfig = middleware.RequestIDConfig{
	Skipper:   middleware.DefaultSkipper,
	Generator: func() string { return uuid.New().String() },
}

// staffMiddleware lets teachers and admins through.
func staffMiddleware(users user.Repository) echo.MiddlewareFunc {
	return userMiddleware(users, func(usr user.User) bool { return usr.IsStaff() })
}

func studentMiddleware(users user.Repository) echo.MiddlewareFunc {
	return userMiddleware(users, func(usr user.User) bool { return usr.IsStudent() })
}

// userMiddleware loads the context user and checks it against allowed.
func userMiddleware(users user.Repository, allowed func(user.User) bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			usr, err := getContextUser(ctx, users)
			if err != nil {
				return errors.Wrap(err, "getting context user")
			}
			if !allowed(usr) {
				return errHttpForbidden
			}
			return next(ctx)
		}
	}
}
