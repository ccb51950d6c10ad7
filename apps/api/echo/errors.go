package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/bangkihwa/studylink/core"
	"github.com/bangkihwa/studylink/core/user"
)

var (
	errUnauthorized       = echo.NewHTTPError(http.StatusUnauthorized, "user not authenticated")
	errAccountDeactivated = echo.NewHTTPError(http.StatusForbidden, "account deactivated")
	errHttpForbidden      = echo.NewHTTPError(http.StatusForbidden, "permission denied")
	errHttpNotFound       = echo.NewHTTPError(http.StatusNotFound, "not found")
)

// kindStatus maps domain error kinds to response codes.
var kindStatus = map[core.ErrorKind]int{
	core.KindNotFound:       http.StatusNotFound,
	core.KindForbidden:      http.StatusForbidden,
	core.KindNotAvailable:   http.StatusForbidden,
	core.KindNotPublished:   http.StatusForbidden,
	core.KindDeadlinePassed: http.StatusForbidden,
	core.KindConflict:       http.StatusConflict,
}

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		var message interface{}

		switch origErr := errors.Cause(err).(type) {
		case *echo.HTTPError:
			if origErr == middleware.ErrJWTMissing {
				code = http.StatusUnauthorized
				message = origErr.Message
				break
			}
			if origErr.Internal != nil {
				if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
					origErr = herr
				}
			}
			code = origErr.Code
			message = origErr.Message
		case validator.ValidationErrors:
			fldErrs := make(map[string]string, len(origErr))
			for _, vErr := range origErr {
				fldErrs[vErr.Field()] = vErr.Translate(core.Translator)
			}
			code = http.StatusBadRequest
			message = fldErrs
		case *core.ValidationError:
			if origErr.Fields != nil {
				fldErrs := make(map[string]string, len(origErr.Fields))
				for _, fErr := range origErr.Fields {
					fldErrs[fErr.Field] = fErr.Error
				}
				message = fldErrs
			} else {
				message = origErr.Error()
			}
			code = http.StatusBadRequest
		case *core.Error:
			if status, ok := kindStatus[origErr.Kind]; ok {
				code = status
				message = origErr.Message
				break
			}
			code, message = internalError(err, ctx, logger, signalShutdown)
		default: // any other error is a server error
			code, message = internalError(err, ctx, logger, signalShutdown)
		}

		if ctx.Echo().Debug {
			message = err.Error()
		} else if m, ok := message.(string); ok {
			message = echo.Map{"error": m}
		}

		// Send response
		if !ctx.Response().Committed {
			if ctx.Request().Method == http.MethodHead { // Issue #608
				err = ctx.NoContent(code)
			} else {
				err = ctx.JSON(code, message)
			}
			if err != nil {
				ctx.Echo().Logger.Error(err)
			}
		}
	}
}

func internalError(err error, ctx echo.Context, logger core.Logger, signalShutdown func()) (int, string) {
	msg := http.StatusText(http.StatusInternalServerError)

	var usr user.User
	if claims, cErr := getContextClaims(ctx); cErr == nil {
		usr.ID = claims.UserID
		usr.Name = claims.Name
		usr.Email = claims.Email
	}
	logger.Error(msg, errors.Wrap(err, msg), usr, map[string]interface{}{
		"request_id": ctx.Response().Header().Get(echo.HeaderXRequestID),
		"path":       ctx.Path(),
	})

	// shutting down...
	if core.IsShutdown(err) && signalShutdown != nil {
		signalShutdown()
	}
	return http.StatusInternalServerError, msg
}
