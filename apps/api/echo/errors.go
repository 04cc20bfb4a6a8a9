package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/account"
	"github.com/trezcool/darasa/core/classroom"
	"github.com/trezcool/darasa/core/community"
	"github.com/trezcool/darasa/storage/database/crud"
)

var (
	errUnauthorized    = echo.NewHTTPError(http.StatusUnauthorized, "account not authenticated")
	errRefreshExpired  = echo.NewHTTPError(http.StatusForbidden, "refresh has expired")
	errHttpForbidden   = echo.NewHTTPError(http.StatusForbidden, "permission denied")
	errHttpNotFound    = echo.NewHTTPError(http.StatusNotFound, "not found")
	errTooManyRequests = echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded")

	// domain errors safe to report as they are
	errStatusCodes = map[error]int{
		account.ErrInvalidCredentials:  http.StatusUnauthorized,
		account.ErrInvalidCode:         http.StatusUnauthorized,
		account.ErrPendingExpired:      http.StatusUnauthorized,
		account.ErrSecondFactorEnabled: http.StatusConflict,
		account.ErrNotFound:            http.StatusNotFound,
		community.ErrNotFound:          http.StatusNotFound,
		community.ErrNotSubscribed:     http.StatusNotFound,
		classroom.ErrNotFound:          http.StatusNotFound,
		classroom.ErrNoTeacherRecord:   http.StatusForbidden,
		core.ErrPermissionDenied:       http.StatusForbidden,
	}
)

func domainStatus(err error) (int, bool) {
	for e, status := range errStatusCodes {
		if err == e {
			return status, true
		}
	}
	return 0, false
}

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		var message interface{}

		switch origErr := errors.Cause(err).(type) {
		case *echo.HTTPError:
			if origErr.Internal != nil {
				if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
					origErr = herr
				}
			}
			code = origErr.Code
			message = origErr.Message
		case validator.ValidationErrors:
			code = http.StatusBadRequest
			message = core.TranslateErrors(origErr, translator)
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
		default:
			if status, ok := domainStatus(origErr); ok {
				code = status
				message = origErr.Error()
				break
			}
			if errors.Is(err, crud.ErrNotFound) {
				code = http.StatusNotFound
				message = http.StatusText(code)
				break
			}
			if errors.Is(err, crud.ErrConstraint) {
				code = http.StatusConflict
				message = http.StatusText(code)
				break
			}

			// any other error is a server error
			code = http.StatusInternalServerError
			msg := http.StatusText(http.StatusInternalServerError)
			message = msg

			args := []interface{}{errors.Wrap(err, msg)}
			if acc, aErr := getContextAccount(ctx); aErr == nil {
				args = append(args, acc)
			}
			logger.Error(msg, args...)

			// shutting down...
			if core.IsShutdown(err) {
				signalShutdown()
			}
		}

		if ctx.Echo().Debug {
			message = err.Error()
		}
		if m, ok := message.(string); ok {
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
