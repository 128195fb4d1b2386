package echoportal

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/perception/core"
	"github.com/trezcool/perception/services/backend"
)

var (
	errAccessDenied    = echo.NewHTTPError(http.StatusForbidden, "Access denied.")
	errDoubleSubmit    = echo.NewHTTPError(http.StatusBadRequest, "Failed to verify double submit cookie.")
	errMissingGoogleID = echo.NewHTTPError(http.StatusBadRequest, "Missing Google credential.")
)

type errorData struct {
	Code    int
	Message string
}

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler rendering our errors as the error page.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, newPage func(echo.Context, string) *page, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		var message string

		switch origErr := errors.Cause(err).(type) {
		case *echo.HTTPError:
			if origErr.Internal != nil {
				if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
					origErr = herr
				}
			}
			code = origErr.Code
			if msg, ok := origErr.Message.(string); ok {
				message = msg
			} else {
				message = http.StatusText(code)
			}
		case *core.ValidationError:
			code = http.StatusBadRequest
			message = origErr.Error()
		default: // any other error is a server error
			code = http.StatusInternalServerError
			message = http.StatusText(http.StatusInternalServerError)

			p := newPage(ctx, "")
			logger.Error(message, errors.Wrap(err, message), p.User, map[string]interface{}{
				"request_id": ctx.Response().Header().Get(echo.HeaderXRequestID),
				"path":       ctx.Path(),
			})

			// shutting down...
			if core.IsShutdown(err) {
				signalShutdown()
			}
		}

		if ctx.Echo().Debug {
			message = err.Error()
		}

		// Send response
		if !ctx.Response().Committed {
			if ctx.Request().Method == http.MethodHead { // Issue #608
				err = ctx.NoContent(code)
			} else {
				p := newPage(ctx, http.StatusText(code))
				p.Data = errorData{Code: code, Message: message}
				err = ctx.Render(code, "error", p)
			}
			if err != nil {
				ctx.Echo().Logger.Error(err)
			}
		}
	}
}

// failureStatus is the status of a page re-rendered after a failed backend call:
// the backend's own client error status, 502 for anything else.
func failureStatus(err error) int {
	if apiErr, ok := errors.Cause(err).(*backend.APIError); ok {
		if apiErr.StatusCode >= http.StatusBadRequest && apiErr.StatusCode < http.StatusInternalServerError {
			return apiErr.StatusCode
		}
	}
	return http.StatusBadGateway
}

// fieldErrors returns the field messages of a validation error, nil for any other error.
func fieldErrors(err error) map[string]string {
	if vErr, ok := errors.Cause(err).(*core.ValidationError); ok {
		return vErr.FieldErrors()
	}
	return nil
}
