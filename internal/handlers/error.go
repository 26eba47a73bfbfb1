package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
)

// ErrorResponse is the standard API error body.
type ErrorResponse struct {
	Message string `json:"message"`
}

// HTTPErrorHandler renders every unhandled error as an ErrorResponse body so
// clients see one error shape regardless of which layer failed.
func HTTPErrorHandler(log *slog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code := http.StatusInternalServerError
		msg := http.StatusText(code)
		var he *echo.HTTPError
		if errors.As(err, &he) {
			code = he.Code
			if s, ok := he.Message.(string); ok {
				msg = s
			} else {
				msg = http.StatusText(code)
			}
		}

		if c.Request().Method == http.MethodHead {
			if err := c.NoContent(code); err != nil {
				log.Error("write error response", slog.String("error", err.Error()))
			}
			return
		}
		if err := c.JSON(code, ErrorResponse{Message: msg}); err != nil {
			log.Error("write error response", slog.String("error", err.Error()))
		}
	}
}
