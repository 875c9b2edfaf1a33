package httpapi

import (
	"breadstamp/internal/adapters/export"
	"breadstamp/internal/blob"
	"breadstamp/internal/core"
	"breadstamp/pkg/domain"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

type errorBody struct {
	Error      string             `json:"error"`
	Violations []domain.Violation `json:"violations,omitempty"`
}

// statusFor maps service errors onto HTTP status codes.
func statusFor(err error) (int, errorBody) {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		msg, ok := he.Message.(string)
		if !ok {
			msg = http.StatusText(he.Code)
		}
		return he.Code, errorBody{Error: msg}
	}
	var violation domain.RuleViolationError
	switch {
	case core.IsNotFound(err):
		return http.StatusNotFound, errorBody{Error: err.Error()}
	case errors.As(err, &violation):
		return http.StatusUnprocessableEntity, errorBody{Error: err.Error(), Violations: violation.Result.Violations}
	case errors.Is(err, core.ErrInvalidInput):
		return http.StatusBadRequest, errorBody{Error: err.Error()}
	case errors.Is(err, blob.ErrUnsupported):
		return http.StatusNotImplemented, errorBody{Error: err.Error()}
	case errors.Is(err, export.ErrQueueFull):
		return http.StatusServiceUnavailable, errorBody{Error: err.Error()}
	default:
		return http.StatusInternalServerError, errorBody{Error: http.StatusText(http.StatusInternalServerError)}
	}
}

func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	code, body := statusFor(err)
	if code >= http.StatusInternalServerError {
		s.logger.Error("request failed", zap.String("path", c.Request().URL.Path), zap.Error(err))
	}
	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(code)
		return
	}
	_ = c.JSON(code, body)
}
