package middleware

import (
	"errors"
	"net/http"

	"bucketstream/internal/transport/httpdto"
	relay_errors "bucketstream/pkg/errors"
	"bucketstream/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// StatusFor maps an error to its HTTP status and envelope code.
func StatusFor(err error) (int, httpdto.Code) {
	switch {
	case errors.Is(err, relay_errors.ErrAuthentication):
		return http.StatusUnauthorized, httpdto.CodeUnauthorized
	case errors.Is(err, relay_errors.ErrSchema), errors.Is(err, relay_errors.ErrInvalidInput):
		return http.StatusBadRequest, httpdto.CodeInvalidRequest
	case errors.Is(err, relay_errors.ErrNotFound):
		return http.StatusNotFound, httpdto.CodeNotFound
	case errors.Is(err, relay_errors.ErrServiceUnavailable):
		return http.StatusServiceUnavailable, httpdto.CodeServiceUnavailable
	case errors.Is(err, relay_errors.ErrStoreFailure):
		return http.StatusInternalServerError, httpdto.CodeStoreFailure
	default:
		return http.StatusInternalServerError, httpdto.CodeInternal
	}
}

// ErrorHandler renders the last error attached with c.Error as an error
// envelope, unless the handler already wrote a response.
func ErrorHandler(l *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		err := c.Errors.Last().Err
		status, code := StatusFor(err)
		if l != nil && status >= http.StatusInternalServerError {
			l.WithContext(c.Request.Context()).Error("request error", zap.Error(err), zap.String("code", string(code)))
		}
		if c.Writer.Written() {
			return
		}

		msg := err.Error()
		if status >= http.StatusInternalServerError {
			msg = http.StatusText(status)
		}
		c.AbortWithStatusJSON(status, httpdto.NewErrorResponse(msg, code))
	}
}
