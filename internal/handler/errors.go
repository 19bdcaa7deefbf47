package handler

import (
	"net/http"

	"bucketstream/internal/middleware"
	"bucketstream/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
)

// writeError attaches err for the error middleware to log and responds with
// the mapped status. Server-side details are not echoed to the caller.
func writeError(c *gin.Context, err error) {
	_ = c.Error(err)
	status, code := middleware.StatusFor(err)
	msg := err.Error()
	if status >= http.StatusInternalServerError {
		msg = http.StatusText(status)
	}
	c.JSON(status, httpdto.NewErrorResponse(msg, code))
}
