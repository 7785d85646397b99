package server

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rendini/mashup/log"
	"github.com/rendini/mashup/metrics"
)

const requestIDHeader = "X-Request-ID"

// requestLogger tags each request with an ID, puts a logger carrying it in
// the request context and logs the request once it is served.
func requestLogger(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		id := c.GetHeader(requestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		c.Header(requestIDHeader, id)

		logger := log.FromContext(c.Request.Context()).With("request_id", id)
		c.Request = c.Request.WithContext(log.WithContext(c.Request.Context(), logger))

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		logger.Info("Request served",
			"method", c.Request.Method,
			"route", route,
			"status", status,
			"duration", time.Since(start),
		)
		if m != nil {
			m.Requests.WithLabelValues(route, strconv.Itoa(status)).Inc()
		}
	}
}
