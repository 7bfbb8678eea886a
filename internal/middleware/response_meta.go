package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
)

const responseStartKey = "response_start"

// WithResponseMeta records the request start time so handlers can report
// elapsed processing time in their response envelope.
func WithResponseMeta() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(responseStartKey, time.Now())
		c.Next()
	}
}

// ExtractMeta returns envelope metadata for the current request, stamped
// with the elapsed handler time. Nil when WithResponseMeta is not
// installed, which omits the meta block entirely.
func ExtractMeta(c *gin.Context) map[string]interface{} {
	if c == nil {
		return nil
	}
	start, ok := c.Get(responseStartKey)
	if !ok {
		return nil
	}
	ts, isTime := start.(time.Time)
	if !isTime {
		return nil
	}
	return map[string]interface{}{
		"processing_time_ms": time.Since(ts).Milliseconds(),
	}
}
