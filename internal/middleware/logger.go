package middleware

import (
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"
)

// CtxLogger is the context key of the per-request logrus entry.
const CtxLogger = "logger"

// RequestLogger assigns a request id, stores a request-scoped entry under
// CtxLogger and logs one line per request once the handler returns.
func RequestLogger(logger log.FieldLogger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			rid := req.Header.Get(echo.HeaderXRequestID)
			if rid == "" {
				rid = uuid.NewString()
			}
			c.Response().Header().Set(echo.HeaderXRequestID, rid)
			entry := logger.WithFields(log.Fields{"request_id": rid})
			c.Set(CtxLogger, entry)

			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}
			fields := log.Fields{
				"method":     req.Method,
				"route":      c.Path(),
				"status":     c.Response().Status,
				"latency_ms": time.Since(start).Milliseconds(),
				"ip":         c.RealIP(),
			}
			switch status := c.Response().Status; {
			case status >= 500:
				entry.WithFields(fields).WithError(err).Error("request failed")
			case status >= 400:
				entry.WithFields(fields).Warn("request rejected")
			default:
				entry.WithFields(fields).Info("request served")
			}
			return nil
		}
	}
}

// Logger returns the request-scoped entry, or fallback when RequestLogger
// did not run.
func Logger(c echo.Context, fallback log.FieldLogger) log.FieldLogger {
	if l, ok := c.Get(CtxLogger).(log.FieldLogger); ok {
		return l
	}
	if fallback == nil {
		return log.StandardLogger()
	}
	return fallback
}
