package middleware

import (
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"clan-backend/pkg/contextkeys"
)

// RequestLogger пишет одну строку на запрос.
func RequestLogger(logger *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}
			fields := []zap.Field{
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
				zap.Duration("latency", time.Since(start)),
			}
			// UserID появляется в контексте только после JWT-мидлвари.
			if userID, ok := c.Request().Context().Value(contextkeys.UserIDKey).(uint64); ok {
				fields = append(fields, zap.Uint64("user_id", userID))
			}
			logger.Info("HTTP", fields...)
			return nil
		}
	}
}
