package middleware

import (
	"context"
	goerrors "errors"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/turtacn/pushgate/internal/application/dto"
	"github.com/turtacn/pushgate/pkg/constants"
	"github.com/turtacn/pushgate/pkg/errors"
	"github.com/turtacn/pushgate/pkg/logger"
)

// RequestIDMiddleware assigns every request an ID, honoring one supplied by
// the caller, and exposes it in the response header and the request context.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(constants.HeaderRequestID)
		if id == "" || len(id) > 64 {
			id = uuid.NewString()
		}
		c.Set(string(constants.ContextKeyRequestID), id)
		c.Header(constants.HeaderRequestID, id)
		c.Request = c.Request.WithContext(context.WithValue(c.Request.Context(), constants.ContextKeyRequestID, id))
		c.Next()
	}
}

// LoggingMiddleware logs incoming requests.
func LoggingMiddleware(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)

		fields := []logger.Field{
			logger.String("method", c.Request.Method),
			logger.String("path", c.Request.URL.Path),
			logger.Int("status", c.Writer.Status()),
			logger.Int64("latency_ms", latency.Milliseconds()),
			logger.String("client_ip", c.ClientIP()),
		}
		if c.Writer.Status() >= 500 {
			log.Warn(c.Request.Context(), "Request processed", fields...)
			return
		}
		log.Info(c.Request.Context(), "Request processed", fields...)
	}
}

// RecoveryMiddleware recovers from panics.
func RecoveryMiddleware(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				log.Error(c.Request.Context(), "Panic recovered", goerrors.New("panic"),
					logger.String("panic", fmt.Sprint(rec)),
					logger.String("path", c.Request.URL.Path),
				)
				dto.AbortWithError(c, errors.ErrInternal)
			}
		}()
		c.Next()
	}
}

// BasicAuthMiddleware protects every route with HTTP Basic credentials.
// An empty user disables the check.
func BasicAuthMiddleware(user, pass string) gin.HandlerFunc {
	if user == "" {
		return func(c *gin.Context) { c.Next() }
	}
	return gin.BasicAuthForRealm(gin.Accounts{user: pass}, constants.ServiceName)
}
