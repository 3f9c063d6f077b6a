package api

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ioogle/evm-tx-sampler/pkg/logger"
)

// AuthMiddleware authentication middleware
// Using Bearer Token authentication, disabled when authToken is empty
func AuthMiddleware(authToken string) gin.HandlerFunc {
	if authToken == "" {
		logger.Warn("API auth token not configured, skipping authentication")
		return func(c *gin.Context) { c.Next() }
	}

	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, Response{
				Status: StatusFailure,
				Error:  "missing Authorization header",
			})
			return
		}

		// Support "Bearer <token>" or direct "<token>" format
		token := strings.TrimPrefix(authHeader, "Bearer ")
		if subtle.ConstantTimeCompare([]byte(token), []byte(authToken)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, Response{
				Status: StatusFailure,
				Error:  "invalid auth token",
			})
			return
		}

		c.Next()
	}
}

// RequestTimeout bounds the request context; zero disables it
func RequestTimeout(timeout time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if timeout <= 0 {
			c.Next()
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()

		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// RequestLogger request logging middleware
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		latency := time.Since(start)
		statusCode := c.Writer.Status()

		logger.Debugf("[API] %s %s %d %v", method, path, statusCode, latency)
	}
}
