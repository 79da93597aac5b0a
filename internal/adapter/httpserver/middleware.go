package httpserver

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nolancloud/ncp/internal/auth"
	domainerrors "github.com/nolancloud/ncp/internal/domain/errors"
)

const identityKey = "ncp.identity"

// requireIdentity resolves the requester from X-API-Key or a Bearer
// token and aborts with 401 when neither is presented, or 403 when a
// presented credential is invalid.
func requireIdentity(resolver auth.Resolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, err := resolver.Resolve(c.Request.Context(), c.Request)
		if err != nil {
			c.AbortWithStatusJSON(statusFor(err), response{Ok: false, Error: err.Error()})
			return
		}
		if identity == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response{Ok: false, Error: "authentication required"})
			return
		}
		c.Set(identityKey, identity)
		c.Next()
	}
}

// optionalIdentity attaches the requester when a valid credential is
// presented and lets the request through anonymously otherwise. Object
// downloads use this: a missing or bad credential still leaves public
// and token access on the table.
func optionalIdentity(resolver auth.Resolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, err := resolver.Resolve(c.Request.Context(), c.Request)
		if err == nil && identity != nil {
			c.Set(identityKey, identity)
		}
		c.Next()
	}
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		logger.Info("request",
			"method", method,
			"path", path,
			"status", c.Writer.Status(),
			"latency", time.Since(start).String(),
		)
	}
}

// statusFor maps domain errors to HTTP status codes. Transport and
// usecase layers never see status codes; the mapping lives only here.
func statusFor(err error) int {
	switch {
	case domainerrors.IsValidation(err):
		return http.StatusBadRequest
	case domainerrors.IsNotFound(err):
		return http.StatusNotFound
	case domainerrors.IsPermissionDenied(err), domainerrors.IsInvalidCapability(err):
		return http.StatusForbidden
	case domainerrors.IsConflict(err):
		return http.StatusConflict
	case domainerrors.IsRuntimeUnavailable(err):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
