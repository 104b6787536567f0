package middleware

import (
	"errors"
	"net"
	"net/http"
	"strings"

	"neorest/pkg/auth"
	apperrors "neorest/pkg/errors"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// Disabled rejects every request with 403. It stands in for the admin gate
// when extension loading is turned off.
func Disabled(errorHandler *apperrors.ErrorHandler) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			errorHandler.Handle(w, r, apperrors.NewForbiddenError("Extensions are disabled"))
		})
	}
}

// RequireAdmin rate limits by client IP, then requires a valid bearer token carrying the admin role.
func RequireAdmin(validator *auth.JWTValidator, limiter auth.RateLimiter, errorHandler *apperrors.ErrorHandler, logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientIP := getClientIP(r)

			allowed, err := limiter.Allow(r.Context(), clientIP)
			if err != nil {
				logger.Warn("Rate limiter error", zap.Error(err), zap.String("ip", clientIP))
			}
			if !allowed {
				errorHandler.Handle(w, r, apperrors.NewRateLimitError())
				return
			}

			claims, err := validator.ValidateToken(extractToken(r))
			if err != nil {
				logger.Warn("Invalid admin token",
					zap.Error(err),
					zap.String("ip", clientIP),
					zap.String("requestID", middleware.GetReqID(r.Context())),
				)
				errorHandler.Handle(w, r, apperrors.NewUnauthorizedError(tokenMessage(err)))
				return
			}
			if !claims.HasRole(auth.RoleAdmin) {
				errorHandler.Handle(w, r, apperrors.NewForbiddenError("Insufficient permissions"))
				return
			}

			logger.Debug("Admin request authenticated",
				zap.String("subject", claims.Subject),
				zap.String("path", r.URL.Path),
			)
			next.ServeHTTP(w, r.WithContext(auth.WithClaims(r.Context(), claims)))
		})
	}
}

func tokenMessage(err error) string {
	switch {
	case errors.Is(err, auth.ErrMissingToken):
		return "Missing authentication token"
	case errors.Is(err, auth.ErrExpiredToken):
		return "Token has expired"
	case errors.Is(err, auth.ErrInvalidSignature):
		return "Invalid token signature"
	default:
		return "Invalid token"
	}
}

// extractToken reads a bearer token from the Authorization header
func extractToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
		return parts[1]
	}
	return authHeader
}

// getClientIP extracts the client IP address. chi's RealIP has already
// folded X-Forwarded-For and X-Real-IP into RemoteAddr.
func getClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
