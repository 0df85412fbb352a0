package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/IPFiling-Assistant/internal/infrastructure/auth/keycloak"
	"github.com/turtacn/IPFiling-Assistant/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/IPFiling-Assistant/pkg/errors"
)

// HeaderOwnerID names the caller when token authentication is disabled.
const HeaderOwnerID = "X-Owner-ID"

var (
	errMissingAuthHeader = errors.New(errors.ErrCodeUnauthorized, "missing authorization header")
	errInvalidAuthFormat = errors.New(errors.ErrCodeUnauthorized, "invalid authorization format")
	errMissingOwner      = errors.New(errors.ErrCodeUnauthorized, "missing "+HeaderOwnerID+" header")
)

// Authenticate verifies the bearer token and stores its claims in the
// request context.
func Authenticate(v keycloak.Verifier, logger logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := bearerToken(c.GetHeader("Authorization"))
		if err != nil {
			unauthorized(c, logger, err)
			return
		}
		claims, err := v.VerifyToken(c.Request.Context(), token)
		if err != nil {
			unauthorized(c, logger, err)
			return
		}
		c.Request = c.Request.WithContext(keycloak.WithClaims(c.Request.Context(), claims))
		c.Next()
	}
}

// HeaderOwner trusts the X-Owner-ID header. For local development only.
func HeaderOwner(logger logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		owner := strings.TrimSpace(c.GetHeader(HeaderOwnerID))
		if owner == "" {
			unauthorized(c, logger, errMissingOwner)
			return
		}
		c.Request = c.Request.WithContext(keycloak.WithClaims(c.Request.Context(), &keycloak.Claims{Subject: owner}))
		c.Next()
	}
}

// OwnerID returns the authenticated caller, or "" before authentication.
func OwnerID(c *gin.Context) string {
	owner, _ := keycloak.OwnerFromContext(c.Request.Context())
	return owner
}

// HasRole reports whether the authenticated caller holds role.
func HasRole(c *gin.Context, role string) bool {
	claims, ok := keycloak.ClaimsFromContext(c.Request.Context())
	return ok && role != "" && claims.HasRole(role)
}

func bearerToken(header string) (string, error) {
	if header == "" {
		return "", errMissingAuthHeader
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", errInvalidAuthFormat
	}
	return strings.TrimSpace(token), nil
}

func unauthorized(c *gin.Context, logger logging.Logger, err error) {
	logger.Warn("Authentication failed",
		logging.String("path", c.Request.URL.Path),
		logging.String("client_ip", c.ClientIP()),
		logging.Err(err))
	c.Header("WWW-Authenticate", "Bearer")
	AbortWithError(c, err)
}

//Personal.AI order the ending
