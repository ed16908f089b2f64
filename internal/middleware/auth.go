package middleware

import (
	"net/http"
	"strings"

	"github.com/MiddyPham/middy-corner-back-end/internal/auth"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const principalKey = "principal"

// Authenticator turns a bearer access token into a principal.
type Authenticator interface {
	Authenticate(accessToken string) (auth.Principal, error)
}

// Auth attaches the principal behind a valid Authorization bearer token to the
// request. Requests without a usable token continue anonymously; routes that
// need an identity add RequireAuth.
func Auth(authenticator Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c.GetHeader("Authorization"))
		if token == "" {
			c.Next()
			return
		}

		principal, err := authenticator.Authenticate(token)
		if err != nil {
			log.Debug().Err(err).Str("path", c.Request.URL.Path).Msg("ignoring bearer token")
			c.Next()
			return
		}

		c.Set(principalKey, principal)
		c.Request = c.Request.WithContext(auth.WithPrincipal(c.Request.Context(), principal))
		c.Next()
	}
}

// RequireAuth rejects anonymous requests.
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := Principal(c); !ok {
			abort(c, http.StatusUnauthorized, "unauthorized", "authentication required")
			return
		}
		c.Next()
	}
}

// RequireAdmin rejects anonymous and non-admin requests.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, ok := Principal(c)
		if !ok {
			abort(c, http.StatusUnauthorized, "unauthorized", "authentication required")
			return
		}
		if !principal.IsAdmin() {
			abort(c, http.StatusForbidden, "forbidden", "admin role required")
			return
		}
		c.Next()
	}
}

// Principal returns the authenticated principal of the request, if any.
func Principal(c *gin.Context) (auth.Principal, bool) {
	value, exists := c.Get(principalKey)
	if !exists {
		return auth.Principal{}, false
	}
	principal, ok := value.(auth.Principal)
	return principal, ok && !principal.Anonymous()
}

func bearerToken(header string) string {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

func abort(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, gin.H{"error": gin.H{"code": code, "message": message}})
}
