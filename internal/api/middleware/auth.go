package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/nidoapp/nido-api/internal/auth"
	"github.com/nidoapp/nido-api/internal/errors"
)

const identityContextKey = "identity"

// Auth verifies the bearer token and stores the caller's identity in the
// request context. Requests without a valid token never reach the handler.
func Auth(authenticator auth.Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token := strings.TrimPrefix(header, "Bearer ")
		if header == "" || token == header {
			c.Error(errors.NewUnauthenticatedError("missing bearer token"))
			c.Abort()
			return
		}

		identity, err := authenticator.Authenticate(c.Request.Context(), token)
		if err != nil {
			c.Error(err)
			c.Abort()
			return
		}

		c.Set(identityContextKey, identity)
		c.Next()
	}
}

// CallerIdentity returns the identity the Auth middleware attached.
func CallerIdentity(c *gin.Context) (auth.Identity, bool) {
	value, ok := c.Get(identityContextKey)
	if !ok {
		return auth.Identity{}, false
	}
	identity, ok := value.(auth.Identity)
	return identity, ok
}
