package middleware

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"

	"chatlibrary/internal/app"
	"chatlibrary/internal/model"
	"chatlibrary/internal/transport/http/response"
)

const ContextUserKey = "current_user"

// IdentityResolver turns a bearer token into the persisted user it
// names. Rejected tokens come back as app.ErrUnauthenticated; anything
// else is an infrastructure fault.
type IdentityResolver interface {
	ResolveIdentity(token string) (*model.User, error)
}

// AuthIdentity guards a route group with bearer authentication. A
// missing header, a bad scheme, a bad or expired token and an unknown
// subject all produce the same 401; nothing about which check failed
// leaves the process. A resolver fault that is not an authentication
// verdict, a user store outage for one, is a 500, not a 401.
func AuthIdentity(resolver IdentityResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := strings.TrimSpace(c.GetHeader("Authorization"))

		const prefix = "Bearer "
		if authHeader == "" || !strings.HasPrefix(authHeader, prefix) {
			unauthorized(c)
			return
		}

		token := strings.TrimSpace(strings.TrimPrefix(authHeader, prefix))
		user, err := resolver.ResolveIdentity(token)
		if err != nil {
			if errors.Is(err, app.ErrUnauthenticated) {
				unauthorized(c)
				return
			}
			response.Error(c, 500, response.CodeInternalServer, "internal server error")
			c.Abort()
			return
		}
		if user == nil {
			unauthorized(c)
			return
		}

		c.Set(ContextUserKey, user)
		c.Next()
	}
}

// CurrentUser pulls the resolved user out of the request context.
func CurrentUser(c *gin.Context) (*model.User, bool) {
	value, exists := c.Get(ContextUserKey)
	if !exists {
		return nil, false
	}
	user, ok := value.(*model.User)
	return user, ok && user != nil
}

func unauthorized(c *gin.Context) {
	response.Error(c, 401, response.CodeUnauthorized, "not authenticated")
	c.Abort()
}
