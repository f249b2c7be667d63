package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/oksasatya/go-sweet-shop/internal/domain/entity"
	"github.com/oksasatya/go-sweet-shop/pkg/response"
)

const principalKey = "principal"

// TokenVerifier resolves a session token. Implemented by application.AuthService.
type TokenVerifier interface {
	Verify(token string) (*entity.Principal, error)
}

// Capability is a single authorization check over a resolved principal.
type Capability func(p *entity.Principal) error

// Authenticated passes any resolved principal.
func Authenticated(p *entity.Principal) error {
	if p == nil || p.UserID == "" {
		return entity.ErrUnauthenticated
	}
	return nil
}

// AdminOnly passes principals holding the admin role.
func AdminOnly(p *entity.Principal) error {
	if !p.IsAdmin() {
		return entity.ErrForbidden
	}
	return nil
}

// ResolvePrincipal extracts and verifies a "Bearer <token>" header value.
func ResolvePrincipal(v TokenVerifier, header string) (*entity.Principal, error) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return nil, entity.ErrUnauthenticated
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, entity.ErrUnauthenticated
	}
	p, err := v.Verify(token)
	if err != nil {
		return nil, entity.ErrUnauthenticated
	}
	return p, nil
}

func capabilityStatus(err error) int {
	if errors.Is(err, entity.ErrForbidden) {
		return http.StatusForbidden
	}
	return http.StatusUnauthorized
}

// Gate resolves the caller and runs caps in order. The first failing
// capability aborts the request.
func Gate(v TokenVerifier, caps ...Capability) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := ResolvePrincipal(v, c.GetHeader("Authorization"))
		if err != nil {
			response.Error(c, http.StatusUnauthorized, entity.ErrUnauthenticated.Error())
			return
		}
		for _, capability := range caps {
			if err := capability(p); err != nil {
				response.Error(c, capabilityStatus(err), err.Error())
				return
			}
		}
		c.Set(principalKey, p)
		c.Next()
	}
}

func RequireAuthenticated(v TokenVerifier) gin.HandlerFunc {
	return Gate(v, Authenticated)
}

func RequireAdmin(v TokenVerifier) gin.HandlerFunc {
	return Gate(v, Authenticated, AdminOnly)
}

// PrincipalFrom returns the principal stored by Gate, if any.
func PrincipalFrom(c *gin.Context) (*entity.Principal, bool) {
	v, ok := c.Get(principalKey)
	if !ok {
		return nil, false
	}
	p, ok := v.(*entity.Principal)
	return p, ok
}
