package auth

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	apperrors "github.com/spec-kit/auth-service/pkg/util/errorutil"
)

const principalKey = "auth_principal"

// Guard authenticates bearer tokens on protected routes. Routes in the
// exemption set (public endpoints such as login and signup) are skipped
// entirely.
type Guard struct {
	tokens *TokenService
	exempt map[string]struct{}
}

// NewGuard constructs the guard with a static set of exempted paths.
func NewGuard(tokens *TokenService, exemptPaths []string) *Guard {
	exempt := make(map[string]struct{}, len(exemptPaths))
	for _, p := range exemptPaths {
		exempt[p] = struct{}{}
	}
	return &Guard{tokens: tokens, exempt: exempt}
}

// Authenticate extracts the bearer token from an Authorization header value
// and resolves the request principal.
func (g *Guard) Authenticate(headerValue string) (*Principal, error) {
	if headerValue == "" {
		return nil, ErrMissingAuthHeader
	}

	parts := strings.Fields(headerValue)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return nil, ErrMalformedAuthHeader
	}

	return g.tokens.ValidateAccessToken(parts[1])
}

// Handle enforces authentication, attaching the principal to the request.
// All failures surface as a generic 401 so callers cannot probe which check
// failed.
func (g *Guard) Handle(c *fiber.Ctx) error {
	if _, ok := g.exempt[c.Path()]; ok {
		return c.Next()
	}

	principal, err := g.Authenticate(c.Get(fiber.HeaderAuthorization))
	if err != nil {
		switch {
		case errors.Is(err, ErrMissingAuthHeader):
			return apperrors.NewUnauthorized("authorization header not found")
		case errors.Is(err, ErrMalformedAuthHeader):
			return apperrors.NewUnauthorized("invalid authorization header format")
		default:
			return apperrors.NewUnauthorized("invalid or expired token")
		}
	}

	c.Locals(principalKey, principal)
	return c.Next()
}

// PrincipalFromContext retrieves the authenticated identity.
func PrincipalFromContext(c *fiber.Ctx) (*Principal, bool) {
	val := c.Locals(principalKey)
	if val == nil {
		return nil, false
	}
	principal, ok := val.(*Principal)
	return principal, ok
}

// RequireAuthenticated rejects requests that reached a protected handler
// without a principal.
func RequireAuthenticated() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, ok := PrincipalFromContext(c); !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		return c.Next()
	}
}
