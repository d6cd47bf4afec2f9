package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/grievance-service/internal/domain"
	"github.com/spec-kit/grievance-service/pkg/util"
)

const principalKey = "auth_principal"

// Principal represents the authenticated caller. Identity and role come
// from the token claims; no directory lookup happens per request.
type Principal struct {
	SubjectID   string
	SubjectType domain.SubjectType
	Role        *domain.Role
}

// AuthMiddleware validates bearer tokens and attaches principals.
type AuthMiddleware struct {
	tokens *TokenManager
}

// NewAuthMiddleware constructs middleware.
func NewAuthMiddleware(tokens *TokenManager) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens}
}

// Handle enforces authentication for protected routes.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return util.NewUnauthorized("missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return util.NewUnauthorized("invalid authorization header")
	}

	claims, err := m.tokens.ParseToken(parts[1])
	if err != nil {
		return util.NewUnauthorized("invalid token")
	}

	switch claims.Subject {
	case domain.SubjectTypeUser, domain.SubjectTypeOfficer:
	default:
		return util.NewUnauthorized("unknown subject")
	}

	c.Locals(principalKey, &Principal{
		SubjectID:   claims.SubjectID,
		SubjectType: claims.Subject,
		Role:        claims.Role,
	})
	return c.Next()
}

// PrincipalFromContext retrieves the authenticated entity.
func PrincipalFromContext(c *fiber.Ctx) (*Principal, bool) {
	val := c.Locals(principalKey)
	if val == nil {
		return nil, false
	}
	principal, ok := val.(*Principal)
	return principal, ok
}
