package middleware

import (
	"strings"

	"authkit/internal/rbac"
	"authkit/internal/token"

	"github.com/gofiber/fiber/v2"
)

const (
	// LocalsClaims is the fiber.Ctx locals key holding the verified claims.
	LocalsClaims = "claims"

	// LocalsUserID is the fiber.Ctx locals key holding the caller's user id.
	LocalsUserID = "user_id"
)

// RequireAuth verifies the bearer token and stores the claims on the request.
func RequireAuth(tokens *token.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"message": "Missing or malformed Authorization header",
			})
		}

		claims, err := tokens.Verify(c.UserContext(), strings.TrimPrefix(authHeader, "Bearer "))
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"message": "Invalid or expired token",
			})
		}

		c.Locals(LocalsClaims, claims)
		c.Locals(LocalsUserID, claims.UserID)
		return c.Next()
	}
}

// ClaimsFromCtx returns the claims stored by RequireAuth.
func ClaimsFromCtx(c *fiber.Ctx) (token.Claims, bool) {
	claims, ok := c.Locals(LocalsClaims).(token.Claims)
	return claims, ok
}

// UserIDFromCtx returns the caller's user id, or 0 when unauthenticated.
func UserIDFromCtx(c *fiber.Ctx) int64 {
	id, _ := c.Locals(LocalsUserID).(int64)
	return id
}

// RequirePermission gates the route on a single permission slug.
func RequirePermission(resolver *rbac.Resolver, slug string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := UserIDFromCtx(c)
		if userID == 0 {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"message": "Authentication required",
			})
		}

		ok, err := resolver.HasPermission(c.UserContext(), userID, slug)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"message": "Failed to resolve permissions",
			})
		}
		if !ok {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"message":             "Insufficient permissions",
				"required_permission": slug,
			})
		}
		return c.Next()
	}
}

// RequireAnyPermission gates the route on holding at least one of the slugs.
func RequireAnyPermission(resolver *rbac.Resolver, slugs ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := UserIDFromCtx(c)
		if userID == 0 {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"message": "Authentication required",
			})
		}

		ok, _, err := resolver.HasAnyPermission(c.UserContext(), userID, slugs)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"message": "Failed to resolve permissions",
			})
		}
		if !ok {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"message":              "Insufficient permissions",
				"required_permissions": slugs,
			})
		}
		return c.Next()
	}
}

// RequireRole gates the route on holding a role slug.
func RequireRole(resolver *rbac.Resolver, slug string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := UserIDFromCtx(c)
		if userID == 0 {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"message": "Authentication required",
			})
		}

		ok, err := resolver.HasRole(c.UserContext(), userID, slug)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"message": "Failed to resolve roles",
			})
		}
		if !ok {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"message":       "Insufficient role",
				"required_role": slug,
			})
		}
		return c.Next()
	}
}
