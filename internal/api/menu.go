package api

import (
	"authkit/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

// Menu returns the caller's navigation tree: the modules they hold
// permissions on, with ancestors included and children nested.
func (h *Handler) Menu(c *fiber.Ctx) error {
	userID := middleware.UserIDFromCtx(c)
	tree, err := h.resolver.MenuTree(c.UserContext(), userID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"data": tree})
}

// MenuModules returns the flat list of modules the caller can access, for
// clients that want the reachable surface without the nesting.
func (h *Handler) MenuModules(c *fiber.Ctx) error {
	userID := middleware.UserIDFromCtx(c)
	modules, totalPermissions, err := h.resolver.AccessibleModules(c.UserContext(), userID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{
		"modules":           modulesJSON(modules),
		"total_permissions": totalPermissions,
	})
}

// EffectivePermissions returns the caller's resolved permission union along
// with their roles, for frontend authorization state.
func (h *Handler) EffectivePermissions(c *fiber.Ctx) error {
	userID := middleware.UserIDFromCtx(c)
	permissions, err := h.resolver.EffectivePermissions(c.UserContext(), userID)
	if err != nil {
		return fail(c, err)
	}
	roles, err := h.resolver.Roles(c.UserContext(), userID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{
		"data":  permissionsJSON(permissions),
		"roles": rolesJSON(roles),
	})
}

type hasPermissionRequest struct {
	Permission string `json:"permission" validate:"required"`
}

// HasPermission answers a single permission check for the caller.
func (h *Handler) HasPermission(c *fiber.Ctx) error {
	var req hasPermissionRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}
	if fieldErrors := h.validate.Struct(req); fieldErrors != nil {
		return validationFailed(c, fieldErrors)
	}

	userID := middleware.UserIDFromCtx(c)
	held, err := h.resolver.HasPermission(c.UserContext(), userID, req.Permission)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{
		"has_permission": held,
		"permission":     req.Permission,
	})
}

type hasAnyPermissionRequest struct {
	Permissions []string `json:"permissions" validate:"required,min=1,dive,required"`
}

// HasAnyPermission checks a batch of permission slugs at once and reports
// which of them the caller actually holds.
func (h *Handler) HasAnyPermission(c *fiber.Ctx) error {
	var req hasAnyPermissionRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}
	if fieldErrors := h.validate.Struct(req); fieldErrors != nil {
		return validationFailed(c, fieldErrors)
	}

	userID := middleware.UserIDFromCtx(c)
	held, matched, err := h.resolver.HasAnyPermission(c.UserContext(), userID, req.Permissions)
	if err != nil {
		return fail(c, err)
	}
	if matched == nil {
		matched = []string{}
	}
	return c.JSON(fiber.Map{
		"has_any_permission": held,
		"permissions":        req.Permissions,
		"matched":            matched,
	})
}
