package api

import (
	"time"

	"authkit/internal/database"

	"github.com/gofiber/fiber/v2"
)

// ListUserRoleLinks pages through raw user-role assignments for the admin
// listing, filterable by either side.
func (h *Handler) ListUserRoleLinks(c *fiber.Ctx) error {
	page := parsePageParams(c)
	links, total, err := h.assignments.ListLinks(c.UserContext(), database.ListUserRoleLinksParams{
		UserID:    parseInt64Query(c, "user_id"),
		RoleID:    parseInt64Query(c, "role_id"),
		Search:    c.Query("search"),
		SortOrder: c.Query("sort_order"),
		Limit:     page.limit(),
		Offset:    page.offset(),
	})
	if err != nil {
		return fail(c, err)
	}

	data := make([]fiber.Map, 0, len(links))
	for _, link := range links {
		data = append(data, fiber.Map{
			"user_id":     link.UserID,
			"user_name":   link.UserName,
			"user_email":  link.UserEmail,
			"role_id":     link.RoleID,
			"role_name":   link.RoleName,
			"role_slug":   link.RoleSlug,
			"assigned_at": link.CreatedAt.Format(time.RFC3339),
		})
	}
	return c.JSON(paginated(data, page, total, len(links)))
}

// AssignmentStatistics summarizes the assignment graph.
func (h *Handler) AssignmentStatistics(c *fiber.Ctx) error {
	stats, err := h.assignments.Statistics(c.UserContext())
	if err != nil {
		return fail(c, err)
	}

	perRole := make([]fiber.Map, 0, len(stats.PerRole))
	for _, rc := range stats.PerRole {
		perRole = append(perRole, fiber.Map{
			"role_id":   rc.RoleID,
			"role_name": rc.RoleName,
			"role_slug": rc.RoleSlug,
			"users":     rc.Users,
		})
	}

	return c.JSON(fiber.Map{
		"data": fiber.Map{
			"total_users":         stats.TotalUsers,
			"total_roles":         stats.TotalRoles,
			"total_assignments":   stats.TotalAssignments,
			"users_without_roles": stats.UsersWithoutRoles,
			"per_role":            perRole,
		},
	})
}

type bulkRolesRequest struct {
	UserIDs []int64 `json:"user_ids" validate:"required,min=1,dive,gt=0"`
	RoleIDs []int64 `json:"role_ids" validate:"required,min=1,dive,gt=0"`
}

// BulkAssignRoles attaches every listed role to every listed user, reporting
// how many pairs were created and how many already existed.
func (h *Handler) BulkAssignRoles(c *fiber.Ctx) error {
	var req bulkRolesRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}
	if fieldErrors := h.validate.Struct(req); fieldErrors != nil {
		return validationFailed(c, fieldErrors)
	}

	assigned, skipped, err := h.assignments.BulkAssign(c.UserContext(), req.UserIDs, req.RoleIDs)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{
		"assigned_count": assigned,
		"skipped_count":  skipped,
		"total_users":    len(req.UserIDs),
		"total_roles":    len(req.RoleIDs),
	})
}

// BulkRemoveRoles detaches every listed role from every listed user.
func (h *Handler) BulkRemoveRoles(c *fiber.Ctx) error {
	var req bulkRolesRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}
	if fieldErrors := h.validate.Struct(req); fieldErrors != nil {
		return validationFailed(c, fieldErrors)
	}

	removed, skipped, err := h.assignments.BulkRemove(c.UserContext(), req.UserIDs, req.RoleIDs)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{
		"removed_count": removed,
		"skipped_count": skipped,
		"total_users":   len(req.UserIDs),
		"total_roles":   len(req.RoleIDs),
	})
}
