package api

import (
	"authkit/internal/database"
	"authkit/internal/middleware"
	"authkit/internal/util"
	"authkit/internal/validation"

	"github.com/gofiber/fiber/v2"
)

func (h *Handler) ListRoles(c *fiber.Ctx) error {
	page := parsePageParams(c)
	roles, total, err := h.db.ListRoles(c.UserContext(), database.ListRolesParams{
		Search:         c.Query("search"),
		RoleCategoryID: parseInt64Query(c, "role_category_id"),
		IsActive:       parseBoolQuery(c, "is_active"),
		SortBy:         c.Query("sort_by"),
		SortOrder:      c.Query("sort_order"),
		Limit:          page.limit(),
		Offset:         page.offset(),
	})
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(paginated(rolesJSON(roles), page, total, len(roles)))
}

func (h *Handler) ListActiveRoles(c *fiber.Ctx) error {
	roles, err := h.db.ListActiveRoles(c.UserContext())
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"data": rolesJSON(roles)})
}

func (h *Handler) GetRole(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	role, err := h.db.GetRoleByID(c.UserContext(), id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"data": roleJSON(role)})
}

type createRoleRequest struct {
	RoleCategoryID *int64 `json:"role_category_id" validate:"omitempty,gt=0"`
	Name           string `json:"name" validate:"required,min=2,max=100"`
	Slug           string `json:"slug" validate:"omitempty,slug,max=100"`
	Description    string `json:"description" validate:"max=255"`
	IsActive       *bool  `json:"is_active"`
}

func (h *Handler) CreateRole(c *fiber.Ctx) error {
	var req createRoleRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}
	if fieldErrors := h.validate.Struct(req); fieldErrors != nil {
		return validationFailed(c, fieldErrors)
	}

	if req.RoleCategoryID != nil {
		if _, err := h.db.GetRoleCategoryByID(c.UserContext(), *req.RoleCategoryID); err != nil {
			return fail(c, err)
		}
	}
	if req.Slug == "" {
		req.Slug = validation.Slugify(req.Name)
	}
	isActive := true
	if req.IsActive != nil {
		isActive = *req.IsActive
	}

	role, err := h.db.CreateRole(c.UserContext(), database.CreateRoleParams{
		RoleCategoryID: util.FromPtr(req.RoleCategoryID),
		Name:           req.Name,
		Slug:           req.Slug,
		Description:    req.Description,
		IsActive:       isActive,
		CreatedBy:      util.Some(middleware.UserIDFromCtx(c)),
	})
	if err != nil {
		return fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": roleJSON(role)})
}

type updateRoleRequest struct {
	RoleCategoryID *int64  `json:"role_category_id" validate:"omitempty,gt=0"`
	Name           *string `json:"name" validate:"omitempty,min=2,max=100"`
	Slug           *string `json:"slug" validate:"omitempty,slug,max=100"`
	Description    *string `json:"description" validate:"omitempty,max=255"`
	IsActive       *bool   `json:"is_active"`
	ClearCategory  bool    `json:"clear_category"`
}

func (h *Handler) UpdateRole(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var req updateRoleRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}
	if fieldErrors := h.validate.Struct(req); fieldErrors != nil {
		return validationFailed(c, fieldErrors)
	}

	params := database.UpdateRoleParams{
		Name:        util.FromPtr(req.Name),
		Slug:        util.FromPtr(req.Slug),
		Description: util.FromPtr(req.Description),
		IsActive:    util.FromPtr(req.IsActive),
		UpdatedBy:   util.Some(middleware.UserIDFromCtx(c)),
	}
	switch {
	case req.ClearCategory:
		params.RoleCategoryID = util.Some(util.None[int64]())
	case req.RoleCategoryID != nil:
		if _, err := h.db.GetRoleCategoryByID(c.UserContext(), *req.RoleCategoryID); err != nil {
			return fail(c, err)
		}
		params.RoleCategoryID = util.Some(util.Some(*req.RoleCategoryID))
	}

	role, err := h.db.UpdateRole(c.UserContext(), id, params)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"data": roleJSON(role)})
}

func (h *Handler) DeleteRole(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	if err := h.db.SoftDeleteRole(c.UserContext(), id, util.Some(middleware.UserIDFromCtx(c))); err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"message": "Role deleted"})
}

func (h *Handler) RestoreRole(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	role, err := h.db.RestoreRole(c.UserContext(), id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"data": roleJSON(role)})
}

func (h *Handler) ListRolePermissions(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	if _, err := h.db.GetRoleByID(c.UserContext(), id); err != nil {
		return fail(c, err)
	}
	permissions, err := h.db.ListRolePermissions(c.UserContext(), id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"data": permissionsJSON(permissions)})
}

type assignPermissionsRequest struct {
	PermissionIDs []int64 `json:"permission_ids" validate:"required"`
}

// AssignRolePermissions replaces the role's permission set.
func (h *Handler) AssignRolePermissions(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var req assignPermissionsRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}
	if fieldErrors := h.validate.Struct(req); fieldErrors != nil {
		return validationFailed(c, fieldErrors)
	}

	for _, permissionID := range req.PermissionIDs {
		if _, err := h.db.GetPermissionByID(c.UserContext(), permissionID); err != nil {
			return fail(c, err)
		}
	}

	if err := h.assignments.AssignPermissions(c.UserContext(), id, req.PermissionIDs); err != nil {
		return fail(c, err)
	}

	permissions, err := h.db.ListRolePermissions(c.UserContext(), id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"data": permissionsJSON(permissions)})
}

func (h *Handler) ListRoleUsers(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	if _, err := h.db.GetRoleByID(c.UserContext(), id); err != nil {
		return fail(c, err)
	}
	users, err := h.db.ListUsersByRole(c.UserContext(), id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"data": usersJSON(users)})
}

func (h *Handler) ListRoleCategories(c *fiber.Ctx) error {
	page := parsePageParams(c)
	categories, total, err := h.db.ListRoleCategories(c.UserContext(), database.ListRoleCategoriesParams{
		Search:    c.Query("search"),
		IsActive:  parseBoolQuery(c, "is_active"),
		SortBy:    c.Query("sort_by"),
		SortOrder: c.Query("sort_order"),
		Limit:     page.limit(),
		Offset:    page.offset(),
	})
	if err != nil {
		return fail(c, err)
	}

	data := make([]fiber.Map, 0, len(categories))
	for _, category := range categories {
		data = append(data, roleCategoryJSON(category))
	}
	return c.JSON(paginated(data, page, total, len(categories)))
}

func (h *Handler) GetRoleCategory(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	category, err := h.db.GetRoleCategoryByID(c.UserContext(), id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"data": roleCategoryJSON(category)})
}

type createRoleCategoryRequest struct {
	Name        string `json:"name" validate:"required,min=2,max=100"`
	Slug        string `json:"slug" validate:"omitempty,slug,max=100"`
	Description string `json:"description" validate:"max=255"`
	IsActive    *bool  `json:"is_active"`
}

func (h *Handler) CreateRoleCategory(c *fiber.Ctx) error {
	var req createRoleCategoryRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}
	if fieldErrors := h.validate.Struct(req); fieldErrors != nil {
		return validationFailed(c, fieldErrors)
	}

	if req.Slug == "" {
		req.Slug = validation.Slugify(req.Name)
	}
	isActive := true
	if req.IsActive != nil {
		isActive = *req.IsActive
	}

	category, err := h.db.CreateRoleCategory(c.UserContext(), database.CreateRoleCategoryParams{
		Name:        req.Name,
		Slug:        req.Slug,
		Description: req.Description,
		IsActive:    isActive,
		CreatedBy:   util.Some(middleware.UserIDFromCtx(c)),
	})
	if err != nil {
		return fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": roleCategoryJSON(category)})
}

type updateRoleCategoryRequest struct {
	Name        *string `json:"name" validate:"omitempty,min=2,max=100"`
	Slug        *string `json:"slug" validate:"omitempty,slug,max=100"`
	Description *string `json:"description" validate:"omitempty,max=255"`
	IsActive    *bool   `json:"is_active"`
}

func (h *Handler) UpdateRoleCategory(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var req updateRoleCategoryRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}
	if fieldErrors := h.validate.Struct(req); fieldErrors != nil {
		return validationFailed(c, fieldErrors)
	}

	category, err := h.db.UpdateRoleCategory(c.UserContext(), id, database.UpdateRoleCategoryParams{
		Name:        util.FromPtr(req.Name),
		Slug:        util.FromPtr(req.Slug),
		Description: util.FromPtr(req.Description),
		IsActive:    util.FromPtr(req.IsActive),
		UpdatedBy:   util.Some(middleware.UserIDFromCtx(c)),
	})
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"data": roleCategoryJSON(category)})
}

func (h *Handler) DeleteRoleCategory(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	if err := h.db.SoftDeleteRoleCategory(c.UserContext(), id, util.Some(middleware.UserIDFromCtx(c))); err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"message": "Role category deleted"})
}

func (h *Handler) RestoreRoleCategory(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	category, err := h.db.RestoreRoleCategory(c.UserContext(), id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"data": roleCategoryJSON(category)})
}
