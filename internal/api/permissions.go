package api

import (
	"authkit/internal/database"
	"authkit/internal/middleware"
	"authkit/internal/util"
	"authkit/internal/validation"

	"github.com/gofiber/fiber/v2"
)

func (h *Handler) ListPermissions(c *fiber.Ctx) error {
	page := parsePageParams(c)
	permissions, total, err := h.db.ListPermissions(c.UserContext(), database.ListPermissionsParams{
		Search:    c.Query("search"),
		ModuleID:  parseInt64Query(c, "module_id"),
		IsActive:  parseBoolQuery(c, "is_active"),
		SortBy:    c.Query("sort_by"),
		SortOrder: c.Query("sort_order"),
		Limit:     page.limit(),
		Offset:    page.offset(),
	})
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(paginated(permissionsJSON(permissions), page, total, len(permissions)))
}

func (h *Handler) ListActivePermissions(c *fiber.Ctx) error {
	permissions, err := h.db.ListActivePermissions(c.UserContext())
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"data": permissionsJSON(permissions)})
}

func (h *Handler) GetPermission(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	permission, err := h.db.GetPermissionByID(c.UserContext(), id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"data": permissionJSON(permission)})
}

type createPermissionRequest struct {
	ModuleID    int64  `json:"module_id" validate:"required,gt=0"`
	Name        string `json:"name" validate:"required,min=2,max=100"`
	Slug        string `json:"slug" validate:"omitempty,slug,max=100"`
	Description string `json:"description" validate:"max=255"`
	IsActive    *bool  `json:"is_active"`
}

func (h *Handler) CreatePermission(c *fiber.Ctx) error {
	var req createPermissionRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}
	if fieldErrors := h.validate.Struct(req); fieldErrors != nil {
		return validationFailed(c, fieldErrors)
	}

	if _, err := h.db.GetModuleByID(c.UserContext(), req.ModuleID); err != nil {
		return fail(c, err)
	}
	if req.Slug == "" {
		req.Slug = validation.Slugify(req.Name)
	}
	isActive := true
	if req.IsActive != nil {
		isActive = *req.IsActive
	}

	permission, err := h.db.CreatePermission(c.UserContext(), database.CreatePermissionParams{
		ModuleID:    req.ModuleID,
		Name:        req.Name,
		Slug:        req.Slug,
		Description: req.Description,
		IsActive:    isActive,
		CreatedBy:   util.Some(middleware.UserIDFromCtx(c)),
	})
	if err != nil {
		return fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": permissionJSON(permission)})
}

type bulkCreatePermissionsRequest struct {
	Permissions []createPermissionRequest `json:"permissions" validate:"required,min=1,dive"`
}

// BulkCreatePermissions creates a batch atomically.
func (h *Handler) BulkCreatePermissions(c *fiber.Ctx) error {
	var req bulkCreatePermissionsRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}
	if fieldErrors := h.validate.Struct(req); fieldErrors != nil {
		return validationFailed(c, fieldErrors)
	}

	actor := util.Some(middleware.UserIDFromCtx(c))
	batch := make([]database.CreatePermissionParams, 0, len(req.Permissions))
	for _, item := range req.Permissions {
		if _, err := h.db.GetModuleByID(c.UserContext(), item.ModuleID); err != nil {
			return fail(c, err)
		}
		slug := item.Slug
		if slug == "" {
			slug = validation.Slugify(item.Name)
		}
		isActive := true
		if item.IsActive != nil {
			isActive = *item.IsActive
		}
		batch = append(batch, database.CreatePermissionParams{
			ModuleID:    item.ModuleID,
			Name:        item.Name,
			Slug:        slug,
			Description: item.Description,
			IsActive:    isActive,
			CreatedBy:   actor,
		})
	}

	created, err := h.db.BulkCreatePermissions(c.UserContext(), batch)
	if err != nil {
		return fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"data":          permissionsJSON(created),
		"created_count": len(created),
	})
}

type updatePermissionRequest struct {
	ModuleID    *int64  `json:"module_id" validate:"omitempty,gt=0"`
	Name        *string `json:"name" validate:"omitempty,min=2,max=100"`
	Slug        *string `json:"slug" validate:"omitempty,slug,max=100"`
	Description *string `json:"description" validate:"omitempty,max=255"`
	IsActive    *bool   `json:"is_active"`
}

func (h *Handler) UpdatePermission(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var req updatePermissionRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}
	if fieldErrors := h.validate.Struct(req); fieldErrors != nil {
		return validationFailed(c, fieldErrors)
	}

	if req.ModuleID != nil {
		if _, err := h.db.GetModuleByID(c.UserContext(), *req.ModuleID); err != nil {
			return fail(c, err)
		}
	}

	permission, err := h.db.UpdatePermission(c.UserContext(), id, database.UpdatePermissionParams{
		ModuleID:    util.FromPtr(req.ModuleID),
		Name:        util.FromPtr(req.Name),
		Slug:        util.FromPtr(req.Slug),
		Description: util.FromPtr(req.Description),
		IsActive:    util.FromPtr(req.IsActive),
		UpdatedBy:   util.Some(middleware.UserIDFromCtx(c)),
	})
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"data": permissionJSON(permission)})
}

func (h *Handler) DeletePermission(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	if err := h.db.SoftDeletePermission(c.UserContext(), id, util.Some(middleware.UserIDFromCtx(c))); err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"message": "Permission deleted"})
}

func (h *Handler) RestorePermission(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	permission, err := h.db.RestorePermission(c.UserContext(), id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"data": permissionJSON(permission)})
}
