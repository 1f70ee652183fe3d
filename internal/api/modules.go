package api

import (
	"authkit/internal/database"
	"authkit/internal/middleware"
	"authkit/internal/util"
	"authkit/internal/validation"

	"github.com/gofiber/fiber/v2"
)

func (h *Handler) ListModules(c *fiber.Ctx) error {
	page := parsePageParams(c)
	modules, total, err := h.db.ListModules(c.UserContext(), database.ListModulesParams{
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
	return c.JSON(paginated(modulesJSON(modules), page, total, len(modules)))
}

func (h *Handler) ListActiveModules(c *fiber.Ctx) error {
	modules, err := h.db.ListActiveModules(c.UserContext())
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"data": modulesJSON(modules)})
}

func (h *Handler) GetModule(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	module, err := h.db.GetModuleByID(c.UserContext(), id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"data": moduleJSON(module)})
}

func (h *Handler) ListModulePermissions(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	if _, err := h.db.GetModuleByID(c.UserContext(), id); err != nil {
		return fail(c, err)
	}
	permissions, err := h.db.ListPermissionsByModule(c.UserContext(), id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"data": permissionsJSON(permissions)})
}

type createModuleRequest struct {
	ParentID    *int64 `json:"parent_id" validate:"omitempty,gt=0"`
	Name        string `json:"name" validate:"required,min=2,max=100"`
	Slug        string `json:"slug" validate:"omitempty,slug,max=100"`
	Description string `json:"description" validate:"max=255"`
	Icon        string `json:"icon" validate:"max=100"`
	Route       string `json:"route" validate:"max=255"`
	Order       int    `json:"order"`
	IsActive    *bool  `json:"is_active"`
}

func (h *Handler) CreateModule(c *fiber.Ctx) error {
	var req createModuleRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}
	if fieldErrors := h.validate.Struct(req); fieldErrors != nil {
		return validationFailed(c, fieldErrors)
	}

	if req.Slug == "" {
		req.Slug = validation.Slugify(req.Name)
	}
	if req.ParentID != nil {
		if _, err := h.db.GetModuleByID(c.UserContext(), *req.ParentID); err != nil {
			return fail(c, err)
		}
	}

	isActive := true
	if req.IsActive != nil {
		isActive = *req.IsActive
	}

	module, err := h.db.CreateModule(c.UserContext(), database.CreateModuleParams{
		ParentID:    util.FromPtr(req.ParentID),
		Name:        req.Name,
		Slug:        req.Slug,
		Description: req.Description,
		Icon:        req.Icon,
		Route:       req.Route,
		Order:       req.Order,
		IsActive:    isActive,
		CreatedBy:   util.Some(middleware.UserIDFromCtx(c)),
	})
	if err != nil {
		return fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": moduleJSON(module)})
}

type updateModuleRequest struct {
	ParentID    *int64  `json:"parent_id"`
	Name        *string `json:"name" validate:"omitempty,min=2,max=100"`
	Slug        *string `json:"slug" validate:"omitempty,slug,max=100"`
	Description *string `json:"description" validate:"omitempty,max=255"`
	Icon        *string `json:"icon" validate:"omitempty,max=100"`
	Route       *string `json:"route" validate:"omitempty,max=255"`
	Order       *int    `json:"order"`
	IsActive    *bool   `json:"is_active"`

	// ClearParent promotes the module to a root; overrides parent_id.
	ClearParent bool `json:"clear_parent"`
}

func (h *Handler) UpdateModule(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var req updateModuleRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}
	if fieldErrors := h.validate.Struct(req); fieldErrors != nil {
		return validationFailed(c, fieldErrors)
	}

	params := database.UpdateModuleParams{
		Name:        util.FromPtr(req.Name),
		Slug:        util.FromPtr(req.Slug),
		Description: util.FromPtr(req.Description),
		Icon:        util.FromPtr(req.Icon),
		Route:       util.FromPtr(req.Route),
		Order:       util.FromPtr(req.Order),
		IsActive:    util.FromPtr(req.IsActive),
		UpdatedBy:   util.Some(middleware.UserIDFromCtx(c)),
	}
	switch {
	case req.ClearParent:
		params.ParentID = util.Some(util.None[int64]())
	case req.ParentID != nil:
		if _, err := h.db.GetModuleByID(c.UserContext(), *req.ParentID); err != nil {
			return fail(c, err)
		}
		params.ParentID = util.Some(util.Some(*req.ParentID))
	}

	module, err := h.db.UpdateModule(c.UserContext(), id, params)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"data": moduleJSON(module)})
}

type updateModuleOrderRequest struct {
	Orders map[int64]int `json:"orders" validate:"required,min=1"`
}

// UpdateModuleOrder batch-updates sort positions from an {id: order} map.
func (h *Handler) UpdateModuleOrder(c *fiber.Ctx) error {
	var req updateModuleOrderRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}
	if fieldErrors := h.validate.Struct(req); fieldErrors != nil {
		return validationFailed(c, fieldErrors)
	}

	if err := h.db.UpdateModuleOrder(c.UserContext(), req.Orders); err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"message": "Module order updated"})
}

func (h *Handler) DeleteModule(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	if err := h.db.SoftDeleteModule(c.UserContext(), id, util.Some(middleware.UserIDFromCtx(c))); err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"message": "Module deleted"})
}

func (h *Handler) RestoreModule(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	module, err := h.db.RestoreModule(c.UserContext(), id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"data": moduleJSON(module)})
}
