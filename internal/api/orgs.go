package api

import (
	"authkit/internal/database"
	"authkit/internal/middleware"
	"authkit/internal/util"
	"authkit/internal/validation"

	"github.com/gofiber/fiber/v2"
)

func (h *Handler) ListBranches(c *fiber.Ctx) error {
	page := parsePageParams(c)
	branches, total, err := h.db.ListBranches(c.UserContext(), database.ListBranchesParams{
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

	data := make([]fiber.Map, 0, len(branches))
	for _, branch := range branches {
		data = append(data, branchJSON(branch))
	}
	return c.JSON(paginated(data, page, total, len(branches)))
}

func (h *Handler) GetBranch(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	branch, err := h.db.GetBranchByID(c.UserContext(), id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"data": branchJSON(branch)})
}

type createBranchRequest struct {
	Name     string `json:"name" validate:"required,min=2,max=100"`
	Slug     string `json:"slug" validate:"omitempty,slug,max=100"`
	Address  string `json:"address" validate:"max=255"`
	Phone    string `json:"phone" validate:"max=30"`
	IsActive *bool  `json:"is_active"`
}

func (h *Handler) CreateBranch(c *fiber.Ctx) error {
	var req createBranchRequest
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

	branch, err := h.db.CreateBranch(c.UserContext(), database.CreateBranchParams{
		Name:      req.Name,
		Slug:      req.Slug,
		Address:   req.Address,
		Phone:     req.Phone,
		IsActive:  isActive,
		CreatedBy: util.Some(middleware.UserIDFromCtx(c)),
	})
	if err != nil {
		return fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": branchJSON(branch)})
}

type updateBranchRequest struct {
	Name     *string `json:"name" validate:"omitempty,min=2,max=100"`
	Slug     *string `json:"slug" validate:"omitempty,slug,max=100"`
	Address  *string `json:"address" validate:"omitempty,max=255"`
	Phone    *string `json:"phone" validate:"omitempty,max=30"`
	IsActive *bool   `json:"is_active"`
}

func (h *Handler) UpdateBranch(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var req updateBranchRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}
	if fieldErrors := h.validate.Struct(req); fieldErrors != nil {
		return validationFailed(c, fieldErrors)
	}

	branch, err := h.db.UpdateBranch(c.UserContext(), id, database.UpdateBranchParams{
		Name:      util.FromPtr(req.Name),
		Slug:      util.FromPtr(req.Slug),
		Address:   util.FromPtr(req.Address),
		Phone:     util.FromPtr(req.Phone),
		IsActive:  util.FromPtr(req.IsActive),
		UpdatedBy: util.Some(middleware.UserIDFromCtx(c)),
	})
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"data": branchJSON(branch)})
}

func (h *Handler) DeleteBranch(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	if err := h.db.SoftDeleteBranch(c.UserContext(), id, util.Some(middleware.UserIDFromCtx(c))); err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"message": "Branch deleted"})
}

func (h *Handler) RestoreBranch(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	branch, err := h.db.RestoreBranch(c.UserContext(), id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"data": branchJSON(branch)})
}

func (h *Handler) ListDepartments(c *fiber.Ctx) error {
	page := parsePageParams(c)
	departments, total, err := h.db.ListDepartments(c.UserContext(), database.ListDepartmentsParams{
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

	data := make([]fiber.Map, 0, len(departments))
	for _, department := range departments {
		data = append(data, departmentJSON(department))
	}
	return c.JSON(paginated(data, page, total, len(departments)))
}

func (h *Handler) GetDepartment(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	department, err := h.db.GetDepartmentByID(c.UserContext(), id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"data": departmentJSON(department)})
}

type createDepartmentRequest struct {
	Name        string `json:"name" validate:"required,min=2,max=100"`
	Slug        string `json:"slug" validate:"omitempty,slug,max=100"`
	Description string `json:"description" validate:"max=255"`
	IsActive    *bool  `json:"is_active"`
}

func (h *Handler) CreateDepartment(c *fiber.Ctx) error {
	var req createDepartmentRequest
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

	department, err := h.db.CreateDepartment(c.UserContext(), database.CreateDepartmentParams{
		Name:        req.Name,
		Slug:        req.Slug,
		Description: req.Description,
		IsActive:    isActive,
		CreatedBy:   util.Some(middleware.UserIDFromCtx(c)),
	})
	if err != nil {
		return fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": departmentJSON(department)})
}

type updateDepartmentRequest struct {
	Name        *string `json:"name" validate:"omitempty,min=2,max=100"`
	Slug        *string `json:"slug" validate:"omitempty,slug,max=100"`
	Description *string `json:"description" validate:"omitempty,max=255"`
	IsActive    *bool   `json:"is_active"`
}

func (h *Handler) UpdateDepartment(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var req updateDepartmentRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}
	if fieldErrors := h.validate.Struct(req); fieldErrors != nil {
		return validationFailed(c, fieldErrors)
	}

	department, err := h.db.UpdateDepartment(c.UserContext(), id, database.UpdateDepartmentParams{
		Name:        util.FromPtr(req.Name),
		Slug:        util.FromPtr(req.Slug),
		Description: util.FromPtr(req.Description),
		IsActive:    util.FromPtr(req.IsActive),
		UpdatedBy:   util.Some(middleware.UserIDFromCtx(c)),
	})
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"data": departmentJSON(department)})
}

func (h *Handler) DeleteDepartment(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	if err := h.db.SoftDeleteDepartment(c.UserContext(), id, util.Some(middleware.UserIDFromCtx(c))); err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"message": "Department deleted"})
}

func (h *Handler) RestoreDepartment(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	department, err := h.db.RestoreDepartment(c.UserContext(), id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"data": departmentJSON(department)})
}

func (h *Handler) ListUserBranches(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	if _, err := h.db.GetUserByID(c.UserContext(), id); err != nil {
		return fail(c, err)
	}
	branches, err := h.db.ListUserBranches(c.UserContext(), id)
	if err != nil {
		return fail(c, err)
	}

	data := make([]fiber.Map, 0, len(branches))
	for _, branch := range branches {
		data = append(data, branchJSON(branch))
	}
	return c.JSON(fiber.Map{"data": data})
}

func (h *Handler) AttachUserBranch(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	branchID, err := parseID(c, "branchId")
	if err != nil {
		return err
	}
	if _, err := h.db.GetUserByID(c.UserContext(), id); err != nil {
		return fail(c, err)
	}
	if _, err := h.db.GetBranchByID(c.UserContext(), branchID); err != nil {
		return fail(c, err)
	}
	if err := h.db.AttachUserBranch(c.UserContext(), id, branchID); err != nil {
		return fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"message": "Branch attached"})
}

func (h *Handler) DetachUserBranch(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	branchID, err := parseID(c, "branchId")
	if err != nil {
		return err
	}
	if err := h.db.DetachUserBranch(c.UserContext(), id, branchID); err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"message": "Branch detached"})
}

func (h *Handler) ListUserDepartments(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	if _, err := h.db.GetUserByID(c.UserContext(), id); err != nil {
		return fail(c, err)
	}
	departments, err := h.db.ListUserDepartments(c.UserContext(), id)
	if err != nil {
		return fail(c, err)
	}

	data := make([]fiber.Map, 0, len(departments))
	for _, department := range departments {
		data = append(data, departmentJSON(department))
	}
	return c.JSON(fiber.Map{"data": data})
}

func (h *Handler) AttachUserDepartment(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	departmentID, err := parseID(c, "departmentId")
	if err != nil {
		return err
	}
	if _, err := h.db.GetUserByID(c.UserContext(), id); err != nil {
		return fail(c, err)
	}
	if _, err := h.db.GetDepartmentByID(c.UserContext(), departmentID); err != nil {
		return fail(c, err)
	}
	if err := h.db.AttachUserDepartment(c.UserContext(), id, departmentID); err != nil {
		return fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"message": "Department attached"})
}

func (h *Handler) DetachUserDepartment(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	departmentID, err := parseID(c, "departmentId")
	if err != nil {
		return err
	}
	if err := h.db.DetachUserDepartment(c.UserContext(), id, departmentID); err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"message": "Department detached"})
}
