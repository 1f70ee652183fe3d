package api

import (
	"errors"
	"log/slog"
	"strconv"

	"authkit/internal/database"
	"authkit/internal/service"
	"authkit/internal/util"
	"authkit/internal/validation"

	"github.com/gofiber/fiber/v2"
)

const (
	defaultPerPage = 15
	maxPerPage     = 100
)

// pageParams is the pagination contract every list endpoint honors.
type pageParams struct {
	Page    int
	PerPage int
}

func parsePageParams(c *fiber.Ctx) pageParams {
	page, _ := strconv.Atoi(c.Query("page", "1"))
	if page < 1 {
		page = 1
	}
	perPage, _ := strconv.Atoi(c.Query("per_page", strconv.Itoa(defaultPerPage)))
	if perPage < 1 {
		perPage = defaultPerPage
	}
	if perPage > maxPerPage {
		perPage = maxPerPage
	}
	return pageParams{Page: page, PerPage: perPage}
}

func (p pageParams) limit() int  { return p.PerPage }
func (p pageParams) offset() int { return (p.Page - 1) * p.PerPage }

// paginated wraps list data in the standard envelope. last_page is at least
// 1 even for empty results; from/to are null when the page is empty.
func paginated(data any, p pageParams, total, count int) fiber.Map {
	lastPage := (total + p.PerPage - 1) / p.PerPage
	if lastPage < 1 {
		lastPage = 1
	}

	var from, to *int
	if count > 0 {
		f := p.offset() + 1
		t := p.offset() + count
		from, to = &f, &t
	}

	return fiber.Map{
		"data":         data,
		"current_page": p.Page,
		"last_page":    lastPage,
		"per_page":     p.PerPage,
		"total":        total,
		"from":         from,
		"to":           to,
	}
}

func parseID(c *fiber.Ctx, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Params(name), 10, 64)
	if err != nil || id < 1 {
		return 0, fiber.NewError(fiber.StatusUnprocessableEntity, "invalid id")
	}
	return id, nil
}

func parseBoolQuery(c *fiber.Ctx, name string) util.Optional[bool] {
	switch c.Query(name) {
	case "true", "1":
		return util.Some(true)
	case "false", "0":
		return util.Some(false)
	}
	return util.None[bool]()
}

func parseInt64Query(c *fiber.Ctx, name string) util.Optional[int64] {
	raw := c.Query(name)
	if raw == "" {
		return util.None[int64]()
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return util.None[int64]()
	}
	return util.Some(v)
}

func validationFailed(c *fiber.Ctx, fieldErrors []validation.FieldError) error {
	return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
		"message": "Validation failed",
		"errors":  fieldErrors,
	})
}

func badBody(c *fiber.Ctx) error {
	return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
		"message": "Invalid request body",
	})
}

// fail maps domain errors onto the HTTP error taxonomy. Anything unmapped
// is a logged 500 with a generic body.
func fail(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, database.ErrUserNotFound),
		errors.Is(err, database.ErrPersonNotFound),
		errors.Is(err, database.ErrModuleNotFound),
		errors.Is(err, database.ErrPermissionNotFound),
		errors.Is(err, database.ErrRoleNotFound),
		errors.Is(err, database.ErrRoleCategoryNotFound),
		errors.Is(err, database.ErrBranchNotFound),
		errors.Is(err, database.ErrDepartmentNotFound),
		errors.Is(err, database.ErrAssignmentNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"message": err.Error(),
		})

	case errors.Is(err, database.ErrDuplicateAssignment):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"message": "Assignment already exists",
		})

	case errors.Is(err, database.ErrDuplicateSlug):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"message": "Value already in use",
		})

	case errors.Is(err, database.ErrHasDependents):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"message": "Cannot delete: dependent records exist",
		})

	case errors.Is(err, database.ErrNotDeleted):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"message": "Entity is not deleted",
		})

	case errors.Is(err, database.ErrModuleCycle):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"message": "Module parent would create a cycle",
		})

	case errors.Is(err, service.ErrInvalidCredentials):
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"message": "Invalid email or password",
		})

	case errors.Is(err, service.ErrUserInactive):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"message": "Account is inactive",
		})

	case errors.Is(err, service.ErrSelfDeletion):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"message": "You cannot delete your own account",
		})

	case errors.Is(err, service.ErrRoleInactive):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"message": "Role is not active",
		})

	default:
		slog.Error("request failed", "path", c.Path(), "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Internal server error",
		})
	}
}
