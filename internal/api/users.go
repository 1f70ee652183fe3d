package api

import (
	"strings"

	"authkit/internal/database"
	"authkit/internal/middleware"
	"authkit/internal/util"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"
)

func (h *Handler) ListUsers(c *fiber.Ctx) error {
	page := parsePageParams(c)
	users, total, err := h.db.ListUsers(c.UserContext(), database.ListUsersParams{
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
	return c.JSON(paginated(usersJSON(users), page, total, len(users)))
}

func (h *Handler) GetUser(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	user, err := h.db.GetUserByID(c.UserContext(), id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"data": userJSON(user)})
}

type createUserRequest struct {
	Name     string `json:"name" validate:"required,min=2,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	IsActive *bool  `json:"is_active"`
}

func (h *Handler) CreateUser(c *fiber.Ctx) error {
	var req createUserRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if fieldErrors := h.validate.Struct(req); fieldErrors != nil {
		return validationFailed(c, fieldErrors)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return fail(c, err)
	}

	isActive := true
	if req.IsActive != nil {
		isActive = *req.IsActive
	}

	user, err := h.db.CreateUser(c.UserContext(), database.CreateUserParams{
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: string(hash),
		IsActive:     isActive,
		CreatedBy:    util.Some(middleware.UserIDFromCtx(c)),
	})
	if err != nil {
		return fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": userJSON(user)})
}

type updateUserRequest struct {
	Name     *string `json:"name" validate:"omitempty,min=2,max=100"`
	Email    *string `json:"email" validate:"omitempty,email"`
	Password *string `json:"password" validate:"omitempty,min=8,max=72"`
	IsActive *bool   `json:"is_active"`
}

func (h *Handler) UpdateUser(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var req updateUserRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}
	if fieldErrors := h.validate.Struct(req); fieldErrors != nil {
		return validationFailed(c, fieldErrors)
	}

	params := database.UpdateUserParams{
		Name:      util.FromPtr(req.Name),
		IsActive:  util.FromPtr(req.IsActive),
		UpdatedBy: util.Some(middleware.UserIDFromCtx(c)),
	}
	if req.Email != nil {
		email := strings.TrimSpace(strings.ToLower(*req.Email))
		params.Email = util.Some(email)
	}
	if req.Password != nil {
		hash, err := bcrypt.GenerateFromPassword([]byte(*req.Password), bcrypt.DefaultCost)
		if err != nil {
			return fail(c, err)
		}
		params.PasswordHash = util.Some(string(hash))
	}

	user, err := h.db.UpdateUser(c.UserContext(), id, params)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"data": userJSON(user)})
}

func (h *Handler) DeleteUser(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	if err := h.accounts.Delete(c.UserContext(), id, middleware.UserIDFromCtx(c)); err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"message": "User deleted"})
}

func (h *Handler) RestoreUser(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	user, err := h.accounts.Restore(c.UserContext(), id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"data": userJSON(user)})
}

func (h *Handler) ListUserRoles(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	if _, err := h.db.GetUserByID(c.UserContext(), id); err != nil {
		return fail(c, err)
	}
	roles, err := h.db.ListUserRoles(c.UserContext(), id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"data": rolesJSON(roles)})
}

type assignRoleRequest struct {
	RoleID int64 `json:"role_id" validate:"required,gt=0"`
}

func (h *Handler) AssignUserRole(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var req assignRoleRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}
	if fieldErrors := h.validate.Struct(req); fieldErrors != nil {
		return validationFailed(c, fieldErrors)
	}

	if err := h.assignments.AssignRole(c.UserContext(), id, req.RoleID); err != nil {
		return fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"message": "Role assigned"})
}

func (h *Handler) RemoveUserRole(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	roleID, err := parseID(c, "roleId")
	if err != nil {
		return err
	}
	if err := h.assignments.RemoveRole(c.UserContext(), id, roleID); err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"message": "Role removed"})
}

type syncRolesRequest struct {
	RoleIDs []int64 `json:"role_ids" validate:"required"`
}

// SyncUserRoles replaces the user's role set and reports the diff.
func (h *Handler) SyncUserRoles(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var req syncRolesRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}
	if fieldErrors := h.validate.Struct(req); fieldErrors != nil {
		return validationFailed(c, fieldErrors)
	}

	diff, err := h.assignments.SyncRoles(c.UserContext(), id, req.RoleIDs)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"data": diff})
}

func (h *Handler) ListUserPermissions(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	if _, err := h.db.GetUserByID(c.UserContext(), id); err != nil {
		return fail(c, err)
	}
	permissions, err := h.resolver.EffectivePermissions(c.UserContext(), id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"data": permissionsJSON(permissions)})
}
