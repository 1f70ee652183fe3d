package api

import (
	"errors"
	"strings"
	"time"

	"authkit/internal/database"
	"authkit/internal/middleware"
	"authkit/internal/service"
	"authkit/internal/util"
	"authkit/internal/validation"

	"github.com/gofiber/fiber/v2"
)

type registerRequest struct {
	Name        string         `json:"name" validate:"required,min=2,max=100"`
	Email       string         `json:"email" validate:"required,email"`
	Password    string         `json:"password" validate:"required,min=8,max=72"`
	ForceCreate bool           `json:"force_create"`
	RoleIDs     []int64        `json:"role_ids" validate:"omitempty,dive,gt=0"`
	Person      *personRequest `json:"person"`
}

type personRequest struct {
	FirstName string `json:"first_name" validate:"required,max=100"`
	LastName  string `json:"last_name" validate:"required,max=100"`
	Phone     string `json:"phone" validate:"max=30"`
	Address   string `json:"address" validate:"max=255"`
	BirthDate string `json:"birth_date"`
	Gender    string `json:"gender" validate:"omitempty,oneof=male female other"`
}

// Register creates an account. When the email is held by a soft-deleted
// user the response is a 409 offering to restore; retrying with
// force_create=true frees the address and registers fresh.
func (h *Handler) Register(c *fiber.Ctx) error {
	var req registerRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if fieldErrors := h.validate.Struct(req); fieldErrors != nil {
		return validationFailed(c, fieldErrors)
	}

	params := service.RegisterParams{
		Name:        req.Name,
		Email:       req.Email,
		Password:    req.Password,
		ForceCreate: req.ForceCreate,
		RoleIDs:     req.RoleIDs,
	}
	if req.Person != nil {
		if fieldErrors := h.validate.Struct(*req.Person); fieldErrors != nil {
			return validationFailed(c, fieldErrors)
		}
		pp := database.CreatePersonParams{
			FirstName: req.Person.FirstName,
			LastName:  req.Person.LastName,
			Phone:     req.Person.Phone,
			Address:   req.Person.Address,
			Gender:    req.Person.Gender,
		}
		if req.Person.BirthDate != "" {
			birthDate, err := time.Parse("2006-01-02", req.Person.BirthDate)
			if err != nil {
				return validationFailed(c, []validation.FieldError{{Field: "birth_date", Message: "birth_date must be formatted YYYY-MM-DD"}})
			}
			pp.BirthDate = util.Some(birthDate)
		}
		params.Person = util.Some(pp)
	}

	user, person, err := h.accounts.Register(c.UserContext(), params)
	if err != nil {
		if errors.Is(err, service.ErrEmailConflict) {
			// user carries the soft-deleted account holding the address.
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"message": "Email belongs to a deleted account",
				"action":  "restore_user",
				"user_id": user.ID,
				"user":    userJSON(user),
			})
		}
		if errors.Is(err, database.ErrDuplicateSlug) {
			return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
				"message": "Email already in use",
			})
		}
		return fail(c, err)
	}

	body := fiber.Map{"data": userJSON(user)}
	if person.IsSet {
		body["person"] = personJSON(person.Val)
	}
	return c.Status(fiber.StatusCreated).JSON(body)
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func (h *Handler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if fieldErrors := h.validate.Struct(req); fieldErrors != nil {
		return validationFailed(c, fieldErrors)
	}

	user, signed, err := h.accounts.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return fail(c, err)
	}

	return c.JSON(fiber.Map{
		"data":         userJSON(user),
		"access_token": signed,
		"token_type":   "Bearer",
	})
}

func (h *Handler) Logout(c *fiber.Ctx) error {
	claims, ok := middleware.ClaimsFromCtx(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"message": "Authentication required",
		})
	}
	if err := h.accounts.Logout(c.UserContext(), claims); err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"message": "Logged out"})
}

func (h *Handler) Refresh(c *fiber.Ctx) error {
	claims, ok := middleware.ClaimsFromCtx(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"message": "Authentication required",
		})
	}
	signed, err := h.accounts.Refresh(c.UserContext(), claims)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{
		"access_token": signed,
		"token_type":   "Bearer",
	})
}

// Me returns the caller's profile with person record and roles.
func (h *Handler) Me(c *fiber.Ctx) error {
	userID := middleware.UserIDFromCtx(c)
	user, person, roles, err := h.accounts.Profile(c.UserContext(), userID)
	if err != nil {
		return fail(c, err)
	}

	body := fiber.Map{
		"data":  userJSON(user),
		"roles": rolesJSON(roles),
	}
	if person.IsSet {
		body["person"] = personJSON(person.Val)
	} else {
		body["person"] = nil
	}
	return c.JSON(body)
}
