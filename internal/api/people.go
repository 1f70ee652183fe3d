package api

import (
	"time"

	"authkit/internal/database"
	"authkit/internal/middleware"
	"authkit/internal/util"
	"authkit/internal/validation"

	"github.com/gofiber/fiber/v2"
)

func (h *Handler) ListPeople(c *fiber.Ctx) error {
	page := parsePageParams(c)
	people, total, err := h.db.ListPeople(c.UserContext(), database.ListPeopleParams{
		Search:    c.Query("search"),
		SortBy:    c.Query("sort_by"),
		SortOrder: c.Query("sort_order"),
		Limit:     page.limit(),
		Offset:    page.offset(),
	})
	if err != nil {
		return fail(c, err)
	}

	data := make([]fiber.Map, 0, len(people))
	for _, p := range people {
		data = append(data, personJSON(p))
	}
	return c.JSON(paginated(data, page, total, len(people)))
}

func (h *Handler) GetPerson(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	person, err := h.db.GetPersonByID(c.UserContext(), id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"data": personJSON(person)})
}

type createPersonRequest struct {
	UserID    int64  `json:"user_id" validate:"required,gt=0"`
	FirstName string `json:"first_name" validate:"required,max=100"`
	LastName  string `json:"last_name" validate:"required,max=100"`
	Phone     string `json:"phone" validate:"max=30"`
	Address   string `json:"address" validate:"max=255"`
	BirthDate string `json:"birth_date"`
	Gender    string `json:"gender" validate:"omitempty,oneof=male female other"`
}

func (h *Handler) CreatePerson(c *fiber.Ctx) error {
	var req createPersonRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}
	if fieldErrors := h.validate.Struct(req); fieldErrors != nil {
		return validationFailed(c, fieldErrors)
	}

	if _, err := h.db.GetUserByID(c.UserContext(), req.UserID); err != nil {
		return fail(c, err)
	}

	params := database.CreatePersonParams{
		UserID:    req.UserID,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Phone:     req.Phone,
		Address:   req.Address,
		Gender:    req.Gender,
		CreatedBy: util.Some(middleware.UserIDFromCtx(c)),
	}
	if req.BirthDate != "" {
		birthDate, err := time.Parse("2006-01-02", req.BirthDate)
		if err != nil {
			return validationFailed(c, []validation.FieldError{{Field: "birth_date", Message: "birth_date must be formatted YYYY-MM-DD"}})
		}
		params.BirthDate = util.Some(birthDate)
	}

	person, err := h.db.CreatePerson(c.UserContext(), params)
	if err != nil {
		return fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": personJSON(person)})
}

type updatePersonRequest struct {
	FirstName *string `json:"first_name" validate:"omitempty,max=100"`
	LastName  *string `json:"last_name" validate:"omitempty,max=100"`
	Phone     *string `json:"phone" validate:"omitempty,max=30"`
	Address   *string `json:"address" validate:"omitempty,max=255"`
	BirthDate *string `json:"birth_date"`
	Gender    *string `json:"gender" validate:"omitempty,oneof=male female other"`
}

func (h *Handler) UpdatePerson(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var req updatePersonRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}
	if fieldErrors := h.validate.Struct(req); fieldErrors != nil {
		return validationFailed(c, fieldErrors)
	}

	params := database.UpdatePersonParams{
		FirstName: util.FromPtr(req.FirstName),
		LastName:  util.FromPtr(req.LastName),
		Phone:     util.FromPtr(req.Phone),
		Address:   util.FromPtr(req.Address),
		Gender:    util.FromPtr(req.Gender),
		UpdatedBy: util.Some(middleware.UserIDFromCtx(c)),
	}
	if req.BirthDate != nil {
		birthDate, err := time.Parse("2006-01-02", *req.BirthDate)
		if err != nil {
			return validationFailed(c, []validation.FieldError{{Field: "birth_date", Message: "birth_date must be formatted YYYY-MM-DD"}})
		}
		params.BirthDate = util.Some(birthDate)
	}

	person, err := h.db.UpdatePerson(c.UserContext(), id, params)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"data": personJSON(person)})
}

func (h *Handler) DeletePerson(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	if err := h.db.SoftDeletePerson(c.UserContext(), id, util.Some(middleware.UserIDFromCtx(c))); err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"message": "Person deleted"})
}

func (h *Handler) RestorePerson(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	person, err := h.db.RestorePerson(c.UserContext(), id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"data": personJSON(person)})
}
