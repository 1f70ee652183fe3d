package api

import (
	"time"

	"authkit/internal/database"

	"github.com/gofiber/fiber/v2"
)

// Presenters shape database records for JSON output. Timestamps go out in
// RFC 3339; soft-delete and audit fields are included so admin screens can
// show who touched what.

func userJSON(u database.User) fiber.Map {
	return fiber.Map{
		"id":         u.ID,
		"name":       u.Name,
		"email":      u.Email,
		"is_active":  u.IsActive,
		"created_by": u.CreatedBy.Ptr(),
		"updated_by": u.UpdatedBy.Ptr(),
		"created_at": u.CreatedAt.Format(time.RFC3339),
		"updated_at": u.UpdatedAt.Format(time.RFC3339),
		"deleted_at": timePtr(u.DeletedAt.Ptr()),
	}
}

func personJSON(p database.Person) fiber.Map {
	m := fiber.Map{
		"id":         p.ID,
		"user_id":    p.UserID,
		"first_name": p.FirstName,
		"last_name":  p.LastName,
		"full_name":  p.FullName(),
		"phone":      p.Phone,
		"address":    p.Address,
		"gender":     p.Gender,
		"created_at": p.CreatedAt.Format(time.RFC3339),
		"updated_at": p.UpdatedAt.Format(time.RFC3339),
		"deleted_at": timePtr(p.DeletedAt.Ptr()),
	}
	if p.BirthDate.IsSet {
		m["birth_date"] = p.BirthDate.Val.Format("2006-01-02")
		m["age"] = p.Age(time.Now().UTC()).Ptr()
	} else {
		m["birth_date"] = nil
		m["age"] = nil
	}
	return m
}

func moduleJSON(m database.Module) fiber.Map {
	return fiber.Map{
		"id":          m.ID,
		"parent_id":   m.ParentID.Ptr(),
		"name":        m.Name,
		"slug":        m.Slug,
		"description": m.Description,
		"icon":        m.Icon,
		"route":       m.Route,
		"order":       m.Order,
		"is_active":   m.IsActive,
		"created_at":  m.CreatedAt.Format(time.RFC3339),
		"updated_at":  m.UpdatedAt.Format(time.RFC3339),
		"deleted_at":  timePtr(m.DeletedAt.Ptr()),
	}
}

func permissionJSON(p database.Permission) fiber.Map {
	return fiber.Map{
		"id":          p.ID,
		"module_id":   p.ModuleID,
		"name":        p.Name,
		"slug":        p.Slug,
		"description": p.Description,
		"is_active":   p.IsActive,
		"created_at":  p.CreatedAt.Format(time.RFC3339),
		"updated_at":  p.UpdatedAt.Format(time.RFC3339),
		"deleted_at":  timePtr(p.DeletedAt.Ptr()),
	}
}

func roleJSON(r database.Role) fiber.Map {
	return fiber.Map{
		"id":               r.ID,
		"role_category_id": r.RoleCategoryID.Ptr(),
		"name":             r.Name,
		"slug":             r.Slug,
		"description":      r.Description,
		"is_active":        r.IsActive,
		"created_at":       r.CreatedAt.Format(time.RFC3339),
		"updated_at":       r.UpdatedAt.Format(time.RFC3339),
		"deleted_at":       timePtr(r.DeletedAt.Ptr()),
	}
}

func roleCategoryJSON(c database.RoleCategory) fiber.Map {
	return fiber.Map{
		"id":          c.ID,
		"name":        c.Name,
		"slug":        c.Slug,
		"description": c.Description,
		"is_active":   c.IsActive,
		"created_at":  c.CreatedAt.Format(time.RFC3339),
		"updated_at":  c.UpdatedAt.Format(time.RFC3339),
		"deleted_at":  timePtr(c.DeletedAt.Ptr()),
	}
}

func branchJSON(b database.Branch) fiber.Map {
	return fiber.Map{
		"id":         b.ID,
		"name":       b.Name,
		"slug":       b.Slug,
		"address":    b.Address,
		"phone":      b.Phone,
		"is_active":  b.IsActive,
		"created_at": b.CreatedAt.Format(time.RFC3339),
		"updated_at": b.UpdatedAt.Format(time.RFC3339),
		"deleted_at": timePtr(b.DeletedAt.Ptr()),
	}
}

func departmentJSON(d database.Department) fiber.Map {
	return fiber.Map{
		"id":          d.ID,
		"name":        d.Name,
		"slug":        d.Slug,
		"description": d.Description,
		"is_active":   d.IsActive,
		"created_at":  d.CreatedAt.Format(time.RFC3339),
		"updated_at":  d.UpdatedAt.Format(time.RFC3339),
		"deleted_at":  timePtr(d.DeletedAt.Ptr()),
	}
}

func usersJSON(users []database.User) []fiber.Map {
	out := make([]fiber.Map, 0, len(users))
	for _, u := range users {
		out = append(out, userJSON(u))
	}
	return out
}

func permissionsJSON(permissions []database.Permission) []fiber.Map {
	out := make([]fiber.Map, 0, len(permissions))
	for _, p := range permissions {
		out = append(out, permissionJSON(p))
	}
	return out
}

func rolesJSON(roles []database.Role) []fiber.Map {
	out := make([]fiber.Map, 0, len(roles))
	for _, r := range roles {
		out = append(out, roleJSON(r))
	}
	return out
}

func modulesJSON(modules []database.Module) []fiber.Map {
	out := make([]fiber.Map, 0, len(modules))
	for _, m := range modules {
		out = append(out, moduleJSON(m))
	}
	return out
}

func timePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(time.RFC3339)
	return &s
}
