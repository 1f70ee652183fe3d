package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"authkit/internal/util"

	"github.com/jackc/pgx/v5"
)

type RoleCategory struct {
	ID          int64
	Name        string
	Slug        string
	Description string
	IsActive    bool
	CreatedBy   util.Optional[int64]
	UpdatedBy   util.Optional[int64]
	DeletedBy   util.Optional[int64]
	CreatedAt   time.Time
	UpdatedAt   time.Time
	DeletedAt   util.Optional[time.Time]
}

type Role struct {
	ID             int64
	RoleCategoryID util.Optional[int64]
	Name           string
	Slug           string
	Description    string
	IsActive       bool
	CreatedBy      util.Optional[int64]
	UpdatedBy      util.Optional[int64]
	DeletedBy      util.Optional[int64]
	CreatedAt      time.Time
	UpdatedAt      time.Time
	DeletedAt      util.Optional[time.Time]
}

const roleCategoryColumns = `id, name, slug, description, is_active, created_by, updated_by, deleted_by, created_at, updated_at, deleted_at`
const roleColumns = `id, role_category_id, name, slug, description, is_active, created_by, updated_by, deleted_by, created_at, updated_at, deleted_at`

func scanRoleCategory(row pgx.Row) (RoleCategory, error) {
	var c RoleCategory
	err := row.Scan(&c.ID, &c.Name, &c.Slug, &c.Description, &c.IsActive,
		&c.CreatedBy, &c.UpdatedBy, &c.DeletedBy, &c.CreatedAt, &c.UpdatedAt, &c.DeletedAt)
	return c, err
}

func scanRole(row pgx.Row) (Role, error) {
	var r Role
	err := row.Scan(&r.ID, &r.RoleCategoryID, &r.Name, &r.Slug, &r.Description, &r.IsActive,
		&r.CreatedBy, &r.UpdatedBy, &r.DeletedBy, &r.CreatedAt, &r.UpdatedAt, &r.DeletedAt)
	return r, err
}

var roleSortColumns = map[string]string{
	"name":       "name",
	"slug":       "slug",
	"created_at": "created_at",
}

type ListRoleCategoriesParams struct {
	Search    string
	IsActive  util.Optional[bool]
	SortBy    string
	SortOrder string
	Limit     int
	Offset    int
}

func (db *Database) ListRoleCategories(ctx context.Context, params ListRoleCategoriesParams) ([]RoleCategory, int, error) {
	var where strings.Builder
	where.WriteString(` WHERE deleted_at IS NULL`)
	var args []any
	argNum := 1

	if params.Search != "" {
		where.WriteString(fmt.Sprintf(" AND (name ILIKE $%d OR slug ILIKE $%d)", argNum, argNum))
		args = append(args, "%"+params.Search+"%")
		argNum++
	}
	if params.IsActive.IsSet {
		where.WriteString(fmt.Sprintf(" AND is_active = $%d", argNum))
		args = append(args, params.IsActive.Val)
		argNum++
	}

	var total int
	if err := db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM tbl_role_category`+where.String(), args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("database: failed to count role categories: %w", err)
	}

	order := sortClause(roleSortColumns, params.SortBy, params.SortOrder, "name")
	query := fmt.Sprintf(`SELECT %s FROM tbl_role_category%s ORDER BY %s LIMIT $%d OFFSET $%d`,
		roleCategoryColumns, where.String(), order, argNum, argNum+1)
	args = append(args, params.Limit, params.Offset)

	rows, err := db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("database: failed to list role categories: %w", err)
	}
	defer rows.Close()

	var categories []RoleCategory
	for rows.Next() {
		category, err := scanRoleCategory(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("database: failed to scan role category: %w", err)
		}
		categories = append(categories, category)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("database: failed to iterate role categories: %w", err)
	}

	return categories, total, nil
}

type CreateRoleCategoryParams struct {
	Name        string
	Slug        string
	Description string
	IsActive    bool
	CreatedBy   util.Optional[int64]
}

func (db *Database) CreateRoleCategory(ctx context.Context, params CreateRoleCategoryParams) (RoleCategory, error) {
	now := time.Now().UTC()
	category := RoleCategory{
		Name:        params.Name,
		Slug:        params.Slug,
		Description: params.Description,
		IsActive:    params.IsActive,
		CreatedBy:   params.CreatedBy,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err := db.Pool.QueryRow(ctx, `INSERT INTO tbl_role_category (name, slug, description, is_active, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
		category.Name, category.Slug, category.Description, category.IsActive,
		category.CreatedBy, category.CreatedAt, category.UpdatedAt).Scan(&category.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return category, ErrDuplicateSlug
		}
		return category, fmt.Errorf("database: failed to insert role category (slug=%s): %w", category.Slug, err)
	}
	return category, nil
}

func (db *Database) GetRoleCategoryByID(ctx context.Context, id int64) (RoleCategory, error) {
	category, err := scanRoleCategory(db.Pool.QueryRow(ctx,
		`SELECT `+roleCategoryColumns+` FROM tbl_role_category WHERE id = $1 AND deleted_at IS NULL`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return category, ErrRoleCategoryNotFound
		}
		return category, fmt.Errorf("database: failed to scan role category: %w", err)
	}
	return category, nil
}

type UpdateRoleCategoryParams struct {
	Name        util.Optional[string]
	Slug        util.Optional[string]
	Description util.Optional[string]
	IsActive    util.Optional[bool]
	UpdatedBy   util.Optional[int64]
}

func (db *Database) UpdateRoleCategory(ctx context.Context, id int64, params UpdateRoleCategoryParams) (RoleCategory, error) {
	var query strings.Builder
	query.WriteString(`UPDATE tbl_role_category SET `)
	var args []any
	argNum := 1

	set := func(col string, val any) {
		query.WriteString(fmt.Sprintf("%s = $%d, ", col, argNum))
		args = append(args, val)
		argNum++
	}
	if params.Name.IsSet {
		set("name", params.Name.Val)
	}
	if params.Slug.IsSet {
		set("slug", params.Slug.Val)
	}
	if params.Description.IsSet {
		set("description", params.Description.Val)
	}
	if params.IsActive.IsSet {
		set("is_active", params.IsActive.Val)
	}
	query.WriteString(fmt.Sprintf("updated_by = $%d, updated_at = $%d WHERE id = $%d AND deleted_at IS NULL RETURNING %s",
		argNum, argNum+1, argNum+2, roleCategoryColumns))
	args = append(args, params.UpdatedBy, time.Now().UTC(), id)

	category, err := scanRoleCategory(db.Pool.QueryRow(ctx, query.String(), args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return category, ErrRoleCategoryNotFound
		}
		if isUniqueViolation(err) {
			return category, ErrDuplicateSlug
		}
		return category, fmt.Errorf("database: failed to update role category (id=%d): %w", id, err)
	}
	return category, nil
}

// SoftDeleteRoleCategory refuses to delete a category that still has live roles.
func (db *Database) SoftDeleteRoleCategory(ctx context.Context, id int64, deletedBy util.Optional[int64]) error {
	var dependents int
	err := db.Pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM tbl_role WHERE role_category_id = $1 AND deleted_at IS NULL`, id).Scan(&dependents)
	if err != nil {
		return fmt.Errorf("database: failed to count role category dependents (id=%d): %w", id, err)
	}
	if dependents > 0 {
		return ErrHasDependents
	}

	tag, err := db.Pool.Exec(ctx, `UPDATE tbl_role_category SET deleted_at = $1, deleted_by = $2 WHERE id = $3 AND deleted_at IS NULL`,
		time.Now().UTC(), deletedBy, id)
	if err != nil {
		return fmt.Errorf("database: failed to soft delete role category (id=%d): %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrRoleCategoryNotFound
	}
	return nil
}

func (db *Database) RestoreRoleCategory(ctx context.Context, id int64) (RoleCategory, error) {
	existing, err := scanRoleCategory(db.Pool.QueryRow(ctx,
		`SELECT `+roleCategoryColumns+` FROM tbl_role_category WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return existing, ErrRoleCategoryNotFound
		}
		return existing, fmt.Errorf("database: failed to scan role category: %w", err)
	}
	if !existing.DeletedAt.IsSet {
		return existing, ErrNotDeleted
	}

	category, err := scanRoleCategory(db.Pool.QueryRow(ctx,
		`UPDATE tbl_role_category SET deleted_at = NULL, deleted_by = NULL, updated_at = $1 WHERE id = $2 RETURNING `+roleCategoryColumns,
		time.Now().UTC(), id))
	if err != nil {
		return category, fmt.Errorf("database: failed to restore role category (id=%d): %w", id, err)
	}
	return category, nil
}

type ListRolesParams struct {
	Search         string
	RoleCategoryID util.Optional[int64]
	IsActive       util.Optional[bool]
	SortBy         string
	SortOrder      string
	Limit          int
	Offset         int
}

func (db *Database) ListRoles(ctx context.Context, params ListRolesParams) ([]Role, int, error) {
	var where strings.Builder
	where.WriteString(` WHERE deleted_at IS NULL`)
	var args []any
	argNum := 1

	if params.Search != "" {
		where.WriteString(fmt.Sprintf(" AND (name ILIKE $%d OR slug ILIKE $%d)", argNum, argNum))
		args = append(args, "%"+params.Search+"%")
		argNum++
	}
	if params.RoleCategoryID.IsSet {
		where.WriteString(fmt.Sprintf(" AND role_category_id = $%d", argNum))
		args = append(args, params.RoleCategoryID.Val)
		argNum++
	}
	if params.IsActive.IsSet {
		where.WriteString(fmt.Sprintf(" AND is_active = $%d", argNum))
		args = append(args, params.IsActive.Val)
		argNum++
	}

	var total int
	if err := db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM tbl_role`+where.String(), args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("database: failed to count roles: %w", err)
	}

	order := sortClause(roleSortColumns, params.SortBy, params.SortOrder, "name")
	query := fmt.Sprintf(`SELECT %s FROM tbl_role%s ORDER BY %s LIMIT $%d OFFSET $%d`,
		roleColumns, where.String(), order, argNum, argNum+1)
	args = append(args, params.Limit, params.Offset)

	rows, err := db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("database: failed to list roles: %w", err)
	}
	defer rows.Close()

	var roles []Role
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("database: failed to scan role: %w", err)
		}
		roles = append(roles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("database: failed to iterate roles: %w", err)
	}

	return roles, total, nil
}

func (db *Database) ListActiveRoles(ctx context.Context) ([]Role, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT `+roleColumns+` FROM tbl_role WHERE deleted_at IS NULL AND is_active = true ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("database: failed to list active roles: %w", err)
	}
	defer rows.Close()

	var roles []Role
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, fmt.Errorf("database: failed to scan role: %w", err)
		}
		roles = append(roles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("database: failed to iterate roles: %w", err)
	}
	return roles, nil
}

type CreateRoleParams struct {
	RoleCategoryID util.Optional[int64]
	Name           string
	Slug           string
	Description    string
	IsActive       bool
	CreatedBy      util.Optional[int64]
}

func (db *Database) CreateRole(ctx context.Context, params CreateRoleParams) (Role, error) {
	now := time.Now().UTC()
	role := Role{
		RoleCategoryID: params.RoleCategoryID,
		Name:           params.Name,
		Slug:           params.Slug,
		Description:    params.Description,
		IsActive:       params.IsActive,
		CreatedBy:      params.CreatedBy,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	err := db.Pool.QueryRow(ctx, `INSERT INTO tbl_role (role_category_id, name, slug, description, is_active, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`,
		role.RoleCategoryID, role.Name, role.Slug, role.Description, role.IsActive,
		role.CreatedBy, role.CreatedAt, role.UpdatedAt).Scan(&role.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return role, ErrDuplicateSlug
		}
		return role, fmt.Errorf("database: failed to insert role (slug=%s): %w", role.Slug, err)
	}
	return role, nil
}

func (db *Database) GetRoleByID(ctx context.Context, id int64) (Role, error) {
	role, err := scanRole(db.Pool.QueryRow(ctx,
		`SELECT `+roleColumns+` FROM tbl_role WHERE id = $1 AND deleted_at IS NULL`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return role, ErrRoleNotFound
		}
		return role, fmt.Errorf("database: failed to scan role: %w", err)
	}
	return role, nil
}

func (db *Database) GetRoleBySlug(ctx context.Context, slug string) (Role, error) {
	role, err := scanRole(db.Pool.QueryRow(ctx,
		`SELECT `+roleColumns+` FROM tbl_role WHERE slug = $1 AND deleted_at IS NULL`, slug))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return role, ErrRoleNotFound
		}
		return role, fmt.Errorf("database: failed to scan role: %w", err)
	}
	return role, nil
}

type UpdateRoleParams struct {
	RoleCategoryID util.Optional[util.Optional[int64]]
	Name           util.Optional[string]
	Slug           util.Optional[string]
	Description    util.Optional[string]
	IsActive       util.Optional[bool]
	UpdatedBy      util.Optional[int64]
}

func (db *Database) UpdateRole(ctx context.Context, id int64, params UpdateRoleParams) (Role, error) {
	var query strings.Builder
	query.WriteString(`UPDATE tbl_role SET `)
	var args []any
	argNum := 1

	set := func(col string, val any) {
		query.WriteString(fmt.Sprintf("%s = $%d, ", col, argNum))
		args = append(args, val)
		argNum++
	}
	if params.RoleCategoryID.IsSet {
		set("role_category_id", params.RoleCategoryID.Val)
	}
	if params.Name.IsSet {
		set("name", params.Name.Val)
	}
	if params.Slug.IsSet {
		set("slug", params.Slug.Val)
	}
	if params.Description.IsSet {
		set("description", params.Description.Val)
	}
	if params.IsActive.IsSet {
		set("is_active", params.IsActive.Val)
	}
	query.WriteString(fmt.Sprintf("updated_by = $%d, updated_at = $%d WHERE id = $%d AND deleted_at IS NULL RETURNING %s",
		argNum, argNum+1, argNum+2, roleColumns))
	args = append(args, params.UpdatedBy, time.Now().UTC(), id)

	role, err := scanRole(db.Pool.QueryRow(ctx, query.String(), args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return role, ErrRoleNotFound
		}
		if isUniqueViolation(err) {
			return role, ErrDuplicateSlug
		}
		return role, fmt.Errorf("database: failed to update role (id=%d): %w", id, err)
	}
	return role, nil
}

// SoftDeleteRole refuses to delete a role still assigned to users.
func (db *Database) SoftDeleteRole(ctx context.Context, id int64, deletedBy util.Optional[int64]) error {
	var dependents int
	err := db.Pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM user_role ur JOIN tbl_user u ON u.id = ur.user_id AND u.deleted_at IS NULL WHERE ur.role_id = $1`,
		id).Scan(&dependents)
	if err != nil {
		return fmt.Errorf("database: failed to count role dependents (id=%d): %w", id, err)
	}
	if dependents > 0 {
		return ErrHasDependents
	}

	tag, err := db.Pool.Exec(ctx, `UPDATE tbl_role SET deleted_at = $1, deleted_by = $2 WHERE id = $3 AND deleted_at IS NULL`,
		time.Now().UTC(), deletedBy, id)
	if err != nil {
		return fmt.Errorf("database: failed to soft delete role (id=%d): %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrRoleNotFound
	}
	return nil
}

func (db *Database) RestoreRole(ctx context.Context, id int64) (Role, error) {
	existing, err := scanRole(db.Pool.QueryRow(ctx,
		`SELECT `+roleColumns+` FROM tbl_role WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return existing, ErrRoleNotFound
		}
		return existing, fmt.Errorf("database: failed to scan role: %w", err)
	}
	if !existing.DeletedAt.IsSet {
		return existing, ErrNotDeleted
	}

	role, err := scanRole(db.Pool.QueryRow(ctx,
		`UPDATE tbl_role SET deleted_at = NULL, deleted_by = NULL, updated_at = $1 WHERE id = $2 RETURNING `+roleColumns,
		time.Now().UTC(), id))
	if err != nil {
		return role, fmt.Errorf("database: failed to restore role (id=%d): %w", id, err)
	}
	return role, nil
}
