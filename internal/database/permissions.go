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

type Permission struct {
	ID          int64
	ModuleID    int64
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

const permissionColumns = `id, module_id, name, slug, description, is_active, created_by, updated_by, deleted_by, created_at, updated_at, deleted_at`

func scanPermission(row pgx.Row) (Permission, error) {
	var p Permission
	err := row.Scan(&p.ID, &p.ModuleID, &p.Name, &p.Slug, &p.Description, &p.IsActive,
		&p.CreatedBy, &p.UpdatedBy, &p.DeletedBy, &p.CreatedAt, &p.UpdatedAt, &p.DeletedAt)
	return p, err
}

var permissionSortColumns = map[string]string{
	"name":       "name",
	"slug":       "slug",
	"created_at": "created_at",
}

type ListPermissionsParams struct {
	Search    string
	ModuleID  util.Optional[int64]
	IsActive  util.Optional[bool]
	SortBy    string
	SortOrder string
	Limit     int
	Offset    int
}

func (db *Database) ListPermissions(ctx context.Context, params ListPermissionsParams) ([]Permission, int, error) {
	var where strings.Builder
	where.WriteString(` WHERE deleted_at IS NULL`)
	var args []any
	argNum := 1

	if params.Search != "" {
		where.WriteString(fmt.Sprintf(" AND (name ILIKE $%d OR slug ILIKE $%d)", argNum, argNum))
		args = append(args, "%"+params.Search+"%")
		argNum++
	}
	if params.ModuleID.IsSet {
		where.WriteString(fmt.Sprintf(" AND module_id = $%d", argNum))
		args = append(args, params.ModuleID.Val)
		argNum++
	}
	if params.IsActive.IsSet {
		where.WriteString(fmt.Sprintf(" AND is_active = $%d", argNum))
		args = append(args, params.IsActive.Val)
		argNum++
	}

	var total int
	if err := db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM tbl_permission`+where.String(), args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("database: failed to count permissions: %w", err)
	}

	order := sortClause(permissionSortColumns, params.SortBy, params.SortOrder, "name")
	query := fmt.Sprintf(`SELECT %s FROM tbl_permission%s ORDER BY %s LIMIT $%d OFFSET $%d`,
		permissionColumns, where.String(), order, argNum, argNum+1)
	args = append(args, params.Limit, params.Offset)

	rows, err := db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("database: failed to list permissions: %w", err)
	}
	defer rows.Close()

	var permissions []Permission
	for rows.Next() {
		permission, err := scanPermission(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("database: failed to scan permission: %w", err)
		}
		permissions = append(permissions, permission)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("database: failed to iterate permissions: %w", err)
	}

	return permissions, total, nil
}

func (db *Database) ListActivePermissions(ctx context.Context) ([]Permission, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT `+permissionColumns+` FROM tbl_permission WHERE deleted_at IS NULL AND is_active = true ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("database: failed to list active permissions: %w", err)
	}
	defer rows.Close()

	var permissions []Permission
	for rows.Next() {
		permission, err := scanPermission(rows)
		if err != nil {
			return nil, fmt.Errorf("database: failed to scan permission: %w", err)
		}
		permissions = append(permissions, permission)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("database: failed to iterate permissions: %w", err)
	}
	return permissions, nil
}

func (db *Database) ListPermissionsByModule(ctx context.Context, moduleID int64) ([]Permission, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT `+permissionColumns+` FROM tbl_permission WHERE module_id = $1 AND deleted_at IS NULL ORDER BY name ASC`, moduleID)
	if err != nil {
		return nil, fmt.Errorf("database: failed to list permissions by module (id=%d): %w", moduleID, err)
	}
	defer rows.Close()

	var permissions []Permission
	for rows.Next() {
		permission, err := scanPermission(rows)
		if err != nil {
			return nil, fmt.Errorf("database: failed to scan permission: %w", err)
		}
		permissions = append(permissions, permission)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("database: failed to iterate permissions: %w", err)
	}
	return permissions, nil
}

type CreatePermissionParams struct {
	ModuleID    int64
	Name        string
	Slug        string
	Description string
	IsActive    bool
	CreatedBy   util.Optional[int64]
}

func (db *Database) CreatePermission(ctx context.Context, params CreatePermissionParams) (Permission, error) {
	return db.createPermission(ctx, db.Pool, params)
}

func (db *Database) createPermission(ctx context.Context, q rowQuerier, params CreatePermissionParams) (Permission, error) {
	now := time.Now().UTC()
	permission := Permission{
		ModuleID:    params.ModuleID,
		Name:        params.Name,
		Slug:        params.Slug,
		Description: params.Description,
		IsActive:    params.IsActive,
		CreatedBy:   params.CreatedBy,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err := q.QueryRow(ctx, `INSERT INTO tbl_permission (module_id, name, slug, description, is_active, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`,
		permission.ModuleID, permission.Name, permission.Slug, permission.Description,
		permission.IsActive, permission.CreatedBy, permission.CreatedAt, permission.UpdatedAt).Scan(&permission.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return permission, ErrDuplicateSlug
		}
		return permission, fmt.Errorf("database: failed to insert permission (slug=%s): %w", permission.Slug, err)
	}
	return permission, nil
}

// BulkCreatePermissions inserts a batch atomically; one bad row aborts all.
func (db *Database) BulkCreatePermissions(ctx context.Context, batch []CreatePermissionParams) ([]Permission, error) {
	var created []Permission
	err := db.withTx(ctx, func(tx pgx.Tx) error {
		for _, params := range batch {
			permission, err := db.createPermission(ctx, tx, params)
			if err != nil {
				return err
			}
			created = append(created, permission)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (db *Database) GetPermissionByID(ctx context.Context, id int64) (Permission, error) {
	permission, err := scanPermission(db.Pool.QueryRow(ctx,
		`SELECT `+permissionColumns+` FROM tbl_permission WHERE id = $1 AND deleted_at IS NULL`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return permission, ErrPermissionNotFound
		}
		return permission, fmt.Errorf("database: failed to scan permission: %w", err)
	}
	return permission, nil
}

type UpdatePermissionParams struct {
	ModuleID    util.Optional[int64]
	Name        util.Optional[string]
	Slug        util.Optional[string]
	Description util.Optional[string]
	IsActive    util.Optional[bool]
	UpdatedBy   util.Optional[int64]
}

func (db *Database) UpdatePermission(ctx context.Context, id int64, params UpdatePermissionParams) (Permission, error) {
	var query strings.Builder
	query.WriteString(`UPDATE tbl_permission SET `)
	var args []any
	argNum := 1

	set := func(col string, val any) {
		query.WriteString(fmt.Sprintf("%s = $%d, ", col, argNum))
		args = append(args, val)
		argNum++
	}
	if params.ModuleID.IsSet {
		set("module_id", params.ModuleID.Val)
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
		argNum, argNum+1, argNum+2, permissionColumns))
	args = append(args, params.UpdatedBy, time.Now().UTC(), id)

	permission, err := scanPermission(db.Pool.QueryRow(ctx, query.String(), args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return permission, ErrPermissionNotFound
		}
		if isUniqueViolation(err) {
			return permission, ErrDuplicateSlug
		}
		return permission, fmt.Errorf("database: failed to update permission (id=%d): %w", id, err)
	}
	return permission, nil
}

// SoftDeletePermission refuses to delete a permission still attached to a role.
func (db *Database) SoftDeletePermission(ctx context.Context, id int64, deletedBy util.Optional[int64]) error {
	var dependents int
	err := db.Pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM role_permission rp JOIN tbl_role r ON r.id = rp.role_id AND r.deleted_at IS NULL WHERE rp.permission_id = $1`,
		id).Scan(&dependents)
	if err != nil {
		return fmt.Errorf("database: failed to count permission dependents (id=%d): %w", id, err)
	}
	if dependents > 0 {
		return ErrHasDependents
	}

	tag, err := db.Pool.Exec(ctx, `UPDATE tbl_permission SET deleted_at = $1, deleted_by = $2 WHERE id = $3 AND deleted_at IS NULL`,
		time.Now().UTC(), deletedBy, id)
	if err != nil {
		return fmt.Errorf("database: failed to soft delete permission (id=%d): %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrPermissionNotFound
	}
	return nil
}

func (db *Database) RestorePermission(ctx context.Context, id int64) (Permission, error) {
	existing, err := scanPermission(db.Pool.QueryRow(ctx,
		`SELECT `+permissionColumns+` FROM tbl_permission WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return existing, ErrPermissionNotFound
		}
		return existing, fmt.Errorf("database: failed to scan permission: %w", err)
	}
	if !existing.DeletedAt.IsSet {
		return existing, ErrNotDeleted
	}

	permission, err := scanPermission(db.Pool.QueryRow(ctx,
		`UPDATE tbl_permission SET deleted_at = NULL, deleted_by = NULL, updated_at = $1 WHERE id = $2 RETURNING `+permissionColumns,
		time.Now().UTC(), id))
	if err != nil {
		return permission, fmt.Errorf("database: failed to restore permission (id=%d): %w", id, err)
	}
	return permission, nil
}
