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

type Module struct {
	ID          int64
	ParentID    util.Optional[int64]
	Name        string
	Slug        string
	Description string
	Icon        string
	Route       string
	Order       int
	IsActive    bool
	CreatedBy   util.Optional[int64]
	UpdatedBy   util.Optional[int64]
	DeletedBy   util.Optional[int64]
	CreatedAt   time.Time
	UpdatedAt   time.Time
	DeletedAt   util.Optional[time.Time]
}

const moduleColumns = `id, parent_id, name, slug, description, icon, route, sort_order, is_active, created_by, updated_by, deleted_by, created_at, updated_at, deleted_at`

func scanModule(row pgx.Row) (Module, error) {
	var m Module
	err := row.Scan(&m.ID, &m.ParentID, &m.Name, &m.Slug, &m.Description, &m.Icon, &m.Route,
		&m.Order, &m.IsActive, &m.CreatedBy, &m.UpdatedBy, &m.DeletedBy,
		&m.CreatedAt, &m.UpdatedAt, &m.DeletedAt)
	return m, err
}

var moduleSortColumns = map[string]string{
	"name":       "name",
	"slug":       "slug",
	"order":      "sort_order",
	"created_at": "created_at",
}

type ListModulesParams struct {
	Search    string
	IsActive  util.Optional[bool]
	SortBy    string
	SortOrder string
	Limit     int
	Offset    int
}

func (db *Database) ListModules(ctx context.Context, params ListModulesParams) ([]Module, int, error) {
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
	if err := db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM tbl_module`+where.String(), args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("database: failed to count modules: %w", err)
	}

	order := sortClause(moduleSortColumns, params.SortBy, params.SortOrder, "sort_order")
	query := fmt.Sprintf(`SELECT %s FROM tbl_module%s ORDER BY %s, id ASC LIMIT $%d OFFSET $%d`,
		moduleColumns, where.String(), order, argNum, argNum+1)
	args = append(args, params.Limit, params.Offset)

	rows, err := db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("database: failed to list modules: %w", err)
	}
	defer rows.Close()

	var modules []Module
	for rows.Next() {
		module, err := scanModule(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("database: failed to scan module: %w", err)
		}
		modules = append(modules, module)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("database: failed to iterate modules: %w", err)
	}

	return modules, total, nil
}

// ListActiveModules returns every live, active module ordered for menu
// assembly (sort_order asc, id asc as the tie break).
func (db *Database) ListActiveModules(ctx context.Context) ([]Module, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT `+moduleColumns+` FROM tbl_module WHERE deleted_at IS NULL AND is_active = true ORDER BY sort_order ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("database: failed to list active modules: %w", err)
	}
	defer rows.Close()

	var modules []Module
	for rows.Next() {
		module, err := scanModule(rows)
		if err != nil {
			return nil, fmt.Errorf("database: failed to scan module: %w", err)
		}
		modules = append(modules, module)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("database: failed to iterate modules: %w", err)
	}
	return modules, nil
}

type CreateModuleParams struct {
	ParentID    util.Optional[int64]
	Name        string
	Slug        string
	Description string
	Icon        string
	Route       string
	Order       int
	IsActive    bool
	CreatedBy   util.Optional[int64]
}

func (db *Database) CreateModule(ctx context.Context, params CreateModuleParams) (Module, error) {
	now := time.Now().UTC()
	module := Module{
		ParentID:    params.ParentID,
		Name:        params.Name,
		Slug:        params.Slug,
		Description: params.Description,
		Icon:        params.Icon,
		Route:       params.Route,
		Order:       params.Order,
		IsActive:    params.IsActive,
		CreatedBy:   params.CreatedBy,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err := db.Pool.QueryRow(ctx, `INSERT INTO tbl_module (parent_id, name, slug, description, icon, route, sort_order, is_active, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11) RETURNING id`,
		module.ParentID, module.Name, module.Slug, module.Description, module.Icon, module.Route,
		module.Order, module.IsActive, module.CreatedBy, module.CreatedAt, module.UpdatedAt).Scan(&module.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return module, ErrDuplicateSlug
		}
		return module, fmt.Errorf("database: failed to insert module (slug=%s): %w", module.Slug, err)
	}
	return module, nil
}

func (db *Database) GetModuleByID(ctx context.Context, id int64) (Module, error) {
	module, err := scanModule(db.Pool.QueryRow(ctx,
		`SELECT `+moduleColumns+` FROM tbl_module WHERE id = $1 AND deleted_at IS NULL`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return module, ErrModuleNotFound
		}
		return module, fmt.Errorf("database: failed to scan module: %w", err)
	}
	return module, nil
}

type UpdateModuleParams struct {
	ParentID    util.Optional[util.Optional[int64]] // outer: field present; inner: value or null
	Name        util.Optional[string]
	Slug        util.Optional[string]
	Description util.Optional[string]
	Icon        util.Optional[string]
	Route       util.Optional[string]
	Order       util.Optional[int]
	IsActive    util.Optional[bool]
	UpdatedBy   util.Optional[int64]
}

func (db *Database) UpdateModule(ctx context.Context, id int64, params UpdateModuleParams) (Module, error) {
	if params.ParentID.IsSet && params.ParentID.Val.IsSet {
		if err := db.checkModuleCycle(ctx, id, params.ParentID.Val.Val); err != nil {
			return Module{}, err
		}
	}

	var query strings.Builder
	query.WriteString(`UPDATE tbl_module SET `)
	var args []any
	argNum := 1

	set := func(col string, val any) {
		query.WriteString(fmt.Sprintf("%s = $%d, ", col, argNum))
		args = append(args, val)
		argNum++
	}
	if params.ParentID.IsSet {
		set("parent_id", params.ParentID.Val)
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
	if params.Icon.IsSet {
		set("icon", params.Icon.Val)
	}
	if params.Route.IsSet {
		set("route", params.Route.Val)
	}
	if params.Order.IsSet {
		set("sort_order", params.Order.Val)
	}
	if params.IsActive.IsSet {
		set("is_active", params.IsActive.Val)
	}
	query.WriteString(fmt.Sprintf("updated_by = $%d, updated_at = $%d WHERE id = $%d AND deleted_at IS NULL RETURNING %s",
		argNum, argNum+1, argNum+2, moduleColumns))
	args = append(args, params.UpdatedBy, time.Now().UTC(), id)

	module, err := scanModule(db.Pool.QueryRow(ctx, query.String(), args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return module, ErrModuleNotFound
		}
		if isUniqueViolation(err) {
			return module, ErrDuplicateSlug
		}
		return module, fmt.Errorf("database: failed to update module (id=%d): %w", id, err)
	}
	return module, nil
}

// checkModuleCycle walks the proposed parent chain upward and rejects the
// update when it would loop back to the module being changed. The walk
// tolerates dangling parents: a missing parent terminates the chain.
func (db *Database) checkModuleCycle(ctx context.Context, moduleID, newParentID int64) error {
	if moduleID == newParentID {
		return ErrModuleCycle
	}

	visited := map[int64]struct{}{moduleID: {}}
	current := newParentID
	for {
		if _, seen := visited[current]; seen {
			return ErrModuleCycle
		}
		visited[current] = struct{}{}

		var parent util.Optional[int64]
		err := db.Pool.QueryRow(ctx, `SELECT parent_id FROM tbl_module WHERE id = $1 AND deleted_at IS NULL`, current).Scan(&parent)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil
			}
			return fmt.Errorf("database: failed to walk module parents (id=%d): %w", current, err)
		}
		if !parent.IsSet {
			return nil
		}
		current = parent.Val
	}
}

// UpdateModuleOrder batch-updates sort positions in one transaction.
func (db *Database) UpdateModuleOrder(ctx context.Context, orders map[int64]int) error {
	return db.withTx(ctx, func(tx pgx.Tx) error {
		for id, order := range orders {
			if _, err := tx.Exec(ctx, `UPDATE tbl_module SET sort_order = $1, updated_at = $2 WHERE id = $3 AND deleted_at IS NULL`,
				order, time.Now().UTC(), id); err != nil {
				return fmt.Errorf("database: failed to update module order (id=%d): %w", id, err)
			}
		}
		return nil
	})
}

// SoftDeleteModule refuses to delete a module that still owns live
// permissions or live child modules.
func (db *Database) SoftDeleteModule(ctx context.Context, id int64, deletedBy util.Optional[int64]) error {
	var dependents int
	err := db.Pool.QueryRow(ctx, `SELECT
		(SELECT COUNT(*) FROM tbl_permission WHERE module_id = $1 AND deleted_at IS NULL) +
		(SELECT COUNT(*) FROM tbl_module WHERE parent_id = $1 AND deleted_at IS NULL)`, id).Scan(&dependents)
	if err != nil {
		return fmt.Errorf("database: failed to count module dependents (id=%d): %w", id, err)
	}
	if dependents > 0 {
		return ErrHasDependents
	}

	tag, err := db.Pool.Exec(ctx, `UPDATE tbl_module SET deleted_at = $1, deleted_by = $2 WHERE id = $3 AND deleted_at IS NULL`,
		time.Now().UTC(), deletedBy, id)
	if err != nil {
		return fmt.Errorf("database: failed to soft delete module (id=%d): %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrModuleNotFound
	}
	return nil
}

func (db *Database) RestoreModule(ctx context.Context, id int64) (Module, error) {
	existing, err := scanModule(db.Pool.QueryRow(ctx,
		`SELECT `+moduleColumns+` FROM tbl_module WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return existing, ErrModuleNotFound
		}
		return existing, fmt.Errorf("database: failed to scan module: %w", err)
	}
	if !existing.DeletedAt.IsSet {
		return existing, ErrNotDeleted
	}

	module, err := scanModule(db.Pool.QueryRow(ctx,
		`UPDATE tbl_module SET deleted_at = NULL, deleted_by = NULL, updated_at = $1 WHERE id = $2 RETURNING `+moduleColumns,
		time.Now().UTC(), id))
	if err != nil {
		return module, fmt.Errorf("database: failed to restore module (id=%d): %w", id, err)
	}
	return module, nil
}
