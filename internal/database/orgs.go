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

type Branch struct {
	ID        int64
	Name      string
	Slug      string
	Address   string
	Phone     string
	IsActive  bool
	CreatedBy util.Optional[int64]
	UpdatedBy util.Optional[int64]
	DeletedBy util.Optional[int64]
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt util.Optional[time.Time]
}

type Department struct {
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

const branchColumns = `id, name, slug, address, phone, is_active, created_by, updated_by, deleted_by, created_at, updated_at, deleted_at`
const departmentColumns = `id, name, slug, description, is_active, created_by, updated_by, deleted_by, created_at, updated_at, deleted_at`

func scanBranch(row pgx.Row) (Branch, error) {
	var b Branch
	err := row.Scan(&b.ID, &b.Name, &b.Slug, &b.Address, &b.Phone, &b.IsActive,
		&b.CreatedBy, &b.UpdatedBy, &b.DeletedBy, &b.CreatedAt, &b.UpdatedAt, &b.DeletedAt)
	return b, err
}

func scanDepartment(row pgx.Row) (Department, error) {
	var d Department
	err := row.Scan(&d.ID, &d.Name, &d.Slug, &d.Description, &d.IsActive,
		&d.CreatedBy, &d.UpdatedBy, &d.DeletedBy, &d.CreatedAt, &d.UpdatedAt, &d.DeletedAt)
	return d, err
}

var orgSortColumns = map[string]string{
	"name":       "name",
	"slug":       "slug",
	"created_at": "created_at",
}

type ListBranchesParams struct {
	Search    string
	IsActive  util.Optional[bool]
	SortBy    string
	SortOrder string
	Limit     int
	Offset    int
}

func (db *Database) ListBranches(ctx context.Context, params ListBranchesParams) ([]Branch, int, error) {
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
	if err := db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM tbl_branch`+where.String(), args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("database: failed to count branches: %w", err)
	}

	order := sortClause(orgSortColumns, params.SortBy, params.SortOrder, "name")
	query := fmt.Sprintf(`SELECT %s FROM tbl_branch%s ORDER BY %s LIMIT $%d OFFSET $%d`,
		branchColumns, where.String(), order, argNum, argNum+1)
	args = append(args, params.Limit, params.Offset)

	rows, err := db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("database: failed to list branches: %w", err)
	}
	defer rows.Close()

	var branches []Branch
	for rows.Next() {
		branch, err := scanBranch(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("database: failed to scan branch: %w", err)
		}
		branches = append(branches, branch)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("database: failed to iterate branches: %w", err)
	}

	return branches, total, nil
}

type CreateBranchParams struct {
	Name      string
	Slug      string
	Address   string
	Phone     string
	IsActive  bool
	CreatedBy util.Optional[int64]
}

func (db *Database) CreateBranch(ctx context.Context, params CreateBranchParams) (Branch, error) {
	now := time.Now().UTC()
	branch := Branch{
		Name:      params.Name,
		Slug:      params.Slug,
		Address:   params.Address,
		Phone:     params.Phone,
		IsActive:  params.IsActive,
		CreatedBy: params.CreatedBy,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := db.Pool.QueryRow(ctx, `INSERT INTO tbl_branch (name, slug, address, phone, is_active, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`,
		branch.Name, branch.Slug, branch.Address, branch.Phone, branch.IsActive,
		branch.CreatedBy, branch.CreatedAt, branch.UpdatedAt).Scan(&branch.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return branch, ErrDuplicateSlug
		}
		return branch, fmt.Errorf("database: failed to insert branch (slug=%s): %w", branch.Slug, err)
	}
	return branch, nil
}

func (db *Database) GetBranchByID(ctx context.Context, id int64) (Branch, error) {
	branch, err := scanBranch(db.Pool.QueryRow(ctx,
		`SELECT `+branchColumns+` FROM tbl_branch WHERE id = $1 AND deleted_at IS NULL`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return branch, ErrBranchNotFound
		}
		return branch, fmt.Errorf("database: failed to scan branch: %w", err)
	}
	return branch, nil
}

type UpdateBranchParams struct {
	Name      util.Optional[string]
	Slug      util.Optional[string]
	Address   util.Optional[string]
	Phone     util.Optional[string]
	IsActive  util.Optional[bool]
	UpdatedBy util.Optional[int64]
}

func (db *Database) UpdateBranch(ctx context.Context, id int64, params UpdateBranchParams) (Branch, error) {
	var query strings.Builder
	query.WriteString(`UPDATE tbl_branch SET `)
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
	if params.Address.IsSet {
		set("address", params.Address.Val)
	}
	if params.Phone.IsSet {
		set("phone", params.Phone.Val)
	}
	if params.IsActive.IsSet {
		set("is_active", params.IsActive.Val)
	}
	query.WriteString(fmt.Sprintf("updated_by = $%d, updated_at = $%d WHERE id = $%d AND deleted_at IS NULL RETURNING %s",
		argNum, argNum+1, argNum+2, branchColumns))
	args = append(args, params.UpdatedBy, time.Now().UTC(), id)

	branch, err := scanBranch(db.Pool.QueryRow(ctx, query.String(), args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return branch, ErrBranchNotFound
		}
		if isUniqueViolation(err) {
			return branch, ErrDuplicateSlug
		}
		return branch, fmt.Errorf("database: failed to update branch (id=%d): %w", id, err)
	}
	return branch, nil
}

// SoftDeleteBranch refuses to delete a branch with live members.
func (db *Database) SoftDeleteBranch(ctx context.Context, id int64, deletedBy util.Optional[int64]) error {
	var dependents int
	err := db.Pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM user_branch ub JOIN tbl_user u ON u.id = ub.user_id AND u.deleted_at IS NULL WHERE ub.branch_id = $1`,
		id).Scan(&dependents)
	if err != nil {
		return fmt.Errorf("database: failed to count branch dependents (id=%d): %w", id, err)
	}
	if dependents > 0 {
		return ErrHasDependents
	}

	tag, err := db.Pool.Exec(ctx, `UPDATE tbl_branch SET deleted_at = $1, deleted_by = $2 WHERE id = $3 AND deleted_at IS NULL`,
		time.Now().UTC(), deletedBy, id)
	if err != nil {
		return fmt.Errorf("database: failed to soft delete branch (id=%d): %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrBranchNotFound
	}
	return nil
}

func (db *Database) RestoreBranch(ctx context.Context, id int64) (Branch, error) {
	existing, err := scanBranch(db.Pool.QueryRow(ctx,
		`SELECT `+branchColumns+` FROM tbl_branch WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return existing, ErrBranchNotFound
		}
		return existing, fmt.Errorf("database: failed to scan branch: %w", err)
	}
	if !existing.DeletedAt.IsSet {
		return existing, ErrNotDeleted
	}

	branch, err := scanBranch(db.Pool.QueryRow(ctx,
		`UPDATE tbl_branch SET deleted_at = NULL, deleted_by = NULL, updated_at = $1 WHERE id = $2 RETURNING `+branchColumns,
		time.Now().UTC(), id))
	if err != nil {
		return branch, fmt.Errorf("database: failed to restore branch (id=%d): %w", id, err)
	}
	return branch, nil
}

type ListDepartmentsParams struct {
	Search    string
	IsActive  util.Optional[bool]
	SortBy    string
	SortOrder string
	Limit     int
	Offset    int
}

func (db *Database) ListDepartments(ctx context.Context, params ListDepartmentsParams) ([]Department, int, error) {
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
	if err := db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM tbl_department`+where.String(), args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("database: failed to count departments: %w", err)
	}

	order := sortClause(orgSortColumns, params.SortBy, params.SortOrder, "name")
	query := fmt.Sprintf(`SELECT %s FROM tbl_department%s ORDER BY %s LIMIT $%d OFFSET $%d`,
		departmentColumns, where.String(), order, argNum, argNum+1)
	args = append(args, params.Limit, params.Offset)

	rows, err := db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("database: failed to list departments: %w", err)
	}
	defer rows.Close()

	var departments []Department
	for rows.Next() {
		department, err := scanDepartment(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("database: failed to scan department: %w", err)
		}
		departments = append(departments, department)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("database: failed to iterate departments: %w", err)
	}

	return departments, total, nil
}

type CreateDepartmentParams struct {
	Name        string
	Slug        string
	Description string
	IsActive    bool
	CreatedBy   util.Optional[int64]
}

func (db *Database) CreateDepartment(ctx context.Context, params CreateDepartmentParams) (Department, error) {
	now := time.Now().UTC()
	department := Department{
		Name:        params.Name,
		Slug:        params.Slug,
		Description: params.Description,
		IsActive:    params.IsActive,
		CreatedBy:   params.CreatedBy,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err := db.Pool.QueryRow(ctx, `INSERT INTO tbl_department (name, slug, description, is_active, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
		department.Name, department.Slug, department.Description, department.IsActive,
		department.CreatedBy, department.CreatedAt, department.UpdatedAt).Scan(&department.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return department, ErrDuplicateSlug
		}
		return department, fmt.Errorf("database: failed to insert department (slug=%s): %w", department.Slug, err)
	}
	return department, nil
}

func (db *Database) GetDepartmentByID(ctx context.Context, id int64) (Department, error) {
	department, err := scanDepartment(db.Pool.QueryRow(ctx,
		`SELECT `+departmentColumns+` FROM tbl_department WHERE id = $1 AND deleted_at IS NULL`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return department, ErrDepartmentNotFound
		}
		return department, fmt.Errorf("database: failed to scan department: %w", err)
	}
	return department, nil
}

type UpdateDepartmentParams struct {
	Name        util.Optional[string]
	Slug        util.Optional[string]
	Description util.Optional[string]
	IsActive    util.Optional[bool]
	UpdatedBy   util.Optional[int64]
}

func (db *Database) UpdateDepartment(ctx context.Context, id int64, params UpdateDepartmentParams) (Department, error) {
	var query strings.Builder
	query.WriteString(`UPDATE tbl_department SET `)
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
		argNum, argNum+1, argNum+2, departmentColumns))
	args = append(args, params.UpdatedBy, time.Now().UTC(), id)

	department, err := scanDepartment(db.Pool.QueryRow(ctx, query.String(), args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return department, ErrDepartmentNotFound
		}
		if isUniqueViolation(err) {
			return department, ErrDuplicateSlug
		}
		return department, fmt.Errorf("database: failed to update department (id=%d): %w", id, err)
	}
	return department, nil
}

// SoftDeleteDepartment refuses to delete a department with live members.
func (db *Database) SoftDeleteDepartment(ctx context.Context, id int64, deletedBy util.Optional[int64]) error {
	var dependents int
	err := db.Pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM user_department ud JOIN tbl_user u ON u.id = ud.user_id AND u.deleted_at IS NULL WHERE ud.department_id = $1`,
		id).Scan(&dependents)
	if err != nil {
		return fmt.Errorf("database: failed to count department dependents (id=%d): %w", id, err)
	}
	if dependents > 0 {
		return ErrHasDependents
	}

	tag, err := db.Pool.Exec(ctx, `UPDATE tbl_department SET deleted_at = $1, deleted_by = $2 WHERE id = $3 AND deleted_at IS NULL`,
		time.Now().UTC(), deletedBy, id)
	if err != nil {
		return fmt.Errorf("database: failed to soft delete department (id=%d): %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrDepartmentNotFound
	}
	return nil
}

func (db *Database) RestoreDepartment(ctx context.Context, id int64) (Department, error) {
	existing, err := scanDepartment(db.Pool.QueryRow(ctx,
		`SELECT `+departmentColumns+` FROM tbl_department WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return existing, ErrDepartmentNotFound
		}
		return existing, fmt.Errorf("database: failed to scan department: %w", err)
	}
	if !existing.DeletedAt.IsSet {
		return existing, ErrNotDeleted
	}

	department, err := scanDepartment(db.Pool.QueryRow(ctx,
		`UPDATE tbl_department SET deleted_at = NULL, deleted_by = NULL, updated_at = $1 WHERE id = $2 RETURNING `+departmentColumns,
		time.Now().UTC(), id))
	if err != nil {
		return department, fmt.Errorf("database: failed to restore department (id=%d): %w", id, err)
	}
	return department, nil
}

// AttachUserBranch links a user to a branch; attaching twice is a conflict.
func (db *Database) AttachUserBranch(ctx context.Context, userID, branchID int64) error {
	tag, err := db.Pool.Exec(ctx,
		`INSERT INTO user_branch (user_id, branch_id, created_at) VALUES ($1, $2, $3) ON CONFLICT DO NOTHING`,
		userID, branchID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("database: failed to attach user branch (user=%d branch=%d): %w", userID, branchID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrDuplicateAssignment
	}
	return nil
}

func (db *Database) DetachUserBranch(ctx context.Context, userID, branchID int64) error {
	tag, err := db.Pool.Exec(ctx, `DELETE FROM user_branch WHERE user_id = $1 AND branch_id = $2`, userID, branchID)
	if err != nil {
		return fmt.Errorf("database: failed to detach user branch (user=%d branch=%d): %w", userID, branchID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAssignmentNotFound
	}
	return nil
}

func (db *Database) ListUserBranches(ctx context.Context, userID int64) ([]Branch, error) {
	rows, err := db.Pool.Query(ctx, `SELECT `+prefixColumns("b", branchColumns)+`
		FROM tbl_branch b JOIN user_branch ub ON ub.branch_id = b.id
		WHERE ub.user_id = $1 AND b.deleted_at IS NULL ORDER BY b.name ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("database: failed to list user branches (user=%d): %w", userID, err)
	}
	defer rows.Close()

	var branches []Branch
	for rows.Next() {
		branch, err := scanBranch(rows)
		if err != nil {
			return nil, fmt.Errorf("database: failed to scan branch: %w", err)
		}
		branches = append(branches, branch)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("database: failed to iterate branches: %w", err)
	}
	return branches, nil
}

// AttachUserDepartment links a user to a department; attaching twice is a conflict.
func (db *Database) AttachUserDepartment(ctx context.Context, userID, departmentID int64) error {
	tag, err := db.Pool.Exec(ctx,
		`INSERT INTO user_department (user_id, department_id, created_at) VALUES ($1, $2, $3) ON CONFLICT DO NOTHING`,
		userID, departmentID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("database: failed to attach user department (user=%d department=%d): %w", userID, departmentID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrDuplicateAssignment
	}
	return nil
}

func (db *Database) DetachUserDepartment(ctx context.Context, userID, departmentID int64) error {
	tag, err := db.Pool.Exec(ctx, `DELETE FROM user_department WHERE user_id = $1 AND department_id = $2`, userID, departmentID)
	if err != nil {
		return fmt.Errorf("database: failed to detach user department (user=%d department=%d): %w", userID, departmentID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAssignmentNotFound
	}
	return nil
}

func (db *Database) ListUserDepartments(ctx context.Context, userID int64) ([]Department, error) {
	rows, err := db.Pool.Query(ctx, `SELECT `+prefixColumns("d", departmentColumns)+`
		FROM tbl_department d JOIN user_department ud ON ud.department_id = d.id
		WHERE ud.user_id = $1 AND d.deleted_at IS NULL ORDER BY d.name ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("database: failed to list user departments (user=%d): %w", userID, err)
	}
	defer rows.Close()

	var departments []Department
	for rows.Next() {
		department, err := scanDepartment(rows)
		if err != nil {
			return nil, fmt.Errorf("database: failed to scan department: %w", err)
		}
		departments = append(departments, department)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("database: failed to iterate departments: %w", err)
	}
	return departments, nil
}
