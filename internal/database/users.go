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

type User struct {
	ID           int64
	Name         string
	Email        string
	PasswordHash string
	IsActive     bool
	CreatedBy    util.Optional[int64]
	UpdatedBy    util.Optional[int64]
	DeletedBy    util.Optional[int64]
	CreatedAt    time.Time
	UpdatedAt    time.Time
	DeletedAt    util.Optional[time.Time]
}

const userColumns = `id, name, email, password_hash, is_active, created_by, updated_by, deleted_by, created_at, updated_at, deleted_at`

func scanUser(row pgx.Row) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.IsActive,
		&u.CreatedBy, &u.UpdatedBy, &u.DeletedBy, &u.CreatedAt, &u.UpdatedAt, &u.DeletedAt)
	return u, err
}

var userSortColumns = map[string]string{
	"name":       "name",
	"email":      "email",
	"is_active":  "is_active",
	"created_at": "created_at",
}

type ListUsersParams struct {
	Search    string
	IsActive  util.Optional[bool]
	SortBy    string
	SortOrder string
	Limit     int
	Offset    int
}

func (db *Database) ListUsers(ctx context.Context, params ListUsersParams) ([]User, int, error) {
	var where strings.Builder
	where.WriteString(` WHERE deleted_at IS NULL`)
	var args []any
	argNum := 1

	if params.Search != "" {
		where.WriteString(fmt.Sprintf(" AND (name ILIKE $%d OR email ILIKE $%d)", argNum, argNum))
		args = append(args, "%"+params.Search+"%")
		argNum++
	}
	if params.IsActive.IsSet {
		where.WriteString(fmt.Sprintf(" AND is_active = $%d", argNum))
		args = append(args, params.IsActive.Val)
		argNum++
	}

	var total int
	if err := db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM tbl_user`+where.String(), args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("database: failed to count users: %w", err)
	}

	order := sortClause(userSortColumns, params.SortBy, params.SortOrder, "name")
	query := fmt.Sprintf(`SELECT %s FROM tbl_user%s ORDER BY %s LIMIT $%d OFFSET $%d`,
		userColumns, where.String(), order, argNum, argNum+1)
	args = append(args, params.Limit, params.Offset)

	rows, err := db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("database: failed to list users: %w", err)
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("database: failed to scan user: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("database: failed to iterate users: %w", err)
	}

	return users, total, nil
}

type CreateUserParams struct {
	Name         string
	Email        string
	PasswordHash string
	IsActive     bool
	CreatedBy    util.Optional[int64]
}

func (db *Database) CreateUser(ctx context.Context, params CreateUserParams) (User, error) {
	return db.createUser(ctx, db.Pool, params)
}

func (db *Database) createUser(ctx context.Context, q rowQuerier, params CreateUserParams) (User, error) {
	now := time.Now().UTC()
	user := User{
		Name:         params.Name,
		Email:        params.Email,
		PasswordHash: params.PasswordHash,
		IsActive:     params.IsActive,
		CreatedBy:    params.CreatedBy,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err := q.QueryRow(ctx, `INSERT INTO tbl_user (name, email, password_hash, is_active, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
		user.Name, user.Email, user.PasswordHash, user.IsActive, user.CreatedBy, user.CreatedAt, user.UpdatedAt).Scan(&user.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return user, ErrDuplicateSlug
		}
		return user, fmt.Errorf("database: failed to insert user (email=%s): %w", user.Email, err)
	}
	return user, nil
}

type GetUserParams struct {
	ID             util.Optional[int64]
	Email          util.Optional[string]
	IncludeDeleted bool
}

func (db *Database) GetUser(ctx context.Context, params GetUserParams) (User, error) {
	var query strings.Builder
	query.WriteString(`SELECT ` + userColumns + ` FROM tbl_user WHERE 1=1`)
	var args []any
	argNum := 1

	if params.ID.IsSet {
		query.WriteString(fmt.Sprintf(" AND id = $%d", argNum))
		args = append(args, params.ID.Val)
		argNum++
	}
	if params.Email.IsSet {
		query.WriteString(fmt.Sprintf(" AND email = $%d", argNum))
		args = append(args, params.Email.Val)
		argNum++
	}
	if !params.IncludeDeleted {
		query.WriteString(" AND deleted_at IS NULL")
	}

	user, err := scanUser(db.Pool.QueryRow(ctx, query.String(), args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user, ErrUserNotFound
		}
		return user, fmt.Errorf("database: failed to scan user: %w", err)
	}
	return user, nil
}

func (db *Database) GetUserByID(ctx context.Context, id int64) (User, error) {
	return db.GetUser(ctx, GetUserParams{ID: util.Some(id)})
}

func (db *Database) GetUserByEmail(ctx context.Context, email string) (User, error) {
	return db.GetUser(ctx, GetUserParams{Email: util.Some(email)})
}

type UpdateUserParams struct {
	Name         util.Optional[string]
	Email        util.Optional[string]
	PasswordHash util.Optional[string]
	IsActive     util.Optional[bool]
	UpdatedBy    util.Optional[int64]
}

func (db *Database) UpdateUser(ctx context.Context, id int64, params UpdateUserParams) (User, error) {
	var query strings.Builder
	query.WriteString(`UPDATE tbl_user SET `)
	var args []any
	argNum := 1

	if params.Name.IsSet {
		query.WriteString(fmt.Sprintf("name = $%d, ", argNum))
		args = append(args, params.Name.Val)
		argNum++
	}
	if params.Email.IsSet {
		query.WriteString(fmt.Sprintf("email = $%d, ", argNum))
		args = append(args, params.Email.Val)
		argNum++
	}
	if params.PasswordHash.IsSet {
		query.WriteString(fmt.Sprintf("password_hash = $%d, ", argNum))
		args = append(args, params.PasswordHash.Val)
		argNum++
	}
	if params.IsActive.IsSet {
		query.WriteString(fmt.Sprintf("is_active = $%d, ", argNum))
		args = append(args, params.IsActive.Val)
		argNum++
	}
	query.WriteString(fmt.Sprintf("updated_by = $%d, updated_at = $%d WHERE id = $%d AND deleted_at IS NULL RETURNING %s",
		argNum, argNum+1, argNum+2, userColumns))
	args = append(args, params.UpdatedBy, time.Now().UTC(), id)

	user, err := scanUser(db.Pool.QueryRow(ctx, query.String(), args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user, ErrUserNotFound
		}
		if isUniqueViolation(err) {
			return user, ErrDuplicateSlug
		}
		return user, fmt.Errorf("database: failed to update user (id=%d): %w", id, err)
	}
	return user, nil
}

// SoftDeleteUser marks the user deleted, recording the acting user.
func (db *Database) SoftDeleteUser(ctx context.Context, id int64, deletedBy util.Optional[int64]) error {
	tag, err := db.Pool.Exec(ctx, `UPDATE tbl_user SET deleted_at = $1, deleted_by = $2 WHERE id = $3 AND deleted_at IS NULL`,
		time.Now().UTC(), deletedBy, id)
	if err != nil {
		return fmt.Errorf("database: failed to soft delete user (id=%d): %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// RestoreUser clears the soft-delete marker. Restoring a live user fails
// with ErrNotDeleted.
func (db *Database) RestoreUser(ctx context.Context, id int64) (User, error) {
	user, err := db.GetUser(ctx, GetUserParams{ID: util.Some(id), IncludeDeleted: true})
	if err != nil {
		return user, err
	}
	if !user.DeletedAt.IsSet {
		return user, ErrNotDeleted
	}

	user, err = scanUser(db.Pool.QueryRow(ctx,
		`UPDATE tbl_user SET deleted_at = NULL, deleted_by = NULL, updated_at = $1 WHERE id = $2 RETURNING `+userColumns,
		time.Now().UTC(), id))
	if err != nil {
		return user, fmt.Errorf("database: failed to restore user (id=%d): %w", id, err)
	}
	return user, nil
}

// RenameUserEmail rewrites a user's email without touching anything else.
// Used by forced registration to free up an address held by a soft-deleted
// account.
func (db *Database) RenameUserEmail(ctx context.Context, id int64, email string) error {
	tag, err := db.Pool.Exec(ctx, `UPDATE tbl_user SET email = $1, updated_at = $2 WHERE id = $3`,
		email, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("database: failed to rename user email (id=%d): %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// CreateAccountParams is the transactional registration payload: user record,
// optional person profile, and the role ids to attach. Everything commits or
// nothing does.
type CreateAccountParams struct {
	User    CreateUserParams
	Person  util.Optional[CreatePersonParams]
	RoleIDs []int64
}

func (db *Database) CreateAccount(ctx context.Context, params CreateAccountParams) (User, util.Optional[Person], error) {
	var user User
	person := util.None[Person]()

	err := db.withTx(ctx, func(tx pgx.Tx) error {
		var err error
		user, err = db.createUser(ctx, tx, params.User)
		if err != nil {
			return err
		}

		if params.Person.IsSet {
			pp := params.Person.Val
			pp.UserID = user.ID
			p, err := db.createPerson(ctx, tx, pp)
			if err != nil {
				return err
			}
			person = util.Some(p)
		}

		now := time.Now().UTC()
		for _, roleID := range params.RoleIDs {
			if _, err := tx.Exec(ctx, `INSERT INTO user_role (user_id, role_id, created_at) VALUES ($1, $2, $3) ON CONFLICT DO NOTHING`,
				user.ID, roleID, now); err != nil {
				return fmt.Errorf("database: failed to attach role (user=%d role=%d): %w", user.ID, roleID, err)
			}
		}
		return nil
	})
	if err != nil {
		return user, person, err
	}
	return user, person, nil
}
