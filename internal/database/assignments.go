package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"authkit/internal/util"

	"github.com/jackc/pgx/v5"
)

// AssignRole attaches a role to a user. Attaching an existing pair returns
// ErrDuplicateAssignment so callers can report the conflict or ignore it.
func (db *Database) AssignRole(ctx context.Context, userID, roleID int64) error {
	tag, err := db.Pool.Exec(ctx,
		`INSERT INTO user_role (user_id, role_id, created_at) VALUES ($1, $2, $3) ON CONFLICT DO NOTHING`,
		userID, roleID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("database: failed to assign role (user=%d role=%d): %w", userID, roleID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrDuplicateAssignment
	}
	return nil
}

func (db *Database) RemoveRole(ctx context.Context, userID, roleID int64) error {
	tag, err := db.Pool.Exec(ctx, `DELETE FROM user_role WHERE user_id = $1 AND role_id = $2`, userID, roleID)
	if err != nil {
		return fmt.Errorf("database: failed to remove role (user=%d role=%d): %w", userID, roleID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAssignmentNotFound
	}
	return nil
}

// ReplaceUserRoles swaps the user's full role set in one transaction:
// removals first, then inserts, so concurrent readers see either the old
// set or the new one.
func (db *Database) ReplaceUserRoles(ctx context.Context, userID int64, toAdd, toRemove []int64) error {
	return db.withTx(ctx, func(tx pgx.Tx) error {
		now := time.Now().UTC()
		for _, roleID := range toRemove {
			if _, err := tx.Exec(ctx, `DELETE FROM user_role WHERE user_id = $1 AND role_id = $2`, userID, roleID); err != nil {
				return fmt.Errorf("database: failed to remove role (user=%d role=%d): %w", userID, roleID, err)
			}
		}
		for _, roleID := range toAdd {
			if _, err := tx.Exec(ctx, `INSERT INTO user_role (user_id, role_id, created_at) VALUES ($1, $2, $3) ON CONFLICT DO NOTHING`,
				userID, roleID, now); err != nil {
				return fmt.Errorf("database: failed to assign role (user=%d role=%d): %w", userID, roleID, err)
			}
		}
		return nil
	})
}

// BulkAssignRoles attaches every given role to every given user in one
// transaction, counting pairs actually inserted versus skipped as already
// present.
func (db *Database) BulkAssignRoles(ctx context.Context, userIDs, roleIDs []int64) (assigned, skipped int, err error) {
	err = db.withTx(ctx, func(tx pgx.Tx) error {
		now := time.Now().UTC()
		for _, userID := range userIDs {
			for _, roleID := range roleIDs {
				tag, err := tx.Exec(ctx, `INSERT INTO user_role (user_id, role_id, created_at) VALUES ($1, $2, $3) ON CONFLICT DO NOTHING`,
					userID, roleID, now)
				if err != nil {
					return fmt.Errorf("database: failed to assign role (user=%d role=%d): %w", userID, roleID, err)
				}
				if tag.RowsAffected() == 0 {
					skipped++
				} else {
					assigned++
				}
			}
		}
		return nil
	})
	if err != nil {
		return 0, 0, err
	}
	return assigned, skipped, nil
}

// BulkRemoveRoles detaches every given role from every given user, counting
// removed pairs versus pairs that were never attached.
func (db *Database) BulkRemoveRoles(ctx context.Context, userIDs, roleIDs []int64) (removed, skipped int, err error) {
	err = db.withTx(ctx, func(tx pgx.Tx) error {
		for _, userID := range userIDs {
			for _, roleID := range roleIDs {
				tag, err := tx.Exec(ctx, `DELETE FROM user_role WHERE user_id = $1 AND role_id = $2`, userID, roleID)
				if err != nil {
					return fmt.Errorf("database: failed to remove role (user=%d role=%d): %w", userID, roleID, err)
				}
				if tag.RowsAffected() == 0 {
					skipped++
				} else {
					removed++
				}
			}
		}
		return nil
	})
	if err != nil {
		return 0, 0, err
	}
	return removed, skipped, nil
}

// ReplaceRolePermissions swaps the role's permission set atomically.
func (db *Database) ReplaceRolePermissions(ctx context.Context, roleID int64, permissionIDs []int64) error {
	return db.withTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM role_permission WHERE role_id = $1`, roleID); err != nil {
			return fmt.Errorf("database: failed to clear role permissions (role=%d): %w", roleID, err)
		}
		now := time.Now().UTC()
		for _, permissionID := range permissionIDs {
			if _, err := tx.Exec(ctx, `INSERT INTO role_permission (role_id, permission_id, created_at) VALUES ($1, $2, $3) ON CONFLICT DO NOTHING`,
				roleID, permissionID, now); err != nil {
				return fmt.Errorf("database: failed to attach permission (role=%d permission=%d): %w", roleID, permissionID, err)
			}
		}
		return nil
	})
}

// AttachRolePermission attaches a single permission to a role.
func (db *Database) AttachRolePermission(ctx context.Context, roleID, permissionID int64) error {
	tag, err := db.Pool.Exec(ctx,
		`INSERT INTO role_permission (role_id, permission_id, created_at) VALUES ($1, $2, $3) ON CONFLICT DO NOTHING`,
		roleID, permissionID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("database: failed to attach permission (role=%d permission=%d): %w", roleID, permissionID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrDuplicateAssignment
	}
	return nil
}

func (db *Database) DetachRolePermission(ctx context.Context, roleID, permissionID int64) error {
	tag, err := db.Pool.Exec(ctx, `DELETE FROM role_permission WHERE role_id = $1 AND permission_id = $2`, roleID, permissionID)
	if err != nil {
		return fmt.Errorf("database: failed to detach permission (role=%d permission=%d): %w", roleID, permissionID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAssignmentNotFound
	}
	return nil
}

// ListUserRoles returns the live, active roles attached to a user.
func (db *Database) ListUserRoles(ctx context.Context, userID int64) ([]Role, error) {
	rows, err := db.Pool.Query(ctx, `SELECT `+prefixColumns("r", roleColumns)+`
		FROM tbl_role r JOIN user_role ur ON ur.role_id = r.id
		WHERE ur.user_id = $1 AND r.deleted_at IS NULL ORDER BY r.name ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("database: failed to list user roles (user=%d): %w", userID, err)
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

// ListRolePermissions returns the live permissions attached to a role.
func (db *Database) ListRolePermissions(ctx context.Context, roleID int64) ([]Permission, error) {
	rows, err := db.Pool.Query(ctx, `SELECT `+prefixColumns("p", permissionColumns)+`
		FROM tbl_permission p JOIN role_permission rp ON rp.permission_id = p.id
		WHERE rp.role_id = $1 AND p.deleted_at IS NULL ORDER BY p.name ASC`, roleID)
	if err != nil {
		return nil, fmt.Errorf("database: failed to list role permissions (role=%d): %w", roleID, err)
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

// ListUserPermissions resolves the union of permissions across all of the
// user's roles. DISTINCT collapses permissions granted by more than one role;
// the result is ordered by name for stable output.
func (db *Database) ListUserPermissions(ctx context.Context, userID int64) ([]Permission, error) {
	rows, err := db.Pool.Query(ctx, `SELECT DISTINCT `+prefixColumns("p", permissionColumns)+`
		FROM tbl_permission p
		JOIN role_permission rp ON rp.permission_id = p.id
		JOIN user_role ur ON ur.role_id = rp.role_id
		JOIN tbl_role r ON r.id = ur.role_id AND r.deleted_at IS NULL
		WHERE ur.user_id = $1 AND p.deleted_at IS NULL AND p.is_active = true
		ORDER BY p.name ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("database: failed to list user permissions (user=%d): %w", userID, err)
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

// ListUsersByRole returns live users holding a role.
func (db *Database) ListUsersByRole(ctx context.Context, roleID int64) ([]User, error) {
	rows, err := db.Pool.Query(ctx, `SELECT `+prefixColumns("u", userColumns)+`
		FROM tbl_user u JOIN user_role ur ON ur.user_id = u.id
		WHERE ur.role_id = $1 AND u.deleted_at IS NULL ORDER BY u.name ASC`, roleID)
	if err != nil {
		return nil, fmt.Errorf("database: failed to list users by role (role=%d): %w", roleID, err)
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("database: failed to scan user: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("database: failed to iterate users: %w", err)
	}
	return users, nil
}

// UserRoleLink is one row of the user-role assignment collection.
type UserRoleLink struct {
	UserID    int64
	UserName  string
	UserEmail string
	RoleID    int64
	RoleName  string
	RoleSlug  string
	CreatedAt time.Time
}

type ListUserRoleLinksParams struct {
	UserID    util.Optional[int64]
	RoleID    util.Optional[int64]
	Search    string
	SortOrder string
	Limit     int
	Offset    int
}

// ListUserRoleLinks pages through the raw assignment rows joined with both
// sides, for the admin assignment listing.
func (db *Database) ListUserRoleLinks(ctx context.Context, params ListUserRoleLinksParams) ([]UserRoleLink, int, error) {
	var where strings.Builder
	where.WriteString(` WHERE u.deleted_at IS NULL AND r.deleted_at IS NULL`)
	var args []any
	argNum := 1

	if params.UserID.IsSet {
		where.WriteString(fmt.Sprintf(" AND ur.user_id = $%d", argNum))
		args = append(args, params.UserID.Val)
		argNum++
	}
	if params.RoleID.IsSet {
		where.WriteString(fmt.Sprintf(" AND ur.role_id = $%d", argNum))
		args = append(args, params.RoleID.Val)
		argNum++
	}
	if params.Search != "" {
		where.WriteString(fmt.Sprintf(" AND (u.name ILIKE $%d OR u.email ILIKE $%d OR r.name ILIKE $%d)", argNum, argNum, argNum))
		args = append(args, "%"+params.Search+"%")
		argNum++
	}

	from := ` FROM user_role ur JOIN tbl_user u ON u.id = ur.user_id JOIN tbl_role r ON r.id = ur.role_id`

	var total int
	if err := db.Pool.QueryRow(ctx, `SELECT COUNT(*)`+from+where.String(), args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("database: failed to count user role links: %w", err)
	}

	dir := "ASC"
	if params.SortOrder == "desc" || params.SortOrder == "DESC" {
		dir = "DESC"
	}
	query := fmt.Sprintf(`SELECT ur.user_id, u.name, u.email, ur.role_id, r.name, r.slug, ur.created_at%s%s ORDER BY ur.created_at %s, ur.user_id ASC LIMIT $%d OFFSET $%d`,
		from, where.String(), dir, argNum, argNum+1)
	args = append(args, params.Limit, params.Offset)

	rows, err := db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("database: failed to list user role links: %w", err)
	}
	defer rows.Close()

	var links []UserRoleLink
	for rows.Next() {
		var link UserRoleLink
		if err := rows.Scan(&link.UserID, &link.UserName, &link.UserEmail, &link.RoleID, &link.RoleName, &link.RoleSlug, &link.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("database: failed to scan user role link: %w", err)
		}
		links = append(links, link)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("database: failed to iterate user role links: %w", err)
	}

	return links, total, nil
}

// RoleUserCount pairs a role with the number of live users holding it.
type RoleUserCount struct {
	RoleID   int64
	RoleName string
	RoleSlug string
	Users    int
}

// AssignmentStatistics summarizes the assignment graph for the admin
// statistics endpoint.
type AssignmentStatistics struct {
	TotalUsers        int
	TotalRoles        int
	TotalAssignments  int
	UsersWithoutRoles int
	PerRole           []RoleUserCount
}

func (db *Database) GetAssignmentStatistics(ctx context.Context) (AssignmentStatistics, error) {
	var stats AssignmentStatistics

	err := db.Pool.QueryRow(ctx, `SELECT
		(SELECT COUNT(*) FROM tbl_user WHERE deleted_at IS NULL),
		(SELECT COUNT(*) FROM tbl_role WHERE deleted_at IS NULL),
		(SELECT COUNT(*) FROM user_role ur
			JOIN tbl_user u ON u.id = ur.user_id AND u.deleted_at IS NULL
			JOIN tbl_role r ON r.id = ur.role_id AND r.deleted_at IS NULL),
		(SELECT COUNT(*) FROM tbl_user u WHERE u.deleted_at IS NULL
			AND NOT EXISTS (SELECT 1 FROM user_role ur JOIN tbl_role r ON r.id = ur.role_id AND r.deleted_at IS NULL WHERE ur.user_id = u.id))`).
		Scan(&stats.TotalUsers, &stats.TotalRoles, &stats.TotalAssignments, &stats.UsersWithoutRoles)
	if err != nil {
		return stats, fmt.Errorf("database: failed to load assignment statistics: %w", err)
	}

	rows, err := db.Pool.Query(ctx, `SELECT r.id, r.name, r.slug, COUNT(u.id)
		FROM tbl_role r
		LEFT JOIN user_role ur ON ur.role_id = r.id
		LEFT JOIN tbl_user u ON u.id = ur.user_id AND u.deleted_at IS NULL
		WHERE r.deleted_at IS NULL
		GROUP BY r.id, r.name, r.slug
		ORDER BY r.name ASC`)
	if err != nil {
		return stats, fmt.Errorf("database: failed to load per-role statistics: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var rc RoleUserCount
		if err := rows.Scan(&rc.RoleID, &rc.RoleName, &rc.RoleSlug, &rc.Users); err != nil {
			return stats, fmt.Errorf("database: failed to scan per-role statistics: %w", err)
		}
		stats.PerRole = append(stats.PerRole, rc)
	}
	if err := rows.Err(); err != nil {
		return stats, fmt.Errorf("database: failed to iterate per-role statistics: %w", err)
	}

	return stats, nil
}
