package database

import (
	"context"
	"os"
	"testing"

	"authkit/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestDB connects to the database named by TEST_DATABASE_URL and wipes
// it. The schema must be migrated beforehand. Skipped in -short mode or when
// no test database is configured.
func setupTestDB(t *testing.T) *Database {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	db := NewDatabase()
	ctx := context.Background()
	require.NoError(t, db.Connect(ctx, dsn))
	t.Cleanup(db.Close)
	require.NoError(t, db.Ping(ctx))

	_, err := db.Pool.Exec(ctx, `TRUNCATE user_role, role_permission, user_branch, user_department,
		tbl_person, tbl_permission, tbl_module, tbl_role, tbl_role_category,
		tbl_branch, tbl_department, tbl_user RESTART IDENTITY CASCADE`)
	require.NoError(t, err)
	return &db
}

func TestSoftDeleteRoleGuardsAssignments_Integration(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	user, err := db.CreateUser(ctx, CreateUserParams{
		Name: "Ada", Email: "ada@example.com", PasswordHash: "x", IsActive: true,
	})
	require.NoError(t, err)

	role, err := db.CreateRole(ctx, CreateRoleParams{
		Name: "Editor", Slug: "editor", IsActive: true,
	})
	require.NoError(t, err)

	require.NoError(t, db.AssignRole(ctx, user.ID, role.ID))

	// A role held by a live user cannot be deleted.
	err = db.SoftDeleteRole(ctx, role.ID, util.None[int64]())
	assert.ErrorIs(t, err, ErrHasDependents)

	// Once the holder is gone the deletion goes through.
	require.NoError(t, db.SoftDeleteUser(ctx, user.ID, util.None[int64]()))
	require.NoError(t, db.SoftDeleteRole(ctx, role.ID, util.None[int64]()))

	restored, err := db.RestoreRole(ctx, role.ID)
	require.NoError(t, err)
	assert.False(t, restored.DeletedAt.IsSet)
}

func TestRestoreUserRequiresDeleted_Integration(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	user, err := db.CreateUser(ctx, CreateUserParams{
		Name: "Ada", Email: "ada@example.com", PasswordHash: "x", IsActive: true,
	})
	require.NoError(t, err)

	_, err = db.RestoreUser(ctx, user.ID)
	assert.ErrorIs(t, err, ErrNotDeleted)

	require.NoError(t, db.SoftDeleteUser(ctx, user.ID, util.Some(int64(99))))

	// Deleted users drop out of default lookups but stay reachable with
	// IncludeDeleted.
	_, err = db.GetUser(ctx, GetUserParams{ID: util.Some(user.ID)})
	assert.ErrorIs(t, err, ErrUserNotFound)
	hidden, err := db.GetUser(ctx, GetUserParams{ID: util.Some(user.ID), IncludeDeleted: true})
	require.NoError(t, err)
	assert.True(t, hidden.DeletedAt.IsSet)
	assert.Equal(t, int64(99), hidden.DeletedBy.Val)

	restored, err := db.RestoreUser(ctx, user.ID)
	require.NoError(t, err)
	assert.False(t, restored.DeletedAt.IsSet)
	assert.False(t, restored.DeletedBy.IsSet)
}

func TestDuplicateEmailRejected_Integration(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	_, err := db.CreateUser(ctx, CreateUserParams{
		Name: "Ada", Email: "ada@example.com", PasswordHash: "x", IsActive: true,
	})
	require.NoError(t, err)

	_, err = db.CreateUser(ctx, CreateUserParams{
		Name: "Imposter", Email: "ada@example.com", PasswordHash: "x", IsActive: true,
	})
	assert.ErrorIs(t, err, ErrDuplicateSlug)
}

func TestListUserPermissionsDeduplicates_Integration(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	user, err := db.CreateUser(ctx, CreateUserParams{
		Name: "Ada", Email: "ada@example.com", PasswordHash: "x", IsActive: true,
	})
	require.NoError(t, err)

	module, err := db.CreateModule(ctx, CreateModuleParams{
		Name: "Users", Slug: "users", Order: 1, IsActive: true,
	})
	require.NoError(t, err)

	view, err := db.CreatePermission(ctx, CreatePermissionParams{
		ModuleID: module.ID, Name: "View users", Slug: "users-view", IsActive: true,
	})
	require.NoError(t, err)
	edit, err := db.CreatePermission(ctx, CreatePermissionParams{
		ModuleID: module.ID, Name: "Edit users", Slug: "users-edit", IsActive: true,
	})
	require.NoError(t, err)

	// Both roles grant users-view; the union must carry it once.
	viewer, err := db.CreateRole(ctx, CreateRoleParams{Name: "Viewer", Slug: "viewer", IsActive: true})
	require.NoError(t, err)
	editor, err := db.CreateRole(ctx, CreateRoleParams{Name: "Editor", Slug: "editor", IsActive: true})
	require.NoError(t, err)
	require.NoError(t, db.ReplaceRolePermissions(ctx, viewer.ID, []int64{view.ID}))
	require.NoError(t, db.ReplaceRolePermissions(ctx, editor.ID, []int64{view.ID, edit.ID}))

	require.NoError(t, db.AssignRole(ctx, user.ID, viewer.ID))
	require.NoError(t, db.AssignRole(ctx, user.ID, editor.ID))

	permissions, err := db.ListUserPermissions(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, permissions, 2)
	assert.Equal(t, "users-edit", permissions[0].Slug)
	assert.Equal(t, "users-view", permissions[1].Slug)
}

func TestBulkAssignRolesProduct_Integration(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	ada, err := db.CreateUser(ctx, CreateUserParams{
		Name: "Ada", Email: "ada@example.com", PasswordHash: "x", IsActive: true,
	})
	require.NoError(t, err)
	grace, err := db.CreateUser(ctx, CreateUserParams{
		Name: "Grace", Email: "grace@example.com", PasswordHash: "x", IsActive: true,
	})
	require.NoError(t, err)

	viewer, err := db.CreateRole(ctx, CreateRoleParams{Name: "Viewer", Slug: "viewer", IsActive: true})
	require.NoError(t, err)
	editor, err := db.CreateRole(ctx, CreateRoleParams{Name: "Editor", Slug: "editor", IsActive: true})
	require.NoError(t, err)

	require.NoError(t, db.AssignRole(ctx, grace.ID, editor.ID))

	assigned, skipped, err := db.BulkAssignRoles(ctx,
		[]int64{ada.ID, grace.ID}, []int64{viewer.ID, editor.ID})
	require.NoError(t, err)
	assert.Equal(t, 3, assigned)
	assert.Equal(t, 1, skipped)

	removed, skipped, err := db.BulkRemoveRoles(ctx,
		[]int64{ada.ID, grace.ID}, []int64{viewer.ID, editor.ID})
	require.NoError(t, err)
	assert.Equal(t, 4, removed)
	assert.Equal(t, 0, skipped)
}
