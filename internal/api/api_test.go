package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"authkit/internal/config"
	"authkit/internal/database"
	"authkit/internal/rbac"
	"authkit/internal/service"
	"authkit/internal/token"
	"authkit/internal/util"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRBACStore struct {
	roles       []database.Role
	permissions []database.Permission
	modules     []database.Module
}

func (f *fakeRBACStore) ListUserRoles(context.Context, int64) ([]database.Role, error) {
	return f.roles, nil
}

func (f *fakeRBACStore) ListUserPermissions(context.Context, int64) ([]database.Permission, error) {
	return f.permissions, nil
}

func (f *fakeRBACStore) ListActiveModules(context.Context) ([]database.Module, error) {
	return f.modules, nil
}

func (f *fakeRBACStore) ListActivePermissions(context.Context) ([]database.Permission, error) {
	return f.permissions, nil
}

type stubAssignmentStore struct {
	bulkUserIDs []int64
	bulkRoleIDs []int64
}

func (s *stubAssignmentStore) GetUserByID(_ context.Context, id int64) (database.User, error) {
	return database.User{ID: id, IsActive: true}, nil
}

func (s *stubAssignmentStore) GetRoleByID(_ context.Context, id int64) (database.Role, error) {
	return database.Role{ID: id, IsActive: true}, nil
}

func (s *stubAssignmentStore) AssignRole(context.Context, int64, int64) error { return nil }

func (s *stubAssignmentStore) RemoveRole(context.Context, int64, int64) error { return nil }

func (s *stubAssignmentStore) ReplaceUserRoles(context.Context, int64, []int64, []int64) error {
	return nil
}

func (s *stubAssignmentStore) BulkAssignRoles(_ context.Context, userIDs, roleIDs []int64) (int, int, error) {
	s.bulkUserIDs, s.bulkRoleIDs = userIDs, roleIDs
	return len(userIDs)*len(roleIDs) - 1, 1, nil
}

func (s *stubAssignmentStore) BulkRemoveRoles(_ context.Context, userIDs, roleIDs []int64) (int, int, error) {
	return 0, len(userIDs) * len(roleIDs), nil
}

func (s *stubAssignmentStore) ReplaceRolePermissions(context.Context, int64, []int64) error {
	return nil
}

func (s *stubAssignmentStore) ListUserRoles(context.Context, int64) ([]database.Role, error) {
	return nil, nil
}

func (s *stubAssignmentStore) ListUsersByRole(context.Context, int64) ([]database.User, error) {
	return nil, nil
}

func (s *stubAssignmentStore) ListUserRoleLinks(context.Context, database.ListUserRoleLinksParams) ([]database.UserRoleLink, int, error) {
	return nil, 0, nil
}

func (s *stubAssignmentStore) GetAssignmentStatistics(context.Context) (database.AssignmentStatistics, error) {
	return database.AssignmentStatistics{}, nil
}

type stubAccountStore struct {
	deleted database.User
}

func (s *stubAccountStore) GetUser(_ context.Context, params database.GetUserParams) (database.User, error) {
	if params.Email.IsSet && params.Email.Val == s.deleted.Email && params.IncludeDeleted {
		return s.deleted, nil
	}
	return database.User{}, database.ErrUserNotFound
}

func (s *stubAccountStore) CreateAccount(_ context.Context, params database.CreateAccountParams) (database.User, util.Optional[database.Person], error) {
	return database.User{ID: 1, Name: params.User.Name, Email: params.User.Email, IsActive: true},
		util.None[database.Person](), nil
}

func (s *stubAccountStore) RestoreUser(_ context.Context, id int64) (database.User, error) {
	return database.User{ID: id}, nil
}

func (s *stubAccountStore) SoftDeleteUser(context.Context, int64, util.Optional[int64]) error {
	return nil
}

func (s *stubAccountStore) RenameUserEmail(context.Context, int64, string) error { return nil }

func (s *stubAccountStore) GetRoleBySlug(context.Context, string) (database.Role, error) {
	return database.Role{}, database.ErrRoleNotFound
}

func (s *stubAccountStore) GetRoleByID(context.Context, int64) (database.Role, error) {
	return database.Role{}, database.ErrRoleNotFound
}

func (s *stubAccountStore) GetPersonByUserID(context.Context, int64) (database.Person, error) {
	return database.Person{}, database.ErrPersonNotFound
}

func (s *stubAccountStore) ListUserRoles(context.Context, int64) ([]database.Role, error) {
	return nil, nil
}

func newTestApp(t *testing.T, store *fakeRBACStore, accountStore service.AccountStore, assignStore service.AssignmentStore) (*fiber.App, string) {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	tokens := token.NewService("test-secret", time.Hour, token.NewMemoryDenyList())
	resolver := rbac.NewResolver(store, nil)
	accounts := service.NewAccountService(accountStore, tokens, config.AuthConfig{
		JWTSecret: "test-secret",
		TokenTTL:  time.Hour,
	}, logger)
	assignments := service.NewAssignmentService(assignStore, resolver, logger)

	h := NewHandler(&database.Database{}, resolver, accounts, assignments, tokens, logger)
	app := fiber.New()
	h.RegisterRoutes(app, config.ServerConfig{RoutePrefix: "/api/v1"})

	signed, err := tokens.Issue(42, "ada@example.com")
	require.NoError(t, err)
	return app, signed
}

func doJSON(t *testing.T, app *fiber.App, method, path, bearer string, body any) (*http.Response, map[string]any) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", fiber.MIMEApplicationJSON)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var parsed map[string]any
	if json.Valid(raw) {
		require.NoError(t, json.Unmarshal(raw, &parsed))
	} else {
		parsed = map[string]any{"raw": string(raw)}
	}
	return resp, parsed
}

func TestMenuPermissionChecks(t *testing.T) {
	store := &fakeRBACStore{
		permissions: []database.Permission{
			{ID: 1, ModuleID: 10, Slug: "users-view", IsActive: true},
			{ID: 2, ModuleID: 20, Slug: "reports-view", IsActive: true},
		},
		modules: []database.Module{
			{ID: 10, Name: "Users", Slug: "users", Order: 1, IsActive: true},
			{ID: 20, Name: "Reports", Slug: "reports", Order: 2, IsActive: true},
			{ID: 30, Name: "Billing", Slug: "billing", Order: 3, IsActive: true},
		},
	}
	app, bearer := newTestApp(t, store, &stubAccountStore{}, &stubAssignmentStore{})

	resp, body := doJSON(t, app, fiber.MethodPost, "/api/v1/menu/has-permission", bearer,
		fiber.Map{"permission": "users-view"})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["has_permission"])

	resp, body = doJSON(t, app, fiber.MethodPost, "/api/v1/menu/has-permission", bearer,
		fiber.Map{"permission": "billing-view"})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, false, body["has_permission"])
}

func TestMenuHasAnyPermissionReportsMatched(t *testing.T) {
	store := &fakeRBACStore{
		permissions: []database.Permission{
			{ID: 2, ModuleID: 20, Slug: "reports-view", IsActive: true},
		},
	}
	app, bearer := newTestApp(t, store, &stubAccountStore{}, &stubAssignmentStore{})

	resp, body := doJSON(t, app, fiber.MethodPost, "/api/v1/menu/has-any-permission", bearer,
		fiber.Map{"permissions": []string{"billing-view", "reports-view"}})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["has_any_permission"])
	assert.Equal(t, []any{"reports-view"}, body["matched"])

	resp, body = doJSON(t, app, fiber.MethodPost, "/api/v1/menu/has-any-permission", bearer,
		fiber.Map{"permissions": []string{"billing-view"}})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, false, body["has_any_permission"])
	assert.Equal(t, []any{}, body["matched"])
}

func TestMenuModulesListsAccessibleOnly(t *testing.T) {
	store := &fakeRBACStore{
		permissions: []database.Permission{
			{ID: 1, ModuleID: 10, Slug: "users-view", IsActive: true},
			{ID: 2, ModuleID: 20, Slug: "reports-view", IsActive: true},
		},
		modules: []database.Module{
			{ID: 10, Name: "Users", Slug: "users", Order: 1, IsActive: true},
			{ID: 20, Name: "Reports", Slug: "reports", Order: 2, IsActive: true},
			{ID: 30, Name: "Billing", Slug: "billing", Order: 3, IsActive: true},
		},
	}
	app, bearer := newTestApp(t, store, &stubAccountStore{}, &stubAssignmentStore{})

	resp, body := doJSON(t, app, fiber.MethodGet, "/api/v1/menu/modules", bearer, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	modules := body["modules"].([]any)
	require.Len(t, modules, 2)
	assert.Equal(t, "users", modules[0].(map[string]any)["slug"])
	assert.Equal(t, "reports", modules[1].(map[string]any)["slug"])
	assert.Equal(t, float64(2), body["total_permissions"])
}

func TestEffectivePermissionsIncludesRoles(t *testing.T) {
	store := &fakeRBACStore{
		roles: []database.Role{{ID: 3, Name: "Admin", Slug: "admin", IsActive: true}},
		permissions: []database.Permission{
			{ID: 1, ModuleID: 10, Slug: "users-view", IsActive: true},
		},
	}
	app, bearer := newTestApp(t, store, &stubAccountStore{}, &stubAssignmentStore{})

	resp, body := doJSON(t, app, fiber.MethodGet, "/api/v1/permissions/effective", bearer, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	roles := body["roles"].([]any)
	require.Len(t, roles, 1)
	assert.Equal(t, "admin", roles[0].(map[string]any)["slug"])
	assert.Len(t, body["data"].([]any), 1)
}

func TestModuleOrderRouteNotShadowed(t *testing.T) {
	store := &fakeRBACStore{
		permissions: []database.Permission{
			{ID: 1, ModuleID: 10, Slug: "modules-view", IsActive: true},
			{ID: 2, ModuleID: 10, Slug: "modules-edit", IsActive: true},
		},
	}
	app, bearer := newTestApp(t, store, &stubAccountStore{}, &stubAssignmentStore{})

	// An empty body fails the order handler's own validation. The shadowing
	// /:id route would instead reject "order" as a malformed id.
	resp, body := doJSON(t, app, fiber.MethodPut, "/api/v1/modules/order", bearer, fiber.Map{})
	require.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, "Validation failed", body["message"])
}

func TestStatisticsRequiresAdminRole(t *testing.T) {
	viewer := &fakeRBACStore{
		roles: []database.Role{{ID: 2, Name: "Viewer", Slug: "viewer", IsActive: true}},
		permissions: []database.Permission{
			{ID: 1, ModuleID: 10, Slug: "users-view", IsActive: true},
		},
	}
	app, bearer := newTestApp(t, viewer, &stubAccountStore{}, &stubAssignmentStore{})

	resp, body := doJSON(t, app, fiber.MethodGet, "/api/v1/user-roles/statistics", bearer, nil)
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "admin", body["required_role"])

	admin := &fakeRBACStore{
		roles: []database.Role{{ID: 1, Name: "Admin", Slug: "admin", IsActive: true}},
		permissions: []database.Permission{
			{ID: 1, ModuleID: 10, Slug: "users-view", IsActive: true},
		},
	}
	app, bearer = newTestApp(t, admin, &stubAccountStore{}, &stubAssignmentStore{})

	resp, body = doJSON(t, app, fiber.MethodGet, "/api/v1/user-roles/statistics", bearer, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.NotNil(t, body["data"])
}

func TestUserRolesListAcceptsEitherPermission(t *testing.T) {
	store := &fakeRBACStore{
		permissions: []database.Permission{
			{ID: 1, ModuleID: 10, Slug: "roles-view", IsActive: true},
		},
	}
	app, bearer := newTestApp(t, store, &stubAccountStore{}, &stubAssignmentStore{})

	resp, body := doJSON(t, app, fiber.MethodGet, "/api/v1/user-roles/", bearer, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(0), body["total"])
}

func TestBulkAssignBindsBothLists(t *testing.T) {
	store := &fakeRBACStore{
		permissions: []database.Permission{
			{ID: 1, ModuleID: 10, Slug: "users-view", IsActive: true},
			{ID: 2, ModuleID: 10, Slug: "users-edit", IsActive: true},
		},
	}
	assignStore := &stubAssignmentStore{}
	app, bearer := newTestApp(t, store, &stubAccountStore{}, assignStore)

	resp, body := doJSON(t, app, fiber.MethodPost, "/api/v1/user-roles/bulk-assign", bearer,
		fiber.Map{"user_ids": []int64{1, 2}, "role_ids": []int64{10, 11}})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	assert.Equal(t, []int64{1, 2}, assignStore.bulkUserIDs)
	assert.Equal(t, []int64{10, 11}, assignStore.bulkRoleIDs)
	assert.Equal(t, float64(3), body["assigned_count"])
	assert.Equal(t, float64(1), body["skipped_count"])
	assert.Equal(t, float64(2), body["total_users"])
	assert.Equal(t, float64(2), body["total_roles"])

	// role_ids is mandatory now that both sides are lists.
	resp, _ = doJSON(t, app, fiber.MethodPost, "/api/v1/user-roles/bulk-assign", bearer,
		fiber.Map{"user_ids": []int64{1}})
	assert.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)
}

func TestRegisterConflictReturnsDeletedSummary(t *testing.T) {
	deletedAt := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	accountStore := &stubAccountStore{
		deleted: database.User{
			ID:        7,
			Name:      "Ada",
			Email:     "ada@example.com",
			DeletedAt: util.Some(deletedAt),
		},
	}
	app, _ := newTestApp(t, &fakeRBACStore{}, accountStore, &stubAssignmentStore{})

	resp, body := doJSON(t, app, fiber.MethodPost, "/api/v1/auth/register", "",
		fiber.Map{"name": "Ada Again", "email": "ada@example.com", "password": "password123"})
	require.Equal(t, fiber.StatusConflict, resp.StatusCode)

	assert.Equal(t, "restore_user", body["action"])
	assert.Equal(t, float64(7), body["user_id"])

	summary := body["user"].(map[string]any)
	assert.Equal(t, "Ada", summary["name"])
	assert.Equal(t, "ada@example.com", summary["email"])
	assert.Equal(t, deletedAt.Format(time.RFC3339), summary["deleted_at"])
}
