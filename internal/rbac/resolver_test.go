package rbac

import (
	"context"
	"testing"

	"authkit/internal/database"
	"authkit/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	roles       map[int64][]database.Role
	permissions map[int64][]database.Permission
	modules     []database.Module
}

func (f *fakeStore) ListUserRoles(_ context.Context, userID int64) ([]database.Role, error) {
	return f.roles[userID], nil
}

func (f *fakeStore) ListUserPermissions(_ context.Context, userID int64) ([]database.Permission, error) {
	return f.permissions[userID], nil
}

func (f *fakeStore) ListActiveModules(context.Context) ([]database.Module, error) {
	return f.modules, nil
}

func (f *fakeStore) ListActivePermissions(context.Context) ([]database.Permission, error) {
	return nil, nil
}

func module(id int64, parentID int64, name string, order int) database.Module {
	m := database.Module{ID: id, Name: name, Slug: name, Order: order, IsActive: true}
	if parentID != 0 {
		m.ParentID = util.Some(parentID)
	}
	return m
}

func permission(id, moduleID int64, slug string) database.Permission {
	return database.Permission{ID: id, ModuleID: moduleID, Name: slug, Slug: slug, IsActive: true}
}

func TestEffectivePermissionsNoRoles(t *testing.T) {
	store := &fakeStore{permissions: map[int64][]database.Permission{}}
	resolver := NewResolver(store, nil)

	permissions, err := resolver.EffectivePermissions(context.Background(), 42)
	require.NoError(t, err)
	assert.Empty(t, permissions)
	assert.NotNil(t, permissions)
}

func TestHasAnyPermissionReturnsMatchedSubset(t *testing.T) {
	store := &fakeStore{permissions: map[int64][]database.Permission{
		1: {permission(1, 1, "users-view"), permission(2, 1, "users-edit")},
	}}
	resolver := NewResolver(store, nil)

	ok, matched, err := resolver.HasAnyPermission(context.Background(), 1,
		[]string{"users-view", "users-delete", "users-edit"})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []string{"users-view", "users-edit"}, matched)

	ok, matched, err = resolver.HasAnyPermission(context.Background(), 1, []string{"roles-view"})
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, matched)
}

func TestHasPermission(t *testing.T) {
	store := &fakeStore{permissions: map[int64][]database.Permission{
		1: {permission(1, 1, "users-view")},
	}}
	resolver := NewResolver(store, nil)

	ok, err := resolver.HasPermission(context.Background(), 1, "users-view")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = resolver.HasPermission(context.Background(), 1, "users-delete")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMenuTreeEmptyWithoutPermissions(t *testing.T) {
	store := &fakeStore{
		permissions: map[int64][]database.Permission{},
		modules:     []database.Module{module(1, 0, "dashboard", 1)},
	}
	resolver := NewResolver(store, nil)

	tree, err := resolver.MenuTree(context.Background(), 7)
	require.NoError(t, err)
	assert.Empty(t, tree)
}

func TestBuildMenuTreeIncludesAncestors(t *testing.T) {
	// Finance > Billing > Invoices; the user only holds a permission on
	// Invoices, yet all three must appear so the leaf is reachable.
	modules := []database.Module{
		module(1, 0, "finance", 1),
		module(2, 1, "billing", 1),
		module(3, 2, "invoices", 1),
		module(4, 0, "hr", 2),
	}
	permissions := []database.Permission{permission(10, 3, "invoices-view")}

	tree := BuildMenuTree(modules, permissions)
	require.Len(t, tree, 1)

	finance := tree[0]
	assert.Equal(t, "finance", finance.Slug)
	assert.Empty(t, finance.PermissionDetail)
	require.Len(t, finance.Children, 1)

	billing := finance.Children[0]
	assert.Equal(t, "billing", billing.Slug)
	require.Len(t, billing.Children, 1)

	invoices := billing.Children[0]
	assert.Equal(t, "invoices", invoices.Slug)
	require.Len(t, invoices.PermissionDetail, 1)
	assert.Equal(t, "invoices-view", invoices.PermissionDetail[0].Slug)
}

func TestBuildMenuTreeDanglingParentBecomesRoot(t *testing.T) {
	// Parent id 99 is not in the active set; the orphan is promoted.
	modules := []database.Module{module(5, 99, "reports", 1)}
	permissions := []database.Permission{permission(20, 5, "reports-view")}

	tree := BuildMenuTree(modules, permissions)
	require.Len(t, tree, 1)
	assert.Equal(t, "reports", tree[0].Slug)
}

func TestBuildMenuTreeSurvivesParentCycle(t *testing.T) {
	a := module(1, 2, "a", 1)
	b := module(2, 1, "b", 2)
	permissions := []database.Permission{permission(30, 1, "a-view")}

	tree := BuildMenuTree([]database.Module{a, b}, permissions)

	// Both modules are included (each is an ancestor of the other); the
	// cycle breaks when attaching, so exactly one ends up a root.
	require.Len(t, tree, 1)
	require.Len(t, tree[0].Children, 1)
	assert.Empty(t, tree[0].Children[0].Children)
}

func TestBuildMenuTreeSiblingOrder(t *testing.T) {
	modules := []database.Module{
		module(1, 0, "root", 1),
		module(2, 1, "second", 2),
		module(3, 1, "first", 1),
	}
	// Modules arrive ordered by sort_order; emulate the database ordering.
	ordered := []database.Module{modules[0], modules[2], modules[1]}
	permissions := []database.Permission{
		permission(1, 2, "second-view"),
		permission(2, 3, "first-view"),
	}

	tree := BuildMenuTree(ordered, permissions)
	require.Len(t, tree, 1)
	require.Len(t, tree[0].Children, 2)
	assert.Equal(t, "first", tree[0].Children[0].Slug)
	assert.Equal(t, "second", tree[0].Children[1].Slug)
}

func TestHasRole(t *testing.T) {
	store := &fakeStore{roles: map[int64][]database.Role{
		1: {{ID: 1, Slug: "admin"}},
	}}
	resolver := NewResolver(store, nil)

	ok, err := resolver.HasRole(context.Background(), 1, "admin")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = resolver.HasRole(context.Background(), 1, "editor")
	require.NoError(t, err)
	assert.False(t, ok)
}

type countingCache struct {
	entries map[int64][]string
	hits    int
	misses  int
}

func newCountingCache() *countingCache {
	return &countingCache{entries: map[int64][]string{}}
}

func (c *countingCache) Get(_ context.Context, userID int64) ([]string, bool) {
	slugs, ok := c.entries[userID]
	if ok {
		c.hits++
	} else {
		c.misses++
	}
	return slugs, ok
}

func (c *countingCache) Set(_ context.Context, userID int64, slugs []string) {
	c.entries[userID] = slugs
}

func (c *countingCache) Invalidate(_ context.Context, userID int64) {
	delete(c.entries, userID)
}

func TestEffectiveSlugsUsesCache(t *testing.T) {
	store := &fakeStore{permissions: map[int64][]database.Permission{
		1: {permission(1, 1, "users-view")},
	}}
	cache := newCountingCache()
	resolver := NewResolver(store, cache)

	_, err := resolver.EffectiveSlugs(context.Background(), 1)
	require.NoError(t, err)
	_, err = resolver.EffectiveSlugs(context.Background(), 1)
	require.NoError(t, err)

	assert.Equal(t, 1, cache.misses)
	assert.Equal(t, 1, cache.hits)

	resolver.Invalidate(context.Background(), 1)
	_, err = resolver.EffectiveSlugs(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 2, cache.misses)
}
