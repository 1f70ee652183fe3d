package service

import (
	"context"
	"log/slog"
	"testing"

	"authkit/internal/database"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pair struct{ userID, roleID int64 }

type fakeAssignmentStore struct {
	users map[int64]database.User
	roles map[int64]database.Role
	links map[pair]bool
}

func newFakeAssignmentStore() *fakeAssignmentStore {
	return &fakeAssignmentStore{
		users: map[int64]database.User{},
		roles: map[int64]database.Role{},
		links: map[pair]bool{},
	}
}

func (f *fakeAssignmentStore) GetUserByID(_ context.Context, id int64) (database.User, error) {
	user, ok := f.users[id]
	if !ok {
		return user, database.ErrUserNotFound
	}
	return user, nil
}

func (f *fakeAssignmentStore) GetRoleByID(_ context.Context, id int64) (database.Role, error) {
	role, ok := f.roles[id]
	if !ok {
		return role, database.ErrRoleNotFound
	}
	return role, nil
}

func (f *fakeAssignmentStore) AssignRole(_ context.Context, userID, roleID int64) error {
	p := pair{userID, roleID}
	if f.links[p] {
		return database.ErrDuplicateAssignment
	}
	f.links[p] = true
	return nil
}

func (f *fakeAssignmentStore) RemoveRole(_ context.Context, userID, roleID int64) error {
	p := pair{userID, roleID}
	if !f.links[p] {
		return database.ErrAssignmentNotFound
	}
	delete(f.links, p)
	return nil
}

func (f *fakeAssignmentStore) ReplaceUserRoles(_ context.Context, userID int64, toAdd, toRemove []int64) error {
	for _, roleID := range toRemove {
		delete(f.links, pair{userID, roleID})
	}
	for _, roleID := range toAdd {
		f.links[pair{userID, roleID}] = true
	}
	return nil
}

func (f *fakeAssignmentStore) BulkAssignRoles(_ context.Context, userIDs, roleIDs []int64) (int, int, error) {
	assigned, skipped := 0, 0
	for _, userID := range userIDs {
		for _, roleID := range roleIDs {
			p := pair{userID, roleID}
			if f.links[p] {
				skipped++
				continue
			}
			f.links[p] = true
			assigned++
		}
	}
	return assigned, skipped, nil
}

func (f *fakeAssignmentStore) BulkRemoveRoles(_ context.Context, userIDs, roleIDs []int64) (int, int, error) {
	removed, skipped := 0, 0
	for _, userID := range userIDs {
		for _, roleID := range roleIDs {
			p := pair{userID, roleID}
			if !f.links[p] {
				skipped++
				continue
			}
			delete(f.links, p)
			removed++
		}
	}
	return removed, skipped, nil
}

func (f *fakeAssignmentStore) ReplaceRolePermissions(context.Context, int64, []int64) error {
	return nil
}

func (f *fakeAssignmentStore) ListUserRoles(_ context.Context, userID int64) ([]database.Role, error) {
	var roles []database.Role
	for p := range f.links {
		if p.userID == userID {
			roles = append(roles, f.roles[p.roleID])
		}
	}
	return roles, nil
}

func (f *fakeAssignmentStore) ListUsersByRole(_ context.Context, roleID int64) ([]database.User, error) {
	var users []database.User
	for p := range f.links {
		if p.roleID == roleID {
			users = append(users, f.users[p.userID])
		}
	}
	return users, nil
}

func (f *fakeAssignmentStore) ListUserRoleLinks(context.Context, database.ListUserRoleLinksParams) ([]database.UserRoleLink, int, error) {
	return nil, 0, nil
}

func (f *fakeAssignmentStore) GetAssignmentStatistics(context.Context) (database.AssignmentStatistics, error) {
	return database.AssignmentStatistics{}, nil
}

type recordingInvalidator struct {
	invalidated []int64
}

func (r *recordingInvalidator) Invalidate(_ context.Context, userID int64) {
	r.invalidated = append(r.invalidated, userID)
}

func newTestAssignmentService(store *fakeAssignmentStore) (*AssignmentService, *recordingInvalidator) {
	cache := &recordingInvalidator{}
	return NewAssignmentService(store, cache, slog.Default()), cache
}

func seedUserAndRoles(store *fakeAssignmentStore, userID int64, roleIDs ...int64) {
	store.users[userID] = database.User{ID: userID}
	for _, roleID := range roleIDs {
		store.roles[roleID] = database.Role{ID: roleID}
	}
}

func TestDiffIDs(t *testing.T) {
	diff := diffIDs([]int64{1, 2}, []int64{2, 3})
	assert.Equal(t, []int64{3}, diff.Added)
	assert.Equal(t, []int64{1}, diff.Removed)
	assert.Equal(t, []int64{2}, diff.Unchanged)
}

func TestDiffIDsCollapsesDuplicates(t *testing.T) {
	diff := diffIDs([]int64{1, 1}, []int64{1, 2, 2})
	assert.Equal(t, []int64{2}, diff.Added)
	assert.Empty(t, diff.Removed)
	assert.Equal(t, []int64{1}, diff.Unchanged)
}

func TestAssignRoleIdempotence(t *testing.T) {
	store := newFakeAssignmentStore()
	seedUserAndRoles(store, 1, 10)
	svc, cache := newTestAssignmentService(store)

	require.NoError(t, svc.AssignRole(context.Background(), 1, 10))
	assert.ErrorIs(t, svc.AssignRole(context.Background(), 1, 10), database.ErrDuplicateAssignment)
	assert.Equal(t, []int64{1}, cache.invalidated)
}

func TestSyncRolesReportsDiff(t *testing.T) {
	store := newFakeAssignmentStore()
	seedUserAndRoles(store, 1, 1, 2, 3)
	store.links[pair{1, 1}] = true
	store.links[pair{1, 2}] = true
	svc, cache := newTestAssignmentService(store)

	diff, err := svc.SyncRoles(context.Background(), 1, []int64{2, 3})
	require.NoError(t, err)

	assert.Equal(t, []int64{3}, diff.Added)
	assert.Equal(t, []int64{1}, diff.Removed)
	assert.Equal(t, []int64{2}, diff.Unchanged)

	assert.False(t, store.links[pair{1, 1}])
	assert.True(t, store.links[pair{1, 2}])
	assert.True(t, store.links[pair{1, 3}])
	assert.Equal(t, []int64{1}, cache.invalidated)
}

func TestSyncRolesUnknownRole(t *testing.T) {
	store := newFakeAssignmentStore()
	seedUserAndRoles(store, 1)
	svc, _ := newTestAssignmentService(store)

	_, err := svc.SyncRoles(context.Background(), 1, []int64{99})
	assert.ErrorIs(t, err, database.ErrRoleNotFound)
}

func TestBulkAssignCountsOverProduct(t *testing.T) {
	store := newFakeAssignmentStore()
	seedUserAndRoles(store, 1, 10, 11)
	store.users[2] = database.User{ID: 2}
	store.links[pair{2, 11}] = true

	svc, cache := newTestAssignmentService(store)

	// Two users x two roles with one pair already present.
	assigned, skipped, err := svc.BulkAssign(context.Background(), []int64{1, 2}, []int64{10, 11})
	require.NoError(t, err)
	assert.Equal(t, 3, assigned)
	assert.Equal(t, 1, skipped)
	assert.Len(t, cache.invalidated, 2)

	for _, p := range []pair{{1, 10}, {1, 11}, {2, 10}, {2, 11}} {
		assert.True(t, store.links[p], "expected pair %v to exist", p)
	}
}

func TestBulkAssignUnknownRole(t *testing.T) {
	store := newFakeAssignmentStore()
	seedUserAndRoles(store, 1, 10)

	svc, _ := newTestAssignmentService(store)

	_, _, err := svc.BulkAssign(context.Background(), []int64{1}, []int64{10, 99})
	assert.ErrorIs(t, err, database.ErrRoleNotFound)
}

func TestBulkRemoveCountsOverProduct(t *testing.T) {
	store := newFakeAssignmentStore()
	seedUserAndRoles(store, 1, 10, 11)
	store.users[2] = database.User{ID: 2}
	store.links[pair{1, 10}] = true
	store.links[pair{2, 11}] = true

	svc, _ := newTestAssignmentService(store)

	removed, skipped, err := svc.BulkRemove(context.Background(), []int64{1, 2}, []int64{10, 11})
	require.NoError(t, err)
	assert.Equal(t, 2, removed)
	assert.Equal(t, 2, skipped)
}

func TestAssignPermissionsInvalidatesHolders(t *testing.T) {
	store := newFakeAssignmentStore()
	seedUserAndRoles(store, 1, 10)
	store.users[2] = database.User{ID: 2}
	store.links[pair{1, 10}] = true
	store.links[pair{2, 10}] = true

	svc, cache := newTestAssignmentService(store)

	require.NoError(t, svc.AssignPermissions(context.Background(), 10, []int64{100}))
	assert.ElementsMatch(t, []int64{1, 2}, cache.invalidated)
}
