package service

import (
	"context"
	"log/slog"
	"sort"

	"authkit/internal/database"
)

// AssignmentStore is the slice of the database layer the assignment service
// needs.
type AssignmentStore interface {
	GetUserByID(ctx context.Context, id int64) (database.User, error)
	GetRoleByID(ctx context.Context, id int64) (database.Role, error)
	AssignRole(ctx context.Context, userID, roleID int64) error
	RemoveRole(ctx context.Context, userID, roleID int64) error
	ReplaceUserRoles(ctx context.Context, userID int64, toAdd, toRemove []int64) error
	BulkAssignRoles(ctx context.Context, userIDs, roleIDs []int64) (int, int, error)
	BulkRemoveRoles(ctx context.Context, userIDs, roleIDs []int64) (int, int, error)
	ReplaceRolePermissions(ctx context.Context, roleID int64, permissionIDs []int64) error
	ListUserRoles(ctx context.Context, userID int64) ([]database.Role, error)
	ListUsersByRole(ctx context.Context, roleID int64) ([]database.User, error)
	ListUserRoleLinks(ctx context.Context, params database.ListUserRoleLinksParams) ([]database.UserRoleLink, int, error)
	GetAssignmentStatistics(ctx context.Context) (database.AssignmentStatistics, error)
}

// Invalidator drops cached permission sets after assignment changes.
type Invalidator interface {
	Invalidate(ctx context.Context, userID int64)
}

// AssignmentService mutates the user-role and role-permission graphs,
// keeping the permission cache coherent as it goes.
type AssignmentService struct {
	store AssignmentStore
	cache Invalidator
	log   *slog.Logger
}

func NewAssignmentService(store AssignmentStore, cache Invalidator, log *slog.Logger) *AssignmentService {
	return &AssignmentService{store: store, cache: cache, log: log}
}

// AssignRole attaches a role after verifying both sides exist.
func (s *AssignmentService) AssignRole(ctx context.Context, userID, roleID int64) error {
	if _, err := s.store.GetUserByID(ctx, userID); err != nil {
		return err
	}
	if _, err := s.store.GetRoleByID(ctx, roleID); err != nil {
		return err
	}
	if err := s.store.AssignRole(ctx, userID, roleID); err != nil {
		return err
	}
	s.cache.Invalidate(ctx, userID)
	s.log.Info("role assigned", "user_id", userID, "role_id", roleID)
	return nil
}

func (s *AssignmentService) RemoveRole(ctx context.Context, userID, roleID int64) error {
	if err := s.store.RemoveRole(ctx, userID, roleID); err != nil {
		return err
	}
	s.cache.Invalidate(ctx, userID)
	s.log.Info("role removed", "user_id", userID, "role_id", roleID)
	return nil
}

// RoleDiff reports what a sync actually changed.
type RoleDiff struct {
	Added     []int64 `json:"added"`
	Removed   []int64 `json:"removed"`
	Unchanged []int64 `json:"unchanged"`
}

// SyncRoles replaces the user's role set with exactly the given ids and
// reports the difference against the previous set.
func (s *AssignmentService) SyncRoles(ctx context.Context, userID int64, roleIDs []int64) (RoleDiff, error) {
	if _, err := s.store.GetUserByID(ctx, userID); err != nil {
		return RoleDiff{}, err
	}
	for _, roleID := range roleIDs {
		if _, err := s.store.GetRoleByID(ctx, roleID); err != nil {
			return RoleDiff{}, err
		}
	}

	current, err := s.store.ListUserRoles(ctx, userID)
	if err != nil {
		return RoleDiff{}, err
	}
	currentIDs := make([]int64, 0, len(current))
	for _, role := range current {
		currentIDs = append(currentIDs, role.ID)
	}

	diff := diffIDs(currentIDs, roleIDs)
	if err := s.store.ReplaceUserRoles(ctx, userID, diff.Added, diff.Removed); err != nil {
		return RoleDiff{}, err
	}

	s.cache.Invalidate(ctx, userID)
	s.log.Info("roles synced", "user_id", userID,
		"added", len(diff.Added), "removed", len(diff.Removed), "unchanged", len(diff.Unchanged))
	return diff, nil
}

// BulkAssign attaches every role to every user, reporting how many of the
// user-role pairs were created versus already present.
func (s *AssignmentService) BulkAssign(ctx context.Context, userIDs, roleIDs []int64) (assigned, skipped int, err error) {
	for _, userID := range userIDs {
		if _, err := s.store.GetUserByID(ctx, userID); err != nil {
			return 0, 0, err
		}
	}
	for _, roleID := range roleIDs {
		if _, err := s.store.GetRoleByID(ctx, roleID); err != nil {
			return 0, 0, err
		}
	}

	assigned, skipped, err = s.store.BulkAssignRoles(ctx, userIDs, roleIDs)
	if err != nil {
		return 0, 0, err
	}
	for _, userID := range userIDs {
		s.cache.Invalidate(ctx, userID)
	}
	s.log.Info("roles bulk assigned", "users", len(userIDs), "roles", len(roleIDs),
		"assigned", assigned, "skipped", skipped)
	return assigned, skipped, nil
}

// BulkRemove detaches every role from every user.
func (s *AssignmentService) BulkRemove(ctx context.Context, userIDs, roleIDs []int64) (removed, skipped int, err error) {
	for _, userID := range userIDs {
		if _, err := s.store.GetUserByID(ctx, userID); err != nil {
			return 0, 0, err
		}
	}
	for _, roleID := range roleIDs {
		if _, err := s.store.GetRoleByID(ctx, roleID); err != nil {
			return 0, 0, err
		}
	}

	removed, skipped, err = s.store.BulkRemoveRoles(ctx, userIDs, roleIDs)
	if err != nil {
		return 0, 0, err
	}
	for _, userID := range userIDs {
		s.cache.Invalidate(ctx, userID)
	}
	s.log.Info("roles bulk removed", "users", len(userIDs), "roles", len(roleIDs),
		"removed", removed, "skipped", skipped)
	return removed, skipped, nil
}

// AssignPermissions replaces a role's permission set and invalidates every
// holder of the role, since their effective permissions just changed.
func (s *AssignmentService) AssignPermissions(ctx context.Context, roleID int64, permissionIDs []int64) error {
	if _, err := s.store.GetRoleByID(ctx, roleID); err != nil {
		return err
	}
	if err := s.store.ReplaceRolePermissions(ctx, roleID, permissionIDs); err != nil {
		return err
	}

	holders, err := s.store.ListUsersByRole(ctx, roleID)
	if err != nil {
		return err
	}
	for _, user := range holders {
		s.cache.Invalidate(ctx, user.ID)
	}

	s.log.Info("role permissions replaced", "role_id", roleID, "permissions", len(permissionIDs))
	return nil
}

func (s *AssignmentService) ListLinks(ctx context.Context, params database.ListUserRoleLinksParams) ([]database.UserRoleLink, int, error) {
	return s.store.ListUserRoleLinks(ctx, params)
}

func (s *AssignmentService) Statistics(ctx context.Context) (database.AssignmentStatistics, error) {
	return s.store.GetAssignmentStatistics(ctx)
}

// diffIDs computes the set difference between the current and desired id
// sets. Duplicates in either input collapse; output slices are sorted.
func diffIDs(current, desired []int64) RoleDiff {
	currentSet := make(map[int64]struct{}, len(current))
	for _, id := range current {
		currentSet[id] = struct{}{}
	}
	desiredSet := make(map[int64]struct{}, len(desired))
	for _, id := range desired {
		desiredSet[id] = struct{}{}
	}

	diff := RoleDiff{Added: []int64{}, Removed: []int64{}, Unchanged: []int64{}}
	for id := range desiredSet {
		if _, ok := currentSet[id]; ok {
			diff.Unchanged = append(diff.Unchanged, id)
		} else {
			diff.Added = append(diff.Added, id)
		}
	}
	for id := range currentSet {
		if _, ok := desiredSet[id]; !ok {
			diff.Removed = append(diff.Removed, id)
		}
	}

	sortIDs := func(ids []int64) {
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	}
	sortIDs(diff.Added)
	sortIDs(diff.Removed)
	sortIDs(diff.Unchanged)
	return diff
}
