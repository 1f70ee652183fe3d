package rbac

import (
	"context"
	"fmt"

	"authkit/internal/database"
)

// Store is the slice of the database layer the resolver reads from.
type Store interface {
	ListUserRoles(ctx context.Context, userID int64) ([]database.Role, error)
	ListUserPermissions(ctx context.Context, userID int64) ([]database.Permission, error)
	ListActiveModules(ctx context.Context) ([]database.Module, error)
	ListActivePermissions(ctx context.Context) ([]database.Permission, error)
}

// MenuNode is one entry of the navigation tree: a module plus the
// permissions the user holds on it, with children nested beneath.
type MenuNode struct {
	ID               int64                 `json:"id"`
	ParentID         *int64                `json:"parent_id"`
	Name             string                `json:"name"`
	Slug             string                `json:"slug"`
	Icon             string                `json:"icon"`
	Route            string                `json:"route"`
	Order            int                   `json:"order"`
	PermissionDetail []database.Permission `json:"permission_detail"`
	Children         []*MenuNode           `json:"children"`
}

// Resolver answers the three authorization questions: which permissions a
// user holds, which menu they see, and whether a specific gate opens.
// Results are read-through cached per user; mutations to the assignment
// graph must invalidate through the cache.
type Resolver struct {
	store Store
	cache Cache
}

func NewResolver(store Store, cache Cache) *Resolver {
	if cache == nil {
		cache = NoopCache{}
	}
	return &Resolver{store: store, cache: cache}
}

// EffectivePermissions returns the union of permissions granted through all
// of the user's live roles, deduplicated and ordered by name. A user with no
// roles gets an empty slice, not an error.
func (r *Resolver) EffectivePermissions(ctx context.Context, userID int64) ([]database.Permission, error) {
	permissions, err := r.store.ListUserPermissions(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("rbac: failed to resolve permissions (user=%d): %w", userID, err)
	}
	if permissions == nil {
		permissions = []database.Permission{}
	}
	return permissions, nil
}

// EffectiveSlugs returns just the permission slugs, served from cache when
// warm. This is the hot path behind the middleware gates.
func (r *Resolver) EffectiveSlugs(ctx context.Context, userID int64) ([]string, error) {
	if slugs, ok := r.cache.Get(ctx, userID); ok {
		return slugs, nil
	}

	permissions, err := r.EffectivePermissions(ctx, userID)
	if err != nil {
		return nil, err
	}

	slugs := make([]string, 0, len(permissions))
	for _, p := range permissions {
		slugs = append(slugs, p.Slug)
	}
	r.cache.Set(ctx, userID, slugs)
	return slugs, nil
}

// HasPermission reports whether the user holds the permission slug.
func (r *Resolver) HasPermission(ctx context.Context, userID int64, slug string) (bool, error) {
	slugs, err := r.EffectiveSlugs(ctx, userID)
	if err != nil {
		return false, err
	}
	for _, s := range slugs {
		if s == slug {
			return true, nil
		}
	}
	return false, nil
}

// HasAnyPermission reports whether the user holds at least one of the given
// slugs and returns the subset actually held.
func (r *Resolver) HasAnyPermission(ctx context.Context, userID int64, slugs []string) (bool, []string, error) {
	held, err := r.EffectiveSlugs(ctx, userID)
	if err != nil {
		return false, nil, err
	}

	heldSet := make(map[string]struct{}, len(held))
	for _, s := range held {
		heldSet[s] = struct{}{}
	}

	var matched []string
	for _, s := range slugs {
		if _, ok := heldSet[s]; ok {
			matched = append(matched, s)
		}
	}
	return len(matched) > 0, matched, nil
}

// Roles returns the user's live roles. A user with no roles gets an empty
// slice, not an error.
func (r *Resolver) Roles(ctx context.Context, userID int64) ([]database.Role, error) {
	roles, err := r.store.ListUserRoles(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("rbac: failed to resolve roles (user=%d): %w", userID, err)
	}
	if roles == nil {
		roles = []database.Role{}
	}
	return roles, nil
}

// HasRole reports whether the user holds the role slug.
func (r *Resolver) HasRole(ctx context.Context, userID int64, slug string) (bool, error) {
	roles, err := r.Roles(ctx, userID)
	if err != nil {
		return false, err
	}
	for _, role := range roles {
		if role.Slug == slug {
			return true, nil
		}
	}
	return false, nil
}

// AccessibleModules returns the active modules the user holds at least one
// permission on, in menu order, plus the size of the permission union. This
// is the flat companion to MenuTree: no ancestors, no nesting.
func (r *Resolver) AccessibleModules(ctx context.Context, userID int64) ([]database.Module, int, error) {
	permissions, err := r.EffectivePermissions(ctx, userID)
	if err != nil {
		return nil, 0, err
	}

	granted := make(map[int64]struct{}, len(permissions))
	for _, p := range permissions {
		granted[p.ModuleID] = struct{}{}
	}

	modules, err := r.store.ListActiveModules(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("rbac: failed to load modules: %w", err)
	}

	accessible := make([]database.Module, 0, len(granted))
	for _, m := range modules {
		if _, ok := granted[m.ID]; ok {
			accessible = append(accessible, m)
		}
	}
	return accessible, len(permissions), nil
}

// MenuTree assembles the user's navigation tree. A module appears when the
// user holds a permission on it, or when a descendant does: holding a
// permission deep in the hierarchy pulls in every ancestor so the path to
// the leaf is navigable.
func (r *Resolver) MenuTree(ctx context.Context, userID int64) ([]*MenuNode, error) {
	permissions, err := r.EffectivePermissions(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(permissions) == 0 {
		return []*MenuNode{}, nil
	}

	modules, err := r.store.ListActiveModules(ctx)
	if err != nil {
		return nil, fmt.Errorf("rbac: failed to load modules: %w", err)
	}

	return BuildMenuTree(modules, permissions), nil
}

// Invalidate drops the user's cached permission set. Call it after any
// change to the user's roles or to any of those roles' permissions.
func (r *Resolver) Invalidate(ctx context.Context, userID int64) {
	r.cache.Invalidate(ctx, userID)
}

// BuildMenuTree constructs the tree from the active module list and the
// user's resolved permissions. Modules must arrive ordered (sort_order asc,
// id asc); the tree preserves that order among siblings.
//
// A module whose parent is missing from the active list is promoted to a
// root. Parent chains are walked with a visited set, so a cycle in the data
// terminates instead of looping.
func BuildMenuTree(modules []database.Module, permissions []database.Permission) []*MenuNode {
	byID := make(map[int64]database.Module, len(modules))
	for _, m := range modules {
		byID[m.ID] = m
	}

	permsByModule := make(map[int64][]database.Permission)
	for _, p := range permissions {
		permsByModule[p.ModuleID] = append(permsByModule[p.ModuleID], p)
	}

	// Every granted module plus all of its ancestors is visible.
	include := make(map[int64]struct{})
	for moduleID := range permsByModule {
		visited := make(map[int64]struct{})
		current, ok := byID[moduleID]
		for ok {
			if _, seen := visited[current.ID]; seen {
				break
			}
			visited[current.ID] = struct{}{}
			include[current.ID] = struct{}{}
			if !current.ParentID.IsSet {
				break
			}
			current, ok = byID[current.ParentID.Val]
		}
	}

	nodes := make(map[int64]*MenuNode, len(include))
	for _, m := range modules {
		if _, ok := include[m.ID]; !ok {
			continue
		}
		detail := permsByModule[m.ID]
		if detail == nil {
			detail = []database.Permission{}
		}
		nodes[m.ID] = &MenuNode{
			ID:               m.ID,
			ParentID:         m.ParentID.Ptr(),
			Name:             m.Name,
			Slug:             m.Slug,
			Icon:             m.Icon,
			Route:            m.Route,
			Order:            m.Order,
			PermissionDetail: detail,
			Children:         []*MenuNode{},
		}
	}

	// Attach nodes level by level. A node is placed once its parent is,
	// which keeps sibling order stable. When nothing can be placed but
	// nodes remain, the parent chain loops; the earliest unplaced node is
	// promoted to a root to break the cycle.
	roots := []*MenuNode{}
	placed := make(map[int64]bool, len(nodes))
	for remaining := len(nodes); remaining > 0; {
		progress := false
		for _, m := range modules {
			node, ok := nodes[m.ID]
			if !ok || placed[m.ID] {
				continue
			}

			parentPlaceable := false
			var parent *MenuNode
			if m.ParentID.IsSet {
				parent, parentPlaceable = nodes[m.ParentID.Val]
			}

			switch {
			case !parentPlaceable:
				roots = append(roots, node)
			case placed[m.ParentID.Val]:
				parent.Children = append(parent.Children, node)
			default:
				continue
			}
			placed[m.ID] = true
			remaining--
			progress = true
		}

		if !progress {
			for _, m := range modules {
				if node, ok := nodes[m.ID]; ok && !placed[m.ID] {
					roots = append(roots, node)
					placed[m.ID] = true
					remaining--
					break
				}
			}
		}
	}

	return roots
}
