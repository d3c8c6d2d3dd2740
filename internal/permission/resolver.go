package permission

import (
	"log/slog"
	"sort"
	"sync/atomic"
)

// snapshot is an immutable view of the role/permission catalog. The resolver
// swaps the whole snapshot on reload instead of mutating it in place, so
// concurrent permission checks never observe a half-updated catalog and any
// cached authorization decision is invalidated by the swap.
type snapshot struct {
	permsByID   map[int64]*Permission
	permsByCode map[string]*Permission
	rolePerms   map[int64][]int64 // roleID -> permission ids
}

// Resolver maps sets of role ids to effective permission sets. Pure reads
// over the current snapshot; Reload is the only writer.
type Resolver struct {
	repo   RepositoryAPI
	logger *slog.Logger
	snap   atomic.Pointer[snapshot]
}

func NewResolver(repo RepositoryAPI, logger *slog.Logger) *Resolver {
	r := &Resolver{
		repo:   repo,
		logger: logger,
	}
	r.snap.Store(&snapshot{
		permsByID:   map[int64]*Permission{},
		permsByCode: map[string]*Permission{},
		rolePerms:   map[int64][]int64{},
	})
	return r
}

// Reload re-reads the catalog from the repository and atomically replaces
// the snapshot. Called at startup and after every role/permission mutation.
func (r *Resolver) Reload() error {
	perms, err := r.repo.ListPermissions()
	if err != nil {
		r.logger.Error("resolver reload: failed to list permissions", "error", err)
		return err
	}

	roles, err := r.repo.ListRoles()
	if err != nil {
		r.logger.Error("resolver reload: failed to list roles", "error", err)
		return err
	}

	next := &snapshot{
		permsByID:   make(map[int64]*Permission, len(perms)),
		permsByCode: make(map[string]*Permission, len(perms)),
		rolePerms:   make(map[int64][]int64, len(roles)),
	}
	for _, p := range perms {
		next.permsByID[p.ID] = p
		next.permsByCode[p.Code] = p
	}
	for _, role := range roles {
		next.rolePerms[role.ID] = role.PermissionIDs
	}

	r.snap.Store(next)
	r.logger.Info("permission catalog reloaded",
		"permissions", len(perms),
		"roles", len(roles))
	return nil
}

// ResolvePermissions returns the deduplicated union of permission codes
// granted by the given roles. Unknown role ids grant nothing; they are not
// an error.
func (r *Resolver) ResolvePermissions(roleIDs []int64) []string {
	snap := r.snap.Load()

	seen := make(map[string]struct{})
	for _, roleID := range roleIDs {
		for _, permID := range snap.rolePerms[roleID] {
			if p, ok := snap.permsByID[permID]; ok {
				seen[p.Code] = struct{}{}
			}
		}
	}

	codes := make([]string, 0, len(seen))
	for code := range seen {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// HasPermission reports whether the union of the given roles grants the
// permission code.
func (r *Resolver) HasPermission(roleIDs []int64, code string) bool {
	snap := r.snap.Load()

	perm, ok := snap.permsByCode[code]
	if !ok {
		return false
	}
	for _, roleID := range roleIDs {
		for _, permID := range snap.rolePerms[roleID] {
			if permID == perm.ID {
				return true
			}
		}
	}
	return false
}

// MenusFor returns the menu permissions granted by the given roles, ordered
// by id for stable display.
func (r *Resolver) MenusFor(roleIDs []int64) []*Permission {
	snap := r.snap.Load()

	granted := r.grantedIDs(snap, roleIDs)
	var menus []*Permission
	for id := range granted {
		if p, ok := snap.permsByID[id]; ok && p.IsMenu() {
			menus = append(menus, p)
		}
	}
	sort.Slice(menus, func(i, j int) bool { return menus[i].ID < menus[j].ID })
	return menus
}

// OperationsFor returns the operation permissions under the given menu that
// the roles grant. An unknown menu code yields an empty slice.
func (r *Resolver) OperationsFor(roleIDs []int64, menuCode string) []*Permission {
	snap := r.snap.Load()

	menu, ok := snap.permsByCode[menuCode]
	if !ok || !menu.IsMenu() {
		return nil
	}

	granted := r.grantedIDs(snap, roleIDs)
	var ops []*Permission
	for id := range granted {
		p, ok := snap.permsByID[id]
		if !ok || !p.IsOperation() || p.ParentID == nil {
			continue
		}
		if *p.ParentID == menu.ID {
			ops = append(ops, p)
		}
	}
	sort.Slice(ops, func(i, j int) bool { return ops[i].ID < ops[j].ID })
	return ops
}

func (r *Resolver) grantedIDs(snap *snapshot, roleIDs []int64) map[int64]struct{} {
	granted := make(map[int64]struct{})
	for _, roleID := range roleIDs {
		for _, permID := range snap.rolePerms[roleID] {
			granted[permID] = struct{}{}
		}
	}
	return granted
}
