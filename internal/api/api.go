package api

import (
	"log/slog"

	"authkit/internal/config"
	"authkit/internal/database"
	"authkit/internal/middleware"
	"authkit/internal/rbac"
	"authkit/internal/service"
	"authkit/internal/token"
	"authkit/internal/validation"

	"github.com/gofiber/fiber/v2"
)

// Handler carries every dependency the HTTP surface needs. One instance
// serves all routes.
type Handler struct {
	db          *database.Database
	resolver    *rbac.Resolver
	accounts    *service.AccountService
	assignments *service.AssignmentService
	tokens      *token.Service
	validate    *validation.Validator
	logger      *slog.Logger
}

func NewHandler(
	db *database.Database,
	resolver *rbac.Resolver,
	accounts *service.AccountService,
	assignments *service.AssignmentService,
	tokens *token.Service,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		db:          db,
		resolver:    resolver,
		accounts:    accounts,
		assignments: assignments,
		tokens:      tokens,
		validate:    validation.New(),
		logger:      logger,
	}
}

// RegisterRoutes mounts the full API under the configured prefix.
// Everything past /auth/login and /auth/register requires a bearer token;
// management routes are additionally gated on permission slugs.
func (h *Handler) RegisterRoutes(app *fiber.App, cfg config.ServerConfig) {
	root := app.Group(cfg.RoutePrefix)

	root.Get("/health", h.Health)

	auth := root.Group("/auth")
	auth.Post("/register", h.Register)
	auth.Post("/login", h.Login)

	authed := root.Group("", middleware.RequireAuth(h.tokens))

	authed.Post("/auth/logout", h.Logout)
	authed.Post("/auth/refresh", h.Refresh)
	authed.Get("/auth/me", h.Me)

	authed.Get("/menu", h.Menu)
	authed.Get("/menu/modules", h.MenuModules)
	authed.Post("/menu/has-permission", h.HasPermission)
	authed.Post("/menu/has-any-permission", h.HasAnyPermission)
	authed.Get("/permissions/effective", h.EffectivePermissions)

	users := authed.Group("/users", middleware.RequirePermission(h.resolver, "users-view"))
	users.Get("/", h.ListUsers)
	users.Get("/:id", h.GetUser)
	users.Post("/", middleware.RequirePermission(h.resolver, "users-create"), h.CreateUser)
	users.Put("/:id", middleware.RequirePermission(h.resolver, "users-edit"), h.UpdateUser)
	users.Delete("/:id", middleware.RequirePermission(h.resolver, "users-delete"), h.DeleteUser)
	users.Post("/:id/restore", middleware.RequirePermission(h.resolver, "users-edit"), h.RestoreUser)
	users.Get("/:id/roles", h.ListUserRoles)
	users.Post("/:id/roles", middleware.RequirePermission(h.resolver, "users-edit"), h.AssignUserRole)
	users.Delete("/:id/roles/:roleId", middleware.RequirePermission(h.resolver, "users-edit"), h.RemoveUserRole)
	users.Put("/:id/roles", middleware.RequirePermission(h.resolver, "users-edit"), h.SyncUserRoles)
	users.Get("/:id/permissions", h.ListUserPermissions)
	users.Get("/:id/branches", h.ListUserBranches)
	users.Post("/:id/branches/:branchId", middleware.RequirePermission(h.resolver, "users-edit"), h.AttachUserBranch)
	users.Delete("/:id/branches/:branchId", middleware.RequirePermission(h.resolver, "users-edit"), h.DetachUserBranch)
	users.Get("/:id/departments", h.ListUserDepartments)
	users.Post("/:id/departments/:departmentId", middleware.RequirePermission(h.resolver, "users-edit"), h.AttachUserDepartment)
	users.Delete("/:id/departments/:departmentId", middleware.RequirePermission(h.resolver, "users-edit"), h.DetachUserDepartment)

	userRoles := authed.Group("/user-roles", middleware.RequireAnyPermission(h.resolver, "users-view", "roles-view"))
	userRoles.Get("/", h.ListUserRoleLinks)
	userRoles.Get("/statistics", middleware.RequireRole(h.resolver, "admin"), h.AssignmentStatistics)
	userRoles.Post("/bulk-assign", middleware.RequirePermission(h.resolver, "users-edit"), h.BulkAssignRoles)
	userRoles.Post("/bulk-remove", middleware.RequirePermission(h.resolver, "users-edit"), h.BulkRemoveRoles)

	people := authed.Group("/people", middleware.RequirePermission(h.resolver, "users-view"))
	people.Get("/", h.ListPeople)
	people.Get("/:id", h.GetPerson)
	people.Post("/", middleware.RequirePermission(h.resolver, "users-create"), h.CreatePerson)
	people.Put("/:id", middleware.RequirePermission(h.resolver, "users-edit"), h.UpdatePerson)
	people.Delete("/:id", middleware.RequirePermission(h.resolver, "users-delete"), h.DeletePerson)
	people.Post("/:id/restore", middleware.RequirePermission(h.resolver, "users-edit"), h.RestorePerson)

	modules := authed.Group("/modules", middleware.RequirePermission(h.resolver, "modules-view"))
	modules.Get("/", h.ListModules)
	modules.Get("/active", h.ListActiveModules)
	modules.Get("/:id", h.GetModule)
	modules.Get("/:id/permissions", h.ListModulePermissions)
	modules.Post("/", middleware.RequirePermission(h.resolver, "modules-create"), h.CreateModule)
	// Literal route registered before /:id so it is not shadowed.
	modules.Put("/order", middleware.RequirePermission(h.resolver, "modules-edit"), h.UpdateModuleOrder)
	modules.Put("/:id", middleware.RequirePermission(h.resolver, "modules-edit"), h.UpdateModule)
	modules.Delete("/:id", middleware.RequirePermission(h.resolver, "modules-delete"), h.DeleteModule)
	modules.Post("/:id/restore", middleware.RequirePermission(h.resolver, "modules-edit"), h.RestoreModule)

	permissions := authed.Group("/permissions", middleware.RequirePermission(h.resolver, "permissions-view"))
	permissions.Get("/", h.ListPermissions)
	permissions.Get("/active", h.ListActivePermissions)
	permissions.Get("/:id", h.GetPermission)
	permissions.Post("/", middleware.RequirePermission(h.resolver, "permissions-create"), h.CreatePermission)
	permissions.Post("/bulk", middleware.RequirePermission(h.resolver, "permissions-create"), h.BulkCreatePermissions)
	permissions.Put("/:id", middleware.RequirePermission(h.resolver, "permissions-edit"), h.UpdatePermission)
	permissions.Delete("/:id", middleware.RequirePermission(h.resolver, "permissions-delete"), h.DeletePermission)
	permissions.Post("/:id/restore", middleware.RequirePermission(h.resolver, "permissions-edit"), h.RestorePermission)

	roles := authed.Group("/roles", middleware.RequirePermission(h.resolver, "roles-view"))
	roles.Get("/", h.ListRoles)
	roles.Get("/active", h.ListActiveRoles)
	roles.Get("/:id", h.GetRole)
	roles.Get("/:id/permissions", h.ListRolePermissions)
	roles.Put("/:id/permissions", middleware.RequirePermission(h.resolver, "roles-edit"), h.AssignRolePermissions)
	roles.Get("/:id/users", h.ListRoleUsers)
	roles.Post("/", middleware.RequirePermission(h.resolver, "roles-create"), h.CreateRole)
	roles.Put("/:id", middleware.RequirePermission(h.resolver, "roles-edit"), h.UpdateRole)
	roles.Delete("/:id", middleware.RequirePermission(h.resolver, "roles-delete"), h.DeleteRole)
	roles.Post("/:id/restore", middleware.RequirePermission(h.resolver, "roles-edit"), h.RestoreRole)

	roleCategories := authed.Group("/role-categories", middleware.RequirePermission(h.resolver, "roles-view"))
	roleCategories.Get("/", h.ListRoleCategories)
	roleCategories.Get("/:id", h.GetRoleCategory)
	roleCategories.Post("/", middleware.RequirePermission(h.resolver, "roles-create"), h.CreateRoleCategory)
	roleCategories.Put("/:id", middleware.RequirePermission(h.resolver, "roles-edit"), h.UpdateRoleCategory)
	roleCategories.Delete("/:id", middleware.RequirePermission(h.resolver, "roles-delete"), h.DeleteRoleCategory)
	roleCategories.Post("/:id/restore", middleware.RequirePermission(h.resolver, "roles-edit"), h.RestoreRoleCategory)

	branches := authed.Group("/branches", middleware.RequirePermission(h.resolver, "branches-view"))
	branches.Get("/", h.ListBranches)
	branches.Get("/:id", h.GetBranch)
	branches.Post("/", middleware.RequirePermission(h.resolver, "branches-create"), h.CreateBranch)
	branches.Put("/:id", middleware.RequirePermission(h.resolver, "branches-edit"), h.UpdateBranch)
	branches.Delete("/:id", middleware.RequirePermission(h.resolver, "branches-delete"), h.DeleteBranch)
	branches.Post("/:id/restore", middleware.RequirePermission(h.resolver, "branches-edit"), h.RestoreBranch)

	departments := authed.Group("/departments", middleware.RequirePermission(h.resolver, "departments-view"))
	departments.Get("/", h.ListDepartments)
	departments.Get("/:id", h.GetDepartment)
	departments.Post("/", middleware.RequirePermission(h.resolver, "departments-create"), h.CreateDepartment)
	departments.Put("/:id", middleware.RequirePermission(h.resolver, "departments-edit"), h.UpdateDepartment)
	departments.Delete("/:id", middleware.RequirePermission(h.resolver, "departments-delete"), h.DeleteDepartment)
	departments.Post("/:id/restore", middleware.RequirePermission(h.resolver, "departments-edit"), h.RestoreDepartment)
}

// Health reports liveness, including database reachability.
func (h *Handler) Health(c *fiber.Ctx) error {
	if err := h.db.Ping(c.UserContext()); err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status": "degraded",
		})
	}
	return c.JSON(fiber.Map{"status": "ok"})
}
