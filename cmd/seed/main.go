package main

import (
	"context"
	"errors"
	"log"
	"time"

	"authkit/internal/config"
	"authkit/internal/database"
	"authkit/internal/util"
	"authkit/internal/validation"

	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"
)

// Seeds the base catalog: the module tree, per-module CRUD permissions, an
// admin role holding everything, the default user role, and an initial admin
// account. Safe to re-run; existing slugs are skipped.
func main() {
	_ = godotenv.Load()
	cfg := config.NewConfig()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db := database.NewDatabase()
	if err := db.Connect(ctx, cfg.Database.ConnString()); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	moduleNames := []string{"Dashboard", "Users", "Roles", "Modules", "Permissions", "Branches", "Departments"}
	actions := []string{"view", "create", "edit", "delete"}

	var allPermissionIDs []int64
	for order, name := range moduleNames {
		slug := validation.Slugify(name)
		module, err := db.CreateModule(ctx, database.CreateModuleParams{
			Name:     name,
			Slug:     slug,
			Icon:     slug,
			Route:    "/" + slug,
			Order:    order + 1,
			IsActive: true,
		})
		if errors.Is(err, database.ErrDuplicateSlug) {
			log.Printf("module %q already seeded, skipping", slug)
			continue
		}
		if err != nil {
			log.Fatalf("Failed to seed module %q: %v", slug, err)
		}

		for _, action := range actions {
			permission, err := db.CreatePermission(ctx, database.CreatePermissionParams{
				ModuleID: module.ID,
				Name:     name + " " + action,
				Slug:     slug + "-" + action,
				IsActive: true,
			})
			if errors.Is(err, database.ErrDuplicateSlug) {
				continue
			}
			if err != nil {
				log.Fatalf("Failed to seed permission %q: %v", slug+"-"+action, err)
			}
			allPermissionIDs = append(allPermissionIDs, permission.ID)
		}
	}

	adminRole, err := db.CreateRole(ctx, database.CreateRoleParams{
		Name:        "Administrator",
		Slug:        "admin",
		Description: "Full access to every module",
		IsActive:    true,
	})
	switch {
	case errors.Is(err, database.ErrDuplicateSlug):
		adminRole, err = db.GetRoleBySlug(ctx, "admin")
		if err != nil {
			log.Fatalf("Failed to load admin role: %v", err)
		}
	case err != nil:
		log.Fatalf("Failed to seed admin role: %v", err)
	}

	if len(allPermissionIDs) > 0 {
		if err := db.ReplaceRolePermissions(ctx, adminRole.ID, allPermissionIDs); err != nil {
			log.Fatalf("Failed to attach admin permissions: %v", err)
		}
	}

	if _, err := db.CreateRole(ctx, database.CreateRoleParams{
		Name:        "User",
		Slug:        cfg.Auth.DefaultRoleSlug,
		Description: "Default role for new registrations",
		IsActive:    true,
	}); err != nil && !errors.Is(err, database.ErrDuplicateSlug) {
		log.Fatalf("Failed to seed default role: %v", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte("admin12345"), cfg.Auth.BcryptCost)
	if err != nil {
		log.Fatalf("Failed to hash admin password: %v", err)
	}
	admin, _, err := db.CreateAccount(ctx, database.CreateAccountParams{
		User: database.CreateUserParams{
			Name:         "Administrator",
			Email:        "admin@example.com",
			PasswordHash: string(hash),
			IsActive:     true,
		},
		Person:  util.None[database.CreatePersonParams](),
		RoleIDs: []int64{adminRole.ID},
	})
	if errors.Is(err, database.ErrDuplicateSlug) {
		log.Println("admin account already seeded")
		return
	}
	if err != nil {
		log.Fatalf("Failed to seed admin account: %v", err)
	}

	log.Printf("Seed complete: admin user id=%d", admin.ID)
}
