package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"authkit/internal/config"
	"authkit/internal/database"
	"authkit/internal/token"
	"authkit/internal/util"

	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrInvalidCredentials hides whether the email or the password was wrong.
	ErrInvalidCredentials = errors.New("invalid email or password")

	// ErrUserInactive blocks login for deactivated accounts.
	ErrUserInactive = errors.New("user account is inactive")

	// ErrEmailConflict signals that the email belongs to a soft-deleted
	// account. The caller can restore it or force a fresh registration.
	ErrEmailConflict = errors.New("email belongs to a deleted account")

	// ErrSelfDeletion blocks a user from deleting their own account.
	ErrSelfDeletion = errors.New("cannot delete own account")

	// ErrRoleInactive rejects registration against a deactivated role.
	ErrRoleInactive = errors.New("role is not active")
)

// AccountStore is the slice of the database layer the account service needs.
type AccountStore interface {
	GetUser(ctx context.Context, params database.GetUserParams) (database.User, error)
	CreateAccount(ctx context.Context, params database.CreateAccountParams) (database.User, util.Optional[database.Person], error)
	RestoreUser(ctx context.Context, id int64) (database.User, error)
	SoftDeleteUser(ctx context.Context, id int64, deletedBy util.Optional[int64]) error
	RenameUserEmail(ctx context.Context, id int64, email string) error
	GetRoleBySlug(ctx context.Context, slug string) (database.Role, error)
	GetRoleByID(ctx context.Context, id int64) (database.Role, error)
	GetPersonByUserID(ctx context.Context, userID int64) (database.Person, error)
	ListUserRoles(ctx context.Context, userID int64) ([]database.Role, error)
}

// AccountService owns the identity lifecycle: registration with its
// restore-or-force conflict flow, login, logout, and account deletion.
type AccountService struct {
	store  AccountStore
	tokens *token.Service
	cfg    config.AuthConfig
	logger *slog.Logger
}

func NewAccountService(store AccountStore, tokens *token.Service, cfg config.AuthConfig, logger *slog.Logger) *AccountService {
	return &AccountService{store: store, tokens: tokens, cfg: cfg, logger: logger}
}

type RegisterParams struct {
	Name     string
	Email    string
	Password string
	Person   util.Optional[database.CreatePersonParams]
	ActorID  util.Optional[int64]

	// RoleIDs attaches explicit roles on top of the configured default.
	// Each must name a live, active role.
	RoleIDs []int64

	// ForceCreate resolves an email conflict with a soft-deleted account by
	// renaming the old account's email and registering fresh.
	ForceCreate bool
}

// Register creates the user, optional person profile, and default role
// assignment in one transaction.
//
// When the email is held by a soft-deleted account, the result is
// ErrEmailConflict unless ForceCreate is set, in which case the deleted
// account's email is suffixed to free the address.
func (s *AccountService) Register(ctx context.Context, params RegisterParams) (database.User, util.Optional[database.Person], error) {
	none := util.None[database.Person]()

	existing, err := s.store.GetUser(ctx, database.GetUserParams{
		Email:          util.Some(params.Email),
		IncludeDeleted: true,
	})
	switch {
	case err == nil && !existing.DeletedAt.IsSet:
		return database.User{}, none, database.ErrDuplicateSlug
	case err == nil && existing.DeletedAt.IsSet:
		if !params.ForceCreate {
			return existing, none, ErrEmailConflict
		}
		renamed := fmt.Sprintf("%s_deleted_%d", existing.Email, time.Now().Unix())
		if err := s.store.RenameUserEmail(ctx, existing.ID, renamed); err != nil {
			return database.User{}, none, err
		}
		s.logger.Info("freed email held by deleted account",
			"deleted_user_id", existing.ID, "renamed_email", renamed)
	case errors.Is(err, database.ErrUserNotFound):
		// Address is free.
	default:
		return database.User{}, none, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(params.Password), s.cfg.BcryptCost)
	if err != nil {
		return database.User{}, none, fmt.Errorf("service: failed to hash password: %w", err)
	}

	var roleIDs []int64
	seen := make(map[int64]struct{})
	if s.cfg.DefaultRoleSlug != "" {
		role, err := s.store.GetRoleBySlug(ctx, s.cfg.DefaultRoleSlug)
		if err == nil {
			roleIDs = append(roleIDs, role.ID)
			seen[role.ID] = struct{}{}
		} else if !errors.Is(err, database.ErrRoleNotFound) {
			return database.User{}, none, err
		}
	}
	for _, roleID := range params.RoleIDs {
		if _, ok := seen[roleID]; ok {
			continue
		}
		role, err := s.store.GetRoleByID(ctx, roleID)
		if err != nil {
			return database.User{}, none, err
		}
		if !role.IsActive {
			return database.User{}, none, ErrRoleInactive
		}
		roleIDs = append(roleIDs, role.ID)
		seen[role.ID] = struct{}{}
	}

	user, person, err := s.store.CreateAccount(ctx, database.CreateAccountParams{
		User: database.CreateUserParams{
			Name:         params.Name,
			Email:        params.Email,
			PasswordHash: string(hash),
			IsActive:     true,
			CreatedBy:    params.ActorID,
		},
		Person:  params.Person,
		RoleIDs: roleIDs,
	})
	if err != nil {
		return user, person, err
	}

	s.logger.Info("user registered", "user_id", user.ID, "email", user.Email)
	return user, person, nil
}

// Login verifies credentials and issues an access token.
func (s *AccountService) Login(ctx context.Context, email, password string) (database.User, string, error) {
	user, err := s.store.GetUser(ctx, database.GetUserParams{Email: util.Some(email)})
	if err != nil {
		if errors.Is(err, database.ErrUserNotFound) {
			return user, "", ErrInvalidCredentials
		}
		return user, "", err
	}
	if !user.IsActive {
		return user, "", ErrUserInactive
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return user, "", ErrInvalidCredentials
	}

	signed, err := s.tokens.Issue(user.ID, user.Email)
	if err != nil {
		return user, "", err
	}

	s.logger.Info("user logged in", "user_id", user.ID)
	return user, signed, nil
}

// Logout revokes the presented token.
func (s *AccountService) Logout(ctx context.Context, claims token.Claims) error {
	if err := s.tokens.Revoke(ctx, claims); err != nil {
		return err
	}
	s.logger.Info("user logged out", "user_id", claims.UserID)
	return nil
}

// Refresh rotates the token: the old one is revoked, a new one issued.
func (s *AccountService) Refresh(ctx context.Context, claims token.Claims) (string, error) {
	return s.tokens.Refresh(ctx, claims)
}

// Profile loads the user with their person record and roles, for /me.
func (s *AccountService) Profile(ctx context.Context, userID int64) (database.User, util.Optional[database.Person], []database.Role, error) {
	user, err := s.store.GetUser(ctx, database.GetUserParams{ID: util.Some(userID)})
	if err != nil {
		return user, util.None[database.Person](), nil, err
	}

	person := util.None[database.Person]()
	p, err := s.store.GetPersonByUserID(ctx, userID)
	if err == nil {
		person = util.Some(p)
	} else if !errors.Is(err, database.ErrPersonNotFound) {
		return user, person, nil, err
	}

	roles, err := s.store.ListUserRoles(ctx, userID)
	if err != nil {
		return user, person, nil, err
	}
	return user, person, roles, nil
}

// Delete soft-deletes a user. Users cannot delete themselves.
func (s *AccountService) Delete(ctx context.Context, userID int64, actorID int64) error {
	if userID == actorID {
		return ErrSelfDeletion
	}
	if err := s.store.SoftDeleteUser(ctx, userID, util.Some(actorID)); err != nil {
		return err
	}
	s.logger.Info("user deleted", "user_id", userID, "actor_id", actorID)
	return nil
}

// Restore brings a soft-deleted user back.
func (s *AccountService) Restore(ctx context.Context, userID int64) (database.User, error) {
	user, err := s.store.RestoreUser(ctx, userID)
	if err != nil {
		return user, err
	}
	s.logger.Info("user restored", "user_id", user.ID)
	return user, nil
}
