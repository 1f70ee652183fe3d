package service

import (
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	"authkit/internal/config"
	"authkit/internal/database"
	"authkit/internal/token"
	"authkit/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type fakeAccountStore struct {
	nextID  int64
	users   map[int64]database.User
	people  map[int64]database.Person
	roles   map[string]database.Role
	userIDs map[int64][]int64 // user id -> attached role ids
}

func newFakeAccountStore() *fakeAccountStore {
	return &fakeAccountStore{
		nextID:  1,
		users:   map[int64]database.User{},
		people:  map[int64]database.Person{},
		roles:   map[string]database.Role{},
		userIDs: map[int64][]int64{},
	}
}

func (f *fakeAccountStore) GetUser(_ context.Context, params database.GetUserParams) (database.User, error) {
	for _, user := range f.users {
		if params.ID.IsSet && user.ID != params.ID.Val {
			continue
		}
		if params.Email.IsSet && user.Email != params.Email.Val {
			continue
		}
		if !params.IncludeDeleted && user.DeletedAt.IsSet {
			continue
		}
		return user, nil
	}
	return database.User{}, database.ErrUserNotFound
}

func (f *fakeAccountStore) CreateAccount(_ context.Context, params database.CreateAccountParams) (database.User, util.Optional[database.Person], error) {
	for _, user := range f.users {
		if user.Email == params.User.Email {
			return database.User{}, util.None[database.Person](), database.ErrDuplicateSlug
		}
	}

	user := database.User{
		ID:           f.nextID,
		Name:         params.User.Name,
		Email:        params.User.Email,
		PasswordHash: params.User.PasswordHash,
		IsActive:     params.User.IsActive,
	}
	f.nextID++
	f.users[user.ID] = user
	f.userIDs[user.ID] = params.RoleIDs

	person := util.None[database.Person]()
	if params.Person.IsSet {
		p := database.Person{
			ID:        f.nextID,
			UserID:    user.ID,
			FirstName: params.Person.Val.FirstName,
			LastName:  params.Person.Val.LastName,
		}
		f.nextID++
		f.people[user.ID] = p
		person = util.Some(p)
	}
	return user, person, nil
}

func (f *fakeAccountStore) RestoreUser(_ context.Context, id int64) (database.User, error) {
	user, ok := f.users[id]
	if !ok {
		return user, database.ErrUserNotFound
	}
	if !user.DeletedAt.IsSet {
		return user, database.ErrNotDeleted
	}
	user.DeletedAt = util.None[time.Time]()
	f.users[id] = user
	return user, nil
}

func (f *fakeAccountStore) SoftDeleteUser(_ context.Context, id int64, deletedBy util.Optional[int64]) error {
	user, ok := f.users[id]
	if !ok || user.DeletedAt.IsSet {
		return database.ErrUserNotFound
	}
	user.DeletedAt = util.Some(time.Now())
	user.DeletedBy = deletedBy
	f.users[id] = user
	return nil
}

func (f *fakeAccountStore) RenameUserEmail(_ context.Context, id int64, email string) error {
	user, ok := f.users[id]
	if !ok {
		return database.ErrUserNotFound
	}
	user.Email = email
	f.users[id] = user
	return nil
}

func (f *fakeAccountStore) GetRoleBySlug(_ context.Context, slug string) (database.Role, error) {
	role, ok := f.roles[slug]
	if !ok {
		return role, database.ErrRoleNotFound
	}
	return role, nil
}

func (f *fakeAccountStore) GetRoleByID(_ context.Context, id int64) (database.Role, error) {
	for _, role := range f.roles {
		if role.ID == id {
			return role, nil
		}
	}
	return database.Role{}, database.ErrRoleNotFound
}

func (f *fakeAccountStore) GetPersonByUserID(_ context.Context, userID int64) (database.Person, error) {
	person, ok := f.people[userID]
	if !ok {
		return person, database.ErrPersonNotFound
	}
	return person, nil
}

func (f *fakeAccountStore) ListUserRoles(context.Context, int64) ([]database.Role, error) {
	return nil, nil
}

func newTestAccountService(store *fakeAccountStore) *AccountService {
	tokens := token.NewService("test-secret", time.Hour, token.NewMemoryDenyList())
	cfg := config.AuthConfig{
		JWTSecret:       "test-secret",
		TokenTTL:        time.Hour,
		DefaultRoleSlug: "user",
		BcryptCost:      bcrypt.MinCost,
	}
	return NewAccountService(store, tokens, cfg, slog.Default())
}

func TestRegisterAssignsDefaultRole(t *testing.T) {
	store := newFakeAccountStore()
	store.roles["user"] = database.Role{ID: 5, Slug: "user"}
	svc := newTestAccountService(store)

	user, person, err := svc.Register(context.Background(), RegisterParams{
		Name:     "Ada",
		Email:    "ada@example.com",
		Password: "password123",
	})
	require.NoError(t, err)
	assert.False(t, person.IsSet)
	assert.Equal(t, []int64{5}, store.userIDs[user.ID])
	assert.True(t, user.IsActive)
}

func TestRegisterWithExplicitRoles(t *testing.T) {
	store := newFakeAccountStore()
	store.roles["user"] = database.Role{ID: 5, Slug: "user", IsActive: true}
	store.roles["editor"] = database.Role{ID: 8, Slug: "editor", IsActive: true}
	svc := newTestAccountService(store)

	// Explicit roles stack on the default; the overlap collapses.
	user, _, err := svc.Register(context.Background(), RegisterParams{
		Name:     "Ada",
		Email:    "ada@example.com",
		Password: "password123",
		RoleIDs:  []int64{8, 5},
	})
	require.NoError(t, err)
	assert.Equal(t, []int64{5, 8}, store.userIDs[user.ID])
}

func TestRegisterRejectsInactiveRole(t *testing.T) {
	store := newFakeAccountStore()
	store.roles["retired"] = database.Role{ID: 9, Slug: "retired", IsActive: false}
	svc := newTestAccountService(store)

	_, _, err := svc.Register(context.Background(), RegisterParams{
		Name:     "Ada",
		Email:    "ada@example.com",
		Password: "password123",
		RoleIDs:  []int64{9},
	})
	assert.ErrorIs(t, err, ErrRoleInactive)

	_, _, err = svc.Register(context.Background(), RegisterParams{
		Name:     "Ada",
		Email:    "ada@example.com",
		Password: "password123",
		RoleIDs:  []int64{999},
	})
	assert.ErrorIs(t, err, database.ErrRoleNotFound)
}

func TestRegisterWithPerson(t *testing.T) {
	store := newFakeAccountStore()
	svc := newTestAccountService(store)

	_, person, err := svc.Register(context.Background(), RegisterParams{
		Name:     "Ada",
		Email:    "ada@example.com",
		Password: "password123",
		Person: util.Some(database.CreatePersonParams{
			FirstName: "Ada",
			LastName:  "Lovelace",
		}),
	})
	require.NoError(t, err)
	require.True(t, person.IsSet)
	assert.Equal(t, "Ada", person.Val.FirstName)
}

func TestRegisterLiveEmailRejected(t *testing.T) {
	store := newFakeAccountStore()
	svc := newTestAccountService(store)

	_, _, err := svc.Register(context.Background(), RegisterParams{
		Name: "Ada", Email: "ada@example.com", Password: "password123",
	})
	require.NoError(t, err)

	_, _, err = svc.Register(context.Background(), RegisterParams{
		Name: "Other", Email: "ada@example.com", Password: "password123",
	})
	assert.ErrorIs(t, err, database.ErrDuplicateSlug)
}

func TestRegisterConflictWithDeletedAccount(t *testing.T) {
	store := newFakeAccountStore()
	svc := newTestAccountService(store)

	user, _, err := svc.Register(context.Background(), RegisterParams{
		Name: "Ada", Email: "ada@example.com", Password: "password123",
	})
	require.NoError(t, err)
	require.NoError(t, store.SoftDeleteUser(context.Background(), user.ID, util.None[int64]()))

	// Without force: conflict, pointing at the restorable account.
	conflicted, _, err := svc.Register(context.Background(), RegisterParams{
		Name: "Ada Again", Email: "ada@example.com", Password: "password123",
	})
	assert.ErrorIs(t, err, ErrEmailConflict)
	assert.Equal(t, user.ID, conflicted.ID)

	// With force: the deleted account's email is suffixed, the new one wins.
	fresh, _, err := svc.Register(context.Background(), RegisterParams{
		Name: "Ada Again", Email: "ada@example.com", Password: "password123",
		ForceCreate: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", fresh.Email)
	assert.NotEqual(t, user.ID, fresh.ID)

	old := store.users[user.ID]
	assert.True(t, strings.HasPrefix(old.Email, "ada@example.com_deleted_"))
}

func TestLogin(t *testing.T) {
	store := newFakeAccountStore()
	svc := newTestAccountService(store)

	_, _, err := svc.Register(context.Background(), RegisterParams{
		Name: "Ada", Email: "ada@example.com", Password: "password123",
	})
	require.NoError(t, err)

	user, signed, err := svc.Login(context.Background(), "ada@example.com", "password123")
	require.NoError(t, err)
	assert.NotEmpty(t, signed)
	assert.Equal(t, "ada@example.com", user.Email)

	_, _, err = svc.Login(context.Background(), "ada@example.com", "wrong-password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, _, err = svc.Login(context.Background(), "nobody@example.com", "password123")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLoginInactiveUser(t *testing.T) {
	store := newFakeAccountStore()
	svc := newTestAccountService(store)

	user, _, err := svc.Register(context.Background(), RegisterParams{
		Name: "Ada", Email: "ada@example.com", Password: "password123",
	})
	require.NoError(t, err)

	u := store.users[user.ID]
	u.IsActive = false
	store.users[user.ID] = u

	_, _, err = svc.Login(context.Background(), "ada@example.com", "password123")
	assert.ErrorIs(t, err, ErrUserInactive)
}

func TestDeleteSelfBlocked(t *testing.T) {
	store := newFakeAccountStore()
	svc := newTestAccountService(store)

	err := svc.Delete(context.Background(), 7, 7)
	assert.ErrorIs(t, err, ErrSelfDeletion)
}

func TestDeleteThenRestore(t *testing.T) {
	store := newFakeAccountStore()
	svc := newTestAccountService(store)

	user, _, err := svc.Register(context.Background(), RegisterParams{
		Name: "Ada", Email: "ada@example.com", Password: "password123",
	})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(context.Background(), user.ID, 99))
	assert.True(t, store.users[user.ID].DeletedAt.IsSet)

	restored, err := svc.Restore(context.Background(), user.ID)
	require.NoError(t, err)
	assert.False(t, restored.DeletedAt.IsSet)

	// Restoring a live account fails.
	_, err = svc.Restore(context.Background(), user.ID)
	assert.ErrorIs(t, err, database.ErrNotDeleted)
}
