package kv

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/ibuddy-app/ibuddy-service/internal/keys"
	"github.com/ibuddy-app/ibuddy-service/internal/models"
	"github.com/ibuddy-app/ibuddy-service/internal/repositories"
	"github.com/ibuddy-app/ibuddy-service/internal/store"
)

// dummyHash is compared against when the user does not exist so a miss costs
// as much as a wrong password.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("ibuddy-timing-equaliser"), bcrypt.DefaultCost)

type userKV struct {
	users     store.Table
	passwords store.Table
	logger    *slog.Logger
	now       func() time.Time
	cost      int
}

func (r *userKV) hash(password string) (string, error) {
	cost := r.cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	h, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(h), nil
}

func (r *userKV) GetByID(ctx context.Context, id string) (*models.User, error) {
	item, err := get(ctx, r.users, rootKey(keys.User(id)))
	if err != nil {
		return nil, fmt.Errorf("get user %s: %w", id, err)
	}
	return decode[models.User](item)
}

func (r *userKV) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.GetByID(ctx, keys.UserID(email))
}

func (r *userKV) List(ctx context.Context) ([]*models.User, error) {
	items, err := r.users.Scan(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	users, err := decodeAll[models.User](items)
	if err != nil {
		return nil, err
	}
	sortUsers(users)
	return users, nil
}

func (r *userKV) ListActiveBuddies(ctx context.Context, now time.Time) ([]*models.User, error) {
	items, err := r.users.Scan(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("list buddies: %w", err)
	}
	users, err := decodeAll[models.User](items)
	if err != nil {
		return nil, err
	}
	active := users[:0]
	for _, u := range users {
		if u.IsActiveBuddy(now) {
			active = append(active, u)
		}
	}
	sortUsers(active)
	return active, nil
}

func sortUsers(users []*models.User) {
	sort.SliceStable(users, func(i, j int) bool {
		a, b := strings.ToLower(users[i].FullName()), strings.ToLower(users[j].FullName())
		if a != b {
			return a < b
		}
		return users[i].SearchableEmail < users[j].SearchableEmail
	})
}

// Create writes the password, then the user, then reads the user back. Any
// failure undoes the writes already made.
func (r *userKV) Create(ctx context.Context, user *models.User, password string) (*models.User, error) {
	hash, err := r.hash(password)
	if err != nil {
		return nil, err
	}

	now := r.now()
	u := *user
	u.ID = keys.UserID(user.Email)
	u.Email = strings.TrimSpace(user.Email)
	u.SearchableEmail = keys.NormalizeEmail(user.Email)
	u.CreatedAt = now
	u.UpdatedAt = now

	userKey := rootKey(keys.User(u.ID))
	passwordKey := rootKey(keys.Password(u.ID))

	var created *models.User
	err = runSaga(ctx,
		sagaStep{
			name: "password",
			do: func(ctx context.Context) error {
				_, err := create[models.Password](ctx, r.passwords, passwordKey, models.Password{UserID: u.ID, Hash: hash})
				return err
			},
			undo: func(ctx context.Context) error { return r.passwords.Delete(ctx, passwordKey) },
		},
		sagaStep{
			name: "user",
			do: func(ctx context.Context) error {
				var err error
				created, err = create[models.User](ctx, r.users, userKey, u)
				return err
			},
			undo: func(ctx context.Context) error { return r.users.Delete(ctx, userKey) },
		},
	)
	if err != nil {
		r.logger.Error("Failed to create user", "user_id", u.ID, "error", err)
		return nil, fmt.Errorf("create user %s: %w", u.ID, err)
	}
	return created, nil
}

func (r *userKV) Update(ctx context.Context, id string, patch repositories.UserPatch) (*models.User, error) {
	item, err := patchItem(patch, r.now())
	if err != nil {
		return nil, err
	}
	u, err := update[models.User](ctx, r.users, rootKey(keys.User(id)), item)
	if err != nil {
		return nil, fmt.Errorf("update user %s: %w", id, err)
	}
	return u, nil
}

func (r *userKV) ChangePassword(ctx context.Context, id, password string) error {
	hash, err := r.hash(password)
	if err != nil {
		return err
	}
	if _, err := update[models.Password](ctx, r.passwords, rootKey(keys.Password(id)), store.Item{"hash": hash}); err != nil {
		return fmt.Errorf("change password %s: %w", id, err)
	}
	return nil
}

func (r *userKV) VerifyLogin(ctx context.Context, email, password string) (*models.User, error) {
	id := keys.UserID(email)
	item, err := get(ctx, r.passwords, rootKey(keys.Password(id)))
	if err != nil {
		return nil, fmt.Errorf("verify login: %w", err)
	}
	rec, err := decode[models.Password](item)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		return nil, nil
	}
	if bcrypt.CompareHashAndPassword([]byte(rec.Hash), []byte(password)) != nil {
		return nil, nil
	}

	user, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("verify login: %w", err)
	}
	if user == nil {
		r.logger.Warn("Password without user record", "user_id", id)
	}
	return user, nil
}

// Delete removes the user record, then its password.
func (r *userKV) Delete(ctx context.Context, id string) error {
	if err := r.users.Delete(ctx, rootKey(keys.User(id))); err != nil {
		return fmt.Errorf("delete user %s: %w", id, err)
	}
	if err := r.passwords.Delete(ctx, rootKey(keys.Password(id))); err != nil {
		return fmt.Errorf("delete password %s: %w", id, err)
	}
	return nil
}

func (r *userKV) DeleteByEmail(ctx context.Context, email string) error {
	return r.Delete(ctx, keys.UserID(email))
}
