package inmemdb

import (
	"context"
	"strings"

	"github.com/truonghoc/backend/core"
	"github.com/truonghoc/backend/core/user"
)

type userRepository struct {
	db *table[user.User]
}

var _ user.Repository = (*userRepository)(nil)

func NewUserRepository(db *DB) user.Repository {
	return &userRepository{db: db.user}
}

var userComparators = comparators[user.User]{
	"name":       func(a, b user.User) int { return compareFold(a.Name, b.Name) },
	"username":   func(a, b user.User) int { return compareFold(a.Username, b.Username) },
	"email":      func(a, b user.User) int { return compareFold(a.Email, b.Email) },
	"is_active":  func(a, b user.User) int { return compareBool(a.IsActive, b.IsActive) },
	"created_at": func(a, b user.User) int { return compareTime(a.CreatedAt, b.CreatedAt) },
	"updated_at": func(a, b user.User) int { return compareTime(a.UpdatedAt, b.UpdatedAt) },
	"last_login": func(a, b user.User) int { return compareTime(a.LastLogin, b.LastLogin) },
}

func (repo *userRepository) checkUniqueness(username, email string, excludedUsers []user.User) error {
	excluded := make(map[string]struct{}, len(excludedUsers))
	for _, u := range excludedUsers {
		excluded[u.ID] = struct{}{}
	}
	for _, usr := range repo.db.rows {
		if _, ok := excluded[usr.ID]; ok {
			continue
		}
		if username != "" && usr.Username == username {
			return user.ErrUsernameExists
		}
		if email != "" && usr.Email == email {
			return user.ErrEmailExists
		}
	}
	return nil
}

func (repo *userRepository) CheckUsernameUniqueness(_ context.Context, username, email string, excludedUsers ...user.User) error {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	return repo.checkUniqueness(username, email, excludedUsers)
}

func (repo *userRepository) CreateUser(_ context.Context, usr user.User) (user.User, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if err := repo.checkUniqueness(usr.Username, usr.Email, nil); err != nil {
		return user.User{}, err
	}
	usr.ID = newID()
	repo.db.rows = append(repo.db.rows, usr)
	return usr, nil
}

func (repo *userRepository) QueryUsers(_ context.Context, filter *user.QueryFilter, ordering []core.DBOrdering) ([]user.User, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	users := repo.db.filter(func(u user.User) bool {
		if filter == nil {
			return true
		}
		if filter.Search != "" &&
			!(containsFold(u.Name, filter.Search) || containsFold(u.Username, filter.Search) || containsFold(u.Email, filter.Search)) {
			return false
		}
		if len(filter.Roles) > 0 && !hasAnyRole(u, filter.Roles) {
			return false
		}
		if filter.IsActive != nil && u.IsActive != *filter.IsActive {
			return false
		}
		return true
	})
	orderBy(users, ordering, userComparators)
	return users, nil
}

// hasAnyRole reports whether any role of u starts with one of roles.
func hasAnyRole(u user.User, roles []string) bool {
	for _, prefix := range roles {
		for _, role := range u.Roles {
			if strings.HasPrefix(role, prefix) {
				return true
			}
		}
	}
	return false
}

func (repo *userRepository) GetUser(_ context.Context, filter user.GetFilter) (user.User, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var pred func(u user.User) bool
	switch {
	case filter.ID != "":
		pred = func(u user.User) bool { return u.ID == filter.ID }
	case filter.Username != "":
		pred = func(u user.User) bool { return u.Username == filter.Username }
	case filter.Email != "":
		pred = func(u user.User) bool { return u.Email == filter.Email }
	case filter.UsernameOrEmail != "":
		pred = func(u user.User) bool {
			return u.Username == filter.UsernameOrEmail || u.Email == filter.UsernameOrEmail
		}
	default:
		return user.User{}, user.ErrNotFound
	}

	if i := repo.db.find(pred); i >= 0 {
		return repo.db.rows[i], nil
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) GetUsersByID(_ context.Context, ids ...string) ([]user.User, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	wanted := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		wanted[id] = struct{}{}
	}
	return repo.db.filter(func(u user.User) bool {
		_, ok := wanted[u.ID]
		return ok
	}), nil
}

func (repo *userRepository) UpdateUser(_ context.Context, usr user.User) (user.User, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	i := repo.db.find(func(u user.User) bool { return u.ID == usr.ID })
	if i < 0 {
		return user.User{}, user.ErrNotFound
	}
	if err := repo.checkUniqueness(usr.Username, usr.Email, []user.User{usr}); err != nil {
		return user.User{}, err
	}
	repo.db.rows[i] = usr
	return usr, nil
}
