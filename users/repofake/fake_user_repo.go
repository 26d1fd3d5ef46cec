package fakeuserrepo

import (
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-auth-client/internal/errors"
	"github.com/jrsteele09/go-auth-client/users"
)

var _ users.UserRepo = (*FakeUserRepo)(nil)

// NowTimeFunc stamps DateJoined on new accounts. It can be overridden in tests.
var NowTimeFunc = time.Now

type FakeUserRepo struct {
	mu      sync.RWMutex
	byID    map[string]users.User
	idByKey map[string]string
}

func NewFakeUserRepo() *FakeUserRepo {
	return &FakeUserRepo{
		byID:    make(map[string]users.User),
		idByKey: make(map[string]string),
	}
}

func (r *FakeUserRepo) Upsert(user *users.User) error {
	key := users.NormalizeEmail(user.Email)
	if key == "" {
		return errors.Wrapf(errors.ErrInvalidUser, "[FakeUserRepo Upsert] e-mail is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if owner, taken := r.idByKey[key]; taken && owner != user.ID {
		if user.ID != "" {
			return errors.Wrapf(errors.ErrConflict, "[FakeUserRepo Upsert] e-mail %s belongs to another user", user.Email)
		}
		user.ID = owner
	}
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	if user.DateJoined.IsZero() {
		user.DateJoined = NowTimeFunc()
	}
	if prev, ok := r.byID[user.ID]; ok {
		delete(r.idByKey, users.NormalizeEmail(prev.Email))
	}
	r.byID[user.ID] = clone(*user)
	r.idByKey[key] = user.ID
	return nil
}

func (r *FakeUserRepo) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.byID[id]
	if !ok {
		return errors.Wrapf(errors.ErrNotFound, "[FakeUserRepo Delete] user %s", id)
	}
	delete(r.idByKey, users.NormalizeEmail(u.Email))
	delete(r.byID, id)
	return nil
}

func (r *FakeUserRepo) GetByEmail(email string) (*users.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.idByKey[users.NormalizeEmail(email)]
	if !ok {
		return nil, errors.Wrapf(errors.ErrNotFound, "[FakeUserRepo GetByEmail] %s", email)
	}
	u := clone(r.byID[id])
	return &u, nil
}

func (r *FakeUserRepo) GetByID(id string) (*users.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.byID[id]
	if !ok {
		return nil, errors.Wrapf(errors.ErrNotFound, "[FakeUserRepo GetByID] user %s", id)
	}
	u = clone(u)
	return &u, nil
}

func (r *FakeUserRepo) RecordLogin(id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.byID[id]
	if !ok {
		return errors.Wrapf(errors.ErrNotFound, "[FakeUserRepo RecordLogin] user %s", id)
	}
	u.LastLogin = &at
	r.byID[id] = u
	return nil
}

// List returns every account ordered by e-mail.
func (r *FakeUserRepo) List() ([]*users.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*users.User, 0, len(r.byID))
	for _, u := range r.byID {
		c := clone(u)
		out = append(out, &c)
	}
	slices.SortFunc(out, func(a, b *users.User) int {
		return strings.Compare(users.NormalizeEmail(a.Email), users.NormalizeEmail(b.Email))
	})
	return out, nil
}

func clone(u users.User) users.User {
	u.Permissions = slices.Clone(u.Permissions)
	u.Roles = slices.Clone(u.Roles)
	if u.LastLogin != nil {
		at := *u.LastLogin
		u.LastLogin = &at
	}
	return u
}
