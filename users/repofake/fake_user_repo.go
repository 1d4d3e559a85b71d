package fakeuserrepo

import (
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-session-gate/internal/errors"
	"github.com/jrsteele09/go-session-gate/users"
)

var _ users.UserRepo = (*FakeUserRepo)(nil)

type FakeUserRepo struct {
	users    map[string]*users.User
	emailIds map[string]string // email to user id
	lock     sync.RWMutex
}

func NewFakeUserRepo() *FakeUserRepo {
	return &FakeUserRepo{
		users:    make(map[string]*users.User),
		emailIds: make(map[string]string),
	}
}

func (ur *FakeUserRepo) Upsert(user *users.User) error {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	ur.users[user.ID] = user
	ur.emailIds[normaliseEmail(user.Email)] = user.ID
	return nil
}

func (ur *FakeUserRepo) Delete(email string) error {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	userID, ok := ur.emailIds[normaliseEmail(email)]
	if !ok {
		return errors.ErrAccountNotFound
	}
	delete(ur.emailIds, normaliseEmail(email))
	delete(ur.users, userID)
	return nil
}

func (ur *FakeUserRepo) GetByEmail(email string) (*users.User, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	id, ok := ur.emailIds[normaliseEmail(email)]
	if !ok {
		return nil, errors.ErrAccountNotFound
	}
	return ur.users[id], nil
}

func (ur *FakeUserRepo) GetByID(id string) (*users.User, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	if _, ok := ur.users[id]; !ok {
		return nil, errors.ErrAccountNotFound
	}
	return ur.users[id], nil
}

func (ur *FakeUserRepo) GetByProvider(provider, providerID string) (*users.User, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	for _, u := range ur.users {
		if u.HasProvider(provider, providerID) {
			return u, nil
		}
	}
	return nil, errors.ErrAccountNotFound
}

// Len returns the number of stored accounts
func (ur *FakeUserRepo) Len() int {
	ur.lock.RLock()
	defer ur.lock.RUnlock()
	return len(ur.users)
}

func normaliseEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
