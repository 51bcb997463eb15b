package storage

import (
	"path/filepath"
	"strings"
	"sync"
	"time"
)

type User struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"password_hash"`
	IsAdmin      bool      `json:"is_admin"`
	CreatedAt    time.Time `json:"created_at"`
}

type UserStore struct {
	mu   sync.Mutex
	path string
}

func NewUserStore(dir string) *UserStore {
	return &UserStore{path: filepath.Join(dir, "users.json")}
}

func (s *UserStore) Create(email, name, passwordHash string) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := readCollection[User](s.path)
	if err != nil {
		return User{}, err
	}

	email = strings.ToLower(strings.TrimSpace(email))
	var nextID int64 = 1
	for _, u := range users {
		if u.Email == email {
			return User{}, ErrEmailTaken
		}
		if u.ID >= nextID {
			nextID = u.ID + 1
		}
	}

	user := User{
		ID:           nextID,
		Email:        email,
		Name:         name,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC(),
	}
	users = append(users, user)
	if err := writeCollection(s.path, users); err != nil {
		return User{}, err
	}
	return user, nil
}

func (s *UserStore) GetByID(id int64) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := readCollection[User](s.path)
	if err != nil {
		return User{}, err
	}
	for _, u := range users {
		if u.ID == id {
			return u, nil
		}
	}
	return User{}, ErrNotFound
}

func (s *UserStore) GetByEmail(email string) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := readCollection[User](s.path)
	if err != nil {
		return User{}, err
	}
	email = strings.ToLower(strings.TrimSpace(email))
	for _, u := range users {
		if u.Email == email {
			return u, nil
		}
	}
	return User{}, ErrNotFound
}

func (s *UserStore) Count() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := readCollection[User](s.path)
	if err != nil {
		return 0, err
	}
	return len(users), nil
}
