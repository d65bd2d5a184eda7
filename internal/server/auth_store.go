package server

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"
)

// User is a registered account.
type User struct {
	ID           int64
	Username     string
	Role         string
	PasswordHash string
	CreatedAt    time.Time
}

var (
	ErrUsernameTaken      = errors.New("username is already taken")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// AuthStore keeps users in memory with bcrypt password hashes.
type AuthStore struct {
	mu     sync.RWMutex
	byName map[string]*User
	byID   map[int64]*User
	tokens map[string]int64
	nextID int64
	cost   int
}

func NewAuthStore() *AuthStore {
	return &AuthStore{
		byName: make(map[string]*User),
		byID:   make(map[int64]*User),
		tokens: make(map[string]int64),
		nextID: 1,
		cost:   bcrypt.DefaultCost,
	}
}

// Register creates a user. Ids are assigned sequentially from 1.
func (s *AuthStore) Register(username, password, role string) (*User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, errors.New("username and password are required")
	}
	if role == "" {
		role = "user"
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, errors.Wrap(err, "hash password")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byName[username]; exists {
		return nil, ErrUsernameTaken
	}
	u := &User{
		ID:           s.nextID,
		Username:     username,
		Role:         role,
		PasswordHash: string(hash),
		CreatedAt:    time.Now().UTC(),
	}
	s.nextID++
	s.byName[username] = u
	s.byID[u.ID] = u
	return u, nil
}

// Authenticate checks the password and issues a session token.
func (s *AuthStore) Authenticate(username, password string) (*User, string, error) {
	s.mu.RLock()
	u, exists := s.byName[strings.TrimSpace(username)]
	s.mu.RUnlock()
	if !exists {
		return nil, "", ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return nil, "", ErrInvalidCredentials
		}
		return nil, "", errors.Wrap(err, "compare password")
	}

	token := uuid.NewString()
	s.mu.Lock()
	s.tokens[token] = u.ID
	s.mu.Unlock()
	return u, token, nil
}

func (s *AuthStore) UserByID(id int64) (*User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.byID[id]
	return u, ok
}

// UserByToken resolves a token issued by Authenticate.
func (s *AuthStore) UserByToken(token string) (*User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.tokens[token]
	if !ok {
		return nil, false
	}
	u, ok := s.byID[id]
	return u, ok
}
