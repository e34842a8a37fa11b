package session

import (
	"context"
	"errors"
	"strings"
	"sync"

	"veggiemarket/internal/models"

	"github.com/google/uuid"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailTaken         = errors.New("email already registered")
)

// CredentialVerifier authenticates and registers users.
type CredentialVerifier interface {
	Verify(ctx context.Context, email, password string) (models.Identity, error)
	Register(ctx context.Context, email, password, name string) (models.Identity, error)
}

// Account is one entry of a StaticVerifier.
type Account struct {
	Identity models.Identity
	Password string
}

// DemoAccounts are the built-in demo logins.
func DemoAccounts() []Account {
	return []Account{
		{
			Identity: models.Identity{ID: "1", Email: "admin@veggiemarket.com", Name: "Admin User", IsAdmin: true},
			Password: "admin123",
		},
		{
			Identity: models.Identity{ID: "2", Email: "user@veggiemarket.com", Name: "Regular User"},
			Password: "user123",
		},
	}
}

// StaticVerifier checks credentials against a fixed in-memory list. It is
// meant for demos and tests only.
type StaticVerifier struct {
	mu       sync.RWMutex
	accounts []Account
}

// NewStaticVerifier creates a verifier over accounts.
func NewStaticVerifier(accounts ...Account) *StaticVerifier {
	return &StaticVerifier{accounts: append([]Account(nil), accounts...)}
}

// Verify matches email case-insensitively and password exactly.
func (v *StaticVerifier) Verify(_ context.Context, email, password string) (models.Identity, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	for _, a := range v.accounts {
		if strings.EqualFold(a.Identity.Email, email) && a.Password == password {
			return a.Identity, nil
		}
	}
	return models.Identity{}, ErrInvalidCredentials
}

// Register adds a non-admin account.
func (v *StaticVerifier) Register(_ context.Context, email, password, name string) (models.Identity, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	for _, a := range v.accounts {
		if strings.EqualFold(a.Identity.Email, email) {
			return models.Identity{}, ErrEmailTaken
		}
	}
	id := models.Identity{ID: uuid.NewString(), Email: email, Name: name}
	v.accounts = append(v.accounts, Account{Identity: id, Password: password})
	return id, nil
}
