package repositories

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"veggiemarket/internal/models"

	"github.com/google/uuid"
)

// MemoryProfileRepository is an in-memory implementation of ProfileRepository.
type MemoryProfileRepository struct {
	profiles []models.Profile
	mu       sync.RWMutex
}

// NewMemoryProfileRepository creates a new instance of MemoryProfileRepository.
func NewMemoryProfileRepository() *MemoryProfileRepository {
	return &MemoryProfileRepository{}
}

// Create adds a profile. A duplicate email is rejected.
func (r *MemoryProfileRepository) Create(_ context.Context, profile *models.Profile) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	profile.Email = strings.ToLower(strings.TrimSpace(profile.Email))
	for _, p := range r.profiles {
		if p.Email == profile.Email {
			return fmt.Errorf("profile %s: %w", profile.Email, ErrDuplicate)
		}
	}
	if profile.ID == "" {
		profile.ID = uuid.New().String()
	}
	now := time.Now()
	profile.CreatedAt, profile.UpdatedAt = now, now
	r.profiles = append(r.profiles, *profile)
	return nil
}

// GetByEmail returns a profile by email, ignoring case.
func (r *MemoryProfileRepository) GetByEmail(_ context.Context, email string) (*models.Profile, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return r.find(func(p models.Profile) bool { return p.Email == email }, "email "+email)
}

// GetByID returns a profile by its ID.
func (r *MemoryProfileRepository) GetByID(_ context.Context, id string) (*models.Profile, error) {
	return r.find(func(p models.Profile) bool { return p.ID == id }, id)
}

func (r *MemoryProfileRepository) find(match func(models.Profile) bool, label string) (*models.Profile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.profiles {
		if match(p) {
			found := p
			return &found, nil
		}
	}
	return nil, fmt.Errorf("profile %s: %w", label, ErrNotFound)
}

// GetAll returns every profile in creation order.
func (r *MemoryProfileRepository) GetAll(_ context.Context) ([]models.Profile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return append([]models.Profile(nil), r.profiles...), nil
}
