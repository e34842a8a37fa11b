package repositories

import (
	"context"

	"veggiemarket/internal/models"
)

// ProfileRepository defines the interface for user profile data access.
// Emails are stored and matched lowercased.
type ProfileRepository interface {
	Create(ctx context.Context, profile *models.Profile) error
	GetByEmail(ctx context.Context, email string) (*models.Profile, error)
	GetByID(ctx context.Context, id string) (*models.Profile, error)
	GetAll(ctx context.Context) ([]models.Profile, error)
}
