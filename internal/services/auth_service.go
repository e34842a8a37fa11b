package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"veggiemarket/internal/models"
	"veggiemarket/internal/repositories"
	"veggiemarket/internal/session"

	"github.com/dgrijalva/jwt-go"
	"golang.org/x/crypto/bcrypt"
)

// Claims is the JWT payload issued at login.
type Claims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Admin  bool   `json:"admin"`
	jwt.StandardClaims
}

// AuthService verifies credentials against the profiles table and issues
// tokens. It satisfies session.CredentialVerifier.
type AuthService struct {
	profiles  repositories.ProfileRepository
	jwtSecret []byte
	tokenTTL  time.Duration
}

// NewAuthService creates a new AuthService.
func NewAuthService(profiles repositories.ProfileRepository, jwtSecret string, tokenTTL time.Duration) *AuthService {
	if tokenTTL <= 0 {
		tokenTTL = 24 * time.Hour
	}
	return &AuthService{
		profiles:  profiles,
		jwtSecret: []byte(jwtSecret),
		tokenTTL:  tokenTTL,
	}
}

var _ session.CredentialVerifier = (*AuthService)(nil)

// Verify checks email and password. Unknown email and wrong password both
// yield session.ErrInvalidCredentials.
func (s *AuthService) Verify(ctx context.Context, email, password string) (models.Identity, error) {
	profile, err := s.profiles.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return models.Identity{}, session.ErrInvalidCredentials
		}
		return models.Identity{}, fmt.Errorf("failed to look up profile: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(profile.PasswordHash), []byte(password)); err != nil {
		return models.Identity{}, session.ErrInvalidCredentials
	}
	return profile.Identity(), nil
}

// Register creates a customer profile with a bcrypt hashed password.
func (s *AuthService) Register(ctx context.Context, email, password, name string) (models.Identity, error) {
	profile, err := s.createProfile(ctx, email, password, name, false)
	if err != nil {
		return models.Identity{}, err
	}
	return profile.Identity(), nil
}

func (s *AuthService) createProfile(ctx context.Context, email, password, name string, admin bool) (*models.Profile, error) {
	if existing, err := s.profiles.GetByEmail(ctx, email); err == nil && existing != nil {
		return nil, session.ErrEmailTaken
	} else if err != nil && !errors.Is(err, repositories.ErrNotFound) {
		return nil, fmt.Errorf("failed to look up profile: %w", err)
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	profile := &models.Profile{Email: email, Name: name, PasswordHash: string(hashedPassword), IsAdmin: admin}
	if err := s.profiles.Create(ctx, profile); err != nil {
		// Someone else registered the email since the lookup.
		if errors.Is(err, repositories.ErrDuplicate) {
			return nil, session.ErrEmailTaken
		}
		return nil, fmt.Errorf("failed to register user: %w", err)
	}
	return profile, nil
}

// SeedAccounts makes sure every account exists as a profile. Existing
// emails are left untouched.
func (s *AuthService) SeedAccounts(ctx context.Context, accounts ...session.Account) error {
	for _, a := range accounts {
		_, err := s.createProfile(ctx, a.Identity.Email, a.Password, a.Identity.Name, a.Identity.IsAdmin)
		if err != nil && !errors.Is(err, session.ErrEmailTaken) {
			return err
		}
	}
	return nil
}

// ListProfiles returns every registered profile.
func (s *AuthService) ListProfiles(ctx context.Context) ([]models.Profile, error) {
	return s.profiles.GetAll(ctx)
}

// IssueToken signs a JWT for id.
func (s *AuthService) IssueToken(id models.Identity) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID: id.ID,
		Email:  id.Email,
		Admin:  id.IsAdmin,
		StandardClaims: jwt.StandardClaims{
			ExpiresAt: now.Add(s.tokenTTL).Unix(),
			IssuedAt:  now.Unix(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return tokenString, nil
}

// ValidateToken parses and validates a JWT token, returning the claims if valid.
func (s *AuthService) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}
	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}
	return nil, fmt.Errorf("invalid token")
}
