package models

import "time"

// Identity is the signed-in user as seen by the rest of the app. It never
// carries a credential.
type Identity struct {
	ID      string `json:"id"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	IsAdmin bool   `json:"is_admin"`
}

// Profile is a registered user row.
type Profile struct {
	ID           string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Email        string    `json:"email" gorm:"uniqueIndex;type:varchar(255)"`
	Name         string    `json:"name" gorm:"type:varchar(100)"`
	PasswordHash string    `json:"-" gorm:"type:varchar(255)"`
	IsAdmin      bool      `json:"is_admin"`
	Phone        string    `json:"phone,omitempty" gorm:"type:varchar(20)"`
	Address      string    `json:"address,omitempty" gorm:"type:varchar(255)"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// TableName keeps the users table under its storefront name.
func (Profile) TableName() string { return "profiles" }

// Identity strips the credential from the profile.
func (p Profile) Identity() Identity {
	return Identity{ID: p.ID, Email: p.Email, Name: p.Name, IsAdmin: p.IsAdmin}
}
