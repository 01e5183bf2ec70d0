// ABOUTME: User and Profile models.
// ABOUTME: Users are trainers or clients; each owns at most one Profile.
package models

import (
	"strings"
	"time"
)

// Role distinguishes trainers from clients.
type Role string

const (
	RoleTrainer Role = "trainer"
	RoleClient  Role = "client"
)

// IsValidRole checks if a string is a known role.
func IsValidRole(s string) bool {
	return s == string(RoleTrainer) || s == string(RoleClient)
}

// User is a registered trainer or client.
type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Role         Role      `json:"role"`
	PasswordHash string    `json:"passwordHash"`
	CreatedAt    time.Time `json:"createdAt"`
}

func (u *User) RecordID() string      { return u.ID }
func (u *User) SetRecordID(id string) { u.ID = id }

// IsTrainer reports whether the user has the trainer role.
func (u *User) IsTrainer() bool { return u.Role == RoleTrainer }

// EmailMatches compares emails case-insensitively.
func (u *User) EmailMatches(email string) bool {
	return strings.EqualFold(strings.TrimSpace(u.Email), strings.TrimSpace(email))
}

// NewUser creates a User with a generated id and current timestamp.
func NewUser(name, email string, role Role, passwordHash string) *User {
	return &User{
		ID:           NewID(PrefixUser),
		Name:         name,
		Email:        strings.TrimSpace(email),
		Role:         role,
		PasswordHash: passwordHash,
		CreatedAt:    Now(),
	}
}

// Profile holds a user's body measurements and bio.
// Numeric fields are nil until the owner fills them in.
type Profile struct {
	ID        string   `json:"id"`
	UserID    string   `json:"userId"`
	Age       *int     `json:"age"`
	HeightCm  *float64 `json:"heightCm"`
	WeightKg  *float64 `json:"weightKg"`
	Bio       string   `json:"bio"`
	AvatarURL string   `json:"avatarUrl,omitempty"`
	Goals     string   `json:"goals,omitempty"`
}

func (p *Profile) RecordID() string      { return p.ID }
func (p *Profile) SetRecordID(id string) { p.ID = id }

// NewProfile creates an empty profile for a user.
func NewProfile(userID string) *Profile {
	return &Profile{
		ID:     NewID(PrefixProfile),
		UserID: userID,
	}
}

// Session identifies the signed-in user. It is never stored in a table.
type Session struct {
	UserID string `json:"userId"`
	Role   Role   `json:"role"`
	Name   string `json:"name"`
	Email  string `json:"email"`
}

// SessionFor builds the session of a signed-in user.
func SessionFor(u *User) *Session {
	return &Session{UserID: u.ID, Role: u.Role, Name: u.Name, Email: u.Email}
}

// IsTrainer reports whether the session belongs to a trainer.
func (s *Session) IsTrainer() bool { return s != nil && s.Role == RoleTrainer }
