package account

import (
	"context"
	"time"
)

// Teacher is the profile of a signed-in tutor.
type Teacher struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	PhotoURL  string    `json:"photo_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Credentials are the secret parts of a profile, never sent to clients.
type Credentials struct {
	PasswordHash string
	GoogleSub    string
}

// Store persists teacher profiles and refresh tokens.
type Store interface {
	CreateTeacher(ctx context.Context, t Teacher, cred Credentials) (Teacher, error)
	GetTeacher(ctx context.Context, id string) (Teacher, error)
	FindByEmail(ctx context.Context, email string) (Teacher, Credentials, error)
	FindByGoogleSub(ctx context.Context, sub string) (Teacher, error)
	LinkGoogle(ctx context.Context, id, sub string) error
	UpdateTeacher(ctx context.Context, t Teacher) error

	SaveRefreshToken(ctx context.Context, teacherID, token string, expiresAt time.Time) error
	// ConsumeRefreshToken revokes a live token and returns its owner.
	ConsumeRefreshToken(ctx context.Context, token string, now time.Time) (string, error)
	RevokeRefreshToken(ctx context.Context, token string) error
}
