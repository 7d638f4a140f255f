package memoauth

import (
	"context"
	"time"
)

// User is the persisted account record. Email is the subject of every token
// issued for the account and never changes.
type User struct {
	Email        string
	PasswordHash string
	Nickname     string
	BirthDate    time.Time
	CreatedAt    time.Time
}

// UserStore is the persistence boundary for accounts.
//
// SaveUser must return an error matching ErrEmailAlreadyExists when a
// concurrent signup already claimed the email.
type UserStore interface {
	FindUserByEmail(ctx context.Context, email string) (User, bool, error)
	UserExists(ctx context.Context, email string) (bool, error)
	SaveUser(ctx context.Context, user User) error
}

// SignupRequest is the input to Manager.Signup.
type SignupRequest struct {
	Email           string    `validate:"required,email"`
	Password        string    `validate:"required"`
	PasswordConfirm string
	Nickname        string    `validate:"required"`
	BirthDate       time.Time `validate:"required"`
}

// TokenPair is what Login and Reissue hand back to the client.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// Identity is the authenticated principal bound to a request.
type Identity struct {
	Email     string
	TokenID   string
	ExpiresAt time.Time
}
