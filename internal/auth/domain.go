package auth

import (
	"errors"
	"strconv"
	"time"

	"github.com/collabhub/collabhub/internal/policy"
	"github.com/collabhub/collabhub/internal/sessions"
)

var (
	// ErrInvalidCredentials indicates the email/password pair was rejected.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	// ErrInvalidToken indicates a bearer token failed verification.
	ErrInvalidToken = errors.New("auth: invalid token")
	// ErrUserNotFound is returned by repositories for unknown emails.
	ErrUserNotFound = errors.New("auth: user not found")
)

// User represents an authenticated user account.
type User struct {
	ID           int64
	Email        string
	PasswordHash string
	Role         policy.Role
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Source names where a request's credentials came from.
type Source string

// Credential sources.
const (
	SourceCookie Source = "cookie"
	SourceToken  Source = "token"
)

// Identity is the signed-in actor of one device together with the device
// session it created.
type Identity struct {
	UserID    string
	Email     string
	Role      policy.Role
	SessionID string
	Source    Source
}

// Actor returns the session owner for this identity.
func (i Identity) Actor() sessions.Actor {
	return sessions.Actor{UserID: i.UserID, Email: i.Email}
}

func userKey(id int64) string {
	return strconv.FormatInt(id, 10)
}
