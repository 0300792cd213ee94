package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/collabhub/collabhub/internal/sessions"
)

// SignInNotice describes a fresh device sign-in.
type SignInNotice struct {
	UserID    string
	Email     string
	SessionID string
	Device    sessions.DeviceInfo
	Location  sessions.Location
	At        time.Time
}

// Notifier is told about new sign-ins.
type Notifier interface {
	NotifySignIn(ctx context.Context, notice SignInNotice) error
}

// Service wraps authentication business rules.
type Service struct {
	repo     Repository
	registry *sessions.Registry
	notifier Notifier
	logger   *slog.Logger
}

// NewService constructs a new Service. notifier may be nil.
func NewService(repo Repository, registry *sessions.Registry, notifier Notifier, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, registry: registry, notifier: notifier, logger: logger}
}

// Authenticate validates email/password credentials.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*User, error) {
	user, err := s.repo.FindByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if !errors.Is(err, ErrUserNotFound) {
			s.logger.Warn("lookup user", slog.Any("error", err))
		}
		return nil, ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// SignIn authenticates the credentials and records a new device session.
func (s *Service) SignIn(ctx context.Context, email, password string, device sessions.DeviceInfo, loc sessions.Location) (Identity, error) {
	user, err := s.Authenticate(ctx, email, password)
	if err != nil {
		return Identity{}, err
	}
	actor := sessions.Actor{UserID: userKey(user.ID), Email: user.Email}
	rec, err := s.registry.ForDevice(actor, "").CreateSession(ctx, actor, device, loc)
	if err != nil {
		return Identity{}, fmt.Errorf("auth: sign in: %w", err)
	}
	id := Identity{
		UserID:    actor.UserID,
		Email:     actor.Email,
		Role:      user.Role,
		SessionID: rec.ID,
	}
	if s.notifier != nil {
		notice := SignInNotice{
			UserID:    id.UserID,
			Email:     id.Email,
			SessionID: rec.ID,
			Device:    rec.Device,
			Location:  rec.Location,
			At:        rec.CreatedAt,
		}
		if err := s.notifier.NotifySignIn(ctx, notice); err != nil {
			s.logger.Warn("sign-in notice", slog.String("session_id", rec.ID), slog.Any("error", err))
		}
	}
	return id, nil
}

// SignOut ends the device session of id. Ending an already ended session
// succeeds. Callers drop the local credential state regardless of the
// returned error.
func (s *Service) SignOut(ctx context.Context, id Identity) error {
	if id.SessionID == "" {
		return nil
	}
	reg := s.Registry(id)
	if err := reg.EndSpecificSession(ctx, id.SessionID); err != nil {
		return fmt.Errorf("auth: sign out: %w", err)
	}
	reg.Forget()
	return nil
}

// Registry returns a session registry bound to the device behind id.
func (s *Service) Registry(id Identity) *sessions.Registry {
	return s.registry.ForDevice(id.Actor(), id.SessionID)
}
