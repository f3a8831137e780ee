// Package auth is the identity context: it resolves credentials into actors
// and manages the Redis-backed session cache.
package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/taskstream/backend/domain"
	"github.com/taskstream/backend/repository"
)

type UseCase struct {
	users    repository.UserRepository
	sessions repository.SessionRepository
	logger   *zap.Logger
}

func New(users repository.UserRepository, sessions repository.SessionRepository, logger *zap.Logger) *UseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UseCase{
		users:    users,
		sessions: sessions,
		logger:   logger,
	}
}

func (uc *UseCase) CreateSession(ctx context.Context, userID string, ttl time.Duration) (*domain.Session, error) {
	user, err := uc.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !user.IsActive() {
		return nil, domain.ErrUnauthorized
	}

	session := &domain.Session{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		Role:      user.Role,
		CreatedAt: time.Now(),
		ExpiresAt: time.Now().Add(ttl),
	}

	if err := uc.sessions.Save(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

func (uc *UseCase) GetSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	session, err := uc.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.IsExpired(time.Now()) {
		_ = uc.sessions.Delete(ctx, sessionID)
		return nil, domain.ErrSessionNotFound
	}
	return session, nil
}

func (uc *UseCase) RefreshSession(ctx context.Context, sessionID string, ttl time.Duration) (*domain.Session, error) {
	session, err := uc.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := uc.sessions.Extend(ctx, sessionID, int(ttl.Seconds())); err != nil {
		return nil, err
	}
	session.ExpiresAt = time.Now().Add(ttl)
	return session, nil
}

func (uc *UseCase) RevokeSession(ctx context.Context, sessionID string) error {
	return uc.sessions.Delete(ctx, sessionID)
}

// Resolve maps a verified credential subject onto an Actor. Unknown or
// deactivated users fail as unauthorized, never as not-found, so the
// middleware exposes nothing about which ids exist.
func (uc *UseCase) Resolve(ctx context.Context, userID string) (domain.Actor, error) {
	user, err := uc.users.GetByID(ctx, userID)
	if err != nil {
		if domain.IsDomainError(err, domain.ErrCodeNotFound) {
			return domain.Actor{}, domain.ErrUnauthorized
		}
		return domain.Actor{}, err
	}
	if !user.IsActive() {
		return domain.Actor{}, domain.ErrUnauthorized
	}
	return user.Actor(), nil
}

// GetUser returns a user record; admin only.
func (uc *UseCase) GetUser(ctx context.Context, actor domain.Actor, id string) (*domain.User, error) {
	if !actor.Active {
		return nil, domain.ErrUnauthorized
	}
	if actor.Role != domain.RoleAdmin {
		return nil, domain.ErrForbidden
	}
	return uc.users.GetByID(ctx, id)
}

// SaveUser provisions or updates a user record (role, activation); admin only.
func (uc *UseCase) SaveUser(ctx context.Context, actor domain.Actor, user *domain.User) (*domain.User, error) {
	if !actor.Active {
		return nil, domain.ErrUnauthorized
	}
	if actor.Role != domain.RoleAdmin {
		return nil, domain.ErrForbidden
	}
	if user == nil || user.ID == "" {
		return nil, domain.ErrInvalidPayload
	}
	if !domain.ValidRole(user.Role) {
		return nil, domain.NewError(domain.ErrCodeValidation, "unknown role")
	}

	if err := uc.users.Upsert(ctx, user); err != nil {
		return nil, err
	}
	uc.logger.Info("user record saved",
		zap.String("user_id", user.ID),
		zap.String("role", string(user.Role)),
		zap.Bool("is_active", user.Active))
	return user, nil
}
