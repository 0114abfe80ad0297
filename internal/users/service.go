// Package users resolves verified principals to canonical user ids.
package users

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/MarcoPoloResearchLab/notepilot/backend/internal/auth"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ErrInvalidIdentity indicates the principal did not contain a usable identifier.
var ErrInvalidIdentity = errors.New("users: invalid identity")

// ServiceConfig describes the dependencies required for user identity resolution.
type ServiceConfig struct {
	Database *gorm.DB
	Clock    func() time.Time
	Logger   *zap.Logger
}

// Service manages canonical user identifiers and provider-specific identities.
type Service struct {
	db     *gorm.DB
	now    func() time.Time
	logger *zap.Logger
	cache  sync.Map
}

func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, fmt.Errorf("users: database connection required")
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		db:     cfg.Database,
		now:    clock,
		logger: logger,
	}, nil
}

// ResolveCanonicalUserID returns the canonical user id for the principal, creating the identity
// mapping the first time a provider+subject pair is seen. The canonical id of a new identity is its subject.
func (s *Service) ResolveCanonicalUserID(ctx context.Context, principal auth.Principal) (string, error) {
	provider := normalize(principal.Provider)
	subject := normalize(principal.Subject)
	if provider == "" || subject == "" {
		return "", ErrInvalidIdentity
	}

	cacheKey := provider + ":" + subject
	if cachedIdentifier, ok := s.cache.Load(cacheKey); ok {
		if canonicalIdentifier, ok := cachedIdentifier.(string); ok {
			return canonicalIdentifier, nil
		}
	}

	var identity Identity
	err := s.db.WithContext(ctx).
		Where("provider = ? AND subject = ?", provider, subject).
		Take(&identity).
		Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		identity = Identity{
			Provider:    provider,
			Subject:     subject,
			UserID:      subject,
			Email:       normalize(principal.Email),
			DisplayName: normalize(principal.DisplayName),
			AvatarURL:   normalize(principal.AvatarURL),
			LastSeenAt:  s.now().UTC(),
		}
		if err := s.db.WithContext(ctx).Create(&identity).Error; err != nil {
			// a concurrent first login may have inserted the same pair
			if lookupErr := s.db.WithContext(ctx).
				Where("provider = ? AND subject = ?", provider, subject).
				Take(&identity).Error; lookupErr != nil {
				return "", err
			}
		}
	case err != nil:
		return "", err
	default:
		s.refreshProfile(ctx, identity, principal)
	}

	s.cache.Store(cacheKey, identity.UserID)
	return identity.UserID, nil
}

func (s *Service) refreshProfile(ctx context.Context, identity Identity, principal auth.Principal) {
	updates := map[string]interface{}{"last_seen_at": s.now().UTC()}
	if email := normalize(principal.Email); email != "" && email != identity.Email {
		updates["user_email"] = email
	}
	if display := normalize(principal.DisplayName); display != "" && display != identity.DisplayName {
		updates["user_display_name"] = display
	}
	if avatar := normalize(principal.AvatarURL); avatar != "" && avatar != identity.AvatarURL {
		updates["user_avatar_url"] = avatar
	}
	if err := s.db.WithContext(ctx).Model(&Identity{}).
		Where("provider = ? AND subject = ?", identity.Provider, identity.Subject).
		Updates(updates).
		Error; err != nil {
		s.logger.Warn("identity profile refresh failed",
			zap.String("provider", identity.Provider),
			zap.String("subject", identity.Subject),
			zap.Error(err),
		)
	}
}
