package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/leadvault/leadvault/internal/models"
	"github.com/leadvault/leadvault/pkg/crypto"
	"github.com/leadvault/leadvault/pkg/metrics"
)

// DefaultSessionTTL is the fallback session lifetime.
const DefaultSessionTTL = 30 * 24 * time.Hour

// SessionConfig describes tunable behaviour for the SessionService.
type SessionConfig struct {
	TTL         time.Duration
	TokenLength int
	Clock       func() time.Time
}

// SessionService manages creation, resolution, and removal of cookie-token
// sessions. Expiry is enforced by callers; resolution never deletes rows.
type SessionService struct {
	db       *gorm.DB
	ttl      time.Duration
	tokenLen int
	now      func() time.Time
}

// NewSessionService constructs a session manager backed by the provided database.
func NewSessionService(db *gorm.DB, cfg SessionConfig) (*SessionService, error) {
	if db == nil {
		return nil, errors.New("session service: db is required")
	}

	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}

	length := cfg.TokenLength
	if length <= 0 {
		length = 48
	}

	clock := time.Now
	if cfg.Clock != nil {
		clock = cfg.Clock
	}

	return &SessionService{
		db:       db,
		ttl:      ttl,
		tokenLen: length,
		now:      clock,
	}, nil
}

// TTL exposes the configured session lifetime so handlers can align cookie
// max-age with the stored expiry.
func (s *SessionService) TTL() time.Duration {
	return s.ttl
}

// Create persists a new session for the user and returns it with the opaque
// token populated. The caller sets the token as an httpOnly cookie.
func (s *SessionService) Create(ctx context.Context, userID string) (*models.Session, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, errors.New("session service: user id is required")
	}

	token, err := crypto.GenerateToken(s.tokenLen)
	if err != nil {
		return nil, fmt.Errorf("session service: generate token: %w", err)
	}

	now := s.now()
	session := &models.Session{
		Token:      token,
		UserID:     userID,
		ExpiresAt:  now.Add(s.ttl),
		LastUsedAt: now,
	}

	if err := s.db.WithContext(ctx).Create(session).Error; err != nil {
		return nil, fmt.Errorf("session service: create session: %w", err)
	}

	metrics.ActiveSessions.Inc()

	return session, nil
}

// GetSessionAndUser resolves a cookie token to its session with the user
// preloaded. Absence is (nil, nil); callers must check expiry themselves.
func (s *SessionService) GetSessionAndUser(ctx context.Context, token string) (*models.Session, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, nil
	}

	var session models.Session
	err := s.db.WithContext(ctx).
		Preload("User").
		Where("token = ?", token).
		Take(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("session service: find session: %w", err)
	}

	return &session, nil
}

// Touch records session activity. Failures are not fatal to the request.
func (s *SessionService) Touch(ctx context.Context, sessionID string) error {
	return s.db.WithContext(ctx).
		Model(&models.Session{}).
		Where("id = ?", sessionID).
		Update("last_used_at", s.now()).Error
}

// Delete removes a session by token. Deleting an absent token is a no-op.
func (s *SessionService) Delete(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil
	}

	result := s.db.WithContext(ctx).Where("token = ?", token).Delete(&models.Session{})
	if result.Error != nil {
		return fmt.Errorf("session service: delete session: %w", result.Error)
	}

	if result.RowsAffected > 0 {
		metrics.ActiveSessions.Sub(float64(result.RowsAffected))
	}
	return nil
}

// CleanupExpired removes sessions past their expiry and reports how many rows
// were swept.
func (s *SessionService) CleanupExpired(ctx context.Context) (int64, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	result := s.db.WithContext(ctx).
		Where("expires_at < ?", s.now()).
		Delete(&models.Session{})
	if result.Error != nil {
		return 0, fmt.Errorf("session service: cleanup expired sessions: %w", result.Error)
	}

	if result.RowsAffected > 0 {
		metrics.ActiveSessions.Sub(float64(result.RowsAffected))
	}

	return result.RowsAffected, nil
}
