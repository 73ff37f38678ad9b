package auth

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/leadvault/leadvault/internal/models"
	"github.com/leadvault/leadvault/pkg/crypto"
	"github.com/leadvault/leadvault/pkg/logger"
	"github.com/leadvault/leadvault/pkg/mail"
)

const (
	defaultVerificationExpiry     = 24 * time.Hour
	defaultVerificationTokenBytes = 32
)

var (
	// ErrVerificationNotFound indicates the token does not exist or was
	// already consumed; the two cases are indistinguishable by design.
	ErrVerificationNotFound = errors.New("verification: not found")
	// ErrVerificationExpired indicates the token exists but is past its expiry.
	ErrVerificationExpired = errors.New("verification: expired")
)

// VerificationOption customises the VerificationService.
type VerificationOption func(*VerificationService)

// WithVerificationBaseURL sets the base URL used in magic links.
func WithVerificationBaseURL(url string) VerificationOption {
	return func(s *VerificationService) {
		s.baseURL = strings.TrimRight(url, "/")
	}
}

// WithVerificationExpiry overrides the token lifetime.
func WithVerificationExpiry(d time.Duration) VerificationOption {
	return func(s *VerificationService) {
		if d > 0 {
			s.expiry = d
		}
	}
}

// WithVerificationClock injects a custom time source.
func WithVerificationClock(clock func() time.Time) VerificationOption {
	return func(s *VerificationService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// VerificationService manages the single-use magic-link tokens backing email
// authentication. Tokens are persisted (hashed) and consumed atomically, so
// semantics hold across process instances sharing the database.
type VerificationService struct {
	db      *gorm.DB
	mailer  mail.Mailer
	baseURL string
	expiry  time.Duration
	now     func() time.Time
}

// NewVerificationService constructs a verification service with the provided dependencies.
func NewVerificationService(db *gorm.DB, mailer mail.Mailer, opts ...VerificationOption) (*VerificationService, error) {
	if db == nil {
		return nil, errors.New("verification service: db is required")
	}

	service := &VerificationService{
		db:     db,
		mailer: mailer,
		expiry: defaultVerificationExpiry,
		now:    time.Now,
	}

	for _, opt := range opts {
		opt(service)
	}

	return service, nil
}

// CreateToken issues a magic-link token for the identifier and dispatches the
// email when a mailer is configured. Email delivery failures are logged and
// swallowed; the triggering request must not fail because of them.
func (s *VerificationService) CreateToken(ctx context.Context, identifier, name string) (string, time.Time, error) {
	identifier = strings.ToLower(strings.TrimSpace(identifier))
	if identifier == "" {
		return "", time.Time{}, errors.New("verification service: identifier is required")
	}

	token, err := crypto.GenerateToken(defaultVerificationTokenBytes)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("verification service: generate token: %w", err)
	}

	now := s.now()
	expires := now.Add(s.expiry)
	record := models.VerificationToken{
		Identifier: identifier,
		TokenHash:  crypto.HashToken(token),
		Name:       strings.TrimSpace(name),
		ExpiresAt:  expires,
	}

	// A fresh request supersedes any outstanding token for the same email.
	if err := s.db.WithContext(ctx).
		Where("identifier = ?", identifier).
		Delete(&models.VerificationToken{}).Error; err != nil {
		return "", time.Time{}, fmt.Errorf("verification service: cleanup existing: %w", err)
	}

	if err := s.db.WithContext(ctx).Create(&record).Error; err != nil {
		return "", time.Time{}, fmt.Errorf("verification service: create token: %w", err)
	}

	s.sendMagicLink(ctx, identifier, token)

	return token, expires, nil
}

// Consume looks up and deletes a token in one transaction, then reports
// ErrVerificationExpired when the deleted row was past its expiry. Expired
// rows are removed as well since they can never be used.
func (s *VerificationService) Consume(ctx context.Context, identifier, token string) (*models.VerificationToken, error) {
	identifier = strings.ToLower(strings.TrimSpace(identifier))
	token = strings.TrimSpace(token)
	if identifier == "" || token == "" {
		return nil, ErrVerificationNotFound
	}

	var record models.VerificationToken
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.
			Where("identifier = ? AND token_hash = ?", identifier, crypto.HashToken(token)).
			Take(&record).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrVerificationNotFound
			}
			return fmt.Errorf("find token: %w", err)
		}

		if err := tx.Delete(&models.VerificationToken{}, "id = ?", record.ID).Error; err != nil {
			return fmt.Errorf("consume token: %w", err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrVerificationNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("verification service: %w", err)
	}

	// The delete is committed either way; an expired token is reported after
	// the fact so a retry sees it as gone.
	if record.ExpiresAt.Before(s.now()) {
		return nil, ErrVerificationExpired
	}

	return &record, nil
}

// CleanupExpired removes tokens past their expiry.
func (s *VerificationService) CleanupExpired(ctx context.Context) (int64, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	result := s.db.WithContext(ctx).
		Where("expires_at < ?", s.now()).
		Delete(&models.VerificationToken{})
	if result.Error != nil {
		return 0, fmt.Errorf("verification service: cleanup expired tokens: %w", result.Error)
	}
	return result.RowsAffected, nil
}

func (s *VerificationService) sendMagicLink(ctx context.Context, identifier, token string) {
	if s.mailer == nil {
		return
	}

	link := s.magicLink(identifier, token)
	result, err := s.mailer.Send(ctx, mail.Message{
		To:      []string{identifier},
		Subject: "Sign in to LeadVault",
		Text:    fmt.Sprintf("Use the link below to sign in:\n%s\n\nThe link is valid once and expires in %s.\nIf you did not request it, you can ignore this message.\n", link, s.expiry),
		HTML:    fmt.Sprintf("<p>Use the link below to sign in:</p><p><a href=%q>%s</a></p><p>The link is valid once and expires in %s. If you did not request it, you can ignore this message.</p>", link, link, s.expiry),
	})
	if err != nil && !errors.Is(err, mail.ErrSMTPDisabled) {
		logger.WithModule("auth").Warn("magic link delivery failed",
			zap.String("identifier", identifier),
			zap.Error(err),
		)
		return
	}
	if result != nil && len(result.Rejected) > 0 {
		logger.WithModule("auth").Warn("magic link recipients rejected",
			zap.Strings("rejected", result.Rejected),
		)
	}
}

func (s *VerificationService) magicLink(identifier, token string) string {
	if s.baseURL == "" {
		return token
	}
	return fmt.Sprintf("%s?token=%s&email=%s", s.baseURL, url.QueryEscape(token), url.QueryEscape(identifier))
}
