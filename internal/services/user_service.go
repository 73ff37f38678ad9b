package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/leadvault/leadvault/internal/models"
)

const emailProvider = "email"

// ErrDuplicateEmail indicates an attempt to create a user with an email that
// is already registered.
var ErrDuplicateEmail = errors.New("user service: email already registered")

// UserService manages user records. Users correspond to lead owners and are
// created either by explicit signup or on first successful verification.
type UserService struct {
	db *gorm.DB
}

// NewUserService constructs a user service backed by the provided database.
func NewUserService(db *gorm.DB) (*UserService, error) {
	if db == nil {
		return nil, errors.New("user service: db is required")
	}
	return &UserService{db: db}, nil
}

// Create registers a new, not-yet-verified user.
func (s *UserService) Create(ctx context.Context, email, name string) (*models.User, error) {
	email = normalizeEmail(email)
	if email == "" {
		return nil, errors.New("user service: email is required")
	}

	user := &models.User{Email: email}
	if trimmed := strings.TrimSpace(name); trimmed != "" {
		user.Name = &trimmed
	}

	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		if isUniqueConstraintError(err) {
			return nil, ErrDuplicateEmail
		}
		return nil, fmt.Errorf("user service: create user: %w", err)
	}
	return user, nil
}

// GetByID fetches a user by id. Absence is (nil, nil).
func (s *UserService) GetByID(ctx context.Context, id string) (*models.User, error) {
	if strings.TrimSpace(id) == "" {
		return nil, nil
	}

	var user models.User
	err := s.db.WithContext(ctx).Where("id = ?", id).Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("user service: find user: %w", err)
	}
	return &user, nil
}

// GetByEmail fetches a user by normalized email. Absence is (nil, nil).
func (s *UserService) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	email = normalizeEmail(email)
	if email == "" {
		return nil, nil
	}

	var user models.User
	err := s.db.WithContext(ctx).Where("email = ?", email).Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("user service: find user: %w", err)
	}
	return &user, nil
}

// GetByProviderAccount resolves an external account link back to its user.
// Absence is (nil, nil).
func (s *UserService) GetByProviderAccount(ctx context.Context, provider, providerAccountID string) (*models.User, error) {
	provider = strings.TrimSpace(provider)
	providerAccountID = strings.TrimSpace(providerAccountID)
	if provider == "" || providerAccountID == "" {
		return nil, nil
	}

	var user models.User
	err := s.db.WithContext(ctx).
		Select("users.*").
		Joins("JOIN accounts ON accounts.user_id = users.id").
		Where("accounts.provider = ? AND accounts.provider_account_id = ?", provider, providerAccountID).
		Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("user service: find user by account: %w", err)
	}
	return &user, nil
}

// FindOrCreateVerified resolves an email to a verified user, creating the user
// and its email account link on first verification. An existing unverified
// user is marked verified.
func (s *UserService) FindOrCreateVerified(ctx context.Context, email, name string) (*models.User, error) {
	email = normalizeEmail(email)
	if email == "" {
		return nil, errors.New("user service: email is required")
	}

	var user models.User
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("email = ?", email).Take(&user).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			now := time.Now()
			user = models.User{Email: email, EmailVerifiedAt: &now}
			if trimmed := strings.TrimSpace(name); trimmed != "" {
				user.Name = &trimmed
			}
			if err := tx.Create(&user).Error; err != nil {
				return fmt.Errorf("create user: %w", err)
			}
		case err != nil:
			return fmt.Errorf("find user: %w", err)
		default:
			updates := map[string]any{}
			if user.EmailVerifiedAt == nil {
				now := time.Now()
				user.EmailVerifiedAt = &now
				updates["email_verified_at"] = &now
			}
			if user.Name == nil {
				if trimmed := strings.TrimSpace(name); trimmed != "" {
					user.Name = &trimmed
					updates["name"] = &trimmed
				}
			}
			if len(updates) > 0 {
				if err := tx.Model(&user).Updates(updates).Error; err != nil {
					return fmt.Errorf("update user: %w", err)
				}
			}
		}

		account := models.Account{
			UserID:            user.ID,
			Type:              emailProvider,
			Provider:          emailProvider,
			ProviderAccountID: email,
		}
		if err := tx.Where(
			"provider = ? AND provider_account_id = ?", emailProvider, email,
		).FirstOrCreate(&account).Error; err != nil {
			return fmt.Errorf("link account: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("user service: %w", err)
	}
	return &user, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
