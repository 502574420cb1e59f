package accounts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/tech-arch1tect/resetkit/config"
	"github.com/tech-arch1tect/resetkit/services/logging"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	ErrAccountNotFound       = errors.New("account not found")
	ErrEmailTaken            = errors.New("email is already registered")
	ErrWeakPassword          = errors.New("password does not meet the password policy")
	ErrPasswordHashingFailed = errors.New("failed to hash password")
	ErrInvalidCredentials    = errors.New("invalid credentials")
)

// MaxPasswordBytes is the longest password bcrypt accepts.
const MaxPasswordBytes = 72

// PolicyError carries the user-facing reason a password was rejected.
type PolicyError struct {
	Reason string
}

func (e *PolicyError) Error() string {
	return e.Reason
}

func (e *PolicyError) Unwrap() error {
	return ErrWeakPassword
}

// Service resolves accounts and owns their credentials.
type Service struct {
	policy config.AuthConfig
	db     *gorm.DB
	logger *logging.Service
	now    func() time.Time
}

func NewService(cfg *config.Config, db *gorm.DB, logger *logging.Service) *Service {
	policy := cfg.Auth
	if policy.BcryptCost < bcrypt.MinCost || policy.BcryptCost > bcrypt.MaxCost {
		policy.BcryptCost = bcrypt.DefaultCost
	}
	return &Service{
		policy: policy,
		db:     db,
		logger: logger,
		now:    time.Now,
	}
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *Service) ResolveByEmail(ctx context.Context, email string) (*Account, error) {
	var account Account
	err := s.db.WithContext(ctx).Where("email = ?", NormalizeEmail(email)).First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		if s.logger != nil {
			s.logger.Error("failed to resolve account by email", logging.Email(email), zap.Error(err))
		}
		return nil, fmt.Errorf("failed to resolve account: %w", err)
	}
	return &account, nil
}

func (s *Service) FindByID(ctx context.Context, id string) (*Account, error) {
	var account Account
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to load account: %w", err)
	}
	return &account, nil
}

func (s *Service) Create(ctx context.Context, email, password string) (*Account, error) {
	hash, err := s.HashPassword(password)
	if err != nil {
		return nil, err
	}

	account := &Account{
		Email:        NormalizeEmail(email),
		PasswordHash: hash,
	}

	if err := s.db.WithContext(ctx).Create(account).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrEmailTaken
		}
		if s.logger != nil {
			s.logger.Error("failed to create account", logging.Email(email), zap.Error(err))
		}
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	if s.logger != nil {
		s.logger.Info("account created", logging.AccountID(account.ID))
	}
	return account, nil
}

func (s *Service) ValidatePassword(password string) error {
	if len(password) < s.policy.MinLength {
		if s.logger != nil {
			s.logger.Debug("password rejected: insufficient length",
				zap.Int("length", len(password)),
				zap.Int("min_required", s.policy.MinLength))
		}
		return &PolicyError{Reason: fmt.Sprintf("password must be at least %d characters", s.policy.MinLength)}
	}

	// bcrypt rejects inputs over 72 bytes; multibyte characters reach that well before 72 runes.
	if len(password) > MaxPasswordBytes {
		if s.logger != nil {
			s.logger.Debug("password rejected: too long", zap.Int("bytes", len(password)))
		}
		return &PolicyError{Reason: fmt.Sprintf("password must be at most %d bytes", MaxPasswordBytes)}
	}

	var hasUpper, hasLower, hasNumber, hasSpecial bool
	for _, char := range password {
		switch {
		case unicode.IsUpper(char):
			hasUpper = true
		case unicode.IsLower(char):
			hasLower = true
		case unicode.IsNumber(char):
			hasNumber = true
		case unicode.IsPunct(char) || unicode.IsSymbol(char):
			hasSpecial = true
		}
	}

	var missing []string
	if s.policy.RequireUpper && !hasUpper {
		missing = append(missing, "one uppercase letter")
	}
	if s.policy.RequireLower && !hasLower {
		missing = append(missing, "one lowercase letter")
	}
	if s.policy.RequireNumber && !hasNumber {
		missing = append(missing, "one number")
	}
	if s.policy.RequireSpecial && !hasSpecial {
		missing = append(missing, "one special character")
	}

	if len(missing) > 0 {
		if s.logger != nil {
			s.logger.Debug("password rejected: missing requirements", zap.Strings("missing_requirements", missing))
		}
		return &PolicyError{Reason: "password must contain at least " + strings.Join(missing, ", ")}
	}

	return nil
}

func (s *Service) HashPassword(password string) (string, error) {
	if err := s.ValidatePassword(password); err != nil {
		return "", err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.policy.BcryptCost)
	if err != nil {
		if s.logger != nil {
			s.logger.Error("password hashing failed", zap.Error(err))
		}
		return "", ErrPasswordHashingFailed
	}
	return string(hash), nil
}

func (s *Service) VerifyPassword(hashedPassword, password string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password)); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}

// UpdatePassword validates and stores a new password for the account and stamps
// PasswordChangedAt.
func (s *Service) UpdatePassword(ctx context.Context, accountID, newPassword string) (*Account, error) {
	hash, err := s.HashPassword(newPassword)
	if err != nil {
		return nil, err
	}

	changedAt := s.now().UTC()
	result := s.db.WithContext(ctx).Model(&Account{}).
		Where("id = ?", accountID).
		Updates(map[string]any{
			"password_hash":       hash,
			"password_changed_at": changedAt,
		})
	if result.Error != nil {
		if s.logger != nil {
			s.logger.Error("failed to update password", logging.AccountID(accountID), zap.Error(result.Error))
		}
		return nil, fmt.Errorf("failed to update password: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, ErrAccountNotFound
	}

	if s.logger != nil {
		s.logger.Info("password updated", logging.AccountID(accountID))
	}
	return s.FindByID(ctx, accountID)
}
