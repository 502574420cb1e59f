package passwordreset

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/mileusna/useragent"
	"github.com/tech-arch1tect/resetkit/config"
	"github.com/tech-arch1tect/resetkit/services/accounts"
	"github.com/tech-arch1tect/resetkit/services/ledger"
	"github.com/tech-arch1tect/resetkit/services/logging"
	"go.uber.org/zap"
)

const TokenParam = "reset_password_token"

var (
	ErrPasswordResetDisabled = errors.New("password reset is disabled")
	ErrPasswordMismatch      = errors.New("password confirmation does not match")
	ErrRedirectNotAllowed    = errors.New("redirect url is not allowed")
	ErrDeliveryFailed        = errors.New("failed to deliver reset instructions")
)

type AccountDirectory interface {
	ResolveByEmail(ctx context.Context, email string) (*accounts.Account, error)
	ValidatePassword(password string) error
	UpdatePassword(ctx context.Context, accountID, newPassword string) (*accounts.Account, error)
}

type TokenLedger interface {
	Issue(ctx context.Context, accountID string, meta ledger.IssueMeta) (*ledger.IssuedToken, error)
	ValidateAndConsume(ctx context.Context, token string) (string, error)
	Invalidate(ctx context.Context, accountID string) (int64, error)
}

type MailService interface {
	SendTemplate(templateName string, to []string, subject string, data map[string]any) error
}

type RequestInput struct {
	Email       string
	RedirectURL string
	IP          string
	UserAgent   string
}

type CompleteInput struct {
	Token                string
	Password             string
	PasswordConfirmation string
}

// Service runs the two halves of a password reset: issuing and mailing a link, and
// consuming the link to set a new password.
type Service struct {
	config   *config.Config
	accounts AccountDirectory
	ledger   TokenLedger
	mail     MailService
	logger   *logging.Service

	confirmURL   *url.URL
	allowedHosts map[string]bool
	now          func() time.Time

	deliveries sync.WaitGroup
}

func NewService(cfg *config.Config, directory AccountDirectory, tokens TokenLedger, mailer MailService, logger *logging.Service) (*Service, error) {
	appURL, err := url.Parse(cfg.App.URL)
	if err != nil || appURL.Host == "" {
		return nil, fmt.Errorf("APP_URL must be an absolute url: %q", cfg.App.URL)
	}

	confirmURL := appURL.JoinPath(cfg.Reset.ConfirmPath)

	allowed := map[string]bool{strings.ToLower(appURL.Hostname()): true}
	for _, host := range cfg.Reset.AllowedRedirectHosts {
		if host = strings.ToLower(strings.TrimSpace(host)); host != "" {
			allowed[host] = true
		}
	}

	return &Service{
		config:       cfg,
		accounts:     directory,
		ledger:       tokens,
		mail:         mailer,
		logger:       logger,
		confirmURL:   confirmURL,
		allowedHosts: allowed,
		now:          time.Now,
	}, nil
}

// RequestReset issues a token for the account owning input.Email and mails the link.
// An unknown email is not an error, so callers cannot be used to probe for accounts.
// With RESET_ASYNC_DELIVERY the mail is sent in the background and delivery errors are
// only logged, so a known email does not answer slower than an unknown one.
func (s *Service) RequestReset(ctx context.Context, input RequestInput) error {
	if !s.config.Reset.Enabled {
		return ErrPasswordResetDisabled
	}

	base, err := s.linkBase(input.RedirectURL)
	if err != nil {
		if s.logger != nil {
			s.logger.Warn("reset requested with disallowed redirect", zap.String("redirect_url", input.RedirectURL))
		}
		return err
	}

	account, err := s.accounts.ResolveByEmail(ctx, input.Email)
	if err != nil {
		if errors.Is(err, accounts.ErrAccountNotFound) {
			if s.logger != nil {
				s.logger.Info("reset requested for unknown email", logging.Email(input.Email))
			}
			return nil
		}
		return err
	}

	issued, err := s.ledger.Issue(ctx, account.ID, ledger.IssueMeta{IP: input.IP, UserAgent: input.UserAgent})
	if err != nil {
		return err
	}

	browser, os := describeClient(input.UserAgent)
	data := map[string]any{
		"AppName":       s.config.App.Name,
		"Email":         account.Email,
		"ResetURL":      resetLink(base, issued.Token),
		"ExpiryMinutes": int(issued.ExpiresAt.Sub(issued.IssuedAt).Minutes()),
		"Browser":       browser,
		"OS":            os,
		"IP":            input.IP,
	}

	if s.config.Reset.AsyncDelivery {
		s.deliveries.Add(1)
		go func() {
			defer s.deliveries.Done()
			_ = s.deliver(context.WithoutCancel(ctx), account, data)
		}()
		return nil
	}
	return s.deliver(ctx, account, data)
}

// deliver mails the reset link and invalidates the token when the mail cannot be sent.
func (s *Service) deliver(ctx context.Context, account *accounts.Account, data map[string]any) error {
	subject := fmt.Sprintf("Reset your %s password", s.config.App.Name)
	if err := s.mail.SendTemplate("password_reset", []string{account.Email}, subject, data); err != nil {
		if _, invErr := s.ledger.Invalidate(ctx, account.ID); invErr != nil && s.logger != nil {
			s.logger.Error("failed to invalidate undelivered reset token", logging.AccountID(account.ID), zap.Error(invErr))
		}
		if s.logger != nil {
			s.logger.Error("failed to send reset instructions", logging.AccountID(account.ID), zap.Error(err))
		}
		return fmt.Errorf("%w: %w", ErrDeliveryFailed, err)
	}

	if s.logger != nil {
		s.logger.Info("reset instructions sent", logging.AccountID(account.ID))
	}
	return nil
}

// Wait blocks until background deliveries have finished or ctx is done.
func (s *Service) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.deliveries.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// CompleteReset checks the new password, consumes the token and stores the password.
// The token is only consumed once the password is known to be acceptable.
func (s *Service) CompleteReset(ctx context.Context, input CompleteInput) (*accounts.Account, error) {
	if !s.config.Reset.Enabled {
		return nil, ErrPasswordResetDisabled
	}

	if input.Password != input.PasswordConfirmation {
		return nil, ErrPasswordMismatch
	}
	if err := s.accounts.ValidatePassword(input.Password); err != nil {
		return nil, err
	}

	accountID, err := s.ledger.ValidateAndConsume(ctx, input.Token)
	if err != nil {
		return nil, err
	}

	account, err := s.accounts.UpdatePassword(ctx, accountID, input.Password)
	if err != nil {
		if s.logger != nil {
			s.logger.Error("reset token consumed but password update failed", logging.AccountID(accountID), zap.Error(err))
		}
		return nil, err
	}

	if _, err := s.ledger.Invalidate(ctx, accountID); err != nil && s.logger != nil {
		s.logger.Warn("failed to invalidate remaining reset tokens", logging.AccountID(accountID), zap.Error(err))
	}

	changedAt := s.now().UTC()
	if account.PasswordChangedAt != nil {
		changedAt = *account.PasswordChangedAt
	}
	data := map[string]any{
		"AppName":   s.config.App.Name,
		"Email":     account.Email,
		"ChangedAt": changedAt.UTC().Format("2006-01-02 15:04 MST"),
	}
	subject := fmt.Sprintf("Your %s password was changed", s.config.App.Name)
	if err := s.mail.SendTemplate("password_reset_success", []string{account.Email}, subject, data); err != nil && s.logger != nil {
		s.logger.Warn("failed to send password change notice", logging.AccountID(accountID), zap.Error(err))
	}

	if s.logger != nil {
		s.logger.Info("password reset completed", logging.AccountID(accountID))
	}
	return account, nil
}

// linkBase returns the url the token is appended to. A caller-supplied redirect must point
// at the application host or an allow-listed host.
func (s *Service) linkBase(redirect string) (*url.URL, error) {
	if redirect == "" {
		u := *s.confirmURL
		return &u, nil
	}

	u, err := url.Parse(redirect)
	if err != nil || u.Host == "" || (u.Scheme != "https" && u.Scheme != "http") {
		return nil, ErrRedirectNotAllowed
	}
	if u.User != nil || !s.allowedHosts[strings.ToLower(u.Hostname())] {
		return nil, ErrRedirectNotAllowed
	}
	u.Fragment = ""
	return u, nil
}

func resetLink(base *url.URL, token string) string {
	q := base.Query()
	q.Set(TokenParam, token)
	base.RawQuery = q.Encode()
	return base.String()
}

func describeClient(userAgent string) (browser, os string) {
	if userAgent == "" {
		return "", ""
	}

	ua := useragent.Parse(userAgent)

	browser = "Unknown Browser"
	if ua.Name != "" {
		browser = ua.Name
		if ua.Version != "" {
			browser += " " + ua.Version
		}
	}

	os = "Unknown OS"
	if ua.OS != "" {
		os = ua.OS
		if ua.OSVersion != "" {
			os += " " + ua.OSVersion
		}
	}
	return browser, os
}
