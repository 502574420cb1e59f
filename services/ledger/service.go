package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/tech-arch1tect/resetkit/config"
	"github.com/tech-arch1tect/resetkit/services/logging"
	"go.uber.org/zap"
)

const (
	maxIssueAttempts   = 3
	maxRequestAgentLen = 255
)

// Ledger issues and consumes password reset tokens. It is the only writer of ResetToken
// records.
type Ledger struct {
	store   Store
	hasher  *Hasher
	config  config.ResetConfig
	logger  *logging.Service
	metrics *Metrics
	now     func() time.Time

	mu      sync.Mutex
	stop    chan struct{}
	stopped chan struct{}
}

type Option func(*Ledger)

func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		l.now = now
	}
}

func WithMetrics(m *Metrics) Option {
	return func(l *Ledger) {
		l.metrics = m
	}
}

func WithHasher(h *Hasher) Option {
	return func(l *Ledger) {
		l.hasher = h
	}
}

func New(store Store, cfg config.ResetConfig, logger *logging.Service, opts ...Option) (*Ledger, error) {
	l := &Ledger{
		store:  store,
		config: cfg,
		logger: logger,
		now:    time.Now,
	}

	for _, opt := range opts {
		opt(l)
	}

	if l.hasher == nil {
		var err error
		if cfg.LookupKey != "" {
			l.hasher, err = NewHasher([]byte(cfg.LookupKey))
		} else {
			if logger != nil {
				logger.Warn("RESET_LOOKUP_KEY not set, using an ephemeral key: outstanding reset links stop working on restart")
			}
			l.hasher, err = NewEphemeralHasher()
		}
		if err != nil {
			return nil, err
		}
	}

	if logger != nil {
		logger.Info("initializing reset token ledger",
			zap.Duration("ttl", cfg.TTL),
			zap.Int("token_bytes", cfg.TokenBytes),
			zap.Duration("sweep_interval", cfg.SweepInterval),
			zap.Duration("sweep_grace", cfg.SweepGrace))
	}

	return l, nil
}

func (l *Ledger) clock() time.Time {
	return l.now().UTC()
}

func (l *Ledger) storeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if l.config.StoreTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, l.config.StoreTimeout)
}

// Issue creates a token for accountID and invalidates every earlier unconsumed token of
// that account in the same store operation. The returned token is the only copy of the
// secret.
func (l *Ledger) Issue(ctx context.Context, accountID string, meta IssueMeta) (*IssuedToken, error) {
	if accountID == "" {
		return nil, ErrInvalidAccount
	}

	for attempt := 1; attempt <= maxIssueAttempts; attempt++ {
		secret, err := generateSecret(l.config.TokenBytes)
		if err != nil {
			if l.logger != nil {
				l.logger.Error("failed to generate reset token", zap.Error(err))
			}
			return nil, ErrTokenGenerationFailed
		}

		now := l.clock()
		active := accountID
		record := &ResetToken{
			LookupHash:      l.hasher.Hash(secret),
			AccountID:       accountID,
			ActiveAccountID: &active,
			IssuedAt:        now,
			ExpiresAt:       now.Add(l.config.TTL),
			RequestIP:       meta.IP,
			RequestAgent:    truncate(meta.UserAgent, maxRequestAgentLen),
		}

		storeCtx, cancel := l.storeContext(ctx)
		err = l.store.Replace(storeCtx, record)
		cancel()

		if errors.Is(err, errIssueConflict) {
			if l.logger != nil {
				l.logger.Debug("concurrent reset token issue, retrying",
					logging.AccountID(accountID),
					zap.Int("attempt", attempt))
			}
			continue
		}
		if err != nil {
			if l.logger != nil {
				l.logger.Error("failed to store reset token",
					logging.AccountID(accountID),
					zap.Error(err))
			}
			return nil, err
		}

		l.metrics.observeIssue()
		if l.logger != nil {
			l.logger.Info("reset token issued",
				logging.AccountID(accountID),
				logging.TokenHash(record.LookupHash),
				zap.Time("expires_at", record.ExpiresAt))
		}

		return &IssuedToken{
			Token:      secret,
			AccountID:  accountID,
			LookupHash: record.LookupHash,
			IssuedAt:   record.IssuedAt,
			ExpiresAt:  record.ExpiresAt,
		}, nil
	}

	return nil, fmt.Errorf("%w: reset token issue for account kept conflicting", ErrStorageUnavailable)
}

// ValidateAndConsume returns the owning account of token and consumes it. Exactly one of
// any number of concurrent calls with the same valid token succeeds.
func (l *Ledger) ValidateAndConsume(ctx context.Context, token string) (string, error) {
	accountID, hash, err := l.validateAndConsume(ctx, token)

	l.metrics.observeConsume(err)
	if l.logger != nil {
		switch {
		case err == nil:
			l.logger.Info("reset token consumed", logging.AccountID(accountID), logging.TokenHash(hash))
		case IsInvalidToken(err):
			l.logger.Warn("reset token rejected",
				zap.String("reason", resultLabel(err)),
				logging.AccountID(accountID),
				logging.TokenHash(hash))
		default:
			l.logger.Error("reset token validation failed", logging.TokenHash(hash), zap.Error(err))
		}
	}

	if err != nil {
		return "", err
	}
	return accountID, nil
}

func (l *Ledger) validateAndConsume(ctx context.Context, token string) (accountID, hash string, err error) {
	if token == "" || len(token) > maxTokenLength {
		return "", "", ErrTokenNotFound
	}

	hash = l.hasher.Hash(token)

	storeCtx, cancel := l.storeContext(ctx)
	defer cancel()

	record, err := l.store.FindByLookupHash(storeCtx, hash)
	if err != nil {
		return "", hash, err
	}
	if !l.hasher.Equal(record.LookupHash, hash) {
		return "", hash, ErrTokenNotFound
	}

	now := l.clock()
	switch record.State(now) {
	case StateConsumed:
		return record.AccountID, hash, ErrTokenConsumed
	case StateExpired:
		return record.AccountID, hash, ErrTokenExpired
	}

	claimed, err := l.store.MarkConsumed(storeCtx, hash, now)
	if err != nil {
		return record.AccountID, hash, err
	}
	if !claimed {
		return record.AccountID, hash, ErrTokenConsumed
	}

	return record.AccountID, hash, nil
}

// Invalidate supersedes every unconsumed token of accountID.
func (l *Ledger) Invalidate(ctx context.Context, accountID string) (int64, error) {
	storeCtx, cancel := l.storeContext(ctx)
	defer cancel()

	n, err := l.store.InvalidateAccount(storeCtx, accountID, l.clock())
	if err != nil {
		if l.logger != nil {
			l.logger.Error("failed to invalidate reset tokens", logging.AccountID(accountID), zap.Error(err))
		}
		return 0, err
	}

	if l.logger != nil && n > 0 {
		l.logger.Info("reset tokens invalidated", logging.AccountID(accountID), zap.Int64("count", n))
	}
	return n, nil
}

// Sweep deletes tokens that expired, or were consumed, more than the sweep grace ago.
func (l *Ledger) Sweep(ctx context.Context) (int64, error) {
	cutoff := l.clock().Add(-l.config.SweepGrace)

	storeCtx, cancel := l.storeContext(ctx)
	defer cancel()

	n, err := l.store.DeleteExpired(storeCtx, cutoff)
	if err != nil {
		if l.logger != nil {
			l.logger.Error("failed to sweep reset tokens", zap.Error(err))
		}
		return 0, err
	}

	l.metrics.observeSweep(n)
	if l.logger != nil {
		if n > 0 {
			l.logger.Info("swept reset tokens", zap.Int64("count", n), zap.Time("cutoff", cutoff))
		} else {
			l.logger.Debug("no reset tokens to sweep")
		}
	}
	return n, nil
}

// StartSweeper runs Sweep every interval until StopSweeper is called. It is a no-op when
// interval is not positive or a sweeper is already running.
func (l *Ledger) StartSweeper(interval time.Duration) {
	if interval <= 0 {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stop != nil {
		return
	}

	stop := make(chan struct{})
	stopped := make(chan struct{})
	l.stop, l.stopped = stop, stopped

	go func() {
		defer close(stopped)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				_, _ = l.Sweep(context.Background())
			}
		}
	}()

	if l.logger != nil {
		l.logger.Info("started reset token sweeper", zap.Duration("interval", interval))
	}
}

// StopSweeper stops the sweeper and waits for an in-flight sweep, or until ctx is done.
func (l *Ledger) StopSweeper(ctx context.Context) error {
	l.mu.Lock()
	stop, stopped := l.stop, l.stopped
	l.stop, l.stopped = nil, nil
	l.mu.Unlock()

	if stop == nil {
		return nil
	}

	close(stop)
	select {
	case <-stopped:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return strings.ToValidUTF8(s[:n], "")
}
