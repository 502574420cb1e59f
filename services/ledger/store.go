package ledger

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

// Store persists reset tokens. Implementations must make Replace and MarkConsumed atomic:
// Replace never leaves an account without its new token after invalidating the old one,
// and MarkConsumed succeeds for at most one caller per token.
type Store interface {
	// Replace invalidates every unconsumed token of token.AccountID and inserts token.
	Replace(ctx context.Context, token *ResetToken) error

	FindByLookupHash(ctx context.Context, hash string) (*ResetToken, error)

	// MarkConsumed consumes the token if it is unconsumed and now is before its expiry.
	// It reports whether this call performed the transition.
	MarkConsumed(ctx context.Context, hash string, now time.Time) (bool, error)

	InvalidateAccount(ctx context.Context, accountID string, now time.Time) (int64, error)

	// DeleteExpired removes tokens that expired, or were consumed, before cutoff.
	DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error)
}

type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Replace(ctx context.Context, token *ResetToken) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := invalidateAccount(tx, token.AccountID, token.IssuedAt); err != nil {
			return err
		}
		return tx.Create(token).Error
	})
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return errIssueConflict
	}
	return storageError("replace", err)
}

func (s *GormStore) FindByLookupHash(ctx context.Context, hash string) (*ResetToken, error) {
	var token ResetToken
	err := s.db.WithContext(ctx).Where("lookup_hash = ?", hash).First(&token).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTokenNotFound
		}
		return nil, storageError("find", err)
	}
	return &token, nil
}

func (s *GormStore) MarkConsumed(ctx context.Context, hash string, now time.Time) (bool, error) {
	result := s.db.WithContext(ctx).Model(&ResetToken{}).
		Where("lookup_hash = ? AND consumed = ? AND expires_at > ?", hash, false, now).
		Updates(map[string]any{
			"consumed":          true,
			"consumed_at":       now,
			"active_account_id": nil,
		})
	if result.Error != nil {
		return false, storageError("consume", result.Error)
	}
	return result.RowsAffected == 1, nil
}

func (s *GormStore) InvalidateAccount(ctx context.Context, accountID string, now time.Time) (int64, error) {
	n, err := invalidateAccount(s.db.WithContext(ctx), accountID, now)
	if err != nil {
		return 0, storageError("invalidate", err)
	}
	return n, nil
}

func (s *GormStore) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	result := s.db.WithContext(ctx).
		Where("expires_at < ? OR (consumed = ? AND consumed_at < ?)", cutoff, true, cutoff).
		Delete(&ResetToken{})
	if result.Error != nil {
		return 0, storageError("sweep", result.Error)
	}
	return result.RowsAffected, nil
}

func invalidateAccount(tx *gorm.DB, accountID string, now time.Time) (int64, error) {
	result := tx.Model(&ResetToken{}).
		Where("account_id = ? AND consumed = ?", accountID, false).
		Updates(map[string]any{
			"consumed":          true,
			"consumed_at":       now,
			"superseded":        true,
			"active_account_id": nil,
		})
	return result.RowsAffected, result.Error
}
