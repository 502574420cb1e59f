package ledger

import "time"

// ResetToken is the persisted form of an issued reset token. Only the lookup hash of the
// secret is stored.
type ResetToken struct {
	ID         uint   `json:"id" gorm:"primaryKey"`
	LookupHash string `json:"-" gorm:"uniqueIndex;size:64;not null"`
	AccountID  string `json:"account_id" gorm:"size:64;not null;index"`
	// ActiveAccountID mirrors AccountID until the token is consumed or superseded, then
	// becomes NULL. Its unique index allows one unconsumed token per account.
	ActiveAccountID *string    `json:"-" gorm:"size:64;uniqueIndex"`
	IssuedAt        time.Time  `json:"issued_at" gorm:"not null"`
	ExpiresAt       time.Time  `json:"expires_at" gorm:"not null;index"`
	Consumed        bool       `json:"consumed" gorm:"not null"`
	ConsumedAt      *time.Time `json:"consumed_at" gorm:"index"`
	Superseded      bool       `json:"superseded" gorm:"not null"`
	RequestIP       string     `json:"request_ip" gorm:"size:64"`
	RequestAgent    string     `json:"request_agent" gorm:"size:255"`
}

func (ResetToken) TableName() string {
	return "password_reset_tokens"
}

type TokenState string

const (
	StateActive   TokenState = "active"
	StateConsumed TokenState = "consumed"
	StateExpired  TokenState = "expired"
)

// State reports the token state at now. Consumed wins over expired.
func (t *ResetToken) State(now time.Time) TokenState {
	if t.Consumed {
		return StateConsumed
	}
	if !now.Before(t.ExpiresAt) {
		return StateExpired
	}
	return StateActive
}

// IssueMeta is audit information about the request that asked for a token.
type IssueMeta struct {
	IP        string
	UserAgent string
}

// IssuedToken is returned once by Issue. Token is the only copy of the secret.
type IssuedToken struct {
	Token      string
	AccountID  string
	LookupHash string
	IssuedAt   time.Time
	ExpiresAt  time.Time
}
