package session

import (
	"time"

	"github.com/labstack/echo/v4"
)

const (
	AccountIDKey       = "_account_id"
	AuthenticatedAtKey = "_authenticated_at"
)

// Login signs accountID in on the current session. The session token is renewed first so a
// token planted before the reset cannot ride along.
func Login(c echo.Context, accountID string) error {
	manager := GetManager(c)
	if manager == nil {
		return nil
	}

	ctx := c.Request().Context()
	if err := manager.RenewToken(ctx); err != nil {
		return err
	}
	manager.Put(ctx, AccountIDKey, accountID)
	manager.Put(ctx, AuthenticatedAtKey, time.Now().UTC().Unix())
	return nil
}

func Logout(c echo.Context) error {
	manager := GetManager(c)
	if manager == nil {
		return nil
	}
	return manager.Destroy(c.Request().Context())
}

func AccountID(c echo.Context) string {
	manager := GetManager(c)
	if manager == nil {
		return ""
	}
	return manager.GetString(c.Request().Context(), AccountIDKey)
}

func IsAuthenticated(c echo.Context) bool {
	return AccountID(c) != ""
}
