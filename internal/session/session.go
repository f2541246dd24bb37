// Package session keeps short-lived chat logins: a key such as "telegram:42"
// maps to a small hash with the account it is bound to.
package session

import (
	"context"
	"strings"
	"time"

	"github.com/tinoosan/billy/internal/meta"
)

// Cache stores session hashes with a time-to-live.
// Get returns errs.ErrNotFound for a missing or expired key.
type Cache interface {
	Put(ctx context.Context, key string, fields meta.Metadata, ttl time.Duration) error
	Get(ctx context.Context, key string) (meta.Metadata, error)
	Delete(ctx context.Context, key string) error
}

// TelegramKey is the cache key for a Telegram user id.
func TelegramKey(telegramID string) string { return "telegram:" + strings.TrimSpace(telegramID) }

// ValidTelegramID reports whether id looks like a Telegram user id.
func ValidTelegramID(id string) bool {
	id = strings.TrimPrefix(strings.TrimSpace(id), "-")
	if id == "" || len(id) > 20 {
		return false
	}
	for _, r := range id {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
