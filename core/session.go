package core

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

var ErrSessionNotFound = errors.New("session not found")

// SessionStore keeps server-side sessions: one per login, holding arbitrary values until it expires or is deleted.
type SessionStore interface {
	Create(ctx context.Context, userID int, ttl time.Duration) (string, error)
	Exists(ctx context.Context, sid string) (bool, error)
	Set(ctx context.Context, sid, key string, value []byte) error
	// Get returns ErrSessionNotFound when either the session or the key does not exist.
	Get(ctx context.Context, sid, key string) ([]byte, error)
	Unset(ctx context.Context, sid, key string) error
	Delete(ctx context.Context, sid string) error
}

// SetSessionJSON stores the JSON encoding of `value` under `key`.
func SetSessionJSON(ctx context.Context, store SessionStore, sid, key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return store.Set(ctx, sid, key, data)
}

// GetSessionJSON decodes the value under `key` into dest; ok is false when there is no such value.
func GetSessionJSON(ctx context.Context, store SessionStore, sid, key string, dest interface{}) (bool, error) {
	data, err := store.Get(ctx, sid, key)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return false, err
	}
	return true, nil
}

// FileStore archives files out of the database, e.g. uploaded spreadsheets.
type FileStore interface {
	Upload(ctx context.Context, data []byte, filename string) (string, error)
}
