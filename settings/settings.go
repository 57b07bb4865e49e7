// Package settings provides the device key/value settings store.
//
// The security gate reads onboarding and passcode state from it and the
// update engine keeps its run history in it. Three backends exist: Memory,
// FileStore (a msgpack file under the user partition) and RedisStore
// (a Redis hash shared with other tooling).
package settings

import (
	"context"
	"errors"
	"strconv"
	"sync"
)

// Well-known keys.
const (
	KeyOnboardingFinished = "onboarding_finished"
	KeyLockPasscode       = "lock_passcode"
	KeyUpdateHistory      = "update_history"
)

// ErrNotFound is returned by Get for a missing key.
var ErrNotFound = errors.New("setting not found")

// Store is a string key/value store.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// GetDefault returns the value of key, or def when the key is missing.
func GetDefault(ctx context.Context, s Store, key, def string) (string, error) {
	v, err := s.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return def, nil
	}
	return v, err
}

// GetBool reads a boolean setting. Missing keys read as false. Both "1" and
// "true" are accepted.
func GetBool(ctx context.Context, s Store, key string) (bool, error) {
	v, err := GetDefault(ctx, s, key, "")
	if err != nil || v == "" {
		return false, err
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, nil
	}
	return b, nil
}

// SetBool stores a boolean setting as "1" or "0".
func SetBool(ctx context.Context, s Store, key string, value bool) error {
	if value {
		return s.Set(ctx, key, "1")
	}
	return s.Set(ctx, key, "0")
}

// Memory is a process-local Store.
type Memory struct {
	mu     sync.RWMutex
	values map[string]string
}

var _ Store = (*Memory)(nil)

// NewMemory creates an empty Memory store seeded with initial values.
func NewMemory(initial map[string]string) *Memory {
	m := &Memory{values: make(map[string]string, len(initial))}
	for k, v := range initial {
		m.values[k] = v
	}
	return m
}

// Get implements Store.
func (m *Memory) Get(_ context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

// Set implements Store.
func (m *Memory) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

// Delete implements Store.
func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}

// Close implements Store.
func (m *Memory) Close() error { return nil }
