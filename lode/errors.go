package lode

import (
	"errors"
	"fmt"
	"strings"
)

// Storage failure classes. Match with errors.Is.
var (
	ErrPermissionDenied = errors.New("permission denied")
	ErrNotFound         = errors.New("not found")
	ErrDiskFull         = errors.New("no space left on device")
	ErrTimeout          = errors.New("operation timed out")
	ErrThrottled        = errors.New("rate limited")
	// ErrAuth is a missing or rejected credential.
	ErrAuth = errors.New("authentication failed")
	// ErrAccessDenied is a valid credential without permission.
	ErrAccessDenied = errors.New("access denied")
	ErrNetwork      = errors.New("network error")
	// ErrStorage is any failure the classifier does not recognise.
	ErrStorage = errors.New("storage error")
)

// StorageError is a classified journal storage failure.
type StorageError struct {
	// Kind is one of the Err* classes above.
	Kind error
	// Op is "init", "write", "read" or "put".
	Op string
	// Path is the dataset path or object key involved.
	Path string
	Err  error
}

func (e *StorageError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("journal %s %s: %v: %v", e.Op, e.Path, e.Kind, e.Err)
	}
	return fmt.Sprintf("journal %s: %v: %v", e.Op, e.Kind, e.Err)
}

// Unwrap returns the underlying error.
func (e *StorageError) Unwrap() error { return e.Err }

// Is matches the classification sentinel.
func (e *StorageError) Is(target error) bool {
	return errors.Is(e.Kind, target)
}

func wrap(op, path string, err error) error {
	if err == nil {
		return nil
	}
	var se *StorageError
	if errors.As(err, &se) {
		return err
	}
	return &StorageError{Kind: classify(err), Op: op, Path: path, Err: err}
}

// pattern rules are checked in order; the first match wins.
var patterns = []struct {
	kind  error
	needs []string
}{
	{ErrAccessDenied, []string{"accessdenied", "forbidden", "403"}},
	{ErrPermissionDenied, []string{"permission denied", "eacces"}},
	{ErrNotFound, []string{"no such file", "does not exist", "not found", "enoent", "404", "nosuchkey"}},
	{ErrDiskFull, []string{"no space left", "disk full", "enospc", "quota exceeded"}},
	{ErrTimeout, []string{"timeout", "timed out", "deadline exceeded"}},
	{ErrThrottled, []string{"slowdown", "rate exceeded", "throttl", "429", "toomanyrequests"}},
	{ErrAuth, []string{"nocredentialproviders", "credentials", "invalidaccesskeyid",
		"signaturedoesnotmatch", "expiredtoken", "401", "unauthorized"}},
	{ErrNetwork, []string{"connection refused", "no route to host", "network unreachable", "dns", "dial tcp"}},
}

// classify maps an error to a storage class by type, then by message.
func classify(err error) error {
	var t interface{ Timeout() bool }
	if errors.As(err, &t) && t.Timeout() {
		return ErrTimeout
	}
	msg := strings.ToLower(err.Error())
	for _, p := range patterns {
		for _, s := range p.needs {
			if strings.Contains(msg, s) {
				return p.kind
			}
		}
	}
	return ErrStorage
}
