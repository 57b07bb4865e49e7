package settings

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
)

// exerciseStore runs the behaviour every backend shares.
func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := t.Context()

	if _, err := s.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(missing) err = %v, want ErrNotFound", err)
	}

	if err := s.Set(ctx, KeyLockPasscode, "1234"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	v, err := s.Get(ctx, KeyLockPasscode)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if v != "1234" {
		t.Errorf("Get = %q, want %q", v, "1234")
	}

	if err := SetBool(ctx, s, KeyOnboardingFinished, true); err != nil {
		t.Fatalf("SetBool failed: %v", err)
	}
	b, err := GetBool(ctx, s, KeyOnboardingFinished)
	if err != nil || !b {
		t.Errorf("GetBool = %v, %v, want true, nil", b, err)
	}

	if err := s.Delete(ctx, KeyLockPasscode); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	def, err := GetDefault(ctx, s, KeyLockPasscode, "none")
	if err != nil || def != "none" {
		t.Errorf("GetDefault after delete = %q, %v, want none, nil", def, err)
	}
}

func TestMemory(t *testing.T) {
	exerciseStore(t, NewMemory(nil))
}

func TestMemory_Initial(t *testing.T) {
	initial := map[string]string{KeyOnboardingFinished: "true"}
	m := NewMemory(initial)
	initial[KeyOnboardingFinished] = "false"

	b, _ := GetBool(context.Background(), m, KeyOnboardingFinished)
	if !b {
		t.Error("store should be isolated from the caller's initial map")
	}
}

func TestGetBool_Values(t *testing.T) {
	tests := []struct {
		value string
		want  bool
	}{
		{"1", true},
		{"true", true},
		{"0", false},
		{"false", false},
		{"garbage", false},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			m := NewMemory(map[string]string{"k": tt.value})
			got, err := GetBool(t.Context(), m, "k")
			if err != nil {
				t.Fatalf("GetBool failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("GetBool(%q) = %v, want %v", tt.value, got, tt.want)
			}
		})
	}
}

func TestFileStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "user", "settings.msgpack")
	s, err := OpenFile(path)
	if err != nil {
		t.Fatalf("OpenFile failed: %v", err)
	}
	exerciseStore(t, s)

	if err := s.Set(t.Context(), KeyUpdateHistory, `[]`); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	reopened, err := OpenFile(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	v, err := reopened.Get(t.Context(), KeyUpdateHistory)
	if err != nil || v != `[]` {
		t.Errorf("Get after reopen = %q, %v", v, err)
	}
	if b, _ := GetBool(t.Context(), reopened, KeyOnboardingFinished); !b {
		t.Error("onboarding flag lost after reopen")
	}
}

func TestFileStore_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.msgpack")
	if err := os.WriteFile(path, []byte{0xc1, 0xc1}, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := OpenFile(path); err == nil {
		t.Error("expected error for a corrupt settings file")
	}
}

func TestRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)

	s, err := NewRedis(RedisConfig{URL: "redis://" + mr.Addr()})
	if err != nil {
		t.Fatalf("NewRedis failed: %v", err)
	}
	defer func() { _ = s.Close() }()

	exerciseStore(t, s)

	// Values live in one hash.
	if got := mr.HGet(DefaultRedisKey, KeyOnboardingFinished); got != "1" {
		t.Errorf("hash field = %q, want %q", got, "1")
	}
}

func TestNewRedis_Validation(t *testing.T) {
	if _, err := NewRedis(RedisConfig{}); err == nil {
		t.Error("expected error for empty URL")
	}
	if _, err := NewRedis(RedisConfig{URL: "not-a-url://"}); err == nil {
		t.Error("expected error for invalid URL")
	}
}
