package adapter

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestBackoff(t *testing.T) {
	for n, want := range map[int]time.Duration{1: BaseBackoff, 2: 2 * BaseBackoff, 3: 4 * BaseBackoff} {
		if got := Backoff(n); got != want {
			t.Errorf("Backoff(%d) = %v, want %v", n, got, want)
		}
	}
}

func TestRetry(t *testing.T) {
	old := BaseBackoff
	BaseBackoff = time.Millisecond
	defer func() { BaseBackoff = old }()

	fatal := errors.New("fatal")
	flaky := errors.New("flaky")
	tests := []struct {
		name      string
		fail      int
		err       error
		wantCalls int
		wantErr   error
	}{
		{name: "first try", fail: 0, wantCalls: 1},
		{name: "recovers", fail: 2, err: flaky, wantCalls: 3},
		{name: "exhausted", fail: 9, err: flaky, wantCalls: 4, wantErr: flaky},
		{name: "permanent", fail: 9, err: fatal, wantCalls: 1, wantErr: fatal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			err := Retry(t.Context(), "test", 3, func(context.Context) error {
				calls++
				if calls <= tt.fail {
					return tt.err
				}
				return nil
			}, func(err error) bool { return errors.Is(err, fatal) })
			if calls != tt.wantCalls {
				t.Errorf("calls = %d, want %d", calls, tt.wantCalls)
			}
			if tt.wantErr == nil && err != nil {
				t.Errorf("err = %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
