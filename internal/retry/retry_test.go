package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

var errFlaky = errors.New("flaky")

func fastConfig(attempts int) Config {
	return Config{MaxAttempts: attempts, InitialInterval: time.Millisecond, MaxInterval: 2 * time.Millisecond}
}

func TestDoRetriesUntilSuccess(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastConfig(3), nil, func() error {
		calls++
		if calls < 3 {
			return errFlaky
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestDoStopsAfterMaxAttempts(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastConfig(4), nil, func() error {
		calls++
		return errFlaky
	})
	if !errors.Is(err, errFlaky) {
		t.Fatalf("Do() error = %v, want %v", err, errFlaky)
	}
	if calls != 4 {
		t.Errorf("calls = %d, want 4", calls)
	}
}

func TestDoHonoursPermanentErrors(t *testing.T) {
	errFinal := errors.New("final")
	tests := []struct {
		name        string
		isPermanent func(error) bool
		op          func() error
	}{
		{
			name:        "predicate",
			isPermanent: func(err error) bool { return errors.Is(err, errFinal) },
			op:          func() error { return errFinal },
		},
		{
			name: "explicit",
			op:   func() error { return Permanent(errFinal) },
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			err := Do(context.Background(), fastConfig(5), tt.isPermanent, func() error {
				calls++
				return tt.op()
			})
			if !errors.Is(err, errFinal) {
				t.Fatalf("Do() error = %v", err)
			}
			if calls != 1 {
				t.Errorf("calls = %d, want 1", calls)
			}
		})
	}
}

func TestDoSingleAttempt(t *testing.T) {
	calls := 0
	_ = Do(context.Background(), Config{MaxAttempts: 1}, nil, func() error {
		calls++
		return errFlaky
	})
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}
