package resilience

import (
	"errors"
	"fmt"
	"testing"
)

func TestSentinelErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"ErrMaxRetriesExceeded", ErrMaxRetriesExceeded},
		{"ErrBulkheadFull", ErrBulkheadFull},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err == nil {
				t.Fatalf("%s is nil", tt.name)
			}
			if tt.err.Error() == "" {
				t.Errorf("%s has empty message", tt.name)
			}
		})
	}
}

func TestPermanent(t *testing.T) {
	base := errors.New("read-only file system")

	if Permanent(nil) != nil {
		t.Error("Permanent(nil) != nil")
	}

	err := Permanent(base)
	if !IsPermanent(err) {
		t.Error("IsPermanent(Permanent(err)) = false")
	}
	if !errors.Is(err, base) {
		t.Error("Permanent does not unwrap to the original error")
	}
	if err.Error() != base.Error() {
		t.Errorf("Error() = %q, want %q", err.Error(), base.Error())
	}

	wrapped := fmt.Errorf("persist: %w", err)
	if !IsPermanent(wrapped) {
		t.Error("IsPermanent does not see through wrapping")
	}
	if IsPermanent(base) {
		t.Error("IsPermanent(base) = true")
	}
}
