package observe

import (
	"errors"
	"testing"
)

// TestNewInstrumentation_FillsNil verifies nil parts become no-ops.
func TestNewInstrumentation_FillsNil(t *testing.T) {
	inst := NewInstrumentation(nil, nil, nil)
	if inst.Tracer == nil || inst.Metrics == nil || inst.Logger == nil {
		t.Fatalf("expected all parts set, got %+v", inst)
	}
	if Nop().Logger == nil {
		t.Error("Nop() returned nil logger")
	}
}

// TestNewInstrumentation_KeepsParts verifies provided parts are used as is.
func TestNewInstrumentation_KeepsParts(t *testing.T) {
	logger := NewLogger("info")
	inst := NewInstrumentation(nil, nil, logger)
	if inst.Logger != logger {
		t.Error("expected provided logger to be kept")
	}
}

// TestFromObserver_Nil verifies a nil observer is rejected.
func TestFromObserver_Nil(t *testing.T) {
	if _, err := FromObserver(nil); !errors.Is(err, ErrNilObserver) {
		t.Errorf("expected ErrNilObserver, got: %v", err)
	}
}
