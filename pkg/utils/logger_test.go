package utils

import "testing"

func TestNewLogger(t *testing.T) {
	for _, debug := range []bool{true, false} {
		logger, err := NewLogger(debug)
		if err != nil {
			t.Fatalf("NewLogger(%t) error: %v", debug, err)
		}
		if logger == nil {
			t.Fatalf("NewLogger(%t) returned nil logger", debug)
		}
		if (logger.Core().Enabled(-1)) != debug { // -1 is DebugLevel
			t.Errorf("debug level enabled = %t, want %t", !debug, debug)
		}
		_ = logger.Sync()
	}
}
