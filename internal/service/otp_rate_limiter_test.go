package service

import (
	"testing"
	"time"
)

func TestMemoryOTPRateLimiter(t *testing.T) {
	l := NewOTPRateLimiter(time.Minute, 2)

	if !l.Allow("ann@x.com") || !l.Allow("ann@x.com") {
		t.Fatalf("expected first two requests to pass")
	}
	if l.Allow("ann@x.com") {
		t.Fatalf("expected third request within the window to be denied")
	}
	// Otra clave no comparte la ventana.
	if !l.Allow("bob@x.com") {
		t.Fatalf("expected independent keys to be unaffected")
	}
}

func TestMemoryOTPRateLimiterDefaults(t *testing.T) {
	l := NewOTPRateLimiter(0, 0)
	if !l.Allow("ann@x.com") {
		t.Fatalf("expected at least one request to pass with defaults")
	}
	if l.Allow("ann@x.com") {
		t.Fatalf("expected max to default to 1")
	}
}
