package server

import (
	"context"
	"testing"

	"golang.org/x/oauth2"

	"github.com/calguard/calguard/internal/schedule"
)

// stubTokenProvider never holds any tokens, so client creation is skipped.
type stubTokenProvider struct{}

func (stubTokenProvider) GetTokenForAccount(_ context.Context, account string) (*oauth2.Token, error) {
	return nil, context.Canceled
}

func (stubTokenProvider) HasTokenForAccount(_ string) bool { return false }

func newTestServerContext(t *testing.T) *ServerContext {
	t.Helper()
	sc, err := NewServerContext(context.Background(), stubTokenProvider{}, schedule.DefaultConfig(), nil)
	if err != nil {
		t.Fatalf("NewServerContext() error = %v", err)
	}
	t.Cleanup(func() { _ = sc.Shutdown() })
	return sc
}

func TestNewServerContextValidatesDetectionConfig(t *testing.T) {
	cfg := schedule.DefaultConfig()
	cfg.DuplicateThreshold = 1.5

	if _, err := NewServerContext(context.Background(), stubTokenProvider{}, cfg, nil); err == nil {
		t.Error("NewServerContext() expected error for invalid detection config")
	}
}

func TestServerContextYoloGate(t *testing.T) {
	sc := newTestServerContext(t)

	if sc.Yolo() {
		t.Error("Yolo() = true before SetYolo, want false")
	}

	sc.SetYolo(true)
	if !sc.Yolo() {
		t.Error("Yolo() = false after SetYolo(true)")
	}
}

func TestServerContextDetectionConfig(t *testing.T) {
	sc := newTestServerContext(t)

	cfg := sc.DetectionConfig()
	if cfg.DuplicateThreshold != schedule.DefaultConfig().DuplicateThreshold {
		t.Errorf("DetectionConfig().DuplicateThreshold = %v, want default", cfg.DuplicateThreshold)
	}
}

func TestServerContextClientWithoutToken(t *testing.T) {
	sc := newTestServerContext(t)

	if client := sc.CalendarClientForAccount("work"); client != nil {
		t.Error("CalendarClientForAccount() = non-nil for account without token")
	}
	if client := sc.CalendarClient(); client != nil {
		t.Error("CalendarClient() = non-nil for default account without token")
	}
}

func TestServerContextShutdown(t *testing.T) {
	sc := newTestServerContext(t)

	if sc.IsShutdown() {
		t.Error("IsShutdown() = true before Shutdown")
	}

	if err := sc.Shutdown(); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}
	if !sc.IsShutdown() {
		t.Error("IsShutdown() = false after Shutdown")
	}

	select {
	case <-sc.Context().Done():
	default:
		t.Error("Context() not cancelled after Shutdown")
	}

	// Shutdown is idempotent.
	if err := sc.Shutdown(); err != nil {
		t.Errorf("second Shutdown() error = %v", err)
	}
}
