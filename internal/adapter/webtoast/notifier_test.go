package webtoast

import (
	"context"
	"testing"

	"github.com/quietloop/ai-intervention-agent/internal/config"
	"github.com/quietloop/ai-intervention-agent/internal/port/notifier"
)

// Compile-time interface check.
var _ notifier.Notifier = (*Notifier)(nil)

func TestNotifierName(t *testing.T) {
	n := New(func() config.Notification { return config.Notification{} })
	if n.Name() != "web" {
		t.Fatalf("expected 'web', got %q", n.Name())
	}
}

func TestSendDisabledReturnsNil(t *testing.T) {
	n := New(func() config.Notification { return config.Notification{WebEnabled: false} })
	if err := n.Send(context.Background(), notifier.Notification{Title: "test"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestSendEnabledReturnsNil(t *testing.T) {
	n := New(func() config.Notification { return config.Notification{WebEnabled: true} })
	if err := n.Send(context.Background(), notifier.Notification{Title: "test"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
