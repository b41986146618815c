package service

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/quietloop/ai-intervention-agent/internal/config"
	"github.com/quietloop/ai-intervention-agent/internal/port/notifier"
)

// mockNotifier implements notifier.Notifier for testing and records every
// Send call, synchronizing on a WaitGroup since Send dispatches fan-out
// asynchronously on its own goroutine per transport.
type mockNotifier struct {
	name    string
	wg      *sync.WaitGroup
	sendErr error

	mu   sync.Mutex
	sent []notifier.Notification
}

func (m *mockNotifier) Name() string                        { return m.name }
func (m *mockNotifier) Capabilities() notifier.Capabilities { return notifier.Capabilities{} }
func (m *mockNotifier) Send(_ context.Context, n notifier.Notification) error {
	defer m.wg.Done()
	if m.sendErr != nil {
		return m.sendErr
	}
	m.mu.Lock()
	m.sent = append(m.sent, n)
	m.mu.Unlock()
	return nil
}

func (m *mockNotifier) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

func newTestStore(t *testing.T) *config.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.jsonc")
	store, err := config.Open(path, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(store.Close)
	return store
}

func TestNotificationServiceFansOutToEveryTransport(t *testing.T) {
	var wg sync.WaitGroup
	wg.Add(2)
	m1 := &mockNotifier{name: "mock1", wg: &wg}
	m2 := &mockNotifier{name: "mock2", wg: &wg}

	svc := NewNotificationService(newTestStore(t), []notifier.Notifier{m1, m2}, nil)
	svc.Send(notifier.Notification{Title: "Test", Message: "Hello", Level: "info", Source: "feedback.requested"})

	waitOrTimeout(t, &wg)
	if m1.count() != 1 {
		t.Fatalf("expected 1 notification on mock1, got %d", m1.count())
	}
	if m2.count() != 1 {
		t.Fatalf("expected 1 notification on mock2, got %d", m2.count())
	}
}

func TestNotificationServiceSkipsAllWhenDisabled(t *testing.T) {
	store := newTestStore(t)
	var wg sync.WaitGroup
	m := &mockNotifier{name: "mock", wg: &wg}
	svc := NewNotificationService(store, []notifier.Notifier{m}, nil)

	if _, err := store.UpdateNotificationSection(map[string]any{"enabled": false}); err != nil {
		t.Fatalf("UpdateNotificationSection: %v", err)
	}

	svc.Send(notifier.Notification{Title: "test"})
	time.Sleep(20 * time.Millisecond)
	if m.count() != 0 {
		t.Fatalf("expected no dispatch once notifications are disabled, got %d", m.count())
	}
}

func TestNotificationServiceOneFailureDoesNotBlockOthers(t *testing.T) {
	var wg sync.WaitGroup
	wg.Add(2)
	failing := &mockNotifier{name: "fail", wg: &wg, sendErr: errors.New("connection refused")}
	ok := &mockNotifier{name: "ok", wg: &wg}

	svc := NewNotificationService(newTestStore(t), []notifier.Notifier{failing, ok}, nil)
	svc.Send(notifier.Notification{Title: "test", Source: "feedback.requested"})

	waitOrTimeout(t, &wg)
	if ok.count() != 1 {
		t.Fatalf("expected the healthy notifier to still receive the event, got %d", ok.count())
	}
}

func waitOrTimeout(t *testing.T, wg *sync.WaitGroup) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for dispatch")
	}
}
