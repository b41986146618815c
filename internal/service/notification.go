// Package service wires the core components together into the application
// behaviour the spec describes: notification fan-out and the feedback tool
// entry glue.
package service

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/quietloop/ai-intervention-agent/internal/config"
	"github.com/quietloop/ai-intervention-agent/internal/port/notifier"
)

const (
	maxConcurrentDispatch = 8
	perTransportBudget    = 5 * time.Second
)

// NotificationService fans a notification out to every registered transport
// concurrently. It never blocks the caller and never lets one transport's
// failure affect another's.
type NotificationService struct {
	store     *config.Store
	notifiers []notifier.Notifier
	sem       *semaphore.Weighted
	log       *slog.Logger
}

// NewNotificationService creates a dispatcher over the given transports. The
// config Store is consulted fresh on every Send so toggling a transport in
// the UI takes effect on the next event, never a stale captured value.
func NewNotificationService(store *config.Store, notifiers []notifier.Notifier, log *slog.Logger) *NotificationService {
	if log == nil {
		log = slog.Default()
	}
	return &NotificationService{
		store:     store,
		notifiers: notifiers,
		sem:       semaphore.NewWeighted(maxConcurrentDispatch),
		log:       log,
	}
}

// Send returns immediately; delivery to each transport happens on its own
// goroutine, bounded by perTransportBudget and by the service's overall
// concurrency limit.
func (s *NotificationService) Send(event notifier.Notification) {
	if !s.store.Snapshot().Notification.Enabled {
		return
	}
	for _, n := range s.notifiers {
		n := n
		go s.dispatch(n, event)
	}
}

func (s *NotificationService) dispatch(n notifier.Notifier, event notifier.Notification) {
	ctx, cancel := context.WithTimeout(context.Background(), perTransportBudget)
	defer cancel()

	if err := s.sem.Acquire(ctx, 1); err != nil {
		s.log.Warn("notification dispatch dropped, budget exceeded", "provider", n.Name())
		return
	}
	defer s.sem.Release(1)

	if err := n.Send(ctx, event); err != nil {
		s.log.Warn("notification send failed", "provider", n.Name(), "title", event.Title, "error", err)
		return
	}
	s.log.Debug("notification sent", "provider", n.Name(), "title", event.Title)
}
