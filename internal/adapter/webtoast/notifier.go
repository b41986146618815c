// Package webtoast is the indirect "web toast" transport: the browser UI
// polls the task list and renders its own alert, so this transport only
// takes part in the dispatcher's fan-out and logs; there is nothing to push,
// and the enabled toggle is not read here.
package webtoast

import (
	"context"

	"github.com/quietloop/ai-intervention-agent/internal/config"
	"github.com/quietloop/ai-intervention-agent/internal/port/notifier"
)

// LiveConfig returns the current notification configuration.
type LiveConfig func() config.Notification

// Notifier is a no-op delivery whose existence records that the toast
// transport was considered for the event, whatever its toggle says.
type Notifier struct {
	cfg LiveConfig
}

// New creates a web-toast Notifier.
func New(cfg LiveConfig) *Notifier {
	return &Notifier{cfg: cfg}
}

func (n *Notifier) Name() string { return "web" }

func (n *Notifier) Capabilities() notifier.Capabilities {
	return notifier.Capabilities{RichFormatting: true, Threads: false}
}

// Send is always a no-op: the task is already visible to the browser's next
// poll by the time this runs, whether or not the toggle is on. Disabled by
// toggle is a normal configuration state, not a delivery failure, so it is
// not reported as one.
func (n *Notifier) Send(_ context.Context, _ notifier.Notification) error {
	return nil
}
