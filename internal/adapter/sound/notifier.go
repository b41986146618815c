// Package sound is the indirect "sound" transport: the browser UI plays a
// pre-bundled audio asset on its own poll, mirroring webtoast's indirection.
package sound

import (
	"context"

	"github.com/quietloop/ai-intervention-agent/internal/config"
	"github.com/quietloop/ai-intervention-agent/internal/port/notifier"
)

// LiveConfig returns the current notification configuration.
type LiveConfig func() config.Notification

// Notifier is a no-op delivery; it does not read the sound toggle or mute flag.
type Notifier struct {
	cfg LiveConfig
}

// New creates a sound Notifier.
func New(cfg LiveConfig) *Notifier {
	return &Notifier{cfg: cfg}
}

func (n *Notifier) Name() string { return "sound" }

func (n *Notifier) Capabilities() notifier.Capabilities {
	return notifier.Capabilities{RichFormatting: false, Threads: false}
}

// Send is always a no-op, whether or not sound is enabled or muted: the
// browser plays the bundled asset itself on its next poll. Disabled or
// muted by toggle is a normal configuration state, not a delivery failure,
// so it is not reported as one.
func (n *Notifier) Send(_ context.Context, _ notifier.Notification) error {
	return nil
}
