// Package sysnotify delivers a native OS desktop notification by shelling
// out to the platform's notification CLI. There is no single cross-platform
// Go library for this in the reference corpus, so it follows the same
// os/exec pattern the teacher uses elsewhere for external commands.
package sysnotify

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"time"

	"github.com/quietloop/ai-intervention-agent/internal/config"
	"github.com/quietloop/ai-intervention-agent/internal/port/notifier"
)

const sendTimeout = 3 * time.Second

// LiveConfig returns the current notification configuration.
type LiveConfig func() config.Notification

// Notifier fires a desktop notification through the host OS.
type Notifier struct {
	cfg LiveConfig
}

// New creates a system notification Notifier.
func New(cfg LiveConfig) *Notifier {
	return &Notifier{cfg: cfg}
}

func (n *Notifier) Name() string { return "system" }

func (n *Notifier) Capabilities() notifier.Capabilities {
	return notifier.Capabilities{RichFormatting: false, Threads: false}
}

// Send fires the notification if system notifications are enabled. A
// missing or failing platform command is returned as an error for the
// caller to log; it never blocks longer than sendTimeout.
func (n *Notifier) Send(ctx context.Context, notif notifier.Notification) error {
	if !n.cfg().SystemNotifyEnabled {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	cmd, err := command(ctx, notif.Title, notif.Message)
	if err != nil {
		return err
	}
	return cmd.Run()
}

func command(ctx context.Context, title, message string) (*exec.Cmd, error) {
	switch runtime.GOOS {
	case "linux":
		return exec.CommandContext(ctx, "notify-send", title, message), nil
	case "darwin":
		script := fmt.Sprintf(`display notification %q with title %q`, message, title)
		return exec.CommandContext(ctx, "osascript", "-e", script), nil
	case "windows":
		script := fmt.Sprintf(
			`[Windows.UI.Notifications.ToastNotificationManager, Windows.UI.Notifications, ContentType = WindowsRuntime] > $null; `+
				`New-BurntToastNotification -Text %q, %q`, title, message,
		)
		return exec.CommandContext(ctx, "powershell", "-NoProfile", "-Command", script), nil
	default:
		return nil, fmt.Errorf("sysnotify: unsupported platform %q", runtime.GOOS)
	}
}
