// Package bark implements the Bark push notification transport: an HTTPS
// POST to a user-operated endpoint identified by a device key.
package bark

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/quietloop/ai-intervention-agent/internal/config"
	"github.com/quietloop/ai-intervention-agent/internal/port/notifier"
)

const sendTimeout = 5 * time.Second

// LiveConfig returns the current notification configuration. The dispatcher
// passes the config Store's own accessor here so Send always consults
// whatever is configured right now, never a value captured at construction
// time — this is what lets toggling Bark in the UI take effect on the very
// next event.
type LiveConfig func() config.Notification

// Notifier sends Bark push notifications.
type Notifier struct {
	cfg    LiveConfig
	client *http.Client
}

// New creates a Bark Notifier that reads its endpoint, device key, icon, and
// action from cfg on every Send call.
func New(cfg LiveConfig) *Notifier {
	return &Notifier{
		cfg:    cfg,
		client: &http.Client{Timeout: sendTimeout},
	}
}

func (n *Notifier) Name() string { return "bark" }

func (n *Notifier) Capabilities() notifier.Capabilities {
	return notifier.Capabilities{RichFormatting: false, Threads: false}
}

type pushPayload struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	Icon  string `json:"icon,omitempty"`
	URL   string `json:"url,omitempty"`
	Copy  string `json:"copy,omitempty"`
	Group string `json:"group,omitempty"`
}

// Send posts a push notification through the currently configured Bark
// endpoint. If Bark is disabled, Send returns nil without making a request.
func (n *Notifier) Send(ctx context.Context, notif notifier.Notification) error {
	c := n.cfg()
	if !c.BarkEnabled {
		return nil
	}
	if c.BarkDeviceKey == "" {
		return notifier.ErrNotConfigured
	}

	endpoint := strings.TrimRight(c.BarkURL, "/") + "/" + url.PathEscape(c.BarkDeviceKey)
	payload := pushPayload{
		Title: notif.Title,
		Body:  notif.Message,
		Icon:  c.BarkIcon,
		Group: "ai-intervention-agent",
	}
	switch c.BarkAction {
	case "url":
		payload.URL = notif.Message
	case "copy":
		payload.Copy = notif.Message
	}

	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		if err := n.post(ctx, endpoint, payload); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	return fmt.Errorf("bark: send failed after retry: %w", lastErr)
}

// SendTest posts a probe notification through caller-supplied Bark
// parameters rather than the live config snapshot. It backs
// POST /api/test-bark, which exists precisely so the browser never has to
// call the Bark endpoint directly and run into CORS.
func SendTest(ctx context.Context, barkURL, deviceKey, icon, action, message string) error {
	if deviceKey == "" {
		return notifier.ErrNotConfigured
	}
	endpoint := strings.TrimRight(barkURL, "/") + "/" + url.PathEscape(deviceKey)
	payload := pushPayload{
		Title: "ai-intervention-agent test notification",
		Body:  message,
		Icon:  icon,
		Group: "ai-intervention-agent",
	}
	switch action {
	case "url":
		payload.URL = message
	case "copy":
		payload.Copy = message
	}
	n := New(func() config.Notification { return config.Notification{} })
	return n.post(ctx, endpoint, payload)
}

func (n *Notifier) post(ctx context.Context, endpoint string, payload pushPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("bark: endpoint returned status %d", resp.StatusCode)
	}
	return nil
}
