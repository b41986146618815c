package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/quietloop/ai-intervention-agent/internal/config"
	"github.com/quietloop/ai-intervention-agent/internal/domain/task"
	"github.com/quietloop/ai-intervention-agent/internal/queue"
	"github.com/quietloop/ai-intervention-agent/internal/service"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.jsonc")
	store, err := config.Open(path, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(store.Close)

	q := queue.New("proj", 10, time.Minute)
	t.Cleanup(q.Close)

	fb := service.NewFeedbackService(store, q, nil, nil)
	t.Cleanup(fb.Shutdown)

	return NewServer(store, fb, nil)
}

func doRequest(t *testing.T, s *Server, method, target string, body io.Reader) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, body)
	req.RemoteAddr = "127.0.0.1:55555"
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(t)
	rec := doRequest(t, s, http.MethodGet, "/api/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["ok"] != true {
		t.Fatalf("expected ok:true, got %v", body)
	}
	if _, ok := body["uptime_seconds"].(float64); !ok {
		t.Fatalf("expected numeric uptime_seconds, got %v", body)
	}
}

func TestGetConfigReportsNoActiveTask(t *testing.T) {
	s := newTestServer(t)
	rec := doRequest(t, s, http.MethodGet, "/api/config", nil)
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["has_content"] != false {
		t.Fatalf("expected has_content=false, got %v", body)
	}
}

func TestSubmitFlowEndToEnd(t *testing.T) {
	s := newTestServer(t)

	resultCh := make(chan *task.Result, 1)
	go func() {
		r, _ := s.feedback.RequestFeedback(context.Background(), "pick a color", []string{"red", "blue"}, 0)
		resultCh <- r
	}()

	var id string
	for i := 0; i < 50; i++ {
		rec := doRequest(t, s, http.MethodGet, "/api/tasks", nil)
		var body struct {
			Tasks []taskDTO `json:"tasks"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err == nil && len(body.Tasks) == 1 {
			id = body.Tasks[0].ID
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if id == "" {
		t.Fatal("task never appeared")
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	_ = mw.WriteField("feedback_text", "blue")
	_ = mw.WriteField("selected_options", `["blue"]`)
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/tasks/"+id+"/submit", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.RemoteAddr = "127.0.0.1:55555"
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	select {
	case r := <-resultCh:
		if r == nil {
			t.Fatal("expected a result, got nil")
		}
		if r.Text != "blue" {
			t.Fatalf("expected Text %q, got %q", "blue", r.Text)
		}
		if len(r.SelectedOptions) != 1 || r.SelectedOptions[0] != "blue" {
			t.Fatalf("expected SelectedOptions [\"blue\"], got %v", r.SelectedOptions)
		}
	case <-time.After(time.Second):
		t.Fatal("RequestFeedback never unblocked after submit")
	}
}

func TestActivateUnknownTaskReturns404(t *testing.T) {
	s := newTestServer(t)
	rec := doRequest(t, s, http.MethodPost, "/api/tasks/does-not-exist/activate", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestACLBlocksAddressOutsideAllowedNetworks(t *testing.T) {
	s := newTestServer(t)

	// The default allowed_networks only covers loopback and private ranges,
	// so a public address should be rejected under the default policy.
	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.RemoteAddr = "203.0.113.5:1234"
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for address outside allowed_networks, got %d", rec.Code)
	}
}
