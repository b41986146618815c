package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/quietloop/ai-intervention-agent/internal/adapter/bark"
	"github.com/quietloop/ai-intervention-agent/internal/config"
	"github.com/quietloop/ai-intervention-agent/internal/domain/task"
	"github.com/quietloop/ai-intervention-agent/internal/imaging"
)

const maxUploadBody = 64 * 1024 * 1024 // whole multipart body, across all image parts

// handleHealth is the liveness probe; it never touches the queue or config.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":             true,
		"uptime_seconds": time.Since(s.startedAt).Seconds(),
	})
}

// handleGetConfig returns the currently active task's UI-facing fields, or
// has_content=false when the queue has nothing active.
func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	now := time.Now()
	t, ok := s.feedback.ActiveTask()
	if !ok {
		writeJSON(w, http.StatusOK, map[string]any{
			"has_content": false,
			"server_time": now.UTC(),
		})
		return
	}

	body := map[string]any{
		"has_content":           true,
		"task_id":               t.ID,
		"project":               t.ProjectSlug,
		"prompt":                t.Prompt,
		"options":               t.Options,
		"auto_resubmit_timeout": t.AutoResubmitTimeout.Seconds(),
		"server_time":           now.UTC(),
	}
	if t.HasDeadline() {
		body["deadline"] = t.Deadline.UTC()
		body["remaining_time"] = t.RemainingTime(now).Seconds()
	}
	writeJSON(w, http.StatusOK, body)
}

// handleListTasks excludes nothing the queue itself hasn't already evicted;
// the queue's own sweep and each task's post-delivery Evict call are what
// keep a completed, consumed task off this listing.
func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	now := time.Now()
	tasks := s.feedback.ListTasks()
	dtos := make([]taskDTO, 0, len(tasks))
	for _, t := range tasks {
		dtos = append(dtos, toTaskDTO(t, now))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"tasks":       dtos,
		"stats":       s.feedback.Stats(),
		"server_time": now.UTC(),
	})
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	id := urlParam(r, "id")
	t, err := s.feedback.GetTask(id)
	if err != nil {
		writeDomainError(w, err, "task not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"task":    toTaskDTO(*t, time.Now()),
	})
}

func (s *Server) handleActivateTask(w http.ResponseWriter, r *http.Request) {
	id := urlParam(r, "id")
	if err := s.feedback.Activate(id); err != nil {
		writeDomainError(w, err, "task not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) handleClose(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("task_id")
	if id == "" {
		t, ok := s.feedback.ActiveTask()
		if !ok {
			writeError(w, http.StatusNotFound, "no active task to close")
			return
		}
		id = t.ID
	}
	if _, err := s.feedback.Close(id); err != nil {
		writeDomainError(w, err, "task not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// handleSubmit resolves the currently active task implicitly.
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	t, ok := s.feedback.ActiveTask()
	if !ok {
		writeError(w, http.StatusNotFound, "no active task to submit to")
		return
	}
	s.submitTo(w, r, t.ID)
}

// handleSubmitTask addresses a specific task id, avoiding the implicit
// active-task race §4.5 calls out.
func (s *Server) handleSubmitTask(w http.ResponseWriter, r *http.Request) {
	s.submitTo(w, r, urlParam(r, "id"))
}

func (s *Server) submitTo(w http.ResponseWriter, r *http.Request, id string) {
	if err := r.ParseMultipartForm(maxUploadBody); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart body")
		return
	}

	result := &task.Result{Text: r.FormValue("feedback_text")}

	if raw := r.FormValue("selected_options"); raw != "" {
		var opts []string
		if err := json.Unmarshal([]byte(raw), &opts); err != nil {
			writeError(w, http.StatusBadRequest, "selected_options must be a JSON array of strings")
			return
		}
		result.SelectedOptions = opts
	}

	if r.MultipartForm != nil {
		for field, headers := range r.MultipartForm.File {
			if len(field) < 6 || field[:6] != "image_" {
				continue
			}
			for _, fh := range headers {
				f, err := fh.Open()
				if err != nil {
					writeError(w, http.StatusBadRequest, "could not read "+field)
					return
				}
				data, readErr := io.ReadAll(f)
				f.Close()
				if readErr != nil {
					writeError(w, http.StatusBadRequest, "could not read "+field)
					return
				}
				img, err := imaging.Normalize(fh.Filename, data)
				if err != nil {
					writeDomainError(w, err, "invalid image upload")
					return
				}
				result.Images = append(result.Images, task.Image{Bytes: img.Bytes, Mime: img.Mime})
			}
		}
	}

	if _, err := s.feedback.SubmitResult(id, result); err != nil {
		writeDomainError(w, err, "task not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "submitted"})
}

func (s *Server) handleGetNotificationConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "success",
		"config": s.store.Snapshot().Notification,
	})
}

func (s *Server) handleUpdateNotificationConfig(w http.ResponseWriter, r *http.Request) {
	updates, ok := readJSON[map[string]any](w, r, 1<<20)
	if !ok {
		return
	}
	if _, err := s.store.UpdateNotificationSection(updates); err != nil {
		if errors.Is(err, config.ErrInvalidConfig) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeInternalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "success", "message": "notification config updated"})
}

type testBarkRequest struct {
	BarkURL       string `json:"bark_url"`
	BarkDeviceKey string `json:"bark_device_key"`
	BarkIcon      string `json:"bark_icon"`
	BarkAction    string `json:"bark_action"`
	Message       string `json:"message"`
}

func (s *Server) handleTestBark(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[testBarkRequest](w, r, 1<<16)
	if !ok {
		return
	}
	if !requireField(w, req.BarkDeviceKey, "bark_device_key") {
		return
	}
	message := req.Message
	if message == "" {
		message = "This is a test notification from ai-intervention-agent."
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()
	if err := bark.SendTest(ctx, req.BarkURL, req.BarkDeviceKey, req.BarkIcon, req.BarkAction, message); err != nil {
		writeJSON(w, http.StatusBadGateway, map[string]any{"status": "error", "message": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "success", "message": "test notification sent"})
}

func (s *Server) handleGetFeedbackPrompts(w http.ResponseWriter, r *http.Request) {
	f := s.store.Snapshot().Feedback
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "success",
		"config": feedbackPromptsDTO{ResubmitPrompt: f.ResubmitPrompt, PromptSuffix: f.PromptSuffix},
	})
}
