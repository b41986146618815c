package http

import (
	"encoding/base64"
	"time"

	"github.com/quietloop/ai-intervention-agent/internal/domain/task"
)

// imageDTO is the wire triple described by §6: a content block an RPC
// caller or the browser UI can render without knowing this server's
// internal byte representation.
type imageDTO struct {
	Type     string `json:"type"`
	Data     string `json:"data"`
	MimeType string `json:"mimeType"`
}

type resultDTO struct {
	Text            string     `json:"text"`
	SelectedOptions []string   `json:"selected_options,omitempty"`
	Images          []imageDTO `json:"images,omitempty"`
	AutoResubmitted bool       `json:"auto_resubmitted"`
	Cancelled       bool       `json:"cancelled"`
}

type taskDTO struct {
	ID                  string      `json:"id"`
	Project             string      `json:"project"`
	Prompt              string      `json:"prompt"`
	Options             []string    `json:"options"`
	Status              task.Status `json:"status"`
	AutoResubmitTimeout float64     `json:"auto_resubmit_timeout"`
	CreatedAt           time.Time   `json:"created_at"`
	Deadline            *time.Time  `json:"deadline,omitempty"`
	RemainingTime       *float64    `json:"remaining_time,omitempty"`
	Result              *resultDTO  `json:"result,omitempty"`
}

func toResultDTO(r *task.Result) *resultDTO {
	if r == nil {
		return nil
	}
	images := make([]imageDTO, 0, len(r.Images))
	for _, img := range r.Images {
		images = append(images, imageDTO{
			Type:     "image",
			Data:     base64.StdEncoding.EncodeToString(img.Bytes),
			MimeType: img.Mime,
		})
	}
	return &resultDTO{
		Text:            r.Text,
		SelectedOptions: r.SelectedOptions,
		Images:          images,
		AutoResubmitted: r.AutoResubmitted,
		Cancelled:       r.Cancelled,
	}
}

func toTaskDTO(t task.Task, now time.Time) taskDTO {
	dto := taskDTO{
		ID:                  t.ID,
		Project:             t.ProjectSlug,
		Prompt:              t.Prompt,
		Options:             t.Options,
		Status:              t.Status,
		AutoResubmitTimeout: t.AutoResubmitTimeout.Seconds(),
		CreatedAt:           t.CreatedAt,
		Result:              toResultDTO(t.Result),
	}
	if t.HasDeadline() {
		d := t.Deadline
		dto.Deadline = &d
		remaining := t.RemainingTime(now).Seconds()
		dto.RemainingTime = &remaining
	}
	return dto
}

type feedbackPromptsDTO struct {
	ResubmitPrompt string `json:"resubmit_prompt"`
	PromptSuffix   string `json:"prompt_suffix"`
}
