package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/quietloop/ai-intervention-agent/internal/config"
	"github.com/quietloop/ai-intervention-agent/internal/domain"
	"github.com/quietloop/ai-intervention-agent/internal/domain/task"
	"github.com/quietloop/ai-intervention-agent/internal/port/notifier"
	"github.com/quietloop/ai-intervention-agent/internal/queue"
	"github.com/quietloop/ai-intervention-agent/internal/rendezvous"
	"github.com/quietloop/ai-intervention-agent/internal/scheduler"
)

// FeedbackService is the single entry point behind the interactive_feedback
// tool and its HTTP mirror. It owns the six-step protocol: validate, enqueue,
// register a rendezvous slot, arm the auto-resubmit deadline, notify, and
// block for a result.
type FeedbackService struct {
	store     *config.Store
	queue     *queue.Queue
	registry  *rendezvous.Registry[task.Result]
	scheduler *scheduler.Scheduler
	notifier  *NotificationService
	log       *slog.Logger
}

// NewFeedbackService wires a queue, a rendezvous registry, and a scheduler
// armed to deliver through that same registry, so a timer firing and a human
// submitting race through the identical queue.Submit -> Deliver path.
func NewFeedbackService(store *config.Store, q *queue.Queue, notif *NotificationService, log *slog.Logger) *FeedbackService {
	if log == nil {
		log = slog.Default()
	}
	registry := rendezvous.New[task.Result]()
	s := &FeedbackService{
		store:    store,
		queue:    q,
		registry: registry,
		notifier: notif,
		log:      log,
	}
	s.scheduler = scheduler.New(q, func(t *task.Task) {
		s.registry.Deliver(t.ID, t.Result)
	}, log)
	return s
}

// RequestFeedback implements the interactive_feedback tool entry: it blocks
// the caller until a human responds, the task's own auto-resubmit deadline
// fires, the overall feedback timeout elapses, or the service is shut down.
func (s *FeedbackService) RequestFeedback(ctx context.Context, prompt string, options []string, autoResubmitTimeout time.Duration) (*task.Result, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, fmt.Errorf("%w: prompt must not be empty", domain.ErrInvalid)
	}

	cfg := s.store.Snapshot().Feedback
	if autoResubmitTimeout == 0 {
		autoResubmitTimeout = time.Duration(cfg.DefaultAutoResubmitTimeout) * time.Second
	}

	t, err := s.queue.Add(prompt, options, autoResubmitTimeout)
	if err != nil {
		return nil, err
	}

	slot := s.registry.Register(t.ID)
	if t.HasDeadline() {
		s.scheduler.Arm(t.ID, t.Deadline, cfg.ResubmitPrompt)
	}

	if s.notifier != nil {
		s.notifier.Send(notifier.Notification{
			Title:   fmt.Sprintf("Feedback requested (%s)", t.ProjectSlug),
			Message: prompt,
			Level:   "info",
			Source:  "feedback.requested",
		})
	}

	waitCtx := ctx
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, time.Duration(cfg.Timeout)*time.Second)
		defer cancel()
	}

	result, outcome := s.registry.Wait(waitCtx, slot)
	s.scheduler.Disarm(t.ID)
	defer s.queue.Evict(t.ID)

	switch outcome {
	case rendezvous.Delivered:
		return result, nil
	case rendezvous.TimedOut:
		return s.resolveTimeout(t.ID, cfg.ResubmitPrompt)
	default: // rendezvous.Cancelled
		return nil, context.Canceled
	}
}

// resolveTimeout submits the canned auto-resubmit result on behalf of a task
// whose overall feedback.timeout elapsed without the scheduler's own deadline
// having fired first (e.g. auto-resubmit is off because neither the call nor
// feedback.default_auto_resubmit_timeout gives a timeout, or the caller's own
// context ended first). If a
// concurrent submission already completed the task, that result wins instead.
func (s *FeedbackService) resolveTimeout(id, resubmitPrompt string) (*task.Result, error) {
	t, err := s.queue.Submit(id, &task.Result{Text: resubmitPrompt, AutoResubmitted: true})
	if err != nil {
		if got, gerr := s.queue.Get(id); gerr == nil && got.Result != nil {
			return got.Result, nil
		}
		return nil, err
	}
	return t.Result, nil
}

// SubmitResult is the human-facing counterpart to the scheduler's own fire
// path: it records the result, disarms any pending auto-resubmit timer, and
// wakes a blocked RequestFeedback call through the rendezvous registry.
func (s *FeedbackService) SubmitResult(id string, result *task.Result) (*task.Task, error) {
	t, err := s.queue.Submit(id, result)
	if err != nil {
		return nil, err
	}
	s.scheduler.Disarm(id)
	s.registry.Deliver(id, t.Result)
	return t, nil
}

// Close submits the canned closing text for id as if a human had responded,
// resolving the spec's open question about POST /api/close by treating close
// as cancel-as-submission.
func (s *FeedbackService) Close(id string) (*task.Task, error) {
	return s.SubmitResult(id, &task.Result{Cancelled: true, Text: "The user closed the feedback window without responding."})
}

// Activate promotes a pending task to active, overriding FIFO order.
func (s *FeedbackService) Activate(id string) error {
	return s.queue.Activate(id)
}

// ListTasks returns every live task.
func (s *FeedbackService) ListTasks() []task.Task {
	return s.queue.List()
}

// ActiveTask returns the single task currently active, if any.
func (s *FeedbackService) ActiveTask() (*task.Task, bool) {
	for _, t := range s.queue.List() {
		if t.Status == task.StatusActive {
			return &t, true
		}
	}
	return nil, false
}

// GetTask returns a single task by id.
func (s *FeedbackService) GetTask(id string) (*task.Task, error) {
	return s.queue.Get(id)
}

// Stats reports current queue occupancy.
func (s *FeedbackService) Stats() queue.Stats {
	return s.queue.Stats()
}

// Shutdown cancels every outstanding timer and wakes every blocked
// RequestFeedback call with a cancellation outcome, then stops the queue's
// background sweep. Called once, from the process's graceful shutdown path.
func (s *FeedbackService) Shutdown() {
	s.scheduler.DisarmAll()
	s.registry.CancelAll()
	s.queue.Close()
}
