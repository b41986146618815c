// Package scheduler guarantees every task with a positive auto-resubmit
// timeout transitions to completed no later than its deadline, even if no
// human ever responds.
package scheduler

import (
	"log/slog"
	"sync"
	"time"

	"github.com/quietloop/ai-intervention-agent/internal/domain/task"
	"github.com/quietloop/ai-intervention-agent/internal/queue"
)

// Scheduler holds one logical timer per armed task.
type Scheduler struct {
	mu     sync.Mutex
	timers map[string]*time.Timer
	q      *queue.Queue
	onFire func(*task.Task)
	log    *slog.Logger
}

// New creates a Scheduler over q. onFire is called, outside any lock, after
// a timer successfully submits a synthesized result — typically to deliver
// that result to the rendezvous registry so the blocked RPC wakes.
func New(q *queue.Queue, onFire func(*task.Task), log *slog.Logger) *Scheduler {
	if log == nil {
		log = slog.Default()
	}
	return &Scheduler{
		timers: make(map[string]*time.Timer),
		q:      q,
		onFire: onFire,
		log:    log,
	}
}

// Arm schedules the deadline timer for id. Arming an id that is already
// armed replaces the previous timer; arming is therefore idempotent.
func (s *Scheduler) Arm(id string, deadline time.Time, resubmitPrompt string) {
	delay := time.Until(deadline)
	if delay < 0 {
		delay = 0
	}

	s.mu.Lock()
	if existing, ok := s.timers[id]; ok {
		existing.Stop()
	}
	s.timers[id] = time.AfterFunc(delay, func() { s.fire(id, resubmitPrompt) })
	s.mu.Unlock()
}

// Disarm cancels the timer for id, if any. Called on successful human
// submission and on eviction.
func (s *Scheduler) Disarm(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.timers[id]; ok {
		t.Stop()
		delete(s.timers, id)
	}
}

// DisarmAll cancels every outstanding timer. Called on process shutdown.
func (s *Scheduler) DisarmAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
}

func (s *Scheduler) fire(id, resubmitPrompt string) {
	s.mu.Lock()
	delete(s.timers, id)
	s.mu.Unlock()

	t, err := s.q.Submit(id, &task.Result{Text: resubmitPrompt, AutoResubmitted: true})
	if err != nil {
		// The task was already completed by a concurrent human submission;
		// the timer firing is a no-op, per the race resolution the queue owns.
		s.log.Debug("auto-resubmit timer fired for already-resolved task", "task_id", id)
		return
	}
	s.log.Info("auto-resubmit fired", "task_id", id)
	if s.onFire != nil {
		s.onFire(t)
	}
}
