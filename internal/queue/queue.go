// Package queue owns every Task: it assigns identifiers, enforces the
// pending -> active -> completed state machine and the at-most-one-active
// invariant, and retains completed tasks only long enough for their RPC
// caller to consume the result.
package queue

import (
	"fmt"
	"sync"
	"time"

	"github.com/quietloop/ai-intervention-agent/internal/domain"
	"github.com/quietloop/ai-intervention-agent/internal/domain/task"
)

// Stats reports task counts by status.
type Stats struct {
	Pending   int `json:"pending"`
	Active    int `json:"active"`
	Completed int `json:"completed"`
	Max       int `json:"max"`
}

// Queue holds all live tasks for one process. All state transitions are
// serialized by mu; listings are copied out under lock so callers never
// observe a torn snapshot.
type Queue struct {
	mu          sync.Mutex
	projectSlug string
	tasks       map[string]*task.Task
	order       []string // creation order, append-only; entries removed on evict
	activeID    string
	counter     int
	maxTasks    int

	evictAfter    time.Duration
	sweepInterval time.Duration
	stopSweep     chan struct{}
	sweepDone     chan struct{}
}

// New creates an empty Queue for the given project and starts its background
// eviction sweep. maxTasks bounds how many live (non-evicted) tasks the queue
// will hold at once; Add rejects new tasks once at capacity. evictAfter is
// the grace period a completed task survives without being evicted, acting
// as a safety net for callers that forget to call Evict explicitly.
func New(projectSlug string, maxTasks int, evictAfter time.Duration) *Queue {
	if maxTasks <= 0 {
		maxTasks = 10
	}
	if evictAfter <= 0 {
		evictAfter = 10 * time.Second
	}
	q := &Queue{
		projectSlug:   projectSlug,
		tasks:         make(map[string]*task.Task),
		maxTasks:      maxTasks,
		evictAfter:    evictAfter,
		sweepInterval: 5 * time.Second,
		stopSweep:     make(chan struct{}),
		sweepDone:     make(chan struct{}),
	}
	go q.sweepLoop()
	return q
}

// Add creates a task in pending and, if no task is currently active,
// immediately promotes it to active.
func (q *Queue) Add(prompt string, options []string, autoResubmitTimeout time.Duration) (*task.Task, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.tasks) >= q.maxTasks {
		return nil, fmt.Errorf("%w: queue at capacity (%d tasks)", domain.ErrInvalid, q.maxTasks)
	}

	q.counter++
	now := time.Now()
	t := &task.Task{
		ID:                  fmt.Sprintf("%s-%04d", q.projectSlug, q.counter),
		ProjectSlug:         q.projectSlug,
		Prompt:              prompt,
		Options:             append([]string{}, options...),
		AutoResubmitTimeout: autoResubmitTimeout,
		Status:              task.StatusPending,
		CreatedAt:           now,
		Seq:                 q.counter,
	}
	if autoResubmitTimeout > 0 {
		t.Deadline = now.Add(autoResubmitTimeout)
	}

	q.tasks[t.ID] = t
	q.order = append(q.order, t.ID)

	if q.activeID == "" {
		t.Status = task.StatusActive
		q.activeID = t.ID
	}

	out := *t
	return &out, nil
}

// Get returns a copy of the task with the given id.
func (q *Queue) Get(id string) (*task.Task, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	t, ok := q.tasks[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := *t
	return &out, nil
}

// List returns all live tasks in stable creation order.
func (q *Queue) List() []task.Task {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]task.Task, 0, len(q.order))
	for _, id := range q.order {
		out = append(out, *q.tasks[id])
	}
	return out
}

// Stats reports the current count of tasks by status.
func (q *Queue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()

	s := Stats{Max: q.maxTasks}
	for _, id := range q.order {
		switch q.tasks[id].Status {
		case task.StatusPending:
			s.Pending++
		case task.StatusActive:
			s.Active++
		case task.StatusCompleted:
			s.Completed++
		}
	}
	return s
}

// Activate explicitly promotes a pending task to active, demoting the
// current active task (if any) back to pending. Activating an already-active
// task is a no-op. Activating a completed or unknown task fails.
func (q *Queue) Activate(id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	t, ok := q.tasks[id]
	if !ok {
		return domain.ErrNotFound
	}
	switch t.Status {
	case task.StatusActive:
		return nil
	case task.StatusCompleted:
		return fmt.Errorf("%w: task %s already completed", domain.ErrConflict, id)
	}

	if q.activeID != "" {
		if prev, ok := q.tasks[q.activeID]; ok && prev.Status == task.StatusActive {
			prev.Status = task.StatusPending
		}
	}
	t.Status = task.StatusActive
	q.activeID = id
	return nil
}

// Submit records the result for a pending or active task, transitions it to
// completed, and — if it was the active task — promotes the earliest pending
// task (FIFO by creation, tied by sequence number) to active. Submitting to
// an already-completed or unknown task fails, so a timer racing a human
// submission for the same task always loses harmlessly.
func (q *Queue) Submit(id string, result *task.Result) (*task.Task, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	t, ok := q.tasks[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if t.Status == task.StatusCompleted {
		return nil, fmt.Errorf("%w: task %s already completed", domain.ErrConflict, id)
	}

	wasActive := t.Status == task.StatusActive
	t.Status = task.StatusCompleted
	t.Result = result
	t.CompletedAt = time.Now()

	if wasActive {
		q.activeID = ""
		q.promoteNextLocked()
	}

	out := *t
	return &out, nil
}

// Evict permanently removes a completed task. It is a no-op if the task is
// already gone.
func (q *Queue) Evict(id string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.removeLocked(id)
}

// Close stops the background eviction sweep. It does not evict any tasks.
func (q *Queue) Close() {
	close(q.stopSweep)
	<-q.sweepDone
}

func (q *Queue) promoteNextLocked() {
	var next *task.Task
	for _, id := range q.order {
		t := q.tasks[id]
		if t.Status != task.StatusPending {
			continue
		}
		if next == nil || t.CreatedAt.Before(next.CreatedAt) || (t.CreatedAt.Equal(next.CreatedAt) && t.Seq < next.Seq) {
			next = t
		}
	}
	if next != nil {
		next.Status = task.StatusActive
		q.activeID = next.ID
	}
}

func (q *Queue) removeLocked(id string) {
	if _, ok := q.tasks[id]; !ok {
		return
	}
	delete(q.tasks, id)
	for i, oid := range q.order {
		if oid == id {
			q.order = append(q.order[:i], q.order[i+1:]...)
			break
		}
	}
	if q.activeID == id {
		q.activeID = ""
	}
}

func (q *Queue) sweepLoop() {
	defer close(q.sweepDone)
	ticker := time.NewTicker(q.sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-q.stopSweep:
			return
		case <-ticker.C:
			q.sweepCompleted()
		}
	}
}

func (q *Queue) sweepCompleted() {
	q.mu.Lock()
	defer q.mu.Unlock()
	cutoff := time.Now().Add(-q.evictAfter)
	var stale []string
	for _, id := range q.order {
		t := q.tasks[id]
		if t.Status == task.StatusCompleted && t.CompletedAt.Before(cutoff) {
			stale = append(stale, id)
		}
	}
	for _, id := range stale {
		q.removeLocked(id)
	}
}
