// Package jobs runs long network fetches as in-memory background jobs
// with progress pushed over the event broadcaster.
package jobs

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log"
	"sync"
	"time"
)

// Status values of a job.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

// Progress is one reported step.
type Progress struct {
	Operation string `json:"operation"`
	Current   int    `json:"current"`
	Total     int    `json:"total"`
}

// Job tracks one background run.
type Job struct {
	ID        string    `json:"id"`
	Status    string    `json:"status"`
	Progress  Progress  `json:"progress"`
	Error     string    `json:"error,omitempty"`
	StartedAt time.Time `json:"started_at"`

	result any
	cancel context.CancelFunc
}

// Publisher pushes job:progress events to connected clients.
type Publisher interface {
	Publish(event string, data any)
}

// Manager owns the job table.
type Manager struct {
	mu        sync.Mutex
	jobs      map[string]*Job
	publisher Publisher
}

// NewManager creates a manager publishing progress to pub (may be nil).
func NewManager(pub Publisher) *Manager {
	return &Manager{jobs: make(map[string]*Job), publisher: pub}
}

// Start launches fn in the background and returns the job id. fn
// receives a progress callback that also feeds the event channel.
func (m *Manager) Start(parent context.Context, fn func(ctx context.Context, report func(op string, current, total int)) (any, error)) string {
	id := newJobID()
	ctx, cancel := context.WithCancel(parent)
	job := &Job{ID: id, Status: StatusRunning, StartedAt: time.Now().UTC(), cancel: cancel}

	m.mu.Lock()
	m.jobs[id] = job
	m.mu.Unlock()

	go func() {
		defer cancel()
		result, err := fn(ctx, func(op string, current, total int) {
			p := Progress{Operation: op, Current: current, Total: total}
			m.mu.Lock()
			job.Progress = p
			m.mu.Unlock()
			if m.publisher != nil {
				m.publisher.Publish("job:progress", map[string]any{
					"job_id": id, "operation": op, "current": current, "total": total,
				})
			}
		})

		m.mu.Lock()
		defer m.mu.Unlock()
		switch {
		case ctx.Err() != nil && err != nil:
			job.Status = StatusCancelled
			job.Error = ctx.Err().Error()
		case err != nil:
			job.Status = StatusFailed
			job.Error = err.Error()
			log.Printf("[JOBS] Job %s failed: %v", id, err)
		default:
			job.Status = StatusCompleted
			job.result = result
		}
	}()
	return id
}

// Get returns a copy of the job's public state.
func (m *Manager) Get(id string) (Job, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return Job{}, false
	}
	return *job, true
}

// Result returns the completed job's payload.
func (m *Manager) Result(id string) (any, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok || job.Status != StatusCompleted {
		return nil, false
	}
	return job.result, true
}

// Cancel signals the job's context. The job observes it at the next
// progress boundary.
func (m *Manager) Cancel(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok || job.Status != StatusRunning {
		return false
	}
	job.cancel()
	return true
}

func newJobID() string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		panic("jobs: crypto/rand unavailable: " + err.Error())
	}
	return hex.EncodeToString(buf)
}
