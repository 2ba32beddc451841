package jobs

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

type Type string

const (
	TypeProductImport  Type = "product_import"
	TypeCategoryImport Type = "category_import"
)

// Job tracks one import request through its lifetime. Counters are
// cumulative; Found is set once when URL discovery finishes.
type Job struct {
	ID        string    `json:"id"`
	Type      Type      `json:"type"`
	Status    Status    `json:"status"`
	Found     int       `json:"found"`
	Ingested  int       `json:"ingested"`
	Skipped   int       `json:"skipped"`
	Failed    int       `json:"failed"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Manager keeps job state in memory. Jobs do not survive a restart; the
// products they ingested do.
type Manager struct {
	jobs map[string]*Job
	mu   sync.RWMutex
}

func NewManager() *Manager {
	return &Manager{
		jobs: make(map[string]*Job),
	}
}

func (m *Manager) Create(jobType Type) *Job {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()
	job := &Job{
		ID:        uuid.NewString(),
		Type:      jobType,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	m.jobs[job.ID] = job

	snapshot := *job
	return &snapshot
}

// Get returns a copy of the job, or nil when the id is unknown.
func (m *Manager) Get(id string) *Job {
	m.mu.RLock()
	defer m.mu.RUnlock()

	job, ok := m.jobs[id]
	if !ok {
		return nil
	}
	snapshot := *job
	return &snapshot
}

func (m *Manager) SetStatus(id string, status Status) {
	m.update(id, func(job *Job) {
		job.Status = status
	})
}

func (m *Manager) SetFound(id string, found int) {
	m.update(id, func(job *Job) {
		job.Found = found
	})
}

func (m *Manager) Fail(id string, reason string) {
	m.update(id, func(job *Job) {
		job.Status = StatusFailed
		job.Error = reason
	})
}

func (m *Manager) RecordIngested(id string) {
	m.update(id, func(job *Job) {
		job.Ingested++
		m.maybeComplete(job)
	})
}

func (m *Manager) RecordSkipped(id string) {
	m.update(id, func(job *Job) {
		job.Skipped++
		m.maybeComplete(job)
	})
}

func (m *Manager) RecordFailed(id string) {
	m.update(id, func(job *Job) {
		job.Failed++
		m.maybeComplete(job)
	})
}

func (m *Manager) update(id string, fn func(*Job)) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.jobs[id]
	if !ok {
		return
	}
	fn(job)
	job.UpdatedAt = time.Now().UTC()
}

// maybeComplete flips a running job to completed once every discovered URL
// has been accounted for. Caller holds the lock.
func (m *Manager) maybeComplete(job *Job) {
	if job.Status != StatusRunning {
		return
	}
	if job.Found > 0 && job.Ingested+job.Skipped+job.Failed >= job.Found {
		job.Status = StatusCompleted
	}
}
