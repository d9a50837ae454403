package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"pixelpop/server/internal/domain"
)

// QueueName is the single logical queue all generation jobs flow through.
const QueueName = "generation_queue"

// Manager owns the queue backend: it assigns ids, serializes job records, and
// is the only component allowed to mutate them. Producers and the worker only
// ever go through a Manager.
type Manager struct {
	backend Backend
}

// NewManager wraps the chosen backend. The backend is picked once at process
// start; callers never branch on the deployment mode.
func NewManager(backend Backend) *Manager {
	return &Manager{backend: backend}
}

// Enqueue creates a PENDING job, persists it, and appends it to the pending
// list. The job is visible to Get immediately and to Pop in FIFO order.
func (m *Manager) Enqueue(ctx context.Context, prompt string, params domain.Params, userID int64) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", domain.ErrInvalidPrompt
	}

	job := domain.Job{
		ID:         uuid.NewString(),
		UserID:     userID,
		Prompt:     prompt,
		Parameters: params,
		Status:     domain.JobStatusPending,
		CreatedAt:  time.Now().UTC(),
	}
	record, err := json.Marshal(job)
	if err != nil {
		return "", fmt.Errorf("queue: encode job: %w", err)
	}

	if err := m.backend.Set(ctx, jobKey(job.ID), record); err != nil {
		return "", err
	}
	if err := m.backend.Push(ctx, QueueName, record); err != nil {
		return "", err
	}
	return job.ID, nil
}

// Get returns the latest stored state of the job, or domain.ErrNotFound.
func (m *Manager) Get(ctx context.Context, jobID string) (*domain.Job, error) {
	record, err := m.backend.Get(ctx, jobKey(jobID))
	if err != nil {
		return nil, err
	}
	var job domain.Job
	if err := json.Unmarshal(record, &job); err != nil {
		return nil, fmt.Errorf("queue: decode job %s: %w", jobID, err)
	}
	return &job, nil
}

// Update merges the partial fields into the stored record. A job already in a
// terminal state is left untouched. Updating a job that no longer exists
// (e.g. the durable backend expired it mid-flight) returns
// domain.ErrNotFound; callers treat that as a harmless no-op.
func (m *Manager) Update(ctx context.Context, jobID string, upd domain.JobUpdate) error {
	job, err := m.Get(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Status.Terminal() {
		return nil
	}

	if upd.Status != nil {
		job.Status = *upd.Status
	}
	if upd.Result != nil {
		job.Result = upd.Result
	}
	if upd.Error != nil {
		job.Error = *upd.Error
	}

	record, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("queue: encode job %s: %w", jobID, err)
	}
	return m.backend.Set(ctx, jobKey(jobID), record)
}

// Pop removes and returns the oldest pending job, or domain.ErrEmptyQueue.
// It never blocks longer than the backend's own pop timeout.
func (m *Manager) Pop(ctx context.Context) (*domain.Job, error) {
	record, err := m.backend.Pop(ctx, QueueName)
	if err != nil {
		return nil, err
	}
	var job domain.Job
	if err := json.Unmarshal(record, &job); err != nil {
		return nil, fmt.Errorf("queue: decode popped job: %w", err)
	}
	return &job, nil
}

func jobKey(jobID string) string {
	return "job:" + jobID
}
