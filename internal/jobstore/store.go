package jobstore

import (
	"context"
	"encoding/json"
	"time"

	"transcribecore/internal/models"
	"transcribecore/internal/repository"
)

// Store is C1, the Job Store: a durable key->record map plus the pub/sub
// channel of progress events. It composes the gorm-backed JobRepository
// with the in-memory EventBus.
type Store struct {
	repo repository.JobRepository
	bus  *EventBus
}

// NewStore constructs the Job Store over an already-migrated database.
func NewStore(repo repository.JobRepository, bus *EventBus) *Store {
	return &Store{repo: repo, bus: bus}
}

// Record is the externally-facing projection of a Job, with its JSON blob
// columns decoded into structured fields.
type Record struct {
	JobID        string                        `json:"job_id"`
	SourceKind   models.SourceKind             `json:"source_kind"`
	SourceValue  string                        `json:"source_value"`
	Options      models.JobOptions             `json:"options"`
	Status       models.JobStatus              `json:"status"`
	Progress     int                           `json:"progress"`
	CurrentStage string                        `json:"current_stage"`
	CreatedAt    time.Time                     `json:"created_at"`
	StartedAt    *time.Time                    `json:"started_at,omitempty"`
	FinishedAt   *time.Time                    `json:"finished_at,omitempty"`
	Error        *models.JobError              `json:"error,omitempty"`
	Artifacts    map[string]models.ArtifactRef `json:"artifacts"`
	Metadata     models.JobMetadata            `json:"metadata"`
	Warnings     string                        `json:"warnings,omitempty"`
}

// Create inserts a new job in status=queued. Succeeds exactly once per id.
func (s *Store) Create(ctx context.Context, jobID string, sourceKind models.SourceKind, sourceValue string, opts models.JobOptions) (*Record, error) {
	optionsJSON, err := json.Marshal(opts)
	if err != nil {
		return nil, err
	}

	job := &models.Job{
		ID:            jobID,
		SourceKind:    sourceKind,
		SourceValue:   sourceValue,
		OptionsJSON:   string(optionsJSON),
		Status:        models.StatusQueued,
		Progress:      0,
		CurrentStage:  "queued",
		ArtifactsJSON: "{}",
		MetadataJSON:  "{}",
	}
	if err := s.repo.Create(ctx, job); err != nil {
		return nil, err
	}
	return toRecord(job)
}

// Get returns the current projection of a job record, or an error wrapping
// gorm.ErrRecordNotFound if unknown.
func (s *Store) Get(ctx context.Context, jobID string) (*Record, error) {
	job, err := s.repo.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	return toRecord(job)
}

// Update applies an atomic patch and returns the resulting record. Illegal
// state transitions fail without side effects (repository.ErrIllegalTransition).
func (s *Store) Update(ctx context.Context, jobID string, patch repository.Patch) (*Record, error) {
	job, err := s.repo.ApplyPatch(ctx, jobID, patch)
	if err != nil {
		return nil, err
	}
	return toRecord(job)
}

// Publish fans a progress/completed/error event out to current subscribers.
// Best-effort and non-blocking; does not persist the event itself.
func (s *Store) Publish(jobID string, ev Event) {
	s.bus.Publish(jobID, ev)
}

// Subscribe returns a channel of events published for jobID after this call.
func (s *Store) Subscribe(jobID string) chan Event {
	return s.bus.Subscribe(jobID)
}

// Unsubscribe detaches a previously subscribed channel.
func (s *Store) Unsubscribe(jobID string, ch chan Event) {
	s.bus.Unsubscribe(jobID, ch)
}

func toRecord(job *models.Job) (*Record, error) {
	r := &Record{
		JobID:        job.ID,
		SourceKind:   job.SourceKind,
		SourceValue:  job.SourceValue,
		Status:       job.Status,
		Progress:     job.Progress,
		CurrentStage: job.CurrentStage,
		CreatedAt:    job.CreatedAt,
		StartedAt:    job.StartedAt,
		FinishedAt:   job.FinishedAt,
		Warnings:     job.Warnings,
	}

	if job.OptionsJSON != "" {
		if err := json.Unmarshal([]byte(job.OptionsJSON), &r.Options); err != nil {
			return nil, err
		}
	}
	if job.ErrorJSON != "" {
		var e models.JobError
		if err := json.Unmarshal([]byte(job.ErrorJSON), &e); err != nil {
			return nil, err
		}
		r.Error = &e
	}
	r.Artifacts = map[string]models.ArtifactRef{}
	if job.ArtifactsJSON != "" {
		if err := json.Unmarshal([]byte(job.ArtifactsJSON), &r.Artifacts); err != nil {
			return nil, err
		}
	}
	if job.MetadataJSON != "" {
		if err := json.Unmarshal([]byte(job.MetadataJSON), &r.Metadata); err != nil {
			return nil, err
		}
	}
	return r, nil
}
