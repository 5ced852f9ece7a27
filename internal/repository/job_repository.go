package repository

import (
	"context"
	"errors"
	"fmt"

	"transcribecore/internal/models"

	"gorm.io/gorm"
)

// ErrIllegalTransition is returned when a patch would move a job out of its
// allowed status sequence (queued -> running -> {completed|failed}).
var ErrIllegalTransition = errors.New("illegal job status transition")

// ErrJobExists is returned by Create when the job id is already taken.
var ErrJobExists = errors.New("job already exists")

var legalTransitions = map[models.JobStatus]map[models.JobStatus]bool{
	models.StatusQueued: {
		models.StatusRunning: true,
	},
	models.StatusRunning: {
		models.StatusCompleted: true,
		models.StatusFailed:    true,
	},
	models.StatusCompleted: {},
	models.StatusFailed:    {},
}

// Patch is a partial update applied atomically to a job record.
type Patch struct {
	Status       *models.JobStatus
	Progress     *int
	CurrentStage *string
	StartedAt    *int64 // unix seconds, nil = leave unchanged
	FinishedAt   *int64
	Error        *models.JobError
	Artifacts    *map[string]models.ArtifactRef
	Metadata     *models.JobMetadata
	AppendWarning *string
}

// JobRepository is the C1 Job Store's persistence contract: create-once,
// atomic-patch update, point lookup.
type JobRepository interface {
	Create(ctx context.Context, job *models.Job) error
	Get(ctx context.Context, id string) (*models.Job, error)
	ApplyPatch(ctx context.Context, id string, patch Patch) (*models.Job, error)
}

type jobRepository struct {
	db *gorm.DB
}

// NewJobRepository constructs the gorm-backed job repository.
func NewJobRepository(db *gorm.DB) JobRepository {
	return &jobRepository{db: db}
}

func (r *jobRepository) Create(ctx context.Context, job *models.Job) error {
	var existing models.Job
	err := r.db.WithContext(ctx).Where("id = ?", job.ID).First(&existing).Error
	if err == nil {
		return ErrJobExists
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	return r.db.WithContext(ctx).Create(job).Error
}

func (r *jobRepository) Get(ctx context.Context, id string) (*models.Job, error) {
	var job models.Job
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&job).Error; err != nil {
		return nil, err
	}
	return &job, nil
}

// ApplyPatch performs the linearizable merge: it reads-modifies-writes the
// row inside a single transaction, rejecting illegal status transitions
// without any side effect.
func (r *jobRepository) ApplyPatch(ctx context.Context, id string, patch Patch) (*models.Job, error) {
	var result *models.Job

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var job models.Job
		if err := tx.Where("id = ?", id).First(&job).Error; err != nil {
			return err
		}

		if patch.Status != nil && *patch.Status != job.Status {
			allowed := legalTransitions[job.Status]
			if !allowed[*patch.Status] {
				return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, job.Status, *patch.Status)
			}
			job.Status = *patch.Status
		}
		if patch.Progress != nil {
			job.Progress = *patch.Progress
		}
		if patch.StartedAt != nil {
			t := unixToTime(*patch.StartedAt)
			job.StartedAt = &t
		}
		if patch.FinishedAt != nil {
			t := unixToTime(*patch.FinishedAt)
			job.FinishedAt = &t
		}
		if patch.CurrentStage != nil {
			job.CurrentStage = *patch.CurrentStage
		}
		if patch.Error != nil {
			encoded, err := encodeJSON(patch.Error)
			if err != nil {
				return err
			}
			job.ErrorJSON = encoded
		}
		if patch.Artifacts != nil {
			encoded, err := encodeJSON(patch.Artifacts)
			if err != nil {
				return err
			}
			job.ArtifactsJSON = encoded
		}
		if patch.Metadata != nil {
			encoded, err := encodeJSON(patch.Metadata)
			if err != nil {
				return err
			}
			job.MetadataJSON = encoded
		}
		if patch.AppendWarning != nil {
			if job.Warnings != "" {
				job.Warnings += "; "
			}
			job.Warnings += *patch.AppendWarning
		}

		if err := tx.Save(&job).Error; err != nil {
			return err
		}
		result = &job
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
