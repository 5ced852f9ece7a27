package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// JobStatus is the lifecycle state of a transcription job.
type JobStatus string

const (
	StatusQueued    JobStatus = "queued"
	StatusRunning   JobStatus = "running"
	StatusCompleted JobStatus = "completed"
	StatusFailed    JobStatus = "failed"
)

// SourceKind distinguishes how the job's audio was provided.
type SourceKind string

const (
	SourceURL    SourceKind = "url"
	SourceUpload SourceKind = "upload"
)

// ErrorKind enumerates the taxonomy a job's terminal error may fall into.
type ErrorKind string

const (
	ErrInvalidInput     ErrorKind = "invalid-input"
	ErrSourceUnavailable ErrorKind = "source-unavailable"
	ErrSourceTooLong    ErrorKind = "source-too-long"
	ErrModelError       ErrorKind = "model-error"
	ErrNoAudioContent   ErrorKind = "no-audio-content"
	ErrTimeout          ErrorKind = "timeout"
	ErrInternal         ErrorKind = "internal"
)

// Recognized instrument tags, per the external interface contract.
const (
	InstrumentPiano  = "piano"
	InstrumentVocals = "vocals"
	InstrumentDrums  = "drums"
	InstrumentBass   = "bass"
	InstrumentGuitar = "guitar"
	InstrumentOther  = "other"
)

// RecognizedInstruments lists every instrument tag the separator understands.
var RecognizedInstruments = map[string]bool{
	InstrumentPiano:  true,
	InstrumentVocals: true,
	InstrumentDrums:  true,
	InstrumentBass:   true,
	InstrumentGuitar: true,
	InstrumentOther:  true,
}

// JobOptions are the user-controlled knobs of a transcription request.
type JobOptions struct {
	Instruments           []string `json:"instruments"`
	VocalSubstituteProgram int     `json:"vocal_substitute_program"`
	EnableTTA             bool     `json:"enable_tta"`
	EnableRefiner         bool     `json:"enable_refiner"`
	ParallelStems         bool     `json:"parallel_stems"`
}

// JobError is the {kind, stage, message} triple recorded on terminal failure.
type JobError struct {
	Kind    ErrorKind `json:"kind"`
	Stage   string    `json:"stage"`
	Message string    `json:"message"`
}

// ArtifactRef points at the final MIDI + sidecar pair for one instrument.
type ArtifactRef struct {
	MIDIPath       string `json:"midi_path"`
	ConfidencePath string `json:"confidence_path"`
}

// JobMetadata is the detected tempo/key/time-signature of the finished job.
type JobMetadata struct {
	Tempo         float64 `json:"tempo,omitempty"`
	Key           string  `json:"key,omitempty"`
	TimeSignature string  `json:"time_signature,omitempty"`
}

// Job is the top-level request/record entity of the core, gorm-backed.
type Job struct {
	ID string `gorm:"primaryKey;type:varchar(36)" json:"job_id"`

	SourceKind  SourceKind `gorm:"type:varchar(16)" json:"source_kind"`
	SourceValue string     `json:"source_value"`

	OptionsJSON string `gorm:"column:options_json;type:text" json:"-"`

	Status       JobStatus `gorm:"type:varchar(16);index" json:"status"`
	Progress     int       `json:"progress"`
	CurrentStage string    `json:"current_stage"`

	CreatedAt  time.Time  `json:"created_at"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`

	ErrorJSON string `gorm:"column:error_json;type:text" json:"-"`

	ArtifactsJSON string `gorm:"column:artifacts_json;type:text" json:"-"`
	MetadataJSON  string `gorm:"column:metadata_json;type:text" json:"-"`

	Warnings string `gorm:"type:text" json:"-"`
}

// BeforeCreate assigns a UUID job id when one was not already set.
func (j *Job) BeforeCreate(tx *gorm.DB) error {
	if j.ID == "" {
		j.ID = uuid.New().String()
	}
	if j.CreatedAt.IsZero() {
		j.CreatedAt = time.Now()
	}
	return nil
}

// TableName pins the gorm table name explicitly, matching the teacher's style.
func (Job) TableName() string {
	return "jobs"
}
