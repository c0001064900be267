package tasks

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	TypeIngestPhase      = "phase:ingest"
	TypeScorePhase       = "phase:score"
	TypeComposePhase     = "phase:compose"
	TypeSynthesizePhase  = "phase:synthesize"
	TypeRetryFailed      = "phase:retry_failed"
	TypeSynthesizeDigest = "digest:synthesize"
)

// PhaseTaskPayload bounds how many items one phase run may process.
type PhaseTaskPayload struct {
	BatchSize int
}

func newPhaseTask(taskType string, batchSize int) (*asynq.Task, error) {
	payload, err := json.Marshal(PhaseTaskPayload{BatchSize: batchSize})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(taskType, payload), nil
}

func NewIngestPhaseTask(batchSize int) (*asynq.Task, error) {
	return newPhaseTask(TypeIngestPhase, batchSize)
}

func NewScorePhaseTask(batchSize int) (*asynq.Task, error) {
	return newPhaseTask(TypeScorePhase, batchSize)
}

func NewComposePhaseTask(batchSize int) (*asynq.Task, error) {
	return newPhaseTask(TypeComposePhase, batchSize)
}

func NewSynthesizePhaseTask(batchSize int) (*asynq.Task, error) {
	return newPhaseTask(TypeSynthesizePhase, batchSize)
}

func NewRetryFailedTask(batchSize int) (*asynq.Task, error) {
	return newPhaseTask(TypeRetryFailed, batchSize)
}

type SynthesizeDigestTaskPayload struct {
	DigestID int
}

// NewSynthesizeDigestTask targets a single digest, used both by the
// composition phase and by manual regeneration.
func NewSynthesizeDigestTask(digestID int) (*asynq.Task, error) {
	payload, err := json.Marshal(SynthesizeDigestTaskPayload{DigestID: digestID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeSynthesizeDigest, payload), nil
}
