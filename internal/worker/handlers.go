package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"podigest/internal/db"
	"podigest/internal/digest"
	"podigest/internal/ingest"
	"podigest/internal/models"
	"podigest/internal/scorer"
	"podigest/pkg/tasks"

	"github.com/hibiken/asynq"
)

const defaultBatchSize = 50

// maxRetryFailures is the ceiling above which failed episodes are no
// longer reset by the retry phase.
const maxRetryFailures = 5

type TaskHandler struct {
	asynqClient tasks.TaskEnqueuer
	scorer      scorer.Scorer
	transcriber ingest.Transcriber
	composer    *digest.Composer
	coordinator *digest.Coordinator
	storagePath string
}

func NewTaskHandler(client tasks.TaskEnqueuer, sc scorer.Scorer, tr ingest.Transcriber, composer *digest.Composer, coordinator *digest.Coordinator, storagePath string) *TaskHandler {
	return &TaskHandler{
		asynqClient: client,
		scorer:      sc,
		transcriber: tr,
		composer:    composer,
		coordinator: coordinator,
		storagePath: storagePath,
	}
}

func batchSize(t *asynq.Task) int {
	var p tasks.PhaseTaskPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil || p.BatchSize <= 0 {
		return defaultBatchSize
	}
	return p.BatchSize
}

func logResult(phase string, result models.PhaseResult) {
	log.Printf("%s phase: processed=%d succeeded=%d failed=%d skipped=%d",
		phase, result.Processed, result.Succeeded, result.Failed, result.Skipped)
	for _, reason := range result.Reasons {
		log.Printf("%s phase: %s", phase, reason)
	}
}

func (h *TaskHandler) HandleIngestPhaseTask(ctx context.Context, t *asynq.Task) error {
	result := h.RunIngestPhase(ctx, batchSize(t))
	logResult("Ingest", result)
	return nil
}

// RunIngestPhase downloads pending episodes and transcribes downloaded
// ones, one at a time. A failure on one episode is recorded and the loop
// moves on.
func (h *TaskHandler) RunIngestPhase(ctx context.Context, batch int) models.PhaseResult {
	var result models.PhaseResult

	pending, err := db.GetEpisodesByStatus(db.StatusPending, batch)
	if err != nil {
		result.Fail(fmt.Sprintf("failed to list pending episodes: %v", err))
		return result
	}
	for _, ep := range pending {
		if ep.EnclosureURL == nil || *ep.EnclosureURL == "" {
			db.MarkEpisodeFailed(ep.GUID, "missing enclosure URL")
			result.Fail(fmt.Sprintf("episode %s: missing enclosure URL", ep.GUID))
			continue
		}
		audioPath, err := ingest.DownloadEnclosure(ctx, *ep.EnclosureURL, h.storagePath, ep.GUID)
		if err != nil {
			// Likely transient; leave the episode PENDING for the next run.
			result.Fail(fmt.Sprintf("episode %s: %v", ep.GUID, err))
			continue
		}
		if err := db.UpdateEpisodeDownloaded(ep.GUID, audioPath); err != nil {
			result.Fail(fmt.Sprintf("episode %s: %v", ep.GUID, err))
			continue
		}
		result.Succeed()
	}

	downloaded, err := db.GetEpisodesByStatus(db.StatusDownloaded, batch)
	if err != nil {
		result.Fail(fmt.Sprintf("failed to list downloaded episodes: %v", err))
		return result
	}
	for _, ep := range downloaded {
		if ep.AudioPath == nil {
			db.MarkEpisodeFailed(ep.GUID, "downloaded episode has no audio path")
			result.Fail(fmt.Sprintf("episode %s: downloaded episode has no audio path", ep.GUID))
			continue
		}
		transcript, err := h.transcriber.Transcribe(ctx, *ep.AudioPath)
		if err != nil {
			result.Fail(fmt.Sprintf("episode %s: %v", ep.GUID, err))
			continue
		}
		if transcript == "" {
			result.Skip(fmt.Sprintf("episode %s: empty transcript", ep.GUID))
			continue
		}
		if err := db.UpdateEpisodeTranscribed(ep.GUID, transcript); err != nil {
			result.Fail(fmt.Sprintf("episode %s: %v", ep.GUID, err))
			continue
		}
		result.Succeed()
	}

	return result
}

func (h *TaskHandler) HandleScorePhaseTask(ctx context.Context, t *asynq.Task) error {
	result := h.RunScoringPhase(ctx, batchSize(t))
	logResult("Scoring", result)
	return nil
}

// RunScoringPhase scores transcribed episodes against the active topics.
func (h *TaskHandler) RunScoringPhase(ctx context.Context, batch int) models.PhaseResult {
	var result models.PhaseResult

	topics, err := db.GetActiveTopics()
	if err != nil {
		result.Fail(fmt.Sprintf("failed to list topics: %v", err))
		return result
	}
	if len(topics) == 0 {
		result.Skip("no active topics")
		return result
	}

	episodes, err := db.GetEpisodesByStatus(db.StatusTranscribed, batch)
	if err != nil {
		result.Fail(fmt.Sprintf("failed to list transcribed episodes: %v", err))
		return result
	}

	for _, ep := range episodes {
		if ep.Transcript == nil || *ep.Transcript == "" {
			result.Skip(fmt.Sprintf("episode %s: empty transcript", ep.GUID))
			continue
		}
		scores, err := h.scorer.Score(ctx, *ep.Transcript, topics)
		if err != nil {
			if errors.Is(err, scorer.ErrBadScorePayload) {
				db.MarkEpisodeFailed(ep.GUID, err.Error())
			}
			// Transient scorer errors leave the episode TRANSCRIBED.
			result.Fail(fmt.Sprintf("episode %s: %v", ep.GUID, err))
			continue
		}
		if err := db.SetEpisodeScores(ep.GUID, scores); err != nil {
			result.Fail(fmt.Sprintf("episode %s: %v", ep.GUID, err))
			continue
		}
		result.Succeed()
	}

	return result
}

func (h *TaskHandler) HandleComposePhaseTask(ctx context.Context, t *asynq.Task) error {
	result := h.RunCompositionPhase(ctx, time.Now().UTC())
	logResult("Composition", result)
	return nil
}

// RunCompositionPhase runs the eligibility gate for every active topic
// in slug order, then retires scored episodes that qualify for no topic.
func (h *TaskHandler) RunCompositionPhase(ctx context.Context, date time.Time) models.PhaseResult {
	var result models.PhaseResult

	topics, err := db.GetActiveTopics()
	if err != nil {
		result.Fail(fmt.Sprintf("failed to list topics: %v", err))
		return result
	}

	episodes, err := db.GetScorableEpisodes([]string{db.StatusScored, db.StatusDigested})
	if err != nil {
		result.Fail(fmt.Sprintf("failed to list scored episodes: %v", err))
		return result
	}

	for _, topic := range topics {
		dg, err := h.composer.Compose(ctx, topic, date, episodes)
		if err != nil {
			if errors.Is(err, digest.ErrInsufficientEpisodes) {
				result.Skip(err.Error())
			} else {
				result.Fail(err.Error())
			}
			continue
		}
		result.Succeed()

		task, err := tasks.NewSynthesizeDigestTask(dg.ID)
		if err != nil {
			log.Printf("failed to create synthesize task for digest %d: %v", dg.ID, err)
			continue
		}
		if _, err := h.asynqClient.Enqueue(task); err != nil {
			log.Printf("failed to enqueue synthesize task for digest %d: %v", dg.ID, err)
		}
	}

	h.retireIrrelevant(topics, &result)
	return result
}

// retireIrrelevant moves scored episodes that clear no active topic's
// threshold to NOT_RELEVANT. Episodes qualifying for a topic that has
// not yet produced a digest stay SCORED.
func (h *TaskHandler) retireIrrelevant(topics []models.Topic, result *models.PhaseResult) {
	scored, err := db.GetEpisodesByStatus(db.StatusScored, defaultBatchSize)
	if err != nil {
		result.Fail(fmt.Sprintf("failed to list scored episodes: %v", err))
		return
	}
	for _, ep := range scored {
		if digest.QualifiesForAny(ep, topics, h.composer.GlobalThreshold) {
			continue
		}
		if err := db.TransitionEpisode(ep.GUID, db.StatusScored, db.StatusNotRelevant); err != nil {
			result.Fail(fmt.Sprintf("episode %s: %v", ep.GUID, err))
		}
	}
}

func (h *TaskHandler) HandleSynthesizePhaseTask(ctx context.Context, t *asynq.Task) error {
	result := h.RunSynthesisPhase(ctx, batchSize(t))
	logResult("Synthesis", result)
	return nil
}

// RunSynthesisPhase synthesizes audio for digests that have none, in
// creation order.
func (h *TaskHandler) RunSynthesisPhase(ctx context.Context, batch int) models.PhaseResult {
	var result models.PhaseResult

	digests, err := db.GetDigestsWithoutAudio(batch)
	if err != nil {
		result.Fail(fmt.Sprintf("failed to list digests: %v", err))
		return result
	}

	for _, dg := range digests {
		if err := h.synthesizeOne(ctx, dg); err != nil {
			result.Fail(err.Error())
			continue
		}
		result.Succeed()
	}
	return result
}

func (h *TaskHandler) synthesizeOne(ctx context.Context, dg models.Digest) error {
	topic, err := db.GetTopicByID(dg.TopicID)
	if err != nil {
		return fmt.Errorf("digest %d: failed to load topic: %w", dg.ID, err)
	}
	return h.coordinator.Synthesize(ctx, dg, topic)
}

// HandleSynthesizeDigestTask synthesizes one digest. It serves both the
// follow-up task the composition phase enqueues and manual regeneration.
func (h *TaskHandler) HandleSynthesizeDigestTask(ctx context.Context, t *asynq.Task) error {
	var p tasks.SynthesizeDigestTaskPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("failed to unmarshal task payload: %w", err)
	}

	dg, err := db.GetDigestByID(p.DigestID)
	if err != nil {
		return fmt.Errorf("failed to get digest %d: %w", p.DigestID, err)
	}
	return h.synthesizeOne(ctx, dg)
}

func (h *TaskHandler) HandleRetryFailedTask(ctx context.Context, t *asynq.Task) error {
	result := h.RunRetryPhase(ctx, batchSize(t))
	logResult("Retry", result)
	return nil
}

// RunRetryPhase resets failed episodes below the retry ceiling back to
// the earliest status their stored artifacts support.
func (h *TaskHandler) RunRetryPhase(ctx context.Context, batch int) models.PhaseResult {
	var result models.PhaseResult

	episodes, err := db.GetRetryableEpisodes(maxRetryFailures, batch)
	if err != nil {
		result.Fail(fmt.Sprintf("failed to list failed episodes: %v", err))
		return result
	}

	for _, ep := range episodes {
		to := db.StatusPending
		switch {
		case ep.Transcript != nil && *ep.Transcript != "":
			to = db.StatusTranscribed
		case ep.AudioPath != nil:
			to = db.StatusDownloaded
		}
		if err := db.ResetEpisode(ep.GUID, to); err != nil {
			result.Fail(fmt.Sprintf("episode %s: %v", ep.GUID, err))
			continue
		}
		log.Printf("Reset episode %s to %s after %d failures", ep.GUID, to, ep.FailureCount)
		result.Succeed()
	}
	return result
}
