package digest

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"

	"podigest/internal/db"
	"podigest/internal/drafter"
	"podigest/internal/models"
	"podigest/internal/test"
)

type fakeDrafter struct {
	script   string
	err      error
	calls    int
	episodes []drafter.EpisodeSummary
}

func (f *fakeDrafter) Draft(ctx context.Context, topic models.Topic, episodes []drafter.EpisodeSummary, date time.Time) (string, error) {
	f.calls++
	f.episodes = episodes
	return f.script, f.err
}

func scoredEpisode(id int, guid string, publishedAt time.Time, scores models.ScoreMap) models.Episode {
	return models.Episode{
		ID:          id,
		GUID:        guid,
		PublishedAt: &publishedAt,
		Scores:      scores,
		Status:      db.StatusScored,
	}
}

func TestSelectEpisodesThreshold(t *testing.T) {
	now := time.Now()
	episodes := []models.Episode{
		scoredEpisode(1, "a", now, models.ScoreMap{"tech": 0.70}),
		scoredEpisode(2, "b", now, models.ScoreMap{"tech": 0.50}),
	}
	topic := models.Topic{Slug: "tech", MinEpisodes: 1, MaxEpisodes: 10}

	selected := SelectEpisodes(topic, episodes, 0.65)
	assert.Len(t, selected, 1)
	assert.Equal(t, "a", selected[0].GUID)
}

func TestSelectEpisodesOrderAndTruncation(t *testing.T) {
	older := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	newer := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)
	episodes := []models.Episode{
		scoredEpisode(1, "old-high", older, models.ScoreMap{"tech": 0.9}),
		scoredEpisode(2, "mid", newer, models.ScoreMap{"tech": 0.8}),
		scoredEpisode(3, "new-high", newer, models.ScoreMap{"tech": 0.9}),
		scoredEpisode(4, "low", newer, models.ScoreMap{"tech": 0.7}),
	}
	topic := models.Topic{Slug: "tech", MinEpisodes: 1, MaxEpisodes: 3}

	selected := SelectEpisodes(topic, episodes, 0.65)
	assert.Len(t, selected, 3)
	// Descending score; equal scores tie-break on the most recent publish.
	assert.Equal(t, "new-high", selected[0].GUID)
	assert.Equal(t, "old-high", selected[1].GUID)
	assert.Equal(t, "mid", selected[2].GUID)
}

func TestSelectEpisodesUsesTopicOverride(t *testing.T) {
	override := 0.9
	topic := models.Topic{Slug: "tech", ScoreThreshold: &override, MinEpisodes: 1}
	episodes := []models.Episode{
		scoredEpisode(1, "a", time.Now(), models.ScoreMap{"tech": 0.8}),
	}

	assert.Empty(t, SelectEpisodes(topic, episodes, 0.65))
	topic.ScoreThreshold = nil
	assert.Len(t, SelectEpisodes(topic, episodes, 0.65), 1)
}

func TestComposeInsufficientEpisodes(t *testing.T) {
	_, mock := test.NewMockDB(t)

	now := time.Now()
	episodes := []models.Episode{
		scoredEpisode(1, "a", now, models.ScoreMap{"tech": 0.9}),
		scoredEpisode(2, "b", now, models.ScoreMap{"tech": 0.8}),
		scoredEpisode(3, "c", now, models.ScoreMap{"tech": 0.7}),
	}
	topic := models.Topic{ID: 7, Slug: "tech", MinEpisodes: 5, MaxEpisodes: 10}

	fd := &fakeDrafter{script: "unused"}
	composer := &Composer{Drafter: fd, GlobalThreshold: 0.65}

	_, err := composer.Compose(context.Background(), topic, now, episodes)
	assert.ErrorIs(t, err, ErrInsufficientEpisodes)

	// No drafting call and no database writes: the episodes stay SCORED.
	assert.Equal(t, 0, fd.calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestComposeSuccess(t *testing.T) {
	_, mock := test.NewMockDB(t)

	date := time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)
	titleA := "Episode A"
	episodes := []models.Episode{
		scoredEpisode(1, "a", date.Add(-24*time.Hour), models.ScoreMap{"tech": 0.8}),
		scoredEpisode(2, "b", date.Add(-48*time.Hour), models.ScoreMap{"tech": 0.9}),
	}
	episodes[0].Title = &titleA
	topic := models.Topic{ID: 7, Slug: "tech", MinEpisodes: 1, MaxEpisodes: 10}

	script := "HOST: hello out there"
	digestRows := sqlmock.NewRows([]string{"id", "topic_id", "date", "created_at", "script", "script_word_count", "audio_uuid", "audio_path", "audio_duration_seconds", "audio_size_bytes", "publish_ref"}).
		AddRow(55, 7, date, time.Now(), script, 4, "uuid-55", nil, nil, nil, nil)

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO digests`).
		WithArgs(7, date, script, 4, sqlmock.AnyArg()).
		WillReturnRows(digestRows)

	// Highest score first: episode b (0.9) takes position 1.
	mock.ExpectExec(`INSERT INTO digest_episodes`).
		WithArgs(55, 2, "tech", 0.9, 1).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`UPDATE episodes SET status`).
		WithArgs(db.StatusDigested, "b", db.StatusScored, db.StatusDigested).
		WillReturnResult(sqlmock.NewResult(0, 1))

	mock.ExpectExec(`INSERT INTO digest_episodes`).
		WithArgs(55, 1, "tech", 0.8, 2).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`UPDATE episodes SET status`).
		WithArgs(db.StatusDigested, "a", db.StatusScored, db.StatusDigested).
		WillReturnResult(sqlmock.NewResult(0, 1))

	mock.ExpectCommit()

	fd := &fakeDrafter{script: script}
	composer := &Composer{Drafter: fd, GlobalThreshold: 0.65}

	dg, err := composer.Compose(context.Background(), topic, date, episodes)
	assert.NoError(t, err)
	assert.Equal(t, 55, dg.ID)
	assert.Equal(t, 1, fd.calls)

	// The drafter sees the selected episodes in script order.
	assert.Len(t, fd.episodes, 2)
	assert.Equal(t, 0.9, fd.episodes[0].Score)
	assert.Equal(t, "Episode A", fd.episodes[1].Title)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestComposeDraftErrorAbortsWithoutWrites(t *testing.T) {
	_, mock := test.NewMockDB(t)

	now := time.Now()
	episodes := []models.Episode{
		scoredEpisode(1, "a", now, models.ScoreMap{"tech": 0.9}),
	}
	topic := models.Topic{ID: 7, Slug: "tech", MinEpisodes: 1}

	fd := &fakeDrafter{err: assert.AnError}
	composer := &Composer{Drafter: fd, GlobalThreshold: 0.65}

	_, err := composer.Compose(context.Background(), topic, now, episodes)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrInsufficientEpisodes)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQualifiesForAny(t *testing.T) {
	topics := []models.Topic{
		{Slug: "tech", MinEpisodes: 1},
		{Slug: "climate", MinEpisodes: 1},
	}

	ep := scoredEpisode(1, "a", time.Now(), models.ScoreMap{"tech": 0.3, "climate": 0.7})
	assert.True(t, QualifiesForAny(ep, topics, 0.65))

	ep.Scores = models.ScoreMap{"tech": 0.3, "climate": 0.2}
	assert.False(t, QualifiesForAny(ep, topics, 0.65))

	ep.Scores = nil
	assert.False(t, QualifiesForAny(ep, topics, 0.65))
}
