package digest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"

	"podigest/internal/models"
	"podigest/internal/synth"
	"podigest/internal/test"
)

const dialogueScript = `HOST: Welcome back to the show, today we cover three stories.
GUEST: Thanks for having me, there is a lot to get through.
HOST: Let's start with the first one.
It was published on Monday
and made quite a splash.
GUEST: Indeed it did.`

type fakeSynth struct {
	calls     int
	dialogue  [][]synth.VoiceLine
	single    []string
	voices    []string
	errOnCall int // 1-based; 0 means never fail
	onCall    func()
}

func (f *fakeSynth) Synthesize(ctx context.Context, model, voiceID, text string) ([]byte, error) {
	f.calls++
	if f.onCall != nil {
		f.onCall()
	}
	if f.errOnCall == f.calls {
		return nil, errors.New("provider rejected request")
	}
	f.single = append(f.single, text)
	f.voices = append(f.voices, voiceID)
	return []byte(fmt.Sprintf("frag%d", f.calls-1)), nil
}

func (f *fakeSynth) SynthesizeDialogue(ctx context.Context, model string, lines []synth.VoiceLine) ([]byte, error) {
	f.calls++
	if f.onCall != nil {
		f.onCall()
	}
	if f.errOnCall == f.calls {
		return nil, errors.New("provider rejected request")
	}
	f.dialogue = append(f.dialogue, lines)
	return []byte(fmt.Sprintf("frag%d", f.calls-1)), nil
}

func stubDuration(t *testing.T, seconds float64) {
	original := measureDuration
	measureDuration = func(path string) (float64, error) { return seconds, nil }
	t.Cleanup(func() { measureDuration = original })
}

func dialogueTopic() models.Topic {
	return models.Topic{
		ID:         7,
		Slug:       "tech",
		Dialogue:   true,
		SynthModel: "tts-1",
		Voices:     models.VoiceMap{"HOST": "onyx", "GUEST": "alloy"},
	}
}

func TestSynthesizeDialogue(t *testing.T) {
	_, mock := test.NewMockDB(t)
	dir := t.TempDir()
	stubDuration(t, 42.4)

	fs := &fakeSynth{}
	coord := &Coordinator{Synth: fs, StoragePath: dir, MaxChunkChars: 120, MaxTurnChars: 1000}

	dg := models.Digest{ID: 9, AudioUUID: "au-9", Script: dialogueScript}
	audioPath := filepath.Join(dir, "au-9.mp3")

	mock.ExpectExec(`UPDATE digests\s+SET audio_path = \$1`).
		WithArgs(audioPath, 42, int64(15), 9).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := coord.Synthesize(context.Background(), dg, dialogueTopic())
	assert.NoError(t, err)

	// One synthesis call per chunk, in chunk order, one fragment each.
	assert.Equal(t, 3, fs.calls)
	assert.Len(t, fs.dialogue, 3)

	// Speaker labels are mapped to the configured voices.
	assert.Equal(t, []synth.VoiceLine{
		{VoiceID: "onyx", Text: "Welcome back to the show, today we cover three stories."},
	}, fs.dialogue[0])
	assert.Equal(t, "alloy", fs.dialogue[1][0].VoiceID)

	// Fragments are concatenated in chunk order.
	data, err := os.ReadFile(audioPath)
	assert.NoError(t, err)
	assert.Equal(t, "frag0frag1frag2", string(data))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSynthesizeRegenerationClearsOldAudioFirst(t *testing.T) {
	_, mock := test.NewMockDB(t)
	dir := t.TempDir()
	stubDuration(t, 10)

	oldPath := filepath.Join(dir, "stale.mp3")
	assert.NoError(t, os.WriteFile(oldPath, []byte("stale audio"), 0644))

	oldGone := false
	fs := &fakeSynth{}
	fs.onCall = func() {
		_, statErr := os.Stat(oldPath)
		oldGone = os.IsNotExist(statErr)
	}

	coord := &Coordinator{Synth: fs, StoragePath: dir, MaxChunkChars: 10000, MaxTurnChars: 1000}
	dg := models.Digest{ID: 9, AudioUUID: "au-9", Script: dialogueScript, AudioPath: &oldPath}

	mock.ExpectExec(`SET audio_path = NULL`).
		WithArgs(9).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE digests\s+SET audio_path = \$1`).
		WithArgs(filepath.Join(dir, "au-9.mp3"), 10, int64(5), 9).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := coord.Synthesize(context.Background(), dg, dialogueTopic())
	assert.NoError(t, err)

	// The stale file and its reference were gone before the first
	// synthesis call.
	assert.True(t, oldGone)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSynthesizeChunkFailureAbortsDigest(t *testing.T) {
	_, mock := test.NewMockDB(t)
	dir := t.TempDir()

	fs := &fakeSynth{errOnCall: 2}
	coord := &Coordinator{Synth: fs, StoragePath: dir, MaxChunkChars: 120, MaxTurnChars: 1000}
	dg := models.Digest{ID: 9, AudioUUID: "au-9", Script: dialogueScript}

	err := coord.Synthesize(context.Background(), dg, dialogueTopic())
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "chunk 1")

	// No partial audio is persisted.
	_, statErr := os.Stat(filepath.Join(dir, "au-9.mp3"))
	assert.True(t, os.IsNotExist(statErr))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSynthesizeOversizedTurn(t *testing.T) {
	test.NewMockDB(t)

	fs := &fakeSynth{}
	coord := &Coordinator{Synth: fs, StoragePath: t.TempDir(), MaxChunkChars: 10000, MaxTurnChars: 10}
	dg := models.Digest{ID: 9, AudioUUID: "au-9", Script: dialogueScript}

	err := coord.Synthesize(context.Background(), dg, dialogueTopic())
	assert.ErrorIs(t, err, ErrOversizedTurn)
	assert.Contains(t, err.Error(), "HOST")
	assert.Equal(t, 0, fs.calls)
}

func TestSynthesizeOversizedChunkSurfaced(t *testing.T) {
	test.NewMockDB(t)

	fs := &fakeSynth{}
	coord := &Coordinator{Synth: fs, StoragePath: t.TempDir(), MaxChunkChars: 30, MaxTurnChars: 1000}
	dg := models.Digest{ID: 9, AudioUUID: "au-9", Script: dialogueScript}

	err := coord.Synthesize(context.Background(), dg, dialogueTopic())
	assert.ErrorIs(t, err, ErrOversizedChunk)
	assert.Contains(t, err.Error(), "chunk 0")
	assert.Equal(t, 0, fs.calls)
}

func TestSynthesizeNarrative(t *testing.T) {
	_, mock := test.NewMockDB(t)
	dir := t.TempDir()
	stubDuration(t, 30)

	fs := &fakeSynth{}
	coord := &Coordinator{Synth: fs, StoragePath: dir, MaxChunkChars: 45, MaxTurnChars: 1000}

	topic := models.Topic{ID: 8, Slug: "briefing", SynthModel: "tts-1", Voices: models.VoiceMap{"NARRATOR": "nova"}}
	dg := models.Digest{ID: 10, AudioUUID: "au-10", Script: "One two three four.\n\nFive six seven eight.\n\nNine ten."}

	mock.ExpectExec(`UPDATE digests\s+SET audio_path = \$1`).
		WithArgs(filepath.Join(dir, "au-10.mp3"), 30, int64(10), 10).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := coord.Synthesize(context.Background(), dg, topic)
	assert.NoError(t, err)
	assert.Equal(t, 2, fs.calls)
	assert.Equal(t, []string{"nova", "nova"}, fs.voices)
	assert.Equal(t, "One two three four.\n\nFive six seven eight.", fs.single[0])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSynthesizeDialogueNeedsTwoVoices(t *testing.T) {
	test.NewMockDB(t)

	topic := dialogueTopic()
	topic.Voices = models.VoiceMap{"HOST": "onyx"}

	coord := &Coordinator{Synth: &fakeSynth{}, StoragePath: t.TempDir(), MaxChunkChars: 120, MaxTurnChars: 1000}
	err := coord.Synthesize(context.Background(), models.Digest{ID: 9, Script: dialogueScript}, topic)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "exactly two voices")
}
