package digest

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"
	"unicode/utf8"

	"podigest/internal/audio"
	"podigest/internal/db"
	"podigest/internal/models"
	"podigest/internal/script"
	"podigest/internal/synth"
)

// measureDuration is swappable so tests don't need real MP3 fragments.
var measureDuration = audio.Duration

// ErrOversizedChunk is returned when a chunk exceeds the provider's
// per-call budget. This only happens when a single turn is itself over
// the budget; it is surfaced rather than truncated.
var ErrOversizedChunk = errors.New("chunk exceeds synthesis budget")

// ErrOversizedTurn is returned when one turn exceeds the provider's
// per-turn ceiling, which is independent of the chunk budget.
var ErrOversizedTurn = errors.New("turn exceeds synthesis budget")

// ErrUnknownSpeaker is returned when a script speaker has no entry in
// the topic's voice configuration.
var ErrUnknownSpeaker = errors.New("speaker has no configured voice")

// Coordinator turns a digest's script into one audio file: chunk the
// script, synthesize each chunk in order, concatenate the fragments.
type Coordinator struct {
	Synth         synth.Synthesizer
	StoragePath   string
	MaxChunkChars int
	MaxTurnChars  int
}

// Synthesize generates the digest's audio artifact. Regeneration is
// destructive-then-rebuild: an existing audio file is deleted and the
// digest's audio columns cleared before the first synthesis call. A
// failure on any chunk aborts the digest with no partial audio.
func (c *Coordinator) Synthesize(ctx context.Context, dg models.Digest, topic models.Topic) error {
	if dg.AudioPath != nil {
		if err := os.Remove(*dg.AudioPath); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("digest %d: failed to delete old audio: %w", dg.ID, err)
		}
		if err := db.ClearDigestAudio(dg.ID); err != nil {
			return fmt.Errorf("digest %d: failed to clear audio reference: %w", dg.ID, err)
		}
		log.Printf("Cleared previous audio for digest %d", dg.ID)
	}

	var fragments [][]byte
	var err error
	if topic.Dialogue {
		fragments, err = c.synthesizeDialogue(ctx, dg, topic)
	} else {
		fragments, err = c.synthesizeNarrative(ctx, dg, topic)
	}
	if err != nil {
		return fmt.Errorf("digest %d: %w", dg.ID, err)
	}

	audioPath := filepath.Join(c.StoragePath, dg.AudioUUID+".mp3")
	size, err := audio.WriteFragments(audioPath, fragments)
	if err != nil {
		return fmt.Errorf("digest %d: failed to write audio: %w", dg.ID, err)
	}

	duration, err := measureDuration(audioPath)
	if err != nil {
		os.Remove(audioPath)
		return fmt.Errorf("digest %d: failed to measure audio: %w", dg.ID, err)
	}

	if err := db.UpdateDigestAudio(dg.ID, audioPath, int(math.Round(duration)), size); err != nil {
		os.Remove(audioPath)
		return fmt.Errorf("digest %d: failed to record audio: %w", dg.ID, err)
	}

	log.Printf("Synthesized digest %d: %d fragments, %.0fs, %d bytes", dg.ID, len(fragments), duration, size)
	return nil
}

func (c *Coordinator) synthesizeDialogue(ctx context.Context, dg models.Digest, topic models.Topic) ([][]byte, error) {
	labels := topic.Voices.Labels()
	if len(labels) != 2 {
		return nil, fmt.Errorf("dialogue topic %s needs exactly two voices, has %d", topic.Slug, len(labels))
	}

	chunks, err := script.ChunkDialogue(dg.Script, labels, c.MaxChunkChars)
	if err != nil {
		return nil, err
	}

	var fragments [][]byte
	for _, chunk := range chunks {
		if chunk.Oversized(c.MaxChunkChars) {
			return nil, fmt.Errorf("chunk %d (%d chars, speakers %v): %w",
				chunk.Index, chunk.CharCount, chunk.Speakers, ErrOversizedChunk)
		}

		turns, err := script.ParseTurns(chunk.Text, labels)
		if err != nil {
			return nil, fmt.Errorf("chunk %d: %w", chunk.Index, err)
		}

		lines := make([]synth.VoiceLine, 0, len(turns))
		for _, turn := range turns {
			voiceID, ok := topic.Voices[turn.Speaker]
			if !ok {
				return nil, fmt.Errorf("chunk %d speaker %s: %w", chunk.Index, turn.Speaker, ErrUnknownSpeaker)
			}
			if n := utf8.RuneCountInString(turn.Utterance); n > c.MaxTurnChars {
				return nil, fmt.Errorf("chunk %d speaker %s (%d chars): %w", chunk.Index, turn.Speaker, n, ErrOversizedTurn)
			}
			lines = append(lines, synth.VoiceLine{VoiceID: voiceID, Text: turn.Utterance})
		}

		fragment, err := c.Synth.SynthesizeDialogue(ctx, topic.SynthModel, lines)
		if err != nil {
			return nil, fmt.Errorf("chunk %d speakers %v: %w", chunk.Index, chunk.Speakers, err)
		}
		fragments = append(fragments, fragment)
	}
	return fragments, nil
}

func (c *Coordinator) synthesizeNarrative(ctx context.Context, dg models.Digest, topic models.Topic) ([][]byte, error) {
	labels := topic.Voices.Labels()
	if len(labels) != 1 {
		return nil, fmt.Errorf("single-voice topic %s needs exactly one voice, has %d", topic.Slug, len(labels))
	}
	voiceID := topic.Voices[labels[0]]

	paragraphs, err := script.SplitParagraphs(dg.Script)
	if err != nil {
		return nil, err
	}

	var fragments [][]byte
	for _, chunk := range script.ChunkParagraphs(paragraphs, c.MaxChunkChars) {
		if chunk.Oversized(c.MaxChunkChars) {
			return nil, fmt.Errorf("chunk %d (%d chars): %w", chunk.Index, chunk.CharCount, ErrOversizedChunk)
		}
		fragment, err := c.Synth.Synthesize(ctx, topic.SynthModel, voiceID, chunk.Text)
		if err != nil {
			return nil, fmt.Errorf("chunk %d: %w", chunk.Index, err)
		}
		fragments = append(fragments, fragment)
	}
	return fragments, nil
}
