// Package script splits dialogue and narrative scripts into
// synthesizer-sized chunks without breaking a speaker's turn.
package script

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// ErrEmptyScript is returned when a script contains no turns.
var ErrEmptyScript = errors.New("script contains no turns")

// ErrUnattributedText is returned when dialogue text appears before the
// first speaker label.
var ErrUnattributedText = errors.New("script text before first speaker label")

// Turn is one contiguous utterance by a single speaker. Text holds the
// raw turn as it appeared in the script (label line included); Utterance
// holds only the spoken words.
type Turn struct {
	Speaker   string
	Utterance string
	Text      string
}

// Chunk is a maximal run of whole turns fitting the synthesis provider's
// per-call character budget. A chunk built from a single turn longer than
// the budget exceeds it; callers detect that via Oversized.
type Chunk struct {
	Index     int
	Text      string
	CharCount int
	TurnCount int
	Speakers  []string
}

// Oversized reports whether the chunk exceeds the given character budget.
// This happens only when a single turn is longer than the budget.
func (c Chunk) Oversized(maxChars int) bool {
	return c.CharCount > maxChars
}

// ParseTurns splits a dialogue script into speaker turns. A line starting
// with "<label>:" for one of the given labels begins a new turn; any other
// line continues the current turn.
func ParseTurns(text string, labels []string) ([]Turn, error) {
	var turns []Turn
	var current *Turn

	for _, line := range strings.Split(strings.TrimRight(text, "\n"), "\n") {
		speaker, utterance, ok := matchLabel(line, labels)
		if ok {
			if current != nil {
				turns = append(turns, *current)
			}
			current = &Turn{Speaker: speaker, Utterance: utterance, Text: line}
			continue
		}
		if current == nil {
			if strings.TrimSpace(line) == "" {
				continue
			}
			return nil, fmt.Errorf("line %q: %w", line, ErrUnattributedText)
		}
		current.Text += "\n" + line
		if strings.TrimSpace(line) != "" {
			if current.Utterance != "" {
				current.Utterance += " "
			}
			current.Utterance += strings.TrimSpace(line)
		}
	}
	if current != nil {
		turns = append(turns, *current)
	}
	if len(turns) == 0 {
		return nil, ErrEmptyScript
	}
	return turns, nil
}

func matchLabel(line string, labels []string) (speaker, utterance string, ok bool) {
	for _, label := range labels {
		prefix := label + ":"
		if strings.HasPrefix(line, prefix) {
			return label, strings.TrimSpace(line[len(prefix):]), true
		}
	}
	return "", "", false
}

// SplitParagraphs splits a narrative script into paragraph turns (blank
// lines as separators) so single-voice scripts can reuse the same
// size-bounded chunking strategy.
func SplitParagraphs(text string) ([]Turn, error) {
	var turns []Turn
	for _, para := range strings.Split(text, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		turns = append(turns, Turn{Utterance: para, Text: para})
	}
	if len(turns) == 0 {
		return nil, ErrEmptyScript
	}
	return turns, nil
}

// ChunkTurns accumulates whole turns into chunks of at most maxChars
// characters. A turn is never split: a single turn longer than maxChars
// forms its own oversized chunk. Identical input always produces
// identical chunk boundaries.
func ChunkTurns(turns []Turn, maxChars int) []Chunk {
	return chunk(turns, maxChars, "\n")
}

// ChunkParagraphs is ChunkTurns for narrative paragraphs, preserving the
// blank-line separator between paragraphs inside a chunk.
func ChunkParagraphs(turns []Turn, maxChars int) []Chunk {
	return chunk(turns, maxChars, "\n\n")
}

func chunk(turns []Turn, maxChars int, sep string) []Chunk {
	var chunks []Chunk
	var buf []Turn
	bufChars := 0
	sepChars := utf8.RuneCountInString(sep)

	flush := func() {
		if len(buf) == 0 {
			return
		}
		chunks = append(chunks, buildChunk(len(chunks), buf, sep))
		buf = nil
		bufChars = 0
	}

	for _, turn := range turns {
		turnChars := utf8.RuneCountInString(turn.Text)
		if len(buf) > 0 && bufChars+sepChars+turnChars > maxChars {
			flush()
		}
		buf = append(buf, turn)
		if bufChars == 0 {
			bufChars = turnChars
		} else {
			bufChars += sepChars + turnChars
		}
	}
	flush()
	return chunks
}

func buildChunk(index int, turns []Turn, sep string) Chunk {
	parts := make([]string, len(turns))
	var speakers []string
	seen := map[string]bool{}
	for i, turn := range turns {
		parts[i] = turn.Text
		if turn.Speaker != "" && !seen[turn.Speaker] {
			seen[turn.Speaker] = true
			speakers = append(speakers, turn.Speaker)
		}
	}
	text := strings.Join(parts, sep)
	return Chunk{
		Index:     index,
		Text:      text,
		CharCount: utf8.RuneCountInString(text),
		TurnCount: len(turns),
		Speakers:  speakers,
	}
}

// ChunkDialogue parses a dialogue script and chunks it in one step.
func ChunkDialogue(text string, labels []string, maxChars int) ([]Chunk, error) {
	turns, err := ParseTurns(text, labels)
	if err != nil {
		return nil, err
	}
	return ChunkTurns(turns, maxChars), nil
}
