package script

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

var dialogueLabels = []string{"HOST", "GUEST"}

const sampleDialogue = `HOST: Welcome back to the show, today we cover three stories.
GUEST: Thanks for having me, there is a lot to get through.
HOST: Let's start with the first one.
It was published on Monday
and made quite a splash.
GUEST: Indeed it did.`

func TestParseTurns(t *testing.T) {
	turns, err := ParseTurns(sampleDialogue, dialogueLabels)
	assert.NoError(t, err)
	assert.Len(t, turns, 4)

	assert.Equal(t, "HOST", turns[0].Speaker)
	assert.Equal(t, "Welcome back to the show, today we cover three stories.", turns[0].Utterance)

	// Continuation lines belong to the turn that opened them.
	assert.Equal(t, "HOST", turns[2].Speaker)
	assert.Equal(t, "Let's start with the first one. It was published on Monday and made quite a splash.", turns[2].Utterance)
	assert.Equal(t, "HOST: Let's start with the first one.\nIt was published on Monday\nand made quite a splash.", turns[2].Text)

	assert.Equal(t, "GUEST", turns[3].Speaker)
}

func TestParseTurnsUnattributedText(t *testing.T) {
	_, err := ParseTurns("some narration\nHOST: hello", dialogueLabels)
	assert.ErrorIs(t, err, ErrUnattributedText)
}

func TestParseTurnsEmptyScript(t *testing.T) {
	_, err := ParseTurns("", dialogueLabels)
	assert.ErrorIs(t, err, ErrEmptyScript)

	_, err = ParseTurns("\n\n  \n", dialogueLabels)
	assert.ErrorIs(t, err, ErrEmptyScript)
}

func TestChunkTurnsReassemblesScript(t *testing.T) {
	turns, err := ParseTurns(sampleDialogue, dialogueLabels)
	assert.NoError(t, err)

	chunks := ChunkTurns(turns, 120)
	assert.NotEmpty(t, chunks)

	// Concatenating chunk texts in order reproduces every turn in the
	// original order with nothing inserted or dropped at boundaries.
	var texts []string
	for _, c := range chunks {
		texts = append(texts, c.Text)
	}
	assert.Equal(t, sampleDialogue, strings.Join(texts, "\n"))

	reparsed, err := ParseTurns(strings.Join(texts, "\n"), dialogueLabels)
	assert.NoError(t, err)
	assert.Equal(t, turns, reparsed)
}

func TestChunkTurnsRespectsLimit(t *testing.T) {
	turns, err := ParseTurns(sampleDialogue, dialogueLabels)
	assert.NoError(t, err)

	chunks := ChunkTurns(turns, 120)
	assert.True(t, len(chunks) > 1)

	totalTurns := 0
	for _, c := range chunks {
		assert.LessOrEqual(t, c.CharCount, 120, "chunk %d over limit", c.Index)
		assert.False(t, c.Oversized(120))
		totalTurns += c.TurnCount
	}
	assert.Equal(t, len(turns), totalTurns)
}

func TestChunkTurnsOrdinalsAndSpeakers(t *testing.T) {
	turns, err := ParseTurns(sampleDialogue, dialogueLabels)
	assert.NoError(t, err)

	chunks := ChunkTurns(turns, 10000)
	assert.Len(t, chunks, 1)
	assert.Equal(t, 0, chunks[0].Index)
	assert.Equal(t, 4, chunks[0].TurnCount)
	assert.Equal(t, []string{"HOST", "GUEST"}, chunks[0].Speakers)

	chunks = ChunkTurns(turns, 60)
	for i, c := range chunks {
		assert.Equal(t, i, c.Index)
	}
}

func TestChunkTurnsOversizedTurn(t *testing.T) {
	long := "HOST: " + strings.Repeat("a very long story ", 20)
	text := long + "\nGUEST: Short reply."

	turns, err := ParseTurns(text, dialogueLabels)
	assert.NoError(t, err)

	chunks := ChunkTurns(turns, 50)
	assert.Len(t, chunks, 2)

	// The oversized turn is not split or truncated; it forms its own
	// chunk and the condition is visible to the caller.
	assert.Equal(t, 1, chunks[0].TurnCount)
	assert.True(t, chunks[0].Oversized(50))
	assert.Equal(t, long, chunks[0].Text)

	assert.False(t, chunks[1].Oversized(50))
}

func TestChunkTurnsDeterministic(t *testing.T) {
	turns, err := ParseTurns(sampleDialogue, dialogueLabels)
	assert.NoError(t, err)

	first := ChunkTurns(turns, 80)
	second := ChunkTurns(turns, 80)
	assert.Equal(t, first, second)
}

func TestSplitParagraphs(t *testing.T) {
	text := "First paragraph of the story.\n\nSecond paragraph,\nwith a wrapped line.\n\n\nThird."
	turns, err := SplitParagraphs(text)
	assert.NoError(t, err)
	assert.Len(t, turns, 3)
	assert.Equal(t, "", turns[0].Speaker)
	assert.Equal(t, "Second paragraph,\nwith a wrapped line.", turns[1].Text)

	_, err = SplitParagraphs("  \n\n ")
	assert.ErrorIs(t, err, ErrEmptyScript)
}

func TestChunkParagraphs(t *testing.T) {
	text := "One two three four.\n\nFive six seven eight.\n\nNine ten."
	turns, err := SplitParagraphs(text)
	assert.NoError(t, err)

	chunks := ChunkParagraphs(turns, 45)
	assert.Len(t, chunks, 2)
	assert.Equal(t, "One two three four.\n\nFive six seven eight.", chunks[0].Text)
	assert.Equal(t, "Nine ten.", chunks[1].Text)
}

func TestChunkDialogue(t *testing.T) {
	chunks, err := ChunkDialogue(sampleDialogue, dialogueLabels, 10000)
	assert.NoError(t, err)
	assert.Len(t, chunks, 1)

	_, err = ChunkDialogue("loose text", dialogueLabels, 100)
	assert.ErrorIs(t, err, ErrUnattributedText)
}
