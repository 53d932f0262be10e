package services

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/janani/maai/models"
)

func newTestGenerator(index *memoryIndex, streamer *fakeStreamer) AnswerGenerator {
	retriever := NewRetriever(&fakeEmbedder{}, index, 0, zap.NewNop())
	return NewAnswerGenerator(retriever, streamer, 0, zap.NewNop())
}

func TestGenerate_ForwardsOnlyLastFiveTurns(t *testing.T) {
	var history []models.ChatMessage
	for i := 0; i < 12; i++ {
		role := models.RoleUser
		if i%2 == 1 {
			role = "bot"
		}
		history = append(history, models.ChatMessage{Role: role, Content: fmt.Sprintf("turn %d", i)})
	}
	streamer := &fakeStreamer{fragments: []string{"ok"}}
	gen := newTestGenerator(&memoryIndex{}, streamer)

	answer, err := CollectAnswer(gen.Generate(context.Background(), "q", "patient", history))
	require.NoError(t, err)
	assert.Equal(t, "ok", answer)

	require.Len(t, streamer.history, models.MaxHistoryTurns)
	assert.Equal(t, "turn 7", streamer.history[0].Content)
	assert.Equal(t, models.RoleAssistant, streamer.history[0].Role)
	assert.Equal(t, "turn 11", streamer.history[4].Content)
}

func TestGenerate_PromptCarriesContextAndPatientData(t *testing.T) {
	index := &memoryIndex{chunks: []IndexedChunk{
		{Text: "Iron and folic acid tablets reduce anaemia.", Source: "anc.txt"},
	}}
	streamer := &fakeStreamer{fragments: []string{"Take iron."}}
	gen := newTestGenerator(index, streamer)

	_, err := CollectAnswer(gen.Generate(context.Background(), "Why iron?", "Mother is 20 weeks pregnant", nil))
	require.NoError(t, err)

	assert.Contains(t, streamer.prompt, "Iron and folic acid tablets reduce anaemia.")
	assert.Contains(t, streamer.prompt, "Mother is 20 weeks pregnant")
	assert.Contains(t, streamer.prompt, "Why iron?")
	assert.Equal(t, GetSystemPrompt(), streamer.system)
}

func TestGenerate_YieldsFragmentsAsProduced(t *testing.T) {
	streamer := &fakeStreamer{fragments: []string{"Drink ", "**plenty** ", "of water."}}
	gen := newTestGenerator(&memoryIndex{}, streamer)

	var seen []string
	for frag, err := range gen.Generate(context.Background(), "q", "", nil) {
		require.NoError(t, err)
		// The consumer sees each fragment before the next one is produced.
		assert.Equal(t, len(seen)+1, streamer.yielded)
		seen = append(seen, frag)
	}
	assert.Equal(t, []string{"Drink ", "plenty ", "of water."}, seen)
}

func TestGenerate_DropsBulletDashSplitAcrossFragments(t *testing.T) {
	streamer := &fakeStreamer{fragments: []string{"Tips:", "\n", "-", " Drink water", "\n", "-", " Rest"}}
	gen := newTestGenerator(&memoryIndex{}, streamer)

	answer, err := CollectAnswer(gen.Generate(context.Background(), "q", "", nil))
	require.NoError(t, err)
	assert.Equal(t, "Tips:\nDrink water\nRest", answer)
	assert.NotContains(t, answer, "-")
}

func TestGenerate_RetrievalFailure(t *testing.T) {
	streamer := &fakeStreamer{fragments: []string{"never"}}
	gen := newTestGenerator(&memoryIndex{queryErr: errors.New("chroma down")}, streamer)

	_, err := CollectAnswer(gen.Generate(context.Background(), "q", "", nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chroma down")
	assert.Zero(t, streamer.yielded)
}

func TestGenerate_ModelFailure(t *testing.T) {
	streamer := &fakeStreamer{fragments: []string{"partial"}, err: errors.New("quota")}
	gen := newTestGenerator(&memoryIndex{}, streamer)

	_, err := CollectAnswer(gen.Generate(context.Background(), "q", "", nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota")
}

func TestVoiceFilter(t *testing.T) {
	tests := []struct {
		name      string
		fragments []string
		want      string
	}{
		{"bold and headings", []string{"## Advice\n", "**Rest** well"}, " Advice\nRest well"},
		{"inline bullets", []string{"Tips:\n- drink water\n• eat dal"}, "Tips:\ndrink water\neat dal"},
		{"bullet split across fragments", []string{"Tips:\n", "- drink water"}, "Tips:\ndrink water"},
		{"code ticks", []string{"use `ORS`"}, "use ORS"},
		{"hyphen inside a sentence", []string{"a well-known remedy"}, "a well-known remedy"},
		{"whitespace fragment keeps line start", []string{"Tips:\n", "  ", "- rest"}, "Tips:\n  rest"},
		{"dash as its own fragment", []string{"Tips:\n", "-", " Drink water"}, "Tips:\nDrink water"},
		{"dash closing a fragment", []string{"Tips:\n-", " Drink water"}, "Tips:\nDrink water"},
		{"newline and dash in separate fragments", []string{"Tips:", "\n", "-", " Drink water"}, "Tips:\nDrink water"},
		{"indented dot bullet split", []string{"Tips:\n  •", " eat dal"}, "Tips:\n  eat dal"},
		{"leading dash on first fragment", []string{"-", " rest"}, "rest"},
		{"held dash survives empty markup", []string{"Tips:\n-", "**", " rest"}, "Tips:\nrest"},
		{"negative number is not a bullet", []string{"Tips:\n-", "5 degrees"}, "Tips:\n-5 degrees"},
		{"dash mid-line is not held", []string{"a well", "-", "known remedy"}, "a well-known remedy"},
		{"trailing dash flushed", []string{"Tips:\n-"}, "Tips:\n-"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &voiceFilter{atLineStart: true}
			var got string
			for _, frag := range tt.fragments {
				got += f.Clean(frag)
			}
			got += f.Flush()
			assert.Equal(t, tt.want, got)
		})
	}
}
