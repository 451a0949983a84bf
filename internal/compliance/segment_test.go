package compliance

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/qabot/constants"
	"github.com/joseph-ayodele/qabot/internal/common"
	"github.com/joseph-ayodele/qabot/internal/llm"
)

func TestParagraphSegmenter(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{"empty", "", nil},
		{"whitespace", " \n \n\t", nil},
		{"compliant", "Compliant", nil},
		{"compliant with period", "Compliant.\n", nil},
		{"single", "Uses the word 'cheap'.", []string{"Uses the word 'cheap'."}},
		{"two paragraphs", "A\n\nB", []string{"A", "B"}},
		{"whitespace-only separator", "A\n   \nB", []string{"A", "B"}},
		{"crlf", "A\r\n\r\nB\r\n", []string{"A", "B"}},
		{"multiline paragraph", "line one\nline two\n\n\n\nnext", []string{"line one\nline two", "next"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParagraphSegmenter{}.Segment(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestVerdictSegmenter(t *testing.T) {
	got, err := VerdictSegmenter{}.Segment("  \"Compliant\"  ")
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = VerdictSegmenter{}.Segment("Too casual.\n\nAlso uses emoji.\n")
	require.NoError(t, err)
	assert.Equal(t, []string{"Too casual.\n\nAlso uses emoji."}, got)
}

func TestJSONSegmenter(t *testing.T) {
	seg, err := NewJSONSegmenter(quietLogger())
	require.NoError(t, err)

	t.Run("strict", func(t *testing.T) {
		got, err := seg.Segment(`{"violations":[{"rule_name":"Tone","explanation":"Too casual."},{"explanation":"Missing disclaimer."}]}`)
		require.NoError(t, err)
		assert.Equal(t, []string{"Tone: Too casual.", "Missing disclaimer."}, got)
	})

	t.Run("empty list", func(t *testing.T) {
		got, err := seg.Segment(`{"violations":[]}`)
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("fenced and lenient", func(t *testing.T) {
		raw := "```json\n[{\"rule\":\"Tone\",\"reason\":\"Too casual.\",\"severity\":3}]\n```"
		got, err := seg.Segment(raw)
		require.NoError(t, err)
		assert.Equal(t, []string{"Tone: Too casual."}, got)
	})

	t.Run("compliant literal", func(t *testing.T) {
		got, err := seg.Segment(constants.CompliantReply)
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := seg.Segment("I think it is fine mostly")
		require.Error(t, err)
		assert.ErrorIs(t, err, common.ErrUnparseable)
	})
}

func TestPolicyFor(t *testing.T) {
	tests := []struct {
		mode  string
		style llm.PromptStyle
		size  int
	}{
		{constants.ModePerRule, llm.StyleVerdict, 1},
		{constants.ModeSingle, llm.StyleParagraphs, AllRules},
		{constants.ModeChunked, llm.StyleParagraphs, 15},
		{"", llm.StyleParagraphs, 15},
		{"CHUNKED", llm.StyleParagraphs, 15},
		{constants.ModeStructured, llm.StyleJSON, 15},
	}
	for _, tt := range tests {
		t.Run(tt.mode, func(t *testing.T) {
			p, err := PolicyFor(tt.mode, quietLogger())
			require.NoError(t, err)
			assert.Equal(t, tt.style, p.Style)
			assert.Equal(t, tt.size, p.BatchSize(15))
			assert.NotNil(t, p.Segmenter)
		})
	}

	p, err := PolicyFor(constants.ModeChunked, quietLogger())
	require.NoError(t, err)
	assert.Equal(t, constants.DefaultMaxBatchSize, p.BatchSize(0))

	_, err = PolicyFor("bogus", quietLogger())
	require.Error(t, err)
	assert.True(t, common.IsKind(err, common.CodeValidation))
}
