package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseJudgment_PlainJSON(t *testing.T) {
	j, err := parseJudgment(`{"same_entity": true, "confidence": 0.93, "reasoning": "same company"}`)
	require.NoError(t, err)

	assert.True(t, j.SameEntity)
	assert.InDelta(t, 0.93, j.Confidence, 1e-9)
	assert.Equal(t, "same company", j.Reasoning)
}

func TestParseJudgment_CodeFence(t *testing.T) {
	raw := "Here is my answer:\n```json\n{\"same_entity\": false, \"confidence\": 0.2, \"reasoning\": \"different branches\"}\n```"
	j, err := parseJudgment(raw)
	require.NoError(t, err)

	assert.False(t, j.SameEntity)
	assert.InDelta(t, 0.2, j.Confidence, 1e-9)
}

func TestParseJudgment_ClampsConfidence(t *testing.T) {
	j, err := parseJudgment(`{"same_entity": true, "confidence": 1.7}`)
	require.NoError(t, err)
	assert.Equal(t, 1.0, j.Confidence)

	j, err = parseJudgment(`{"same_entity": false, "confidence": -0.3}`)
	require.NoError(t, err)
	assert.Equal(t, 0.0, j.Confidence)
}

func TestParseJudgment_NoJSON(t *testing.T) {
	_, err := parseJudgment("I cannot answer that.")
	assert.Error(t, err)
}

func TestNewClaudeProvider_RequiresKey(t *testing.T) {
	_, err := NewClaudeProvider("", "", 3, nil)
	assert.ErrorIs(t, err, ErrAPIKeyRequired)
}
