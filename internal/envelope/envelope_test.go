package envelope

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStripFences(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"json fence", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"bare fence", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"inline fence", "```{\"a\":1}```", `{"a":1}`},
		{"surrounding prose", "Here you go:\n```json\n{\"a\":1}\n```\nEnjoy", `{"a":1}`},
		{"no fence", "  {\"a\":1}  ", `{"a":1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StripFences(tt.in))
		})
	}
}

func TestDecodeTaskPlan(t *testing.T) {
	res := Decode[TaskPlan](KindTaskPlan, "```json\n{\"taskQueueConstants\":[{\"name\":\"FreshThought\"},{\"name\":\"PeriodicAnimation\"}]}\n```")
	require.True(t, res.OK(), "decode failed: %v", res.Err)
	assert.Equal(t, KindTaskPlan, res.Kind)
	require.Len(t, res.Value.TaskQueueConstants, 2)
	assert.Equal(t, "FreshThought", res.Value.TaskQueueConstants[0].Name)
	assert.Equal(t, "PeriodicAnimation", res.Value.TaskQueueConstants[1].Name)
}

func TestDecodeMissingField(t *testing.T) {
	res := Decode[Story](KindStory, `{"thought":"hello"}`)
	require.False(t, res.OK())
	assert.True(t, errors.Is(res.Err, ErrMissingField))

	res2 := Decode[ContentInit](KindContentInit, `{"thought":"x","contentPlan":{"topic":"t"}}`)
	require.False(t, res2.OK())
	assert.Contains(t, res2.Err.Error(), "contentPlan.steps")
}

func TestDecodeNoJSON(t *testing.T) {
	res := Decode[Reply](KindReply, "I'd rather just talk, thanks.")
	require.False(t, res.OK())
	assert.True(t, errors.Is(res.Err, ErrNoJSON))

	res = Decode[Reply](KindReply, "{not json at all}")
	require.False(t, res.OK())
	assert.True(t, errors.Is(res.Err, ErrNoJSON))
}

func TestDecodeUnknownKind(t *testing.T) {
	res := Decode[Reply](Kind("haiku"), `{"text":"x"}`)
	assert.True(t, errors.Is(res.Err, ErrUnknownKind))
}

func TestDecodeLenientScalars(t *testing.T) {
	res := Decode[Story](KindStory, `{"thought":"the door creaks","storyProgress":"40","phase":"development","isComplete":"false"}`)
	require.True(t, res.OK(), "decode failed: %v", res.Err)
	assert.Equal(t, Int(40), res.Value.StoryProgress)
	assert.False(t, bool(res.Value.IsComplete))

	res = Decode[Story](KindStory, `{"thought":"end","storyProgress":99.7,"isComplete":true}`)
	require.True(t, res.OK(), "decode failed: %v", res.Err)
	assert.Equal(t, Int(99), res.Value.StoryProgress)
	assert.True(t, bool(res.Value.IsComplete))

	for raw, want := range map[string]Int{
		`1e20`:        math.MaxInt32,
		`"Infinity"`:  math.MaxInt32,
		`-1e20`:       math.MinInt32,
		`"-Infinity"`: math.MinInt32,
	} {
		res = Decode[Story](KindStory, `{"thought":"x","storyProgress":`+raw+`}`)
		require.True(t, res.OK(), "%s: %v", raw, res.Err)
		assert.Equal(t, want, res.Value.StoryProgress, raw)
	}

	res = Decode[Story](KindStory, `{"thought":"x","storyProgress":"NaN"}`)
	assert.False(t, res.OK(), "NaN progress is rejected")
}

func TestRequiredReturnsCopy(t *testing.T) {
	r := Required(KindStory)
	r[0] = "mutated"
	assert.Equal(t, "thought", Required(KindStory)[0])
}
