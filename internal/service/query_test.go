package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tgruber/sourceqa/internal/index"
	"github.com/tgruber/sourceqa/internal/workflow"
)

type stubEngine struct {
	result workflow.Result
	err    error
}

func (s *stubEngine) Run(_ context.Context, _ string) (workflow.Result, error) {
	return s.result, s.err
}

func match(id, url string) index.Match {
	return index.Match{
		ID:       id,
		Text:     "text of " + id,
		Metadata: map[string]string{index.MetaSourceURL: url},
	}
}

func TestAnswer(t *testing.T) {
	engine := &stubEngine{result: workflow.Result{
		Answer:    "Water them twice a week.",
		Retrieved: true,
		Context: []index.Match{
			match("a-0", "https://example.com/a"),
			match("b-0", "https://example.com/b"),
			match("a-1", "https://example.com/a"),
		},
	}}
	q := NewQueryService(engine, nil, nil)

	res, err := q.Answer(context.Background(), "how often should I water?")
	require.NoError(t, err)

	assert.Equal(t, "how often should I water?", res.Query)
	assert.Equal(t, "Water them twice a week.", res.Answer)
	assert.Equal(t, []string{"https://example.com/a", "https://example.com/b"}, res.Sources)
}

func TestAnswerNoSources(t *testing.T) {
	t.Run("direct answer without retrieval", func(t *testing.T) {
		engine := &stubEngine{result: workflow.Result{Answer: "Hello!"}}
		q := NewQueryService(engine, nil, nil)

		res, err := q.Answer(context.Background(), "hi")
		require.NoError(t, err)
		assert.Equal(t, []string{NoSourcesMarker}, res.Sources)
	})

	t.Run("retrieval returned nothing", func(t *testing.T) {
		engine := &stubEngine{result: workflow.Result{Answer: "Not enough context.", Retrieved: true}}
		q := NewQueryService(engine, nil, nil)

		res, err := q.Answer(context.Background(), "what is X?")
		require.NoError(t, err)
		assert.Equal(t, []string{NoSourcesMarker}, res.Sources)
	})

	t.Run("matches lacking source metadata", func(t *testing.T) {
		engine := &stubEngine{result: workflow.Result{
			Answer:    "answer",
			Retrieved: true,
			Context:   []index.Match{{ID: "x-0", Text: "orphan"}},
		}}
		q := NewQueryService(engine, nil, nil)

		res, err := q.Answer(context.Background(), "q")
		require.NoError(t, err)
		assert.Equal(t, []string{NoSourcesMarker}, res.Sources)
	})
}

func TestAnswerEngineError(t *testing.T) {
	boom := errors.New("model down")
	q := NewQueryService(&stubEngine{err: boom}, nil, nil)

	_, err := q.Answer(context.Background(), "q")
	require.ErrorIs(t, err, boom)
}
