package fuse

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snow-ghost/fusion/core"
)

func decision() core.SelectionDecision {
	return core.SelectionDecision{Workers: []core.RankedWorker{
		{WorkerID: "a", Fitness: 9.0},
		{WorkerID: "b", Fitness: 8.0},
		{WorkerID: "c", Fitness: 7.0},
	}}
}

func success(id, answer string) core.InvocationResult {
	return core.InvocationResult{WorkerID: id, Status: core.StatusSuccess, Answer: answer}
}

func failure(id string) core.InvocationResult {
	return core.InvocationResult{WorkerID: id, Status: core.StatusFailure, Error: "down"}
}

func TestFuseZeroSuccessesIsFatal(t *testing.T) {
	f := New(nil, "", nil)

	_, err := f.Fuse(context.Background(), "q", decision(), []core.InvocationResult{
		failure("a"), failure("b"), failure("c"),
	})

	require.Error(t, err)
	var noSuccess *core.NoSuccessError
	require.ErrorAs(t, err, &noSuccess)
	assert.Equal(t, 3, noSuccess.Attempted)
	assert.Len(t, noSuccess.Failures, 3)
}

func TestFuseSingleSuccessPassesThroughVerbatim(t *testing.T) {
	invoker := core.InvokerFunc(func(ctx context.Context, workerID, prompt string) (core.Answer, error) {
		t.Fatal("no fusion call should happen for a single success")
		return core.Answer{}, nil
	})
	f := New(invoker, "", nil)

	original := "the one and only answer, word for word"
	got, err := f.Fuse(context.Background(), "q", decision(), []core.InvocationResult{
		failure("a"), success("b", original), failure("c"),
	})

	require.NoError(t, err)
	assert.Equal(t, original, got.Text)
	assert.True(t, got.Passthrough)
	assert.Equal(t, []string{"b"}, got.Contributors)
}

func TestFuseMultipleSuccessesCallsFusionWorker(t *testing.T) {
	var gotWorker, gotPrompt string
	invoker := core.InvokerFunc(func(ctx context.Context, workerID, prompt string) (core.Answer, error) {
		gotWorker = workerID
		gotPrompt = prompt
		return core.Answer{Text: "fused answer"}, nil
	})
	f := New(invoker, "judge", nil)

	got, err := f.Fuse(context.Background(), "why is the sky blue?", decision(), []core.InvocationResult{
		success("a", "answer alpha"), success("b", "answer beta"), failure("c"),
	})

	require.NoError(t, err)
	assert.Equal(t, "judge", gotWorker)
	assert.Equal(t, "fused answer", got.Text)
	assert.False(t, got.Passthrough)
	assert.Equal(t, []string{"a", "b"}, got.Contributors)

	// every successful answer is embedded, labeled by worker
	assert.Contains(t, gotPrompt, "why is the sky blue?")
	assert.Contains(t, gotPrompt, "worker a")
	assert.Contains(t, gotPrompt, "answer alpha")
	assert.Contains(t, gotPrompt, "worker b")
	assert.Contains(t, gotPrompt, "answer beta")
	assert.False(t, strings.Contains(gotPrompt, "worker c"))
}

func TestFuseDegradesToBestSingleAnswerOnFailure(t *testing.T) {
	invoker := core.InvokerFunc(func(ctx context.Context, workerID, prompt string) (core.Answer, error) {
		return core.Answer{}, errors.New("fusion worker down")
	})
	f := New(invoker, "judge", nil)

	got, err := f.Fuse(context.Background(), "q", decision(), []core.InvocationResult{
		success("b", "answer beta"), success("a", "answer alpha"),
	})

	require.NoError(t, err)
	// "a" has higher selection fitness than "b"
	assert.Equal(t, "answer alpha", got.Text)
	assert.True(t, got.Passthrough)
	assert.Equal(t, []string{"a"}, got.Contributors)
}

func TestFuseDegradesOnEmptyFusionText(t *testing.T) {
	invoker := core.InvokerFunc(func(ctx context.Context, workerID, prompt string) (core.Answer, error) {
		return core.Answer{Text: "   \n"}, nil
	})
	f := New(invoker, "judge", nil)

	got, err := f.Fuse(context.Background(), "q", decision(), []core.InvocationResult{
		success("a", "alpha"), success("b", "beta"),
	})

	require.NoError(t, err)
	assert.True(t, got.Passthrough)
	assert.Equal(t, "alpha", got.Text)
}

func TestFuseDefaultsFusionWorkerToBestContributor(t *testing.T) {
	var gotWorker string
	invoker := core.InvokerFunc(func(ctx context.Context, workerID, prompt string) (core.Answer, error) {
		gotWorker = workerID
		return core.Answer{Text: "fused"}, nil
	})
	f := New(invoker, "", nil)

	_, err := f.Fuse(context.Background(), "q", decision(), []core.InvocationResult{
		success("c", "gamma"), success("b", "beta"),
	})

	require.NoError(t, err)
	assert.Equal(t, "b", gotWorker)
}
