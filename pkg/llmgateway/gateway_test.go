package llmgateway

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ensemble-maestro/swarm/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testProviderConfig() *config.LLMProviderConfig {
	return &config.LLMProviderConfig{
		Type:                config.LLMProviderTypeFake,
		Model:               "fake-deterministic",
		MaxOutputTokens:     8192,
		TimeoutSeconds:      5,
		InputCostPerMToken:  3.0,
		OutputCostPerMToken: 15.0,
	}
}

func TestGenerate_Success(t *testing.T) {
	fake := &FakeProvider{Content: "hello world"}
	gw := New(fake, "fake", testProviderConfig(), "")

	resp := gw.Generate(context.Background(), Request{System: "sys", User: "do a thing", AgentType: "designer", Stage: "designing"})

	require.True(t, resp.Success)
	assert.Equal(t, "hello world", resp.Content)
	assert.Positive(t, resp.TokensOut)
	assert.GreaterOrEqual(t, resp.Cost, 0.0)
	assert.Equal(t, "fake-deterministic", resp.Model)
}

func TestGenerate_ProviderErrorReportsFailure(t *testing.T) {
	fake := &FakeProvider{Fn: func(req ProviderRequest) (string, error) {
		return "", errors.New("boom")
	}}
	gw := New(fake, "fake", testProviderConfig(), "")

	resp := gw.Generate(context.Background(), Request{User: "x"})

	assert.False(t, resp.Success)
	assert.Equal(t, "Error", resp.Error)
}

func TestGenerate_TimeoutReportsFailureNotPanic(t *testing.T) {
	fake := &FakeProvider{Fn: func(req ProviderRequest) (string, error) {
		time.Sleep(50 * time.Millisecond)
		return "", context.DeadlineExceeded
	}}
	cfg := testProviderConfig()
	cfg.TimeoutSeconds = 0 // exercise the Gateway's own callTimeout floor via a pre-expired context below
	gw := New(fake, "fake", cfg, "")

	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Millisecond)
	defer cancel()
	time.Sleep(2 * time.Millisecond)

	resp := gw.Generate(ctx, Request{User: "x"})

	assert.False(t, resp.Success)
	assert.Equal(t, "Timeout", resp.Error)
}

func TestGenerate_CostIsLinearInTokens(t *testing.T) {
	gw := New(&FakeProvider{Content: "irrelevant"}, "fake", testProviderConfig(), "")
	cost := gw.cost(1_000_000, 1_000_000)
	assert.InDelta(t, 18.0, cost, 0.0001)
}

func TestGenerate_PersistsArtifact(t *testing.T) {
	dir := t.TempDir()
	gw := New(&FakeProvider{Content: "generated content"}, "fake", testProviderConfig(), dir)

	resp := gw.Generate(context.Background(), Request{User: "x", AgentType: "designer", Stage: "designing"})
	require.True(t, resp.Success)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].Name(), "designing-designer-")

	content, err := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	require.NoError(t, err)
	assert.Equal(t, "generated content", string(content))
}

func TestGenerate_ArtifactFailureDoesNotFailCall(t *testing.T) {
	// Point artifactDir at a path that cannot be created (a file, not a dir).
	blocked := filepath.Join(t.TempDir(), "not-a-dir")
	require.NoError(t, os.WriteFile(blocked, []byte("x"), 0o644))

	gw := New(&FakeProvider{Content: "x"}, "fake", testProviderConfig(), filepath.Join(blocked, "artifacts"))
	resp := gw.Generate(context.Background(), Request{User: "x"})

	assert.True(t, resp.Success)
}

func TestEstimateTokens_UsesUpperBound(t *testing.T) {
	short := "a b c"
	assert.Equal(t, 3, estimateTokens(short))

	long := "xxxxxxxxxxxxxxxxxxxxxxxxxx" // 26 chars, no spaces: len/4 dominates
	assert.Equal(t, len(long)/4, estimateTokens(long))
}
