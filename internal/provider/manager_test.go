package provider

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relayforge/claude-gateway/internal/config"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(&config.Config{
		Providers: map[string]config.ProviderConfig{
			"openai": {
				BaseURL: "https://api.openai.com/v1/",
				APIKeys: []string{"key-1", "key-2"},
				Default: true,
				ModelAliases: map[string]string{
					"claude-3-haiku": "gpt-4o-mini",
				},
			},
			"groq": {
				BaseURL: "https://api.groq.com/openai/v1",
				APIKeys: []string{"gsk-1"},
				Models:  []string{"llama-3.3-70b"},
			},
			"claude-direct": {
				BaseURL:         "https://api.anthropic.com/v1",
				Passthrough:     true,
				AnthropicFormat: true,
				Models:          []string{"claude-sonnet"},
			},
		},
	})
	require.NoError(t, err)
	return m
}

func TestResolveExplicitPrefix(t *testing.T) {
	m := newTestManager(t)

	name, model, cfg, err := m.Resolve("groq/llama-3.3-70b")
	require.NoError(t, err)
	assert.Equal(t, "groq", name)
	assert.Equal(t, "llama-3.3-70b", model)
	assert.Equal(t, "groq", cfg.Name)
}

func TestResolveModelList(t *testing.T) {
	m := newTestManager(t)

	name, model, _, err := m.Resolve("llama-3.3-70b")
	require.NoError(t, err)
	assert.Equal(t, "groq", name)
	assert.Equal(t, "llama-3.3-70b", model)
}

func TestResolveDefaultFallback(t *testing.T) {
	m := newTestManager(t)

	name, model, cfg, err := m.Resolve("gpt-4o")
	require.NoError(t, err)
	assert.Equal(t, "openai", name)
	assert.Equal(t, "gpt-4o", model)
	assert.False(t, cfg.Passthrough)
}

func TestResolveAppliesAliases(t *testing.T) {
	m := newTestManager(t)

	_, model, _, err := m.Resolve("claude-3-haiku")
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o-mini", model)
}

// A slash in the model only routes when the prefix names a real provider.
func TestResolveUnknownPrefixFallsThrough(t *testing.T) {
	m := newTestManager(t)

	name, model, _, err := m.Resolve("vendor/unknown-model")
	require.NoError(t, err)
	assert.Equal(t, "openai", name)
	assert.Equal(t, "vendor/unknown-model", model)
}

func TestResolveIsDeterministic(t *testing.T) {
	m := newTestManager(t)
	firstName, firstModel, _, err := m.Resolve("claude-sonnet")
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		name, model, _, err := m.Resolve("claude-sonnet")
		require.NoError(t, err)
		assert.Equal(t, firstName, name)
		assert.Equal(t, firstModel, model)
	}
}

func TestDefaultFallsBackToSortedFirst(t *testing.T) {
	m, err := NewManager(&config.Config{
		Providers: map[string]config.ProviderConfig{
			"zeta":  {BaseURL: "https://z.example.com"},
			"alpha": {BaseURL: "https://a.example.com"},
		},
	})
	require.NoError(t, err)

	name, _, _, err := m.Resolve("anything")
	require.NoError(t, err)
	assert.Equal(t, "alpha", name)
}

func TestNextKeyRotates(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	k1, err := m.NextKey(ctx, "openai")
	require.NoError(t, err)
	k2, err := m.NextKey(ctx, "openai")
	require.NoError(t, err)
	k3, err := m.NextKey(ctx, "openai")
	require.NoError(t, err)

	assert.Equal(t, "key-1", k1)
	assert.Equal(t, "key-2", k2)
	assert.Equal(t, "key-1", k3)
}

func TestNextKeyPassthroughProvider(t *testing.T) {
	m := newTestManager(t)

	_, err := m.NextKey(context.Background(), "claude-direct")
	assert.ErrorIs(t, err, ErrNoKeys)
}

func TestNextKeyUnknownProvider(t *testing.T) {
	m := newTestManager(t)

	_, err := m.NextKey(context.Background(), "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing")
}

func TestBaseURLTrailingSlashTrimmed(t *testing.T) {
	m := newTestManager(t)
	cfg, ok := m.Get("openai")
	require.True(t, ok)
	assert.Equal(t, "https://api.openai.com/v1", cfg.BaseURL)
}

func TestKeyRingConcurrent(t *testing.T) {
	ring := NewKeyRing([]string{"a", "b", "c"})

	const workers, perWorker = 8, 300
	counts := make([]map[string]int, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			counts[i] = make(map[string]int)
			for j := 0; j < perWorker; j++ {
				k, err := ring.Next()
				if err != nil {
					t.Error(err)
					return
				}
				counts[i][k]++
			}
		}(i)
	}
	wg.Wait()

	total := make(map[string]int)
	for _, c := range counts {
		for k, n := range c {
			total[k] += n
		}
	}
	// Rotation distributes exactly evenly across keys.
	assert.Equal(t, map[string]int{"a": 800, "b": 800, "c": 800}, total)
}

func TestKeyRingDropsEmptyKeys(t *testing.T) {
	ring := NewKeyRing([]string{"", "real", ""})
	assert.Equal(t, 1, ring.Len())
	k, err := ring.Next()
	require.NoError(t, err)
	assert.Equal(t, "real", k)
}
