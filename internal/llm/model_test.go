package llm

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/fake"

	"github.com/raphaelgruber/healthrag-go/internal/config"
	"github.com/raphaelgruber/healthrag-go/internal/metrics"
)

func TestIsFatalAPIError(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		fatal bool
	}{
		{"nil error", nil, false},
		{"generic error", errors.New("connection reset"), false},
		{"credit balance", errors.New("insufficient credit balance"), true},
		{"rate limit", errors.New("rate limit exceeded"), true},
		{"quota exceeded", errors.New("quota exceeded for model"), true},
		{"billing issue", errors.New("billing account inactive"), true},
		{"invalid api key", errors.New("invalid api key"), true},
		{"authentication failed", errors.New("authentication failed"), true},
		{"unauthorized", errors.New("unauthorized request"), true},
		{"401 status", errors.New("HTTP 401: not allowed"), true},
		{"403 status", errors.New("HTTP 403: forbidden"), true},
		{"wrapped error", fmt.Errorf("embed: %w", errors.New("credit balance too low")), true},
		{"404 not fatal", errors.New("HTTP 404: not found"), false},
		{"timeout not fatal", errors.New("context deadline exceeded"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.fatal, isFatalAPIError(tt.err), "isFatalAPIError(%v)", tt.err)
		})
	}
}

func TestWrapFatalError(t *testing.T) {
	t.Run("wraps fatal error", func(t *testing.T) {
		err := errors.New("invalid api key provided")
		wrapped := wrapFatalError(err)
		assert.ErrorIs(t, wrapped, ErrFatalAPI)
		assert.ErrorIs(t, wrapped, err, "original error stays in the chain")
	})

	t.Run("passes through non-fatal error", func(t *testing.T) {
		err := errors.New("network timeout")
		result := wrapFatalError(err)
		assert.NotErrorIs(t, result, ErrFatalAPI)
		assert.Equal(t, err, result)
	})

	t.Run("nil error", func(t *testing.T) {
		assert.NoError(t, wrapFatalError(nil))
	})
}

func TestModelGenerate(t *testing.T) {
	collector := metrics.NewCollector()
	m := NewModelFromLLM(fake.NewFakeLLM([]string{`{"ok": true}`}), "fake-model", WithMetrics(collector), WithRateLimit(100))

	out, err := m.Generate(context.Background(), "system", "user")
	require.NoError(t, err)
	assert.Equal(t, `{"ok": true}`, out)
	assert.Equal(t, "fake-model", m.Model())

	snap := collector.Snapshot()
	require.NotNil(t, snap.LLMGenerate)
	assert.Equal(t, int64(1), snap.LLMGenerate.Count)
}

type failingLLM struct{ err error }

func (f failingLLM) GenerateContent(context.Context, []llms.MessageContent, ...llms.CallOption) (*llms.ContentResponse, error) {
	return nil, f.err
}

func (f failingLLM) Call(context.Context, string, ...llms.CallOption) (string, error) {
	return "", f.err
}

func TestModelGenerateFatal(t *testing.T) {
	collector := metrics.NewCollector()
	m := NewModelFromLLM(failingLLM{err: errors.New("HTTP 401: invalid api key")}, "broken", WithMetrics(collector))

	_, err := m.Generate(context.Background(), "system", "user")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrFatalAPI)
	assert.Equal(t, int64(1), collector.Snapshot().LLMGenerate.Errors)
}

func TestTokenUsage(t *testing.T) {
	in, out := tokenUsage(map[string]any{"PromptTokens": 12, "CompletionTokens": 7})
	assert.Equal(t, int64(12), in)
	assert.Equal(t, int64(7), out)

	in, out = tokenUsage(nil)
	assert.Zero(t, in)
	assert.Zero(t, out)
}

func TestNewModelRequiresKeys(t *testing.T) {
	cfg := config.Defaults()

	cfg.LLMProvider = config.ProviderOpenAI
	_, err := NewModel(context.Background(), cfg)
	assert.Error(t, err)

	cfg.LLMProvider = config.ProviderAnthropic
	_, err = NewModel(context.Background(), cfg)
	assert.Error(t, err)

	cfg.LLMProvider = "unknown"
	_, err = NewModel(context.Background(), cfg)
	assert.Error(t, err)
}

type stubEmbeddings struct {
	dim   int
	calls [][]string
}

func (s *stubEmbeddings) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	s.calls = append(s.calls, texts)
	out := make([][]float32, len(texts))
	for i := range texts {
		v := make([]float32, s.dim)
		v[0] = float32(i + 1)
		out[i] = v
	}
	return out, nil
}

func (s *stubEmbeddings) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	v, err := s.EmbedDocuments(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return v[0], nil
}

func TestEmbedderSkipsEmptyTexts(t *testing.T) {
	stub := &stubEmbeddings{dim: 4}
	e := NewEmbedderFrom(stub, "stub", 4, metrics.NewCollector())

	zero, err := e.Embed(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, make([]float32, 4), zero)
	assert.Empty(t, stub.calls)

	out, err := e.EmbedBatch(context.Background(), []string{"a", "", "b"})
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.Equal(t, [][]string{{"a", "b"}}, stub.calls)
	assert.Equal(t, float32(1), out[0][0])
	assert.Equal(t, make([]float32, 4), out[1])
	assert.Equal(t, float32(2), out[2][0])
}

func TestEmbedderDimensionMismatch(t *testing.T) {
	e := NewEmbedderFrom(&stubEmbeddings{dim: 3}, "stub", 4, nil)
	_, err := e.Embed(context.Background(), "text")
	assert.Error(t, err)
}
