package retrieval

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raphaelgruber/healthrag-go/internal/models"
)

type stubSearcher struct {
	hits    []Hit
	err     error
	queries []string
}

func (s *stubSearcher) Retrieve(_ context.Context, text string, _ int) ([]Hit, error) {
	s.queries = append(s.queries, text)
	return s.hits, s.err
}

func TestBuildQueryPrecedence(t *testing.T) {
	intake := &models.IntakeRecord{RawText: "  raw fallback text  "}

	tests := []struct {
		name       string
		structured models.StructuredRecord
		intake     *models.IntakeRecord
		want       string
	}{
		{
			name: "all sources",
			structured: models.StructuredRecord{
				"chief_complaint":  "chest tightness",
				"symptoms":         []any{"fatigue", "cough"},
				"additional_notes": "worse at night",
				"duration":         "3 days",
				"context":          "after exercise",
				"onset":            "sudden",
			},
			intake: intake,
			want:   "chest tightness fatigue cough after exercise 3 days sudden worse at night",
		},
		{
			name:       "symptoms only",
			structured: models.StructuredRecord{"symptoms": []any{"headache"}},
			intake:     intake,
			want:       "headache",
		},
		{
			name:       "raw fallback",
			structured: models.StructuredRecord{"symptoms": []any{}},
			intake:     intake,
			want:       "raw fallback text",
		},
		{
			name:       "nothing",
			structured: models.StructuredRecord{},
			want:       "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, BuildQuery(tt.structured, tt.intake))
		})
	}
}

func TestBuildQuerySameChiefComplaintSamePrefix(t *testing.T) {
	a := BuildQuery(models.StructuredRecord{"chief_complaint": "dizziness", "onset": "morning"}, nil)
	b := BuildQuery(models.StructuredRecord{"chief_complaint": "dizziness", "duration": "a week"}, nil)
	assert.Equal(t, "dizziness", a[:len("dizziness")])
	assert.Equal(t, "dizziness", b[:len("dizziness")])
}

func TestAgentDisabled(t *testing.T) {
	s := &stubSearcher{}
	res, err := NewAgent(s, false).Retrieve(context.Background(), models.StructuredRecord{"chief_complaint": "fever"}, nil, 3)
	require.NoError(t, err)
	assert.Equal(t, Result{Query: "", Chunks: []Chunk{}, K: 0}, res)
	assert.Empty(t, s.queries)
}

func TestAgentEmptyQuery(t *testing.T) {
	s := &stubSearcher{}
	res, err := NewAgent(s, true).Retrieve(context.Background(), models.StructuredRecord{}, nil, 4)
	require.NoError(t, err)
	assert.Equal(t, Result{Query: "", Chunks: []Chunk{}, K: 4}, res)
	assert.Empty(t, s.queries)
}

func TestAgentWrapsHits(t *testing.T) {
	s := &stubSearcher{hits: []Hit{{Text: "Rest helps.", Source: DefaultSource, Score: 0.9}}}
	res, err := NewAgent(s, true).Retrieve(context.Background(), models.StructuredRecord{"chief_complaint": "fatigue"}, nil, 2)
	require.NoError(t, err)

	assert.Equal(t, "fatigue", res.Query)
	assert.Equal(t, 2, res.K)
	require.Len(t, res.Chunks, 1)
	assert.Equal(t, "Rest helps.", res.Chunks[0].Text)
	require.NotNil(t, res.Chunks[0].Source)
	assert.Equal(t, DefaultSource, *res.Chunks[0].Source)
	require.NotNil(t, res.Chunks[0].Score)
	assert.InDelta(t, 0.9, *res.Chunks[0].Score, 1e-9)
}

func TestAgentPropagatesErrors(t *testing.T) {
	boom := errors.New("index unavailable")
	_, err := NewAgent(&stubSearcher{err: boom}, true).Retrieve(context.Background(), models.StructuredRecord{"chief_complaint": "fatigue"}, nil, 2)
	assert.ErrorIs(t, err, boom)
}
