package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/spigell/cv-ranker/internal/retry"
	"github.com/spigell/cv-ranker/internal/scorer"
)

type stubGenerator struct {
	response   string
	err        error
	lastPrompt string
}

func (s *stubGenerator) GenerateContent(_ context.Context, prompt string) (string, error) {
	s.lastPrompt = prompt
	if s.err != nil {
		return "", s.err
	}
	return s.response, nil
}

func TestScorerScore(t *testing.T) {
	stub := &stubGenerator{response: "```json\n" + `{
  "match_result": {
    "overall_score": 0.82,
    "breakdown": {"skills_score": 0.9, "experience_score": 0.8, "responsibility_score": 0.7, "title_score": 0.6}
  },
  "cv_standardized_data": {"name": "Jane"}
}` + "\n```"}

	s := NewScorer(stub, 0, zap.NewNop())
	resp, err := s.Score(context.Background(), scorer.Request{
		JDText: "Senior Go Engineer",
		CVText: "Go, Kubernetes, 7 years",
	})

	require.NoError(t, err)
	assert.InDelta(t, 0.82, resp.MatchResult.OverallScore, 1e-9)
	assert.InDelta(t, 0.6, resp.MatchResult.Breakdown.TitleScore, 1e-9)
	assert.Equal(t, "Jane", resp.CVStandardized["name"])

	assert.Contains(t, stub.lastPrompt, "Senior Go Engineer")
	assert.Contains(t, stub.lastPrompt, "Go, Kubernetes, 7 years")
	assert.NotContains(t, stub.lastPrompt, "{{JD_TEXT}}")
	assert.NotContains(t, stub.lastPrompt, "{{CV_TEXT}}")
}

func TestScorerAcceptsFlatBreakdown(t *testing.T) {
	stub := &stubGenerator{response: `{"overall_score": 70, "breakdown": {"skills_score": 80, "experience_score": 60, "responsibility_score": 50, "title_score": 40}}`}

	resp, err := NewScorer(stub, 0, nil).Score(context.Background(), scorer.Request{JDText: "jd", CVText: "cv"})

	require.NoError(t, err)
	assert.InDelta(t, 0.7, resp.MatchResult.OverallScore, 1e-9)
	assert.InDelta(t, 0.8, resp.MatchResult.Breakdown.SkillsScore, 1e-9)
}

func TestScorerMalformedResponse(t *testing.T) {
	for _, body := range []string{"I think the candidate is great", `{"match_result": {"overall_score": 0.5}}`} {
		stub := &stubGenerator{response: body}
		_, err := NewScorer(stub, 0, nil).Score(context.Background(), scorer.Request{JDText: "jd", CVText: "cv"})
		assert.ErrorIs(t, err, retry.ErrMalformedResponse, body)
	}
}

func TestScorerPropagatesGeneratorError(t *testing.T) {
	genErr := errors.New("quota")
	stub := &stubGenerator{err: genErr}

	_, err := NewScorer(stub, 0, nil).Score(context.Background(), scorer.Request{JDText: "jd", CVText: "cv"})
	assert.ErrorIs(t, err, genErr)
}

func TestScorerRequiresJobDescription(t *testing.T) {
	stub := &stubGenerator{}
	_, err := NewScorer(stub, 0, nil).Score(context.Background(), scorer.Request{JDText: "  ", CVText: "cv"})
	assert.Error(t, err)
	assert.Empty(t, stub.lastPrompt)
}

func TestAsStatusError(t *testing.T) {
	apiErr := genai.APIError{Code: http.StatusServiceUnavailable, Status: "UNAVAILABLE", Message: "overloaded"}

	classified := retry.Classify(asStatusError(fmt.Errorf("call: %w", apiErr)))
	assert.Equal(t, retry.KindServer, classified.Kind)
	assert.Equal(t, http.StatusServiceUnavailable, classified.Status)

	quota := genai.APIError{Code: http.StatusTooManyRequests, Status: "RESOURCE_EXHAUSTED"}
	assert.Equal(t, retry.KindClient, retry.Classify(asStatusError(quota)).Kind)

	plain := errors.New("dial tcp: refused")
	assert.Equal(t, plain, asStatusError(plain))
}

func TestExtractJSON(t *testing.T) {
	assert.Equal(t, `{"a":1}`, extractJSON("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, extractJSON("  {\"a\":1}  "))
	assert.True(t, strings.HasPrefix(extractJSON("```\n{}\n```"), "{"))
}
