// Package scorer defines the remote scoring contract shared by the scoring backends.
package scorer

import (
	"context"
	"fmt"
	"math"

	"github.com/mitchellh/mapstructure"

	"github.com/spigell/cv-ranker/internal/retry"
)

// Scorer scores one CV against one job description.
type Scorer interface {
	Score(ctx context.Context, req Request) (*Response, error)
}

// Request is the payload sent to a remote scorer.
type Request struct {
	JDText string `json:"jd_text"`
	CVText string `json:"cv_text"`
}

// Response is the structured answer of a remote scorer.
// All scores are on the 0-1 scale once decoded.
type Response struct {
	CVID           string         `json:"cv_id" mapstructure:"cv_id"`
	MatchResult    MatchResult    `json:"match_result" mapstructure:"match_result"`
	CVStandardized map[string]any `json:"cv_standardized_data,omitempty" mapstructure:"cv_standardized_data"`
}

type MatchResult struct {
	OverallScore float64    `json:"overall_score" mapstructure:"overall_score"`
	Breakdown    *Breakdown `json:"breakdown" mapstructure:"breakdown"`
}

type Breakdown struct {
	SkillsScore         float64  `json:"skills_score" mapstructure:"skills_score"`
	ExperienceScore     float64  `json:"experience_score" mapstructure:"experience_score"`
	ResponsibilityScore float64  `json:"responsibility_score" mapstructure:"responsibility_score"`
	TitleScore          float64  `json:"title_score" mapstructure:"title_score"`
	EducationScore      *float64 `json:"education_score,omitempty" mapstructure:"education_score"`
}

// Decode converts an untyped JSON document into a Response.
// Numeric strings are accepted, percentages are rescaled to 0-1 and a missing breakdown is malformed.
func Decode(raw map[string]any) (*Response, error) {
	if raw == nil {
		return nil, fmt.Errorf("empty document: %w", retry.ErrMalformedResponse)
	}

	var resp Response
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &resp,
	})
	if err != nil {
		return nil, err
	}

	if err := decoder.Decode(raw); err != nil {
		return nil, fmt.Errorf("decode scorer response: %v: %w", err, retry.ErrMalformedResponse)
	}

	if err := resp.normalize(); err != nil {
		return nil, err
	}

	return &resp, nil
}

func (r *Response) normalize() error {
	b := r.MatchResult.Breakdown
	if b == nil {
		return fmt.Errorf("score breakdown is missing: %w", retry.ErrMalformedResponse)
	}

	scores := []*float64{
		&r.MatchResult.OverallScore,
		&b.SkillsScore,
		&b.ExperienceScore,
		&b.ResponsibilityScore,
		&b.TitleScore,
	}
	if b.EducationScore != nil {
		scores = append(scores, b.EducationScore)
	}

	for _, score := range scores {
		if math.IsNaN(*score) || math.IsInf(*score, 0) {
			return fmt.Errorf("score is not finite: %w", retry.ErrMalformedResponse)
		}
		*score = ToUnit(*score)
	}

	return nil
}

// ToUnit converts a score to the 0-1 scale. Values above 1 are read as percentages.
func ToUnit(v float64) float64 {
	if v > 1 {
		v /= 100
	}
	return math.Max(0, math.Min(1, v))
}
