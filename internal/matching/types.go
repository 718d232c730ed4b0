// Package matching scores a batch of CVs against one job description.
//
// Every candidate ends with a MatchResult: the remote scorer is tried first under a
// bounded retry policy and the deterministic FallbackScorer covers whatever it cannot answer.
package matching

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// ErrInvalidRequest is returned for requests rejected before any scoring starts.
var ErrInvalidRequest = errors.New("invalid analysis request")

var validate = validator.New(validator.WithRequiredStructEnabled())

// AnalysisRequest is one job description plus the CVs to score against it.
type AnalysisRequest struct {
	JDText    string   `json:"jd_text" validate:"required"`
	CVTexts   []string `json:"cv_texts"`
	Filenames []string `json:"filenames,omitempty"`
}

// Validate checks the request invariants.
func (r *AnalysisRequest) Validate() error {
	if r == nil {
		return fmt.Errorf("%w: request is nil", ErrInvalidRequest)
	}
	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if r.Filenames != nil && len(r.Filenames) != len(r.CVTexts) {
		return fmt.Errorf("%w: %d filenames for %d cv texts", ErrInvalidRequest, len(r.Filenames), len(r.CVTexts))
	}
	return nil
}

// Filename returns the caller supplied name of candidate i or a positional one.
func (r *AnalysisRequest) Filename(i int) string {
	if i < len(r.Filenames) && r.Filenames[i] != "" {
		return r.Filenames[i]
	}
	return fmt.Sprintf("cv_%d", i+1)
}

// Source tells where a MatchResult came from.
type Source string

const (
	SourceRemote   Source = "remote"
	SourceFallback Source = "fallback"
)

// MatchResult holds the scores of one candidate. Every score is on the 0-1 scale.
type MatchResult struct {
	CVID                string         `json:"cv_id"`
	CVFilename          string         `json:"cv_filename"`
	OverallScore        float64        `json:"overall_score"`
	SkillsScore         float64        `json:"skills_score"`
	ExperienceScore     float64        `json:"experience_score"`
	EducationScore      float64        `json:"education_score"`
	TitleScore          float64        `json:"title_score"`
	ResponsibilityScore float64        `json:"responsibility_score"`
	StandardizedCV      map[string]any `json:"standardized_cv,omitempty"`
	MatchDetails        *MatchDetails  `json:"match_details,omitempty"`
}

// MatchDetails explains how a result was produced.
type MatchDetails struct {
	Source        Source   `json:"source"`
	JDSkills      []string `json:"jd_skills,omitempty"`
	CVSkills      []string `json:"cv_skills,omitempty"`
	MatchedSkills []string `json:"matched_skills,omitempty"`
	TitleTokens   []string `json:"title_tokens,omitempty"`
}

// Outcome is the terminal state of one scoring task.
type Outcome struct {
	Result   MatchResult
	Source   Source
	Attempts int
	Err      error
}
