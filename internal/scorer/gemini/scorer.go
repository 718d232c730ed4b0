// Package gemini scores CVs against job descriptions with a Gemini model.
package gemini

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/spigell/cv-ranker/internal/retry"
	"github.com/spigell/cv-ranker/internal/scorer"
	"github.com/spigell/cv-ranker/internal/utils"
)

type contentGenerator interface {
	GenerateContent(ctx context.Context, prompt string) (string, error)
}

// Scorer implements scorer.Scorer on top of a text generator.
type Scorer struct {
	generator contentGenerator
	logger    *zap.Logger
	maxLogLen int
}

//go:embed prompt.md
var promptTemplate string

const defaultMaxLogLength = 200

func NewScorer(generator contentGenerator, maxLogLength int, logger *zap.Logger) *Scorer {
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Scorer{
		generator: generator,
		logger:    logger,
		maxLogLen: maxLogLength,
	}
}

func (s *Scorer) Score(ctx context.Context, req scorer.Request) (*scorer.Response, error) {
	if strings.TrimSpace(req.JDText) == "" {
		return nil, fmt.Errorf("job description is required")
	}

	prompt := buildPrompt(req.JDText, req.CVText)

	s.logger.Debug("gemini generate content request",
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", utils.TruncateForLog(prompt, s.maxLogLen)),
	)

	raw, err := s.generator.GenerateContent(ctx, prompt)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("gemini generate content response",
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", utils.TruncateForLog(raw, s.maxLogLen)),
	)

	return parseResponse(raw)
}

func buildPrompt(jdText, cvText string) string {
	template := promptTemplate
	if strings.TrimSpace(template) == "" {
		template = "Job description:\n{{JD_TEXT}}\n\nCandidate CV:\n{{CV_TEXT}}\n\nJSON Response:"
	}
	prompt := strings.ReplaceAll(template, "{{JD_TEXT}}", strings.TrimSpace(jdText))
	prompt = strings.ReplaceAll(prompt, "{{CV_TEXT}}", strings.TrimSpace(cvText))
	return prompt
}

func parseResponse(raw string) (*scorer.Response, error) {
	cleaned := extractJSON(raw)

	var data map[string]any
	if err := json.Unmarshal([]byte(cleaned), &data); err != nil {
		return nil, fmt.Errorf("parse gemini response: %v: %w", err, retry.ErrMalformedResponse)
	}

	// Models sometimes drop the match_result envelope and answer with the breakdown at the top level.
	if _, ok := data["match_result"]; !ok {
		if _, flat := data["breakdown"]; flat {
			data = map[string]any{
				"match_result":         data,
				"cv_standardized_data": data["cv_standardized_data"],
			}
		}
	}

	return scorer.Decode(data)
}

func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.Trim(raw, "`")
	return strings.TrimSpace(raw)
}
