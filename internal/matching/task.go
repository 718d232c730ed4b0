package matching

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/cv-ranker/internal/retry"
	"github.com/spigell/cv-ranker/internal/scorer"
)

const (
	DefaultTimeout = 90 * time.Second

	attemptSuccess = "success"
)

// Task scores a single candidate. Run always returns a result.
type Task struct {
	scorer   scorer.Scorer
	fallback FallbackScorer
	policy   retry.Policy
	timeout  time.Duration
	logger   *zap.Logger
	metrics  *Metrics
}

// TaskConfig tunes a Task. Zero values take the defaults.
type TaskConfig struct {
	Timeout time.Duration
	Policy  *retry.Policy
}

// NewTask builds a task around the remote scorer. A nil scorer sends every candidate to the fallback.
func NewTask(s scorer.Scorer, cfg TaskConfig, logger *zap.Logger, metrics *Metrics) *Task {
	if logger == nil {
		logger = zap.NewNop()
	}

	policy := retry.ScoringPolicy()
	if cfg.Policy != nil {
		policy = *cfg.Policy
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &Task{
		scorer:  s,
		policy:  policy,
		timeout: timeout,
		logger:  logger,
		metrics: metrics,
	}
}

// Run tries the remote scorer under the retry policy and falls back to the heuristic when it gives up.
func (t *Task) Run(ctx context.Context, index int, cvText, filename, jdText string) Outcome {
	started := time.Now()
	logger := t.logger.With(zap.Int("index", index), zap.String("filename", filename))

	outcome := t.score(ctx, logger, cvText, filename, jdText)
	t.metrics.observeOutcome(outcome, time.Since(started).Seconds())

	return outcome
}

func (t *Task) score(ctx context.Context, logger *zap.Logger, cvText, filename, jdText string) Outcome {
	if t.scorer == nil {
		return t.fallbackOutcome(logger, cvText, filename, jdText, 0, nil)
	}

	policy := t.policy
	policy.Notify = func(attempt int, err *retry.Error, delay time.Duration) {
		logger.Warn("remote scoring attempt failed, retrying",
			zap.Int("attempt", attempt),
			zap.Stringer("kind", err.Kind),
			zap.Duration("delay", delay),
			zap.Error(err.Err),
		)
	}

	attempts := 0
	resp, err := retry.Do(ctx, policy, func(ctx context.Context) (*scorer.Response, error) {
		attempts++
		attemptCtx, cancel := context.WithTimeout(ctx, t.timeout)
		defer cancel()

		resp, err := t.scorer.Score(attemptCtx, scorer.Request{JDText: jdText, CVText: cvText})
		if err != nil {
			t.metrics.observeAttempt(retry.Classify(err).Kind.String())
			return nil, err
		}
		if resp == nil || resp.MatchResult.Breakdown == nil {
			t.metrics.observeAttempt(retry.KindMalformed.String())
			return nil, retry.ErrMalformedResponse
		}
		t.metrics.observeAttempt(attemptSuccess)
		return resp, nil
	})
	if err != nil {
		logger.Warn("remote scoring exhausted, using fallback scorer",
			zap.Int("attempts", attempts),
			zap.Error(err),
		)
		return t.fallbackOutcome(logger, cvText, filename, jdText, attempts, err)
	}

	logger.Debug("remote scoring succeeded",
		zap.Int("attempts", attempts),
		zap.Float64("overall_score", resp.MatchResult.OverallScore),
	)

	return Outcome{
		Result:   fromResponse(resp, filename, cvText),
		Source:   SourceRemote,
		Attempts: attempts,
	}
}

func (t *Task) fallbackOutcome(logger *zap.Logger, cvText, filename, jdText string, attempts int, cause error) Outcome {
	result := t.fallback.Score(jdText, cvText, filename)

	logger.Debug("fallback scoring used", zap.Float64("overall_score", result.OverallScore))

	return Outcome{
		Result:   result,
		Source:   SourceFallback,
		Attempts: attempts,
		Err:      cause,
	}
}

func fromResponse(resp *scorer.Response, filename, cvText string) MatchResult {
	b := resp.MatchResult.Breakdown

	id := resp.CVID
	if id == "" {
		id = fallbackID(filename, cvText)
	}

	education := educationUnknown / percentToUnitScale
	if b.EducationScore != nil {
		education = *b.EducationScore
	}

	return MatchResult{
		CVID:                id,
		CVFilename:          filename,
		OverallScore:        resp.MatchResult.OverallScore,
		SkillsScore:         b.SkillsScore,
		ExperienceScore:     b.ExperienceScore,
		EducationScore:      education,
		TitleScore:          b.TitleScore,
		ResponsibilityScore: b.ResponsibilityScore,
		StandardizedCV:      resp.CVStandardized,
		MatchDetails:        &MatchDetails{Source: SourceRemote},
	}
}
