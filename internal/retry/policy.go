package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/spigell/cv-ranker/internal/utils"
)

const (
	defaultScoringAttempts = 2
	defaultScoringDelay    = 2 * time.Second
	defaultRequestAttempts = 3
	defaultRequestDelay    = 500 * time.Millisecond
	defaultMaxDelay        = 30 * time.Second
)

// wait is swapped in tests to observe delays without sleeping.
var wait = utils.WaitFor

// Policy describes how many times an operation runs and how long to pause between runs.
type Policy struct {
	// MaxAttempts is the total number of attempts, including the first. Values below 1 mean 1.
	MaxAttempts int
	// Delay is the pause after the first failure.
	Delay time.Duration
	// Exponential doubles the pause after every further failure.
	Exponential bool
	// MaxDelay caps exponential pauses. Zero means 30s.
	MaxDelay time.Duration
	// Retryable decides whether a failure gets another attempt. Nil means (*Error).Retryable.
	Retryable func(*Error) bool
	// Notify is called before each pause with the failed attempt number and the upcoming delay.
	Notify func(attempt int, err *Error, delay time.Duration)
}

// ScoringPolicy retries every failure once after a fixed two second pause.
// Remote scorer failures are mostly transient overload, so there is no backoff.
func ScoringPolicy() Policy {
	return Policy{
		MaxAttempts: defaultScoringAttempts,
		Delay:       defaultScoringDelay,
		Retryable:   Always,
	}
}

// RequestPolicy is used by plain network calls: exponential pauses, client errors fail fast.
func RequestPolicy() Policy {
	return Policy{
		MaxAttempts: defaultRequestAttempts,
		Delay:       defaultRequestDelay,
		Exponential: true,
	}
}

// Always retries any failure.
func Always(*Error) bool { return true }

// BackOff returns a fresh delay schedule for the policy.
func (p Policy) BackOff() backoff.BackOff {
	if !p.Exponential {
		return &backoff.ConstantBackOff{Interval: p.Delay}
	}

	maxDelay := p.MaxDelay
	if maxDelay <= 0 {
		maxDelay = defaultMaxDelay
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = p.Delay
	bo.RandomizationFactor = 0
	bo.Multiplier = 2
	bo.MaxInterval = max(maxDelay, p.Delay)
	bo.Reset()
	return bo
}

// DelayFor returns the pause that follows failed attempt number attempt (1-based).
func (p Policy) DelayFor(attempt int) time.Duration {
	bo := p.BackOff()
	delay := bo.NextBackOff()
	for i := 1; i < attempt; i++ {
		delay = bo.NextBackOff()
	}
	return delay
}

func (p Policy) attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

func (p Policy) retryable(err *Error) bool {
	if p.Retryable == nil {
		return err.Retryable()
	}
	return p.Retryable(err)
}

// Do runs op until it succeeds, the policy refuses another attempt, attempts run out or ctx is done.
// Failures are returned as *Error carrying the number of attempts made.
func Do[T any](ctx context.Context, p Policy, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	maxAttempts := p.attempts()
	bo := p.BackOff()

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			stopped := *Classify(err)
			stopped.Attempts = attempt - 1
			return zero, &stopped
		}

		result, err := op(ctx)
		if err == nil {
			return result, nil
		}

		classified := *Classify(err)
		classified.Attempts = attempt

		if attempt >= maxAttempts || !p.retryable(&classified) {
			return zero, &classified
		}

		delay := bo.NextBackOff()
		if p.Notify != nil {
			p.Notify(attempt, &classified, delay)
		}

		if err := wait(ctx, delay); err != nil {
			return zero, &classified
		}
	}
}
