package retry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedWaits struct {
	delays []time.Duration
}

func stubWait(t *testing.T) *recordedWaits {
	t.Helper()
	rec := &recordedWaits{}
	original := wait
	wait = func(ctx context.Context, d time.Duration) error {
		rec.delays = append(rec.delays, d)
		return ctx.Err()
	}
	t.Cleanup(func() { wait = original })
	return rec
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestClassify(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		kind      Kind
		status    int
		retryable bool
	}{
		{name: "server status", err: &StatusError{Code: 503}, kind: KindServer, status: 503, retryable: true},
		{name: "client status", err: &StatusError{Code: 404}, kind: KindClient, status: 404, retryable: false},
		{name: "wrapped client status", err: fmt.Errorf("match: %w", &StatusError{Code: 422}), kind: KindClient, status: 422, retryable: false},
		{name: "redirect status", err: &StatusError{Code: 302}, kind: KindUnknown, status: 302, retryable: true},
		{name: "deadline", err: context.DeadlineExceeded, kind: KindTimeout, retryable: true},
		{name: "net timeout", err: timeoutErr{}, kind: KindTimeout, retryable: true},
		{name: "connection refused", err: &url.Error{Op: "Post", URL: "http://scorer", Err: &net.OpError{Op: "dial", Err: errors.New("connection refused")}}, kind: KindNetwork, retryable: true},
		{name: "eof", err: io.ErrUnexpectedEOF, kind: KindNetwork, retryable: true},
		{name: "malformed", err: fmt.Errorf("decode: %w", ErrMalformedResponse), kind: KindMalformed, retryable: true},
		{name: "unknown", err: errors.New("boom"), kind: KindUnknown, retryable: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.err)
			require.NotNil(t, got)
			assert.Equal(t, tt.kind, got.Kind)
			assert.Equal(t, tt.status, got.Status)
			assert.Equal(t, tt.retryable, got.Retryable())
			assert.ErrorIs(t, got, tt.err)
		})
	}

	assert.Nil(t, Classify(nil))
}

func TestDoSucceedsAfterTransientFailure(t *testing.T) {
	waits := stubWait(t)

	calls := 0
	got, err := Do(context.Background(), Policy{MaxAttempts: 3, Delay: time.Second}, func(context.Context) (string, error) {
		calls++
		if calls == 1 {
			return "", &StatusError{Code: 502}
		}
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, 2, calls)
	assert.Equal(t, []time.Duration{time.Second}, waits.delays)
}

func TestDoFailsFastOnClientError(t *testing.T) {
	waits := stubWait(t)

	calls := 0
	_, err := Do(context.Background(), RequestPolicy(), func(context.Context) (int, error) {
		calls++
		return 0, &StatusError{Code: 400, Message: "bad payload"}
	})

	var classified *Error
	require.ErrorAs(t, err, &classified)
	assert.Equal(t, KindClient, classified.Kind)
	assert.Equal(t, 400, classified.Status)
	assert.Equal(t, 1, classified.Attempts)
	assert.Equal(t, 1, calls)
	assert.Empty(t, waits.delays)
}

func TestDoExponentialDelays(t *testing.T) {
	waits := stubWait(t)

	calls := 0
	policy := Policy{MaxAttempts: 4, Delay: 100 * time.Millisecond, Exponential: true}
	_, err := Do(context.Background(), policy, func(context.Context) (struct{}, error) {
		calls++
		return struct{}{}, &StatusError{Code: 500}
	})

	var classified *Error
	require.ErrorAs(t, err, &classified)
	assert.Equal(t, KindServer, classified.Kind)
	assert.Equal(t, 4, classified.Attempts)
	assert.Equal(t, 4, calls)
	assert.Equal(t, []time.Duration{
		100 * time.Millisecond,
		200 * time.Millisecond,
		400 * time.Millisecond,
	}, waits.delays)
}

func TestDoFixedDelays(t *testing.T) {
	waits := stubWait(t)

	notified := 0
	policy := ScoringPolicy()
	policy.Notify = func(attempt int, err *Error, delay time.Duration) {
		notified++
		assert.Equal(t, 1, attempt)
		assert.Equal(t, KindClient, err.Kind)
		assert.Equal(t, 2*time.Second, delay)
	}

	calls := 0
	_, err := Do(context.Background(), policy, func(context.Context) (int, error) {
		calls++
		return 0, &StatusError{Code: 400}
	})

	require.Error(t, err)
	assert.Equal(t, 2, calls, "scoring policy retries client errors too")
	assert.Equal(t, 1, notified)
	assert.Equal(t, []time.Duration{2 * time.Second}, waits.delays)
}

func TestDoStopsOnCancelledContext(t *testing.T) {
	stubWait(t)

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	_, err := Do(ctx, Policy{MaxAttempts: 5, Delay: time.Second}, func(context.Context) (int, error) {
		calls++
		cancel()
		return 0, errors.New("flaky")
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoZeroAttemptsRunsOnce(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), Policy{}, func(context.Context) (int, error) {
		calls++
		return 0, errors.New("nope")
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDelayFor(t *testing.T) {
	fixed := Policy{Delay: time.Second}
	assert.Equal(t, time.Second, fixed.DelayFor(3))

	exp := Policy{Delay: time.Second, Exponential: true}
	assert.Equal(t, time.Second, exp.DelayFor(1))
	assert.Equal(t, 2*time.Second, exp.DelayFor(2))
	assert.Equal(t, 4*time.Second, exp.DelayFor(3))
}

func TestBackOffSchedules(t *testing.T) {
	fixed := ScoringPolicy().BackOff()
	require.IsType(t, &backoff.ConstantBackOff{}, fixed)
	for i := 0; i < 3; i++ {
		assert.Equal(t, 2*time.Second, fixed.NextBackOff())
	}

	capped := Policy{Delay: time.Second, Exponential: true, MaxDelay: 3 * time.Second}.BackOff()
	require.IsType(t, &backoff.ExponentialBackOff{}, capped)
	var got []time.Duration
	for i := 0; i < 4; i++ {
		got = append(got, capped.NextBackOff())
	}
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 3 * time.Second, 3 * time.Second}, got)
}

func TestDoUsesFreshScheduleEachCall(t *testing.T) {
	waits := stubWait(t)

	policy := Policy{MaxAttempts: 3, Delay: 10 * time.Millisecond, Exponential: true}
	fail := func(context.Context) (int, error) { return 0, &StatusError{Code: 503} }

	_, err := Do(context.Background(), policy, fail)
	require.Error(t, err)
	_, err = Do(context.Background(), policy, fail)
	require.Error(t, err)

	assert.Equal(t, []time.Duration{
		10 * time.Millisecond, 20 * time.Millisecond,
		10 * time.Millisecond, 20 * time.Millisecond,
	}, waits.delays)
}
