package remote

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spigell/cv-ranker/internal/retry"
	"github.com/spigell/cv-ranker/internal/scorer"
)

const matchBody = `{
  "cv_id": "cv-7",
  "match_result": {
    "overall_score": 0.8,
    "breakdown": {"skills_score": 0.9, "experience_score": 0.7, "responsibility_score": 0.6, "title_score": 0.5}
  },
  "cv_standardized_data": {"name": "Jane Doe"}
}`

func newTestClient(t *testing.T, srv *httptest.Server, token string) *Client {
	t.Helper()
	c, err := New(srv.URL+"/", token, zap.NewNop())
	require.NoError(t, err)
	c.HealthPolicy = retry.Policy{MaxAttempts: 3, Delay: time.Millisecond, Exponential: true}
	return c
}

func TestScore(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/match", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req scorer.Request
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "jd", req.JDText)
		assert.Equal(t, "cv", req.CVText)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(matchBody))
	}))
	defer srv.Close()

	c := newTestClient(t, srv, "secret")
	resp, err := c.Score(context.Background(), scorer.Request{JDText: "jd", CVText: "cv"})

	require.NoError(t, err)
	assert.Equal(t, "cv-7", resp.CVID)
	assert.InDelta(t, 0.8, resp.MatchResult.OverallScore, 1e-9)
	assert.InDelta(t, 0.5, resp.MatchResult.Breakdown.TitleScore, 1e-9)
	assert.Equal(t, "Jane Doe", resp.CVStandardized["name"])
}

func TestScoreGzipBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "gzip", r.Header.Get("Accept-Encoding"))
		w.Header().Set("Content-Encoding", "gzip")
		gz := gzip.NewWriter(w)
		_, _ = gz.Write([]byte(matchBody))
		_ = gz.Close()
	}))
	defer srv.Close()

	c := newTestClient(t, srv, "")
	resp, err := c.Score(context.Background(), scorer.Request{JDText: "jd", CVText: "cv"})

	require.NoError(t, err)
	assert.Equal(t, "cv-7", resp.CVID)
}

func TestScoreStatusErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		kind   retry.Kind
	}{
		{name: "server", status: http.StatusBadGateway, kind: retry.KindServer},
		{name: "client", status: http.StatusUnprocessableEntity, kind: retry.KindClient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				http.Error(w, "nope", tt.status)
			}))
			defer srv.Close()

			c := newTestClient(t, srv, "")
			_, err := c.Score(context.Background(), scorer.Request{JDText: "jd", CVText: "cv"})

			require.Error(t, err)
			classified := retry.Classify(err)
			assert.Equal(t, tt.kind, classified.Kind)
			assert.Equal(t, tt.status, classified.Status)
		})
	}
}

func TestScoreMalformedResponses(t *testing.T) {
	bodies := map[string]string{
		"not json":          `<html>oops</html>`,
		"missing breakdown": `{"cv_id": "1", "match_result": {"overall_score": 0.4}}`,
	}

	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(body))
			}))
			defer srv.Close()

			c := newTestClient(t, srv, "")
			_, err := c.Score(context.Background(), scorer.Request{JDText: "jd", CVText: "cv"})

			assert.ErrorIs(t, err, retry.ErrMalformedResponse)
		})
	}
}

func TestScoreRespectsContextDeadline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer srv.Close()

	c := newTestClient(t, srv, "")
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := c.Score(ctx, scorer.Request{JDText: "jd", CVText: "cv"})

	require.Error(t, err)
	assert.Equal(t, retry.KindTimeout, retry.Classify(err).Kind)
}

func TestHealthRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := newTestClient(t, srv, "")
	require.NoError(t, c.Health(context.Background()))
	assert.Equal(t, int32(3), calls.Load())
}

func TestHealthFailsFastOnClientError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := newTestClient(t, srv, "")
	err := c.Health(context.Background())

	var classified *retry.Error
	require.ErrorAs(t, err, &classified)
	assert.Equal(t, retry.KindClient, classified.Kind)
	assert.Equal(t, int32(1), calls.Load())
}

func TestNewRequiresURL(t *testing.T) {
	_, err := New("  ", "", nil)
	assert.Error(t, err)
}
