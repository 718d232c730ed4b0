package matching

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spigell/cv-ranker/internal/utils"
)

const (
	DefaultChunkSize  = 6
	DefaultChunkDelay = 500 * time.Millisecond
)

// runner is the part of Task the orchestrator needs.
type runner interface {
	Run(ctx context.Context, index int, cvText, filename, jdText string) Outcome
}

// Orchestrator scores a whole request in sequential, paced chunks.
type Orchestrator struct {
	task       runner
	chunkSize  int
	chunkDelay time.Duration
	logger     *zap.Logger
	metrics    *Metrics

	// wait pauses between chunks.
	wait func(ctx context.Context, d time.Duration) error
}

// OrchestratorConfig tunes the batch pacing.
type OrchestratorConfig struct {
	// ChunkSize is the number of candidates scored concurrently. Non-positive means DefaultChunkSize.
	ChunkSize int
	// ChunkDelay is the pause between chunks. Zero disables pacing.
	ChunkDelay time.Duration
}

func DefaultOrchestratorConfig() OrchestratorConfig {
	return OrchestratorConfig{ChunkSize: DefaultChunkSize, ChunkDelay: DefaultChunkDelay}
}

func NewOrchestrator(task runner, cfg OrchestratorConfig, logger *zap.Logger, metrics *Metrics) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}

	size := cfg.ChunkSize
	if size <= 0 {
		size = DefaultChunkSize
	}

	delay := max(cfg.ChunkDelay, 0)

	return &Orchestrator{
		task:       task,
		chunkSize:  size,
		chunkDelay: delay,
		logger:     logger,
		metrics:    metrics,
		wait:       utils.WaitFor,
	}
}

// Chunks splits [0, n) into consecutive [start, end) ranges of at most size elements.
func Chunks(n, size int) [][2]int {
	if size <= 0 {
		size = DefaultChunkSize
	}
	chunks := make([][2]int, 0, (n+size-1)/size)
	for start := 0; start < n; start += size {
		chunks = append(chunks, [2]int{start, min(start+size, n)})
	}
	return chunks
}

// Run scores every candidate of req. The result has one entry per CV, in input order.
// It fails only for an invalid request. Once ctx is done the pauses are skipped and
// the remaining candidates are scored by the fallback.
func (o *Orchestrator) Run(ctx context.Context, req *AnalysisRequest) ([]MatchResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	n := len(req.CVTexts)
	results := make([]MatchResult, n)
	chunks := Chunks(n, o.chunkSize)

	logger := o.logger.With(zap.String("run_id", uuid.NewString()))
	logger.Info("starting batch",
		zap.Int("candidates", n),
		zap.Int("chunks", len(chunks)),
		zap.Int("chunk_size", o.chunkSize),
		zap.Duration("chunk_delay", o.chunkDelay),
	)

	fallbacks := 0
	for i, chunk := range chunks {
		if i > 0 && ctx.Err() == nil {
			if err := o.wait(ctx, o.chunkDelay); err != nil {
				logger.Warn("batch cancelled, remaining candidates use the fallback scorer", zap.Error(err))
			}
		}

		o.metrics.observeChunk()
		fallbacks += o.runChunk(ctx, req, chunk, results)

		logger.Debug("chunk completed",
			zap.Int("chunk", i+1),
			zap.Int("from", chunk[0]),
			zap.Int("to", chunk[1]),
		)
	}

	logger.Info("batch completed",
		zap.Int("candidates", n),
		zap.Int("remote", n-fallbacks),
		zap.Int("fallback", fallbacks),
	)

	return results, nil
}

// runChunk settles every task of the chunk and returns how many fell back.
// Each goroutine owns results[i], so the slice needs no lock.
func (o *Orchestrator) runChunk(ctx context.Context, req *AnalysisRequest, chunk [2]int, results []MatchResult) int {
	sources := make([]Source, chunk[1]-chunk[0])

	var g errgroup.Group
	g.SetLimit(o.chunkSize)

	for i := chunk[0]; i < chunk[1]; i++ {
		g.Go(func() error {
			outcome := o.task.Run(ctx, i, req.CVTexts[i], req.Filename(i), req.JDText)
			results[i] = outcome.Result
			sources[i-chunk[0]] = outcome.Source
			return nil
		})
	}

	// Tasks never return errors.
	_ = g.Wait()

	fallbacks := 0
	for _, s := range sources {
		if s == SourceFallback {
			fallbacks++
		}
	}
	return fallbacks
}
