package cmd

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/cv-ranker/internal/logger"
	"github.com/spigell/cv-ranker/internal/scorer"
	"github.com/spigell/cv-ranker/internal/scorer/gemini"
	"github.com/spigell/cv-ranker/internal/scorer/remote"
	"github.com/spigell/cv-ranker/internal/secrets"
)

// newScorer builds the configured backend. It returns a nil Scorer for the none provider.
func newScorer(ctx context.Context, cfg *ScorerConfig, log *zap.Logger) (scorer.Scorer, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case providerNone:
		log.Info("remote scoring disabled, every candidate uses the fallback scorer")
		return nil, nil
	case providerHTTP:
		client, err := newRemoteClient(cfg, log)
		if err != nil {
			return nil, err
		}
		return client, nil
	case providerGemini:
		s, err := newGeminiScorer(ctx, cfg, log)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unsupported scorer provider: %s", cfg.Provider)
	}
}

func newRemoteClient(cfg *ScorerConfig, log *zap.Logger) (*remote.Client, error) {
	token, err := secrets.LoadOptional(secrets.Source{
		Name:  "scorer token",
		Value: cfg.Token,
		File:  cfg.TokenFile,
		Env:   "SCORER_TOKEN",
	})
	if err != nil {
		return nil, err
	}

	client, err := remote.New(cfg.URL, token, logger.WithScorer(log, providerHTTP, "", cfg.URL))
	if err != nil {
		return nil, err
	}
	if cfg.UserAgent != "" {
		client.UserAgent = cfg.UserAgent
	}
	if cfg.MaxLogLength > 0 {
		client.MaxLogLength = cfg.MaxLogLength
	}

	return client, nil
}

func newGeminiScorer(ctx context.Context, cfg *ScorerConfig, log *zap.Logger) (*gemini.Scorer, error) {
	gcfg := cfg.Gemini
	if gcfg == nil {
		gcfg = &GeminiConfig{}
	}

	apiKey, err := secrets.Load(secrets.Source{
		Name: "gemini api key",
		File: gcfg.APIKeyFile,
		Env:  "GEMINI_API_KEY",
	})
	if err != nil {
		return nil, fmt.Errorf("%w (set scorer.gemini.api-key-file or GEMINI_API_KEY)", err)
	}

	generator, err := gemini.NewGenerator(ctx, apiKey, gcfg.Model)
	if err != nil {
		return nil, err
	}

	scorerLogger := logger.WithScorer(log, providerGemini, generator.Model(), "")

	return gemini.NewScorer(generator, cfg.MaxLogLength, scorerLogger), nil
}
