package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/manifoldco/promptui"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/cv-ranker/internal/documents"
	"github.com/spigell/cv-ranker/internal/logger"
	"github.com/spigell/cv-ranker/internal/matching"
	"github.com/spigell/cv-ranker/internal/ranking"
	"github.com/spigell/cv-ranker/internal/retry"
)

const (
	PromptTop5  = "Show top 5"
	PromptTop10 = "Show top 10"
	PromptAll   = "Show all candidates"
	PromptJSON  = "Print ranking as JSON"
	PromptExit  = "Exit"

	outputTable = "table"
	outputJSON  = "json"
)

var errExit = errors.New("exit requested")

var viewPrompt = promptui.Select{
	Label: "Choose a view",
	Items: []string{PromptTop5, PromptTop10, PromptAll, PromptJSON, PromptExit},
}

var rankCmd = &cobra.Command{
	Use:   "rank --jd FILE CV...",
	Short: "Score CVs against a job description and print the ranking",
	Long: "Score every CV against the job description and print the candidates ordered by weighted score.\n" +
		"CV arguments may be files or directories with .txt and .md files.",
	Run: func(cmd *cobra.Command, args []string) {
		rank(cmd, args)
	},
}

func init() {
	rootCmd.AddCommand(rankCmd)

	rankCmd.Flags().String("jd", "", "file with the job description")
	rankCmd.Flags().String("request", "", "json file with a complete request (jd_text, cv_texts, filenames)")
	rankCmd.Flags().StringP("output", "o", outputTable, "output format: table or json")
	rankCmd.Flags().BoolP("yes", "y", false, "do not ask which view to show")
	rankCmd.Flags().String("sort-by", "", "overall, skills, responsibilities, job_title or experience")
	rankCmd.Flags().Float64("min-score", 0, "drop candidates below this weighted score (0-1)")
	rankCmd.Flags().Int("limit", 0, "show only the top candidates, 0 shows everyone")
	rankCmd.Flags().Int("chunk-size", 0, "candidates scored concurrently")
	rankCmd.Flags().Duration("chunk-delay", 0, "pause between chunks")
	rankCmd.Flags().String("metrics-textfile", "", "write prometheus metrics to this file when done")

	viper.BindPFlag("ranking.sort-by", rankCmd.Flags().Lookup("sort-by"))
	viper.BindPFlag("ranking.min-score", rankCmd.Flags().Lookup("min-score"))
	viper.BindPFlag("ranking.limit", rankCmd.Flags().Lookup("limit"))
	viper.BindPFlag("batch.chunk-size", rankCmd.Flags().Lookup("chunk-size"))
	viper.BindPFlag("batch.chunk-delay", rankCmd.Flags().Lookup("chunk-delay"))
	viper.BindPFlag("metrics.textfile", rankCmd.Flags().Lookup("metrics-textfile"))
}

// rank is the main command for the cli.
func rank(cmd *cobra.Command, args []string) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"), viper.GetString("log-output"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	logger.Info("starting the cv-ranker", zap.String("version", version))
	logger.Debug("starting with config", zap.Any("config", config))

	output, _ := cmd.Flags().GetString("output")
	if output != outputTable && output != outputJSON {
		logger.Fatal("invalid output format", zap.String("output", output))
	}

	req, err := loadRequest(cmd, args)
	if err != nil {
		logger.Fatal("loading documents", zap.Error(err))
	}

	results, err := score(ctx, config, req, logger)
	if err != nil {
		logger.Fatal("scoring candidates", zap.Error(err))
	}

	if len(results) == 0 {
		logger.Info("exiting", zap.String("reason", "no candidates to rank"))
		return
	}

	opts := ranking.Options{
		SortBy:   ranking.SortBy(config.Ranking.SortBy),
		MinScore: config.Ranking.MinScore,
		Limit:    config.Ranking.Limit,
	}
	weights := config.Ranking.Weights.vector()

	yes, _ := cmd.Flags().GetBool("yes")
	if yes || output == outputJSON || cmd.Flags().Changed("limit") {
		if err := show(results, weights, opts, output, logger); err != nil {
			logger.Fatal("ranking candidates", zap.Error(err))
		}
		return
	}

	for {
		_, action, err := viewPrompt.Run()
		if err != nil {
			logger.Fatal("exiting", zap.Error(err))
		}

		if err := handleAction(action, results, weights, opts, logger); err != nil {
			if errors.Is(err, errExit) {
				return
			}
			logger.Fatal("exiting", zap.Error(err))
		}
	}
}

func handleAction(action string, results []matching.MatchResult, weights ranking.WeightVector, opts ranking.Options, logger *zap.Logger) error {
	switch action {
	case PromptTop5:
		opts.Limit = 5
		return show(results, weights, opts, outputTable, logger)
	case PromptTop10:
		opts.Limit = 10
		return show(results, weights, opts, outputTable, logger)
	case PromptAll:
		opts.Limit = 0
		return show(results, weights, opts, outputTable, logger)
	case PromptJSON:
		return show(results, weights, opts, outputJSON, logger)
	case PromptExit:
		logger.Info("exiting", zap.String("reason", "got exit from prompt"))
		return errExit
	default:
		return fmt.Errorf("invalid action: %s", action)
	}
}

func show(results []matching.MatchResult, weights ranking.WeightVector, opts ranking.Options, output string, logger *zap.Logger) error {
	view, err := ranking.Aggregate(results, weights, opts)
	if err != nil {
		return err
	}
	view.LogSteps(logger)

	if output == outputJSON {
		return printJSON(os.Stdout, view)
	}
	return printTable(os.Stdout, view)
}

func loadRequest(cmd *cobra.Command, args []string) (*matching.AnalysisRequest, error) {
	requestFile, _ := cmd.Flags().GetString("request")
	if requestFile != "" {
		return documents.LoadRequest(requestFile)
	}

	jd, _ := cmd.Flags().GetString("jd")
	if jd == "" {
		return nil, errors.New("--jd or --request is required")
	}

	return documents.Load(jd, args)
}

// score runs the batch and writes the metrics textfile when one is configured.
func score(ctx context.Context, config *Config, req *matching.AnalysisRequest, logger *zap.Logger) ([]matching.MatchResult, error) {
	s, err := newScorer(ctx, config.Scorer, logger)
	if err != nil {
		return nil, fmt.Errorf("building scorer: %w", err)
	}

	registry := prometheus.NewRegistry()
	metrics, err := matching.NewMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("registering metrics: %w", err)
	}

	policy := retry.ScoringPolicy()
	policy.MaxAttempts = config.Scorer.MaxAttempts
	policy.Delay = config.Scorer.RetryDelay

	task := matching.NewTask(s, matching.TaskConfig{
		Timeout: config.Scorer.Timeout,
		Policy:  &policy,
	}, logger, metrics)

	orchestrator := matching.NewOrchestrator(task, matching.OrchestratorConfig{
		ChunkSize:  config.Batch.ChunkSize,
		ChunkDelay: config.Batch.ChunkDelay,
	}, logger, metrics)

	results, err := orchestrator.Run(ctx, req)
	if err != nil {
		return nil, err
	}

	if config.Metrics != nil && config.Metrics.Textfile != "" {
		if err := prometheus.WriteToTextfile(config.Metrics.Textfile, registry); err != nil {
			logger.Warn("writing metrics textfile", zap.String("path", config.Metrics.Textfile), zap.Error(err))
		} else {
			logger.Info("metrics written", zap.String("path", config.Metrics.Textfile))
		}
	}

	return results, nil
}

func (w *WeightsConfig) vector() ranking.WeightVector {
	if w == nil {
		return ranking.DefaultWeights
	}
	return ranking.FromPercent(w.Skills, w.Responsibilities, w.JobTitle, w.Experience)
}
