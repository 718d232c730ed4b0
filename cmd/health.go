package cmd

import (
	"context"
	"log"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/cv-ranker/internal/logger"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check that the http scoring service answers",
	Run: func(cmd *cobra.Command, _ []string) {
		health(cmd)
	},
}

func init() {
	rootCmd.AddCommand(healthCmd)

	healthCmd.Flags().Duration("timeout", 30*time.Second, "overall deadline for the check, retries included")
}

func health(cmd *cobra.Command) {
	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"), viper.GetString("log-output"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	if config.Scorer.Provider != providerHTTP {
		logger.Fatal("health check needs the http provider", zap.String("provider", config.Scorer.Provider))
	}

	client, err := newRemoteClient(config.Scorer, logger)
	if err != nil {
		logger.Fatal("building scorer client", zap.Error(err))
	}

	timeout, _ := cmd.Flags().GetDuration("timeout")
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	started := time.Now()
	if err := client.Health(ctx); err != nil {
		logger.Fatal("scorer is unhealthy", zap.String("url", config.Scorer.URL), zap.Error(err))
	}

	logger.Info("scorer is healthy", zap.String("url", config.Scorer.URL), zap.Duration("took", time.Since(started)))
}
