package cmd

import (
	"errors"
	"io/fs"
	"log"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/spigell/cv-ranker/internal/logger"
	"github.com/spigell/cv-ranker/internal/matching"
	"github.com/spigell/cv-ranker/internal/retry"
	"github.com/spigell/cv-ranker/internal/scorer/remote"
)

const (
	app       = "cv-ranker"
	envPrefix = "CV_RANKER"

	providerHTTP   = "http"
	providerGemini = "gemini"
	providerNone   = "none"
)

type Config struct {
	Scorer  *ScorerConfig  `mapstructure:"scorer" validate:"required"`
	Batch   *BatchConfig   `mapstructure:"batch" validate:"required"`
	Ranking *RankingConfig `mapstructure:"ranking" validate:"required"`
	Metrics *MetricsConfig `mapstructure:"metrics"`
}

type ScorerConfig struct {
	Provider     string        `mapstructure:"provider" validate:"oneof=http gemini none"`
	URL          string        `mapstructure:"url" validate:"omitempty,url"`
	Token        string        `mapstructure:"token"`
	TokenFile    string        `mapstructure:"token-file"`
	UserAgent    string        `mapstructure:"user-agent"`
	Timeout      time.Duration `mapstructure:"timeout" validate:"gte=0"`
	MaxAttempts  int           `mapstructure:"max-attempts" validate:"gte=1,lte=10"`
	RetryDelay   time.Duration `mapstructure:"retry-delay" validate:"gte=0"`
	MaxLogLength int           `mapstructure:"max-log-length" validate:"gte=0"`
	Gemini       *GeminiConfig `mapstructure:"gemini"`
}

type GeminiConfig struct {
	APIKeyFile string `mapstructure:"api-key-file"`
	Model      string `mapstructure:"model"`
}

type BatchConfig struct {
	ChunkSize  int           `mapstructure:"chunk-size" validate:"gte=1"`
	ChunkDelay time.Duration `mapstructure:"chunk-delay" validate:"gte=0"`
}

// RankingConfig weights are percentages, as entered on a slider.
type RankingConfig struct {
	Weights  *WeightsConfig `mapstructure:"weights" validate:"required"`
	SortBy   string         `mapstructure:"sort-by" validate:"oneof=overall skills responsibilities job_title experience"`
	MinScore float64        `mapstructure:"min-score" validate:"gte=0,lte=1"`
	Limit    int            `mapstructure:"limit" validate:"gte=0"`
}

type WeightsConfig struct {
	Skills           float64 `mapstructure:"skills"`
	Responsibilities float64 `mapstructure:"responsibilities"`
	JobTitle         float64 `mapstructure:"job-title"`
	Experience       float64 `mapstructure:"experience"`
}

type MetricsConfig struct {
	Textfile string `mapstructure:"textfile"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "cv-ranker scores CVs against a job description and ranks the candidates",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is cv-ranker.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")
	rootCmd.PersistentFlags().String("log-output", logger.DefaultOutput, "where logs go: stderr, stdout or a file path")
	rootCmd.PersistentFlags().String("provider", "", "scorer backend: http, gemini or none")
	rootCmd.PersistentFlags().String("scorer-url", "", "base url of the http scoring service")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	viper.BindPFlag("log-output", rootCmd.PersistentFlags().Lookup("log-output"))
	viper.BindPFlag("scorer.provider", rootCmd.PersistentFlags().Lookup("provider"))
	viper.BindPFlag("scorer.url", rootCmd.PersistentFlags().Lookup("scorer-url"))

	setDefaults(viper.GetViper())
}

func setDefaults(v *viper.Viper) {
	scoring := retry.ScoringPolicy()

	v.SetDefault("scorer.provider", providerHTTP)
	v.SetDefault("scorer.url", "http://localhost:8000")
	v.SetDefault("scorer.token", "")
	v.SetDefault("scorer.token-file", "")
	v.SetDefault("scorer.user-agent", "")
	v.SetDefault("scorer.timeout", matching.DefaultTimeout)
	v.SetDefault("scorer.max-attempts", scoring.MaxAttempts)
	v.SetDefault("scorer.retry-delay", scoring.Delay)
	v.SetDefault("scorer.max-log-length", remote.DefaultMaxLogLength)
	v.SetDefault("scorer.gemini.api-key-file", "")
	v.SetDefault("scorer.gemini.model", "")

	v.SetDefault("batch.chunk-size", matching.DefaultChunkSize)
	v.SetDefault("batch.chunk-delay", matching.DefaultChunkDelay)

	v.SetDefault("ranking.weights.skills", 80)
	v.SetDefault("ranking.weights.responsibilities", 15)
	v.SetDefault("ranking.weights.job-title", 2.5)
	v.SetDefault("ranking.weights.experience", 2.5)
	v.SetDefault("ranking.sort-by", "overall")
	v.SetDefault("ranking.min-score", 0)
	v.SetDefault("ranking.limit", 0)

	v.SetDefault("metrics.textfile", "")
}

func initConfig() {
	// A missing .env is fine, a broken one is not.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Fatalf("loading .env: %v", err)
	}

	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app)
		viper.SetConfigType("yaml")
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		// The config file is optional unless it was named explicitly.
		if cfgFile != "" || !errors.As(err, &notFound) {
			log.Fatal(err)
		}
	}
}

func getConfig() (*Config, error) {
	return decodeConfig(viper.GetViper())
}

func decodeConfig(v *viper.Viper) (*Config, error) {
	var config *Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}
	if config == nil {
		return nil, errors.New("config is empty")
	}

	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(config); err != nil {
		return nil, err
	}

	if config.Scorer.Provider == providerHTTP && strings.TrimSpace(config.Scorer.URL) == "" {
		return nil, errors.New("scorer.url is required for the http provider")
	}

	return config, nil
}
