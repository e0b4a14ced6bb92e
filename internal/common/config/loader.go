// internal/common/config/loader.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	OrderByRankScore       = "rank_score"
	OrderByHealthAscending = "health_ascending"

	UnmappedLenient = "lenient"
	UnmappedStrict  = "strict"

	SelectionFirst  = "first"
	SelectionRandom = "random"

	BackendLocal  = "local"
	BackendRemote = "remote"
)

// Load reads configs/config.yaml, merges config.<APP_ENVIRONMENT>.yaml on top
// and applies environment overrides.
func Load() (*Config, error) {
	loadEnvFile()

	v := newViper()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath("../../configs")
	v.AddConfigPath(".")

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	v.SetConfigName(fmt.Sprintf("config.%s", env))
	_ = v.MergeInConfig() // environment overlay is optional

	return finish(v)
}

// LoadFromFile loads configuration from a specific file path
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile()

	v := newViper()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return finish(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return v
}

func finish(v *viper.Viper) (*Config, error) {
	expandEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	overrideEmptyConfig(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// loadEnvFile loads the first .env found walking up towards the module root.
func loadEnvFile() {
	possiblePaths := []string{
		".env",
		"../.env",
		"../../.env",
		"../../../.env",
	}

	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				// stdout carries ranking output for the CLI
				fmt.Fprintf(os.Stderr, "loaded .env from: %s\n", path)
				return
			}
		}
	}
}

// Find project root by looking for go.mod
func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}

func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		strVal, ok := v.Get(key).(string)
		if !ok {
			continue
		}
		if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
			expanded := os.ExpandEnv(strVal)
			if expanded != strVal && expanded != "" {
				v.Set(key, expanded)
			}
		}
	}
}

// Direct override if secrets are still empty after expansion
func overrideEmptyConfig(cfg *Config) {
	if cfg.Database.Postgres.User == "" {
		if val := os.Getenv("DB_USER"); val != "" {
			cfg.Database.Postgres.User = val
		}
	}
	if cfg.Database.Postgres.Password == "" {
		if val := os.Getenv("DB_PASSWORD"); val != "" {
			cfg.Database.Postgres.Password = val
		}
	}
	if cfg.Database.Redis.Password == "" {
		if val := os.Getenv("REDIS_PASSWORD"); val != "" {
			cfg.Database.Redis.Password = val
		}
	}
	if cfg.Database.Elasticsearch.Password == "" {
		if val := os.Getenv("ES_PASSWORD"); val != "" {
			cfg.Database.Elasticsearch.Password = val
		}
	}
}

// DefaultStatusScores is the status vocabulary the shipped models were trained on.
func DefaultStatusScores() StatusScoresConfig {
	return StatusScoresConfig{
		Connectivity: []StatusScore{
			{Status: "Connected", Score: 1},
			{Status: "NeedsAttention", Score: 0.5},
			{Status: "NotRecentlyConnected", Score: 0},
		},
		Update: []StatusScore{
			{Status: "UptoDate", Score: 1},
			{Status: "UpdateAvailable", Score: 0.5},
			{Status: "NeedsAttention", Score: 0.5},
			{Status: "Unknown", Score: 0},
			{Status: "UpdateInProgress", Score: 0.5},
		},
		Alerts: []StatusScore{
			{Status: "NoAlerts", Score: 1},
			{Status: "NeedsAttention", Score: 0.5},
		},
		Security: []StatusScore{
			{Status: "Compliant", Score: 1},
			{Status: "NonCompliant", Score: 0.5},
		},
	}
}

// DefaultRecommendationRules is the fallback rule table.
func DefaultRecommendationRules() []RecommendationRule {
	return []RecommendationRule{
		{
			Dimension: "Connectivity",
			Statuses:  []string{"NotRecentlyConnected", "NeedsAttention"},
			Actions:   []string{"Check site network/firewall", "Verify DNS resolution", "Inspect router/switch logs"},
		},
		{
			Dimension: "Update",
			Statuses:  []string{"NeedsAttention", "UpdateInProgress", "UpdateAvailable"},
			Actions:   []string{"Check for recent update availability", "Verify if update download failed", "Check permissions for update installation"},
		},
		{
			Dimension: "Alerts",
			Statuses:  []string{"NeedsAttention"},
			Actions:   []string{"Review alert logs for recurring issues", "Classify alerts by severity", "Escalate high-priority alerts"},
		},
		{
			Dimension: "Security",
			Statuses:  []string{"NonCompliant"},
			Actions:   []string{"Check patch compliance", "Validate access control policies", "Run vulnerability scan"},
		},
	}
}

// applyDefaults sets default values for optional configuration fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "sitesight"
	}

	// Camunda defaults
	if cfg.Camunda.MaxJobsActive == 0 {
		cfg.Camunda.MaxJobsActive = 10
	}
	if cfg.Camunda.Timeout == 0 {
		cfg.Camunda.Timeout = 30000
	}
	if cfg.Camunda.RequestTimeout == 0 {
		cfg.Camunda.RequestTimeout = 30000
	}

	// Database defaults
	if cfg.Database.Postgres.Port == 0 {
		cfg.Database.Postgres.Port = 5432
	}
	if cfg.Database.Postgres.MaxConnections == 0 {
		cfg.Database.Postgres.MaxConnections = 10
	}
	if cfg.Database.Postgres.MaxIdle == 0 {
		cfg.Database.Postgres.MaxIdle = 2
	}
	if cfg.Database.Postgres.SSLMode == "" {
		cfg.Database.Postgres.SSLMode = "disable"
	}
	if cfg.Database.Elasticsearch.URL == "" && len(cfg.Database.Elasticsearch.Addresses) > 0 {
		cfg.Database.Elasticsearch.URL = cfg.Database.Elasticsearch.Addresses[0]
	}
	if len(cfg.Database.Elasticsearch.Addresses) == 0 && cfg.Database.Elasticsearch.URL != "" {
		cfg.Database.Elasticsearch.Addresses = []string{cfg.Database.Elasticsearch.URL}
	}

	// Model defaults
	if cfg.Models.Backend == "" {
		cfg.Models.Backend = BackendLocal
	}
	if cfg.Models.Timeout == 0 {
		cfg.Models.Timeout = 5000
	}

	// Scoring defaults
	if cfg.Scoring.UnmappedStatus == "" {
		cfg.Scoring.UnmappedStatus = UnmappedLenient
	}
	if cfg.Scoring.Weights.IsZero() {
		cfg.Scoring.Weights = DimensionWeights{Connectivity: 0.3, Update: 0.3, Alerts: 0.2, Security: 0.2}
	}
	defaults := DefaultStatusScores()
	if len(cfg.Scoring.StatusScores.Connectivity) == 0 {
		cfg.Scoring.StatusScores.Connectivity = defaults.Connectivity
	}
	if len(cfg.Scoring.StatusScores.Update) == 0 {
		cfg.Scoring.StatusScores.Update = defaults.Update
	}
	if len(cfg.Scoring.StatusScores.Alerts) == 0 {
		cfg.Scoring.StatusScores.Alerts = defaults.Alerts
	}
	if len(cfg.Scoring.StatusScores.Security) == 0 {
		cfg.Scoring.StatusScores.Security = defaults.Security
	}

	if cfg.Ranking.OrderBy == "" {
		cfg.Ranking.OrderBy = OrderByRankScore
	}

	// Recommendation defaults
	if cfg.Recommendation.Selection == "" {
		cfg.Recommendation.Selection = SelectionFirst
	}
	if cfg.Recommendation.MaxFallback == 0 {
		cfg.Recommendation.MaxFallback = 3
	}
	if cfg.Recommendation.NoAction == "" {
		cfg.Recommendation.NoAction = "No action required"
	}
	if len(cfg.Recommendation.Rules) == 0 {
		cfg.Recommendation.Rules = DefaultRecommendationRules()
	}

	// Sink defaults
	if cfg.Sinks.File.Path == "" {
		cfg.Sinks.File.Path = "data/ranked_sites.json"
	}
	if cfg.Sinks.Postgres.Table == "" {
		cfg.Sinks.Postgres.Table = "site_rankings"
	}
	if cfg.Sinks.Redis.KeyPrefix == "" {
		cfg.Sinks.Redis.KeyPrefix = "sitesight:rankings"
	}
	if cfg.Sinks.Redis.RunTTL == 0 {
		cfg.Sinks.Redis.RunTTL = 86400
	}
	if cfg.Sinks.Elasticsearch.Index == "" {
		cfg.Sinks.Elasticsearch.Index = "site-rankings"
	}
	if cfg.Sinks.Notify.MinLabel == 0 {
		cfg.Sinks.Notify.MinLabel = 3
	}

	// Logging defaults
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stderr"
	}

	if cfg.Observability.ListenAddress == "" {
		cfg.Observability.ListenAddress = ":8080"
	}

	// Worker defaults
	for key, worker := range cfg.Workers {
		if worker.MaxJobsActive == 0 {
			worker.MaxJobsActive = 5
		}
		if worker.Timeout == 0 {
			worker.Timeout = 30000
		}
		if worker.MaxRetries == 0 {
			worker.MaxRetries = 3
		}
		cfg.Workers[key] = worker
	}
}

// validateConfig validates enumerations and the settings each enabled
// component needs. Score tables are checked where they are built.
func validateConfig(cfg *Config) error {
	switch cfg.Scoring.UnmappedStatus {
	case UnmappedLenient, UnmappedStrict:
	default:
		return fmt.Errorf("scoring.unmapped_status must be %q or %q, got %q", UnmappedLenient, UnmappedStrict, cfg.Scoring.UnmappedStatus)
	}

	switch cfg.Ranking.OrderBy {
	case OrderByRankScore, OrderByHealthAscending:
	default:
		return fmt.Errorf("ranking.order_by must be %q or %q, got %q", OrderByRankScore, OrderByHealthAscending, cfg.Ranking.OrderBy)
	}

	switch cfg.Recommendation.Selection {
	case SelectionFirst, SelectionRandom:
	default:
		return fmt.Errorf("recommendation.selection must be %q or %q, got %q", SelectionFirst, SelectionRandom, cfg.Recommendation.Selection)
	}
	if cfg.Recommendation.MaxFallback < 1 {
		return fmt.Errorf("recommendation.max_fallback must be positive")
	}

	switch cfg.Models.Backend {
	case BackendLocal:
		if cfg.Models.Ranking.ModelPath == "" {
			return fmt.Errorf("models.ranking.model_path is required")
		}
		if cfg.Models.Recommendation.Enabled && cfg.Models.Recommendation.ModelPath == "" {
			return fmt.Errorf("models.recommendation.model_path is required when the recommendation model is enabled")
		}
	case BackendRemote:
		if cfg.Models.Ranking.Endpoint == "" {
			return fmt.Errorf("models.ranking.endpoint is required")
		}
		if cfg.Models.Recommendation.Enabled && cfg.Models.Recommendation.Endpoint == "" {
			return fmt.Errorf("models.recommendation.endpoint is required when the recommendation model is enabled")
		}
	default:
		return fmt.Errorf("models.backend must be %q or %q, got %q", BackendLocal, BackendRemote, cfg.Models.Backend)
	}
	if cfg.Models.Ranking.SchemaPath == "" {
		return fmt.Errorf("models.ranking.schema_path is required")
	}
	if cfg.Models.Recommendation.Enabled && cfg.Models.Recommendation.SchemaPath == "" {
		return fmt.Errorf("models.recommendation.schema_path is required when the recommendation model is enabled")
	}

	if cfg.Sinks.Postgres.Enabled {
		if cfg.Database.Postgres.Host == "" || cfg.Database.Postgres.Database == "" || cfg.Database.Postgres.User == "" {
			return fmt.Errorf("database.postgres host, database and user are required when the postgres sink is enabled")
		}
	}
	if cfg.Sinks.Redis.Enabled && cfg.Database.Redis.Address == "" {
		return fmt.Errorf("database.redis.address is required when the redis sink is enabled")
	}
	if cfg.Sinks.Elasticsearch.Enabled && len(cfg.Database.Elasticsearch.Addresses) == 0 {
		return fmt.Errorf("database.elasticsearch.addresses or url is required when the elasticsearch sink is enabled")
	}
	if cfg.Sinks.Kafka.Enabled && (len(cfg.Kafka.Brokers) == 0 || cfg.Kafka.Topic == "") {
		return fmt.Errorf("kafka.brokers and kafka.topic are required when the kafka sink is enabled")
	}
	if cfg.Sinks.Notify.Enabled {
		aws := cfg.Integrations.AWS
		if aws.Region == "" {
			return fmt.Errorf("integrations.aws.region is required when the notify sink is enabled")
		}
		if !aws.SNS.Enabled && !aws.SES.Enabled {
			return fmt.Errorf("notify sink needs integrations.aws.sns or integrations.aws.ses enabled")
		}
		if aws.SNS.Enabled && aws.SNS.TopicARN == "" {
			return fmt.Errorf("integrations.aws.sns.topic_arn is required")
		}
		if aws.SES.Enabled && (aws.SES.FromEmail == "" || len(aws.SES.To) == 0) {
			return fmt.Errorf("integrations.aws.ses.from_email and to are required")
		}
	}

	return nil
}

// GetDuration converts milliseconds from config to time.Duration
func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}

// GetWorkerConfig retrieves worker-specific configuration with fallback to defaults
func GetWorkerConfig(cfg *Config, workerName string) WorkerConfig {
	if worker, exists := cfg.Workers[workerName]; exists {
		return worker
	}

	return WorkerConfig{
		Enabled:       true,
		MaxJobsActive: 5,
		Timeout:       30000,
		MaxRetries:    3,
	}
}

// IsWorkerEnabled checks if a specific worker is enabled
func IsWorkerEnabled(cfg *Config, workerName string) bool {
	if worker, exists := cfg.Workers[workerName]; exists {
		return worker.Enabled
	}
	return true
}
