// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App            AppConfig               `mapstructure:"app"`
	Camunda        CamundaConfig           `mapstructure:"camunda"`
	Database       DatabaseConfig          `mapstructure:"database"`
	Kafka          KafkaConfig             `mapstructure:"kafka"`
	Integrations   IntegrationConfig       `mapstructure:"integrations"`
	Workers        map[string]WorkerConfig `mapstructure:"workers"`
	Models         ModelsConfig            `mapstructure:"models"`
	Scoring        ScoringConfig           `mapstructure:"scoring"`
	Ranking        RankingConfig           `mapstructure:"ranking"`
	Recommendation RecommendationConfig    `mapstructure:"recommendation"`
	Source         SourceConfig            `mapstructure:"source"`
	Sinks          SinksConfig             `mapstructure:"sinks"`
	Logging        LoggingConfig           `mapstructure:"logging"`
	Observability  ObservabilityConfig     `mapstructure:"observability"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type CamundaConfig struct {
	BrokerAddress  string `mapstructure:"broker_address"`
	MaxJobsActive  int    `mapstructure:"max_jobs_active"`
	Timeout        int    `mapstructure:"timeout"`         // milliseconds
	RequestTimeout int    `mapstructure:"request_timeout"` // milliseconds
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type ElasticsearchConfig struct {
	Addresses []string `mapstructure:"addresses"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
	URL       string   `mapstructure:"url"` // Single URL for backwards compatibility
}

// GetURL returns the first address or the URL field
func (e ElasticsearchConfig) GetURL() string {
	if e.URL != "" {
		return e.URL
	}
	if len(e.Addresses) > 0 {
		return e.Addresses[0]
	}
	return ""
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

// IntegrationConfig holds AWS notification settings for the critical-site digest.
type IntegrationConfig struct {
	AWS struct {
		Region string `mapstructure:"region"`
		SES    struct {
			Enabled   bool     `mapstructure:"enabled"`
			FromEmail string   `mapstructure:"from_email"`
			To        []string `mapstructure:"to"`
		} `mapstructure:"ses"`
		SNS struct {
			Enabled  bool   `mapstructure:"enabled"`
			TopicARN string `mapstructure:"topic_arn"`
		} `mapstructure:"sns"`
	} `mapstructure:"aws"`
}

// WorkerConfig holds the core settings applicable to every worker.
type WorkerConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxJobsActive int  `mapstructure:"max_jobs_active"`
	Timeout       int  `mapstructure:"timeout"`     // milliseconds
	MaxRetries    int  `mapstructure:"max_retries"` // For error handling
}

// --- Pipeline Configuration ---

// ModelsConfig points at the trained artifacts. Backend "local" reads JSON
// exports from disk; "remote" calls an inference endpoint per model.
type ModelsConfig struct {
	Backend        string              `mapstructure:"backend"`
	Ranking        ModelArtifactConfig `mapstructure:"ranking"`
	Recommendation ModelArtifactConfig `mapstructure:"recommendation"`
	Timeout        int                 `mapstructure:"timeout"` // milliseconds, remote only
}

type ModelArtifactConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	ModelPath  string `mapstructure:"model_path"`
	SchemaPath string `mapstructure:"schema_path"`
	Endpoint   string `mapstructure:"endpoint"`
}

// StatusScore is one entry of a status score table. Tables are lists because
// viper lower-cases map keys and status strings are case sensitive.
type StatusScore struct {
	Status string  `mapstructure:"status"`
	Score  float64 `mapstructure:"score"`
}

type DimensionWeights struct {
	Connectivity float64 `mapstructure:"connectivity"`
	Update       float64 `mapstructure:"update"`
	Alerts       float64 `mapstructure:"alerts"`
	Security     float64 `mapstructure:"security"`
}

// IsZero reports whether no weight was configured.
func (w DimensionWeights) IsZero() bool {
	return w.Connectivity == 0 && w.Update == 0 && w.Alerts == 0 && w.Security == 0
}

type StatusScoresConfig struct {
	Connectivity []StatusScore `mapstructure:"connectivity"`
	Update       []StatusScore `mapstructure:"update"`
	Alerts       []StatusScore `mapstructure:"alerts"`
	Security     []StatusScore `mapstructure:"security"`
}

type ScoringConfig struct {
	UnmappedStatus string             `mapstructure:"unmapped_status"` // lenient | strict
	Weights        DimensionWeights   `mapstructure:"weights"`
	StatusScores   StatusScoresConfig `mapstructure:"status_scores"`
}

type RankingConfig struct {
	OrderBy string `mapstructure:"order_by"` // rank_score | health_ascending
}

type RecommendationRule struct {
	Dimension string   `mapstructure:"dimension"`
	Statuses  []string `mapstructure:"statuses"`
	Actions   []string `mapstructure:"actions"`
}

type RecommendationConfig struct {
	Selection   string               `mapstructure:"selection"` // first | random
	Seed        int64                `mapstructure:"seed"`
	MaxFallback int                  `mapstructure:"max_fallback"`
	NoAction    string               `mapstructure:"no_action"`
	Rules       []RecommendationRule `mapstructure:"rules"`
}

type SourceConfig struct {
	SitesPath string `mapstructure:"sites_path"`
}

type SinksConfig struct {
	File struct {
		Enabled bool   `mapstructure:"enabled"`
		Path    string `mapstructure:"path"`
	} `mapstructure:"file"`
	Postgres struct {
		Enabled bool   `mapstructure:"enabled"`
		Table   string `mapstructure:"table"`
	} `mapstructure:"postgres"`
	Redis struct {
		Enabled   bool   `mapstructure:"enabled"`
		KeyPrefix string `mapstructure:"key_prefix"`
		RunTTL    int    `mapstructure:"run_ttl"` // seconds
	} `mapstructure:"redis"`
	Elasticsearch struct {
		Enabled bool   `mapstructure:"enabled"`
		Index   string `mapstructure:"index"`
	} `mapstructure:"elasticsearch"`
	Kafka struct {
		Enabled bool `mapstructure:"enabled"`
	} `mapstructure:"kafka"`
	Notify struct {
		Enabled  bool `mapstructure:"enabled"`
		MinLabel int  `mapstructure:"min_label"`
	} `mapstructure:"notify"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

type ObservabilityConfig struct {
	ListenAddress  string `mapstructure:"listen_address"`
	JaegerEndpoint string `mapstructure:"jaeger_endpoint"`
}
