package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

var singleConfig *Config = nil

type Config struct {
	Database   *dbConfig
	Service    *svcConfig
	Pipeline   *pipelineConfig
	Queue      *queueConfig
	Analysis   *analysisConfig
	Extraction *extractionConfig
	Inventory  *inventoryConfig
	S3         *s3Config
	Redis      *redisConfig
}

type dbConfig struct {
	Type     string `envconfig:"DB_TYPE" default:"pgsql"`
	Hostname string `envconfig:"DB_HOST" default:"localhost"`
	Port     string `envconfig:"DB_PORT" default:"5432"`
	Name     string `envconfig:"DB_NAME" default:"intake"`
	User     string `envconfig:"DB_USER" default:"admin"`
	Password string `envconfig:"DB_PASS" default:"adminpass"`
}

type svcConfig struct {
	Address         string   `envconfig:"INTAKE_ADDRESS" default:":3443"`
	MetricsAddress  string   `envconfig:"INTAKE_METRICS_ADDRESS" default:":8080"`
	LogLevel        string   `envconfig:"INTAKE_LOG_LEVEL" default:"info"`
	MigrationFolder string   `envconfig:"INTAKE_MIGRATIONS_FOLDER" default:""`
	AllowedOrigins  []string `envconfig:"INTAKE_ALLOWED_ORIGINS" default:"*"`
}

type pipelineConfig struct {
	Workers           int           `envconfig:"INTAKE_PIPELINE_WORKERS" default:"4"`
	PollInterval      time.Duration `envconfig:"INTAKE_PIPELINE_POLL_INTERVAL" default:"5s"`
	BatchSize         int           `envconfig:"INTAKE_PIPELINE_BATCH_SIZE" default:"50"`
	ExtractionTimeout time.Duration `envconfig:"INTAKE_EXTRACTION_TIMEOUT" default:"60s"`
	MaxAttempts       int           `envconfig:"INTAKE_PIPELINE_MAX_ATTEMPTS" default:"3"`
	BaseDelay         time.Duration `envconfig:"INTAKE_PIPELINE_RETRY_BASE_DELAY" default:"30s"`
	MaxDelay          time.Duration `envconfig:"INTAKE_PIPELINE_RETRY_MAX_DELAY" default:"15m"`
	StaleAfter        time.Duration `envconfig:"INTAKE_PIPELINE_STALE_AFTER" default:"10m"`
}

type queueConfig struct {
	DefaultLimit          int      `envconfig:"INTAKE_QUEUE_DEFAULT_LIMIT" default:"20"`
	MaxLimit              int      `envconfig:"INTAKE_QUEUE_MAX_LIMIT" default:"100"`
	ScanLimit             int      `envconfig:"INTAKE_QUEUE_SCAN_LIMIT" default:"1000"`
	DefaultBaseConfidence float64  `envconfig:"INTAKE_QUEUE_DEFAULT_BASE_CONFIDENCE" default:"75"`
	Categories            []string `envconfig:"INTAKE_CATEGORIES" default:"electronics,apparel,food,home,beauty,toys,sports,automotive,books,other"`
}

type analysisConfig struct {
	Window          time.Duration `envconfig:"INTAKE_ANALYSIS_WINDOW" default:"720h"`
	MinSampleSize   int           `envconfig:"INTAKE_ANALYSIS_MIN_SAMPLE_SIZE" default:"10"`
	MinErrorRate    float64       `envconfig:"INTAKE_ANALYSIS_MIN_ERROR_RATE" default:"0.1"`
	MinErrorCount   int           `envconfig:"INTAKE_ANALYSIS_MIN_ERROR_COUNT" default:"3"`
	SampleErrors    int           `envconfig:"INTAKE_ANALYSIS_SAMPLE_ERRORS" default:"5"`
	SnapshotTTL     time.Duration `envconfig:"INTAKE_ANALYSIS_SNAPSHOT_TTL" default:"15m"`
	RefreshInterval time.Duration `envconfig:"INTAKE_ANALYSIS_REFRESH_INTERVAL" default:"1h"`
}

type extractionConfig struct {
	URL   string `envconfig:"INTAKE_EXTRACTION_URL" default:""`
	Token string `envconfig:"INTAKE_EXTRACTION_TOKEN" default:""`
}

type inventoryConfig struct {
	URL     string        `envconfig:"INTAKE_INVENTORY_URL" default:""`
	Token   string        `envconfig:"INTAKE_INVENTORY_TOKEN" default:""`
	Timeout time.Duration `envconfig:"INTAKE_INVENTORY_TIMEOUT" default:"30s"`
}

type s3Config struct {
	Endpoint  string `envconfig:"INTAKE_S3_ENDPOINT" default:""`
	Bucket    string `envconfig:"INTAKE_S3_BUCKET" default:"intake-media"`
	AccessKey string `envconfig:"INTAKE_S3_ACCESS_KEY" default:""`
	SecretKey string `envconfig:"INTAKE_S3_SECRET_KEY" default:""`
	UseSSL    bool   `envconfig:"INTAKE_S3_USE_SSL" default:"true"`
}

type redisConfig struct {
	URL string `envconfig:"INTAKE_REDIS_URL" default:""`
}

func New() (*Config, error) {
	if singleConfig == nil {
		singleConfig = new(Config)
		if err := envconfig.Process("", singleConfig); err != nil {
			return nil, err
		}
	}
	return singleConfig, nil
}

// NewDefault returns the default configuration backed by a local sqlite file. It does not read the environment.
func NewDefault() *Config {
	return &Config{
		Database: &dbConfig{
			Type: "sqlite",
			Name: "intake.db",
		},
		Service: &svcConfig{
			Address:        ":3443",
			MetricsAddress: ":8080",
			LogLevel:       "info",
			AllowedOrigins: []string{"*"},
		},
		Pipeline: &pipelineConfig{
			Workers:           4,
			PollInterval:      5 * time.Second,
			BatchSize:         50,
			ExtractionTimeout: 60 * time.Second,
			MaxAttempts:       3,
			BaseDelay:         30 * time.Second,
			MaxDelay:          15 * time.Minute,
			StaleAfter:        10 * time.Minute,
		},
		Queue: &queueConfig{
			DefaultLimit:          20,
			MaxLimit:              100,
			ScanLimit:             1000,
			DefaultBaseConfidence: 75,
			Categories:            []string{"electronics", "apparel", "food", "home", "beauty", "toys", "sports", "automotive", "books", "other"},
		},
		Analysis: &analysisConfig{
			Window:          30 * 24 * time.Hour,
			MinSampleSize:   10,
			MinErrorRate:    0.1,
			MinErrorCount:   3,
			SampleErrors:    5,
			SnapshotTTL:     15 * time.Minute,
			RefreshInterval: time.Hour,
		},
		Extraction: &extractionConfig{},
		Inventory:  &inventoryConfig{Timeout: 30 * time.Second},
		S3:         &s3Config{Bucket: "intake-media", UseSSL: true},
		Redis:      &redisConfig{},
	}
}
