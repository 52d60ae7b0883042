package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server          ServerConfig          `yaml:"server"`
	Elasticsearch   ElasticsearchConfig   `yaml:"elasticsearch"`
	Redis           RedisConfig           `yaml:"redis"`
	ClickHouse      ClickHouseConfig      `yaml:"clickhouse"`
	Firestore       FirestoreConfig       `yaml:"firestore"`
	Kafka           KafkaConfig           `yaml:"kafka"`
	Search          SearchConfig          `yaml:"search"`
	Personalization PersonalizationConfig `yaml:"personalization"`
	Speech          SpeechConfig          `yaml:"speech"`
	Observability   ObservabilityConfig   `yaml:"observability"`
}

type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type ElasticsearchConfig struct {
	Addresses         []string      `yaml:"addresses"`
	Username          string        `yaml:"username"`
	Password          string        `yaml:"password"`
	MaxRetries        int           `yaml:"max_retries"`
	RequestTimeout    time.Duration `yaml:"request_timeout"`
	ProductIndex      string        `yaml:"product_index"`
	BulkSize          int           `yaml:"bulk_size"`
	BulkFlushInterval time.Duration `yaml:"bulk_flush_interval"`
	CandidateSize     int           `yaml:"candidate_size"`
}

type RedisConfig struct {
	Addresses    []string       `yaml:"addresses"`
	Password     string         `yaml:"password"`
	DB           int            `yaml:"db"`
	PoolSize     int            `yaml:"pool_size"`
	MinIdleConns int            `yaml:"min_idle_conns"`
	DialTimeout  time.Duration  `yaml:"dial_timeout"`
	ReadTimeout  time.Duration  `yaml:"read_timeout"`
	WriteTimeout time.Duration  `yaml:"write_timeout"`
	TTL          CacheTTLConfig `yaml:"ttl"`
}

type CacheTTLConfig struct {
	SearchResults time.Duration `yaml:"search_results"`
	Suggestions   time.Duration `yaml:"suggestions"`
	Trending      time.Duration `yaml:"trending"`
	StaleFallback time.Duration `yaml:"stale_fallback"`
}

type ClickHouseConfig struct {
	Addresses    []string      `yaml:"addresses"`
	Database     string        `yaml:"database"`
	Username     string        `yaml:"username"`
	Password     string        `yaml:"password"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	QueryTimeout time.Duration `yaml:"query_timeout"`
	MaxOpenConns int           `yaml:"max_open_conns"`
	MaxIdleConns int           `yaml:"max_idle_conns"`
}

type FirestoreConfig struct {
	ProjectID         string        `yaml:"project_id"`
	CredentialsFile   string        `yaml:"credentials_file"`
	ProductCollection string        `yaml:"product_collection"`
	RequestTimeout    time.Duration `yaml:"request_timeout"`
	MaxBatchSize      int           `yaml:"max_batch_size"`
	// WatchChanges tails the product collection and republishes changes to the
	// catalog topic, for deployments without a CDC pipeline into Kafka.
	WatchChanges bool `yaml:"watch_changes"`
}

type KafkaConfig struct {
	Brokers           []string      `yaml:"brokers"`
	TopicCatalog      string        `yaml:"topic_catalog"`
	TopicInteractions string        `yaml:"topic_interactions"`
	TopicDLQ          string        `yaml:"topic_dlq"`
	ConsumerGroup     string        `yaml:"consumer_group"`
	BatchSize         int           `yaml:"batch_size"`
	BatchTimeout      time.Duration `yaml:"batch_timeout"`
	MaxRetries        int           `yaml:"max_retries"`
}

type SearchConfig struct {
	DefaultPageSize int                  `yaml:"default_page_size"`
	MaxPageSize     int                  `yaml:"max_page_size"`
	QueryTimeout    time.Duration        `yaml:"query_timeout"`
	CircuitBreaker  CircuitBreakerConfig `yaml:"circuit_breaker"`
	Retry           RetryConfig          `yaml:"retry"`
	SlowSearch      SlowSearchConfig     `yaml:"slow_search"`
}

type CircuitBreakerConfig struct {
	MaxRequests      uint32        `yaml:"max_requests"`
	Interval         time.Duration `yaml:"interval"`
	Timeout          time.Duration `yaml:"timeout"`
	FailureThreshold uint32        `yaml:"failure_threshold"`
}

type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts"`
	InitialWait time.Duration `yaml:"initial_wait"`
	MaxWait     time.Duration `yaml:"max_wait"`
	Multiplier  float64       `yaml:"multiplier"`
}

type SlowSearchConfig struct {
	WarningThreshold  time.Duration `yaml:"warning_threshold"`
	CriticalThreshold time.Duration `yaml:"critical_threshold"`
}

type PersonalizationConfig struct {
	Enabled     bool `yaml:"enabled"`
	HistorySize int  `yaml:"history_size"`
}

type SpeechConfig struct {
	NoResultTimeout time.Duration `yaml:"no_result_timeout"`
}

type ObservabilityConfig struct {
	MetricsPort     int    `yaml:"metrics_port"`
	TracingEndpoint string `yaml:"tracing_endpoint"`
	LogLevel        string `yaml:"log_level"`
	ServiceName     string `yaml:"service_name"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}

	data = []byte(os.ExpandEnv(string(data)))

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    10 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Elasticsearch: ElasticsearchConfig{
			Addresses:         []string{"http://localhost:9200"},
			MaxRetries:        3,
			RequestTimeout:    150 * time.Millisecond,
			ProductIndex:      "products",
			BulkSize:          5000,
			BulkFlushInterval: 5 * time.Second,
			CandidateSize:     200,
		},
		Redis: RedisConfig{
			Addresses:    []string{"localhost:6379"},
			PoolSize:     100,
			MinIdleConns: 10,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  1 * time.Second,
			WriteTimeout: 1 * time.Second,
			TTL: CacheTTLConfig{
				SearchResults: 2 * time.Minute,
				Suggestions:   10 * time.Minute,
				Trending:      60 * time.Second,
				StaleFallback: 1 * time.Hour,
			},
		},
		ClickHouse: ClickHouseConfig{
			Addresses:    []string{"localhost:9000"},
			Database:     "search_analytics",
			DialTimeout:  5 * time.Second,
			QueryTimeout: 2 * time.Second,
			MaxOpenConns: 10,
			MaxIdleConns: 5,
		},
		Firestore: FirestoreConfig{
			ProductCollection: "products",
			RequestTimeout:    2 * time.Second,
			MaxBatchSize:      100,
		},
		Kafka: KafkaConfig{
			Brokers:           []string{"localhost:9092"},
			TopicCatalog:      "catalog.changes",
			TopicInteractions: "user.interactions",
			TopicDLQ:          "voice-search.dlq",
			ConsumerGroup:     "voice-search",
			BatchSize:         1000,
			BatchTimeout:      1 * time.Second,
			MaxRetries:        3,
		},
		Search: SearchConfig{
			DefaultPageSize: 20,
			MaxPageSize:     100,
			QueryTimeout:    30 * time.Second,
			CircuitBreaker: CircuitBreakerConfig{
				MaxRequests:      100,
				Interval:         30 * time.Second,
				Timeout:          30 * time.Second,
				FailureThreshold: 5,
			},
			Retry: RetryConfig{
				MaxAttempts: 2,
				InitialWait: 50 * time.Millisecond,
				MaxWait:     500 * time.Millisecond,
				Multiplier:  2.0,
			},
			SlowSearch: SlowSearchConfig{
				WarningThreshold:  200 * time.Millisecond,
				CriticalThreshold: 500 * time.Millisecond,
			},
		},
		Personalization: PersonalizationConfig{
			Enabled:     true,
			HistorySize: 200,
		},
		Speech: SpeechConfig{
			NoResultTimeout: 30 * time.Second,
		},
		Observability: ObservabilityConfig{
			MetricsPort: 9090,
			LogLevel:    "info",
			ServiceName: "voice-search",
		},
	}
}

func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if len(c.Elasticsearch.Addresses) == 0 {
		return fmt.Errorf("at least one elasticsearch address required")
	}
	if c.Elasticsearch.ProductIndex == "" {
		return fmt.Errorf("elasticsearch product index required")
	}
	if len(c.Redis.Addresses) == 0 {
		return fmt.Errorf("at least one redis address required")
	}
	if len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("at least one kafka broker required")
	}
	if c.Search.DefaultPageSize <= 0 {
		return fmt.Errorf("default page size must be positive")
	}
	if c.Search.MaxPageSize <= 0 || c.Search.MaxPageSize > 1000 {
		return fmt.Errorf("max page size must be between 1 and 1000")
	}
	if c.Personalization.HistorySize < 0 {
		return fmt.Errorf("personalization history size must not be negative")
	}
	return nil
}
