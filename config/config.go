package config

import (
	"fmt"
	"math"
	"time"
)

type Config struct {
	AppName                       string   `env:"APP_NAME" env-default:"bramble-api"`
	Port                          int      `env:"PORT" env-default:"3003"`
	LogLevel                      string   `env:"LOG_LEVEL" env-default:"info"`
	PrettyLogs                    bool     `env:"PRETTY_LOGS" env-default:"false"`
	HttpServerWriteTimeoutSeconds int      `env:"HTTP_SERVER_WRITE_TIMEOUT_SECONDS" env-default:"10"`
	HttpServerReadTimeoutSeconds  int      `env:"HTTP_SERVER_READ_TIMEOUT_SECONDS" env-default:"10"`
	HttpServerIdleTimeoutSeconds  int      `env:"HTTP_SERVER_IDLE_TIMEOUT_SECONDS" env-default:"10"`
	MaxHeaderBytes                int      `env:"HTTP_SERVER_MAX_HEADER_BYTES" env-default:"64000"` // 64KB
	ReadHeaderTimeoutSeconds      int      `env:"HTTP_SERVER_READ_HEADER_TIMEOUT_SECONDS" env-default:"10"`
	AllowOrigins                  []string `env:"HTTP_SERVER_ALLOW_ORIGINS" env-default:"*"`
	AllowMethods                  []string `env:"HTTP_SERVER_ALLOW_METHODS" env-default:"GET,POST,PUT,DELETE"`
	StartupMaxAttempts            int      `env:"STARTUP_MAX_ATTEMPTS" env-default:"5"`

	// PostgreSQL (review queue, audit log, merge ledger)
	DatabaseDriver              string        `env:"DB_DRIVER" env-default:"postgres"`
	DatabaseHost                string        `env:"DB_HOST" env-default:""`
	DatabasePort                string        `env:"DB_PORT" env-default:"5432"`
	DatabaseUserName            string        `env:"DB_USER_NAME" env-default:""`
	DatabasePassword            string        `env:"DB_PASSWORD" env-default:""`
	DatabaseName                string        `env:"DB_NAME" env-default:"bramble"`
	DatabaseSSLMode             string        `env:"DB_SQL_MODE" env-default:"disable"`
	DatabaseMaxOpenConns        int           `env:"DB_MAX_OPEN_CONNS" env-default:"25"`
	DatabaseMaxIdleConns        int           `env:"DB_MAX_IDLE_CONNS" env-default:"10"`
	DatabaseConnMaxLifetime     time.Duration `env:"DB_CONN_MAX_LIFETIME" env-default:"10s"`
	DatabaseMigrationFolderPath string        `env:"DB_MIGRATION_FOLDER_PATH" env-default:"db/pg"`

	// Graph Database (Memgraph/Neo4j over Bolt)
	GraphDBHost     string `env:"GRAPH_DB_HOST" env-default:"localhost"`
	GraphDBPort     int    `env:"GRAPH_DB_PORT" env-default:"7687"`
	GraphDBUser     string `env:"GRAPH_DB_USER" env-default:""`
	GraphDBPassword string `env:"GRAPH_DB_PASSWORD" env-default:""`
	GraphDBName     string `env:"GRAPH_DB_NAME" env-default:"bramble"`
	GraphRetryCount int    `env:"GRAPH_RETRY_COUNT" env-default:"3"`

	// Tracing
	TracingEnabled bool   `env:"TRACING_ENABLED" env-default:"false"`
	OTLPEndpoint   string `env:"OTLP_ENDPOINT" env-default:"localhost:4317"`
	OTLPProtocol   string `env:"OTLP_PROTOCOL" env-default:"grpc"`
	OTLPInsecure   bool   `env:"OTLP_INSECURE" env-default:"true"`

	// Kafka (mention ingestion + outbound entity events)
	KafkaBrokers         []string `env:"KAFKA_BROKERS" env-default:"localhost:9092"`
	KafkaInputTopic      string   `env:"KAFKA_INPUT_TOPIC" env-default:"entity-mentions"`
	KafkaConsumerGroup   string   `env:"KAFKA_CONSUMER_GROUP" env-default:"bramble-consumer"`
	KafkaConsumerEnabled bool     `env:"KAFKA_CONSUMER_ENABLED" env-default:"true"`
	KafkaOutputTopic     string   `env:"KAFKA_OUTPUT_TOPIC" env-default:"resolution-events"`
	KafkaBatchSize       int      `env:"KAFKA_BATCH_SIZE" env-default:"100"`
	KafkaBatchTimeout    int      `env:"KAFKA_BATCH_TIMEOUT_MS" env-default:"100"`
	KafkaRequiredAcks    int      `env:"KAFKA_REQUIRED_ACKS" env-default:"1"`
	KafkaCompression     string   `env:"KAFKA_COMPRESSION" env-default:"snappy"`

	// Resolution thresholds
	AutoMergeEnabled       bool    `env:"AUTO_MERGE_ENABLED" env-default:"true"`
	AutoMergeThreshold     float64 `env:"AUTO_MERGE_THRESHOLD" env-default:"0.92"`
	SynonymThreshold       float64 `env:"SYNONYM_THRESHOLD" env-default:"0.80"`
	ReviewThreshold        float64 `env:"REVIEW_THRESHOLD" env-default:"0.60"`
	SourceSystem           string  `env:"SOURCE_SYSTEM" env-default:"bramble"`
	FullScanLimit          int     `env:"FULL_SCAN_LIMIT" env-default:"5000"`
	MaxMentionNameLength   int     `env:"MAX_MENTION_NAME_LENGTH" env-default:"512"`

	// Similarity weights (must sum to 1.0)
	SimilarityWeightLevenshtein float64 `env:"SIMILARITY_WEIGHT_LEVENSHTEIN" env-default:"0.40"`
	SimilarityWeightJaroWinkler float64 `env:"SIMILARITY_WEIGHT_JARO_WINKLER" env-default:"0.35"`
	SimilarityWeightJaccard     float64 `env:"SIMILARITY_WEIGHT_JACCARD" env-default:"0.25"`

	// Synonym confidence decay
	ConfidenceDecayLambda    float64 `env:"CONFIDENCE_DECAY_LAMBDA" env-default:"0.001"`
	ReinforcementCap         float64 `env:"REINFORCEMENT_CAP" env-default:"0.15"`
	ReinforcementTargetCount int     `env:"REINFORCEMENT_TARGET_COUNT" env-default:"50"`
	RejectionPenalty         float64 `env:"REJECTION_PENALTY" env-default:"0.25"`

	// LLM enrichment
	UseLLM                 bool    `env:"USE_LLM" env-default:"false"`
	LLMConfidenceThreshold float64 `env:"LLM_CONFIDENCE_THRESHOLD" env-default:"0.75"`
	LLMFloorScore          float64 `env:"LLM_FLOOR_SCORE" env-default:"0.40"`
	LLMModel               string  `env:"LLM_MODEL" env-default:"claude-3-5-haiku-20241022"`
	LLMAPIKey              string  `env:"ANTHROPIC_API_KEY" env-default:""`
	LLMMaxRetries          int     `env:"LLM_MAX_RETRIES" env-default:"3"`

	// Batching
	MaxBatchSize         int   `env:"MAX_BATCH_SIZE" env-default:"10000"`
	BatchCommitChunkSize int   `env:"BATCH_COMMIT_CHUNK_SIZE" env-default:"1000"`
	MaxBatchMemoryBytes  int64 `env:"MAX_BATCH_MEMORY_BYTES" env-default:"67108864"` // 64MB

	// Resolution cache
	CachingEnabled  bool `env:"CACHING_ENABLED" env-default:"true"`
	CacheMaxSize    int  `env:"CACHE_MAX_SIZE" env-default:"10000"`
	CacheTtlSeconds int  `env:"CACHE_TTL_SECONDS" env-default:"300"`

	// Locking / timeouts
	LockTimeoutMs  int `env:"LOCK_TIMEOUT_MS" env-default:"5000"`
	LockMaxRetries int `env:"LOCK_MAX_RETRIES" env-default:"5"`
	LockTtlMs      int `env:"LOCK_TTL_MS" env-default:"30000"`
	AsyncTimeoutMs int `env:"ASYNC_TIMEOUT_MS" env-default:"30000"`
}

const weightEpsilon = 1e-9

// Validate enforces the invariants the resolver assumes at runtime:
// review <= synonym <= autoMerge, similarity weights summing to 1.0, and
// sane decay parameters.
func (c *Config) Validate() error {
	for name, v := range map[string]float64{
		"AUTO_MERGE_THRESHOLD":     c.AutoMergeThreshold,
		"SYNONYM_THRESHOLD":        c.SynonymThreshold,
		"REVIEW_THRESHOLD":         c.ReviewThreshold,
		"LLM_CONFIDENCE_THRESHOLD": c.LLMConfidenceThreshold,
		"REINFORCEMENT_CAP":        c.ReinforcementCap,
		"REJECTION_PENALTY":        c.RejectionPenalty,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("%s must be in [0,1], got %f", name, v)
		}
	}

	if c.ReviewThreshold > c.SynonymThreshold || c.SynonymThreshold > c.AutoMergeThreshold {
		return fmt.Errorf("thresholds must satisfy review <= synonym <= autoMerge, got %f/%f/%f",
			c.ReviewThreshold, c.SynonymThreshold, c.AutoMergeThreshold)
	}

	sum := c.SimilarityWeightLevenshtein + c.SimilarityWeightJaroWinkler + c.SimilarityWeightJaccard
	if math.Abs(sum-1.0) > weightEpsilon {
		return fmt.Errorf("similarity weights must sum to 1.0, got %f", sum)
	}

	if c.ConfidenceDecayLambda < 0 {
		return fmt.Errorf("CONFIDENCE_DECAY_LAMBDA must be >= 0, got %f", c.ConfidenceDecayLambda)
	}
	if c.ReinforcementTargetCount < 1 {
		return fmt.Errorf("REINFORCEMENT_TARGET_COUNT must be >= 1, got %d", c.ReinforcementTargetCount)
	}
	if c.BatchCommitChunkSize < 1 || c.MaxBatchSize < 1 {
		return fmt.Errorf("batch sizes must be positive")
	}

	return nil
}

// LockTimeout returns the configured per-acquisition lock wait.
func (c *Config) LockTimeout() time.Duration {
	return time.Duration(c.LockTimeoutMs) * time.Millisecond
}

// LockTTL returns the configured lock expiry.
func (c *Config) LockTTL() time.Duration {
	return time.Duration(c.LockTtlMs) * time.Millisecond
}

// AsyncTimeout returns the deadline applied to async operations.
func (c *Config) AsyncTimeout() time.Duration {
	return time.Duration(c.AsyncTimeoutMs) * time.Millisecond
}
