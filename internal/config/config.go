package config

import (
	"time"

	pkgconfig "github.com/remsfal/remsfal-backend-sub003/pkg/config"
	"github.com/remsfal/remsfal-backend-sub003/pkg/storage"
	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig
	Cassandra  CassandraConfig
	Kafka      KafkaConfig
	Redis      RedisConfig
	Storage    StorageConfig
	Auth       AuthConfig
	Permission PermissionConfig
	Log        LogConfig
}

type ServerConfig struct {
	Host string
	Port int
}

type CassandraConfig struct {
	Hosts          []string
	Keyspace       string
	Username       string
	Password       string
	Consistency    string
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	Timeout        time.Duration
	NumConns       int `mapstructure:"num_conns"`
}

type KafkaConfig struct {
	Brokers         string
	OcrRequestTopic string `mapstructure:"ocr_request_topic"`
	OcrResultTopic  string `mapstructure:"ocr_result_topic"`
	GroupID         string `mapstructure:"group_id"`
}

type RedisConfig struct {
	Address  string
	Password string
	DB       int
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

type StorageConfig struct {
	Type   string // "s3", "minio", or "local"
	URLTTL time.Duration `mapstructure:"url_ttl"`
	S3     storage.S3Config
	MinIO  storage.MinIOConfig
	Local  storage.LocalConfig
}

type AuthConfig struct {
	PublicKeyFile string `mapstructure:"public_key_file"`
	Issuer        string
}

type PermissionConfig struct {
	BaseURL  string        `mapstructure:"base_url"`
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

type LogConfig struct {
	Level string
}

func Load() (*Config, error) {
	v, err := pkgconfig.Load("./config", "config")
	if err != nil {
		return nil, err
	}

	// Set defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("cassandra.hosts", []string{"localhost:9042"})
	v.SetDefault("cassandra.keyspace", "issue_chat")
	v.SetDefault("cassandra.username", "")
	v.SetDefault("cassandra.password", "")
	v.SetDefault("cassandra.consistency", "LOCAL_QUORUM")
	v.SetDefault("cassandra.connect_timeout", "10s")
	v.SetDefault("cassandra.timeout", "5s")
	v.SetDefault("cassandra.num_conns", 2)
	v.SetDefault("kafka.brokers", "localhost:9092")
	v.SetDefault("kafka.ocr_request_topic", "ocr-request")
	v.SetDefault("kafka.ocr_result_topic", "ocr-result")
	v.SetDefault("kafka.group_id", "issue-chat-service")
	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.cache_ttl", "30s")
	v.SetDefault("storage.type", "s3")
	v.SetDefault("storage.url_ttl", "15m")
	v.SetDefault("storage.s3.region", "us-east-1")
	v.SetDefault("storage.s3.bucket", "issue-chat-files")
	v.SetDefault("storage.s3.use_path_style", true)
	v.SetDefault("storage.minio.bucket", "issue-chat-files")
	v.SetDefault("storage.local.base_path", "./data/files")
	v.SetDefault("auth.public_key_file", "./config/jwt_public.pem")
	v.SetDefault("auth.issuer", "")
	v.SetDefault("permission.base_url", "http://localhost:8081")
	v.SetDefault("permission.cache_ttl", "30s")
	v.SetDefault("log.level", "info")

	// Override from environment
	v.BindEnv("server.port", "PORT")
	v.BindEnv("cassandra.hosts", "CASSANDRA_HOSTS")
	v.BindEnv("cassandra.keyspace", "CASSANDRA_KEYSPACE")
	v.BindEnv("cassandra.username", "CASSANDRA_USERNAME")
	v.BindEnv("cassandra.password", "CASSANDRA_PASSWORD")
	v.BindEnv("kafka.brokers", "KAFKA_BROKERS")
	v.BindEnv("redis.address", "REDIS_ADDRESS")
	v.BindEnv("storage.type", "STORAGE_TYPE")
	v.BindEnv("storage.s3.endpoint", "S3_ENDPOINT")
	v.BindEnv("storage.s3.access_key_id", "S3_ACCESS_KEY_ID")
	v.BindEnv("storage.s3.secret_access_key", "S3_SECRET_ACCESS_KEY")
	v.BindEnv("storage.minio.endpoint", "MINIO_ENDPOINT")
	v.BindEnv("storage.minio.access_key", "MINIO_ACCESS_KEY")
	v.BindEnv("storage.minio.secret_key", "MINIO_SECRET_KEY")
	v.BindEnv("auth.public_key_file", "AUTH_PUBLIC_KEY_FILE")
	v.BindEnv("permission.base_url", "PERMISSION_BASE_URL")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	// Parse durations
	cfg.Cassandra.ConnectTimeout = parseDuration(v, "cassandra.connect_timeout", 10*time.Second)
	cfg.Cassandra.Timeout = parseDuration(v, "cassandra.timeout", 5*time.Second)
	cfg.Redis.CacheTTL = parseDuration(v, "redis.cache_ttl", 30*time.Second)
	cfg.Storage.URLTTL = parseDuration(v, "storage.url_ttl", 15*time.Minute)
	cfg.Permission.CacheTTL = parseDuration(v, "permission.cache_ttl", 30*time.Second)

	return &cfg, nil
}

func parseDuration(v *viper.Viper, key string, defaultVal time.Duration) time.Duration {
	str := v.GetString(key)
	d, err := time.ParseDuration(str)
	if err != nil {
		return defaultVal
	}
	return d
}
