package config

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Storage     StorageConfig     `mapstructure:"storage"`
	Embedding   EmbeddingConfig   `mapstructure:"embedding"`
	VectorIndex VectorIndexConfig `mapstructure:"vector_index"`
	Acquire     AcquireConfig     `mapstructure:"acquire"`
	Teach       TeachConfig       `mapstructure:"teach"`
	Admin       AdminConfig       `mapstructure:"admin"`
}

type ServerConfig struct {
	Port int        `mapstructure:"port"`
	Mode string     `mapstructure:"mode"`
	CORS CORSConfig `mapstructure:"cors"`
}

type CORSConfig struct {
	AllowedOrigins  []string `mapstructure:"allowed_origins"`
	AllowAllOrigins bool     `mapstructure:"allow_all_origins"`
}

type DatabaseConfig struct {
	Driver      string `mapstructure:"driver"` // sqlite or postgres
	Path        string `mapstructure:"path"`   // sqlite file path
	DSN         string `mapstructure:"dsn"`    // postgres DSN
	AutoMigrate bool   `mapstructure:"auto_migrate"`
}

type StorageConfig struct {
	Endpoint  string `mapstructure:"endpoint"`
	Region    string `mapstructure:"region"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl"`
	Bucket    string `mapstructure:"bucket"`
	Prefix    string `mapstructure:"prefix"` // key prefix for training images
}

type EmbeddingConfig struct {
	BaseURL       string `mapstructure:"base_url"`
	APIKey        string `mapstructure:"api_key"`
	TextFunction  string `mapstructure:"text_function"`
	ImageFunction string `mapstructure:"image_function"`
	Dimensions    int    `mapstructure:"dimensions"`
	TimeoutSec    int    `mapstructure:"timeout_sec"`
}

type VectorIndexConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	Collection string `mapstructure:"collection"`
}

type AcquireConfig struct {
	Provider   string `mapstructure:"provider"`
	BaseURL    string `mapstructure:"base_url"`
	APIKey     string `mapstructure:"api_key"`
	LocalRoot  string `mapstructure:"local_root"` // directory read verbatim by the local provider
	TimeoutSec int    `mapstructure:"timeout_sec"`
	WorkDir    string `mapstructure:"work_dir"`
}

type TeachConfig struct {
	ImagesPerClass int  `mapstructure:"images_per_class"`
	Async          bool `mapstructure:"async"`
	KeepWorkDir    bool `mapstructure:"keep_work_dir"`
}

type AdminConfig struct {
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// Load reads configuration from an optional YAML file with environment
// variable overrides.
// Parameters:
//   - configPath: explicit config file path; empty searches ./configs and .
// Returns:
//   - *Config: populated configuration.
//   - error: read or unmarshal failure.
func Load(configPath string) (*Config, error) {
	// Load .env file if exists
	_ = godotenv.Load()

	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	// Enable environment variable override
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.cors.allow_all_origins", true)
	v.SetDefault("server.cors.allowed_origins", []string{})
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/cortexvision.db")
	v.SetDefault("database.auto_migrate", true)
	v.SetDefault("storage.endpoint", "localhost:9000")
	v.SetDefault("storage.region", "us-east-1")
	v.SetDefault("storage.use_ssl", false)
	v.SetDefault("storage.bucket", "cortexvision")
	v.SetDefault("storage.prefix", "images/trained")
	v.SetDefault("embedding.base_url", "http://localhost:8090")
	v.SetDefault("embedding.text_function", "embed_text")
	v.SetDefault("embedding.image_function", "embed_image")
	v.SetDefault("embedding.dimensions", 1024)
	v.SetDefault("embedding.timeout_sec", 60)
	v.SetDefault("vector_index.enabled", false)
	v.SetDefault("vector_index.host", "localhost")
	v.SetDefault("vector_index.port", 6334)
	v.SetDefault("vector_index.collection", "class_embeddings")
	v.SetDefault("acquire.provider", "bing")
	v.SetDefault("acquire.timeout_sec", 120)
	v.SetDefault("acquire.work_dir", "./data/acquire")
	v.SetDefault("teach.images_per_class", 8)
	v.SetDefault("teach.async", true)
	v.SetDefault("teach.keep_work_dir", false)
	v.SetDefault("admin.username", "admin")

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Bind environment variables explicitly for sensitive data
	v.BindEnv("database.dsn", "DATABASE_DSN")
	v.BindEnv("storage.endpoint", "STORAGE_ENDPOINT")
	v.BindEnv("storage.access_key", "STORAGE_ACCESS_KEY")
	v.BindEnv("storage.secret_key", "STORAGE_SECRET_KEY")
	v.BindEnv("storage.use_ssl", "STORAGE_USE_SSL")
	v.BindEnv("embedding.base_url", "EMBEDDING_BASE_URL")
	v.BindEnv("embedding.api_key", "EMBEDDING_API_KEY")
	v.BindEnv("vector_index.host", "QDRANT_HOST")
	v.BindEnv("vector_index.port", "QDRANT_PORT")
	v.BindEnv("acquire.api_key", "ACQUIRE_API_KEY")
	v.BindEnv("admin.password", "ADMIN_PASSWORD")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}
