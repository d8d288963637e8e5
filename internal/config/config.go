package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// EnvPrefix namespaces every environment variable, e.g. CONTACTS_SERVER_PORT.
const EnvPrefix = "CONTACTS"

// Config represents the complete application configuration
type Config struct {
	Server     ServerConfig     `yaml:"server" envconfig:"SERVER"`
	Security   SecurityConfig   `yaml:"security" envconfig:"SECURITY"`
	Logging    LoggingConfig    `yaml:"logging" envconfig:"LOGGING"`
	Paths      PathsConfig      `yaml:"paths" envconfig:"PATHS"`
	Upload     UploadConfig     `yaml:"upload" envconfig:"UPLOAD"`
	Processing ProcessingConfig `yaml:"processing" envconfig:"PROCESSING"`
	Results    ResultsConfig    `yaml:"results" envconfig:"RESULTS"`
	Telemetry  TelemetryConfig  `yaml:"telemetry" envconfig:"TELEMETRY"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port" envconfig:"PORT"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT"`
	MaxHeaderBytes  int           `yaml:"max_header_bytes" envconfig:"MAX_HEADER_BYTES"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT"`
}

// SecurityConfig contains security-related configuration
type SecurityConfig struct {
	AllowedOrigins []string        `yaml:"allowed_origins" envconfig:"ALLOWED_ORIGINS"`
	RateLimit      RateLimitConfig `yaml:"rate_limit" envconfig:"RATE_LIMIT"`
}

// RateLimitConfig contains rate limiting configuration
type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled" envconfig:"ENABLED"`
	RPS     float64 `yaml:"rps" envconfig:"RPS"`
	Burst   int     `yaml:"burst" envconfig:"BURST"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL"`
	Format   string `yaml:"format" envconfig:"FORMAT"`
	Output   string `yaml:"output" envconfig:"OUTPUT"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH"`
}

// PathsConfig contains file system paths configuration
type PathsConfig struct {
	// WorkDir is the parent of per-upload temporary workspaces; empty means
	// the system temp directory.
	WorkDir string `yaml:"work_dir" envconfig:"WORK_DIR"`
	LogsDir string `yaml:"logs_dir" envconfig:"LOGS_DIR"`
	// AllowFolderRuns enables the folder-run endpoint of the web server.
	AllowFolderRuns bool `yaml:"allow_folder_runs" envconfig:"ALLOW_FOLDER_RUNS"`
	// FolderRoot confines folder runs to this directory when set.
	FolderRoot string `yaml:"folder_root" envconfig:"FOLDER_ROOT"`
}

// UploadConfig bounds a single upload batch.
type UploadConfig struct {
	MaxFiles     int   `yaml:"max_files" envconfig:"MAX_FILES"`
	MaxFileBytes int64 `yaml:"max_file_bytes" envconfig:"MAX_FILE_BYTES"`
}

// ProcessingConfig tunes the cleaning pipeline.
type ProcessingConfig struct {
	OutputFormat string `yaml:"output_format" envconfig:"OUTPUT_FORMAT"`
	// CaseInsensitiveDomains matches "Gmail.com" against the personal
	// provider list. Off by default: matching is exact.
	CaseInsensitiveDomains bool `yaml:"case_insensitive_domains" envconfig:"CASE_INSENSITIVE_DOMAINS"`
	// RequireKeyColumn skips a dedup pass whose click column is missing
	// instead of deduplicating on email address alone.
	RequireKeyColumn bool `yaml:"require_key_column" envconfig:"REQUIRE_KEY_COLUMN"`
}

// ResultsConfig controls how long processed uploads stay downloadable.
type ResultsConfig struct {
	TTL        time.Duration `yaml:"ttl" envconfig:"TTL"`
	MaxBatches int           `yaml:"max_batches" envconfig:"MAX_BATCHES"`
}

// TelemetryConfig contains tracing configuration
type TelemetryConfig struct {
	ServiceName   string  `yaml:"service_name" envconfig:"SERVICE_NAME"`
	TraceExporter string  `yaml:"trace_exporter" envconfig:"TRACE_EXPORTER"`
	SampleRatio   float64 `yaml:"sample_ratio" envconfig:"SAMPLE_RATIO"`
}

// Load builds the configuration from defaults, then the YAML file at path
// (or the first config file found in the usual locations when path is
// empty), then CONTACTS_* environment variables, which take precedence.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = getConfigFilePath()
	}
	if path != "" {
		if err := loadFromFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// loadFromFile overlays the YAML file onto cfg
func loadFromFile(filePath string, cfg *Config) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// validate validates the configuration
func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server read timeout must be positive")
	}

	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server write timeout must be positive")
	}

	if c.Security.RateLimit.Enabled && (c.Security.RateLimit.RPS <= 0 || c.Security.RateLimit.Burst <= 0) {
		return fmt.Errorf("rate limit rps and burst must be positive when enabled")
	}

	switch strings.ToLower(c.Logging.Output) {
	case "console", "file", "both":
	default:
		return fmt.Errorf("invalid logging output: %q", c.Logging.Output)
	}

	if c.Logging.FilePath == "" {
		c.Logging.FilePath = "logs/contact_ingester.log"
	}

	switch strings.ToLower(c.Processing.OutputFormat) {
	case "xlsx", "csv":
		c.Processing.OutputFormat = strings.ToLower(c.Processing.OutputFormat)
	default:
		return fmt.Errorf("unsupported output format: %q", c.Processing.OutputFormat)
	}

	if c.Upload.MaxFiles <= 0 {
		return fmt.Errorf("upload max files must be positive")
	}

	if c.Upload.MaxFileBytes <= 0 {
		return fmt.Errorf("upload max file bytes must be positive")
	}

	if c.Results.TTL <= 0 {
		return fmt.Errorf("results ttl must be positive")
	}

	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		return fmt.Errorf("telemetry sample ratio must be within [0, 1]")
	}

	switch c.Telemetry.TraceExporter {
	case "stdout", "none":
	default:
		return fmt.Errorf("unsupported trace exporter: %q", c.Telemetry.TraceExporter)
	}

	return nil
}

// getConfigFilePath returns the path to the config file
func getConfigFilePath() string {
	locations := []string{
		"config.yaml",
		"configs/config.yaml",
	}

	for _, location := range locations {
		if _, err := os.Stat(location); err == nil {
			return location
		}
	}

	return "" // No config file found, use env vars only
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     60 * time.Second,
			WriteTimeout:    120 * time.Second,
			IdleTimeout:     60 * time.Second,
			MaxHeaderBytes:  1 << 20, // 1MB
			ShutdownTimeout: 30 * time.Second,
		},
		Security: SecurityConfig{
			AllowedOrigins: []string{"http://localhost:8080"},
			RateLimit: RateLimitConfig{
				Enabled: true,
				RPS:     10,
				Burst:   20,
			},
		},
		Logging: LoggingConfig{
			Level:    "info",
			Format:   "json",
			Output:   "both",
			FilePath: "logs/contact_ingester.log",
		},
		Paths: PathsConfig{
			LogsDir: "logs",
		},
		Upload: UploadConfig{
			MaxFiles:     20,
			MaxFileBytes: 32 << 20, // 32MB
		},
		Processing: ProcessingConfig{
			OutputFormat: "xlsx",
		},
		Results: ResultsConfig{
			TTL:        30 * time.Minute,
			MaxBatches: 100,
		},
		Telemetry: TelemetryConfig{
			ServiceName:   "contact-cleaner",
			TraceExporter: "none",
			SampleRatio:   1.0,
		},
	}
}
