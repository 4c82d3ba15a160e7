package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"

	"marketpulse/pkg/contracts/domain"
)

// EnvPrefix namespaces every environment variable, e.g. MP_SOURCE_PROVIDER
const EnvPrefix = "MP"

// Supported sink targets
const (
	TargetSheets   = "sheets"
	TargetWorkbook = "workbook"
	TargetSQL      = "sql"
	TargetRedis    = "redis"
	TargetCSV      = "csv"
	TargetParquet  = "parquet"
)

// Config represents the complete application configuration
type Config struct {
	Logging   LoggingConfig   `yaml:"logging" envconfig:"LOGGING"`
	Source    SourceConfig    `yaml:"source" envconfig:"SOURCE"`
	Sink      SinkConfig      `yaml:"sink" envconfig:"SINK"`
	Server    ServerConfig    `yaml:"server" envconfig:"SERVER"`
	Telemetry TelemetryConfig `yaml:"telemetry" envconfig:"TELEMETRY"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL" validate:"oneof=debug info warn warning error"`
	Output   string `yaml:"output" envconfig:"OUTPUT" validate:"oneof=stdout file both"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH"`
}

// SourceConfig selects and tunes the market-data provider
type SourceConfig struct {
	Provider          string        `yaml:"provider" envconfig:"PROVIDER" validate:"oneof=yahoo polygon"`
	BaseURL           string        `yaml:"base_url" envconfig:"BASE_URL" validate:"omitempty,url"`
	APIKey            string        `yaml:"api_key" envconfig:"API_KEY"`
	Tickers           []string      `yaml:"tickers" envconfig:"TICKERS" validate:"min=1"`
	LookbackDays      int           `yaml:"lookback_days" envconfig:"LOOKBACK_DAYS" validate:"min=1,max=5000"`
	Calendar          string        `yaml:"calendar" envconfig:"CALENDAR"`
	Concurrency       int           `yaml:"concurrency" envconfig:"CONCURRENCY" validate:"min=1,max=64"`
	RequestsPerSecond float64       `yaml:"requests_per_second" envconfig:"REQUESTS_PER_SECOND" validate:"gt=0"`
	Timeout           time.Duration `yaml:"timeout" envconfig:"TIMEOUT" validate:"gt=0"`
	AdjustPrices      bool          `yaml:"adjust_prices" envconfig:"ADJUST_PRICES"`
	UserAgent         string        `yaml:"user_agent" envconfig:"USER_AGENT"`
}

// SinkConfig describes where the Silver and Gold tables are written
type SinkConfig struct {
	Targets     []string `yaml:"targets" envconfig:"TARGETS" validate:"min=1,dive,oneof=sheets workbook sql redis csv parquet"`
	SilverTable string   `yaml:"silver_table" envconfig:"SILVER_TABLE" validate:"required"`
	GoldTable   string   `yaml:"gold_table" envconfig:"GOLD_TABLE" validate:"required"`
	WriteSilver bool     `yaml:"write_silver" envconfig:"WRITE_SILVER"`

	SpreadsheetID   string `yaml:"spreadsheet_id" envconfig:"SPREADSHEET_ID"`
	CredentialsFile string `yaml:"credentials_file" envconfig:"CREDENTIALS_FILE"`
	SheetsEndpoint  string `yaml:"sheets_endpoint" envconfig:"SHEETS_ENDPOINT"`

	WorkbookPath string `yaml:"workbook_path" envconfig:"WORKBOOK_PATH"`

	SQLDriver string `yaml:"sql_driver" envconfig:"SQL_DRIVER" validate:"omitempty,oneof=sqlite pgx"`
	SQLDSN    string `yaml:"sql_dsn" envconfig:"SQL_DSN"`

	RedisAddr     string `yaml:"redis_addr" envconfig:"REDIS_ADDR"`
	RedisPassword string `yaml:"redis_password" envconfig:"REDIS_PASSWORD"`
	RedisDB       int    `yaml:"redis_db" envconfig:"REDIS_DB" validate:"min=0"`
	RedisPrefix   string `yaml:"redis_prefix" envconfig:"REDIS_PREFIX"`

	OutputDir string `yaml:"output_dir" envconfig:"OUTPUT_DIR"`
}

// ServerConfig contains HTTP trigger server configuration
type ServerConfig struct {
	Port            int           `yaml:"port" envconfig:"PORT" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT" validate:"gt=0"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT" validate:"gt=0"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT"`
	RunTimeout      time.Duration `yaml:"run_timeout" envconfig:"RUN_TIMEOUT" validate:"gt=0"`

	// APIKey guards POST /run when set
	APIKey string `yaml:"api_key" envconfig:"API_KEY"`
}

// TelemetryConfig controls tracing and metrics export
type TelemetryConfig struct {
	ServiceName    string `yaml:"service_name" envconfig:"SERVICE_NAME"`
	TraceExporter  string `yaml:"trace_exporter" envconfig:"TRACE_EXPORTER" validate:"oneof=none stdout"`
	MetricsEnabled bool   `yaml:"metrics_enabled" envconfig:"METRICS_ENABLED"`
	PushgatewayURL string `yaml:"pushgateway_url" envconfig:"PUSHGATEWAY_URL" validate:"omitempty,url"`
	JobName        string `yaml:"job_name" envconfig:"JOB_NAME"`
}

// Load builds the configuration from defaults, an optional YAML file, a
// .env file and the environment, in increasing order of precedence. An empty
// path searches the usual locations.
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

	// .env never overrides variables already set in the process
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// loadFromFile overlays a YAML file onto cfg
func loadFromFile(filePath string, cfg *Config) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// Validate normalizes tickers and checks the configuration
func (c *Config) Validate() error {
	tickers, err := domain.NormalizeTickers(c.Source.Tickers)
	if err != nil {
		return err
	}
	c.Source.Tickers = tickers

	if err := validator.New().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return errors.New(strings.Join(msgs, "; "))
		}
		return err
	}

	if c.Source.Provider == "polygon" && c.Source.APIKey == "" {
		return fmt.Errorf("source.api_key is required for the polygon provider")
	}

	for _, target := range c.Sink.Targets {
		switch target {
		case TargetSheets:
			if c.Sink.SpreadsheetID == "" {
				return fmt.Errorf("sink.spreadsheet_id is required for the sheets target")
			}
		case TargetWorkbook:
			if c.Sink.WorkbookPath == "" {
				return fmt.Errorf("sink.workbook_path is required for the workbook target")
			}
		case TargetSQL:
			if c.Sink.SQLDriver == "" || c.Sink.SQLDSN == "" {
				return fmt.Errorf("sink.sql_driver and sink.sql_dsn are required for the sql target")
			}
		case TargetRedis:
			if c.Sink.RedisAddr == "" {
				return fmt.Errorf("sink.redis_addr is required for the redis target")
			}
		case TargetCSV, TargetParquet:
			if c.Sink.OutputDir == "" {
				return fmt.Errorf("sink.output_dir is required for the %s target", target)
			}
		}
	}

	if c.Sink.SilverTable == c.Sink.GoldTable {
		return fmt.Errorf("sink.silver_table and sink.gold_table must differ")
	}

	if c.Logging.Output != "stdout" && c.Logging.FilePath == "" {
		c.Logging.FilePath = "logs/marketpulse.log"
	}

	return nil
}

// getConfigFilePath returns the path to the config file
func getConfigFilePath() string {
	locations := []string{
		"marketpulse.yaml",
		"configs/marketpulse.yaml",
		"../configs/marketpulse.yaml",
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
		Logging: LoggingConfig{
			Level:    "info",
			Output:   "stdout",
			FilePath: "logs/marketpulse.log",
		},
		Source: SourceConfig{
			Provider:          "yahoo",
			Tickers:           append([]string(nil), domain.DefaultTickers...),
			LookbackDays:      252,
			Calendar:          "xnys",
			Concurrency:       4,
			RequestsPerSecond: 4,
			Timeout:           20 * time.Second,
			AdjustPrices:      true,
			UserAgent:         "marketpulse/1.0",
		},
		Sink: SinkConfig{
			Targets:      []string{TargetSheets},
			SilverTable:  "Stocks_Data",
			GoldTable:    "Summary",
			WriteSilver:  true,
			WorkbookPath: "data/marketpulse.xlsx",
			SQLDriver:    "sqlite",
			SQLDSN:       "file:data/marketpulse.db",
			RedisPrefix:  "marketpulse:",
			OutputDir:    "data",
		},
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Minute,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			RunTimeout:      10 * time.Minute,
		},
		Telemetry: TelemetryConfig{
			ServiceName:    "marketpulse",
			TraceExporter:  "none",
			MetricsEnabled: true,
			JobName:        "marketpulse_etl",
		},
	}
}
