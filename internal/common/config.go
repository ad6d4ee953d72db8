package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/joseph-ayodele/matcert-extractor/constants"
)

// Config holds all application configuration
type Config struct {
	Database DatabaseConfig `toml:"database"`
	Server   ServerConfig   `toml:"server"`
	OCR      OCRConfig      `toml:"ocr"`
	Parser   ParserConfig   `toml:"parser"`
	Export   ExportConfig   `toml:"export"`
	Logging  LoggingConfig  `toml:"logging"`
}

// DatabaseConfig holds database-related configuration.
// An empty DSN disables persistence.
type DatabaseConfig struct {
	DSN              string   `toml:"dsn"`
	MaxConns         int32    `toml:"max_conns"`
	MinConns         int32    `toml:"min_conns"`
	MaxConnLifetime  Duration `toml:"max_conn_lifetime"`
	MaxConnIdleTime  Duration `toml:"max_conn_idle_time"`
	DialTimeout      Duration `toml:"dial_timeout"`
	StatementTimeout Duration `toml:"statement_timeout"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	GRPCAddr   string   `toml:"grpc_addr"`
	WatchDir   string   `toml:"watch_dir"`
	Workers    int      `toml:"workers"`
	JobTimeout Duration `toml:"job_timeout"`
}

// OCRConfig holds OCR-related configuration
type OCRConfig struct {
	Engine        string   `toml:"engine"` // "deepseek" | "tesseract"
	DPI           int      `toml:"dpi"`
	MaxPages      int      `toml:"max_pages"`
	FixRotation   bool     `toml:"fix_rotation"`
	ImagesDir     string   `toml:"images_dir"`
	KeepImages    bool     `toml:"keep_images"`
	TesseractLang string   `toml:"tesseract_lang"`
	TessdataDir   string   `toml:"tessdata_dir"`
	Model         string   `toml:"model"`
	BaseURL       string   `toml:"base_url"`
	APIKey        string   `toml:"api_key"`
	Prompt        string   `toml:"prompt"`
	BaseSize      int      `toml:"base_size"`
	ImageSize     int      `toml:"image_size"`
	Timeout       Duration `toml:"timeout"`
}

// ParserConfig holds the table heuristics of the composition parser.
type ParserConfig struct {
	HeaderMinElements   int  `toml:"header_min_elements"`
	SkipRepeatedHeaders bool `toml:"skip_repeated_headers"`
	AlignLabelColumn    bool `toml:"align_label_column"`
}

// ExportConfig holds output-related configuration
type ExportConfig struct {
	OutputDir   string `toml:"output_dir"`
	Format      string `toml:"format"`
	SaveOCRText bool   `toml:"save_ocr_text"`
}

// LoggingConfig holds logger configuration
type LoggingConfig struct {
	Level  string `toml:"level"`  // debug | info | warn | error
	Format string `toml:"format"` // json | text
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			MaxConns:        10,
			MinConns:        1,
			MaxConnLifetime: Duration(30 * time.Minute),
			MaxConnIdleTime: Duration(5 * time.Minute),
			DialTimeout:     Duration(3 * time.Second),
		},
		Server: ServerConfig{
			GRPCAddr:   ":8080",
			Workers:    2,
			JobTimeout: Duration(10 * time.Minute),
		},
		OCR: OCRConfig{
			Engine:        "deepseek",
			DPI:           400,
			FixRotation:   true,
			ImagesDir:     "./images",
			TesseractLang: "eng+deu",
			Model:         "deepseek-ai/DeepSeek-OCR",
			BaseURL:       "http://localhost:8000/v1",
			Prompt:        "<image>\nFree OCR.",
			BaseSize:      1024,
			ImageSize:     640,
			Timeout:       Duration(5 * time.Minute),
		},
		Parser: ParserConfig{
			HeaderMinElements:   3,
			SkipRepeatedHeaders: true,
			AlignLabelColumn:    true,
		},
		Export: ExportConfig{
			OutputDir:   "./output",
			Format:      string(constants.FormatCSV),
			SaveOCRText: true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// LoadConfig builds the configuration from defaults, then the optional TOML
// file at path (or $MATCERT_CONFIG when path is empty), then environment
// variables. Later sources win.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		path = os.Getenv("MATCERT_CONFIG")
	}
	if path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return NewAppError(CodeConfig, "read config file", err)
	}
	if err := toml.Unmarshal(b, c); err != nil {
		return NewAppError(CodeConfig, fmt.Sprintf("parse config file %s", path), err)
	}
	return nil
}

func (c *Config) applyEnv() {
	d := &c.Database
	d.DSN = getEnv("DB_URL", d.DSN)
	d.MaxConns = getEnvAsInt32("DB_MAX_CONNS", d.MaxConns)
	d.MinConns = getEnvAsInt32("DB_MIN_CONNS", d.MinConns)
	d.MaxConnLifetime = getEnvAsDuration("DB_MAX_CONN_LIFETIME", d.MaxConnLifetime)
	d.MaxConnIdleTime = getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", d.MaxConnIdleTime)
	d.DialTimeout = getEnvAsDuration("DB_DIAL_TIMEOUT", d.DialTimeout)
	d.StatementTimeout = getEnvAsDuration("DB_STATEMENT_TIMEOUT", d.StatementTimeout)

	s := &c.Server
	s.GRPCAddr = getEnv("GRPC_ADDR", s.GRPCAddr)
	s.WatchDir = getEnv("WATCH_DIR", s.WatchDir)
	s.Workers = getEnvAsInt("WORKERS", s.Workers)
	s.JobTimeout = getEnvAsDuration("JOB_TIMEOUT", s.JobTimeout)

	o := &c.OCR
	o.Engine = getEnv("OCR_ENGINE", o.Engine)
	o.DPI = getEnvAsInt("OCR_DPI", o.DPI)
	o.MaxPages = getEnvAsInt("OCR_MAX_PAGES", o.MaxPages)
	o.FixRotation = getEnvAsBool("OCR_FIX_ROTATION", o.FixRotation)
	o.ImagesDir = getEnv("OCR_IMAGES_DIR", o.ImagesDir)
	o.KeepImages = getEnvAsBool("OCR_KEEP_IMAGES", o.KeepImages)
	o.TesseractLang = getEnv("TESSERACT_LANG", o.TesseractLang)
	o.TessdataDir = getEnv("TESSDATA_PREFIX", o.TessdataDir)
	o.Model = getEnv("OCR_MODEL", o.Model)
	o.BaseURL = getEnv("OCR_BASE_URL", o.BaseURL)
	o.APIKey = getEnv("OCR_API_KEY", o.APIKey)
	o.BaseSize = getEnvAsInt("OCR_BASE_SIZE", o.BaseSize)
	o.ImageSize = getEnvAsInt("OCR_IMAGE_SIZE", o.ImageSize)
	o.Timeout = getEnvAsDuration("OCR_TIMEOUT", o.Timeout)

	p := &c.Parser
	p.HeaderMinElements = getEnvAsInt("PARSER_HEADER_MIN_ELEMENTS", p.HeaderMinElements)
	p.SkipRepeatedHeaders = getEnvAsBool("PARSER_SKIP_REPEATED_HEADERS", p.SkipRepeatedHeaders)
	p.AlignLabelColumn = getEnvAsBool("PARSER_ALIGN_LABEL_COLUMN", p.AlignLabelColumn)

	e := &c.Export
	e.OutputDir = getEnv("OUTPUT_DIR", e.OutputDir)
	e.Format = getEnv("EXPORT_FORMAT", e.Format)
	e.SaveOCRText = getEnvAsBool("SAVE_OCR_TEXT", e.SaveOCRText)

	l := &c.Logging
	l.Level = getEnv("LOG_LEVEL", l.Level)
	l.Format = getEnv("LOG_FORMAT", l.Format)
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue Duration) Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return Duration(duration)
		}
	}
	return defaultValue
}

// Duration is a time.Duration that reads from TOML strings such as "30s".
type Duration time.Duration

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	v := NewValidator().
		Field("ocr.engine", c.OCR.Engine, OneOf("deepseek", "tesseract")).
		Field("ocr.dpi", c.OCR.DPI, IntRange(72, 1200)).
		Field("parser.header_min_elements", c.Parser.HeaderMinElements, IntRange(1, 50)).
		Field("export.format", strings.ToLower(c.Export.Format), OneOf(constants.FormatsAsStringSlice()...)).
		Field("logging.format", c.Logging.Format, OneOf("json", "text"))
	if c.OCR.Engine == "deepseek" {
		v.Field("ocr.base_url", c.OCR.BaseURL, Required)
	}
	if v.HasErrors() {
		return NewAppError(CodeConfig, v.ErrorMessage(), ErrInvalidInput)
	}
	return nil
}
