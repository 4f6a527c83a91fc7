// =============================================================================
// Ticket Reconciler - Configuration Module
// =============================================================================
//
// This module loads the YAML files the reconciler runs from.
//
// CONFIGURATION FILES:
//   1. Main Config (config.yaml): engine, logging and invoice settings
//   2. Invoice Files (*.yaml): a draft invoice plus an edit script
//
// Job files for the match command are loaded by the processor package, which
// owns the request shape they decode into.
//
// A missing main config file is not an error: every setting has a default.
//
// =============================================================================

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/ginjaninja78/ticket-reconciler/internal/matcher"
)

// =============================================================================
// MAIN CONFIGURATION STRUCTURE
// =============================================================================

// MainConfig holds the global application configuration.
type MainConfig struct {
	// =========================================================================
	// OUTPUT SETTINGS
	// =========================================================================

	// OutputDir is where artifacts land when a job gives no output path.
	// Default: "./output"
	OutputDir string `yaml:"output_dir"`

	// =========================================================================
	// LOGGING SETTINGS
	// =========================================================================

	// LogLevel controls the verbosity of logging.
	// Valid values: "debug", "info", "warn", "error"
	// Default: "info"
	LogLevel string `yaml:"log_level"`

	// LogFormat selects the slog handler.
	// Valid values: "text", "json"
	// Default: "text"
	LogFormat string `yaml:"log_format"`

	// =========================================================================
	// MATCHING SETTINGS
	// =========================================================================

	// MaxConcurrency bounds how many target files are indexed at once.
	// Set to 1 for sequential processing.
	// Default: 4
	MaxConcurrency int `yaml:"max_concurrency"`

	// BatchSize is the number of master rows matched between cancellation
	// checks.
	// Default: 500
	BatchSize int `yaml:"batch_size"`

	// FailurePolicy decides what an unreadable target file does to a run.
	// Valid values: "skip" (record the failure, continue), "abort"
	// Default: "skip"
	FailurePolicy string `yaml:"failure_policy"`

	// KeyNormalizers run on every key part after trim and lower-casing.
	//
	// Example:
	//   key_normalizers:
	//     - type: strip_non_alnum
	//     - type: strip_leading_zeros
	KeyNormalizers []matcher.Action `yaml:"key_normalizers"`

	// =========================================================================
	// INGESTION SETTINGS
	// =========================================================================

	// HeaderScanRows is how many leading rows preview inspects for a header.
	// Default: 10
	HeaderScanRows int `yaml:"header_scan_rows"`

	// CSV holds the settings used when a job names a .csv file.
	CSV CSVSettings `yaml:"csv"`

	// Classifier overrides the built-in header keywords per role.
	Classifier ClassifierSettings `yaml:"classifier"`

	// =========================================================================
	// INVOICE SETTINGS
	// =========================================================================

	Invoice InvoiceSettings `yaml:"invoice"`
}

// CSVSettings contains settings for parsing CSV files.
type CSVSettings struct {
	// Delimiter is the character used to separate fields.
	// Common values: "," (comma), "|" (pipe), "\t" (tab), ";" (semicolon)
	// Default: ","
	Delimiter string `yaml:"delimiter"`

	// Encoding is the character encoding of the file.
	// Valid values: "UTF-8", "ISO-8859-1", "Windows-1252"
	// Default: "UTF-8"
	Encoding string `yaml:"encoding"`
}

// ClassifierSettings holds keyword overrides keyed by role name
// (id, description, quantity, customer, result). Roles left out keep their
// defaults.
type ClassifierSettings struct {
	Keywords map[string][]string `yaml:"keywords"`
}

// InvoiceSettings holds pricing settings.
type InvoiceSettings struct {
	// TaxRate is a fraction, 0.15 for 15%.
	// Default: 0
	TaxRate decimal.Decimal `yaml:"tax_rate"`
}

// =============================================================================
// CONFIGURATION LOADING FUNCTIONS
// =============================================================================

// Default returns a configuration with every default applied.
func Default() *MainConfig {
	var cfg MainConfig
	applyMainConfigDefaults(&cfg)
	return &cfg
}

// LoadMainConfig loads the main configuration from a YAML file. An empty
// path or a file that does not exist yields the defaults.
func LoadMainConfig(configPath string) (*MainConfig, error) {
	if configPath == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(configPath)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config MainConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyMainConfigDefaults(&config)

	if err := validateMainConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// applyMainConfigDefaults sets default values for any unset configuration options.
func applyMainConfigDefaults(config *MainConfig) {
	if config.OutputDir == "" {
		config.OutputDir = "./output"
	}
	if config.LogLevel == "" {
		config.LogLevel = "info"
	}
	if config.LogFormat == "" {
		config.LogFormat = "text"
	}
	if config.MaxConcurrency == 0 {
		config.MaxConcurrency = 4
	}
	if config.BatchSize == 0 {
		config.BatchSize = 500
	}
	if config.FailurePolicy == "" {
		config.FailurePolicy = string(matcher.FailureSkip)
	}
	if config.HeaderScanRows == 0 {
		config.HeaderScanRows = 10
	}
	if config.CSV.Delimiter == "" {
		config.CSV.Delimiter = ","
	}
	if config.CSV.Encoding == "" {
		config.CSV.Encoding = "UTF-8"
	}
}

// validateMainConfig validates the main configuration.
func validateMainConfig(config *MainConfig) error {
	var errs []error

	switch strings.ToLower(config.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log_level %q is not one of debug, info, warn, error", config.LogLevel))
	}
	switch strings.ToLower(config.LogFormat) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log_format %q is not one of text, json", config.LogFormat))
	}
	if _, err := matcher.ParseFailurePolicy(config.FailurePolicy); err != nil {
		errs = append(errs, err)
	}
	if config.MaxConcurrency < 0 {
		errs = append(errs, fmt.Errorf("max_concurrency must not be negative"))
	}
	if config.BatchSize < 0 {
		errs = append(errs, fmt.Errorf("batch_size must not be negative"))
	}
	if config.HeaderScanRows < 0 {
		errs = append(errs, fmt.Errorf("header_scan_rows must not be negative"))
	}
	if len([]rune(config.CSV.Delimiter)) != 1 {
		errs = append(errs, fmt.Errorf("csv.delimiter must be a single character"))
	}
	if config.Invoice.TaxRate.IsNegative() {
		errs = append(errs, fmt.Errorf("invoice.tax_rate must not be negative"))
	}
	if _, err := matcher.NewKeyer(config.KeyNormalizers); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// EngineOptions maps the matching settings onto engine options. The logger
// is left for the caller to set.
func (c *MainConfig) EngineOptions() matcher.Options {
	policy, _ := matcher.ParseFailurePolicy(c.FailurePolicy)
	return matcher.Options{
		Concurrency:   c.MaxConcurrency,
		BatchSize:     c.BatchSize,
		FailurePolicy: policy,
		Normalizers:   c.KeyNormalizers,
	}
}
