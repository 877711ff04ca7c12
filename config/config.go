package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/georgepadayatti/pdfstitch/pdf/assemble"
)

// Common errors
var (
	ErrUnexpectedField   = errors.New("unexpected field in configuration")
	ErrInvalidConfigType = errors.New("configuration must be a dictionary")
)

// ConfigError represents a configuration error with context.
type ConfigError struct {
	Field   string
	Message string
	Err     error
}

func (e *ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("config error in '%s': %s", e.Field, e.Message)
	}
	return fmt.Sprintf("config error: %s", e.Message)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// NewConfigError creates a new ConfigError.
func NewConfigError(field, message string) *ConfigError {
	return &ConfigError{Field: field, Message: message}
}

// StitchConfig contains the pipeline settings.
type StitchConfig struct {
	// Policy is the page order: reverse-interleave or interleave.
	Policy string `yaml:"policy" json:"policy,omitempty"`

	// Strict makes references to missing objects a read error.
	Strict bool `yaml:"strict" json:"strict"`

	// Compress flate-encodes unfiltered streams in the output.
	Compress bool `yaml:"compress" json:"compress"`

	// ParallelParse reads both inputs concurrently.
	ParallelParse bool `yaml:"parallel-parse" json:"parallel_parse"`

	// Producer is written to the output document information.
	Producer string `yaml:"producer" json:"producer,omitempty"`
}

// SetDefaults sets default values for the stitch configuration.
func (c *StitchConfig) SetDefaults() {
	if c.Policy == "" {
		c.Policy = assemble.ReverseInterleave.Name()
	}
	if c.Producer == "" {
		c.Producer = assemble.DefaultProducer
	}
}

// Validate validates the stitch configuration.
func (c *StitchConfig) Validate() error {
	if _, err := assemble.PolicyByName(c.Policy); err != nil {
		return &ConfigError{
			Field:   "stitch.policy",
			Message: fmt.Sprintf("'%s' is not one of %s", c.Policy, strings.Join(assemble.PolicyNames(), ", ")),
			Err:     err,
		}
	}
	return nil
}

// PolicyValue returns the assembly policy named by Policy.
func (c *StitchConfig) PolicyValue() (assemble.Policy, error) {
	return assemble.PolicyByName(c.Policy)
}

var logLevels = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level is the log level (debug, info, warn, error).
	Level string `yaml:"level" json:"level,omitempty"`

	// Format is the log format (text, json).
	Format string `yaml:"format" json:"format,omitempty"`

	// Output is the log output (stdout, stderr, or file path).
	Output string `yaml:"output" json:"output,omitempty"`
}

// SetDefaults sets default values for logging configuration.
func (c *LoggingConfig) SetDefaults() {
	if c.Level == "" {
		c.Level = "info"
	}
	if c.Format == "" {
		c.Format = "text"
	}
	if c.Output == "" {
		c.Output = "stderr"
	}
}

// Validate validates the logging configuration.
func (c *LoggingConfig) Validate() error {
	if _, ok := logLevels[strings.ToLower(c.Level)]; !ok {
		return NewConfigError("logging.level", fmt.Sprintf("'%s' is not a valid log level", c.Level))
	}
	switch c.Format {
	case "text", "json":
	default:
		return NewConfigError("logging.format", fmt.Sprintf("'%s' is not a valid log format", c.Format))
	}
	return nil
}

// SlogLevel returns Level as a slog level, info if it is not recognized.
func (c *LoggingConfig) SlogLevel() slog.Level {
	if level, ok := logLevels[strings.ToLower(c.Level)]; ok {
		return level
	}
	return slog.LevelInfo
}

// AppConfig contains the complete application configuration.
type AppConfig struct {
	// Stitch contains the pipeline settings.
	Stitch *StitchConfig `yaml:"stitch" json:"stitch,omitempty"`

	// Logging contains logging configuration.
	Logging *LoggingConfig `yaml:"logging" json:"logging,omitempty"`
}

// expectedKeys lists the accepted keys of each section.
var expectedKeys = map[string][]string{
	"":        {"stitch", "logging"},
	"stitch":  {"policy", "strict", "compress", "parallel-parse", "producer"},
	"logging": {"level", "format", "output"},
}

// DefaultAppConfig returns the configuration used when no file is given.
func DefaultAppConfig() *AppConfig {
	config := &AppConfig{}
	config.SetDefaults()
	return config
}

// SetDefaults fills missing sections and values.
func (c *AppConfig) SetDefaults() {
	if c.Stitch == nil {
		c.Stitch = &StitchConfig{}
	}
	c.Stitch.SetDefaults()
	if c.Logging == nil {
		c.Logging = &LoggingConfig{}
	}
	c.Logging.SetDefaults()
}

// Validate validates every section.
func (c *AppConfig) Validate() error {
	if err := c.Stitch.Validate(); err != nil {
		return err
	}
	return c.Logging.Validate()
}

// LoadAppConfig loads the complete application configuration from a file.
func LoadAppConfig(filename string) (*AppConfig, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return ParseAppConfig(data)
}

// ParseAppConfig parses configuration from YAML data, applies defaults and
// validates it. Keys may use underscores in place of dashes.
func ParseAppConfig(data []byte) (*AppConfig, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	var config AppConfig
	if raw != nil {
		top, ok := raw.(map[string]any)
		if !ok {
			return nil, ErrInvalidConfigType
		}
		normalized, err := normalizeSections(top)
		if err != nil {
			return nil, err
		}
		loaded, err := LoadConfigFromMap(normalized)
		if err != nil {
			return nil, err
		}
		config = *loaded
	}

	config.SetDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// LoadConfigFromMap loads configuration from a map without applying defaults.
func LoadConfigFromMap(data map[string]any) (*AppConfig, error) {
	// Marshal to YAML then unmarshal to struct
	yamlData, err := yaml.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config map: %w", err)
	}
	var config AppConfig
	if err := yaml.Unmarshal(yamlData, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &config, nil
}

func normalizeSections(top map[string]any) (map[string]any, error) {
	out, err := normalizeMap("configuration", "", top)
	if err != nil {
		return nil, err
	}
	for section, value := range out {
		if value == nil {
			continue
		}
		m, ok := value.(map[string]any)
		if !ok {
			return nil, &ConfigError{Field: section, Message: "must be a dictionary", Err: ErrInvalidConfigType}
		}
		if out[section], err = normalizeMap(section, section, m); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func normalizeMap(configName, section string, m map[string]any) (map[string]any, error) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	if err := CheckConfigKeys(configName, expectedKeys[section], keys); err != nil {
		return nil, err
	}

	out := make(map[string]any, len(m))
	for _, k := range keys {
		out[normalizeKey(k)] = m[k]
	}
	return out, nil
}

// CheckConfigKeys checks if all provided keys are valid for a given configuration type.
func CheckConfigKeys(configName string, expectedKeys, suppliedKeys []string) error {
	expectedSet := make(map[string]bool)
	for _, k := range expectedKeys {
		// Normalize to use dashes
		expectedSet[normalizeKey(k)] = true
	}

	var unexpected []string
	for _, k := range suppliedKeys {
		normalized := normalizeKey(k)
		if !expectedSet[normalized] {
			unexpected = append(unexpected, k)
		}
	}

	if len(unexpected) > 0 {
		keyWord := "key"
		if len(unexpected) > 1 {
			keyWord = "keys"
		}
		return fmt.Errorf("%w: unexpected %s in configuration for %s: %s",
			ErrUnexpectedField, keyWord, configName, strings.Join(unexpected, ", "))
	}

	return nil
}

// normalizeKey normalizes a configuration key (underscores to dashes).
func normalizeKey(key string) string {
	return strings.ReplaceAll(key, "_", "-")
}
