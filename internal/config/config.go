package config

import (
	stderrors "errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"gorla/internal/audit"
	"gorla/internal/errors"
	"gorla/internal/sprt"
)

// Config represents the complete verifier configuration
type Config struct {
	Audit    AuditConfig  `yaml:"audit"`
	Input    InputConfig  `yaml:"input"`
	Ledger   LedgerConfig `yaml:"ledger"`
	LogLevel string       `yaml:"log_level" validate:"omitempty,oneof=error warn info debug trace"`
}

// AuditConfig holds the audit parameters
type AuditConfig struct {
	RiskLimit      float64 `yaml:"risk_limit" validate:"gt=0,lt=1"`
	PValue         float64 `yaml:"p_value" validate:"gte=0"`
	Winners        int     `yaml:"winners" validate:"min=1"`
	SocialChoice   string  `yaml:"social_choice" validate:"required,oneof=plurality super dhondt"`
	Type           string  `yaml:"type" validate:"required,oneof=ballot-polling batch-comparison"`
	SecurityFactor float64 `yaml:"security_factor" validate:"gt=0,lte=1"`
	Workers        int     `yaml:"workers" validate:"gte=0"`
	// Rounds verifies each recount file as its own round
	Rounds bool `yaml:"rounds"`
}

// InputConfig holds the vote table locations
type InputConfig struct {
	Preliminary string `yaml:"preliminary" validate:"required"`
	RecountDir  string `yaml:"recount_dir" validate:"required"`
	Sheet       string `yaml:"sheet"`
}

// LedgerConfig holds the optional audit ledger connection
type LedgerConfig struct {
	URL    string `yaml:"url"`
	Driver string `yaml:"driver" validate:"omitempty,oneof=postgres sqlite"`
}

// Default returns the configuration before any source is applied
func Default() *Config {
	return &Config{
		Audit: AuditConfig{
			Winners:        1,
			SecurityFactor: sprt.DefaultSecurityFactor,
		},
		Input:    InputConfig{Sheet: "Sheet1"},
		LogLevel: "info",
	}
}

// Load reads .env, the environment and then the optional YAML file at path.
// Later sources override earlier ones. The result is not validated, so
// callers can apply flag overrides before calling Validate.
func Load(path string) (*Config, error) {
	// a missing .env is not an error
	_ = godotenv.Load()

	config := Default()
	if err := config.loadEnv(); err != nil {
		return nil, errors.Wrap(err, "failed to load environment configuration")
	}

	if path != "" {
		if err := config.loadFile(path); err != nil {
			return nil, err
		}
	}
	return config, nil
}

func (c *Config) loadEnv() error {
	var err error
	if c.Audit.RiskLimit, err = getEnvFloatOrDefault("RLA_RISK_LIMIT", c.Audit.RiskLimit); err != nil {
		return err
	}
	if c.Audit.PValue, err = getEnvFloatOrDefault("RLA_PVALUE", c.Audit.PValue); err != nil {
		return err
	}
	if c.Audit.Winners, err = getEnvIntOrDefault("RLA_WINNERS", c.Audit.Winners); err != nil {
		return err
	}
	if c.Audit.Workers, err = getEnvIntOrDefault("RLA_WORKERS", c.Audit.Workers); err != nil {
		return err
	}
	if c.Audit.SecurityFactor, err = getEnvFloatOrDefault("RLA_SECURITY_FACTOR", c.Audit.SecurityFactor); err != nil {
		return err
	}
	if c.Audit.Rounds, err = getEnvBoolOrDefault("RLA_ROUNDS", c.Audit.Rounds); err != nil {
		return err
	}

	c.Audit.SocialChoice = getEnvOrDefault("RLA_SOCIAL_CHOICE", c.Audit.SocialChoice)
	c.Audit.Type = getEnvOrDefault("RLA_AUDIT_TYPE", c.Audit.Type)
	c.Input.Preliminary = getEnvOrDefault("RLA_PRELIMINARY", c.Input.Preliminary)
	c.Input.RecountDir = getEnvOrDefault("RLA_RECOUNT_DIR", c.Input.RecountDir)
	c.Input.Sheet = getEnvOrDefault("XLSX_SHEET", c.Input.Sheet)
	c.Ledger.URL = getEnvOrDefault("LEDGER_DATABASE_URL", c.Ledger.URL)
	c.Ledger.Driver = getEnvOrDefault("LEDGER_DRIVER", c.Ledger.Driver)
	c.LogLevel = getEnvOrDefault("LOG_LEVEL", c.LogLevel)
	return nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.IOError(fmt.Sprintf("failed to read config file %s", path), err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return errors.Wrapf(errors.ConfigInvalid(err.Error()), "failed to parse config file %s", path)
	}
	return nil
}

// Params converts the audit section into audit parameters
func (c *Config) Params() (audit.Params, error) {
	auditType, err := audit.ParseAuditType(c.Audit.Type)
	if err != nil {
		return audit.Params{}, errors.WithCode(errors.CodeConfigInvalid, err)
	}
	choice, err := audit.ParseSocialChoice(c.Audit.SocialChoice)
	if err != nil {
		return audit.Params{}, errors.WithCode(errors.CodeConfigInvalid, err)
	}
	return audit.Params{
		RiskLimit:      c.Audit.RiskLimit,
		Type:           auditType,
		SocialChoice:   choice,
		Winners:        c.Audit.Winners,
		SecurityFactor: c.Audit.SecurityFactor,
		Workers:        c.Audit.Workers,
	}, nil
}

var validate = validator.New()

// Validate normalises the enumerations and checks every field
func (c *Config) Validate() error {
	if choice, err := audit.ParseSocialChoice(c.Audit.SocialChoice); err == nil {
		c.Audit.SocialChoice = string(choice)
	}
	if auditType, err := audit.ParseAuditType(c.Audit.Type); err == nil {
		c.Audit.Type = string(auditType)
	}
	c.LogLevel = strings.ToLower(c.LogLevel)

	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if !stderrors.As(err, &verrs) {
			return errors.ConfigInvalid(err.Error())
		}
		msgs := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			msgs = append(msgs, fmt.Sprintf("%s fails %s=%s (got %v)", fe.Namespace(), fe.Tag(), fe.Param(), fe.Value()))
		}
		return errors.ConfigInvalid(strings.Join(msgs, "; "))
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) (int, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue, nil
	}
	intValue, err := strconv.Atoi(value)
	if err != nil {
		return 0, errors.ConfigInvalid(fmt.Sprintf("%s=%q is not an integer", key, value))
	}
	return intValue, nil
}

func getEnvFloatOrDefault(key string, defaultValue float64) (float64, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue, nil
	}
	floatValue, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, errors.ConfigInvalid(fmt.Sprintf("%s=%q is not a number", key, value))
	}
	return floatValue, nil
}

func getEnvBoolOrDefault(key string, defaultValue bool) (bool, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue, nil
	}
	boolValue, err := strconv.ParseBool(value)
	if err != nil {
		return false, errors.ConfigInvalid(fmt.Sprintf("%s=%q is not a boolean", key, value))
	}
	return boolValue, nil
}
