package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// FileName is the config file name inside a ledger directory.
const FileName = "schoolledger.yaml"

// Storage drivers.
const (
	DriverJSON     = "json"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config represents the top-level schoolledger.yaml configuration.
type Config struct {
	School    SchoolConfig    `yaml:"school"`
	Fiscal    FiscalConfig    `yaml:"fiscal"`
	Storage   StorageConfig   `yaml:"storage"`
	API       APIConfig       `yaml:"api"`
	Broadcast BroadcastConfig `yaml:"broadcast,omitempty"`
	Git       GitConfig       `yaml:"git"`
}

// SchoolConfig identifies the school whose books these are.
type SchoolConfig struct {
	ID            string `yaml:"id"`
	Name          string `yaml:"name"`
	ChartTemplate string `yaml:"chart_template"`
}

// FiscalConfig selects the active financial year.
type FiscalConfig struct {
	AcademicYear string `yaml:"academic_year"` // e.g. "2025-2026"
	YearStart    string `yaml:"year_start"`    // "MM-DD" format, e.g. "09-01"
}

// StorageConfig selects the document store.
type StorageConfig struct {
	Driver      string `yaml:"driver"`                 // json, sqlite, postgres, memory
	Path        string `yaml:"path,omitempty"`         // directory (json) or file (sqlite), relative to the ledger dir
	DatabaseURL string `yaml:"database_url,omitempty"` // postgres
}

// APIConfig controls `schoolledger serve`.
type APIConfig struct {
	Addr           string   `yaml:"addr"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	JWTSecret      string   `yaml:"jwt_secret,omitempty"` // empty = mutations unauthenticated
}

// BroadcastConfig enables cross-process change events over Kafka.
type BroadcastConfig struct {
	KafkaBrokers []string `yaml:"kafka_brokers,omitempty"`
	KafkaTopic   string   `yaml:"kafka_topic,omitempty"`
	KafkaGroup   string   `yaml:"kafka_group,omitempty"`
}

// GitConfig controls git snapshots of the json store.
type GitConfig struct {
	AutoCommit  bool   `yaml:"auto_commit"`
	AuthorName  string `yaml:"author_name"`
	AuthorEmail string `yaml:"author_email"`
}

// Load reads a schoolledger.yaml file from disk.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return &cfg, nil
}

// Save writes a Config to a YAML file.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// Default returns a Config with sensible defaults for a new ledger.
func Default(schoolName, schoolID, academicYear string) *Config {
	return &Config{
		School: SchoolConfig{
			ID:            schoolID,
			Name:          schoolName,
			ChartTemplate: "school",
		},
		Fiscal: FiscalConfig{
			AcademicYear: academicYear,
			YearStart:    "09-01",
		},
		Storage: StorageConfig{
			Driver: DriverJSON,
			Path:   "data",
		},
		API: APIConfig{
			Addr:           ":8080",
			AllowedOrigins: []string{"*"},
		},
		Git: GitConfig{
			AutoCommit:  true,
			AuthorName:  "SchoolLedger",
			AuthorEmail: "ledger@schoolpay.local",
		},
	}
}

// LoadEnvFile loads KEY=VALUE pairs from path into the process environment
// without overriding variables already set. A missing file is not an error.
func LoadEnvFile(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overrides cfg with SCHOOLLEDGER_* environment variables.
func ApplyEnv(cfg *Config) {
	setString(&cfg.School.ID, "SCHOOLLEDGER_SCHOOL_ID")
	setString(&cfg.Fiscal.AcademicYear, "SCHOOLLEDGER_ACADEMIC_YEAR")
	setString(&cfg.Storage.Driver, "SCHOOLLEDGER_STORAGE_DRIVER")
	setString(&cfg.Storage.Path, "SCHOOLLEDGER_STORAGE_PATH")
	setString(&cfg.Storage.DatabaseURL, "SCHOOLLEDGER_DATABASE_URL")
	setString(&cfg.API.Addr, "SCHOOLLEDGER_API_ADDR")
	setString(&cfg.API.JWTSecret, "SCHOOLLEDGER_JWT_SECRET")
	setList(&cfg.API.AllowedOrigins, "SCHOOLLEDGER_ALLOWED_ORIGINS")
	setList(&cfg.Broadcast.KafkaBrokers, "SCHOOLLEDGER_KAFKA_BROKERS")
	setString(&cfg.Broadcast.KafkaTopic, "SCHOOLLEDGER_KAFKA_TOPIC")
}

// Validate reports configuration that cannot work.
func (c *Config) Validate() error {
	if c.School.ID == "" {
		return errors.New("school.id is required")
	}
	if c.Fiscal.AcademicYear == "" {
		return errors.New("fiscal.academic_year is required")
	}
	switch c.Storage.Driver {
	case DriverJSON, DriverSQLite:
		if c.Storage.Path == "" {
			return fmt.Errorf("storage.path is required for driver %q", c.Storage.Driver)
		}
	case DriverPostgres:
		if c.Storage.DatabaseURL == "" {
			return errors.New("storage.database_url is required for driver \"postgres\"")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setList(dst *[]string, key string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	*dst = out
}
