package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/barnettlynn/mfkeytools/pkg/mfkey"
)

type ValidationMode int

const (
	ValidationFull ValidationMode = iota
	// ValidationConfirm also requires a reader for key confirmation.
	ValidationConfirm
)

type Config struct {
	Nonces  NoncesConfig  `yaml:"nonces"`
	Dicts   DictsConfig   `yaml:"dicts"`
	Search  SearchConfig  `yaml:"search"`
	Runtime RuntimeConfig `yaml:"runtime"`
}

type NoncesConfig struct {
	Mfkey32Log string `yaml:"mfkey32_log"`
	NestedLog  string `yaml:"nested_log"`
}

type DictsConfig struct {
	System        string `yaml:"system"`
	User          string `yaml:"user"`
	CandidatesDir string `yaml:"candidates_dir"`
}

// SearchConfig overrides the default search budget. Unset fields keep
// their defaults.
type SearchConfig struct {
	MSBLimit        *int    `yaml:"msb_limit"`
	BucketCapacity  *int    `yaml:"bucket_capacity"`
	PollInterval    *int    `yaml:"poll_interval"`
	RoundETASeconds *int    `yaml:"round_eta_seconds"`
	TotalETASeconds *int    `yaml:"total_eta_seconds"`
	MemoryLimit     *uint64 `yaml:"memory_limit"`
}

type RuntimeConfig struct {
	ReaderIndex     *int `yaml:"reader_index"`
	CardWaitSeconds *int `yaml:"card_wait_seconds"`
}

func Load(path string) (*Config, error) {
	return LoadWithMode(path, ValidationFull)
}

func LoadWithMode(path string, mode ValidationMode) (*Config, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(content))
	dec.KnownFields(true)

	var cfg Config
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parse config yaml: %w", err)
	}
	cfg.resolvePaths(path)
	if err := cfg.ValidateWithMode(mode); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	return c.ValidateWithMode(ValidationFull)
}

func (c *Config) ValidateWithMode(mode ValidationMode) error {
	if err := c.validateCommon(); err != nil {
		return err
	}

	switch mode {
	case ValidationFull:
		return nil
	case ValidationConfirm:
		return c.validateConfirmMode()
	default:
		return fmt.Errorf("unsupported validation mode: %d", mode)
	}
}

func (c *Config) validateCommon() error {
	if strings.TrimSpace(c.Nonces.Mfkey32Log) == "" && strings.TrimSpace(c.Nonces.NestedLog) == "" {
		return fmt.Errorf("config.nonces needs mfkey32_log or nested_log")
	}
	if strings.TrimSpace(c.Dicts.User) == "" {
		return fmt.Errorf("config.dicts.user is required")
	}
	if c.Dicts.System != "" {
		if err := validateReadableFile(c.Dicts.System, "config.dicts.system"); err != nil {
			return err
		}
	}
	if err := c.Budget().Validate(); err != nil {
		return fmt.Errorf("config.search: %w", err)
	}
	if c.Search.MSBLimit != nil && *c.Search.MSBLimit < 2 {
		return fmt.Errorf("config.search.msb_limit must be >= 2")
	}
	return nil
}

func (c *Config) validateConfirmMode() error {
	if c.Runtime.ReaderIndex == nil {
		return fmt.Errorf("config.runtime.reader_index is required")
	}
	if *c.Runtime.ReaderIndex < 0 {
		return fmt.Errorf("config.runtime.reader_index must be >= 0")
	}
	if c.Runtime.CardWaitSeconds != nil && *c.Runtime.CardWaitSeconds < 0 {
		return fmt.Errorf("config.runtime.card_wait_seconds must be >= 0")
	}
	return nil
}

// Budget is the default search budget with the configured overrides.
func (c *Config) Budget() mfkey.Budget {
	b := mfkey.DefaultBudget()
	s := c.Search
	if s.MSBLimit != nil {
		b.MSBLimit = *s.MSBLimit
	}
	if s.BucketCapacity != nil {
		b.BucketCapacity = *s.BucketCapacity
	}
	if s.PollInterval != nil {
		b.PollInterval = *s.PollInterval
	}
	if s.RoundETASeconds != nil {
		b.RoundETA = time.Duration(*s.RoundETASeconds) * time.Second
	}
	if s.TotalETASeconds != nil {
		b.TotalETA = time.Duration(*s.TotalETASeconds) * time.Second
	}
	return b
}

// Memory is the probe searches are sized against: a fixed limit when one
// is configured, the runtime otherwise.
func (c *Config) Memory() mfkey.MemoryProbe {
	if c.Search.MemoryLimit != nil && *c.Search.MemoryLimit > 0 {
		return mfkey.FixedMemory(*c.Search.MemoryLimit)
	}
	return mfkey.RuntimeMemory
}

// CardWait is how long confirmation waits for a card.
func (c *Config) CardWait() time.Duration {
	if c.Runtime.CardWaitSeconds == nil {
		return 10 * time.Second
	}
	return time.Duration(*c.Runtime.CardWaitSeconds) * time.Second
}

func (c *Config) resolvePaths(configPath string) {
	configDir := filepath.Dir(configPath)
	c.Nonces.Mfkey32Log = resolvePath(configDir, c.Nonces.Mfkey32Log)
	c.Nonces.NestedLog = resolvePath(configDir, c.Nonces.NestedLog)
	c.Dicts.System = resolvePath(configDir, c.Dicts.System)
	c.Dicts.User = resolvePath(configDir, c.Dicts.User)
	c.Dicts.CandidatesDir = resolvePath(configDir, c.Dicts.CandidatesDir)
	if c.Dicts.CandidatesDir == "" && c.Dicts.User != "" {
		c.Dicts.CandidatesDir = filepath.Dir(c.Dicts.User)
	}
}

func resolvePath(baseDir, path string) string {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" || filepath.IsAbs(trimmed) {
		return trimmed
	}
	return filepath.Clean(filepath.Join(baseDir, trimmed))
}

func validateReadableFile(path string, field string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%s must point to a file, got directory", field)
	}
	return nil
}
