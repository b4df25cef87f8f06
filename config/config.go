package config

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

type IMAPConfig struct {
	Server         string `toml:"server"`
	Port           int    `toml:"port"`
	Username       string `toml:"username"`
	Password       string `toml:"password"`
	Folder         string `toml:"folder"`
	FetchLimit     uint32 `toml:"fetch_limit"`
	FetchPerMinute int    `toml:"fetch_per_minute"` // throttle against server limits
}

type DetectorConfig struct {
	MinSubjectLength int  `toml:"min_subject_length"` // floor for subject-fallback grouping
	SubjectFallback  bool `toml:"subject_fallback"`
}

type CacheConfig struct {
	Folder     string `toml:"folder"`
	TTLMinutes int    `toml:"ttl_minutes"`
}

type StorageConfig struct {
	Folder string `toml:"folder"`
}

type ReportConfig struct {
	Locale string `toml:"locale"` // "en" or "ko"
}

type LogConfig struct {
	Level string `toml:"level"`
}

type Config struct {
	IMAP     IMAPConfig     `toml:"imap"`
	Detector DetectorConfig `toml:"detector"`
	Cache    CacheConfig    `toml:"cache"`
	Storage  StorageConfig  `toml:"storage"`
	Report   ReportConfig   `toml:"report"`
	Log      LogConfig      `toml:"log"`
}

func LoadConfig(filepath string) (*Config, error) {
	var config Config

	// Set default values
	config.IMAP.Port = 993
	config.IMAP.Folder = "INBOX"
	config.IMAP.FetchLimit = 200
	config.IMAP.FetchPerMinute = 60
	config.Detector.MinSubjectLength = 5
	config.Detector.SubjectFallback = true
	config.Cache.TTLMinutes = 15
	config.Storage.Folder = "./data"
	config.Report.Locale = "en"
	config.Log.Level = "info"

	// Load config file
	_, err := toml.DecodeFile(filepath, &config)
	if err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}

	return &config, nil
}

// Validate checks the loaded values for mistakes the pipeline cannot
// recover from at runtime.
func (c *Config) Validate() error {
	if c.Detector.MinSubjectLength < 1 {
		return fmt.Errorf("detector min_subject_length must be at least 1, got %d", c.Detector.MinSubjectLength)
	}
	if c.IMAP.FetchPerMinute < 1 {
		return fmt.Errorf("imap fetch_per_minute must be at least 1, got %d", c.IMAP.FetchPerMinute)
	}
	if c.IMAP.Port < 1 || c.IMAP.Port > 65535 {
		return fmt.Errorf("imap port %d out of range", c.IMAP.Port)
	}
	return nil
}
