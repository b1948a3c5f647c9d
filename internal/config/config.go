// Package config provides persistent configuration for prayerd.
//
// Configuration is stored as JSON at ~/.config/prayerd/config.json
// (XDG-compliant). The merge priority is: CLI flags > PRAYERD_* environment
// (optionally loaded from a .env file) > config file > defaults.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	configDirName  = "prayerd"
	configFileName = "config.json"

	// EnvPrefix prefixes every environment override, e.g. PRAYERD_CITY.
	EnvPrefix = "PRAYERD_"
)

// ValidKeys lists all config keys that can be set via `config set`.
var ValidKeys = []string{
	"provider", "provider_url",
	"city", "country",
	"latitude", "longitude",
	"method", "school",
	"timezone",
	"time_format",
	"language",
	"last_third_offset",
	"store", "cache_dir", "sqlite_path",
	"redis_addr", "redis_password", "redis_db",
	"listen",
	"log_level",
	"mqtt_broker", "mqtt_topic", "mqtt_username", "mqtt_password",
	"telegram_token", "telegram_chat_id",
}

// secretKeys are masked by Show.
var secretKeys = map[string]bool{
	"redis_password": true,
	"mqtt_password":  true,
	"telegram_token": true,
}

// Config holds all user-configurable settings.
// Zero values mean "not set" (use defaults).
type Config struct {
	Provider    string `json:"provider,omitempty"`     // "aladhan" or "year"
	ProviderURL string `json:"provider_url,omitempty"` // base of the year endpoint

	City      string  `json:"city,omitempty"`
	Country   string  `json:"country,omitempty"`
	Latitude  float64 `json:"latitude,omitempty"`
	Longitude float64 `json:"longitude,omitempty"`
	Method    *int    `json:"method,omitempty"` // pointer so we can distinguish "not set" from 0
	School    *int    `json:"school,omitempty"` // pointer so we can distinguish "not set" from 0

	Timezone        string `json:"timezone,omitempty"`
	TimeFormat      string `json:"time_format,omitempty"` // "12h" or "24h"
	Language        string `json:"language,omitempty"`
	LastThirdOffset *int   `json:"last_third_offset,omitempty"`

	Store         string `json:"store,omitempty"` // file, sqlite, redis or memory
	CacheDir      string `json:"cache_dir,omitempty"`
	SQLitePath    string `json:"sqlite_path,omitempty"`
	RedisAddr     string `json:"redis_addr,omitempty"`
	RedisPassword string `json:"redis_password,omitempty"`
	RedisDB       int    `json:"redis_db,omitempty"`

	Listen   string `json:"listen,omitempty"`
	LogLevel string `json:"log_level,omitempty"`

	MQTTBroker     string `json:"mqtt_broker,omitempty"`
	MQTTTopic      string `json:"mqtt_topic,omitempty"`
	MQTTUsername   string `json:"mqtt_username,omitempty"`
	MQTTPassword   string `json:"mqtt_password,omitempty"`
	TelegramToken  string `json:"telegram_token,omitempty"`
	TelegramChatID int64  `json:"telegram_chat_id,omitempty"`
}

// Defaults returns a Config with all default values applied.
func Defaults() Config {
	method := -1
	school := -1
	return Config{
		Provider:   "aladhan",
		Method:     &method,
		School:     &school,
		TimeFormat: "24h",
		Language:   "en",
		Store:      "file",
		Listen:     "127.0.0.1:8787",
		LogLevel:   "info",
		MQTTTopic:  "prayerd",
	}
}

// Dir returns the config directory path.
// It respects $XDG_CONFIG_HOME if set, otherwise uses ~/.config/.
func Dir() (string, error) {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("cannot determine home directory: %w", err)
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, configDirName), nil
}

// Path returns the full path to the config file.
func Path() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, configFileName), nil
}

// Load reads the config file from disk.
// If the file does not exist, it returns an empty Config (not an error).
func Load() (*Config, error) {
	path, err := Path()
	if err != nil {
		return nil, err
	}
	return LoadFrom(path)
}

// LoadFrom reads the config from a specific file path.
func LoadFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", path, err)
	}
	return &cfg, nil
}

// Save writes the config to disk, creating the directory if needed.
func (c *Config) Save() error {
	path, err := Path()
	if err != nil {
		return err
	}
	return c.SaveTo(path)
}

// SaveTo writes the config to a specific file path, owner-readable only.
func (c *Config) SaveTo(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cannot create config directory %s: %w", dir, err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	data = append(data, '\n')

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Reset deletes the config file.
func Reset() error {
	path, err := Path()
	if err != nil {
		return err
	}
	return ResetAt(path)
}

// ResetAt deletes the config file at a specific path.
func ResetAt(path string) error {
	err := os.Remove(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete config file: %w", err)
	}
	return nil
}

// LoadEnvFile loads KEY=VALUE pairs from path into the process environment
// without overriding variables already set. A missing file is not an error.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

// EnvName returns the environment variable overriding key.
func EnvName(key string) string {
	return EnvPrefix + strings.ToUpper(key)
}

// ApplyEnv sets every key that has a non-empty PRAYERD_* variable.
func (c *Config) ApplyEnv() error {
	for _, key := range ValidKeys {
		v, ok := os.LookupEnv(EnvName(key))
		if !ok || v == "" {
			continue
		}
		if err := c.Set(key, v); err != nil {
			return fmt.Errorf("%s: %w", EnvName(key), err)
		}
	}
	return nil
}

// WithDefaults returns a copy of c with unset fields taken from Defaults.
func (c Config) WithDefaults() Config {
	d := Defaults()
	if c.Provider == "" {
		c.Provider = d.Provider
	}
	if c.Method == nil {
		c.Method = d.Method
	}
	if c.School == nil {
		c.School = d.School
	}
	if c.TimeFormat == "" {
		c.TimeFormat = d.TimeFormat
	}
	if c.Language == "" {
		c.Language = d.Language
	}
	if c.Store == "" {
		c.Store = d.Store
	}
	if c.Listen == "" {
		c.Listen = d.Listen
	}
	if c.LogLevel == "" {
		c.LogLevel = d.LogLevel
	}
	if c.MQTTTopic == "" {
		c.MQTTTopic = d.MQTTTopic
	}
	return c
}

// Set sets a config key to the given value.
// It validates the key name and parses the value into the correct type.
func (c *Config) Set(key, value string) error {
	switch key {
	case "provider":
		if value != "aladhan" && value != "year" {
			return fmt.Errorf("invalid provider %q: must be \"aladhan\" or \"year\"", value)
		}
		c.Provider = value
	case "provider_url":
		c.ProviderURL = value
	case "city":
		c.City = value
	case "country":
		c.Country = value
	case "latitude":
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid latitude %q: must be a number", value)
		}
		if v < -90 || v > 90 {
			return fmt.Errorf("invalid latitude %q: must be between -90 and 90", value)
		}
		c.Latitude = v
	case "longitude":
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid longitude %q: must be a number", value)
		}
		if v < -180 || v > 180 {
			return fmt.Errorf("invalid longitude %q: must be between -180 and 180", value)
		}
		c.Longitude = v
	case "method":
		v, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid method %q: must be an integer", value)
		}
		if v < 0 || v > 23 {
			return fmt.Errorf("invalid method %q: must be between 0 and 23", value)
		}
		c.Method = &v
	case "school":
		v, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid school %q: must be an integer", value)
		}
		if v != 0 && v != 1 {
			return fmt.Errorf("invalid school %q: must be 0 (Shafi) or 1 (Hanafi)", value)
		}
		c.School = &v
	case "timezone":
		if _, err := time.LoadLocation(value); err != nil {
			return fmt.Errorf("invalid timezone %q: %w", value, err)
		}
		c.Timezone = value
	case "time_format":
		if value != "12h" && value != "24h" {
			return fmt.Errorf("invalid time_format %q: must be \"12h\" or \"24h\"", value)
		}
		c.TimeFormat = value
	case "language":
		if value == "" {
			return fmt.Errorf("invalid language: must not be empty")
		}
		c.Language = value
	case "last_third_offset":
		v, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid last_third_offset %q: must be an integer", value)
		}
		if v < -120 || v > 120 {
			return fmt.Errorf("invalid last_third_offset %q: must be between -120 and 120 minutes", value)
		}
		c.LastThirdOffset = &v
	case "store":
		switch value {
		case "file", "sqlite", "redis", "memory":
		default:
			return fmt.Errorf("invalid store %q: must be file, sqlite, redis or memory", value)
		}
		c.Store = value
	case "cache_dir":
		c.CacheDir = value
	case "sqlite_path":
		c.SQLitePath = value
	case "redis_addr":
		c.RedisAddr = value
	case "redis_password":
		c.RedisPassword = value
	case "redis_db":
		v, err := strconv.Atoi(value)
		if err != nil || v < 0 {
			return fmt.Errorf("invalid redis_db %q: must be a non-negative integer", value)
		}
		c.RedisDB = v
	case "listen":
		if !strings.Contains(value, ":") {
			return fmt.Errorf("invalid listen %q: must be host:port", value)
		}
		c.Listen = value
	case "log_level":
		switch strings.ToLower(value) {
		case "trace", "debug", "info", "warn", "error", "fatal", "panic", "disabled":
		default:
			return fmt.Errorf("invalid log_level %q", value)
		}
		c.LogLevel = strings.ToLower(value)
	case "mqtt_broker":
		c.MQTTBroker = value
	case "mqtt_topic":
		c.MQTTTopic = value
	case "mqtt_username":
		c.MQTTUsername = value
	case "mqtt_password":
		c.MQTTPassword = value
	case "telegram_token":
		c.TelegramToken = value
	case "telegram_chat_id":
		v, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid telegram_chat_id %q: must be an integer", value)
		}
		c.TelegramChatID = v
	default:
		return fmt.Errorf("unknown config key %q; valid keys: %s", key, strings.Join(ValidKeys, ", "))
	}
	return nil
}

// Get returns the string value of a config key.
func (c *Config) Get(key string) (string, error) {
	switch key {
	case "provider":
		return c.Provider, nil
	case "provider_url":
		return c.ProviderURL, nil
	case "city":
		return c.City, nil
	case "country":
		return c.Country, nil
	case "latitude":
		if c.Latitude == 0 {
			return "", nil
		}
		return strconv.FormatFloat(c.Latitude, 'f', -1, 64), nil
	case "longitude":
		if c.Longitude == 0 {
			return "", nil
		}
		return strconv.FormatFloat(c.Longitude, 'f', -1, 64), nil
	case "method":
		return optInt(c.Method), nil
	case "school":
		return optInt(c.School), nil
	case "timezone":
		return c.Timezone, nil
	case "time_format":
		return c.TimeFormat, nil
	case "language":
		return c.Language, nil
	case "last_third_offset":
		return optInt(c.LastThirdOffset), nil
	case "store":
		return c.Store, nil
	case "cache_dir":
		return c.CacheDir, nil
	case "sqlite_path":
		return c.SQLitePath, nil
	case "redis_addr":
		return c.RedisAddr, nil
	case "redis_password":
		return c.RedisPassword, nil
	case "redis_db":
		if c.RedisDB == 0 {
			return "", nil
		}
		return strconv.Itoa(c.RedisDB), nil
	case "listen":
		return c.Listen, nil
	case "log_level":
		return c.LogLevel, nil
	case "mqtt_broker":
		return c.MQTTBroker, nil
	case "mqtt_topic":
		return c.MQTTTopic, nil
	case "mqtt_username":
		return c.MQTTUsername, nil
	case "mqtt_password":
		return c.MQTTPassword, nil
	case "telegram_token":
		return c.TelegramToken, nil
	case "telegram_chat_id":
		if c.TelegramChatID == 0 {
			return "", nil
		}
		return strconv.FormatInt(c.TelegramChatID, 10), nil
	default:
		return "", fmt.Errorf("unknown config key %q", key)
	}
}

// Show returns the value of key for display, masking secrets.
func (c *Config) Show(key string) (string, error) {
	v, err := c.Get(key)
	if err != nil || v == "" || !secretKeys[key] {
		return v, err
	}
	return "********", nil
}

func optInt(p *int) string {
	if p == nil {
		return ""
	}
	return strconv.Itoa(*p)
}

// MethodOrDefault returns the method value, falling back to the given default.
func (c *Config) MethodOrDefault(def int) int {
	if c.Method != nil {
		return *c.Method
	}
	return def
}

// SchoolOrDefault returns the school value, falling back to the given default.
func (c *Config) SchoolOrDefault(def int) int {
	if c.School != nil {
		return *c.School
	}
	return def
}

// Location returns the configured timezone, or time.Local when none is set.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// Validate checks that the settings are complete enough to fetch data.
func (c *Config) Validate() error {
	switch c.Provider {
	case "year":
		if c.ProviderURL == "" {
			return fmt.Errorf("provider \"year\" requires provider_url")
		}
	default:
		if c.City != "" && c.Country == "" {
			return fmt.Errorf("country is required when city is set")
		}
		if c.City == "" && c.Latitude == 0 && c.Longitude == 0 {
			return fmt.Errorf("no location configured: set city and country, or latitude and longitude")
		}
	}
	return nil
}
