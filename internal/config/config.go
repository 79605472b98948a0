package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roomcraft/collab/internal/envutil"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Auth      AuthConfig      `yaml:"auth"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port         string        `yaml:"port" env:"SERVER_PORT"`
	Interface    string        `yaml:"interface" env:"SERVER_INTERFACE"`
	ReadTimeout  time.Duration `yaml:"read_timeout" env:"SERVER_READ_TIMEOUT"`
	WriteTimeout time.Duration `yaml:"write_timeout" env:"SERVER_WRITE_TIMEOUT"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" env:"SERVER_IDLE_TIMEOUT"`
}

// AuthConfig holds authentication configuration
type AuthConfig struct {
	JWT JWTConfig `yaml:"jwt"`
}

// JWTConfig holds JWT configuration for the identity resolver
type JWTConfig struct {
	Secret        string `yaml:"secret" env:"JWT_SECRET"`
	SigningMethod string `yaml:"signing_method" env:"JWT_SIGNING_METHOD"`
}

// WebSocketConfig holds collaboration session tuning
type WebSocketConfig struct {
	// ReadLimitBytes is the maximum inbound frame size
	ReadLimitBytes int64 `yaml:"read_limit_bytes" env:"WEBSOCKET_READ_LIMIT_BYTES"`
	// SendBufferSize is the per-client outbound channel capacity
	SendBufferSize int `yaml:"send_buffer_size" env:"WEBSOCKET_SEND_BUFFER_SIZE"`
	// EventLogCapacity bounds the per-room recent event FIFO
	EventLogCapacity int `yaml:"event_log_capacity" env:"WEBSOCKET_EVENT_LOG_CAPACITY"`
	// ChatHistoryCapacity bounds the per-room chat FIFO
	ChatHistoryCapacity int `yaml:"chat_history_capacity" env:"WEBSOCKET_CHAT_HISTORY_CAPACITY"`
	// MaxChatMessageLength is the maximum chat text length in runes after trimming
	MaxChatMessageLength int `yaml:"max_chat_message_length" env:"WEBSOCKET_MAX_CHAT_MESSAGE_LENGTH"`
	// InactivityTimeoutSeconds is the reaper threshold
	InactivityTimeoutSeconds int `yaml:"inactivity_timeout_seconds" env:"WEBSOCKET_INACTIVITY_TIMEOUT_SECONDS"`
	// SweepIntervalSeconds is how often the reaper runs
	SweepIntervalSeconds int `yaml:"sweep_interval_seconds" env:"WEBSOCKET_SWEEP_INTERVAL_SECONDS"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level            string `yaml:"level" env:"LOGGING_LEVEL"`
	IsDev            bool   `yaml:"is_dev" env:"LOGGING_IS_DEV"`
	LogDir           string `yaml:"log_dir" env:"LOGGING_LOG_DIR"`
	MaxAgeDays       int    `yaml:"max_age_days" env:"LOGGING_MAX_AGE_DAYS"`
	MaxSizeMB        int    `yaml:"max_size_mb" env:"LOGGING_MAX_SIZE_MB"`
	MaxBackups       int    `yaml:"max_backups" env:"LOGGING_MAX_BACKUPS"`
	AlsoLogToConsole bool   `yaml:"also_log_to_console" env:"LOGGING_ALSO_LOG_TO_CONSOLE"`
}

// Load loads configuration from a YAML file with environment variable overrides
func Load(configFile string) (*Config, error) {
	config := getDefaultConfig()

	if configFile != "" {
		if err := loadFromYAML(config, configFile); err != nil {
			return nil, fmt.Errorf("failed to load config from YAML: %w", err)
		}
	}

	if err := overrideWithEnv(config); err != nil {
		return nil, fmt.Errorf("failed to override with environment variables: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// getDefaultConfig returns a configuration with default values
func getDefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         "8080",
			Interface:    "0.0.0.0",
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Auth: AuthConfig{
			JWT: JWTConfig{
				Secret:        "",
				SigningMethod: "HS256",
			},
		},
		WebSocket: WebSocketConfig{
			ReadLimitBytes:           65536,
			SendBufferSize:           256,
			EventLogCapacity:         100,
			ChatHistoryCapacity:      100,
			MaxChatMessageLength:     2000,
			InactivityTimeoutSeconds: 300,
			SweepIntervalSeconds:     60,
		},
		Logging: LoggingConfig{
			Level:            "info",
			IsDev:            true,
			LogDir:           "logs",
			MaxAgeDays:       7,
			MaxSizeMB:        100,
			MaxBackups:       10,
			AlsoLogToConsole: true,
		},
	}
}

// loadFromYAML loads configuration from a YAML file
func loadFromYAML(config *Config, configFile string) error {
	data, err := os.ReadFile(configFile) // #nosec G304 - path comes from operator CLI flag
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", configFile, err)
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return fmt.Errorf("failed to parse YAML config: %w", err)
	}

	return nil
}

// overrideWithEnv overrides configuration values with environment variables
func overrideWithEnv(config *Config) error {
	return overrideStructWithEnv(reflect.ValueOf(config).Elem())
}

// overrideStructWithEnv recursively overrides struct fields with environment variables
func overrideStructWithEnv(v reflect.Value) error {
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		if !field.CanSet() {
			continue
		}

		if field.Kind() == reflect.Struct {
			if err := overrideStructWithEnv(field); err != nil {
				return err
			}
			continue
		}

		envTag := fieldType.Tag.Get("env")
		if envTag == "" {
			continue
		}

		envValue, exists := envutil.Lookup(envTag)
		if !exists || envValue == "" {
			continue
		}

		if err := setFieldFromString(field, envValue); err != nil {
			return fmt.Errorf("failed to set field %s from env %s: %w", fieldType.Name, envTag, err)
		}
	}

	return nil
}

// setFieldFromString sets a struct field value from a string based on the field type
func setFieldFromString(field reflect.Value, value string) error {
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Bool:
		boolVal, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid bool value: %s", value)
		}
		field.SetBool(boolVal)
	case reflect.Int:
		intVal, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid int value: %s", value)
		}
		field.SetInt(int64(intVal))
	case reflect.Int64:
		// time.Duration fields accept Go duration strings
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			duration, err := time.ParseDuration(value)
			if err != nil {
				return fmt.Errorf("invalid duration value: %s", value)
			}
			field.SetInt(int64(duration))
		} else {
			intVal, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid int64 value: %s", value)
			}
			field.SetInt(intVal)
		}
	default:
		return fmt.Errorf("unsupported field type: %s", field.Kind())
	}
	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if _, err := strconv.Atoi(c.Server.Port); err != nil {
		return fmt.Errorf("server port must be numeric: %s", c.Server.Port)
	}
	if c.WebSocket.EventLogCapacity <= 0 {
		return fmt.Errorf("websocket event log capacity must be positive")
	}
	if c.WebSocket.ChatHistoryCapacity <= 0 {
		return fmt.Errorf("websocket chat history capacity must be positive")
	}
	if c.WebSocket.SendBufferSize <= 0 {
		return fmt.Errorf("websocket send buffer size must be positive")
	}
	if c.WebSocket.InactivityTimeoutSeconds <= 0 {
		return fmt.Errorf("websocket inactivity timeout must be positive")
	}
	if c.WebSocket.SweepIntervalSeconds <= 0 {
		return fmt.Errorf("websocket sweep interval must be positive")
	}
	if method := c.Auth.JWT.SigningMethod; method != "HS256" && method != "HS384" && method != "HS512" {
		return fmt.Errorf("unsupported JWT signing method: %s", method)
	}
	return nil
}

// ListenAddress returns the address the HTTP server should bind to
func (c *Config) ListenAddress() string {
	return c.Server.Interface + ":" + c.Server.Port
}

// InactivityTimeout returns the reaper threshold as a duration
func (c *WebSocketConfig) InactivityTimeout() time.Duration {
	return time.Duration(c.InactivityTimeoutSeconds) * time.Second
}

// SweepInterval returns how often the reaper runs
func (c *WebSocketConfig) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalSeconds) * time.Second
}

// envKeys used by tests to scrub the environment
var envKeys = []string{
	"SERVER_PORT", "SERVER_INTERFACE", "SERVER_READ_TIMEOUT", "SERVER_WRITE_TIMEOUT",
	"SERVER_IDLE_TIMEOUT", "JWT_SECRET", "JWT_SIGNING_METHOD",
	"WEBSOCKET_READ_LIMIT_BYTES", "WEBSOCKET_SEND_BUFFER_SIZE",
	"WEBSOCKET_EVENT_LOG_CAPACITY", "WEBSOCKET_CHAT_HISTORY_CAPACITY",
	"WEBSOCKET_MAX_CHAT_MESSAGE_LENGTH", "WEBSOCKET_INACTIVITY_TIMEOUT_SECONDS",
	"WEBSOCKET_SWEEP_INTERVAL_SECONDS", "LOGGING_LEVEL", "LOGGING_IS_DEV",
	"LOGGING_LOG_DIR", "LOGGING_MAX_AGE_DAYS", "LOGGING_MAX_SIZE_MB",
	"LOGGING_MAX_BACKUPS", "LOGGING_ALSO_LOG_TO_CONSOLE",
}

// EnvKeys returns the environment variable names the loader honors
func EnvKeys() []string {
	return append([]string(nil), envKeys...)
}

// EnvExample renders a commented listing of all supported env vars
func EnvExample() string {
	var b strings.Builder
	for _, k := range envKeys {
		b.WriteString("# ")
		b.WriteString(k)
		b.WriteString("=\n")
	}
	return b.String()
}
