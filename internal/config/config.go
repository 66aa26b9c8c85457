// Package config loads runtime settings from the environment, an optional
// config file and defaults.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"

	AuthSingle = "single"
	AuthJWT    = "jwt"
	AuthRemote = "remote"
)

// ConfigFileEnv names the optional config file (any format viper reads).
const ConfigFileEnv = "CONTABILS_CONFIG"

type Config struct {
	// HTTP Server
	Port               string
	AppName            string
	RateLimitPerMinute int

	// Storage
	DataBackend      string
	SQLiteDBPath     string
	DatabaseURL      string
	DatabaseMaxConns int

	// Identity
	AuthMode        string
	AuthJWTSecret   string
	AuthJWTAudience string
	IdentityURL     string
	IdentityAnonKey string
	SingleUserOwner string

	// AMQP
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Google Sheets mirror
	GoogleSpreadsheetID      string
	GoogleSheetName          string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string

	// Shell and export
	ShellVersion   string
	ShellTakeover  string
	ExportTimezone string

	LogLevel  string
	LogFormat string
}

var defaults = map[string]any{
	"port":                  "8081",
	"app_name":              "contabils",
	"rate_limit_per_minute": 120,
	"data_backend":          BackendSQLite,
	"sqlite_db_path":        "./data/contabils.db",
	"database_max_conns":    10,
	"auth_mode":             AuthSingle,
	"auth_jwt_audience":     "authenticated",
	"single_user_owner":     "local",
	"amqp_exchange":         "contabils",
	"amqp_queue":            "ledger_mirror",
	"google_sheet_name":     "Lancamentos",
	"shell_version":         "v1",
	"shell_takeover":        "user-gated",
	"export_timezone":       "America/Sao_Paulo",
	"log_level":             "info",
	"log_format":            "text",
}

// Load reads the configuration. Environment variables win over the config
// file, which wins over defaults.
func Load() (*Config, error) {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.AutomaticEnv()

	if file := os.Getenv(ConfigFileEnv); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", file, err)
		}
	}

	return &Config{
		Port:               v.GetString("port"),
		AppName:            v.GetString("app_name"),
		RateLimitPerMinute: v.GetInt("rate_limit_per_minute"),

		DataBackend:      strings.ToLower(v.GetString("data_backend")),
		SQLiteDBPath:     v.GetString("sqlite_db_path"),
		DatabaseURL:      v.GetString("database_url"),
		DatabaseMaxConns: v.GetInt("database_max_conns"),

		AuthMode:        strings.ToLower(v.GetString("auth_mode")),
		AuthJWTSecret:   v.GetString("auth_jwt_secret"),
		AuthJWTAudience: v.GetString("auth_jwt_audience"),
		IdentityURL:     strings.TrimRight(v.GetString("identity_url"), "/"),
		IdentityAnonKey: v.GetString("identity_anon_key"),
		SingleUserOwner: v.GetString("single_user_owner"),

		AMQPURL:      v.GetString("amqp_url"),
		AMQPExchange: v.GetString("amqp_exchange"),
		AMQPQueue:    v.GetString("amqp_queue"),

		GoogleSpreadsheetID:      v.GetString("google_spreadsheet_id"),
		GoogleSheetName:          v.GetString("google_sheet_name"),
		GoogleServiceAccountJSON: v.GetString("google_service_account_json"),
		GoogleServiceAccountFile: v.GetString("google_service_account_file"),

		ShellVersion:   v.GetString("shell_version"),
		ShellTakeover:  strings.ToLower(v.GetString("shell_takeover")),
		ExportTimezone: v.GetString("export_timezone"),

		LogLevel:  v.GetString("log_level"),
		LogFormat: v.GetString("log_format"),
	}, nil
}

// Location resolves EXPORT_TIMEZONE.
func (c *Config) Location() (*time.Location, error) {
	if c.ExportTimezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(c.ExportTimezone)
}

// EventsEnabled reports whether ledger events are published.
func (c *Config) EventsEnabled() bool {
	return c.AMQPURL != ""
}

// Validate checks the server configuration and reports every problem at once.
func (c *Config) Validate() error {
	var errs []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errs = append(errs, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errs = append(errs, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if strings.TrimSpace(c.AppName) == "" {
		errs = append(errs, "app name cannot be empty")
	}

	validBackends := []string{BackendMemory, BackendSQLite, BackendPostgres}
	if !slices.Contains(validBackends, c.DataBackend) {
		errs = append(errs, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	switch c.DataBackend {
	case BackendSQLite:
		if c.SQLiteDBPath == "" {
			errs = append(errs, "SQLite database path cannot be empty when using sqlite backend")
		} else if dir := filepath.Dir(c.SQLiteDBPath); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				errs = append(errs, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
			}
		}
	case BackendPostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, "DATABASE_URL is required when using postgres backend")
		}
		if c.DatabaseMaxConns < 1 {
			errs = append(errs, fmt.Sprintf("invalid database max conns %d: must be at least 1", c.DatabaseMaxConns))
		}
	}

	switch c.AuthMode {
	case AuthSingle:
		if strings.TrimSpace(c.SingleUserOwner) == "" {
			errs = append(errs, "SINGLE_USER_OWNER cannot be empty in single auth mode")
		}
	case AuthJWT:
		if c.AuthJWTSecret == "" {
			errs = append(errs, "AUTH_JWT_SECRET is required in jwt auth mode")
		}
	case AuthRemote:
		if c.IdentityURL == "" {
			errs = append(errs, "IDENTITY_URL is required in remote auth mode")
		}
	default:
		errs = append(errs, fmt.Sprintf("invalid auth mode '%s': must be one of [single jwt remote]", c.AuthMode))
	}

	if c.IdentityURL != "" {
		if u, err := url.Parse(c.IdentityURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, fmt.Sprintf("invalid identity URL '%s': must be an absolute http(s) URL", c.IdentityURL))
		}
	}
	if c.AuthMode != AuthSingle && c.IdentityURL != "" && c.IdentityAnonKey == "" {
		errs = append(errs, "IDENTITY_ANON_KEY is required when IDENTITY_URL is set")
	}

	errs = append(errs, c.amqpErrors()...)

	if strings.TrimSpace(c.ShellVersion) == "" {
		errs = append(errs, "shell version cannot be empty")
	}
	if c.ShellTakeover != "" && c.ShellTakeover != "user-gated" && c.ShellTakeover != "immediate" {
		errs = append(errs, fmt.Sprintf("invalid shell takeover '%s': must be user-gated or immediate", c.ShellTakeover))
	}
	if _, err := c.Location(); err != nil {
		errs = append(errs, fmt.Sprintf("invalid export timezone '%s': %v", c.ExportTimezone, err))
	}
	if c.RateLimitPerMinute < 1 {
		errs = append(errs, fmt.Sprintf("invalid rate limit %d: must be at least 1", c.RateLimitPerMinute))
	}
	if f := strings.ToLower(c.LogFormat); f != "text" && f != "json" {
		errs = append(errs, fmt.Sprintf("invalid log format '%s': must be text or json", c.LogFormat))
	}

	return joinErrors(errs)
}

// ValidateWorker checks what the sheet mirror worker needs.
func (c *Config) ValidateWorker() error {
	var errs []string
	if c.AMQPURL == "" {
		errs = append(errs, "AMQP_URL is required for the worker")
	}
	errs = append(errs, c.amqpErrors()...)

	if c.GoogleSpreadsheetID == "" {
		errs = append(errs, "GOOGLE_SPREADSHEET_ID is required for the worker")
	}
	if c.GoogleSheetName == "" {
		errs = append(errs, "GOOGLE_SHEET_NAME cannot be empty")
	}
	hasFile := c.GoogleServiceAccountFile != ""
	if !hasFile && c.GoogleServiceAccountJSON == "" {
		errs = append(errs, "either GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE must be provided")
	}
	if hasFile {
		if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
			errs = append(errs, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
		}
	}
	return joinErrors(errs)
}

func (c *Config) amqpErrors() []string {
	if c.AMQPURL == "" {
		return nil
	}
	var errs []string
	if u, err := url.Parse(c.AMQPURL); err != nil {
		errs = append(errs, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
	} else if u.Scheme != "amqp" && u.Scheme != "amqps" {
		errs = append(errs, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", u.Scheme))
	}
	if c.AMQPExchange == "" {
		errs = append(errs, "AMQP exchange name cannot be empty when AMQP URL is provided")
	}
	if c.AMQPQueue == "" {
		errs = append(errs, "AMQP queue name cannot be empty when AMQP URL is provided")
	}
	return errs
}

func joinErrors(errs []string) error {
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errs, "\n- "))
}
