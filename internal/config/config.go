// Package config loads the service configuration. Sources are applied in
// increasing priority: built-in defaults, a JSON file, environment
// variables (optionally loaded from .env) and command line flags.
package config

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	env "github.com/caarlos0/env/v6"
	validator "github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config holds every tunable of the service.
type Config struct {
	RunAddr                    string        `env:"SERVER_ADDRESS" validate:"hostname_port"`
	LogLevel                   string        `env:"LOG_LEVEL" validate:"loglevel"`
	DBFileName                 string        `env:"FILE_STORAGE_PATH" validate:"filepath"`
	DatabaseDSN                string        `env:"DATABASE_DSN"`
	SQLiteDSN                  string        `env:"SQLITE_DSN"`
	DBConnectionTimeout        time.Duration `env:"DB_CONNECTION_TIMEOUT" validate:"gt=0"`
	AuthCookieName             string        `env:"AUTH_COOKIE_NAME" validate:"required"`
	AuthCookieSigningSecretKey string        `env:"AUTH_COOKIE_SIGNING_SECRET_KEY" validate:"required,base64url"`
	SessionTTL                 time.Duration `env:"SESSION_TTL" validate:"gt=0"`
	SessionSweepInterval       time.Duration `env:"SESSION_SWEEP_INTERVAL" validate:"gt=0"`
	TrustedSubnet              string        `env:"TRUSTED_SUBNET" validate:"omitempty,cidr"`
	EnableHTTPS                bool          `env:"ENABLE_HTTPS"`
	TLSCertFile                string        `env:"TLS_CERT_FILE" validate:"required_if=EnableHTTPS true"`
	TLSKeyFile                 string        `env:"TLS_KEY_FILE" validate:"required_if=EnableHTTPS true"`
	ConfigFile                 string        `env:"CONFIG"`
}

var defaultConfig = Config{
	RunAddr:                    ":8080",
	LogLevel:                   "info",
	DBFileName:                 "",
	DatabaseDSN:                "",
	SQLiteDSN:                  "",
	DBConnectionTimeout:        10 * time.Second,
	AuthCookieName:             "vault_session",
	AuthCookieSigningSecretKey: "",
	SessionTTL:                 24 * time.Hour,
	SessionSweepInterval:       time.Minute,
	TrustedSubnet:              "",
	EnableHTTPS:                false,
}

// jsonConfig mirrors the JSON file layout. Durations are written as
// strings accepted by time.ParseDuration.
type jsonConfig struct {
	RunAddr              *string `json:"server_address"`
	LogLevel             *string `json:"log_level"`
	DBFileName           *string `json:"file_storage_path"`
	DatabaseDSN          *string `json:"database_dsn"`
	SQLiteDSN            *string `json:"sqlite_dsn"`
	DBConnectionTimeout  *string `json:"db_connection_timeout"`
	AuthCookieName       *string `json:"auth_cookie_name"`
	SessionTTL           *string `json:"session_ttl"`
	SessionSweepInterval *string `json:"session_sweep_interval"`
	TrustedSubnet        *string `json:"trusted_subnet"`
	EnableHTTPS          *bool   `json:"enable_https"`
	TLSCertFile          *string `json:"tls_cert_file"`
	TLSKeyFile           *string `json:"tls_key_file"`
}

func validateFilePath(fieldLevel validator.FieldLevel) bool {
	path := fieldLevel.Field().String()
	if path == "" {
		return true
	}
	_, err := os.Stat(path)

	return err == nil || os.IsNotExist(err)
}

func validateLogLevel(fieldLevel validator.FieldLevel) bool {
	value := fieldLevel.Field().String()

	allowedLogLevels := map[string]bool{
		"debug":   true,
		"info":    true,
		"warning": true,
		"error":   true,
		"fatal":   true,
	}

	return allowedLogLevels[value]
}

func (c *Config) validate() error {
	validate := validator.New()

	err := validate.RegisterValidation("loglevel", validateLogLevel)
	if err != nil {
		return err
	}

	err = validate.RegisterValidation("filepath", validateFilePath)
	if err != nil {
		return err
	}

	return validate.Struct(c)
}

// InitOption configures how New gathers the configuration.
type InitOption func(*initOptions)

type initOptions struct {
	disableFlagsParsing bool
	args                []string
	authSigningKey      string
}

// WithDisableFlagsParsing makes New ignore the command line.
func WithDisableFlagsParsing(disableFlagsParsing bool) InitOption {
	return func(options *initOptions) {
		options.disableFlagsParsing = disableFlagsParsing
	}
}

// WithArgs replaces os.Args[1:] as the source of command line flags.
func WithArgs(args []string) InitOption {
	return func(options *initOptions) {
		options.args = args
	}
}

// WithAuthSigningKey supplies the base64url session signing key for
// embedders and tests. AUTH_COOKIE_SIGNING_SECRET_KEY still wins over it.
// There is no built-in key: New fails when neither source provides one.
func WithAuthSigningKey(key string) InitOption {
	return func(options *initOptions) {
		options.authSigningKey = key
	}
}

func applyDefaults(values *Config, defaults Config) {
	*values = defaults
}

func (c *Config) applyJSONFile(fileName string) error {
	data, err := os.ReadFile(fileName)
	if err != nil {
		return fmt.Errorf("in internal/config/config.go/applyJSONFile(): error while `os.ReadFile()` calling: %w", err)
	}

	var fromFile jsonConfig
	if err := json.Unmarshal(data, &fromFile); err != nil {
		return fmt.Errorf("in internal/config/config.go/applyJSONFile(): error while `json.Unmarshal()` calling: %w", err)
	}

	setString := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	setDuration := func(dst *time.Duration, src *string) error {
		if src == nil {
			return nil
		}
		d, err := time.ParseDuration(*src)
		if err != nil {
			return err
		}
		*dst = d
		return nil
	}

	setString(&c.RunAddr, fromFile.RunAddr)
	setString(&c.LogLevel, fromFile.LogLevel)
	setString(&c.DBFileName, fromFile.DBFileName)
	setString(&c.DatabaseDSN, fromFile.DatabaseDSN)
	setString(&c.SQLiteDSN, fromFile.SQLiteDSN)
	setString(&c.AuthCookieName, fromFile.AuthCookieName)
	setString(&c.TrustedSubnet, fromFile.TrustedSubnet)
	setString(&c.TLSCertFile, fromFile.TLSCertFile)
	setString(&c.TLSKeyFile, fromFile.TLSKeyFile)
	if fromFile.EnableHTTPS != nil {
		c.EnableHTTPS = *fromFile.EnableHTTPS
	}

	return errors.Join(
		setDuration(&c.DBConnectionTimeout, fromFile.DBConnectionTimeout),
		setDuration(&c.SessionTTL, fromFile.SessionTTL),
		setDuration(&c.SessionSweepInterval, fromFile.SessionSweepInterval),
	)
}

// parseFlags parses args and copies only the flags that were actually
// given onto c, so that unset flags never shadow env or JSON values.
func (c *Config) parseFlags(args []string) (configFile string, err error) {
	var fromFlags Config
	flagSet := flag.NewFlagSet("securevault", flag.ContinueOnError)
	flagSet.StringVar(&fromFlags.RunAddr, "a", c.RunAddr, "address and port to run server")
	flagSet.StringVar(&fromFlags.LogLevel, "l", c.LogLevel, "logger level")
	flagSet.StringVar(&fromFlags.DBFileName, "f", c.DBFileName, "JSON file name with database")
	flagSet.StringVar(&fromFlags.DatabaseDSN, "d", c.DatabaseDSN, "PostgreSQL connection string")
	flagSet.StringVar(&fromFlags.SQLiteDSN, "q", c.SQLiteDSN, "SQLite database file or DSN")
	flagSet.StringVar(&fromFlags.TrustedSubnet, "t", c.TrustedSubnet, "CIDR allowed to read internal stats")
	flagSet.BoolVar(&fromFlags.EnableHTTPS, "s", c.EnableHTTPS, "serve over HTTPS")
	flagSet.StringVar(&configFile, "c", "", "path to a JSON configuration file")
	flagSet.StringVar(&configFile, "config", "", "path to a JSON configuration file")

	if err := flagSet.Parse(args); err != nil {
		return "", err
	}

	flagSet.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "a":
			c.RunAddr = fromFlags.RunAddr
		case "l":
			c.LogLevel = fromFlags.LogLevel
		case "f":
			c.DBFileName = fromFlags.DBFileName
		case "d":
			c.DatabaseDSN = fromFlags.DatabaseDSN
		case "q":
			c.SQLiteDSN = fromFlags.SQLiteDSN
		case "t":
			c.TrustedSubnet = fromFlags.TrustedSubnet
		case "s":
			c.EnableHTTPS = fromFlags.EnableHTTPS
		}
	})

	return configFile, nil
}

// New builds the configuration from all sources and validates it.
func New(optionsProto ...InitOption) (*Config, error) {
	options := &initOptions{
		disableFlagsParsing: false,
		args:                nil,
	}
	for _, protoOption := range optionsProto {
		protoOption(options)
	}
	if options.args == nil && len(os.Args) > 1 {
		options.args = os.Args[1:]
	}

	err := godotenv.Load()
	if err != nil {
		log.Printf("Unable to load .env file: %v", err)
	}

	values := &Config{}
	applyDefaults(values, defaultConfig)
	values.AuthCookieSigningSecretKey = options.authSigningKey

	// The flags are parsed twice: first only to learn the config file
	// location, then again on top of the JSON and env values.
	var configFileFromFlags string
	if !options.disableFlagsParsing {
		preview := *values
		configFileFromFlags, err = preview.parseFlags(options.args)
		if err != nil {
			return nil, err
		}
	}

	configFile := os.Getenv("CONFIG")
	if configFileFromFlags != "" {
		configFile = configFileFromFlags
	}
	if configFile != "" {
		if err := values.applyJSONFile(configFile); err != nil {
			return nil, err
		}
		values.ConfigFile = configFile
	}

	if err := env.Parse(values); err != nil {
		return nil, err
	}

	if !options.disableFlagsParsing {
		if _, err := values.parseFlags(options.args); err != nil {
			return nil, err
		}
	}

	if err := values.validate(); err != nil {
		return nil, err
	}

	return values, nil
}
