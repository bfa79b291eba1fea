// Package config loads the service configuration. Sources, from lowest to
// highest priority: built-in defaults, a JSON file (CONFIG / -c), the
// environment (a .env file is loaded into it first) and command-line flags.
package config

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"time"

	env "github.com/caarlos0/env/v6"
	validator "github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config holds the resolved settings.
type Config struct {
	RunAddr             string        `env:"SERVER_ADDRESS" validate:"hostname_port"`
	LogLevel            string        `env:"LOG_LEVEL" validate:"loglevel"`
	DBFileName          string        `env:"FILE_STORAGE_PATH" validate:"omitempty,filepath"`
	DatabaseDSN         string        `env:"DATABASE_DSN"`
	DBConnectionTimeout time.Duration `env:"DB_CONNECTION_TIMEOUT" validate:"gte=0"`
	Schema              string        `env:"REGISTRATION_SCHEMA" validate:"oneof=account contact"`
	GRPCAddr            string        `env:"GRPC_ADDRESS" validate:"omitempty,hostname_port"`
	StaticDir           string        `env:"STATIC_DIR" validate:"omitempty,dir"`
	ConfigFile          string        `env:"CONFIG" validate:"-"`
}

// jsonConfig is the layout of the JSON configuration file.
type jsonConfig struct {
	RunAddr             string `json:"server_address"`
	LogLevel            string `json:"log_level"`
	DBFileName          string `json:"file_storage_path"`
	DatabaseDSN         string `json:"database_dsn"`
	DBConnectionTimeout string `json:"db_connection_timeout"`
	Schema              string `json:"registration_schema"`
	GRPCAddr            string `json:"grpc_address"`
	StaticDir           string `json:"static_dir"`
}

var defaultConfig = Config{
	RunAddr:             ":3000",
	LogLevel:            "info",
	DBFileName:          "data/users.json",
	DatabaseDSN:         "",
	DBConnectionTimeout: 10 * time.Second,
	Schema:              "account",
	GRPCAddr:            "",
	StaticDir:           "",
}

func validateFilePath(fieldLevel validator.FieldLevel) bool {
	path := fieldLevel.Field().String()
	info, err := os.Stat(path)
	if err != nil {
		return errors.Is(err, fs.ErrNotExist)
	}

	return !info.IsDir()
}

func validateLogLevel(fieldLevel validator.FieldLevel) bool {
	value := fieldLevel.Field().String()

	allowedLogLevels := map[string]bool{
		"debug":   true,
		"info":    true,
		"warn":    true,
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

type InitOption func(*initOptions)

type initOptions struct {
	disableFlagsParsing bool
	args                []string
}

// WithDisableFlagsParsing skips command-line flags entirely.
func WithDisableFlagsParsing(disableFlagsParsing bool) InitOption {
	return func(options *initOptions) {
		options.disableFlagsParsing = disableFlagsParsing
	}
}

// WithArgs parses args instead of os.Args[1:].
func WithArgs(args []string) InitOption {
	return func(options *initOptions) {
		options.args = args
	}
}

// New resolves the configuration from all sources and validates it.
func New(optionsProto ...InitOption) (*Config, error) {
	options := &initOptions{
		disableFlagsParsing: false,
		args:                os.Args[1:],
	}
	for _, protoOption := range optionsProto {
		protoOption(options)
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil,
			fmt.Errorf("in internal/config/config.go/New(): error while `godotenv.Load()` calling: %w", err)
	}

	var (
		valuesFromFlags Config
		fileCleared     bool
	)
	if !options.disableFlagsParsing {
		var err error
		valuesFromFlags, fileCleared, err = parseFlags(options.args)
		if err != nil {
			return nil, err
		}
	}

	var valuesFromEnv Config
	if err := env.Parse(&valuesFromEnv); err != nil {
		return nil,
			fmt.Errorf("in internal/config/config.go/New(): error while `env.Parse()` calling: %w", err)
	}
	if value, ok := os.LookupEnv("FILE_STORAGE_PATH"); ok && value == "" && valuesFromFlags.DBFileName == "" {
		fileCleared = true
	}

	configFile := valuesFromFlags.ConfigFile
	if configFile == "" {
		configFile = valuesFromEnv.ConfigFile
	}

	var valuesFromFile Config
	if configFile != "" {
		var err error
		valuesFromFile, err = loadJSON(configFile)
		if err != nil {
			return nil, err
		}
	}

	values := valuesFromFlags
	applyDefaults(&values, valuesFromEnv)
	applyDefaults(&values, valuesFromFile)
	applyDefaults(&values, defaultConfig)
	values.ConfigFile = configFile

	if fileCleared {
		values.DBFileName = ""
	}

	if err := values.validate(); err != nil {
		return nil,
			fmt.Errorf("in internal/config/config.go/New(): error while `values.validate()` calling: %w", err)
	}

	return &values, nil
}

// parseFlags reads only the flags present in args. fileCleared reports an
// explicit empty -f, which selects the in-memory store.
func parseFlags(args []string) (values Config, fileCleared bool, err error) {
	flagSet := flag.NewFlagSet("regform", flag.ContinueOnError)

	flagSet.StringVar(&values.RunAddr, "a", "", "address and port to run server")
	flagSet.StringVar(&values.LogLevel, "l", "", "logger level")
	flagSet.StringVar(&values.DBFileName, "f", "", "JSON file with the registered users")
	flagSet.StringVar(&values.DatabaseDSN, "d", "", "A string with the database connection details")
	flagSet.StringVar(&values.Schema, "s", "", "registration schema: account or contact")
	flagSet.StringVar(&values.GRPCAddr, "g", "", "address and port of the gRPC server, empty to disable it")
	flagSet.StringVar(&values.StaticDir, "w", "", "directory with the registration page, empty for the embedded one")
	flagSet.StringVar(&values.ConfigFile, "c", "", "JSON configuration file")

	if err := flagSet.Parse(args); err != nil {
		return Config{}, false, err
	}

	flagSet.Visit(func(f *flag.Flag) {
		if f.Name == "f" && values.DBFileName == "" {
			fileCleared = true
		}
	})

	return values, fileCleared, nil
}

func loadJSON(fileName string) (Config, error) {
	data, err := os.ReadFile(fileName)
	if err != nil {
		return Config{},
			fmt.Errorf("in internal/config/config.go/loadJSON(): error while `os.ReadFile()` calling: %w", err)
	}

	var raw jsonConfig
	if err := json.Unmarshal(data, &raw); err != nil {
		return Config{},
			fmt.Errorf("in internal/config/config.go/loadJSON(): error while `json.Unmarshal()` calling: %w", err)
	}

	values := Config{
		RunAddr:     raw.RunAddr,
		LogLevel:    raw.LogLevel,
		DBFileName:  raw.DBFileName,
		DatabaseDSN: raw.DatabaseDSN,
		Schema:      raw.Schema,
		GRPCAddr:    raw.GRPCAddr,
		StaticDir:   raw.StaticDir,
	}
	if raw.DBConnectionTimeout != "" {
		values.DBConnectionTimeout, err = time.ParseDuration(raw.DBConnectionTimeout)
		if err != nil {
			return Config{},
				fmt.Errorf("in internal/config/config.go/loadJSON(): error while `time.ParseDuration()` calling: %w", err)
		}
	}

	return values, nil
}

// applyDefaults fills every zero field of values from defaults.
func applyDefaults(values *Config, defaults Config) {
	values.RunAddr = firstNonZero(values.RunAddr, defaults.RunAddr)
	values.LogLevel = firstNonZero(values.LogLevel, defaults.LogLevel)
	values.DBFileName = firstNonZero(values.DBFileName, defaults.DBFileName)
	values.DatabaseDSN = firstNonZero(values.DatabaseDSN, defaults.DatabaseDSN)
	values.DBConnectionTimeout = firstNonZero(values.DBConnectionTimeout, defaults.DBConnectionTimeout)
	values.Schema = firstNonZero(values.Schema, defaults.Schema)
	values.GRPCAddr = firstNonZero(values.GRPCAddr, defaults.GRPCAddr)
	values.StaticDir = firstNonZero(values.StaticDir, defaults.StaticDir)
	values.ConfigFile = firstNonZero(values.ConfigFile, defaults.ConfigFile)
}

func firstNonZero[T comparable](values ...T) T {
	var zero T
	for _, value := range values {
		if value != zero {
			return value
		}
	}
	return zero
}
