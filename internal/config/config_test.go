package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyDefaults(t *testing.T) {
	values := Config{RunAddr: ":9000"}

	applyDefaults(&values, defaultConfig)

	assert.Equal(t, ":9000", values.RunAddr)
	assert.Equal(t, "info", values.LogLevel)
	assert.Equal(t, "data/users.json", values.DBFileName)
	assert.Equal(t, 10*time.Second, values.DBConnectionTimeout)
	assert.Equal(t, "account", values.Schema)
}

func TestConfigDefaults(t *testing.T) {
	cfg, err := New(WithDisableFlagsParsing(true))
	require.NoError(t, err)

	assert.Equal(t, ":3000", cfg.RunAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "data/users.json", cfg.DBFileName)
	assert.Empty(t, cfg.DatabaseDSN)
	assert.Equal(t, "account", cfg.Schema)
	assert.Empty(t, cfg.GRPCAddr)
	assert.Empty(t, cfg.StaticDir)
}

const testJSON = `{
	"server_address": ":3100",
	"file_storage_path": "json_storage.json",
	"database_dsn": "json-dsn",
	"db_connection_timeout": "3s",
	"registration_schema": "contact",
	"grpc_address": ":3200"
}`

func writeTempJSON(t *testing.T, content string) string {
	t.Helper()
	fileName := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(fileName, []byte(content), 0o644))
	return fileName
}

func TestConfigPriorityJSONOnly(t *testing.T) {
	jsonPath := writeTempJSON(t, testJSON)
	t.Setenv("CONFIG", jsonPath)

	cfg, err := New(WithDisableFlagsParsing(true))
	require.NoError(t, err)

	assert.Equal(t, ":3100", cfg.RunAddr)
	assert.Equal(t, "json_storage.json", cfg.DBFileName)
	assert.Equal(t, "json-dsn", cfg.DatabaseDSN)
	assert.Equal(t, 3*time.Second, cfg.DBConnectionTimeout)
	assert.Equal(t, "contact", cfg.Schema)
	assert.Equal(t, ":3200", cfg.GRPCAddr)
	assert.Equal(t, "info", cfg.LogLevel) // default
	assert.Equal(t, jsonPath, cfg.ConfigFile)
}

func TestConfigPriorityJSONPlusEnv(t *testing.T) {
	jsonPath := writeTempJSON(t, testJSON)
	t.Setenv("CONFIG", jsonPath)
	t.Setenv("SERVER_ADDRESS", ":4000")
	t.Setenv("REGISTRATION_SCHEMA", "account")
	t.Setenv("DB_CONNECTION_TIMEOUT", "5s")

	cfg, err := New(WithDisableFlagsParsing(true))
	require.NoError(t, err)

	assert.Equal(t, ":4000", cfg.RunAddr) // env overrides json
	assert.Equal(t, "account", cfg.Schema)
	assert.Equal(t, 5*time.Second, cfg.DBConnectionTimeout)
	assert.Equal(t, "json-dsn", cfg.DatabaseDSN) // from JSON
}

func TestConfigPriorityAllSources(t *testing.T) {
	jsonPath := writeTempJSON(t, testJSON)
	t.Setenv("CONFIG", jsonPath)
	t.Setenv("SERVER_ADDRESS", ":4000")
	t.Setenv("LOG_LEVEL", "error")

	cfg, err := New(WithArgs([]string{
		"-a", ":6000",
		"-s", "account",
	}))
	require.NoError(t, err)

	assert.Equal(t, ":6000", cfg.RunAddr) // CLI > ENV > JSON
	assert.Equal(t, "account", cfg.Schema)
	assert.Equal(t, "error", cfg.LogLevel)       // from env
	assert.Equal(t, "json-dsn", cfg.DatabaseDSN) // from JSON
}

func TestConfigFileFromFlag(t *testing.T) {
	jsonPath := writeTempJSON(t, `{"server_address": ":3300"}`)

	cfg, err := New(WithArgs([]string{"-c", jsonPath}))
	require.NoError(t, err)

	assert.Equal(t, ":3300", cfg.RunAddr)
}

func TestConfigEnvOnly(t *testing.T) {
	t.Setenv("SERVER_ADDRESS", ":7000")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("STATIC_DIR", t.TempDir())

	cfg, err := New(WithDisableFlagsParsing(true))
	require.NoError(t, err)

	assert.Equal(t, ":7000", cfg.RunAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.NotEmpty(t, cfg.StaticDir)
}

func TestConfigExplicitlyEmptyStoragePath(t *testing.T) {
	t.Setenv("FILE_STORAGE_PATH", "")

	cfg, err := New(WithDisableFlagsParsing(true))
	require.NoError(t, err)
	assert.Empty(t, cfg.DBFileName)

	cfg, err = New(WithArgs([]string{"-f", ""}))
	require.NoError(t, err)
	assert.Empty(t, cfg.DBFileName)

	cfg, err = New(WithArgs([]string{"-f", "other.json"}))
	require.NoError(t, err)
	assert.Equal(t, "other.json", cfg.DBFileName)
}

func TestConfigValidation(t *testing.T) {
	type tTestCase struct {
		name  string
		key   string
		value string
	}
	testCases := []tTestCase{
		{name: "unknown schema", key: "REGISTRATION_SCHEMA", value: "company"},
		{name: "unknown log level", key: "LOG_LEVEL", value: "verbose"},
		{name: "bad address", key: "SERVER_ADDRESS", value: "localhost"},
		{name: "bad gRPC address", key: "GRPC_ADDRESS", value: "localhost:99999"},
		{name: "missing static dir", key: "STATIC_DIR", value: "/definitely/not/here"},
		{name: "storage path is a directory", key: "FILE_STORAGE_PATH", value: os.TempDir()},
		{name: "bad timeout", key: "DB_CONNECTION_TIMEOUT", value: "soon"},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			t.Setenv(testCase.key, testCase.value)

			_, err := New(WithDisableFlagsParsing(true))
			assert.Error(t, err)
		})
	}
}

func TestConfigBadJSON(t *testing.T) {
	t.Setenv("CONFIG", writeTempJSON(t, `{"server_address": `))

	_, err := New(WithDisableFlagsParsing(true))
	assert.Error(t, err)
}
