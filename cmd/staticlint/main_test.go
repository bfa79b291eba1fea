package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnabled(t *testing.T) {
	cfg := lintConfig{
		Staticcheck: []string{"SA4*", "SA1000"},
		Exclude:     []string{"SA4010"},
	}

	type tTestCase struct {
		name     string
		check    string
		expected bool
	}
	testCases := []tTestCase{
		{name: "prefix match", check: "SA4006", expected: true},
		{name: "exact match", check: "SA1000", expected: true},
		{name: "excluded", check: "SA4010", expected: false},
		{name: "not selected", check: "SA1012", expected: false},
		{name: "prefix is not a substring match", check: "S1004", expected: false},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			assert.Equal(t, testCase.expected, cfg.enabled(testCase.check))
		})
	}
}

func TestAnalyzersFromEmbeddedConfig(t *testing.T) {
	cfg, err := parseConfig(configData)
	require.NoError(t, err)

	names := map[string]bool{}
	for _, a := range analyzers(cfg) {
		names[a.Name] = true
	}

	assert.True(t, names["noexit"])
	assert.True(t, names["nilerr"])
	assert.True(t, names["stdmethods"])
	assert.True(t, names["SA4006"])
	assert.True(t, names["SA5000"])
	assert.False(t, names["SA1019"])
}
