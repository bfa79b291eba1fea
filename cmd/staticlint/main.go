// Command staticlint is the lint gate of regform.
//
// It runs a fixed set of go/analysis passes, ineffassign, nilerr and the
// project's noexit analyzer, plus the staticcheck SA checks selected by the
// embedded config.json. A config entry ending in "*" selects every check
// with that prefix; "exclude" wins over any selection. SA1019 is excluded
// because the gRPC tests still dial with grpc.DialContext and WithBlock.
//
// Usage:
//
//	go run ./cmd/staticlint ./...
package main

import (
	_ "embed"
	"encoding/json"
	"slices"
	"strings"

	"github.com/gordonklaus/ineffassign/pkg/ineffassign"
	"github.com/gostaticanalysis/nilerr"
	"golang.org/x/tools/go/analysis"
	"golang.org/x/tools/go/analysis/multichecker"
	"golang.org/x/tools/go/analysis/passes/copylock"
	"golang.org/x/tools/go/analysis/passes/errorsas"
	"golang.org/x/tools/go/analysis/passes/httpresponse"
	"golang.org/x/tools/go/analysis/passes/lostcancel"
	"golang.org/x/tools/go/analysis/passes/nilness"
	"golang.org/x/tools/go/analysis/passes/printf"
	"golang.org/x/tools/go/analysis/passes/stdmethods"
	"golang.org/x/tools/go/analysis/passes/structtag"
	"golang.org/x/tools/go/analysis/passes/unmarshal"
	"honnef.co/go/tools/staticcheck"

	"github.com/patric-chuzhbe/regform/cmd/staticlint/noexit"
)

//go:embed config.json
var configData []byte

type lintConfig struct {
	Staticcheck []string `json:"staticcheck"`
	Exclude     []string `json:"exclude"`
}

func parseConfig(data []byte) (lintConfig, error) {
	var cfg lintConfig
	err := json.Unmarshal(data, &cfg)
	return cfg, err
}

func (c lintConfig) enabled(name string) bool {
	if slices.Contains(c.Exclude, name) {
		return false
	}

	for _, pattern := range c.Staticcheck {
		if prefix, ok := strings.CutSuffix(pattern, "*"); ok {
			if strings.HasPrefix(name, prefix) {
				return true
			}
			continue
		}
		if pattern == name {
			return true
		}
	}

	return false
}

func analyzers(cfg lintConfig) []*analysis.Analyzer {
	checks := []*analysis.Analyzer{
		copylock.Analyzer,
		errorsas.Analyzer,
		httpresponse.Analyzer,
		lostcancel.Analyzer,
		nilness.Analyzer,
		printf.Analyzer,
		stdmethods.Analyzer, // MarshalJSON / UnmarshalJSON signatures
		structtag.Analyzer,
		unmarshal.Analyzer,

		ineffassign.Analyzer,
		nilerr.Analyzer,

		noexit.Analyzer,
	}

	for _, v := range staticcheck.Analyzers {
		if cfg.enabled(v.Analyzer.Name) {
			checks = append(checks, v.Analyzer)
		}
	}

	return checks
}

func main() {
	cfg, err := parseConfig(configData)
	if err != nil {
		panic(err)
	}

	multichecker.Main(analyzers(cfg)...)
}
