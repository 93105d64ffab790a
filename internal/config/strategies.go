package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/aristath/rotation/internal/modules/strategy"
)

// StrategyFile is the top-level YAML structure of a strategy file
type StrategyFile struct {
	Strategies []yaml.Node `yaml:"strategies"`
}

// LoadStrategies reads strategy definitions from a YAML file:
//
//	strategies:
//	  - name: etf-macd
//	    mode: macd
//	    pool:
//	      - {id: "510300", name: CSI 300 ETF}
//	    macd: {short: 12, long: 26, signal: 9}
//
// Every entry starts from strategy.DefaultConfig, so omitted fields keep
// their defaults. An empty path returns the default strategy alone.
func LoadStrategies(path string) ([]strategy.Config, error) {
	if path == "" {
		return []strategy.Config{strategy.DefaultConfig()}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read strategy file: %w", err)
	}
	return ParseStrategies(data)
}

// ParseStrategies decodes and validates a strategy file's contents
func ParseStrategies(data []byte) ([]strategy.Config, error) {
	var file StrategyFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse strategy file: %w", err)
	}
	if len(file.Strategies) == 0 {
		return nil, fmt.Errorf("strategy file defines no strategies")
	}

	configs := make([]strategy.Config, 0, len(file.Strategies))
	names := make(map[string]bool, len(file.Strategies))
	for i := range file.Strategies {
		cfg := strategy.DefaultConfig()
		if err := file.Strategies[i].Decode(&cfg); err != nil {
			return nil, fmt.Errorf("failed to decode strategy %d: %w", i+1, err)
		}
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("strategy %q: %w", cfg.Name, err)
		}
		if names[cfg.Name] {
			return nil, fmt.Errorf("duplicate strategy name %q", cfg.Name)
		}
		names[cfg.Name] = true
		configs = append(configs, cfg)
	}
	return configs, nil
}

// FindStrategy returns the named strategy, or the first one when name is empty
func FindStrategy(configs []strategy.Config, name string) (strategy.Config, error) {
	if len(configs) == 0 {
		return strategy.Config{}, fmt.Errorf("no strategies configured")
	}
	if name == "" {
		return configs[0], nil
	}
	for _, cfg := range configs {
		if cfg.Name == name {
			return cfg, nil
		}
	}
	return strategy.Config{}, fmt.Errorf("unknown strategy %q", name)
}
