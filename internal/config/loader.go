package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Load builds the final configuration by applying the priority cascade
// described in spec.md §6 and SPEC_FULL.md §6: defaults < config file <
// environment variables < explicit overrides. path may be empty, in which
// case only defaults + environment + overrides apply. The file is parsed
// with yaml.Unmarshal whatever its extension (YAML is a superset of JSON,
// so a .json file loads through the same call, matching the pack's
// config-format convention rather than the teacher's JSON-only loader).
func Load(path string, overrides func(*Config)) (Config, error) {
	cfg := Defaults()

	if path != "" {
		if err := loadFile(&cfg, path); err != nil {
			return cfg, fmt.Errorf("config: %w", err)
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("config: env: %w", err)
	}

	if overrides != nil {
		overrides(&cfg)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config: validate: %w", err)
	}
	return cfg, nil
}

func loadFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

// Validate checks cross-field invariants the option table in spec.md §6
// implies but does not spell out as a validation rule (e.g. the three
// wait timeout tiers must actually nest: step < state < job).
func (c Config) Validate() error {
	var problems []string
	if !(c.Wait.StepTimeoutMS < c.Wait.StateTimeoutMS && c.Wait.StateTimeoutMS < c.Wait.JobTimeoutMS) {
		problems = append(problems, "wait timeout tiers must satisfy step < state < job")
	}
	if c.Session.MaxInFlightCommands <= 0 {
		problems = append(problems, "session.max_in_flight_commands must be positive")
	}
	if c.Session.ReconnectBackoffMultiplier < 1.0 {
		problems = append(problems, "session.reconnect_backoff_multiplier must be >= 1.0")
	}
	if c.Concurrency.WorkerPoolSize <= 0 {
		problems = append(problems, "concurrency.worker_pool_size must be positive")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%s", strings.Join(problems, "; "))
	}
	return nil
}
