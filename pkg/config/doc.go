// Package config provides configuration management for the verdict rule
// engine.
//
// This package handles loading, validating, and defaulting configuration
// from YAML files with environment variable overrides.
//
// # Configuration Loading
//
// Configuration can be loaded in two ways:
//
//  1. From a YAML file only:
//     cfg, err := config.LoadConfig("verdict.yaml")
//
//  2. From a YAML file with environment variable overrides:
//     cfg, err := config.LoadConfigWithEnvOverrides("verdict.yaml")
//
// # Environment Variable Overrides
//
// Environment variables follow the naming convention VERDICT_SECTION_FIELD.
// For example:
//
//   - VERDICT_ENGINE_MAX_CYCLES overrides engine.max_cycles
//   - VERDICT_RULES_PATH overrides rules.path
//   - VERDICT_TELEMETRY_LOGGING_LEVEL overrides telemetry.logging.level
//
// Environment variables always take precedence over file-based configuration.
//
// # Configuration Precedence
//
//  1. Default values (defined in defaults.go)
//  2. Values from YAML file
//  3. Environment variable overrides
//  4. Validation (fails fast if invalid)
//
// # Validation
//
// Validation collects every problem before failing:
//
//	configuration validation failed with 2 errors:
//	  - engine.max_cycles: must be at least 1
//	  - rules.git.repository: field is required when rules.mode is "git"
//
// # Example Configuration
//
//	engine:
//	  max_cycles: 10
//	  on_action_error: continue-rule
//
//	rules:
//	  mode: file
//	  path: ./rules
//	  watch:
//	    enabled: true
//
//	history:
//	  enabled: true
//	  driver: sqlite
//	  dsn: data/history.db
//
//	telemetry:
//	  logging:
//	    level: info
//	    format: json
package config
