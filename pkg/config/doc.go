// Package config provides configuration management for Bastion.
//
// This package handles loading, validating, and defaulting configuration from
// YAML files with environment variable overrides.
//
// # Configuration Loading
//
// Configuration can be loaded in two ways:
//
//  1. From a YAML file only:
//     cfg, err := config.LoadConfig("config.yaml")
//
//  2. From a YAML file with environment variable overrides:
//     cfg, err := config.LoadConfigWithEnvOverrides("config.yaml", false)
//
// # Environment Variable Overrides
//
// Environment variables follow the naming convention BASTION_SECTION_FIELD.
// For example:
//
//   - BASTION_SERVER_LISTEN_ADDRESS overrides server.listen_address
//   - BASTION_OPENAI_API_KEY overrides detectors.openai.api_key
//   - BASTION_KAFKA_BOOTSTRAP_SERVERS overrides notify.kafka.bootstrap_servers (comma-separated)
//
// # Configuration Precedence
//
// Configuration values are applied in the following order (later overrides earlier):
//
//  1. Values from YAML file
//  2. Default values for fields left unset
//  3. Environment variable overrides
//  4. Validation (fails fast if invalid)
//
// The resulting *Config is passed explicitly to the components that need it;
// there is no package-level configuration state.
package config
