// Package config provides server configuration for EventLink.
//
// This package defines the server configuration structure and validation:
//
//   - spec.go: ServerConfig struct definition
//   - default.go: Default configuration values
//   - verify.go: Validation of names, addresses and limits
//   - sanitize.go: Log sanitization (hide sensitive values)
//   - node.go: Mapping onto node.Config
//
// Configuration is loaded via internal/infra/confloader from a YAML file
// and EVENTLINK_ environment variables.
package config
