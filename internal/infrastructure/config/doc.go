// Package config loads and validates the PJLink bridge configuration.
//
// This package manages:
//   - Loading configuration from YAML or TOML files
//   - Overriding with PJLINK_BRIDGE_* environment variables
//   - Validation of required fields
//   - Default value handling
//
// Security Considerations:
//   - Passwords and tokens are Secret values: they print as [REDACTED]
//   - Prefer environment variables for credentials
//   - The config file should have restricted permissions (0600)
//
// Usage:
//
//	cfg, err := config.Load("configs/pjlink-bridge.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Projector.Host)
package config
