// Package config handles loading and validating JuiceBridge configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with environment variables
//   - Validation of required fields
//   - Default value handling
//
// CLI flags take precedence over everything here (see cmd/juicebridge),
// which layers flags > env > YAML > defaults.
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Bridge.JuiceboxHost)
package config
