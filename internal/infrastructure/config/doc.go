// Package config handles loading and validating tourney-core configuration.
//
// Values come from three layers, later layers winning:
//   - hard-coded defaults
//   - the YAML file passed to Load
//   - TOURNEY_* environment variables
//
// Security Considerations:
//   - security.server_secret is half of every session signing key and must
//     be supplied via TOURNEY_SERVER_SECRET in production
//   - the config file should have restricted permissions (0600)
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    return err
//	}
//	fmt.Println(cfg.API.Port)
package config
