// Package config provides application configuration management.
//
// The config package handles loading and validation of the application's
// configuration from YAML files and CODECHECK_* environment variables. It
// covers the HTTP API, the optional MCP surface, sandbox limits, the
// ephemeral storage janitor, host toolchain binaries and per-language
// sandbox images and command templates.
//
// Usage:
//
//	cfg, err := config.New()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("Sandbox backend: %s\n", cfg.Sandbox.Backend)
package config
