// Package config provides configuration management for the dagrun server.
//
// Configuration is loaded from environment variables using the env package.
// All configuration values have sensible defaults for development use; with
// no environment set the server runs with in-memory storage and events and
// without the llm agent.
//
// Example usage:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	fmt.Printf("HTTP server will listen on %s\n", cfg.GetHTTPAddr())
package config
