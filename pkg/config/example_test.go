package config_test

import (
	"fmt"

	"github.com/swagat2001/systematic-sector-rotation/pkg/config"
)

// Example demonstrates how to use the config package
func Example() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		return
	}

	fmt.Printf("Server running on port: %s\n", cfg.Port)
	fmt.Printf("Environment: %s\n", cfg.Env)
	fmt.Printf("Data directory: %s\n", cfg.DataDir)
	fmt.Printf("DB Max Connections: %d\n", cfg.Database.MaxConns)
}
