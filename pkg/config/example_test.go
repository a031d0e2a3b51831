package config_test

import (
	"fmt"
	"log"
	"time"

	"github.com/ajitpratap0/exoseq/pkg/config"
)

// ExampleNewConfig demonstrates creating a new configuration with default
// values.
func ExampleNewConfig() {
	cfg := config.NewConfig()

	// The configuration comes with sensible defaults
	fmt.Printf("Variables: %v\n", cfg.Conversion.Variables)
	fmt.Printf("Compression: %s\n", cfg.Conversion.Compression)
	fmt.Printf("Retry Attempts: %d\n", cfg.Reliability.RetryAttempts)

	// Output:
	// Variables: [TEMP]
	// Compression: none
	// Retry Attempts: 3
}

// ExampleConfig_Validate shows how to validate a configuration before using
// it.
func ExampleConfig_Validate() {
	cfg := config.NewConfig()

	cfg.Conversion.WindowSize = 10
	cfg.Conversion.Variables = []string{"TEMP", "PRESSURE"}
	cfg.Conversion.Compression = "zstd"
	cfg.Job.Workers = 16
	cfg.Job.TaskTimeout = 30 * time.Minute

	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	fmt.Println("Configuration is valid!")

	// Output:
	// Configuration is valid!
}

// ExampleReliabilityConfig_Backoff shows the delay before each retry.
func ExampleReliabilityConfig_Backoff() {
	r := config.ReliabilityConfig{
		RetryAttempts:   5,
		RetryDelay:      time.Second,
		RetryMultiplier: 2.0,
		MaxRetryDelay:   5 * time.Second,
	}

	for n := 1; n < r.Attempts(); n++ {
		fmt.Printf("retry %d after %s\n", n, r.Backoff(n))
	}

	// Output:
	// retry 1 after 1s
	// retry 2 after 2s
	// retry 3 after 4s
	// retry 4 after 5s
}
