// Package config provides configuration management for exoseq.
//
// # Key Features
//
// - Config: Single configuration structure shared by every command
// - Structured sections: Conversion, Job, Reliability, Storage, Observability
// - Environment variable substitution with ${VAR_NAME} and ${VAR_NAME:-default}
// - Defaults from NewConfig and validation with typed config errors
//
// # Usage
//
// ## Loading a configuration file
//
//	cfg, err := config.LoadFile("exoseq.yaml")
//	if err != nil {
//		log.Fatal(err)
//	}
//	if err := cfg.Validate(); err != nil {
//		log.Fatal(err)
//	}
//
// ## Environment Variable Substitution
//
//	# exoseq.yaml
//	conversion:
//	  window_size: 10
//	  variables: [TEMP, PRESSURE]
//	  compression: zstd
//	job:
//	  output_dir: s3://${SIM_BUCKET}/partitions
//	  workers: 8
//	  task_timeout: 30m
//	storage:
//	  region: ${AWS_REGION:-us-east-1}
//
// The command line binds the same keys to flags and EXOSEQ_* environment
// variables through viper, so EXOSEQ_JOB_WORKERS=8 overrides job.workers.
//
// # Retry Policy
//
// Reliability.Backoff gives the delay before each retry:
//
//	delay(n) = min(retry_delay * retry_multiplier^(n-1), max_retry_delay)
package config
