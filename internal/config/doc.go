// Package config loads the contact cleaner configuration.
//
// # Configuration Sources
//
// Values are resolved in this order, later sources winning:
//
//	1. Default()
//	2. A YAML file (explicit path, or config.yaml / configs/config.yaml)
//	3. Environment variables prefixed with CONTACTS_
//
// # Environment Variables
//
//	CONTACTS_SERVER_PORT=8080
//	CONTACTS_LOGGING_LEVEL=debug
//	CONTACTS_LOGGING_OUTPUT=both
//	CONTACTS_PROCESSING_OUTPUT_FORMAT=xlsx
//	CONTACTS_PROCESSING_CASE_INSENSITIVE_DOMAINS=false
//	CONTACTS_PATHS_ALLOW_FOLDER_RUNS=true
//
// # Usage
//
//	cfg, err := config.Load("")
//	if err != nil {
//	    return err
//	}
//	logger, err := infrastructure.InitializeLogger(cfg.Logging)
package config
