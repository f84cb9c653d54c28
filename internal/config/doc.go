// Package config provides centralized configuration management for rollbook.
//
// # Configuration Sources
//
// Configuration is layered, later sources overriding earlier ones:
//
//	1. Default values (Default)
//	2. A YAML file: $ROLLBOOK_CONFIG, config.yaml or configs/config.yaml
//	3. Environment variables (highest priority)
//
// # Environment Variables
//
// Variables follow the pattern ROLLBOOK_<SECTION>_<FIELD>:
//
//	ROLLBOOK_SERVER_PORT=8080
//	ROLLBOOK_LOGGING_LEVEL=debug
//	ROLLBOOK_PATHS_BASE_DIR=/var/lib/rollbook
//	ROLLBOOK_UPLOAD_MAX_BYTES=5242880
//	ROLLBOOK_SHEETS_API_KEY=...
//
// # Path Management
//
// ResolvePaths turns the relative PathsConfig into absolute directories:
//
//	paths, err := config.ResolvePaths(cfg.Paths)
//	report := paths.GetReportPath(config.AttendanceReport)
package config
