package config

import "github.com/openlyhq/openly/internal/logging"

// ToLoggingConfig converts LoggingConfig to logging.Config.
//
// The conversion applies these rules:
//   - Level, Format are copied directly
//   - If File is set, Output becomes "file" and File is passed through
//   - If File is empty, Output defaults to "stderr"
func (lc *LoggingConfig) ToLoggingConfig() logging.Config {
	output := logging.OutputStderr
	if lc.File != "" {
		output = outputTypeFile
	}

	return logging.Config{
		Level:  lc.Level,
		Format: lc.Format,
		Output: output,
		File:   lc.File,
	}
}

// ToAuditConfig converts AuditConfig to logging.AuditLoggerConfig.
func (ac AuditConfig) ToAuditConfig() logging.AuditLoggerConfig {
	return logging.AuditLoggerConfig{Enabled: ac.Enabled, File: ac.File}
}

// GetLoggingConfig returns a copy of the global config's Logging section.
// Flag overrides such as --debug are applied by the caller.
func GetLoggingConfig() LoggingConfig {
	cfg := GetGlobalConfig()
	return cfg.Logging
}
