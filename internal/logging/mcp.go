package logging

import (
	"log/slog"
)

// SetupServeMode initializes logging for the MCP stdio server. Stdout carries
// JSON-RPC exclusively, so records go to the log file only.
func SetupServeMode(level string) (func(), error) {
	cfg := Config{
		Level:         level,
		FilePath:      DefaultLogPath(),
		MaxSizeMB:     10,
		MaxFiles:      5,
		WriteToStderr: false,
	}
	if cfg.Level == "" {
		cfg.Level = "info"
	}

	logger, cleanup, err := Setup(cfg)
	if err != nil {
		return nil, err
	}

	slog.SetDefault(logger)
	return cleanup, nil
}
