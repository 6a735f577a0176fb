package logging

import (
	"log/slog"
)

// SetupStdioMode installs a file-only logger for commands that own stdout
// and stdin, such as the MCP server. Anything written to stdio would corrupt
// the JSON-RPC stream.
func SetupStdioMode(cfg Config) (func(), error) {
	cfg.WriteToStderr = false
	if cfg.FilePath == "" {
		cfg.FilePath = DefaultLogPath()
	}

	logger, cleanup, err := Setup(cfg)
	if err != nil {
		return nil, err
	}

	slog.SetDefault(logger)
	slog.Info("stdio_mode_logging",
		slog.String("log_file", cfg.FilePath),
		slog.String("level", cfg.Level))

	return cleanup, nil
}
