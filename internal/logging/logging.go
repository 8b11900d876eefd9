// Package logging configures the process-wide zerolog logger used for
// diagnostic output. User-facing CLI output (chat text, tool results, the
// --json stream) goes directly to stdout and is never routed through here.
package logging

import (
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/kestrelcode/tinyagent/internal/config"
)

// Setup opens the log file under the data directory and installs it as the
// global zerolog logger. verbose raises the level to Debug; otherwise Info.
func Setup(verbose bool) error {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	dataDir, err := config.DataDir()
	if err != nil {
		return err
	}

	logDir := filepath.Join(dataDir, "logs")
	if err := os.MkdirAll(logDir, 0750); err != nil {
		return err
	}

	logFile := filepath.Join(logDir, "tiny-agent.log")
	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return err
	}

	log.Logger = log.Output(file)
	if verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	return nil
}
