package main

import "github.com/kestrelcode/tinyagent/internal/logging"

func setupFileLogging(verbose bool) error {
	return logging.Setup(verbose)
}
