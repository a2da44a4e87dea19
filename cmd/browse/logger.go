package main

import (
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
)

func newFileLogger(path string, debug bool) (*log.Logger, func() error, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, nil, err
	}

	logger := log.NewWithOptions(f, log.Options{ReportTimestamp: true, ReportCaller: true})
	if debug {
		logger.SetLevel(log.DebugLevel)
	}
	return logger, f.Close, nil
}
