// Package logging provides zap logger helpers.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	filePrefix = "crawler_"
	archiveDir = "archive"
)

// Options configures New.
type Options struct {
	// Development selects the colored console encoder over JSON.
	Development bool
	// Dir, when set, also writes the run to Dir/crawler_<timestamp>.log after
	// moving earlier run files to Dir/archive.
	Dir string
	// Now stamps the log file name; defaults to time.Now.
	Now func() time.Time
}

// New builds a zap.Logger configured for development or production.
func New(opts Options) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.DisableStacktrace = false
	if opts.Development {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	cfg.EncoderConfig.TimeKey = "ts"

	if opts.Dir != "" {
		path, err := prepareFile(opts.Dir, opts.Now)
		if err != nil {
			return nil, err
		}
		cfg.OutputPaths = append(cfg.OutputPaths, path)
		if opts.Development {
			// Escape codes do not belong in the file.
			cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
		}
	}

	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return logger, nil
}

// prepareFile archives earlier run files and returns the new file path.
func prepareFile(dir string, now func() time.Time) (string, error) {
	if now == nil {
		now = time.Now
	}
	if err := os.MkdirAll(filepath.Join(dir, archiveDir), 0o750); err != nil {
		return "", fmt.Errorf("create log dir: %w", err)
	}
	previous, err := filepath.Glob(filepath.Join(dir, filePrefix+"*.log"))
	if err != nil {
		return "", fmt.Errorf("list log files: %w", err)
	}
	for _, old := range previous {
		dst := filepath.Join(dir, archiveDir, filepath.Base(old))
		if err := os.Rename(old, dst); err != nil {
			return "", fmt.Errorf("archive %s: %w", old, err)
		}
	}
	name := filePrefix + now().Format("2006-01-02_15-04-05") + ".log"
	return filepath.Join(dir, name), nil
}
