// Package cmd contains the command-line entry points for docent.
package cmd

import (
	"log/slog"
	"os"

	"github.com/docent-ai/docent/internal/log"
)

// Version information (injected at build time via ldflags).
var (
	AppVersion = "0.1.0"
	BuildTime  = "unknown"
	GitCommit  = "unknown"
)

// Execute is the main entry point for docent. It routes the first
// argument to a subcommand; the default is serving the HTTP API.
//
// Design: Following the pattern used by kubectl, hugo, and other
// standard Go CLI tools, all application logic is contained in the cmd
// package, leaving main.go as a minimal entry point.
func Execute() error {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "version", "--version", "-v":
			printVersionInfo()
			return nil
		case "help", "--help", "-h":
			printHelp()
			return nil
		case "serve":
			return runServe()
		}
	}

	return runServe()
}

// initLogger initializes the structured logger.
//
// Log level is controlled by the DEBUG environment variable:
//   - DEBUG set (any value): debug level logging
//   - DEBUG not set: info level logging
func initLogger() log.Logger {
	cfg := log.Config{Level: slog.LevelInfo}
	if os.Getenv("DEBUG") != "" {
		cfg.Level = slog.LevelDebug
	}
	return log.New(cfg)
}
