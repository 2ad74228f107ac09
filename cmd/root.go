// Package cmd contains the pedira CLI commands.
package cmd

import (
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pedira/pedira/internal/log"
)

var rootCmd = &cobra.Command{
	Use:   "pedira",
	Short: "Pedira - pediatric clinic document assistant",
	Long: `Pedira answers caregiver questions from the clinic's own PDF documents.

It ingests the documents into a vector index, keeps the index in sync with
the documents directory, and serves a question-answering HTTP API.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// newLogger builds the process logger. PEDIRA_LOG_LEVEL and PEDIRA_LOG_JSON
// are read here, before configuration is loaded, so config loading itself
// can log.
func newLogger() log.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(os.Getenv("PEDIRA_LOG_LEVEL")) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	return log.New(log.Config{
		Level: level,
		JSON:  os.Getenv("PEDIRA_LOG_JSON") == "true",
	})
}
