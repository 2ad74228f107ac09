// Package app builds and owns the application's component graph.
//
// Setup wires configuration into the concrete services; App is the container
// handed to the commands. Close releases resources in reverse order of
// construction.
package app

import (
	"github.com/firebase/genkit/go/genkit"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pedira/pedira/internal/api"
	"github.com/pedira/pedira/internal/assistant"
	"github.com/pedira/pedira/internal/config"
	"github.com/pedira/pedira/internal/embed"
	"github.com/pedira/pedira/internal/feedback"
	"github.com/pedira/pedira/internal/ingest"
	"github.com/pedira/pedira/internal/log"
	"github.com/pedira/pedira/internal/vecstore"
)

// App is the application container.
type App struct {
	Config *config.Config
	Logger log.Logger

	Genkit   *genkit.Genkit
	DBPool   *pgxpool.Pool
	Index    *vecstore.PostgresIndex
	Embedder *embed.Service

	Pipeline  *ingest.Pipeline
	Watcher   *ingest.Watcher
	Assistant *assistant.Service
	Feedback  *feedback.Store
	Server    *api.Server

	otelCleanup func()
}

// Close releases all resources. Safe to call on a partially built App.
func (a *App) Close() error {
	if a.Logger != nil {
		a.Logger.Info("shutting down application")
	}

	if a.Pipeline != nil {
		if err := a.Pipeline.Close(); err != nil && a.Logger != nil {
			a.Logger.Warn("releasing ingest registry", "error", err)
		}
	}
	if a.DBPool != nil {
		a.DBPool.Close()
	}
	if a.otelCleanup != nil {
		a.otelCleanup()
	}
	return nil
}
