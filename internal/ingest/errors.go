package ingest

import "fmt"

// Stage identifies the pipeline step that failed. Stages appear in logs and
// in registry accounting, never in client-facing responses.
type Stage string

const (
	StagePDFLoad       Stage = "pdf_load"
	StageEmbed         Stage = "embed"
	StageUpsert        Stage = "upsert"
	StageRegistryWrite Stage = "registry_write"
)

// Error reports a per-document ingestion failure. One document failing never
// aborts the surrounding scan; callers log the error and continue.
type Error struct {
	Stage Stage
	Path  string
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("ingest %s: stage %s: %v", e.Path, e.Stage, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }
