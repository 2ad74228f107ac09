package vecstore

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// maxPreviewBytes caps the stored text preview per record, matching the
// index provider's per-record metadata limit.
const maxPreviewBytes = 1000

// maxUpsertBatch caps rows per INSERT statement.
const maxUpsertBatch = 100

// querier is the common interface satisfied by *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresIndex implements Index on PostgreSQL + pgvector.
//
// PostgresIndex is safe for concurrent use by multiple goroutines.
type PostgresIndex struct {
	db        querier
	dimension int
	logger    *slog.Logger
}

// NewPostgres creates a pgvector-backed index. dimension must match the
// vector column in the chunks table.
func NewPostgres(pool *pgxpool.Pool, dimension int, logger *slog.Logger) (*PostgresIndex, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if dimension < 1 {
		return nil, fmt.Errorf("dimension must be positive, got %d", dimension)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresIndex{db: pool, dimension: dimension, logger: logger}, nil
}

// Upsert inserts or replaces records by chunk ID. Records are written in
// sub-batches of at most 100 rows per statement.
func (x *PostgresIndex) Upsert(ctx context.Context, records []Record) error {
	for start := 0; start < len(records); start += maxUpsertBatch {
		end := start + maxUpsertBatch
		if end > len(records) {
			end = len(records)
		}
		if err := x.upsertBatch(ctx, records[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func (x *PostgresIndex) upsertBatch(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}

	for _, r := range records {
		if len(r.Vector) != x.dimension {
			return fmt.Errorf("record %q: vector dimension %d, index expects %d",
				r.ID, len(r.Vector), x.dimension)
		}
	}

	sql, args := buildUpsertSQL(records)
	if _, err := x.db.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("upserting %d records: %w", len(records), err)
	}

	x.logger.Debug("upserted records", "count", len(records))
	return nil
}

// buildUpsertSQL renders a multi-row INSERT ... ON CONFLICT DO UPDATE.
func buildUpsertSQL(records []Record) (string, []any) {
	const cols = 7
	var b strings.Builder
	b.WriteString(`INSERT INTO chunks
	(id, embedding, text_preview, category, document_path, document_hash, page_index)
VALUES `)

	args := make([]any, 0, len(records)*cols)
	for i, r := range records {
		if i > 0 {
			b.WriteString(", ")
		}
		base := i * cols
		fmt.Fprintf(&b, "($%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7)

		vec := pgvector.NewVector(r.Vector)
		args = append(args, r.ID, &vec,
			TruncatePreview(r.Metadata.TextPreview),
			r.Metadata.Category,
			r.Metadata.DocumentPath,
			r.Metadata.DocumentHash,
			r.Metadata.PageIndex,
		)
	}

	b.WriteString(`
ON CONFLICT (id) DO UPDATE SET
	embedding = EXCLUDED.embedding,
	text_preview = EXCLUDED.text_preview,
	category = EXCLUDED.category,
	document_path = EXCLUDED.document_path,
	document_hash = EXCLUDED.document_hash,
	page_index = EXCLUDED.page_index,
	ingested_at = now()`)

	return b.String(), args
}

// Query returns up to topK nearest neighbours by cosine similarity.
func (x *PostgresIndex) Query(ctx context.Context, vector []float32, topK int) ([]Match, error) {
	if len(vector) != x.dimension {
		return nil, fmt.Errorf("query vector dimension %d, index expects %d", len(vector), x.dimension)
	}
	if topK < 1 {
		return nil, fmt.Errorf("topK must be positive, got %d", topK)
	}

	vec := pgvector.NewVector(vector)
	rows, err := x.db.Query(ctx, `
SELECT id, text_preview, category, document_path, document_hash, page_index,
       1 - (embedding <=> $1) AS score
FROM chunks
ORDER BY embedding <=> $1
LIMIT $2`, &vec, topK)
	if err != nil {
		return nil, fmt.Errorf("querying index: %w", err)
	}
	defer rows.Close()

	var matches []Match
	for rows.Next() {
		var m Match
		if err := rows.Scan(&m.ID, &m.Metadata.TextPreview, &m.Metadata.Category,
			&m.Metadata.DocumentPath, &m.Metadata.DocumentHash,
			&m.Metadata.PageIndex, &m.Score); err != nil {
			return nil, fmt.Errorf("scanning match: %w", err)
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading matches: %w", err)
	}
	return matches, nil
}

// DeleteByDocument removes records for path. With exceptHash set, records of
// that hash are kept, retiring all superseded versions in one statement.
func (x *PostgresIndex) DeleteByDocument(ctx context.Context, path, exceptHash string) error {
	var tag pgconn.CommandTag
	var err error
	if exceptHash == "" {
		tag, err = x.db.Exec(ctx, `DELETE FROM chunks WHERE document_path = $1`, path)
	} else {
		tag, err = x.db.Exec(ctx,
			`DELETE FROM chunks WHERE document_path = $1 AND document_hash <> $2`,
			path, exceptHash)
	}
	if err != nil {
		return fmt.Errorf("deleting records for %s: %w", path, err)
	}

	if tag.RowsAffected() > 0 {
		x.logger.Debug("deleted records", "path", path, "count", tag.RowsAffected())
	}
	return nil
}

// Describe reports the record count and the configured dimension.
func (x *PostgresIndex) Describe(ctx context.Context) (Stats, error) {
	var count int64
	if err := x.db.QueryRow(ctx, `SELECT count(*) FROM chunks`).Scan(&count); err != nil {
		return Stats{}, fmt.Errorf("counting records: %w", err)
	}
	return Stats{TotalVectorCount: count, Dimension: x.dimension}, nil
}

// TruncatePreview trims a preview to the per-record metadata byte limit
// without splitting a UTF-8 sequence.
func TruncatePreview(s string) string {
	if len(s) <= maxPreviewBytes {
		return s
	}
	cut := maxPreviewBytes
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
