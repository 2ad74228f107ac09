// Package ingest turns PDF documents into indexed vector records.
//
// The pipeline is content-addressed: every document is identified by the
// sha256 of its bytes, and the registry of processed hashes decides whether a
// file is new, changed, or already ingested. Re-running a scan over an
// unchanged corpus performs no embedding and no index writes.
package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/pedira/pedira/internal/chunk"
	"github.com/pedira/pedira/internal/log"
	"github.com/pedira/pedira/internal/vecstore"
)

// Embedder is the embedding dependency of the pipeline.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Status classifies a document relative to the registry.
type Status string

const (
	StatusNew       Status = "new"
	StatusChanged   Status = "changed"
	StatusUnchanged Status = "unchanged"
	StatusRemoved   Status = "removed"
)

// Summary aggregates the outcome of one scan.
type Summary struct {
	New       int
	Changed   int
	Unchanged int
	Removed   int
	Failed    int
	Chunks    int
}

// Options configures a Pipeline.
type Options struct {
	Root      string
	BatchSize int
	Splitter  *chunk.Splitter
	// MaxRetries bounds retry attempts for embed and upsert calls.
	// Zero means the default of 5.
	MaxRetries uint64
}

// Pipeline ingests PDF documents from a root directory into the vector index.
//
// Pipeline methods are safe to call concurrently for distinct documents; the
// watcher serialises work per path.
type Pipeline struct {
	root       string
	registry   *Registry
	splitter   *chunk.Splitter
	embedder   Embedder
	index      vecstore.Index
	logger     log.Logger
	batchSize  int
	maxRetries uint64

	// loadPDF and retryInitial are overridden in tests.
	loadPDF      func(path string) ([]chunk.Page, error)
	retryInitial time.Duration
}

// NewPipeline creates an ingestion pipeline rooted at opts.Root.
func NewPipeline(registry *Registry, embedder Embedder, index vecstore.Index, logger log.Logger, opts Options) (*Pipeline, error) {
	if registry == nil {
		return nil, fmt.Errorf("registry is required")
	}
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if index == nil {
		return nil, fmt.Errorf("index is required")
	}
	if opts.Root == "" {
		return nil, fmt.Errorf("documents root is required")
	}
	if opts.BatchSize < 1 || opts.BatchSize > 100 {
		return nil, fmt.Errorf("batch size %d out of range [1,100]", opts.BatchSize)
	}
	sp := opts.Splitter
	if sp == nil {
		sp = chunk.NewSplitter(chunk.DefaultSize, chunk.DefaultOverlap)
	}
	retries := opts.MaxRetries
	if retries == 0 {
		retries = 5
	}
	return &Pipeline{
		root:         filepath.Clean(opts.Root),
		registry:     registry,
		splitter:     sp,
		embedder:     embedder,
		index:        index,
		logger:       logger,
		batchSize:    opts.BatchSize,
		maxRetries:   retries,
		loadPDF:      chunk.LoadPDF,
		retryInitial: time.Second,
	}, nil
}

// Close releases the registry's exclusive file lock.
func (p *Pipeline) Close() error {
	return p.registry.Close()
}

// Scan walks the documents root, processes every new or changed PDF, and
// retires registry entries whose files are gone. Per-document failures are
// logged and counted; they never abort the scan.
func (p *Pipeline) Scan(ctx context.Context) (Summary, error) {
	paths, err := p.discover()
	if err != nil {
		return Summary{}, err
	}

	var sum Summary
	seen := make(map[string]struct{}, len(paths))
	for _, rel := range paths {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		seen[rel] = struct{}{}

		status, n, err := p.Process(ctx, rel)
		if err != nil {
			sum.Failed++
			p.logger.Error("document ingestion failed", "path", rel, "error", err)
			continue
		}
		sum.Chunks += n
		switch status {
		case StatusNew:
			sum.New++
		case StatusChanged:
			sum.Changed++
		case StatusUnchanged:
			sum.Unchanged++
		}
	}

	// Retire documents that disappeared since the previous scan.
	for rel := range p.registry.Snapshot() {
		if _, ok := seen[rel]; ok {
			continue
		}
		if err := p.Forget(ctx, rel); err != nil {
			sum.Failed++
			p.logger.Error("document removal failed", "path", rel, "error", err)
			continue
		}
		sum.Removed++
	}

	p.logger.Info("scan complete",
		"new", sum.New, "changed", sum.Changed, "unchanged", sum.Unchanged,
		"removed", sum.Removed, "failed", sum.Failed, "chunks", sum.Chunks)
	return sum, nil
}

// discover lists PDF paths under the root, relative with forward slashes,
// sorted for deterministic scan order.
func (p *Pipeline) discover() ([]string, error) {
	var paths []string
	err := filepath.WalkDir(p.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			// Hidden directories hold editor state, not documents.
			if name := d.Name(); name != "." && strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.EqualFold(filepath.Ext(path), ".pdf") {
			return nil
		}
		rel, err := filepath.Rel(p.root, path)
		if err != nil {
			return err
		}
		paths = append(paths, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", p.root, err)
	}
	sort.Strings(paths)
	return paths, nil
}

// Process ingests a single document identified by its root-relative path.
// It returns the document's status and the number of chunks written.
//
// The registry entry is written only after the index holds the new version,
// so a crash mid-ingest re-processes the document on the next scan instead of
// silently losing it.
func (p *Pipeline) Process(ctx context.Context, rel string) (Status, int, error) {
	abs := filepath.Join(p.root, filepath.FromSlash(rel))

	hash, err := hashFile(abs)
	if err != nil {
		return "", 0, &Error{Stage: StagePDFLoad, Path: rel, Err: err}
	}

	prior, known := p.registry.Hash(rel)
	if known && prior == hash {
		return StatusUnchanged, 0, nil
	}
	status := StatusNew
	if known {
		status = StatusChanged
	}

	pages, err := p.loadPDF(abs)
	if err != nil {
		return "", 0, &Error{Stage: StagePDFLoad, Path: rel, Err: err}
	}

	chunks := p.splitter.SplitPages(pages)
	if len(chunks) == 0 {
		return "", 0, &Error{Stage: StagePDFLoad, Path: rel,
			Err: fmt.Errorf("no text chunks extracted")}
	}

	category := categoryOf(rel)
	if err := p.indexChunks(ctx, rel, hash, category, chunks); err != nil {
		return "", 0, err
	}

	// Retire the superseded version only after the new one is fully present,
	// so readers never observe an empty document.
	if err := p.index.DeleteByDocument(ctx, rel, hash); err != nil {
		return "", 0, &Error{Stage: StageUpsert, Path: rel, Err: err}
	}

	if err := p.registry.Set(rel, hash); err != nil {
		return "", 0, &Error{Stage: StageRegistryWrite, Path: rel, Err: err}
	}

	p.logger.Info("document ingested",
		"path", rel, "status", status, "chunks", len(chunks),
		"hash", hash[:12], "category", category)
	return status, len(chunks), nil
}

// indexChunks embeds and upserts chunks in batches of at most batchSize.
func (p *Pipeline) indexChunks(ctx context.Context, rel, hash, category string, chunks []chunk.Chunk) error {
	for start := 0; start < len(chunks); start += p.batchSize {
		end := start + p.batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]

		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.Text
		}

		var vectors [][]float32
		err := p.retry(ctx, func() error {
			var embedErr error
			vectors, embedErr = p.embedder.EmbedBatch(ctx, texts)
			return embedErr
		})
		if err != nil {
			return &Error{Stage: StageEmbed, Path: rel, Err: err}
		}

		records := make([]vecstore.Record, len(batch))
		for i, c := range batch {
			records[i] = vecstore.Record{
				ID:     ChunkID(rel, hash, c.Ordinal),
				Vector: vectors[i],
				Metadata: vecstore.Metadata{
					TextPreview:  c.Text,
					Category:     category,
					DocumentPath: rel,
					DocumentHash: hash,
					PageIndex:    c.PageIndex,
				},
			}
		}

		err = p.retry(ctx, func() error {
			return p.index.Upsert(ctx, records)
		})
		if err != nil {
			return &Error{Stage: StageUpsert, Path: rel, Err: err}
		}
	}
	return nil
}

// Forget removes every index record for a document and drops its registry
// entry. The registry write happens last for the same crash-safety reason as
// in Process.
func (p *Pipeline) Forget(ctx context.Context, rel string) error {
	err := p.retry(ctx, func() error {
		return p.index.DeleteByDocument(ctx, rel, "")
	})
	if err != nil {
		return &Error{Stage: StageUpsert, Path: rel, Err: err}
	}
	if err := p.registry.Remove(rel); err != nil {
		return &Error{Stage: StageRegistryWrite, Path: rel, Err: err}
	}
	p.logger.Info("document removed", "path", rel)
	return nil
}

// retry runs op with exponential backoff, bounded by maxRetries and the
// caller's context.
func (p *Pipeline) retry(ctx context.Context, op func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.retryInitial
	b.MaxInterval = 30 * time.Second

	return backoff.Retry(op, backoff.WithContext(
		backoff.WithMaxRetries(b, p.maxRetries), ctx))
}

// ChunkID derives a deterministic record ID from the document's path, its
// content hash, and the chunk ordinal. Re-ingesting an identical document
// therefore produces identical IDs and upserts overwrite in place.
func ChunkID(rel, hash string, ordinal int) string {
	pathDigest := sha256.Sum256([]byte(rel))
	return fmt.Sprintf("%s-%s-%04d",
		hex.EncodeToString(pathDigest[:])[:12], hash[:12], ordinal)
}

// categoryOf derives the topic category from the document's parent directory.
// Documents directly under the root fall into the general category.
func categoryOf(rel string) string {
	dir := filepath.ToSlash(filepath.Dir(rel))
	if dir == "." || dir == "" {
		return "general"
	}
	parts := strings.Split(dir, "/")
	return parts[len(parts)-1]
}

// hashFile returns the lowercase hex sha256 of the file contents.
func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hashing %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
