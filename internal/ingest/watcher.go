package ingest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/sync/errgroup"

	"github.com/pedira/pedira/internal/log"
)

// DefaultSettleDelay is how long a path must stay quiet after its last
// filesystem event before it is ingested. Copies and downloads emit many
// writes; the delay coalesces them into a single ingestion.
const DefaultSettleDelay = 2 * time.Second

// DefaultScanInterval is how often the watcher reruns a full scan. The scan
// picks up anything the event path missed: dropped queue entries, events lost
// while a directory was being moved, files changed before the watch existed.
const DefaultScanInterval = 5 * time.Minute

// heartbeatInterval paces the watcher's liveness log line.
const heartbeatInterval = 10 * time.Second

// queueCapacity bounds pending ingestion jobs. Overflow drops the newest job
// with a warning; the next periodic scan recovers anything dropped.
const queueCapacity = 256

// Watcher observes the documents root and feeds changed PDFs to the pipeline.
//
// Event handling per path: events reset a settle timer, and only when the
// timer fires is the path queued. Worker goroutines drain the queue; a keyed
// lock serialises jobs touching the same path so two versions of one document
// are never ingested concurrently. A full scan runs at start and on a
// periodic ticker as the catch-all for missed events.
type Watcher struct {
	root        string
	pipeline    *Pipeline
	logger      log.Logger
	settle      time.Duration
	scanEvery   time.Duration
	concurrency int

	mu       sync.Mutex
	timers   map[string]*time.Timer
	pathLock map[string]*sync.Mutex
}

// NewWatcher creates a watcher over the pipeline's documents root.
func NewWatcher(root string, pipeline *Pipeline, logger log.Logger, settle, scanEvery time.Duration, concurrency int) (*Watcher, error) {
	if pipeline == nil {
		return nil, fmt.Errorf("pipeline is required")
	}
	if settle <= 0 {
		settle = DefaultSettleDelay
	}
	if scanEvery <= 0 {
		scanEvery = DefaultScanInterval
	}
	if concurrency < 1 {
		concurrency = 2
	}
	return &Watcher{
		root:        filepath.Clean(root),
		pipeline:    pipeline,
		logger:      logger,
		settle:      settle,
		scanEvery:   scanEvery,
		concurrency: concurrency,
		timers:      make(map[string]*time.Timer),
		pathLock:    make(map[string]*sync.Mutex),
	}, nil
}

// Run performs an initial scan, then watches the root until ctx is cancelled.
// It returns nil on cancellation and an error only when the watch itself
// cannot be established or breaks.
func (w *Watcher) Run(ctx context.Context) error {
	if _, err := w.pipeline.Scan(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return fmt.Errorf("initial scan: %w", err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating filesystem watcher: %w", err)
	}
	defer func() { _ = fsw.Close() }()

	if err := w.watchTree(fsw, w.root); err != nil {
		return err
	}

	jobs := make(chan string, queueCapacity)

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < w.concurrency; i++ {
		g.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return nil
				case rel := <-jobs:
					w.handle(ctx, rel)
				}
			}
		})
	}

	// jobs is never closed: settle timers may fire after this loop exits, and
	// their non-blocking sends must not panic. Workers exit on ctx instead. A
	// broken event stream returns an error so the group context releases them.
	g.Go(func() error {
		defer w.stopTimers()
		for {
			select {
			case <-ctx.Done():
				return nil
			case event, ok := <-fsw.Events:
				if !ok {
					return fmt.Errorf("filesystem event stream closed")
				}
				w.onEvent(fsw, event, jobs)
			case err, ok := <-fsw.Errors:
				if !ok {
					return fmt.Errorf("filesystem error stream closed")
				}
				w.logger.Warn("filesystem watch error", "error", err)
			}
		}
	})

	// Periodic rescan plus a heartbeat. Rescans route paths through the job
	// queue, so the per-path locks serialise them against settled events.
	g.Go(func() error {
		scan := time.NewTicker(w.scanEvery)
		defer scan.Stop()
		beat := time.NewTicker(heartbeatInterval)
		defer beat.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-beat.C:
				w.logger.Debug("watcher heartbeat", "root", w.root, "queued", len(jobs))
			case <-scan.C:
				if err := w.rescan(ctx, jobs); err != nil && !errors.Is(err, context.Canceled) {
					w.logger.Error("periodic rescan failed", "error", err)
				}
			}
		}
	})

	w.logger.Info("watching documents root",
		"root", w.root, "settle", w.settle, "rescan", w.scanEvery, "workers", w.concurrency)
	return g.Wait()
}

// rescan queues every current document, plus every registered path whose file
// may be gone, for the workers to reconcile. handle ingests changed files and
// retires missing ones; unchanged documents short-circuit on their hash.
func (w *Watcher) rescan(ctx context.Context, jobs chan<- string) error {
	paths, err := w.pipeline.discover()
	if err != nil {
		return err
	}
	seen := make(map[string]struct{}, len(paths))
	for _, rel := range paths {
		seen[rel] = struct{}{}
	}
	for rel := range w.pipeline.registry.Snapshot() {
		if _, ok := seen[rel]; !ok {
			paths = append(paths, rel)
		}
	}

	for _, rel := range paths {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case jobs <- rel:
		}
	}
	return nil
}

// watchTree registers the directory and all subdirectories with the watcher.
func (w *Watcher) watchTree(fsw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if name := d.Name(); path != root && strings.HasPrefix(name, ".") {
			return filepath.SkipDir
		}
		if err := fsw.Add(path); err != nil {
			return fmt.Errorf("watching %s: %w", path, err)
		}
		return nil
	})
}

// onEvent routes a single filesystem event. New directories are added to the
// watch; PDF events reset the path's settle timer.
func (w *Watcher) onEvent(fsw *fsnotify.Watcher, event fsnotify.Event, jobs chan<- string) {
	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.watchTree(fsw, event.Name); err != nil {
				w.logger.Warn("cannot watch new directory", "path", event.Name, "error", err)
			}
			return
		}
	}

	if !strings.EqualFold(filepath.Ext(event.Name), ".pdf") {
		return
	}
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}

	rel, err := filepath.Rel(w.root, event.Name)
	if err != nil {
		return
	}
	rel = filepath.ToSlash(rel)

	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.timers[rel]; ok {
		t.Reset(w.settle)
		return
	}
	w.timers[rel] = time.AfterFunc(w.settle, func() {
		w.mu.Lock()
		delete(w.timers, rel)
		w.mu.Unlock()

		select {
		case jobs <- rel:
		default:
			w.logger.Warn("ingestion queue full, dropping event", "path", rel)
		}
	})
}

// handle processes one settled path: ingest if the file exists, otherwise
// retire it.
func (w *Watcher) handle(ctx context.Context, rel string) {
	lock := w.lockFor(rel)
	lock.Lock()
	defer lock.Unlock()

	abs := filepath.Join(w.root, filepath.FromSlash(rel))
	if _, err := os.Stat(abs); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			w.logger.Warn("cannot stat document", "path", rel, "error", err)
			return
		}
		if _, known := w.pipeline.registry.Hash(rel); !known {
			return
		}
		if err := w.pipeline.Forget(ctx, rel); err != nil {
			w.logger.Error("document removal failed", "path", rel, "error", err)
		}
		return
	}

	if _, _, err := w.pipeline.Process(ctx, rel); err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		w.logger.Error("document ingestion failed", "path", rel, "error", err)
	}
}

// lockFor returns the per-path mutex, creating it on first use.
func (w *Watcher) lockFor(rel string) *sync.Mutex {
	w.mu.Lock()
	defer w.mu.Unlock()
	if l, ok := w.pathLock[rel]; ok {
		return l
	}
	l := &sync.Mutex{}
	w.pathLock[rel] = l
	return l
}

// stopTimers cancels all pending settle timers.
func (w *Watcher) stopTimers() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for rel, t := range w.timers {
		t.Stop()
		delete(w.timers, rel)
	}
}
