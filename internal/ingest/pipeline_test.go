package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pedira/pedira/internal/chunk"
	"github.com/pedira/pedira/internal/log"
	"github.com/pedira/pedira/internal/vecstore"
)

// embedderStub returns constant-dimension vectors and can fail the first N
// calls to exercise retry behaviour.
type embedderStub struct {
	mu        sync.Mutex
	calls     int
	failFirst int
}

func (e *embedderStub) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	if e.calls <= e.failFirst {
		return nil, fmt.Errorf("transient embed failure %d", e.calls)
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0, 0}
	}
	return out, nil
}

func (e *embedderStub) callCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

type deleteCall struct {
	path       string
	exceptHash string
}

// indexSpy records upserts and deletes in memory.
type indexSpy struct {
	mu      sync.Mutex
	records map[string]vecstore.Record
	deletes []deleteCall
}

func newIndexSpy() *indexSpy {
	return &indexSpy{records: make(map[string]vecstore.Record)}
}

func (s *indexSpy) Upsert(_ context.Context, records []vecstore.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range records {
		s.records[r.ID] = r
	}
	return nil
}

func (s *indexSpy) Query(_ context.Context, _ []float32, _ int) ([]vecstore.Match, error) {
	return nil, nil
}

func (s *indexSpy) DeleteByDocument(_ context.Context, path, exceptHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deletes = append(s.deletes, deleteCall{path: path, exceptHash: exceptHash})
	for id, r := range s.records {
		if r.Metadata.DocumentPath != path {
			continue
		}
		if exceptHash != "" && r.Metadata.DocumentHash == exceptHash {
			continue
		}
		delete(s.records, id)
	}
	return nil
}

func (s *indexSpy) Describe(_ context.Context) (vecstore.Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return vecstore.Stats{TotalVectorCount: int64(len(s.records)), Dimension: 3}, nil
}

func (s *indexSpy) recordsFor(path string) []vecstore.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []vecstore.Record
	for _, r := range s.records {
		if r.Metadata.DocumentPath == path {
			out = append(out, r)
		}
	}
	return out
}

// fileTextLoader stands in for PDF parsing: the file's bytes become one page.
func fileTextLoader(path string) ([]chunk.Page, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return []chunk.Page{{Index: 0, Text: string(data)}}, nil
}

func newTestPipeline(t *testing.T, root string, embedder Embedder, index vecstore.Index) *Pipeline {
	t.Helper()
	reg, err := OpenRegistry(filepath.Join(t.TempDir(), "registry.json"))
	if err != nil {
		t.Fatalf("OpenRegistry() error = %v", err)
	}
	t.Cleanup(func() { _ = reg.Close() })
	p, err := NewPipeline(reg, embedder, index, log.NewNop(), Options{
		Root:      root,
		BatchSize: 10,
		Splitter:  chunk.NewSplitter(200, 40),
	})
	if err != nil {
		t.Fatalf("NewPipeline() error = %v", err)
	}
	p.loadPDF = fileTextLoader
	p.retryInitial = time.Millisecond
	return p
}

func writeDoc(t *testing.T, root, rel, content string) {
	t.Helper()
	abs := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(abs, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestProcessNewDocument(t *testing.T) {
	root := t.TempDir()
	writeDoc(t, root, "asi/takvim.pdf",
		strings.Repeat("Aşı takvimi ikinci ayda başlar. ", 30))

	embedder := &embedderStub{}
	index := newIndexSpy()
	p := newTestPipeline(t, root, embedder, index)

	status, n, err := p.Process(context.Background(), "asi/takvim.pdf")
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if status != StatusNew {
		t.Errorf("status = %q, want %q", status, StatusNew)
	}
	if n == 0 {
		t.Fatal("Process() wrote no chunks")
	}

	hash, ok := p.registry.Hash("asi/takvim.pdf")
	if !ok {
		t.Fatal("registry has no entry after Process()")
	}
	for _, r := range index.recordsFor("asi/takvim.pdf") {
		if r.Metadata.DocumentHash != hash {
			t.Errorf("record hash %q, registry hash %q", r.Metadata.DocumentHash, hash)
		}
		if r.Metadata.Category != "asi" {
			t.Errorf("category = %q, want asi", r.Metadata.Category)
		}
	}

	// The version cleanup keeps only the just-written hash.
	last := index.deletes[len(index.deletes)-1]
	if last.path != "asi/takvim.pdf" || last.exceptHash != hash {
		t.Errorf("version cleanup = %+v, want path with exceptHash %q", last, hash)
	}
}

func TestProcessUnchangedSkipsWork(t *testing.T) {
	root := t.TempDir()
	writeDoc(t, root, "genel.pdf", strings.Repeat("Düzenli kontrol önemlidir. ", 20))

	embedder := &embedderStub{}
	p := newTestPipeline(t, root, embedder, newIndexSpy())

	if _, _, err := p.Process(context.Background(), "genel.pdf"); err != nil {
		t.Fatalf("first Process() error = %v", err)
	}
	callsAfterFirst := embedder.callCount()

	status, n, err := p.Process(context.Background(), "genel.pdf")
	if err != nil {
		t.Fatalf("second Process() error = %v", err)
	}
	if status != StatusUnchanged {
		t.Errorf("status = %q, want %q", status, StatusUnchanged)
	}
	if n != 0 {
		t.Errorf("chunks = %d, want 0", n)
	}
	if embedder.callCount() != callsAfterFirst {
		t.Error("unchanged document triggered embedding")
	}
}

func TestProcessChangedReplacesVersion(t *testing.T) {
	root := t.TempDir()
	writeDoc(t, root, "beslenme/ek-gida.pdf",
		strings.Repeat("Ek gıdaya altıncı ayda başlanır. ", 20))

	embedder := &embedderStub{}
	index := newIndexSpy()
	p := newTestPipeline(t, root, embedder, index)

	if _, _, err := p.Process(context.Background(), "beslenme/ek-gida.pdf"); err != nil {
		t.Fatalf("first Process() error = %v", err)
	}

	writeDoc(t, root, "beslenme/ek-gida.pdf",
		strings.Repeat("Güncellenmiş ek gıda rehberi içeriği. ", 20))

	status, _, err := p.Process(context.Background(), "beslenme/ek-gida.pdf")
	if err != nil {
		t.Fatalf("second Process() error = %v", err)
	}
	if status != StatusChanged {
		t.Errorf("status = %q, want %q", status, StatusChanged)
	}

	newHash, _ := p.registry.Hash("beslenme/ek-gida.pdf")
	for _, r := range index.recordsFor("beslenme/ek-gida.pdf") {
		if r.Metadata.DocumentHash != newHash {
			t.Errorf("stale version survived: record hash %q, current %q",
				r.Metadata.DocumentHash, newHash)
		}
	}
}

func TestScanClassifiesAndRetiresMissing(t *testing.T) {
	root := t.TempDir()
	writeDoc(t, root, "a.pdf", strings.Repeat("İlk belge içeriği. ", 15))
	writeDoc(t, root, "asi/b.pdf", strings.Repeat("İkinci belge içeriği. ", 15))

	embedder := &embedderStub{}
	index := newIndexSpy()
	p := newTestPipeline(t, root, embedder, index)

	// Simulate a document ingested earlier and deleted since.
	if err := p.registry.Set("silinen.pdf", "deadbeef"); err != nil {
		t.Fatal(err)
	}

	sum, err := p.Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if sum.New != 2 {
		t.Errorf("New = %d, want 2", sum.New)
	}
	if sum.Removed != 1 {
		t.Errorf("Removed = %d, want 1", sum.Removed)
	}
	if _, ok := p.registry.Hash("silinen.pdf"); ok {
		t.Error("retired document still in registry")
	}

	// Second scan over an unchanged corpus does nothing.
	sum, err = p.Scan(context.Background())
	if err != nil {
		t.Fatalf("second Scan() error = %v", err)
	}
	if sum.Unchanged != 2 || sum.New != 0 || sum.Changed != 0 {
		t.Errorf("second scan = %+v, want 2 unchanged only", sum)
	}
}

func TestProcessRetriesTransientEmbedFailure(t *testing.T) {
	root := t.TempDir()
	writeDoc(t, root, "a.pdf", strings.Repeat("Ateş düşürücü dozajı kiloya göredir. ", 10))

	embedder := &embedderStub{failFirst: 2}
	p := newTestPipeline(t, root, embedder, newIndexSpy())

	if _, _, err := p.Process(context.Background(), "a.pdf"); err != nil {
		t.Fatalf("Process() error = %v, want recovery after retries", err)
	}
	if embedder.callCount() != 3 {
		t.Errorf("embed calls = %d, want 3", embedder.callCount())
	}
}

func TestProcessFailureLeavesRegistryUntouched(t *testing.T) {
	root := t.TempDir()
	writeDoc(t, root, "a.pdf", strings.Repeat("İçerik. ", 10))

	embedder := &embedderStub{failFirst: 1 << 20}
	p := newTestPipeline(t, root, embedder, newIndexSpy())
	p.maxRetries = 1

	if _, _, err := p.Process(context.Background(), "a.pdf"); err == nil {
		t.Fatal("Process() succeeded despite embed failures")
	}
	if _, ok := p.registry.Hash("a.pdf"); ok {
		t.Error("failed ingestion recorded in registry")
	}
}

func TestChunkIDStable(t *testing.T) {
	a := ChunkID("asi/takvim.pdf", "0123456789abcdef", 7)
	b := ChunkID("asi/takvim.pdf", "0123456789abcdef", 7)
	if a != b {
		t.Errorf("ChunkID not deterministic: %q vs %q", a, b)
	}
	if !strings.HasSuffix(a, "-0007") {
		t.Errorf("ChunkID = %q, want -0007 suffix", a)
	}
	if c := ChunkID("asi/takvim.pdf", "fedcba9876543210", 7); c == a {
		t.Error("different content hash produced identical ID")
	}
}

func TestCategoryOf(t *testing.T) {
	tests := []struct {
		rel  string
		want string
	}{
		{"takvim.pdf", "general"},
		{"asi/takvim.pdf", "asi"},
		{"beslenme/bebek/ek-gida.pdf", "bebek"},
	}
	for _, tt := range tests {
		if got := categoryOf(tt.rel); got != tt.want {
			t.Errorf("categoryOf(%q) = %q, want %q", tt.rel, got, tt.want)
		}
	}
}
