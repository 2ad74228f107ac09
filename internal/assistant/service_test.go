package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/pedira/pedira/internal/i18n"
	"github.com/pedira/pedira/internal/log"
	"github.com/pedira/pedira/internal/vecstore"
)

type embedderStub struct {
	calls int
	err   error
}

func (e *embedderStub) Embed(_ context.Context, _ string) ([]float32, error) {
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	return []float32{1, 0, 0}, nil
}

type indexStub struct {
	matches []vecstore.Match
	err     error
}

func (s *indexStub) Upsert(_ context.Context, _ []vecstore.Record) error { return nil }

func (s *indexStub) Query(_ context.Context, _ []float32, _ int) ([]vecstore.Match, error) {
	return s.matches, s.err
}

func (s *indexStub) DeleteByDocument(_ context.Context, _, _ string) error { return nil }

func (s *indexStub) Describe(_ context.Context) (vecstore.Stats, error) {
	return vecstore.Stats{}, nil
}

type generatorSpy struct {
	calls      int
	lastPrompt string
	lastParams DecodingParams
	answer     string
	err        error
}

func (g *generatorSpy) Generate(_ context.Context, prompt string, params DecodingParams) (string, error) {
	g.calls++
	g.lastPrompt = prompt
	g.lastParams = params
	if g.err != nil {
		return "", g.err
	}
	return g.answer, nil
}

func matchWith(path, preview string, score float32) vecstore.Match {
	return vecstore.Match{
		ID:    path + "-0000",
		Score: score,
		Metadata: vecstore.Metadata{
			TextPreview:  preview,
			Category:     "asi",
			DocumentPath: path,
			PageIndex:    0,
		},
	}
}

func newTestService(t *testing.T, embedder *embedderStub, index *indexStub, gen *generatorSpy) *Service {
	t.Helper()
	catalog := i18n.New("tr")

	retriever, err := NewRetriever(embedder, index, log.NewNop(), 5, 20)
	if err != nil {
		t.Fatalf("NewRetriever() error = %v", err)
	}
	composer, err := NewComposer(catalog)
	if err != nil {
		t.Fatalf("NewComposer() error = %v", err)
	}
	svc, err := NewService(retriever, composer, gen, catalog, log.NewNop(), Options{})
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	return svc
}

func TestAskRejectsEmptyQuestion(t *testing.T) {
	embedder := &embedderStub{}
	gen := &generatorSpy{answer: "yanıt"}
	svc := newTestService(t, embedder, &indexStub{}, gen)

	_, err := svc.Ask(context.Background(), &QueryRequest{Question: "   "})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("Ask() error = %v, want ErrValidation", err)
	}
	if embedder.calls != 0 || gen.calls != 0 {
		t.Error("validation failure still reached the models")
	}
}

func TestAskRejectsOverlongQuestion(t *testing.T) {
	embedder := &embedderStub{}
	gen := &generatorSpy{answer: "yanıt"}
	svc := newTestService(t, embedder, &indexStub{}, gen)

	long := strings.Repeat("ç", 1001)
	_, err := svc.Ask(context.Background(), &QueryRequest{Question: long})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("Ask() error = %v, want ErrValidation", err)
	}

	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Field != "question" {
		t.Errorf("error = %#v, want ValidationError on question", err)
	}
	if embedder.calls != 0 || gen.calls != 0 {
		t.Error("validation failure still reached the models")
	}
}

func TestAskAcceptsQuestionAtLimit(t *testing.T) {
	gen := &generatorSpy{answer: "yanıt"}
	svc := newTestService(t, &embedderStub{}, &indexStub{}, gen)

	// 1000 runes of a multi-byte character; the limit counts characters.
	limit := strings.Repeat("ş", 1000)
	if _, err := svc.Ask(context.Background(), &QueryRequest{Question: limit}); err != nil {
		t.Fatalf("Ask() error = %v for question at the length limit", err)
	}
}

func TestAskAppendsDisclaimer(t *testing.T) {
	gen := &generatorSpy{answer: "Ateş 38 derecenin üzerindeyse doktora danışın."}
	svc := newTestService(t, &embedderStub{}, &indexStub{}, gen)

	resp, err := svc.Ask(context.Background(), &QueryRequest{Question: "Ateş ne zaman tehlikelidir?"})
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}

	if !strings.HasPrefix(resp.Answer, gen.answer) {
		t.Error("generated answer missing from response")
	}
	if got := strings.Count(resp.Answer, "⚠️"); got != 1 {
		t.Errorf("disclaimer marker appears %d times, want 1", got)
	}
	if !strings.Contains(resp.Answer, "112") {
		t.Error("disclaimer lost the emergency number")
	}
}

func TestAskEmbedFailureDegradesToNoContext(t *testing.T) {
	embedder := &embedderStub{err: fmt.Errorf("connection refused")}
	gen := &generatorSpy{answer: "Genel bilgilere göre yanıtlıyorum."}
	svc := newTestService(t, embedder, &indexStub{}, gen)

	resp, err := svc.Ask(context.Background(), &QueryRequest{Question: "Aşı takvimi nedir?"})
	if err != nil {
		t.Fatalf("Ask() error = %v, want degraded success", err)
	}
	if len(resp.Sources) != 0 {
		t.Errorf("sources = %d, want 0 when embedding fails", len(resp.Sources))
	}
	if !strings.Contains(gen.lastPrompt, noContextNotice) {
		t.Error("prompt does not mark the missing context")
	}
}

func TestAskRequireContextFailsOnEmptyRetrieval(t *testing.T) {
	embedder := &embedderStub{err: fmt.Errorf("connection refused")}
	gen := &generatorSpy{answer: "yanıt"}
	catalog := i18n.New("tr")

	retriever, err := NewRetriever(embedder, &indexStub{}, log.NewNop(), 5, 20)
	if err != nil {
		t.Fatalf("NewRetriever() error = %v", err)
	}
	composer, err := NewComposer(catalog)
	if err != nil {
		t.Fatalf("NewComposer() error = %v", err)
	}
	svc, err := NewService(retriever, composer, gen, catalog, log.NewNop(), Options{RequireContext: true})
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}

	_, err = svc.Ask(context.Background(), &QueryRequest{Question: "Aşı takvimi nedir?"})
	if !errors.Is(err, ErrUpstreamUnavailable) {
		t.Fatalf("Ask() error = %v, want ErrUpstreamUnavailable", err)
	}
	if gen.calls != 0 {
		t.Error("generation attempted despite missing context")
	}
}

func TestAskIndexFailureDegradesToNoContext(t *testing.T) {
	index := &indexStub{err: fmt.Errorf("index down")}
	gen := &generatorSpy{answer: "Genel bilgilere göre yanıtlıyorum."}
	svc := newTestService(t, &embedderStub{}, index, gen)

	resp, err := svc.Ask(context.Background(), &QueryRequest{Question: "Ek gıdaya ne zaman geçilir?"})
	if err != nil {
		t.Fatalf("Ask() error = %v, want degraded success", err)
	}
	if len(resp.Sources) != 0 {
		t.Errorf("sources = %d, want 0 when index fails", len(resp.Sources))
	}
	if !strings.Contains(gen.lastPrompt, noContextNotice) {
		t.Error("prompt does not mark the missing context")
	}
}

func TestAskGenerationFailureIsUpstream(t *testing.T) {
	gen := &generatorSpy{err: fmt.Errorf("%w: quota exceeded", ErrUpstreamUnavailable)}
	svc := newTestService(t, &embedderStub{}, &indexStub{}, gen)

	_, err := svc.Ask(context.Background(), &QueryRequest{Question: "Soru?"})
	if !errors.Is(err, ErrUpstreamUnavailable) {
		t.Fatalf("Ask() error = %v, want ErrUpstreamUnavailable", err)
	}
}

func TestAskSourcesCappedAndTruncated(t *testing.T) {
	longPreview := strings.Repeat("uzun içerik ", 30)
	index := &indexStub{matches: []vecstore.Match{
		matchWith("a.pdf", longPreview, 0.95),
		matchWith("b.pdf", "kısa", 0.90),
		matchWith("c.pdf", "orta uzunlukta", 0.85),
		matchWith("d.pdf", "dördüncü", 0.80),
		matchWith("e.pdf", "beşinci", 0.75),
	}}
	gen := &generatorSpy{answer: "yanıt"}
	svc := newTestService(t, &embedderStub{}, index, gen)

	resp, err := svc.Ask(context.Background(), &QueryRequest{Question: "Soru?"})
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}

	if len(resp.Sources) != 3 {
		t.Fatalf("sources = %d, want 3", len(resp.Sources))
	}
	if !strings.HasSuffix(resp.Sources[0].Content, "...") {
		t.Error("long source content not marked as truncated")
	}
	if resp.Sources[1].Content != "kısa" {
		t.Errorf("short content altered: %q", resp.Sources[1].Content)
	}
	if resp.Sources[0].Metadata.DocumentPath != "a.pdf" {
		t.Errorf("source order changed: %q first", resp.Sources[0].Metadata.DocumentPath)
	}

	// All five retrieved excerpts still feed the prompt.
	if !strings.Contains(gen.lastPrompt, "beşinci") {
		t.Error("retrieved context missing from prompt")
	}
}

func TestAskEchoesConversationID(t *testing.T) {
	gen := &generatorSpy{answer: "yanıt"}
	svc := newTestService(t, &embedderStub{}, &indexStub{}, gen)

	resp, err := svc.Ask(context.Background(), &QueryRequest{
		Question:       "Soru?",
		ConversationID: "conv-42",
	})
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if resp.ConversationID != "conv-42" {
		t.Errorf("ConversationID = %q, want conv-42", resp.ConversationID)
	}
}

func TestAskScenarioSelectsDecoding(t *testing.T) {
	tests := []struct {
		scenario string
		wantTemp float32
		wantMax  int32
	}{
		{"medical_expert", 0.6, 4096},
		{"emergency", 0.3, 2048},
		{"general_health", 0.7, 4096},
		{"", 0.6, 4096},
		{"bilinmeyen", 0.6, 4096},
	}
	for _, tt := range tests {
		gen := &generatorSpy{answer: "yanıt"}
		svc := newTestService(t, &embedderStub{}, &indexStub{}, gen)

		_, err := svc.Ask(context.Background(), &QueryRequest{
			Question: "Soru?",
			Scenario: tt.scenario,
		})
		if err != nil {
			t.Fatalf("Ask(%q) error = %v", tt.scenario, err)
		}
		if gen.lastParams.Temperature != tt.wantTemp {
			t.Errorf("scenario %q: temperature = %v, want %v",
				tt.scenario, gen.lastParams.Temperature, tt.wantTemp)
		}
		if gen.lastParams.MaxOutputTokens != tt.wantMax {
			t.Errorf("scenario %q: max tokens = %v, want %v",
				tt.scenario, gen.lastParams.MaxOutputTokens, tt.wantMax)
		}
	}
}

func TestRetrieverCutsToTopK(t *testing.T) {
	var matches []vecstore.Match
	for i := 0; i < 12; i++ {
		matches = append(matches, matchWith(fmt.Sprintf("d%d.pdf", i), "içerik", 1-float32(i)*0.05))
	}
	index := &indexStub{matches: matches}

	r, err := NewRetriever(&embedderStub{}, index, log.NewNop(), 5, 20)
	if err != nil {
		t.Fatalf("NewRetriever() error = %v", err)
	}

	got, err := r.Retrieve(context.Background(), "soru", 0, 0)
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if len(got) != 5 {
		t.Errorf("matches = %d, want 5", len(got))
	}
}

func TestRetrievePerCallOverrides(t *testing.T) {
	var matches []vecstore.Match
	for i := 0; i < 25; i++ {
		matches = append(matches, matchWith(fmt.Sprintf("d%d.pdf", i), "içerik", 1-float32(i)*0.02))
	}
	index := &indexStub{matches: matches}

	r, err := NewRetriever(&embedderStub{}, index, log.NewNop(), 5, 20)
	if err != nil {
		t.Fatalf("NewRetriever() error = %v", err)
	}

	got, err := r.Retrieve(context.Background(), "soru", 2, 0)
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if len(got) != 2 {
		t.Errorf("matches = %d, want 2 with per-call top_k", len(got))
	}

	// Requests beyond the ceiling are clamped, never honoured.
	got, err = r.Retrieve(context.Background(), "soru", 50, 0)
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if len(got) != maxTopK {
		t.Errorf("matches = %d, want %d when top_k exceeds the cap", len(got), maxTopK)
	}

	// A fetch_k below the effective top_k is raised, so top_k results survive.
	got, err = r.Retrieve(context.Background(), "soru", 10, 3)
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if len(got) != 10 {
		t.Errorf("matches = %d, want 10 when fetch_k is below top_k", len(got))
	}
}

func TestAskPerCallTopKLimitsSources(t *testing.T) {
	index := &indexStub{matches: []vecstore.Match{
		matchWith("a.pdf", "birinci", 0.95),
		matchWith("b.pdf", "ikinci", 0.90),
		matchWith("c.pdf", "üçüncü", 0.85),
	}}
	gen := &generatorSpy{answer: "yanıt"}
	svc := newTestService(t, &embedderStub{}, index, gen)

	resp, err := svc.Ask(context.Background(), &QueryRequest{Question: "Soru?", TopK: 1})
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if len(resp.Sources) != 1 {
		t.Fatalf("sources = %d, want 1 with per-call top_k", len(resp.Sources))
	}
	if strings.Contains(gen.lastPrompt, "ikinci") {
		t.Error("prompt contains context beyond the requested top_k")
	}
}

func TestAskRejectsBadRetrievalParams(t *testing.T) {
	gen := &generatorSpy{answer: "yanıt"}
	svc := newTestService(t, &embedderStub{}, &indexStub{}, gen)

	tests := []struct {
		name string
		req  QueryRequest
	}{
		{"negative top_k", QueryRequest{Question: "Soru?", TopK: -1}},
		{"negative fetch_k", QueryRequest{Question: "Soru?", FetchK: -5}},
		{"fetch_k below top_k", QueryRequest{Question: "Soru?", TopK: 10, FetchK: 3}},
	}
	for _, tt := range tests {
		if _, err := svc.Ask(context.Background(), &tt.req); !errors.Is(err, ErrValidation) {
			t.Errorf("%s: Ask() error = %v, want ErrValidation", tt.name, err)
		}
	}
	if gen.calls != 0 {
		t.Error("validation failure still reached the generator")
	}
}
