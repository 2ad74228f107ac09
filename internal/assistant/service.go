// Package assistant answers caregiver questions from indexed clinic documents.
//
// Ask is the single entry point: validate, retrieve context, compose the
// scenario prompt, generate, then append the localised disclaimer. Every
// outgoing answer carries the disclaimer exactly once.
package assistant

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/pedira/pedira/internal/i18n"
	"github.com/pedira/pedira/internal/log"
	"github.com/pedira/pedira/internal/vecstore"
)

// maxSources caps how many supporting excerpts a response cites.
const maxSources = 3

// sourceContentRunes caps each cited excerpt; longer previews are cut and
// marked with an ellipsis.
const sourceContentRunes = 200

// Service orchestrates the ask pipeline.
type Service struct {
	retriever      *Retriever
	composer       *Composer
	generator      Generator
	catalog        *i18n.Catalog
	logger         log.Logger
	deadline       time.Duration
	disclaimer     string
	requireContext bool
}

// Options configures optional Service behaviour.
type Options struct {
	// Deadline bounds one Ask call end to end. Zero means 90 seconds.
	Deadline time.Duration

	// DisclaimerOverride replaces the catalogue disclaimer when non-empty.
	DisclaimerOverride string

	// RequireContext fails the request when retrieval finds nothing instead
	// of answering from general knowledge.
	RequireContext bool
}

// NewService wires the ask pipeline.
func NewService(retriever *Retriever, composer *Composer, generator Generator, catalog *i18n.Catalog, logger log.Logger, opts Options) (*Service, error) {
	if retriever == nil {
		return nil, fmt.Errorf("retriever is required")
	}
	if composer == nil {
		return nil, fmt.Errorf("composer is required")
	}
	if generator == nil {
		return nil, fmt.Errorf("generator is required")
	}
	if catalog == nil {
		return nil, fmt.Errorf("catalog is required")
	}

	deadline := opts.Deadline
	if deadline <= 0 {
		deadline = 90 * time.Second
	}
	disclaimer := opts.DisclaimerOverride
	if disclaimer == "" {
		disclaimer = catalog.T("disclaimer")
	}

	return &Service{
		retriever:      retriever,
		composer:       composer,
		generator:      generator,
		catalog:        catalog,
		logger:         logger,
		deadline:       deadline,
		disclaimer:     disclaimer,
		requireContext: opts.RequireContext,
	}, nil
}

// Ask answers one question. Validation failures wrap ErrValidation and are
// detected before any model call is made.
func (s *Service) Ask(ctx context.Context, req *QueryRequest) (*QueryResponse, error) {
	if req == nil {
		return nil, &ValidationError{Field: "body", Reason: "must not be empty"}
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.deadline)
	defer cancel()

	scenario := ParseScenario(req.Scenario)
	started := time.Now()

	matches, err := s.retriever.Retrieve(ctx, req.Question, req.TopK, req.FetchK)
	if err != nil {
		return nil, err
	}
	if s.requireContext && len(matches) == 0 {
		return nil, fmt.Errorf("%w: no indexed documents match the question", ErrUpstreamUnavailable)
	}

	contexts := make([]string, len(matches))
	for i, m := range matches {
		contexts[i] = m.Metadata.TextPreview
	}

	prompt, err := s.composer.Compose(scenario, req, contexts)
	if err != nil {
		return nil, err
	}

	answer, err := s.generator.Generate(ctx, prompt, scenario.Decoding())
	if err != nil {
		return nil, err
	}

	s.logger.Info("question answered",
		"scenario", scenario,
		"matches", len(matches),
		"duration", time.Since(started))

	return &QueryResponse{
		Answer:         answer + s.disclaimer,
		Sources:        buildSources(matches),
		ConversationID: req.ConversationID,
	}, nil
}

// buildSources converts the best matches into citable sources.
func buildSources(matches []vecstore.Match) []Source {
	n := len(matches)
	if n > maxSources {
		n = maxSources
	}
	sources := make([]Source, 0, n)
	for _, m := range matches[:n] {
		sources = append(sources, Source{
			Content: truncateContent(m.Metadata.TextPreview),
			Metadata: SourceMetadata{
				DocumentPath: m.Metadata.DocumentPath,
				Category:     m.Metadata.Category,
				PageIndex:    m.Metadata.PageIndex,
				Score:        m.Score,
			},
		})
	}
	return sources
}

// truncateContent cuts an excerpt to sourceContentRunes runes, appending an
// ellipsis when anything was removed.
func truncateContent(s string) string {
	if utf8.RuneCountInString(s) <= sourceContentRunes {
		return s
	}
	runes := []rune(s)
	return string(runes[:sourceContentRunes]) + "..."
}
