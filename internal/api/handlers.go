package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/pedira/pedira/internal/assistant"
	"github.com/pedira/pedira/internal/feedback"
	"github.com/pedira/pedira/internal/i18n"
	"github.com/pedira/pedira/internal/log"
	"github.com/pedira/pedira/internal/vecstore"
)

// maxBodyBytes caps request bodies; questions are short and feedback is
// bounded, so 1 MiB is generous.
const maxBodyBytes = 1 << 20

type handlers struct {
	logger    log.Logger
	catalog   *i18n.Catalog
	assistant Asker
	feedback  FeedbackSink
	index     vecstore.Index
	indexName string
	modelName string
}

// health reports service readiness from the index's point of view.
func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	stats, err := h.index.Describe(r.Context())
	if err != nil {
		h.logger.Warn("health check failed", "error", err)
		writeError(w, h.logger, http.StatusServiceUnavailable,
			h.catalog.T("error.not_healthy"), nil)
		return
	}

	writeJSON(w, h.logger, http.StatusOK, map[string]any{
		"status":             "healthy",
		"index_name":         h.indexName,
		"model":              h.modelName,
		"total_vector_count": stats.TotalVectorCount,
		"dimension":          stats.Dimension,
	})
}

// ask answers one caregiver question.
func (h *handlers) ask(w http.ResponseWriter, r *http.Request) {
	var req assistant.QueryRequest
	if !h.decodeBody(w, r, &req) {
		return
	}

	resp, err := h.assistant.Ask(r.Context(), &req)
	if err != nil {
		h.writeAskError(w, r, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, resp)
}

// writeAskError maps assistant errors to HTTP statuses. This mapping exists
// only here; the assistant package knows nothing about HTTP.
func (h *handlers) writeAskError(w http.ResponseWriter, r *http.Request, err error) {
	requestID := requestIDFromContext(r.Context())

	var verr *assistant.ValidationError
	switch {
	case errors.As(err, &verr):
		writeError(w, h.logger, http.StatusBadRequest,
			h.catalog.T("error.validation"),
			map[string]any{"field": verr.Field, "reason": verr.Reason})

	case errors.Is(err, assistant.ErrUpstreamUnavailable):
		h.logger.Error("upstream unavailable", "error", err, "request_id", requestID)
		writeError(w, h.logger, http.StatusServiceUnavailable,
			h.catalog.T("error.upstream"), nil)

	default:
		// Includes ErrPromptCompose and anything unexpected. Detail stays in
		// the logs; the client sees a generic message.
		h.logger.Error("ask failed", "error", err, "request_id", requestID)
		writeError(w, h.logger, http.StatusInternalServerError,
			h.catalog.T("error.internal"), nil)
	}
}

// feedbackRequest is the feedback route's request body.
type feedbackRequest struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
	Helpful  bool   `json:"helpful"`
	Text     string `json:"feedback_text,omitempty"`
}

// postFeedback records one feedback entry.
func (h *handlers) postFeedback(w http.ResponseWriter, r *http.Request) {
	var req feedbackRequest
	if !h.decodeBody(w, r, &req) {
		return
	}

	entry, err := h.feedback.Record(r.Context(), req.Question, req.Answer, req.Helpful, req.Text)
	if err != nil {
		if errors.Is(err, feedback.ErrInvalid) {
			writeError(w, h.logger, http.StatusBadRequest,
				h.catalog.T("error.validation"), nil)
			return
		}
		h.logger.Error("recording feedback", "error", err,
			"request_id", requestIDFromContext(r.Context()))
		writeError(w, h.logger, http.StatusInternalServerError,
			h.catalog.T("error.internal"), nil)
		return
	}

	writeJSON(w, h.logger, http.StatusOK, map[string]any{
		"status":  "success",
		"message": h.catalog.T("feedback.received"),
		"id":      entry.ID,
	})
}

// topicGroup is one category of the static topic catalogue.
type topicGroup struct {
	Category string   `json:"category"`
	Topics   []string `json:"topics"`
}

// topicCatalogue maps category keys to their topic keys, in display order.
var topicCatalogue = []struct {
	categoryKey string
	topicKeys   []string
}{
	{"topics.category.preventive", []string{"topic.vaccination", "topic.newborn"}},
	{"topics.category.daily", []string{"topic.nutrition", "topic.sleep", "topic.development"}},
	{"topics.category.illness", []string{"topic.illness", "topic.emergency"}},
}

// topics returns the localised topic catalogue, grouped by category, with the
// standard disclaimer.
func (h *handlers) topics(w http.ResponseWriter, _ *http.Request) {
	groups := make([]topicGroup, len(topicCatalogue))
	for i, g := range topicCatalogue {
		names := make([]string, len(g.topicKeys))
		for j, k := range g.topicKeys {
			names[j] = h.catalog.T(k)
		}
		groups[i] = topicGroup{Category: h.catalog.T(g.categoryKey), Topics: names}
	}

	writeJSON(w, h.logger, http.StatusOK, map[string]any{
		"topics":     groups,
		"disclaimer": strings.TrimSpace(h.catalog.T("disclaimer")),
	})
}

// decodeBody reads and decodes a JSON body, writing a 400 on any problem.
func (h *handlers) decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	defer func() { _, _ = io.Copy(io.Discard, body) }()

	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, h.logger, http.StatusBadRequest,
			h.catalog.T("error.validation"),
			map[string]any{"reason": "malformed JSON body"})
		return false
	}
	return true
}
