package assistant

import (
	"strings"
	"unicode/utf8"
)

// maxQuestionRunes caps the question length; longer input is rejected rather
// than truncated.
const maxQuestionRunes = 1000

// QueryRequest is a single question from a caregiver, with optional patient
// context used to personalise the answer. TopK and FetchK override the
// configured retrieval depth for this request; zero means the default.
type QueryRequest struct {
	Question       string            `json:"question"`
	PatientID      string            `json:"patient_id,omitempty"`
	UserID         string            `json:"user_id,omitempty"`
	ChildName      string            `json:"child_name,omitempty"`
	ChildAge       string            `json:"child_age,omitempty"`
	ConversationID string            `json:"conversation_id,omitempty"`
	PatientContext map[string]string `json:"patient_context,omitempty"`
	Scenario       string            `json:"scenario,omitempty"`
	TopK           int               `json:"top_k,omitempty"`
	FetchK         int               `json:"fetch_k,omitempty"`
}

// Validate checks the request and returns a *ValidationError on the first
// problem found.
func (r *QueryRequest) Validate() error {
	q := strings.TrimSpace(r.Question)
	if q == "" {
		return &ValidationError{Field: "question", Reason: "must not be empty"}
	}
	if n := utf8.RuneCountInString(q); n > maxQuestionRunes {
		return &ValidationError{
			Field:  "question",
			Reason: "must be at most 1000 characters",
		}
	}
	if r.TopK < 0 {
		return &ValidationError{Field: "top_k", Reason: "must not be negative"}
	}
	if r.FetchK < 0 {
		return &ValidationError{Field: "fetch_k", Reason: "must not be negative"}
	}
	if r.TopK > 0 && r.FetchK > 0 && r.FetchK < r.TopK {
		return &ValidationError{Field: "fetch_k", Reason: "must be at least top_k"}
	}
	return nil
}

// Source attributes part of an answer to an indexed document excerpt.
type Source struct {
	Content  string         `json:"content"`
	Metadata SourceMetadata `json:"metadata"`
}

// SourceMetadata identifies where an excerpt came from.
type SourceMetadata struct {
	DocumentPath string  `json:"document_path"`
	Category     string  `json:"category"`
	PageIndex    int     `json:"page_index"`
	Score        float32 `json:"score"`
}

// QueryResponse is the assistant's answer with supporting sources.
type QueryResponse struct {
	Answer         string   `json:"answer"`
	Sources        []Source `json:"sources"`
	ConversationID string   `json:"conversation_id,omitempty"`
}
