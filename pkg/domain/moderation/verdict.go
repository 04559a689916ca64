package moderation

import (
	"bytes"
	"encoding/json"
	"fmt"
)

type Status string

const (
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
	StatusPending  Status = "pending"
)

// FastModerationFailMessage is the only comment surfaced for fast-path rejections.
const FastModerationFailMessage = "Review failed automatic moderation"

// AIErrorCommentPrefix prefixes the comment of verdicts produced when the AI
// classifier could not be reached.
const AIErrorCommentPrefix = "AI moderation error: "

func (s Status) Valid() bool {
	switch s {
	case StatusApproved, StatusRejected, StatusPending:
		return true
	}
	return false
}

func (s Status) String() string {
	return string(s)
}

// Issue is a single problem the classifier found in a review.
type Issue struct {
	Code        string  `json:"code,omitempty"`
	Category    string  `json:"category"`
	Description string  `json:"description"`
	Law         *string `json:"law"`
}

// AIResult is the validated verdict returned by an AI provider.
type AIResult struct {
	Status     Status          `json:"status"`
	Tags       json.RawMessage `json:"tags"`
	Issues     []Issue         `json:"issues"`
	Confidence float64         `json:"confidence"`
}

// Comment serializes the result the way the review services store it:
// compact JSON with non-ASCII text kept verbatim.
func (r AIResult) Comment() (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(r); err != nil {
		return "", fmt.Errorf("failed to encode ai result: %w", err)
	}
	return string(bytes.TrimRight(buf.Bytes(), "\n")), nil
}

// ParseComment is the inverse of AIResult.Comment.
func ParseComment(comment string) (*AIResult, error) {
	var r AIResult
	if err := json.Unmarshal([]byte(comment), &r); err != nil {
		return nil, fmt.Errorf("comment is not a serialized ai result: %w", err)
	}
	return &r, nil
}

// Source tells which stage of the pipeline produced a verdict.
type Source string

const (
	SourceFastPath Source = "fast_path"
	SourceAI       Source = "ai"
	SourceAIError  Source = "ai_error"
)

// Verdict is the outcome of one moderation run. It is never mutated after
// the orchestrator returns it.
type Verdict struct {
	Status     Status
	Comment    string
	Confidence *float64
	Issues     []Issue
	Source     Source
}

func (v Verdict) NeedsManualReview() bool {
	return v.Status == StatusPending
}
