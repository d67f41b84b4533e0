package corrections

import (
	"time"

	"github.com/riverojonathas/FDE-sub000/internal/pipeline"
)

const (
	StatusPending    = "pending"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusPartial    = "partial"
	StatusError      = "error"
)

// Final decision values produced by the score aggregation.
const (
	DecisionApproved    = "approved"
	DecisionNeedsReview = "needs_review"
	DecisionRejected    = "rejected"
)

// Options are the per-run toggles supplied at submission.
type Options struct {
	Mode              string `json:"mode,omitempty"`
	IncludeSubthemes  bool   `json:"includeSubthemes,omitempty"`
	IncludePlagiarism bool   `json:"includePlagiarism,omitempty"`
}

// ModeManual disables the automatic model calls: a human operator submits
// each step's raw response instead. Both sources feed the same normalizer.
const (
	ModeAuto   = "auto"
	ModeManual = "manual"
)

// Input is the submitted essay plus its options, persisted as-is.
type Input struct {
	Text    string  `json:"text"`
	Options Options `json:"options,omitempty"`
}

// Metadata is the run-level bookkeeping stored alongside the results.
type Metadata struct {
	Status           string    `json:"status"`
	CreatedAt        time.Time `json:"created_at"`
	ProcessingTimeMs int64     `json:"processing_time,omitempty"`
	WordCount        int       `json:"word_count"`
	Version          string    `json:"version"`
}

// Review is an optional human pass over a finished correction.
type Review struct {
	Reviewed      bool      `json:"reviewed"`
	ReviewedBy    string    `json:"reviewedBy"`
	AdjustedScore *float64  `json:"adjustedScore,omitempty"`
	Comments      string    `json:"comments,omitempty"`
	Status        string    `json:"status"`
	ReviewedAt    time.Time `json:"reviewedAt"`
}

// Correction is one submitted essay's full multi-step analysis session.
// Result maps agent id to that agent's normalized result; failed agents carry
// an error marker object instead.
type Correction struct {
	ID               string                    `json:"id"`
	Input            Input                     `json:"input"`
	Result           map[string]map[string]any `json:"result,omitempty"`
	Metadata         Metadata                  `json:"metadata"`
	HumanReview      *Review                   `json:"human_review,omitempty"`
	Status           string                    `json:"status"`
	Steps            []pipeline.Step           `json:"steps"`
	CurrentStepIndex int                       `json:"currentStepIndex"`
	ErrorCode        string                    `json:"errorCode,omitempty"`
	ErrorMessage     string                    `json:"errorMessage,omitempty"`
	CreatedAt        time.Time                 `json:"createdAt"`
	UpdatedAt        time.Time                 `json:"updatedAt"`
}

// HistoryEntry is the immutable audit record of one agent invocation.
type HistoryEntry struct {
	ID              string         `json:"id"`
	CorrectionID    string         `json:"correctionId"`
	AgentID         string         `json:"agentId"`
	PromptUsed      string         `json:"promptUsed"`
	RawOutput       string         `json:"rawOutput"`
	ProcessedResult map[string]any `json:"processedResult,omitempty"`
	ExecutionTimeMs int64          `json:"executionTimeMs"`
	CreatedAt       time.Time      `json:"timestamp"`
}

// PromptTemplate is a stored prompt override for one agent. At most one
// template per agent is the default.
type PromptTemplate struct {
	ID        string    `json:"id"`
	AgentID   string    `json:"agentId"`
	Template  string    `json:"template"`
	Version   int       `json:"version"`
	IsDefault bool      `json:"isDefault"`
	Variables []string  `json:"variables"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
