package corrections

import "context"

// Repo defines persistence for correction runs. Update is a last-writer-wins
// upsert keyed by id; concurrent edits on the same run are not serialized
// here.
type Repo interface {
	Create(ctx context.Context, c Correction) error
	GetByID(ctx context.Context, id string) (Correction, error)
	Update(ctx context.Context, c Correction) error
	List(ctx context.Context, limit, offset int) ([]Correction, error)
}

// HistoryRepo is the append-only audit trail of agent invocations.
type HistoryRepo interface {
	Append(ctx context.Context, entry HistoryEntry) error
	ListByCorrection(ctx context.Context, correctionID string) ([]HistoryEntry, error)
}

// TemplateRepo stores prompt template overrides. Save enforces the single
// default per agent: marking a template default unsets the previous one.
type TemplateRepo interface {
	Save(ctx context.Context, t PromptTemplate) error
	GetByID(ctx context.Context, id string) (PromptTemplate, error)
	GetDefault(ctx context.Context, agentID string) (PromptTemplate, error)
	ListByAgent(ctx context.Context, agentID string) ([]PromptTemplate, error)
	Delete(ctx context.Context, id string) error
}
