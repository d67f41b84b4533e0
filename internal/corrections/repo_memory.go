package corrections

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepo stores corrections in memory and is safe for concurrent use.
type MemoryRepo struct {
	mu   sync.RWMutex
	byID map[string]Correction
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{byID: make(map[string]Correction)}
}

// Create stores the correction.
func (r *MemoryRepo) Create(ctx context.Context, c Correction) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[c.ID] = c
	return nil
}

// GetByID returns a correction by its ID.
func (r *MemoryRepo) GetByID(ctx context.Context, id string) (Correction, error) {
	if err := ctx.Err(); err != nil {
		return Correction{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.byID[id]
	if !ok {
		return Correction{}, ErrNotFound
	}
	return c, nil
}

// Update replaces the stored correction, last writer wins.
func (r *MemoryRepo) Update(ctx context.Context, c Correction) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[c.ID]; !ok {
		return ErrNotFound
	}
	c.UpdatedAt = time.Now().UTC()
	r.byID[c.ID] = c
	return nil
}

// List returns corrections ordered newest-first.
func (r *MemoryRepo) List(ctx context.Context, limit, offset int) ([]Correction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	all := make([]Correction, 0, len(r.byID))
	for _, c := range r.byID {
		all = append(all, c)
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})
	if offset >= len(all) {
		return []Correction{}, nil
	}
	all = all[offset:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}

// MemoryHistoryRepo keeps execution history in memory, append-only.
type MemoryHistoryRepo struct {
	mu      sync.RWMutex
	entries []HistoryEntry
}

func NewMemoryHistoryRepo() *MemoryHistoryRepo {
	return &MemoryHistoryRepo{}
}

// Append records one agent invocation.
func (r *MemoryHistoryRepo) Append(ctx context.Context, entry HistoryEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry)
	return nil
}

// ListByCorrection returns a correction's history oldest-first.
func (r *MemoryHistoryRepo) ListByCorrection(ctx context.Context, correctionID string) ([]HistoryEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]HistoryEntry, 0)
	for _, e := range r.entries {
		if e.CorrectionID == correctionID {
			out = append(out, e)
		}
	}
	return out, nil
}

// MemoryTemplateRepo stores prompt templates in memory.
type MemoryTemplateRepo struct {
	mu   sync.RWMutex
	byID map[string]PromptTemplate
}

func NewMemoryTemplateRepo() *MemoryTemplateRepo {
	return &MemoryTemplateRepo{byID: make(map[string]PromptTemplate)}
}

// Save upserts a template. A new default unsets any previous default for the
// same agent.
func (r *MemoryTemplateRepo) Save(ctx context.Context, t PromptTemplate) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if t.IsDefault {
		for id, existing := range r.byID {
			if existing.AgentID == t.AgentID && existing.IsDefault && id != t.ID {
				existing.IsDefault = false
				r.byID[id] = existing
			}
		}
	}
	t.UpdatedAt = time.Now().UTC()
	r.byID[t.ID] = t
	return nil
}

func (r *MemoryTemplateRepo) GetByID(ctx context.Context, id string) (PromptTemplate, error) {
	if err := ctx.Err(); err != nil {
		return PromptTemplate{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.byID[id]
	if !ok {
		return PromptTemplate{}, ErrNotFound
	}
	return t, nil
}

func (r *MemoryTemplateRepo) GetDefault(ctx context.Context, agentID string) (PromptTemplate, error) {
	if err := ctx.Err(); err != nil {
		return PromptTemplate{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, t := range r.byID {
		if t.AgentID == agentID && t.IsDefault {
			return t, nil
		}
	}
	return PromptTemplate{}, ErrNotFound
}

func (r *MemoryTemplateRepo) ListByAgent(ctx context.Context, agentID string) ([]PromptTemplate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]PromptTemplate, 0)
	for _, t := range r.byID {
		if t.AgentID == agentID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (r *MemoryTemplateRepo) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[id]; !ok {
		return ErrNotFound
	}
	delete(r.byID, id)
	return nil
}
