package corrections

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/riverojonathas/FDE-sub000/internal/pipeline"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

func marshalJSONB(value any) (any, error) {
	if value == nil {
		return nil, nil
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	return string(payload), nil
}

// Create inserts a new correction.
func (r *PGRepo) Create(ctx context.Context, c Correction) error {
	const query = `
INSERT INTO corrections (
	id, input, result, metadata, human_review, status, steps, current_step_index,
	error_code, error_message, created_at, updated_at
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	input, err := marshalJSONB(c.Input)
	if err != nil {
		return err
	}
	result, err := marshalJSONB(c.Result)
	if err != nil {
		return err
	}
	metadata, err := marshalJSONB(c.Metadata)
	if err != nil {
		return err
	}
	var review any
	if c.HumanReview != nil {
		review, err = marshalJSONB(c.HumanReview)
		if err != nil {
			return err
		}
	}
	steps, err := marshalJSONB(c.Steps)
	if err != nil {
		return err
	}
	_, err = r.DB.ExecContext(ctx, query,
		c.ID, input, result, metadata, review, c.Status, steps, c.CurrentStepIndex,
		nullString(c.ErrorCode), nullString(c.ErrorMessage), c.CreatedAt, c.CreatedAt,
	)
	return err
}

// Update upserts the full correction row, last writer wins.
func (r *PGRepo) Update(ctx context.Context, c Correction) error {
	const query = `
INSERT INTO corrections (
	id, input, result, metadata, human_review, status, steps, current_step_index,
	error_code, error_message, created_at, updated_at
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, now())
ON CONFLICT (id) DO UPDATE SET
	input = EXCLUDED.input,
	result = EXCLUDED.result,
	metadata = EXCLUDED.metadata,
	human_review = EXCLUDED.human_review,
	status = EXCLUDED.status,
	steps = EXCLUDED.steps,
	current_step_index = EXCLUDED.current_step_index,
	error_code = EXCLUDED.error_code,
	error_message = EXCLUDED.error_message,
	updated_at = now()`
	input, err := marshalJSONB(c.Input)
	if err != nil {
		return err
	}
	result, err := marshalJSONB(c.Result)
	if err != nil {
		return err
	}
	metadata, err := marshalJSONB(c.Metadata)
	if err != nil {
		return err
	}
	var review any
	if c.HumanReview != nil {
		review, err = marshalJSONB(c.HumanReview)
		if err != nil {
			return err
		}
	}
	steps, err := marshalJSONB(c.Steps)
	if err != nil {
		return err
	}
	_, err = r.DB.ExecContext(ctx, query,
		c.ID, input, result, metadata, review, c.Status, steps, c.CurrentStepIndex,
		nullString(c.ErrorCode), nullString(c.ErrorMessage), c.CreatedAt,
	)
	return err
}

const correctionColumns = `
SELECT id, input, result, metadata, human_review, status, steps, current_step_index,
       error_code, error_message, created_at, updated_at
FROM corrections`

// GetByID returns a correction by ID.
func (r *PGRepo) GetByID(ctx context.Context, id string) (Correction, error) {
	row := r.DB.QueryRowContext(ctx, correctionColumns+` WHERE id = $1 LIMIT 1`, id)
	c, err := scanCorrection(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Correction{}, ErrNotFound
		}
		return Correction{}, err
	}
	return c, nil
}

// List returns corrections ordered newest-first.
func (r *PGRepo) List(ctx context.Context, limit, offset int) ([]Correction, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.DB.QueryContext(ctx, correctionColumns+` ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Correction, 0, limit)
	for rows.Next() {
		c, err := scanCorrection(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCorrection(row rowScanner) (Correction, error) {
	var c Correction
	var input, metadata string
	var result, review, steps sql.NullString
	var errorCode, errorMessage sql.NullString
	if err := row.Scan(
		&c.ID, &input, &result, &metadata, &review, &c.Status, &steps, &c.CurrentStepIndex,
		&errorCode, &errorMessage, &c.CreatedAt, &c.UpdatedAt,
	); err != nil {
		return Correction{}, err
	}
	if err := json.Unmarshal([]byte(input), &c.Input); err != nil {
		return Correction{}, err
	}
	if err := json.Unmarshal([]byte(metadata), &c.Metadata); err != nil {
		return Correction{}, err
	}
	if result.Valid {
		c.Result = map[string]map[string]any{}
		if err := json.Unmarshal([]byte(result.String), &c.Result); err != nil {
			c.Result = nil
		}
	}
	if review.Valid {
		c.HumanReview = &Review{}
		if err := json.Unmarshal([]byte(review.String), c.HumanReview); err != nil {
			c.HumanReview = nil
		}
	}
	if steps.Valid {
		c.Steps = []pipeline.Step{}
		if err := json.Unmarshal([]byte(steps.String), &c.Steps); err != nil {
			c.Steps = nil
		}
	}
	if errorCode.Valid {
		c.ErrorCode = errorCode.String
	}
	if errorMessage.Valid {
		c.ErrorMessage = errorMessage.String
	}
	return c, nil
}

func nullString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

// PGHistoryRepo implements HistoryRepo using Postgres.
type PGHistoryRepo struct {
	DB *sql.DB
}

// Append records one agent invocation. Rows are never updated.
func (r *PGHistoryRepo) Append(ctx context.Context, entry HistoryEntry) error {
	const query = `
INSERT INTO execution_history (id, correction_id, agent_id, prompt_used, raw_output, processed_result, execution_time_ms, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	processed, err := marshalJSONB(entry.ProcessedResult)
	if err != nil {
		return err
	}
	_, err = r.DB.ExecContext(ctx, query,
		entry.ID, entry.CorrectionID, entry.AgentID, entry.PromptUsed, entry.RawOutput,
		processed, entry.ExecutionTimeMs, entry.CreatedAt,
	)
	return err
}

// ListByCorrection returns a correction's history oldest-first.
func (r *PGHistoryRepo) ListByCorrection(ctx context.Context, correctionID string) ([]HistoryEntry, error) {
	const query = `
SELECT id, correction_id, agent_id, prompt_used, raw_output, processed_result, execution_time_ms, created_at
FROM execution_history
WHERE correction_id = $1
ORDER BY created_at ASC`
	rows, err := r.DB.QueryContext(ctx, query, correctionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]HistoryEntry, 0)
	for rows.Next() {
		var e HistoryEntry
		var processed sql.NullString
		if err := rows.Scan(&e.ID, &e.CorrectionID, &e.AgentID, &e.PromptUsed, &e.RawOutput, &processed, &e.ExecutionTimeMs, &e.CreatedAt); err != nil {
			return nil, err
		}
		if processed.Valid {
			e.ProcessedResult = map[string]any{}
			if err := json.Unmarshal([]byte(processed.String), &e.ProcessedResult); err != nil {
				e.ProcessedResult = nil
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// PGTemplateRepo implements TemplateRepo using Postgres.
type PGTemplateRepo struct {
	DB *sql.DB
}

// Save upserts a template. Setting a new default unsets the previous default
// for the same agent inside one transaction, keeping the partial unique index
// satisfied.
func (r *PGTemplateRepo) Save(ctx context.Context, t PromptTemplate) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if t.IsDefault {
		if _, err := tx.ExecContext(ctx,
			`UPDATE prompt_templates SET is_default = FALSE, updated_at = now() WHERE agent_id = $1 AND is_default AND id <> $2`,
			t.AgentID, t.ID,
		); err != nil {
			return err
		}
	}

	variables, err := marshalJSONB(t.Variables)
	if err != nil {
		return err
	}
	if variables == nil {
		variables = "[]"
	}
	const query = `
INSERT INTO prompt_templates (id, agent_id, template, version, is_default, variables, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, now())
ON CONFLICT (id) DO UPDATE SET
	template = EXCLUDED.template,
	version = EXCLUDED.version,
	is_default = EXCLUDED.is_default,
	variables = EXCLUDED.variables,
	updated_at = now()`
	if _, err := tx.ExecContext(ctx, query, t.ID, t.AgentID, t.Template, t.Version, t.IsDefault, variables, t.CreatedAt); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *PGTemplateRepo) GetByID(ctx context.Context, id string) (PromptTemplate, error) {
	const query = `
SELECT id, agent_id, template, version, is_default, variables, created_at, updated_at
FROM prompt_templates WHERE id = $1 LIMIT 1`
	return r.scanOne(r.DB.QueryRowContext(ctx, query, id))
}

func (r *PGTemplateRepo) GetDefault(ctx context.Context, agentID string) (PromptTemplate, error) {
	const query = `
SELECT id, agent_id, template, version, is_default, variables, created_at, updated_at
FROM prompt_templates WHERE agent_id = $1 AND is_default LIMIT 1`
	return r.scanOne(r.DB.QueryRowContext(ctx, query, agentID))
}

func (r *PGTemplateRepo) scanOne(row *sql.Row) (PromptTemplate, error) {
	var t PromptTemplate
	var variables sql.NullString
	err := row.Scan(&t.ID, &t.AgentID, &t.Template, &t.Version, &t.IsDefault, &variables, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return PromptTemplate{}, ErrNotFound
		}
		return PromptTemplate{}, err
	}
	t.Variables = decodeVariables(variables)
	return t, nil
}

func (r *PGTemplateRepo) ListByAgent(ctx context.Context, agentID string) ([]PromptTemplate, error) {
	const query = `
SELECT id, agent_id, template, version, is_default, variables, created_at, updated_at
FROM prompt_templates WHERE agent_id = $1 ORDER BY created_at ASC`
	rows, err := r.DB.QueryContext(ctx, query, agentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]PromptTemplate, 0)
	for rows.Next() {
		var t PromptTemplate
		var variables sql.NullString
		if err := rows.Scan(&t.ID, &t.AgentID, &t.Template, &t.Version, &t.IsDefault, &variables, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		t.Variables = decodeVariables(variables)
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *PGTemplateRepo) Delete(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM prompt_templates WHERE id = $1`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func decodeVariables(raw sql.NullString) []string {
	out := []string{}
	if raw.Valid {
		if err := json.Unmarshal([]byte(raw.String), &out); err != nil {
			return []string{}
		}
	}
	return out
}
