package corrections

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/riverojonathas/FDE-sub000/internal/agents"
	"github.com/riverojonathas/FDE-sub000/internal/pipeline"
)

// SubmitStepResponse completes one step from a human-supplied raw response.
// The text goes through the same normalization as an automatic call; a
// response that fails validation leaves the step active so the operator can
// retry with corrected input.
func (s *Service) SubmitStepResponse(ctx context.Context, correctionID, agentID, raw string) (Correction, error) {
	c, err := s.Repo.GetByID(ctx, correctionID)
	if err != nil {
		return Correction{}, err
	}
	opts := s.normalizeOptions(c.Input.Options)
	_, byID := s.buildPipeline(opts)
	agent, ok := byID[agentID]
	if !ok {
		return Correction{}, fmt.Errorf("%w: step %s", pipeline.ErrStepNotFound, agentID)
	}

	machine := pipeline.Restore(c.Steps, c.CurrentStepIndex)
	if err := machine.Activate(agentID); err != nil {
		return Correction{}, err
	}

	results := c.Result
	if results == nil {
		results = make(map[string]map[string]any)
	}
	actx := agents.Context{
		CorrectionID: c.ID,
		Options:      s.agentOptions(opts),
		Results:      results,
		Templates:    s.loadTemplates(ctx, byID),
	}

	s.appendHistory(ctx, c.ID, agents.Execution{
		AgentID:    agentID,
		PromptUsed: agent.Prompt(c.Input.Text, actx),
		RawOutput:  raw,
		Timestamp:  time.Now().UTC(),
	})

	obj, err := agents.NormalizeSubmission(agent, raw, actx)
	if err != nil {
		// Step stays active, waiting for a corrected submission.
		c.Steps = machine.Steps()
		c.CurrentStepIndex = machine.CurrentIndex()
		if persistErr := s.Repo.Update(ctx, c); persistErr != nil {
			return Correction{}, persistErr
		}
		return c, err
	}

	results[agentID] = obj
	if err := machine.Complete(agentID, raw); err != nil {
		return Correction{}, err
	}

	status := StatusInProgress
	if machine.Done() {
		syn := Aggregate(results)
		ApplySynthesis(results, syn)
		status = StatusCompleted
	}

	c.Status = status
	c.Metadata.Status = status
	c.Result = results
	c.Steps = machine.Steps()
	c.CurrentStepIndex = machine.CurrentIndex()
	if err := s.Repo.Update(ctx, c); err != nil {
		return Correction{}, err
	}
	s.logStatus(ctx, c.ID, status, "step "+agentID+" completed", 0)
	return c, nil
}

// ResetStep returns one completed step to pending and discards its stored
// result. Outside manual mode the step is re-executed in the background.
func (s *Service) ResetStep(ctx context.Context, correctionID, agentID string) (Correction, error) {
	c, err := s.Repo.GetByID(ctx, correctionID)
	if err != nil {
		return Correction{}, err
	}

	machine := pipeline.Restore(c.Steps, c.CurrentStepIndex)
	if err := machine.Reset(agentID); err != nil {
		return Correction{}, err
	}

	if c.Result != nil {
		delete(c.Result, agentID)
	}
	c.Status = StatusInProgress
	c.Metadata.Status = StatusInProgress
	c.Steps = machine.Steps()
	c.CurrentStepIndex = machine.CurrentIndex()
	if err := s.Repo.Update(ctx, c); err != nil {
		return Correction{}, err
	}
	s.logStatus(ctx, c.ID, StatusInProgress, "step "+agentID+" reset", 0)

	if s.normalizeOptions(c.Input.Options).Mode != ModeManual {
		go s.processAsync(backgroundWithRequestID(ctx), c.ID)
	}
	return c, nil
}

// Review records a human pass over a finished correction.
func (s *Service) Review(ctx context.Context, correctionID string, review Review) (Correction, error) {
	c, err := s.Repo.GetByID(ctx, correctionID)
	if err != nil {
		return Correction{}, err
	}
	review.Reviewed = true
	review.ReviewedAt = time.Now().UTC()
	c.HumanReview = &review
	if err := s.Repo.Update(ctx, c); err != nil {
		return Correction{}, err
	}
	return c, nil
}

// SaveTemplate stores a prompt template override for a known agent.
func (s *Service) SaveTemplate(ctx context.Context, t PromptTemplate) (PromptTemplate, error) {
	if t.AgentID == "" || t.Template == "" {
		return PromptTemplate{}, ErrTemplateInvalid
	}
	if _, known := agents.DefaultTemplate(t.AgentID); !known {
		return PromptTemplate{}, fmt.Errorf("%w: unknown agent %s", ErrTemplateInvalid, t.AgentID)
	}
	if t.ID == "" {
		t.ID = uuid.NewString()
		t.CreatedAt = time.Now().UTC()
	}
	if t.Version <= 0 {
		t.Version = 1
	}
	if t.Variables == nil {
		t.Variables = []string{"TEXTO"}
	}
	if err := s.Templates.Save(ctx, t); err != nil {
		return PromptTemplate{}, err
	}
	return t, nil
}

// TemplatesFor lists the stored templates of one agent.
func (s *Service) TemplatesFor(ctx context.Context, agentID string) ([]PromptTemplate, error) {
	if agentID == "" {
		return nil, ErrTemplateInvalid
	}
	return s.Templates.ListByAgent(ctx, agentID)
}

// DeleteTemplate removes a stored template.
func (s *Service) DeleteTemplate(ctx context.Context, id string) error {
	if id == "" {
		return ErrTemplateInvalid
	}
	return s.Templates.Delete(ctx, id)
}
