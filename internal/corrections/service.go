package corrections

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/riverojonathas/FDE-sub000/internal/agents"
	"github.com/riverojonathas/FDE-sub000/internal/llm"
	"github.com/riverojonathas/FDE-sub000/internal/pipeline"
	"github.com/riverojonathas/FDE-sub000/internal/shared/metrics"
	"github.com/riverojonathas/FDE-sub000/internal/shared/telemetry"
)

// Service contains the business logic for correction runs: it owns the
// pipeline orchestration while persistence stays behind the repos.
type Service struct {
	Repo      Repo
	History   HistoryRepo
	Templates TemplateRepo
	LLM       llm.Client

	AnalysisVersion   string
	TimeBudget        time.Duration
	IncludeSubthemes  bool
	IncludePlagiarism bool
}

// Create registers a new correction run and, outside manual mode, kicks off
// asynchronous processing.
func (s *Service) Create(ctx context.Context, text string, opts Options) (Correction, error) {
	if strings.TrimSpace(text) == "" {
		return Correction{}, ErrEmptyText
	}
	opts = s.normalizeOptions(opts)

	sched, _ := s.buildPipeline(opts)
	machine := pipeline.NewMachine(sched.Order())

	now := time.Now().UTC()
	c := Correction{
		ID:     uuid.NewString(),
		Input:  Input{Text: text, Options: opts},
		Status: StatusPending,
		Metadata: Metadata{
			Status:    StatusPending,
			CreatedAt: now,
			WordCount: len(strings.Fields(text)),
			Version:   s.AnalysisVersion,
		},
		Steps:     machine.Steps(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.Repo.Create(ctx, c); err != nil {
		return Correction{}, err
	}

	if opts.Mode != ModeManual {
		go s.processAsync(backgroundWithRequestID(ctx), c.ID)
	}
	return c, nil
}

// Get returns a correction by ID.
func (s *Service) Get(ctx context.Context, id string) (Correction, error) {
	if id == "" {
		return Correction{}, errors.New("correction id is required")
	}
	return s.Repo.GetByID(ctx, id)
}

// List returns corrections ordered newest-first.
func (s *Service) List(ctx context.Context, limit, offset int) ([]Correction, error) {
	return s.Repo.List(ctx, limit, offset)
}

// HistoryFor returns the execution history of one correction.
func (s *Service) HistoryFor(ctx context.Context, id string) ([]HistoryEntry, error) {
	if id == "" {
		return nil, errors.New("correction id is required")
	}
	if _, err := s.Repo.GetByID(ctx, id); err != nil {
		return nil, err
	}
	return s.History.ListByCorrection(ctx, id)
}

// normalizeOptions merges the deployment defaults into the request options.
// Flags merge additively: a request can enable an analysis the configuration
// leaves off, not disable one it turns on.
func (s *Service) normalizeOptions(opts Options) Options {
	if opts.Mode == "" {
		opts.Mode = ModeAuto
	}
	opts.IncludeSubthemes = opts.IncludeSubthemes || s.IncludeSubthemes
	opts.IncludePlagiarism = opts.IncludePlagiarism || s.IncludePlagiarism
	return opts
}

func (s *Service) agentOptions(opts Options) agents.Options {
	return agents.Options{
		IncludeSubthemes:  opts.IncludeSubthemes,
		IncludePlagiarism: opts.IncludePlagiarism,
		AnalysisVersion:   s.AnalysisVersion,
		TimeBudget:        s.TimeBudget,
	}
}

func (s *Service) buildPipeline(opts Options) (*pipeline.Scheduler, map[string]agents.Agent) {
	sched := pipeline.NewScheduler()
	byID := make(map[string]agents.Agent)
	for _, a := range agents.Defaults(s.agentOptions(opts)) {
		sched.Register(a)
		byID[a.ID()] = a
	}
	return sched, byID
}

// loadTemplates fetches each agent's default prompt override. A missing
// override is normal; other lookup errors are logged and ignored so a
// template store outage never blocks a run.
func (s *Service) loadTemplates(ctx context.Context, byID map[string]agents.Agent) map[string]string {
	overrides := make(map[string]string)
	if s.Templates == nil {
		return overrides
	}
	for id := range byID {
		tpl, err := s.Templates.GetDefault(ctx, id)
		if err != nil {
			if !errors.Is(err, ErrNotFound) {
				telemetry.Warn("template lookup failed", map[string]any{"agent_id": id, "error": sanitizeError(err)})
			}
			continue
		}
		overrides[id] = tpl.Template
	}
	return overrides
}

func (s *Service) processAsync(ctx context.Context, correctionID string) {
	defer func() {
		if r := recover(); r != nil {
			s.failCorrection(ctx, correctionID, fmt.Errorf("panic: %v", r), nil)
		}
	}()
	startedAt := time.Now().UTC()

	c, err := s.Repo.GetByID(ctx, correctionID)
	if err != nil {
		s.failCorrection(ctx, correctionID, fmt.Errorf("correction lookup: %w", err), &startedAt)
		return
	}
	if s.LLM == nil {
		s.failCorrection(ctx, correctionID, errors.New("missing llm client"), &startedAt)
		return
	}

	c.Status = StatusInProgress
	c.Metadata.Status = StatusInProgress
	if err := s.Repo.Update(ctx, c); err != nil {
		s.failCorrection(ctx, correctionID, fmt.Errorf("set in_progress failed: %w", err), &startedAt)
		return
	}
	metrics.IncCorrectionStarted()
	s.logStatus(ctx, c.ID, StatusInProgress, "pending->in_progress", 0)

	opts := s.normalizeOptions(c.Input.Options)
	sched, byID := s.buildPipeline(opts)
	machine := pipeline.Restore(c.Steps, c.CurrentStepIndex)
	templates := s.loadTemplates(ctx, byID)
	results := c.Result
	if results == nil {
		results = make(map[string]map[string]any)
	}

	report, err := sched.Run(ctx, c.Input.Text, func(ctx context.Context, agentID string) error {
		return s.runStep(ctx, &c, machine, byID[agentID], results, templates, opts)
	})
	if err != nil {
		s.failCorrection(ctx, correctionID, err, &startedAt)
		return
	}

	syn := Aggregate(results)
	ApplySynthesis(results, syn)

	status := StatusCompleted
	if report.Partial {
		status = StatusPartial
	}
	completedAt := time.Now().UTC()

	c.Status = status
	c.Result = results
	c.Steps = machine.Steps()
	c.CurrentStepIndex = machine.CurrentIndex()
	c.Metadata.Status = status
	c.Metadata.ProcessingTimeMs = completedAt.Sub(startedAt).Milliseconds()
	if err := s.Repo.Update(ctx, c); err != nil {
		s.failCorrection(ctx, correctionID, fmt.Errorf("persist result failed: %w", err), &startedAt)
		return
	}

	if status == StatusPartial {
		metrics.IncCorrectionPartial()
	} else {
		metrics.IncCorrectionCompleted()
	}
	metrics.ObserveCorrectionDurationMs(float64(c.Metadata.ProcessingTimeMs))
	s.logStatus(ctx, c.ID, status, "in_progress->"+status, c.Metadata.ProcessingTimeMs)
}

// runStep executes one agent, records its history entry, and persists the run
// snapshot. Failures deactivate the step so it stays retryable; the returned
// error feeds the scheduler's report.
func (s *Service) runStep(ctx context.Context, c *Correction, machine *pipeline.Machine, agent agents.Agent, results map[string]map[string]any, templates map[string]string, opts Options) error {
	if agent == nil {
		return errors.New("agent not registered")
	}
	agentID := agent.ID()

	for _, step := range machine.Steps() {
		if step.ID == agentID && step.Status == pipeline.StepCompleted {
			return nil
		}
	}
	if err := machine.Activate(agentID); err != nil {
		return err
	}

	actx := agents.Context{
		CorrectionID: c.ID,
		Options:      s.agentOptions(opts),
		Results:      results,
		Templates:    templates,
	}
	exec := agents.Run(ctx, s.LLM, agent, c.Input.Text, actx)

	s.appendHistory(ctx, c.ID, exec)
	metrics.ObserveAgentDurationMs(float64(exec.ExecutionTimeMs))
	if exec.Fallback {
		metrics.IncAgentFallback()
	}

	if !exec.Success {
		metrics.IncAgentError()
		results[agentID] = errorMarker(exec.Err)
		if err := machine.Deactivate(agentID); err != nil {
			telemetry.Error("step deactivate failed", map[string]any{"correction_id": c.ID, "agent_id": agentID, "error": sanitizeError(err)})
		}
		s.persistSnapshot(ctx, c, machine, results)
		return fmt.Errorf("agent %s: %w", agentID, exec.Err)
	}

	results[agentID] = exec.Result
	if err := machine.Complete(agentID, stepResponse(exec)); err != nil {
		return err
	}
	s.persistSnapshot(ctx, c, machine, results)
	return nil
}

// persistSnapshot writes the run state after a step. A failed write is logged
// and not retried; the in-memory state carries the run forward.
func (s *Service) persistSnapshot(ctx context.Context, c *Correction, machine *pipeline.Machine, results map[string]map[string]any) {
	c.Result = results
	c.Steps = machine.Steps()
	c.CurrentStepIndex = machine.CurrentIndex()
	if err := s.Repo.Update(ctx, *c); err != nil {
		telemetry.Error("snapshot persist failed", map[string]any{
			"request_id":    requestIDFromContext(ctx),
			"correction_id": c.ID,
			"error":         sanitizeError(err),
		})
	}
}

func (s *Service) appendHistory(ctx context.Context, correctionID string, exec agents.Execution) {
	if s.History == nil {
		return
	}
	entry := HistoryEntry{
		ID:              uuid.NewString(),
		CorrectionID:    correctionID,
		AgentID:         exec.AgentID,
		PromptUsed:      exec.PromptUsed,
		RawOutput:       exec.RawOutput,
		ProcessedResult: exec.Result,
		ExecutionTimeMs: exec.ExecutionTimeMs,
		CreatedAt:       exec.Timestamp,
	}
	if err := s.History.Append(ctx, entry); err != nil {
		telemetry.Error("history append failed", map[string]any{
			"correction_id": correctionID,
			"agent_id":      exec.AgentID,
			"error":         sanitizeError(err),
		})
	}
}

// stepResponse picks what a completed step stores as its response. A
// completed step's response must always re-validate against the agent's
// schema, so a degraded execution stores the serialized fallback object
// instead of the unusable model output; history keeps the raw text.
func stepResponse(exec agents.Execution) string {
	if !exec.Fallback {
		return exec.RawOutput
	}
	payload, err := json.Marshal(exec.Result)
	if err != nil {
		return exec.RawOutput
	}
	return string(payload)
}

func errorMarker(err error) map[string]any {
	return map[string]any{
		"error":     sanitizeError(err),
		"errorCode": classifyFailure(err),
	}
}

func (s *Service) failCorrection(ctx context.Context, correctionID string, err error, startedAt *time.Time) {
	code := classifyFailure(err)
	msg := sanitizeError(err)
	c, getErr := s.Repo.GetByID(context.Background(), correctionID)
	if getErr == nil {
		c.Status = StatusError
		c.Metadata.Status = StatusError
		c.ErrorCode = code
		c.ErrorMessage = msg
		if startedAt != nil {
			c.Metadata.ProcessingTimeMs = time.Since(*startedAt).Milliseconds()
		}
		if updateErr := s.Repo.Update(context.Background(), c); updateErr != nil {
			telemetry.Error("failCorrection persist failed", map[string]any{
				"correction_id": correctionID,
				"error":         sanitizeError(updateErr),
				"original":      msg,
			})
		}
	}
	metrics.IncCorrectionFailed()
	telemetry.Error("correction.status", map[string]any{
		"request_id":        requestIDFromContext(ctx),
		"correction_id":     correctionID,
		"status":            StatusError,
		"status_transition": "in_progress->error",
		"error_code":        code,
		"error":             msg,
	})
}

func (s *Service) logStatus(ctx context.Context, correctionID, status, transition string, durationMs int64) {
	fields := map[string]any{
		"request_id":        requestIDFromContext(ctx),
		"correction_id":     correctionID,
		"status":            status,
		"status_transition": transition,
	}
	if durationMs > 0 {
		fields["duration_ms"] = durationMs
	}
	telemetry.Info("correction.status", fields)
}
