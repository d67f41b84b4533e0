package agents

import (
	"context"
	"errors"
	"time"

	"github.com/riverojonathas/FDE-sub000/internal/llm"
	"github.com/riverojonathas/FDE-sub000/internal/normalizer"
	"github.com/riverojonathas/FDE-sub000/internal/shared/telemetry"
)

// Agent identifiers. They double as pipeline step IDs and as the keys of the
// per-run result map.
const (
	KindGrammar    = "grammar"
	KindCoherence  = "coherence"
	KindTheme      = "theme"
	KindCriteria   = "criteria"
	KindPlagiarism = "plagiarism"
	KindFeedback   = "feedback"
)

// Options carries the per-run feature toggles and budgets.
type Options struct {
	IncludeSubthemes  bool
	IncludePlagiarism bool
	AnalysisVersion   string
	TimeBudget        time.Duration
}

// Flags translates the options into the normalizer's flag set.
func (o Options) Flags() normalizer.Flags {
	return normalizer.Flags{
		"includeSubthemes":  o.IncludeSubthemes,
		"includePlagiarism": o.IncludePlagiarism,
	}
}

// Context is the read-only execution context handed to each agent: the run
// it belongs to, the run options, the normalized results of upstream agents,
// and any prompt template overrides loaded from storage.
type Context struct {
	CorrectionID string
	Options      Options
	Results      map[string]map[string]any
	Templates    map[string]string
}

// Execution is one agent invocation's outcome: either a normalized result
// (possibly a fallback or a partial recovery) or a captured error. The
// orchestrator persists every execution to the history table.
type Execution struct {
	AgentID         string
	Success         bool
	Result          map[string]any
	Err             error
	RawOutput       string
	PromptUsed      string
	Fallback        bool
	Partial         bool
	ExecutionTimeMs int64
	Timestamp       time.Time
}

// Agent is the uniform contract every analysis agent exposes. Prompt must be
// pure: the same input, context, and configuration always produce the same
// string. Agents never persist anything themselves.
type Agent interface {
	ID() string
	Required() bool
	DependsOn() []string
	Prompt(text string, actx Context) string
	Schema() normalizer.Schema
}

// Defaults returns the agent set for a run, honoring the plagiarism toggle.
// Order here is only the registration order; execution order comes from the
// scheduler's dependency sort.
func Defaults(opts Options) []Agent {
	set := []Agent{
		NewGrammar(),
		NewCoherence(),
		NewTheme(),
		NewCriteria(),
	}
	if opts.IncludePlagiarism {
		set = append(set, NewPlagiarism())
	}
	set = append(set, NewFeedback())
	return set
}

// Run invokes one agent against the model client and normalizes its output.
// The time budget is checked reactively after the call returns: an elapsed
// time over budget degrades to a fallback result even when the call itself
// succeeded. Repair exhaustion also degrades to fallback; a schema validation
// failure surfaces as an unsuccessful execution so the step stays retryable.
func Run(ctx context.Context, client llm.Client, a Agent, text string, actx Context) Execution {
	exec := Execution{AgentID: a.ID(), Timestamp: time.Now().UTC()}
	exec.PromptUsed = a.Prompt(text, actx)

	start := time.Now()
	raw, err := llm.WithRetry(client, actx.CorrectionID).Complete(ctx, exec.PromptUsed)
	exec.ExecutionTimeMs = time.Since(start).Milliseconds()
	exec.RawOutput = raw

	budget := actx.Options.TimeBudget
	if budget > 0 && time.Since(start) > budget {
		if err != nil {
			telemetry.Warn("agent degraded after timeout", map[string]any{
				"correction_id": actx.CorrectionID,
				"agent_id":      a.ID(),
				"elapsed_ms":    exec.ExecutionTimeMs,
				"error":         err.Error(),
			})
		} else {
			telemetry.Warn("agent exceeded time budget", map[string]any{
				"correction_id": actx.CorrectionID,
				"agent_id":      a.ID(),
				"elapsed_ms":    exec.ExecutionTimeMs,
			})
		}
		return fallbackExecution(exec, a, actx)
	}

	if err != nil {
		exec.Err = err
		return exec
	}

	res, err := normalizer.Normalize(raw, a.Schema(), actx.Options.Flags())
	if err != nil {
		if errors.Is(err, normalizer.ErrRepairExhausted) {
			telemetry.Warn("agent output unrepairable", map[string]any{
				"correction_id": actx.CorrectionID,
				"agent_id":      a.ID(),
			})
			return fallbackExecution(exec, a, actx)
		}
		exec.Err = err
		return exec
	}

	exec.Success = true
	exec.Result = res.Object
	exec.Partial = res.Partial
	withMetadata(exec.Result, actx.Options.AnalysisVersion, res)
	return exec
}

// NormalizeSubmission normalizes a human-supplied raw response exactly like
// an automatic execution's output. Manual and automatic sources are
// indistinguishable downstream.
func NormalizeSubmission(a Agent, raw string, actx Context) (map[string]any, error) {
	res, err := normalizer.Normalize(raw, a.Schema(), actx.Options.Flags())
	if err != nil {
		return nil, err
	}
	withMetadata(res.Object, actx.Options.AnalysisVersion, res)
	return res.Object, nil
}

// Validate reports whether raw would complete the agent's step: it must
// normalize without error under the run's flags. Fallbacks do not count.
func Validate(a Agent, raw string, actx Context) bool {
	_, err := normalizer.Normalize(raw, a.Schema(), actx.Options.Flags())
	return err == nil
}

func fallbackExecution(exec Execution, a Agent, actx Context) Execution {
	exec.Success = true
	exec.Fallback = true
	exec.Result = normalizer.Fallback(a.Schema(), actx.Options.Flags(), actx.Options.AnalysisVersion)
	return exec
}

func withMetadata(obj map[string]any, version string, res normalizer.Result) {
	meta := map[string]any{
		"analysisVersion": version,
		"confidence":      1.0,
	}
	if res.Partial {
		meta["confidence"] = 0.5
		meta["partial"] = true
	} else if res.Repaired {
		meta["confidence"] = 0.8
		meta["repaired"] = true
	}
	obj["processingMetadata"] = meta
}
