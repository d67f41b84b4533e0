package corrections

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/riverojonathas/FDE-sub000/internal/agents"
	"github.com/riverojonathas/FDE-sub000/internal/normalizer"
	"github.com/riverojonathas/FDE-sub000/internal/pipeline"
)

// scriptedLLM answers each agent by recognizing its prompt. Entries in fail
// or garbage switch that agent to an error or unparseable output.
type scriptedLLM struct {
	fail    map[string]error
	garbage map[string]string
	plag    float64
}

func (s scriptedLLM) Complete(ctx context.Context, prompt string) (string, error) {
	agent := agentForPrompt(prompt)
	if err, ok := s.fail[agent]; ok {
		return "", err
	}
	if out, ok := s.garbage[agent]; ok {
		return out, nil
	}
	switch agent {
	case agents.KindGrammar:
		return `{"errors":[],"summary":{"totalErrors":0,"readabilityScore":8,"suggestions":[]}}`, nil
	case agents.KindCoherence:
		return `{"cohesionScore":8,"coherenceScore":8,"structureAnalysis":"boa estrutura","issues":[],"connectorsUsed":["portanto"]}`, nil
	case agents.KindTheme:
		return `{"mainTheme":"Educação","relevance":"Alta","themeDevelopment":"bem desenvolvido","subthemes":[]}`, nil
	case agents.KindCriteria:
		return `{"competencies":[{"name":"Norma culta","score":8,"weight":20,"feedback":"ok","tags":["gramática"]},{"name":"Tema","score":8,"weight":20,"feedback":"ok","tags":["tema"]},{"name":"Argumentação","score":8,"weight":25,"feedback":"ok","tags":["argumentação"]},{"name":"Coesão","score":8,"weight":20,"feedback":"ok","tags":["coesão"]},{"name":"Intervenção","score":8,"weight":15,"feedback":"ok","tags":["intervenção"]}],"overallScore":8,"generalComments":"boa redação"}`, nil
	case agents.KindPlagiarism:
		score := s.plag
		if score == 0 {
			score = 90
		}
		return `{"originalityScore":` + formatScore(score) + `,"riskLevel":"Baixo","suspiciousPassages":[],"assessment":"original"}`, nil
	case agents.KindFeedback:
		return `{"generalFeedback":"bom trabalho","strengths":["argumentação"],"improvements":["revisar vírgulas"],"nextSteps":["praticar conclusão"]}`, nil
	}
	return "", errors.New("unknown prompt")
}

func agentForPrompt(prompt string) string {
	switch {
	case strings.Contains(prompt, "gramática e a ortografia"):
		return agents.KindGrammar
	case strings.Contains(prompt, "coesão e a coerência"):
		return agents.KindCoherence
	case strings.Contains(prompt, "tema central"):
		return agents.KindTheme
	case strings.Contains(prompt, "competências"):
		return agents.KindCriteria
	case strings.Contains(prompt, "originalidade"):
		return agents.KindPlagiarism
	case strings.Contains(prompt, "retorno pedagógico"):
		return agents.KindFeedback
	}
	return ""
}

func formatScore(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func newTestService(t *testing.T, client scriptedLLM) *Service {
	t.Helper()
	return &Service{
		Repo:            NewMemoryRepo(),
		History:         NewMemoryHistoryRepo(),
		Templates:       NewMemoryTemplateRepo(),
		LLM:             client,
		AnalysisVersion: "v2",
		TimeBudget:      5 * time.Second,
	}
}

// createAndProcess creates the run in manual mode so no goroutine races the
// test, then processes it synchronously.
func createAndProcess(t *testing.T, svc *Service, text string, opts Options) Correction {
	t.Helper()
	opts.Mode = ModeManual
	c, err := svc.Create(context.Background(), text, opts)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	svc.processAsync(context.Background(), c.ID)
	out, err := svc.Get(context.Background(), c.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	return out
}

func TestCreateRejectsEmptyText(t *testing.T) {
	svc := newTestService(t, scriptedLLM{})
	if _, err := svc.Create(context.Background(), "   ", Options{}); !errors.Is(err, ErrEmptyText) {
		t.Fatalf("err = %v, want ErrEmptyText", err)
	}
}

func TestCreateInitializesRun(t *testing.T) {
	svc := newTestService(t, scriptedLLM{})
	c, err := svc.Create(context.Background(), "uma redação sobre educação", Options{Mode: ModeManual})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if c.Status != StatusPending {
		t.Fatalf("status = %s", c.Status)
	}
	if c.Metadata.WordCount != 4 {
		t.Fatalf("word count = %d", c.Metadata.WordCount)
	}
	if len(c.Steps) != 5 {
		t.Fatalf("steps = %d, want 5 without plagiarism", len(c.Steps))
	}
	if c.Steps[len(c.Steps)-1].ID != agents.KindFeedback {
		t.Fatalf("last step = %s, want feedback", c.Steps[len(c.Steps)-1].ID)
	}
}

func TestProcessCompletesRun(t *testing.T) {
	svc := newTestService(t, scriptedLLM{})
	c := createAndProcess(t, svc, "uma redação completa sobre educação no Brasil", Options{})

	if c.Status != StatusCompleted {
		t.Fatalf("status = %s err=%s %s", c.Status, c.ErrorCode, c.ErrorMessage)
	}
	if c.CurrentStepIndex != len(c.Steps) {
		t.Fatalf("index = %d, want %d", c.CurrentStepIndex, len(c.Steps))
	}
	for _, step := range c.Steps {
		if step.Status != pipeline.StepCompleted {
			t.Fatalf("step %s status = %s", step.ID, step.Status)
		}
		if step.Response == "" {
			t.Fatalf("step %s has no stored response", step.ID)
		}
	}

	feedback := c.Result[agents.KindFeedback]
	if feedback["finalScore"] != 8.0 {
		t.Fatalf("finalScore = %v", feedback["finalScore"])
	}
	if feedback["status"] != DecisionApproved {
		t.Fatalf("decision = %v", feedback["status"])
	}

	history, err := svc.HistoryFor(context.Background(), c.ID)
	if err != nil {
		t.Fatalf("HistoryFor: %v", err)
	}
	if len(history) != 5 {
		t.Fatalf("history entries = %d, want one per agent", len(history))
	}
}

func TestRequiredAgentFailureMarksPartial(t *testing.T) {
	svc := newTestService(t, scriptedLLM{
		fail: map[string]error{agents.KindCriteria: errors.New("bad request")},
	})
	c := createAndProcess(t, svc, "texto da redação", Options{})

	if c.Status != StatusPartial {
		t.Fatalf("status = %s, want partial", c.Status)
	}
	marker := c.Result[agents.KindCriteria]
	if marker["error"] == nil || marker["errorCode"] != ErrorCodeAgentExecution {
		t.Fatalf("marker = %v", marker)
	}
	// Failed step stays retryable.
	for _, step := range c.Steps {
		if step.ID == agents.KindCriteria && step.Status != pipeline.StepPending {
			t.Fatalf("criteria step status = %s", step.Status)
		}
	}
	// Downstream agents still ran.
	if c.Result[agents.KindFeedback] == nil {
		t.Fatal("feedback missing after upstream failure")
	}
}

func TestOptionalAgentFailureDoesNotDemote(t *testing.T) {
	svc := newTestService(t, scriptedLLM{
		fail: map[string]error{agents.KindTheme: errors.New("bad request")},
	})
	c := createAndProcess(t, svc, "texto da redação", Options{})

	if c.Status != StatusCompleted {
		t.Fatalf("status = %s, want completed", c.Status)
	}
	if c.Result[agents.KindTheme]["error"] == nil {
		t.Fatal("theme failure not captured in slot")
	}
}

func TestUnrepairableOutputDegradesToFallback(t *testing.T) {
	svc := newTestService(t, scriptedLLM{
		garbage: map[string]string{agents.KindCoherence: "não vou responder em JSON"},
	})
	c := createAndProcess(t, svc, "texto da redação", Options{})

	if c.Status != StatusCompleted {
		t.Fatalf("status = %s", c.Status)
	}
	coherence := c.Result[agents.KindCoherence]
	if coherence["cohesionScore"] != 5.0 {
		t.Fatalf("cohesionScore = %v, want neutral", coherence["cohesionScore"])
	}
	if !normalizer.IsFallback(coherence) {
		t.Fatal("fallback not marked")
	}
}

func TestFallbackStepResponseRevalidates(t *testing.T) {
	svc := newTestService(t, scriptedLLM{
		garbage: map[string]string{agents.KindCoherence: "não vou responder em JSON"},
	})
	c := createAndProcess(t, svc, "texto da redação", Options{})

	var step pipeline.Step
	for _, s := range c.Steps {
		if s.ID == agents.KindCoherence {
			step = s
		}
	}
	if step.ID == "" {
		t.Fatal("coherence step missing")
	}
	if step.Status != pipeline.StepCompleted {
		t.Fatalf("step status = %s", step.Status)
	}
	if step.Response == "não vou responder em JSON" {
		t.Fatal("step stored the unusable model output")
	}
	actx := agents.Context{Options: agents.Options{AnalysisVersion: "v2"}}
	if !agents.Validate(agents.NewCoherence(), step.Response, actx) {
		t.Fatalf("stored response does not re-validate: %q", step.Response)
	}
}

func TestLowOriginalityRejects(t *testing.T) {
	svc := newTestService(t, scriptedLLM{plag: 40})
	c := createAndProcess(t, svc, "texto copiado", Options{IncludePlagiarism: true})

	feedback := c.Result[agents.KindFeedback]
	if feedback["status"] != DecisionRejected {
		t.Fatalf("decision = %v, want rejected despite high scores", feedback["status"])
	}
}

func TestFallbackPlagiarismDoesNotReject(t *testing.T) {
	svc := newTestService(t, scriptedLLM{
		garbage: map[string]string{agents.KindPlagiarism: "sem json aqui"},
	})
	c := createAndProcess(t, svc, "texto da redação", Options{IncludePlagiarism: true})

	feedback := c.Result[agents.KindFeedback]
	if feedback["status"] != DecisionApproved {
		t.Fatalf("decision = %v, want approved with degraded plagiarism", feedback["status"])
	}
}

func TestManualSubmissionFlow(t *testing.T) {
	svc := newTestService(t, scriptedLLM{})
	c, err := svc.Create(context.Background(), "texto da redação", Options{Mode: ModeManual})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	// Invalid submission keeps the step active.
	_, err = svc.SubmitStepResponse(context.Background(), c.ID, agents.KindGrammar, "prosa sem estrutura")
	if err == nil {
		t.Fatal("invalid submission accepted")
	}
	current, _ := svc.Get(context.Background(), c.ID)
	if current.Steps[0].Status != pipeline.StepActive {
		t.Fatalf("step status = %s, want active after failed submission", current.Steps[0].Status)
	}

	client := scriptedLLM{}
	responses := map[string]string{}
	for _, id := range []string{agents.KindGrammar, agents.KindCoherence, agents.KindTheme, agents.KindCriteria, agents.KindFeedback} {
		prompt, _ := agents.DefaultTemplate(id)
		resp, _ := client.Complete(context.Background(), prompt)
		responses[id] = resp
	}

	for _, step := range current.Steps {
		updated, err := svc.SubmitStepResponse(context.Background(), c.ID, step.ID, responses[step.ID])
		if err != nil {
			t.Fatalf("SubmitStepResponse(%s): %v", step.ID, err)
		}
		c = updated
	}

	if c.Status != StatusCompleted {
		t.Fatalf("status = %s after final manual step", c.Status)
	}
	if c.Result[agents.KindFeedback]["finalScore"] == nil {
		t.Fatal("synthesis missing after manual completion")
	}
}

func TestResetStepDiscardsResult(t *testing.T) {
	svc := newTestService(t, scriptedLLM{})
	c := createAndProcess(t, svc, "texto da redação", Options{})

	updated, err := svc.ResetStep(context.Background(), c.ID, agents.KindCriteria)
	if err != nil {
		t.Fatalf("ResetStep: %v", err)
	}
	if updated.Status != StatusInProgress {
		t.Fatalf("status = %s", updated.Status)
	}
	if _, present := updated.Result[agents.KindCriteria]; present {
		t.Fatal("reset kept the old result")
	}
	for _, step := range updated.Steps {
		if step.ID == agents.KindCriteria {
			if step.Status != pipeline.StepPending || step.Response != "" {
				t.Fatalf("reset step = %+v", step)
			}
		} else if step.Status != pipeline.StepCompleted {
			t.Fatalf("sibling %s status = %s", step.ID, step.Status)
		}
	}
}

func TestReviewAttachesHumanPass(t *testing.T) {
	svc := newTestService(t, scriptedLLM{})
	c := createAndProcess(t, svc, "texto da redação", Options{})

	score := 9.0
	updated, err := svc.Review(context.Background(), c.ID, Review{
		ReviewedBy:    "prof-1",
		AdjustedScore: &score,
		Comments:      "nota ajustada",
		Status:        DecisionApproved,
	})
	if err != nil {
		t.Fatalf("Review: %v", err)
	}
	if updated.HumanReview == nil || !updated.HumanReview.Reviewed {
		t.Fatalf("review = %+v", updated.HumanReview)
	}
	if *updated.HumanReview.AdjustedScore != 9.0 {
		t.Fatalf("adjusted = %v", *updated.HumanReview.AdjustedScore)
	}
}

func TestTemplateOverrideIsUsed(t *testing.T) {
	svc := newTestService(t, scriptedLLM{})
	_, err := svc.SaveTemplate(context.Background(), PromptTemplate{
		AgentID:   agents.KindGrammar,
		Template:  "Analise a gramática e a ortografia de: {{TEXTO}}",
		IsDefault: true,
	})
	if err != nil {
		t.Fatalf("SaveTemplate: %v", err)
	}

	c := createAndProcess(t, svc, "texto da redação", Options{})
	history, err := svc.HistoryFor(context.Background(), c.ID)
	if err != nil {
		t.Fatalf("HistoryFor: %v", err)
	}
	for _, entry := range history {
		if entry.AgentID == agents.KindGrammar {
			if entry.PromptUsed != "Analise a gramática e a ortografia de: texto da redação" {
				t.Fatalf("prompt = %q", entry.PromptUsed)
			}
			return
		}
	}
	t.Fatal("no grammar history entry")
}

func TestSaveTemplateRejectsUnknownAgent(t *testing.T) {
	svc := newTestService(t, scriptedLLM{})
	_, err := svc.SaveTemplate(context.Background(), PromptTemplate{AgentID: "astrology", Template: "x"})
	if !errors.Is(err, ErrTemplateInvalid) {
		t.Fatalf("err = %v", err)
	}
}

func TestSaveTemplateSingleDefault(t *testing.T) {
	svc := newTestService(t, scriptedLLM{})
	first, err := svc.SaveTemplate(context.Background(), PromptTemplate{
		AgentID: agents.KindTheme, Template: "a {{TEXTO}}", IsDefault: true,
	})
	if err != nil {
		t.Fatalf("SaveTemplate: %v", err)
	}
	if _, err := svc.SaveTemplate(context.Background(), PromptTemplate{
		AgentID: agents.KindTheme, Template: "b {{TEXTO}}", IsDefault: true,
	}); err != nil {
		t.Fatalf("SaveTemplate second: %v", err)
	}

	stored, err := svc.Templates.GetByID(context.Background(), first.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if stored.IsDefault {
		t.Fatal("previous default not unset")
	}
	current, err := svc.Templates.GetDefault(context.Background(), agents.KindTheme)
	if err != nil {
		t.Fatalf("GetDefault: %v", err)
	}
	if current.Template != "b {{TEXTO}}" {
		t.Fatalf("default = %q", current.Template)
	}
}
