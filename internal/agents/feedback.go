package agents

import (
	"regexp"

	"github.com/riverojonathas/FDE-sub000/internal/normalizer"
)

// Feedback synthesizes the pedagogical return for the student from every
// upstream analysis, which is why it depends on all of them and runs last.
type Feedback struct {
	base
}

func NewFeedback() Feedback {
	return Feedback{base{
		id:       KindFeedback,
		required: true,
		deps:     []string{KindGrammar, KindCoherence, KindTheme, KindCriteria, KindPlagiarism},
		prompt:   feedbackPrompt,
		schema: normalizer.Schema{
			Agent:    KindFeedback,
			Required: []string{"generalFeedback"},
			Fields: []normalizer.Field{
				{Name: "generalFeedback", Aliases: []string{"parecerGeral", "feedbackGeral"}, Kind: normalizer.String,
					Neutral: "não avaliado"},
				{Name: "strengths", Aliases: []string{"pontosFortes"}, Kind: normalizer.StringList},
				{Name: "improvements", Aliases: []string{"pontosAMelhorar", "melhorias"}, Kind: normalizer.StringList},
				{Name: "nextSteps", Aliases: []string{"proximosPassos", "próximosPassos"}, Kind: normalizer.StringList},
			},
			Recover: []normalizer.Recovery{
				{Field: "generalFeedback", Pattern: regexp.MustCompile(`"(?:generalFeedback|parecerGeral|feedbackGeral)"\s*:?\s*"([^"]+)"`)},
			},
		},
	}}
}

func (a Feedback) Prompt(text string, actx Context) string {
	return render(a.template(actx), map[string]string{
		"TEXTO":    text,
		"ANALISES": upstreamJSON(actx, KindGrammar, KindCoherence, KindTheme, KindCriteria, KindPlagiarism),
	})
}
