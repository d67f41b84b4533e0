package agents

import (
	"regexp"

	"github.com/riverojonathas/FDE-sub000/internal/normalizer"
)

// Criteria grades the essay against the five grading competencies. Weights
// sum to 100, so the weighted average stays on the 0..10 scale.
type Criteria struct {
	base
}

func NewCriteria() Criteria {
	return Criteria{base{
		id:       KindCriteria,
		required: true,
		prompt:   criteriaPrompt,
		schema: normalizer.Schema{
			Agent:    KindCriteria,
			Required: []string{"overallScore"},
			Fields: []normalizer.Field{
				{Name: "competencies", Aliases: []string{"competencias", "competências"}, Kind: normalizer.ObjectList, Fields: []normalizer.Field{
					{Name: "name", Aliases: []string{"nome"}, Kind: normalizer.String},
					{Name: "score", Aliases: []string{"nota"}, Kind: normalizer.Number, Min: 0, Max: 10, Neutral: 5.0},
					{Name: "weight", Aliases: []string{"peso"}, Kind: normalizer.Number, Min: 0, Max: 100},
					{Name: "feedback", Aliases: []string{"justificativa"}, Kind: normalizer.String},
					{Name: "tags", Kind: normalizer.StringList},
				}},
				{Name: "overallScore", Aliases: []string{"notaGeral", "notaFinal"}, Kind: normalizer.Number,
					Min: 0, Max: 10, Neutral: 5.0},
				{Name: "generalComments", Aliases: []string{"comentarioGeral", "comentárioGeral"}, Kind: normalizer.String,
					Neutral: "não avaliado"},
			},
			Recover: []normalizer.Recovery{
				{Field: "overallScore", Pattern: regexp.MustCompile(`"(?:overallScore|notaGeral|notaFinal)"\s*:?\s*([0-9]+(?:\.[0-9]+)?)`), Numeric: true},
			},
		},
	}}
}

func (a Criteria) Prompt(text string, actx Context) string {
	return render(a.template(actx), map[string]string{"TEXTO": text})
}
