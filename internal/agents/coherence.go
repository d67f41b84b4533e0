package agents

import (
	"regexp"

	"github.com/riverojonathas/FDE-sub000/internal/normalizer"
)

// Coherence evaluates cohesion, idea progression, and paragraph structure.
type Coherence struct {
	base
}

func NewCoherence() Coherence {
	return Coherence{base{
		id:     KindCoherence,
		prompt: coherencePrompt,
		schema: normalizer.Schema{
			Agent:    KindCoherence,
			Required: []string{"coherenceScore"},
			Fields: []normalizer.Field{
				{Name: "cohesionScore", Aliases: []string{"notaCoesao", "notaCoesão"}, Kind: normalizer.Number,
					Min: 0, Max: 10, Neutral: 5.0},
				{Name: "coherenceScore", Aliases: []string{"notaCoerencia", "notaCoerência"}, Kind: normalizer.Number,
					Min: 0, Max: 10, Neutral: 5.0},
				{Name: "structureAnalysis", Aliases: []string{"analiseEstrutura"}, Kind: normalizer.String,
					Neutral: "não avaliado"},
				{Name: "issues", Aliases: []string{"problemas"}, Kind: normalizer.ObjectList, Fields: []normalizer.Field{
					{Name: "issue", Aliases: []string{"problema"}, Kind: normalizer.String},
					{Name: "paragraph", Aliases: []string{"paragrafo", "parágrafo"}, Kind: normalizer.Number, Min: 0},
					{Name: "suggestion", Aliases: []string{"sugestao", "sugestão"}, Kind: normalizer.String},
				}},
				{Name: "connectorsUsed", Aliases: []string{"conectivos"}, Kind: normalizer.StringList},
			},
			Recover: []normalizer.Recovery{
				{Field: "coherenceScore", Pattern: regexp.MustCompile(`"coherenceScore"\s*:?\s*([0-9]+(?:\.[0-9]+)?)`), Numeric: true},
				{Field: "cohesionScore", Pattern: regexp.MustCompile(`"cohesionScore"\s*:?\s*([0-9]+(?:\.[0-9]+)?)`), Numeric: true},
			},
		},
	}}
}

func (a Coherence) Prompt(text string, actx Context) string {
	return render(a.template(actx), map[string]string{"TEXTO": text})
}
