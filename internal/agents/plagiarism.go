package agents

import (
	"regexp"

	"github.com/riverojonathas/FDE-sub000/internal/normalizer"
)

// Plagiarism estimates the essay's originality on a 0..100 scale. The neutral
// fallback score of 50 deliberately sits above nothing and below the
// rejection threshold so a degraded result never rejects a run on its own.
type Plagiarism struct {
	base
}

func NewPlagiarism() Plagiarism {
	return Plagiarism{base{
		id:     KindPlagiarism,
		prompt: plagiarismPrompt,
		schema: normalizer.Schema{
			Agent:    KindPlagiarism,
			Required: []string{"originalityScore"},
			Fields: []normalizer.Field{
				{Name: "originalityScore", Aliases: []string{"notaOriginalidade", "originalidade"}, Kind: normalizer.Number,
					Min: 0, Max: 100, Neutral: 50.0},
				{Name: "riskLevel", Aliases: []string{"nivelRisco", "nívelRisco", "risco"}, Kind: normalizer.String,
					Enum: []string{"Baixo", "Médio", "Alto"}, Default: "Médio", Neutral: "Médio"},
				{Name: "suspiciousPassages", Aliases: []string{"trechosSuspeitos"}, Kind: normalizer.ObjectList, Fields: []normalizer.Field{
					{Name: "passage", Aliases: []string{"trecho"}, Kind: normalizer.String},
					{Name: "reason", Aliases: []string{"motivo"}, Kind: normalizer.String},
				}},
				{Name: "assessment", Aliases: []string{"avaliacao", "avaliação"}, Kind: normalizer.String,
					Neutral: "não avaliado"},
			},
			Recover: []normalizer.Recovery{
				{Field: "originalityScore", Pattern: regexp.MustCompile(`"(?:originalityScore|notaOriginalidade|originalidade)"\s*:?\s*([0-9]+(?:\.[0-9]+)?)`), Numeric: true},
			},
		},
	}}
}

func (a Plagiarism) Prompt(text string, actx Context) string {
	return render(a.template(actx), map[string]string{"TEXTO": text})
}
