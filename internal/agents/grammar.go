package agents

import "github.com/riverojonathas/FDE-sub000/internal/normalizer"

// Grammar analyzes spelling, agreement, and punctuation, listing each error
// with its correction.
type Grammar struct {
	base
}

func NewGrammar() Grammar {
	return Grammar{base{
		id:       KindGrammar,
		required: true,
		prompt:   grammarPrompt,
		schema: normalizer.Schema{
			Agent:    KindGrammar,
			Required: []string{"summary"},
			Fields: []normalizer.Field{
				{Name: "errors", Aliases: []string{"erros"}, Kind: normalizer.ObjectList, Fields: []normalizer.Field{
					{Name: "error", Aliases: []string{"erro"}, Kind: normalizer.String},
					{Name: "correction", Aliases: []string{"correcao", "correção"}, Kind: normalizer.String},
					{Name: "type", Aliases: []string{"tipo"}, Kind: normalizer.String},
					{Name: "explanation", Aliases: []string{"explicacao", "explicação"}, Kind: normalizer.String},
					{Name: "severity", Aliases: []string{"severidade"}, Kind: normalizer.String,
						Enum: []string{"leve", "média", "grave"}, Default: "média"},
					{Name: "position", Aliases: []string{"posicao", "posição"}, Kind: normalizer.Object, Fields: []normalizer.Field{
						{Name: "paragraph", Aliases: []string{"paragrafo", "parágrafo"}, Kind: normalizer.Number, Min: 0},
						{Name: "sentence", Aliases: []string{"frase"}, Kind: normalizer.String},
					}},
				}},
				{Name: "summary", Aliases: []string{"resumo"}, Kind: normalizer.Object, Fields: []normalizer.Field{
					{Name: "totalErrors", Aliases: []string{"totalErros"}, Kind: normalizer.Number, Min: 0},
					{Name: "readabilityScore", Aliases: []string{"notaLegibilidade"}, Kind: normalizer.Number,
						Min: 0, Max: 10, Neutral: 5.0},
					{Name: "suggestions", Aliases: []string{"sugestoes", "sugestões"}, Kind: normalizer.StringList},
				}},
			},
		},
	}}
}

func (a Grammar) Prompt(text string, actx Context) string {
	return render(a.template(actx), map[string]string{"TEXTO": text})
}
