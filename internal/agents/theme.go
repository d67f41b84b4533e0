package agents

import (
	"regexp"

	"github.com/riverojonathas/FDE-sub000/internal/normalizer"
)

// Theme identifies the essay's central theme and how well the text sticks
// to it. Subtheme detection is gated behind the run's includeSubthemes flag.
type Theme struct {
	base
}

func NewTheme() Theme {
	return Theme{base{
		id:     KindTheme,
		prompt: themePrompt,
		schema: normalizer.Schema{
			Agent:    KindTheme,
			Required: []string{"mainTheme"},
			Fields: []normalizer.Field{
				{Name: "mainTheme", Aliases: []string{"temaCentral", "tema"}, Kind: normalizer.String,
					Neutral: "não avaliado"},
				{Name: "relevance", Aliases: []string{"relevancia", "relevância", "aderencia", "aderência"}, Kind: normalizer.String,
					Enum: []string{"Alta", "Média", "Baixa"}, Default: "Média", Neutral: "Média"},
				{Name: "themeDevelopment", Aliases: []string{"desenvolvimento"}, Kind: normalizer.String,
					Neutral: "não avaliado"},
				{Name: "subthemes", Aliases: []string{"subtemas"}, Kind: normalizer.StringList, Flag: "includeSubthemes"},
			},
			Recover: []normalizer.Recovery{
				{Field: "mainTheme", Pattern: regexp.MustCompile(`"(?:mainTheme|temaCentral|tema)"\s*:?\s*"([^"]+)"`)},
				{Field: "relevance", Pattern: regexp.MustCompile(`"(?:relevance|relevancia|relevância)"\s*:?\s*"([^"]+)"`)},
			},
		},
	}}
}

func (a Theme) Prompt(text string, actx Context) string {
	return render(a.template(actx), map[string]string{"TEXTO": text})
}
