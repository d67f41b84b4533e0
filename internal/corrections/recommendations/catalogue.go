package recommendations

// catalogue is the static resource list matched against problem tags. Order
// matters: selection is first-match, not ranked.
var catalogue = []Resource{
	{
		ID:       "norma-culta-acentuacao",
		Title:    "Guia de acentuação e ortografia da norma culta",
		URL:      "https://brasilescola.uol.com.br/gramatica/acentuacao.htm",
		Category: "gramática",
		Tags:     []string{"gramática", "ortografia", "acentuação", "norma culta"},
	},
	{
		ID:       "concordancia-verbal",
		Title:    "Concordância verbal e nominal na prática",
		URL:      "https://brasilescola.uol.com.br/gramatica/concordancia-verbal.htm",
		Category: "gramática",
		Tags:     []string{"gramática", "concordância", "regência"},
	},
	{
		ID:       "pontuacao-essencial",
		Title:    "Pontuação essencial para textos dissertativos",
		URL:      "https://www.todamateria.com.br/pontuacao/",
		Category: "gramática",
		Tags:     []string{"pontuação", "gramática", "legibilidade"},
	},
	{
		ID:       "conectivos-coesao",
		Title:    "Conectivos e mecanismos de coesão textual",
		URL:      "https://www.todamateria.com.br/conectivos/",
		Category: "coesão",
		Tags:     []string{"coesão", "coerência", "conectivos", "estrutura"},
	},
	{
		ID:       "estrutura-dissertativa",
		Title:    "Estrutura do texto dissertativo-argumentativo",
		URL:      "https://www.todamateria.com.br/texto-dissertativo-argumentativo/",
		Category: "estrutura",
		Tags:     []string{"estrutura", "coerência", "introdução", "conclusão"},
	},
	{
		ID:       "repertorio-argumentacao",
		Title:    "Como construir repertório sociocultural para a argumentação",
		URL:      "https://brasilescola.uol.com.br/redacao/repertorio-sociocultural.htm",
		Category: "argumentação",
		Tags:     []string{"argumentação", "repertório", "tema"},
	},
	{
		ID:       "aderencia-ao-tema",
		Title:    "Aderência ao tema: como não tangenciar a proposta",
		URL:      "https://www.todamateria.com.br/fuga-do-tema/",
		Category: "tema",
		Tags:     []string{"tema", "aderência", "argumentação"},
	},
	{
		ID:       "proposta-intervencao",
		Title:    "Proposta de intervenção completa em cinco passos",
		URL:      "https://brasilescola.uol.com.br/redacao/proposta-intervencao.htm",
		Category: "intervenção",
		Tags:     []string{"intervenção", "proposta", "conclusão"},
	},
	{
		ID:       "originalidade-parafrase",
		Title:    "Paráfrase e citação: usando fontes sem copiar",
		URL:      "https://www.todamateria.com.br/parafrase/",
		Category: "originalidade",
		Tags:     []string{"originalidade", "plágio", "repertório"},
	},
}

// Catalogue returns a copy of the static resource list.
func Catalogue() []Resource {
	out := make([]Resource, len(catalogue))
	copy(out, catalogue)
	return out
}
