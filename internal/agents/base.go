package agents

import (
	"encoding/json"
	"strings"

	"github.com/riverojonathas/FDE-sub000/internal/normalizer"
)

// base carries the registration data shared by every agent.
type base struct {
	id       string
	required bool
	deps     []string
	schema   normalizer.Schema
	prompt   string
}

func (b base) ID() string          { return b.id }
func (b base) Required() bool      { return b.required }
func (b base) DependsOn() []string { return b.deps }

func (b base) Schema() normalizer.Schema { return b.schema }

// template resolves the prompt template: a stored override for this agent
// wins over the embedded default.
func (b base) template(actx Context) string {
	if override, ok := actx.Templates[b.id]; ok && strings.TrimSpace(override) != "" {
		return override
	}
	return b.prompt
}

func render(template string, vars map[string]string) string {
	pairs := make([]string, 0, len(vars)*2)
	for key, value := range vars {
		pairs = append(pairs, "{{"+key+"}}", value)
	}
	return strings.NewReplacer(pairs...).Replace(template)
}

// upstreamJSON serializes the normalized results of the named upstream agents
// for inclusion in a downstream prompt. Missing results are skipped so the
// prompt stays deterministic for whatever context exists.
func upstreamJSON(actx Context, ids ...string) string {
	picked := make(map[string]any, len(ids))
	for _, id := range ids {
		if res, ok := actx.Results[id]; ok {
			picked[id] = res
		}
	}
	encoded, err := json.MarshalIndent(picked, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(encoded)
}
