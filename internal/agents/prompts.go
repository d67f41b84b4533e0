package agents

import _ "embed"

var (
	//go:embed prompts/grammar.txt
	grammarPrompt string
	//go:embed prompts/coherence.txt
	coherencePrompt string
	//go:embed prompts/theme.txt
	themePrompt string
	//go:embed prompts/criteria.txt
	criteriaPrompt string
	//go:embed prompts/plagiarism.txt
	plagiarismPrompt string
	//go:embed prompts/feedback.txt
	feedbackPrompt string
)

// DefaultTemplate returns the embedded prompt template for an agent and
// whether the agent is recognized.
func DefaultTemplate(agentID string) (string, bool) {
	switch agentID {
	case KindGrammar:
		return grammarPrompt, true
	case KindCoherence:
		return coherencePrompt, true
	case KindTheme:
		return themePrompt, true
	case KindCriteria:
		return criteriaPrompt, true
	case KindPlagiarism:
		return plagiarismPrompt, true
	case KindFeedback:
		return feedbackPrompt, true
	default:
		return "", false
	}
}
