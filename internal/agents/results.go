package agents

import (
	"encoding/json"
	"fmt"
)

// Typed views over the canonical result maps. The pipeline carries results as
// maps so partial and fallback objects stay uniform; consumers that need
// structure decode through Result.

type ProcessingMetadata struct {
	AnalysisVersion string  `json:"analysisVersion"`
	Confidence      float64 `json:"confidence"`
	Fallback        bool    `json:"fallback,omitempty"`
	Partial         bool    `json:"partial,omitempty"`
	Repaired        bool    `json:"repaired,omitempty"`
}

type GrammarError struct {
	Error       string `json:"error"`
	Correction  string `json:"correction"`
	Type        string `json:"type"`
	Explanation string `json:"explanation"`
	Severity    string `json:"severity"`
	Position    struct {
		Paragraph float64 `json:"paragraph"`
		Sentence  string  `json:"sentence"`
	} `json:"position"`
}

type GrammarResult struct {
	Errors  []GrammarError `json:"errors"`
	Summary struct {
		TotalErrors      float64  `json:"totalErrors"`
		ReadabilityScore float64  `json:"readabilityScore"`
		Suggestions      []string `json:"suggestions"`
	} `json:"summary"`
	ProcessingMetadata ProcessingMetadata `json:"processingMetadata"`
}

type CoherenceIssue struct {
	Issue      string  `json:"issue"`
	Paragraph  float64 `json:"paragraph"`
	Suggestion string  `json:"suggestion"`
}

type CoherenceResult struct {
	CohesionScore      float64            `json:"cohesionScore"`
	CoherenceScore     float64            `json:"coherenceScore"`
	StructureAnalysis  string             `json:"structureAnalysis"`
	Issues             []CoherenceIssue   `json:"issues"`
	ConnectorsUsed     []string           `json:"connectorsUsed"`
	ProcessingMetadata ProcessingMetadata `json:"processingMetadata"`
}

type ThemeResult struct {
	MainTheme          string             `json:"mainTheme"`
	Relevance          string             `json:"relevance"`
	ThemeDevelopment   string             `json:"themeDevelopment"`
	Subthemes          []string           `json:"subthemes,omitempty"`
	ProcessingMetadata ProcessingMetadata `json:"processingMetadata"`
}

type Competency struct {
	Name     string   `json:"name"`
	Score    float64  `json:"score"`
	Weight   float64  `json:"weight"`
	Feedback string   `json:"feedback"`
	Tags     []string `json:"tags"`
}

type CriteriaResult struct {
	Competencies       []Competency       `json:"competencies"`
	OverallScore       float64            `json:"overallScore"`
	GeneralComments    string             `json:"generalComments"`
	ProcessingMetadata ProcessingMetadata `json:"processingMetadata"`
}

type SuspiciousPassage struct {
	Passage string `json:"passage"`
	Reason  string `json:"reason"`
}

type PlagiarismResult struct {
	OriginalityScore   float64             `json:"originalityScore"`
	RiskLevel          string              `json:"riskLevel"`
	SuspiciousPassages []SuspiciousPassage `json:"suspiciousPassages"`
	Assessment         string              `json:"assessment"`
	ProcessingMetadata ProcessingMetadata  `json:"processingMetadata"`
}

type FeedbackResult struct {
	GeneralFeedback    string             `json:"generalFeedback"`
	Strengths          []string           `json:"strengths"`
	Improvements       []string           `json:"improvements"`
	NextSteps          []string           `json:"nextSteps"`
	ProcessingMetadata ProcessingMetadata `json:"processingMetadata"`
}

// Result is the tagged union over agent result kinds: exactly one of the
// typed fields is set, matching Kind.
type Result struct {
	Kind       string
	Grammar    *GrammarResult
	Coherence  *CoherenceResult
	Theme      *ThemeResult
	Criteria   *CriteriaResult
	Plagiarism *PlagiarismResult
	Feedback   *FeedbackResult
}

// Decode converts a canonical result map into its typed form keyed by agent
// kind.
func Decode(agentID string, obj map[string]any) (Result, error) {
	encoded, err := json.Marshal(obj)
	if err != nil {
		return Result{}, fmt.Errorf("encode %s result: %w", agentID, err)
	}

	out := Result{Kind: agentID}
	var target any
	switch agentID {
	case KindGrammar:
		out.Grammar = &GrammarResult{}
		target = out.Grammar
	case KindCoherence:
		out.Coherence = &CoherenceResult{}
		target = out.Coherence
	case KindTheme:
		out.Theme = &ThemeResult{}
		target = out.Theme
	case KindCriteria:
		out.Criteria = &CriteriaResult{}
		target = out.Criteria
	case KindPlagiarism:
		out.Plagiarism = &PlagiarismResult{}
		target = out.Plagiarism
	case KindFeedback:
		out.Feedback = &FeedbackResult{}
		target = out.Feedback
	default:
		return Result{}, fmt.Errorf("unknown agent kind %q", agentID)
	}

	if err := json.Unmarshal(encoded, target); err != nil {
		return Result{}, fmt.Errorf("decode %s result: %w", agentID, err)
	}
	return out, nil
}
