package corrections

import (
	"math"

	"github.com/riverojonathas/FDE-sub000/internal/agents"
	"github.com/riverojonathas/FDE-sub000/internal/corrections/recommendations"
	"github.com/riverojonathas/FDE-sub000/internal/normalizer"
)

const (
	originalityRejectBelow = 70.0
	approveAt              = 7.0
	reviewAt               = 5.0
	lowScoreBelow          = 6.0
)

// Synthesis is the aggregate outcome computed from the per-agent results.
type Synthesis struct {
	FinalScore      float64                    `json:"finalScore"`
	Status          string                     `json:"status"`
	ProblemTags     []string                   `json:"problemTags"`
	Recommendations []recommendations.Resource `json:"recommendations"`
}

// Aggregate combines the criteria, grammar, coherence, and plagiarism results
// into the final score and decision. The decision is evaluated in a fixed
// order: the originality gate first, then the weighted average thresholds.
// A fallback plagiarism result never rejects a run on its own.
func Aggregate(results map[string]map[string]any) Synthesis {
	syn := Synthesis{
		Status:          DecisionRejected,
		ProblemTags:     []string{},
		Recommendations: []recommendations.Resource{},
	}

	criteria := decodeCriteria(results)
	syn.FinalScore = weightedScore(criteria)

	rejectedByOriginality := false
	if plag, ok := decodePlagiarism(results); ok {
		if plag.OriginalityScore < originalityRejectBelow {
			rejectedByOriginality = true
			syn.ProblemTags = append(syn.ProblemTags, "originalidade")
		}
	}

	syn.ProblemTags = append(syn.ProblemTags, problemTags(results, criteria)...)
	syn.Recommendations = recommendations.Select(syn.ProblemTags)

	switch {
	case rejectedByOriginality:
		syn.Status = DecisionRejected
	case syn.FinalScore >= approveAt:
		syn.Status = DecisionApproved
	case syn.FinalScore >= reviewAt:
		syn.Status = DecisionNeedsReview
	default:
		syn.Status = DecisionRejected
	}
	return syn
}

// ApplySynthesis merges the aggregate outcome into the feedback result slot
// so consumers read one complete FeedbackResult.
func ApplySynthesis(results map[string]map[string]any, syn Synthesis) {
	feedback, ok := results[agents.KindFeedback]
	if !ok || isErrorMarker(feedback) {
		feedback = map[string]any{}
		results[agents.KindFeedback] = feedback
	}
	feedback["finalScore"] = syn.FinalScore
	feedback["status"] = syn.Status
	feedback["recommendations"] = syn.Recommendations
}

func isErrorMarker(obj map[string]any) bool {
	if obj == nil {
		return true
	}
	_, failed := obj["error"]
	return failed
}

func decodeCriteria(results map[string]map[string]any) *agents.CriteriaResult {
	obj, ok := results[agents.KindCriteria]
	if !ok || isErrorMarker(obj) {
		return nil
	}
	decoded, err := agents.Decode(agents.KindCriteria, obj)
	if err != nil {
		return nil
	}
	return decoded.Criteria
}

// decodePlagiarism returns the plagiarism result only when it should gate the
// decision: absent or degraded results are ignored.
func decodePlagiarism(results map[string]map[string]any) (*agents.PlagiarismResult, bool) {
	obj, ok := results[agents.KindPlagiarism]
	if !ok || isErrorMarker(obj) || normalizer.IsFallback(obj) {
		return nil, false
	}
	decoded, err := agents.Decode(agents.KindPlagiarism, obj)
	if err != nil {
		return nil, false
	}
	return decoded.Plagiarism, true
}

// weightedScore computes the 0..10 final score from the declared competency
// weights, which sum to 100. Without competencies the overall score stands in.
func weightedScore(criteria *agents.CriteriaResult) float64 {
	if criteria == nil {
		return 0
	}
	var sum, totalWeight float64
	for _, comp := range criteria.Competencies {
		sum += comp.Score * comp.Weight
		totalWeight += comp.Weight
	}
	if totalWeight == 0 {
		return round1(criteria.OverallScore)
	}
	return round1(sum / totalWeight)
}

func problemTags(results map[string]map[string]any, criteria *agents.CriteriaResult) []string {
	tags := make([]string, 0, 8)
	seen := make(map[string]bool)
	add := func(values ...string) {
		for _, v := range values {
			if v != "" && !seen[v] {
				seen[v] = true
				tags = append(tags, v)
			}
		}
	}

	if criteria != nil {
		for _, comp := range criteria.Competencies {
			if comp.Score < lowScoreBelow {
				add(comp.Tags...)
			}
		}
	}

	if obj, ok := results[agents.KindGrammar]; ok && !isErrorMarker(obj) {
		if decoded, err := agents.Decode(agents.KindGrammar, obj); err == nil {
			if decoded.Grammar.Summary.ReadabilityScore < lowScoreBelow {
				add("gramática", "ortografia")
			}
		}
	}

	if obj, ok := results[agents.KindCoherence]; ok && !isErrorMarker(obj) {
		if decoded, err := agents.Decode(agents.KindCoherence, obj); err == nil {
			if decoded.Coherence.CohesionScore < lowScoreBelow || decoded.Coherence.CoherenceScore < lowScoreBelow {
				add("coesão", "coerência")
			}
		}
	}

	return tags
}

func round1(value float64) float64 {
	return math.Round(value*10) / 10
}
