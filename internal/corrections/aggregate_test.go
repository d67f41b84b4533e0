package corrections

import (
	"testing"

	"github.com/riverojonathas/FDE-sub000/internal/agents"
)

func criteriaResult(scores map[string]float64) map[string]any {
	weights := map[string]float64{
		"norma":        20,
		"tema":         20,
		"argumentacao": 25,
		"coesao":       20,
		"intervencao":  15,
	}
	tags := map[string][]string{
		"norma":        {"gramática"},
		"tema":         {"tema"},
		"argumentacao": {"argumentação"},
		"coesao":       {"coesão"},
		"intervencao":  {"intervenção"},
	}
	comps := make([]map[string]any, 0, len(scores))
	var total float64
	for name, score := range scores {
		comps = append(comps, map[string]any{
			"name":   name,
			"score":  score,
			"weight": weights[name],
			"tags":   tags[name],
		})
		total += score * weights[name]
	}
	return map[string]any{
		"competencies": comps,
		"overallScore": total / 100,
	}
}

func TestAggregateWeightedScore(t *testing.T) {
	results := map[string]map[string]any{
		agents.KindCriteria: criteriaResult(map[string]float64{
			"norma": 6, "tema": 8, "argumentacao": 9, "coesao": 7, "intervencao": 5,
		}),
	}

	syn := Aggregate(results)
	// 6*20 + 8*20 + 9*25 + 7*20 + 5*15 = 720 -> 7.2
	if syn.FinalScore != 7.2 {
		t.Fatalf("finalScore = %v, want 7.2", syn.FinalScore)
	}
	if syn.Status != DecisionApproved {
		t.Fatalf("status = %s", syn.Status)
	}
}

func TestAggregateThresholds(t *testing.T) {
	cases := []struct {
		score float64
		want  string
	}{
		{8, DecisionApproved},
		{7, DecisionApproved},
		{6, DecisionNeedsReview},
		{5, DecisionNeedsReview},
		{4, DecisionRejected},
	}
	for _, tc := range cases {
		results := map[string]map[string]any{
			agents.KindCriteria: criteriaResult(map[string]float64{
				"norma": tc.score, "tema": tc.score, "argumentacao": tc.score, "coesao": tc.score, "intervencao": tc.score,
			}),
		}
		if syn := Aggregate(results); syn.Status != tc.want {
			t.Fatalf("score %v: status = %s, want %s", tc.score, syn.Status, tc.want)
		}
	}
}

func TestAggregateOriginalityGateWinsOverScore(t *testing.T) {
	results := map[string]map[string]any{
		agents.KindCriteria: criteriaResult(map[string]float64{
			"norma": 9, "tema": 9, "argumentacao": 9, "coesao": 9, "intervencao": 9,
		}),
		agents.KindPlagiarism: {
			"originalityScore": 60.0,
			"riskLevel":        "Alto",
		},
	}

	syn := Aggregate(results)
	if syn.Status != DecisionRejected {
		t.Fatalf("status = %s, want rejected by originality gate", syn.Status)
	}
	if syn.FinalScore != 9.0 {
		t.Fatalf("finalScore = %v, score itself stays intact", syn.FinalScore)
	}
}

func TestAggregateIgnoresFallbackPlagiarism(t *testing.T) {
	results := map[string]map[string]any{
		agents.KindCriteria: criteriaResult(map[string]float64{
			"norma": 8, "tema": 8, "argumentacao": 8, "coesao": 8, "intervencao": 8,
		}),
		agents.KindPlagiarism: {
			"originalityScore": 50.0,
			"processingMetadata": map[string]any{
				"analysisVersion": "v2-fallback",
				"fallback":        true,
			},
		},
	}

	if syn := Aggregate(results); syn.Status != DecisionApproved {
		t.Fatalf("status = %s, fallback plagiarism must not gate", syn.Status)
	}
}

func TestAggregateCollectsProblemTagsAndRecommendations(t *testing.T) {
	results := map[string]map[string]any{
		agents.KindCriteria: criteriaResult(map[string]float64{
			"norma": 4, "tema": 8, "argumentacao": 8, "coesao": 5, "intervencao": 8,
		}),
		agents.KindGrammar: {
			"summary": map[string]any{"readabilityScore": 4.0},
		},
	}

	syn := Aggregate(results)
	wantTags := map[string]bool{"gramática": true, "coesão": true, "ortografia": true}
	for tag := range wantTags {
		found := false
		for _, got := range syn.ProblemTags {
			if got == tag {
				found = true
			}
		}
		if !found {
			t.Fatalf("tag %q missing from %v", tag, syn.ProblemTags)
		}
	}
	if len(syn.Recommendations) == 0 || len(syn.Recommendations) > 3 {
		t.Fatalf("recommendations = %d", len(syn.Recommendations))
	}
}

func TestAggregateWithoutCriteria(t *testing.T) {
	syn := Aggregate(map[string]map[string]any{})
	if syn.FinalScore != 0 || syn.Status != DecisionRejected {
		t.Fatalf("syn = %+v", syn)
	}
}

func TestApplySynthesisMergesIntoFeedbackSlot(t *testing.T) {
	results := map[string]map[string]any{
		agents.KindFeedback: {"generalFeedback": "bom"},
	}
	ApplySynthesis(results, Synthesis{FinalScore: 7.5, Status: DecisionApproved})

	feedback := results[agents.KindFeedback]
	if feedback["generalFeedback"] != "bom" {
		t.Fatal("existing feedback overwritten")
	}
	if feedback["finalScore"] != 7.5 || feedback["status"] != DecisionApproved {
		t.Fatalf("feedback = %v", feedback)
	}
}

func TestApplySynthesisReplacesErrorMarker(t *testing.T) {
	results := map[string]map[string]any{
		agents.KindFeedback: {"error": "boom"},
	}
	ApplySynthesis(results, Synthesis{FinalScore: 3, Status: DecisionRejected})

	feedback := results[agents.KindFeedback]
	if feedback["error"] != nil {
		t.Fatal("error marker kept in synthesized slot")
	}
	if feedback["status"] != DecisionRejected {
		t.Fatalf("feedback = %v", feedback)
	}
}
