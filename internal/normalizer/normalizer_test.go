package normalizer

import (
	"encoding/json"
	"errors"
	"reflect"
	"regexp"
	"testing"
)

func testSchema() Schema {
	return Schema{
		Agent:    "grammar",
		Required: []string{"summary"},
		Fields: []Field{
			{Name: "summary", Aliases: []string{"resumo"}, Kind: String},
			{Name: "score", Kind: Number, Min: 0, Max: 10, Neutral: 5.0},
			{Name: "relevance", Kind: String, Enum: []string{"Alta", "Média", "Baixa"}, Default: "Média"},
			{Name: "issues", Kind: ObjectList},
			{Name: "tags", Kind: StringList},
			{Name: "subthemes", Kind: StringList, Flag: "includeSubthemes"},
		},
		Recover: []Recovery{
			{Field: "summary", Pattern: regexp.MustCompile(`"summary"\s*:\s*"([^"]*)"`)},
			{Field: "score", Pattern: regexp.MustCompile(`"score"\s*:\s*([0-9.]+)`), Numeric: true},
		},
	}
}

func TestNormalizeCleanJSONRoundTrips(t *testing.T) {
	sch := testSchema()
	raw := `{"summary":"ok","score":7,"relevance":"Alta","issues":[{"word":"la"}],"tags":["a","b"]}`

	res, err := Normalize(raw, sch, nil)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if res.Partial || res.Repaired {
		t.Fatalf("clean input flagged partial=%v repaired=%v", res.Partial, res.Repaired)
	}

	var want map[string]any
	if err := json.Unmarshal([]byte(raw), &want); err != nil {
		t.Fatalf("unmarshal want: %v", err)
	}
	got, _ := json.Marshal(res.Object)
	var gotObj map[string]any
	if err := json.Unmarshal(got, &gotObj); err != nil {
		t.Fatalf("unmarshal got: %v", err)
	}
	if !reflect.DeepEqual(gotObj, want) {
		t.Fatalf("round trip mismatch\n got in%v\nwant %v", gotObj, want)
	}
}

func TestNormalizePrefersJSONFence(t *testing.T) {
	raw := "Aqui está a análise:\n```json\n{\"summary\":\"dentro da cerca\",\"score\":8}\n```\ne fora da cerca {\"summary\":\"errado\"}"

	res, err := Normalize(raw, testSchema(), nil)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if res.Object["summary"] != "dentro da cerca" {
		t.Fatalf("summary = %v, want fenced value", res.Object["summary"])
	}
}

func TestNormalizeRepairsQuotesAndBareKeys(t *testing.T) {
	raw := `{summary: 'faltam aspas', score: 6}`

	res, err := Normalize(raw, testSchema(), nil)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if !res.Repaired {
		t.Fatal("expected repaired flag")
	}
	if res.Object["summary"] != "faltam aspas" {
		t.Fatalf("summary = %v", res.Object["summary"])
	}
	if res.Object["score"] != 6.0 {
		t.Fatalf("score = %v", res.Object["score"])
	}
}

func TestNormalizeInsertsMissingCommas(t *testing.T) {
	raw := `{"issues":[{"word":"la"}{"word":"ali"}],"summary":"ok"}`

	res, err := Normalize(raw, testSchema(), nil)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	issues, ok := res.Object["issues"].([]map[string]any)
	if !ok || len(issues) != 2 {
		t.Fatalf("issues = %#v, want two entries", res.Object["issues"])
	}
}

func TestNormalizeClampsOutOfRangeScore(t *testing.T) {
	raw := `{"summary":"ok","score":15}`

	res, err := Normalize(raw, testSchema(), nil)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if res.Object["score"] != 10.0 {
		t.Fatalf("score = %v, want 10 after clamp", res.Object["score"])
	}
}

func TestNormalizeCoercesEnumAndAlias(t *testing.T) {
	raw := `{"resumo":"via alias","relevance":"alta"}`

	res, err := Normalize(raw, testSchema(), nil)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if res.Object["summary"] != "via alias" {
		t.Fatalf("summary = %v", res.Object["summary"])
	}
	if res.Object["relevance"] != "Alta" {
		t.Fatalf("relevance = %v, want canonical casing", res.Object["relevance"])
	}
}

func TestNormalizeGatesFlaggedFields(t *testing.T) {
	raw := `{"summary":"ok","subthemes":["meio ambiente"]}`

	res, err := Normalize(raw, testSchema(), nil)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if _, present := res.Object["subthemes"]; present {
		t.Fatal("subthemes present without flag")
	}

	res, err = Normalize(raw, testSchema(), Flags{"includeSubthemes": true})
	if err != nil {
		t.Fatalf("Normalize with flag: %v", err)
	}
	sub, ok := res.Object["subthemes"].([]string)
	if !ok || len(sub) != 1 || sub[0] != "meio ambiente" {
		t.Fatalf("subthemes = %#v", res.Object["subthemes"])
	}
}

func TestNormalizeRecoversFieldsFromBrokenOutput(t *testing.T) {
	raw := `análise: "summary": "recuperado por regex", "score": 4 e depois texto { sem estrutura`

	res, err := Normalize(raw, testSchema(), nil)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if !res.Partial {
		t.Fatal("expected partial result")
	}
	if res.Object["summary"] != "recuperado por regex" {
		t.Fatalf("summary = %v", res.Object["summary"])
	}
	if res.Object["score"] != 4.0 {
		t.Fatalf("score = %v", res.Object["score"])
	}
}

func TestNormalizeExhaustsOnProse(t *testing.T) {
	_, err := Normalize("A redação está boa, parabéns ao aluno.", testSchema(), nil)
	if !errors.Is(err, ErrRepairExhausted) {
		t.Fatalf("err = %v, want ErrRepairExhausted", err)
	}
}

func TestNormalizeMissingRequiredField(t *testing.T) {
	_, err := Normalize(`{"score":5}`, testSchema(), nil)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("err = %v, want ValidationError", err)
	}
	if len(verr.Missing) != 1 || verr.Missing[0] != "summary" {
		t.Fatalf("missing = %v", verr.Missing)
	}
}

func TestFallbackIsSchemaComplete(t *testing.T) {
	sch := testSchema()
	obj := Fallback(sch, Flags{"includeSubthemes": true}, "v2")

	for _, f := range sch.Fields {
		if _, ok := obj[f.Name]; !ok {
			t.Fatalf("fallback missing field %s", f.Name)
		}
	}
	if obj["score"] != 5.0 {
		t.Fatalf("score = %v, want neutral 5", obj["score"])
	}
	if !IsFallback(obj) {
		t.Fatal("fallback not marked")
	}
	meta := obj["processingMetadata"].(map[string]any)
	if meta["analysisVersion"] != "v2-fallback" {
		t.Fatalf("analysisVersion = %v", meta["analysisVersion"])
	}
}

func TestFallbackOmitsGatedFields(t *testing.T) {
	obj := Fallback(testSchema(), nil, "v2")
	if _, ok := obj["subthemes"]; ok {
		t.Fatal("gated field present without flag")
	}
}
