package corrections

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/riverojonathas/FDE-sub000/internal/shared/server/middleware"
)

func setupRouter(t *testing.T, svc *Service) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := NewHandler(svc)
	h.Extract = func(data []byte, filename string) (string, error) {
		return string(data), nil
	}
	h.RegisterRoutes(r.Group("/api/v1"))
	return r
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	if payload != nil {
		if err := json.NewEncoder(&body).Encode(payload); err != nil {
			t.Fatalf("encode payload: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func TestCreateCorrectionEndpoint(t *testing.T) {
	svc := newTestService(t, scriptedLLM{})
	r := setupRouter(t, svc)

	resp := doJSON(t, r, http.MethodPost, "/api/v1/corrections", map[string]any{
		"text":    "uma redação sobre educação",
		"options": map[string]any{"mode": "manual"},
	})
	if resp.Code != http.StatusAccepted {
		t.Fatalf("status = %d body = %s", resp.Code, resp.Body.String())
	}

	var created struct {
		CorrectionID string `json:"correctionId"`
		Status       string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if created.CorrectionID == "" {
		t.Fatal("expected correctionId")
	}
	if created.Status != StatusPending {
		t.Fatalf("status = %s", created.Status)
	}
}

func TestCreateCorrectionEmptyText(t *testing.T) {
	svc := newTestService(t, scriptedLLM{})
	r := setupRouter(t, svc)

	resp := doJSON(t, r, http.MethodPost, "/api/v1/corrections", map[string]any{"text": "   "})
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("status = %d body = %s", resp.Code, resp.Body.String())
	}
}

func TestGetCorrectionNotFound(t *testing.T) {
	svc := newTestService(t, scriptedLLM{})
	r := setupRouter(t, svc)

	resp := doJSON(t, r, http.MethodGet, "/api/v1/corrections/nope", nil)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("status = %d", resp.Code)
	}
}

func TestGetCorrectionReturnsRun(t *testing.T) {
	svc := newTestService(t, scriptedLLM{})
	r := setupRouter(t, svc)

	c := createAndProcess(t, svc, "uma redação completa sobre o tema", Options{})

	resp := doJSON(t, r, http.MethodGet, "/api/v1/corrections/"+c.ID, nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", resp.Code, resp.Body.String())
	}
	var got Correction
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Status != StatusCompleted {
		t.Fatalf("status = %s", got.Status)
	}
	if got.Result["feedback"] == nil {
		t.Fatal("expected feedback result")
	}
}

func TestUploadCorrectionEndpoint(t *testing.T) {
	svc := newTestService(t, scriptedLLM{})
	r := setupRouter(t, svc)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", "redacao.txt")
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	if _, err := fw.Write([]byte("uma redação enviada por arquivo")); err != nil {
		t.Fatalf("write file part: %v", err)
	}
	if err := mw.WriteField("mode", ModeManual); err != nil {
		t.Fatalf("WriteField: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/corrections/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusAccepted {
		t.Fatalf("status = %d body = %s", resp.Code, resp.Body.String())
	}
}

func TestSubmitStepResponseEndpoint(t *testing.T) {
	svc := newTestService(t, scriptedLLM{})
	r := setupRouter(t, svc)

	c, err := svc.Create(context.Background(), "uma redação em modo manual", Options{Mode: ModeManual})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	resp := doJSON(t, r, http.MethodPost, "/api/v1/corrections/"+c.ID+"/steps/grammar/response", map[string]string{
		"response": `{"errors":[],"summary":{"totalErrors":0,"readabilityScore":9,"suggestions":[]}}`,
	})
	if resp.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", resp.Code, resp.Body.String())
	}
	var got Correction
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Result["grammar"] == nil {
		t.Fatal("expected grammar result stored")
	}
}

func TestSubmitStepResponseUnparseable(t *testing.T) {
	svc := newTestService(t, scriptedLLM{})
	r := setupRouter(t, svc)

	c, err := svc.Create(context.Background(), "uma redação em modo manual", Options{Mode: ModeManual})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	resp := doJSON(t, r, http.MethodPost, "/api/v1/corrections/"+c.ID+"/steps/grammar/response", map[string]string{
		"response": "não tem nada de json aqui",
	})
	if resp.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d body = %s", resp.Code, resp.Body.String())
	}
	if !strings.Contains(resp.Body.String(), "repair_exhausted") {
		t.Fatalf("body = %s", resp.Body.String())
	}
}

func TestSubmitStepResponseUnknownStep(t *testing.T) {
	svc := newTestService(t, scriptedLLM{})
	r := setupRouter(t, svc)

	c, err := svc.Create(context.Background(), "uma redação em modo manual", Options{Mode: ModeManual})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	resp := doJSON(t, r, http.MethodPost, "/api/v1/corrections/"+c.ID+"/steps/unknown/response", map[string]string{
		"response": "{}",
	})
	if resp.Code != http.StatusNotFound {
		t.Fatalf("status = %d body = %s", resp.Code, resp.Body.String())
	}
}

func TestReviewEndpoint(t *testing.T) {
	svc := newTestService(t, scriptedLLM{})
	r := setupRouter(t, svc)

	c := createAndProcess(t, svc, "uma redação para revisão humana", Options{})

	score := 8.5
	resp := doJSON(t, r, http.MethodPost, "/api/v1/corrections/"+c.ID+"/review", map[string]any{
		"reviewedBy":    "prof-1",
		"adjustedScore": score,
		"status":        DecisionApproved,
	})
	if resp.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", resp.Code, resp.Body.String())
	}
	var got Correction
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.HumanReview == nil || !got.HumanReview.Reviewed {
		t.Fatalf("review = %+v", got.HumanReview)
	}
	if got.HumanReview.AdjustedScore == nil || *got.HumanReview.AdjustedScore != score {
		t.Fatalf("adjustedScore = %v", got.HumanReview.AdjustedScore)
	}
}

func TestTemplateEndpoints(t *testing.T) {
	svc := newTestService(t, scriptedLLM{})
	r := setupRouter(t, svc)

	resp := doJSON(t, r, http.MethodPost, "/api/v1/templates", map[string]any{
		"agentId":   "grammar",
		"template":  "Analise a gramática e a ortografia: {{TEXTO}}",
		"isDefault": true,
	})
	if resp.Code != http.StatusCreated {
		t.Fatalf("status = %d body = %s", resp.Code, resp.Body.String())
	}
	var tpl PromptTemplate
	if err := json.NewDecoder(resp.Body).Decode(&tpl); err != nil {
		t.Fatalf("decode: %v", err)
	}

	resp = doJSON(t, r, http.MethodGet, "/api/v1/templates/grammar", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("status = %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), tpl.ID) {
		t.Fatalf("body = %s", resp.Body.String())
	}

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/templates/grammar/"+tpl.ID, nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestSaveTemplateUnknownAgent(t *testing.T) {
	svc := newTestService(t, scriptedLLM{})
	r := setupRouter(t, svc)

	resp := doJSON(t, r, http.MethodPost, "/api/v1/templates", map[string]any{
		"agentId":  "mystery",
		"template": "{{TEXTO}}",
	})
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("status = %d body = %s", resp.Code, resp.Body.String())
	}
}

func TestRequestContextCarriesRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.RequestID())

	var got string
	r.GET("/", func(c *gin.Context) {
		got = requestIDFromContext(requestContext(c))
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-Id", "req-123")
	r.ServeHTTP(httptest.NewRecorder(), req)

	if got != "req-123" {
		t.Fatalf("request id = %q", got)
	}
}

func TestHandlersTagCorrectionID(t *testing.T) {
	svc := newTestService(t, scriptedLLM{})
	gin.SetMode(gin.TestMode)
	r := gin.New()

	var tagged []string
	r.Use(func(c *gin.Context) {
		c.Next()
		tagged = append(tagged, c.GetString("correctionId"))
	})
	NewHandler(svc).RegisterRoutes(r.Group("/api/v1"))

	paths := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/v1/corrections/corr-1"},
		{http.MethodGet, "/api/v1/corrections/corr-1/history"},
		{http.MethodPost, "/api/v1/corrections/corr-1/steps/grammar/reset"},
	}
	for _, p := range paths {
		req := httptest.NewRequest(p.method, p.path, nil)
		r.ServeHTTP(httptest.NewRecorder(), req)
	}

	if len(tagged) != len(paths) {
		t.Fatalf("tagged = %v", tagged)
	}
	for i, id := range tagged {
		if id != "corr-1" {
			t.Fatalf("route %s missing correction tag, got %q", paths[i].path, id)
		}
	}
}
