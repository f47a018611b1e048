package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"cloudesk/internal/cache"
	"cloudesk/internal/knowledge"
	"cloudesk/internal/llm"
	"cloudesk/internal/models"
	"cloudesk/internal/monitor"
	"cloudesk/internal/pipeline"
	"cloudesk/internal/retrieval"
)

func testApp(t *testing.T) *fiber.App {
	t.Helper()

	entries := []*models.KnowledgeEntry{
		{
			ID:       "billing-001",
			Category: "计费",
			Keywords: []string{"计费模式", "收费"},
			Answer:   "平台按调用量阶梯计费。",
		},
	}
	store := knowledge.NewStore(knowledge.NewIndex(entries))
	engine := retrieval.NewEngine(store, nil, retrieval.DefaultOptions())
	tc := cache.NewTiered(cache.NewMemoryTier(time.Minute, 0))
	classifier := pipeline.NewClassifier(pipeline.KnowledgeProbe(store, 0.3))
	p := pipeline.New(engine, nil, tc, nil, classifier, pipeline.Options{
		RequestTimeout: 5 * time.Second,
		Monitor:        monitor.DefaultOptions(),
	})

	app := fiber.New()
	app.Post("/api/cases", NewCaseHandler(p).Handle)
	app.Get("/health", NewHealthHandler(store, llm.NewUsageCounter()).Handle)
	return app
}

func postCase(t *testing.T, app *fiber.App, body string) (int, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest("POST", "/api/cases", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req, 10000)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	var parsed map[string]interface{}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		t.Fatalf("invalid JSON response %q: %v", raw, err)
	}
	return resp.StatusCode, parsed
}

func TestCaseEndpoint(t *testing.T) {
	app := testApp(t)

	status, body := postCase(t, app, `{"case_id":"C001","user_query":"你们平台的计费模式是怎样的？","api_status":"200 OK","monitor_log":[]}`)
	if status != fiber.StatusOK {
		t.Fatalf("expected 200, got %d: %v", status, body)
	}
	if body["case_id"] != "C001" {
		t.Errorf("unexpected case_id %v", body["case_id"])
	}
	reply, _ := body["reply"].(string)
	if !strings.Contains(reply, "阶梯计费") {
		t.Errorf("unexpected reply %q", reply)
	}
}

func TestCaseEndpointGeneratesCaseID(t *testing.T) {
	app := testApp(t)

	status, body := postCase(t, app, `{"user_query":"收费","api_status":"200 OK"}`)
	if status != fiber.StatusOK {
		t.Fatalf("expected 200, got %d: %v", status, body)
	}
	id, _ := body["case_id"].(string)
	if !strings.HasPrefix(id, "case-") {
		t.Errorf("expected autogenerated case id, got %q", id)
	}
}

func TestCaseEndpointValidation(t *testing.T) {
	app := testApp(t)

	status, body := postCase(t, app, `{"case_id":"C001","api_status":"200 OK"}`)
	if status != fiber.StatusBadRequest {
		t.Fatalf("expected 400 for missing user_query, got %d: %v", status, body)
	}
	if body["field"] != "user_query" {
		t.Errorf("unexpected field %v", body["field"])
	}
}

func TestCaseEndpointBadJSON(t *testing.T) {
	app := testApp(t)

	status, _ := postCase(t, app, `{not json`)
	if status != fiber.StatusBadRequest {
		t.Fatalf("expected 400 for malformed body, got %d", status)
	}
}

func TestHealthEndpoint(t *testing.T) {
	app := testApp(t)

	resp, err := app.Test(httptest.NewRequest("GET", "/health", nil))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var body map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "healthy" {
		t.Errorf("unexpected status %v", body["status"])
	}
	if body["knowledge_entries"] != float64(1) {
		t.Errorf("unexpected knowledge_entries %v", body["knowledge_entries"])
	}
}
