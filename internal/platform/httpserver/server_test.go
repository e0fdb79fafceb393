package httpserver

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	distributionservice "quill/contexts/content-delivery/distribution-service"
	"quill/contexts/content-delivery/distribution-service/adapters/memory"
	distributionhttp "quill/contexts/content-delivery/distribution-service/transport/http"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	module := distributionservice.NewInMemoryModule(memory.Seed{}, nil)
	return New(module, nil, "")
}

func doRequest(s *Server, method string, path string, body string) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	request := httptest.NewRequest(method, path, reader)
	recorder := httptest.NewRecorder()
	s.Mux().ServeHTTP(recorder, request)
	return recorder
}

func TestCreateAndFetchRule(t *testing.T) {
	server := newTestServer(t)

	created := doRequest(server, http.MethodPost, "/content-distributions", `{
		"name": "tech-sync",
		"source_categories": ["Tech"],
		"target_sites": ["a.example.com"],
		"sync_interval": 3600
	}`)
	if created.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", created.Code, created.Body.String())
	}

	var rule distributionhttp.DistributionRuleDTO
	if err := json.Unmarshal(created.Body.Bytes(), &rule); err != nil {
		t.Fatalf("decode created rule: %v", err)
	}
	if rule.ID == "" || rule.Name != "tech-sync" {
		t.Fatalf("unexpected created rule: %+v", rule)
	}

	fetched := doRequest(server, http.MethodGet, "/content-distributions/"+rule.ID, "")
	if fetched.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", fetched.Code, fetched.Body.String())
	}
}

func TestCreateRuleRejectsInvalidJSON(t *testing.T) {
	server := newTestServer(t)

	resp := doRequest(server, http.MethodPost, "/content-distributions", `{not json`)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
	var errResp distributionhttp.ErrorResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &errResp); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	if errResp.Code != "invalid_json" {
		t.Fatalf("unexpected error code: %q", errResp.Code)
	}
}

func TestCreateRuleValidationAndConflictStatuses(t *testing.T) {
	server := newTestServer(t)

	missing := doRequest(server, http.MethodPost, "/content-distributions", `{"name": "incomplete"}`)
	if missing.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid input, got %d", missing.Code)
	}

	valid := `{
		"name": "tech-sync",
		"source_categories": ["Tech"],
		"target_sites": ["a.example.com"]
	}`
	if resp := doRequest(server, http.MethodPost, "/content-distributions", valid); resp.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", resp.Code, resp.Body.String())
	}
	duplicate := doRequest(server, http.MethodPost, "/content-distributions", valid)
	if duplicate.Code != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate name, got %d", duplicate.Code)
	}
}

func TestUnknownRuleReturnsNotFound(t *testing.T) {
	server := newTestServer(t)

	if resp := doRequest(server, http.MethodGet, "/content-distributions/missing", ""); resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
	if resp := doRequest(server, http.MethodDelete, "/content-distributions/missing", ""); resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
}

func TestStatsEndpoint(t *testing.T) {
	server := newTestServer(t)

	resp := doRequest(server, http.MethodGet, "/distribution-records/stats", "")
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	var stats distributionhttp.StatsResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if stats.Total != 0 {
		t.Fatalf("expected empty stats, got %+v", stats)
	}
}

func TestRecordsBySiteRejectsBadLimit(t *testing.T) {
	server := newTestServer(t)

	resp := doRequest(server, http.MethodGet, "/distribution-records/by-site/a.example.com?limit=abc", "")
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad limit, got %d", resp.Code)
	}
}
