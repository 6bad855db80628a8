package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prettyclosedev-dev/pretty-smart-editor-api/internal/merge"
)

type fakeCache struct {
	pingFn func(context.Context) error
}

func (f *fakeCache) Ping(ctx context.Context) error {
	return f.pingFn(ctx)
}

func serve(t *testing.T, svc *Service, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	server := NewHTTPServer(svc, "*")
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)

	var response map[string]any
	if rr.Code != http.StatusNoContent {
		if err := json.Unmarshal(rr.Body.Bytes(), &response); err != nil {
			t.Fatalf("failed to parse response %q: %v", rr.Body.String(), err)
		}
	}
	return rr, response
}

func TestHealthEndpoint(t *testing.T) {
	svc := newTestService(t, newFakeStore())
	rr, response := serve(t, svc, http.MethodGet, "/api/health", "")
	if rr.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rr.Code)
	}
	if ok, exists := response["ok"]; !exists || ok != true {
		t.Errorf("expected ok=true, got %v", ok)
	}
	if origin := rr.Header().Get("Access-Control-Allow-Origin"); origin != "*" {
		t.Errorf("expected CORS origin=*, got %v", origin)
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Error("expected a generated request id")
	}
}

func TestHealthEndpoint_OptionsRequest(t *testing.T) {
	svc := newTestService(t, newFakeStore())
	rr, _ := serve(t, svc, http.MethodOptions, "/api/merge", "")
	if rr.Code != http.StatusNoContent {
		t.Errorf("expected status 204 for OPTIONS, got %d", rr.Code)
	}
}

func TestReadyEndpoint(t *testing.T) {
	tests := []struct {
		name       string
		dbErr      error
		cacheErr   error
		withCache  bool
		wantStatus int
		wantState  string
		wantCache  string
	}{
		{name: "ready", wantStatus: http.StatusOK, wantState: "ready"},
		{name: "database down", dbErr: errors.New("connection refused"), wantStatus: http.StatusServiceUnavailable, wantState: "not_ready"},
		{name: "cache degraded", withCache: true, cacheErr: errors.New("redis gone"), wantStatus: http.StatusOK, wantState: "ready", wantCache: "degraded"},
		{name: "cache ok", withCache: true, wantStatus: http.StatusOK, wantState: "ready", wantCache: "ok"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := newFakeStore()
			fs.pingFn = func(context.Context) error { return tt.dbErr }
			svc := newTestService(t, fs)
			if tt.withCache {
				svc.WithCache(&fakeCache{pingFn: func(context.Context) error { return tt.cacheErr }})
			}

			rr, response := serve(t, svc, http.MethodGet, "/api/ready", "")
			if rr.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, rr.Code)
			}
			if response["status"] != tt.wantState {
				t.Errorf("expected status=%s, got %v", tt.wantState, response["status"])
			}
			checks := response["checks"].(map[string]any)
			db := checks["database"].(map[string]any)
			if tt.dbErr != nil && db["error"] != tt.dbErr.Error() {
				t.Errorf("expected database error, got %v", db)
			}
			cache, hasCache := checks["cache"].(map[string]any)
			if hasCache != tt.withCache {
				t.Fatalf("cache check presence = %v, want %v", hasCache, tt.withCache)
			}
			if hasCache && cache["status"] != tt.wantCache {
				t.Errorf("expected cache status %s, got %v", tt.wantCache, cache["status"])
			}
		})
	}
}

func TestMergeDesignEndpoint(t *testing.T) {
	fs := seededStore()
	svc := newTestService(t, fs)

	rr, response := serve(t, svc, http.MethodPost, "/api/designs/d1/merge", `{"brandId":"b1","save":true}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %v", rr.Code, response)
	}
	d := response["design"].(map[string]any)
	pages := d["pages"].([]any)
	first := pages[0].(map[string]any)["children"].([]any)[0].(map[string]any)
	if first["text"] != "Built to last" {
		t.Errorf("unexpected text %v", first["text"])
	}
	if _, ok := response["warnings"]; !ok {
		t.Error("expected warnings key")
	}
	if len(fs.saved) != 1 {
		t.Errorf("expected save, got %v", fs.saved)
	}
}

func TestMergeDesignEndpointErrors(t *testing.T) {
	svc := newTestService(t, seededStore())
	tests := []struct {
		name       string
		path       string
		body       string
		wantStatus int
		wantCode   string
	}{
		{"bad json", "/api/designs/d1/merge", `{`, http.StatusBadRequest, "INVALID_BODY"},
		{"missing design", "/api/designs/zzz/merge", `{"brandId":"b1"}`, http.StatusNotFound, "DESIGN_NOT_FOUND"},
		{"missing user", "/api/designs/d1/merge", `{"userEmail":"who@example.com"}`, http.StatusNotFound, "USER_NOT_FOUND"},
		{"no brand", "/api/designs/d1/merge", `{}`, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"unknown route", "/api/designs/d1/unbrand", `{}`, http.StatusNotFound, "NOT_FOUND"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr, response := serve(t, svc, http.MethodPost, tt.path, tt.body)
			if rr.Code != tt.wantStatus {
				t.Errorf("expected %d, got %d", tt.wantStatus, rr.Code)
			}
			if response["code"] != tt.wantCode {
				t.Errorf("expected code %s, got %v", tt.wantCode, response["code"])
			}
		})
	}
}

func TestMergeInlineEndpoint(t *testing.T) {
	svc := newTestService(t, newFakeStore())
	body := `{
		"design": {"pages": [{"id": "p1", "children": [
			{"type": "text", "name": "Hello {first_name}", "text": "Hello there", "width": 500, "height": 100, "fontSize": 30, "custom": {"keep": true}}
		]}]},
		"brand": {"colors": [{"value": "#1A428A", "primary": true}]},
		"additional": {"first_name": "Avi"}
	}`
	rr, response := serve(t, svc, http.MethodPost, "/api/merge", body)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %v", rr.Code, response)
	}
	el := response["design"].(map[string]any)["pages"].([]any)[0].(map[string]any)["children"].([]any)[0].(map[string]any)
	if el["text"] != "Hello Avi" {
		t.Errorf("expected resolved text, got %v", el["text"])
	}
	if _, ok := el["custom"]; !ok {
		t.Error("unknown element properties must survive the round trip")
	}

	rr, response = serve(t, svc, http.MethodPost, "/api/merge", `{"design": {"pages": []}}`)
	if rr.Code != http.StatusBadRequest || response["code"] != "VALIDATION_ERROR" {
		t.Errorf("expected validation error, got %d %v", rr.Code, response)
	}
}

func TestMergeInlinePreviewErrors(t *testing.T) {
	svc := New(newFakeStore(), &fakeMerger{mergeFn: func(context.Context, merge.Request) (*merge.Result, error) {
		return nil, merge.ErrNoRenderer
	}})
	rr, response := serve(t, svc, http.MethodPost, "/api/merge", `{"design": {"pages": []}, "brand": {}, "withPreview": true}`)
	if rr.Code != http.StatusServiceUnavailable || response["code"] != "PREVIEW_UNAVAILABLE" {
		t.Errorf("unexpected response %d %v", rr.Code, response)
	}
}

func TestDesignsEndpoints(t *testing.T) {
	svc := newTestService(t, seededStore())

	rr, response := serve(t, svc, http.MethodGet, "/api/designs?limit=10", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if items := response["items"].([]any); len(items) != 2 {
		t.Errorf("expected 2 designs, got %d", len(items))
	}

	rr, response = serve(t, svc, http.MethodGet, "/api/designs/d2", "")
	if rr.Code != http.StatusOK || response["name"] != "Flyer d2" {
		t.Errorf("unexpected design response %d %v", rr.Code, response)
	}

	var buf bytes.Buffer
	_ = json.NewEncoder(&buf).Encode(map[string]any{"brandId": "b2", "designIds": []string{"d1", "nope"}})
	rr, response = serve(t, svc, http.MethodPost, "/api/designs/merge", buf.String())
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %v", rr.Code, response)
	}
	items := response["items"].([]any)
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	if missing := items[1].(map[string]any); missing["error"] == nil {
		t.Errorf("expected error for unknown design, got %v", missing)
	}
}
