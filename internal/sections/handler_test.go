package sections

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func newTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := NewHandler(NewService(NewMemoryRepo()))
	h.RegisterRoutes(r.Group("/api/v1"))
	return r
}

func doJSON(t *testing.T, r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func decodeID(t *testing.T, resp *httptest.ResponseRecorder) int64 {
	t.Helper()
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", resp.Code, resp.Body.String())
	}
	if got := resp.Header().Get("Cache-Control"); got != "no-store" {
		t.Fatalf("expected no-store, got %q", got)
	}
	var out struct {
		ID int64 `json:"id"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode id: %v", err)
	}
	return out.ID
}

func TestCreateAndFetchChain(t *testing.T) {
	r := newTestRouter()

	s1 := decodeID(t, doJSON(t, r, http.MethodPost, "/api/v1/section1", map[string]any{
		"dataset_name":       "Rainfall grid",
		"dataset_provider":   "Met office",
		"evaluator_name":     "Reviewer",
		"evaluation_type":    "use-case-adequacy",
		"source_credibility": 4,
	}))
	s2 := decodeID(t, doJSON(t, r, http.MethodPost, "/api/v1/section2", map[string]any{
		"section1_id":      s1,
		"data_type":        "gis",
		"processing_level": "primary",
		"grid_resolution":  0.25,
	}))

	resp := doJSON(t, r, http.MethodGet, fmt.Sprintf("/api/v1/section2/%d/%d", s1, s2), nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	var rec map[string]any
	if err := json.Unmarshal(resp.Body.Bytes(), &rec); err != nil {
		t.Fatalf("decode record: %v", err)
	}
	if rec["grid_resolution"] != 0.25 || rec["processing_level"] != "primary" {
		t.Fatalf("unexpected record: %v", rec)
	}
	if rec["pixel_resolution"] != nil {
		t.Fatalf("expected null pixel_resolution, got %v", rec["pixel_resolution"])
	}
}

func TestCreateValidationReturns400WithMessage(t *testing.T) {
	r := newTestRouter()
	resp := doJSON(t, r, http.MethodPost, "/api/v1/section1", map[string]any{
		"dataset_name": "x",
	})
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["code"] != ErrorCodeValidation {
		t.Fatalf("unexpected code: %v", body["code"])
	}
	if msg, _ := body["message"].(string); msg == "" {
		t.Fatalf("expected message, got %v", body)
	}
}

func TestCreateRejectsUnknownKeys(t *testing.T) {
	r := newTestRouter()
	resp := doJSON(t, r, http.MethodPost, "/api/v1/section1", map[string]any{
		"datasetName": "camel case leaked",
	})
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestCreateBrokenChainReturns422(t *testing.T) {
	r := newTestRouter()
	resp := doJSON(t, r, http.MethodPost, "/api/v1/section2", map[string]any{
		"section1_id":      12,
		"data_type":        "survey",
		"processing_level": "derived",
	})
	if resp.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestGetNotFoundAndBadChain(t *testing.T) {
	r := newTestRouter()
	if resp := doJSON(t, r, http.MethodGet, "/api/v1/section1/7", nil); resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
	if resp := doJSON(t, r, http.MethodGet, "/api/v1/section1/abc", nil); resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
	if resp := doJSON(t, r, http.MethodGet, "/api/v1/section3/1", nil); resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for short chain, got %d", resp.Code)
	}
}

func TestParseChain(t *testing.T) {
	got, err := parseChain("/4/5/6/0/9")
	if err != nil {
		t.Fatalf("parseChain: %v", err)
	}
	want := []int64{4, 5, 6, 0, 9}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	if _, err := parseChain("/"); err == nil {
		t.Fatalf("expected error for empty chain")
	}
	if _, err := parseChain("/1/-2"); err == nil {
		t.Fatalf("expected error for negative id")
	}
}
