package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"liability-proof-service/service"

	"github.com/gin-gonic/gin"
)

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	storage, err := service.NewStorage(filepath.Join(t.TempDir(), "trees.db"))
	if err != nil {
		t.Fatalf("NewStorage: %v", err)
	}
	t.Cleanup(func() { storage.Close() })

	h := NewHandler(service.NewLiabilityService(storage))

	router := gin.New()
	router.GET("/health", h.Health)
	router.GET("/tree/:finalRoot", h.GetTree)
	router.POST("/build", h.Build)
	router.POST("/prove", h.Prove)
	router.POST("/verify", h.Verify)
	return router
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func buildSampleTree(t *testing.T, router *gin.Engine) BuildResponse {
	t.Helper()
	w := doJSON(t, router, http.MethodPost, "/build", BuildRequest{
		Entries: []EntryInput{
			{Identifier: "1", Balance: "5000"},
			{Identifier: "2", Balance: "3000"},
			{Identifier: "3", Balance: "4000"},
			{Identifier: "4", Balance: "6000"},
		},
		Timestamp: 1724716800000,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("build: status %d, body %s", w.Code, w.Body.String())
	}
	var resp BuildResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("build response: %v", err)
	}
	return resp
}

func TestHealth(t *testing.T) {
	router := newTestRouter(t)
	w := doJSON(t, router, http.MethodGet, "/health", nil)
	if w.Code != http.StatusOK {
		t.Errorf("health: status %d", w.Code)
	}
}

func TestBuildAndFetchTree(t *testing.T) {
	router := newTestRouter(t)
	built := buildSampleTree(t, router)

	if built.LeafCount != 4 || built.LayerCount != 3 {
		t.Errorf("build response: got %d leaves in %d layers, want 4 in 3", built.LeafCount, built.LayerCount)
	}
	if built.Timestamp != 1724716800000 {
		t.Errorf("build response timestamp: got %d", built.Timestamp)
	}

	w := doJSON(t, router, http.MethodGet, "/tree/"+built.FinalRoot, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get tree: status %d, body %s", w.Code, w.Body.String())
	}
	var snapshot struct {
		Root      string `json:"root"`
		FinalRoot string `json:"finalRoot"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &snapshot); err != nil {
		t.Fatalf("snapshot decode: %v", err)
	}
	if snapshot.Root != built.Root || snapshot.FinalRoot != built.FinalRoot {
		t.Errorf("snapshot roots do not match build response")
	}

	w = doJSON(t, router, http.MethodGet, "/tree/0", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown tree: status %d, want 404", w.Code)
	}
}

func TestBuildRejectsBadInput(t *testing.T) {
	router := newTestRouter(t)

	w := doJSON(t, router, http.MethodPost, "/build", BuildRequest{Entries: []EntryInput{}})
	if w.Code != http.StatusBadRequest {
		t.Errorf("empty entries: status %d, want 400", w.Code)
	}

	w = doJSON(t, router, http.MethodPost, "/build", BuildRequest{
		Entries: []EntryInput{{Identifier: "1", Balance: "not-a-number"}},
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad balance: status %d, want 400", w.Code)
	}
}

func TestProveAndVerify(t *testing.T) {
	router := newTestRouter(t)
	built := buildSampleTree(t, router)

	w := doJSON(t, router, http.MethodPost, "/prove", ProveRequest{
		FinalRoot:   built.FinalRoot,
		Identifiers: []string{"3", "ghost"},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("prove: status %d, body %s", w.Code, w.Body.String())
	}
	var proved ProveResponse
	if err := json.Unmarshal(w.Body.Bytes(), &proved); err != nil {
		t.Fatalf("prove response: %v", err)
	}
	if len(proved.Proofs) != 1 {
		t.Fatalf("prove: got %d proofs, want 1 (unknown identifiers are skipped)", len(proved.Proofs))
	}
	if proved.FinalRoot != built.FinalRoot {
		t.Errorf("prove final root does not match build")
	}

	w = doJSON(t, router, http.MethodPost, "/verify", VerifyRequest{
		Identifier: "3",
		Balance:    "4000",
		Proof:      proved.Proofs[0],
	})
	if w.Code != http.StatusOK {
		t.Fatalf("verify: status %d, body %s", w.Code, w.Body.String())
	}
	var verdict service.Verdict
	if err := json.Unmarshal(w.Body.Bytes(), &verdict); err != nil {
		t.Fatalf("verdict decode: %v", err)
	}
	if !verdict.OverallValid {
		t.Errorf("extracted proof should verify: %+v", verdict)
	}

	w = doJSON(t, router, http.MethodPost, "/verify", VerifyRequest{
		Identifier: "3",
		Balance:    "4001",
		Proof:      proved.Proofs[0],
	})
	if w.Code != http.StatusOK {
		t.Fatalf("verify wrong balance: status %d", w.Code)
	}
	if err := json.Unmarshal(w.Body.Bytes(), &verdict); err != nil {
		t.Fatalf("verdict decode: %v", err)
	}
	if verdict.MerklePathValid || verdict.OverallValid {
		t.Errorf("wrong balance should fail the path check: %+v", verdict)
	}
}

func TestProveUnknownRoot(t *testing.T) {
	router := newTestRouter(t)
	w := doJSON(t, router, http.MethodPost, "/prove", ProveRequest{
		FinalRoot:   "99999",
		Identifiers: []string{"1"},
	})
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown root: status %d, want 404", w.Code)
	}
}

func TestVerifyRejectsMalformedProof(t *testing.T) {
	router := newTestRouter(t)
	w := doJSON(t, router, http.MethodPost, "/verify", VerifyRequest{
		Identifier: "3",
		Balance:    "4000",
		Proof:      json.RawMessage(`{"proof":[{"hash":"1","position":"up"}],"balance":"1","leafHash":"1","root":"1","finalRoot":"1"}`),
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("malformed proof: status %d, want 400", w.Code)
	}
}
