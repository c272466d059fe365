package ipcserver

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"edgecored/internal/merger"
	"edgecored/internal/model"
)

type stubStore struct {
	loaded int
	err    error
}

func (s *stubStore) PreloadDir(recipeDir, artifactDir string) (int, error) {
	return s.loaded, s.err
}

func newTestServer() (*Server, *gin.Engine) {
	gin.SetMode(gin.TestMode)
	s := &Server{
		Store:  &stubStore{loaded: 2},
		Broker: merger.NewBroker(),
		Components: func() []ComponentSummary {
			return []ComponentSummary{
				{Name: "RedSignal", Version: "1.0.0", State: model.StateRunning},
			}
		},
	}
	r := gin.New()
	s.RegisterRoutes(r)
	return s, r
}

func TestListComponents(t *testing.T) {
	_, r := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/edgecored/api/v1/components", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestGetComponentDetails_NotFound(t *testing.T) {
	_, r := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/edgecored/api/v1/components/Unknown", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestUpdateRecipesAndArtifacts(t *testing.T) {
	_, r := newTestServer()
	body := `{"recipeDir":"/tmp/recipes","artifactDir":"/tmp/artifacts"}`
	req := httptest.NewRequest(http.MethodPost, "/edgecored/api/v1/store/refresh", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestCreateLocalDeployment_MissingGroupName(t *testing.T) {
	_, r := newTestServer()
	req := httptest.NewRequest(http.MethodPost, "/edgecored/api/v1/deployments", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}
