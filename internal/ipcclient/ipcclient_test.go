package ipcclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestListComponents_RoundTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/edgecored/api/v1/components" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode([]ComponentSummary{{Name: "RedSignal", Version: "1.0.0", State: "RUNNING"}})
	}))
	defer srv.Close()

	c := New(Config{Network: "tcp", BaseURL: srv.URL + "/edgecored/api/v1", Timeout: time.Second})
	got, err := c.ListComponents(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 1 || got[0].Name != "RedSignal" {
		t.Fatalf("unexpected result: %+v", got)
	}
}

func TestGetComponentDetails_ErrorResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"code": "component.not_found", "message": "component not found"})
	}))
	defer srv.Close()

	c := New(Config{Network: "tcp", BaseURL: srv.URL + "/edgecored/api/v1", Timeout: time.Second})
	_, err := c.GetComponentDetails(context.Background(), "Missing")
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestCreateLocalDeployment_SendsBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body CreateLocalDeploymentRequest
		json.NewDecoder(r.Body).Decode(&body)
		if body.GroupName != "fleet-a" {
			t.Errorf("expected groupName fleet-a, got %q", body.GroupName)
		}
		json.NewEncoder(w).Encode(map[string]string{"deploymentId": "dep-1"})
	}))
	defer srv.Close()

	c := New(Config{Network: "tcp", BaseURL: srv.URL + "/edgecored/api/v1", Timeout: time.Second})
	id, err := c.CreateLocalDeployment(context.Background(), CreateLocalDeploymentRequest{GroupName: "fleet-a"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if id != "dep-1" {
		t.Fatalf("expected dep-1, got %q", id)
	}
}
