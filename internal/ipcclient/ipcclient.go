// Package ipcclient is the HTTP-over-Unix-socket client for spec.md §6's
// Local IPC surface, grounded on the teacher's internal/rpc/rpc.go and
// rpc_client.go: a Config that autodetects a Unix socket file and falls
// back to TCP, and a client wiring a custom net.Dial("unix", ...) into
// http.Transport.DialContext. Used by cmd/* to talk to a running
// supervisor without needing to know its transport.
package ipcclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"edgecored/internal/env"
)

// Config is the client's transport configuration, mirroring the teacher's
// HTTPConfig{Address, Network, Timeout, BaseURL}.
type Config struct {
	Network string // "unix" or "tcp"
	Address string // socket path, or host:port
	BaseURL string // e.g. "http://unix/edgecored/api/v1"
	Timeout time.Duration
}

// DefaultConfig autodetects a running supervisor's transport the way the
// teacher's DefaultHTTPConfig does: prefer the Unix socket under
// <costrictDir>/run/<name>.sock if present, else fall back to a fixed
// loopback TCP address.
func DefaultConfig(socketName string) Config {
	socketPath := filepath.Join(env.CostrictDir, "run", socketName+".sock")
	if _, err := os.Stat(socketPath); err == nil {
		return Config{
			Network: "unix",
			Address: socketPath,
			BaseURL: "http://unix/edgecored/api/v1",
			Timeout: 10 * time.Second,
		}
	}
	return Config{
		Network: "tcp",
		Address: "127.0.0.1:8999",
		BaseURL: "http://127.0.0.1:8999/edgecored/api/v1",
		Timeout: 10 * time.Second,
	}
}

// Client talks to a running supervisor's Local IPC surface.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

func New(cfg Config) *Client {
	httpClient := &http.Client{Timeout: cfg.Timeout}
	if cfg.Network == "unix" {
		dialer := &net.Dialer{}
		httpClient.Transport = &http.Transport{
			DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
				return dialer.DialContext(ctx, "unix", cfg.Address)
			},
		}
	}
	return &Client{cfg: cfg, httpClient: httpClient}
}

func (c *Client) url(path string) string {
	return c.cfg.BaseURL + path
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reqBody *bytes.Buffer
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewBuffer(data)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, c.url(path), reqBody)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&errResp)
		return fmt.Errorf("%s %s: %d %s: %s", method, path, resp.StatusCode, errResp.Code, errResp.Message)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// ComponentSummary mirrors internal/ipcserver.ComponentSummary's wire shape.
type ComponentSummary struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	State   string `json:"state"`
}

func (c *Client) ListComponents(ctx context.Context) ([]ComponentSummary, error) {
	var out []ComponentSummary
	err := c.do(ctx, http.MethodGet, "/components", nil, &out)
	return out, err
}

func (c *Client) GetComponentDetails(ctx context.Context, name string) (*ComponentSummary, error) {
	var out ComponentSummary
	if err := c.do(ctx, http.MethodGet, "/components/"+name, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) RestartComponent(ctx context.Context, name string) error {
	return c.do(ctx, http.MethodPost, "/components/"+name+"/restart", nil, nil)
}

func (c *Client) StopComponent(ctx context.Context, name string) error {
	return c.do(ctx, http.MethodPost, "/components/"+name+"/stop", nil, nil)
}

func (c *Client) UpdateRecipesAndArtifacts(ctx context.Context, recipeDir, artifactDir string) (int, error) {
	var out struct {
		Loaded int `json:"loaded"`
	}
	err := c.do(ctx, http.MethodPost, "/store/refresh", map[string]string{
		"recipeDir":   recipeDir,
		"artifactDir": artifactDir,
	}, &out)
	return out.Loaded, err
}

// CreateLocalDeploymentRequest mirrors ipcserver.CreateLocalDeploymentRequest.
type CreateLocalDeploymentRequest struct {
	RootComponentVersionsToAdd map[string]string          `json:"rootComponentVersionsToAdd,omitempty"`
	RootComponentsToRemove     []string                    `json:"rootComponentsToRemove,omitempty"`
	GroupName                  string                      `json:"groupName"`
	ComponentToConfiguration   map[string]json.RawMessage `json:"componentToConfiguration,omitempty"`
}

func (c *Client) CreateLocalDeployment(ctx context.Context, req CreateLocalDeploymentRequest) (string, error) {
	var out struct {
		DeploymentID string `json:"deploymentId"`
	}
	err := c.do(ctx, http.MethodPost, "/deployments", req, &out)
	return out.DeploymentID, err
}

// DeploymentStatus mirrors one GetLocalDeploymentStatus response.
type DeploymentStatus struct {
	DeploymentID string `json:"deploymentId"`
	Status       string `json:"status"`
	Error        string `json:"error,omitempty"`
}

func (c *Client) GetLocalDeploymentStatus(ctx context.Context, deploymentID string) (*DeploymentStatus, error) {
	var out DeploymentStatus
	if err := c.do(ctx, http.MethodGet, "/deployments/"+deploymentID, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListLocalDeployments(ctx context.Context) ([]DeploymentStatus, error) {
	var out []DeploymentStatus
	err := c.do(ctx, http.MethodGet, "/deployments", nil, &out)
	return out, err
}

// DeferComponentUpdate votes to defer a pending PreComponentUpdate.
func (c *Client) DeferComponentUpdate(ctx context.Context, requestID, componentName string, deferMillis int64) error {
	return c.do(ctx, http.MethodPost, "/lifecycle/defer", map[string]interface{}{
		"requestId":     requestID,
		"componentName": componentName,
		"deferMillis":   deferMillis,
	}, nil)
}

// IsRunning reports whether a supervisor appears reachable at cfg's
// transport: for a Unix socket, whether the socket file exists; otherwise,
// whether a connection to cfg.Address succeeds within one second. Used by
// CLI subcommands to fail early with a specific message when no
// supervisor answers.
func IsRunning(cfg Config) bool {
	if cfg.Network != "unix" {
		conn, err := net.DialTimeout(cfg.Network, cfg.Address, time.Second)
		if err != nil {
			return false
		}
		conn.Close()
		return true
	}
	_, err := os.Stat(cfg.Address)
	return err == nil
}
