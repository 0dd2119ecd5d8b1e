package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// apiClient is a thin wrapper over the clawguard HTTP API.
type apiClient struct {
	baseURL string
	token   string
	http    *http.Client
}

func newAPIClient(baseURL, token string) *apiClient {
	return &apiClient{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

// pendingAction mirrors the approval queue's wire shape.
type pendingAction struct {
	ID         string         `json:"id"`
	Tool       string         `json:"tool"`
	Params     map[string]any `json:"params"`
	Reasoning  string         `json:"reasoning"`
	Actor      string         `json:"actor"`
	Status     string         `json:"status"`
	ProposedAt time.Time      `json:"proposed_at"`
}

// challenge mirrors a confirmation challenge.
type challenge struct {
	ID        string    `json:"id"`
	Tool      string    `json:"tool"`
	Summary   string    `json:"summary"`
	ExpiresAt time.Time `json:"expires_at"`
}

// skillState mirrors the supervisor's skill snapshot.
type skillState struct {
	Name    string `json:"name"`
	Type    string `json:"type"`
	Status  string `json:"status"`
	PID     int    `json:"pid"`
	Crashes int    `json:"crashes"`
}

// daemonStatus mirrors /api/status.
type daemonStatus struct {
	UptimeSecs       int64 `json:"uptime_secs"`
	PendingApprovals int   `json:"pending_approvals"`
	Confirmations    int   `json:"confirmations"`
	Skills           int   `json:"skills"`
	SkillsRunning    int   `json:"skills_running"`
}

func (c *apiClient) do(method, path string, out any) error {
	req, err := http.NewRequest(method, c.baseURL+path, bytes.NewReader(nil))
	if err != nil {
		return err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(body))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *apiClient) status() (daemonStatus, error) {
	var st daemonStatus
	err := c.do(http.MethodGet, "/api/status", &st)
	return st, err
}

func (c *apiClient) approvals() ([]pendingAction, error) {
	var actions []pendingAction
	err := c.do(http.MethodGet, "/api/approvals", &actions)
	return actions, err
}

func (c *apiClient) approve(id string) error {
	return c.do(http.MethodPost, "/api/approvals/"+id+"/approve", nil)
}

func (c *apiClient) reject(id string) error {
	return c.do(http.MethodPost, "/api/approvals/"+id+"/reject", nil)
}

func (c *apiClient) confirmations() ([]challenge, error) {
	var challenges []challenge
	err := c.do(http.MethodGet, "/api/confirmations", &challenges)
	return challenges, err
}

func (c *apiClient) confirm(id string) error {
	return c.do(http.MethodPost, "/api/confirmations/"+id+"/confirm", nil)
}

func (c *apiClient) skills() ([]skillState, error) {
	var states []skillState
	err := c.do(http.MethodGet, "/api/skills", &states)
	return states, err
}
