package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"cleanline/internal/domain"
)

// Client is the only point of contact with the backend. Both the session
// store and the task lifecycle engine go through it.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	Timeout    time.Duration

	// OnAuthenticationRejected runs whenever the backend answers 401,
	// letting the session store tear itself down.
	OnAuthenticationRejected func()

	mu    sync.Mutex
	token string
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// SetToken installs (or clears, with "") the bearer token sent on every call.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// Token returns the currently installed bearer token.
func (c *Client) Token() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

// Credentials are login inputs.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterData are registration inputs.
type RegisterData struct {
	Email     string      `json:"email"`
	Password  string      `json:"password"`
	Name      string      `json:"name"`
	Role      domain.Role `json:"role"`
	CompanyID string      `json:"companyId,omitempty"`
}

// AuthResponse is the login payload.
type AuthResponse struct {
	AccessToken string      `json:"access_token"`
	User        domain.User `json:"user"`
}

// TaskFilters narrow a task listing. Zero values are omitted.
type TaskFilters struct {
	RoomID     string
	BuildingID string
	AssignedTo string
	Status     domain.TaskStatus
}

// CreateTaskInput is the creation payload. Urgent decides the initial
// status; urgency is fixed at creation time.
type CreateTaskInput struct {
	RoomID        string `json:"roomId"`
	AssignedTo    string `json:"assignedTo,omitempty"`
	ScheduledDate string `json:"scheduledDate"`
	Observations  string `json:"observations,omitempty"`
	Urgent        bool   `json:"urgent,omitempty"`
}

// UpdateTaskInput is the generic partial update payload. Nil fields are
// left untouched by the server.
type UpdateTaskInput struct {
	Status        *domain.TaskStatus `json:"status,omitempty"`
	AssignedTo    *string            `json:"assignedTo,omitempty"`
	ScheduledDate *string            `json:"scheduledDate,omitempty"`
	Observations  *string            `json:"observations,omitempty"`
	Images        *[]string          `json:"images,omitempty"`
}

// Login authenticates and returns the token plus principal.
func (c *Client) Login(ctx context.Context, creds Credentials) (AuthResponse, error) {
	var resp AuthResponse
	err := c.do(ctx, http.MethodPost, "auth/login", creds, &resp)
	return resp, err
}

// Profile re-fetches the principal for the current token.
func (c *Client) Profile(ctx context.Context) (domain.User, error) {
	var resp domain.User
	err := c.do(ctx, http.MethodGet, "auth/profile", nil, &resp)
	return resp, err
}

// Register creates a user account.
func (c *Client) Register(ctx context.Context, data RegisterData) (domain.User, error) {
	var resp domain.User
	err := c.do(ctx, http.MethodPost, "auth/register", data, &resp)
	return resp, err
}

// ListTasks returns the enriched task listing, optionally filtered.
func (c *Client) ListTasks(ctx context.Context, filters TaskFilters) ([]domain.TaskWithDetails, error) {
	q := url.Values{}
	if filters.RoomID != "" {
		q.Set("roomId", filters.RoomID)
	}
	if filters.BuildingID != "" {
		q.Set("buildingId", filters.BuildingID)
	}
	if filters.AssignedTo != "" {
		q.Set("assignedTo", filters.AssignedTo)
	}
	if filters.Status != "" {
		q.Set("status", string(filters.Status))
	}
	endpoint := "tasks"
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}
	var resp struct {
		Tasks []domain.TaskWithDetails `json:"tasks"`
	}
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp.Tasks, err
}

// GetTask fetches a single enriched task.
func (c *Client) GetTask(ctx context.Context, id string) (domain.TaskWithDetails, error) {
	var resp domain.TaskWithDetails
	err := c.do(ctx, http.MethodGet, "tasks/"+url.PathEscape(id), nil, &resp)
	return resp, err
}

// CreateTask creates a task and returns the server's representation.
func (c *Client) CreateTask(ctx context.Context, input CreateTaskInput) (domain.TaskWithDetails, error) {
	var resp domain.TaskWithDetails
	err := c.do(ctx, http.MethodPost, "tasks", input, &resp)
	return resp, err
}

// UpdateTask applies a partial update and returns the server's representation.
func (c *Client) UpdateTask(ctx context.Context, id string, input UpdateTaskInput) (domain.TaskWithDetails, error) {
	var resp domain.TaskWithDetails
	err := c.do(ctx, http.MethodPatch, "tasks/"+url.PathEscape(id), input, &resp)
	return resp, err
}

// StartTask asks the backend to move the task to in_progress.
func (c *Client) StartTask(ctx context.Context, id string) (domain.TaskWithDetails, error) {
	var resp domain.TaskWithDetails
	err := c.do(ctx, http.MethodPatch, "tasks/"+url.PathEscape(id)+"/start", nil, &resp)
	return resp, err
}

// CompleteTask asks the backend to move the task to completed, attaching
// observations and evidence images (both optional, defaulting to empty).
func (c *Client) CompleteTask(ctx context.Context, id, observations string, images []string) (domain.TaskWithDetails, error) {
	if images == nil {
		images = []string{}
	}
	body := map[string]any{
		"observations": observations,
		"images":       images,
	}
	var resp domain.TaskWithDetails
	err := c.do(ctx, http.MethodPatch, "tasks/"+url.PathEscape(id)+"/complete", body, &resp)
	return resp, err
}

// DeleteTask removes a task.
func (c *Client) DeleteTask(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "tasks/"+url.PathEscape(id), nil, nil)
}

// ListCompanies returns all companies (super-admin surface).
func (c *Client) ListCompanies(ctx context.Context) ([]domain.Company, error) {
	var resp struct {
		Companies []domain.Company `json:"companies"`
	}
	err := c.do(ctx, http.MethodGet, "companies", nil, &resp)
	return resp.Companies, err
}

// ListBuildings returns buildings, optionally scoped to a company.
func (c *Client) ListBuildings(ctx context.Context, companyID string) ([]domain.Building, error) {
	endpoint := "buildings"
	if companyID != "" {
		endpoint += "?companyId=" + url.QueryEscape(companyID)
	}
	var resp struct {
		Buildings []domain.Building `json:"buildings"`
	}
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp.Buildings, err
}

// ListRooms returns rooms, optionally scoped to a building.
func (c *Client) ListRooms(ctx context.Context, buildingID string) ([]domain.Room, error) {
	endpoint := "rooms"
	if buildingID != "" {
		endpoint += "?buildingId=" + url.QueryEscape(buildingID)
	}
	var resp struct {
		Rooms []domain.Room `json:"rooms"`
	}
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp.Rooms, err
}

// ListUsers returns users visible to the caller.
func (c *Client) ListUsers(ctx context.Context) ([]domain.User, error) {
	var resp struct {
		Users []domain.User `json:"users"`
	}
	err := c.do(ctx, http.MethodGet, "users", nil, &resp)
	return resp.Users, err
}

// errorEnvelope covers the backend error shapes: either a flat message
// (string or list of field messages) or a nested error object.
type errorEnvelope struct {
	Message json.RawMessage `json:"message"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	Detail string `json:"detail"`
}

func (c *Client) do(ctx context.Context, method, endpoint string, body, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	target := strings.TrimRight(c.BaseURL, "/") + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, target, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return classifyTransport(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		re := &RemoteError{
			Kind:       kindForStatus(resp.StatusCode),
			StatusCode: resp.StatusCode,
			Messages:   extractMessages(b),
		}
		// A rejected login is bad credentials, not a revoked session; only
		// a 401 on an authenticated call tears the session down.
		if re.Kind == KindAuthenticationRejected && endpoint != "auth/login" && c.OnAuthenticationRejected != nil {
			c.OnAuthenticationRejected()
		}
		return re
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

func classifyTransport(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &RemoteError{Kind: KindTimeout, Messages: []string{err.Error()}}
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return &RemoteError{Kind: KindTimeout, Messages: []string{err.Error()}}
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return &RemoteError{Kind: KindNetworkUnreachable, Messages: []string{err.Error()}}
}

func extractMessages(body []byte) []string {
	var env errorEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		if len(body) > 0 {
			return []string{string(body)}
		}
		return nil
	}
	if env.Error != nil && env.Error.Message != "" {
		return []string{env.Error.Message}
	}
	if len(env.Message) > 0 {
		var many []string
		if json.Unmarshal(env.Message, &many) == nil {
			return many
		}
		var one string
		if json.Unmarshal(env.Message, &one) == nil && one != "" {
			return []string{one}
		}
	}
	if env.Detail != "" {
		return []string{env.Detail}
	}
	return nil
}
