package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// --- Response types (дублируются из api/dto.go, CLI не импортирует internal/api) ---

// RunResponse — run из API.
type RunResponse struct {
	ID             string            `json:"id"`
	BuildNumber    int64             `json:"build_number"`
	Pipeline       string            `json:"pipeline"`
	Revision       string            `json:"revision,omitempty"`
	Trigger        string            `json:"trigger,omitempty"`
	Status         string            `json:"status"`
	Outcome        string            `json:"outcome,omitempty"`
	Environment    map[string]string `json:"environment,omitempty"`
	Error          string            `json:"error,omitempty"`
	IdempotencyKey string            `json:"idempotency_key,omitempty"`
	StartedAt      string            `json:"started_at,omitempty"`
	FinishedAt     string            `json:"finished_at,omitempty"`
	DurationMS     int64             `json:"duration_ms,omitempty"`
	CreatedAt      string            `json:"created_at"`
}

// StageResponse — результат стадии из API.
type StageResponse struct {
	Stage        string `json:"stage"`
	Status       string `json:"status"`
	Reason       string `json:"reason,omitempty"`
	Output       string `json:"output,omitempty"`
	Error        string `json:"error,omitempty"`
	AllowFailure bool   `json:"allow_failure,omitempty"`
	DurationMS   int64  `json:"duration_ms"`
}

// StagesResponse — стадии run из API.
type StagesResponse struct {
	RunID  string          `json:"run_id"`
	Stages []StageResponse `json:"stages"`
	Post   []StageResponse `json:"post"`
}

// RouteResponse — результат сопоставления с таблицей маршрутизации.
type RouteResponse struct {
	Host    string `json:"host"`
	Path    string `json:"path"`
	Backend struct {
		Service string `json:"service"`
		Port    int32  `json:"port"`
	} `json:"backend"`
	Target string `json:"target"`
}

// --- Request types ---

// CreateRunRequest — создание run.
type CreateRunRequest struct {
	Pipeline       string `json:"pipeline"`
	Revision       string `json:"revision,omitempty"`
	IdempotencyKey string `json:"idempotency_key,omitempty"`
}

// ListRunsOpts — параметры фильтрации runs.
type ListRunsOpts struct {
	Pipeline string
	Status   string
	Limit    int
}

// --- API response wrappers ---

type dataResponse struct {
	Data json.RawMessage `json:"data"`
}

type listResponse struct {
	Data  json.RawMessage `json:"data"`
	Total int             `json:"total"`
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// --- Client ---

// Client — HTTP-клиент для Shipyard API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient создаёт клиент для API.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// --- Runs ---

// ListRuns возвращает список runs с фильтрацией.
func (c *Client) ListRuns(opts ListRunsOpts) ([]RunResponse, error) {
	params := url.Values{}
	if opts.Pipeline != "" {
		params.Set("pipeline", opts.Pipeline)
	}
	if opts.Status != "" {
		params.Set("status", opts.Status)
	}
	if opts.Limit > 0 {
		params.Set("limit", strconv.Itoa(opts.Limit))
	}

	var runs []RunResponse
	err := c.list("/api/v1/runs", params, &runs)
	return runs, err
}

// StartRun создаёт run для pipeline.
func (c *Client) StartRun(req CreateRunRequest) (*RunResponse, error) {
	var run RunResponse
	err := c.post("/api/v1/runs", req, &run)
	return &run, err
}

// GetRun возвращает run по ID.
func (c *Client) GetRun(id string) (*RunResponse, error) {
	var run RunResponse
	err := c.get("/api/v1/runs/"+url.PathEscape(id), &run)
	return &run, err
}

// ListStages возвращает результаты стадий run.
func (c *Client) ListStages(runID string) (*StagesResponse, error) {
	var stages StagesResponse
	err := c.get("/api/v1/runs/"+url.PathEscape(runID)+"/stages", &stages)
	return &stages, err
}

// --- Ingress ---

// Route спрашивает у API, какой сервис получит запрос.
func (c *Client) Route(host, path string) (*RouteResponse, error) {
	params := url.Values{}
	params.Set("host", host)
	params.Set("path", path)

	var route RouteResponse
	err := c.get("/api/v1/ingress/route?"+params.Encode(), &route)
	return &route, err
}

// --- HTTP helpers ---

func (c *Client) get(path string, result any) error {
	return c.doData(http.MethodGet, path, nil, result)
}

func (c *Client) post(path string, body any, result any) error {
	return c.doData(http.MethodPost, path, body, result)
}

func (c *Client) list(path string, params url.Values, result any) error {
	if len(params) > 0 {
		path = path + "?" + params.Encode()
	}

	resp, err := c.do(http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	var lr listResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return json.Unmarshal(lr.Data, result)
}

func (c *Client) doData(method, path string, body any, result any) error {
	resp, err := c.do(method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	// 204 No Content
	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	var dr dataResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if result != nil {
		return json.Unmarshal(dr.Data, result)
	}
	return nil
}

func (c *Client) do(method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.httpClient.Do(req)
}

func (c *Client) checkError(resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}

	var er errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
		return fmt.Errorf("API error: HTTP %d", resp.StatusCode)
	}

	return fmt.Errorf("%s: %s", er.Error.Code, er.Error.Message)
}
