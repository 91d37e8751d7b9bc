package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// --- Response types (дублируются из api/dto.go, CLI не импортирует internal/api) ---

// ArtifactResponse — артефакт из API.
type ArtifactResponse struct {
	ID             string `json:"id"`
	ObjectKey      string `json:"object_key"`
	ContentType    string `json:"content_type"`
	SizeBytes      int64  `json:"size_bytes"`
	Checksum       string `json:"checksum"`
	PipelineStatus string `json:"pipeline_status"`
	CreatedAt      string `json:"created_at"`
	UpdatedAt      string `json:"updated_at"`
}

// ExecutionResponse — execution из API.
type ExecutionResponse struct {
	ID          string         `json:"id"`
	ArtifactID  string         `json:"artifact_id"`
	Status      string         `json:"status"`
	Error       string         `json:"error,omitempty"`
	StartedAt   string         `json:"started_at,omitempty"`
	CompletedAt string         `json:"completed_at,omitempty"`
	CreatedAt   string         `json:"created_at"`
	DurationMs  int64          `json:"duration_ms"`
	Steps       []StepResponse `json:"steps,omitempty"`
}

// StepResponse — запись шага из API.
type StepResponse struct {
	Name       string         `json:"name"`
	Ord        int            `json:"ord"`
	Status     string         `json:"status"`
	Output     map[string]any `json:"output,omitempty"`
	Error      string         `json:"error,omitempty"`
	DurationMs int64          `json:"duration_ms"`
}

// ProcessResponse — подтверждение постановки в очередь.
type ProcessResponse struct {
	ArtifactID string `json:"artifact_id"`
	StatusURL  string `json:"status_url"`
}

// WorkflowResult — результат ручного workflow.
type WorkflowResult struct {
	Workflow   string         `json:"workflow"`
	ArtifactID string         `json:"artifact_id"`
	Outputs    map[string]any `json:"outputs,omitempty"`
	Accepted   bool           `json:"accepted,omitempty"`
	StatusURL  string         `json:"status_url,omitempty"`
}

// StatsResponse — агрегаты из API.
type StatsResponse struct {
	Total         int     `json:"total"`
	Pending       int     `json:"pending"`
	Running       int     `json:"running"`
	Completed     int     `json:"completed"`
	Failed        int     `json:"failed"`
	SuccessRate   float64 `json:"success_rate"`
	AvgDurationMs float64 `json:"avg_duration_ms"`
}

// ListExecutionsOpts — параметры фильтрации executions.
type ListExecutionsOpts struct {
	ArtifactID string
	Status     string
	Limit      int
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
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details,omitempty"`
	} `json:"error"`
}

// --- Client ---

// Client — HTTP-клиент для Bindery API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient создаёт клиент для API.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// --- Artifacts ---

// UploadArtifact загружает изображение и возвращает созданный артефакт.
func (c *Client) UploadArtifact(data []byte, contentType string) (*ArtifactResponse, error) {
	req, err := http.NewRequest(http.MethodPost, c.baseURL+"/api/v1/artifacts", bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return nil, err
	}

	var dr dataResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	var artifact ArtifactResponse
	if err := json.Unmarshal(dr.Data, &artifact); err != nil {
		return nil, err
	}
	return &artifact, nil
}

// GetArtifact возвращает артефакт по ID.
func (c *Client) GetArtifact(id string) (*ArtifactResponse, error) {
	var artifact ArtifactResponse
	err := c.get("/api/v1/artifacts/"+id, &artifact)
	return &artifact, err
}

// ProcessArtifact ставит полный прогон в очередь.
func (c *Client) ProcessArtifact(id string) (*ProcessResponse, error) {
	var result ProcessResponse
	err := c.post("/api/v1/artifacts/"+id+"/process", nil, &result)
	return &result, err
}

// GetArtifactExecution возвращает последний execution артефакта с шагами.
func (c *Client) GetArtifactExecution(id string) (*ExecutionResponse, error) {
	var exec ExecutionResponse
	err := c.get("/api/v1/artifacts/"+id+"/execution", &exec)
	return &exec, err
}

// RunWorkflow синхронно выполняет workflow.
func (c *Client) RunWorkflow(artifactID, name string) (*WorkflowResult, error) {
	var result WorkflowResult
	err := c.post("/api/v1/artifacts/"+artifactID+"/workflows/"+name, nil, &result)
	return &result, err
}

// --- Executions ---

// ListExecutions возвращает список executions с фильтрацией.
func (c *Client) ListExecutions(opts ListExecutionsOpts) ([]ExecutionResponse, error) {
	params := url.Values{}
	if opts.ArtifactID != "" {
		params.Set("artifact_id", opts.ArtifactID)
	}
	if opts.Status != "" {
		params.Set("status", opts.Status)
	}
	if opts.Limit > 0 {
		params.Set("limit", fmt.Sprintf("%d", opts.Limit))
	}

	var execs []ExecutionResponse
	err := c.list("/api/v1/executions", params, &execs)
	return execs, err
}

// GetExecution возвращает execution по ID с шагами.
func (c *Client) GetExecution(id string) (*ExecutionResponse, error) {
	var exec ExecutionResponse
	err := c.get("/api/v1/executions/"+id, &exec)
	return &exec, err
}

// Stats возвращает агрегаты по executions.
func (c *Client) Stats() (*StatsResponse, error) {
	var stats StatsResponse
	err := c.get("/api/v1/stats", &stats)
	return &stats, err
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

	if len(er.Error.Details) > 0 {
		details, _ := json.Marshal(er.Error.Details)
		return fmt.Errorf("%s: %s %s", er.Error.Code, er.Error.Message, details)
	}
	return fmt.Errorf("%s: %s", er.Error.Code, er.Error.Message)
}
