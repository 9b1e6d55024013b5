package board

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"

	"github.com/Ramsey-B/aster/pkg/models"
)

// Client is the slice of the board API the client state machine needs.
type Client interface {
	GetPipeline(ctx context.Context, pipelineID string) (*models.Pipeline, error)
	ListDeals(ctx context.Context, pipelineID string) ([]*models.Deal, error)
	MoveDeal(ctx context.Context, dealID string, stageID string) (*models.Deal, error)
	ReorderStages(ctx context.Context, pipelineID string, orders []models.StageOrder) error
}

// HTTPClient talks to the board API over HTTP.
type HTTPClient struct {
	baseURL  string
	tenantID string
	token    string
	http     *http.Client
}

// HTTPClientOption configures an HTTPClient.
type HTTPClientOption func(*HTTPClient)

// WithToken sets the bearer token sent on every request.
func WithToken(token string) HTTPClientOption {
	return func(c *HTTPClient) {
		c.token = token
	}
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) HTTPClientOption {
	return func(c *HTTPClient) {
		c.http = hc
	}
}

// NewHTTPClient creates a board API client rooted at baseURL, e.g.
// "http://localhost:3004".
func NewHTTPClient(baseURL string, tenantID string, opts ...HTTPClientOption) *HTTPClient {
	c := &HTTPClient{
		baseURL:  baseURL,
		tenantID: tenantID,
		http:     &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *HTTPClient) GetPipeline(ctx context.Context, pipelineID string) (*models.Pipeline, error) {
	var pipeline models.Pipeline
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/v1/pipelines/%s", pipelineID), nil, &pipeline)
	if err != nil {
		return nil, err
	}
	return &pipeline, nil
}

func (c *HTTPClient) ListDeals(ctx context.Context, pipelineID string) ([]*models.Deal, error) {
	var deals []*models.Deal
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/v1/pipelines/%s/deals", pipelineID), nil, &deals)
	if err != nil {
		return nil, err
	}
	return deals, nil
}

func (c *HTTPClient) MoveDeal(ctx context.Context, dealID string, stageID string) (*models.Deal, error) {
	body := models.DealPatch{StageID: &stageID}
	var deal models.Deal
	err := c.do(ctx, http.MethodPatch, fmt.Sprintf("/api/v1/deals/%s", dealID), body, &deal)
	if err != nil {
		return nil, err
	}
	return &deal, nil
}

func (c *HTTPClient) ReorderStages(ctx context.Context, pipelineID string, orders []models.StageOrder) error {
	body := map[string]any{"stages": orders}
	return c.do(ctx, http.MethodPatch, fmt.Sprintf("/api/v1/pipelines/%s/stages/reorder", pipelineID), body, nil)
}

type apiError struct {
	Message string `json:"message"`
}

func (c *HTTPClient) do(ctx context.Context, method string, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Tenant-ID", c.tenantID)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var apiErr apiError
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err != nil || apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		return httperror.NewHTTPError(resp.StatusCode, apiErr.Message)
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
