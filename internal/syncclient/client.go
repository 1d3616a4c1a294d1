package syncclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/marcus/feedsync/internal/models"
)

// Sentinel errors for common HTTP error classes.
var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not found")
)

// Client is an HTTP client for the content API.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

// New creates a new API client.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		HTTP:    &http.Client{Timeout: 30 * time.Second},
	}
}

// --- Batch sync types ---

// BatchRequest is the body for POST /v1/actions/batch.
type BatchRequest struct {
	ActorID string        `json:"actorId"`
	Actions []ActionInput `json:"actions"`
}

// ActionInput is a single queued action in a batch request.
type ActionInput struct {
	Type      models.ActionType `json:"type"`
	TargetID  string            `json:"targetId"`
	Payload   json.RawMessage   `json:"payload,omitempty"`
	Timestamp string            `json:"timestamp"`
}

// BatchResponse is the response from a batch request.
type BatchResponse struct {
	Success   bool            `json:"success"`
	Processed []ActionOutcome `json:"processed"`
}

// ActionOutcome is the server result for one shipped action.
type ActionOutcome struct {
	Type      models.ActionType    `json:"type"`
	TargetID  string               `json:"targetId"`
	Status    models.OutcomeStatus `json:"status"`
	CommentID string               `json:"commentId,omitempty"`
	Payload   json.RawMessage      `json:"payload,omitempty"`
}

// ContentResponse is the response from GET /v1/content/{id}.
type ContentResponse struct {
	ID        string           `json:"id"`
	IsLiked   bool             `json:"isLiked"`
	LikeCount int              `json:"likeCount"`
	Comments  []models.Comment `json:"comments"`
}

// Snapshot converts the response into a server snapshot.
func (r *ContentResponse) Snapshot() models.Snapshot {
	return models.Snapshot{
		TargetID:  r.ID,
		IsLiked:   r.IsLiked,
		LikeCount: r.LikeCount,
		Comments:  r.Comments,
		FetchedAt: time.Now().UTC(),
	}
}

// HealthResponse is the response from GET /healthz.
type HealthResponse struct {
	Status string `json:"status"`
}

// HealthCheck hits the /healthz endpoint to verify server reachability.
func (c *Client) HealthCheck(ctx context.Context) (*HealthResponse, error) {
	var resp HealthResponse
	if err := c.doRequest(ctx, "GET", "/healthz", "", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SyncBatch ships a batch of pending actions in one request.
func (c *Client) SyncBatch(ctx context.Context, token string, req *BatchRequest) (*BatchResponse, error) {
	var resp BatchResponse
	if err := c.doRequest(ctx, "POST", "/v1/actions/batch", token, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// FetchContent fetches the server state of one content item.
func (c *Client) FetchContent(ctx context.Context, token, id string, actorID string) (*ContentResponse, error) {
	path := fmt.Sprintf("/v1/content/%s", url.PathEscape(id))
	if actorID != "" {
		path += "?actor=" + url.QueryEscape(actorID)
	}
	var resp ContentResponse
	if err := c.doRequest(ctx, "GET", path, token, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// --- HTTP helpers ---

// apiError is the standard error body from the server.
type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *apiError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return e.Code
}

// StatusError is returned for non-2xx responses without a usable error body.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
}

func (c *Client) doRequest(ctx context.Context, method, path, token string, body, result any) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 300 {
		var apiErr apiError
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Code != "" {
			switch resp.StatusCode {
			case http.StatusUnauthorized:
				return fmt.Errorf("%w: %s", ErrUnauthorized, apiErr.Message)
			case http.StatusForbidden:
				return fmt.Errorf("%w: %s", ErrForbidden, apiErr.Message)
			case http.StatusNotFound:
				return fmt.Errorf("%w: %s", ErrNotFound, apiErr.Message)
			default:
				return &apiErr
			}
		}
		return &StatusError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	if result != nil {
		if len(respBody) == 0 {
			return fmt.Errorf("unmarshal response: empty body")
		}
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}

	return nil
}
