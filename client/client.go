// Package client talks to the category admin API over HTTP and implements
// engine.Store.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopverse/category_service/engine"
	"github.com/shopverse/category_service/models"
)

const categoriesPath = "/api/admin/categories"

var _ engine.Store = (*Client)(nil)

// APIError is a non-2xx reply from the category API
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("category api returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("category api returned status %d: %s: %s", e.StatusCode, e.Code, e.Message)
}

type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Client is a REST client for the category admin endpoints.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// New creates a client for the API rooted at baseURL. A nil httpClient gets a
// default one with a 10 second timeout.
func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{httpClient: httpClient, baseURL: strings.TrimRight(baseURL, "/")}
}

// FetchTree loads the whole category forest
func (c *Client) FetchTree(ctx context.Context) ([]*models.CategoryNode, error) {
	var nodes []*models.CategoryNode
	if err := c.do(ctx, http.MethodGet, categoriesPath+"/tree", nil, &nodes); err != nil {
		return nil, err
	}
	if nodes == nil {
		nodes = make([]*models.CategoryNode, 0)
	}
	return nodes, nil
}

// SetSiblingOrder replaces the child order of parentID. Rejections wrap
// engine.ErrCommitRejected.
func (c *Client) SetSiblingOrder(ctx context.Context, parentID *string, orderedIDs []string) error {
	body := models.ReorderRequest{ParentID: parentID, OrderedCategoryIDs: orderedIDs}
	return rejected(c.do(ctx, http.MethodPost, categoriesPath+"/reorder", body, nil))
}

// CreateCategory creates a category and returns it as stored
func (c *Client) CreateCategory(ctx context.Context, req models.CategoryRequest) (*models.CategoryNode, error) {
	var created models.CategoryNode
	if err := rejected(c.do(ctx, http.MethodPost, categoriesPath, req, &created)); err != nil {
		return nil, err
	}
	return &created, nil
}

// UpdateCategory replaces the editable fields of category id
func (c *Client) UpdateCategory(ctx context.Context, id string, req models.CategoryRequest) (*models.CategoryNode, error) {
	var updated models.CategoryNode
	if err := rejected(c.do(ctx, http.MethodPut, categoriesPath+"/"+url.PathEscape(id), req, &updated)); err != nil {
		return nil, err
	}
	return &updated, nil
}

// DeleteCategory removes category id
func (c *Client) DeleteCategory(ctx context.Context, id string) error {
	return rejected(c.do(ctx, http.MethodDelete, categoriesPath+"/"+url.PathEscape(id), nil, nil))
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %w", engine.ErrTransportFailure, method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var eb errorBody
		if json.NewDecoder(resp.Body).Decode(&eb) == nil {
			apiErr.Code, apiErr.Message = eb.Error.Code, eb.Error.Message
		}
		return apiErr
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

func rejected(err error) error {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("%w: %w", engine.ErrCommitRejected, err)
	}
	return err
}
