// Package refdata talks to the external reference-data backend that owns
// the question catalogue, departments, and locations. Any non-success
// response means "unavailable"; the client never retries.
package refdata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/klinikhygiene/begehung/internal/app"
	"github.com/klinikhygiene/begehung/internal/domain"
)

var _ app.ReferenceDirectory = (*Client)(nil)

// Client is a minimal reference-data HTTP client.
type Client struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
	Timeout    time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("refdata api error: status=%d body=%s", e.StatusCode, e.Body)
}

// questionDTO mirrors the backend question shape.
type questionDTO struct {
	ID          string `json:"id"`
	Text        string `json:"text"`
	Critical    bool   `json:"critical"`
	Kind        string `json:"kind"`
	Subcategory struct {
		ID       string `json:"id"`
		Name     string `json:"name"`
		Category struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"category"`
	} `json:"subcategory"`
}

// departmentDTO mirrors the backend department shape.
type departmentDTO struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ListQuestions returns catalogue questions matching the filter.
func (c *Client) ListQuestions(ctx context.Context, filter app.QuestionFilter) ([]domain.Question, error) {
	query := url.Values{}
	if filter.DepartmentID != "" {
		query.Set("department_id", filter.DepartmentID)
	}
	if len(filter.ExcludeIDs) > 0 {
		query.Set("exclude_ids", strings.Join(filter.ExcludeIDs, ","))
	}
	if filter.SearchText != "" {
		query.Set("search", filter.SearchText)
	}
	if filter.SingleID != "" {
		query.Set("id", filter.SingleID)
	}
	endpoint := "questions"
	if encoded := query.Encode(); encoded != "" {
		endpoint += "?" + encoded
	}

	var resp struct {
		Items []questionDTO `json:"items"`
	}
	if err := c.do(ctx, http.MethodGet, endpoint, &resp); err != nil {
		return nil, err
	}

	out := make([]domain.Question, 0, len(resp.Items))
	for _, dto := range resp.Items {
		question, err := domain.NewQuestion(dto.ID, dto.Text, dto.Critical, domain.ObservationKind(dto.Kind), domain.Subcategory{
			ID:   dto.Subcategory.ID,
			Name: dto.Subcategory.Name,
			Category: domain.Category{
				ID:   dto.Subcategory.Category.ID,
				Name: dto.Subcategory.Category.Name,
			},
		})
		if err != nil {
			return nil, fmt.Errorf("decode question %q: %w", dto.ID, err)
		}
		out = append(out, question)
	}
	return out, nil
}

// ListDepartments returns all departments.
func (c *Client) ListDepartments(ctx context.Context) ([]domain.Department, error) {
	var resp struct {
		Items []departmentDTO `json:"items"`
	}
	if err := c.do(ctx, http.MethodGet, "departments", &resp); err != nil {
		return nil, err
	}
	out := make([]domain.Department, 0, len(resp.Items))
	for _, dto := range resp.Items {
		out = append(out, domain.Department{ID: dto.ID, Name: dto.Name})
	}
	return out, nil
}

// ListLocations returns the known location labels.
func (c *Client) ListLocations(ctx context.Context) ([]string, error) {
	var resp struct {
		Items []string `json:"items"`
	}
	if err := c.do(ctx, http.MethodGet, "locations", &resp); err != nil {
		return nil, err
	}
	return resp.Items, nil
}

// IsCurrentUserAdmin reports whether the caller holds the admin capability.
func (c *Client) IsCurrentUserAdmin(ctx context.Context) (bool, error) {
	var resp struct {
		Admin bool `json:"admin"`
	}
	if err := c.do(ctx, http.MethodGet, "me/admin", &resp); err != nil {
		return false, err
	}
	return resp.Admin, nil
}

func (c *Client) do(ctx context.Context, method, endpoint string, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	target := strings.TrimRight(c.BaseURL, "/") + "/" + strings.TrimLeft(endpoint, "/")
	req, err := http.NewRequestWithContext(ctx, method, target, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if c.APIKey != "" {
		req.Header.Set("X-Api-Key", c.APIKey)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
