package adminapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/ddanilin/storefront/internal/models"
)

var ErrTransport = errors.New("admin api unreachable")

// RejectedError carries the collaborator's own message; the engine
// surfaces it upward without touching local state.
type RejectedError struct {
	Message string
}

func (e *RejectedError) Error() string { return e.Message }

type Client struct {
	baseURL    string
	token      func() string
	httpClient *http.Client
}

// NewClient takes a token source so the client always sends the
// current session token without holding a copy of it.
func NewClient(adminAPIURL string, token func() string) *Client {
	if token == nil {
		token = func() string { return "" }
	}
	return &Client{
		baseURL: adminAPIURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

type ProductInput struct {
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	Category     string   `json:"category"`
	Brand        string   `json:"brand"`
	Gender       string   `json:"gender"`
	Colors       []string `json:"colors"`
	Sizes        []string `json:"sizes"`
	Price        float64  `json:"price"`
	Image        string   `json:"image"`
	IsFeatured   bool     `json:"is_featured"`
	IsBestSeller bool     `json:"is_best_seller"`
}

type UserInput struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type ListParams struct {
	Page   int
	Size   int
	Search string
}

func (p ListParams) query() string {
	q := url.Values{}
	if p.Page > 0 {
		q.Set("page", fmt.Sprint(p.Page))
	}
	if p.Size > 0 {
		q.Set("size", fmt.Sprint(p.Size))
	}
	if p.Search != "" {
		q.Set("q", p.Search)
	}
	if len(q) == 0 {
		return ""
	}
	return "?" + q.Encode()
}

func (c *Client) GetProducts(ctx context.Context) ([]models.CatalogItem, error) {
	var items []models.CatalogItem
	if err := c.call(ctx, http.MethodGet, "/products", nil, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func (c *Client) CreateProduct(ctx context.Context, data ProductInput) (*models.CatalogItem, error) {
	var item models.CatalogItem
	if err := c.call(ctx, http.MethodPost, "/products", data, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

func (c *Client) UpdateProduct(ctx context.Context, id string, data ProductInput) (*models.CatalogItem, error) {
	var item models.CatalogItem
	if err := c.call(ctx, http.MethodPatch, "/products/"+url.PathEscape(id), data, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

func (c *Client) DeleteProduct(ctx context.Context, id string) error {
	return c.call(ctx, http.MethodDelete, "/products/"+url.PathEscape(id), nil, nil)
}

func (c *Client) GetUsers(ctx context.Context, params ListParams) ([]models.AdminUser, error) {
	var users []models.AdminUser
	if err := c.call(ctx, http.MethodGet, "/users"+params.query(), nil, &users); err != nil {
		return nil, err
	}
	return users, nil
}

func (c *Client) CreateUser(ctx context.Context, data UserInput) (*models.AdminUser, error) {
	var user models.AdminUser
	if err := c.call(ctx, http.MethodPost, "/users", data, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *Client) UpdateUserStatus(ctx context.Context, id string, status string) (*models.AdminUser, error) {
	var user models.AdminUser
	body := map[string]string{"status": status}
	if err := c.call(ctx, http.MethodPatch, "/users/"+url.PathEscape(id)+"/status", body, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *Client) DeleteUser(ctx context.Context, id string) error {
	return c.call(ctx, http.MethodDelete, "/users/"+url.PathEscape(id), nil, nil)
}

func (c *Client) GetTransactions(ctx context.Context, params ListParams) ([]models.Transaction, error) {
	var txs []models.Transaction
	if err := c.call(ctx, http.MethodGet, "/transactions"+params.query(), nil, &txs); err != nil {
		return nil, err
	}
	return txs, nil
}

func (c *Client) GetStats(ctx context.Context) (*models.AdminStats, error) {
	var stats models.AdminStats
	if err := c.call(ctx, http.MethodGet, "/stats", nil, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

func (c *Client) call(ctx context.Context, method, path string, body, dest any) error {
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if t := c.token(); t != "" {
		req.Header.Set("Authorization", "Bearer "+t)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var rejected struct {
			Message string `json:"message"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&rejected); err == nil && rejected.Message != "" {
			return &RejectedError{Message: rejected.Message}
		}
		return &RejectedError{Message: fmt.Sprintf("request failed with status %d", resp.StatusCode)}
	}

	if dest == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
