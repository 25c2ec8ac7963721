package authclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ddanilin/storefront/internal/models"
)

// ErrTransport marks network-level failures (unreachable, timeout).
// Callers treat these as retryable; remote rejections carry the
// collaborator's message verbatim instead.
var ErrTransport = errors.New("auth service unreachable")

type RejectedError struct {
	Message string
}

func (e *RejectedError) Error() string { return e.Message }

type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(authServiceURL string) *Client {
	return &Client{
		baseURL: authServiceURL,
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

type AuthResult struct {
	Token string
	User  models.UserProfile
}

type authResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Token   string `json:"token"`
	User    struct {
		ID     string `json:"id"`
		Name   string `json:"name"`
		Email  string `json:"email"`
		Role   string `json:"role"`
		Avatar string `json:"avatar"`
	} `json:"user"`
}

func (c *Client) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	body := map[string]string{"email": email, "password": password}
	return c.post(ctx, "/auth/login", body, "")
}

func (c *Client) Register(ctx context.Context, name, email, password string) (*AuthResult, error) {
	body := map[string]string{"name": name, "email": email, "password": password}
	return c.post(ctx, "/auth/register", body, "")
}

func (c *Client) WhoAmI(ctx context.Context, token string) (*AuthResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/auth/me", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	res, err := c.do(req)
	if err != nil {
		return nil, err
	}
	if res.Token == "" {
		res.Token = token
	}
	return res, nil
}

func (c *Client) post(ctx context.Context, path string, body any, token string) (*AuthResult, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	return c.do(req)
}

func (c *Client) do(req *http.Request) (*AuthResult, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer resp.Body.Close()

	var decoded authResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return nil, fmt.Errorf("decode response: %w", err)
		}
		return nil, fmt.Errorf("%w: status %d", ErrTransport, resp.StatusCode)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 || !decoded.Success {
		msg := decoded.Message
		if msg == "" {
			msg = fmt.Sprintf("auth failed with status %d", resp.StatusCode)
		}
		return nil, &RejectedError{Message: msg}
	}

	return &AuthResult{
		Token: decoded.Token,
		User: models.UserProfile{
			ID:        decoded.User.ID,
			Name:      decoded.User.Name,
			Email:     decoded.User.Email,
			Role:      decoded.User.Role,
			AvatarURI: decoded.User.Avatar,
		},
	}, nil
}
