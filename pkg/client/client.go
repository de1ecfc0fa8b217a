package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cuemby/forkful/pkg/types"
)

const requestTimeout = 10 * time.Second

// APIError is returned when the server answers with a non-2xx status
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
}

// Client wraps the forkful JSON API for CLI usage
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewClient creates a client for the server at addr. A bare host:port is
// treated as http.
func NewClient(addr string) (*Client, error) {
	if !strings.Contains(addr, "://") {
		addr = "http://" + addr
	}
	u, err := url.Parse(addr)
	if err != nil {
		return nil, fmt.Errorf("invalid server address %q: %w", addr, err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("invalid server address %q: missing host", addr)
	}

	return &Client{
		baseURL: strings.TrimRight(u.String(), "/"),
		http:    &http.Client{Timeout: 2 * requestTimeout},
	}, nil
}

// NewClientWithToken creates a client that authenticates with an existing
// session token
func NewClientWithToken(addr, token string) (*Client, error) {
	c, err := NewClient(addr)
	if err != nil {
		return nil, err
	}
	c.token = token
	return c, nil
}

// Token returns the session token in use, if any
func (c *Client) Token() string {
	return c.token
}

func (c *Client) do(method, path string, body, out any) error {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr types.ErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err != nil || apiErr.Error == "" {
			apiErr.Error = http.StatusText(resp.StatusCode)
		}
		return &APIError{StatusCode: resp.StatusCode, Message: apiErr.Error}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// Register creates a new account
func (c *Client) Register(username, displayName, password string) (*types.PublicUser, error) {
	var user types.PublicUser
	err := c.do(http.MethodPost, "/api/register", &types.RegisterRequest{
		Username:    username,
		DisplayName: displayName,
		Password:    password,
	}, &user)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// Login opens a session and keeps its token for later calls
func (c *Client) Login(username, password string) (*types.LoginResponse, error) {
	var resp types.LoginResponse
	err := c.do(http.MethodPost, "/api/login", &types.LoginRequest{
		Username: username,
		Password: password,
	}, &resp)
	if err != nil {
		return nil, err
	}
	c.token = resp.Token
	return &resp, nil
}

// Me returns the signed-in user
func (c *Client) Me() (*types.PublicUser, error) {
	var user types.PublicUser
	if err := c.do(http.MethodGet, "/api/me", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// CreateRecipe publishes a recipe as the signed-in user
func (c *Client) CreateRecipe(req *types.RecipeRequest) (*types.Recipe, error) {
	var recipe types.Recipe
	if err := c.do(http.MethodPost, "/api/recipes", req, &recipe); err != nil {
		return nil, err
	}
	return &recipe, nil
}

// ListOptions filters ListRecipes
type ListOptions struct {
	Search string
	Tag    string
	Author string // username
}

// ListRecipes lists recipes newest first
func (c *Client) ListRecipes(opts ListOptions) ([]*types.Recipe, error) {
	q := url.Values{}
	if opts.Search != "" {
		q.Set("q", opts.Search)
	}
	if opts.Tag != "" {
		q.Set("tag", opts.Tag)
	}
	if opts.Author != "" {
		q.Set("author", opts.Author)
	}

	path := "/api/recipes"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var recipes []*types.Recipe
	if err := c.do(http.MethodGet, path, nil, &recipes); err != nil {
		return nil, err
	}
	return recipes, nil
}

// GetRecipe fetches a recipe with its ingredients scaled by factor
func (c *Client) GetRecipe(id string, factor float64) (*types.ScaledRecipe, error) {
	path := "/api/recipes/" + url.PathEscape(id)
	if factor != 0 && factor != 1 {
		path += "?scale=" + strconv.FormatFloat(factor, 'f', -1, 64)
	}

	var recipe types.ScaledRecipe
	if err := c.do(http.MethodGet, path, nil, &recipe); err != nil {
		return nil, err
	}
	return &recipe, nil
}

// Scale asks the server to scale ingredient lines
func (c *Client) Scale(req *types.ScaleRequest) (*types.ScaleResponse, error) {
	var resp types.ScaleResponse
	if err := c.do(http.MethodPost, "/api/scale", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
