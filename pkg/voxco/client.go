// Package voxco talks to the Voxco survey platform REST API.
package voxco

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"survey-assistant-be/pkg/survey"
)

// Gateway is the subset of the platform the assistant needs.
type Gateway interface {
	Authenticate(ctx context.Context, username, password string) (string, error)
	Create(ctx context.Context, name, token string) (int64, error)
	Fetch(ctx context.Context, id int64, token string) (survey.Document, error)
	Replace(ctx context.Context, id int64, doc survey.Document, token string) error
}

var (
	ErrNotConfigured = errors.New("voxco base URL not configured")
	ErrMissingToken  = errors.New("authentication succeeded but no token was returned")
	ErrNoLocation    = errors.New("survey created but the location header is missing or unparseable")
)

// APIError is a non-2xx answer from the platform.
type APIError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("voxco %s failed: status %d: %s", e.Op, e.StatusCode, e.Body)
}

var locationPattern = regexp.MustCompile(`/survey/(\d+)`)

type Client struct {
	baseURL    string
	httpClient *http.Client
}

var _ Gateway = (*Client)(nil)

func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *Client) Authenticate(ctx context.Context, username, password string) (string, error) {
	if username == "" || password == "" {
		return "", fmt.Errorf("voxco credentials (username, password) are required")
	}
	q := url.Values{}
	q.Set("userInfo.username", username)
	q.Set("userInfo.password", password)

	resp, err := c.do(ctx, "authenticate", http.MethodGet, "/authentication/user?"+q.Encode(), "", nil)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var body struct {
		Token string `json:"Token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("voxco authenticate: decode response: %w", err)
	}
	if body.Token == "" {
		return "", ErrMissingToken
	}
	return body.Token, nil
}

func (c *Client) Create(ctx context.Context, name, token string) (int64, error) {
	payload, err := json.Marshal(map[string]string{"Name": name})
	if err != nil {
		return 0, fmt.Errorf("voxco create: encode request: %w", err)
	}
	resp, err := c.do(ctx, "create survey", http.MethodPost, "/survey/create", token, payload)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	location := resp.Header.Get("Location")
	m := locationPattern.FindStringSubmatch(location)
	if m == nil {
		return 0, fmt.Errorf("%w: %q", ErrNoLocation, location)
	}
	id, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrNoLocation, location)
	}
	return id, nil
}

func (c *Client) Fetch(ctx context.Context, id int64, token string) (survey.Document, error) {
	path := fmt.Sprintf("/survey/export/json/%d?deployed=false&modality=Master", id)
	resp, err := c.do(ctx, "fetch survey", http.MethodGet, path, token, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("voxco fetch survey: read response: %w", err)
	}
	doc, err := survey.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("voxco fetch survey: invalid JSON received: %w", err)
	}
	return doc, nil
}

func (c *Client) Replace(ctx context.Context, id int64, doc survey.Document, token string) error {
	resp, err := c.do(ctx, "save survey", http.MethodPost, fmt.Sprintf("/survey/import/json/%d", id), token, doc)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	return nil
}

// do sends one request and turns any non-2xx answer into an *APIError. On success the
// caller owns resp.Body.
func (c *Client) do(ctx context.Context, op, method, path, token string, body []byte) (*http.Response, error) {
	if c.baseURL == "" {
		return nil, ErrNotConfigured
	}
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("voxco %s: create request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Client "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("voxco %s: %w", op, redactURL(err))
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &APIError{Op: op, StatusCode: resp.StatusCode, Body: errorMessage(raw)}
	}
	return resp, nil
}

// errorMessage prefers a "message" field when the platform answers with JSON.
func errorMessage(raw []byte) string {
	var body struct {
		Message string `json:"message"`
		Error   struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(raw, &body) == nil {
		if body.Message != "" {
			return body.Message
		}
		if body.Error.Message != "" {
			return body.Error.Message
		}
	}
	return strings.TrimSpace(string(raw))
}

// redactURL strips the query string from transport errors, since the authentication
// call carries credentials in it.
func redactURL(err error) error {
	var uerr *url.Error
	if errors.As(err, &uerr) {
		if u, perr := url.Parse(uerr.URL); perr == nil {
			u.RawQuery = ""
			return &url.Error{Op: uerr.Op, URL: u.String(), Err: uerr.Err}
		}
	}
	return err
}
