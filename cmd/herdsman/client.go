package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/loykin/herdsman"
)

// APIClient talks to a running herdsman daemon over its HTTP API.
type APIClient struct {
	baseURL string
	client  *http.Client
}

func NewAPIClient(baseURL string, timeout time.Duration) *APIClient {
	if baseURL == "" {
		baseURL = "http://127.0.0.1:8811"
	}
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &APIClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

func (c *APIClient) do(method, path string, query url.Values, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequest(method, u, nil)
	if err != nil {
		return err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		var errorResp struct {
			Error string `json:"error"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&errorResp); err != nil {
			return fmt.Errorf("API error: status %d", resp.StatusCode)
		}
		return fmt.Errorf("API error: %s", errorResp.Error)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func keyQuery(key string) url.Values {
	q := url.Values{}
	q.Set("key", key)
	return q
}

func (c *APIClient) Profiles() ([]herdsman.ProfileStatus, error) {
	var out []herdsman.ProfileStatus
	err := c.do(http.MethodGet, "/profiles", nil, &out)
	return out, err
}

func (c *APIClient) Rescan() error {
	return c.do(http.MethodPost, "/rescan", nil, nil)
}

func (c *APIClient) Open(key string) (herdsman.Result, error) {
	var out herdsman.Result
	err := c.do(http.MethodPost, "/open", keyQuery(key), &out)
	return out, err
}

func (c *APIClient) Kill(key string, force bool) (herdsman.Result, error) {
	q := keyQuery(key)
	if force {
		q.Set("force", "1")
	}
	var out herdsman.Result
	err := c.do(http.MethodPost, "/kill", q, &out)
	return out, err
}

func (c *APIClient) Restart(key string) (herdsman.Result, error) {
	var out herdsman.Result
	err := c.do(http.MethodPost, "/restart", keyQuery(key), &out)
	return out, err
}

func (c *APIClient) OpenAll(maxParallel int) ([]herdsman.ProfileResult, error) {
	q := url.Values{}
	if maxParallel > 0 {
		q.Set("max", strconv.Itoa(maxParallel))
	}
	var out []herdsman.ProfileResult
	err := c.do(http.MethodPost, "/open-all", q, &out)
	return out, err
}

func (c *APIClient) KillAll() ([]herdsman.ProfileResult, error) {
	var out []herdsman.ProfileResult
	err := c.do(http.MethodPost, "/kill-all", nil, &out)
	return out, err
}

func (c *APIClient) SetAlias(key, name string) error {
	q := keyQuery(key)
	q.Set("name", name)
	return c.do(http.MethodPost, "/alias", q, nil)
}

func (c *APIClient) Identify(key string) (string, error) {
	var out struct {
		Alias string `json:"alias"`
	}
	err := c.do(http.MethodPost, "/identify", keyQuery(key), &out)
	return out.Alias, err
}
