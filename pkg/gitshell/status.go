package gitshell

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/noah-isme/ada-judge-api/internal/dto"
)

// StatusClient reads submission views from the judge API with a repository upload key.
type StatusClient struct {
	baseURL string
	http    *http.Client
}

// NewStatusClient creates a client for the API rooted at baseURL.
func NewStatusClient(baseURL string, client *http.Client) *StatusClient {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &StatusClient{baseURL: strings.TrimRight(baseURL, "/"), http: client}
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

// Latest returns the most recent submission of the key's owner.
func (c *StatusClient) Latest(ctx context.Context, key string) ([]dto.SubmissionView, error) {
	var view dto.SubmissionView
	if err := c.post(ctx, "/submission/get/last", dto.HookLookupRequest{Key: key}, &view); err != nil {
		return nil, err
	}
	return []dto.SubmissionView{view}, nil
}

// ByGitHash returns every submission created from the pushed revision.
func (c *StatusClient) ByGitHash(ctx context.Context, key, gitHash string) ([]dto.SubmissionView, error) {
	var views []dto.SubmissionView
	if err := c.post(ctx, "/submission/get/gitHash", dto.HookLookupRequest{Key: key, GitHash: gitHash}, &views); err != nil {
		return nil, err
	}
	return views, nil
}

func (c *StatusClient) post(ctx context.Context, path string, body interface{}, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	if resp.StatusCode != http.StatusOK || !env.Success {
		if env.Message == "" {
			env.Message = resp.Status
		}
		return errors.New(env.Message)
	}
	return json.Unmarshal(env.Data, out)
}
