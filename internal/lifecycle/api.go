// SPDX-License-Identifier: MIT

package lifecycle

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/jsj9346/makenaide-sub006/internal/log"
	"github.com/jsj9346/makenaide-sub006/internal/model"
)

// APIController talks to the compute provider's instance API:
//
//	GET  {base}/instances/{id}        -> {"instance_id": ..., "state": ...}
//	POST {base}/instances/{id}/start
//	POST {base}/instances/{id}/stop   (graceful; body {"mode":"graceful"})
//
// The provider arbitrates concurrent starts, which is what makes the guard's
// read-then-act check safe without a distributed lock.
type APIController struct {
	base   string
	id     string
	token  string
	client *http.Client
	logger zerolog.Logger
}

// NewAPIController builds a controller for one instance. timeout bounds each
// lifecycle call; callers should treat a timeout as failure, never as
// "probably still pending".
func NewAPIController(base, instanceID, token string, timeout time.Duration) *APIController {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &APIController{
		base:   strings.TrimRight(base, "/"),
		id:     instanceID,
		token:  token,
		client: &http.Client{Timeout: timeout},
		logger: log.WithComponent("lifecycle").With().Str("instance_id", instanceID).Logger(),
	}
}

func (c *APIController) InstanceID() string { return c.id }

type describeResponse struct {
	InstanceID string `json:"instance_id"`
	State      string `json:"state"`
}

func (c *APIController) Describe(ctx context.Context) (model.InstanceState, error) {
	req, err := c.newRequest(ctx, http.MethodGet, fmt.Sprintf("%s/instances/%s", c.base, c.id), nil)
	if err != nil {
		return model.StateUnknown, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return model.StateUnknown, fmt.Errorf("describe instance %s: %w", c.id, err)
	}
	defer drain(resp)

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return model.StateUnknown, fmt.Errorf("describe instance %s: %w", c.id, ErrNotFound)
	default:
		return model.StateUnknown, fmt.Errorf("describe instance %s: unexpected status %d", c.id, resp.StatusCode)
	}

	var body describeResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return model.StateUnknown, fmt.Errorf("describe instance %s: decode response: %w", c.id, err)
	}
	state := model.ParseInstanceState(body.State)
	c.logger.Debug().Str("state", string(state)).Msg("instance described")
	return state, nil
}

func (c *APIController) Start(ctx context.Context) error {
	return c.post(ctx, "start", "")
}

func (c *APIController) Stop(ctx context.Context) error {
	return c.post(ctx, "stop", `{"mode":"graceful"}`)
}

func (c *APIController) post(ctx context.Context, action, body string) error {
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req, err := c.newRequest(ctx, http.MethodPost, fmt.Sprintf("%s/instances/%s/%s", c.base, c.id, action), rdr)
	if err != nil {
		return err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s instance %s: %w", action, c.id, err)
	}
	defer drain(resp)

	// 2xx means the request was accepted, not that the transition completed.
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%s instance %s: unexpected status %d", action, c.id, resp.StatusCode)
	}
	c.logger.Info().Str("action", action).Msg("lifecycle request accepted")
	return nil
}

func (c *APIController) newRequest(ctx context.Context, method, url string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}

var _ Controller = (*APIController)(nil)
