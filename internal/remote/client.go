// Package remote is the client side of the REST surface.
package remote

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

	"github.com/prudhvinik1/ledgersync/internal/apperr"
	"github.com/prudhvinik1/ledgersync/internal/models"
	"github.com/rs/zerolog"
)

const DefaultTimeout = 15 * time.Second

type Client struct {
	baseURL    string
	token      string
	timeout    time.Duration
	httpClient *http.Client
	logger     zerolog.Logger
}

func New(baseURL, token string, timeout time.Duration, logger zerolog.Logger) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		timeout:    timeout,
		httpClient: &http.Client{},
		logger:     logger.With().Str("component", "remote").Logger(),
	}
}

// WithHTTPClient swaps the transport, mostly for tests.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.httpClient = hc
	return c
}

// Send replays one queued mutation. CREATE and UPDATE return the record as
// the server stored it; DELETE returns nil.
func (c *Client) Send(ctx context.Context, item *models.QueueItem) (models.Entity, error) {
	collection := item.EntityType.Collection()
	if collection == "" {
		return nil, apperr.NewValidationError(fmt.Sprintf("unknown entity type %q", item.EntityType))
	}

	var (
		method  string
		path    string
		body    []byte
		headers = map[string]string{}
	)
	switch item.Action {
	case models.ActionCreate:
		method, path, body = http.MethodPost, "/api/"+collection, item.Payload
		headers["Idempotency-Key"] = "create:" + item.LocalID
	case models.ActionUpdate:
		method, path, body = http.MethodPut, "/api/"+collection+"/"+url.PathEscape(item.TargetID()), item.Payload
	case models.ActionDelete:
		method, path = http.MethodDelete, "/api/"+collection+"/"+url.PathEscape(item.TargetID())
	default:
		return nil, apperr.NewValidationError(fmt.Sprintf("unknown action %q", item.Action))
	}

	op := fmt.Sprintf("%s %s", item.Action, item.EntityType)
	respBody, err := c.do(ctx, op, method, path, body, headers)
	if err != nil {
		return nil, err
	}
	if item.Action == models.ActionDelete {
		return nil, nil
	}
	entity, err := models.Decode(item.EntityType, respBody)
	if err != nil {
		return nil, apperr.Transport(op, 0, err)
	}
	return entity, nil
}

// FetchAll downloads every record of one collection for the current user.
func (c *Client) FetchAll(ctx context.Context, t models.EntityType) ([]models.Entity, error) {
	op := "fetch " + t.Collection()
	respBody, err := c.do(ctx, op, http.MethodGet, "/api/"+t.Collection(), nil, nil)
	if err != nil {
		return nil, err
	}

	var raws []json.RawMessage
	if err := json.Unmarshal(respBody, &raws); err != nil {
		return nil, apperr.Transport(op, 0, fmt.Errorf("failed to decode response: %w", err))
	}
	out := make([]models.Entity, 0, len(raws))
	for _, raw := range raws {
		e, err := models.Decode(t, raw)
		if err != nil {
			return nil, apperr.Transport(op, 0, err)
		}
		out = append(out, e)
	}
	return out, nil
}

// Ping reports whether the server answers its health check.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.do(ctx, "health", http.MethodGet, "/health", nil, nil)
	return err
}

func (c *Client) do(ctx context.Context, op, method, path string, body []byte, headers map[string]string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, apperr.Transport(op, 0, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperr.Transport(op, 0, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperr.Transport(op, resp.StatusCode, err)
	}
	c.logger.Debug().
		Str("op", op).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("remote call")

	return respBody, classify(op, resp.StatusCode, respBody)
}

// classify maps a response status onto the error taxonomy.
func classify(op string, status int, body []byte) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		var parsed struct {
			Error  string   `json:"error"`
			Errors []string `json:"errors"`
		}
		_ = json.Unmarshal(body, &parsed)
		msgs := parsed.Errors
		if len(msgs) == 0 && parsed.Error != "" {
			msgs = []string{parsed.Error}
		}
		if len(msgs) == 0 {
			msgs = []string{fmt.Sprintf("%s rejected with status %d", op, status)}
		}
		return apperr.NewValidationError(msgs...)
	case status == http.StatusNotFound || status == http.StatusForbidden:
		return apperr.NotFound(op, "")
	case status >= 500, status == http.StatusRequestTimeout, status == http.StatusTooManyRequests,
		status == http.StatusUnauthorized, status == http.StatusConflict:
		// 401 and 409 are retried: credentials or backend assignment can
		// recover without the mutation changing.
		return apperr.Transport(op, status, errors.New(strings.TrimSpace(string(body))))
	}
	return apperr.NewValidationError(fmt.Sprintf("%s rejected with status %d", op, status))
}
