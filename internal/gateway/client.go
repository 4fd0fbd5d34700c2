// Package gateway wraps the marketplace REST API with typed calls. Every
// call except login attaches the stored bearer credential; a 401 on any
// authenticated call clears the credential and fires the session-expired
// hook, the one cross-cutting error policy in the core.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/syncmart/branchd/pkg/errors"
)

// CredentialSource provides the bearer token and supports the global clear
// side effect. Backed by the kvstore in production, by fakes in tests.
type CredentialSource interface {
	Token() (string, error)
	Clear() error
}

// Client calls the marketplace API for one branch session
type Client struct {
	baseURL          string
	creds            CredentialSource
	httpClient       *http.Client
	logger           *zap.Logger
	onSessionExpired func()
}

// NewClient creates a marketplace API client. onSessionExpired runs after a
// 401 clears the credential; nil is allowed.
func NewClient(baseURL string, creds CredentialSource, logger *zap.Logger, onSessionExpired func()) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL:          strings.TrimSuffix(baseURL, "/"),
		creds:            creds,
		httpClient:       &http.Client{Timeout: 30 * time.Second},
		logger:           logger,
		onSessionExpired: onSessionExpired,
	}
}

// do executes one API call and returns the raw response body.
// Mutating calls carry an Idempotency-Key so operator retries are safe.
func (c *Client) do(ctx context.Context, method, path string, payload interface{}, op string, authed bool) ([]byte, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal %s request: %w", op, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if method != http.MethodGet {
		req.Header.Set("Idempotency-Key", uuid.NewString())
	}
	if authed {
		token, err := c.creds.Token()
		if err != nil {
			return nil, fmt.Errorf("failed to load credential for %s: %w", op, err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &errors.ErrNetwork{Op: op, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &errors.ErrNetwork{Op: op, Err: err}
	}

	if resp.StatusCode == http.StatusUnauthorized && authed {
		c.logger.Warn("credential rejected, clearing stored token", zap.String("op", op))
		if err := c.creds.Clear(); err != nil {
			c.logger.Error("failed to clear stored credential", zap.Error(err))
		}
		if c.onSessionExpired != nil {
			c.onSessionExpired()
		}
		return nil, &errors.ErrUnauthorized{Message: op + ": credential rejected"}
	}
	if resp.StatusCode >= 400 {
		return nil, &errors.ErrRequestFailed{Op: op, Status: resp.StatusCode, Body: string(respBody)}
	}
	return respBody, nil
}
