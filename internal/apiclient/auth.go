package apiclient

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
)

// Credentials is the login request body.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResult is the credential exchange response.
type LoginResult struct {
	Token   string `json:"token"`
	Email   string `json:"email"`
	Message string `json:"message,omitempty"`
}

// Login exchanges credentials for a token. Bad credentials come back as
// an *APIError with status 401 and the backend's detail message.
func (c *Client) Login(ctx context.Context, creds Credentials) (*LoginResult, error) {
	var res LoginResult
	err := c.do(ctx, request{
		method: http.MethodPost,
		route:  "/auth/login",
		path:   "/auth/login",
		body:   creds,
	}, &res)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// ServiceStatus fetches the status flag from an external status endpoint.
// The flag is read from "status" or "data.status", lower-cased.
func (c *Client) ServiceStatus(ctx context.Context, url string) (string, error) {
	var raw json.RawMessage
	if err := c.do(ctx, request{method: http.MethodGet, route: "status", url: url}, &raw); err != nil {
		return "", err
	}
	var body struct {
		Status string `json:"status"`
		Data   struct {
			Status string `json:"status"`
		} `json:"data"`
	}
	// Non-object bodies carry no flag.
	_ = json.Unmarshal(raw, &body)
	status := body.Status
	if status == "" {
		status = body.Data.Status
	}
	return strings.ToLower(strings.TrimSpace(status)), nil
}
