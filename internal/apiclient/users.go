package apiclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/me/dicer/pkg/model"
)

// ListUsers returns every managed user.
func (c *Client) ListUsers(ctx context.Context) ([]model.User, error) {
	return getList[model.User](ctx, c, "/users", "users")
}

// CountUsers returns the total number of users.
func (c *Client) CountUsers(ctx context.Context) (int, error) {
	var raw json.RawMessage
	if err := c.do(ctx, request{method: http.MethodGet, route: "/users/count", path: "/users/count", auth: true}, &raw); err != nil {
		return 0, err
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return 0, fmt.Errorf("parse /users/count response: %w", err)
	}
	v, ok := env.field("count", "total")
	if !ok {
		return 0, fmt.Errorf("parse /users/count response: no count field")
	}
	var n int
	if err := json.Unmarshal(v, &n); err != nil {
		return 0, fmt.Errorf("parse /users/count response: %w", err)
	}
	return n, nil
}

// CreateUser signs up a user. The returned user carries the generated
// password the operator hands to its owner.
func (c *Client) CreateUser(ctx context.Context, nu model.NewUser) (*model.User, error) {
	if err := nu.Validate(); err != nil {
		return nil, err
	}
	var raw json.RawMessage
	err := c.do(ctx, request{
		method: http.MethodPost,
		route:  "/users/signup",
		path:   "/users/signup",
		body:   nu,
		auth:   true,
	}, &raw)
	if err != nil {
		return nil, err
	}

	var env envelope
	_ = json.Unmarshal(raw, &env)
	body := []byte(raw)
	if v, ok := env["data"]; ok {
		body = v
	}
	var u model.User
	if err := json.Unmarshal(body, &u); err != nil {
		return nil, fmt.Errorf("parse /users/signup response: %w", err)
	}
	if u.Name == "" {
		u.Name = nu.Name
	}
	if u.Phone == "" {
		u.Phone = nu.Phone
	}
	return &u, nil
}

// DeleteUser removes a user.
func (c *Client) DeleteUser(ctx context.Context, id string) error {
	return c.do(ctx, request{
		method: http.MethodDelete,
		route:  "/users/{id}",
		path:   "/users/" + url.PathEscape(id),
		auth:   true,
	}, nil)
}

// SetUserStatus activates or deactivates a user. Activation binds the user
// to change.DeviceID.
func (c *Client) SetUserStatus(ctx context.Context, id string, change model.StatusChange) error {
	if err := change.Validate(); err != nil {
		return err
	}
	q := url.Values{}
	q.Set("status", string(change.Status))
	if change.DeviceID != "" {
		q.Set("device_id", change.DeviceID)
	}
	return c.do(ctx, request{
		method: http.MethodPatch,
		route:  "/users/{id}/status",
		path:   "/users/" + url.PathEscape(id) + "/status?" + q.Encode(),
		body:   struct{}{},
		auth:   true,
	}, nil)
}
