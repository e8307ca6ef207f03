// Package client talks to the settings endpoints of the schoolhub API.
package client

import (
	"context"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// RoleRef identifies a role on the wire
type RoleRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Permission is one row of a role's permission matrix. Values are sent as typed
// by the user; the server rejects anything outside all/owned/none.
type Permission struct {
	Module string `json:"module"`
	Add    string `json:"add"`
	View   string `json:"view"`
	Update string `json:"update"`
	Delete string `json:"delete"`
}

// RoleModules is a role with its module toggle map
type RoleModules struct {
	Role    RoleRef         `json:"role"`
	Modules map[string]bool `json:"modules"`
}

// ModulesSnapshot is the result of FetchRoleModules
type ModulesSnapshot struct {
	Roles            []RoleModules
	AvailableModules []string
}

// PermissionsSnapshot is the result of FetchPermissions
type PermissionsSnapshot struct {
	Roles       []RoleRef               `json:"roles"`
	Permissions map[string][]Permission `json:"permissions"` // role id -> rows
}

type envelope struct {
	Success    bool   `json:"success"`
	StatusCode int    `json:"status_code"`
	Message    string `json:"message"`
	Error      string `json:"error"`
}

func (e envelope) text() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Error
}

type modulesEnvelope struct {
	envelope
	Data             []RoleModules `json:"data"`
	AvailableModules []string      `json:"available_modules"`
}

type saveModulesEnvelope struct {
	envelope
	Data *RoleModules `json:"data"`
}

type permissionsEnvelope struct {
	envelope
	Data PermissionsSnapshot `json:"data"`
}

// Options configures New
type Options struct {
	BaseURL    string
	Timeout    time.Duration
	RetryCount int // retries apply to GET requests only
	Token      string
}

// Client wraps the role, permission and module endpoints
type Client struct {
	http   *resty.Client
	logger *zap.Logger
}

// New creates a Client. A zero Timeout means 15s.
func New(opts Options, logger *zap.Logger) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	rc := resty.New().
		SetBaseURL(opts.BaseURL).
		SetTimeout(opts.Timeout).
		SetRetryCount(opts.RetryCount).
		SetRetryWaitTime(500*time.Millisecond).
		SetRetryMaxWaitTime(2*time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if r == nil || r.Request == nil || r.Request.Method != http.MethodGet {
				return false
			}
			return err != nil || r.StatusCode() >= 500
		}).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	if opts.Token != "" {
		rc.SetAuthToken(opts.Token)
	}

	return &Client{http: rc, logger: logger}
}

// SetToken changes the bearer token used for later calls
func (c *Client) SetToken(token string) {
	c.http.SetAuthToken(token)
}

// FetchRoleModules loads every role's module map and the server's module list
func (c *Client) FetchRoleModules(ctx context.Context) (*ModulesSnapshot, error) {
	var out modulesEnvelope
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&out).
		SetError(&envelope{}).
		Get("/api/roles/modules")
	if apiErr := c.check("fetch role modules", resp, err, out.envelope); apiErr != nil {
		return nil, apiErr
	}
	return &ModulesSnapshot{Roles: out.Data, AvailableModules: out.AvailableModules}, nil
}

// SaveRoleModules replaces a role's module map. It returns the map the server
// stored, or nil when the server did not echo it.
func (c *Client) SaveRoleModules(ctx context.Context, roleID string, modules map[string]bool) (map[string]bool, error) {
	var out saveModulesEnvelope
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("id", roleID).
		SetBody(map[string]interface{}{"modules": modules}).
		SetResult(&out).
		SetError(&envelope{}).
		Put("/api/roles/{id}/modules")
	if apiErr := c.check("save role modules", resp, err, out.envelope); apiErr != nil {
		return nil, apiErr
	}
	if out.Data == nil {
		return nil, nil
	}
	return out.Data.Modules, nil
}

// FetchPermissions loads the roles and their organized permission rows
func (c *Client) FetchPermissions(ctx context.Context) (*PermissionsSnapshot, error) {
	var out permissionsEnvelope
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&out).
		SetError(&envelope{}).
		Get("/api/roles/permissions")
	if apiErr := c.check("fetch permissions", resp, err, out.envelope); apiErr != nil {
		return nil, apiErr
	}
	if out.Data.Permissions == nil {
		out.Data.Permissions = map[string][]Permission{}
	}
	return &out.Data, nil
}

// UpdatePermissions sends a role's full permission matrix
func (c *Client) UpdatePermissions(ctx context.Context, roleID string, perms []Permission) error {
	var out envelope
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("id", roleID).
		SetBody(perms).
		SetResult(&out).
		SetError(&envelope{}).
		Put("/api/roles/{id}/permissions")
	return c.check("update permissions", resp, err, out)
}

func (c *Client) check(op string, resp *resty.Response, err error, body envelope) error {
	if err != nil {
		c.logger.Warn("settings API unreachable", zap.String("op", op), zap.Error(err))
		return &Error{Kind: KindNetwork, Err: err}
	}

	if resp.IsError() {
		msg := ""
		if e, ok := resp.Error().(*envelope); ok && e != nil {
			msg = e.text()
		}
		apiErr := &Error{Kind: kindForStatus(resp.StatusCode()), Status: resp.StatusCode(), Message: msg}
		c.logger.Warn("settings API returned error",
			zap.String("op", op),
			zap.Int("status_code", resp.StatusCode()),
			zap.String("message", msg),
		)
		return apiErr
	}

	if !body.Success {
		return &Error{Kind: KindUnknown, Status: resp.StatusCode(), Message: body.text()}
	}
	return nil
}
