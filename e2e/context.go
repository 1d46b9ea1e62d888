// Package e2e drives the HTTP API end to end with godog scenarios against an
// in-process server backed by in-memory stores.
package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"regexp"
	"time"

	"landadmin/internal/app"
	identitymodels "landadmin/internal/identity/models"
	"landadmin/internal/platform/config"
	id "landadmin/pkg/domain"
)

var placeholder = regexp.MustCompile(`\{(user|land|transfer):([^}]+)\}`)

// TestContext holds one scenario's server, users and the last response.
type TestContext struct {
	app    *app.App
	server *httptest.Server
	client *http.Client

	users     map[string]*identitymodels.User
	lands     map[string]string
	transfers map[string]string
	actor     string

	lastStatus int
	lastBody   []byte
}

// NewTestContext returns an empty context; Start must run before each scenario.
func NewTestContext() *TestContext {
	return &TestContext{client: &http.Client{Timeout: 10 * time.Second}}
}

// Start boots a fresh in-memory application.
func (tc *TestContext) Start(ctx context.Context) error {
	cfg := config.Config{
		Server: config.Server{
			Environment:    "test",
			RequestTimeout: 5 * time.Second,
		},
		Auth: config.Auth{
			JWTSigningKey: "e2e-signing-key",
			JWTIssuer:     "land-admin",
			JWTAudience:   "land-admin-api",
		},
	}
	a, err := app.New(ctx, cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		return err
	}
	tc.app = a
	tc.server = httptest.NewServer(a.Handler())
	tc.users = make(map[string]*identitymodels.User)
	tc.lands = make(map[string]string)
	tc.transfers = make(map[string]string)
	tc.actor = ""
	tc.lastStatus, tc.lastBody = 0, nil
	return nil
}

// Stop shuts the server and releases the application.
func (tc *TestContext) Stop() {
	if tc.server != nil {
		tc.server.Close()
	}
	if tc.app != nil {
		tc.app.Close()
	}
}

// CreateUser stores an active user under a scenario alias.
func (tc *TestContext) CreateUser(ctx context.Context, name, role, district string) error {
	parsed, err := identitymodels.ParseRole(role)
	if err != nil {
		return err
	}
	now := time.Now()
	user := &identitymodels.User{
		ID:        id.NewUserID(),
		Email:     name + "@e2e.local",
		FirstName: name,
		Role:      parsed,
		District:  district,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := tc.app.Users.Create(ctx, user); err != nil {
		return err
	}
	tc.users[name] = user
	return nil
}

func (tc *TestContext) HasUser(name string) bool {
	_, ok := tc.users[name]
	return ok
}

// UserID returns the id of a scenario user.
func (tc *TestContext) UserID(name string) (string, error) {
	user, ok := tc.users[name]
	if !ok {
		return "", fmt.Errorf("unknown user %q", name)
	}
	return user.ID.String(), nil
}

// ActAs makes name the bearer of subsequent requests. An empty name sends
// no Authorization header.
func (tc *TestContext) ActAs(name string) error {
	if name != "" && !tc.HasUser(name) {
		return fmt.Errorf("unknown user %q", name)
	}
	tc.actor = name
	return nil
}

func (tc *TestContext) SaveLand(name, landID string) { tc.lands[name] = landID }
func (tc *TestContext) SaveTransfer(number, transferID string) { tc.transfers[number] = transferID }

// Expand replaces {user:x}, {land:x} and {transfer:x} with stored ids.
func (tc *TestContext) Expand(s string) (string, error) {
	var missing error
	out := placeholder.ReplaceAllStringFunc(s, func(m string) string {
		parts := placeholder.FindStringSubmatch(m)
		var (
			v  string
			ok bool
		)
		switch parts[1] {
		case "user":
			if u, found := tc.users[parts[2]]; found {
				v, ok = u.ID.String(), true
			}
		case "land":
			v, ok = tc.lands[parts[2]]
		case "transfer":
			v, ok = tc.transfers[parts[2]]
		}
		if !ok && missing == nil {
			missing = fmt.Errorf("no %s named %q", parts[1], parts[2])
		}
		return v
	})
	return out, missing
}

// Do sends a request as the current actor and records the response.
func (tc *TestContext) Do(method, path string, body any) error {
	status, raw, err := tc.DoAs(tc.actor, method, path, body)
	if err != nil {
		return err
	}
	tc.lastStatus, tc.lastBody = status, raw
	return nil
}

// DoAs sends a request as name without touching the recorded response.
func (tc *TestContext) DoAs(name, method, path string, body any) (int, []byte, error) {
	path, err := tc.Expand(path)
	if err != nil {
		return 0, nil, err
	}
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, nil, err
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, tc.server.URL+path, reader)
	if err != nil {
		return 0, nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if name != "" {
		user, ok := tc.users[name]
		if !ok {
			return 0, nil, fmt.Errorf("unknown user %q", name)
		}
		token, err := tc.app.Tokens.GenerateAccessToken(user.ID, user.Role.String(), time.Hour)
		if err != nil {
			return 0, nil, err
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := tc.client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, raw, nil
}

func (tc *TestContext) LastStatus() int { return tc.lastStatus }

func (tc *TestContext) LastBody() []byte { return tc.lastBody }

// LastJSON decodes the last response body into a generic map.
func (tc *TestContext) LastJSON() (map[string]any, error) {
	var out map[string]any
	if err := json.Unmarshal(tc.lastBody, &out); err != nil {
		return nil, fmt.Errorf("decode response %q: %w", string(tc.lastBody), err)
	}
	return out, nil
}
