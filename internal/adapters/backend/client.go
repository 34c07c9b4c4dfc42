// Package backend implements the ESG Checklist REST API client used by the console.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-retryablehttp"
	domainauth "github.com/target/esg-checklist-ui/internal/domain/auth"
)

const (
	loginPath  = "/api/auth/login"
	mePath     = "/api/auth/me"
	logoutPath = "/api/auth/logout"

	maxErrorBody = 64 << 10
	userAgent    = "esg-console"
)

// ClientOptions configures a Client.
type ClientOptions struct {
	BaseURL string
	Timeout time.Duration
	// RetryMax bounds retries for resource reads. Auth calls are never retried here.
	RetryMax     int
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
	// HTTPClient overrides the transport used for every call (tests).
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Client talks to the backend REST API.
type Client struct {
	base      *url.URL
	http      *http.Client
	resources *retryablehttp.Client
	logger    *slog.Logger
}

// NewClient constructs a Client.
func NewClient(opts ClientOptions) (*Client, error) {
	if strings.TrimSpace(opts.BaseURL) == "" {
		return nil, errors.New("backend base URL is required")
	}
	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse backend base URL: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("backend base URL must be http or https, got %q", base.Scheme)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	hc := opts.HTTPClient
	if hc == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		hc = &http.Client{Timeout: timeout}
	}

	rc := retryablehttp.NewClient()
	rc.HTTPClient = hc
	rc.RetryMax = opts.RetryMax
	if opts.RetryWaitMin > 0 {
		rc.RetryWaitMin = opts.RetryWaitMin
	}
	if opts.RetryWaitMax > 0 {
		rc.RetryWaitMax = opts.RetryWaitMax
	}
	rc.Logger = logger
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler

	return &Client{base: base, http: hc, resources: rc, logger: logger}, nil
}

// BaseURL returns the configured backend base URL.
func (c *Client) BaseURL() string { return c.base.String() }

// Login exchanges credentials for a bearer token.
func (c *Client) Login(ctx context.Context, creds domainauth.Credentials) (domainauth.TokenGrant, error) {
	body, err := json.Marshal(creds)
	if err != nil {
		return domainauth.TokenGrant{}, domainauth.NewFailure(domainauth.FailureValidation, domainauth.MsgLoginFailed, err)
	}
	req, err := c.newRequest(ctx, http.MethodPost, loginPath, "", bytes.NewReader(body))
	if err != nil {
		return domainauth.TokenGrant{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return domainauth.TokenGrant{}, networkFailure(err)
	}
	defer drain(resp)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return domainauth.TokenGrant{}, decodeFailure(resp, domainauth.MsgLoginFailed)
	}

	var grant domainauth.TokenGrant
	if err = json.NewDecoder(resp.Body).Decode(&grant); err != nil {
		return domainauth.TokenGrant{}, domainauth.NewFailure(domainauth.FailureValidation, "The server returned a malformed login response.", err)
	}
	if strings.TrimSpace(grant.AccessToken) == "" {
		return domainauth.TokenGrant{}, domainauth.NewFailure(domainauth.FailureValidation, "The server did not return an access token.", nil)
	}
	return grant, nil
}

// CurrentUser returns the identity the token belongs to. Any non-2xx answer is
// reported as a Failure; 401/403 map to FailureCredential.
func (c *Client) CurrentUser(ctx context.Context, token string) (domainauth.User, error) {
	req, err := c.newRequest(ctx, http.MethodGet, mePath, token, nil)
	if err != nil {
		return domainauth.User{}, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return domainauth.User{}, networkFailure(err)
	}
	defer drain(resp)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return domainauth.User{}, decodeFailure(resp, "Your session has expired. Please sign in again.")
	}

	var payload identityPayload
	if err = json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return domainauth.User{}, domainauth.NewFailure(domainauth.FailureValidation, domainauth.MsgInvalidIdentity, err)
	}
	user := payload.user()
	if !user.Complete() {
		return domainauth.User{}, domainauth.NewFailure(domainauth.FailureValidation, domainauth.MsgInvalidIdentity, nil)
	}
	return user, nil
}

// Logout invalidates the token server-side. Callers treat failures as best effort.
func (c *Client) Logout(ctx context.Context, token string) error {
	req, err := c.newRequest(ctx, http.MethodPost, logoutPath, token, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return networkFailure(err)
	}
	defer drain(resp)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeFailure(resp, "Logout failed.")
	}
	return nil
}

// GetJSON issues an authenticated GET against path and decodes the response into out.
// Transient failures (connection errors, 429, 5xx) are retried.
func (c *Client) GetJSON(ctx context.Context, path, token string, out any) error {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, c.resolve(path), nil)
	if err != nil {
		return domainauth.NewFailure(domainauth.FailureValidation, domainauth.MsgRequestFailed, err)
	}
	c.decorate(req.Header, token)

	// PassthroughErrorHandler hands back the last response once retries are exhausted.
	resp, err := c.resources.Do(req)
	if err != nil && resp == nil {
		return networkFailure(err)
	}
	defer drain(resp)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeFailure(resp, domainauth.MsgRequestFailed)
	}
	if out == nil {
		return nil
	}
	if err = json.NewDecoder(resp.Body).Decode(out); err != nil {
		return domainauth.NewFailure(domainauth.FailureValidation, "The server returned a malformed response.", err)
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, path, token string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.resolve(path), body)
	if err != nil {
		return nil, domainauth.NewFailure(domainauth.FailureValidation, domainauth.MsgRequestFailed, err)
	}
	c.decorate(req.Header, token)
	return req, nil
}

func (c *Client) decorate(h http.Header, token string) {
	h.Set("Accept", "application/json")
	h.Set("User-Agent", userAgent)
	h.Set("X-Request-ID", uuid.NewString())
	if token != "" {
		h.Set("Authorization", "Bearer "+token)
	}
}

// resolve joins path onto the base URL, keeping any query string in path.
func (c *Client) resolve(path string) string {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return c.base.String() + path
}

func drain(resp *http.Response) {
	if resp == nil || resp.Body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
	_ = resp.Body.Close()
}

func networkFailure(err error) *domainauth.Failure {
	return domainauth.NewFailure(domainauth.FailureNetwork, domainauth.MsgNetworkFailure, err)
}

// errorPayload covers both `{"message": "..."}` and FastAPI-style `{"detail": ...}` bodies.
type errorPayload struct {
	Message string          `json:"message"`
	Detail  json.RawMessage `json:"detail"`
}

// decodeFailure maps a non-2xx response to a Failure, preferring the payload's
// message field, then detail, then fallback.
func decodeFailure(resp *http.Response, fallback string) *domainauth.Failure {
	f := &domainauth.Failure{
		Kind:    kindForStatus(resp.StatusCode),
		Status:  resp.StatusCode,
		Message: fallback,
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil || len(data) == 0 {
		return f
	}
	var p errorPayload
	if json.Unmarshal(data, &p) != nil {
		return f
	}
	if msg := strings.TrimSpace(p.Message); msg != "" {
		f.Message = msg
		return f
	}
	if msg := detailMessage(p.Detail); msg != "" {
		f.Message = msg
	}
	return f
}

// detailMessage extracts text from a detail field that is either a string or
// a list of validation errors carrying "msg".
func detailMessage(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return strings.TrimSpace(s)
	}
	var items []struct {
		Msg string `json:"msg"`
	}
	if json.Unmarshal(raw, &items) == nil {
		msgs := make([]string, 0, len(items))
		for _, it := range items {
			if m := strings.TrimSpace(it.Msg); m != "" {
				msgs = append(msgs, m)
			}
		}
		return strings.Join(msgs, "; ")
	}
	return ""
}

func kindForStatus(status int) domainauth.FailureKind {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return domainauth.FailureCredential
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		return domainauth.FailureValidation
	default:
		return domainauth.FailureServer
	}
}

// identityPayload tolerates numeric or string ids.
type identityPayload struct {
	ID    json.RawMessage `json:"id"`
	Email string          `json:"email"`
	Role  string          `json:"role"`
	Name  string          `json:"name"`
}

func (p identityPayload) user() domainauth.User {
	return domainauth.User{
		ID:    rawID(p.ID),
		Email: strings.TrimSpace(p.Email),
		Role:  domainauth.Role(strings.ToLower(strings.TrimSpace(p.Role))),
		Name:  strings.TrimSpace(p.Name),
	}
}

func rawID(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return strings.TrimSpace(s)
	}
	var n json.Number
	if json.Unmarshal(raw, &n) == nil {
		return n.String()
	}
	return ""
}
