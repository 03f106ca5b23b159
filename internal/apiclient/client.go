package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/meetscribe/minutes-front/internal/ioutil"
	"github.com/meetscribe/minutes-front/internal/log"
)

const maxResponseBody = 10 << 20 // 10MB

// TokenSource provides and revokes the API bearer token for a browser
// session. Satisfied by storage.Store.
type TokenSource interface {
	GetToken(ctx context.Context, sid string) (string, error)
	ClearToken(ctx context.Context, sid string) error
}

// RequestOptions carries the per-request auth-handling flags. An explicit
// struct rather than mutable state on a shared config so the retry guard
// can't leak between requests.
type RequestOptions struct {
	// SkipAuthRefresh bypasses bearer attachment and all 401 handling.
	// Set on endpoints usable by unauthenticated visitors (invitation
	// validation) where a 401 is an answer, not a session problem.
	SkipAuthRefresh bool

	// CacheBust adds no-cache headers and a timestamp query parameter.
	// Used on session verification so a cached response can't mask an
	// expired session.
	CacheBust bool
}

// Client calls the meeting-minutes backend API on behalf of browser
// sessions, attaching each session's bearer token and intercepting 401s.
type Client struct {
	baseURL string
	http    *http.Client
	tokens  TokenSource
}

// New creates an API client for the backend at baseURL
func New(baseURL string, timeout time.Duration, tokens TokenSource) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		tokens:  tokens,
	}
}

// isAuthEndpoint classifies paths where a 401 means the session itself is
// dead. A 401 anywhere else is treated as a permission nuance and must not
// log the user out.
func isAuthEndpoint(path string) bool {
	return strings.HasPrefix(path, "/api/auth/") || strings.HasPrefix(path, "/oauth2/")
}

type requestSpec struct {
	method      string
	path        string
	query       url.Values
	body        []byte
	contentType string
	opts        RequestOptions
}

func (c *Client) buildRequest(ctx context.Context, spec requestSpec, token string) (*http.Request, error) {
	target := c.baseURL + spec.path

	query := url.Values{}
	for key, values := range spec.query {
		query[key] = values
	}
	if spec.opts.CacheBust {
		query.Set("_", strconv.FormatInt(time.Now().UnixMilli(), 10))
	}
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var body io.Reader
	if spec.body != nil {
		body = bytes.NewReader(spec.body)
	}

	req, err := http.NewRequestWithContext(ctx, spec.method, target, body)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}

	if spec.contentType != "" {
		req.Header.Set("Content-Type", spec.contentType)
	}
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if spec.opts.CacheBust {
		req.Header.Set("Cache-Control", "no-cache")
		req.Header.Set("Pragma", "no-cache")
	}
	return req, nil
}

// do issues the request for sid and decodes the JSON response into out.
//
// 401 handling: a request is retried at most once. When the failing endpoint
// is auth-specific and a token was attached, the token is cleared and the
// error wraps ErrSessionExpired; on resource endpoints the session is left
// intact and the 401 is surfaced to the caller.
func (c *Client) do(ctx context.Context, sid string, spec requestSpec, out any) error {
	retried := false
	for {
		token := ""
		if !spec.opts.SkipAuthRefresh && sid != "" {
			// storage-unavailable degrades silently to "no token"
			if t, err := c.tokens.GetToken(ctx, sid); err == nil {
				token = t
			}
		}

		req, err := c.buildRequest(ctx, spec, token)
		if err != nil {
			return err
		}

		log.LogTraceWithFields("apiclient", "Outgoing request", map[string]any{
			"method":     spec.method,
			"endpoint":   spec.path,
			"with_token": token != "",
		})

		resp, err := c.http.Do(req)
		if err != nil {
			return fmt.Errorf("calling %s %s: %w", spec.method, spec.path, err)
		}

		if resp.StatusCode == http.StatusUnauthorized {
			snippet := ioutil.ReadLimited(resp.Body, 1024)
			resp.Body.Close()

			apiErr := &APIError{
				StatusCode: http.StatusUnauthorized,
				Message:    snippet,
				Endpoint:   spec.path,
			}
			if spec.opts.SkipAuthRefresh || retried {
				return apiErr
			}
			retried = true

			if token != "" && isAuthEndpoint(spec.path) {
				if err := c.tokens.ClearToken(ctx, sid); err != nil {
					log.LogError("clearing expired token: %v", err)
				}
				apiErr.wrapped = ErrSessionExpired
				return apiErr
			}

			// Resource endpoint: possibly a permission nuance, not an
			// expired session. Keep the session, retry once in case a
			// fresh token landed in the store meanwhile.
			log.LogWarnWithFields("apiclient", "401 on resource endpoint, session preserved", map[string]any{
				"endpoint": spec.path,
			})
			continue
		}

		return c.finish(resp, spec, out)
	}
}

func (c *Client) finish(resp *http.Response, spec requestSpec, out any) error {
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    ioutil.ReadLimited(resp.Body, 1024),
			Endpoint:   spec.path,
		}
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return fmt.Errorf("reading response from %s: %w", spec.path, err)
	}
	if err := decodeBody(body, out); err != nil {
		return fmt.Errorf("decoding response from %s: %w", spec.path, err)
	}
	return nil
}

// decodeBody unmarshals body into out, unwrapping a {"data": ...} envelope
// when the backend uses one
func decodeBody(body []byte, out any) error {
	if len(body) == 0 {
		return nil
	}
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && len(envelope.Data) > 0 {
		body = envelope.Data
	}
	return json.Unmarshal(body, out)
}

func (c *Client) get(ctx context.Context, sid, path string, query url.Values, opts RequestOptions, out any) error {
	return c.do(ctx, sid, requestSpec{
		method: http.MethodGet,
		path:   path,
		query:  query,
		opts:   opts,
	}, out)
}

func (c *Client) postJSON(ctx context.Context, sid, path string, payload any, opts RequestOptions, out any) error {
	var body []byte
	if payload != nil {
		var err error
		body, err = json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encoding request for %s: %w", path, err)
		}
	}
	return c.do(ctx, sid, requestSpec{
		method:      http.MethodPost,
		path:        path,
		body:        body,
		contentType: "application/json",
		opts:        opts,
	}, out)
}

// doRaw issues the request and returns the open response body. Used for
// document downloads where the payload is passed through untouched. The
// caller must close the body.
func (c *Client) doRaw(ctx context.Context, sid string, spec requestSpec) (*http.Response, error) {
	token := ""
	if !spec.opts.SkipAuthRefresh && sid != "" {
		if t, err := c.tokens.GetToken(ctx, sid); err == nil {
			token = t
		}
	}

	req, err := c.buildRequest(ctx, spec, token)
	if err != nil {
		return nil, err
	}
	req.Header.Del("Accept")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling %s %s: %w", spec.method, spec.path, err)
	}
	if resp.StatusCode >= 400 {
		apiErr := &APIError{
			StatusCode: resp.StatusCode,
			Message:    ioutil.ReadLimited(resp.Body, 1024),
			Endpoint:   spec.path,
		}
		resp.Body.Close()
		return nil, apiErr
	}
	return resp, nil
}

// BaseURL returns the backend base URL. Login needs it to build the
// full-page navigation to the backend's authorization endpoint.
func (c *Client) BaseURL() string {
	return c.baseURL
}
