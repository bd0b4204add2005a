// Package backend is the HTTP client for the ComplianceAI service: typed
// bindings for every endpoint, a bearer-token request executor, and the
// TransportError/RemoteError failure taxonomy the retry layer classifies.
//
// One global side effect lives here and nowhere else: any response with
// status 401 synchronously clears the injected credential store and flips the
// client's session-invalidated flag before the error propagates. Every
// authenticated call, from any package, can therefore log the user out as a
// consequence of a failed request. Hosting surfaces observe Invalidated()
// (or the invalidation hook) and send the user back to login.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/levchenko/complychat/internal/credstore"
)

const (
	defaultTimeout  = 120 * time.Second
	healthTimeout   = 90 * time.Second
	registerTimeout = 60 * time.Second
)

// Client issues authenticated requests against a ComplianceAI backend.
type Client struct {
	baseURL      string
	httpClient   *http.Client
	creds        credstore.Store
	timeout      time.Duration
	invalidated  atomic.Bool
	onInvalidate func()
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient substitutes the underlying HTTP client, used by tests to
// shorten timeouts.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithInvalidationHook registers a function called after a 401 has cleared
// the credential store. The hook runs on the goroutine of the failing call.
func WithInvalidationHook(fn func()) Option {
	return func(c *Client) { c.onInvalidate = fn }
}

// WithTimeout overrides the default per-call deadline for ordinary API calls.
// Health and registration keep their own fixed deadlines.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// New creates a Client for the given base URL. Individual calls bound their
// own duration with per-endpoint deadlines, so the HTTP client itself carries
// no timeout.
func New(baseURL string, creds credstore.Store, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 0},
		creds:      creds,
		timeout:    defaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Invalidated reports whether a 401 has invalidated the session since the
// last successful authentication.
func (c *Client) Invalidated() bool { return c.invalidated.Load() }

// do executes one request: injects the bearer token when present, classifies
// transport failures, performs the 401 credential clear, and decodes a
// successful body into out (skipped when out is nil).
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshalling request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.send(req, out)
}

func (c *Client) send(req *http.Request, out any) error {
	if cred, ok := c.creds.Get(); ok {
		req.Header.Set("Authorization", "Bearer "+cred.Token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return classifyTransport(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return c.remoteError(resp)
	}
	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

func classifyTransport(err error) error {
	reason := ReasonNetwork
	var ue *url.Error
	if errors.As(err, &ue) && ue.Timeout() {
		reason = ReasonTimeout
	}
	if errors.Is(err, context.DeadlineExceeded) {
		reason = ReasonTimeout
	}
	return &TransportError{Reason: reason, Err: err}
}

// errorBody is the structured error shape the backend emits.
type errorBody struct {
	Detail  string `json:"detail"`
	Message string `json:"message"`
}

func (c *Client) remoteError(resp *http.Response) error {
	var msg string
	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err == nil {
		var eb errorBody
		if json.Unmarshal(data, &eb) == nil {
			if eb.Detail != "" {
				msg = eb.Detail
			} else {
				msg = eb.Message
			}
		}
	}

	if resp.StatusCode == http.StatusUnauthorized {
		// The only implicit state transition in the client: a rejected token
		// destroys the credential pair, whatever endpoint produced it.
		c.creds.Clear()
		if c.invalidated.CompareAndSwap(false, true) && c.onInvalidate != nil {
			c.onInvalidate()
		}
	}

	return &RemoteError{Status: resp.StatusCode, Message: msg}
}

// authResponse mirrors the token envelope from /auth/login and /auth/register.
// User is kept raw so the credential store persists exactly what the backend
// sent.
type authResponse struct {
	AccessToken string          `json:"access_token"`
	TokenType   string          `json:"token_type"`
	User        json.RawMessage `json:"user"`
}

func (c *Client) storeAuth(ar authResponse) (AuthResult, error) {
	var user UserProfile
	if err := json.Unmarshal(ar.User, &user); err != nil {
		return AuthResult{}, fmt.Errorf("decoding user profile: %w", err)
	}
	if err := c.creds.Set(ar.AccessToken, ar.User); err != nil {
		return AuthResult{}, fmt.Errorf("storing credentials: %w", err)
	}
	c.invalidated.Store(false)
	return AuthResult{Token: ar.AccessToken, User: user}, nil
}

// Login authenticates and stores the returned credential pair.
func (c *Client) Login(ctx context.Context, email, password string) (AuthResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var ar authResponse
	body := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/auth/login", body, &ar); err != nil {
		return AuthResult{}, err
	}
	return c.storeAuth(ar)
}

// Register creates an account and stores the returned credential pair.
// Registration gets a shorter deadline than ordinary calls: the backend does
// real work here but nothing that should take a minute.
func (c *Client) Register(ctx context.Context, email, password, fullName string) (AuthResult, error) {
	ctx, cancel := context.WithTimeout(ctx, registerTimeout)
	defer cancel()

	var ar authResponse
	body := map[string]string{"email": email, "password": password, "full_name": fullName}
	if err := c.do(ctx, http.MethodPost, "/auth/register", body, &ar); err != nil {
		return AuthResult{}, err
	}
	return c.storeAuth(ar)
}

// Me fetches the current profile and refreshes the cached copy wholesale,
// keeping the existing token.
func (c *Client) Me(ctx context.Context) (UserProfile, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, "/auth/me", nil, &raw); err != nil {
		return UserProfile{}, err
	}
	return c.refreshProfile(raw)
}

// UpdateProfile patches profile fields and refreshes the cached copy.
func (c *Client) UpdateProfile(ctx context.Context, update ProfileUpdate) (UserProfile, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var raw json.RawMessage
	if err := c.do(ctx, http.MethodPatch, "/auth/me", update, &raw); err != nil {
		return UserProfile{}, err
	}
	return c.refreshProfile(raw)
}

func (c *Client) refreshProfile(raw json.RawMessage) (UserProfile, error) {
	var user UserProfile
	if err := json.Unmarshal(raw, &user); err != nil {
		return UserProfile{}, fmt.Errorf("decoding user profile: %w", err)
	}
	if cred, ok := c.creds.Get(); ok {
		if err := c.creds.Set(cred.Token, raw); err != nil {
			return UserProfile{}, fmt.Errorf("refreshing cached profile: %w", err)
		}
	}
	return user, nil
}

// Upload is one file for document ingestion.
type Upload struct {
	Name    string
	Content io.Reader
}

// Ingest sends documents to the ingestion endpoint as a multipart request.
// Callers must not wrap this in a retry: re-sending a partially ingested
// batch duplicates documents on the backend.
func (c *Client) Ingest(ctx context.Context, files []Upload) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, f := range files {
		part, err := mw.CreateFormFile("files", f.Name)
		if err != nil {
			return fmt.Errorf("building multipart body: %w", err)
		}
		if _, err := io.Copy(part, f.Content); err != nil {
			return fmt.Errorf("reading %s: %w", f.Name, err)
		}
	}
	if err := mw.Close(); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/ingest/", &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return c.send(req, nil)
}

// queryRequest is the body of POST /query/. SessionID is null for the first
// message of a conversation; the backend mints an id in that case.
type queryRequest struct {
	Query     string  `json:"query"`
	SessionID *string `json:"session_id"`
}

// Query sends one user question. Pass sessionID == "" for a conversation
// that has no backend identity yet.
func (c *Client) Query(ctx context.Context, query, sessionID string) (QueryResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body := queryRequest{Query: query}
	if sessionID != "" {
		body.SessionID = &sessionID
	}
	var qr QueryResponse
	if err := c.do(ctx, http.MethodPost, "/query/", body, &qr); err != nil {
		return QueryResponse{}, err
	}
	return qr, nil
}

// HistorySessions returns the full session list for the current user.
func (c *Client) HistorySessions(ctx context.Context) ([]HistoryEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var entries []HistoryEntry
	if err := c.do(ctx, http.MethodGet, "/query/history/sessions", nil, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// HistoryMessages returns the ordered transcript of one prior session.
func (c *Client) HistoryMessages(ctx context.Context, sessionID string) ([]Message, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var msgs []Message
	if err := c.do(ctx, http.MethodGet, "/query/history/"+url.PathEscape(sessionID), nil, &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

// DemoDocument downloads the built-in demo PDF.
func (c *Client) DemoDocument(ctx context.Context) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/query/knowledge/demo/pdf", nil)
	if err != nil {
		return nil, err
	}
	if cred, ok := c.creds.Get(); ok {
		req.Header.Set("Authorization", "Bearer "+cred.Token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, classifyTransport(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, c.remoteError(resp)
	}
	return io.ReadAll(resp.Body)
}

// Health probes the health endpoint with the long cold-start deadline and
// returns the raw payload. Unlike other calls this carries no bearer token
// requirement on the backend side, but the token is attached when present.
func (c *Client) Health(ctx context.Context) (json.RawMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	var payload json.RawMessage
	if err := c.do(ctx, http.MethodGet, "/health/status", nil, &payload); err != nil {
		return nil, err
	}
	return payload, nil
}
