package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/levchenko/complychat/internal/backend"
	"github.com/levchenko/complychat/internal/retry"
)

var (
	// ErrBlank rejects messages that are empty after trimming. No message is
	// appended and no network call is made.
	ErrBlank = errors.New("message is blank")
	// ErrSendInFlight rejects a send while another is outstanding. Sends are
	// neither queued nor cancelled.
	ErrSendInFlight = errors.New("a send is already in flight")
	// ErrNotUploadMode guards transitions that only make sense before a
	// conversation has started.
	ErrNotUploadMode = errors.New("not in upload mode")
)

// Backend is the slice of the API client the controller drives.
type Backend interface {
	Query(ctx context.Context, query, sessionID string) (backend.QueryResponse, error)
	Ingest(ctx context.Context, files []backend.Upload) error
	HistorySessions(ctx context.Context) ([]backend.HistoryEntry, error)
	HistoryMessages(ctx context.Context, sessionID string) ([]backend.Message, error)
}

// HistoryCache mirrors the history list locally so it survives restarts. The
// cache is replaced wholesale on every refresh, never patched.
type HistoryCache interface {
	ReplaceHistory(entries []backend.HistoryEntry) error
}

// Controller is the session state machine. All exported methods are safe for
// concurrent use; network calls run outside the state lock, so a send and a
// history select may interleave. A generation counter fences wholesale
// session replacement: a response aimed at a session instance that has since
// been replaced is discarded instead of corrupting the new one.
type Controller struct {
	api     Backend
	cache   HistoryCache // optional
	logger  *slog.Logger
	execute func(context.Context, func(context.Context) error) error

	mu           sync.Mutex
	session      Session
	generation   uint64
	sendInFlight bool
	overlay      bool
	history      []backend.HistoryEntry

	refresh singleflight.Group
}

// ControllerOption configures a Controller.
type ControllerOption func(*Controller)

// WithHistoryCache attaches a persistent mirror for the history list.
func WithHistoryCache(c HistoryCache) ControllerOption {
	return func(ctl *Controller) { ctl.cache = c }
}

// WithLogger replaces the default slog logger.
func WithLogger(l *slog.Logger) ControllerOption {
	return func(ctl *Controller) { ctl.logger = l }
}

// NewController creates a controller in upload mode with an empty session.
func NewController(api Backend, opts ...ControllerOption) *Controller {
	ctl := &Controller{
		api:    api,
		logger: slog.Default(),
		execute: func(ctx context.Context, op func(context.Context) error) error {
			return retry.Do(ctx, op)
		},
		session: Session{Mode: ModeUpload},
	}
	for _, opt := range opts {
		opt(ctl)
	}
	return ctl
}

// Session returns a snapshot of the current session.
func (c *Controller) Session() Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.clone()
}

// Mode returns the current mode.
func (c *Controller) Mode() Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.Mode
}

// SendInFlight reports whether a send is outstanding.
func (c *Controller) SendInFlight() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sendInFlight
}

// History returns the cached history list.
func (c *Controller) History() []backend.HistoryEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]backend.HistoryEntry, len(c.history))
	copy(out, c.history)
	return out
}

// StartNew discards the current conversation and returns to upload mode.
// This is the only way back to ModeUpload once a message or an id exists.
func (c *Controller) StartNew() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.session = Session{Mode: ModeUpload}
	c.overlay = false
	c.generation++
}

// LoadDemo seeds the client-only demo conversation. No backend call is made;
// the session stays without an id until the user sends a real message.
func (c *Controller) LoadDemo() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session.Mode != ModeUpload {
		return ErrNotUploadMode
	}
	c.session = Session{
		Mode:     ModeChat,
		IsDemo:   true,
		Messages: demoMessages(),
	}
	return nil
}

// OpenUploadOverlay shows the upload surface on top of an active chat without
// discarding the conversation. The session itself stays in its current mode;
// the overlay is presentation state, which keeps "upload mode with a
// populated transcript" unrepresentable.
func (c *Controller) OpenUploadOverlay() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session.Mode != ModeUpload {
		c.overlay = true
	}
}

// CloseUploadOverlay hides the overlay.
func (c *Controller) CloseUploadOverlay() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.overlay = false
}

// UploadOverlayVisible reports whether the transient upload surface is up.
func (c *Controller) UploadOverlayVisible() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.overlay
}

// UploadDocuments sends files to the ingestion endpoint. The call is made
// exactly once: a partial multi-file upload must not be silently re-sent, so
// no retry wraps it. Success and failure both surface as a system message;
// success also moves the conversation into chat mode.
func (c *Controller) UploadDocuments(ctx context.Context, files []backend.Upload) error {
	c.mu.Lock()
	gen := c.generation
	c.mu.Unlock()

	err := c.api.Ingest(ctx, files)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generation != gen {
		// The session was replaced while the upload ran; nothing to report to.
		return err
	}
	if err != nil {
		c.appendLocked(backend.Message{
			Role:    backend.RoleSystem,
			Content: "Upload failed. Please try again.",
		})
		return err
	}
	c.appendLocked(backend.Message{
		Role:    backend.RoleSystem,
		Content: fmt.Sprintf("Successfully uploaded %d document(s). You can now ask questions about them.", len(files)),
	})
	c.overlay = false
	return nil
}

// SendMessage appends the user's text optimistically and issues the query
// under the retry policy. On success the assistant's answer is appended; if
// the session had no id yet, the backend-minted id is adopted and a history
// refresh is triggered. On terminal failure a system message reports it;
// the optimistic user message is deliberately kept, so the user always sees
// what they asked. The failure is also returned for callers that log.
func (c *Controller) SendMessage(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrBlank
	}

	c.mu.Lock()
	if c.sendInFlight {
		c.mu.Unlock()
		return ErrSendInFlight
	}
	c.sendInFlight = true
	gen := c.generation
	sessionID := c.session.ID
	c.appendLocked(backend.Message{Role: backend.RoleUser, Content: text})
	c.mu.Unlock()

	var resp backend.QueryResponse
	err := c.execute(ctx, func(ctx context.Context) error {
		var qerr error
		resp, qerr = c.api.Query(ctx, text, sessionID)
		return qerr
	})

	c.mu.Lock()
	c.sendInFlight = false
	if c.generation != gen {
		// A StartNew or history select replaced the session mid-flight; the
		// response belongs to a conversation that no longer exists.
		c.mu.Unlock()
		return err
	}

	if err != nil {
		c.appendLocked(backend.Message{
			Role:    backend.RoleSystem,
			Content: "Failed to get response. Please try again.",
		})
		c.mu.Unlock()
		return err
	}

	minted := c.session.ID == ""
	if minted {
		c.session.ID = resp.SessionID
	}
	c.appendLocked(resp.Data.AssistantMessage())
	c.mu.Unlock()

	if minted {
		// A brand-new session just appeared on the backend; refresh the list
		// so it shows up. Best effort; the send itself already succeeded.
		if _, rerr := c.RefreshHistory(ctx); rerr != nil {
			c.logger.Warn("history refresh after first message failed", "error", rerr)
		}
	}
	return nil
}

// SelectHistoryEntry loads a prior session and replaces the current one
// wholesale. Selecting the already-active session is a no-op and performs no
// fetch. The load is a single call without retry: a failed fetch is reported,
// not re-issued.
func (c *Controller) SelectHistoryEntry(ctx context.Context, sessionID string) error {
	c.mu.Lock()
	if c.session.ID == sessionID {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	msgs, err := c.api.HistoryMessages(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("loading session %s: %w", sessionID, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.session = Session{
		ID:       sessionID,
		Messages: msgs,
		Mode:     ModeHistory,
	}
	c.overlay = false
	c.generation++
	return nil
}

// RefreshHistory fetches the session list and replaces the cache wholesale.
// Concurrent refreshes are collapsed into a single fetch.
func (c *Controller) RefreshHistory(ctx context.Context) ([]backend.HistoryEntry, error) {
	v, err, _ := c.refresh.Do("history", func() (any, error) {
		entries, err := c.api.HistorySessions(ctx)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.history = entries
		c.mu.Unlock()

		if c.cache != nil {
			if cerr := c.cache.ReplaceHistory(entries); cerr != nil {
				c.logger.Warn("persisting history cache failed", "error", cerr)
			}
		}
		return entries, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]backend.HistoryEntry), nil
}

// appendLocked adds a message and moves an upload-mode session into chat:
// upload mode is only valid while the transcript is empty.
func (c *Controller) appendLocked(msg backend.Message) {
	c.session.Messages = append(c.session.Messages, msg)
	if c.session.Mode == ModeUpload {
		c.session.Mode = ModeChat
	}
}
