package devserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/levchenko/complychat/internal/backend"
	"github.com/levchenko/complychat/internal/chat"
	"github.com/levchenko/complychat/internal/credstore"
)

func newTestClient(t *testing.T) (*backend.Client, *Server, *credstore.Memory) {
	t.Helper()
	s := New()
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	creds := credstore.NewMemory()
	return backend.New(srv.URL, creds), s, creds
}

func register(t *testing.T, c *backend.Client) backend.AuthResult {
	t.Helper()
	res, err := c.Register(context.Background(), "ada@example.com", "longenough", "Ada")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	return res
}

func TestRegisterAndLogin(t *testing.T) {
	c, _, creds := newTestClient(t)

	res := register(t, c)
	if res.User.Email != "ada@example.com" {
		t.Errorf("email = %q", res.User.Email)
	}
	if res.User.AgentPersona != backend.PersonaStrictFormal {
		t.Errorf("default persona = %q", res.User.AgentPersona)
	}
	if _, ok := creds.Get(); !ok {
		t.Fatal("registration did not store credentials")
	}

	// Same account logs back in.
	creds.Clear()
	if _, err := c.Login(context.Background(), "ada@example.com", "longenough"); err != nil {
		t.Fatalf("Login: %v", err)
	}
}

func TestRegister_ShortPassword(t *testing.T) {
	c, _, _ := newTestClient(t)
	_, err := c.Register(context.Background(), "a@b.c", "short", "Ada")
	if got := backend.StatusCode(err); got != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", got)
	}
}

func TestRegister_DuplicateEmail(t *testing.T) {
	c, _, _ := newTestClient(t)
	register(t, c)
	_, err := c.Register(context.Background(), "ada@example.com", "longenough", "Ada")
	if got := backend.StatusCode(err); got != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", got)
	}
}

func TestLogin_WrongPassword(t *testing.T) {
	c, _, _ := newTestClient(t)
	register(t, c)

	_, err := c.Login(context.Background(), "ada@example.com", "wrong-password")
	if err == nil || !strings.Contains(err.Error(), "Incorrect email or password") {
		t.Errorf("err = %v, want credential message", err)
	}
	if got := backend.StatusCode(err); got != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", got)
	}
}

func TestProfileUpdate(t *testing.T) {
	c, _, _ := newTestClient(t)
	register(t, c)

	persona := backend.PersonaEducational
	user, err := c.UpdateProfile(context.Background(), backend.ProfileUpdate{AgentPersona: &persona})
	if err != nil {
		t.Fatalf("UpdateProfile: %v", err)
	}
	if user.AgentPersona != backend.PersonaEducational {
		t.Errorf("persona = %q", user.AgentPersona)
	}
	if user.FullName != "Ada" {
		t.Errorf("untouched field changed: %q", user.FullName)
	}

	// The change sticks.
	user, err = c.Me(context.Background())
	if err != nil {
		t.Fatalf("Me: %v", err)
	}
	if user.AgentPersona != backend.PersonaEducational {
		t.Errorf("persisted persona = %q", user.AgentPersona)
	}
}

func TestAuthRequired(t *testing.T) {
	c, _, _ := newTestClient(t)
	_, err := c.HistorySessions(context.Background())
	if got := backend.StatusCode(err); got != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", got)
	}
}

func TestRevokedTokenInvalidatesClient(t *testing.T) {
	c, s, creds := newTestClient(t)
	register(t, c)
	s.RevokeTokens()

	_, err := c.Me(context.Background())
	if got := backend.StatusCode(err); got != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", got)
	}
	if _, ok := creds.Get(); ok {
		t.Error("credentials survived revocation")
	}
	if !c.Invalidated() {
		t.Error("client not marked invalidated")
	}
}

func TestHealth(t *testing.T) {
	c, _, _ := newTestClient(t)
	payload, err := c.Health(context.Background())
	if err != nil {
		t.Fatalf("Health: %v", err)
	}
	var body map[string]string
	if err := json.Unmarshal(payload, &body); err != nil {
		t.Fatal(err)
	}
	if body["status"] != "healthy" {
		t.Errorf("status = %q", body["status"])
	}
}

func TestDemoPDF(t *testing.T) {
	c, _, _ := newTestClient(t)
	register(t, c)

	data, err := c.DemoDocument(context.Background())
	if err != nil {
		t.Fatalf("DemoDocument: %v", err)
	}
	if !strings.HasPrefix(string(data), "%PDF") {
		t.Error("demo document is not a PDF")
	}
}

// TestConversationFlow drives the real controller against the stub through
// the real HTTP client: upload, first send minting an id, a follow-up on the
// same session, history listing, and reloading the transcript.
func TestConversationFlow(t *testing.T) {
	c, _, _ := newTestClient(t)
	register(t, c)
	ctx := context.Background()

	ctl := chat.NewController(c)

	err := ctl.UploadDocuments(ctx, []backend.Upload{
		{Name: "guidelines.pdf", Content: strings.NewReader("content")},
	})
	if err != nil {
		t.Fatalf("UploadDocuments: %v", err)
	}
	if ctl.Mode() != chat.ModeChat {
		t.Fatalf("mode after upload = %v", ctl.Mode())
	}

	if err := ctl.SendMessage(ctx, "Are we compliant with section 4?"); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	session := ctl.Session()
	if session.ID == "" {
		t.Fatal("no session id minted")
	}
	firstID := session.ID

	if err := ctl.SendMessage(ctx, "What about section 5?"); err != nil {
		t.Fatalf("second SendMessage: %v", err)
	}
	if got := ctl.Session().ID; got != firstID {
		t.Errorf("session id changed from %q to %q", firstID, got)
	}
	// upload system msg + 2 user/assistant pairs
	if got := len(ctl.Session().Messages); got != 5 {
		t.Errorf("got %d messages, want 5", got)
	}

	entries := ctl.History()
	if len(entries) != 1 || entries[0].SessionID != firstID {
		t.Fatalf("history = %v", entries)
	}
	if !strings.Contains(entries[0].Preview, "section 4") {
		t.Errorf("preview = %q, want first user message", entries[0].Preview)
	}

	// Start over, then reload the old session from history.
	ctl.StartNew()
	if err := ctl.SelectHistoryEntry(ctx, firstID); err != nil {
		t.Fatalf("SelectHistoryEntry: %v", err)
	}
	session = ctl.Session()
	if session.Mode != chat.ModeHistory {
		t.Errorf("mode = %v, want history", session.Mode)
	}
	// The backend transcript has the 4 query messages; the local upload
	// notice was client-side only.
	if len(session.Messages) != 4 {
		t.Errorf("got %d messages, want 4", len(session.Messages))
	}
}

func TestHistoryIsolationBetweenUsers(t *testing.T) {
	s := New()
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()
	ctx := context.Background()

	alice := backend.New(srv.URL, credstore.NewMemory())
	if _, err := alice.Register(ctx, "alice@example.com", "password1", "Alice"); err != nil {
		t.Fatal(err)
	}
	if _, err := alice.Query(ctx, "alice's question", ""); err != nil {
		t.Fatal(err)
	}

	bob := backend.New(srv.URL, credstore.NewMemory())
	if _, err := bob.Register(ctx, "bob@example.com", "password2", "Bob"); err != nil {
		t.Fatal(err)
	}

	entries, err := bob.HistorySessions(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("bob sees %d of alice's sessions", len(entries))
	}
}
