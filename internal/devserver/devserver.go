// Package devserver is an in-memory stand-in for the ComplianceAI backend.
// It implements the same wire contract (auth, ingestion, query, history,
// health) with canned assessments, so the client can be developed and
// integration-tested without a real deployment. Nothing here persists.
package devserver

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/levchenko/complychat/internal/backend"
)

const maxIngestBodySize = 50 << 20 // 50MB

type account struct {
	profile  backend.UserProfile
	password string
}

type conversation struct {
	id       string
	owner    string // account email
	messages []backend.Message
	created  time.Time
}

// Server holds the in-memory state behind the stub handlers.
type Server struct {
	mu       sync.Mutex
	accounts map[string]*account      // email → account
	tokens   map[string]string        // bearer token → email
	convos   map[string]*conversation // session id → conversation
	order    []string                 // session ids, newest first
}

func New() *Server {
	return &Server{
		accounts: make(map[string]*account),
		tokens:   make(map[string]string),
		convos:   make(map[string]*conversation),
	}
}

// Handler returns the full route tree.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Post("/auth/login", s.handleLogin)
	r.Post("/auth/register", s.handleRegister)
	r.Get("/health/status", s.handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(s.requireAuth)
		r.Get("/auth/me", s.handleMe)
		r.Patch("/auth/me", s.handlePatchMe)
		r.Post("/ingest/", s.handleIngest)
		r.Post("/query/", s.handleQuery)
		r.Get("/query/history/sessions", s.handleHistorySessions)
		r.Get("/query/history/{id}", s.handleHistoryMessages)
		r.Get("/query/knowledge/demo/pdf", s.handleDemoPDF)
	})

	return r
}

// httpError mirrors the FastAPI error envelope the real backend produces.
func httpError(w http.ResponseWriter, code int, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]any{
		"detail": fmt.Sprintf(format, args...),
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		const prefix = "Bearer "
		if !strings.HasPrefix(auth, prefix) {
			httpError(w, http.StatusUnauthorized, "invalid or missing bearer token")
			return
		}
		s.mu.Lock()
		email, ok := s.tokens[auth[len(prefix):]]
		s.mu.Unlock()
		if !ok {
			httpError(w, http.StatusUnauthorized, "invalid or missing bearer token")
			return
		}
		next.ServeHTTP(w, r.WithContext(withEmail(r.Context(), email)))
	})
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest, "invalid request body: %v", err)
		return
	}

	s.mu.Lock()
	acc, ok := s.accounts[req.Email]
	if !ok || acc.password != req.Password {
		s.mu.Unlock()
		httpError(w, http.StatusUnauthorized, "Incorrect email or password")
		return
	}
	token := s.issueTokenLocked(req.Email)
	profile := acc.profile
	s.mu.Unlock()

	writeJSON(w, map[string]any{
		"access_token": token,
		"token_type":   "bearer",
		"user":         profile,
	})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest, "invalid request body: %v", err)
		return
	}
	if req.Email == "" || len(req.Password) < 8 {
		httpError(w, http.StatusUnprocessableEntity, "email and a password of at least 8 characters are required")
		return
	}

	s.mu.Lock()
	if _, exists := s.accounts[req.Email]; exists {
		s.mu.Unlock()
		httpError(w, http.StatusBadRequest, "Email already registered")
		return
	}
	acc := &account{
		password: req.Password,
		profile: backend.UserProfile{
			ID:           uuid.NewString(),
			Email:        req.Email,
			FullName:     req.FullName,
			AgentPersona: backend.PersonaStrictFormal,
			CreatedAt:    time.Now().UTC(),
			IsActive:     true,
		},
	}
	s.accounts[req.Email] = acc
	token := s.issueTokenLocked(req.Email)
	profile := acc.profile
	s.mu.Unlock()

	writeJSON(w, map[string]any{
		"access_token": token,
		"token_type":   "bearer",
		"user":         profile,
	})
}

func (s *Server) issueTokenLocked(email string) string {
	token := uuid.NewString()
	s.tokens[token] = email
	return token
}

// RevokeTokens invalidates every issued token, used by tests to provoke the
// client's 401 handling.
func (s *Server) RevokeTokens() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens = make(map[string]string)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	acc := s.accounts[emailFrom(r.Context())]
	profile := acc.profile
	s.mu.Unlock()
	writeJSON(w, profile)
}

func (s *Server) handlePatchMe(w http.ResponseWriter, r *http.Request) {
	var update backend.ProfileUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		httpError(w, http.StatusBadRequest, "invalid request body: %v", err)
		return
	}

	s.mu.Lock()
	acc := s.accounts[emailFrom(r.Context())]
	if update.FullName != nil {
		acc.profile.FullName = *update.FullName
	}
	if update.AgentPersona != nil {
		acc.profile.AgentPersona = *update.AgentPersona
	}
	profile := acc.profile
	s.mu.Unlock()

	writeJSON(w, profile)
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxIngestBodySize)
	if err := r.ParseMultipartForm(maxIngestBodySize); err != nil {
		httpError(w, http.StatusBadRequest, "invalid multipart body: %v", err)
		return
	}
	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		httpError(w, http.StatusUnprocessableEntity, "no files provided")
		return
	}
	writeJSON(w, map[string]any{"ingested": len(files)})
}

type queryRequest struct {
	Query     string  `json:"query"`
	SessionID *string `json:"session_id"`
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest, "invalid request body: %v", err)
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		httpError(w, http.StatusUnprocessableEntity, "query must not be empty")
		return
	}

	email := emailFrom(r.Context())

	s.mu.Lock()
	var convo *conversation
	if req.SessionID != nil {
		convo = s.convos[*req.SessionID]
	}
	if convo == nil {
		convo = &conversation{
			id:      uuid.NewString(),
			owner:   email,
			created: time.Now().UTC(),
		}
		s.convos[convo.id] = convo
		s.order = append([]string{convo.id}, s.order...)
	}

	assessment := cannedAssessment(req.Query)
	convo.messages = append(convo.messages,
		backend.Message{Role: backend.RoleUser, Content: req.Query},
		assessment.AssistantMessage(),
	)
	id := convo.id
	s.mu.Unlock()

	writeJSON(w, backend.QueryResponse{SessionID: id, Data: assessment})
}

func (s *Server) handleHistorySessions(w http.ResponseWriter, r *http.Request) {
	email := emailFrom(r.Context())

	s.mu.Lock()
	entries := []backend.HistoryEntry{}
	for _, id := range s.order {
		convo := s.convos[id]
		if convo.owner != email {
			continue
		}
		entries = append(entries, backend.HistoryEntry{
			SessionID: id,
			Preview:   preview(convo.messages),
		})
	}
	s.mu.Unlock()

	writeJSON(w, entries)
}

func (s *Server) handleHistoryMessages(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	s.mu.Lock()
	convo, ok := s.convos[id]
	var msgs []backend.Message
	if ok && convo.owner == emailFrom(r.Context()) {
		msgs = append(msgs, convo.messages...)
	}
	s.mu.Unlock()

	if msgs == nil {
		httpError(w, http.StatusNotFound, "session not found")
		return
	}
	writeJSON(w, msgs)
}

func (s *Server) handleDemoPDF(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/pdf")
	w.Write(demoPDF)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{
		"status":  "healthy",
		"service": "complianceai-devserver",
	})
}

// preview is the first user message, truncated, matching how the real
// backend labels sessions in the history list.
func preview(msgs []backend.Message) string {
	for _, m := range msgs {
		if m.Role == backend.RoleUser {
			if len(m.Content) > 60 {
				return m.Content[:60] + "…"
			}
			return m.Content
		}
	}
	return "(empty session)"
}

func cannedAssessment(query string) backend.Assessment {
	return backend.Assessment{
		Response:         fmt.Sprintf("Based on the Compliance Auditing Guidelines, here is an assessment of: %s", query),
		Status:           "Compliant",
		Reasoning:        "The uploaded guidelines cover this topic directly.",
		ConversationType: "analysis",
		Sources: []backend.Source{
			{
				DocumentName:   "Compliance Auditing Guidelines",
				Excerpt:        "Compliance auditing assesses whether activities conform to applicable authorities.",
				RelevanceScore: 0.92,
			},
		},
		FollowUpQuestions: []string{
			"What evidence should auditors collect for this?",
			"How does materiality apply here?",
		},
	}
}
