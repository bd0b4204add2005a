package backend

import "time"

// Agent persona values understood by the backend.
const (
	PersonaStrictFormal = "strict_formal"
	PersonaEducational  = "educational"
	PersonaRiskFocused  = "risk_focused"
	PersonaConcise      = "concise"
)

// Personas lists the selectable agent personas in display order.
var Personas = []string{
	PersonaStrictFormal,
	PersonaEducational,
	PersonaRiskFocused,
	PersonaConcise,
}

// UserProfile is the backend-owned user record. The client caches the most
// recent copy and replaces it wholesale on every fetch or update.
type UserProfile struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	FullName     string    `json:"full_name"`
	AgentPersona string    `json:"agent_persona"`
	CreatedAt    time.Time `json:"created_at"`
	IsActive     bool      `json:"is_active"`
}

// ProfileUpdate carries the fields PATCH /auth/me accepts. Nil fields are
// omitted and left untouched by the backend.
type ProfileUpdate struct {
	FullName     *string `json:"full_name,omitempty"`
	AgentPersona *string `json:"agent_persona,omitempty"`
}

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Message is one entry in a conversation transcript. Messages are append-only:
// once inserted into a session they are never mutated.
type Message struct {
	Role              string   `json:"role"`
	Content           string   `json:"content"`
	Status            string   `json:"status,omitempty"`
	Reasoning         string   `json:"reasoning,omitempty"`
	Sources           []Source `json:"sources,omitempty"`
	FollowUpQuestions []string `json:"follow_up_questions,omitempty"`
}

// Source is a document citation attached to an assistant answer.
type Source struct {
	DocumentName   string  `json:"document_name"`
	Excerpt        string  `json:"excerpt"`
	RelevanceScore float64 `json:"relevance_score"`
}

// Assessment is the structured answer inside a query response.
type Assessment struct {
	Response          string   `json:"response"`
	Status            string   `json:"status,omitempty"`
	Reasoning         string   `json:"reasoning,omitempty"`
	RelevantClauses   []string `json:"relevant_clauses,omitempty"`
	Sources           []Source `json:"sources,omitempty"`
	ConversationType  string   `json:"conversation_type,omitempty"`
	FollowUpQuestions []string `json:"follow_up_questions,omitempty"`
}

// AssistantMessage converts an assessment into the transcript message the
// session accumulates.
func (a Assessment) AssistantMessage() Message {
	return Message{
		Role:              RoleAssistant,
		Content:           a.Response,
		Status:            a.Status,
		Reasoning:         a.Reasoning,
		Sources:           a.Sources,
		FollowUpQuestions: a.FollowUpQuestions,
	}
}

// QueryResponse is the reply to POST /query/. SessionID is always set; for a
// brand-new conversation it is the id the backend just minted.
type QueryResponse struct {
	SessionID string     `json:"session_id"`
	Data      Assessment `json:"data"`
}

// HistoryEntry is one row of the user's session list.
type HistoryEntry struct {
	SessionID string `json:"session_id"`
	Preview   string `json:"preview"`
}

// AuthResult is the outcome of a successful login or registration.
type AuthResult struct {
	Token string
	User  UserProfile
}
