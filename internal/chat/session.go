// Package chat is the session controller: the state machine behind the
// conversational surface. It owns the current session (identity, transcript,
// mode), performs sends with optimistic appends, seeds the demo session, and
// keeps the history-list cache.
package chat

import (
	"github.com/levchenko/complychat/internal/backend"
)

// Mode is the controller's coarse state.
type Mode int

const (
	// ModeUpload: no backend-known session yet; the surface offers document
	// upload or the demo. Only valid while the transcript is empty and no
	// session id has been minted.
	ModeUpload Mode = iota
	// ModeChat: an active conversation, possibly not yet known to the backend.
	ModeChat
	// ModeHistory: a prior session loaded from the history list. Operationally
	// identical to ModeChat: sends continue against the loaded id.
	ModeHistory
)

func (m Mode) String() string {
	switch m {
	case ModeUpload:
		return "upload"
	case ModeChat:
		return "chat"
	case ModeHistory:
		return "history"
	}
	return "unknown"
}

// Session is one logical conversation. ID is empty until the backend mints an
// identity on the first successful send. Messages are append-only.
type Session struct {
	ID       string
	Messages []backend.Message
	Mode     Mode
	IsDemo   bool
}

// clone returns a copy whose message slice is detached from the original.
func (s Session) clone() Session {
	out := s
	out.Messages = make([]backend.Message, len(s.Messages))
	copy(out.Messages, s.Messages)
	return out
}

// Demo session seed content. The demo is entirely client-side: no backend
// session exists until the user sends a message of their own.
const (
	demoSystemText = `Demo document loaded: "Compliance Auditing Guidelines – C&AG of India". You can now ask questions about compliance auditing!`
	demoWelcome    = "Welcome! I've loaded the Compliance Auditing Guidelines. Here are some questions you can ask:"
)

var demoFollowUps = []string{
	"What are the key principles of compliance auditing?",
	"What is the role of internal controls in compliance auditing?",
	"How should auditors assess compliance with laws and regulations?",
}

func demoMessages() []backend.Message {
	return []backend.Message{
		{Role: backend.RoleSystem, Content: demoSystemText},
		{Role: backend.RoleAssistant, Content: demoWelcome, FollowUpQuestions: append([]string(nil), demoFollowUps...)},
	}
}
