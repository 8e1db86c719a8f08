// Package session owns per-document conversation state and the bounded
// window forwarded to the completion service on follow-up turns.
package session

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/joseph-ayodele/medilink/constants"
)

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

func (r Role) Valid() bool {
	return r == RoleSystem || r == RoleUser || r == RoleAssistant
}

// Message is one role-tagged entry of a conversation log.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Session is the state kept for one analyzed document.
type Session struct {
	ID         string            `json:"id"`
	Text       string            `json:"extracted_text"`
	DocType    constants.DocType `json:"document_type"`
	Structured json.RawMessage   `json:"structured_data,omitempty"`
	Log        []Message         `json:"conversation"`
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

func (s *Session) clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	c.Log = append([]Message(nil), s.Log...)
	if s.Structured != nil {
		c.Structured = append(json.RawMessage(nil), s.Structured...)
	}
	return &c
}

const (
	// WindowThreshold is the log length above which a window is collapsed.
	WindowThreshold = 6
	// WindowTail is the number of raw trailing messages kept in a collapsed window.
	WindowTail = 4
	// ExcerptRunes bounds the text excerpt embedded in the reminder.
	ExcerptRunes = 200

	Acknowledgment = "I'll continue assisting you with this medical document, keeping in mind the extracted information and our previous discussion."
)

var reminders = map[constants.DocType]string{
	constants.DocPrescription: "You are analyzing a prescription document.\n" +
		"Remember the extracted information while answering additional questions.\n" +
		"Maintain medical accuracy and refer to the structured data when relevant.",
	constants.DocLabReport: "You are analyzing a laboratory report document.\n" +
		"Remember the extracted information while answering additional questions.\n" +
		"Maintain medical accuracy when discussing test results and explain medical terms clearly.",
}

const genericReminder = "You are analyzing a medical document.\n" +
	"Remember the extracted information while answering additional questions.\n" +
	"Maintain medical accuracy and clarity in your responses."

// ContextReminder returns the synthetic user message that re-grounds a
// collapsed window: document type, a short excerpt and any structured payload.
func ContextReminder(s *Session) string {
	reminder, ok := reminders[s.DocType]
	if !ok {
		reminder = genericReminder
	}

	var b strings.Builder
	b.WriteString(reminder)
	b.WriteString("\n\nExtracted text (truncated): ")
	b.WriteString(excerpt(s.Text, ExcerptRunes))
	b.WriteString("...")
	if len(s.Structured) > 0 {
		var pretty bytes.Buffer
		if err := json.Indent(&pretty, s.Structured, "", "  "); err == nil {
			b.WriteString("\n\nStructured data extracted from the document:\n")
			b.Write(pretty.Bytes())
		}
	}
	return b.String()
}

// BuildWindow returns the messages to forward for s. Logs longer than
// WindowThreshold collapse to: the original system message, a reminder, an
// acknowledgment, and the last WindowTail messages. The session is not modified.
func BuildWindow(s *Session) []Message {
	if len(s.Log) <= WindowThreshold {
		return append([]Message(nil), s.Log...)
	}
	out := make([]Message, 0, 3+WindowTail)
	out = append(out,
		s.Log[0],
		Message{Role: RoleUser, Content: ContextReminder(s)},
		Message{Role: RoleAssistant, Content: Acknowledgment},
	)
	out = append(out, s.Log[len(s.Log)-WindowTail:]...)
	return out
}

func excerpt(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
