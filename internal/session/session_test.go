package session

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/medilink/constants"
	"github.com/joseph-ayodele/medilink/internal/common"
)

func logOf(n int) []Message {
	out := []Message{{Role: RoleSystem, Content: "system prompt"}}
	for i := 1; i < n; i++ {
		role := RoleUser
		if i%2 == 0 {
			role = RoleAssistant
		}
		out = append(out, Message{Role: role, Content: fmt.Sprintf("m%d", i)})
	}
	return out
}

func TestBuildWindow(t *testing.T) {
	tests := []struct {
		name    string
		logLen  int
		wantLen int
	}{
		{"three messages unchanged", 3, 3},
		{"six messages unchanged", 6, 6},
		{"seven collapses", 7, 7},
		{"eight collapses to seven", 8, 7},
		{"twenty collapses to seven", 20, 7},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &Session{Text: "some text", DocType: constants.DocPrescription, Log: logOf(tt.logLen)}
			w := BuildWindow(s)
			assert.Len(t, w, tt.wantLen)
			assert.Equal(t, s.Log[0], w[0], "system message must lead the window")
			assert.Len(t, s.Log, tt.logLen, "window must not modify the log")
		})
	}
}

func TestBuildWindowCollapsedOrder(t *testing.T) {
	s := &Session{
		Text:       "take 2 tablets twice daily",
		DocType:    constants.DocPrescription,
		Structured: json.RawMessage(`{"summary":"x"}`),
		Log:        logOf(8),
	}
	w := BuildWindow(s)
	require.Len(t, w, 7)

	assert.Equal(t, Message{Role: RoleSystem, Content: "system prompt"}, w[0])
	assert.Equal(t, RoleUser, w[1].Role)
	assert.True(t, strings.HasPrefix(w[1].Content, "You are analyzing a prescription document."))
	assert.Contains(t, w[1].Content, "Extracted text (truncated): take 2 tablets twice daily...")
	assert.Contains(t, w[1].Content, "Structured data extracted from the document:\n{\n  \"summary\": \"x\"\n}")
	assert.Equal(t, Message{Role: RoleAssistant, Content: Acknowledgment}, w[2])
	assert.Equal(t, s.Log[4:], w[3:])
}

func TestContextReminderTruncatesRunes(t *testing.T) {
	s := &Session{Text: strings.Repeat("é", 250), DocType: constants.DocUnknown}
	r := ContextReminder(s)
	assert.True(t, strings.HasPrefix(r, "You are analyzing a medical document."))
	assert.Contains(t, r, strings.Repeat("é", 200)+"...")
	assert.NotContains(t, r, strings.Repeat("é", 201))
	assert.NotContains(t, r, "Structured data")
}

func TestManagerLifecycle(t *testing.T) {
	ctx := context.Background()
	m := NewManager(NewMemoryStore(time.Hour), nil)

	id, err := m.Create(ctx, Seed{
		Text:         "redacted text",
		DocType:      constants.DocLabReport,
		SystemPrompt: "sys",
		Analysis:     "first analysis",
	})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	s, err := m.Get(ctx, id)
	require.NoError(t, err)
	require.Len(t, s.Log, 3)
	assert.Equal(t, "Here is the text extracted from a medical document: redacted text", s.Log[1].Content)
	assert.Equal(t, "first analysis", s.Log[2].Content)

	require.NoError(t, m.Append(ctx, id, RoleUser, "what is hba1c?"))
	require.NoError(t, m.Append(ctx, id, RoleAssistant, "a marker"))

	w, err := m.Window(ctx, id)
	require.NoError(t, err)
	assert.Len(t, w, 5)

	err = m.Append(ctx, id, RoleUser, "   ")
	assert.ErrorIs(t, err, common.ErrEmptyMessage)

	err = m.Append(ctx, id, Role("tool"), "x")
	assert.ErrorIs(t, err, common.ErrInvalidRole)

	_, err = m.Window(ctx, "missing")
	assert.ErrorIs(t, err, common.ErrSessionNotFound)

	err = m.Append(ctx, "missing", RoleUser, "hi")
	assert.ErrorIs(t, err, common.ErrSessionNotFound)
}

func TestManagerUpdateErrorWritesNothing(t *testing.T) {
	ctx := context.Background()
	m := NewManager(NewMemoryStore(time.Hour), nil)
	id, err := m.Create(ctx, Seed{Text: "t", DocType: constants.DocUnknown, SystemPrompt: "s", Analysis: "a"})
	require.NoError(t, err)

	boom := fmt.Errorf("upstream down")
	err = m.Update(ctx, id, func(s *Session) error {
		s.Log = append(s.Log, Message{Role: RoleUser, Content: "lost"})
		return boom
	})
	assert.ErrorIs(t, err, boom)

	s, err := m.Get(ctx, id)
	require.NoError(t, err)
	assert.Len(t, s.Log, 3)
}

func TestManagerSerializesPerSession(t *testing.T) {
	ctx := context.Background()
	m := NewManager(NewMemoryStore(time.Hour), nil)
	id, err := m.Create(ctx, Seed{Text: "t", DocType: constants.DocUnknown, SystemPrompt: "s", Analysis: "a"})
	require.NoError(t, err)

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, m.Append(ctx, id, RoleUser, fmt.Sprintf("q%d", i)))
		}(i)
	}
	wg.Wait()

	s, err := m.Get(ctx, id)
	require.NoError(t, err)
	assert.Len(t, s.Log, 3+n)
	assert.Empty(t, m.locks.locks, "idle keys are released")
}

func TestManagerReplace(t *testing.T) {
	ctx := context.Background()
	m := NewManager(NewMemoryStore(time.Hour), nil)
	id, err := m.Create(ctx, Seed{Text: "t", DocType: constants.DocUnknown, SystemPrompt: "s", Analysis: "a"})
	require.NoError(t, err)
	for i := 0; i < 6; i++ {
		require.NoError(t, m.Append(ctx, id, RoleUser, fmt.Sprintf("q%d", i)))
	}

	w, err := m.Window(ctx, id)
	require.NoError(t, err)
	require.NoError(t, m.Replace(ctx, id, w))

	s, err := m.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, w, s.Log)

	err = m.Replace(ctx, id, []Message{{Role: RoleUser, Content: "x"}})
	assert.ErrorIs(t, err, common.ErrInvalidInput)
}
