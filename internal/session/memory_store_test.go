package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/medilink/internal/common"
)

func TestMemoryStoreCopiesOnReadAndWrite(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore(time.Hour)

	s := &Session{ID: "a", Log: []Message{{Role: RoleSystem, Content: "s"}}}
	require.NoError(t, st.Put(ctx, s))
	s.Log[0].Content = "mutated"

	got, err := st.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "s", got.Log[0].Content)

	got.Log = append(got.Log, Message{Role: RoleUser, Content: "x"})
	again, err := st.Get(ctx, "a")
	require.NoError(t, err)
	assert.Len(t, again.Log, 1)
}

func TestMemoryStoreExpires(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore(50 * time.Millisecond)
	require.NoError(t, st.Put(ctx, &Session{ID: "a"}))

	_, err := st.Get(ctx, "a")
	require.NoError(t, err)

	time.Sleep(120 * time.Millisecond)
	_, err = st.Get(ctx, "a")
	assert.ErrorIs(t, err, common.ErrSessionNotFound)
}

func TestMemoryStoreEvictsLeastRecentlyWritten(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore(time.Hour, WithMaxEntries(2))
	base := time.Now()

	require.NoError(t, st.Put(ctx, &Session{ID: "old", UpdatedAt: base}))
	require.NoError(t, st.Put(ctx, &Session{ID: "mid", UpdatedAt: base.Add(time.Second)}))
	require.NoError(t, st.Put(ctx, &Session{ID: "old", UpdatedAt: base.Add(2 * time.Second)}))
	require.NoError(t, st.Put(ctx, &Session{ID: "new", UpdatedAt: base.Add(3 * time.Second)}))

	assert.Equal(t, 2, st.Len())
	_, err := st.Get(ctx, "mid")
	assert.ErrorIs(t, err, common.ErrSessionNotFound)
	_, err = st.Get(ctx, "old")
	assert.NoError(t, err)
	_, err = st.Get(ctx, "new")
	assert.NoError(t, err)
}

func TestMemoryStoreRejectsEmptyID(t *testing.T) {
	err := NewMemoryStore(time.Hour).Put(context.Background(), &Session{})
	assert.ErrorIs(t, err, common.ErrInvalidInput)
}
