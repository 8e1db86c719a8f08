package session

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/medilink/constants"
	"github.com/joseph-ayodele/medilink/internal/common"
)

func TestRedisStoreRoundTrip(t *testing.T) {
	if os.Getenv("MEDILINK_REDIS_TEST") != "1" {
		t.Skip("skipping Redis integration test; set MEDILINK_REDIS_TEST=1 to run")
	}
	url := os.Getenv("REDIS_URL")
	if url == "" {
		url = "redis://localhost:6379/0"
	}
	ctx := context.Background()
	st, err := OpenRedisStore(ctx, url, time.Minute, "medilink:test:", nil)
	if err != nil {
		t.Skipf("skipping Redis integration test; Redis not reachable: %v", err)
	}
	defer st.Close()

	m := NewManager(st, nil)
	id, err := m.Create(ctx, Seed{Text: "t", DocType: constants.DocLabReport, SystemPrompt: "s", Analysis: "a"})
	require.NoError(t, err)
	defer st.Delete(ctx, id)

	require.NoError(t, m.Append(ctx, id, RoleUser, "q"))
	s, err := m.Get(ctx, id)
	require.NoError(t, err)
	assert.Len(t, s.Log, 4)
	assert.Equal(t, constants.DocLabReport, s.DocType)

	require.NoError(t, st.Delete(ctx, id))
	_, err = st.Get(ctx, id)
	assert.ErrorIs(t, err, common.ErrSessionNotFound)
}
