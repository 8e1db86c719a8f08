package catalog

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/medilink/internal/common"
)

// Set MEDILINK_MONGO_TEST=1 (and optionally MONGO_URI) to run against a live server.
func newMongoStore(t *testing.T) *MongoStore {
	t.Helper()
	if os.Getenv("MEDILINK_MONGO_TEST") != "1" {
		t.Skip("MEDILINK_MONGO_TEST not set")
	}
	uri := os.Getenv("MONGO_URI")
	if uri == "" {
		uri = "mongodb://localhost:27017/"
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s, err := OpenMongo(ctx, MongoConfig{URI: uri, Database: "medilink_test", Collection: "drugs_" + uuid.NewString()[:8]}, nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = s.coll.Drop(context.Background())
		_ = s.Close(context.Background())
	})
	return s
}

func TestMongoStore(t *testing.T) {
	s := newMongoStore(t)
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, completeDrug("https://x/drugs/b", "Beta (100mg)")))
	require.NoError(t, s.Upsert(ctx, completeDrug("https://x/drugs/a", "alpha")))
	require.NoError(t, s.Upsert(ctx, completeDrug("https://x/drugs/a", "Alpha")))

	page, err := s.Search(ctx, Query{Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(2), page.Total)
	require.Len(t, page.Drugs, 2)
	assert.Equal(t, "Alpha", page.Drugs[0].Title)

	page, err = s.Search(ctx, Query{Search: "(100MG)", Limit: 10})
	require.NoError(t, err)
	require.Len(t, page.Drugs, 1)

	got, err := s.Get(ctx, page.Drugs[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "Beta (100mg)", got.Title)

	_, err = s.Get(ctx, "000000000000000000000000")
	assert.ErrorIs(t, err, common.ErrNotFound)
}
