package catalog

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/medilink/internal/common"
)

func newSQLiteStore(t *testing.T) *SQLStore {
	t.Helper()
	ctx := context.Background()
	path := "file:" + filepath.Join(t.TempDir(), "catalog.db") + "?_pragma=busy_timeout(5000)"
	s, err := OpenSQLite(ctx, path, nil)
	require.NoError(t, err)
	require.NoError(t, s.Migrate(ctx))
	require.NoError(t, s.Migrate(ctx), "migrate is idempotent")
	t.Cleanup(func() { _ = s.Close(ctx) })
	return s
}

func TestSQLStoreSearch(t *testing.T) {
	ctx := context.Background()
	s := newSQLiteStore(t)

	for _, title := range []string{"Zincovit Tablet", "Amoxyclav 625 Tablet", "amoxicillin 500 Capsule", "Paracetamol 100% Syrup", "Azithral 500"} {
		require.NoError(t, s.Upsert(ctx, completeDrug("https://www.1mg.com/drugs/"+title, title)))
	}

	page, err := s.Search(ctx, Query{Search: "AMOX", Limit: 20})
	require.NoError(t, err)
	assert.Equal(t, int64(2), page.Total)
	require.Len(t, page.Drugs, 2)
	assert.Equal(t, "Amoxyclav 625 Tablet", page.Drugs[0].Title)
	assert.Equal(t, "amoxicillin 500 Capsule", page.Drugs[1].Title)

	page, err = s.Search(ctx, Query{Search: "100%", Limit: 20})
	require.NoError(t, err)
	assert.Equal(t, int64(1), page.Total, "wildcards in the search term are literal")

	page, err = s.Search(ctx, Query{Limit: 2, Page: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(5), page.Total)
	assert.Equal(t, int64(3), page.TotalPages)
	require.Len(t, page.Drugs, 2)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, 2, page.Limit)

	page, err = s.Search(ctx, Query{Search: "nothing-matches", Limit: 5})
	require.NoError(t, err)
	assert.Equal(t, int64(0), page.Total)
	assert.Empty(t, page.Drugs)
	assert.NotNil(t, page.Drugs)
}

func TestSQLStoreUpsertIsIdempotentByLink(t *testing.T) {
	ctx := context.Background()
	s := newSQLiteStore(t)

	d := completeDrug("https://www.1mg.com/drugs/dolo-650", "Dolo 650")
	require.NoError(t, s.Upsert(ctx, d))
	first, err := s.Search(ctx, Query{Search: "dolo", Limit: 10})
	require.NoError(t, err)
	require.Len(t, first.Drugs, 1)
	id := first.Drugs[0].ID
	assert.NotEmpty(t, id)

	d.Price = "₹30"
	require.NoError(t, s.Upsert(ctx, d))
	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "₹30", got.Price)
	assert.Equal(t, id, got.ID)
}

func TestSQLStoreGetMissing(t *testing.T) {
	s := newSQLiteStore(t)
	_, err := s.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestSQLStoreRejectsIncomplete(t *testing.T) {
	s := newSQLiteStore(t)
	err := s.Upsert(context.Background(), Drug{Link: "x", Title: "y"})
	assert.ErrorIs(t, err, ErrIncompleteRecord)
}

func TestExportXLSX(t *testing.T) {
	ctx := context.Background()
	s := newSQLiteStore(t)
	for i := 0; i < 150; i++ {
		require.NoError(t, s.Upsert(ctx, completeDrug(fmt.Sprintf("https://x/drugs/%03d", i), fmt.Sprintf("Drug %03d", i))))
	}

	b, err := ExportXLSX(ctx, s, "", nil)
	require.NoError(t, err)
	f, err := excelize.OpenReader(bytes.NewReader(b))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Drugs")
	require.NoError(t, err)
	require.Len(t, rows, 151)
	assert.Equal(t, "Title", rows[0][1])
	assert.Equal(t, "Drug 000", rows[1][1])
	assert.Equal(t, "Drug 149", rows[150][1])

	b, err = ExportXLSX(ctx, s, "drug 14", nil)
	require.NoError(t, err)
	f2, err := excelize.OpenReader(bytes.NewReader(b))
	require.NoError(t, err)
	defer f2.Close()
	rows, err = f2.GetRows("Drugs")
	require.NoError(t, err)
	assert.Len(t, rows, 11)
}
