package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func completeDrug(link, title string) Drug {
	return Drug{
		Link:       link,
		Title:      title,
		Price:      "₹120",
		Meta:       "Cipla Ltd",
		Desc:       "Used to treat bacterial infections.",
		Detail:     "strip of 10 tablets",
		SideEffect: "Nausea, diarrhoea",
	}
}

func TestDrugValidate(t *testing.T) {
	require.NoError(t, completeDrug("https://x/drugs/a", "A").Validate())

	d := completeDrug("https://x/drugs/a", "A")
	d.Price = "  "
	d.SideEffect = ""
	err := d.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrIncompleteRecord)
	var ie *IncompleteError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, []string{"price", "sideEffect"}, ie.Missing)
}

func TestQueryNormalize(t *testing.T) {
	tests := []struct {
		in   Query
		want Query
	}{
		{Query{Search: " amox ", Page: 2, Limit: 20}, Query{Search: "amox", Page: 2, Limit: 20}},
		{Query{Page: -3, Limit: 0}, Query{Page: 0, Limit: 1}},
		{Query{Limit: 500}, Query{Limit: MaxLimit}},
		{Query{Limit: -1}, Query{Limit: 1}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.in.Normalize())
	}
	assert.Equal(t, 40, Query{Page: 2, Limit: 20}.Offset())
}

func TestNewPageTotalPages(t *testing.T) {
	tests := []struct {
		total int64
		limit int
		want  int64
	}{
		{0, 20, 0},
		{1, 20, 1},
		{20, 20, 1},
		{21, 20, 2},
		{250, 100, 3},
	}
	for _, tt := range tests {
		p := newPage(Query{Limit: tt.limit}, nil, tt.total)
		assert.Equal(t, tt.want, p.TotalPages)
		assert.NotNil(t, p.Drugs)
	}
}
