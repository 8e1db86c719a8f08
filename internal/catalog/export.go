package catalog

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/joseph-ayodele/medilink/internal/export"
)

// ExportXLSX pages through every drug matching search and returns a workbook
// with a single "Drugs" sheet.
func ExportXLSX(ctx context.Context, store Store, search string, logger *slog.Logger) ([]byte, error) {
	sh := export.Sheet{
		Name: "Drugs",
		Columns: []export.Column{
			{Header: "ID", Width: 26},
			{Header: "Title", Width: 36},
			{Header: "Price", Width: 14},
			{Header: "Manufacturer / Composition", Width: 36},
			{Header: "Pack", Width: 20},
			{Header: "Description", Width: 60},
			{Header: "Side Effects", Width: 60},
			{Header: "Link", Width: 48},
		},
	}

	q := Query{Search: search, Limit: MaxLimit}
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page, err := store.Search(ctx, q)
		if err != nil {
			return nil, fmt.Errorf("export page %d: %w", q.Page, err)
		}
		for _, d := range page.Drugs {
			sh.Rows = append(sh.Rows, []any{d.ID, d.Title, d.Price, d.Meta, d.Detail, d.Desc, d.SideEffect, d.Link})
		}
		if len(page.Drugs) < q.Limit || int64(len(sh.Rows)) >= page.Total {
			break
		}
		q.Page++
	}
	return export.NewService(logger).XLSX(sh)
}
