package importer

import (
	"context"
	"fmt"

	"salesetl/internal/sale"
	"salesetl/internal/source"
)

// CategoryFunc picks the sale category for a sheet name.
type CategoryFunc func(sheet string) (sale.Category, error)

// ImportSheets imports every sheet under one import id. All categories are
// resolved before anything is inserted, so a bad sheet mapping fails the run
// up front.
func (im *Importer) ImportSheets(ctx context.Context, sheets []source.Sheet, categoryFor CategoryFunc) (Outcome, error) {
	if categoryFor == nil {
		return Outcome{}, fmt.Errorf("importer: no category mapping")
	}
	batches := make([]Batch, 0, len(sheets))
	for _, sh := range sheets {
		cat, err := categoryFor(sh.Name)
		if err != nil {
			return Outcome{}, fmt.Errorf("importer: sheet %q: %w", sh.Name, err)
		}
		batches = append(batches, Batch{Sheet: sh.Name, Category: cat, Rows: sh.Rows})
	}
	return im.Import(ctx, batches...)
}
