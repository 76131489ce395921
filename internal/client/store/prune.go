package store

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/fieldsync/internal/client/models"
	"github.com/dmitrijs2005/fieldsync/internal/common"
	"github.com/dmitrijs2005/fieldsync/internal/dbx"
)

// PruneReport holds the number of rows removed (or deactivated, for goods)
// per data type.
type PruneReport map[models.DataType]int64

// Total sums the report.
func (r PruneReport) Total() int64 {
	var n int64
	for _, v := range r {
		n += v
	}
	return n
}

// PruneObsolete removes reference rows that were not stamped by the session
// that produced watermark. Goods are deactivated instead of deleted. With no
// types every reference table is pruned. A zero watermark is a no-op.
func (t *Tenant) PruneObsolete(ctx context.Context, watermark int64, types ...models.DataType) (PruneReport, error) {
	report := PruneReport{}
	if watermark == 0 {
		return report, nil
	}

	want := make(map[models.DataType]bool, len(types))
	for _, dt := range types {
		want[dt] = true
	}

	for _, dt := range models.ReferenceTypes() {
		if len(want) > 0 && !want[dt] {
			continue
		}
		tbl := tables[dt]

		var query string
		if dt == models.TypeGoods {
			query = `UPDATE goods SET is_active = 0
				WHERE connection_id = ? AND is_active = 1 AND (time_stamp IS NULL OR time_stamp < ?)`
		} else {
			query = `DELETE FROM ` + tbl.name + `
				WHERE connection_id = ? AND (time_stamp IS NULL OR time_stamp < ?)`
		}

		n, err := t.execTx(ctx, query, t.id, watermark)
		if err != nil {
			t.log.Error(ctx, "prune failed", "data_type", dt, "error", err)
			return report, fmt.Errorf("%w: prune %s: %w", common.ErrStore, dt, err)
		}
		if n > 0 {
			report[dt] += n
		}
	}

	n, err := t.execTx(ctx, `DELETE FROM images
		WHERE connection_id = ? AND NOT EXISTS (
			SELECT 1 FROM goods g WHERE g.guid = images.goods_guid AND g.connection_id = images.connection_id)`, t.id)
	if err != nil {
		t.log.Error(ctx, "prune orphan images failed", "error", err)
		return report, fmt.Errorf("%w: prune orphan images: %w", common.ErrStore, err)
	}
	if n > 0 {
		report[models.TypeImages] += n
	}

	t.log.Info(ctx, "pruned", "watermark", watermark, "rows", report.Total())
	return report, nil
}

func (t *Tenant) execTx(ctx context.Context, query string, args ...any) (int64, error) {
	var n int64
	err := dbx.WithTx(ctx, t.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return err
		}
		n, err = res.RowsAffected()
		return err
	})
	return n, err
}
