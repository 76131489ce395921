package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/fieldsync/internal/client/models"
	"github.com/dmitrijs2005/fieldsync/internal/common"
	"github.com/dmitrijs2005/fieldsync/internal/dbx"
)

// MergeBatch upserts a homogeneous batch of rows of type dt in a single
// transaction and stamps every row with watermark. Existing rows are updated
// in place; the rest are inserted in chunks. On any failure nothing is
// written and the error wraps common.ErrStore.
func (t *Tenant) MergeBatch(ctx context.Context, dt models.DataType, rows []models.Row, watermark int64) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	tbl, err := tableFor(dt)
	if err != nil {
		return 0, err
	}

	update := tbl.updateSQL()
	err = dbx.WithTx(ctx, t.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		var (
			misses [][]any
			seen   = make(map[string]int)
		)
		for _, r := range rows {
			keys, cols, err := tbl.values(r)
			if err != nil {
				return err
			}

			args := make([]any, 0, len(cols)+len(keys)+2)
			args = append(args, cols...)
			args = append(args, watermark)
			args = append(args, keys...)
			args = append(args, t.id)

			res, err := tx.ExecContext(ctx, update, args...)
			if err != nil {
				return fmt.Errorf("update %s: %w", tbl.name, err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return fmt.Errorf("update %s: %w", tbl.name, err)
			}
			if n > 0 {
				continue
			}

			ins := make([]any, 0, len(keys)+len(cols)+2)
			ins = append(ins, keys...)
			ins = append(ins, cols...)
			ins = append(ins, t.id, watermark)

			// the last occurrence of a key within the batch wins
			k := fmt.Sprintf("%q", keys)
			if i, ok := seen[k]; ok {
				misses[i] = ins
				continue
			}
			seen[k] = len(misses)
			misses = append(misses, ins)
		}
		return t.insertMissing(ctx, tx, tbl, misses)
	})
	if err != nil {
		t.log.Error(ctx, "merge failed", "data_type", dt, "rows", len(rows), "error", err)
		return 0, fmt.Errorf("%w: merge %s: %w", common.ErrStore, dt, err)
	}

	t.log.Debug(ctx, "merged", "data_type", dt, "rows", len(rows))
	return len(rows), nil
}

func (t *Tenant) insertMissing(ctx context.Context, tx dbx.DBTX, tbl *table, rows [][]any) error {
	if len(rows) == 0 {
		return nil
	}
	cols := tbl.insertColumns()
	ph := dbx.Placeholders(len(cols))
	head := "INSERT OR IGNORE INTO " + tbl.name + " (" + strings.Join(cols, ", ") + ") VALUES "

	for _, c := range dbx.Chunks(len(rows), maxVariables/len(cols)) {
		chunk := rows[c[0]:c[1]]
		values := make([]string, len(chunk))
		args := make([]any, 0, len(chunk)*len(cols))
		for i, r := range chunk {
			values[i] = ph
			args = append(args, r...)
		}
		if _, err := tx.ExecContext(ctx, head+strings.Join(values, ", "), args...); err != nil {
			return fmt.Errorf("insert %s: %w", tbl.name, err)
		}
	}
	return nil
}

// MergeDocumentContent stores fetched debt document bodies. Only existing
// debt rows are touched; unknown documents are ignored.
func (t *Tenant) MergeDocumentContent(ctx context.Context, items []models.DocumentContent) (int, error) {
	if len(items) == 0 {
		return 0, nil
	}
	var updated int64
	err := dbx.WithTx(ctx, t.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		for _, it := range items {
			res, err := tx.ExecContext(ctx,
				`UPDATE debts SET content = ?, has_content = 1 WHERE doc_guid = ? AND connection_id = ?`,
				it.Content, it.DocGUID, t.id)
			if err != nil {
				return err
			}
			n, err := res.RowsAffected()
			if err != nil {
				return err
			}
			updated += n
		}
		return nil
	})
	if err != nil {
		t.log.Error(ctx, "document content merge failed", "items", len(items), "error", err)
		return 0, fmt.Errorf("%w: merge document content: %w", common.ErrStore, err)
	}
	return int(updated), nil
}
