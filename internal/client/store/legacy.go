package store

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/fieldsync/internal/common"
	"github.com/dmitrijs2005/fieldsync/internal/dbx"
)

// MigrateLegacyTenant assigns rows written before multi-tenant support (no
// connection_id) to tenant. Rows that would collide with an existing row of
// the tenant are left untouched. Running it again is a no-op.
func (s *Store) MigrateLegacyTenant(ctx context.Context, tenant string) (int64, error) {
	if tenant == "" {
		return 0, fmt.Errorf("%w: empty tenant", common.ErrStore)
	}
	var total int64
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		for _, name := range tenantTables {
			res, err := tx.ExecContext(ctx, `UPDATE OR IGNORE `+name+` SET connection_id = ?
				WHERE connection_id IS NULL OR connection_id = ''`, tenant)
			if err != nil {
				return fmt.Errorf("migrate %s: %w", name, err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return fmt.Errorf("migrate %s: %w", name, err)
			}
			if n > 0 {
				s.log.Info(ctx, "legacy rows assigned", "table", name, "tenant", tenant, "rows", n)
			}
			total += n
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %w", common.ErrStore, err)
	}
	return total, nil
}
