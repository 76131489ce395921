package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/fieldsync/internal/client/models"
	"github.com/dmitrijs2005/fieldsync/internal/common"
)

// Goods lists the catalog ordered by description.
func (t *Tenant) Goods(ctx context.Context, activeOnly bool) ([]models.Good, error) {
	query := `SELECT guid, code, description, group_guid, is_group, unit, barcode, price, quantity, is_active
		FROM goods WHERE connection_id = ?`
	if activeOnly {
		query += ` AND is_active = 1`
	}
	rows, err := t.db.QueryContext(ctx, query+` ORDER BY description`, t.id)
	if err != nil {
		return nil, fmt.Errorf("failed to select goods: %w", err)
	}
	defer rows.Close()

	var out []models.Good
	for rows.Next() {
		var g models.Good
		if err := rows.Scan(&g.GUID, &g.Code, &g.Description, &g.GroupGUID, &g.IsGroup, &g.Unit,
			&g.Barcode, &g.Price, &g.Quantity, &g.IsActive); err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// Clients lists clients ordered by description.
func (t *Tenant) Clients(ctx context.Context) ([]models.Client, error) {
	rows, err := t.db.QueryContext(ctx, `SELECT guid, code, description, group_guid, is_group, address,
		phone, price_type_guid, discount, is_banned, is_active
		FROM clients WHERE connection_id = ? ORDER BY description`, t.id)
	if err != nil {
		return nil, fmt.Errorf("failed to select clients: %w", err)
	}
	defer rows.Close()

	var out []models.Client
	for rows.Next() {
		var c models.Client
		if err := rows.Scan(&c.GUID, &c.Code, &c.Description, &c.GroupGUID, &c.IsGroup, &c.Address,
			&c.Phone, &c.PriceTypeGUID, &c.Discount, &c.IsBanned, &c.IsActive); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

const debtColumns = `client_guid, doc_id, doc_guid, doc_type, sum, sum_in, sum_out, has_content, content, sorting`

func scanDebt(sc interface{ Scan(...any) error }) (models.Debt, error) {
	var d models.Debt
	err := sc.Scan(&d.ClientGUID, &d.DocID, &d.DocGUID, &d.DocType, &d.Sum, &d.SumIn, &d.SumOut,
		&d.HasContent, &d.Content, &d.Sorting)
	return d, err
}

// Debts returns the statement of one client, balance row first.
func (t *Tenant) Debts(ctx context.Context, clientGUID string) ([]models.Debt, error) {
	rows, err := t.db.QueryContext(ctx, `SELECT `+debtColumns+` FROM debts
		WHERE connection_id = ? AND client_guid = ? ORDER BY doc_id <> '', sorting, doc_id`, t.id, clientGUID)
	if err != nil {
		return nil, fmt.Errorf("failed to select debts: %w", err)
	}
	defer rows.Close()

	var out []models.Debt
	for rows.Next() {
		d, err := scanDebt(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// Debt returns one statement line.
func (t *Tenant) Debt(ctx context.Context, clientGUID, docID string) (*models.Debt, error) {
	row := t.db.QueryRowContext(ctx, `SELECT `+debtColumns+` FROM debts
		WHERE connection_id = ? AND client_guid = ? AND doc_id = ?`, t.id, clientGUID, docID)
	d, err := scanDebt(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("debt %s/%s: %w", clientGUID, docID, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query row scan failed: %w", err)
	}
	return &d, nil
}

// Count returns the number of rows of a reference data type.
func (t *Tenant) Count(ctx context.Context, dt models.DataType) (int, error) {
	tbl, err := tableFor(dt)
	if err != nil {
		return 0, err
	}
	var n int
	err = t.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+tbl.name+` WHERE connection_id = ?`, t.id).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", tbl.name, err)
	}
	return n, nil
}
