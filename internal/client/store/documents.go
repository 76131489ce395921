package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/fieldsync/internal/client/models"
	"github.com/dmitrijs2005/fieldsync/internal/common"
	"github.com/dmitrijs2005/fieldsync/internal/dbx"
	"github.com/dmitrijs2005/fieldsync/internal/timex"
	"github.com/google/uuid"
)

func docTable(kind models.DocKind) (string, error) {
	switch kind {
	case models.KindOrder:
		return "orders", nil
	case models.KindCash:
		return "cash", nil
	}
	return "", fmt.Errorf("%w: unknown document kind %q", common.ErrStore, kind)
}

// NextNumber returns the next document number of kind for this tenant.
func (t *Tenant) NextNumber(ctx context.Context, kind models.DocKind) (int64, error) {
	return t.nextNumber(ctx, t.db, kind)
}

func (t *Tenant) nextNumber(ctx context.Context, db dbx.DBTX, kind models.DocKind) (int64, error) {
	name, err := docTable(kind)
	if err != nil {
		return 0, err
	}
	var n int64
	err = db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(number), 0) + 1 FROM `+name+` WHERE connection_id = ?`, t.id).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("next %s number: %w", kind, err)
	}
	return n, nil
}

// CreateOrder stores o as a draft, assigning a GUID and number when missing.
func (t *Tenant) CreateOrder(ctx context.Context, o *models.Order) error {
	if o.GUID == "" {
		o.GUID = uuid.NewString()
	}
	o.Recalculate()
	o.DocFlags = models.DocFlags{}

	return dbx.WithTx(ctx, t.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if o.Number == 0 {
			n, err := t.nextNumber(ctx, tx, models.KindOrder)
			if err != nil {
				return err
			}
			o.Number = n
		}
		_, err := tx.ExecContext(ctx, `INSERT INTO orders
			(guid, connection_id, number, date, client_guid, price_type_guid, delivery_date,
			 payment_type, is_return, discount, total, notes, time_stamp)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			o.GUID, t.id, o.Number, timex.UnixMilli(o.Date), o.ClientGUID, o.PriceTypeGUID,
			timex.UnixMilli(o.DeliveryDate), o.PaymentType, o.IsReturn, o.Discount, o.Total, o.Notes,
			timex.UnixMilli(o.Date))
		if err != nil {
			return fmt.Errorf("failed to insert order: %w", err)
		}
		for _, l := range o.Lines {
			_, err := tx.ExecContext(ctx, `INSERT INTO order_lines
				(order_guid, line_no, connection_id, goods_guid, unit, quantity, price, sum)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
				o.GUID, l.LineNo, t.id, l.GoodsGUID, l.Unit, l.Quantity, l.Price, l.Sum)
			if err != nil {
				return fmt.Errorf("failed to insert order line: %w", err)
			}
		}
		return nil
	})
}

// CreateCash stores c as a draft, assigning a GUID and number when missing.
func (t *Tenant) CreateCash(ctx context.Context, c *models.CashDocument) error {
	if c.GUID == "" {
		c.GUID = uuid.NewString()
	}
	c.DocFlags = models.DocFlags{}

	return dbx.WithTx(ctx, t.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if c.Number == 0 {
			n, err := t.nextNumber(ctx, tx, models.KindCash)
			if err != nil {
				return err
			}
			c.Number = n
		}
		_, err := tx.ExecContext(ctx, `INSERT INTO cash
			(guid, connection_id, number, date, client_guid, reference_doc, sum, notes, fiscal_number, time_stamp)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			c.GUID, t.id, c.Number, timex.UnixMilli(c.Date), c.ClientGUID, c.ReferenceDoc, c.Sum,
			c.Notes, c.FiscalNumber, timex.UnixMilli(c.Date))
		if err != nil {
			return fmt.Errorf("failed to insert cash document: %w", err)
		}
		return nil
	})
}

// MarkProcessed queues a draft for sending.
func (t *Tenant) MarkProcessed(ctx context.Context, kind models.DocKind, guid string) error {
	return t.updateDoc(ctx, kind, guid,
		`SET is_processed = 1, error = '' WHERE guid = ? AND connection_id = ? AND is_sent = 0`)
}

// MarkSent records that the server accepted the document.
func (t *Tenant) MarkSent(ctx context.Context, kind models.DocKind, guid, status string) error {
	return t.updateDoc(ctx, kind, guid,
		`SET is_sent = 1, is_processed = 1, status = ?, error = '' WHERE guid = ? AND connection_id = ?`, status)
}

// RecordSendError keeps the document pending and stores the server's reason.
func (t *Tenant) RecordSendError(ctx context.Context, kind models.DocKind, guid, status, msg string) error {
	return t.updateDoc(ctx, kind, guid,
		`SET status = ?, error = ? WHERE guid = ? AND connection_id = ?`, status, msg)
}

// UpdateStatus stores a server-authoritative status of a sent document.
func (t *Tenant) UpdateStatus(ctx context.Context, kind models.DocKind, guid, status string) error {
	return t.updateDoc(ctx, kind, guid,
		`SET status = ? WHERE guid = ? AND connection_id = ?`, status)
}

func (t *Tenant) updateDoc(ctx context.Context, kind models.DocKind, guid, clause string, args ...any) error {
	name, err := docTable(kind)
	if err != nil {
		return err
	}
	args = append(args, guid, t.id)
	res, err := t.db.ExecContext(ctx, `UPDATE `+name+` `+clause, args...)
	if err != nil {
		return fmt.Errorf("%w: update %s %s: %w", common.ErrStore, kind, guid, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: update %s %s: %w", common.ErrStore, kind, guid, err)
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", kind, guid, common.ErrNotFound)
	}
	return nil
}

const orderColumns = `guid, number, date, client_guid, price_type_guid, delivery_date, payment_type,
	is_return, discount, total, notes, is_processed, is_sent, status, error`

func scanOrder(sc interface{ Scan(...any) error }) (models.Order, error) {
	var (
		o              models.Order
		date, delivery int64
	)
	err := sc.Scan(&o.GUID, &o.Number, &date, &o.ClientGUID, &o.PriceTypeGUID, &delivery, &o.PaymentType,
		&o.IsReturn, &o.Discount, &o.Total, &o.Notes, &o.IsProcessed, &o.IsSent, &o.Status, &o.Error)
	o.Date = timex.FromUnixMilli(date)
	o.DeliveryDate = timex.FromUnixMilli(delivery)
	return o, err
}

// GetOrder returns one order with its lines.
func (t *Tenant) GetOrder(ctx context.Context, guid string) (*models.Order, error) {
	row := t.db.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE guid = ? AND connection_id = ?`, guid, t.id)
	o, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("order %s: %w", guid, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query row scan failed: %w", err)
	}
	if err := t.loadLines(ctx, []*models.Order{&o}); err != nil {
		return nil, err
	}
	return &o, nil
}

// PendingOrders returns processed orders that have not been accepted yet.
func (t *Tenant) PendingOrders(ctx context.Context) ([]models.Order, error) {
	rows, err := t.db.QueryContext(ctx, `SELECT `+orderColumns+` FROM orders
		WHERE connection_id = ? AND is_processed = 1 AND is_sent = 0 ORDER BY number`, t.id)
	if err != nil {
		return nil, fmt.Errorf("failed to select orders: %w", err)
	}
	var out []models.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	ptrs := make([]*models.Order, len(out))
	for i := range out {
		ptrs[i] = &out[i]
	}
	if err := t.loadLines(ctx, ptrs); err != nil {
		return nil, err
	}
	return out, nil
}

func (t *Tenant) loadLines(ctx context.Context, orders []*models.Order) error {
	for _, o := range orders {
		rows, err := t.db.QueryContext(ctx, `SELECT line_no, goods_guid, unit, quantity, price, sum
			FROM order_lines WHERE order_guid = ? AND connection_id = ? ORDER BY line_no`, o.GUID, t.id)
		if err != nil {
			return fmt.Errorf("failed to select order lines: %w", err)
		}
		for rows.Next() {
			var l models.OrderLine
			if err := rows.Scan(&l.LineNo, &l.GoodsGUID, &l.Unit, &l.Quantity, &l.Price, &l.Sum); err != nil {
				rows.Close()
				return err
			}
			o.Lines = append(o.Lines, l)
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

const cashColumns = `guid, number, date, client_guid, reference_doc, sum, notes, fiscal_number,
	is_processed, is_sent, status, error`

func scanCash(sc interface{ Scan(...any) error }) (models.CashDocument, error) {
	var (
		c    models.CashDocument
		date int64
	)
	err := sc.Scan(&c.GUID, &c.Number, &date, &c.ClientGUID, &c.ReferenceDoc, &c.Sum, &c.Notes,
		&c.FiscalNumber, &c.IsProcessed, &c.IsSent, &c.Status, &c.Error)
	c.Date = timex.FromUnixMilli(date)
	return c, err
}

// GetCash returns one cash document.
func (t *Tenant) GetCash(ctx context.Context, guid string) (*models.CashDocument, error) {
	row := t.db.QueryRowContext(ctx,
		`SELECT `+cashColumns+` FROM cash WHERE guid = ? AND connection_id = ?`, guid, t.id)
	c, err := scanCash(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("cash %s: %w", guid, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query row scan failed: %w", err)
	}
	return &c, nil
}

// PendingCash returns processed cash documents that have not been accepted yet.
func (t *Tenant) PendingCash(ctx context.Context) ([]models.CashDocument, error) {
	rows, err := t.db.QueryContext(ctx, `SELECT `+cashColumns+` FROM cash
		WHERE connection_id = ? AND is_processed = 1 AND is_sent = 0 ORDER BY number`, t.id)
	if err != nil {
		return nil, fmt.Errorf("failed to select cash: %w", err)
	}
	defer rows.Close()

	var out []models.CashDocument
	for rows.Next() {
		c, err := scanCash(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
