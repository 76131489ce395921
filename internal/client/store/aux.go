package store

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/fieldsync/internal/client/models"
	"github.com/dmitrijs2005/fieldsync/internal/dbx"
	"github.com/dmitrijs2005/fieldsync/internal/timex"
)

// AddLocation appends a position ping.
func (t *Tenant) AddLocation(ctx context.Context, l models.Location) error {
	_, err := t.db.ExecContext(ctx, `INSERT INTO locations
		(connection_id, time, latitude, longitude, accuracy, speed) VALUES (?, ?, ?, ?, ?, ?)`,
		t.id, timex.UnixMilli(l.Time), l.Latitude, l.Longitude, l.Accuracy, l.Speed)
	if err != nil {
		return fmt.Errorf("failed to insert location: %w", err)
	}
	return nil
}

// PendingLocations returns unsent pings newer than after, oldest first.
func (t *Tenant) PendingLocations(ctx context.Context, after time.Time) ([]models.Location, error) {
	rows, err := t.db.QueryContext(ctx, `SELECT time, latitude, longitude, accuracy, speed FROM locations
		WHERE connection_id = ? AND is_sent = 0 AND time > ? ORDER BY time`, t.id, timex.UnixMilli(after))
	if err != nil {
		return nil, fmt.Errorf("failed to select locations: %w", err)
	}
	defer rows.Close()

	var out []models.Location
	for rows.Next() {
		var (
			l  models.Location
			ms int64
		)
		if err := rows.Scan(&ms, &l.Latitude, &l.Longitude, &l.Accuracy, &l.Speed); err != nil {
			return nil, err
		}
		l.Time = timex.FromUnixMilli(ms)
		out = append(out, l)
	}
	return out, rows.Err()
}

// MarkLocationsSent flags every ping up to and including until as sent.
func (t *Tenant) MarkLocationsSent(ctx context.Context, until time.Time) error {
	_, err := t.db.ExecContext(ctx, `UPDATE locations SET is_sent = 1
		WHERE connection_id = ? AND is_sent = 0 AND time <= ?`, t.id, timex.UnixMilli(until))
	if err != nil {
		return fmt.Errorf("failed to mark locations sent: %w", err)
	}
	return nil
}

// SetClientLocation records a position edited on the device. It is kept
// over pulled positions until uploaded.
func (t *Tenant) SetClientLocation(ctx context.Context, l models.ClientLocation) error {
	_, err := t.db.ExecContext(ctx, `INSERT INTO clients_locations
		(client_guid, connection_id, latitude, longitude, is_modified) VALUES (?, ?, ?, ?, 1)
		ON CONFLICT(client_guid, connection_id) DO UPDATE SET
			latitude = excluded.latitude, longitude = excluded.longitude, is_modified = 1`,
		l.ClientGUID, t.id, l.Latitude, l.Longitude)
	if err != nil {
		return fmt.Errorf("failed to set client location: %w", err)
	}
	return nil
}

// ModifiedClientLocations returns positions waiting for upload.
func (t *Tenant) ModifiedClientLocations(ctx context.Context) ([]models.ClientLocation, error) {
	rows, err := t.db.QueryContext(ctx, `SELECT client_guid, latitude, longitude FROM clients_locations
		WHERE connection_id = ? AND is_modified = 1 ORDER BY client_guid`, t.id)
	if err != nil {
		return nil, fmt.Errorf("failed to select client locations: %w", err)
	}
	defer rows.Close()

	var out []models.ClientLocation
	for rows.Next() {
		l := models.ClientLocation{IsModified: true}
		if err := rows.Scan(&l.ClientGUID, &l.Latitude, &l.Longitude); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// MarkClientLocationsSent clears the modified flag of the given clients.
func (t *Tenant) MarkClientLocationsSent(ctx context.Context, clientGUIDs []string) error {
	return dbx.WithTx(ctx, t.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		for _, g := range clientGUIDs {
			if _, err := tx.ExecContext(ctx, `UPDATE clients_locations SET is_modified = 0
				WHERE client_guid = ? AND connection_id = ?`, g, t.id); err != nil {
				return fmt.Errorf("failed to mark client location sent: %w", err)
			}
		}
		return nil
	})
}

// AddCompetitorPrice stores an observation, replacing an earlier one for the
// same goods and competitor.
func (t *Tenant) AddCompetitorPrice(ctx context.Context, p models.CompetitorPrice) error {
	_, err := t.db.ExecContext(ctx, `INSERT INTO competitor_prices
		(goods_guid, competitor, connection_id, price, notes, time, is_sent) VALUES (?, ?, ?, ?, ?, ?, 0)
		ON CONFLICT(goods_guid, competitor, connection_id) DO UPDATE SET
			price = excluded.price, notes = excluded.notes, time = excluded.time, is_sent = 0`,
		p.GoodsGUID, p.Competitor, t.id, p.Price, p.Notes, timex.UnixMilli(p.Time))
	if err != nil {
		return fmt.Errorf("failed to upsert competitor price: %w", err)
	}
	return nil
}

// PendingCompetitorPrices returns unsent observations, oldest first.
func (t *Tenant) PendingCompetitorPrices(ctx context.Context) ([]models.CompetitorPrice, error) {
	rows, err := t.db.QueryContext(ctx, `SELECT goods_guid, competitor, price, notes, time FROM competitor_prices
		WHERE connection_id = ? AND is_sent = 0 ORDER BY time`, t.id)
	if err != nil {
		return nil, fmt.Errorf("failed to select competitor prices: %w", err)
	}
	defer rows.Close()

	var out []models.CompetitorPrice
	for rows.Next() {
		var (
			p  models.CompetitorPrice
			ms int64
		)
		if err := rows.Scan(&p.GoodsGUID, &p.Competitor, &p.Price, &p.Notes, &ms); err != nil {
			return nil, err
		}
		p.Time = timex.FromUnixMilli(ms)
		out = append(out, p)
	}
	return out, rows.Err()
}

// MarkCompetitorPricesSent flags observations up to and including until.
func (t *Tenant) MarkCompetitorPricesSent(ctx context.Context, until time.Time) error {
	_, err := t.db.ExecContext(ctx, `UPDATE competitor_prices SET is_sent = 1
		WHERE connection_id = ? AND is_sent = 0 AND time <= ?`, t.id, timex.UnixMilli(until))
	if err != nil {
		return fmt.Errorf("failed to mark competitor prices sent: %w", err)
	}
	return nil
}

// Outbox collects everything a session should push. pushToken is the
// configured notification token; it is included only when it differs from
// the last one the server accepted.
func (t *Tenant) Outbox(ctx context.Context, opts models.Options, pushToken string) (models.Outbox, error) {
	var (
		out models.Outbox
		err error
	)
	if out.Orders, err = t.PendingOrders(ctx); err != nil {
		return out, err
	}
	if out.Cash, err = t.PendingCash(ctx); err != nil {
		return out, err
	}
	if opts.Locations {
		if out.Locations, err = t.PendingLocations(ctx, opts.LastLocationTime.Time); err != nil {
			return out, err
		}
	}
	if opts.ClientsLocations {
		if out.ClientLocations, err = t.ModifiedClientLocations(ctx); err != nil {
			return out, err
		}
	}
	if opts.CompetitorPrice {
		if out.CompetitorPrices, err = t.PendingCompetitorPrices(ctx); err != nil {
			return out, err
		}
	}
	if pushToken != "" {
		sent, err := t.Setting(ctx, SettingPushTokenSent)
		if err != nil {
			return out, err
		}
		if string(sent) != pushToken {
			out.PushToken = pushToken
		}
	}
	return out, nil
}

// MarkAuxSent applies an accepted auxiliary upload.
func (t *Tenant) MarkAuxSent(ctx context.Context, r models.AuxResult) error {
	switch r.Kind {
	case models.AuxLocations:
		return t.MarkLocationsSent(ctx, r.Until)
	case models.AuxClientsLocations:
		return t.MarkClientLocationsSent(ctx, r.Keys)
	case models.AuxCompetitorPrices:
		return t.MarkCompetitorPricesSent(ctx, r.Until)
	case models.AuxPushToken:
		return t.SetSetting(ctx, SettingPushTokenSent, []byte(r.Value))
	}
	return fmt.Errorf("unknown upload kind %q", r.Kind)
}
