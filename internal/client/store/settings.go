package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/fieldsync/internal/client/models"
	"github.com/dmitrijs2005/fieldsync/internal/common"
)

// Setting keys.
const (
	SettingOptions       = "options"
	SettingWatermark     = "watermark"
	SettingLastSync      = "last_sync"
	SettingPushTokenSent = "push_token_sent"
)

// Setting returns the raw value of key, or nil when it is not set.
func (t *Tenant) Setting(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := t.db.QueryRowContext(ctx,
		`SELECT value FROM settings WHERE key = ? AND connection_id = ?`, key, t.id).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get setting[%s]: %w", key, err)
	}
	return value, nil
}

func (t *Tenant) SetSetting(ctx context.Context, key string, value []byte) error {
	_, err := t.db.ExecContext(ctx, `
		INSERT INTO settings (key, connection_id, value) VALUES (?, ?, ?)
		ON CONFLICT(key, connection_id) DO UPDATE SET value = excluded.value
	`, key, t.id, value)
	if err != nil {
		return fmt.Errorf("failed to set setting[%s]: %w", key, err)
	}
	return nil
}

func (t *Tenant) DeleteSetting(ctx context.Context, key string) error {
	_, err := t.db.ExecContext(ctx, `DELETE FROM settings WHERE key = ? AND connection_id = ?`, key, t.id)
	if err != nil {
		return fmt.Errorf("failed to delete setting[%s]: %w", key, err)
	}
	return nil
}

// Settings lists every setting of the tenant.
func (t *Tenant) Settings(ctx context.Context) (map[string][]byte, error) {
	rows, err := t.db.QueryContext(ctx, `SELECT key, value FROM settings WHERE connection_id = ?`, t.id)
	if err != nil {
		return nil, fmt.Errorf("failed to list settings: %w", err)
	}
	defer rows.Close()

	result := make(map[string][]byte)
	for rows.Next() {
		var (
			key   string
			value []byte
		)
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("failed to scan settings row: %w", err)
		}
		result[key] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate settings rows: %w", err)
	}
	return result, nil
}

// SaveJSON stores v marshalled as JSON under key.
func (t *Tenant) SaveJSON(ctx context.Context, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal setting[%s]: %w", key, err)
	}
	return t.SetSetting(ctx, key, b)
}

// LoadJSON decodes the value of key into v. It returns common.ErrNotFound
// when the key is not set.
func (t *Tenant) LoadJSON(ctx context.Context, key string, v any) error {
	b, err := t.Setting(ctx, key)
	if err != nil {
		return err
	}
	if b == nil {
		return fmt.Errorf("setting[%s]: %w", key, common.ErrNotFound)
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("unmarshal setting[%s]: %w", key, err)
	}
	return nil
}

func (t *Tenant) SaveOptions(ctx context.Context, o models.Options) error {
	return t.SaveJSON(ctx, SettingOptions, o)
}

// Options returns the last stored capability document, or the zero value.
func (t *Tenant) Options(ctx context.Context) (models.Options, error) {
	var o models.Options
	err := t.LoadJSON(ctx, SettingOptions, &o)
	if errors.Is(err, common.ErrNotFound) {
		return models.Options{}, nil
	}
	return o, err
}

func (t *Tenant) SaveWatermark(ctx context.Context, w int64) error {
	return t.SaveJSON(ctx, SettingWatermark, w)
}

// Watermark returns the watermark of the last completed full sync, or 0.
func (t *Tenant) Watermark(ctx context.Context) (int64, error) {
	var w int64
	err := t.LoadJSON(ctx, SettingWatermark, &w)
	if errors.Is(err, common.ErrNotFound) {
		return 0, nil
	}
	return w, err
}
