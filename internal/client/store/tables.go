package store

import (
	"fmt"
	"strings"

	"github.com/dmitrijs2005/fieldsync/internal/client/models"
	"github.com/dmitrijs2005/fieldsync/internal/common"
)

// table describes how rows of one reference data type map onto SQL.
type table struct {
	name string
	keys []string
	cols []string
	// set overrides the UPDATE expression of a column. The expression must
	// consume exactly one bound parameter.
	set map[string]string
	// values returns the key values and the column values of a row, in the
	// order of keys and cols.
	values func(models.Row) (keys, cols []any, err error)
}

var tables = map[models.DataType]*table{
	models.TypeGoods: {
		name: "goods",
		keys: []string{"guid"},
		cols: []string{"code", "description", "group_guid", "is_group", "unit", "barcode", "price", "quantity", "is_active"},
		values: func(r models.Row) ([]any, []any, error) {
			g, ok := r.(models.Good)
			if !ok {
				return nil, nil, unexpected(r, models.TypeGoods)
			}
			return []any{g.GUID}, []any{g.Code, g.Description, g.GroupGUID, g.IsGroup, g.Unit, g.Barcode, g.Price, g.Quantity, g.IsActive}, nil
		},
	},
	models.TypeClients: {
		name: "clients",
		keys: []string{"guid"},
		cols: []string{"code", "description", "group_guid", "is_group", "address", "phone", "price_type_guid", "discount", "is_banned", "is_active"},
		values: func(r models.Row) ([]any, []any, error) {
			c, ok := r.(models.Client)
			if !ok {
				return nil, nil, unexpected(r, models.TypeClients)
			}
			return []any{c.GUID}, []any{c.Code, c.Description, c.GroupGUID, c.IsGroup, c.Address, c.Phone, c.PriceTypeGUID, c.Discount, c.IsBanned, c.IsActive}, nil
		},
	},
	models.TypePriceTypes: {
		name: "price_types",
		keys: []string{"guid"},
		cols: []string{"description"},
		values: func(r models.Row) ([]any, []any, error) {
			p, ok := r.(models.PriceType)
			if !ok {
				return nil, nil, unexpected(r, models.TypePriceTypes)
			}
			return []any{p.GUID}, []any{p.Description}, nil
		},
	},
	models.TypePrices: {
		name: "prices",
		keys: []string{"goods_guid", "price_type_guid"},
		cols: []string{"price"},
		values: func(r models.Row) ([]any, []any, error) {
			p, ok := r.(models.Price)
			if !ok {
				return nil, nil, unexpected(r, models.TypePrices)
			}
			return []any{p.GoodsGUID, p.PriceTypeGUID}, []any{p.Price}, nil
		},
	},
	models.TypeDebts: {
		name: "debts",
		keys: []string{"client_guid", "doc_id"},
		cols: []string{"doc_guid", "doc_type", "sum", "sum_in", "sum_out", "has_content", "content", "sorting"},
		// content fetched on demand survives a pull that carries none
		set: map[string]string{"content": "COALESCE(NULLIF(?, ''), content)"},
		values: func(r models.Row) ([]any, []any, error) {
			d, ok := r.(models.Debt)
			if !ok {
				return nil, nil, unexpected(r, models.TypeDebts)
			}
			return []any{d.ClientGUID, d.DocID}, []any{d.DocGUID, d.DocType, d.Sum, d.SumIn, d.SumOut, d.HasContent, d.Content, d.Sorting}, nil
		},
	},
	models.TypeImages: {
		name: "images",
		keys: []string{"guid"},
		cols: []string{"goods_guid", "url", "description", "is_default"},
		values: func(r models.Row) ([]any, []any, error) {
			i, ok := r.(models.Image)
			if !ok {
				return nil, nil, unexpected(r, models.TypeImages)
			}
			return []any{i.GUID}, []any{i.GoodsGUID, i.URL, i.Description, i.IsDefault}, nil
		},
	},
	models.TypeClientsGoods: {
		name: "clients_goods",
		keys: []string{"client_guid", "goods_guid"},
		cols: []string{"sold", "last_date"},
		values: func(r models.Row) ([]any, []any, error) {
			c, ok := r.(models.ClientGoods)
			if !ok {
				return nil, nil, unexpected(r, models.TypeClientsGoods)
			}
			return []any{c.ClientGUID, c.GoodsGUID}, []any{c.Sold, c.LastDate}, nil
		},
	},
	models.TypeClientsDirections: {
		name: "clients_directions",
		keys: []string{"client_guid", "direction_guid"},
		cols: []string{"description"},
		values: func(r models.Row) ([]any, []any, error) {
			c, ok := r.(models.ClientDirection)
			if !ok {
				return nil, nil, unexpected(r, models.TypeClientsDirections)
			}
			return []any{c.ClientGUID, c.DirectionGUID}, []any{c.Description}, nil
		},
	},
	models.TypeClientsLocations: {
		name: "clients_locations",
		keys: []string{"client_guid"},
		cols: []string{"latitude", "longitude"},
		// positions edited on the device win until they are uploaded
		set: map[string]string{
			"latitude":  "CASE WHEN is_modified = 1 THEN latitude ELSE ? END",
			"longitude": "CASE WHEN is_modified = 1 THEN longitude ELSE ? END",
		},
		values: func(r models.Row) ([]any, []any, error) {
			c, ok := r.(models.ClientLocation)
			if !ok {
				return nil, nil, unexpected(r, models.TypeClientsLocations)
			}
			return []any{c.ClientGUID}, []any{c.Latitude, c.Longitude}, nil
		},
	},
}

// tenantTables lists every table carrying connection_id.
var tenantTables = []string{
	"goods", "clients", "price_types", "prices", "debts", "images",
	"clients_goods", "clients_directions", "clients_locations",
	"orders", "order_lines", "cash", "locations", "competitor_prices", "settings",
}

func unexpected(r models.Row, want models.DataType) error {
	return fmt.Errorf("%w: row %T is not %s", common.ErrStore, r, want)
}

func tableFor(dt models.DataType) (*table, error) {
	t, ok := tables[dt]
	if !ok {
		return nil, fmt.Errorf("%w: no table for data type %q", common.ErrStore, dt)
	}
	return t, nil
}

// updateSQL builds
//
//	UPDATE t SET c1 = ?, ..., time_stamp = ? WHERE k1 = ? AND ... AND connection_id = ?
func (t *table) updateSQL() string {
	sets := make([]string, 0, len(t.cols)+1)
	for _, c := range t.cols {
		expr := "?"
		if e, ok := t.set[c]; ok {
			expr = e
		}
		sets = append(sets, c+" = "+expr)
	}
	sets = append(sets, "time_stamp = ?")

	where := make([]string, 0, len(t.keys)+1)
	for _, k := range t.keys {
		where = append(where, k+" = ?")
	}
	where = append(where, common.ConnectionIDColumn+" = ?")

	return "UPDATE " + t.name + " SET " + strings.Join(sets, ", ") + " WHERE " + strings.Join(where, " AND ")
}

// insertColumns is the column order of insert rows: keys, cols, tenant, watermark.
func (t *table) insertColumns() []string {
	out := make([]string, 0, len(t.keys)+len(t.cols)+2)
	out = append(out, t.keys...)
	out = append(out, t.cols...)
	return append(out, common.ConnectionIDColumn, "time_stamp")
}
