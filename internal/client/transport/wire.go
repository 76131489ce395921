package transport

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/dmitrijs2005/fieldsync/internal/client/models"
	"github.com/dmitrijs2005/fieldsync/internal/common"
	"github.com/dmitrijs2005/fieldsync/internal/timex"
)

// page is one pull response.
type page struct {
	Data []json.RawMessage `json:"data"`
	More *int64            `json:"more,omitempty"`
}

type envelope struct {
	Type models.DataType `json:"type"`
}

var decoders = map[models.DataType]func([]byte) (models.Row, error){
	models.TypeGoods:             decodeAs[models.Good],
	models.TypeClients:           decodeAs[models.Client],
	models.TypePriceTypes:        decodeAs[models.PriceType],
	models.TypePrices:            decodeAs[models.Price],
	models.TypeDebts:             decodeAs[models.Debt],
	models.TypeImages:            decodeAs[models.Image],
	models.TypeClientsGoods:      decodeAs[models.ClientGoods],
	models.TypeClientsDirections: decodeAs[models.ClientDirection],
	models.TypeClientsLocations:  decodeAs[models.ClientLocation],
	models.TypeDocumentContent:   decodeAs[models.DocumentContent],
}

func decodeAs[T models.Row](b []byte) (models.Row, error) {
	var v T
	if err := json.Unmarshal(b, &v); err != nil {
		return nil, err
	}
	return v, nil
}

// decodeRecord decodes one typed record. The discriminator field wins; a
// record without one is taken to be of the requested type.
func decodeRecord(raw []byte, requested models.DataType) (models.Row, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: record: %w", common.ErrProtocol, err)
	}
	dt := env.Type
	if dt == "" {
		dt = requested
	}
	dec, ok := decoders[dt]
	if !ok {
		return nil, fmt.Errorf("%w: unknown record type %q", common.ErrProtocol, dt)
	}
	row, err := dec(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s record: %w", common.ErrProtocol, dt, err)
	}
	return row, nil
}

// decodePage decodes a pull response into typed records.
func decodePage(body []byte, requested models.DataType) ([]models.Row, *int64, error) {
	var p page
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, nil, fmt.Errorf("%w: page: %w", common.ErrProtocol, err)
	}
	rows := make([]models.Row, 0, len(p.Data))
	for _, raw := range p.Data {
		row, err := decodeRecord(raw, requested)
		if err != nil {
			return nil, nil, err
		}
		rows = append(rows, row)
	}
	return rows, p.More, nil
}

// pushResponse is the answer to every POST.
type pushResponse struct {
	Result string `json:"result"`
	Status string `json:"status"`
	Error  string `json:"error"`
}

type printResponse struct {
	Result string `json:"result"`
	Data   string `json:"data"`
	Error  string `json:"error"`
}

type contentResponse struct {
	Content string `json:"content"`
}

// Push bodies. Every body carries its kind in "type".

type orderBody struct {
	Type string `json:"type"`
	models.Order
	Date         int64 `json:"date"`
	DeliveryDate int64 `json:"delivery_date"`
}

func orderPayload(o models.Order) orderBody {
	return orderBody{
		Type:         string(models.KindOrder),
		Order:        o,
		Date:         timex.UnixMilli(o.Date),
		DeliveryDate: timex.UnixMilli(o.DeliveryDate),
	}
}

type cashBody struct {
	Type string `json:"type"`
	models.CashDocument
	Date int64 `json:"date"`
}

func cashPayload(c models.CashDocument) cashBody {
	return cashBody{Type: string(models.KindCash), CashDocument: c, Date: timex.UnixMilli(c.Date)}
}

type locationItem struct {
	Time      int64   `json:"time"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Accuracy  float64 `json:"accuracy"`
	Speed     float64 `json:"speed"`
}

type competitorPriceItem struct {
	GoodsGUID  string  `json:"goods_guid"`
	Competitor string  `json:"competitor"`
	Price      float64 `json:"price"`
	Notes      string  `json:"notes"`
	Time       int64   `json:"time"`
}

type batchBody struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

type pushTokenBody struct {
	Type  string `json:"type"`
	Token string `json:"token"`
}

// auxUpload is one prepared auxiliary POST.
type auxUpload struct {
	kind  models.AuxKind
	body  any
	until time.Time
	keys  []string
	value string
}

// auxUploads prepares the auxiliary uploads allowed by opts.
func auxUploads(box models.Outbox, opts models.Options) []auxUpload {
	var out []auxUpload

	if opts.Locations {
		var (
			items []locationItem
			until time.Time
		)
		for _, l := range box.Locations {
			if !l.Time.After(opts.LastLocationTime.Time) {
				continue
			}
			items = append(items, locationItem{
				Time: timex.UnixMilli(l.Time), Latitude: l.Latitude, Longitude: l.Longitude,
				Accuracy: l.Accuracy, Speed: l.Speed,
			})
			if l.Time.After(until) {
				until = l.Time
			}
		}
		if len(items) > 0 {
			out = append(out, auxUpload{
				kind:  models.AuxLocations,
				body:  batchBody{Type: string(models.AuxLocations), Data: items},
				until: until,
			})
		}
	}

	if opts.ClientsLocations && len(box.ClientLocations) > 0 {
		keys := make([]string, len(box.ClientLocations))
		for i, l := range box.ClientLocations {
			keys[i] = l.ClientGUID
		}
		out = append(out, auxUpload{
			kind: models.AuxClientsLocations,
			body: batchBody{Type: string(models.AuxClientsLocations), Data: box.ClientLocations},
			keys: keys,
		})
	}

	if opts.CompetitorPrice && len(box.CompetitorPrices) > 0 {
		var until time.Time
		items := make([]competitorPriceItem, len(box.CompetitorPrices))
		for i, p := range box.CompetitorPrices {
			items[i] = competitorPriceItem{
				GoodsGUID: p.GoodsGUID, Competitor: p.Competitor, Price: p.Price, Notes: p.Notes,
				Time: timex.UnixMilli(p.Time),
			}
			if p.Time.After(until) {
				until = p.Time
			}
		}
		out = append(out, auxUpload{
			kind:  models.AuxCompetitorPrices,
			body:  batchBody{Type: string(models.AuxCompetitorPrices), Data: items},
			until: until,
		})
	}

	if box.PushToken != "" {
		out = append(out, auxUpload{
			kind:  models.AuxPushToken,
			body:  pushTokenBody{Type: string(models.AuxPushToken), Token: box.PushToken},
			value: box.PushToken,
		})
	}
	return out
}

func (u auxUpload) result(r pushResponse) models.AuxResult {
	return models.AuxResult{
		Kind:   u.kind,
		Result: r.Result,
		Error:  r.Error,
		Until:  u.until,
		Keys:   u.keys,
		Value:  u.value,
	}
}
