package models

import (
	"strings"
	"time"
)

// DocKind identifies an outbound document type.
type DocKind string

const (
	KindOrder DocKind = "order"
	KindCash  DocKind = "cash"
)

// DocState is the lifecycle state of an outbound document.
type DocState string

const (
	StateDraft          DocState = "draft"
	StateProcessed      DocState = "processed"
	StateSent           DocState = "sent"
	StateSentWithStatus DocState = "sent_with_status"
)

// DocFlags holds the lifecycle columns shared by orders and cash documents.
type DocFlags struct {
	IsProcessed bool   `json:"-"`
	IsSent      bool   `json:"-"`
	Status      string `json:"-"`
	Error       string `json:"-"`
}

// State derives the lifecycle state from the flags.
func (f DocFlags) State() DocState {
	switch {
	case f.IsSent && f.Status != "":
		return StateSentWithStatus
	case f.IsSent:
		return StateSent
	case f.IsProcessed:
		return StateProcessed
	default:
		return StateDraft
	}
}

// Editable reports whether the document may still be changed on the device.
func (f DocFlags) Editable() bool { return !f.IsProcessed && !f.IsSent }

type OrderLine struct {
	LineNo    int     `json:"line_no"`
	GoodsGUID string  `json:"goods_guid"`
	Unit      string  `json:"unit"`
	Quantity  float64 `json:"quantity"`
	Price     float64 `json:"price"`
	Sum       float64 `json:"sum"`
}

// Order is a sales order created on the device.
type Order struct {
	GUID          string      `json:"guid"`
	Number        int64       `json:"number"`
	Date          time.Time   `json:"date"`
	ClientGUID    string      `json:"client_guid"`
	PriceTypeGUID string      `json:"price_type_guid"`
	DeliveryDate  time.Time   `json:"delivery_date"`
	PaymentType   string      `json:"payment_type"`
	IsReturn      bool        `json:"is_return"`
	Discount      float64     `json:"discount"`
	Total         float64     `json:"total"`
	Notes         string      `json:"notes"`
	Lines         []OrderLine `json:"items"`

	DocFlags
}

// Recalculate recomputes line sums and the order total.
func (o *Order) Recalculate() {
	var total float64
	for i := range o.Lines {
		o.Lines[i].LineNo = i + 1
		o.Lines[i].Sum = o.Lines[i].Quantity * o.Lines[i].Price
		total += o.Lines[i].Sum
	}
	if o.Discount != 0 {
		total = total * (100 - o.Discount) / 100
	}
	o.Total = total
}

// CashDocument is a payment received from a client.
type CashDocument struct {
	GUID         string    `json:"guid"`
	Number       int64     `json:"number"`
	Date         time.Time `json:"date"`
	ClientGUID   string    `json:"client_guid"`
	ReferenceDoc string    `json:"reference_doc"`
	Sum          float64   `json:"sum"`
	Notes        string    `json:"notes"`
	FiscalNumber string    `json:"fiscal_number"`

	DocFlags
}

// PendingResult is the server's answer to a pushed document.
type PendingResult struct {
	Kind   DocKind
	GUID   string
	Result string
	Status string
	Error  string
}

// OK reports whether the server accepted the document.
func (r PendingResult) OK() bool { return IsOK(r.Result) }

// IsOK matches a protocol result field. Confirmation and print replies use
// "OK", document posts use "ok".
func IsOK(result string) bool { return strings.EqualFold(result, "ok") }
