// Package models defines the client-side records exchanged by the sync engine:
// reference rows pulled from the server, outbound documents pushed to it and
// the small envelopes (options, results, watermarks) that glue a session
// together.
package models

// DataType is the discriminator carried by every record on the wire.
type DataType string

const (
	TypeGoods             DataType = "goods"
	TypeClients           DataType = "clients"
	TypePriceTypes        DataType = "price_types"
	TypePrices            DataType = "prices"
	TypeDebts             DataType = "debts"
	TypeImages            DataType = "images"
	TypeClientsGoods      DataType = "clients_goods"
	TypeClientsDirections DataType = "clients_directions"
	TypeClientsLocations  DataType = "clients_locations"

	// TypeOptions is the capability document returned with the session token.
	TypeOptions DataType = "options"
	// TypeDocumentContent carries a lazily fetched debt document body.
	TypeDocumentContent DataType = "document_content"
	// TypeWatermark is synthesized by the orchestrator at the end of a full
	// session; applying it prunes rows the server stopped returning.
	TypeWatermark DataType = "watermark"
	// TypeDiff is the pseudo data type of the differential pull.
	TypeDiff DataType = "diff"
)

var referenceTypes = []DataType{
	TypeClients,
	TypeGoods,
	TypePriceTypes,
	TypePrices,
	TypeDebts,
	TypeImages,
	TypeClientsGoods,
	TypeClientsDirections,
	TypeClientsLocations,
}

// ReferenceTypes lists the server-authoritative data types in pull order.
func ReferenceTypes() []DataType {
	out := make([]DataType, len(referenceTypes))
	copy(out, referenceTypes)
	return out
}

// IsReference reports whether t is a reference (table-backed, prunable) type.
func (t DataType) IsReference() bool {
	for _, r := range referenceTypes {
		if r == t {
			return true
		}
	}
	return false
}

// Row is a typed record ready to be merged into the local store.
type Row interface {
	DataType() DataType
}

// Watermark is the synthetic end-of-session record. Value is the session
// watermark in unix milliseconds; zero means nothing was received. Types
// lists the data types that were pulled and may therefore be pruned.
type Watermark struct {
	Value int64
	Types []DataType
}

func (Watermark) DataType() DataType { return TypeWatermark }

// DocumentContent is the body of a debt document fetched on demand.
type DocumentContent struct {
	DocType string `json:"doc_type"`
	DocGUID string `json:"doc_guid"`
	Content string `json:"content"`
}

func (DocumentContent) DataType() DataType { return TypeDocumentContent }
