package models

import "encoding/json"

// DiffType is the pseudo data type of the differential pull.
const DiffType = "diff"

// CatalogRow is one reference record owned by a user. Seq grows on every
// insert or update and orders pages.
type CatalogRow struct {
	UserID   string
	DataType string
	Key      string
	Seq      int64
	Payload  json.RawMessage
}

// Page is one response of the paginated pull. More is the cursor of the next
// page, nil on the last one.
type Page struct {
	Data []json.RawMessage `json:"data"`
	More *int64            `json:"more,omitempty"`
}
