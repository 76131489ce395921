package models

import (
	"encoding/json"
	"time"
)

// Document kinds accepted by the post endpoint.
const (
	KindOrder = "order"
	KindCash  = "cash"
)

// Upload kinds accepted by the post endpoint.
const (
	UploadLocations        = "locations"
	UploadClientsLocations = "clients_locations"
	UploadCompetitorPrices = "competitor_prices"
	UploadPushToken        = "push_token"
)

// Result values.
const (
	ResultOK    = "ok"
	ResultError = "error"
)

// Document is a submitted order or cash document.
type Document struct {
	UserID   string
	GUID     string
	Kind     string
	Payload  json.RawMessage
	Result   string
	Status   string
	Error    string
	Code     string
	Received time.Time
}

// Upload is an auxiliary batch (locations, prices, push token).
type Upload struct {
	UserID   string
	Kind     string
	Payload  json.RawMessage
	Received time.Time
}

// PostResult is the answer to a post, confirm or print request.
type PostResult struct {
	Result string `json:"result"`
	Status string `json:"status,omitempty"`
	Error  string `json:"error,omitempty"`
	Data   string `json:"data,omitempty"`
}
