package models

import "time"

// AuxKind identifies a one-shot upload that is not correlated to a document.
type AuxKind string

const (
	AuxLocations        AuxKind = "locations"
	AuxClientsLocations AuxKind = "clients_locations"
	AuxCompetitorPrices AuxKind = "competitor_prices"
	AuxPushToken        AuxKind = "push_token"
)

// Location is a device position ping.
type Location struct {
	Time      time.Time `json:"time"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Accuracy  float64   `json:"accuracy"`
	Speed     float64   `json:"speed"`
}

// CompetitorPrice is a price observed at a competitor's outlet.
type CompetitorPrice struct {
	GoodsGUID  string    `json:"goods_guid"`
	Competitor string    `json:"competitor"`
	Price      float64   `json:"price"`
	Notes      string    `json:"notes"`
	Time       time.Time `json:"time"`
}

// Outbox is everything a session will try to push, loaded from the store
// before the transport starts.
type Outbox struct {
	Orders           []Order
	Cash             []CashDocument
	Locations        []Location
	ClientLocations  []ClientLocation
	CompetitorPrices []CompetitorPrice
	PushToken        string
}

// Empty reports whether there is nothing to push.
func (o Outbox) Empty() bool {
	return len(o.Orders) == 0 && len(o.Cash) == 0 && len(o.Locations) == 0 &&
		len(o.ClientLocations) == 0 && len(o.CompetitorPrices) == 0 && o.PushToken == ""
}

// AuxResult is the server's answer to an auxiliary upload.
type AuxResult struct {
	Kind   AuxKind
	Result string
	Error  string
	// Until is the newest timestamp included in a time-ordered upload.
	Until time.Time
	// Keys identifies the uploaded rows for non time-ordered uploads.
	Keys []string
	// Value is the uploaded scalar (push token).
	Value string
}

func (r AuxResult) OK() bool { return IsOK(r.Result) }
