package models

// User is a sales agent account. Options are returned verbatim by the check
// endpoint, with the session token filled in.
type User struct {
	ID           string
	UserName     string
	PasswordHash string
	Options      Options
	// LastSeq is the catalog sequence at the time the previous token was
	// issued; the next differential pull starts after it.
	LastSeq int64
}

// Options is the capability document sent to the client.
type Options struct {
	Token               string `json:"token"`
	Read                bool   `json:"read"`
	Write               bool   `json:"write"`
	Locations           bool   `json:"locations,omitempty"`
	ClientsLocations    bool   `json:"clients_locations,omitempty"`
	ClientsDirections   bool   `json:"clients_directions,omitempty"`
	ClientsGoods        bool   `json:"clients_goods,omitempty"`
	LoadImages          bool   `json:"loadImages,omitempty"`
	DifferentialUpdates bool   `json:"differentialUpdates,omitempty"`
	CompetitorPrice     bool   `json:"competitorPrice,omitempty"`
	LastLocationTime    int64  `json:"lastLocationTime,omitempty"`
	PrintingEnabled     bool   `json:"printingEnabled,omitempty"`
	UserName            string `json:"userName,omitempty"`
}
