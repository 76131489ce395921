package models

import "github.com/dmitrijs2005/fieldsync/internal/timex"

// Options is the capability document returned by the token request. It
// decides which optional data sets a session exchanges.
type Options struct {
	Token               string       `json:"token"`
	Read                bool         `json:"read"`
	Write               bool         `json:"write"`
	Locations           bool         `json:"locations"`
	ClientsLocations    bool         `json:"clients_locations"`
	ClientsDirections   bool         `json:"clients_directions"`
	ClientsGoods        bool         `json:"clients_goods"`
	LoadImages          bool         `json:"loadImages"`
	DifferentialUpdates bool         `json:"differentialUpdates"`
	CompetitorPrice     bool         `json:"competitorPrice"`
	LastLocationTime    timex.Millis `json:"lastLocationTime"`
	PrintingEnabled     bool         `json:"printingEnabled"`
	UserName            string       `json:"userName"`
}

func (Options) DataType() DataType { return TypeOptions }

// PullTypes returns the data types a full session pulls for these options.
func (o Options) PullTypes() []DataType {
	types := []DataType{TypeClients, TypeGoods, TypePriceTypes, TypePrices, TypeDebts}
	if o.LoadImages {
		types = append(types, TypeImages)
	}
	if o.ClientsGoods {
		types = append(types, TypeClientsGoods)
	}
	if o.ClientsDirections {
		types = append(types, TypeClientsDirections)
	}
	if o.ClientsLocations {
		types = append(types, TypeClientsLocations)
	}
	return types
}
