package models

import "encoding/json"

// Good is a catalog item. Goods are never deleted locally; goods the server
// stops returning are deactivated so historical order lines keep resolving.
type Good struct {
	GUID        string  `json:"guid"`
	Code        string  `json:"code"`
	Description string  `json:"description"`
	GroupGUID   string  `json:"group_guid"`
	IsGroup     bool    `json:"is_group"`
	Unit        string  `json:"unit"`
	Barcode     string  `json:"barcode"`
	Price       float64 `json:"price"`
	Quantity    float64 `json:"quantity"`
	IsActive    bool    `json:"is_active"`
}

func (Good) DataType() DataType { return TypeGoods }

// UnmarshalJSON defaults IsActive to true when the server omits it.
func (g *Good) UnmarshalJSON(b []byte) error {
	type plain Good
	v := plain{IsActive: true}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*g = Good(v)
	return nil
}

type Client struct {
	GUID          string  `json:"guid"`
	Code          string  `json:"code"`
	Description   string  `json:"description"`
	GroupGUID     string  `json:"group_guid"`
	IsGroup       bool    `json:"is_group"`
	Address       string  `json:"address"`
	Phone         string  `json:"phone"`
	PriceTypeGUID string  `json:"price_type_guid"`
	Discount      float64 `json:"discount"`
	IsBanned      bool    `json:"is_banned"`
	IsActive      bool    `json:"is_active"`
}

func (Client) DataType() DataType { return TypeClients }

func (c *Client) UnmarshalJSON(b []byte) error {
	type plain Client
	v := plain{IsActive: true}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*c = Client(v)
	return nil
}

type PriceType struct {
	GUID        string `json:"guid"`
	Description string `json:"description"`
}

func (PriceType) DataType() DataType { return TypePriceTypes }

type Price struct {
	GoodsGUID     string  `json:"goods_guid"`
	PriceTypeGUID string  `json:"price_type_guid"`
	Price         float64 `json:"price"`
}

func (Price) DataType() DataType { return TypePrices }

// Debt is either the running balance of a client (blank DocID) or one
// statement line. Content is fetched lazily when HasContent is set.
type Debt struct {
	ClientGUID string  `json:"client_guid"`
	DocID      string  `json:"doc_id"`
	DocGUID    string  `json:"doc_guid"`
	DocType    string  `json:"doc_type"`
	Sum        float64 `json:"sum"`
	SumIn      float64 `json:"sum_in"`
	SumOut     float64 `json:"sum_out"`
	HasContent bool    `json:"has_content"`
	Content    string  `json:"content"`
	Sorting    int     `json:"sorting"`
}

func (Debt) DataType() DataType { return TypeDebts }

// IsBalance reports whether the row is the client's running balance.
func (d Debt) IsBalance() bool { return d.DocID == "" }

// NeedsContent reports whether the document body must be fetched.
func (d Debt) NeedsContent() bool {
	return d.HasContent && d.Content == "" && d.DocGUID != ""
}

type Image struct {
	GUID        string `json:"guid"`
	GoodsGUID   string `json:"goods_guid"`
	URL         string `json:"url"`
	Description string `json:"description"`
	IsDefault   bool   `json:"is_default"`
}

func (Image) DataType() DataType { return TypeImages }

// ClientGoods is one assortment line: goods the client is expected to buy.
type ClientGoods struct {
	ClientGUID string  `json:"client_guid"`
	GoodsGUID  string  `json:"goods_guid"`
	Sold       float64 `json:"sold"`
	LastDate   string  `json:"last_date"`
}

func (ClientGoods) DataType() DataType { return TypeClientsGoods }

type ClientDirection struct {
	ClientGUID    string `json:"client_guid"`
	DirectionGUID string `json:"direction_guid"`
	Description   string `json:"description"`
}

func (ClientDirection) DataType() DataType { return TypeClientsDirections }

// ClientLocation is the geo position of a client. Positions edited on the
// device are flagged IsModified until the server accepts them.
type ClientLocation struct {
	ClientGUID string  `json:"client_guid"`
	Latitude   float64 `json:"latitude"`
	Longitude  float64 `json:"longitude"`
	IsModified bool    `json:"-"`
}

func (ClientLocation) DataType() DataType { return TypeClientsLocations }
