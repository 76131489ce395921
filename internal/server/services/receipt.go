package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dmitrijs2005/fieldsync/internal/server/models"
)

type receiptBody struct {
	GUID       string  `json:"guid"`
	Number     int64   `json:"number"`
	Date       int64   `json:"date"`
	ClientGUID string  `json:"client_guid"`
	Total      float64 `json:"total"`
	Sum        float64 `json:"sum"`
	Notes      string  `json:"notes"`
	Items      []struct {
		GoodsGUID string  `json:"goods_guid"`
		Unit      string  `json:"unit"`
		Quantity  float64 `json:"quantity"`
		Price     float64 `json:"price"`
		Sum       float64 `json:"sum"`
	} `json:"items"`
}

// renderReceipt produces the plain-text printable form of an accepted
// document.
func renderReceipt(doc *models.Document) ([]byte, error) {
	var b receiptBody
	if err := json.Unmarshal(doc.Payload, &b); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%s #%d\n", strings.ToUpper(doc.Kind), b.Number)
	if b.Date > 0 {
		fmt.Fprintf(&buf, "Date:   %s\n", time.UnixMilli(b.Date).UTC().Format("2006-01-02 15:04"))
	}
	fmt.Fprintf(&buf, "Client: %s\n", b.ClientGUID)
	fmt.Fprintf(&buf, "Ref:    %s\n", b.GUID)

	switch doc.Kind {
	case models.KindOrder:
		buf.WriteString("\n")
		tw := tabwriter.NewWriter(&buf, 0, 4, 2, ' ', tabwriter.AlignRight)
		fmt.Fprintln(tw, "goods\tqty\tunit\tprice\tsum\t")
		for _, it := range b.Items {
			fmt.Fprintf(tw, "%s\t%g\t%s\t%.2f\t%.2f\t\n", it.GoodsGUID, it.Quantity, it.Unit, it.Price, it.Sum)
		}
		if err := tw.Flush(); err != nil {
			return nil, err
		}
		fmt.Fprintf(&buf, "\nTotal: %.2f\n", b.Total)
	case models.KindCash:
		fmt.Fprintf(&buf, "\nReceived: %.2f\n", b.Sum)
	}
	if b.Notes != "" {
		fmt.Fprintf(&buf, "Notes: %s\n", b.Notes)
	}
	return buf.Bytes(), nil
}

// storeReceipt renders and stores the printable form. Failures are logged;
// the document itself stays accepted.
func (s *Service) storeReceipt(ctx context.Context, doc *models.Document) {
	if s.prints == nil {
		return
	}
	file, err := renderReceipt(doc)
	if err == nil {
		err = s.prints.Put(ctx, doc.GUID, file)
	}
	if err != nil {
		s.log.Warn(ctx, "receipt not stored", "guid", doc.GUID, "error", err)
	}
}
