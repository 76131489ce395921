package services

import (
	"time"

	"github.com/dmitrijs2005/fieldsync/internal/client/models"
	"github.com/dmitrijs2005/fieldsync/internal/client/transport"
)

// Summary is the aggregate outcome of a finished session.
type Summary struct {
	Tenant    string         `json:"tenant"`
	Mode      transport.Mode `json:"mode"`
	Started   time.Time      `json:"started"`
	Duration  time.Duration  `json:"duration"`
	Watermark int64          `json:"watermark"`

	// Records counts merged rows per data type.
	Records map[models.DataType]int `json:"records"`
	// Failed counts rows whose batch could not be merged.
	Failed int `json:"failed"`

	Sent      int `json:"sent"`
	Rejected  int `json:"rejected"`
	Confirmed int `json:"confirmed"`
	Uploads   int `json:"uploads"`

	Pruned map[models.DataType]int64 `json:"pruned,omitempty"`

	// PrintFile is the decoded file of a PRINT session.
	PrintFile []byte `json:"-"`
}

func newSummary(tenant string, mode transport.Mode, started time.Time) *Summary {
	return &Summary{
		Tenant:  tenant,
		Mode:    mode,
		Started: started,
		Records: map[models.DataType]int{},
		Pruned:  map[models.DataType]int64{},
	}
}

// Total returns the number of merged rows.
func (s *Summary) Total() int {
	n := 0
	for _, v := range s.Records {
		n += v
	}
	return n
}
