package services

import "github.com/dmitrijs2005/fieldsync/internal/client/models"

// groupByType splits a mixed batch into homogeneous batches. Types are
// returned in order of first appearance and rows keep their arrival order.
func groupByType(rows []models.Row) ([]models.DataType, map[models.DataType][]models.Row) {
	var order []models.DataType
	groups := make(map[models.DataType][]models.Row)
	for _, r := range rows {
		dt := r.DataType()
		if _, ok := groups[dt]; !ok {
			order = append(order, dt)
		}
		groups[dt] = append(groups[dt], r)
	}
	return order, groups
}

// batcher accumulates incoming records and hands them to flush in order.
type batcher struct {
	threshold int
	direct    int
	buf       []models.Row
	flush     func([]models.Row)
}

// add buffers rows. A batch of at least direct rows bypasses the buffer
// after flushing what was buffered before it; otherwise the buffer is
// flushed once it grows past threshold.
func (b *batcher) add(rows []models.Row) {
	if len(rows) == 0 {
		return
	}
	if b.direct > 0 && len(rows) >= b.direct {
		b.drain()
		b.flush(rows)
		return
	}
	b.buf = append(b.buf, rows...)
	if len(b.buf) > b.threshold {
		b.drain()
	}
}

// drain flushes the buffer.
func (b *batcher) drain() {
	if len(b.buf) == 0 {
		return
	}
	rows := b.buf
	b.buf = nil
	b.flush(rows)
}
