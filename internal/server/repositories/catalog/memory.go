package catalog

import (
	"context"
	"sort"
	"sync"

	"github.com/dmitrijs2005/fieldsync/internal/common"
	"github.com/dmitrijs2005/fieldsync/internal/server/models"
)

type rowKey struct{ userID, dataType, key string }

// MemoryRepository keeps the catalog in process memory.
type MemoryRepository struct {
	mu       sync.Mutex
	seq      int64
	rows     map[rowKey]models.CatalogRow
	contents map[rowKey]string
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{rows: map[rowKey]models.CatalogRow{}, contents: map[rowKey]string{}}
}

func (r *MemoryRepository) Upsert(_ context.Context, row models.CatalogRow) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	row.Seq = r.seq
	r.rows[rowKey{row.UserID, row.DataType, row.Key}] = row
	return row.Seq, nil
}

func (r *MemoryRepository) Page(_ context.Context, userID, dataType string, after int64, limit int) ([]models.CatalogRow, error) {
	return r.collect(func(c models.CatalogRow) bool {
		return c.UserID == userID && c.DataType == dataType && c.Seq > after
	}, limit), nil
}

func (r *MemoryRepository) Changed(_ context.Context, userID string, after int64, limit int) ([]models.CatalogRow, error) {
	return r.collect(func(c models.CatalogRow) bool {
		return c.UserID == userID && c.Seq > after
	}, limit), nil
}

func (r *MemoryRepository) collect(match func(models.CatalogRow) bool, limit int) []models.CatalogRow {
	r.mu.Lock()
	var out []models.CatalogRow
	for _, c := range r.rows {
		if match(c) {
			out = append(out, c)
		}
	}
	r.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (r *MemoryRepository) MaxSeq(_ context.Context, userID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var top int64
	for _, c := range r.rows {
		if c.UserID == userID && c.Seq > top {
			top = c.Seq
		}
	}
	return top, nil
}

func (r *MemoryRepository) PutContent(_ context.Context, userID, docType, docGUID, content string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.contents[rowKey{userID, docType, docGUID}] = content
	return nil
}

func (r *MemoryRepository) Content(_ context.Context, userID, docType, docGUID string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.contents[rowKey{userID, docType, docGUID}]
	if !ok {
		return "", common.ErrNotFound
	}
	return c, nil
}
