package documents

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/fieldsync/internal/common"
	"github.com/dmitrijs2005/fieldsync/internal/server/models"
)

type docKey struct{ userID, guid string }

// MemoryRepository keeps documents and uploads in process memory.
type MemoryRepository struct {
	mu      sync.Mutex
	docs    map[docKey]models.Document
	uploads []models.Upload
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{docs: map[docKey]models.Document{}}
}

func (r *MemoryRepository) Create(_ context.Context, doc *models.Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := docKey{doc.UserID, doc.GUID}
	if _, ok := r.docs[k]; ok {
		return common.ErrAlreadyExists
	}
	doc.Received = time.Now()
	r.docs[k] = *doc
	return nil
}

func (r *MemoryRepository) Get(_ context.Context, userID, guid string) (*models.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.docs[docKey{userID, guid}]
	if !ok {
		return nil, common.ErrNotFound
	}
	return &d, nil
}

func (r *MemoryRepository) Confirm(_ context.Context, userID, guid, code, status string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := docKey{userID, guid}
	d, ok := r.docs[k]
	if !ok {
		return common.ErrNotFound
	}
	d.Code, d.Status = code, status
	r.docs[k] = d
	return nil
}

func (r *MemoryRepository) AddUpload(_ context.Context, u models.Upload) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u.Received = time.Now()
	r.uploads = append(r.uploads, u)
	return nil
}

func (r *MemoryRepository) Uploads(_ context.Context, userID, kind string) ([]models.Upload, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Upload
	for _, u := range r.uploads {
		if u.UserID == userID && u.Kind == kind {
			out = append(out, u)
		}
	}
	return out, nil
}
