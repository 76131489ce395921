package users

import (
	"context"
	"sync"

	"github.com/dmitrijs2005/fieldsync/internal/common"
	"github.com/dmitrijs2005/fieldsync/internal/server/models"
	"github.com/google/uuid"
)

// MemoryRepository keeps users in process memory.
type MemoryRepository struct {
	mu     sync.Mutex
	byID   map[string]models.User
	byName map[string]string
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{byID: map[string]models.User{}, byName: map[string]string{}}
}

func (r *MemoryRepository) Create(_ context.Context, user *models.User) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id, ok := r.byName[user.UserName]; ok {
		user.ID = id
		user.LastSeq = r.byID[id].LastSeq
	} else if user.ID == "" {
		user.ID = uuid.NewString()
	}
	r.byID[user.ID] = *user
	r.byName[user.UserName] = user.ID
	return user, nil
}

func (r *MemoryRepository) GetUserByLogin(ctx context.Context, userName string) (*models.User, error) {
	r.mu.Lock()
	id, ok := r.byName[userName]
	r.mu.Unlock()
	if !ok {
		return nil, common.ErrNotFound
	}
	return r.Get(ctx, id)
}

func (r *MemoryRepository) Get(_ context.Context, id string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	return &u, nil
}

func (r *MemoryRepository) AdvanceSeq(_ context.Context, id string, seq int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[id]
	if !ok {
		return 0, common.ErrNotFound
	}
	prev := u.LastSeq
	u.LastSeq = seq
	r.byID[id] = u
	return prev, nil
}
