package users

import (
	"context"

	"github.com/dmitrijs2005/fieldsync/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetUserByLogin(ctx context.Context, login string) (*models.User, error)
	Get(ctx context.Context, id string) (*models.User, error)
	// AdvanceSeq stores seq as the user's last issued catalog sequence and
	// returns the previous value.
	AdvanceSeq(ctx context.Context, id string, seq int64) (int64, error)
}
