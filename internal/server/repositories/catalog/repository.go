package catalog

import (
	"context"

	"github.com/dmitrijs2005/fieldsync/internal/server/models"
)

type Repository interface {
	// Upsert stores a row and moves it to the end of the sequence.
	Upsert(ctx context.Context, row models.CatalogRow) (int64, error)
	// Page returns up to limit rows of one type with seq greater than after,
	// in seq order.
	Page(ctx context.Context, userID, dataType string, after int64, limit int) ([]models.CatalogRow, error)
	// Changed returns up to limit rows of any type with seq greater than after.
	Changed(ctx context.Context, userID string, after int64, limit int) ([]models.CatalogRow, error)
	// MaxSeq returns the highest seq of the user's rows, 0 when there are none.
	MaxSeq(ctx context.Context, userID string) (int64, error)

	PutContent(ctx context.Context, userID, docType, docGUID, content string) error
	Content(ctx context.Context, userID, docType, docGUID string) (string, error)
}
