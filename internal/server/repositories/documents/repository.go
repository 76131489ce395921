package documents

import (
	"context"

	"github.com/dmitrijs2005/fieldsync/internal/server/models"
)

type Repository interface {
	// Create stores a document. It returns common.ErrAlreadyExists when a
	// document with the same GUID was submitted before.
	Create(ctx context.Context, doc *models.Document) error
	Get(ctx context.Context, userID, guid string) (*models.Document, error)
	// Confirm records a response code and the resulting status.
	Confirm(ctx context.Context, userID, guid, code, status string) error
	AddUpload(ctx context.Context, u models.Upload) error
	Uploads(ctx context.Context, userID, kind string) ([]models.Upload, error)
}
