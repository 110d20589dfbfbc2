package repositories

import (
	"context"

	"github.com/clipvault/backend/internal/models"
)

// MediaRepository exposes data access for persisted media assets. Records
// are created whole and never updated; the read path is a full snapshot in
// reverse chronological order.
type MediaRepository interface {
	Create(ctx context.Context, asset models.MediaAsset) (models.MediaAsset, error)
	ListRecent(ctx context.Context) ([]models.MediaAsset, error)
}
