package handlers

import (
	"context"

	"github.com/clipvault/backend/internal/media"
	"github.com/clipvault/backend/internal/models"
	"github.com/clipvault/backend/internal/transform"
)

// MediaIngestor runs the upload pipeline for a validated request.
type MediaIngestor interface {
	UploadVideo(ctx context.Context, req media.UploadRequest) (models.MediaAsset, error)
	UploadImage(ctx context.Context, req media.UploadRequest) (transform.Result, error)
}

// MediaListing reads back persisted assets for the gallery view.
type MediaListing interface {
	ListRecent(ctx context.Context) ([]models.MediaAsset, error)
}
