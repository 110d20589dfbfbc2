package models

import "time"

// MediaAsset is the durable record for one uploaded, transformed media item.
// It is only ever created whole, after the transformation backend has
// reported success; there is no pending state.
type MediaAsset struct {
	ID          string
	Title       string
	Description string

	// RemoteRef is the opaque key assigned by the transformation backend.
	// Every delivery URL (thumbnail, preview, full, download) is derived
	// from it plus requested dimensions; nothing derived is stored.
	RemoteRef string

	OriginalSizeBytes   int64
	CompressedSizeBytes int64
	DurationSeconds     float64

	CreatedAt time.Time
	UpdatedAt time.Time
}

// MediaKind distinguishes the two upload categories the service accepts.
type MediaKind string

const (
	KindImage MediaKind = "image"
	KindVideo MediaKind = "video"
)
