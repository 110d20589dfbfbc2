// Package transform talks to the external transformation backend: it streams
// raw media bytes up for re-encoding, destroys remote assets, and derives
// delivery URLs for the renditions the backend can serve. URL construction is
// pure; only Upload and Destroy touch the network.
package transform

import (
	"context"
	"io"
)

// ResourceType selects the backend processing pipeline for an upload.
type ResourceType string

const (
	ResourceImage ResourceType = "image"
	ResourceVideo ResourceType = "video"
)

// Recipe carries the transformation instructions sent alongside an upload.
// The zero value asks the backend to keep the incoming encoding.
type Recipe struct {
	Quality string
	Format  string
}

// AutoImageRecipe lets the backend pick format and quality for images.
func AutoImageRecipe() Recipe {
	return Recipe{Quality: "auto", Format: "auto"}
}

// VideoRecipe is the fixed re-encoding recipe applied to every video upload.
func VideoRecipe() Recipe {
	return Recipe{Quality: "auto", Format: "mp4"}
}

// UploadOptions parameterise a single upload call.
type UploadOptions struct {
	Resource ResourceType
	Folder   string
	Recipe   Recipe
}

// Result describes a successfully transformed asset as reported by the backend.
type Result struct {
	// RemoteRef is the backend-assigned key for the stored rendition. It is
	// the only handle the rest of the system keeps.
	RemoteRef string
	// Bytes is the size of the transformed rendition.
	Bytes int64
	// Duration is the clip length in seconds, zero for still images.
	Duration float64
}

// Uploader streams media bytes to the transformation backend. The call is
// single-shot: one terminal result per invocation, no retries.
type Uploader interface {
	Upload(ctx context.Context, body io.Reader, opts UploadOptions) (Result, error)
}

// Destroyer removes a previously uploaded asset from the backend.
type Destroyer interface {
	Destroy(ctx context.Context, remoteRef string, resource ResourceType) error
}
