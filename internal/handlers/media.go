package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/clipvault/backend/internal/config"
	"github.com/clipvault/backend/internal/gallery"
	"github.com/clipvault/backend/internal/logging"
	"github.com/clipvault/backend/internal/media"
	"github.com/clipvault/backend/internal/middleware"
	"github.com/clipvault/backend/internal/models"
	"github.com/clipvault/backend/internal/transform"
)

// maxFormMemory bounds how much of a multipart body is held in memory; the
// remainder spills to temp files.
const maxFormMemory = 32 << 20

// MediaHandler provides the upload submission and gallery listing endpoints.
type MediaHandler struct {
	Ingestor MediaIngestor
	Listing  MediaListing
	URLs     transform.URLBuilder
	Limits   config.UploadLimits
}

type mediaAssetResponse struct {
	ID              string  `json:"id"`
	Title           string  `json:"title"`
	Description     string  `json:"description"`
	RemoteRef       string  `json:"remoteRef"`
	OriginalSize    int64   `json:"originalSize"`
	CompressedSize  int64   `json:"compressedSize"`
	DurationSeconds float64 `json:"duration"`
	// CompressionPercent can be negative when the rendition grew; display
	// layers decide whether to clamp.
	CompressionPercent int       `json:"compressionPercent"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`

	ThumbnailURL string `json:"thumbnailUrl"`
	PreviewURL   string `json:"previewUrl"`
	PlaybackURL  string `json:"playbackUrl"`
	DownloadURL  string `json:"downloadUrl"`
}

// imageUploadResponse carries the stored reference plus ready-made rendition
// URLs for each supported social placement.
type imageUploadResponse struct {
	RemoteRef  string            `json:"remoteRef"`
	SocialURLs map[string]string `json:"socialUrls"`
}

func (h MediaHandler) assetResponse(asset models.MediaAsset) mediaAssetResponse {
	return mediaAssetResponse{
		ID:                 asset.ID,
		Title:              asset.Title,
		Description:        asset.Description,
		RemoteRef:          asset.RemoteRef,
		OriginalSize:       asset.OriginalSizeBytes,
		CompressedSize:     asset.CompressedSizeBytes,
		DurationSeconds:    asset.DurationSeconds,
		CompressionPercent: gallery.CompressionPercent(asset.OriginalSizeBytes, asset.CompressedSizeBytes),
		CreatedAt:          asset.CreatedAt,
		UpdatedAt:          asset.UpdatedAt,
		ThumbnailURL:       h.URLs.ThumbnailURL(asset.RemoteRef),
		PreviewURL:         h.URLs.PreviewURL(asset.RemoteRef),
		PlaybackURL:        h.URLs.FullVideoURL(asset.RemoteRef),
		DownloadURL:        h.URLs.DownloadURL(asset.RemoteRef, asset.Title),
	}
}

// UploadVideo handles POST /api/v1/media/videos.
func (h MediaHandler) UploadVideo(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if h.Ingestor == nil {
		logger.Error("media ingestor unavailable")
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "upload service unavailable"})
		return
	}

	req, cleanup, err := h.parseUpload(r)
	if err != nil {
		logger.Warn("invalid upload payload", "error", err)
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "invalid upload payload"})
		return
	}
	defer cleanup()

	// Gate before any backend traffic; the service applies the same rules
	// again at the boundary that owns the backend credentials.
	if err := media.VideoPolicy(h.Limits).Validate(req); err != nil {
		h.respondUploadError(w, r, err)
		return
	}

	req.Progress = func(percent int) {
		logger.Debug("upload progress", "percent", percent)
	}

	asset, err := h.Ingestor.UploadVideo(ctx, req)
	if err != nil {
		h.respondUploadError(w, r, err)
		return
	}

	respondJSON(ctx, w, http.StatusCreated, h.assetResponse(asset))
}

// UploadImage handles POST /api/v1/media/images. Images pass through the
// transformation backend but leave no metadata record.
func (h MediaHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if h.Ingestor == nil {
		logger.Error("media ingestor unavailable")
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "upload service unavailable"})
		return
	}

	req, cleanup, err := h.parseUpload(r)
	if err != nil {
		logger.Warn("invalid upload payload", "error", err)
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "invalid upload payload"})
		return
	}
	defer cleanup()

	if err := media.ImagePolicy(h.Limits).Validate(req); err != nil {
		h.respondUploadError(w, r, err)
		return
	}

	result, err := h.Ingestor.UploadImage(ctx, req)
	if err != nil {
		h.respondUploadError(w, r, err)
		return
	}

	socialURLs := make(map[string]string, len(transform.SocialFormats))
	for _, f := range transform.SocialFormats {
		socialURLs[f.Name] = h.URLs.SocialImageURL(result.RemoteRef, f)
	}

	respondJSON(ctx, w, http.StatusCreated, imageUploadResponse{
		RemoteRef:  result.RemoteRef,
		SocialURLs: socialURLs,
	})
}

// List handles GET /api/v1/media, returning every asset most recent first.
func (h MediaHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if h.Listing == nil {
		logger.Error("media listing unavailable")
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "listing service unavailable"})
		return
	}

	assets, err := h.Listing.ListRecent(ctx)
	if err != nil {
		logger.Error("list media assets", "error", err)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to list media"})
		return
	}

	payload := make([]mediaAssetResponse, 0, len(assets))
	for _, asset := range assets {
		payload = append(payload, h.assetResponse(asset))
	}

	respondJSON(ctx, w, http.StatusOK, payload)
}

// parseUpload extracts the file part and metadata fields from a multipart
// submission. The returned cleanup releases the parsed form's temp files.
func (h MediaHandler) parseUpload(r *http.Request) (media.UploadRequest, func(), error) {
	if err := r.ParseMultipartForm(maxFormMemory); err != nil {
		return media.UploadRequest{}, func() {}, err
	}

	cleanup := func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		cleanup()
		return media.UploadRequest{}, func() {}, err
	}

	req := media.UploadRequest{
		UserID:      middleware.UserFromContext(r.Context()),
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Title:       strings.TrimSpace(r.FormValue("title")),
		Description: r.FormValue("description"),
		Body:        file,
	}

	// The size the client observed before upload is recorded alongside the
	// asset, but limits are always enforced against the received part size.
	if declared := r.FormValue("originalSize"); declared != "" {
		if size, err := strconv.ParseInt(declared, 10, 64); err == nil && size > 0 {
			req.DeclaredSize = size
		}
	}

	closeAll := func() {
		_ = file.Close()
		cleanup()
	}

	return req, closeAll, nil
}

// respondUploadError maps the upload error taxonomy onto HTTP statuses.
func (h MediaHandler) respondUploadError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	var validationErr *media.ValidationError
	var backendErr *transform.BackendError
	var persistErr *media.PersistenceError

	switch {
	case errors.Is(err, media.ErrUnauthorized):
		respondJSON(ctx, w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
	case errors.As(err, &validationErr):
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": validationErr.Reason})
	case errors.As(err, &backendErr):
		logger.Error("transform backend failure", "status", backendErr.StatusCode, "error", err)
		respondJSON(ctx, w, http.StatusBadGateway, map[string]string{"error": "media processing failed"})
	case errors.As(err, &persistErr):
		logger.Error("asset persistence failure", "error", err)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "upload failed"})
	default:
		logger.Error("upload failed", "error", err)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "upload failed"})
	}
}
