package media

import (
	"context"
	"io"
	"path"
	"time"

	"github.com/google/uuid"

	"github.com/clipvault/backend/internal/config"
	"github.com/clipvault/backend/internal/logging"
	"github.com/clipvault/backend/internal/models"
	"github.com/clipvault/backend/internal/transform"
)

// MetadataStore persists asset records produced by successful uploads.
type MetadataStore interface {
	Create(ctx context.Context, asset models.MediaAsset) (models.MediaAsset, error)
}

// Archiver stores a copy of the original upload bytes, keyed by name.
type Archiver interface {
	Save(ctx context.Context, name string, r io.Reader) (string, error)
}

// Compensator schedules cleanup of remote assets that failed to persist.
type Compensator interface {
	Enqueue(ctx context.Context, remoteRef string, resource transform.ResourceType) error
}

// UploadRequest is the transient state of one upload attempt. It lives for
// the duration of a single service call and is never stored.
type UploadRequest struct {
	// UserID is the opaque authenticated-user marker supplied by the
	// identity collaborator. An empty marker fails the upload before any
	// processing. It is not persisted.
	UserID string

	Filename    string
	ContentType string
	// Size is the received byte count of the upload part. Size limits are
	// enforced against it; the client cannot shrink it.
	Size int64
	// DeclaredSize is the byte count the client observed before uploading.
	// When present it is recorded verbatim as the asset's original size;
	// it never relaxes validation.
	DeclaredSize int64
	Title        string
	Description  string
	Body         io.Reader
	// Progress receives monotonically non-decreasing percentages in [0,100]
	// while the byte stream is in flight. Optional.
	Progress func(percent int)
}

// Service orchestrates the ingestion pipeline: validate, stream to the
// transformation backend, persist the resulting metadata. One call is one
// upload session; there is no retry inside the service.
type Service struct {
	Transformer transform.Uploader
	Store       MetadataStore
	// Archive optionally retains the original bytes for reconciliation.
	Archive Archiver
	// Compensator handles the window where the remote transform succeeded
	// but the local insert failed. Optional.
	Compensator Compensator

	Limits      config.UploadLimits
	ImageFolder string
	VideoFolder string

	NowFunc func() time.Time
	IDFunc  func() string
}

// UploadVideo runs the full ingestion pipeline for a video and returns the
// persisted asset. Validation failures, backend failures, and persistence
// failures surface as *ValidationError, *transform.BackendError, and
// *PersistenceError respectively.
func (s *Service) UploadVideo(ctx context.Context, req UploadRequest) (models.MediaAsset, error) {
	ctx, span := logging.StartSpan(ctx, "media.upload_video")
	defer span.End()

	if req.UserID == "" {
		return models.MediaAsset{}, ErrUnauthorized
	}

	if err := VideoPolicy(s.Limits).Validate(req); err != nil {
		return models.MediaAsset{}, err
	}

	id := s.newID()

	result, err := s.stream(ctx, id, req, transform.UploadOptions{
		Resource: transform.ResourceVideo,
		Folder:   s.VideoFolder,
		Recipe:   transform.VideoRecipe(),
	})
	if err != nil {
		return models.MediaAsset{}, err
	}

	originalSize := req.DeclaredSize
	if originalSize <= 0 {
		originalSize = req.Size
	}

	now := s.now()
	asset := models.MediaAsset{
		ID:                  id,
		Title:               req.Title,
		Description:         req.Description,
		RemoteRef:           result.RemoteRef,
		OriginalSizeBytes:   originalSize,
		CompressedSizeBytes: result.Bytes,
		DurationSeconds:     result.Duration,
		CreatedAt:           now,
		UpdatedAt:           now,
	}

	persisted, err := s.Store.Create(ctx, asset)
	if err != nil {
		s.compensate(ctx, result.RemoteRef, transform.ResourceVideo)
		return models.MediaAsset{}, &PersistenceError{Err: err}
	}

	return persisted, nil
}

// UploadImage streams an image through the transformation backend. Images
// carry no metadata record; only the remote ref is returned.
func (s *Service) UploadImage(ctx context.Context, req UploadRequest) (transform.Result, error) {
	ctx, span := logging.StartSpan(ctx, "media.upload_image")
	defer span.End()

	if req.UserID == "" {
		return transform.Result{}, ErrUnauthorized
	}

	if err := ImagePolicy(s.Limits).Validate(req); err != nil {
		return transform.Result{}, err
	}

	return s.stream(ctx, s.newID(), req, transform.UploadOptions{
		Resource: transform.ResourceImage,
		Folder:   s.ImageFolder,
		Recipe:   transform.AutoImageRecipe(),
	})
}

// stream hands the request body to the transformation backend, reporting
// progress and optionally teeing the original bytes into the archive.
func (s *Service) stream(ctx context.Context, id string, req UploadRequest, opts transform.UploadOptions) (transform.Result, error) {
	body := io.Reader(newProgressReader(req.Body, req.Size, req.Progress))

	if s.Archive != nil {
		archived, finish := s.teeToArchive(ctx, path.Join("originals", id, req.Filename), body)
		defer finish()
		body = archived
	}

	return s.Transformer.Upload(ctx, body, opts)
}

// teeToArchive copies every byte read from src into the archive without
// adding a second pass over the stream. Archive failures are logged and
// otherwise ignored; the archive is an aid to reconciliation, not a
// precondition of the upload.
func (s *Service) teeToArchive(ctx context.Context, key string, src io.Reader) (io.Reader, func()) {
	pr, pw := io.Pipe()
	done := make(chan struct{})

	go func() {
		defer close(done)
		if _, err := s.Archive.Save(ctx, key, pr); err != nil {
			logging.FromContext(ctx).Warn("archive original upload", "key", key, "error", err)
			// Drain so the tee never blocks on a dead archive writer.
			io.Copy(io.Discard, pr)
		}
	}()

	finish := func() {
		pw.Close()
		<-done
	}

	return io.TeeReader(src, pw), finish
}

func (s *Service) compensate(ctx context.Context, remoteRef string, resource transform.ResourceType) {
	if s.Compensator == nil {
		return
	}
	if err := s.Compensator.Enqueue(ctx, remoteRef, resource); err != nil {
		logging.FromContext(ctx).Error("enqueue orphan cleanup", "remoteRef", remoteRef, "error", err)
	}
}

func (s *Service) now() time.Time {
	if s.NowFunc != nil {
		return s.NowFunc()
	}
	return time.Now().UTC()
}

func (s *Service) newID() string {
	if s.IDFunc != nil {
		return s.IDFunc()
	}
	return uuid.NewString()
}
