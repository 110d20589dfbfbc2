package media

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/clipvault/backend/internal/models"
	"github.com/clipvault/backend/internal/transform"
)

type uploaderStub struct {
	result transform.Result
	err    error

	calls    int
	lastOpts transform.UploadOptions
	received []byte
}

func (u *uploaderStub) Upload(_ context.Context, body io.Reader, opts transform.UploadOptions) (transform.Result, error) {
	u.calls++
	u.lastOpts = opts
	data, err := io.ReadAll(body)
	if err != nil {
		return transform.Result{}, err
	}
	u.received = data
	if u.err != nil {
		return transform.Result{}, u.err
	}
	return u.result, nil
}

type storeStub struct {
	err   error
	calls int
	saved models.MediaAsset
}

func (s *storeStub) Create(_ context.Context, asset models.MediaAsset) (models.MediaAsset, error) {
	s.calls++
	s.saved = asset
	if s.err != nil {
		return models.MediaAsset{}, s.err
	}
	return asset, nil
}

type compensatorStub struct {
	refs      []string
	resources []transform.ResourceType
}

func (c *compensatorStub) Enqueue(_ context.Context, remoteRef string, resource transform.ResourceType) error {
	c.refs = append(c.refs, remoteRef)
	c.resources = append(c.resources, resource)
	return nil
}

type archiveStub struct {
	key  string
	data []byte
	err  error
}

func (a *archiveStub) Save(_ context.Context, name string, r io.Reader) (string, error) {
	a.key = name
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	a.data = data
	if a.err != nil {
		return "", a.err
	}
	return "s3://archive/" + name, nil
}

func newVideoRequest(body string) UploadRequest {
	return UploadRequest{
		UserID:      "user-1",
		Filename:    "clip.mp4",
		ContentType: "video/mp4",
		Size:        int64(len(body)),
		Title:       "Launch day",
		Description: "First cut",
		Body:        strings.NewReader(body),
	}
}

func newTestService(uploader *uploaderStub, store *storeStub) *Service {
	return &Service{
		Transformer: uploader,
		Store:       store,
		Limits:      testLimits(),
		VideoFolder: "videos",
		ImageFolder: "images",
		NowFunc:     func() time.Time { return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC) },
		IDFunc:      func() string { return "asset-1" },
	}
}

func TestUploadVideoPersistsBackendResult(t *testing.T) {
	uploader := &uploaderStub{result: transform.Result{RemoteRef: "videos/abc", Bytes: 512, Duration: 12.5}}
	store := &storeStub{}
	svc := newTestService(uploader, store)

	body := strings.Repeat("x", 2048)
	asset, err := svc.UploadVideo(context.Background(), newVideoRequest(body))
	if err != nil {
		t.Fatalf("UploadVideo returned error: %v", err)
	}

	if uploader.calls != 1 {
		t.Fatalf("expected one backend upload, got %d", uploader.calls)
	}
	if got := string(uploader.received); got != body {
		t.Fatal("backend did not receive the original byte stream")
	}
	if uploader.lastOpts.Resource != transform.ResourceVideo {
		t.Fatalf("resource = %q, want video", uploader.lastOpts.Resource)
	}
	if uploader.lastOpts.Folder != "videos" {
		t.Fatalf("folder = %q, want videos", uploader.lastOpts.Folder)
	}
	if uploader.lastOpts.Recipe != transform.VideoRecipe() {
		t.Fatalf("unexpected recipe: %+v", uploader.lastOpts.Recipe)
	}

	if asset.ID != "asset-1" {
		t.Fatalf("id = %q", asset.ID)
	}
	if asset.RemoteRef != "videos/abc" {
		t.Fatalf("remoteRef = %q", asset.RemoteRef)
	}
	// Sizes are recorded verbatim: client-observed original, backend-reported rendition.
	if asset.OriginalSizeBytes != int64(len(body)) {
		t.Fatalf("originalSize = %d, want %d", asset.OriginalSizeBytes, len(body))
	}
	if asset.CompressedSizeBytes != 512 {
		t.Fatalf("compressedSize = %d, want 512", asset.CompressedSizeBytes)
	}
	if asset.DurationSeconds != 12.5 {
		t.Fatalf("duration = %v, want 12.5", asset.DurationSeconds)
	}
	if store.calls != 1 {
		t.Fatalf("expected one persist call, got %d", store.calls)
	}
}

func TestUploadVideoRecordsDeclaredSizeAsOriginal(t *testing.T) {
	uploader := &uploaderStub{result: transform.Result{RemoteRef: "videos/abc", Bytes: 512}}
	store := &storeStub{}
	svc := newTestService(uploader, store)

	req := newVideoRequest("payload")
	req.DeclaredSize = 4096

	asset, err := svc.UploadVideo(context.Background(), req)
	if err != nil {
		t.Fatalf("UploadVideo returned error: %v", err)
	}
	if asset.OriginalSizeBytes != 4096 {
		t.Fatalf("originalSize = %d, want the declared 4096", asset.OriginalSizeBytes)
	}
	if store.saved.OriginalSizeBytes != 4096 {
		t.Fatalf("persisted originalSize = %d, want 4096", store.saved.OriginalSizeBytes)
	}
}

func TestUploadVideoRejectsBeforeAnyBytesMove(t *testing.T) {
	uploader := &uploaderStub{}
	store := &storeStub{}
	svc := newTestService(uploader, store)

	req := newVideoRequest("data")
	req.Title = ""

	_, err := svc.UploadVideo(context.Background(), req)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *ValidationError, got %v", err)
	}
	if uploader.calls != 0 {
		t.Fatal("backend must not be contacted for a rejected upload")
	}
	if store.calls != 0 {
		t.Fatal("nothing may be persisted for a rejected upload")
	}
}

func TestUploadVideoRequiresUser(t *testing.T) {
	uploader := &uploaderStub{}
	svc := newTestService(uploader, &storeStub{})

	req := newVideoRequest("data")
	req.UserID = ""

	if _, err := svc.UploadVideo(context.Background(), req); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if uploader.calls != 0 {
		t.Fatal("backend must not be contacted without an authenticated user")
	}
}

func TestUploadVideoBackendFailurePersistsNothing(t *testing.T) {
	backendErr := &transform.BackendError{StatusCode: 500, Message: "encoder crashed"}
	uploader := &uploaderStub{err: backendErr}
	store := &storeStub{}
	compensator := &compensatorStub{}
	svc := newTestService(uploader, store)
	svc.Compensator = compensator

	_, err := svc.UploadVideo(context.Background(), newVideoRequest("data"))
	var berr *transform.BackendError
	if !errors.As(err, &berr) {
		t.Fatalf("expected *transform.BackendError, got %v", err)
	}
	if store.calls != 0 {
		t.Fatal("backend failure must not create a metadata record")
	}
	if len(compensator.refs) != 0 {
		t.Fatal("nothing remote exists to compensate for when the upload itself failed")
	}
}

func TestUploadVideoPersistFailureSchedulesCompensation(t *testing.T) {
	uploader := &uploaderStub{result: transform.Result{RemoteRef: "videos/orphan", Bytes: 10}}
	store := &storeStub{err: errors.New("connection reset")}
	compensator := &compensatorStub{}
	svc := newTestService(uploader, store)
	svc.Compensator = compensator

	_, err := svc.UploadVideo(context.Background(), newVideoRequest("data"))
	var perr *PersistenceError
	if !errors.As(err, &perr) {
		t.Fatalf("expected *PersistenceError, got %v", err)
	}

	if len(compensator.refs) != 1 || compensator.refs[0] != "videos/orphan" {
		t.Fatalf("expected orphan cleanup for videos/orphan, got %v", compensator.refs)
	}
	if compensator.resources[0] != transform.ResourceVideo {
		t.Fatalf("cleanup resource = %q, want video", compensator.resources[0])
	}
}

func TestUploadVideoReportsMonotonicProgress(t *testing.T) {
	uploader := &uploaderStub{result: transform.Result{RemoteRef: "videos/abc"}}
	svc := newTestService(uploader, &storeStub{})

	body := bytes.Repeat([]byte("y"), 1000)
	req := newVideoRequest(string(body))
	// Force many small reads so intermediate percentages surface.
	req.Body = iotest(bytes.NewReader(body), 100)

	var reported []int
	req.Progress = func(p int) { reported = append(reported, p) }

	if _, err := svc.UploadVideo(context.Background(), req); err != nil {
		t.Fatalf("UploadVideo returned error: %v", err)
	}

	if len(reported) == 0 {
		t.Fatal("expected progress reports")
	}
	last := -1
	for _, p := range reported {
		if p < 0 || p > 100 {
			t.Fatalf("progress %d outside [0,100]", p)
		}
		if p <= last {
			t.Fatalf("progress not strictly increasing: %v", reported)
		}
		last = p
	}
	if reported[len(reported)-1] != 100 {
		t.Fatalf("final progress = %d, want 100", reported[len(reported)-1])
	}
}

func TestUploadVideoArchivesOriginalBytes(t *testing.T) {
	uploader := &uploaderStub{result: transform.Result{RemoteRef: "videos/abc"}}
	archive := &archiveStub{}
	svc := newTestService(uploader, &storeStub{})
	svc.Archive = archive

	body := "original-payload"
	if _, err := svc.UploadVideo(context.Background(), newVideoRequest(body)); err != nil {
		t.Fatalf("UploadVideo returned error: %v", err)
	}

	if archive.key != "originals/asset-1/clip.mp4" {
		t.Fatalf("archive key = %q", archive.key)
	}
	if string(archive.data) != body {
		t.Fatalf("archive captured %q, want %q", archive.data, body)
	}
	if string(uploader.received) != body {
		t.Fatal("tee must not disturb the bytes the backend sees")
	}
}

func TestUploadVideoArchiveFailureDoesNotFailUpload(t *testing.T) {
	uploader := &uploaderStub{result: transform.Result{RemoteRef: "videos/abc"}}
	svc := newTestService(uploader, &storeStub{})
	svc.Archive = &archiveStub{err: errors.New("bucket unavailable")}

	if _, err := svc.UploadVideo(context.Background(), newVideoRequest("payload")); err != nil {
		t.Fatalf("archive failure must stay invisible to the caller, got %v", err)
	}
	if string(uploader.received) != "payload" {
		t.Fatal("backend stream corrupted by failing archive")
	}
}

func TestUploadImageSkipsPersistence(t *testing.T) {
	uploader := &uploaderStub{result: transform.Result{RemoteRef: "images/pic", Bytes: 64}}
	store := &storeStub{}
	svc := newTestService(uploader, store)

	req := UploadRequest{
		UserID:      "user-1",
		Filename:    "photo.png",
		ContentType: "image/png",
		Size:        6,
		Body:        strings.NewReader("pixels"),
	}

	result, err := svc.UploadImage(context.Background(), req)
	if err != nil {
		t.Fatalf("UploadImage returned error: %v", err)
	}
	if result.RemoteRef != "images/pic" {
		t.Fatalf("remoteRef = %q", result.RemoteRef)
	}
	if uploader.lastOpts.Resource != transform.ResourceImage {
		t.Fatalf("resource = %q, want image", uploader.lastOpts.Resource)
	}
	if uploader.lastOpts.Recipe != transform.AutoImageRecipe() {
		t.Fatalf("unexpected recipe: %+v", uploader.lastOpts.Recipe)
	}
	if store.calls != 0 {
		t.Fatal("image uploads must not touch the metadata store")
	}
}

// iotest caps each Read at n bytes to simulate a chunked network stream.
func iotest(r io.Reader, n int) io.Reader {
	return &chunkReader{r: r, n: n}
}

type chunkReader struct {
	r io.Reader
	n int
}

func (c *chunkReader) Read(p []byte) (int, error) {
	if len(p) > c.n {
		p = p[:c.n]
	}
	return c.r.Read(p)
}
