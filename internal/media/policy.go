package media

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/clipvault/backend/internal/config"
	"github.com/clipvault/backend/internal/models"
)

// Policy is one closed set of acceptance rules for an upload category. The
// limits arrive from configuration; the validator itself holds no constants.
type Policy struct {
	Kind         models.MediaKind
	MaxBytes     int64
	MIMEPrefix   string
	Extensions   []string
	RequireTitle bool
}

var imageExtensions = []string{
	".jpg", ".jpeg", ".png", ".gif", ".webp", ".bmp", ".tiff", ".heic", ".heif",
}

var videoExtensions = []string{
	".mp4", ".mov", ".avi", ".mkv", ".webm", ".m4v",
}

// ImagePolicy returns the acceptance rules for still-image uploads.
func ImagePolicy(limits config.UploadLimits) Policy {
	return Policy{
		Kind:       models.KindImage,
		MaxBytes:   limits.MaxImageBytes,
		MIMEPrefix: "image/",
		Extensions: imageExtensions,
	}
}

// VideoPolicy returns the acceptance rules for video uploads. Videos carry a
// user-facing title, so an empty title is rejected here.
func VideoPolicy(limits config.UploadLimits) Policy {
	return Policy{
		Kind:         models.KindVideo,
		MaxBytes:     limits.MaxVideoBytes,
		MIMEPrefix:   "video/",
		Extensions:   videoExtensions,
		RequireTitle: true,
	}
}

// Validate applies the policy to a candidate upload. It is pure and must run
// before any bytes leave the process, so rejected uploads consume no
// bandwidth or backend quota.
func (p Policy) Validate(req UploadRequest) error {
	// The received part size is authoritative; the declared size can only
	// tighten the check, never relax it.
	if p.MaxBytes > 0 && (req.Size > p.MaxBytes || req.DeclaredSize > p.MaxBytes) {
		return &ValidationError{
			Reason: fmt.Sprintf("%s exceeds the %d byte limit", p.Kind, p.MaxBytes),
		}
	}

	if !p.acceptsType(req.ContentType, req.Filename) {
		return &ValidationError{
			Reason: fmt.Sprintf("file does not look like a supported %s", p.Kind),
		}
	}

	if p.RequireTitle && strings.TrimSpace(req.Title) == "" {
		return &ValidationError{Reason: "title is required"}
	}

	return nil
}

// acceptsType accepts when either the declared MIME type or the filename
// extension matches the category allow-list.
func (p Policy) acceptsType(contentType, filename string) bool {
	if p.MIMEPrefix != "" && strings.HasPrefix(strings.ToLower(contentType), p.MIMEPrefix) {
		return true
	}

	ext := strings.ToLower(filepath.Ext(filename))
	for _, allowed := range p.Extensions {
		if ext == allowed {
			return true
		}
	}
	return false
}
