package transform

import (
	"fmt"
	"strings"
)

// URLBuilder derives fetchable delivery URLs from a remote ref. Every method
// is a pure function of its inputs; no network round-trips are involved.
type URLBuilder struct {
	BaseURL   string
	CloudName string
}

// NewURLBuilder constructs a builder rooted at the backend's delivery host.
func NewURLBuilder(baseURL, cloudName string) URLBuilder {
	return URLBuilder{BaseURL: strings.TrimSuffix(baseURL, "/"), CloudName: cloudName}
}

// URLOptions selects the rendition to request.
type URLOptions struct {
	Width   int
	Height  int
	Crop    string
	Gravity string
	Quality string
	Format  string
	// Raw is appended verbatim as an extra transformation segment, used for
	// effects that have no dedicated field (scrubbing previews, attachment
	// disposition).
	Raw string
}

// Build assembles the delivery URL for the given remote ref and options.
func (b URLBuilder) Build(remoteRef string, resource ResourceType, o URLOptions) string {
	var steps []string
	if o.Width > 0 {
		steps = append(steps, fmt.Sprintf("w_%d", o.Width))
	}
	if o.Height > 0 {
		steps = append(steps, fmt.Sprintf("h_%d", o.Height))
	}
	if o.Crop != "" {
		steps = append(steps, "c_"+o.Crop)
	}
	if o.Gravity != "" {
		steps = append(steps, "g_"+o.Gravity)
	}
	if o.Quality != "" {
		steps = append(steps, "q_"+o.Quality)
	}

	segments := []string{b.BaseURL, b.CloudName, string(resource), "upload"}
	if len(steps) > 0 {
		segments = append(segments, strings.Join(steps, ","))
	}
	if o.Raw != "" {
		segments = append(segments, o.Raw)
	}

	ref := remoteRef
	if o.Format != "" {
		ref = remoteRef + "." + o.Format
	}
	segments = append(segments, ref)

	return strings.Join(segments, "/")
}

// ThumbnailURL returns the static poster frame shown whenever the preview is
// not actively playing.
func (b URLBuilder) ThumbnailURL(remoteRef string) string {
	return b.Build(remoteRef, ResourceVideo, URLOptions{
		Width:   400,
		Height:  225,
		Crop:    "fill",
		Gravity: "auto",
		Quality: "auto",
		Format:  "jpg",
	})
}

// PreviewURL returns the short scrubbing preview clip loaded on hover. The
// effect clips the source to at most nine segments totalling fifteen seconds.
func (b URLBuilder) PreviewURL(remoteRef string) string {
	return b.Build(remoteRef, ResourceVideo, URLOptions{
		Width:  400,
		Height: 225,
		Raw:    "e_preview:duration_15:max_seg_9:min_seg_dur_1",
	})
}

// FullVideoURL returns the full-resolution playback URL.
func (b URLBuilder) FullVideoURL(remoteRef string) string {
	return b.Build(remoteRef, ResourceVideo, URLOptions{
		Width:  1920,
		Height: 1080,
	})
}

// DownloadURL returns a URL that asks the backend to serve the asset as an
// attachment with the suggested filename.
func (b URLBuilder) DownloadURL(remoteRef, name string) string {
	raw := "fl_attachment"
	if name = sanitizeAttachmentName(name); name != "" {
		raw = "fl_attachment:" + name
	}
	return b.Build(remoteRef, ResourceVideo, URLOptions{Raw: raw})
}

// SocialFormat names a fixed-dimension crop used when resizing an image for a
// particular social network placement.
type SocialFormat struct {
	Name   string
	Width  int
	Height int
}

// SocialFormats is the closed set of supported social placements.
var SocialFormats = []SocialFormat{
	{Name: "Instagram Square (1:1)", Width: 1080, Height: 1080},
	{Name: "Instagram Portrait (4:5)", Width: 1080, Height: 1350},
	{Name: "Twitter Post (16:9)", Width: 1200, Height: 675},
	{Name: "Twitter Header (3:1)", Width: 1500, Height: 500},
	{Name: "Facebook Cover (205:78)", Width: 820, Height: 312},
	{Name: "Youtube Thumbnail (16:9)", Width: 1280, Height: 720},
}

// SocialImageURL returns the rendition of an uploaded image cropped to the
// given social placement. Content-aware gravity keeps the subject in frame.
func (b URLBuilder) SocialImageURL(remoteRef string, f SocialFormat) string {
	return b.Build(remoteRef, ResourceImage, URLOptions{
		Width:   f.Width,
		Height:  f.Height,
		Crop:    "fill",
		Gravity: "auto",
	})
}

// sanitizeAttachmentName strips characters that cannot appear inside a URL
// path segment used as an attachment filename.
func sanitizeAttachmentName(name string) string {
	name = strings.TrimSpace(name)
	replacer := strings.NewReplacer("/", "_", "\\", "_", " ", "_", ",", "_", "?", "_", "#", "_", "%", "_")
	return replacer.Replace(name)
}
