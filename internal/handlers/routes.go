package handlers

import (
	"net/http"

	"github.com/clipvault/backend/internal/config"
	"github.com/clipvault/backend/internal/middleware"
	"github.com/clipvault/backend/internal/transform"
)

// Dependencies aggregates collaborators required by HTTP handlers.
type Dependencies struct {
	Ingestor      MediaIngestor
	Listing       MediaListing
	URLs          transform.URLBuilder
	Authenticator middleware.Authenticator
	UploadLimiter middleware.RateLimiter
	Limits        config.UploadLimits
}

// RegisterRoutes wires HTTP handlers into the provided ServeMux.
func RegisterRoutes(mux *http.ServeMux, deps Dependencies) {
	health := HealthHandler{}
	media := MediaHandler{Ingestor: deps.Ingestor, Listing: deps.Listing, URLs: deps.URLs, Limits: deps.Limits}

	guard := func(h http.HandlerFunc) http.Handler {
		var wrapped http.Handler = h
		wrapped = middleware.LimitUploads(deps.UploadLimiter, "upload")(wrapped)
		if deps.Authenticator != nil {
			wrapped = middleware.RequireUser(deps.Authenticator)(wrapped)
		}
		return wrapped
	}

	mux.HandleFunc("/healthz", health.Handle)
	mux.Handle("/api/v1/media/videos", guard(media.UploadVideo))
	mux.Handle("/api/v1/media/images", guard(media.UploadImage))
	mux.HandleFunc("/api/v1/media", media.List)
}
