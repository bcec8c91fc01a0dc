package api

import (
	"net/http"
	"os"
	"strings"

	"github.com/gorilla/mux"

	"github.com/Orelexa/gardrob/internal/infrastructure/metrics"
)

// BlobFiles maps a stored blob key to its file on disk.
type BlobFiles interface {
	Path(key string) (string, error)
}

type RouterConfig struct {
	Handler *Handler
	Limiter *RateLimiter
	Metrics *metrics.Metrics
	Blobs   BlobFiles
	// BlobPath is the url prefix blobs are served under, e.g. "/blobs".
	BlobPath string
}

func NewRouter(cfg RouterConfig) *mux.Router {
	h := cfg.Handler
	limit := cfg.Limiter.Wrap

	r := mux.NewRouter()
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware)
		r.Handle("/metrics", cfg.Metrics.Handler()).Methods(http.MethodGet)
	}

	r.HandleFunc("/healthz", h.HandleHealth).Methods(http.MethodGet)

	if cfg.Blobs != nil {
		prefix := strings.TrimSuffix(cfg.BlobPath, "/")
		if prefix == "" {
			prefix = "/blobs"
		}
		r.HandleFunc(prefix+"/{key}", blobHandler(cfg.Blobs)).Methods(http.MethodGet, http.MethodHead)
	}

	r.HandleFunc("/api/poses", h.HandlePoses).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(requireUser)

	api.HandleFunc("/models", h.HandleListModels).Methods(http.MethodGet)
	api.HandleFunc("/models", limit(h.HandleCreateModel)).Methods(http.MethodPost)
	api.HandleFunc("/models/{id}", h.HandleDeleteModel).Methods(http.MethodDelete)

	api.HandleFunc("/wardrobe", h.HandleListWardrobe).Methods(http.MethodGet)
	api.HandleFunc("/wardrobe", limit(h.HandleCreateGarment)).Methods(http.MethodPost)
	api.HandleFunc("/wardrobe/prefetch", h.HandlePrefetch).Methods(http.MethodPost)
	api.HandleFunc("/wardrobe/{id}", h.HandleUpdateGarment).Methods(http.MethodPatch)
	api.HandleFunc("/wardrobe/{id}", h.HandleDeleteGarment).Methods(http.MethodDelete)

	api.HandleFunc("/session", h.HandleGetSession).Methods(http.MethodGet)
	api.HandleFunc("/session/model", h.HandleSelectModel).Methods(http.MethodPost)
	api.HandleFunc("/session/garments", limit(h.HandleApplyGarment)).Methods(http.MethodPost)
	api.HandleFunc("/session/garments/last", h.HandleRemoveLastGarment).Methods(http.MethodDelete)
	api.HandleFunc("/session/pose", limit(h.HandleSelectPose)).Methods(http.MethodPost)

	api.HandleFunc("/outfits", h.HandleListOutfits).Methods(http.MethodGet)
	api.HandleFunc("/outfits", h.HandleSaveOutfit).Methods(http.MethodPost)
	api.HandleFunc("/outfits/{id}/load", h.HandleLoadOutfit).Methods(http.MethodPost)
	api.HandleFunc("/outfits/{id}", h.HandleDeleteOutfit).Methods(http.MethodDelete)

	return r
}

func userID(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(userHeader))
}

func requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if userID(r) == "" {
			sendError(w, userHeader+" header is required", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func blobHandler(blobs BlobFiles) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		path, err := blobs.Path(mux.Vars(r)["key"])
		if err != nil {
			http.NotFound(w, r)
			return
		}
		if _, err := os.Stat(path); err != nil {
			http.NotFound(w, r)
			return
		}
		// keys are content hashes
		w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
		http.ServeFile(w, r, path)
	}
}
